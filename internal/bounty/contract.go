// Package bounty sends pirates on bounties and claims finished ones.
package bounty

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

// Action names, also the keys of their submission policies.
const (
	ActionStart = "start_bounty"
	ActionEnd   = "end_bounty"
)

// ContractErrorSelector is the custom error the bounty system reverts with
// when a bounty cannot be started or ended for the caller.
const ContractErrorSelector = "0xaf68984f"

// contractErrPrefix is prepended to outcome reasons carrying ContractErrorSelector.
const contractErrPrefix = "contract error"

const bountyABI = `[
{"type":"function","name":"startBounty","stateMutability":"nonpayable",
 "inputs":[{"name":"bountyId","type":"uint256"},{"name":"entityIds","type":"uint256[]"}],
 "outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"endBounty","stateMutability":"nonpayable",
 "inputs":[{"name":"activeBountyId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"activeBountyIdsForAccount","stateMutability":"view",
 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"hasPendingBounty","stateMutability":"view",
 "inputs":[{"name":"account","type":"address"},{"name":"groupId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isBountyAvailable","stateMutability":"view",
 "inputs":[{"name":"account","type":"address"},{"name":"bountyId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var parsedABI = chain.MustParseABI(bountyABI)

// Contract binds the bounty system. Reads go through caller; writes are
// returned as unsigned requests for the executor.
type Contract struct {
	addr   common.Address
	abi    abi.ABI
	caller chain.ContractCaller
}

func NewContract(addr common.Address, caller chain.ContractCaller) *Contract {
	return &Contract{addr: addr, abi: parsedABI, caller: caller}
}

func (c *Contract) Address() common.Address { return c.addr }

func (c *Contract) ActiveBountyIDs(ctx context.Context, account common.Address) ([]*big.Int, error) {
	out, err := chain.Call(ctx, c.caller, c.addr, c.abi, "activeBountyIdsForAccount", account)
	if err != nil {
		return nil, err
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, errors.Errorf("activeBountyIdsForAccount: unexpected %T", out[0])
	}
	return ids, nil
}

func (c *Contract) HasPendingBounty(ctx context.Context, account common.Address, groupID *big.Int) (bool, error) {
	return c.callBool(ctx, "hasPendingBounty", account, groupID)
}

func (c *Contract) IsBountyAvailable(ctx context.Context, account common.Address, bountyID *big.Int) (bool, error) {
	return c.callBool(ctx, "isBountyAvailable", account, bountyID)
}

func (c *Contract) callBool(ctx context.Context, method string, args ...interface{}) (bool, error) {
	out, err := chain.Call(ctx, c.caller, c.addr, c.abi, method, args...)
	if err != nil {
		return false, err
	}
	b, ok := out[0].(bool)
	if !ok {
		return false, errors.Errorf("%s: unexpected %T", method, out[0])
	}
	return b, nil
}

// StartBounty builds the request sending entities on bountyID.
func (c *Contract) StartBounty(from common.Address, bountyID *big.Int, entities []*big.Int) (txsubmit.Request, error) {
	data, err := c.abi.Pack("startBounty", bountyID, entities)
	if err != nil {
		return txsubmit.Request{}, errors.Wrap(err, "pack startBounty")
	}
	return txsubmit.Request{Action: ActionStart, From: from, To: c.addr, Data: data}, nil
}

func (c *Contract) EndBounty(from common.Address, activeBountyID *big.Int) (txsubmit.Request, error) {
	data, err := c.abi.Pack("endBounty", activeBountyID)
	if err != nil {
		return txsubmit.Request{}, errors.Wrap(err, "pack endBounty")
	}
	return txsubmit.Request{Action: ActionEnd, From: from, To: c.addr, Data: data}, nil
}

// annotate tags outcomes caused by the bounty system's custom error.
func annotate(out txsubmit.Outcome) txsubmit.Outcome {
	if strings.Contains(out.Reason, ContractErrorSelector) && !strings.HasPrefix(out.Reason, contractErrPrefix) {
		out.Reason = contractErrPrefix + ": " + out.Reason
	}
	return out
}
