package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MustParseABI parses a JSON ABI literal and panics on a malformed one.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Call runs a view method at the latest block and returns its unpacked outputs.
func Call(ctx context.Context, caller ContractCaller, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: input}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	out, err := contractABI.Unpack(method, output)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%s returned nothing", method)
	}
	return out, nil
}
