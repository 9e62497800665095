package quest

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

const ActionStart = "start_quest"

var (
	DefaultQuestAddress  = common.HexToAddress("0x093aE1c7F34E7219674031F16eBbEB6a0c4F8d97")
	DefaultEnergyAddress = common.HexToAddress("0x26DcA20a55AB5D38B2F39E6798CDBee87A5c983D")
)

type TokenType uint8

const (
	ERC20   TokenType = 1
	ERC721  TokenType = 2
	ERC1155 TokenType = 3
)

func (t TokenType) String() string {
	switch t {
	case ERC20:
		return "ERC20"
	case ERC721:
		return "ERC721"
	case ERC1155:
		return "ERC1155"
	}
	return "TokenType(" + strconv.Itoa(int(t)) + ")"
}

func ParseTokenType(s string) (TokenType, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "ERC20":
		return ERC20, nil
	case "ERC721":
		return ERC721, nil
	case "ERC1155":
		return ERC1155, nil
	}
	return 0, errors.Errorf("unknown token type %q", s)
}

// tokenPointer and questParams mirror the contract tuples field by field.
type tokenPointer struct {
	TokenType     uint8
	TokenContract common.Address
	TokenId       *big.Int
	Amount        *big.Int
}

type questParams struct {
	QuestId uint32
	Inputs  []tokenPointer
}

const questABI = `[
{"type":"function","name":"startQuest","stateMutability":"nonpayable",
 "inputs":[{"name":"params","type":"tuple","internalType":"struct QuestSystem.QuestParams","components":[
   {"name":"questId","type":"uint32"},
   {"name":"inputs","type":"tuple[]","internalType":"struct GameRegistryLibrary.TokenPointer[]","components":[
     {"name":"tokenType","type":"uint8"},
     {"name":"tokenContract","type":"address"},
     {"name":"tokenId","type":"uint256"},
     {"name":"amount","type":"uint256"}]}]}],
 "outputs":[{"name":"","type":"uint256"}]}
]`

const energyABI = `[
{"type":"function","name":"getEnergy","stateMutability":"view",
 "inputs":[{"name":"entity","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	parsedQuestABI  = chain.MustParseABI(questABI)
	parsedEnergyABI = chain.MustParseABI(energyABI)
)

// Contract binds the quest system and the energy reader.
type Contract struct {
	quest  common.Address
	energy common.Address
	caller chain.ContractCaller
	qabi   abi.ABI
	eabi   abi.ABI
}

func NewContract(quest, energy common.Address, caller chain.ContractCaller) *Contract {
	return &Contract{quest: quest, energy: energy, caller: caller, qabi: parsedQuestABI, eabi: parsedEnergyABI}
}

var energyUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// Energy returns the entity's energy in whole units.
func (c *Contract) Energy(ctx context.Context, entity *big.Int) (float64, error) {
	out, err := chain.Call(ctx, c.caller, c.energy, c.eabi, "getEnergy", entity)
	if err != nil {
		return 0, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.Errorf("getEnergy: unexpected %T", out[0])
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), energyUnit).Float64()
	return f, nil
}

// StartQuest builds the startQuest request for the given inputs.
func (c *Contract) StartQuest(from common.Address, questID uint32, inputs []Input) (txsubmit.Request, error) {
	p := questParams{QuestId: questID, Inputs: make([]tokenPointer, len(inputs))}
	for i, in := range inputs {
		p.Inputs[i] = tokenPointer{
			TokenType:     uint8(in.Type),
			TokenContract: in.Contract,
			TokenId:       orZero(in.TokenID),
			Amount:        orZero(in.Amount),
		}
	}
	data, err := c.qabi.Pack("startQuest", p)
	if err != nil {
		return txsubmit.Request{}, errors.Wrap(err, "pack startQuest")
	}
	return txsubmit.Request{Action: ActionStart, From: from, To: c.quest, Data: data}, nil
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
