// Package game holds the encodings the Pirate Nation contracts and indexer
// agree on.
package game

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var addrMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))

// ToEntity packs a token into the uint256 entity id: tokenID<<160 | contract.
func ToEntity(contract common.Address, tokenID *big.Int) *big.Int {
	e := new(big.Int).Lsh(tokenID, 160)
	return e.Or(e, new(big.Int).SetBytes(contract.Bytes()))
}

// AccountEntity is the entity id of a wallet, as used by energy reads.
func AccountEntity(addr common.Address) *big.Int {
	return new(big.Int).SetBytes(addr.Bytes())
}

func FromEntity(entity *big.Int) (common.Address, *big.Int) {
	addr := common.BigToAddress(new(big.Int).And(entity, addrMask))
	return addr, new(big.Int).Rsh(entity, 160)
}

// ParseGraphID splits an indexer NFT id "0xcontract-tokenId". The token id
// is decimal.
func ParseGraphID(id string) (common.Address, *big.Int, error) {
	addr, tok, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok {
		return common.Address{}, nil, errors.Errorf("graph id %q: missing '-'", id)
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, nil, errors.Errorf("graph id %q: bad contract address", id)
	}
	tokenID, ok := new(big.Int).SetString(tok, 10)
	if !ok || tokenID.Sign() < 0 {
		return common.Address{}, nil, errors.Errorf("graph id %q: bad token id", id)
	}
	return common.HexToAddress(addr), tokenID, nil
}

// Token is an NFT identified by its collection and token id.
type Token struct {
	Contract common.Address
	ID       *big.Int
}

func ParseToken(graphID string) (Token, error) {
	addr, id, err := ParseGraphID(graphID)
	if err != nil {
		return Token{}, err
	}
	return Token{Contract: addr, ID: id}, nil
}

func (t Token) Entity() *big.Int { return ToEntity(t.Contract, t.ID) }

// GraphIDToEntity is ParseGraphID followed by ToEntity.
func GraphIDToEntity(id string) (*big.Int, error) {
	addr, tok, err := ParseGraphID(id)
	if err != nil {
		return nil, err
	}
	return ToEntity(addr, tok), nil
}

// Generation is 0 for pirates minted by the genesis collection and 1 for
// everything else (starter pirates).
func Generation(contract, genesis common.Address) int {
	if contract == genesis {
		return 0
	}
	return 1
}
