package quest

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/pirate-runner/internal/game"
)

// Input is one token the quest consumes or locks. An ERC721 input with a
// zero token id stands for the questing pirate and is filled in per pirate.
type Input struct {
	Type     TokenType
	Contract common.Address
	TokenID  *big.Int
	Amount   *big.Int
}

type Quest struct {
	ID     uint32
	Name   string
	Inputs []Input
}

// For returns the inputs with the pirate placeholder set to p.
func (q Quest) For(p game.Token) []Input {
	out := make([]Input, len(q.Inputs))
	for i, in := range q.Inputs {
		if in.Type == ERC721 && (in.TokenID == nil || in.TokenID.Sign() == 0) {
			in.Contract = p.Contract
			in.TokenID = new(big.Int).Set(p.ID)
		}
		out[i] = in
	}
	return out
}

// Catalog looks quests up by name, case-insensitively.
type Catalog struct {
	byName map[string]Quest
}

func NewCatalog(quests ...Quest) *Catalog {
	c := &Catalog{byName: make(map[string]Quest, len(quests))}
	for _, q := range quests {
		c.byName[strings.ToLower(strings.TrimSpace(q.Name))] = q
	}
	return c
}

func (c *Catalog) Lookup(name string) (Quest, bool) {
	q, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return q, ok
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.byName))
	for _, q := range c.byName {
		out = append(out, q.Name)
	}
	sort.Strings(out)
	return out
}

// PirateOnly is the input list of quests that take nothing but the pirate.
func PirateOnly(pirateNFT common.Address) []Input {
	return []Input{{Type: ERC721, Contract: pirateNFT, TokenID: new(big.Int), Amount: big.NewInt(1)}}
}

// DefaultCatalog holds the basic quests that need only a pirate.
func DefaultCatalog(pirateNFT common.Address) *Catalog {
	return NewCatalog(DefaultQuests(pirateNFT)...)
}

func DefaultQuests(pirateNFT common.Address) []Quest {
	names := []struct {
		id   uint32
		name string
	}{
		{1, "Swab the Decks"},
		{2, "Load Cargo"},
		{3, "Chop Wood"},
		{4, "Harvest Cotton"},
		{5, "Mine Iron"},
		{19, "Chop More Wood"},
		{20, "Harvest More Cotton"},
		{21, "Mine More Iron"},
	}
	qs := make([]Quest, len(names))
	for i, n := range names {
		qs[i] = Quest{ID: n.id, Name: n.name, Inputs: PirateOnly(pirateNFT)}
	}
	return qs
}
