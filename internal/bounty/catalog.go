package bounty

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ligun0805/pirate-runner/internal/indexer"
)

type catalogEntry struct {
	group        string
	lower, upper int
	id           *big.Int
}

// Catalog indexes the bounty definitions by group and party size.
type Catalog struct {
	entries []catalogEntry
}

// NewCatalog keeps the indexer order. Entities lacking a group, bounds or a
// hex id after the '-' are ignored.
func NewCatalog(ents []indexer.BountyEntity) *Catalog {
	c := &Catalog{}
	for _, e := range ents {
		group, ok := new(big.Int).SetString(strings.TrimSpace(e.Fields["group_id"]), 10)
		if !ok {
			continue
		}
		lo, err1 := strconv.Atoi(strings.TrimSpace(e.Fields["lower_bound"]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(e.Fields["upper_bound"]))
		if err1 != nil || err2 != nil {
			continue
		}
		id, ok := bountyID(e.ID)
		if !ok {
			continue
		}
		c.entries = append(c.entries, catalogEntry{group: group.String(), lower: lo, upper: hi, id: id})
	}
	return c
}

func bountyID(entityID string) (*big.Int, bool) {
	_, h, ok := strings.Cut(entityID, "-")
	if !ok {
		return nil, false
	}
	h = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(h), "0x"), "0X")
	if h == "" {
		return nil, false
	}
	return new(big.Int).SetString(h, 16)
}

// Select returns the first bounty in group whose bounds contain n pirates.
func (c *Catalog) Select(group *big.Int, n int) (*big.Int, bool) {
	if c == nil || group == nil || n < 1 {
		return nil, false
	}
	key := group.String()
	for _, e := range c.entries {
		if e.group == key && e.lower <= n && n <= e.upper {
			return new(big.Int).Set(e.id), true
		}
	}
	return nil, false
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
