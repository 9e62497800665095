package bounty

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/pirate-runner/internal/game"
)

// Party is the pirates planned onto one bounty group.
type Party struct {
	Mapping  Mapping
	Entities []*big.Int
}

// Plan groups pirates by their assigned bounty in first-seen order. A group
// takes at most its mapped limit; the rest of its pirates are left out of
// this round. Pirates with no assignment, or one naming an unmapped bounty,
// are returned as unallocated.
func Plan(pirates []game.Token, genesis common.Address, m *Mappings, a *Assignments) (parties []Party, unallocated []*big.Int) {
	index := map[string]int{}
	for _, p := range pirates {
		name, ok := a.BountyFor(p.ID, game.Generation(p.Contract, genesis))
		var mp Mapping
		if ok {
			mp, ok = m.ByName(name)
		}
		if !ok {
			unallocated = append(unallocated, p.Entity())
			continue
		}
		key := mp.GroupID.String()
		i, seen := index[key]
		if !seen {
			i = len(parties)
			index[key] = i
			parties = append(parties, Party{Mapping: mp})
		}
		if len(parties[i].Entities) < mp.Limit {
			parties[i].Entities = append(parties[i].Entities, p.Entity())
		}
	}
	return parties, unallocated
}
