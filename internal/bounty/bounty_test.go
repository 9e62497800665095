package bounty

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/pirate-runner/internal/game"
	"github.com/ligun0805/pirate-runner/internal/indexer"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

var (
	genesisNFT = common.HexToAddress("0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a")
	starterNFT = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

const mappingsCSV = `bounty_name,group_id,limit
Ore Galore,100,
Treasure Hunt,200,1
Deep Dive,300,50
ore galore,999,3
`

const assignmentsCSV = `token_id,generation,bounty
1,0,Ore Galore
2,0, ore galore
3,1,Treasure Hunt
3,0,
4,0,Unknown Bounty
`

func mustMappings(t *testing.T) *Mappings {
	t.Helper()
	m, err := ParseMappings(strings.NewReader(mappingsCSV))
	require.NoError(t, err)
	return m
}

func mustAssignments(t *testing.T) *Assignments {
	t.Helper()
	a, err := ParseAssignments(strings.NewReader(assignmentsCSV))
	require.NoError(t, err)
	return a
}

func TestParseMappings(t *testing.T) {
	m := mustMappings(t)
	require.Len(t, m.All(), 3, "duplicate names keep the first row")

	ore, ok := m.ByName("  ORE GALORE ")
	require.True(t, ok)
	assert.Equal(t, int64(100), ore.GroupID.Int64())
	assert.Equal(t, MaxPiratesPerBounty, ore.Limit, "blank limit")

	deep, _ := m.ByName("Deep Dive")
	assert.Equal(t, MaxPiratesPerBounty, deep.Limit, "capped")

	th, ok := m.ByGroup(big.NewInt(200))
	require.True(t, ok)
	assert.Equal(t, "Treasure Hunt", th.Name)
	assert.Equal(t, 1, m.Limit(big.NewInt(200)))
	assert.Equal(t, MaxPiratesPerBounty, m.Limit(big.NewInt(12345)))

	_, ok = m.ByGroup(big.NewInt(999))
	assert.False(t, ok)
}

func TestParseMappingsRejectsBadRows(t *testing.T) {
	for name, in := range map[string]string{
		"missing column": "bounty_name,limit\nx,1\n",
		"bad group":      "bounty_name,group_id\nx,0x10\n",
		"bad limit":      "bounty_name,group_id,limit\nx,1,zero\n",
		"empty":          "",
	} {
		_, err := ParseMappings(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestParseAssignments(t *testing.T) {
	a := mustAssignments(t)
	b, ok := a.BountyFor(big.NewInt(1), 0)
	assert.True(t, ok)
	assert.Equal(t, "Ore Galore", b)

	_, ok = a.BountyFor(big.NewInt(3), 0)
	assert.False(t, ok, "blank bounty")
	_, ok = a.BountyFor(big.NewInt(1), 1)
	assert.False(t, ok, "generation is part of the key")

	_, err := ParseAssignments(strings.NewReader("token_id,generation,bounty\nx,0,a\n"))
	assert.ErrorContains(t, err, "line 2")
}

func testCatalog() *Catalog {
	return NewCatalog([]indexer.BountyEntity{
		{ID: "0x3ceb-0xa", Fields: map[string]string{"group_id": "100", "lower_bound": "1", "upper_bound": "1"}},
		{ID: "0x3ceb-0xb", Fields: map[string]string{"group_id": "100", "lower_bound": "2", "upper_bound": "5"}},
		{ID: "0x3ceb-0xbb", Fields: map[string]string{"group_id": "100", "lower_bound": "2", "upper_bound": "20"}},
		{ID: "0x3ceb-0xc", Fields: map[string]string{"group_id": "200", "lower_bound": "1", "upper_bound": "1"}},
		{ID: "0x3ceb-0xd", Fields: map[string]string{"group_id": "300", "lower_bound": "1", "upper_bound": "20"}},
		{ID: "0x3ceb-0xe", Fields: map[string]string{"group_id": "400", "lower_bound": "1", "upper_bound": "20"}},
		{ID: "no-dash-here-zz", Fields: map[string]string{"group_id": "100", "lower_bound": "1", "upper_bound": "20"}},
		{ID: "0x3ceb-0xf", Fields: map[string]string{"group_id": "100"}},
	})
}

func TestCatalogSelect(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, 6, c.Len())

	tests := []struct {
		group int64
		n     int
		want  int64
		ok    bool
	}{
		{100, 1, 0xa, true},
		{100, 2, 0xb, true},
		{100, 5, 0xb, true},
		{100, 6, 0xbb, true},
		{100, 21, 0, false},
		{200, 2, 0, false},
		{999, 1, 0, false},
		{100, 0, 0, false},
	}
	for _, tt := range tests {
		id, ok := c.Select(big.NewInt(tt.group), tt.n)
		require.Equal(t, tt.ok, ok, "group %d n %d", tt.group, tt.n)
		if ok {
			assert.Equal(t, tt.want, id.Int64(), "group %d n %d", tt.group, tt.n)
		}
	}
}

func tokens(ids ...int64) []game.Token {
	var out []game.Token
	for _, id := range ids {
		out = append(out, game.Token{Contract: genesisNFT, ID: big.NewInt(id)})
	}
	return out
}

func TestPlan(t *testing.T) {
	m, a := mustMappings(t), mustAssignments(t)
	pirates := append(tokens(1, 2, 4, 5), game.Token{Contract: starterNFT, ID: big.NewInt(3)})

	parties, unallocated := Plan(pirates, genesisNFT, m, a)

	require.Len(t, parties, 2)
	assert.Equal(t, "Ore Galore", parties[0].Mapping.Name)
	assert.Equal(t, []*big.Int{game.ToEntity(genesisNFT, big.NewInt(1)), game.ToEntity(genesisNFT, big.NewInt(2))}, parties[0].Entities)
	assert.Equal(t, "Treasure Hunt", parties[1].Mapping.Name)
	assert.Equal(t, []*big.Int{game.ToEntity(starterNFT, big.NewInt(3))}, parties[1].Entities)
	assert.Equal(t, []*big.Int{game.ToEntity(genesisNFT, big.NewInt(4)), game.ToEntity(genesisNFT, big.NewInt(5))}, unallocated,
		"unmapped bounty name and missing assignment")
}

func TestPlanCapsPartyAtLimit(t *testing.T) {
	m, err := ParseMappings(strings.NewReader("bounty_name,group_id,limit\nSolo,7,2\n"))
	require.NoError(t, err)
	a, err := ParseAssignments(strings.NewReader("token_id,generation,bounty\n1,0,Solo\n2,0,Solo\n3,0,Solo\n"))
	require.NoError(t, err)

	parties, unallocated := Plan(tokens(1, 2, 3), genesisNFT, m, a)
	require.Len(t, parties, 1)
	assert.Len(t, parties[0].Entities, 2)
	assert.Empty(t, unallocated)
}

func TestAnnotateContractError(t *testing.T) {
	out := annotate(txsubmit.AbortedWith("gas estimation failed: custom error 0xaf68984f"))
	assert.Equal(t, "contract error: gas estimation failed: custom error 0xaf68984f", out.Reason)
	assert.Equal(t, out.Reason, annotate(out).Reason, "idempotent")
	assert.Equal(t, "reverted", annotate(txsubmit.FailedWith(common.Hash{}, 1, "reverted")).Reason)
}
