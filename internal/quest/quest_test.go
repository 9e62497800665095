package quest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/pirate-runner/internal/accounts"
	"github.com/ligun0805/pirate-runner/internal/game"
	"github.com/ligun0805/pirate-runner/internal/indexer"
	"github.com/ligun0805/pirate-runner/internal/orchestrator"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

var (
	pirateNFT  = common.HexToAddress("0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a")
	starterNFT = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	gold       = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestParseCommands(t *testing.T) {
	tests := []struct {
		in   string
		want []Command
	}{
		{"Chop Wood:3:10", []Command{{"Chop Wood", 3, 10}}},
		{"Chop Wood:3:10,2:5.5", []Command{{"Chop Wood", 3, 10}, {"Chop Wood", 2, 5.5}}},
		{" Mine Iron:1:0 , Load Cargo:2:20,1:1 ", []Command{{"Mine Iron", 1, 0}, {"Load Cargo", 2, 20}, {"Load Cargo", 1, 1}}},
		{"", nil},
	}
	for _, tt := range tests {
		got, err := ParseCommands(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseCommandsErrors(t *testing.T) {
	for _, in := range []string{"3:10", "Chop Wood:x:1", "Chop Wood:1:y", "Chop Wood", "a:b:c:d", ":1:1", "Chop Wood:-1:1"} {
		_, err := ParseCommands(in)
		assert.Error(t, err, in)
	}
}

func TestTokenTypes(t *testing.T) {
	for in, want := range map[string]TokenType{"ERC20": ERC20, "erc-721": ERC721, " ERC1155 ": ERC1155} {
		got, err := ParseTokenType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTokenType("ERC404")
	assert.Error(t, err)
	assert.Equal(t, uint8(2), uint8(ERC721))
	assert.Equal(t, "ERC1155", ERC1155.String())
}

func TestQuestForFillsPiratePlaceholder(t *testing.T) {
	q := Quest{ID: 9, Name: "Forge", Inputs: append(PirateOnly(pirateNFT),
		Input{Type: ERC20, Contract: gold, TokenID: new(big.Int), Amount: big.NewInt(500)})}
	p := game.Token{Contract: starterNFT, ID: big.NewInt(42)}

	in := q.For(p)
	require.Len(t, in, 2)
	assert.Equal(t, starterNFT, in[0].Contract, "starter pirates quest with their own collection")
	assert.Equal(t, int64(42), in[0].TokenID.Int64())
	assert.Equal(t, gold, in[1].Contract)
	assert.Zero(t, q.Inputs[0].TokenID.Sign(), "catalog entry untouched")
}

func TestStartQuestEncoding(t *testing.T) {
	c := NewContract(DefaultQuestAddress, DefaultEnergyAddress, nil)
	from := common.HexToAddress("0x01")
	p := game.Token{Contract: pirateNFT, ID: big.NewInt(7)}

	req, err := c.StartQuest(from, 21, DefaultCatalog(pirateNFT).mustLookup(t, "mine more iron").For(p))
	require.NoError(t, err)
	assert.Equal(t, ActionStart, req.Action)
	assert.Equal(t, DefaultQuestAddress, req.To)

	args, err := parsedQuestABI.Methods["startQuest"].Inputs.Unpack(req.Data[4:])
	require.NoError(t, err)
	got := *abi.ConvertType(args[0], new(questParams)).(*questParams)
	assert.Equal(t, uint32(21), got.QuestId)
	require.Len(t, got.Inputs, 1)
	assert.Equal(t, uint8(ERC721), got.Inputs[0].TokenType)
	assert.Equal(t, pirateNFT, got.Inputs[0].TokenContract)
	assert.Equal(t, int64(7), got.Inputs[0].TokenId.Int64())
	assert.Equal(t, int64(1), got.Inputs[0].Amount.Int64())
}

func (c *Catalog) mustLookup(t *testing.T, name string) Quest {
	t.Helper()
	q, ok := c.Lookup(name)
	require.True(t, ok, name)
	return q
}

// energyChain serves getEnergy from a per-entity table, in whole units.
type energyChain struct {
	energy map[string]int64
	err    error
}

func (e *energyChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	m, err := parsedEnergyABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	units := e.energy[args[0].(*big.Int).String()]
	wei := new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return m.Outputs.Pack(wei)
}

// questExecutor spends cost energy for each quest it starts.
type questExecutor struct {
	chain   *energyChain
	cost    int64
	fail    map[uint32]bool
	started []uint32
}

func (q *questExecutor) Execute(_ context.Context, req txsubmit.Request, _ *ecdsa.PrivateKey, p txsubmit.Policy) txsubmit.Outcome {
	args, err := parsedQuestABI.Methods["startQuest"].Inputs.Unpack(req.Data[4:])
	if err != nil {
		panic(err)
	}
	qp := *abi.ConvertType(args[0], new(questParams)).(*questParams)
	if q.fail[qp.QuestId] {
		return txsubmit.FailedWith(common.Hash{1}, 1, "reverted")
	}
	q.started = append(q.started, qp.QuestId)
	ent := game.ToEntity(qp.Inputs[0].TokenContract, qp.Inputs[0].TokenId).String()
	q.chain.energy[ent] -= q.cost
	return txsubmit.Succeeded(common.Hash{2}, 1)
}

type fakePirates []indexer.Pirate

func (f fakePirates) Pirates(context.Context, string) ([]indexer.Pirate, error) { return f, nil }

var owner = accounts.Account{ID: "w1", Address: common.HexToAddress("0x00000000000000000000000000000000000a11ce")}

func TestRunnerSpendsEnergyPerCommand(t *testing.T) {
	p1 := game.Token{Contract: pirateNFT, ID: big.NewInt(1)}
	p2 := game.Token{Contract: starterNFT, ID: big.NewInt(2)}
	ch := &energyChain{energy: map[string]int64{p1.Entity().String(): 50, p2.Entity().String(): 15}}
	exe := &questExecutor{chain: ch, cost: 10}
	cmds, err := ParseCommands("Chop Wood:3:10,Swab the Decks:5:20")
	require.NoError(t, err)

	r := NewRunner(RunnerConfig{
		Contract: NewContract(DefaultQuestAddress, DefaultEnergyAddress, ch),
		Pirates: fakePirates{
			{ID: "0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a-1", Name: "one"},
			{ID: "0x00000000000000000000000000000000000000aa-2", Name: "two"},
		},
		Executor: exe,
		Catalog:  DefaultCatalog(pirateNFT),
	}, cmds, nil)

	rep, err := r.Run(context.Background(), owner)
	require.NoError(t, err)

	// one: 50 -> chop x3 -> 20 -> swab once -> 10 < 20
	// two: 15 -> chop once -> 5 < 10; swab needs 20
	assert.Equal(t, []uint32{3, 3, 3, 1, 3}, exe.started)
	sum := orchestrator.NewSummary()
	sum.Record(rep)
	assert.Equal(t, orchestrator.Counts{Succeeded: 5}, sum.Counts(ActionStart))
	assert.Equal(t, []string{TopicLowEnergy + "Chop Wood", TopicLowEnergy + "Swab the Decks"}, sum.Topics())
}

func TestRunnerStopsCommandOnFailure(t *testing.T) {
	p := game.Token{Contract: pirateNFT, ID: big.NewInt(1)}
	ch := &energyChain{energy: map[string]int64{p.Entity().String(): 100}}
	exe := &questExecutor{chain: ch, cost: 1, fail: map[uint32]bool{2: true}}
	cmds, err := ParseCommands("Load Cargo:4:0,Mine Iron:2:0,Unknown:1:0")
	require.NoError(t, err)

	r := NewRunner(RunnerConfig{
		Contract: NewContract(DefaultQuestAddress, DefaultEnergyAddress, ch),
		Pirates:  fakePirates{{ID: "0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a-1"}},
		Executor: exe,
		Catalog:  DefaultCatalog(pirateNFT),
	}, cmds, nil)

	rep, err := r.Run(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 5}, exe.started, "load cargo fails once, mine iron still runs")
	sum := orchestrator.NewSummary()
	sum.Record(rep)
	assert.Equal(t, orchestrator.Counts{Succeeded: 2, Failed: 1}, sum.Counts(ActionStart))
	assert.Equal(t, []common.Address{owner.Address}, sum.Noted(TopicUnknownQuest+"Unknown"))
}

func TestRunnerEnergyReadFailureFailsAccount(t *testing.T) {
	ch := &energyChain{err: errors.New("connection reset")}
	r := NewRunner(RunnerConfig{
		Contract: NewContract(DefaultQuestAddress, DefaultEnergyAddress, ch),
		Pirates:  fakePirates{{ID: "0x5b0661b61b0e947e7e49ce7a67abaf8eaafcdc1a-1"}},
		Executor: &questExecutor{chain: ch},
		Catalog:  DefaultCatalog(pirateNFT),
	}, []Command{{Name: "Chop Wood", Times: 1}}, nil)

	_, err := r.Run(context.Background(), owner)
	assert.ErrorContains(t, err, "read energy")
}
