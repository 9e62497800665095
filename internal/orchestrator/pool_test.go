package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ligun0805/pirate-runner/internal/accounts"
	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

func fakeAccounts(n int) []accounts.Account {
	out := make([]accounts.Account, n)
	for i := range out {
		out[i] = accounts.Account{ID: string(rune('a' + i)), Address: common.BigToAddress(big.NewInt(int64(i + 1)))}
	}
	return out
}

func TestRunIsolatesPanicsAndErrors(t *testing.T) {
	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	accts := fakeAccounts(5)

	sum := New(2, lggr).Run(context.Background(), accts, func(_ context.Context, a accounts.Account) (Report, error) {
		var r Report
		switch a.ID {
		case "c":
			panic("boom")
		case "d":
			r.Add("end_bounty", txsubmit.Succeeded(common.Hash{1}, 1), a.Address)
			return r, errors.New("indexer down")
		}
		r.Add("start_bounty", txsubmit.Succeeded(common.Hash{2}, 1), a.Address)
		return r, nil
	})

	assert.Equal(t, 5, sum.Accounts())
	assert.Equal(t, 3, sum.Counts("start_bounty").Succeeded)
	assert.Equal(t, 1, sum.Counts("end_bounty").Succeeded, "partial outcomes still count")
	assert.ElementsMatch(t, []common.Address{accts[2].Address, accts[3].Address}, sum.FailedAccounts())
	assert.ElementsMatch(t,
		[]common.Address{accts[0].Address, accts[1].Address, accts[4].Address},
		sum.Addresses("start_bounty", txsubmit.Success))
	assert.Equal(t, 2, logs.FilterMessage("account failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("batch finished").Len())
}

func TestRunBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	accts := fakeAccounts(12)
	New(3, nil).Run(context.Background(), accts, func(context.Context, accounts.Account) (Report, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return Report{}, nil
	})
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestRunSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	sum := New(1, nil).Run(ctx, fakeAccounts(5), func(context.Context, accounts.Account) (Report, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return Report{}, nil
	})
	assert.Less(t, int(calls.Load()), 5)
	assert.Equal(t, int(calls.Load()), sum.Accounts())
}

func TestSummaryIsOrderIndependent(t *testing.T) {
	accts := fakeAccounts(6)
	kinds := txsubmit.Kinds
	var reports []Report
	for i, a := range accts {
		var r Report
		r.Add("start_bounty", txsubmit.Outcome{Kind: kinds[i%len(kinds)]}, a.Address)
		r.Add("end_bounty", txsubmit.Outcome{Kind: kinds[(i+1)%len(kinds)]}, a.Address)
		if i%2 == 0 {
			r.Note("pending: Treasure Hunt", a.Address)
		}
		reports = append(reports, r)
	}

	baseline := NewSummary()
	for _, r := range reports {
		baseline.Record(r)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		perm := rng.Perm(len(reports))
		s := NewSummary()
		for _, j := range perm {
			s.Record(reports[j])
		}
		for _, action := range []string{"start_bounty", "end_bounty"} {
			require.Equal(t, baseline.Counts(action), s.Counts(action))
			for _, k := range kinds {
				require.Equal(t, baseline.Addresses(action, k), s.Addresses(action, k))
			}
		}
		require.Equal(t, baseline.Noted("pending: Treasure Hunt"), s.Noted("pending: Treasure Hunt"))
	}
}

func TestSummaryMergeIsAssociative(t *testing.T) {
	accts := fakeAccounts(3)
	mk := func(i int, k txsubmit.Kind) *Summary {
		s := NewSummary()
		var r Report
		r.Add("start_quest", txsubmit.Outcome{Kind: k}, accts[i].Address)
		s.Record(r)
		return s
	}

	left := mk(0, txsubmit.Success)
	left.Merge(mk(1, txsubmit.Failed))
	left.Merge(mk(2, txsubmit.Success))

	right := mk(2, txsubmit.Success)
	inner := mk(1, txsubmit.Failed)
	inner.Merge(mk(0, txsubmit.Success))
	right.Merge(inner)

	assert.Equal(t, left.Counts("start_quest"), right.Counts("start_quest"))
	assert.Equal(t, Counts{Succeeded: 2, Failed: 1}, left.Counts("start_quest"))
	assert.Equal(t, 3, left.Counts("start_quest").Total())
	assert.Equal(t, left.Addresses("start_quest", txsubmit.Success), right.Addresses("start_quest", txsubmit.Success))
	assert.Equal(t, 3, right.Accounts())
	assert.Equal(t, []string{"start_quest"}, right.Actions())
}
