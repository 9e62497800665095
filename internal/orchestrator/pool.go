package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/pirate-runner/internal/accounts"
	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/metrics"
)

// Work processes one account. It must not submit for any other account.
type Work func(ctx context.Context, acct accounts.Account) (Report, error)

// Pool fans Work out over accounts with at most Workers running at once.
type Pool struct {
	workers int
	lggr    *zap.SugaredLogger
}

func New(workers int, lggr *zap.SugaredLogger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, lggr: logger.OrNop(lggr)}
}

// Run processes every account and returns once all are done. A failing or
// panicking account is recorded and never stops its siblings. Accounts not
// yet started when ctx ends are skipped.
func (p *Pool) Run(ctx context.Context, accts []accounts.Account, work Work) *Summary {
	sum := NewSummary()
	runID := uuid.NewString()
	lggr := p.lggr.With("run_id", runID)
	lggr.Infow("batch started", "accounts", len(accts), "workers", p.workers)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, acct := range accts {
		if ctx.Err() != nil {
			lggr.Warnw("batch cancelled, skipping remaining accounts", "err", ctx.Err())
			break
		}
		acct := acct
		g.Go(func() error {
			alggr := lggr.With("wallet", acct.ID, "address", acct.Address.Hex())
			t0 := time.Now()
			rep, err := p.runOne(ctx, acct, work)
			if err != nil {
				alggr.Errorw("account failed", "err", err, "elapsed", time.Since(t0))
				sum.RecordFailure(acct.Address, rep)
				metrics.ObserveAccount("failed")
				return nil
			}
			alggr.Infow("account done", "outcomes", len(rep.Entries), "elapsed", time.Since(t0))
			sum.Record(rep)
			metrics.ObserveAccount("ok")
			return nil
		})
	}
	_ = g.Wait()
	lggr.Infow("batch finished", "accounts", sum.Accounts(), "failed", len(sum.FailedAccounts()), "elapsed", time.Since(start))
	return sum
}

func (p *Pool) runOne(ctx context.Context, acct accounts.Account, work Work) (rep Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.lggr.Debugw("recovered panic", "address", acct.Address.Hex(), "stack", string(debug.Stack()))
		}
	}()
	return work(ctx, acct)
}
