package quest

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ligun0805/pirate-runner/internal/accounts"
	"github.com/ligun0805/pirate-runner/internal/game"
	"github.com/ligun0805/pirate-runner/internal/indexer"
	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/orchestrator"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

const (
	TopicUnknownQuest = "unknown quest: "
	TopicLowEnergy    = "low energy: "
)

type Executor interface {
	Execute(ctx context.Context, req txsubmit.Request, key *ecdsa.PrivateKey, p txsubmit.Policy) txsubmit.Outcome
}

type PirateSource interface {
	Pirates(ctx context.Context, owner string) ([]indexer.Pirate, error)
}

type RunnerConfig struct {
	Contract *Contract
	Pirates  PirateSource
	Executor Executor
	Catalog  *Catalog
	Policy   txsubmit.Policy
	Spacing  time.Duration
}

// Runner plays a list of quest commands with every pirate of an account.
type Runner struct {
	cfg      RunnerConfig
	commands []Command
	lggr     *zap.SugaredLogger
}

func NewRunner(cfg RunnerConfig, commands []Command, lggr *zap.SugaredLogger) *Runner {
	return &Runner{cfg: cfg, commands: commands, lggr: logger.OrNop(lggr)}
}

// Run works through the commands in order for each pirate. A command stops
// at the first run that does not succeed, or once energy falls below its
// threshold; the next command still gets its turn.
func (r *Runner) Run(ctx context.Context, acct accounts.Account) (orchestrator.Report, error) {
	var rep orchestrator.Report
	lggr := r.lggr.With("wallet", acct.ID, "address", acct.Address.Hex())
	pace := rate.NewLimiter(rate.Inf, 1)
	if r.cfg.Spacing > 0 {
		pace = rate.NewLimiter(rate.Every(r.cfg.Spacing), 1)
	}

	ps, err := r.cfg.Pirates.Pirates(ctx, acct.Address.Hex())
	if err != nil {
		return rep, errors.Wrap(err, "list pirates")
	}
	for _, p := range ps {
		tok, err := game.ParseToken(p.ID)
		if err != nil {
			lggr.Warnw("skipping pirate with unreadable id", "pirate", p.Name, "err", err)
			continue
		}
		plggr := lggr.With("pirate", p.Name, "tokenId", tok.ID)
		for _, cmd := range r.commands {
			q, ok := r.cfg.Catalog.Lookup(cmd.Name)
			if !ok {
				plggr.Warnw("unknown quest", "quest", cmd.Name)
				rep.Note(TopicUnknownQuest+cmd.Name, acct.Address)
				continue
			}
			if err := r.play(ctx, plggr, pace, acct, tok, q, cmd, &rep); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

func (r *Runner) play(ctx context.Context, lggr *zap.SugaredLogger, pace *rate.Limiter, acct accounts.Account, tok game.Token, q Quest, cmd Command, rep *orchestrator.Report) error {
	for i := 0; i < cmd.Times; i++ {
		energy, err := r.cfg.Contract.Energy(ctx, tok.Entity())
		if err != nil {
			return errors.Wrap(err, "read energy")
		}
		if energy < cmd.EnergyThreshold {
			lggr.Infow("energy below threshold", "quest", q.Name, "energy", energy, "threshold", cmd.EnergyThreshold, "runs", i)
			rep.Note(TopicLowEnergy+q.Name, acct.Address)
			return nil
		}
		req, err := r.cfg.Contract.StartQuest(acct.Address, q.ID, q.For(tok))
		if err != nil {
			return err
		}
		var out txsubmit.Outcome
		if err := pace.Wait(ctx); err != nil {
			out = txsubmit.AbortedWith("cancelled: " + err.Error())
		} else {
			out = r.cfg.Executor.Execute(ctx, req, acct.Key, r.cfg.Policy)
		}
		rep.Add(ActionStart, out, acct.Address)
		if out.Kind != txsubmit.Success {
			lggr.Warnw("quest not started, moving on", "quest", q.Name, "outcome", out.String())
			return nil
		}
	}
	return nil
}
