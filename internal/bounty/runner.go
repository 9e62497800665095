package bounty

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
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

// maxLevel pirates can be held back from bounties with Options.SkipMaxLevel.
const maxLevel = 30

// Note topics.
const (
	TopicAllBusy     = "all pirates on active bounties"
	TopicNoPirates   = "no pirates"
	topicPending     = "pending: "
	topicNoBounty    = "no bounty for party size: "
	topicUnavailable = "unavailable: "
)

func PendingTopic(name string) string { return topicPending + name }

type Executor interface {
	Execute(ctx context.Context, req txsubmit.Request, key *ecdsa.PrivateKey, p txsubmit.Policy) txsubmit.Outcome
}

type PirateSource interface {
	Pirates(ctx context.Context, owner string) ([]indexer.Pirate, error)
}

type Options struct {
	End          bool
	Start        bool
	SkipMaxLevel bool
	// Fallback groups, tried in order for pirates with no assignment.
	Fallback []Mapping
}

type RunnerConfig struct {
	Contract    *Contract
	Pirates     PirateSource
	Executor    Executor
	Catalog     *Catalog
	Mappings    *Mappings
	Assignments *Assignments
	GenesisNFT  common.Address
	StartPolicy txsubmit.Policy
	EndPolicy   txsubmit.Policy
	// Spacing is the minimum gap between two submissions of one account.
	Spacing time.Duration
}

// Runner carries out one bounty round for an account.
type Runner struct {
	cfg  RunnerConfig
	opts Options
	lggr *zap.SugaredLogger
}

func NewRunner(cfg RunnerConfig, opts Options, lggr *zap.SugaredLogger) *Runner {
	return &Runner{cfg: cfg, opts: opts, lggr: logger.OrNop(lggr)}
}

// account is the per-Run state. Submissions are sequential and paced.
type account struct {
	*Runner
	acct accounts.Account
	lggr *zap.SugaredLogger
	pace *rate.Limiter
	rep  orchestrator.Report
}

// Run ends finished bounties and starts new ones for acct. An error means the
// account could not be processed further; the returned report still holds
// every outcome produced before it.
func (r *Runner) Run(ctx context.Context, acct accounts.Account) (orchestrator.Report, error) {
	a := &account{
		Runner: r,
		acct:   acct,
		lggr:   r.lggr.With("wallet", acct.ID, "address", acct.Address.Hex()),
		pace:   rate.NewLimiter(rate.Inf, 1),
	}
	if r.cfg.Spacing > 0 {
		a.pace = rate.NewLimiter(rate.Every(r.cfg.Spacing), 1)
	}
	err := a.run(ctx)
	return a.rep, err
}

func (a *account) run(ctx context.Context) error {
	addr := a.acct.Address
	active, err := a.cfg.Contract.ActiveBountyIDs(ctx, addr)
	if err != nil {
		return errors.Wrap(err, "active bounties")
	}
	busy := len(active)
	a.lggr.Infow("active bounties", "count", busy)

	if a.opts.End {
		for _, id := range active {
			req, err := a.cfg.Contract.EndBounty(addr, id)
			if err != nil {
				return err
			}
			if a.submit(ctx, req, a.cfg.EndPolicy).Kind == txsubmit.Success {
				busy--
			}
		}
	}
	if !a.opts.Start {
		return nil
	}

	pirates, err := a.pirates(ctx)
	if err != nil {
		return err
	}
	if len(pirates) == 0 {
		a.rep.Note(TopicNoPirates, addr)
		return nil
	}
	if busy == len(pirates) {
		a.lggr.Infow("all pirates on active bounties", "count", busy)
		a.rep.Note(TopicAllBusy, addr)
		return nil
	}

	parties, unallocated := Plan(pirates, a.cfg.GenesisNFT, a.cfg.Mappings, a.cfg.Assignments)
	fallbacks := append([]Mapping(nil), a.opts.Fallback...)

	for _, p := range parties {
		res, err := a.start(ctx, p.Mapping, p.Entities)
		if err != nil {
			return err
		}
		if res == started {
			fallbacks = without(fallbacks, p.Mapping)
		}
	}

	for _, entity := range unallocated {
		if len(fallbacks) == 0 {
			break
		}
		var drop []Mapping
		for _, fb := range fallbacks {
			res, err := a.start(ctx, fb, []*big.Int{entity})
			if err != nil {
				return err
			}
			if res != failed {
				drop = append(drop, fb)
			}
			if res == started {
				break
			}
		}
		for _, d := range drop {
			fallbacks = without(fallbacks, d)
		}
	}
	if n := len(unallocated); n > 0 && len(a.opts.Fallback) == 0 {
		a.lggr.Infow("pirates without a bounty assignment", "count", n)
	}
	return nil
}

func (a *account) pirates(ctx context.Context) ([]game.Token, error) {
	ps, err := a.cfg.Pirates.Pirates(ctx, a.acct.Address.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "list pirates")
	}
	out := make([]game.Token, 0, len(ps))
	for _, p := range ps {
		if a.opts.SkipMaxLevel && p.Level == maxLevel {
			a.lggr.Infow("skipping max level pirate", "pirate", p.Name)
			continue
		}
		tok, err := game.ParseToken(p.ID)
		if err != nil {
			a.lggr.Warnw("skipping pirate with unreadable id", "pirate", p.Name, "err", err)
			continue
		}
		out = append(out, tok)
	}
	return out, nil
}

type startResult int

const (
	started startResult = iota
	skipped
	failed
)

// start sends entities on the bounty of group m that fits their number. The
// group is skipped without submitting when it has a bounty pending, is not
// available, or has no bounty for that many pirates.
func (a *account) start(ctx context.Context, m Mapping, entities []*big.Int) (startResult, error) {
	addr := a.acct.Address
	lggr := a.lggr.With("bounty", m.Name, "pirates", len(entities))

	id, ok := a.cfg.Catalog.Select(m.GroupID, len(entities))
	if !ok {
		lggr.Warnw("no bounty in group fits the party size")
		a.rep.Note(topicNoBounty+m.Name, addr)
		return skipped, nil
	}
	pending, err := a.cfg.Contract.HasPendingBounty(ctx, addr, m.GroupID)
	if err != nil {
		lggr.Warnw("pending bounty check failed, attempting start", "err", err)
	}
	if pending {
		lggr.Infow("bounty still pending")
		a.rep.Note(PendingTopic(m.Name), addr)
		return skipped, nil
	}
	avail, err := a.cfg.Contract.IsBountyAvailable(ctx, addr, id)
	if err == nil && !avail {
		lggr.Infow("bounty not available", "bountyId", id)
		a.rep.Note(topicUnavailable+m.Name, addr)
		return skipped, nil
	}

	req, err := a.cfg.Contract.StartBounty(addr, id, entities)
	if err != nil {
		return failed, err
	}
	lggr.Debugw("starting bounty", "bountyId", id, "entities", fmt.Sprint(entities))
	if a.submit(ctx, req, a.cfg.StartPolicy).Kind != txsubmit.Success {
		return failed, nil
	}
	return started, nil
}

func (a *account) submit(ctx context.Context, req txsubmit.Request, p txsubmit.Policy) txsubmit.Outcome {
	var out txsubmit.Outcome
	if err := a.pace.Wait(ctx); err != nil {
		out = txsubmit.AbortedWith("cancelled: " + err.Error())
	} else {
		out = annotate(a.cfg.Executor.Execute(ctx, req, a.acct.Key, p))
	}
	a.rep.Add(req.Action, out, a.acct.Address)
	return out
}

func without(ms []Mapping, m Mapping) []Mapping {
	out := ms[:0:0]
	for _, x := range ms {
		if x.GroupID.Cmp(m.GroupID) != 0 {
			out = append(out, x)
		}
	}
	return out
}
