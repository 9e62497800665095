package txsubmit

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/costguard"
	"github.com/ligun0805/pirate-runner/internal/fees"
	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/metrics"
	"github.com/ligun0805/pirate-runner/internal/retry"
)

// Policy is the per-action submission budget.
type Policy struct {
	CeilingUSD float64
	Retry      retry.Policy
	Mode       fees.Mode
	// GasLimit > 0 pins the limit when the request does not.
	GasLimit uint64
}

type FeeEstimator interface {
	Estimate(ctx context.Context, msg ethereum.CallMsg, pinnedGas uint64, mode fees.Mode) (fees.Plan, error)
}

type CostGuard interface {
	Check(ctx context.Context, plan fees.Plan, ceilingUSD float64) (costguard.Estimate, error)
	Actual(ctx context.Context, gasUsed uint64, effectiveGasPrice *big.Int) float64
}

type Sender interface {
	Submit(ctx context.Context, req Request, plan fees.Plan, key *ecdsa.PrivateKey) (Outcome, error)
}

// Executor runs estimate, cost check and submit for one logical request,
// retrying the whole attempt on transient fee-race errors.
type Executor struct {
	fees   FeeEstimator
	guard  CostGuard
	sender Sender
	lggr   *zap.SugaredLogger
}

func NewExecutor(est FeeEstimator, guard CostGuard, sender Sender, lggr *zap.SugaredLogger) *Executor {
	return &Executor{fees: est, guard: guard, sender: sender, lggr: logger.OrNop(lggr)}
}

// Execute never returns an error: every path ends in an Outcome.
func (e *Executor) Execute(ctx context.Context, req Request, key *ecdsa.PrivateKey, p Policy) Outcome {
	lggr := e.lggr.With("request_id", uuid.NewString(), "action", req.Action, "from", req.From.Hex())

	pinned := req.GasLimit
	if pinned == 0 {
		pinned = p.GasLimit
	}

	out, attempts, err := retry.Do(ctx, p.Retry, lggr, func(attempt uint) (Outcome, error) {
		plan, err := e.fees.Estimate(ctx, req.CallMsg(), pinned, p.Mode)
		if err != nil {
			return Outcome{}, err
		}
		est, err := e.guard.Check(ctx, plan, p.CeilingUSD)
		if err != nil {
			return Outcome{}, err
		}
		lggr.Debugw("attempt", "attempt", attempt, "fees", plan.String(), "estimateUSD", est.USD, "ceilingUSD", p.CeilingUSD)
		return e.sender.Submit(ctx, req, plan, key)
	})
	metrics.ObserveAttempts(req.Action, attempts)

	if err != nil {
		out = AbortedWith(abortReason(err))
	} else if out.Mined() {
		out.CostUSD = e.guard.Actual(ctx, out.GasUsed, out.EffectiveGasPrice)
		metrics.ObserveSpend(req.Action, out.CostUSD)
	}
	out.Attempts = attempts
	metrics.ObserveOutcome(req.Action, out.Kind.String())

	switch out.Kind {
	case Success:
		lggr.Infow("transaction succeeded", "hash", out.Hash.Hex(), "gasUsed", out.GasUsed, "costUSD", out.CostUSD, "attempts", attempts)
	case Pending:
		lggr.Warnw("transaction pending", "hash", out.Hash.Hex(), "attempts", attempts)
	default:
		lggr.Warnw("transaction not successful", "outcome", out.Kind, "hash", out.Hash.Hex(), "reason", out.Reason, "attempts", attempts)
	}
	return out
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, costguard.ErrCostExceeded):
		return err.Error()
	case errors.Is(err, fees.ErrGasEstimate):
		if r := chain.RevertReason(err); r != "" {
			return "gas estimation failed: " + r
		}
		return err.Error()
	}
	if cond, ok := retry.Classify(err); ok {
		return fmt.Sprintf("retries exhausted (%s): %v", cond, err)
	}
	return fmt.Sprintf("%s: %v", chain.ClassifyRPCError(err), err)
}
