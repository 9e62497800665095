package fees

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/logger"
)

// ErrGasEstimate marks a failed eth_estimateGas. Callers must not submit.
var ErrGasEstimate = errors.New("gas estimation failed")

// Mode selects the fee model for a transaction.
type Mode int

const (
	// Legacy prices gas with a single gas price.
	Legacy Mode = iota
	// Dynamic uses EIP-1559 base fee plus a priority tip.
	Dynamic
)

func (m Mode) String() string {
	switch m {
	case Legacy:
		return "legacy"
	case Dynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "legacy" or "dynamic" (also "1559", "eip1559").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return Legacy, nil
	case "dynamic", "1559", "eip1559", "eip-1559":
		return Dynamic, nil
	}
	return Legacy, errors.Errorf("unknown fee mode %q", s)
}

// Client is the chain access the estimator needs.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Plan is the fee and gas attachment for one attempt. It is recomputed on
// every attempt and never persisted.
type Plan struct {
	Mode     Mode
	GasLimit uint64
	GasPrice *big.Int // Legacy
	BaseFee  *big.Int // Dynamic
	Tip      *big.Int // Dynamic
	FeeCap   *big.Int // Dynamic
}

// MaxPrice is the highest per-gas price the transaction may pay.
func (p Plan) MaxPrice() *big.Int {
	if p.Mode == Dynamic {
		if p.FeeCap == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(p.FeeCap)
	}
	if p.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.GasPrice)
}

// MaxCostWei is GasLimit × MaxPrice.
func (p Plan) MaxCostWei() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(p.GasLimit), p.MaxPrice())
}

func (p Plan) String() string {
	if p.Mode == Dynamic {
		return fmt.Sprintf("dynamic gas=%d base=%s tip=%s cap=%s gwei", p.GasLimit,
			chain.FormatGwei(p.BaseFee), chain.FormatGwei(p.Tip), chain.FormatGwei(p.FeeCap))
	}
	return fmt.Sprintf("legacy gas=%d price=%s gwei", p.GasLimit, chain.FormatGwei(p.GasPrice))
}

type Config struct {
	// GasMultiplier scales the estimate in Legacy mode; values ≤ 1 leave it unchanged.
	GasMultiplier float64
	// MinTip is the priority fee in Dynamic mode.
	MinTip *big.Int
}

type Estimator struct {
	client Client
	cfg    Config
	lggr   *zap.SugaredLogger
}

func New(client Client, cfg Config, lggr *zap.SugaredLogger) *Estimator {
	if cfg.MinTip == nil {
		cfg.MinTip = new(big.Int)
	}
	return &Estimator{client: client, cfg: cfg, lggr: logger.OrNop(lggr)}
}

// Estimate builds a Plan for msg. pinnedGas > 0 replaces eth_estimateGas for
// call sites that use a fixed limit.
func (e *Estimator) Estimate(ctx context.Context, msg ethereum.CallMsg, pinnedGas uint64, mode Mode) (Plan, error) {
	plan := Plan{Mode: mode}

	switch mode {
	case Legacy:
		price, err := e.legacyPrice(ctx)
		if err != nil {
			return Plan{}, err
		}
		plan.GasPrice = price
		msg.GasPrice = price
	case Dynamic:
		baseFee, _, err := chain.LatestBaseFee(ctx, e.client)
		if err != nil {
			return Plan{}, err
		}
		plan.BaseFee = baseFee
		plan.Tip = new(big.Int).Set(e.cfg.MinTip)
		plan.FeeCap = new(big.Int).Add(baseFee, plan.Tip)
		msg.GasFeeCap = plan.FeeCap
		msg.GasTipCap = plan.Tip
	default:
		return Plan{}, errors.Errorf("unsupported fee mode %s", mode)
	}

	if pinnedGas > 0 {
		plan.GasLimit = pinnedGas
		return plan, nil
	}

	gas, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		reason := chain.RevertReason(err)
		if reason == "" {
			reason = err.Error()
		}
		e.lggr.Debugw("estimateGas failed", "to", msg.To, "reason", reason)
		return Plan{}, fmt.Errorf("%w: %w", ErrGasEstimate, err)
	}
	if mode == Legacy {
		gas = chain.MulFloat(gas, e.cfg.GasMultiplier)
	}
	plan.GasLimit = gas
	return plan, nil
}

// legacyPrice prefers eth_gasPrice and falls back to the head base fee.
func (e *Estimator) legacyPrice(ctx context.Context) (*big.Int, error) {
	price, err := e.client.SuggestGasPrice(ctx)
	if err == nil && price != nil && price.Sign() > 0 {
		return price, nil
	}
	baseFee, _, berr := chain.LatestBaseFee(ctx, e.client)
	if berr != nil {
		if err == nil {
			err = errors.New("zero gas price")
		}
		return nil, errors.Wrapf(err, "gas price (base fee fallback: %v)", berr)
	}
	e.lggr.Debugw("eth_gasPrice unavailable, using base fee", "err", err, "baseFee", baseFee)
	return baseFee, nil
}
