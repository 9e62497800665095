package costguard

import (
	"context"
	"math"
	"math/big"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/fees"
	"github.com/ligun0805/pirate-runner/internal/logger"
)

// ErrCostExceeded is returned before signing when the estimated USD cost is
// above the ceiling. Nothing has been sent when it is returned.
var ErrCostExceeded = errors.New("estimated cost exceeds ceiling")

// PriceSource returns the current ETH/USD price. It must not block on outages.
type PriceSource interface {
	USD(ctx context.Context) float64
}

// Estimate is the pre-submission cost of a plan.
type Estimate struct {
	CostWei    *big.Int
	USD        float64
	CeilingUSD float64
}

type Guard struct {
	prices PriceSource
	lggr   *zap.SugaredLogger
}

func New(prices PriceSource, lggr *zap.SugaredLogger) *Guard {
	return &Guard{prices: prices, lggr: logger.OrNop(lggr)}
}

// Check prices the worst case of plan in USD. A ceiling ≤ 0 disables the check.
// An estimate that is not a finite number counts as over the ceiling.
func (g *Guard) Check(ctx context.Context, plan fees.Plan, ceilingUSD float64) (Estimate, error) {
	cost := plan.MaxCostWei()
	est := Estimate{
		CostWei:    cost,
		USD:        WeiToUSD(cost, g.prices.USD(ctx)),
		CeilingUSD: ceilingUSD,
	}
	if ceilingUSD > 0 && (math.IsNaN(est.USD) || math.IsInf(est.USD, 0) || est.USD > ceilingUSD) {
		g.lggr.Infow("cost ceiling exceeded", "estimateUSD", est.USD, "ceilingUSD", ceilingUSD, "plan", plan.String())
		return est, errors.Wrapf(ErrCostExceeded, "$%.4f > $%.4f", est.USD, ceilingUSD)
	}
	return est, nil
}

// Actual converts the gas a mined transaction used into USD. Reporting only.
func (g *Guard) Actual(ctx context.Context, gasUsed uint64, effectiveGasPrice *big.Int) float64 {
	if effectiveGasPrice == nil {
		return 0
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), effectiveGasPrice)
	return WeiToUSD(wei, g.prices.USD(ctx))
}

// WeiToUSD converts wei at priceUSD per ether.
func WeiToUSD(wei *big.Int, priceUSD float64) float64 {
	return chain.WeiToEther(wei) * priceUSD
}
