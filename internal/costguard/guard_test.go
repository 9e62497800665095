package costguard

import (
	"context"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ligun0805/pirate-runner/internal/fees"
	"github.com/ligun0805/pirate-runner/internal/logger"
)

type fixedPrice float64

func (p fixedPrice) USD(context.Context) float64 { return float64(p) }

// planFor returns a legacy plan of gasLimit at a price that costs usd at $2000/ETH.
func planFor(usd float64, gasLimit uint64) fees.Plan {
	wei := new(big.Float).Mul(big.NewFloat(usd/2000), big.NewFloat(1e18))
	total, _ := wei.Int(nil)
	price := new(big.Int).Div(total, new(big.Int).SetUint64(gasLimit))
	return fees.Plan{Mode: fees.Legacy, GasLimit: gasLimit, GasPrice: price}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		usd      float64
		ceiling  float64
		exceeded bool
	}{
		{"under ceiling", 0.02, 0.05, false},
		{"over ceiling", 0.08, 0.05, true},
		{"disabled", 5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
			g := New(fixedPrice(2000), lggr)
			est, err := g.Check(context.Background(), planFor(tt.usd, 1_000_000), tt.ceiling)
			assert.InDelta(t, tt.usd, est.USD, 1e-6)
			assert.Equal(t, tt.ceiling, est.CeilingUSD)
			if tt.exceeded {
				require.ErrorIs(t, err, ErrCostExceeded)
				assert.Equal(t, 1, logs.FilterMessage("cost ceiling exceeded").Len())
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCheckRejectsNonFinitePrice(t *testing.T) {
	// 1,000,000 gas at 1000 gwei is 1 ETH
	plan := fees.Plan{Mode: fees.Legacy, GasLimit: 1_000_000, GasPrice: big.NewInt(1_000_000_000_000)}
	for _, price := range []float64{math.NaN(), math.Inf(1)} {
		g := New(fixedPrice(price), nil)
		_, err := g.Check(context.Background(), plan, 0.05)
		require.ErrorIs(t, err, ErrCostExceeded, "price %v", price)
	}
}

func TestCheckUsesFeeCapForDynamicPlans(t *testing.T) {
	g := New(fixedPrice(1000), nil)
	plan := fees.Plan{
		Mode:     fees.Dynamic,
		GasLimit: 100_000,
		BaseFee:  big.NewInt(100_000_000),
		Tip:      big.NewInt(0),
		FeeCap:   big.NewInt(500_000_000),
	}
	est, err := g.Check(context.Background(), plan, 1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50_000_000_000_000), est.CostWei)
	assert.InDelta(t, 0.05, est.USD, 1e-9)
}

func TestActualUsesGasUsed(t *testing.T) {
	g := New(fixedPrice(2000), nil)
	// 50k gas at 0.1 gwei = 5e12 wei = 0.000005 ETH = $0.01
	assert.InDelta(t, 0.01, g.Actual(context.Background(), 50_000, big.NewInt(100_000_000)), 1e-9)
	assert.Zero(t, g.Actual(context.Background(), 50_000, nil))
}
