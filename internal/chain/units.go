package chain

import (
	"math/big"
	"strings"
)

var (
	weiPerGwei  = big.NewInt(1_000_000_000)
	weiPerEther = big.NewInt(1_000_000_000_000_000_000)
)

// GweiToWei converts a decimal gwei amount such as "0.01" to wei.
// Fractions below one wei are truncated.
func GweiToWei(g string) (*big.Int, bool) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(g))
	if !ok || r.Sign() < 0 {
		return nil, false
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerGwei))
	return new(big.Int).Quo(r.Num(), r.Denom()), true
}

// WeiToEther returns x in ether as a float, for display and USD math.
func WeiToEther(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(x, weiPerEther).Float64()
	return f
}

// FormatETH renders wei as ether with 6 decimals.
func FormatETH(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return new(big.Rat).SetFrac(x, weiPerEther).FloatString(6)
}

// FormatGwei renders wei as gwei with 4 decimals; L2 prices sit well below 1 gwei.
func FormatGwei(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return new(big.Rat).SetFrac(x, weiPerGwei).FloatString(4)
}

// MulFloat scales x by m, rounding up so gas limits never shrink.
func MulFloat(x uint64, m float64) uint64 {
	if m <= 1 {
		return x
	}
	r := new(big.Rat).SetUint64(x)
	r.Mul(r, new(big.Rat).SetFloat64(m))
	q, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}
