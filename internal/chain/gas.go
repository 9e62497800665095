package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// HeaderReader is satisfied by Client.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// LatestBaseFee returns the base fee and number of the head block.
func LatestBaseFee(ctx context.Context, c HeaderReader) (*big.Int, *big.Int, error) {
	h, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "latest header")
	}
	if h.BaseFee == nil {
		return nil, h.Number, errors.New("no baseFee (pre-1559?)")
	}
	return new(big.Int).Set(h.BaseFee), new(big.Int).Set(h.Number), nil
}
