package chain

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/ligun0805/pirate-runner/internal/ratelimit"
)

// Client is the slice of ethclient.Client the runner depends on.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to rpcURL with keep-alives and a per-request timeout.
func Dial(rpcURL string, timeout time.Duration) (*ethclient.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	rpcClient, err := rpc.DialHTTPWithClient(rpcURL, httpClient)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", rpcURL)
	}
	return ethclient.NewClient(rpcClient), nil
}

// LimitedClient takes a rate-limiter slot before every RPC.
type LimitedClient struct {
	inner   Client
	limiter *ratelimit.Limiter
	key     string
}

var _ Client = (*LimitedClient)(nil)

// NewLimited wraps c so every call acquires ratelimit.KeyRPC on l.
func NewLimited(c Client, l *ratelimit.Limiter) *LimitedClient {
	return &LimitedClient{inner: c, limiter: l, key: ratelimit.KeyRPC}
}

func (c *LimitedClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Acquire(ctx, c.key)
}

func (c *LimitedClient) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.ChainID(ctx)
}

func (c *LimitedClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.HeaderByNumber(ctx, number)
}

func (c *LimitedClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.SuggestGasPrice(ctx)
}

func (c *LimitedClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.inner.EstimateGas(ctx, msg)
}

func (c *LimitedClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.inner.PendingNonceAt(ctx, account)
}

func (c *LimitedClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.inner.SendTransaction(ctx, tx)
}

func (c *LimitedClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.TransactionReceipt(ctx, txHash)
}

func (c *LimitedClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.CallContract(ctx, msg, blockNumber)
}
