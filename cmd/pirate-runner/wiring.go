package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ligun0805/pirate-runner/internal/accounts"
	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/config"
	"github.com/ligun0805/pirate-runner/internal/costguard"
	"github.com/ligun0805/pirate-runner/internal/fees"
	"github.com/ligun0805/pirate-runner/internal/indexer"
	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/metrics"
	"github.com/ligun0805/pirate-runner/internal/orchestrator"
	"github.com/ligun0805/pirate-runner/internal/pricefeed"
	"github.com/ligun0805/pirate-runner/internal/ratelimit"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

// errAccountsFailed is returned after the summary is printed when at least
// one account could not be processed.
var errAccountsFailed = errors.New("some accounts failed")

const rpcTimeout = 30 * time.Second

// app holds what every subcommand shares: logger, limiter, price feed,
// policies and the optional metrics listener.
type app struct {
	st       config.Settings
	lggr     *zap.SugaredLogger
	limiter  *ratelimit.Limiter
	feed     *pricefeed.Feed
	policies config.Policies
	mode     fees.Mode
	metrics  *http.Server
}

func newApp(st config.Settings) (*app, error) {
	lggr, err := logger.New(st.LogLevel, st.LogJSON)
	if err != nil {
		return nil, err
	}
	mode, err := fees.ParseMode(st.FeeMode)
	if err != nil {
		return nil, err
	}
	pols, err := config.LoadPolicies(st.PoliciesFile, mode)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(st.RateLimitCalls, st.RateLimitWindow,
		ratelimit.WithQuota(ratelimit.KeyIndexer, st.IndexerRateLimitCalls, st.RateLimitWindow))
	a := &app{
		st:       st,
		lggr:     lggr,
		limiter:  limiter,
		feed:     pricefeed.New(st.PriceURL, st.FallbackETHUSD, st.PriceMaxAge, nil, lggr),
		policies: pols,
		mode:     mode,
	}
	a.serveMetrics()
	return a, nil
}

func (a *app) serveMetrics() {
	if a.st.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Addr: a.st.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.lggr.Errorw("metrics listener stopped", "addr", a.st.MetricsAddr, "err", err)
		}
	}()
	a.lggr.Infow("serving metrics", "addr", a.st.MetricsAddr)
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	_ = a.lggr.Sync()
}

// chainStack is the rate-limited client with the submission pipeline on top.
type chainStack struct {
	client   *chain.LimitedClient
	fees     *fees.Estimator
	executor *txsubmit.Executor
	indexer  *indexer.Client
}

func (a *app) dial(ctx context.Context) (*chainStack, error) {
	ec, err := chain.Dial(a.st.RPCURL, rpcTimeout)
	if err != nil {
		return nil, err
	}
	client := chain.NewLimited(ec, a.limiter)

	chainID := big.NewInt(a.st.ChainID)
	if a.st.ChainID <= 0 {
		if chainID, err = client.ChainID(ctx); err != nil {
			return nil, errors.Wrap(err, "chain id")
		}
	}
	minTip, ok := chain.GweiToWei(a.st.MinTipGwei)
	if !ok {
		return nil, errors.Errorf("bad min_tip_gwei %q", a.st.MinTipGwei)
	}

	est := fees.New(client, fees.Config{GasMultiplier: a.st.GasMultiplier, MinTip: minTip}, a.lggr)
	guard := costguard.New(a.feed, a.lggr)
	sub := txsubmit.NewSubmitter(client, txsubmit.SubmitterConfig{
		ChainID:        chainID,
		ReceiptTimeout: a.st.ReceiptTimeout,
		PollInterval:   a.st.ReceiptPoll,
	}, a.lggr)
	a.lggr.Infow("connected", "rpc", a.st.RPCURL, "chain_id", chainID, "fee_mode", a.mode.String())

	return &chainStack{
		client:   client,
		fees:     est,
		executor: txsubmit.NewExecutor(est, guard, sub, a.lggr),
		indexer:  indexer.New(a.st.GraphURL, nil, a.limiter, a.lggr),
	}, nil
}

// loadAccounts reads the accounts CSV and keeps the selected wallets.
// Rejected rows are logged and skipped.
func (a *app) loadAccounts(wallets string) ([]accounts.Account, error) {
	accts, bad, err := accounts.LoadCSV(a.st.AddressesCSV)
	if err != nil {
		return nil, err
	}
	for _, b := range bad {
		a.lggr.Warnw("skipping account row", "file", a.st.AddressesCSV, "line", b.Line, "reason", b.Reason)
	}
	accts, err = accounts.Select(accts, wallets)
	if err != nil {
		return nil, err
	}
	if len(accts) == 0 {
		return nil, errors.New("no accounts selected")
	}
	return accts, nil
}

// runBatch fans work out over accts and prints the summary.
func (a *app) runBatch(ctx context.Context, accts []accounts.Account, work orchestrator.Work) error {
	sum := orchestrator.New(a.st.Workers, a.lggr).Run(ctx, accts, work)
	printSummary(os.Stdout, sum, term.IsTerminal(int(os.Stdout.Fd())))
	if len(sum.FailedAccounts()) > 0 {
		return errAccountsFailed
	}
	return nil
}

func parseAddress(key, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("%s: not an address: %q", key, s)
	}
	return common.HexToAddress(s), nil
}
