package pricefeed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/logger"
	"github.com/ligun0805/pirate-runner/internal/metrics"
)

// DefaultURL serves {"data":{"priceUsd":"..."}} for ETH.
const DefaultURL = "https://api.coincap.io/v2/assets/ethereum"

// DefaultFallback replaces a fallback price that is not a positive number.
const DefaultFallback = 3000.0

// failedRetry is how long a failed refresh waits before the next attempt.
// It never exceeds maxAge.
const failedRetry = 10 * time.Minute

// Feed returns the ETH/USD price, refreshing it at most once per maxAge.
// When the remote source fails it degrades to the last known price, then to
// the fallback constant. USD never returns an error. A failed refresh is not
// retried until retryAfter has passed, so an outage costs one request per
// interval rather than one per caller.
type Feed struct {
	url        string
	fallback   float64
	maxAge     time.Duration
	retryAfter time.Duration
	http       *http.Client
	lggr       *zap.SugaredLogger
	now        func() time.Time

	mu          sync.RWMutex
	price       float64
	fetchedAt   time.Time
	attemptedAt time.Time
}

func New(url string, fallback float64, maxAge time.Duration, httpClient *http.Client, lggr *zap.SugaredLogger) *Feed {
	if url == "" {
		url = DefaultURL
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	lggr = logger.OrNop(lggr)
	if !validPrice(fallback) {
		lggr.Warnw("invalid fallback price, using default", "fallback", fallback, "default", DefaultFallback)
		fallback = DefaultFallback
	}
	return &Feed{
		url:        url,
		fallback:   fallback,
		maxAge:     maxAge,
		retryAfter: min(failedRetry, maxAge),
		http:       httpClient,
		lggr:       lggr,
		now:        time.Now,
	}
}

// USD returns the cached price or refreshes it.
func (f *Feed) USD(ctx context.Context) float64 {
	p, refresh := f.cached()
	if !refresh {
		return p
	}
	p, err := f.fetch(ctx)
	if err != nil {
		last := f.last()
		if last > 0 {
			f.lggr.Warnw("price feed unavailable, using last known price", "err", err, "price", last)
			return last
		}
		f.lggr.Warnw("price feed unavailable, using fallback price", "err", err, "price", f.fallback)
		return f.fallback
	}
	f.mu.Lock()
	f.price = p
	f.fetchedAt = f.now()
	f.mu.Unlock()
	metrics.SetEthUSD(p)
	f.lggr.Debugw("price refreshed", "price", p)
	return p
}

// cached returns the price to serve and whether the caller should refresh.
// A caller told to refresh owns the attempt; others keep getting the last
// known or fallback price until retryAfter passes.
func (f *Feed) cached() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if f.price > 0 && now.Sub(f.fetchedAt) < f.maxAge {
		return f.price, false
	}
	if !f.attemptedAt.IsZero() && now.Sub(f.attemptedAt) < f.retryAfter {
		if f.price > 0 {
			return f.price, false
		}
		return f.fallback, false
	}
	f.attemptedAt = now
	return 0, true
}

func (f *Feed) last() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

type assetResponse struct {
	Data struct {
		PriceUSD json.RawMessage `json:"priceUsd"`
	} `json:"data"`
}

func (f *Feed) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build price request")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "price request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("price request: status %d", resp.StatusCode)
	}
	var out assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errors.Wrap(err, "decode price")
	}
	// coincap quotes the number as a string; accept a bare number too
	raw := strings.Trim(strings.TrimSpace(string(out.Data.PriceUSD)), `"`)
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse price %q", raw)
	}
	if !validPrice(p) {
		return 0, errors.Errorf("invalid price %v", p)
	}
	return p, nil
}
