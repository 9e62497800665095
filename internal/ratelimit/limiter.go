package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Well-known keys shared by the chain client and the indexer client.
const (
	KeyRPC     = "rpc"
	KeyIndexer = "indexer"
)

type quota struct {
	calls  int
	window time.Duration
}

// window remembers the completion times of the last calls for one key,
// oldest first. It never holds more than quota.calls entries.
type window struct {
	stamps []time.Time
}

// Limiter caps calls per key to a quota inside any interval of the window
// length (sliding window). State is tracked per key and shared by every caller.
type Limiter struct {
	mu      sync.Mutex
	def     quota
	quotas  map[string]quota
	windows map[string]*window
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Limiter)

// WithQuota overrides the default quota for one key. Non-positive values
// keep the default's calls or window.
func WithQuota(key string, calls int, per time.Duration) Option {
	return func(l *Limiter) {
		if calls <= 0 {
			calls = l.def.calls
		}
		if per <= 0 {
			per = l.def.window
		}
		l.quotas[key] = quota{calls: calls, window: per}
	}
}

// WithClock swaps the time source. Tests pair it with a fake sleeper.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New returns a limiter allowing calls per window for every key not
// configured with WithQuota. Non-positive values fall back to 10 per second.
func New(calls int, per time.Duration, opts ...Option) *Limiter {
	if calls <= 0 {
		calls = 10
	}
	if per <= 0 {
		per = time.Second
	}
	l := &Limiter{
		def:     quota{calls: calls, window: per},
		quotas:  map[string]quota{},
		windows: map[string]*window{},
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Acquire blocks until a slot for key is free in the current window.
// It returns ctx.Err() if the context ends while waiting.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	for {
		wait, ok := l.tryAcquire(key)
		if ok {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) tryAcquire(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.quotas[key]
	if !ok {
		q = l.def
	}
	now := l.now()
	w := l.windows[key]
	if w == nil {
		w = &window{stamps: make([]time.Time, 0, q.calls)}
		l.windows[key] = w
	}
	// drop calls that left the window
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) >= q.window {
		i++
	}
	w.stamps = w.stamps[i:]
	if len(w.stamps) < q.calls {
		w.stamps = append(w.stamps, now)
		return 0, true
	}
	return q.window - now.Sub(w.stamps[0]), false
}

// Available reports how many calls key could make right now without waiting.
func (l *Limiter) Available(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.quotas[key]
	if !ok {
		q = l.def
	}
	w := l.windows[key]
	if w == nil {
		return q.calls
	}
	now := l.now()
	n := 0
	for _, ts := range w.stamps {
		if now.Sub(ts) < q.window {
			n++
		}
	}
	return q.calls - n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
