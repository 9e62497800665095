package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireUnderQuotaDoesNotBlock(t *testing.T) {
	l := New(5, time.Hour)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background(), KeyRPC))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 0, l.Available(KeyRPC))
	assert.Equal(t, 5, l.Available(KeyIndexer), "keys are independent")
}

func TestQuotaPlusOneBlocksUntilWindowAdvances(t *testing.T) {
	const quota = 10
	const win = 300 * time.Millisecond
	l := New(quota, win)

	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var done []time.Duration
	for i := 0; i < quota+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Acquire(context.Background(), KeyRPC))
			mu.Lock()
			done = append(done, time.Since(start))
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, done, quota+1)
	var late int
	for _, d := range done {
		if d >= win {
			late++
		}
	}
	assert.Equal(t, 1, late, "exactly one caller waits for the window")
}

func TestPerKeyQuotaOverride(t *testing.T) {
	now := time.Unix(0, 0)
	var slept []time.Duration
	l := New(10, time.Second,
		WithQuota(KeyIndexer, 2, time.Second),
		WithClock(func() time.Time { return now }, func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		}),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background(), KeyIndexer))
	}
	require.Len(t, slept, 1)
	assert.Equal(t, time.Second, slept[0])
	assert.Equal(t, 10, l.Available(KeyRPC))
}

func TestNonPositiveQuotaUsesDefault(t *testing.T) {
	tests := []struct {
		name  string
		calls int
		per   time.Duration
	}{
		{"zero calls", 0, time.Second},
		{"negative calls", -3, time.Second},
		{"zero window", 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(3, time.Second, WithQuota(KeyIndexer, tt.calls, tt.per))
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			for i := 0; i < 3; i++ {
				require.NoError(t, l.Acquire(ctx, KeyIndexer))
			}
			assert.Equal(t, 0, l.Available(KeyIndexer))
		})
	}
}

func TestSlidingWindowNeverExceedsQuota(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(3, time.Second, WithClock(func() time.Time { return now }, func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}))

	var stamps []time.Time
	for i := 0; i < 12; i++ {
		require.NoError(t, l.Acquire(context.Background(), KeyRPC))
		stamps = append(stamps, now)
		now = now.Add(150 * time.Millisecond)
	}
	for i := range stamps {
		n := 0
		for j := i; j < len(stamps) && stamps[j].Sub(stamps[i]) < time.Second; j++ {
			n++
		}
		assert.LessOrEqual(t, n, 3, "window starting at call %d", i)
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	l := New(1, time.Hour)
	require.NoError(t, l.Acquire(context.Background(), KeyRPC))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, KeyRPC)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
