package dispatch_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/dispatch"
	"github.com/vigneshmr/flagup/mock"
)

func TestDispatcher_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	var active, peak int64
	svc := &mock.LocationService{
		LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return flagup.Location{Text: "France", Found: true}, nil
		},
	}

	d := dispatch.NewDispatcher(svc,
		dispatch.WithMaxConcurrent(2),
		dispatch.WithMinInterval(time.Millisecond),
	)

	var wg sync.WaitGroup
	handles := []string{"a", "b", "c", "d", "e"}
	for _, h := range handles {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			_, err := d.Lookup(context.Background(), h)
			assert.NoError(t, err)
		}(h)
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2), "no more than 2 lookups dispatched at once")
}

func TestDispatcher_DispatchSpacing(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var starts []time.Time
	svc := &mock.LocationService{
		LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return flagup.Location{}, nil
		},
	}

	const interval = 120 * time.Millisecond
	d := dispatch.NewDispatcher(svc, dispatch.WithMinInterval(interval))

	var wg sync.WaitGroup
	for _, h := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			_, _ = d.Lookup(context.Background(), h)
		}(h)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// Allow a little scheduling slack under -race.
		assert.GreaterOrEqual(t, gap, interval-20*time.Millisecond,
			"dispatch starts must be spaced by the minimum interval")
	}
}

func TestDispatcher_RateLimitSignalDefersDispatch(t *testing.T) {
	t.Parallel()

	var calls int64
	svc := &mock.LocationService{
		LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
			atomic.AddInt64(&calls, 1)
			return flagup.Location{Text: "Japan", Found: true}, nil
		},
	}

	d := dispatch.NewDispatcher(svc,
		dispatch.WithMinInterval(time.Millisecond),
		dispatch.WithRecheckCap(20*time.Millisecond),
	)

	resetAt := time.Now().Add(200 * time.Millisecond)
	d.SignalRateLimit(flagup.RateLimitSignal{ResetAt: resetAt})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Lookup(context.Background(), "alice")
	}()

	// Still blocked halfway into the window.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&calls), "no dispatch before the reset time")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lookup did not resume after the rate-limit window")
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.False(t, time.Now().Before(resetAt), "dispatch happened before the window cleared")
}

func TestDispatcher_SignalMergesByMax(t *testing.T) {
	t.Parallel()

	d := dispatch.NewDispatcher(&mock.LocationService{})

	later := time.Now().Add(time.Hour)
	earlier := time.Now().Add(time.Minute)

	d.SignalRateLimit(flagup.RateLimitSignal{ResetAt: later})
	d.SignalRateLimit(flagup.RateLimitSignal{ResetAt: earlier})

	assert.True(t, d.ResetAt().Equal(later), "a shorter late-arriving reset must not shrink the wait")
}

func TestDispatcher_TimeoutResolvesNotFound(t *testing.T) {
	t.Parallel()

	svc := &mock.LocationService{
		LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
			<-ctx.Done() // never answers on its own
			return flagup.Location{}, ctx.Err()
		},
	}

	d := dispatch.NewDispatcher(svc,
		dispatch.WithMinInterval(time.Millisecond),
		dispatch.WithTimeout(80*time.Millisecond),
	)

	start := time.Now()
	loc, err := d.Lookup(context.Background(), "alice")
	elapsed := time.Since(start)

	require.NoError(t, err, "the queue never rejects on timeout")
	assert.False(t, loc.Found)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestDispatcher_InnerErrorResolvesNotFound(t *testing.T) {
	t.Parallel()

	svc := &mock.LocationService{
		LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
			return flagup.Location{}, flagup.Errorf(flagup.EUNAVAILABLE, "connection refused")
		},
	}

	d := dispatch.NewDispatcher(svc, dispatch.WithMinInterval(time.Millisecond))

	loc, err := d.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, loc.Found)
}

func TestDispatcher_ContextCancellationSurfaces(t *testing.T) {
	t.Parallel()

	d := dispatch.NewDispatcher(&mock.LocationService{},
		dispatch.WithMinInterval(time.Millisecond),
		dispatch.WithRecheckCap(10*time.Millisecond),
	)
	d.SignalRateLimit(flagup.RateLimitSignal{ResetAt: time.Now().Add(time.Hour)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Lookup(ctx, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_InFlightDedup(t *testing.T) {
	t.Parallel()

	var calls int64
	release := make(chan struct{})
	svc := &mock.LocationService{
		LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
			atomic.AddInt64(&calls, 1)
			<-release
			return flagup.Location{Text: "France", Found: true}, nil
		},
	}

	d := dispatch.NewDispatcher(svc, dispatch.WithMinInterval(time.Millisecond))

	var wg sync.WaitGroup
	results := make([]flagup.Location, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := d.Lookup(context.Background(), "alice")
			assert.NoError(t, err)
			results[i] = loc
		}(i)
	}

	// Give all four a chance to join the same flight before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "concurrent lookups for one handle share a dispatch")
	for _, loc := range results {
		assert.Equal(t, flagup.Location{Text: "France", Found: true}, loc)
	}
}
