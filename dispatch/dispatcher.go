// Package dispatch spaces and bounds outbound location lookups.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Dispatch defaults. The remote endpoint tolerates very little traffic, so
// the limiter is deliberately conservative.
const (
	// DefaultMaxConcurrent is the cap on dispatched-but-unresolved lookups.
	DefaultMaxConcurrent = 2

	// DefaultMinInterval is the minimum spacing between dispatch starts,
	// measured start to start, not start to completion.
	DefaultMinInterval = 2 * time.Second

	// DefaultTimeout is how long a dispatched lookup may run before it is
	// force-resolved as not-found.
	DefaultTimeout = 10 * time.Second

	// DefaultRecheckCap bounds how long the dispatcher sleeps before
	// re-checking a server-signaled rate-limit window.
	DefaultRecheckCap = time.Minute
)

// Ensure Dispatcher implements both domain interfaces at compile time.
var (
	_ flagup.LocationService = (*Dispatcher)(nil)
	_ flagup.RateLimitSink   = (*Dispatcher)(nil)
)

// Dispatcher wraps a LocationService with concurrency bounding, dispatch
// spacing, server-signaled rate-limit deferral, and a per-lookup timeout.
//
// The queue never rejects: timeouts and inner lookup errors resolve as
// Location{Found: false}, indistinguishable from a genuine empty answer.
// Only context cancellation surfaces as an error.
//
// All state is owned by the Dispatcher instance; nothing is process-global.
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	svc flagup.LocationService
	log zerolog.Logger

	maxConcurrent int64
	minInterval   time.Duration
	timeout       time.Duration
	recheckCap    time.Duration
	now           func() time.Time

	sem     *semaphore.Weighted
	spacing *rate.Limiter
	flight  singleflight.Group

	mu      sync.Mutex
	resetAt time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxConcurrent sets the concurrent dispatch cap.
func WithMaxConcurrent(n int64) Option {
	return func(d *Dispatcher) { d.maxConcurrent = n }
}

// WithMinInterval sets the spacing between dispatch starts.
func WithMinInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.minInterval = interval }
}

// WithTimeout sets the per-lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithRecheckCap sets the maximum sleep between rate-limit window rechecks.
func WithRecheckCap(limit time.Duration) Option {
	return func(d *Dispatcher) { d.recheckCap = limit }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher around svc.
func NewDispatcher(svc flagup.LocationService, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:           svc,
		log:           zerolog.Nop(),
		maxConcurrent: DefaultMaxConcurrent,
		minInterval:   DefaultMinInterval,
		timeout:       DefaultTimeout,
		recheckCap:    DefaultRecheckCap,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.sem = semaphore.NewWeighted(d.maxConcurrent)
	d.spacing = rate.NewLimiter(rate.Every(d.minInterval), 1)

	return d
}

// Lookup resolves a handle through the queue. Concurrent lookups for the
// same handle collapse into a single dispatch and share its result.
func (d *Dispatcher) Lookup(ctx context.Context, handle string) (flagup.Location, error) {
	v, err, shared := d.flight.Do(handle, func() (any, error) {
		return d.dispatch(ctx, handle)
	})
	if err != nil {
		return flagup.Location{}, err
	}
	if shared {
		d.log.Debug().Str("handle", handle).Msg("lookup joined in-flight dispatch")
	}
	loc, _ := v.(flagup.Location)
	return loc, nil
}

// SignalRateLimit records a server-signaled reset time. Overlapping signals
// merge by keeping the later reset so a late-arriving shorter window can
// never shrink an already-longer wait.
func (d *Dispatcher) SignalRateLimit(sig flagup.RateLimitSignal) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sig.ResetAt.After(d.resetAt) {
		d.resetAt = sig.ResetAt
		d.log.Info().
			Time("reset_at", sig.ResetAt).
			Int("remaining", sig.Remaining).
			Int("limit", sig.Limit).
			Msg("rate limit window recorded")
	}
}

// ResetAt returns the current rate-limit reset time (zero when not limited).
func (d *Dispatcher) ResetAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resetAt
}

func (d *Dispatcher) dispatch(ctx context.Context, handle string) (flagup.Location, error) {
	if err := d.awaitRateLimitWindow(ctx); err != nil {
		return flagup.Location{}, err
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return flagup.Location{}, err
	}
	defer d.sem.Release(1)

	if err := d.spacing.Wait(ctx); err != nil {
		return flagup.Location{}, err
	}

	// A signal may have arrived while waiting for a slot.
	if err := d.awaitRateLimitWindow(ctx); err != nil {
		return flagup.Location{}, err
	}

	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		loc flagup.Location
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		loc, err := d.svc.Lookup(lctx, handle)
		ch <- outcome{loc: loc, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			// The queue never rejects: failures resolve as not-found so
			// the handle gets cached and not requeued.
			d.log.Debug().
				Err(out.err).
				Str("handle", handle).
				Str("code", flagup.ErrorCode(out.err)).
				Msg("lookup failed, resolving as not-found")
			return flagup.Location{}, nil
		}
		return out.loc, nil

	case <-lctx.Done():
		if ctx.Err() != nil {
			return flagup.Location{}, ctx.Err()
		}
		// Timeout. The caller stops waiting; the late answer is discarded.
		d.log.Debug().Str("handle", handle).Dur("timeout", d.timeout).Msg("lookup timed out, resolving as not-found")
		return flagup.Location{}, nil
	}
}

// awaitRateLimitWindow blocks while the current time is before the recorded
// reset, sleeping at most recheckCap between checks.
func (d *Dispatcher) awaitRateLimitWindow(ctx context.Context) error {
	for {
		d.mu.Lock()
		resetAt := d.resetAt
		d.mu.Unlock()

		now := d.now()
		if resetAt.IsZero() || !now.Before(resetAt) {
			return nil
		}

		wait := resetAt.Sub(now)
		if wait > d.recheckCap {
			wait = d.recheckCap
		}
		d.log.Debug().Dur("wait", wait).Time("reset_at", resetAt).Msg("rate limited, deferring dispatch")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
