// Package annotate drives scan passes over a live page. It owns the loop
// shared by trigger-fed live mode: snapshot the page, find handles that need
// work, resolve their locations, and apply the results back to the page.
package annotate

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/emoji"
	"github.com/vigneshmr/flagup/goquery"
	"golang.org/x/sync/errgroup"
)

// Runner runs annotation passes against a live page.
//
// Each pass takes an HTML snapshot, scans it for candidate handles, and
// resolves every candidate as its own errgroup task so in-flight work is
// enumerable and a pass can be awaited as a unit. Page mutations go through
// the flagup.Page interface, which is safe for concurrent use.
type Runner struct {
	page     flagup.Page
	resolver flagup.LocationService
	cache    flagup.LocationCache

	log        zerolog.Logger
	retryLimit int

	mu      sync.Mutex
	retries map[string]int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithRetryLimit overrides flagup.RetryLimit for failed handles.
func WithRetryLimit(n int) Option {
	return func(r *Runner) { r.retryLimit = n }
}

// NewRunner creates a Runner that annotates page, resolving locations
// through resolver and recording results in cache.
func NewRunner(page flagup.Page, resolver flagup.LocationService, cache flagup.LocationCache, opts ...Option) *Runner {
	r := &Runner{
		page:       page,
		resolver:   resolver,
		cache:      cache,
		log:        zerolog.Nop(),
		retryLimit: flagup.RetryLimit,
		retries:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes scan triggers until the context is canceled or the channel is
// closed. Bursts are coalesced: triggers queued while a pass runs collapse
// into a single follow-up pass. Pass failures are logged, not fatal; the
// page degrades to "no flag".
func (r *Runner) Run(ctx context.Context, triggers <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-triggers:
			if !ok {
				return nil
			}
		}

		// Drain anything that piled up behind the trigger we took.
	drain:
		for {
			select {
			case _, ok := <-triggers:
				if !ok {
					return nil
				}
			default:
				break drain
			}
		}

		report, err := r.Pass(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn().Err(err).Msg("scan pass failed")
			continue
		}
		r.log.Debug().
			Int("containers", report.Containers).
			Int("annotated", report.Annotated).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("scan pass complete")
	}
}

// Pass performs one annotation pass over the page's current markup.
func (r *Runner) Pass(ctx context.Context) (*flagup.ScanReport, error) {
	html, err := r.page.HTML(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := goquery.ScanCandidates(html)
	if err != nil {
		return nil, err
	}

	report := &flagup.ScanReport{Containers: len(candidates)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range candidates {
		handle := c.Handle
		g.Go(func() error {
			outcome, err := r.annotate(gctx, handle)
			if err != nil {
				return err
			}
			mu.Lock()
			switch outcome {
			case outcomeAnnotated:
				report.Annotated++
			case outcomeSkipped:
				report.Skipped++
			case outcomeFailed:
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

type outcome int

const (
	outcomeAnnotated outcome = iota
	outcomeSkipped
	outcomeFailed
)

// annotate resolves one handle and applies the result to the page. Only
// context cancellation is returned as an error; everything else resolves to
// a page state.
func (r *Runner) annotate(ctx context.Context, handle string) (outcome, error) {
	if r.exhausted(handle) {
		if err := r.page.MarkState(ctx, handle, flagup.StateFailedPermanent); err != nil {
			return 0, err
		}
		return outcomeFailed, nil
	}

	if err := r.page.MarkState(ctx, handle, flagup.StateProcessing); err != nil {
		return 0, err
	}

	loc, ok := r.cache.Get(handle)
	if !ok {
		var err error
		loc, err = r.resolver.Lookup(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			r.log.Debug().Err(err).Str("handle", handle).Msg("lookup failed, caching as not-found")
			loc = flagup.Location{}
		}
		r.cache.Put(handle, loc)
	}

	glyph, mapped := "", false
	if loc.Found {
		glyph, mapped = emoji.Flag(loc.Text)
	}
	if !mapped {
		return r.fail(ctx, handle)
	}

	inserted, err := r.page.InsertFlag(ctx, handle, glyph)
	if err != nil {
		return 0, err
	}
	if !inserted {
		return r.fail(ctx, handle)
	}
	return outcomeAnnotated, nil
}

// fail records a failed attempt and marks the handle's container, moving to
// the permanent state once the retry budget is spent.
func (r *Runner) fail(ctx context.Context, handle string) (outcome, error) {
	r.mu.Lock()
	r.retries[handle]++
	spent := r.retries[handle] >= r.retryLimit
	r.mu.Unlock()

	state := flagup.StateFailed
	if spent {
		state = flagup.StateFailedPermanent
		r.log.Debug().Str("handle", handle).Msg("retry budget spent, marking permanent")
	}
	if err := r.page.MarkState(ctx, handle, state); err != nil {
		return 0, err
	}
	return outcomeFailed, nil
}

func (r *Runner) exhausted(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries[handle] >= r.retryLimit
}
