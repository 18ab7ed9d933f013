package goquery

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/emoji"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

// Ensure Annotator implements flagup.Annotator at compile time.
var _ flagup.Annotator = (*Annotator)(nil)

// Annotator rewrites a page snapshot, inserting a flag glyph after each
// username whose account location maps to a known flag.
//
// Location resolution is cache-first; misses go through the resolver (the
// dispatch queue in production). Resolution runs concurrently under an
// errgroup so in-flight work is tracked and bounded by the queue; DOM
// mutation happens on one goroutine afterwards because parsed documents are
// not safe for concurrent writes.
type Annotator struct {
	resolver   flagup.LocationService
	cache      flagup.LocationCache
	log        zerolog.Logger
	retryLimit int

	mu      sync.Mutex
	retries map[string]int
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Annotator) { a.log = log }
}

// WithRetryLimit overrides flagup.RetryLimit for failed containers.
func WithRetryLimit(n int) Option {
	return func(a *Annotator) { a.retryLimit = n }
}

// NewAnnotator creates an Annotator resolving locations through resolver
// and recording results in cache.
func NewAnnotator(resolver flagup.LocationService, cache flagup.LocationCache, opts ...Option) *Annotator {
	a := &Annotator{
		resolver:   resolver,
		cache:      cache,
		log:        zerolog.Nop(),
		retryLimit: flagup.RetryLimit,
		retries:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// work is one container awaiting annotation.
type work struct {
	container *goquery.Selection
	handle    string
}

// Annotate scans the document and returns the annotated HTML.
//
// Annotation is idempotent: containers marked done are untouched regardless
// of cache state, and a glyph already present next to the anchor is never
// duplicated.
func (a *Annotator) Annotate(ctx context.Context, pageHTML string) (string, *flagup.ScanReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", nil, flagup.Errorf(flagup.EINVALID, "parse document: %v", err)
	}

	report := &flagup.ScanReport{}
	var pending []work

	doc.Find(containerSelector).Each(func(_ int, container *goquery.Selection) {
		report.Containers++

		state, _ := container.Attr(flagup.StateAttr)
		switch state {
		case flagup.StateDone, flagup.StateFailedPermanent:
			report.Skipped++
			return
		}

		handle, ok := ExtractHandle(container)
		if !ok {
			report.Skipped++
			return
		}

		if a.exhausted(handle) {
			container.SetAttr(flagup.StateAttr, flagup.StateFailedPermanent)
			report.Failed++
			return
		}

		container.SetAttr(flagup.StateAttr, flagup.StateProcessing)
		pending = append(pending, work{container: container, handle: handle})
	})

	locations, err := a.resolve(ctx, pending)
	if err != nil {
		return "", nil, err
	}

	for _, w := range pending {
		a.apply(w, locations[w.handle], report)
	}

	out, err := doc.Html()
	if err != nil {
		return "", nil, flagup.Errorf(flagup.EINTERNAL, "serialize document: %v", err)
	}
	return out, report, nil
}

// resolve fetches locations for all pending handles, cache first. Lookup
// failures resolve as not-found and are cached so the handle is not
// requeued; only context cancellation aborts the pass.
func (a *Annotator) resolve(ctx context.Context, pending []work) (map[string]flagup.Location, error) {
	locations := make(map[string]flagup.Location, len(pending))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	queued := make(map[string]bool)

	for _, w := range pending {
		if queued[w.handle] {
			continue
		}
		queued[w.handle] = true

		handle := w.handle
		g.Go(func() error {
			loc, ok := a.cache.Get(handle)
			if !ok {
				var err error
				loc, err = a.resolver.Lookup(gctx, handle)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					a.log.Debug().Err(err).Str("handle", handle).Msg("lookup failed, caching as not-found")
					loc = flagup.Location{}
				}
				a.cache.Put(handle, loc)
			}

			mu.Lock()
			locations[handle] = loc
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return locations, nil
}

// apply mutates one container with its resolved location.
func (a *Annotator) apply(w work, loc flagup.Location, report *flagup.ScanReport) {
	glyph, mapped := "", false
	if loc.Found {
		glyph, mapped = emoji.Flag(loc.Text)
	}
	if !mapped {
		a.fail(w, report)
		return
	}

	anchor := findAnchor(w.container, w.handle)
	if anchor == nil {
		a.fail(w, report)
		return
	}

	// A glyph already present as a following sibling means another pass (or
	// a nested container) beat us to it.
	if anchor.NextAllFiltered("span[" + flagup.GlyphAttr + "]").Length() > 0 {
		w.container.SetAttr(flagup.StateAttr, flagup.StateDone)
		report.Skipped++
		return
	}

	insertGlyph(anchor, glyph)
	w.container.SetAttr(flagup.StateAttr, flagup.StateDone)
	report.Annotated++
}

// fail marks the container failed, or permanently failed once the handle's
// retry budget is spent.
func (a *Annotator) fail(w work, report *flagup.ScanReport) {
	report.Failed++

	a.mu.Lock()
	a.retries[w.handle]++
	spent := a.retries[w.handle] >= a.retryLimit
	a.mu.Unlock()

	if spent {
		w.container.SetAttr(flagup.StateAttr, flagup.StateFailedPermanent)
		a.log.Debug().Str("handle", w.handle).Msg("retry budget spent, marking permanent")
		return
	}
	w.container.SetAttr(flagup.StateAttr, flagup.StateFailed)
}

func (a *Annotator) exhausted(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retries[handle] >= a.retryLimit
}

// findAnchor locates the anchor for a handle inside a container, trying
// three strategies of increasing laxity.
func findAnchor(container *goquery.Selection, handle string) *goquery.Selection {
	// Exact profile href.
	if a := container.Find(`a[href="/` + handle + `"]`); a.Length() > 0 {
		return a.First()
	}

	// Any link whose parsed path is the handle (covers absolute links and
	// hrefs carrying query strings or fragments).
	var match *goquery.Selection
	container.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if h, ok := handleFromHref(href); ok && strings.EqualFold(h, handle) {
			match = s
			return false
		}
		return true
	})
	if match != nil {
		return match
	}

	// Visible "@handle" text.
	container.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.Text()), "@"+handle) {
			match = s
			return false
		}
		return true
	})
	return match
}

// insertGlyph places a new glyph span immediately after the anchor.
func insertGlyph(anchor *goquery.Selection, glyph string) {
	node := anchor.Nodes[0]

	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: flagup.GlyphAttr, Val: "true"}},
	}
	span.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: " " + glyph,
	})

	node.Parent.InsertBefore(span, node.NextSibling)
}
