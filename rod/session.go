// Package rod drives a live browser session over the host site using Chrome
// automation. The session doubles as the header source for API lookups: the
// page's own API traffic is sniffed for session headers, so the process
// never needs first-party credentials of its own.
package rod

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/twitter"
	"github.com/ysmood/gson"
)

// Ensure Session implements the page and header-source contracts.
var (
	_ flagup.Page         = (*Session)(nil)
	_ flagup.HeaderSource = (*Session)(nil)
)

// DefaultHeaderGrace is how long Headers waits for sniffed session headers
// before falling back to the static defaults.
const DefaultHeaderGrace = 3 * time.Second

// Scan trigger timing. The page settles for a moment after load and after
// client-side navigation before a scan is worthwhile; mutation bursts are
// debounced so a timeline render produces one trigger, not hundreds.
const (
	loadSettleDelay  = 2 * time.Second
	navigationDelay  = 2 * time.Second
	mutationDebounce = 500 * time.Millisecond
	addressPoll      = 500 * time.Millisecond
)

// apiPathMarker identifies the page's own API calls among its requests.
const apiPathMarker = "/i/api/"

// Session is a live browser session on the host site. It is a single page
// for the process lifetime; this workload never gets near the page volume
// where browser recycling pays off.
//
// Session is safe for concurrent use.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      zerolog.Logger

	headless    bool
	headerGrace time.Duration
	fallback    flagup.HeaderSource

	mu       sync.Mutex
	page     *rod.Page
	sniffed  map[string]string
	openedAt time.Time
	lastURL  string

	ready     chan struct{}
	readyOnce sync.Once

	triggers chan struct{}
	debounce *time.Timer

	watchCtx    context.Context
	watchCancel context.CancelFunc
	closed      atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHeadless controls whether Chrome runs headless. Defaults to true.
func WithHeadless(headless bool) SessionOption {
	return func(s *Session) { s.headless = headless }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithHeaderGrace sets how long Headers waits for sniffed headers before
// falling back. Defaults to DefaultHeaderGrace.
func WithHeaderGrace(d time.Duration) SessionOption {
	return func(s *Session) { s.headerGrace = d }
}

// WithFallbackHeaders sets the header source used when sniffing has not
// produced a session header set in time. Defaults to the public web
// defaults.
func WithFallbackHeaders(src flagup.HeaderSource) SessionOption {
	return func(s *Session) { s.fallback = src }
}

// NewSession launches a Chrome browser and prepares a session. Open must be
// called to navigate somewhere, and Close when the session is no longer
// needed.
func NewSession(opts ...SessionOption) (*Session, error) {
	s := &Session{
		log:         zerolog.Nop(),
		headless:    true,
		headerGrace: DefaultHeaderGrace,
		fallback:    twitter.StaticHeaders(twitter.DefaultHeaders()),
		sniffed:     make(map[string]string),
		ready:       make(chan struct{}),
		triggers:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	lnchr := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Leakless(true).
		Headless(s.headless)

	u, err := lnchr.Launch()
	if err != nil {
		return nil, flagup.Errorf(flagup.EUNAVAILABLE, "launching browser: %v", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return nil, flagup.Errorf(flagup.EUNAVAILABLE, "connecting to browser: %v", err)
	}

	s.browser = browser
	s.launcher = lnchr
	s.watchCtx, s.watchCancel = context.WithCancel(context.Background())
	return s, nil
}

// Open navigates to the URL, starts header sniffing, and begins emitting
// scan triggers: one shortly after load, one per debounced mutation burst,
// and one shortly after each address change.
func (s *Session) Open(ctx context.Context, url string) error {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return flagup.Errorf(flagup.EUNAVAILABLE, "opening page: %v", err)
	}

	s.mu.Lock()
	s.page = page
	s.openedAt = time.Now()
	s.lastURL = url
	s.mu.Unlock()

	// Request events must be flowing before navigation or the initial burst
	// of API calls is lost.
	go page.EachEvent(func(e *proto.NetworkRequestWillBeSent) {
		s.sniff(e)
	})()

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return flagup.Errorf(flagup.EUNAVAILABLE, "navigating to %s: %v", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return flagup.Errorf(flagup.EUNAVAILABLE, "waiting for page load: %v", err)
	}

	if err := s.installObserver(p); err != nil {
		return err
	}

	time.AfterFunc(loadSettleDelay, s.emitTrigger)
	go s.watchAddress()
	return nil
}

// Triggers returns the channel scan triggers are emitted on. The channel is
// never closed; consumers stop via context.
func (s *Session) Triggers() <-chan struct{} {
	return s.triggers
}

// Headers returns the best known header set for API lookups: the fallback
// set overlaid with whatever has been sniffed from the page's own traffic.
// It blocks until an authorization header has been sniffed, the grace
// period from Open expires, or the context is done.
func (s *Session) Headers(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	remaining := s.headerGrace - time.Since(s.openedAt)
	s.mu.Unlock()

	if remaining > 0 {
		grace := time.NewTimer(remaining)
		defer grace.Stop()
		select {
		case <-s.ready:
		case <-grace.C:
			s.log.Debug().Msg("header sniffing grace expired, using fallback headers")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	base, err := s.fallback.Headers(ctx)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(base)+3)
	for k, v := range base {
		headers[k] = v
	}
	s.mu.Lock()
	for k, v := range s.sniffed {
		headers[k] = v
	}
	s.mu.Unlock()
	return headers, nil
}

// HTML returns a snapshot of the page's current markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	page, err := s.currentPage()
	if err != nil {
		return "", err
	}
	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", flagup.Errorf(flagup.EUNAVAILABLE, "reading page markup: %v", err)
	}
	return html, nil
}

// InsertFlag inserts a glyph span after the handle's anchor in the live DOM
// and marks the container done. Returns false when no anchor matched or a
// glyph is already present next to it.
func (s *Session) InsertFlag(ctx context.Context, handle, glyph string) (bool, error) {
	page, err := s.currentPage()
	if err != nil {
		return false, err
	}
	res, err := page.Context(ctx).Eval(insertFlagJS, handle, glyph)
	if err != nil {
		return false, flagup.Errorf(flagup.EUNAVAILABLE, "inserting flag for %s: %v", handle, err)
	}
	return res.Value.Bool(), nil
}

// MarkState sets the processing state attribute on the handle's containers.
func (s *Session) MarkState(ctx context.Context, handle, state string) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	if _, err := page.Context(ctx).Eval(markStateJS, handle, state); err != nil {
		return flagup.Errorf(flagup.EUNAVAILABLE, "marking %s as %s: %v", handle, state, err)
	}
	return nil
}

// Close stops the watchers and shuts the browser down. Safe to call more
// than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.watchCancel()

	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return err
}

func (s *Session) currentPage() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, flagup.Errorf(flagup.EINVALID, "session is closed")
	}
	if s.page == nil {
		return nil, flagup.Errorf(flagup.EINVALID, "session has no open page; call Open first")
	}
	return s.page, nil
}

// sniff harvests session headers from the page's own API requests. Fetch and
// XHR both surface through the same network events, so one listener covers
// everything the page sends.
func (s *Session) sniff(e *proto.NetworkRequestWillBeSent) {
	if !strings.Contains(e.Request.URL, apiPathMarker) {
		return
	}

	var gotAuth bool
	s.mu.Lock()
	for name, value := range e.Request.Headers {
		switch strings.ToLower(name) {
		case "authorization", "x-csrf-token", "x-client-transaction-id":
			s.sniffed[strings.ToLower(name)] = value.Str()
		}
	}
	_, gotAuth = s.sniffed["authorization"]
	s.mu.Unlock()

	if gotAuth {
		s.readyOnce.Do(func() {
			s.log.Debug().Msg("session headers sniffed from page traffic")
			close(s.ready)
		})
	}
}

// installObserver wires a mutation observer in the page to the trigger
// channel. Only batches that add nodes count; attribute churn from our own
// state marking must not retrigger scans.
func (s *Session) installObserver(page *rod.Page) error {
	_, err := page.Expose("flagupMutated", func(_ gson.JSON) (interface{}, error) {
		s.onMutation()
		return nil, nil
	})
	if err != nil {
		return flagup.Errorf(flagup.EUNAVAILABLE, "exposing mutation callback: %v", err)
	}
	if _, err := page.Eval(observeMutationsJS); err != nil {
		return flagup.Errorf(flagup.EUNAVAILABLE, "installing mutation observer: %v", err)
	}
	return nil
}

// onMutation schedules a debounced trigger; each mutation in a burst pushes
// the deadline out again.
func (s *Session) onMutation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(mutationDebounce, s.emitTrigger)
}

// watchAddress polls the page address and emits a trigger shortly after a
// client-side navigation. The site is a single-page application, so real
// load events never fire for in-app navigation.
func (s *Session) watchAddress() {
	ticker := time.NewTicker(addressPoll)
	defer ticker.Stop()

	for {
		select {
		case <-s.watchCtx.Done():
			return
		case <-ticker.C:
		}

		page, err := s.currentPage()
		if err != nil {
			return
		}
		info, err := page.Info()
		if err != nil {
			continue
		}

		s.mu.Lock()
		changed := info.URL != s.lastURL
		s.lastURL = info.URL
		s.mu.Unlock()

		if changed {
			s.log.Debug().Str("url", info.URL).Msg("address changed")
			time.AfterFunc(navigationDelay, s.emitTrigger)
		}
	}
}

// emitTrigger sends a trigger without blocking; a full channel means a scan
// is already pending and the trigger coalesces into it.
func (s *Session) emitTrigger() {
	select {
	case s.triggers <- struct{}{}:
	default:
	}
}
