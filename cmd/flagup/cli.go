package main

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/dispatch"
	"github.com/vigneshmr/flagup/rod"
	"github.com/vigneshmr/flagup/twitter"
	flagzerolog "github.com/vigneshmr/flagup/zerolog"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Log      zerolog.Logger
	Cache    flagup.LocationCache
	Resolver flagup.LocationService
	Session  *rod.Session
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose   bool   `short:"v" help:"Enable debug logging"`
	CachePath string `name:"cache-path" env:"FLAGUP_CACHE" help:"Location cache path (defaults to ~/.flagup)"`
	CacheKind string `name:"cache" enum:"json,sqlite" default:"json" help:"Cache backend: json or sqlite"`

	Run      RunCmd      `cmd:"" help:"Open the site in a browser and annotate it live"`
	Annotate AnnotateCmd `cmd:"" help:"Annotate an HTML document offline"`
	Lookup   LookupCmd   `cmd:"" help:"Look up one account's location"`
	Cache    CacheCmd    `cmd:"" help:"Inspect or reset the persistent cache"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	URL      string `default:"https://x.com/home" help:"Page to open"`
	Headless bool   `default:"true" negatable:"" help:"Run the browser headless"`
}

// AnnotateCmd is the "annotate" subcommand.
type AnnotateCmd struct {
	File             string `arg:"" optional:"" help:"HTML file to annotate ('-' or absent reads stdin)"`
	Output           string `short:"o" help:"Write annotated HTML to this file instead of stdout"`
	Bearer           string `env:"FLAGUP_BEARER" help:"Bearer token for API lookups"`
	Csrf             string `env:"FLAGUP_CSRF" help:"CSRF token for API lookups"`
	OfflineCacheOnly bool   `name:"offline-cache-only" help:"Resolve from the cache only, no network"`
}

// LookupCmd is the "lookup" subcommand.
type LookupCmd struct {
	Handle string `arg:"" help:"Username, without the @"`
	Bearer string `env:"FLAGUP_BEARER" help:"Bearer token for API lookups"`
	Csrf   string `env:"FLAGUP_CSRF" help:"CSRF token for API lookups"`
}

// CacheCmd is the "cache" subcommand group.
type CacheCmd struct {
	List  CacheListCmd  `cmd:"" help:"List cached entries"`
	Clear CacheClearCmd `cmd:"" help:"Drop all cached entries"`
}

// newResolver assembles the lookup pipeline: API client inside the dispatch
// queue, with lookup logging on the outside.
func newResolver(src flagup.HeaderSource, log zerolog.Logger) flagup.LocationService {
	relay := &rateLimitRelay{}
	client := twitter.NewClient(src,
		twitter.WithRateLimitSink(relay),
		twitter.WithLogger(log),
	)
	d := dispatch.NewDispatcher(client, dispatch.WithLogger(log))
	relay.set(d)
	return flagzerolog.NewLoggingLocationService(d, log)
}

// rateLimitRelay forwards rate-limit signals to a sink wired after the
// client is built. The client needs a sink at construction and the
// dispatcher needs the client, so one of the two has to bind late.
type rateLimitRelay struct {
	mu   sync.Mutex
	sink flagup.RateLimitSink
}

func (r *rateLimitRelay) set(sink flagup.RateLimitSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *rateLimitRelay) SignalRateLimit(sig flagup.RateLimitSignal) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink.SignalRateLimit(sig)
	}
}
