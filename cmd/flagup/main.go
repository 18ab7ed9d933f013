package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/fs"
	"github.com/vigneshmr/flagup/rod"
	"github.com/vigneshmr/flagup/sqlite"
	"github.com/vigneshmr/flagup/twitter"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Input stream for the annotate command. Defaults to os.Stdin.
	Stdin io.Reader

	// Persistent location cache, opened by Run.
	Cache flagup.LocationCache

	// Live browser session, opened by Run for the run command.
	Session *rod.Session
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Stdin: os.Stdin}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.Session != nil {
		if err := m.Session.Close(); err != nil {
			return err
		}
	}
	if m.Cache != nil {
		return m.Cache.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  m.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("flagup"),
		kong.Description("Annotates usernames on the site with flags for their account locations."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'flagup --help' to see available commands")
	}

	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// The command word comes from the parsed context rather than args[0]:
	// kong accepts top-level flags before the command.
	cmd, _, _ := strings.Cut(kongCtx.Command(), " ")

	deps.Log = newLogger(stderr, cli.Verbose)

	// Open the cache
	cachePath := cli.CachePath
	if cachePath == "" {
		cachePath = defaultCachePath(cli.CacheKind)
	}
	switch cli.CacheKind {
	case "sqlite":
		cache, err := sqlite.Open(cachePath, sqlite.WithLogger(deps.Log))
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Set FLAGUP_CACHE or --cache-path to use a different cache path")
			return fmt.Errorf("failed to open cache at %q: %w", cachePath, err)
		}
		m.Cache = cache
	default:
		m.Cache = fs.Open(cachePath, fs.WithLogger(deps.Log))
	}
	defer m.Close()
	deps.Cache = m.Cache

	// Wire command-specific dependencies
	switch cmd {
	case "run":
		session, err := rod.NewSession(
			rod.WithHeadless(cli.Run.Headless),
			rod.WithLogger(deps.Log),
		)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed")
			return fmt.Errorf("failed to start browser: %w", err)
		}
		m.Session = session
		deps.Session = session
		deps.Resolver = newResolver(session, deps.Log)

	case "lookup":
		deps.Resolver = newResolver(twitter.SessionHeaders(cli.Lookup.Bearer, cli.Lookup.Csrf), deps.Log)

	case "annotate":
		if cli.Annotate.OfflineCacheOnly {
			deps.Resolver = cacheOnlyResolver{}
			deps.Cache = readOnlyCache{next: m.Cache}
		} else {
			deps.Resolver = newResolver(twitter.SessionHeaders(cli.Annotate.Bearer, cli.Annotate.Csrf), deps.Log)
		}
	}

	return kongCtx.Run(deps)
}

// newLogger builds the CLI logger. Logs go to stderr so annotated HTML on
// stdout stays clean.
func newLogger(stderr io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func defaultCachePath(kind string) string {
	name := "cache.json"
	if kind == "sqlite" {
		name = "cache.db"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "flagup-" + name
	}
	dir := filepath.Join(home, ".flagup")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, name)
}
