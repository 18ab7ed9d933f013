package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/goquery"
)

// Run executes the annotate command: one offline pass over an HTML document.
func (c *AnnotateCmd) Run(deps *Dependencies) error {
	input, err := c.readInput(deps.Stdin)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", err)
		return err
	}

	annotator := goquery.NewAnnotator(deps.Resolver, deps.Cache,
		goquery.WithLogger(deps.Log),
	)

	out, report, err := annotator.Annotate(deps.Ctx, input)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flagup.ErrorMessage(err))
		return err
	}

	if c.Output != "" {
		if err := os.WriteFile(c.Output, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write %q: %w", c.Output, err)
		}
	} else {
		fmt.Fprint(deps.Stdout, out)
	}

	fmt.Fprintf(deps.Stderr, "Annotated %d of %d containers (%d skipped, %d failed)\n",
		report.Annotated, report.Containers, report.Skipped, report.Failed)
	return nil
}

func (c *AnnotateCmd) readInput(stdin io.Reader) (string, error) {
	if c.File == "" || c.File == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", c.File, err)
	}
	return string(data), nil
}

// cacheOnlyResolver serves --offline-cache-only runs: the annotator consults
// the cache first, so everything not cached resolves as not-found without
// touching the network.
type cacheOnlyResolver struct{}

func (cacheOnlyResolver) Lookup(context.Context, string) (flagup.Location, error) {
	return flagup.Location{}, nil
}

// readOnlyCache pairs with cacheOnlyResolver: lookups are served from the
// underlying cache but writes are dropped, so an offline pass cannot record
// its synthetic not-found answers and suppress future online lookups.
type readOnlyCache struct {
	next flagup.LocationCache
}

func (c readOnlyCache) Get(handle string) (flagup.Location, bool) { return c.next.Get(handle) }
func (c readOnlyCache) Put(string, flagup.Location)               {}
func (c readOnlyCache) Flush() error                              { return nil }
func (c readOnlyCache) Close() error                              { return nil }
