package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/vigneshmr/flagup/annotate"
)

// Run executes the run command: live annotation of the site in a browser.
func (c *RunCmd) Run(deps *Dependencies) error {
	if err := deps.Session.Open(deps.Ctx, c.URL); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", err)
		return err
	}

	runner := annotate.NewRunner(deps.Session, deps.Resolver, deps.Cache,
		annotate.WithLogger(deps.Log),
	)

	fmt.Fprintf(deps.Stdout, "Watching %s (Ctrl-C to stop)\n", c.URL)

	if err := runner.Run(deps.Ctx, deps.Session.Triggers()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
