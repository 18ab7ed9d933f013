package main

import (
	"fmt"

	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/emoji"
)

// Run executes the lookup command.
func (c *LookupCmd) Run(deps *Dependencies) error {
	if !flagup.ValidHandle(c.Handle) {
		err := flagup.Errorf(flagup.EINVALID, "%q is not a valid handle", c.Handle)
		fmt.Fprintf(deps.Stderr, "error: %s\n", flagup.ErrorMessage(err))
		return err
	}

	if loc, ok := deps.Cache.Get(c.Handle); ok {
		printLocation(deps, c.Handle, loc, true)
		return nil
	}

	loc, err := deps.Resolver.Lookup(deps.Ctx, c.Handle)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flagup.ErrorMessage(err))
		return err
	}
	deps.Cache.Put(c.Handle, loc)

	printLocation(deps, c.Handle, loc, false)
	return nil
}

func printLocation(deps *Dependencies, handle string, loc flagup.Location, cached bool) {
	suffix := ""
	if cached {
		suffix = "  (cached)"
	}

	if !loc.Found {
		fmt.Fprintf(deps.Stdout, "@%s: no location on record%s\n", handle, suffix)
		return
	}

	if glyph, ok := emoji.Flag(loc.Text); ok {
		fmt.Fprintf(deps.Stdout, "@%s: %s %s%s\n", handle, loc.Text, glyph, suffix)
		return
	}
	fmt.Fprintf(deps.Stdout, "@%s: %s (no flag)%s\n", handle, loc.Text, suffix)
}
