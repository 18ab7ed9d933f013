package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/fs"
	"github.com/vigneshmr/flagup/sqlite"
)

// CacheListCmd is the "cache list" subcommand.
type CacheListCmd struct{}

// CacheClearCmd is the "cache clear" subcommand.
type CacheClearCmd struct {
	Force bool `help:"Confirm deletion"`
}

// Run executes the cache list command.
func (c *CacheListCmd) Run(deps *Dependencies) error {
	entries, err := cacheEntries(deps.Cache)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flagup.ErrorMessage(err))
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(deps.Stdout, "Cache is empty.")
		return nil
	}

	handles := make([]string, 0, len(entries))
	for handle := range entries {
		handles = append(handles, handle)
	}
	sort.Strings(handles)

	for _, handle := range handles {
		entry := entries[handle]
		location := entry.Location
		if !entry.Found {
			location = "(no location)"
		}
		fmt.Fprintf(deps.Stdout, "%-16s %-24s expires %s\n",
			"@"+handle, location, entry.ExpiresAt.Format(time.DateOnly))
	}
	fmt.Fprintf(deps.Stdout, "%d entries\n", len(entries))
	return nil
}

// Run executes the cache clear command.
func (c *CacheClearCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintln(deps.Stdout, "This drops every cached location. Re-run with --force to confirm.")
		return nil
	}

	if err := clearCache(deps.Cache); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", flagup.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, "Cache cleared.")
	return nil
}

// cacheEntries reads the full entry set from whichever backend is open.
func cacheEntries(cache flagup.LocationCache) (map[string]flagup.CacheEntry, error) {
	switch c := cache.(type) {
	case *fs.Cache:
		return c.Entries(), nil
	case *sqlite.Cache:
		return c.Entries()
	default:
		return nil, flagup.Errorf(flagup.EINTERNAL, "cache backend does not support listing")
	}
}

func clearCache(cache flagup.LocationCache) error {
	switch c := cache.(type) {
	case *fs.Cache:
		return c.Clear()
	case *sqlite.Cache:
		return c.Clear()
	default:
		return flagup.Errorf(flagup.EINTERNAL, "cache backend does not support clearing")
	}
}
