package flagup

import (
	"context"
	"time"
)

// Location is the outcome of a profile location lookup.
//
// A lookup that succeeded but found no usable location has Found == false.
// That outcome is cacheable: it suppresses repeat lookups for the same
// handle exactly like a found location does.
type Location struct {
	Text  string `json:"text"`
	Found bool   `json:"found"`
}

// CacheEntry is the persisted form of a cached lookup result.
type CacheEntry struct {
	Location  string    `json:"location"`
	Found     bool      `json:"found"`
	CachedAt  time.Time `json:"cachedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Value returns the entry's location in lookup-result form.
func (e CacheEntry) Value() Location {
	return Location{Text: e.Location, Found: e.Found}
}

// Expired reports whether the entry is past its expiry at the given time.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// LocationService resolves a handle to the account's self-reported location.
type LocationService interface {
	// Lookup resolves the location for a handle.
	// Returns ERATELIMIT if the remote endpoint signaled a rate limit,
	// EUNAVAILABLE for transport failures, and EINVALID for malformed
	// handles. A successful lookup with no usable location returns
	// Location{Found: false} and a nil error.
	Lookup(ctx context.Context, handle string) (Location, error)
}

// LocationCache is a durable handle → location cache.
//
// Get and Put operate on an in-memory view; implementations persist in the
// background. Entries past their expiry are dropped when the cache is
// opened, never on read.
type LocationCache interface {
	// Get returns the cached location for a handle.
	// The bool result is false if the handle has never been looked up.
	Get(handle string) (Location, bool)

	// Put records a lookup result. The write is visible to Get immediately,
	// before any persistence happens.
	Put(handle string, loc Location)

	// Flush persists the full in-memory view, stamping a fresh expiry on
	// every entry. Implementations may skip the write when content is
	// unchanged since the last persist, in which case expiries extend only
	// alongside the next content change.
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// RateLimitSignal carries rate-limit information surfaced by the remote
// endpoint's response headers.
type RateLimitSignal struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

// RateLimitSink receives rate-limit signals out of band from lookups.
type RateLimitSink interface {
	// SignalRateLimit records a signal. Implementations merge overlapping
	// signals by keeping the latest reset time.
	SignalRateLimit(sig RateLimitSignal)
}

// HeaderSource supplies request headers valid for the ambient page session.
// The calling context has no first-party credentials of its own; headers are
// either observed from the live page's traffic or configured statically.
type HeaderSource interface {
	// Headers returns the current best header set. Implementations may
	// block briefly while an initial set is being learned.
	Headers(ctx context.Context) (map[string]string, error)
}
