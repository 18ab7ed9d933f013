package twitter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/vigneshmr/flagup"
)

// publicBearer is the web client's published application token. It is baked
// into the site's own JavaScript bundle and works for any logged-in session
// as long as the cookie-derived csrf token accompanies it.
const publicBearer = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

// Rate-limit response headers.
const (
	headerRateLimitReset     = "x-rate-limit-reset"
	headerRateLimitRemaining = "x-rate-limit-remaining"
	headerRateLimitLimit     = "x-rate-limit-limit"
)

// Ensure StaticHeaders implements flagup.HeaderSource at compile time.
var _ flagup.HeaderSource = (StaticHeaders)(nil)

// StaticHeaders is a fixed header set, for configurations where the caller
// already holds valid session headers (offline mode, tests).
type StaticHeaders map[string]string

// Headers returns the fixed set.
func (h StaticHeaders) Headers(context.Context) (map[string]string, error) {
	return h, nil
}

// DefaultHeaders returns the minimal header set that the profile API
// accepts when nothing better has been observed from live traffic.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"authorization":             "Bearer " + publicBearer,
		"content-type":              "application/json",
		"x-twitter-active-user":     "yes",
		"x-twitter-auth-type":       "OAuth2Session",
		"x-twitter-client-language": "en",
	}
}

// SessionHeaders builds a header set from explicitly supplied credentials,
// falling back to the public bearer when none is given.
func SessionHeaders(bearer, csrf string) StaticHeaders {
	h := DefaultHeaders()
	if bearer != "" {
		h["authorization"] = "Bearer " + bearer
	}
	if csrf != "" {
		h["x-csrf-token"] = csrf
	}
	return h
}

// ParseRateLimit extracts a rate-limit signal from response headers.
// The bool result is false when no reset timestamp is present; remaining
// and limit are best-effort.
func ParseRateLimit(h http.Header) (flagup.RateLimitSignal, bool) {
	resetRaw := h.Get(headerRateLimitReset)
	if resetRaw == "" {
		return flagup.RateLimitSignal{}, false
	}
	resetEpoch, err := strconv.ParseInt(resetRaw, 10, 64)
	if err != nil {
		return flagup.RateLimitSignal{}, false
	}

	sig := flagup.RateLimitSignal{ResetAt: time.Unix(resetEpoch, 0)}
	if remaining, err := strconv.Atoi(h.Get(headerRateLimitRemaining)); err == nil {
		sig.Remaining = remaining
	}
	if limit, err := strconv.Atoi(h.Get(headerRateLimitLimit)); err == nil {
		sig.Limit = limit
	}
	return sig, true
}
