// Package twitter talks to the host site's internal profile API.
//
// Everything in this package is coupled to undocumented behavior of one
// site: the GraphQL path, the response shape, and the rate-limit headers
// are all observed, not published, and can change without notice. The rest
// of the system only sees the flagup.LocationService interface.
package twitter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
)

// DefaultBaseURL is the host site.
const DefaultBaseURL = "https://x.com"

// aboutAccountPath is the GraphQL operation that carries the
// account_based_in field. The query id is baked into the site's web bundle.
const aboutAccountPath = "/i/api/graphql/XRqGa14FW2FGLbnAbF3lqw/AboutAccountQuery"

// DefaultLookupTimeout bounds a single HTTP round trip. The dispatch layer
// applies its own, longer deadline on top.
const DefaultLookupTimeout = 10 * time.Second

// Ensure Client implements flagup.LocationService at compile time.
var _ flagup.LocationService = (*Client)(nil)

// Client performs location lookups against the profile API using headers
// supplied by a HeaderSource (observed from the live page, or static).
//
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	headers flagup.HeaderSource
	sink    flagup.RateLimitSink
	log     zerolog.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the host site URL. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimitSink registers the receiver for 429-derived signals.
func WithRateLimitSink(sink flagup.RateLimitSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTimeout sets the HTTP round-trip timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client that authenticates with headers from source.
func NewClient(source flagup.HeaderSource, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		headers: source,
		log:     zerolog.Nop(),
		timeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// aboutResponse mirrors the slice of the GraphQL response we care about.
type aboutResponse struct {
	Data struct {
		UserResultByScreenName struct {
			Result struct {
				AboutProfile struct {
					AccountBasedIn string `json:"account_based_in"`
				} `json:"about_profile"`
			} `json:"result"`
		} `json:"user_result_by_screen_name"`
	} `json:"data"`
}

// Lookup fetches the account's self-reported location for a handle.
//
// A 429 response delivers a RateLimitSignal to the registered sink (when the
// reset header is present) and returns ERATELIMIT. Other non-2xx statuses
// and transport failures return EUNAVAILABLE. A success with no usable
// location returns Location{Found: false} and a nil error.
func (c *Client) Lookup(ctx context.Context, handle string) (flagup.Location, error) {
	if !flagup.ValidHandle(handle) {
		return flagup.Location{}, flagup.Errorf(flagup.EINVALID, "malformed handle %q", handle)
	}

	variables, err := json.Marshal(map[string]string{"screenName": handle})
	if err != nil {
		return flagup.Location{}, flagup.Errorf(flagup.EINTERNAL, "encode variables: %v", err)
	}

	reqURL := c.baseURL + aboutAccountPath + "?variables=" + url.QueryEscape(string(variables))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return flagup.Location{}, flagup.Errorf(flagup.EINTERNAL, "build request: %v", err)
	}

	headers, err := c.headers.Headers(ctx)
	if err != nil {
		return flagup.Location{}, flagup.Errorf(flagup.EUNAVAILABLE, "no session headers: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Correlation id for log lines; also keeps retried requests
	// distinguishable server-side.
	requestID := uuid.New().String()
	req.Header.Set("x-client-request-id", requestID)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("handle", handle).Str("request_id", requestID).Msg("lookup transport failure")
		return flagup.Location{}, flagup.Errorf(flagup.EUNAVAILABLE, "lookup %s: %v", handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		sig, ok := ParseRateLimit(resp.Header)
		if ok && c.sink != nil {
			c.sink.SignalRateLimit(sig)
		}
		c.log.Warn().
			Str("handle", handle).
			Time("reset_at", sig.ResetAt).
			Int("limit", sig.Limit).
			Msg("rate limited by profile API")
		return flagup.Location{}, flagup.Errorf(flagup.ERATELIMIT, "rate limited until %s", sig.ResetAt.Format(time.RFC3339))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("handle", handle).
			Str("request_id", requestID).
			Msg("lookup failed")
		return flagup.Location{}, flagup.Errorf(flagup.EUNAVAILABLE, "lookup %s: HTTP %d", handle, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return flagup.Location{}, flagup.Errorf(flagup.EUNAVAILABLE, "read response: %v", err)
	}

	var parsed aboutResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return flagup.Location{}, flagup.Errorf(flagup.EINTERNAL, "parse response for %s: %v", handle, err)
	}

	text := parsed.Data.UserResultByScreenName.Result.AboutProfile.AccountBasedIn
	c.log.Debug().
		Str("handle", handle).
		Str("location", text).
		Dur("duration", time.Since(started)).
		Msg("lookup completed")

	if text == "" {
		return flagup.Location{}, nil
	}
	return flagup.Location{Text: text, Found: true}, nil
}
