//go:build integration

package rod_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/rod"
)

const timelinePage = `<!DOCTYPE html>
<html>
<body>
<article data-testid="tweet">
	<div data-testid="User-Name">
		<a href="/alice"><span>@alice</span></a>
	</div>
	<div>bonjour</div>
</article>
</body>
</html>`

func servePage(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(timelinePage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSession_InsertFlag(t *testing.T) {
	t.Parallel()

	srv := servePage(t)

	s, err := rod.NewSession(rod.WithHeaderGrace(0))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx, srv.URL))

	inserted, err := s.InsertFlag(ctx, "alice", "\U0001F1EB\U0001F1F7")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second insert is a no-op: the container is done.
	inserted, err = s.InsertFlag(ctx, "alice", "\U0001F1EB\U0001F1F7")
	require.NoError(t, err)
	assert.False(t, inserted)

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, flagup.GlyphAttr)
	assert.Contains(t, html, "\U0001F1EB\U0001F1F7")
	assert.Contains(t, html, flagup.StateAttr+`="`+flagup.StateDone+`"`)
}

func TestSession_MarkState(t *testing.T) {
	t.Parallel()

	srv := servePage(t)

	s, err := rod.NewSession(rod.WithHeaderGrace(0))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx, srv.URL))

	require.NoError(t, s.MarkState(ctx, "alice", flagup.StateProcessing))

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, flagup.StateAttr+`="`+flagup.StateProcessing+`"`)
}

func TestSession_MarkState_AnchorTextFallback(t *testing.T) {
	t.Parallel()

	// The anchor's href carries extra path segments, so only the @handle
	// text identifies the container. Marking must match it the same way
	// inserting does.
	page := `<!DOCTYPE html>
<html>
<body>
<div data-testid="UserCell">
	<a href="/carol/with_replies"><span>@carol</span></a>
</div>
</body>
</html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	s, err := rod.NewSession(rod.WithHeaderGrace(0))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx, srv.URL))

	require.NoError(t, s.MarkState(ctx, "carol", flagup.StateProcessing))

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, flagup.StateAttr+`="`+flagup.StateProcessing+`"`)
}

func TestSession_HeadersFallBackAfterGrace(t *testing.T) {
	t.Parallel()

	srv := servePage(t)

	s, err := rod.NewSession(rod.WithHeaderGrace(200 * time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx, srv.URL))

	// The test page makes no API calls, so sniffing never completes and the
	// fallback set must be returned after the grace period.
	headers, err := s.Headers(ctx)
	require.NoError(t, err)
	assert.Contains(t, headers["authorization"], "Bearer ")
}

func TestSession_EmitsLoadTrigger(t *testing.T) {
	t.Parallel()

	srv := servePage(t)

	s, err := rod.NewSession()
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx, srv.URL))

	select {
	case <-s.Triggers():
	case <-time.After(10 * time.Second):
		t.Fatal("no scan trigger after page load")
	}
}

func TestSession_Close_Idempotent(t *testing.T) {
	t.Parallel()

	s, err := rod.NewSession()
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
