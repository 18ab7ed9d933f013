package main_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshmr/flagup"
	main "github.com/vigneshmr/flagup/cmd/flagup"
	"github.com/vigneshmr/flagup/fs"
)

const franceFlag = "\U0001F1EB\U0001F1F7"

// seedCache writes a cache blob with the given entries and returns its path.
func seedCache(t *testing.T, entries map[string]flagup.Location) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.json")
	cache := fs.Open(path)
	for handle, loc := range entries {
		cache.Put(handle, loc)
	}
	require.NoError(t, cache.Close())
	return path
}

func runMain(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	m := main.NewMain()
	m.Stdin = strings.NewReader(stdin)
	var out, errOut bytes.Buffer
	err = m.Run(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestMain_Run_Help(t *testing.T) {
	t.Parallel()

	stdout, _, err := runMain(t, "", "--help")
	require.NoError(t, err)

	for _, cmd := range []string{"run", "annotate", "lookup", "cache"} {
		assert.Contains(t, stdout, cmd)
	}
}

func TestMain_Run_NoArgs(t *testing.T) {
	t.Parallel()

	_, _, err := runMain(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command specified")
}

func TestMain_Run_FlagsBeforeCommand(t *testing.T) {
	t.Parallel()

	path := seedCache(t, map[string]flagup.Location{
		"alice": {Text: "France", Found: true},
	})

	// The uncached handle forces a resolver call, so the command's
	// dependencies must be wired even with top-level flags leading.
	html := `<div data-testid="User-Name"><a href="/alice">@alice</a></div>
		<div data-testid="UserCell"><a href="/bob">@bob</a></div>`

	stdout, stderr, err := runMain(t, html,
		"-v", "--cache-path", path, "annotate", "--offline-cache-only")
	require.NoError(t, err)

	assert.Contains(t, stdout, franceFlag)
	assert.Contains(t, stderr, "1 failed")
}

func TestCmdAnnotate(t *testing.T) {
	t.Parallel()

	t.Run("annotates stdin from the cache", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, map[string]flagup.Location{
			"alice": {Text: "France", Found: true},
		})

		html := `<article data-testid="tweet">
			<div data-testid="User-Name"><a href="/alice">@alice</a></div>
		</article>`

		stdout, stderr, err := runMain(t, html,
			"annotate", "--offline-cache-only", "--cache-path", path)
		require.NoError(t, err)

		assert.Contains(t, stdout, franceFlag)
		assert.Contains(t, stdout, flagup.StateDone)
		// The tweet article and its nested name block both count as containers.
		assert.Contains(t, stderr, "Annotated 1 of 2")
	})

	t.Run("uncached handles degrade to no flag", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, nil)

		html := `<div data-testid="UserCell"><a href="/bob">@bob</a></div>`

		stdout, stderr, err := runMain(t, html,
			"annotate", "--offline-cache-only", "--cache-path", path)
		require.NoError(t, err)

		assert.NotContains(t, stdout, flagup.GlyphAttr+"=")
		assert.Contains(t, stderr, "1 failed")
	})

	t.Run("offline mode leaves the cache untouched", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, map[string]flagup.Location{
			"alice": {Text: "France", Found: true},
		})

		html := `<div data-testid="UserCell"><a href="/bob">@bob</a></div>`

		_, stderr, err := runMain(t, html,
			"annotate", "--offline-cache-only", "--cache-path", path)
		require.NoError(t, err)
		assert.Contains(t, stderr, "1 failed")

		// The offline pass answers not-found for bob but must not record
		// that, or a later online run would never look him up.
		cache := fs.Open(path)
		defer cache.Close()
		_, ok := cache.Get("bob")
		assert.False(t, ok)
		loc, ok := cache.Get("alice")
		require.True(t, ok)
		assert.Equal(t, "France", loc.Text)
	})

	t.Run("writes to the output file when asked", func(t *testing.T) {
		t.Parallel()

		cachePath := seedCache(t, map[string]flagup.Location{
			"alice": {Text: "Japan", Found: true},
		})
		outPath := filepath.Join(t.TempDir(), "out.html")

		html := `<div data-testid="User-Name"><a href="/alice">@alice</a></div>`

		stdout, _, err := runMain(t, html,
			"annotate", "--offline-cache-only", "--cache-path", cachePath, "-o", outPath)
		require.NoError(t, err)

		assert.Empty(t, stdout)
		assert.FileExists(t, outPath)
	})
}

func TestCmdLookup(t *testing.T) {
	t.Parallel()

	t.Run("serves cached locations without the network", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, map[string]flagup.Location{
			"alice": {Text: "France", Found: true},
		})

		stdout, _, err := runMain(t, "", "lookup", "alice", "--cache-path", path)
		require.NoError(t, err)

		assert.Contains(t, stdout, "@alice: France "+franceFlag)
		assert.Contains(t, stdout, "(cached)")
	})

	t.Run("rejects malformed handles", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, nil)

		_, stderr, err := runMain(t, "", "lookup", "not a handle", "--cache-path", path)
		require.Error(t, err)
		assert.Equal(t, flagup.EINVALID, flagup.ErrorCode(err))
		assert.Contains(t, stderr, "error:")
	})
}

func TestCmdCache(t *testing.T) {
	t.Parallel()

	t.Run("list shows entries sorted by handle", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, map[string]flagup.Location{
			"bob":   {Text: "Japan", Found: true},
			"alice": {Found: false},
		})

		stdout, _, err := runMain(t, "", "cache", "list", "--cache-path", path)
		require.NoError(t, err)

		aliceAt := strings.Index(stdout, "@alice")
		bobAt := strings.Index(stdout, "@bob")
		require.GreaterOrEqual(t, aliceAt, 0)
		require.Greater(t, bobAt, aliceAt)
		assert.Contains(t, stdout, "(no location)")
		assert.Contains(t, stdout, "2 entries")
	})

	t.Run("list reports an empty cache", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, nil)

		stdout, _, err := runMain(t, "", "cache", "list", "--cache-path", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Cache is empty.")
	})

	t.Run("clear requires force", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, map[string]flagup.Location{
			"alice": {Text: "France", Found: true},
		})

		stdout, _, err := runMain(t, "", "cache", "clear", "--cache-path", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "--force")

		stdout, _, err = runMain(t, "", "cache", "list", "--cache-path", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "@alice")
	})

	t.Run("clear with force empties the cache", func(t *testing.T) {
		t.Parallel()

		path := seedCache(t, map[string]flagup.Location{
			"alice": {Text: "France", Found: true},
		})

		stdout, _, err := runMain(t, "", "cache", "clear", "--force", "--cache-path", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Cache cleared.")

		stdout, _, err = runMain(t, "", "cache", "list", "--cache-path", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Cache is empty.")
	})
}
