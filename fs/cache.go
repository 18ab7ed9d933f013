// Package fs provides a file-based implementation of flagup.LocationCache.
// The whole cache is one JSON blob; writes are debounced and batched.
package fs

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
)

// Cache timing defaults.
const (
	// DefaultTTL is how long a persisted entry stays valid. Every flush
	// stamps a fresh TTL on the entries it writes.
	DefaultTTL = 30 * 24 * time.Hour

	// DefaultDebounce is how long after a Put the batched persist fires.
	// Puts within the window collapse into a single write.
	DefaultDebounce = 5 * time.Second

	// DefaultFlushInterval is the background flush period, a safety net
	// independent of the debounce.
	DefaultFlushInterval = 30 * time.Second
)

// cacheVersion is written into the blob for forward compatibility.
// Unknown or missing versions are tolerated on read.
const cacheVersion = 1

// envelope is the on-disk shape of the cache.
type envelope struct {
	Version int                          `json:"version"`
	Entries map[string]flagup.CacheEntry `json:"entries"`
}

// Ensure Cache implements flagup.LocationCache at compile time.
var _ flagup.LocationCache = (*Cache)(nil)

// Cache is a durable handle → location cache backed by a single JSON file.
//
// Entries past their expiry are dropped when the cache is opened and never
// purged afterwards. A Put is visible to Get immediately, so duplicate
// in-flight lookups for the same handle observe the write before any
// persistence happens.
//
// Cache is safe for concurrent use.
type Cache struct {
	path     string
	ttl      time.Duration
	debounce time.Duration
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]flagup.CacheEntry
	pending *time.Timer
	lastSum uint64
	closed  bool

	stop chan struct{}
	done chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime stamped on every flush.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithDebounce sets the delay between a Put and the batched persist.
// Zero disables debounced persistence (Flush and the interval still work).
func WithDebounce(d time.Duration) Option {
	return func(c *Cache) { c.debounce = d }
}

// WithFlushInterval sets the background flush period. Zero disables it.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Cache) { c.interval = d }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Open loads the cache at path. A missing, unreadable, or corrupt file is
// logged and treated as an empty cache; Open never fails on bad input.
// Close must be called to stop the background flush and persist final state.
func Open(path string, opts ...Option) *Cache {
	c := &Cache{
		path:     path,
		ttl:      DefaultTTL,
		debounce: DefaultDebounce,
		interval: DefaultFlushInterval,
		log:      zerolog.Nop(),
		now:      time.Now,
		entries:  make(map[string]flagup.CacheEntry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.load()

	if c.interval > 0 {
		go c.flushLoop()
	} else {
		close(c.done)
	}

	return c
}

// load reads the blob and admits unexpired entries into the in-memory map.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("cache read failed, starting empty")
		}
		return
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("cache parse failed, starting empty")
		return
	}

	now := c.now()
	dropped := 0
	for handle, entry := range env.Entries {
		if entry.Expired(now) {
			dropped++
			continue
		}
		c.entries[handle] = entry
	}
	c.lastSum = contentSum(c.entries)

	c.log.Debug().
		Int("entries", len(c.entries)).
		Int("expired", dropped).
		Msg("cache loaded")
}

// Get returns the cached location for a handle. In-memory only.
func (c *Cache) Get(handle string) (flagup.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[handle]
	if !ok {
		return flagup.Location{}, false
	}
	return entry.Value(), true
}

// Put records a lookup result and schedules a debounced persist if one is
// not already pending.
func (c *Cache) Put(handle string, loc flagup.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[handle] = flagup.CacheEntry{
		Location:  loc.Text,
		Found:     loc.Found,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	if c.closed || c.debounce <= 0 || c.pending != nil {
		return
	}
	c.pending = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		if err := c.Flush(); err != nil {
			c.log.Warn().Err(err).Msg("debounced cache persist failed")
		}
	})
}

// Flush persists the full in-memory map with a fresh TTL stamped on every
// entry. The write is skipped when the content (expiries aside) has not
// changed since the last persist, so the interval flush is cheap.
func (c *Cache) Flush() error {
	c.mu.Lock()

	sum := contentSum(c.entries)
	if sum == c.lastSum {
		c.mu.Unlock()
		return nil
	}

	now := c.now()
	env := envelope{
		Version: cacheVersion,
		Entries: make(map[string]flagup.CacheEntry, len(c.entries)),
	}
	for handle, entry := range c.entries {
		entry.ExpiresAt = now.Add(c.ttl)
		env.Entries[handle] = entry
		c.entries[handle] = entry
	}
	c.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "encode cache: %v", err)
	}

	if err := writeAtomic(c.path, data); err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "persist cache: %v", err)
	}

	c.mu.Lock()
	c.lastSum = sum
	c.mu.Unlock()

	c.log.Debug().Int("entries", len(env.Entries)).Msg("cache persisted")
	return nil
}

// Entries returns a copy of the in-memory map, for inspection.
func (c *Cache) Entries() map[string]flagup.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]flagup.CacheEntry, len(c.entries))
	for handle, entry := range c.entries {
		out[handle] = entry
	}
	return out
}

// Clear drops every entry, in memory and on disk.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]flagup.CacheEntry)
	c.lastSum = 0
	c.mu.Unlock()

	env := envelope{Version: cacheVersion, Entries: map[string]flagup.CacheEntry{}}
	data, err := json.Marshal(env)
	if err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "encode cache: %v", err)
	}
	if err := writeAtomic(c.path, data); err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "persist cache: %v", err)
	}

	c.mu.Lock()
	c.lastSum = contentSum(c.entries)
	c.mu.Unlock()
	return nil
}

// Close stops background persistence and flushes final state.
// Close is safe to call multiple times.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()

	close(c.stop)
	<-c.done

	return c.Flush()
}

func (c *Cache) flushLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Flush(); err != nil {
				c.log.Warn().Err(err).Msg("interval cache flush failed")
			}
		}
	}
}

// contentSum hashes the entries' content, expiries excluded. Two maps with
// the same handles and lookup results hash equal even though each flush
// would stamp different expiries.
func contentSum(entries map[string]flagup.CacheEntry) uint64 {
	handles := make([]string, 0, len(entries))
	for h := range entries {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	d := xxhash.New()
	var buf [8]byte
	for _, h := range handles {
		entry := entries[h]
		_, _ = d.WriteString(h)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(entry.Location)
		if entry.Found {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{0})
		}
		binary.BigEndian.PutUint64(buf[:], uint64(entry.CachedAt.UnixMilli()))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// writeAtomic writes data to path via a temp file and rename so readers
// never observe a partial blob.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".flagup-cache-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
