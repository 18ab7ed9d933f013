package mock

import (
	"sync"

	"github.com/vigneshmr/flagup"
)

var _ flagup.LocationCache = (*LocationCache)(nil)

// LocationCache is a mock implementation of flagup.LocationCache.
// When the function fields are nil it behaves as a simple in-memory map,
// which is what most tests want.
type LocationCache struct {
	GetFn   func(handle string) (flagup.Location, bool)
	PutFn   func(handle string, loc flagup.Location)
	FlushFn func() error
	CloseFn func() error

	mu      sync.Mutex
	entries map[string]flagup.Location
}

func (c *LocationCache) Get(handle string) (flagup.Location, bool) {
	if c.GetFn != nil {
		return c.GetFn(handle)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.entries[handle]
	return loc, ok
}

func (c *LocationCache) Put(handle string, loc flagup.Location) {
	if c.PutFn != nil {
		c.PutFn(handle, loc)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]flagup.Location)
	}
	c.entries[handle] = loc
}

func (c *LocationCache) Flush() error {
	if c.FlushFn != nil {
		return c.FlushFn()
	}
	return nil
}

func (c *LocationCache) Close() error {
	if c.CloseFn != nil {
		return c.CloseFn()
	}
	return nil
}
