// Package resource provides the cached read model and mutation helpers
// used by every back-office resource.
package resource

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"foundation_site/internal/storage"
)

// DefaultTTL is how long a successful read is served from the cache.
const DefaultTTL = 5 * time.Minute

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// State is the lifecycle of one cache key.
type State int

const (
	StateEmpty State = iota
	StatePending
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "empty"
	}
}

// entry values are replaced in the map, never modified in place.
type entry struct {
	state     State
	data      any
	expiresAt time.Time
}

// Cache is the process-wide read cache shared by all resources.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]entry
	generations map[string]uint64
	group       singleflight.Group
	ttl         time.Duration
	clock       Clock
}

func NewCache(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Cache{
		entries:     make(map[string]entry),
		generations: make(map[string]uint64),
		ttl:         ttl,
		clock:       clock,
	}
}

func cacheKey(resource string, q storage.Query) string {
	return resource + "?" + q.Key()
}

// State reports the current state of the entry for (resource, q).
func (c *Cache) State(resource string, q storage.Query) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(resource, q)]
	if !ok {
		return StateEmpty
	}
	if e.state == StateFresh && !c.clock.Now().Before(e.expiresAt) {
		return StateStale
	}
	return e.state
}

// load returns the cached value for (resource, q) or runs fetch. Concurrent
// loads of one key share a single fetch. The fetch runs detached from ctx: a
// caller that gives up gets ctx.Err() while the fetch may still fill the
// cache for later readers.
func (c *Cache) load(ctx context.Context, resource string, q storage.Query, fetch func(context.Context) (any, error)) (any, error) {
	key := cacheKey(resource, q)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.state == StateFresh {
		if c.clock.Now().Before(e.expiresAt) {
			c.mu.Unlock()
			return e.data, nil
		}
		e = entry{state: StateStale, data: e.data}
		c.entries[key] = e
	}
	gen := c.generations[resource]
	if e.state != StatePending {
		c.entries[key] = entry{state: StatePending, data: e.data}
	}
	c.mu.Unlock()

	flight := key + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		data, err := fetch(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()

		// Invalidated while in flight: callers of this flight still get the
		// result but it must not overwrite anything newer.
		if c.generations[resource] != gen {
			return data, err
		}
		if err != nil {
			delete(c.entries, key)
			return nil, err
		}
		c.entries[key] = entry{state: StateFresh, data: data, expiresAt: c.clock.Now().Add(c.ttl)}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Invalidate drops every entry of resource and fences off fetches already
// in flight for it.
func (c *Cache) Invalidate(resource string) {
	prefix := resource + "?"

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[resource]++
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Forget drops the single entry for (resource, q).
func (c *Cache) Forget(resource string, q storage.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(resource, q))
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.state == StateStale || (e.state == StateFresh && !now.Before(e.expiresAt)) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
