// Package cache is an LRU response cache with TTL expiry and a background
// refresh loop that reloads entries before they expire.
package cache

import (
	"container/list"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/AIAleph/mvp_market_context/internal/logging"
)

const (
	defaultMaxEntries = 4096
	defaultTTL        = 10 * time.Minute
	defaultRefresh    = 30 * time.Second
)

// Loader produces a fresh value for a key.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	key       string
	value     any
	loadedAt  time.Time
	expiresAt time.Time
	loader    Loader
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	refresh time.Duration
	entries map[string]*list.Element
	ordered *list.List
	now     func() time.Time
	flight  singleflight.Group
}

// New returns a cache holding at most max entries for ttl each. Entries
// older than refresh are reloaded by Refresh/Run when they carry a loader.
func New(max int, ttl, refresh time.Duration) *Cache {
	if max <= 0 {
		max = defaultMaxEntries
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	return &Cache{
		max:     max,
		ttl:     ttl,
		refresh: refresh,
		entries: make(map[string]*list.Element, max),
		ordered: list.New(),
		now:     time.Now,
	}
}

// Key digests a request signature into a fixed-size cache key.
func Key(parts ...any) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		fmt.Fprint(&b, p)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns a live entry.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		return nil, false
	}
	c.ordered.MoveToFront(el)
	return e.value, true
}

// Set stores value without a loader; it is never refreshed.
func (c *Cache) Set(key string, value any) {
	c.put(key, value, nil)
}

func (c *Cache) put(key string, value any, loader Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.loadedAt = now
		e.expiresAt = now.Add(c.ttl)
		if loader != nil {
			e.loader = loader
		}
		c.ordered.MoveToFront(el)
		return
	}
	el := c.ordered.PushFront(&entry{key: key, value: value, loadedAt: now, expiresAt: now.Add(c.ttl), loader: loader})
	c.entries[key] = el
	c.evict(now)
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Concurrent callers of a missing key share one load. Errors are not
// cached, nor are values loaded after ctx was done; those may be partial.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load Loader) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if ctx.Err() == nil {
			c.put(key, v, load)
		}
		return v, nil
	})
	return v, err
}

// Load is a typed GetOrLoad.
func Load[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	v, err := c.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) { return load(ctx) })
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: key %s holds %T", key, v)
	}
	return t, nil
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ordered.Len()
}

func (c *Cache) evict(now time.Time) {
	for el := c.ordered.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeElement(el)
		}
		el = prev
	}
	for c.ordered.Len() > c.max {
		c.removeElement(c.ordered.Back())
	}
}

func (c *Cache) removeElement(el *list.Element) {
	delete(c.entries, el.Value.(*entry).key)
	c.ordered.Remove(el)
}

type staleEntry struct {
	key    string
	loader Loader
}

// Refresh reloads every live entry older than the refresh interval and
// returns how many were reloaded. Failed reloads keep the old value.
func (c *Cache) Refresh(ctx context.Context) int {
	c.mu.Lock()
	now := c.now()
	var stale []staleEntry
	for el := c.ordered.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.loader != nil && now.Before(e.expiresAt) && now.Sub(e.loadedAt) >= c.refresh {
			stale = append(stale, staleEntry{key: e.key, loader: e.loader})
		}
	}
	c.mu.Unlock()

	n := 0
	for _, s := range stale {
		if ctx.Err() != nil {
			break
		}
		v, err := s.loader(ctx)
		if err != nil {
			logging.Logger().Warn("cache_refresh_failed", "component", "cache", "key", s.key, "error", err.Error())
			continue
		}
		if ctx.Err() != nil {
			break
		}
		c.mu.Lock()
		if el, ok := c.entries[s.key]; ok {
			e := el.Value.(*entry)
			e.value = v
			e.loadedAt = c.now()
			e.expiresAt = e.loadedAt.Add(c.ttl)
			n++
		}
		c.mu.Unlock()
	}
	return n
}

// Run calls Refresh every refresh interval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	t := time.NewTicker(c.refresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			start := time.Now()
			if n := c.Refresh(ctx); n > 0 {
				logging.Logger().Debug("cache_refresh", "component", "cache", "refreshed", n, "elapsed_ms", time.Since(start).Milliseconds())
			}
		}
	}
}
