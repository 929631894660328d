package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key builds the canonical cache key for an entity type and its filter
// parameters: "entity?a=1&b=2" with keys sorted and empty values dropped.
func Key(entity string, filter map[string]string) string {
	if len(filter) == 0 {
		return entity + "?"
	}
	keys := make([]string, 0, len(filter))
	for k, v := range filter {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = url.QueryEscape(k) + "=" + url.QueryEscape(filter[k])
	}
	return entity + "?" + strings.Join(parts, "&")
}

// Stats counts read-through outcomes.
type Stats struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	Invalidations atomic.Int64
}

// ReadThrough serves entity reads from an LRU cache and loads on miss.
// Values handed out are shared between callers and must not be mutated.
type ReadThrough struct {
	store Cache[any]
	group singleflight.Group
	stats Stats
	gen   atomic.Uint64
}

// NewReadThrough creates a read-through cache of at most size entries living ttl.
func NewReadThrough(size int, ttl time.Duration) *ReadThrough {
	return &ReadThrough{store: NewLRUCache[any](size, ttl)}
}

// CleanExpired implements Cleaner.
func (r *ReadThrough) CleanExpired() int {
	if c, ok := r.store.(Cleaner); ok {
		return c.CleanExpired()
	}
	return 0
}

// Size returns the number of cached entries.
func (r *ReadThrough) Size() int { return r.store.Size() }

// Stats exposes the hit/miss counters.
func (r *ReadThrough) Stats() *Stats { return &r.stats }

// InvalidateEntity drops every cached entry for the given entity types.
func (r *ReadThrough) InvalidateEntity(entities ...string) {
	r.gen.Add(1)
	for _, e := range entities {
		n := r.store.DeletePrefix(e + "?")
		r.stats.Invalidations.Add(1)
		if n > 0 {
			slog.Debug("Cache invalidated", "component", "cache", "entity", e, "entries_removed", n)
		}
	}
}

// Fetch returns the cached value for key or calls load and caches its result.
// Errors are never cached. Concurrent misses on the same key share one load.
// Results of loads overlapping an invalidation are returned but not cached.
func Fetch[T any](ctx context.Context, r *ReadThrough, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return load(ctx)
	}
	if v, ok := r.store.Get(key); ok {
		if typed, ok := v.(T); ok {
			r.stats.Hits.Add(1)
			return typed, nil
		}
		r.store.Delete(key)
	}
	r.stats.Misses.Add(1)

	v, err, _ := r.group.Do(key, func() (any, error) {
		gen := r.gen.Load()
		// shared by every waiter, so one caller's cancellation must not fail the rest
		loaded, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		// a mutation during the load makes the result unsafe to keep
		if r.gen.Load() == gen {
			r.store.Set(key, loaded)
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q has unexpected type %T", key, v)
	}
	return typed, nil
}
