// Package modelcache implements a count-bounded LRU of loaded model
// handles keyed by (kind, params), with single-flight load deduplication
// so N concurrent requests for the same uncached model trigger exactly
// one load and the other callers block on its result instead of polling.
package modelcache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached model instance.
type Key struct {
	Kind   string // "asr", "mt", "tts"
	Params string // normalized provider+model+language params, used verbatim
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Params)
}

// Loader constructs a model handle for a cache miss. It's invoked at most
// once per key at a time, regardless of how many callers are waiting.
type Loader func(ctx context.Context, key Key) (any, error)

// entry is one resident cache slot.
type entry struct {
	key    Key
	handle any
}

// Cache is a thread-safe, count-bounded LRU cache of loaded model
// handles, deduplicating concurrent loads of the same key.
type Cache struct {
	mu      sync.Mutex
	items   map[Key]*list.Element
	order   *list.List // front = most recently used
	maxSize int

	flight singleflight.Group
}

// New creates a Cache holding at most maxSize resident models (default
// 10 if maxSize <= 0).
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &Cache{
		items:   make(map[Key]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached handle for key, loading it via loader on a miss.
// Concurrent Get calls for the same key share a single loader invocation.
func (c *Cache) Get(ctx context.Context, key Key, loader Loader) (any, error) {
	if h, ok := c.lookup(key); ok {
		return h, nil
	}

	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		// Re-check: another goroutine may have populated the cache while
		// we were waiting to enter Do (e.g. after a prior in-flight load
		// for this key completed just before we called lookup above).
		if h, ok := c.lookup(key); ok {
			return h, nil
		}
		h, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		c.insert(key, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Cache) lookup(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry).handle, true
}

func (c *Cache) insert(key Key, handle any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).handle = handle
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry{key: key, handle: handle})
	c.items[key] = elem

	if c.order.Len() > c.maxSize {
		back := c.order.Back()
		if back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*entry).key)
		}
	}
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Evict removes key from the cache if present, without affecting an
// in-flight load for that key.
func (c *Cache) Evict(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// LoadResult is one (key, error) outcome of LoadAll.
type LoadResult struct {
	Key Key
	Err error
}

// LoadAll preloads the given keys, reporting each outcome via onProgress
// as it completes and returning the full set of per-key errors.
// onProgress may be nil.
func (c *Cache) LoadAll(ctx context.Context, keys []Key, loader Loader, onProgress func(LoadResult)) map[Key]error {
	errs := make(map[Key]error)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range keys {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(ctx, key, loader)

			mu.Lock()
			if err != nil {
				errs[key] = err
			}
			mu.Unlock()

			if onProgress != nil {
				onProgress(LoadResult{Key: key, Err: err})
			}
		}()
	}
	wg.Wait()
	return errs
}
