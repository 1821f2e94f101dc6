// Package memo holds the per-invocation result cache. Every value gdev reads
// from disk, git or docker, and every stage it derives, is computed at most
// once per key; concurrent callers asking for a key that is still being
// computed wait for the first caller's result.
package memo

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/singleflight"
)

type result struct {
	value interface{}
	err   error
}

// Cache is a key addressed, single-flight result cache. Errors are cached too,
// so a failed lookup is not retried within the same invocation. The zero
// value is not usable, use New.
type Cache struct {
	group   singleflight.Group
	mutex   deadlock.Mutex
	results map[string]result
	misses  map[string]int
}

// New returns an empty cache
func New() *Cache {
	return &Cache{
		results: map[string]result{},
		misses:  map[string]int{},
	}
}

func (c *Cache) lookup(key string) (result, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, ok := c.results[key]
	return res, ok
}

// Do returns the cached result for key, computing it with fn if this is the
// first time anyone has asked. fn must not ask for its own key.
func (c *Cache) Do(key string, fn func() (interface{}, error)) (interface{}, error) {
	if res, ok := c.lookup(key); ok {
		return res.value, res.err
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// someone may have finished computing this between our lookup and now
		if res, ok := c.lookup(key); ok {
			return res.value, res.err
		}

		value, err := fn()

		c.mutex.Lock()
		c.results[key] = result{value: value, err: err}
		c.misses[key]++
		c.mutex.Unlock()

		return value, err
	})

	return value, err
}

// Computations tells us how many times the value for key was actually computed
func (c *Cache) Computations(key string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.misses[key]
}

// Len returns the number of cached keys
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.results)
}

// Get is a typed wrapper around Cache.Do
func Get[T any](c *Cache, key string, fn func() (T, error)) (T, error) {
	value, err := c.Do(key, func() (interface{}, error) {
		return fn()
	})
	if value == nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("memo: value for %q is a %T, not the requested type", key, value)
	}
	return typed, err
}

// Key joins parts into a cache key
func Key(kind string, parts ...string) string {
	key := kind
	for _, part := range parts {
		key += "\x00" + part
	}
	return key
}
