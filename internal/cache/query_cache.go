// Package cache memoizes query results keyed by compiled statement text.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// QueryCache is a bounded, TTL-evicting map from compiled statement text to
// its result. Values are idempotent for a given key, so a concurrent
// last-writer-wins overwrite is benign.
type QueryCache struct {
	lru *expirable.LRU[string, any]
}

// New creates a cache holding at most size entries for at most ttl each.
func New(size int, ttl time.Duration) *QueryCache {
	if size <= 0 {
		size = 512
	}
	return &QueryCache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

// Key canonicalizes a statement plus its bound parameters. Two requests with
// the same normalized filter spec and query shape produce byte-identical
// statements and parameters, so they share an entry.
func Key(stmt string, params []any) string {
	if len(params) == 0 {
		return stmt
	}
	var b strings.Builder
	b.WriteString(stmt)
	for _, p := range params {
		fmt.Fprintf(&b, "|%v", p)
	}
	return b.String()
}

// Get returns the cached value for key, if present and unexpired.
func (c *QueryCache) Get(key string) (any, bool) {
	return c.lru.Get(key)
}

// Put stores the value for key.
func (c *QueryCache) Put(key string, value any) {
	c.lru.Add(key, value)
}

// Len reports the current number of live entries.
func (c *QueryCache) Len() int { return c.lru.Len() }
