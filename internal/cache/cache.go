// Package cache provides the in-memory response cache that short-circuits
// repeated questions before they reach the agent pipeline.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultMaxSize bounds the number of cached responses.
	DefaultMaxSize = 500
	// DefaultTTL is deliberately short: fee and admission figures on the
	// university site change, and a stale answer is worse than a re-run.
	DefaultTTL = 15 * time.Minute
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	key           string
	response      string
	originalQuery string
	storedAt      time.Time
}

// ResponseCache is a bounded LRU cache with lazy TTL expiry. Keys are
// normalized query strings, values are final answer texts. All operations
// serialize on a single mutex; none of them call out while holding it.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = least recently used, back = most recently used
	maxSize int
	ttl     time.Duration
	clock   Clock

	hits   uint64
	misses uint64
}

// New creates a ResponseCache. Non-positive maxSize or ttl fall back to the
// defaults (500 entries, 15 minutes).
func New(maxSize int, ttl time.Duration) *ResponseCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		clock:   realClock{},
	}
}

// Get looks up the response for a raw query. Expired entries are removed as a
// side effect of the read and reported as misses. A hit marks the entry most
// recently used.
func (c *ResponseCache) Get(rawQuery string) (string, bool) {
	key := Normalize(rawQuery)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}

	e := el.Value.(*entry)
	if c.clock.Now().Sub(e.storedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return "", false
	}

	c.order.MoveToBack(el)
	c.hits++
	return e.response, true
}

// Put stores a query→response pair, overwriting any existing entry for the
// same normalized key, and evicts least-recently-used entries while over
// capacity.
func (c *ResponseCache) Put(rawQuery, response string) {
	key := Normalize(rawQuery)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.response = response
		e.originalQuery = rawQuery
		e.storedAt = c.clock.Now()
		c.order.MoveToBack(el)
		return
	}

	el := c.order.PushBack(&entry{
		key:           key,
		response:      response,
		originalQuery: rawQuery,
		storedAt:      c.clock.Now(),
	})
	c.entries[key] = el

	for len(c.entries) > c.maxSize {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Stats reports current cache state and cumulative hit/miss counters.
type Stats struct {
	Size       int    `json:"size"`
	MaxSize    int    `json:"max_size"`
	TTLSeconds int    `json:"ttl_seconds"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	HitRate    string `json:"hit_rate"`
}

// Stats returns a snapshot of cache statistics. HitRate is "0%" until the
// first lookup.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:       len(c.entries),
		MaxSize:    c.maxSize,
		TTLSeconds: int(c.ttl.Seconds()),
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    "0%",
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = fmt.Sprintf("%.1f%%", float64(c.hits)/float64(total)*100)
	}
	return s
}

// Clear empties the store and resets the counters.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}
