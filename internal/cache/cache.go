// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package cache provides the shared provider-response cache.
//
// Entries carry a TTL selected by data category: census data is stable for a
// year, economic indicators for a week. Expiration is lazy and eviction is
// LRU, so the cache is O(1) for Get, Put and eviction. Racing writes on the
// same key resolve last-writer-wins; entries are idempotent snapshots of the
// same query, so this is safe.
package cache

import (
	"sync"
	"time"

	"github.com/rcpassos/marketscope/internal/metrics"
	"github.com/rcpassos/marketscope/internal/models"
)

// TTLTable maps data categories to entry lifetimes.
type TTLTable struct {
	Demographic time.Duration
	Economic    time.Duration
	Survey      time.Duration
	Census      time.Duration
	Metadata    time.Duration
	Default     time.Duration
}

// For returns the TTL for a category, falling back to Default for unknown
// categories.
func (t TTLTable) For(category models.DataCategory) time.Duration {
	switch category {
	case models.CategoryDemographic:
		return t.Demographic
	case models.CategoryEconomic:
		return t.Economic
	case models.CategorySurvey:
		return t.Survey
	case models.CategoryCensus:
		return t.Census
	case models.CategoryMetadata:
		return t.Metadata
	default:
		return t.Default
	}
}

// entry is a node in the LRU list.
type entry struct {
	key      string
	category models.DataCategory
	payload  models.RawResponse

	prev *entry
	next *entry

	storedAt  time.Time
	expiresAt time.Time
}

// ResponseCache is a thread-safe TTL + LRU cache for provider responses.
//
// A doubly-linked list with sentinel head/tail keeps access order; a map
// gives O(1) lookup. head.next is the most recently used entry, tail.prev
// the least recently used.
type ResponseCache struct {
	mu sync.RWMutex

	capacity int
	ttls     TTLTable

	items map[string]*entry
	head  *entry
	tail  *entry

	hits      int64
	misses    int64
	evictions int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// New creates a ResponseCache with the given capacity and TTL table.
func New(capacity int, ttls TTLTable) *ResponseCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttls.Default <= 0 {
		ttls.Default = 7 * 24 * time.Hour
	}

	c := &ResponseCache{
		capacity: capacity,
		ttls:     ttls,
		items:    make(map[string]*entry, capacity),
		head:     &entry{},
		tail:     &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves a cached response. An expired entry is removed and counts as
// a miss. Found entries move to the front of the LRU order.
func (c *ResponseCache) Get(key string) (models.RawResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		c.misses++
		metrics.CacheMisses.WithLabelValues("unknown").Inc()
		return models.RawResponse{}, false
	}

	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		c.evictions++
		metrics.CacheMisses.WithLabelValues(string(e.category)).Inc()
		metrics.CacheEvictions.Inc()
		metrics.CacheEntries.Set(float64(len(c.items)))
		return models.RawResponse{}, false
	}

	c.moveToFront(e)
	c.hits++
	metrics.CacheHits.WithLabelValues(string(e.category)).Inc()

	resp := e.payload
	resp.FromCache = true
	return resp, true
}

// Put stores a response under its category TTL, overwriting any existing
// entry for the key. The least recently used entry is evicted at capacity.
func (c *ResponseCache) Put(key string, category models.DataCategory, resp models.RawResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiresAt := now.Add(c.ttls.For(category))

	if e, exists := c.items[key]; exists {
		e.category = category
		e.payload = resp
		e.storedAt = now
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{
		key:       key,
		category:  category,
		payload:   resp,
		storedAt:  now,
		expiresAt: expiresAt,
	}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
	metrics.CacheEntries.Set(float64(len(c.items)))
}

// Delete removes an entry. Returns true if the key existed.
func (c *ResponseCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		c.removeEntry(e)
		c.evictions++
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictions += int64(len(c.items))
	c.items = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	metrics.CacheEntries.Set(0)
}

// CleanupExpired removes all expired entries and returns how many were
// removed. Called periodically by the supervisor's housekeeping.
func (c *ResponseCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}
	c.evictions += int64(removed)
	metrics.CacheEntries.Set(float64(len(c.items)))
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
	}
}

// HitRate returns the hit percentage over all lookups.
func (c *ResponseCache) HitRate() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// List maintenance, callers hold c.mu.

func (c *ResponseCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *ResponseCache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *ResponseCache) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *ResponseCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
	metrics.CacheEvictions.Inc()
}
