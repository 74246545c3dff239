// Package cache keeps contacts read from business websites so that chain
// locations sharing one site are only fetched once per run window.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/leadscout/extractor"
)

// entry holds cached contacts with their creation timestamp.
type entry struct {
	contacts  extractor.Contacts
	createdAt time.Time
}

// Cache is a bounded in-memory TTL cache for website contacts.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a Cache holding at most maxEntries for ttl each. A
// background goroutine evicts expired entries until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval(ttl))
	return c
}

// Key normalizes a website URL: scheme and host lowercased, "www." and
// any trailing slash dropped, query and fragment ignored.
func Key(website string) string {
	norm := strings.TrimSpace(website)
	if u, err := url.Parse(norm); err == nil && u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		norm = strings.ToLower(u.Scheme) + "://" + host + strings.TrimSuffix(u.EscapedPath(), "/")
	}
	h := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(h[:])
}

// Get returns cached contacts younger than the TTL.
func (c *Cache) Get(key string) (extractor.Contacts, bool) {
	if c.ttl <= 0 {
		return extractor.Contacts{}, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return extractor.Contacts{}, false
	}
	return e.contacts, true
}

// Set stores contacts. If the cache is at capacity, an arbitrary entry is
// evicted to make room.
func (c *Cache) Set(key string, contacts extractor.Contacts) {
	if c.ttl <= 0 || c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random in Go.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{contacts: contacts, createdAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.done:
			return
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	const maxInterval = 5 * time.Minute
	if ttl <= 0 || ttl > maxInterval {
		return maxInterval
	}
	return ttl
}
