package crawl

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// hostEntry marks a host until expiresAt.
type hostEntry struct {
	expiresAt time.Time
}

// HostMemory remembers website hosts whose pages only yield contacts
// after rendering, so the auto fetch mode stops trying plain HTTP on them.
// Entries expire after the configured TTL and are cleaned up periodically.
type HostMemory struct {
	store sync.Map // host (string) -> *hostEntry
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewHostMemory creates a HostMemory with the given TTL and starts a
// background goroutine that prunes expired entries every hour.
func NewHostMemory(ttl time.Duration) *HostMemory {
	m := &HostMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// NeedsBrowser reports whether site's host was marked and has not expired.
func (m *HostMemory) NeedsBrowser(site string) bool {
	host := hostOf(site)
	val, ok := m.store.Load(host)
	if !ok {
		return false
	}
	if time.Now().After(val.(*hostEntry).expiresAt) {
		m.store.Delete(host)
		return false
	}
	return true
}

// MarkBrowser records that site's host needed a browser tab.
func (m *HostMemory) MarkBrowser(site string) {
	m.store.Store(hostOf(site), &hostEntry{expiresAt: time.Now().Add(m.ttl)})
}

// Forget removes the mark for site's host.
func (m *HostMemory) Forget(site string) {
	m.store.Delete(hostOf(site))
}

// Stop terminates the background cleanup goroutine.
func (m *HostMemory) Stop() {
	m.once.Do(func() { close(m.done) })
}

func (m *HostMemory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.store.Range(func(key, value any) bool {
				if now.After(value.(*hostEntry).expiresAt) {
					m.store.Delete(key)
				}
				return true
			})
		}
	}
}

func hostOf(site string) string {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return strings.ToLower(site)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
