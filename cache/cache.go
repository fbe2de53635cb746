package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Key prefixes namespace entries by purpose so keys from different call
// sites can never collide.
const (
	GeocodePrefix     = "geocode:"
	SocialPrefix      = "social:"
	UpdatesPrefix     = "updates:"
	LocationPrefix    = "location:"
	ImageVerifyPrefix = "image_verify:"
)

// GeocodeKey builds the cache key for a free-text location name.
// The name is case-folded and trimmed so "  Manhattan " and "manhattan"
// share one entry.
func GeocodeKey(locationName string) string {
	return GeocodePrefix + strings.ToLower(strings.TrimSpace(locationName))
}

// SocialKey builds the cache key for a social-media search on a disaster.
func SocialKey(disasterID string) string {
	return SocialPrefix + disasterID
}

// ImageVerifyKey builds the cache key for a report image verification.
func ImageVerifyKey(reportID string) string {
	return ImageVerifyPrefix + reportID
}

// UpdatesKey builds the cache key for a disaster's recent change events.
func UpdatesKey(disasterID string) string {
	return UpdatesPrefix + disasterID
}

// LocationKey builds the cache key for a location name extracted from free
// text, so identical text is never sent to the extractor twice.
func LocationKey(text string) string {
	return LocationPrefix + strings.ToLower(strings.TrimSpace(text))
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-process key/value store with per-entry TTL. Reads of
// expired entries behave as misses and evict lazily. All operations are
// safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	clock      clockwork.Clock
}

// New creates a cache with the given default TTL.
func New(defaultTTL time.Duration) *Cache {
	return NewWithClock(defaultTTL, clockwork.NewRealClock())
}

// NewWithClock creates a cache with an injected clock. Tests use a fake
// clock to exercise expiry without sleeping.
func NewWithClock(defaultTTL time.Duration, clock clockwork.Clock) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		clock:      clock,
	}
}

// Get returns the value for key. An entry whose expiry has passed is a
// miss and is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(c.clock.Now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && !cur.expiresAt.After(c.clock.Now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL, overwriting any
// existing entry and resetting its expiry.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries, including not-yet-evicted expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PurgeExpired proactively removes expired entries and returns the count.
func (c *Cache) PurgeExpired() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for k, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, k)
			purged++
		}
	}
	return purged
}
