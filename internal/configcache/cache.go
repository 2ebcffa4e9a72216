// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package configcache holds resolved configuration values for a bounded
// time. Keys are scoped by environment code by the caller, so values from
// different environments never collide.
package configcache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL bounds how stale a served value may be.
const DefaultTTL = 5 * time.Minute

// Stats is a point-in-time snapshot of cache behavior.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	TTL       time.Duration
}

// Cache is a thread-safe TTL map from resolution key to value. Expiry is
// measured from insertion; hits do not extend an entry's lifetime. Expired
// entries are evicted lazily, with EvictExpired available for proactive
// reclamation.
type Cache struct {
	inner *ttlcache.Cache[string, string]
	ttl   time.Duration
}

// New creates a Cache with the given TTL; zero or negative falls back to
// DefaultTTL. No background goroutine is started: expired entries are
// treated as absent on read and reclaimed by EvictExpired.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		inner: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		ttl: ttl,
	}
}

// Get returns the cached value for key, or ok=false if the key is absent
// or its entry has outlived the TTL.
func (c *Cache) Get(key string) (string, bool) {
	item := c.inner.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Put stores value under key with a fresh TTL.
func (c *Cache) Put(key, value string) {
	c.inner.Set(key, value, ttlcache.DefaultTTL)
}

// Delete removes a single key.
func (c *Cache) Delete(key string) {
	c.inner.Delete(key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.inner.DeleteAll()
}

// EvictExpired removes entries past their TTL to reclaim memory. Callers
// never need to invoke this for correctness.
func (c *Cache) EvictExpired() {
	c.inner.DeleteExpired()
}

// Stats reports current size and lifetime hit/miss/eviction counts.
func (c *Cache) Stats() Stats {
	m := c.inner.Metrics()
	return Stats{
		Size:      c.inner.Len(),
		Hits:      m.Hits,
		Misses:    m.Misses,
		Evictions: m.Evictions,
		TTL:       c.ttl,
	}
}
