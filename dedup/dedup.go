// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup implements a time-bounded set of recently seen content hashes.
//
// Entries are evicted by a background goroutine once they are older than the
// retention window. There is no cap on the number of entries: memory is bounded
// by the window multiplied by the peak event rate. Truncating the set would
// reintroduce duplicate deliveries, so an eviction backlog shows up as growth
// of the relaygw_dedup_entries gauge instead.
package dedup

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	DefaultWindow = 15 * time.Minute

	// The cleanup interval defaults to this fraction of the window
	defaultCleanupDivisor = 4
	minCleanupInterval    = 10 * time.Millisecond
)

// Hash is the content hash of an event
type Hash = [32]byte

// Cache is a concurrent set of content hashes with per-entry insertion time
type Cache struct {
	name            string
	window          time.Duration
	cleanupInterval time.Duration
	nowFunc         func() time.Time
	entries         *xsync.Map[Hash, time.Time]
	doneChan        chan struct{}
	waitGroup       sync.WaitGroup
	onceClose       sync.Once
}

// CacheOptionFunc represents a function used to modify the Cache config
type CacheOptionFunc func(*Cache)

// WithName specifies the name used to label the cache metrics
func WithName(name string) CacheOptionFunc {
	return func(c *Cache) {
		c.name = name
	}
}

// WithCleanupInterval specifies how often expired entries are evicted
func WithCleanupInterval(interval time.Duration) CacheOptionFunc {
	return func(c *Cache) {
		c.cleanupInterval = interval
	}
}

// WithClock specifies the time source. This is mostly useful for tests
func WithClock(nowFunc func() time.Time) CacheOptionFunc {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

// New returns a Cache that remembers hashes for the given window and starts its
// eviction goroutine. Close must be called to stop it
func New(window time.Duration, options ...CacheOptionFunc) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Cache{
		name:     "default",
		window:   window,
		nowFunc:  time.Now,
		entries:  xsync.NewMap[Hash, time.Time](),
		doneChan: make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	if c.cleanupInterval <= 0 {
		c.cleanupInterval = max(window/defaultCleanupDivisor, minCleanupInterval)
	}
	c.waitGroup.Add(1)
	go c.cleanupLoop()
	return c
}

// Window returns the retention window
func (c *Cache) Window() time.Duration {
	return c.window
}

// Seen returns true if the hash was recorded within the retention window.
// Entries past the window that have not been evicted yet are reported as unseen
func (c *Cache) Seen(hash Hash) bool {
	recordedAt, ok := c.entries.Load(hash)
	if !ok {
		return false
	}
	return c.nowFunc().Sub(recordedAt) <= c.window
}

// Record marks the hash as seen now
func (c *Cache) Record(hash Hash) {
	c.entries.Store(hash, c.nowFunc())
}

// Len returns the number of entries currently held, including expired entries
// that have not been evicted yet
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Evict removes all entries older than the retention window and returns the number
// of entries removed
func (c *Cache) Evict() int {
	now := c.nowFunc()
	removed := 0
	c.entries.Range(func(hash Hash, recordedAt time.Time) bool {
		if now.Sub(recordedAt) > c.window && c.evictIfStale(hash, now) {
			removed++
		}
		return true
	})
	cacheEntries.WithLabelValues(c.name).Set(float64(c.entries.Size()))
	cacheEvictions.WithLabelValues(c.name).Add(float64(removed))
	return removed
}

// evictIfStale deletes the entry only if it is still past the window, so a hash
// recorded again after Range read it survives
func (c *Cache) evictIfStale(hash Hash, now time.Time) bool {
	var deleted bool
	c.entries.Compute(
		hash,
		func(recordedAt time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
			if !loaded || now.Sub(recordedAt) <= c.window {
				return recordedAt, xsync.CancelOp
			}
			deleted = true
			return recordedAt, xsync.DeleteOp
		},
	)
	return deleted
}

// Close stops the eviction goroutine. It is safe to call more than once
func (c *Cache) Close() {
	c.onceClose.Do(func() {
		close(c.doneChan)
	})
	c.waitGroup.Wait()
}

func (c *Cache) cleanupLoop() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.doneChan:
			return
		case <-ticker.C:
			c.Evict()
		}
	}
}
