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

package dedup_test

import (
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/relaygw/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testClock struct {
	sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.Lock()
	c.now = c.now.Add(d)
	c.Unlock()
}

func TestSeenRecord(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := dedup.New(time.Minute)
	defer c.Close()
	hash := dedup.Hash{0x01}
	assert.False(t, c.Seen(hash))
	c.Record(hash)
	assert.True(t, c.Seen(hash))
	assert.False(t, c.Seen(dedup.Hash{0x02}))
	assert.Equal(t, 1, c.Len())
}

func TestWindowExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := dedup.New(
		time.Minute,
		dedup.WithClock(clock.Now),
		// Keep the background eviction out of the way
		dedup.WithCleanupInterval(time.Hour),
	)
	defer c.Close()
	hash := dedup.Hash{0xaa}
	c.Record(hash)
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen(hash))
	clock.Advance(2 * time.Second)
	// Expired entries are unseen even before eviction runs
	assert.False(t, c.Seen(hash))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Evict())
	assert.Equal(t, 0, c.Len())
}

func TestEvictKeepsFreshEntries(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := dedup.New(
		time.Minute,
		dedup.WithClock(clock.Now),
		dedup.WithCleanupInterval(time.Hour),
	)
	defer c.Close()
	c.Record(dedup.Hash{0x01})
	clock.Advance(45 * time.Second)
	c.Record(dedup.Hash{0x02})
	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, c.Evict())
	assert.False(t, c.Seen(dedup.Hash{0x01}))
	assert.True(t, c.Seen(dedup.Hash{0x02}))
}

func TestBackgroundEviction(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := dedup.New(
		20*time.Millisecond,
		dedup.WithName("test-background"),
		dedup.WithCleanupInterval(5*time.Millisecond),
	)
	defer c.Close()
	c.Record(dedup.Hash{0x01})
	require.Eventually(
		t,
		func() bool { return c.Len() == 0 },
		2*time.Second,
		5*time.Millisecond,
	)
}

func TestConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := dedup.New(time.Minute, dedup.WithCleanupInterval(time.Millisecond))
	defer c.Close()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := range 500 {
				hash := dedup.Hash{byte(worker), byte(j), byte(j >> 8)}
				c.Record(hash)
				if !c.Seen(hash) {
					t.Errorf("hash recorded by worker %d was not seen", worker)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8*500, c.Len())
}

func TestCloseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := dedup.New(0)
	assert.Equal(t, dedup.DefaultWindow, c.Window())
	c.Close()
	c.Close()
}
