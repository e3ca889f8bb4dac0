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

package feed

import (
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// Manager is the registry of feeds. It validates subscribe requests and routes
// publish calls to the named feed
type Manager struct {
	logger        *slog.Logger
	feedsMutex    sync.RWMutex
	feeds         map[string]*Feed
	subscriptions *xsync.Map[string, *Feed]
	closed        bool
}

// ManagerOptionFunc represents a function used to modify the Manager config
type ManagerOptionFunc func(*Manager)

// WithManagerLogger specifies the logger
func WithManagerLogger(logger *slog.Logger) ManagerOptionFunc {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager returns an empty Manager
func NewManager(options ...ManagerOptionFunc) *Manager {
	m := &Manager{
		feeds:         make(map[string]*Feed),
		subscriptions: xsync.NewMap[string, *Feed](),
	}
	for _, option := range options {
		option(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return m
}

// RegisterFeed adds a feed under its name
func (m *Manager) RegisterFeed(feed *Feed) error {
	m.feedsMutex.Lock()
	defer m.feedsMutex.Unlock()
	if m.closed {
		return ErrFeedClosed
	}
	if _, ok := m.feeds[feed.Name()]; ok {
		return &DuplicateFeedError{Name: feed.Name()}
	}
	m.feeds[feed.Name()] = feed
	m.logger.Debug(
		"registered feed",
		"component", "feed",
		"feed", feed.Name(),
		"dedup", feed.Dedup(),
	)
	return nil
}

// Feed returns the named feed
func (m *Manager) Feed(name string) (*Feed, bool) {
	m.feedsMutex.RLock()
	defer m.feedsMutex.RUnlock()
	feed, ok := m.feeds[name]
	return feed, ok
}

// FeedNames returns the registered feed names in sorted order
func (m *Manager) FeedNames() []string {
	m.feedsMutex.RLock()
	defer m.feedsMutex.RUnlock()
	ret := make([]string, 0, len(m.feeds))
	for name := range m.feeds {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// FieldsOf returns the include field schema of the named feed
func (m *Manager) FieldsOf(name string) ([]string, bool) {
	feed, ok := m.Feed(name)
	if !ok {
		return nil, false
	}
	return feed.Kind().Fields(), true
}

// FiltersOf returns the filter predicate names of the named feed
func (m *Manager) FiltersOf(name string) ([]string, bool) {
	feed, ok := m.Feed(name)
	if !ok {
		return nil, false
	}
	return feed.Kind().Filters().Names(), true
}

// Subscribe registers a new subscriber with the named feed
func (m *Manager) Subscribe(name string, opts Options) (*Subscriber, error) {
	m.feedsMutex.RLock()
	closed := m.closed
	count := len(m.feeds)
	feed, ok := m.feeds[name]
	m.feedsMutex.RUnlock()
	if closed {
		return nil, ErrFeedClosed
	}
	if count == 0 {
		return nil, &AccountAccessError{}
	}
	if !ok {
		return nil, &UnknownFeedError{
			Name:      name,
			Available: m.FeedNames(),
		}
	}
	sub, err := feed.Subscribe(opts)
	if err != nil {
		return nil, err
	}
	m.subscriptions.Store(sub.Id(), feed)
	return sub, nil
}

// Unsubscribe removes the subscriber with the given id from its feed. Unknown ids
// are ignored. It returns true if a subscriber was removed
func (m *Manager) Unsubscribe(id string) bool {
	feed, ok := m.subscriptions.LoadAndDelete(id)
	if !ok {
		return false
	}
	return feed.Unsubscribe(id)
}

// Publish sends the event to the named feed. Unknown feeds and feeds without
// subscribers are a no-op
func (m *Manager) Publish(name string, evt RawEvent) error {
	feed, ok := m.Feed(name)
	if !ok {
		return nil
	}
	if feed.SubscriberCount() == 0 {
		return nil
	}
	return feed.Publish(evt)
}

// Close closes all feeds and their subscribers
func (m *Manager) Close() {
	m.feedsMutex.Lock()
	if m.closed {
		m.feedsMutex.Unlock()
		return
	}
	m.closed = true
	feeds := make([]*Feed, 0, len(m.feeds))
	for _, feed := range m.feeds {
		feeds = append(feeds, feed)
	}
	m.feedsMutex.Unlock()
	for _, feed := range feeds {
		feed.Close()
	}
	m.subscriptions.Clear()
}
