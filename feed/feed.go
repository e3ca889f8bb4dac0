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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/relaygw/dedup"
	"github.com/blinklabs-io/relaygw/filter"
	"github.com/sugawarayuuta/sonnet"
)

// Feed is a named event channel. It owns its subscribers and, when configured,
// a dedup cache
type Feed struct {
	kind             Kind
	logger           *slog.Logger
	queueSize        int
	dedupWindow      time.Duration
	dedupCache       *dedup.Cache
	publishMutex     sync.Mutex
	subscribersMutex sync.RWMutex
	subscribers      map[string]*Subscriber
	closed           bool
	onceClose        sync.Once
}

// FeedOptionFunc represents a function used to modify the Feed config
type FeedOptionFunc func(*Feed)

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) FeedOptionFunc {
	return func(f *Feed) {
		f.logger = logger
	}
}

// WithQueueSize specifies the queue size of new subscribers
func WithQueueSize(queueSize int) FeedOptionFunc {
	return func(f *Feed) {
		f.queueSize = queueSize
	}
}

// WithDedup enables deduplication of content hashes seen within the window
func WithDedup(window time.Duration) FeedOptionFunc {
	return func(f *Feed) {
		f.dedupWindow = window
	}
}

// NewFeed returns a Feed for the given kind
func NewFeed(kind Kind, options ...FeedOptionFunc) *Feed {
	f := &Feed{
		kind:        kind,
		queueSize:   DefaultQueueSize,
		subscribers: make(map[string]*Subscriber),
	}
	for _, option := range options {
		option(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if f.dedupWindow > 0 {
		f.dedupCache = dedup.New(
			f.dedupWindow,
			dedup.WithName(kind.Name()),
		)
	}
	return f
}

// Name returns the feed name
func (f *Feed) Name() string {
	return f.kind.Name()
}

// Kind returns the feed kind
func (f *Feed) Kind() Kind {
	return f.kind
}

// Dedup reports whether the feed suppresses duplicate events
func (f *Feed) Dedup() bool {
	return f.dedupCache != nil
}

// SubscriberCount returns the number of current subscribers
func (f *Feed) SubscriberCount() int {
	f.subscribersMutex.RLock()
	defer f.subscribersMutex.RUnlock()
	return len(f.subscribers)
}

// Subscribe validates the options against the feed's schemas and registers a new
// subscriber
func (f *Feed) Subscribe(opts Options) (*Subscriber, error) {
	include, err := normalizeInclude(opts.Include, f.kind)
	if err != nil {
		return nil, err
	}
	var node filter.Node
	if hasFilters(opts.Filters) {
		node, err = filter.Compile(opts.Filters, f.kind.Filters())
		if err != nil {
			return nil, &InvalidOptionsError{
				Reason: err.Error(),
				Err:    err,
			}
		}
	}
	sub := newSubscriber(
		f.Name(),
		include,
		opts.Duplicates,
		node,
		f.queueSize,
	)
	f.subscribersMutex.Lock()
	defer f.subscribersMutex.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	f.subscribers[sub.id] = sub
	subscriberCount.WithLabelValues(f.Name()).Set(float64(len(f.subscribers)))
	f.logger.Debug(
		"added subscriber",
		"component", "feed",
		"feed", f.Name(),
		"subscription_id", sub.id,
		"duplicates", sub.duplicates,
		"include", include,
		"filter", filterString(node),
	)
	return sub, nil
}

// Unsubscribe removes the subscriber and closes its queue. It returns false if
// the id is not subscribed to this feed
func (f *Feed) Unsubscribe(id string) bool {
	f.subscribersMutex.Lock()
	sub, ok := f.subscribers[id]
	if ok {
		delete(f.subscribers, id)
		subscriberCount.WithLabelValues(f.Name()).Set(float64(len(f.subscribers)))
	}
	f.subscribersMutex.Unlock()
	if !ok {
		return false
	}
	sub.close()
	f.logger.Debug(
		"removed subscriber",
		"component", "feed",
		"feed", f.Name(),
		"subscription_id", id,
	)
	return true
}

// Publish runs the event through the feed pipeline and enqueues a payload for
// every matching subscriber. Malformed and duplicate events are dropped silently.
// An error is only returned if a subscriber's filter could not be evaluated. That
// subscriber is skipped and delivery to the others continues
func (f *Feed) Publish(evt RawEvent) error {
	// Publishes are serialized so every subscriber observes publish order
	f.publishMutex.Lock()
	defer f.publishMutex.Unlock()
	subs := f.snapshot()
	if len(subs) == 0 {
		// The hash still counts as seen for subscribers that arrive later
		if f.dedupCache != nil && f.kind.Validate(evt) {
			f.dedupCache.Record(evt.Hash)
		}
		return nil
	}
	if !f.kind.Validate(evt) {
		eventsDropped.WithLabelValues(f.Name(), dropReasonInvalid).Inc()
		f.logger.Debug(
			"dropping malformed event",
			"component", "feed",
			"feed", f.Name(),
			"source", evt.Source.String(),
			"hash", evt.HashHex(),
		)
		return nil
	}
	var seen bool
	if f.dedupCache != nil {
		seen = f.dedupCache.Seen(evt.Hash)
		if seen && !anyDuplicates(subs) {
			eventsDropped.WithLabelValues(f.Name(), dropReasonDuplicate).Inc()
			return nil
		}
	}
	fields, err := f.kind.Serialize(evt)
	if err != nil {
		eventsDropped.WithLabelValues(f.Name(), dropReasonSerialize).Inc()
		f.logger.Debug(
			"dropping event that failed to serialize",
			"component", "feed",
			"feed", f.Name(),
			"source", evt.Source.String(),
			"hash", evt.HashHex(),
			"error", err,
		)
		return nil
	}
	eventsPublished.WithLabelValues(f.Name()).Inc()
	// Record before delivery so the hash counts as seen even when no
	// subscriber matches
	if f.dedupCache != nil {
		f.dedupCache.Record(evt.Hash)
	}
	// Subscribers sharing a projection share the encoded payload
	payloads := make(map[string][]byte)
	var evalErrs []error
	for _, sub := range subs {
		if seen && !sub.duplicates {
			continue
		}
		if sub.filter != nil {
			ok, err := sub.filter.Evaluate(fields)
			if err != nil {
				eventsDropped.WithLabelValues(f.Name(), dropReasonFilterError).Inc()
				evalErrs = append(
					evalErrs,
					fmt.Errorf(
						"evaluate filter of subscription %s on feed %s: %w",
						sub.id,
						f.Name(),
						err,
					),
				)
				continue
			}
			if !ok {
				continue
			}
		}
		key := strings.Join(sub.include, ",")
		payload, ok := payloads[key]
		if !ok {
			payload, err = sonnet.Marshal(Project(fields, sub.include))
			if err != nil {
				return fmt.Errorf("encode payload for feed %s: %w", f.Name(), err)
			}
			payloads[key] = payload
		}
		if !sub.enqueue(payload) {
			eventsDropped.WithLabelValues(f.Name(), dropReasonQueueFull).Inc()
			continue
		}
		eventsDelivered.WithLabelValues(f.Name()).Inc()
	}
	return errors.Join(evalErrs...)
}

// Close removes all subscribers and stops the dedup cache
func (f *Feed) Close() {
	f.onceClose.Do(func() {
		f.subscribersMutex.Lock()
		f.closed = true
		subs := f.subscribers
		f.subscribers = make(map[string]*Subscriber)
		f.subscribersMutex.Unlock()
		for _, sub := range subs {
			sub.close()
		}
		subscriberCount.WithLabelValues(f.Name()).Set(0)
		if f.dedupCache != nil {
			f.dedupCache.Close()
		}
	})
}

func (f *Feed) snapshot() []*Subscriber {
	f.subscribersMutex.RLock()
	defer f.subscribersMutex.RUnlock()
	ret := make([]*Subscriber, 0, len(f.subscribers))
	for _, sub := range f.subscribers {
		ret = append(ret, sub)
	}
	return ret
}

func anyDuplicates(subs []*Subscriber) bool {
	for _, sub := range subs {
		if sub.duplicates {
			return true
		}
	}
	return false
}

func filterString(node filter.Node) string {
	if node == nil {
		return ""
	}
	return node.String()
}

// Project builds a payload holding only the included fields. Dotted paths are
// placed at the same nested position. Fields missing from the event are omitted.
// The include list must not hold both a field and one of its parents
func Project(fields filter.Fields, include []string) map[string]any {
	ret := make(map[string]any, len(include))
	for _, path := range include {
		value, ok := filter.Lookup(fields, path)
		if !ok {
			continue
		}
		keys := strings.Split(path, ".")
		cur := ret
		for _, key := range keys[:len(keys)-1] {
			next, ok := cur[key].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[key] = next
			}
			cur = next
		}
		cur[keys[len(keys)-1]] = value
	}
	return ret
}
