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
	"sync"

	"github.com/blinklabs-io/relaygw/filter"
	"github.com/google/uuid"
)

// DefaultQueueSize is the number of payloads a subscriber can hold before new
// payloads are dropped
const DefaultQueueSize = 1000

// Subscriber is a registered consumer of a feed. Payloads matching its filter are
// serialized to JSON and queued for the delivery loop, which reads them from
// Messages
type Subscriber struct {
	id         string
	feedName   string
	include    []string
	duplicates bool
	filter     filter.Node
	queue      chan []byte
	mutex      sync.Mutex
	closed     bool
}

func newSubscriber(
	feedName string,
	include []string,
	duplicates bool,
	node filter.Node,
	queueSize int,
) *Subscriber {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Subscriber{
		id:         uuid.NewString(),
		feedName:   feedName,
		include:    include,
		duplicates: duplicates,
		filter:     node,
		queue:      make(chan []byte, queueSize),
	}
}

// Id returns the subscription id, which is unique for the process lifetime
func (s *Subscriber) Id() string {
	return s.id
}

// FeedName returns the name of the feed the subscriber is registered with
func (s *Subscriber) FeedName() string {
	return s.feedName
}

// Include returns the projected fields
func (s *Subscriber) Include() []string {
	return s.include
}

// Duplicates reports whether the subscriber receives events already seen within
// the dedup window
func (s *Subscriber) Duplicates() bool {
	return s.duplicates
}

// Filter returns the compiled filter, or nil if the subscriber has none
func (s *Subscriber) Filter() filter.Node {
	return s.filter
}

// Messages returns the channel of serialized payloads. The channel is closed when
// the subscriber is removed from its feed
func (s *Subscriber) Messages() <-chan []byte {
	return s.queue
}

// Len returns the number of payloads waiting in the queue
func (s *Subscriber) Len() int {
	return len(s.queue)
}

// enqueue adds a payload without blocking. It returns false if the payload was
// dropped because the queue is full or the subscriber is closed
func (s *Subscriber) enqueue(payload []byte) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- payload:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
