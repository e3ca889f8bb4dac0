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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	dropReasonInvalid     = "invalid"
	dropReasonDuplicate   = "duplicate"
	dropReasonSerialize   = "serialize"
	dropReasonQueueFull   = "queue_full"
	dropReasonFilterError = "filter_error"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_feed_events_published_total",
	Help: "Total number of events published to a feed with at least one subscriber",
}, []string{"feed"})

var eventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_feed_events_delivered_total",
	Help: "Total number of payloads enqueued to subscribers",
}, []string{"feed"})

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_feed_dropped_total",
	Help: "Total number of events or payloads dropped, by reason",
}, []string{"feed", "reason"})

var subscriberCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "relaygw_feed_subscribers",
	Help: "Number of active subscribers per feed",
}, []string{"feed"})
