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

package btc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_btc_messages_received_total",
	Help: "Total number of messages received from Bitcoin peers",
}, []string{"command"})

var decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_btc_decode_errors_total",
	Help: "Total number of Bitcoin peer messages that failed to decode",
}, []string{"command"})

var itemsRequested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_btc_getdata_items_total",
	Help: "Total number of inventory items requested from Bitcoin peers",
}, []string{"type"})

var handshakeTimeouts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "relaygw_btc_handshake_timeouts_total",
	Help: "Total number of Bitcoin peer connections closed by the handshake timeout",
})
