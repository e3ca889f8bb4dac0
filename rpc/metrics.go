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

package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "relaygw_rpc_connections",
	Help: "Open RPC websocket connections",
})

var requestsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_rpc_requests_total",
	Help: "RPC requests handled, by method and result",
}, []string{"method", "result"})

var notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_rpc_notifications_sent_total",
	Help: "Feed notifications written to RPC clients, by feed",
}, []string{"feed"})
