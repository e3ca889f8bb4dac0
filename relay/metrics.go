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

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var framesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_relay_frames_decoded_total",
	Help: "Relay frames accepted, by network and frame type",
}, []string{"network", "type"})

var framesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_relay_frames_rejected_total",
	Help: "Relay frames rejected during decoding, by network",
}, []string{"network"})
