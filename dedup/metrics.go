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

package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "relaygw_dedup_entries",
	Help: "Number of content hashes held by the dedup cache",
}, []string{"cache"})

var cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relaygw_dedup_evictions_total",
	Help: "Total number of content hashes evicted from the dedup cache",
}, []string{"cache"})
