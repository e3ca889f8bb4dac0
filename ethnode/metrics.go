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

package ethnode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transactionsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "relaygw_ethnode_transactions_received_total",
	Help: "Pending transactions received from the blockchain node",
})

var notificationsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "relaygw_ethnode_notifications_skipped_total",
	Help: "Subscription notifications without a usable transaction object",
})
