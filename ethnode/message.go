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

import "fmt"

const (
	methodSubscribe    = "eth_subscribe"
	methodSubscription = "eth_subscription"

	subscriptionPendingTxs = "newPendingTransactions"

	subscribeRequestId = 1
)

type request struct {
	JsonRpc string `json:"jsonrpc"`
	Id      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// message covers both call responses and subscription notifications
type message struct {
	JsonRpc string               `json:"jsonrpc"`
	Id      *uint64              `json:"id,omitempty"`
	Result  any                  `json:"result,omitempty"`
	Error   *RpcError            `json:"error,omitempty"`
	Method  string               `json:"method,omitempty"`
	Params  *subscriptionResults `json:"params,omitempty"`
}

type subscriptionResults struct {
	Subscription string `json:"subscription"`
	Result       any    `json:"result"`
}

// RpcError is an error object returned by the node
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("node returned error %d: %s", e.Code, e.Message)
}
