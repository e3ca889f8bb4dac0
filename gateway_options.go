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

package relaygw

import (
	"log/slog"
	"math/big"
	"time"
)

// GatewayOptionFunc is a type that represents functions that modify the Gateway config
type GatewayOptionFunc func(*Gateway)

// WithNetwork specifies the network
func WithNetwork(network Network) GatewayOptionFunc {
	return func(g *Gateway) {
		g.network = network
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) GatewayOptionFunc {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithDedupWindow specifies how long a hash is remembered by the feeds that
// suppress duplicates. A value of 0 disables deduplication
func WithDedupWindow(window time.Duration) GatewayOptionFunc {
	return func(g *Gateway) {
		g.dedupWindow = window
	}
}

// WithQueueSize specifies the per-subscriber queue size
func WithQueueSize(queueSize int) GatewayOptionFunc {
	return func(g *Gateway) {
		g.queueSize = queueSize
	}
}

// WithChainId overrides the chain ID used to recover transaction senders on
// Ethereum networks
func WithChainId(chainId *big.Int) GatewayOptionFunc {
	return func(g *Gateway) {
		g.chainId = chainId
	}
}

// WithHandshakeTimeout specifies the peer handshake timeout
func WithHandshakeTimeout(timeout time.Duration) GatewayOptionFunc {
	return func(g *Gateway) {
		g.handshakeTimeout = timeout
	}
}

// WithUserAgent specifies the user agent advertised to peers
func WithUserAgent(userAgent string) GatewayOptionFunc {
	return func(g *Gateway) {
		g.userAgent = userAgent
	}
}

// WithPeerClosedFunc specifies a function called after a peer connection closes
func WithPeerClosedFunc(peerClosedFunc PeerManagerPeerClosedFunc) GatewayOptionFunc {
	return func(g *Gateway) {
		g.peerClosedFunc = peerClosedFunc
	}
}
