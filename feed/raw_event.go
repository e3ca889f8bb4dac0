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

// Package feed implements the distribution side of the gateway: named feeds of
// decoded blockchain events, their subscribers and the manager that routes
// subscribe and publish calls to them.
package feed

import (
	"encoding/hex"
)

// Source identifies where a RawEvent entered the gateway
type Source uint8

const (
	SourceUnknown Source = iota
	SourcePeerSocket
	SourceRelaySocket
	SourceBlockchainRPC
)

func (s Source) String() string {
	switch s {
	case SourcePeerSocket:
		return "peer-socket"
	case SourceRelaySocket:
		return "relay-network"
	case SourceBlockchainRPC:
		return "blockchain-rpc"
	default:
		return "unknown"
	}
}

// RawEvent is a transaction or block as received from a peer, the relay network
// or a node RPC endpoint, before any per-feed processing.
//
// Hash is always computed locally from the canonical bytes of the event. Exactly
// one of Raw or Fields carries the payload. Decoded optionally holds the object
// the producer already decoded from Raw, so a feed kind does not decode it twice
type RawEvent struct {
	Hash    [32]byte
	Source  Source
	Raw     []byte
	Fields  map[string]any
	Decoded any
}

// HashHex returns the hash as lowercase hex without a prefix
func (e RawEvent) HashHex() string {
	return hex.EncodeToString(e.Hash[:])
}
