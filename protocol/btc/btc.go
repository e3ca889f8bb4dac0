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

// Package btc implements the gateway side of a Bitcoin peer connection: version
// handshake with capability negotiation, translation of inventory announcements
// into get-data requests and decoding of the transactions and blocks the peer
// sends back.
package btc

import (
	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/protocol"
	"github.com/btcsuite/btcd/wire"
)

const (
	ProtocolName = "btc"

	// Feeds fed by the peer
	TxFeedName    = "newTxs"
	BlockFeedName = "newBlocks"

	// MinProtocolVersion is the oldest peer protocol version we negotiate with
	MinProtocolVersion = wire.MultipleAddressVersion
)

// Protocol states
var (
	StateAwaitingHandshake = protocol.NewState(1, "AwaitingHandshake")
	StateNegotiated        = protocol.NewState(2, "Negotiated")
	StateSteadyState       = protocol.NewState(3, "SteadyState")
	StateDone              = protocol.NewState(4, "Done")
)

// StateMap defines the messages accepted in each state. Version messages after the
// first one are handled before this table is consulted
var StateMap = protocol.StateMap{
	StateAwaitingHandshake: protocol.StateMapEntry{
		Transitions: []protocol.StateTransition{
			{
				Command:   wire.CmdVersion,
				NewState:  StateNegotiated,
				MatchFunc: supportedVersion,
			},
		},
	},
	StateNegotiated: protocol.StateMapEntry{
		Transitions: []protocol.StateTransition{
			{
				Command:  wire.CmdVerAck,
				NewState: StateSteadyState,
			},
		},
	},
	StateSteadyState: protocol.StateMapEntry{
		AcceptOther: true,
	},
	StateDone: protocol.StateMapEntry{},
}

func supportedVersion(msg any) bool {
	version, ok := msg.(*wire.MsgVersion)
	return ok && version.ProtocolVersion >= int32(MinProtocolVersion)
}

// Capabilities are the peer features learned from its version message. They are
// fixed for the lifetime of the connection
type Capabilities struct {
	// RequestWitnessData is set when the peer advertises witness support, in
	// which case transactions and blocks are requested with witness data
	RequestWitnessData bool
	Services           wire.ServiceFlag
	ProtocolVersion    uint32
	UserAgent          string
	StartHeight        int32
}

// MessageSender writes messages to the peer
type MessageSender interface {
	SendMessage(msg wire.Message) error
}

// Publisher receives the events decoded from the peer. It is satisfied by
// *feed.Manager
type Publisher interface {
	Publish(feedName string, evt feed.RawEvent) error
}
