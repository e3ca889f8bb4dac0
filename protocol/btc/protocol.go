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
	"bytes"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/protocol"
	"github.com/btcsuite/btcd/wire"
)

// Protocol is the state machine for a single peer connection. It is driven by
// HandleMessage and writes its requests through the MessageSender
type Protocol struct {
	config         Config
	sender         MessageSender
	publisher      Publisher
	errorChan      chan error
	doneChan       chan struct{}
	stateMutex     sync.Mutex
	currentState   protocol.State
	capabilities   *Capabilities
	handshakeTimer *time.Timer
	onceStart      sync.Once
	onceClose      sync.Once
}

// NewProtocol returns a new Protocol in the AwaitingHandshake state
func NewProtocol(
	sender MessageSender,
	publisher Publisher,
	cfg Config,
) *Protocol {
	return &Protocol{
		config:       cfg,
		sender:       sender,
		publisher:    publisher,
		errorChan:    make(chan error, 1),
		doneChan:     make(chan struct{}),
		currentState: StateAwaitingHandshake,
	}
}

// ErrorChan returns the channel fatal protocol errors are reported on
func (p *Protocol) ErrorChan() <-chan error {
	return p.errorChan
}

// State returns the current protocol state
func (p *Protocol) State() protocol.State {
	p.stateMutex.Lock()
	defer p.stateMutex.Unlock()
	return p.currentState
}

// Capabilities returns the negotiated peer capabilities. It returns false until
// the peer's version message has been received
func (p *Protocol) Capabilities() (Capabilities, bool) {
	p.stateMutex.Lock()
	defer p.stateMutex.Unlock()
	if p.capabilities == nil {
		return Capabilities{}, false
	}
	return *p.capabilities, true
}

// Start arms the handshake timer and sends our version message
func (p *Protocol) Start() error {
	var err error
	p.onceStart.Do(func() {
		p.config.Logger.Debug(
			"starting protocol",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.config.ConnectionId,
		)
		p.stateMutex.Lock()
		p.handshakeTimer = time.AfterFunc(
			p.config.HandshakeTimeout,
			p.handshakeTimeout,
		)
		p.stateMutex.Unlock()
		err = p.sender.SendMessage(p.versionMessage())
	})
	return err
}

// Close stops the protocol and discards the negotiated capabilities. It is safe
// to call more than once
func (p *Protocol) Close() {
	p.onceClose.Do(func() {
		p.stateMutex.Lock()
		if p.handshakeTimer != nil {
			p.handshakeTimer.Stop()
		}
		p.capabilities = nil
		p.currentState = StateDone
		p.stateMutex.Unlock()
		close(p.doneChan)
	})
}

// HandleMessage decodes a message payload from the peer and dispatches it. A
// *DecodeError is returned for payloads that fail to decode, which callers should
// treat as non-fatal
func (p *Protocol) HandleMessage(command string, payload []byte) error {
	select {
	case <-p.doneChan:
		return protocol.ErrProtocolShuttingDown
	default:
	}
	messagesReceived.WithLabelValues(command).Inc()
	// Full data is decoded by OnFullDataReceived once the state allows it
	if command == wire.CmdTx || command == wire.CmdBlock {
		if !p.accept(command, nil) {
			return nil
		}
		return p.OnFullDataReceived(command, payload)
	}
	msg := newMessage(command)
	if msg == nil {
		p.config.Logger.Debug(
			"ignoring unsupported message",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.config.ConnectionId,
			"command", command,
		)
		return nil
	}
	if err := msg.BtcDecode(bytes.NewBuffer(payload), p.protocolVersion(), wire.WitnessEncoding); err != nil {
		decodeErrors.WithLabelValues(command).Inc()
		return &DecodeError{Command: command, Err: err}
	}
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return p.handleVersion(msg)
	case *wire.MsgVerAck:
		return p.handleVerAck()
	}
	if !p.accept(command, msg) {
		return nil
	}
	switch msg := msg.(type) {
	case *wire.MsgInv:
		return p.OnInventoryAnnounced(msg.InvList)
	case *wire.MsgPing:
		return p.sender.SendMessage(wire.NewMsgPong(msg.Nonce))
	case *wire.MsgNotFound:
		p.config.Logger.Debug(
			"peer does not have requested items",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.config.ConnectionId,
			"count", len(msg.InvList),
		)
	}
	return nil
}

// OnInventoryAnnounced requests the full data for the announced items with a
// single get-data message. Item order is preserved, and transactions and blocks
// are requested with witness data when the peer supports it
func (p *Protocol) OnInventoryAnnounced(items []*wire.InvVect) error {
	if len(items) == 0 {
		return nil
	}
	p.stateMutex.Lock()
	requestWitness := p.capabilities != nil && p.capabilities.RequestWitnessData
	p.stateMutex.Unlock()
	getData := wire.NewMsgGetDataSizeHint(uint(len(items)))
	for _, item := range items {
		invType := item.Type
		if requestWitness {
			switch invType {
			case wire.InvTypeTx:
				invType = wire.InvTypeWitnessTx
			case wire.InvTypeBlock:
				invType = wire.InvTypeWitnessBlock
			}
		}
		if err := getData.AddInvVect(wire.NewInvVect(invType, &item.Hash)); err != nil {
			return fmt.Errorf("%s: build getdata: %w", ProtocolName, err)
		}
		itemsRequested.WithLabelValues(invType.String()).Inc()
	}
	return p.sender.SendMessage(getData)
}

// OnFullDataReceived decodes a transaction or block sent by the peer and publishes
// it. The event hash is computed from the decoded data
func (p *Protocol) OnFullDataReceived(command string, payload []byte) error {
	var evt feed.RawEvent
	var feedName string
	switch command {
	case wire.CmdTx:
		msgTx := new(wire.MsgTx)
		if err := msgTx.BtcDecode(bytes.NewBuffer(payload), p.protocolVersion(), wire.WitnessEncoding); err != nil {
			decodeErrors.WithLabelValues(command).Inc()
			return &DecodeError{Command: command, Err: err}
		}
		feedName = TxFeedName
		evt = feed.RawEvent{
			Hash:    msgTx.TxHash(),
			Source:  feed.SourcePeerSocket,
			Raw:     payload,
			Decoded: msgTx,
		}
	case wire.CmdBlock:
		msgBlock := new(wire.MsgBlock)
		if err := msgBlock.BtcDecode(bytes.NewBuffer(payload), p.protocolVersion(), wire.WitnessEncoding); err != nil {
			decodeErrors.WithLabelValues(command).Inc()
			return &DecodeError{Command: command, Err: err}
		}
		feedName = BlockFeedName
		evt = feed.RawEvent{
			Hash:    msgBlock.BlockHash(),
			Source:  feed.SourcePeerSocket,
			Raw:     payload,
			Decoded: msgBlock,
		}
	default:
		return fmt.Errorf("%s: %q does not carry full data", ProtocolName, command)
	}
	if err := p.publisher.Publish(feedName, evt); err != nil {
		// Publish failures concern subscribers, not the peer
		p.config.Logger.Warn(
			"failed to publish event",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.config.ConnectionId,
			"feed", feedName,
			"error", err,
		)
	}
	return nil
}

func (p *Protocol) handleVersion(msg *wire.MsgVersion) error {
	p.stateMutex.Lock()
	if p.capabilities != nil || p.currentState != StateAwaitingHandshake {
		p.stateMutex.Unlock()
		p.config.Logger.Debug(
			"ignoring duplicate version message",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.config.ConnectionId,
		)
		return nil
	}
	next, ok := StateMap.Next(p.currentState, wire.CmdVersion, msg)
	if !ok {
		p.stateMutex.Unlock()
		return &UnsupportedVersionError{ProtocolVersion: msg.ProtocolVersion}
	}
	pver := min(uint32(max(msg.ProtocolVersion, 0)), p.config.ProtocolVersion)
	p.capabilities = &Capabilities{
		RequestWitnessData: msg.Services&wire.SFNodeWitness == wire.SFNodeWitness,
		Services:           msg.Services,
		ProtocolVersion:    pver,
		UserAgent:          msg.UserAgent,
		StartHeight:        msg.LastBlock,
	}
	p.currentState = next
	caps := *p.capabilities
	p.stateMutex.Unlock()
	p.config.Logger.Debug(
		"received peer version",
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.config.ConnectionId,
		"protocol_version", caps.ProtocolVersion,
		"user_agent", caps.UserAgent,
		"witness", caps.RequestWitnessData,
	)
	return p.sender.SendMessage(wire.NewMsgVerAck())
}

func (p *Protocol) handleVerAck() error {
	if !p.accept(wire.CmdVerAck, nil) {
		return nil
	}
	p.stateMutex.Lock()
	if p.handshakeTimer != nil {
		p.handshakeTimer.Stop()
	}
	p.stateMutex.Unlock()
	p.config.Logger.Debug(
		"handshake complete",
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.config.ConnectionId,
	)
	return nil
}

// accept applies the state map to a message and reports whether it may be
// processed in the current state
func (p *Protocol) accept(command string, msg wire.Message) bool {
	p.stateMutex.Lock()
	current := p.currentState
	next, ok := StateMap.Next(current, command, msg)
	if ok {
		p.currentState = next
	}
	p.stateMutex.Unlock()
	if !ok {
		p.config.Logger.Debug(
			"dropping message not allowed in current state",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.config.ConnectionId,
			"command", command,
			"state", current.String(),
		)
	}
	return ok
}

func (p *Protocol) handshakeTimeout() {
	p.stateMutex.Lock()
	current := p.currentState
	p.stateMutex.Unlock()
	if current == StateSteadyState || current == StateDone {
		return
	}
	handshakeTimeouts.Inc()
	err := &HandshakeTimeoutError{
		Timeout: p.config.HandshakeTimeout,
		State:   current.String(),
	}
	select {
	case p.errorChan <- err:
	case <-p.doneChan:
	}
}

func (p *Protocol) protocolVersion() uint32 {
	p.stateMutex.Lock()
	defer p.stateMutex.Unlock()
	if p.capabilities != nil {
		return p.capabilities.ProtocolVersion
	}
	return p.config.ProtocolVersion
}

func (p *Protocol) versionMessage() *wire.MsgVersion {
	addr := wire.NewNetAddressIPPort(net.IPv4zero, 0, p.config.Services)
	msg := wire.NewMsgVersion(addr, addr, rand.Uint64(), 0)
	// #nosec G115 -- protocol versions fit in int32
	msg.ProtocolVersion = int32(p.config.ProtocolVersion)
	msg.Services = p.config.Services
	msg.UserAgent = p.config.UserAgent
	return msg
}

func newMessage(command string) wire.Message {
	switch command {
	case wire.CmdVersion:
		return &wire.MsgVersion{}
	case wire.CmdVerAck:
		return &wire.MsgVerAck{}
	case wire.CmdInv:
		return &wire.MsgInv{}
	case wire.CmdPing:
		return &wire.MsgPing{}
	case wire.CmdPong:
		return &wire.MsgPong{}
	case wire.CmdNotFound:
		return &wire.MsgNotFound{}
	}
	return nil
}
