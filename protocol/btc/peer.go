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
	"errors"
	"net"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// Peer runs the protocol over a network connection. Incoming frames are read by a
// dedicated goroutine and handed to the protocol in order
type Peer struct {
	conn      net.Conn
	config    Config
	protocol  *Protocol
	sendMutex sync.Mutex
	errorChan chan error
	doneChan  chan struct{}
	waitGroup sync.WaitGroup
	onceStart sync.Once
	onceStop  sync.Once
	onceClose sync.Once
}

// NewPeer returns a Peer for the connection. Decoded events are sent to the
// publisher
func NewPeer(conn net.Conn, publisher Publisher, cfg Config) *Peer {
	p := &Peer{
		conn:      conn,
		config:    cfg,
		errorChan: make(chan error, 1),
		doneChan:  make(chan struct{}),
	}
	p.protocol = NewProtocol(p, publisher, cfg)
	return p
}

// Protocol returns the peer's protocol state machine
func (p *Peer) Protocol() *Protocol {
	return p.protocol
}

// ErrorChan returns the channel a fatal connection error is reported on. The
// channel is closed by Close
func (p *Peer) ErrorChan() <-chan error {
	return p.errorChan
}

// Start begins reading from the connection and starts the handshake
func (p *Peer) Start() error {
	var err error
	p.onceStart.Do(func() {
		p.waitGroup.Add(2)
		go p.readLoop()
		go p.watchProtocol()
		if startErr := p.protocol.Start(); startErr != nil {
			err = startErr
			p.stop()
		}
	})
	return err
}

// SendMessage writes a message to the peer
func (p *Peer) SendMessage(msg wire.Message) error {
	p.sendMutex.Lock()
	defer p.sendMutex.Unlock()
	_, err := wire.WriteMessageWithEncodingN(
		p.conn,
		msg,
		p.protocol.protocolVersion(),
		p.config.Network,
		wire.WitnessEncoding,
	)
	return err
}

// Close shuts down the connection and waits for the peer goroutines to exit
func (p *Peer) Close() error {
	p.stop()
	p.waitGroup.Wait()
	p.onceClose.Do(func() {
		close(p.errorChan)
	})
	return nil
}

func (p *Peer) stop() {
	p.onceStop.Do(func() {
		close(p.doneChan)
		p.protocol.Close()
		_ = p.conn.Close()
	})
}

func (p *Peer) sendError(err error) {
	// Errors caused by our own shutdown are not reported
	select {
	case <-p.doneChan:
		return
	default:
	}
	select {
	case p.errorChan <- err:
	default:
	}
	p.stop()
}

func (p *Peer) readLoop() {
	defer p.waitGroup.Done()
	for {
		frame, err := ReadFrame(p.conn, p.config.Network)
		if err != nil {
			var decodeErr *DecodeError
			if frame != nil && errors.As(err, &decodeErr) {
				p.logDecodeError(decodeErr)
				decodeErrors.WithLabelValues(decodeErr.Command).Inc()
				continue
			}
			p.sendError(err)
			return
		}
		if err := p.protocol.HandleMessage(frame.CommandString(), frame.Payload); err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				p.logDecodeError(decodeErr)
				continue
			}
			p.sendError(err)
			return
		}
	}
}

func (p *Peer) watchProtocol() {
	defer p.waitGroup.Done()
	select {
	case <-p.doneChan:
	case err := <-p.protocol.ErrorChan():
		p.sendError(err)
	}
}

func (p *Peer) logDecodeError(err *DecodeError) {
	p.config.Logger.Debug(
		"dropping message that failed to decode",
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.config.ConnectionId,
		"command", err.Command,
		"error", err.Err,
	)
}
