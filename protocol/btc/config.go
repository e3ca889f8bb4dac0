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
	"io"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/wire"
)

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultUserAgent        = "/relaygw:0.1.0/"
)

// Config is used to configure the protocol and peer
type Config struct {
	Logger           *slog.Logger
	ConnectionId     string
	Network          wire.BitcoinNet
	ProtocolVersion  uint32
	Services         wire.ServiceFlag
	UserAgent        string
	HandshakeTimeout time.Duration
}

// ConfigOptionFunc represents a function used to modify the protocol config
type ConfigOptionFunc func(*Config)

// NewConfig returns a new protocol config object with the provided options
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		Network:          wire.MainNet,
		ProtocolVersion:  wire.ProtocolVersion,
		Services:         wire.SFNodeWitness,
		UserAgent:        DefaultUserAgent,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return c
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithConnectionId specifies the connection ID used in log messages
func WithConnectionId(connId string) ConfigOptionFunc {
	return func(c *Config) {
		c.ConnectionId = connId
	}
}

// WithNetwork specifies the network magic
func WithNetwork(network wire.BitcoinNet) ConfigOptionFunc {
	return func(c *Config) {
		c.Network = network
	}
}

// WithProtocolVersion specifies the protocol version we advertise
func WithProtocolVersion(version uint32) ConfigOptionFunc {
	return func(c *Config) {
		c.ProtocolVersion = version
	}
}

// WithServices specifies the service flags we advertise
func WithServices(services wire.ServiceFlag) ConfigOptionFunc {
	return func(c *Config) {
		c.Services = services
	}
}

// WithUserAgent specifies the user agent we advertise
func WithUserAgent(userAgent string) ConfigOptionFunc {
	return func(c *Config) {
		c.UserAgent = userAgent
	}
}

// WithHandshakeTimeout specifies how long the peer has to complete the handshake
func WithHandshakeTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.HandshakeTimeout = timeout
	}
}
