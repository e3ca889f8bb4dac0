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
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/relaygw/feed/ethfeed"
)

const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

// Config is used to configure the blockchain node client
type Config struct {
	Logger       *slog.Logger
	Url          string
	FeedName     string
	DialTimeout  time.Duration
	PingInterval time.Duration
}

// Callback function for modifying the config
type ConfigOptionFunc func(*Config)

// NewConfig returns a new client config object with the provided options
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		FeedName:     ethfeed.PendingTxsFeedName,
		DialTimeout:  DefaultDialTimeout,
		PingInterval: DefaultPingInterval,
	}
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

// WithUrl specifies the websocket URL of the node
func WithUrl(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.Url = url
	}
}

// WithFeedName specifies the feed that received transactions are published to
func WithFeedName(feedName string) ConfigOptionFunc {
	return func(c *Config) {
		c.FeedName = feedName
	}
}

// WithDialTimeout specifies the websocket handshake timeout
func WithDialTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.DialTimeout = timeout
	}
}

// WithPingInterval specifies how often the connection is pinged. A value of 0
// disables pings
func WithPingInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.PingInterval = interval
	}
}
