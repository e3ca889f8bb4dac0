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

// Package relaygw implements a blockchain relay gateway. It accepts transactions
// and blocks from blockchain peers, the relay network and node RPC endpoints, and
// fans them out to subscribers through deduplicated, filtered feeds.
//
// The Gateway type is the main entry point. The feed, protocol and transport
// packages can be used on their own as well.
package relaygw

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/relaygw/dedup"
	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/feed/btcfeed"
	"github.com/blinklabs-io/relaygw/feed/ethfeed"
	"github.com/blinklabs-io/relaygw/protocol/btc"
	"github.com/blinklabs-io/relaygw/relay"
)

const DefaultDedupWindow = dedup.DefaultWindow

var (
	ErrInvalidNetwork   = errors.New("invalid network")
	ErrPeerUnsupported  = errors.New("network does not support peer connections")
	ErrGatewayClosed    = errors.New("gateway is closed")
	ErrChainIdMismatch  = errors.New("chain ID is only supported on Ethereum networks")
	ErrInvalidQueueSize = errors.New("queue size must be positive")
)

// Gateway owns the feeds of a single network and the connections that publish
// to them
type Gateway struct {
	network          Network
	logger           *slog.Logger
	dedupWindow      time.Duration
	queueSize        int
	chainId          *big.Int
	handshakeTimeout time.Duration
	userAgent        string
	peerClosedFunc   PeerManagerPeerClosedFunc
	manager          *feed.Manager
	peers            *PeerManager
	relayDecoder     *relay.Decoder
	peerSeq          atomic.Uint64
	closed           atomic.Bool
	onceClose        sync.Once
}

// New returns a new Gateway with the specified options
func New(options ...GatewayOptionFunc) (*Gateway, error) {
	g := &Gateway{
		dedupWindow: DefaultDedupWindow,
		queueSize:   feed.DefaultQueueSize,
	}
	for _, option := range options {
		option(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if g.network.Family == ProtocolFamilyNone {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, g.network.Name)
	}
	if g.queueSize <= 0 {
		return nil, ErrInvalidQueueSize
	}
	if g.chainId == nil {
		g.chainId = g.network.ChainId
	} else if g.network.Family != ProtocolFamilyEthereum {
		return nil, ErrChainIdMismatch
	}
	g.logger = g.logger.With(
		"component", "gateway",
		"network", g.network.Name,
	)
	g.manager = feed.NewManager(feed.WithManagerLogger(g.logger))
	if err := g.registerFeeds(); err != nil {
		g.manager.Close()
		return nil, err
	}
	g.relayDecoder = relay.NewDecoder(
		g.network.Name,
		g.network.RelayHashFunc(),
		relay.WithDecoderLogger(g.logger),
	)
	g.peers = NewPeerManager(PeerManagerConfig{
		PeerClosedFunc: g.peerClosed,
	})
	g.logger.Info(
		"gateway started",
		"feeds", g.manager.FeedNames(),
		"dedup_window", g.dedupWindow.String(),
	)
	return g, nil
}

func (g *Gateway) registerFeeds() error {
	feedOpts := []feed.FeedOptionFunc{
		feed.WithLogger(g.logger),
		feed.WithQueueSize(g.queueSize),
	}
	dedupOpts := append(
		[]feed.FeedOptionFunc{feed.WithDedup(g.dedupWindow)},
		feedOpts...,
	)
	var feeds []*feed.Feed
	switch g.network.Family {
	case ProtocolFamilyBitcoin:
		feeds = []*feed.Feed{
			feed.NewFeed(btcfeed.NewTxKind(g.network.BtcParams), dedupOpts...),
			feed.NewFeed(btcfeed.NewBlockKind(), dedupOpts...),
		}
	case ProtocolFamilyEthereum:
		newTxsKind := ethfeed.NewTxKind(ethfeed.NewTxsFeedName, g.chainId)
		feeds = []*feed.Feed{
			feed.NewFeed(newTxsKind, dedupOpts...),
			feed.NewFeed(
				ethfeed.NewTxKind(ethfeed.PendingTxsFeedName, g.chainId),
				dedupOpts...,
			),
			// Blocks are rare enough that every announcement is delivered
			feed.NewFeed(ethfeed.NewBlockKind(newTxsKind), feedOpts...),
		}
	}
	for i, f := range feeds {
		if err := g.manager.RegisterFeed(f); err != nil {
			// Feeds not yet owned by the manager are closed here
			for _, tmpFeed := range feeds[i:] {
				tmpFeed.Close()
			}
			return err
		}
	}
	return nil
}

// Network returns the network the gateway serves
func (g *Gateway) Network() Network {
	return g.network
}

// FeedManager returns the feed registry used for subscriptions
func (g *Gateway) FeedManager() *feed.Manager {
	return g.manager
}

// PeerManager returns the tracker for peer connections
func (g *Gateway) PeerManager() *PeerManager {
	return g.peers
}

// AddPeer starts the peer protocol on an established connection. The handshake
// is started before AddPeer returns
func (g *Gateway) AddPeer(conn net.Conn, tags ...PeerManagerTag) (string, error) {
	if g.closed.Load() {
		return "", ErrGatewayClosed
	}
	if g.network.Family != ProtocolFamilyBitcoin {
		return "", ErrPeerUnsupported
	}
	peerId := fmt.Sprintf("%d:%s", g.peerSeq.Add(1), conn.RemoteAddr().String())
	cfgOpts := []btc.ConfigOptionFunc{
		btc.WithLogger(g.logger),
		btc.WithConnectionId(peerId),
		btc.WithNetwork(g.network.BtcParams.Net),
	}
	if g.handshakeTimeout > 0 {
		cfgOpts = append(cfgOpts, btc.WithHandshakeTimeout(g.handshakeTimeout))
	}
	if g.userAgent != "" {
		cfgOpts = append(cfgOpts, btc.WithUserAgent(g.userAgent))
	}
	peer := btc.NewPeer(conn, g.manager, btc.NewConfig(cfgOpts...))
	g.peers.AddPeer(peerId, peer, tags...)
	if err := peer.Start(); err != nil {
		_ = peer.Close()
		return "", fmt.Errorf("start peer %s: %w", peerId, err)
	}
	g.logger.Info(
		"peer connected",
		"connection_id", peerId,
	)
	return peerId, nil
}

// HandleRelayFrame decodes a frame received from the relay network and publishes
// its payload
func (g *Gateway) HandleRelayFrame(data []byte) error {
	if g.closed.Load() {
		return ErrGatewayClosed
	}
	feedName, evt, err := g.relayDecoder.Decode(data)
	if err != nil {
		return err
	}
	return g.manager.Publish(feedName, evt)
}

// Close shuts down all peers and feeds. Subscriber queues are closed
func (g *Gateway) Close() error {
	g.onceClose.Do(func() {
		g.closed.Store(true)
		g.peers.Close()
		g.manager.Close()
		g.logger.Info("gateway stopped")
	})
	return nil
}

func (g *Gateway) peerClosed(peerId string, err error) {
	if err != nil {
		g.logger.Warn(
			"peer connection failed",
			"connection_id", peerId,
			"error", err,
		)
	} else {
		g.logger.Debug(
			"peer connection closed",
			"connection_id", peerId,
		)
	}
	if g.peerClosedFunc != nil {
		g.peerClosedFunc(peerId, err)
	}
}
