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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/blinklabs-io/relaygw"
	"github.com/puzpuzpuz/xsync/v4"
)

const dialTimeout = 10 * time.Second

// peerWatcher lets the dialer wait for the peer it started to close
type peerWatcher struct {
	closed *xsync.Map[string, chan error]
}

func newPeerWatcher() *peerWatcher {
	return &peerWatcher{
		closed: xsync.NewMap[string, chan error](),
	}
}

func (w *peerWatcher) peerClosed(peerId string, err error) {
	// The peer can close before the dialer starts waiting for it
	closedChan, _ := w.closed.LoadOrStore(peerId, make(chan error, 1))
	closedChan <- err
}

func (w *peerWatcher) wait(ctx context.Context, peerId string) error {
	closedChan, _ := w.closed.LoadOrStore(peerId, make(chan error, 1))
	defer w.closed.Delete(peerId)
	select {
	case err := <-closedChan:
		if err == nil {
			err = errors.New("peer closed")
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dialPeer connects to a Bitcoin node and blocks until the connection closes
func dialPeer(
	ctx context.Context,
	g *relaygw.Gateway,
	watcher *peerWatcher,
	address string,
) error {
	dialer := net.Dialer{
		Timeout: dialTimeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	peerId, err := g.AddPeer(conn, relaygw.PeerManagerTagRoleInitiator)
	if err != nil {
		return err
	}
	return watcher.wait(ctx, peerId)
}

// acceptPeers accepts inbound Bitcoin peer connections until the context is
// cancelled
func acceptPeers(
	ctx context.Context,
	g *relaygw.Gateway,
	watcher *peerWatcher,
	logger *slog.Logger,
	listener net.Listener,
) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	logger.Info(
		"accepting peer connections",
		"address", listener.Addr().String(),
	)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept peer connection: %w", err)
		}
		go func() {
			peerId, err := g.AddPeer(conn, relaygw.PeerManagerTagRoleResponder)
			if err != nil {
				logger.Warn(
					"failed to add inbound peer",
					"remote_addr", conn.RemoteAddr().String(),
					"error", err,
				)
				return
			}
			err = watcher.wait(ctx, peerId)
			logger.Debug(
				"inbound peer closed",
				"connection_id", peerId,
				"error", err,
			)
		}()
	}
}
