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

// Package ethnode ingests pending transactions from an Ethereum node over its
// JSON-RPC websocket endpoint
package ethnode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"
)

var ErrNoUrl = errors.New("no node URL configured")

// Publisher receives the transactions read from the node. It is satisfied by
// *feed.Manager
type Publisher interface {
	Publish(feedName string, evt feed.RawEvent) error
}

// Client holds a newPendingTransactions subscription against a node
type Client struct {
	config         Config
	publisher      Publisher
	subscriptionId string
	mutex          sync.Mutex
}

// NewClient returns a new Client
func NewClient(publisher Publisher, cfg Config) *Client {
	c := &Client{
		config:    cfg,
		publisher: publisher,
	}
	c.config.Logger = c.config.Logger.With(
		"component", "ethnode",
		"feed", cfg.FeedName,
	)
	return c
}

// SubscriptionId returns the subscription id assigned by the node, if any
func (c *Client) SubscriptionId() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.subscriptionId
}

// Run connects to the node, subscribes, and publishes each received transaction
// until the context is cancelled or the connection fails. Reconnecting is left to
// the caller
func (c *Client) Run(ctx context.Context) error {
	if c.config.Url == "" {
		return ErrNoUrl
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.DialTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.config.Url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.Url, err)
	}
	c.config.Logger.Info(
		"connected to node",
		"url", c.config.Url,
	)
	doneChan := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.keepalive(ctx, conn, doneChan)
	}()
	defer func() {
		close(doneChan)
		wg.Wait()
		conn.Close()
	}()
	if err := c.subscribe(conn); err != nil {
		return err
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read from node: %w", err)
		}
		if err := c.handleMessage(data); err != nil {
			return err
		}
	}
}

// keepalive pings the node and closes the connection when the context is
// cancelled so that a blocked read returns
func (c *Client) keepalive(
	ctx context.Context,
	conn *websocket.Conn,
	doneChan <-chan struct{},
) {
	var tickChan <-chan time.Time
	if c.config.PingInterval > 0 {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		tickChan = ticker.C
	}
	for {
		select {
		case <-tickChan:
			if err := conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(10*time.Second),
			); err != nil {
				c.config.Logger.Warn(
					"failed to ping node",
					"error", err,
				)
			}
		case <-ctx.Done():
			conn.Close()
			return
		case <-doneChan:
			return
		}
	}
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	req := request{
		JsonRpc: "2.0",
		Id:      subscribeRequestId,
		Method:  methodSubscribe,
		Params:  []any{subscriptionPendingTxs, true},
	}
	data, err := sonnet.Marshal(req)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}
	return nil
}

func (c *Client) handleMessage(data []byte) error {
	var msg message
	if err := sonnet.Unmarshal(data, &msg); err != nil {
		c.config.Logger.Debug(
			"ignoring malformed message from node",
			"error", err,
		)
		return nil
	}
	switch {
	case msg.Id != nil:
		return c.handleResponse(&msg)
	case msg.Method == methodSubscription && msg.Params != nil:
		c.handleNotification(msg.Params)
	}
	return nil
}

func (c *Client) handleResponse(msg *message) error {
	if *msg.Id != subscribeRequestId {
		return nil
	}
	if msg.Error != nil {
		return fmt.Errorf("subscribe to %s: %w", subscriptionPendingTxs, msg.Error)
	}
	subId, _ := msg.Result.(string)
	c.mutex.Lock()
	c.subscriptionId = subId
	c.mutex.Unlock()
	c.config.Logger.Info(
		"subscribed to pending transactions",
		"subscription_id", subId,
	)
	return nil
}

func (c *Client) handleNotification(params *subscriptionResults) {
	if subId := c.SubscriptionId(); subId != "" && params.Subscription != subId {
		return
	}
	txObj, ok := params.Result.(map[string]any)
	if !ok {
		// Nodes without full transaction support only send the hash
		notificationsSkipped.Inc()
		return
	}
	hash, err := txHash(txObj)
	if err != nil {
		notificationsSkipped.Inc()
		c.config.Logger.Debug(
			"skipping transaction without a valid hash",
			"error", err,
		)
		return
	}
	transactionsReceived.Inc()
	evt := feed.RawEvent{
		Hash:   hash,
		Source: feed.SourceBlockchainRPC,
		Fields: txObj,
	}
	if err := c.publisher.Publish(c.config.FeedName, evt); err != nil {
		c.config.Logger.Warn(
			"failed to publish transaction",
			"tx_hash", evt.HashHex(),
			"error", err,
		)
	}
}

func txHash(txObj map[string]any) ([32]byte, error) {
	hashStr, ok := txObj["hash"].(string)
	if !ok {
		return [32]byte{}, errors.New("transaction has no hash")
	}
	hashBytes, err := hexutil.Decode(hashStr)
	if err != nil {
		return [32]byte{}, fmt.Errorf("decode hash %q: %w", hashStr, err)
	}
	if len(hashBytes) != common.HashLength {
		return [32]byte{}, fmt.Errorf("hash %q has wrong length", hashStr)
	}
	return common.BytesToHash(hashBytes), nil
}
