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

package rpc_test

import (
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/feed/ethfeed"
	"github.com/blinklabs-io/relaygw/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const recipient = "0xd7bec4d6bf6fc371eb51611a50540f0b59b5f896"

func sampleTx(hash string) map[string]any {
	return map[string]any{
		"from":     "0xbd4e113ee68bcbbf768ba1d6c7a14e003362979a",
		"gas":      "0x9bba",
		"gasPrice": "0x41dcf5dbe",
		"hash":     hash,
		"input":    "0xea1790b9",
		"nonce":    "0x1e8",
		"to":       recipient,
		"value":    "0x0",
	}
}

func txEvent(hash string) feed.RawEvent {
	return feed.RawEvent{
		Hash:   common.HexToHash(hash),
		Source: feed.SourceBlockchainRPC,
		Fields: sampleTx(hash),
	}
}

type testEnv struct {
	manager *feed.Manager
	server  *rpc.Server
	http    *httptest.Server
}

func newTestEnv(t *testing.T, withFeeds bool) *testEnv {
	t.Helper()
	manager := feed.NewManager()
	if withFeeds {
		kind := ethfeed.NewTxKind(ethfeed.PendingTxsFeedName, big.NewInt(1))
		require.NoError(t, manager.RegisterFeed(feed.NewFeed(kind)))
	}
	server := rpc.NewServer(manager)
	return &testEnv{
		manager: manager,
		server:  server,
		http:    httptest.NewServer(server),
	}
}

func (e *testEnv) Close() {
	e.server.Close()
	e.http.Close()
	e.manager.Close()
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

type response struct {
	Id     any        `json:"id"`
	Result any        `json:"result"`
	Error  *rpc.Error `json:"error"`
}

func call(t *testing.T, conn *websocket.Conn, method string, params any) response {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      7,
		"method":  method,
		"params":  params,
	}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, float64(7), resp.Id)
	return resp
}

func TestSubscribeValidation(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	testDefs := []struct {
		name     string
		params   any
		contains string
	}{
		{
			name:     "params not a list",
			params:   map[string]any{"feed": "pendingTxs"},
			contains: "list of length 2",
		},
		{
			name:     "params wrong length",
			params:   []any{"pendingTxs"},
			contains: "list of length 2",
		},
		{
			name:     "unknown feed",
			params:   []any{"bogus", map[string]any{}},
			contains: "Available feeds: pendingTxs",
		},
		{
			name:     "options not an object",
			params:   []any{"pendingTxs", "tx_hash"},
			contains: "not a valid set of options",
		},
		{
			name:     "include not a list",
			params:   []any{"pendingTxs", map[string]any{"include": "tx_hash"}},
			contains: "not a valid set of options",
		},
		{
			name:     "unknown include field",
			params:   []any{"pendingTxs", map[string]any{"include": []any{"bogus"}}},
			contains: "not a valid set of options",
		},
		{
			name: "unknown filter",
			params: []any{
				"pendingTxs",
				map[string]any{"filters": map[string]any{"hello": "world"}},
			},
			contains: "not a valid set of filters",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			resp := call(t, conn, rpc.MethodSubscribe, testDef.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, testDef.contains)
		})
	}
	feedObj, ok := env.manager.Feed(ethfeed.PendingTxsFeedName)
	require.True(t, ok)
	assert.Equal(t, 0, feedObj.SubscriberCount())
}

func TestSubscribeWithoutFeeds(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, false)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	// Account access is checked before the params
	resp := call(t, conn, rpc.MethodSubscribe, "garbage")
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeAccountIdError, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	resp := call(t, conn, "eth_blockNumber", []any{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestParseError(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeParseError, resp.Error.Code)
}

func TestSubscribeAndDeliver(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	resp := call(t, conn, rpc.MethodSubscribe, []any{
		"pendingTxs",
		map[string]any{
			"include": []any{"tx_hash"},
			"filters": map[string]any{"to": "0x" + strings.ToUpper(recipient[2:])},
		},
	})
	require.Nil(t, resp.Error)
	subId, ok := resp.Result.(string)
	require.True(t, ok)
	require.NotEmpty(t, subId)
	hash := "0x0d96b711bdcc89b59f0fdfa963158394cea99cedce52d0e4f4a56839145a814a"
	require.NoError(t, env.manager.Publish(ethfeed.PendingTxsFeedName, txEvent(hash)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var notification rpc.Notification
	require.NoError(t, conn.ReadJSON(&notification))
	assert.Equal(t, "2.0", notification.JsonRpc)
	assert.Equal(t, rpc.MethodSubscribe, notification.Method)
	assert.Equal(t, subId, notification.Params.Subscription)
	var result map[string]any
	require.NoError(t, json.Unmarshal(notification.Params.Result, &result))
	assert.Equal(t, map[string]any{"tx_hash": hash}, result)
	// Unsubscribe always succeeds
	resp = call(t, conn, rpc.MethodUnsubscribe, []any{subId})
	assert.Equal(t, true, resp.Result)
	resp = call(t, conn, rpc.MethodUnsubscribe, []any{subId})
	assert.Equal(t, true, resp.Result)
	feedObj, _ := env.manager.Feed(ethfeed.PendingTxsFeedName)
	assert.Equal(t, 0, feedObj.SubscriberCount())
}

func TestSubscribeDecimalRangeBounds(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	// Sent verbatim so the bounds arrive as JSON number literals
	require.NoError(t, conn.WriteMessage(
		websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":12345678901234567,"method":"subscribe","params":["pendingTxs",{"include":["tx_hash"],"filters":{"transaction_value_range_eth":[0.1, 1]}}]}`),
	))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":12345678901234567`)
	var resp response
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Nil(t, resp.Error)
	below := "0x1111111111111111111111111111111111111111111111111111111111111111"
	exact := "0x2222222222222222222222222222222222222222222222222222222222222222"
	evt := txEvent(below)
	evt.Fields["value"] = "0x16345785d89ffff"
	require.NoError(t, env.manager.Publish(ethfeed.PendingTxsFeedName, evt))
	evt = txEvent(exact)
	evt.Fields["value"] = "0x16345785d8a0000"
	require.NoError(t, env.manager.Publish(ethfeed.PendingTxsFeedName, evt))
	var notification rpc.Notification
	require.NoError(t, conn.ReadJSON(&notification))
	var result map[string]any
	require.NoError(t, json.Unmarshal(notification.Params.Result, &result))
	assert.Equal(t, map[string]any{"tx_hash": exact}, result)
}

func TestUnsubscribeInvalidParams(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	resp := call(t, conn, rpc.MethodUnsubscribe, []any{1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
}

func TestDisconnectUnsubscribes(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	for range 3 {
		resp := call(t, conn, rpc.MethodSubscribe, []any{"pendingTxs", map[string]any{}})
		require.Nil(t, resp.Error)
	}
	feedObj, _ := env.manager.Feed(ethfeed.PendingTxsFeedName)
	assert.Equal(t, 3, feedObj.SubscriberCount())
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return feedObj.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerCloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t, true)
	defer env.Close()
	conn := env.dial(t)
	defer conn.Close()
	resp := call(t, conn, rpc.MethodSubscribe, []any{"pendingTxs", map[string]any{}})
	require.Nil(t, resp.Error)
	env.server.Close()
	feedObj, _ := env.manager.Feed(ethfeed.PendingTxsFeedName)
	assert.Equal(t, 0, feedObj.SubscriberCount())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
