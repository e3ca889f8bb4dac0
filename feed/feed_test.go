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

package feed_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// testKind is a transaction-like feed kind that counts serialize calls. Events
// carry their payload in Fields and are valid if they have a "to" field
type testKind struct {
	name           string
	serializeCalls atomic.Int64
}

func (k *testKind) Name() string {
	return k.name
}

func (k *testKind) Fields() []string {
	return []string{
		"tx_hash",
		"tx_contents",
		"tx_contents.to",
		"tx_contents.value",
	}
}

func (k *testKind) Filters() filter.Schema {
	return filter.Schema{
		"to": {Kind: filter.KindSet, Field: "tx_contents.to"},
		"value_range": {
			Kind:  filter.KindRange,
			Field: "tx_contents.value",
		},
	}
}

func (k *testKind) Validate(evt feed.RawEvent) bool {
	_, ok := evt.Fields["to"]
	return ok
}

func (k *testKind) Serialize(evt feed.RawEvent) (filter.Fields, error) {
	k.serializeCalls.Add(1)
	return filter.Fields{
		"tx_hash": "0x" + evt.HashHex(),
		"tx_contents": map[string]any{
			"to":    evt.Fields["to"],
			"value": evt.Fields["value"],
		},
	}, nil
}

func newTestManager(t *testing.T, options ...feed.FeedOptionFunc) (*feed.Manager, *testKind) {
	t.Helper()
	kind := &testKind{name: "newTxs"}
	m := feed.NewManager()
	require.NoError(t, m.RegisterFeed(feed.NewFeed(kind, options...)))
	return m, kind
}

func testEvent(id byte, to string, value int) feed.RawEvent {
	return feed.RawEvent{
		Hash:   [32]byte{id},
		Source: feed.SourceBlockchainRPC,
		Fields: map[string]any{
			"to":    to,
			"value": value,
		},
	}
}

func drain(sub *feed.Subscriber) []map[string]any {
	var ret []map[string]any
	for {
		select {
		case payload, ok := <-sub.Messages():
			if !ok {
				return ret
			}
			var msg map[string]any
			if err := json.Unmarshal(payload, &msg); err != nil {
				panic(err)
			}
			ret = append(ret, msg)
		default:
			return ret
		}
	}
}

func TestSubscribeUnknownFeed(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t)
	defer m.Close()
	_, err := m.Subscribe("bogus", feed.Options{})
	var unknownErr *feed.UnknownFeedError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "bogus", unknownErr.Name)
	assert.Equal(t, []string{"newTxs"}, unknownErr.Available)
	assert.Contains(t, err.Error(), "newTxs")
}

func TestManagerSchemas(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t)
	defer m.Close()
	fields, ok := m.FieldsOf("newTxs")
	require.True(t, ok)
	assert.Equal(t, kind.Fields(), fields)
	filters, ok := m.FiltersOf("newTxs")
	require.True(t, ok)
	assert.Equal(t, kind.Filters().Names(), filters)
	_, ok = m.FieldsOf("bogus")
	assert.False(t, ok)
	_, ok = m.FiltersOf("bogus")
	assert.False(t, ok)
}

func TestSubscribeEmptyRegistry(t *testing.T) {
	m := feed.NewManager()
	defer m.Close()
	_, err := m.Subscribe("newTxs", feed.Options{})
	var accessErr *feed.AccountAccessError
	require.ErrorAs(t, err, &accessErr)
}

func TestRegisterDuplicateFeed(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t)
	defer m.Close()
	dupFeed := feed.NewFeed(kind)
	defer dupFeed.Close()
	err := m.RegisterFeed(dupFeed)
	var dupErr *feed.DuplicateFeedError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "newTxs", dupErr.Name)
}

func TestSubscribeInvalidOptions(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t)
	defer m.Close()
	_, err := m.Subscribe("newTxs", feed.Options{Include: []string{"tx_contents.bogus"}})
	var optsErr *feed.InvalidOptionsError
	require.ErrorAs(t, err, &optsErr)
	assert.Contains(t, optsErr.ValidFields, "tx_contents.to")
	_, err = m.Subscribe("newTxs", feed.Options{
		Filters: map[string]any{
			"OR": []any{
				map[string]any{"hello": []any{0.0, 2.1}},
				map[string]any{"to": []any{"0xabc"}},
			},
		},
	})
	require.ErrorAs(t, err, &optsErr)
	var filterErr *filter.InvalidFilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, []string{"to", "value_range"}, filterErr.Valid)
}

func TestPublishWithoutSubscribersSkipsSerialize(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t)
	defer m.Close()
	require.NoError(t, m.Publish("newTxs", testEvent(1, "0xaaa", 1)))
	require.NoError(t, m.Publish("unknown", testEvent(1, "0xaaa", 1)))
	assert.Equal(t, int64(0), kind.serializeCalls.Load())
	sub, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	m.Unsubscribe(sub.Id())
	require.NoError(t, m.Publish("newTxs", testEvent(2, "0xaaa", 1)))
	assert.Equal(t, int64(0), kind.serializeCalls.Load())
}

func TestSerializeOncePerPublish(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t)
	defer m.Close()
	subs := make([]*feed.Subscriber, 0, 5)
	for range 5 {
		sub, err := m.Subscribe("newTxs", feed.Options{})
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	require.NoError(t, m.Publish("newTxs", testEvent(1, "0xaaa", 1)))
	assert.Equal(t, int64(1), kind.serializeCalls.Load())
	for _, sub := range subs {
		assert.Len(t, drain(sub), 1)
	}
}

func TestPublishDedup(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, feed.WithDedup(time.Minute))
	defer m.Close()
	subA, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	subB, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	evt := testEvent(1, "0xaaa", 1)
	require.NoError(t, m.Publish("newTxs", evt))
	require.NoError(t, m.Publish("newTxs", evt))
	late, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	assert.Len(t, drain(subA), 1)
	assert.Len(t, drain(subB), 1)
	assert.Empty(t, drain(late))
}

func TestPublishWithoutSubscribersRecordsHash(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t, feed.WithDedup(time.Minute))
	defer m.Close()
	evt := testEvent(1, "0xaaa", 1)
	require.NoError(t, m.Publish("newTxs", evt))
	assert.Equal(t, int64(0), kind.serializeCalls.Load())
	sub, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	require.NoError(t, m.Publish("newTxs", evt))
	require.NoError(t, m.Publish("newTxs", testEvent(2, "0xaaa", 1)))
	msgs := drain(sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, fmt.Sprintf("0x%x", [32]byte{2}), msgs[0]["tx_hash"])
}

func TestPublishDuplicatesSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t, feed.WithDedup(time.Minute))
	defer m.Close()
	plain, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	dups, err := m.Subscribe("newTxs", feed.Options{Duplicates: true})
	require.NoError(t, err)
	evt := testEvent(1, "0xaaa", 1)
	for range 3 {
		require.NoError(t, m.Publish("newTxs", evt))
	}
	assert.Len(t, drain(plain), 1)
	assert.Len(t, drain(dups), 3)
	assert.Equal(t, int64(3), kind.serializeCalls.Load())
}

func TestPublishWithoutDedup(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t)
	defer m.Close()
	sub, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	evt := testEvent(1, "0xaaa", 1)
	require.NoError(t, m.Publish("newTxs", evt))
	require.NoError(t, m.Publish("newTxs", evt))
	assert.Len(t, drain(sub), 2)
}

func TestPublishInvalidEventDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, kind := newTestManager(t, feed.WithDedup(time.Minute))
	defer m.Close()
	sub, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	evt := feed.RawEvent{
		Hash:   [32]byte{0x42},
		Source: feed.SourcePeerSocket,
		Raw:    make([]byte, 250),
	}
	require.NoError(t, m.Publish("newTxs", evt))
	assert.Equal(t, int64(0), kind.serializeCalls.Load())
	assert.Empty(t, drain(sub))
}

func TestPublishFilterAndProjection(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t)
	defer m.Close()
	filtered, err := m.Subscribe("newTxs", feed.Options{
		Include: []string{"tx_contents.to"},
		Filters: map[string]any{"to": "0xAAA"},
	})
	require.NoError(t, err)
	all, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	require.NoError(t, m.Publish("newTxs", testEvent(1, "0xaaa", 5)))
	require.NoError(t, m.Publish("newTxs", testEvent(2, "0xbbb", 6)))
	msgs := drain(filtered)
	require.Len(t, msgs, 1)
	assert.Equal(
		t,
		map[string]any{"tx_contents": map[string]any{"to": "0xaaa"}},
		msgs[0],
	)
	msgs = drain(all)
	require.Len(t, msgs, 2)
	assert.Equal(
		t,
		fmt.Sprintf("0x%x", [32]byte{1}),
		msgs[0]["tx_hash"],
	)
	assert.Equal(
		t,
		map[string]any{"to": "0xbbb", "value": float64(6)},
		msgs[1]["tx_contents"],
	)
}

func TestPublishFilterEvaluationError(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t)
	defer m.Close()
	ranged, err := m.Subscribe("newTxs", feed.Options{
		Filters: map[string]any{"value_range": []any{0, 10}},
	})
	require.NoError(t, err)
	unfiltered := make([]*feed.Subscriber, 0, 5)
	for range 5 {
		sub, err := m.Subscribe("newTxs", feed.Options{})
		require.NoError(t, err)
		unfiltered = append(unfiltered, sub)
	}
	for i := range 20 {
		evt := testEvent(byte(i), "0xaaa", 1)
		evt.Fields["value"] = map[string]any{"bogus": true}
		err = m.Publish("newTxs", evt)
		var evalErr *filter.EvaluationError
		require.ErrorAs(t, err, &evalErr)
	}
	assert.Empty(t, drain(ranged))
	// Delivery to other subscribers does not depend on iteration order
	for _, sub := range unfiltered {
		assert.Len(t, drain(sub), 20)
	}
}

func TestQueueOverflowDrops(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, feed.WithQueueSize(2))
	defer m.Close()
	slow, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	for i := range 5 {
		require.NoError(t, m.Publish("newTxs", testEvent(byte(i), "0xaaa", i)))
	}
	msgs := drain(slow)
	require.Len(t, msgs, 2)
	// Oldest payloads are kept
	assert.Equal(t, fmt.Sprintf("0x%x", [32]byte{0}), msgs[0]["tx_hash"])
}

func TestUnsubscribeIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t)
	defer m.Close()
	sub, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	assert.True(t, m.Unsubscribe(sub.Id()))
	assert.False(t, m.Unsubscribe(sub.Id()))
	assert.False(t, m.Unsubscribe("unknown"))
	_, ok := <-sub.Messages()
	assert.False(t, ok)
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, feed.WithQueueSize(10000))
	defer m.Close()
	var wg sync.WaitGroup
	stopChan := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		for {
			select {
			case <-stopChan:
				return
			default:
			}
			evt := testEvent(byte(i), "0xaaa", i)
			evt.Hash[1] = byte(i >> 8)
			if err := m.Publish("newTxs", evt); err != nil {
				panic(err)
			}
			i++
		}
	}()
	for range 200 {
		sub, err := m.Subscribe("newTxs", feed.Options{})
		require.NoError(t, err)
		m.Unsubscribe(sub.Id())
		// The queue is closed after unsubscribe and never written again
		for range sub.Messages() {
		}
	}
	close(stopChan)
	wg.Wait()
}

func TestSubscribeAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, feed.WithDedup(time.Minute))
	sub, err := m.Subscribe("newTxs", feed.Options{})
	require.NoError(t, err)
	m.Close()
	m.Close()
	_, ok := <-sub.Messages()
	assert.False(t, ok)
	_, err = m.Subscribe("newTxs", feed.Options{})
	assert.True(t, errors.Is(err, feed.ErrFeedClosed))
}

func TestParseOptions(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal(
		[]byte(`{"include": ["tx_hash"], "duplicates": true, "filters": {"to": "0xaaa"}}`),
		&raw,
	))
	opts, err := feed.ParseOptions(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx_hash"}, opts.Include)
	assert.True(t, opts.Duplicates)
	assert.Equal(t, map[string]any{"to": "0xaaa"}, opts.Filters)

	for _, bad := range []any{
		"nope",
		[]any{"include"},
		map[string]any{"include": "tx_hash"},
		map[string]any{"include": []any{1}},
		map[string]any{"duplicates": "yes"},
	} {
		_, err := feed.ParseOptions(bad)
		var optsErr *feed.InvalidOptionsError
		assert.ErrorAs(t, err, &optsErr, "options %v", bad)
	}
}

func TestProject(t *testing.T) {
	fields := filter.Fields{
		"hash": "0x01",
		"block": map[string]any{
			"header":       map[string]any{"number": "0x1"},
			"transactions": []any{},
		},
	}
	assert.Equal(
		t,
		map[string]any{
			"hash":  "0x01",
			"block": map[string]any{"header": map[string]any{"number": "0x1"}},
		},
		feed.Project(fields, []string{"hash", "block.header", "block.missing"}),
	)
	// The source fields are untouched
	assert.Len(t, fields["block"], 2)
}
