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

// Package btcfeed provides the Bitcoin feed kinds fed by the peer connection
// protocol: transactions and blocks.
package btcfeed

import (
	"bytes"
	"fmt"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/filter"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	NewTxsFeedName    = "newTxs"
	NewBlocksFeedName = "newBlocks"

	// version, input count, output count and lock time
	minTxSize = 10
)

var txFields = []string{
	"tx_hash",
	"tx_contents",
	"tx_contents.hash",
	"tx_contents.version",
	"tx_contents.lock_time",
	"tx_contents.size",
	"tx_contents.value",
	"tx_contents.addresses",
	"tx_contents.inputs",
	"tx_contents.outputs",
}

var txFilters = filter.Schema{
	"to": {
		Kind:  filter.KindSet,
		Field: "tx_contents.addresses",
	},
	"transaction_value_range_btc": {
		Kind:     filter.KindRange,
		Field:    "tx_contents.value",
		Decimals: 8,
	},
}

var blockFields = []string{
	"hash",
	"block",
	"block.header",
	"block.transactions",
}

// TxKind is the feed kind for Bitcoin transactions
type TxKind struct {
	params *chaincfg.Params
}

// NewTxKind returns the newTxs kind. The chain params select the address
// encoding of output scripts
func NewTxKind(params *chaincfg.Params) *TxKind {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &TxKind{params: params}
}

func (k *TxKind) Name() string {
	return NewTxsFeedName
}

func (k *TxKind) Fields() []string {
	return txFields
}

func (k *TxKind) Filters() filter.Schema {
	return txFilters
}

func (k *TxKind) Validate(evt feed.RawEvent) bool {
	if _, ok := evt.Decoded.(*wire.MsgTx); ok {
		return true
	}
	return len(evt.Raw) >= minTxSize
}

func (k *TxKind) Serialize(evt feed.RawEvent) (filter.Fields, error) {
	msgTx, ok := evt.Decoded.(*wire.MsgTx)
	if !ok {
		msgTx = new(wire.MsgTx)
		if err := msgTx.Deserialize(bytes.NewReader(evt.Raw)); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
	}
	contents := TxContents(btcutil.NewTx(msgTx), k.params)
	return filter.Fields{
		"tx_hash":     contents["hash"],
		"tx_contents": contents,
	}, nil
}

// TxContents formats a transaction. Output addresses are decoded from standard
// output scripts and collected in "addresses" so address filters can match any
// output
func TxContents(tx *btcutil.Tx, params *chaincfg.Params) map[string]any {
	msgTx := tx.MsgTx()
	inputs := make([]any, 0, len(msgTx.TxIn))
	for _, txIn := range msgTx.TxIn {
		inputs = append(inputs, map[string]any{
			"prev_tx_hash": txIn.PreviousOutPoint.Hash.String(),
			"prev_index":   txIn.PreviousOutPoint.Index,
			"sequence":     txIn.Sequence,
		})
	}
	var total int64
	addresses := make([]string, 0, len(msgTx.TxOut))
	outputs := make([]any, 0, len(msgTx.TxOut))
	for _, txOut := range msgTx.TxOut {
		total += txOut.Value
		outAddrs := make([]string, 0, 1)
		// Non-standard scripts have no address
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(txOut.PkScript, params)
		if err == nil {
			for _, addr := range addrs {
				outAddrs = append(outAddrs, addr.EncodeAddress())
			}
		}
		addresses = append(addresses, outAddrs...)
		outputs = append(outputs, map[string]any{
			"value":     txOut.Value,
			"addresses": outAddrs,
		})
	}
	return map[string]any{
		"hash":      tx.Hash().String(),
		"version":   msgTx.Version,
		"lock_time": msgTx.LockTime,
		"size":      msgTx.SerializeSize(),
		"value":     total,
		"addresses": addresses,
		"inputs":    inputs,
		"outputs":   outputs,
	}
}

// BlockKind is the feed kind for Bitcoin blocks
type BlockKind struct{}

// NewBlockKind returns the newBlocks kind
func NewBlockKind() *BlockKind {
	return &BlockKind{}
}

func (k *BlockKind) Name() string {
	return NewBlocksFeedName
}

func (k *BlockKind) Fields() []string {
	return blockFields
}

// Filters returns no predicates. Block subscriptions cannot be filtered
func (k *BlockKind) Filters() filter.Schema {
	return nil
}

func (k *BlockKind) Validate(evt feed.RawEvent) bool {
	if _, ok := evt.Decoded.(*wire.MsgBlock); ok {
		return true
	}
	return len(evt.Raw) > wire.MaxBlockHeaderPayload
}

func (k *BlockKind) Serialize(evt feed.RawEvent) (filter.Fields, error) {
	var block *btcutil.Block
	if msgBlock, ok := evt.Decoded.(*wire.MsgBlock); ok {
		block = btcutil.NewBlock(msgBlock)
	} else {
		var err error
		block, err = btcutil.NewBlockFromBytes(evt.Raw)
		if err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
	}
	header := block.MsgBlock().Header
	txs := make([]any, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		txs = append(txs, tx.Hash().String())
	}
	return filter.Fields{
		"hash": block.Hash().String(),
		"block": map[string]any{
			"header": map[string]any{
				"version":     header.Version,
				"prev_block":  header.PrevBlock.String(),
				"merkle_root": header.MerkleRoot.String(),
				"timestamp":   header.Timestamp.Unix(),
				"bits":        header.Bits,
				"nonce":       header.Nonce,
			},
			"transactions": txs,
		},
	}, nil
}
