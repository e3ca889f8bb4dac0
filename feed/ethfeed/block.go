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

package ethfeed

import (
	"fmt"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/filter"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

const NewBlocksFeedName = "newBlocks"

var blockFields = []string{
	"hash",
	"block",
	"block.header",
	"block.transactions",
	"block.uncles",
}

// BlockKind is the feed kind for Ethereum blocks
type BlockKind struct {
	signer types.Signer
}

// NewBlockKind returns the newBlocks kind. The signer is taken from a TxKind so
// transactions in the block are formatted like the transaction feeds
func NewBlockKind(txKind *TxKind) *BlockKind {
	return &BlockKind{
		signer: txKind.signer,
	}
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
	if _, ok := evt.Decoded.(*types.Block); ok {
		return true
	}
	kind, _, rest, err := rlp.Split(evt.Raw)
	return err == nil && kind == rlp.List && len(rest) == 0
}

func (k *BlockKind) Serialize(evt feed.RawEvent) (filter.Fields, error) {
	block, ok := evt.Decoded.(*types.Block)
	if !ok {
		block = new(types.Block)
		if err := rlp.DecodeBytes(evt.Raw, block); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
	}
	txs := make([]any, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		contents, err := TxContents(k.signer, tx)
		if err != nil {
			return nil, err
		}
		txs = append(txs, contents)
	}
	uncles := make([]any, 0, len(block.Uncles()))
	for _, uncle := range block.Uncles() {
		uncles = append(uncles, headerContents(uncle))
	}
	return filter.Fields{
		"hash": block.Hash().Hex(),
		"block": map[string]any{
			"header":       headerContents(block.Header()),
			"transactions": txs,
			"uncles":       uncles,
		},
	}, nil
}

func headerContents(header *types.Header) map[string]any {
	ret := map[string]any{
		"parent_hash":       header.ParentHash.Hex(),
		"sha3_uncles":       header.UncleHash.Hex(),
		"miner":             header.Coinbase.Hex(),
		"state_root":        header.Root.Hex(),
		"transactions_root": header.TxHash.Hex(),
		"receipts_root":     header.ReceiptHash.Hex(),
		"logs_bloom":        hexutil.Encode(header.Bloom.Bytes()),
		"difficulty":        hexutil.EncodeBig(header.Difficulty),
		"number":            hexutil.EncodeBig(header.Number),
		"gas_limit":         hexutil.EncodeUint64(header.GasLimit),
		"gas_used":          hexutil.EncodeUint64(header.GasUsed),
		"timestamp":         hexutil.EncodeUint64(header.Time),
		"extra_data":        hexutil.Encode(header.Extra),
		"mix_hash":          header.MixDigest.Hex(),
		"nonce":             hexutil.Encode(header.Nonce[:]),
	}
	if header.BaseFee != nil {
		ret["base_fee_per_gas"] = hexutil.EncodeBig(header.BaseFee)
	}
	return ret
}
