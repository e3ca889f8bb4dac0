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

// Package ethfeed provides the Ethereum feed kinds: transactions announced by
// peers, the relay network or a node RPC endpoint, and new blocks.
package ethfeed

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/filter"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	NewTxsFeedName     = "newTxs"
	PendingTxsFeedName = "pendingTxs"

	// Legacy transactions are RLP lists. Typed transactions are a type byte
	// below this value followed by an RLP list
	maxTxType = 0x7f
)

var (
	ErrUnsupportedPayload = errors.New("unsupported transaction payload")
	ErrMalformedRpcTx     = errors.New("malformed RPC transaction")
)

var txFields = []string{
	"tx_hash",
	"tx_contents",
	"tx_contents.from",
	"tx_contents.gas",
	"tx_contents.gas_price",
	"tx_contents.hash",
	"tx_contents.input",
	"tx_contents.value",
	"tx_contents.to",
	"tx_contents.nonce",
	"tx_contents.v",
	"tx_contents.r",
	"tx_contents.s",
}

// RPC transaction objects use camel case keys
var rpcFieldNames = map[string]string{
	"from":     "from",
	"gas":      "gas",
	"gasPrice": "gas_price",
	"hash":     "hash",
	"input":    "input",
	"value":    "value",
	"to":       "to",
	"nonce":    "nonce",
	"v":        "v",
	"r":        "r",
	"s":        "s",
}

var txFilters = filter.Schema{
	"to": {
		Kind:  filter.KindSet,
		Field: "tx_contents.to",
	},
	"from": {
		Kind:  filter.KindSet,
		Field: "tx_contents.from",
	},
	"transaction_value_range_eth": {
		Kind:     filter.KindRange,
		Field:    "tx_contents.value",
		Decimals: 18,
	},
	"gas_price": {
		Kind:  filter.KindRange,
		Field: "tx_contents.gas_price",
	},
}

// TxKind is the feed kind for Ethereum transactions. The same kind serves the
// newTxs and pendingTxs feeds
type TxKind struct {
	name   string
	signer types.Signer
}

// NewTxKind returns a transaction kind for the named feed. The chain ID selects
// the signer used to recover the sender and defaults to mainnet
func NewTxKind(name string, chainId *big.Int) *TxKind {
	if chainId == nil || chainId.Sign() == 0 {
		chainId = big.NewInt(1)
	}
	return &TxKind{
		name:   name,
		signer: types.LatestSignerForChainID(chainId),
	}
}

func (k *TxKind) Name() string {
	return k.name
}

func (k *TxKind) Fields() []string {
	return txFields
}

func (k *TxKind) Filters() filter.Schema {
	return txFilters
}

// Validate checks that the payload is shaped like a transaction without fully
// decoding it
func (k *TxKind) Validate(evt feed.RawEvent) bool {
	if _, ok := evt.Decoded.(*types.Transaction); ok {
		return true
	}
	if evt.Fields != nil {
		hash, ok := evt.Fields["hash"].(string)
		return ok && hash != ""
	}
	return validTxEnvelope(evt.Raw)
}

func (k *TxKind) Serialize(evt feed.RawEvent) (filter.Fields, error) {
	var contents map[string]any
	switch {
	case evt.Decoded != nil:
		tx, ok := evt.Decoded.(*types.Transaction)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, evt.Decoded)
		}
		var err error
		if contents, err = TxContents(k.signer, tx); err != nil {
			return nil, err
		}
	case evt.Fields != nil:
		var err error
		if contents, err = rpcTxContents(evt.Fields); err != nil {
			return nil, err
		}
	case len(evt.Raw) > 0:
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(evt.Raw); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		var err error
		if contents, err = TxContents(k.signer, tx); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedPayload
	}
	return filter.Fields{
		"tx_hash":     contents["hash"],
		"tx_contents": contents,
	}, nil
}

// TxContents formats a transaction the way the node RPC does, with snake case
// keys. The sender is recovered from the signature
func TxContents(signer types.Signer, tx *types.Transaction) (map[string]any, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	v, r, s := tx.RawSignatureValues()
	var to any
	if tx.To() != nil {
		to = strings.ToLower(tx.To().Hex())
	}
	return map[string]any{
		"from":      strings.ToLower(from.Hex()),
		"gas":       hexutil.EncodeUint64(tx.Gas()),
		"gas_price": hexutil.EncodeBig(tx.GasPrice()),
		"hash":      tx.Hash().Hex(),
		"input":     hexutil.Encode(tx.Data()),
		"value":     hexutil.EncodeBig(tx.Value()),
		"to":        to,
		"nonce":     hexutil.EncodeUint64(tx.Nonce()),
		"v":         hexutil.EncodeBig(v),
		"r":         hexutil.EncodeBig(r),
		"s":         hexutil.EncodeBig(s),
	}, nil
}

// rpcTxContents renames the RPC transaction keys and normalizes the numeric
// quantities, so filters only ever see canonical hex values
func rpcTxContents(fields map[string]any) (map[string]any, error) {
	ret := make(map[string]any, len(rpcFieldNames))
	for rpcName, name := range rpcFieldNames {
		value, ok := fields[rpcName]
		if !ok {
			continue
		}
		switch name {
		case "from", "to":
			if value == nil {
				break
			}
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s is %T", ErrMalformedRpcTx, rpcName, value)
			}
			value = strings.ToLower(str)
		case "value", "gas_price":
			num, err := decodeRpcQuantity(rpcName, value)
			if err != nil {
				return nil, err
			}
			value = hexutil.EncodeBig(num)
		case "gas", "nonce":
			num, err := decodeRpcQuantity(rpcName, value)
			if err != nil {
				return nil, err
			}
			if !num.IsUint64() {
				return nil, fmt.Errorf("%w: %s exceeds 64 bits", ErrMalformedRpcTx, rpcName)
			}
			value = hexutil.EncodeUint64(num.Uint64())
		}
		ret[name] = value
	}
	return ret, nil
}

func decodeRpcQuantity(name string, value any) (*big.Int, error) {
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrMalformedRpcTx, name, value)
	}
	num, err := hexutil.DecodeBig(str)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedRpcTx, name, err)
	}
	return num, nil
}

func validTxEnvelope(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if data[0] <= maxTxType {
		data = data[1:]
	}
	kind, _, rest, err := rlp.Split(data)
	return err == nil && kind == rlp.List && len(rest) == 0
}
