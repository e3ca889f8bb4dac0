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

package relay

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// HashFunc computes the content hash of a frame payload
type HashFunc func(frameType FrameType, payload []byte) ([32]byte, error)

// EthereumHash hashes transactions as keccak-256 of the typed envelope and blocks
// as keccak-256 of the RLP encoded header
func EthereumHash(frameType FrameType, payload []byte) ([32]byte, error) {
	switch frameType {
	case FrameTypeTx:
		return keccak256(payload), nil
	case FrameTypeBlock:
		content, _, err := rlp.SplitList(payload)
		if err != nil {
			return [32]byte{}, fmt.Errorf("block is not an RLP list: %w", err)
		}
		_, _, rest, err := rlp.Split(content)
		if err != nil {
			return [32]byte{}, fmt.Errorf("block header: %w", err)
		}
		return keccak256(content[:len(content)-len(rest)]), nil
	}
	return [32]byte{}, fmt.Errorf("%w: %d", ErrUnknownFrameType, frameType)
}

// BitcoinHash returns the txid of a transaction or the hash of a block header
func BitcoinHash(frameType FrameType, payload []byte) ([32]byte, error) {
	switch frameType {
	case FrameTypeTx:
		var tx wire.MsgTx
		if err := tx.Deserialize(bytes.NewReader(payload)); err != nil {
			return [32]byte{}, fmt.Errorf("decode tx: %w", err)
		}
		return tx.TxHash(), nil
	case FrameTypeBlock:
		if len(payload) < wire.MaxBlockHeaderPayload {
			return [32]byte{}, errors.New("block is shorter than its header")
		}
		var header wire.BlockHeader
		if err := header.Deserialize(bytes.NewReader(payload)); err != nil {
			return [32]byte{}, fmt.Errorf("decode block header: %w", err)
		}
		return header.BlockHash(), nil
	}
	return [32]byte{}, fmt.Errorf("%w: %d", ErrUnknownFrameType, frameType)
}

func keccak256(data []byte) [32]byte {
	var ret [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(ret[:0])
	return ret
}
