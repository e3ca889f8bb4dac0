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

package relay_test

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/blinklabs-io/relaygw/feed"
	"github.com/blinklabs-io/relaygw/relay"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func ethTx(t *testing.T) *types.Transaction {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	to := common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	tx, err := types.SignNewTx(
		key,
		types.LatestSignerForChainID(big.NewInt(1)),
		&types.DynamicFeeTx{
			ChainID:   big.NewInt(1),
			Nonce:     7,
			GasTipCap: big.NewInt(1_000_000_000),
			GasFeeCap: big.NewInt(30_000_000_000),
			Gas:       21000,
			To:        &to,
			Value:     big.NewInt(1_000_000_000_000_000),
		},
	)
	require.NoError(t, err)
	return tx
}

func btcTx() *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	prevOut := wire.NewOutPoint(&chainhash.Hash{0x01}, 0)
	tx.AddTxIn(wire.NewTxIn(prevOut, []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(50_000, []byte{0x51}))
	return tx
}

func encodeFrame(t *testing.T, frame *relay.Frame) []byte {
	t.Helper()
	data, err := relay.Encode(frame)
	require.NoError(t, err)
	return data
}

func TestDecodeEthereumTx(t *testing.T) {
	tx := ethTx(t)
	payload, err := tx.MarshalBinary()
	require.NoError(t, err)
	hash := tx.Hash()
	data := encodeFrame(t, &relay.Frame{
		Type:      relay.FrameTypeTx,
		Network:   "eth-mainnet",
		Hash:      hash.Bytes(),
		Payload:   payload,
		Timestamp: 1700000000000,
	})
	decoder := relay.NewDecoder("eth-mainnet", relay.EthereumHash)
	feedName, evt, err := decoder.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, relay.TxFeedName, feedName)
	assert.Equal(t, [32]byte(hash), evt.Hash)
	assert.Equal(t, feed.SourceRelaySocket, evt.Source)
	assert.Equal(t, payload, evt.Raw)
}

func TestDecodeEthereumBlock(t *testing.T) {
	header := &types.Header{
		ParentHash: common.HexToHash("0x01"),
		Number:     big.NewInt(100),
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		Time:       1700000000,
	}
	block := types.NewBlockWithHeader(header).WithBody(
		types.Body{Transactions: []*types.Transaction{ethTx(t)}},
	)
	payload, err := rlp.EncodeToBytes(block)
	require.NoError(t, err)
	computed, err := relay.EthereumHash(relay.FrameTypeBlock, payload)
	require.NoError(t, err)
	assert.Equal(t, [32]byte(block.Hash()), computed)
	data := encodeFrame(t, &relay.Frame{
		Type:    relay.FrameTypeBlock,
		Network: "eth-mainnet",
		Hash:    block.Hash().Bytes(),
		Payload: payload,
	})
	feedName, evt, err := relay.NewDecoder("eth-mainnet", relay.EthereumHash).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, relay.BlockFeedName, feedName)
	assert.Equal(t, [32]byte(block.Hash()), evt.Hash)
}

func TestDecodeBitcoin(t *testing.T) {
	tx := btcTx()
	var txBuf bytes.Buffer
	require.NoError(t, tx.Serialize(&txBuf))
	txHash := tx.TxHash()
	block := wire.NewMsgBlock(wire.NewBlockHeader(
		1,
		&chainhash.Hash{0x02},
		&txHash,
		0x1d00ffff,
		42,
	))
	require.NoError(t, block.AddTransaction(tx))
	var blockBuf bytes.Buffer
	require.NoError(t, block.Serialize(&blockBuf))
	blockHash := block.BlockHash()
	decoder := relay.NewDecoder("btc-mainnet", relay.BitcoinHash)
	testDefs := []struct {
		frame    *relay.Frame
		feedName string
		hash     chainhash.Hash
	}{
		{
			frame: &relay.Frame{
				Type:    relay.FrameTypeTx,
				Network: "btc-mainnet",
				Hash:    txHash[:],
				Payload: txBuf.Bytes(),
			},
			feedName: relay.TxFeedName,
			hash:     txHash,
		},
		{
			frame: &relay.Frame{
				Type:    relay.FrameTypeBlock,
				Network: "btc-mainnet",
				Hash:    blockHash[:],
				Payload: blockBuf.Bytes(),
			},
			feedName: relay.BlockFeedName,
			hash:     blockHash,
		},
	}
	for _, testDef := range testDefs {
		feedName, evt, err := decoder.Decode(encodeFrame(t, testDef.frame))
		require.NoError(t, err, testDef.frame.Type.String())
		assert.Equal(t, testDef.feedName, feedName)
		assert.Equal(t, [32]byte(testDef.hash), evt.Hash)
	}
}

func TestDecodeHashMismatch(t *testing.T) {
	tx := btcTx()
	var txBuf bytes.Buffer
	require.NoError(t, tx.Serialize(&txBuf))
	claimed := make([]byte, 32)
	claimed[0] = 0xff
	data := encodeFrame(t, &relay.Frame{
		Type:    relay.FrameTypeTx,
		Network: "btc-mainnet",
		Hash:    claimed,
		Payload: txBuf.Bytes(),
	})
	_, _, err := relay.NewDecoder("btc-mainnet", relay.BitcoinHash).Decode(data)
	require.ErrorIs(t, err, relay.ErrHashMismatch)
	var mismatchErr *relay.HashMismatchError
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, [32]byte(tx.TxHash()), mismatchErr.Computed)
	assert.Equal(t, claimed, mismatchErr.Claimed)
}

func TestDecodeRejected(t *testing.T) {
	tx := ethTx(t)
	payload, err := tx.MarshalBinary()
	require.NoError(t, err)
	hash := tx.Hash()
	testDefs := []struct {
		name        string
		frame       *relay.Frame
		expectedErr error
	}{
		{
			name: "wrong network",
			frame: &relay.Frame{
				Type:    relay.FrameTypeTx,
				Network: "eth-sepolia",
				Hash:    hash.Bytes(),
				Payload: payload,
			},
			expectedErr: relay.ErrNetworkMismatch,
		},
		{
			name: "unknown type",
			frame: &relay.Frame{
				Type:    9,
				Network: "eth-mainnet",
				Hash:    hash.Bytes(),
				Payload: payload,
			},
			expectedErr: relay.ErrUnknownFrameType,
		},
		{
			name: "empty payload",
			frame: &relay.Frame{
				Type:    relay.FrameTypeTx,
				Network: "eth-mainnet",
				Hash:    hash.Bytes(),
			},
			expectedErr: relay.ErrEmptyPayload,
		},
		{
			name: "short hash",
			frame: &relay.Frame{
				Type:    relay.FrameTypeTx,
				Network: "eth-mainnet",
				Hash:    hash.Bytes()[:16],
				Payload: payload,
			},
			expectedErr: relay.ErrHashMismatch,
		},
	}
	decoder := relay.NewDecoder("eth-mainnet", relay.EthereumHash)
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, _, err := decoder.Decode(encodeFrame(t, testDef.frame))
			require.Error(t, err)
			assert.True(t, errors.Is(err, testDef.expectedErr), err.Error())
		})
	}
	// Not CBOR at all
	_, _, err = decoder.Decode([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestFrameKeepsOriginalCbor(t *testing.T) {
	data := encodeFrame(t, &relay.Frame{
		Type:      relay.FrameTypeTx,
		Network:   "btc-regtest",
		Hash:      make([]byte, 32),
		Payload:   []byte{0x01},
		Timestamp: 12345,
	})
	var frame relay.Frame
	require.NoError(t, frame.UnmarshalCBOR(data))
	assert.Equal(t, relay.FrameTypeTx, frame.Type)
	assert.Equal(t, "btc-regtest", frame.Network)
	assert.Equal(t, int64(12345), frame.Timestamp)
	assert.Equal(t, data, frame.Cbor())
	reencoded, err := relay.Encode(&frame)
	require.NoError(t, err)
	assert.Equal(t, data, reencoded)
}
