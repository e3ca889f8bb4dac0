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

// Package relay implements the codec for frames received from the relay network.
// A frame carries one transaction or block in its canonical wire encoding along
// with the hash claimed by the sender, which is always recomputed locally.
package relay

import (
	"fmt"

	"github.com/blinklabs-io/relaygw/cbor"
)

// FrameType identifies the payload carried by a relay frame
type FrameType uint

const (
	FrameTypeTx    FrameType = 1
	FrameTypeBlock FrameType = 2
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeTx:
		return "tx"
	case FrameTypeBlock:
		return "block"
	}
	return fmt.Sprintf("unknown(%d)", uint(t))
}

// Feed names that relay frames are published under
const (
	TxFeedName    = "newTxs"
	BlockFeedName = "newBlocks"
)

// FeedName returns the feed a frame of this type is published to
func (t FrameType) FeedName() string {
	switch t {
	case FrameTypeTx:
		return TxFeedName
	case FrameTypeBlock:
		return BlockFeedName
	}
	return ""
}

// Frame is a single relay network message
type Frame struct {
	cbor.StructAsArray
	cbor.DecodeStoreCbor
	Type    FrameType
	Network string
	Hash    []byte
	Payload []byte
	// Unix timestamp in milliseconds when the sender first saw the payload
	Timestamp int64
}

func (f *Frame) UnmarshalCBOR(cborData []byte) error {
	if err := cbor.DecodeGeneric(cborData, f); err != nil {
		return err
	}
	f.SetCbor(cborData)
	return nil
}

func (f *Frame) MarshalCBOR() ([]byte, error) {
	// Return stored CBOR if we have any
	cborData := f.Cbor()
	if cborData != nil {
		return cborData, nil
	}
	return cbor.EncodeGeneric(f)
}

// Encode returns the CBOR encoding of a frame
func Encode(frame *Frame) ([]byte, error) {
	return cbor.Encode(frame)
}
