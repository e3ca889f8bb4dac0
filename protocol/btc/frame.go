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

package btc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/blinklabs-io/relaygw/protocol"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	FrameHeaderSize  = 24
	FrameCommandSize = wire.CommandSize
	ChecksumSize     = 4
)

// FrameHeader is the fixed-size header preceding every message on the wire
type FrameHeader struct {
	Magic    uint32
	Command  [FrameCommandSize]byte
	Length   uint32
	Checksum [ChecksumSize]byte
}

// CommandString returns the command with the NUL padding removed
func (h *FrameHeader) CommandString() string {
	return string(bytes.TrimRight(h.Command[:], "\x00"))
}

// Frame is a message as read from the wire, before decoding
type Frame struct {
	FrameHeader
	Payload []byte
}

// ReadFrame reads one frame from the reader. Frames for another network or above
// the maximum message size leave the stream unusable and are reported as protocol
// violations. A checksum mismatch is returned as a *DecodeError along with the
// frame, since the stream is still aligned on the next frame
func ReadFrame(r io.Reader, network wire.BitcoinNet) (*Frame, error) {
	header := FrameHeader{}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != uint32(network) {
		return nil, fmt.Errorf(
			"%w: got %#08x, expected %#08x",
			protocol.ErrProtocolViolationBadMagic,
			header.Magic,
			uint32(network),
		)
	}
	if header.Length > wire.MaxMessagePayload {
		return nil, fmt.Errorf(
			"%w: %d bytes for %q",
			protocol.ErrProtocolViolationMessageTooLarge,
			header.Length,
			header.CommandString(),
		)
	}
	frame := &Frame{
		FrameHeader: header,
		Payload:     make([]byte, header.Length),
	}
	// We use ReadFull because it guarantees to read the expected number of bytes or
	// return an error
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		return nil, err
	}
	checksum := chainhash.DoubleHashB(frame.Payload)[:ChecksumSize]
	if !bytes.Equal(checksum, header.Checksum[:]) {
		return frame, &DecodeError{
			Command: header.CommandString(),
			Err:     protocol.ErrProtocolViolationBadChecksum,
		}
	}
	return frame, nil
}
