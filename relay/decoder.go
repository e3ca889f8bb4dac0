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
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/relaygw/cbor"
	"github.com/blinklabs-io/relaygw/feed"
)

// Decoder turns relay frames for a single network into RawEvents
type Decoder struct {
	network  string
	hashFunc HashFunc
	logger   *slog.Logger
}

type DecoderOptionFunc func(*Decoder)

// WithDecoderLogger specifies the logger used for rejected frames
func WithDecoderLogger(logger *slog.Logger) DecoderOptionFunc {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// NewDecoder returns a Decoder that accepts frames for the named network and
// verifies their hash with hashFunc
func NewDecoder(
	network string,
	hashFunc HashFunc,
	opts ...DecoderOptionFunc,
) *Decoder {
	d := &Decoder{
		network:  network,
		hashFunc: hashFunc,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "relay", "network", network)
	return d
}

// Network returns the network name the decoder accepts
func (d *Decoder) Network() string {
	return d.network
}

// Decode validates a relay frame and returns the feed it belongs to along with
// the event to publish
func (d *Decoder) Decode(data []byte) (string, feed.RawEvent, error) {
	frame, err := d.decode(data)
	if err != nil {
		framesRejected.WithLabelValues(d.network).Inc()
		d.logger.Debug(
			"rejected relay frame",
			"error", err,
		)
		return "", feed.RawEvent{}, err
	}
	framesDecoded.WithLabelValues(d.network, frame.Type.String()).Inc()
	evt := feed.RawEvent{
		Hash:   [32]byte(frame.Hash),
		Source: feed.SourceRelaySocket,
		Raw:    frame.Payload,
	}
	return frame.Type.FeedName(), evt, nil
}

func (d *Decoder) decode(data []byte) (*Frame, error) {
	// Check the frame type before doing a full decode
	frameTypeId, err := cbor.DecodeIdFromList(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame type: %w", err)
	}
	frameType := FrameType(frameTypeId) // #nosec G115
	if frameType.FeedName() == "" {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrameType, frameTypeId)
	}
	var frame Frame
	if _, err := cbor.Decode(data, &frame); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", frameType, err)
	}
	if frame.Network != d.network {
		return nil, fmt.Errorf(
			"%w: got %q, expected %q",
			ErrNetworkMismatch,
			frame.Network,
			d.network,
		)
	}
	if len(frame.Payload) == 0 {
		return nil, ErrEmptyPayload
	}
	computed, err := d.hashFunc(frame.Type, frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("hash %s payload: %w", frame.Type, err)
	}
	if !bytes.Equal(frame.Hash, computed[:]) {
		return nil, &HashMismatchError{
			Claimed:  frame.Hash,
			Computed: computed,
		}
	}
	return &frame, nil
}
