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
	"fmt"
	"time"
)

// HandshakeTimeoutError is reported when the peer does not complete the version
// handshake in time. It is fatal to the connection
type HandshakeTimeoutError struct {
	Timeout time.Duration
	State   string
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf(
		"%s: handshake did not complete within %s (state %s)",
		ProtocolName,
		e.Timeout,
		e.State,
	)
}

// DecodeError is returned when a single message from the peer cannot be decoded.
// It is not fatal to the connection
type DecodeError struct {
	Command string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf(
		"%s: failed to decode %q message: %s",
		ProtocolName,
		e.Command,
		e.Err,
	)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedVersionError is returned when the peer's version message announces a
// protocol version below MinProtocolVersion. It is fatal to the connection
type UnsupportedVersionError struct {
	ProtocolVersion int32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf(
		"%s: peer protocol version %d is below the minimum %d",
		ProtocolName,
		e.ProtocolVersion,
		MinProtocolVersion,
	)
}
