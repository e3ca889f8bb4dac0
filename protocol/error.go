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

package protocol

import "errors"

// ErrProtocolShuttingDown is returned when a message is sent after the protocol
// has been stopped
var ErrProtocolShuttingDown = errors.New("protocol is shutting down")

var (
	// ErrProtocolViolationMessageTooLarge is returned when a message header
	// announces a payload above the protocol limit
	ErrProtocolViolationMessageTooLarge = errors.New(
		"protocol violation: message exceeds size limit",
	)
	// ErrProtocolViolationBadChecksum is returned when a message payload does
	// not match the checksum in its header
	ErrProtocolViolationBadChecksum = errors.New(
		"protocol violation: message checksum mismatch",
	)
	// ErrProtocolViolationBadMagic is returned when a message header carries the
	// magic of another network
	ErrProtocolViolationBadMagic = errors.New(
		"protocol violation: unexpected network magic",
	)
)
