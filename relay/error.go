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
	"errors"
	"fmt"
)

var (
	ErrHashMismatch     = errors.New("frame hash does not match payload")
	ErrNetworkMismatch  = errors.New("frame is for a different network")
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrEmptyPayload     = errors.New("frame payload is empty")
)

// HashMismatchError carries the claimed and the locally computed hash
type HashMismatchError struct {
	Claimed  []byte
	Computed [32]byte
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf(
		"%s: claimed %x, computed %x",
		ErrHashMismatch,
		e.Claimed,
		e.Computed,
	)
}

func (e *HashMismatchError) Unwrap() error {
	return ErrHashMismatch
}
