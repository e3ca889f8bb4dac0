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

package filter

import (
	"fmt"
	"strings"
)

// InvalidFilterError is returned when a filter expression does not match the
// feed's filter schema
type InvalidFilterError struct {
	Reason string
	// Valid lists the predicate names the feed supports
	Valid []string
}

func (e *InvalidFilterError) Error() string {
	if len(e.Valid) == 0 {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf(
		"invalid filter: %s (valid filters: %s)",
		e.Reason,
		strings.Join(e.Valid, ", "),
	)
}

// EvaluationError is returned when a field value cannot be compared by its
// predicate. This indicates a mismatch between a feed's serializer and its
// filter schema rather than bad user input
type EvaluationError struct {
	Predicate string
	Field     string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf(
		"filter %q on field %q: %s",
		e.Predicate,
		e.Field,
		e.Err,
	)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
