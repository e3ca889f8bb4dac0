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

package feed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFeedClosed is returned when subscribing to a feed or manager that has been
// closed
var ErrFeedClosed = errors.New("feed closed")

// UnknownFeedError is returned when subscribing to a feed name that is not
// registered
type UnknownFeedError struct {
	Name      string
	Available []string
}

func (e *UnknownFeedError) Error() string {
	return fmt.Sprintf(
		"%q is an invalid feed. Available feeds: %s",
		e.Name,
		strings.Join(e.Available, ", "),
	)
}

// DuplicateFeedError is returned when registering a feed under a name that is
// already in use
type DuplicateFeedError struct {
	Name string
}

func (e *DuplicateFeedError) Error() string {
	return fmt.Sprintf("feed %q is already registered", e.Name)
}

// InvalidOptionsError is returned when subscription options do not match the
// feed's field or filter schema. Err holds the underlying error, if any, such as
// a *filter.InvalidFilterError
type InvalidOptionsError struct {
	Reason      string
	ValidFields []string
	Err         error
}

func (e *InvalidOptionsError) Error() string {
	if len(e.ValidFields) == 0 {
		return "invalid subscription options: " + e.Reason
	}
	return fmt.Sprintf(
		"invalid subscription options: %s. Valid fields: %s",
		e.Reason,
		strings.Join(e.ValidFields, ", "),
	)
}

func (e *InvalidOptionsError) Unwrap() error {
	return e.Err
}

// AccountAccessError is returned when the caller is not entitled to any feed. This
// is reported when no feeds are registered at all
type AccountAccessError struct {
	Feed string
}

func (e *AccountAccessError) Error() string {
	if e.Feed == "" {
		return "account does not have access to any feeds"
	}
	return fmt.Sprintf("account does not have access to the %q feed", e.Feed)
}
