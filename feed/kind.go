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
	"strings"

	"github.com/blinklabs-io/relaygw/filter"
)

// Kind describes one kind of feed (transactions, blocks, ...). The feed pipeline
// is written once against this interface
type Kind interface {
	// Name is the feed name subscribers use, such as "newTxs"
	Name() string
	// Fields returns the ordered field schema. Nested fields use dotted paths
	// such as "tx_contents.to"
	Fields() []string
	// Filters returns the predicates subscribers may use in filters
	Filters() filter.Schema
	// Validate is a cheap well-formedness check. Events failing it are dropped
	// before any other processing
	Validate(evt RawEvent) bool
	// Serialize converts the event to its canonical field mapping
	Serialize(evt RawEvent) (filter.Fields, error)
}

// DefaultInclude returns the top-level fields of the kind's schema, which is the
// projection used when a subscriber does not request specific fields
func DefaultInclude(kind Kind) []string {
	var ret []string
	for _, field := range kind.Fields() {
		if !strings.Contains(field, ".") {
			ret = append(ret, field)
		}
	}
	return ret
}
