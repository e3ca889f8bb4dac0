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
	"fmt"
	"slices"
)

// Options are the per-subscription settings supplied with a subscribe request
type Options struct {
	// Include lists the fields to deliver. Empty means all top-level fields
	Include []string
	// Duplicates disables dedup suppression for this subscriber
	Duplicates bool
	// Filters is the raw filter expression, as decoded from JSON. Nil, an
	// empty mapping or an empty string mean no filter
	Filters any
}

// ParseOptions builds Options from an untyped mapping as decoded from a JSON
// subscribe request
func ParseOptions(raw any) (Options, error) {
	var ret Options
	if raw == nil {
		return ret, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return ret, &InvalidOptionsError{
			Reason: fmt.Sprintf("options must be an object, got %T", raw),
		}
	}
	if include, ok := m["include"]; ok && include != nil {
		items, ok := include.([]any)
		if !ok {
			return ret, &InvalidOptionsError{
				Reason: "include must be a list of field names",
			}
		}
		for _, item := range items {
			field, ok := item.(string)
			if !ok {
				return ret, &InvalidOptionsError{
					Reason: fmt.Sprintf("include field %v is not a string", item),
				}
			}
			ret.Include = append(ret.Include, field)
		}
	}
	if duplicates, ok := m["duplicates"]; ok && duplicates != nil {
		b, ok := duplicates.(bool)
		if !ok {
			return ret, &InvalidOptionsError{
				Reason: "duplicates must be a boolean",
			}
		}
		ret.Duplicates = b
	}
	if filters, ok := m["filters"]; ok {
		ret.Filters = filters
	}
	return ret, nil
}

func hasFilters(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case map[string]any:
		return len(v) > 0
	}
	return true
}

// normalizeInclude validates the include list against the field schema and drops
// fields already covered by an included parent field
func normalizeInclude(include []string, kind Kind) ([]string, error) {
	if len(include) == 0 {
		return DefaultInclude(kind), nil
	}
	valid := kind.Fields()
	ret := make([]string, 0, len(include))
	for _, field := range include {
		if !slices.Contains(valid, field) {
			return nil, &InvalidOptionsError{
				Reason:      fmt.Sprintf("%q is not a valid include field", field),
				ValidFields: valid,
			}
		}
		if !slices.Contains(ret, field) {
			ret = append(ret, field)
		}
	}
	// Drop children of included parents so projection never writes into a
	// map it did not create
	projected := make([]string, 0, len(ret))
	for _, field := range ret {
		covered := slices.ContainsFunc(ret, func(other string) bool {
			return isParentPath(other, field)
		})
		if !covered {
			projected = append(projected, field)
		}
	}
	return projected, nil
}

func isParentPath(parent string, child string) bool {
	return len(child) > len(parent) &&
		child[:len(parent)] == parent &&
		child[len(parent)] == '.'
}
