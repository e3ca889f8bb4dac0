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
	"math/big"
	"strings"
)

// Compile validates the raw filter expression against the schema and builds the
// expression tree. Compilation is all-or-nothing: any violation anywhere in the
// tree returns an *InvalidFilterError and no tree
func Compile(raw any, schema Schema) (Node, error) {
	if len(schema) == 0 {
		return nil, &InvalidFilterError{
			Reason: "feed does not support filters",
		}
	}
	node, err := compileNode(raw, schema)
	if err != nil {
		return nil, &InvalidFilterError{
			Reason: err.Error(),
			Valid:  schema.Names(),
		}
	}
	return node, nil
}

func compileNode(raw any, schema Schema) (Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filter node must be a mapping, got %T", raw)
	}
	if len(m) != 1 {
		return nil, fmt.Errorf(
			"filter node must have exactly one key, got %d",
			len(m),
		)
	}
	for key, value := range m {
		switch strings.ToUpper(key) {
		case keyAnd:
			children, err := compileChildren(key, value, schema)
			if err != nil {
				return nil, err
			}
			return And{Children: children}, nil
		case keyOr:
			children, err := compileChildren(key, value, schema)
			if err != nil {
				return nil, err
			}
			return Or{Children: children}, nil
		default:
			return compilePredicate(key, value, schema)
		}
	}
	// Unreachable with exactly one key
	return nil, fmt.Errorf("empty filter node")
}

func compileChildren(key string, value any, schema Schema) ([]Node, error) {
	items, ok := toList(value)
	if !ok {
		return nil, fmt.Errorf("%s value must be a list, got %T", key, value)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s list must not be empty", key)
	}
	children := make([]Node, 0, len(items))
	for _, item := range items {
		child, err := compileNode(item, schema)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func compilePredicate(name string, operand any, schema Schema) (Node, error) {
	spec, ok := schema[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	p := Predicate{
		Name: name,
		Spec: spec,
	}
	switch spec.Kind {
	case KindRange:
		low, high, err := compileRange(name, operand, spec.Decimals)
		if err != nil {
			return nil, err
		}
		p.low = low
		p.high = high
	case KindSet:
		values, err := compileSet(name, operand)
		if err != nil {
			return nil, err
		}
		p.values = values
	default:
		return nil, fmt.Errorf(
			"filter %q has unsupported kind %s",
			name,
			spec.Kind,
		)
	}
	return p, nil
}

func compileRange(name string, operand any, decimals int) (*big.Rat, *big.Rat, error) {
	items, ok := toList(operand)
	if !ok || len(items) != 2 {
		return nil, nil, fmt.Errorf(
			"filter %q expects a range of two values [low, high]",
			name,
		)
	}
	bounds := make([]*big.Rat, 2)
	for i, item := range items {
		num, err := toRat(item)
		if err != nil {
			return nil, nil, fmt.Errorf("filter %q: %w", name, err)
		}
		bounds[i] = scale(num, decimals)
	}
	if bounds[0].Cmp(bounds[1]) > 0 {
		return nil, nil, fmt.Errorf(
			"filter %q: range low value is greater than high value",
			name,
		)
	}
	return bounds[0], bounds[1], nil
}

func compileSet(name string, operand any) (map[string]struct{}, error) {
	var items []any
	if str, ok := operand.(string); ok {
		items = []any{str}
	} else {
		items, ok = toList(operand)
		if !ok {
			return nil, fmt.Errorf(
				"filter %q expects a string or a list of strings",
				name,
			)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("filter %q expects a non-empty list", name)
	}
	ret := make(map[string]struct{}, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf(
				"filter %q expects strings, got %T",
				name,
				item,
			)
		}
		str = normalizeString(str)
		if str == "" {
			return nil, fmt.Errorf("filter %q contains an empty value", name)
		}
		ret[str] = struct{}{}
	}
	return ret, nil
}

func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		ret := make([]any, len(v))
		for i, item := range v {
			ret[i] = item
		}
		return ret, true
	case []float64:
		ret := make([]any, len(v))
		for i, item := range v {
			ret[i] = item
		}
		return ret, true
	case []int:
		ret := make([]any, len(v))
		for i, item := range v {
			ret[i] = item
		}
		return ret, true
	case []map[string]any:
		ret := make([]any, len(v))
		for i, item := range v {
			ret[i] = item
		}
		return ret, true
	}
	return nil, false
}
