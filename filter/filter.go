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

// Package filter compiles user-supplied boolean filter expressions into an
// immutable tree and evaluates it against decoded event fields.
//
// The input grammar is an untyped nested mapping, as produced by decoding JSON:
//
//	{"AND": [node, ...]}
//	{"OR": [node, ...]}
//	{"<predicate name>": operand}
//
// Predicate names and their operand shapes are defined by a Schema, which each
// feed provides.
package filter

import (
	"fmt"
	"math/big"
	"slices"
	"strings"
)

const (
	keyAnd = "AND"
	keyOr  = "OR"
)

// Fields is a decoded event, keyed by field name. Nested mappings can be
// addressed with dotted paths such as "tx_contents.to"
type Fields = map[string]any

// PredicateKind identifies the comparator used by a predicate
type PredicateKind uint8

const (
	KindRange PredicateKind = iota + 1
	KindSet
)

func (k PredicateKind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// PredicateSpec binds a predicate name to its comparator and the field it reads
type PredicateSpec struct {
	Kind PredicateKind
	// Field is the dotted path of the field the predicate compares against
	Field string
	// Decimals scales range operands by 10^Decimals before comparison. A range
	// given in ETH is compared against a value in wei with Decimals = 18
	Decimals int
}

// Schema maps predicate names to their specs
type Schema map[string]PredicateSpec

// Names returns the predicate names in sorted order
func (s Schema) Names() []string {
	ret := make([]string, 0, len(s))
	for name := range s {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// Node is a compiled filter expression. The only implementations are And, Or and
// Predicate
type Node interface {
	// Evaluate reports whether the fields satisfy the expression
	Evaluate(fields Fields) (bool, error)
	String() string
	isNode()
}

// And is true iff every child is true
type And struct {
	Children []Node
}

func (And) isNode() {}

func (n And) Evaluate(fields Fields) (bool, error) {
	for _, child := range n.Children {
		ok, err := child.Evaluate(fields)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (n And) String() string {
	return joinNodes(keyAnd, n.Children)
}

// Or is true iff any child is true
type Or struct {
	Children []Node
}

func (Or) isNode() {}

func (n Or) Evaluate(fields Fields) (bool, error) {
	for _, child := range n.Children {
		ok, err := child.Evaluate(fields)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (n Or) String() string {
	return joinNodes(keyOr, n.Children)
}

// Predicate is a leaf comparing one field against a compiled operand
type Predicate struct {
	Name string
	Spec PredicateSpec
	// KindRange
	low  *big.Rat
	high *big.Rat
	// KindSet
	values map[string]struct{}
}

func (Predicate) isNode() {}

// Evaluate compares the predicate's field against its operand. A missing field
// evaluates to false
func (p Predicate) Evaluate(fields Fields) (bool, error) {
	value, ok := Lookup(fields, p.Spec.Field)
	if !ok || value == nil {
		return false, nil
	}
	switch p.Spec.Kind {
	case KindRange:
		num, err := toRat(value)
		if err != nil {
			return false, &EvaluationError{Predicate: p.Name, Field: p.Spec.Field, Err: err}
		}
		return num.Cmp(p.low) >= 0 && num.Cmp(p.high) <= 0, nil
	case KindSet:
		return p.matchSet(value)
	default:
		return false, &EvaluationError{
			Predicate: p.Name,
			Field:     p.Spec.Field,
			Err:       fmt.Errorf("unsupported predicate kind %d", p.Spec.Kind),
		}
	}
}

func (p Predicate) matchSet(value any) (bool, error) {
	switch v := value.(type) {
	case string:
		_, ok := p.values[normalizeString(v)]
		return ok, nil
	case []string:
		for _, item := range v {
			if _, ok := p.values[normalizeString(item)]; ok {
				return true, nil
			}
		}
		return false, nil
	case []any:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return false, &EvaluationError{
					Predicate: p.Name,
					Field:     p.Spec.Field,
					Err:       fmt.Errorf("list item of type %T is not a string", item),
				}
			}
			if _, ok := p.values[normalizeString(str)]; ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, &EvaluationError{
			Predicate: p.Name,
			Field:     p.Spec.Field,
			Err:       fmt.Errorf("value of type %T cannot be compared to a set", value),
		}
	}
}

func (p Predicate) String() string {
	switch p.Spec.Kind {
	case KindRange:
		return fmt.Sprintf(
			"%s[%s, %s]",
			p.Name,
			p.low.FloatString(0),
			p.high.FloatString(0),
		)
	case KindSet:
		values := make([]string, 0, len(p.values))
		for v := range p.values {
			values = append(values, v)
		}
		slices.Sort(values)
		return fmt.Sprintf("%s{%s}", p.Name, strings.Join(values, ", "))
	}
	return p.Name
}

// Lookup returns the value at the dotted path
func Lookup(fields Fields, path string) (any, bool) {
	var cur any = fields
	for key := range strings.SplitSeq(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func joinNodes(op string, children []Node) string {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		parts = append(parts, child.String())
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

func normalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
