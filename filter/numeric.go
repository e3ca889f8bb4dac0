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
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/sugawarayuuta/sonnet"
)

// toRat normalizes a numeric value to an exact rational. Strings may be decimal
// ("0.5", "187911390000000000") or 0x-prefixed hexadecimal integers. Floats are
// taken at their shortest decimal form, so 0.1 is exactly one tenth
func toRat(value any) (*big.Rat, error) {
	switch v := value.(type) {
	case string:
		return parseNumericString(v)
	case json.Number:
		return parseNumericString(v.String())
	case sonnet.Number:
		return parseNumericString(v.String())
	case float64:
		return floatToRat(v, 64)
	case float32:
		return floatToRat(float64(v), 32)
	case int:
		return new(big.Rat).SetInt64(int64(v)), nil
	case int64:
		return new(big.Rat).SetInt64(v), nil
	case uint64:
		return new(big.Rat).SetInt(new(big.Int).SetUint64(v)), nil
	case uint32:
		return new(big.Rat).SetInt64(int64(v)), nil
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil numeric value")
		}
		return new(big.Rat).SetInt(v), nil
	case *big.Rat:
		if v == nil {
			return nil, fmt.Errorf("nil numeric value")
		}
		return new(big.Rat).Set(v), nil
	default:
		return nil, fmt.Errorf("value of type %T is not numeric", value)
	}
}

func floatToRat(v float64, bitSize int) (*big.Rat, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid numeric value %v", v)
	}
	return parseNumericString(strconv.FormatFloat(v, 'g', -1, bitSize))
}

func parseNumericString(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if hexDigits, ok := strings.CutPrefix(lower, "0x"); ok {
		if hexDigits == "" {
			return new(big.Rat), nil
		}
		i, ok := new(big.Int).SetString(hexDigits, 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex value %q", s)
		}
		return new(big.Rat).SetInt(i), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return r, nil
}

func scale(num *big.Rat, decimals int) *big.Rat {
	if decimals <= 0 {
		return num
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).Mul(num, new(big.Rat).SetInt(factor))
}
