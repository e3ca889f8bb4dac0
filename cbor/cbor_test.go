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

package cbor_test

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/blinklabs-io/relaygw/cbor"
	"github.com/blinklabs-io/relaygw/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	cbor.StructAsArray
	cbor.DecodeStoreCbor
	Type    uint
	Name    string
	Payload []byte
}

var errCustomMarshaler = errors.New("custom marshaler called")

func (m *testMessage) UnmarshalCBOR(data []byte) error {
	return errCustomMarshaler
}

func (m *testMessage) MarshalCBOR() ([]byte, error) {
	return nil, errCustomMarshaler
}

func TestEncode(t *testing.T) {
	testDefs := []struct {
		cborHex string
		object  any
	}{
		{
			// Simple list of numbers
			cborHex: "83010203",
			object:  []any{1, 2, 3},
		},
		{
			// Map keys are sorted
			cborHex: "a2616101616202",
			object:  map[string]int{"b": 2, "a": 1},
		},
	}
	for _, testDef := range testDefs {
		cborData, err := cbor.Encode(testDef.object)
		require.NoError(t, err)
		assert.Equal(t, testDef.cborHex, hex.EncodeToString(cborData))
	}
}

func TestDecode(t *testing.T) {
	cborData := test.DecodeHexString("8301020300")
	var dest []uint
	n, err := cbor.Decode(cborData, &dest)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []uint{1, 2, 3}, dest)
}

func TestDecodeIdFromList(t *testing.T) {
	testDefs := []struct {
		cborHex string
		id      int
	}{
		{cborHex: "820102", id: 1},
		// First item does not fit in the initial byte
		{cborHex: "82186402", id: 100},
		// List length does not fit in the initial byte
		{cborHex: "981805" + strings.Repeat("00", 23), id: 5},
	}
	for _, testDef := range testDefs {
		id, err := cbor.DecodeIdFromList(test.DecodeHexString(testDef.cborHex))
		require.NoError(t, err, testDef.cborHex)
		assert.Equal(t, testDef.id, id)
	}
	_, err := cbor.DecodeIdFromList(test.DecodeHexString("80"))
	assert.Error(t, err)
	// First item is not numeric
	_, err = cbor.DecodeIdFromList(test.DecodeHexString("82616101"))
	assert.Error(t, err)
}

func TestListLength(t *testing.T) {
	n, err := cbor.ListLength(test.DecodeHexString("83010203"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = cbor.ListLength(nil)
	assert.Error(t, err)
}

func TestGenericBypassesCustomMarshalers(t *testing.T) {
	src := &testMessage{
		Type:    2,
		Name:    "tx",
		Payload: []byte{0xde, 0xad},
	}
	_, err := cbor.Encode(src)
	require.Error(t, err)
	cborData, err := cbor.EncodeGeneric(src)
	require.NoError(t, err)
	assert.Equal(t, "830262747842dead", hex.EncodeToString(cborData))
	var dest testMessage
	require.NoError(t, cbor.DecodeGeneric(cborData, &dest))
	assert.Equal(t, src.Type, dest.Type)
	assert.Equal(t, src.Name, dest.Name)
	assert.Equal(t, src.Payload, dest.Payload)
	dest.SetCbor(cborData)
	assert.Equal(t, cborData, dest.Cbor())
	assert.Error(t, cbor.DecodeGeneric(cborData, dest))
}
