// Copyright 2025 Edgeo SCADA
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

package uaedge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScalarTable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		variant Variant
		want    interface{}
	}{
		{"boolean", Variant{Type: TypeBoolean, Value: true}, true},
		{"sbyte", Variant{Type: TypeSByte, Value: int8(-5)}, int8(-5)},
		{"byte", Variant{Type: TypeByte, Value: byte(200)}, byte(200)},
		{"int16", Variant{Type: TypeInt16, Value: int16(-1234)}, int16(-1234)},
		{"uint16", Variant{Type: TypeUInt16, Value: uint16(60000)}, uint16(60000)},
		{"int32", Variant{Type: TypeInt32, Value: int32(-100000)}, int32(-100000)},
		{"uint32", Variant{Type: TypeUInt32, Value: uint32(4000000000)}, uint32(4000000000)},
		{"int64", Variant{Type: TypeInt64, Value: int64(-1 << 40)}, int64(-1 << 40)},
		{"uint64", Variant{Type: TypeUInt64, Value: uint64(1 << 50)}, uint64(1 << 50)},
		{"float", Variant{Type: TypeFloat, Value: float32(3.5)}, float32(3.5)},
		{"double", Variant{Type: TypeDouble, Value: 2.25}, 2.25},
		{"datetime", Variant{Type: TypeDateTime, Value: now}, now},
		{"string", Variant{Type: TypeString, Value: "hello"}, "hello"},
		{"bytestring", Variant{Type: TypeByteString, Value: []byte{0x01, 0x02}}, "\x01\x02"},
		{"xmlelement", Variant{Type: TypeXMLElement, Value: "<a/>"}, "<a/>"},
		{"localizedtext", Variant{Type: TypeLocalizedText, Value: LocalizedText{Locale: "en", Text: "T"}},
			LocalizedText{Locale: "en", Text: "T"}},
		{"qualifiedname", Variant{Type: TypeQualifiedName, Value: QualifiedName{NamespaceIndex: 2, Name: "Q"}},
			QualifiedName{NamespaceIndex: 2, Name: "Q"}},
		{"nodeid", Variant{Type: TypeNodeID, Value: NewStringNodeID(3, "N")}, NewStringNodeID(3, "N")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := decodeVariant(&tc.variant)
			require.NoError(t, err)
			assert.Equal(t, tc.variant.Type, value.Type)
			assert.False(t, value.IsArray)
			assert.Equal(t, tc.want, value.Data)
		})
	}
}

func TestDecodeGUIDCanonicalForm(t *testing.T) {
	g := uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	value, err := decodeVariant(&Variant{Type: TypeGUID, Value: g})
	require.NoError(t, err)

	s, ok := value.Str()
	require.True(t, ok)
	assert.Len(t, s, GUIDLength)
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", s)
}

func TestGUIDRoundTripPreservesBytes(t *testing.T) {
	g := uuid.New()
	decoded, err := decodeVariant(&Variant{Type: TypeGUID, Value: g})
	require.NoError(t, err)

	variant, err := encodeValue(decoded)
	require.NoError(t, err)
	back, ok := variant.Value.(uuid.UUID)
	require.True(t, ok)
	assert.Equal(t, g, back)
}

func TestDecodeArrays(t *testing.T) {
	guids := []uuid.UUID{uuid.New(), uuid.New()}
	value, err := decodeVariant(&Variant{Type: TypeGUID, IsArray: true, Value: guids})
	require.NoError(t, err)
	require.True(t, value.IsArray)
	assert.Equal(t, 2, value.ArrayLength)
	strs, ok := value.Data.([]string)
	require.True(t, ok)
	assert.Equal(t, guids[0].String(), strs[0])
	assert.Equal(t, guids[1].String(), strs[1])

	value, err = decodeVariant(&Variant{Type: TypeByteString, IsArray: true, Value: [][]byte{[]byte("ab"), []byte("cd")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cd"}, value.Data)

	value, err = decodeVariant(&Variant{Type: TypeInt32, IsArray: true, Value: []int32{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, value.ArrayLength)
	assert.Equal(t, []int32{1, 2, 3}, value.Data)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Value{
		NewValue(TypeBoolean, true),
		NewValue(TypeInt32, int32(7)),
		NewValue(TypeDouble, 1.5),
		NewValue(TypeString, "x"),
		NewArrayValue(TypeUInt16, []uint16{1, 2}, 2),
	}
	for _, in := range cases {
		variant, err := encodeValue(in)
		require.NoError(t, err)
		out, err := decodeVariant(variant)
		require.NoError(t, err)
		assert.Equal(t, in.Type, out.Type)
		assert.Equal(t, in.Data, out.Data)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := decodeVariant(&Variant{Type: TypeID(99), Value: 1})
	assert.Error(t, err)
	_, err = decodeVariant(nil)
	assert.Error(t, err)
}

func TestValueAccessors(t *testing.T) {
	v := NewValue(TypeInt16, int16(-3))
	n, ok := v.Int()
	require.True(t, ok)
	assert.Equal(t, int64(-3), n)

	b, ok := NewValue(TypeBoolean, true).Bool()
	require.True(t, ok)
	assert.True(t, b)

	f, ok := NewValue(TypeDouble, 2.5).Float64()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)
}

func TestUnixTimeParts(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	sec, usec := unixTimeParts(ts)
	assert.Equal(t, int64(1700000000), sec)
	assert.Equal(t, int64(123456), usec)
}
