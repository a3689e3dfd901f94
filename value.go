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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GUIDLength is the length of the canonical textual GUID form.
const GUIDLength = 36

// Value is the adapter's public value representation: a tagged union over
// the OPC UA built-in types the adapter decodes. Scalars hold one Go
// value; arrays hold a slice of the element representation.
type Value struct {
	Type        TypeID
	IsArray     bool
	ArrayLength int
	Data        interface{}
}

// NewValue creates a scalar value.
func NewValue(t TypeID, data interface{}) *Value {
	return &Value{Type: t, Data: data}
}

// NewArrayValue creates an array value with the given element count.
func NewArrayValue(t TypeID, data interface{}, length int) *Value {
	return &Value{Type: t, IsArray: true, ArrayLength: length, Data: data}
}

// Bool returns the scalar boolean payload.
func (v *Value) Bool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok
}

// Str returns the scalar string payload. String, ByteString, XmlElement
// and GUID values all decode to strings.
func (v *Value) Str() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok
}

// Float64 returns the scalar double payload.
func (v *Value) Float64() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok
}

// Int returns any scalar integer payload widened to int64.
func (v *Value) Int() (int64, bool) {
	switch n := v.Data.(type) {
	case int8:
		return int64(n), true
	case byte:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// decodeVariant translates a stack variant into the adapter's value
// representation. The mapping follows one table for scalars and arrays:
// numeric widths copy natively, string-like types become Go strings,
// GUIDs become their canonical 36-char form, LocalizedText and
// QualifiedName stay pairs and NodeIds stay structured.
func decodeVariant(v *Variant) (*Value, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil variant", ErrInvalidRequest)
	}
	if !v.IsArray {
		return decodeScalar(v)
	}
	return decodeArray(v)
}

func decodeScalar(v *Variant) (*Value, error) {
	switch v.Type {
	case TypeBoolean, TypeSByte, TypeByte, TypeInt16, TypeUInt16,
		TypeInt32, TypeUInt32, TypeInt64, TypeUInt64,
		TypeFloat, TypeDouble, TypeDateTime:
		return NewValue(v.Type, v.Value), nil
	case TypeString, TypeByteString, TypeXMLElement:
		switch s := v.Value.(type) {
		case string:
			return NewValue(v.Type, s), nil
		case []byte:
			return NewValue(v.Type, string(s)), nil
		}
	case TypeGUID:
		if g, ok := v.Value.(uuid.UUID); ok {
			return NewValue(TypeGUID, g.String()), nil
		}
	case TypeLocalizedText:
		if lt, ok := v.Value.(LocalizedText); ok {
			return NewValue(TypeLocalizedText, lt), nil
		}
	case TypeQualifiedName:
		if qn, ok := v.Value.(QualifiedName); ok {
			return NewValue(TypeQualifiedName, qn), nil
		}
	case TypeNodeID:
		if id, ok := v.Value.(NodeID); ok {
			return NewValue(TypeNodeID, id), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot decode scalar variant type %d", ErrInvalidRequest, v.Type)
}

func decodeArray(v *Variant) (*Value, error) {
	n := v.Len()
	switch v.Type {
	case TypeBoolean, TypeSByte, TypeByte, TypeInt16, TypeUInt16,
		TypeInt32, TypeUInt32, TypeInt64, TypeUInt64,
		TypeFloat, TypeDouble, TypeDateTime:
		return NewArrayValue(v.Type, v.Value, n), nil
	case TypeString, TypeXMLElement:
		if a, ok := v.Value.([]string); ok {
			out := make([]string, len(a))
			copy(out, a)
			return NewArrayValue(v.Type, out, len(a)), nil
		}
	case TypeByteString:
		if a, ok := v.Value.([][]byte); ok {
			out := make([]string, len(a))
			for i, b := range a {
				out[i] = string(b)
			}
			return NewArrayValue(TypeByteString, out, len(a)), nil
		}
		if a, ok := v.Value.([]string); ok {
			out := make([]string, len(a))
			copy(out, a)
			return NewArrayValue(TypeByteString, out, len(a)), nil
		}
	case TypeGUID:
		if a, ok := v.Value.([]uuid.UUID); ok {
			out := make([]string, len(a))
			for i, g := range a {
				out[i] = g.String()
			}
			return NewArrayValue(TypeGUID, out, len(a)), nil
		}
	case TypeLocalizedText:
		if a, ok := v.Value.([]LocalizedText); ok {
			out := make([]LocalizedText, len(a))
			copy(out, a)
			return NewArrayValue(TypeLocalizedText, out, len(a)), nil
		}
	case TypeQualifiedName:
		if a, ok := v.Value.([]QualifiedName); ok {
			out := make([]QualifiedName, len(a))
			copy(out, a)
			return NewArrayValue(TypeQualifiedName, out, len(a)), nil
		}
	case TypeNodeID:
		if a, ok := v.Value.([]NodeID); ok {
			out := make([]NodeID, len(a))
			copy(out, a)
			return NewArrayValue(TypeNodeID, out, len(a)), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot decode array variant type %d", ErrInvalidRequest, v.Type)
}

// encodeValue translates an adapter value back into a stack variant for
// writes and method inputs. GUID strings are parsed back into their
// binary form.
func encodeValue(val *Value) (*Variant, error) {
	if val == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidRequest)
	}
	if val.IsArray {
		return encodeArrayValue(val)
	}
	switch val.Type {
	case TypeBoolean, TypeSByte, TypeByte, TypeInt16, TypeUInt16,
		TypeInt32, TypeUInt32, TypeInt64, TypeUInt64,
		TypeFloat, TypeDouble, TypeDateTime,
		TypeString, TypeXMLElement,
		TypeLocalizedText, TypeQualifiedName, TypeNodeID:
		return &Variant{Type: val.Type, Value: val.Data}, nil
	case TypeByteString:
		switch s := val.Data.(type) {
		case string:
			return &Variant{Type: TypeByteString, Value: []byte(s)}, nil
		case []byte:
			return &Variant{Type: TypeByteString, Value: s}, nil
		}
	case TypeGUID:
		s, ok := val.Data.(string)
		if !ok {
			if g, isGUID := val.Data.(uuid.UUID); isGUID {
				return &Variant{Type: TypeGUID, Value: g}, nil
			}
			break
		}
		g, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid GUID %q", ErrInvalidRequest, s)
		}
		return &Variant{Type: TypeGUID, Value: g}, nil
	}
	return nil, fmt.Errorf("%w: cannot encode value type %d", ErrInvalidRequest, val.Type)
}

func encodeArrayValue(val *Value) (*Variant, error) {
	switch val.Type {
	case TypeBoolean, TypeSByte, TypeByte, TypeInt16, TypeUInt16,
		TypeInt32, TypeUInt32, TypeInt64, TypeUInt64,
		TypeFloat, TypeDouble, TypeDateTime, TypeString, TypeXMLElement,
		TypeLocalizedText, TypeQualifiedName, TypeNodeID:
		return &Variant{Type: val.Type, IsArray: true, Value: val.Data}, nil
	case TypeByteString:
		if a, ok := val.Data.([]string); ok {
			out := make([][]byte, len(a))
			for i, s := range a {
				out[i] = []byte(s)
			}
			return &Variant{Type: TypeByteString, IsArray: true, Value: out}, nil
		}
		if a, ok := val.Data.([][]byte); ok {
			return &Variant{Type: TypeByteString, IsArray: true, Value: a}, nil
		}
	case TypeGUID:
		if a, ok := val.Data.([]string); ok {
			out := make([]uuid.UUID, len(a))
			for i, s := range a {
				g, err := uuid.Parse(s)
				if err != nil {
					return nil, fmt.Errorf("%w: invalid GUID %q", ErrInvalidRequest, s)
				}
				out[i] = g
			}
			return &Variant{Type: TypeGUID, IsArray: true, Value: out}, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot encode array value type %d", ErrInvalidRequest, val.Type)
}

// unixTimeParts splits a timestamp into Unix seconds and microseconds.
func unixTimeParts(t time.Time) (sec int64, usec int64) {
	sec = t.Unix()
	usec = int64(t.Nanosecond()) / 1000
	return sec, usec
}
