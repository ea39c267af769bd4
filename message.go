// Copyright 2023-2026 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protorecover

import (
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// FieldMap is the schema-agnostic view of a message: every value seen for a
// field number, in the order it appeared on the wire.
type FieldMap map[protowire.Number][]Value

// ParseMessage reads tagged fields until buf is exhausted. Decoding stops at
// the first error and whatever was read up to that point is returned, since
// spans handed over by the scanner routinely carry trailing garbage.
func ParseMessage(buf []byte) FieldMap {
	fields := FieldMap{}
	for pos := 0; pos < len(buf); {
		field, next, err := ReadTaggedField(buf, pos)
		if err != nil {
			break
		}
		fields[field.Number] = append(fields[field.Number], field.Value)
		pos = next
	}
	return fields
}

// first returns the first value recorded for num.
func (m FieldMap) first(num protowire.Number) (Value, bool) {
	values := m[num]
	if len(values) == 0 {
		return Value{}, false
	}
	return values[0], true
}

func (m FieldMap) bytes(num protowire.Number) ([]byte, bool, error) {
	v, ok := m.first(num)
	if !ok {
		return nil, false, nil
	}
	if v.WireType != protowire.BytesType {
		return nil, false, mismatch(num, v.WireType, protowire.BytesType)
	}
	return v.Bytes, true, nil
}

func (m FieldMap) string(num protowire.Number) (string, error) {
	b, _, err := m.bytes(num)
	if err != nil {
		return "", err
	}
	return toString(b), nil
}

func (m FieldMap) scalar(num protowire.Number) (uint64, bool, error) {
	v, ok := m.first(num)
	if !ok {
		return 0, false, nil
	}
	if v.WireType == protowire.BytesType {
		return 0, false, mismatch(num, v.WireType, protowire.VarintType)
	}
	return v.Scalar, true, nil
}

// each calls fn with the payload of every length-delimited value of num.
func (m FieldMap) each(num protowire.Number, fn func([]byte) error) error {
	for _, v := range m[num] {
		if v.WireType != protowire.BytesType {
			return mismatch(num, v.WireType, protowire.BytesType)
		}
		if err := fn(v.Bytes); err != nil {
			return err
		}
	}
	return nil
}

func toString(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
