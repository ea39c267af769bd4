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
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrTruncatedVarint indicates that the input ended while a varint still
	// had its continuation bit set. It is also reported for a varint that
	// does not terminate within ten bytes.
	ErrTruncatedVarint = errors.New("truncated varint")
	// ErrBufferUnderrun indicates that a length-delimited or fixed-width
	// value extends past the end of the input.
	ErrBufferUnderrun = errors.New("buffer underrun")
	// ErrUnsupportedWireType indicates a wire type other than varint,
	// 64-bit, length-delimited or 32-bit.
	ErrUnsupportedWireType = errors.New("unsupported wire type")
)

// Field is a single tagged value read from the wire.
type Field struct {
	Number protowire.Number
	Value  Value
}

// Value is the raw payload of one field. Scalar holds the value for varint
// and fixed-width wire types; Bytes holds the payload of a length-delimited
// field and aliases the input buffer.
type Value struct {
	WireType protowire.Type
	Scalar   uint64
	Bytes    []byte
}

// ReadVarint decodes a base-128 varint starting at pos and returns the value
// together with the position just past it.
func ReadVarint(buf []byte, pos int) (uint64, int, error) {
	if pos < 0 || pos > len(buf) {
		return 0, pos, ErrTruncatedVarint
	}
	v, n := protowire.ConsumeVarint(buf[pos:])
	if n < 0 {
		return 0, pos, varintError(n)
	}
	return v, pos + n, nil
}

// ReadTaggedField decodes one tag and its value starting at pos.
func ReadTaggedField(buf []byte, pos int) (Field, int, error) {
	tag, next, err := ReadVarint(buf, pos)
	if err != nil {
		return Field{}, pos, err
	}
	num, typ := protowire.Number(tag>>3), protowire.Type(tag&0x7)
	field := Field{Number: num, Value: Value{WireType: typ}}
	rest := buf[next:]
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return Field{}, pos, varintError(n)
		}
		field.Value.Scalar = v
		next += n
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			return Field{}, pos, fmt.Errorf("%w: field %d needs 8 bytes, %d remain", ErrBufferUnderrun, num, len(rest))
		}
		field.Value.Scalar = v
		next += n
	case protowire.BytesType:
		length, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return Field{}, pos, varintError(n)
		}
		if length > uint64(len(rest)-n) {
			return Field{}, pos, fmt.Errorf("%w: field %d declares %d bytes, %d remain", ErrBufferUnderrun, num, length, len(rest)-n)
		}
		end := n + int(length)
		field.Value.Bytes = rest[n:end]
		next += end
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(rest)
		if n < 0 {
			return Field{}, pos, fmt.Errorf("%w: field %d needs 4 bytes, %d remain", ErrBufferUnderrun, num, len(rest))
		}
		field.Value.Scalar = uint64(v)
		next += n
	default:
		return Field{}, pos, fmt.Errorf("%w %d (field %d)", ErrUnsupportedWireType, typ, num)
	}
	return field, next, nil
}

func varintError(code int) error {
	err := protowire.ParseError(code)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedVarint
	}
	return fmt.Errorf("%w: %v", ErrTruncatedVarint, err)
}
