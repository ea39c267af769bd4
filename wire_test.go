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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestReadVarint(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		input     []byte
		pos       int
		expectVal uint64
		expectPos int
		expectErr error
	}{
		{
			name:      "zero",
			input:     []byte{0x00},
			expectVal: 0,
			expectPos: 1,
		},
		{
			name:      "two bytes",
			input:     []byte{0xac, 0x02},
			expectVal: 300,
			expectPos: 2,
		},
		{
			name:      "max uint32",
			input:     []byte{0xff, 0xff, 0xff, 0xff, 0x0f},
			expectVal: math.MaxUint32,
			expectPos: 5,
		},
		{
			name:      "offset",
			input:     []byte{0xff, 0x96, 0x01, 0x00},
			pos:       1,
			expectVal: 150,
			expectPos: 3,
		},
		{
			name:      "truncated",
			input:     []byte{0x80, 0x80},
			expectErr: ErrTruncatedVarint,
		},
		{
			name:      "empty",
			input:     nil,
			expectErr: ErrTruncatedVarint,
		},
		{
			name:      "overlong",
			input:     []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
			expectErr: ErrTruncatedVarint,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			val, pos, err := ReadVarint(testCase.input, testCase.pos)
			if testCase.expectErr != nil {
				require.ErrorIs(t, err, testCase.expectErr)
				assert.Equal(t, testCase.pos, pos)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expectVal, val)
			assert.Equal(t, testCase.expectPos, pos)
		})
	}
}

func TestReadVarint_RoundTrip(t *testing.T) {
	t.Parallel()
	for _, v := range []uint64{0, 1, 127, 128, 16383, 16384, math.MaxUint32, math.MaxUint64} {
		buf := protowire.AppendVarint(nil, v)
		got, pos, err := ReadVarint(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), pos)
	}
}

func TestReadTaggedField(t *testing.T) {
	t.Parallel()
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 42)
	buf = protowire.AppendTag(buf, 2, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, 0x0102030405060708)
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendString(buf, "hello")
	buf = protowire.AppendTag(buf, 4, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 0xdeadbeef)

	expected := []Field{
		{Number: 1, Value: Value{WireType: protowire.VarintType, Scalar: 42}},
		{Number: 2, Value: Value{WireType: protowire.Fixed64Type, Scalar: 0x0102030405060708}},
		{Number: 3, Value: Value{WireType: protowire.BytesType, Bytes: []byte("hello")}},
		{Number: 4, Value: Value{WireType: protowire.Fixed32Type, Scalar: 0xdeadbeef}},
	}
	pos := 0
	for _, want := range expected {
		field, next, err := ReadTaggedField(buf, pos)
		require.NoError(t, err)
		assert.Equal(t, want, field)
		assert.Greater(t, next, pos)
		pos = next
	}
	assert.Equal(t, len(buf), pos)
}

func TestReadTaggedField_Errors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		input     []byte
		expectErr error
	}{
		{
			name:      "truncated tag",
			input:     []byte{0x80},
			expectErr: ErrTruncatedVarint,
		},
		{
			name:      "truncated varint value",
			input:     []byte{0x08, 0xff},
			expectErr: ErrTruncatedVarint,
		},
		{
			name:      "length past end",
			input:     []byte{0x0a, 0x05, 'a', 'b'},
			expectErr: ErrBufferUnderrun,
		},
		{
			name:      "short fixed64",
			input:     []byte{0x09, 1, 2, 3},
			expectErr: ErrBufferUnderrun,
		},
		{
			name:      "short fixed32",
			input:     []byte{0x0d, 1, 2},
			expectErr: ErrBufferUnderrun,
		},
		{
			name:      "start group",
			input:     []byte{0x0b},
			expectErr: ErrUnsupportedWireType,
		},
		{
			name:      "end group",
			input:     []byte{0x0c},
			expectErr: ErrUnsupportedWireType,
		},
		{
			name:      "wire type 7",
			input:     []byte{0x0f},
			expectErr: ErrUnsupportedWireType,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, pos, err := ReadTaggedField(testCase.input, 0)
			require.ErrorIs(t, err, testCase.expectErr)
			assert.Zero(t, pos)
		})
	}
}
