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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFindBlocks(t *testing.T) {
	t.Parallel()
	data := make([]byte, 60000)
	place(data, 100, "task.proto", "warp.multi_agent.v1")
	place(data, 5000, "agent.proto", "warp.tasks_api.v12")

	blocks := FindBlocks(data, DefaultPackagePrefix)
	require.Len(t, blocks, 2)
	assert.Equal(t, "task.proto", blocks[0].Name)
	assert.Equal(t, "warp.multi_agent.v1", blocks[0].Package)
	assert.Equal(t, 100, blocks[0].Start)
	assert.Equal(t, 5000, blocks[0].End)
	assert.Equal(t, data[100:5000], blocks[0].Data)
	assert.Equal(t, "agent.proto", blocks[1].Name)
	assert.Equal(t, "warp.tasks_api.v12", blocks[1].Package)
	assert.Equal(t, 5000, blocks[1].Start)
	assert.Equal(t, 55000, blocks[1].End)
}

func TestFindBlocks_SpanLimits(t *testing.T) {
	t.Parallel()
	data := make([]byte, 300000)
	place(data, 0, "first.proto", "warp.multi_agent.v1")
	place(data, 250000, "second.proto", "warp.multi_agent.v1")
	place(data, 299000, "third.proto", "warp.multi_agent.v1")

	blocks := FindBlocks(data, DefaultPackagePrefix)
	require.Len(t, blocks, 3)
	assert.Equal(t, [2]int{0, 200000}, span(blocks[0]))
	assert.Equal(t, [2]int{250000, 299000}, span(blocks[1]))
	assert.Equal(t, [2]int{299000, 300000}, span(blocks[2]))
}

func TestFindBlocks_Rejects(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		file    string
		pkg     string
		prefix  string
		corrupt func([]byte)
	}{
		{
			name:   "uppercase file name",
			file:   "Task.proto",
			pkg:    "warp.multi_agent.v1",
			prefix: DefaultPackagePrefix,
		},
		{
			name:   "file name too short",
			file:   "a.proto",
			pkg:    "warp.multi_agent.v1",
			prefix: DefaultPackagePrefix,
		},
		{
			name:   "package too short",
			file:   "task.proto",
			pkg:    "warp.ab.v1",
			prefix: DefaultPackagePrefix,
		},
		{
			name:   "other namespace",
			file:   "task.proto",
			pkg:    "acme.multi_agent.v1",
			prefix: DefaultPackagePrefix,
		},
		{
			name:   "no version",
			file:   "task.proto",
			pkg:    "warp.multi_agent.vx",
			prefix: DefaultPackagePrefix,
		},
		{
			name:   "nested package",
			file:   "task.proto",
			pkg:    "warp.multi.agent.v1",
			prefix: DefaultPackagePrefix,
		},
		{
			name:   "wrong tag",
			file:   "task.proto",
			pkg:    "warp.multi_agent.v1",
			prefix: DefaultPackagePrefix,
			corrupt: func(b []byte) {
				b[12] = 0x1a
			},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			data := make([]byte, 1000)
			place(data, 10, testCase.file, testCase.pkg)
			if testCase.corrupt != nil {
				testCase.corrupt(data[10:])
			}
			assert.Empty(t, FindBlocks(data, testCase.prefix))
		})
	}
}

func TestFindBlocks_CustomPrefix(t *testing.T) {
	t.Parallel()
	data := make([]byte, 1000)
	place(data, 10, "task.proto", "warp.multi_agent.v1")
	place(data, 400, "order.proto", "acme.orders_api.v3")

	blocks := FindBlocks(data, "acme.")
	require.Len(t, blocks, 1)
	assert.Equal(t, "order.proto", blocks[0].Name)
	assert.Equal(t, [2]int{400, 1000}, span(blocks[0]))
}

func TestFindBlocks_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, FindBlocks(nil, DefaultPackagePrefix))
	assert.Empty(t, FindBlocks([]byte{0x0a, 0x0a, 0x0a}, DefaultPackagePrefix))
}

// place writes the leading name and package fields of a serialized file
// descriptor at offset.
func place(data []byte, offset int, file, pkg string) {
	var sig []byte
	sig = protowire.AppendTag(sig, 1, protowire.BytesType)
	sig = protowire.AppendString(sig, file)
	sig = protowire.AppendTag(sig, 2, protowire.BytesType)
	sig = protowire.AppendString(sig, pkg)
	copy(data[offset:], sig)
}

func span(b Block) [2]int {
	return [2]int{b.Start, b.End}
}
