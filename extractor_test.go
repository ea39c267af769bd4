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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()
	extractor, err := NewExtractor(&ExtractorConfig{
		Workers: 2,
		Now:     func() time.Time { return testNow },
	})
	require.NoError(t, err)

	data := testBinary(t)
	ex, err := extractor.Extract(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, testNow, ex.ExtractedAt)
	assert.Equal(t, len(data), ex.InputSize)
	require.Len(t, ex.Blocks, 2)

	// the corrupted span fails on its own
	broken := ex.Blocks[0]
	assert.Equal(t, "broken.proto", broken.Block.Name)
	assert.ErrorIs(t, broken.Err, ErrFieldTypeMismatch)
	assert.Nil(t, broken.File)
	assert.Empty(t, broken.Schema)

	// and does not keep the next one from decoding
	task := ex.Blocks[1]
	require.NoError(t, task.Err)
	assert.Equal(t, "task.proto", task.Block.Name)
	assert.Empty(t, cmp.Diff(testFileDescriptor(), task.File))
	assert.Equal(t, Generate(testFileDescriptor(), GenerateOptions{Now: testNow}), task.Schema)

	assert.Equal(t, []BlockResult{task}, ex.Succeeded())
	assert.Equal(t, []BlockResult{broken}, ex.Failed())
	assert.Equal(t, []string{"AgentOutput", "Priority", "Task"}, ex.TypeNames)
}

func TestExtractor_ResultsKeepScanOrder(t *testing.T) {
	t.Parallel()
	var data []byte
	names := []string{"aa.proto", "bb.proto", "cc.proto", "dd.proto", "ee.proto", "ff.proto"}
	for _, name := range names {
		file, err := proto.Marshal((&FileDescriptor{Name: name, Package: "warp.ordering.v1"}).ToProto())
		require.NoError(t, err)
		data = append(data, file...)
		data = append(data, make([]byte, 32)...)
	}
	extractor, err := NewExtractor(&ExtractorConfig{Workers: 4})
	require.NoError(t, err)
	ex, err := extractor.Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, ex.Blocks, len(names))
	for i, r := range ex.Blocks {
		require.NoError(t, r.Err)
		assert.Equal(t, names[i], r.File.Name)
	}
}

func TestExtractor_NoDescriptors(t *testing.T) {
	t.Parallel()
	extractor, err := NewExtractor(nil)
	require.NoError(t, err)
	ex, err := extractor.Extract(context.Background(), []byte("\x7fELF nothing to see"))
	require.NoError(t, err)
	assert.Empty(t, ex.Blocks)
	assert.Empty(t, ex.TypeNames)
	assert.Empty(t, ex.DescriptorSet().GetFile())
}

func TestExtractor_Canceled(t *testing.T) {
	t.Parallel()
	extractor, err := NewExtractor(&ExtractorConfig{Workers: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex, err := extractor.Extract(ctx, testBinary(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ex)
}

func TestExtractor_Logging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	extractor, err := NewExtractor(&ExtractorConfig{Logger: &logger})
	require.NoError(t, err)
	_, err = extractor.Extract(context.Background(), testBinary(t))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"scanned input"`)
	assert.Contains(t, out, `"descriptor":"broken.proto"`)
	assert.Contains(t, out, `"message":"decode failed"`)
	assert.Contains(t, out, `"package":"warp.multi_agent.v1"`)
	assert.Contains(t, out, `"type_names":3`)
}

func TestNewExtractor_Validation(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		config    ExtractorConfig
		expectErr string
	}{
		{
			name:      "negative workers",
			config:    ExtractorConfig{Workers: -1},
			expectErr: "worker count (-1) cannot be negative",
		},
		{
			name:      "type prefix without dot",
			config:    ExtractorConfig{TypeNamePrefix: "warp.multi_agent.v1"},
			expectErr: "must end with a dot",
		},
		{
			name:      "non-printable prefix",
			config:    ExtractorConfig{PackagePrefix: "warp\x00"},
			expectErr: "must be printable ASCII",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewExtractor(&testCase.config)
			require.ErrorContains(t, err, testCase.expectErr)
		})
	}
}

func TestExtractorConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg := (&ExtractorConfig{}).withDefaults()
	assert.Equal(t, DefaultPackagePrefix, cfg.PackagePrefix)
	assert.Equal(t, DefaultTypeNamePrefix, cfg.TypeNamePrefix)
	assert.Positive(t, cfg.Workers)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Now)
}

// testBinary lays out a corrupted descriptor followed by the test descriptor,
// with unrelated bytes around both.
func testBinary(t *testing.T) []byte {
	t.Helper()
	data := []byte("\x7fELF\x02\x01\x01")
	data = append(data, make([]byte, 57)...)

	var broken []byte
	broken = protowire.AppendTag(broken, 1, protowire.BytesType)
	broken = protowire.AppendString(broken, "broken.proto")
	broken = protowire.AppendTag(broken, 2, protowire.BytesType)
	broken = protowire.AppendString(broken, "warp.multi_agent.v1")
	broken = protowire.AppendTag(broken, 4, protowire.VarintType)
	broken = protowire.AppendVarint(broken, 3)
	data = append(data, broken...)
	data = append(data, make([]byte, 64)...)

	file, err := proto.Marshal(testFileProto())
	require.NoError(t, err)
	data = append(data, file...)
	data = append(data, make([]byte, 64)...)
	data = append(data, "warp.multi_agent.v1.AgentOutputR\x00"...)
	return data
}
