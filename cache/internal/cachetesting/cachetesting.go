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

// Package cachetesting holds the conformance checks shared by the cache
// backends' tests.
package cachetesting

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/bufbuild/protorecover"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"
)

// RunSimpleCacheTests exercises Load and Save with random values and returns
// the entries it left in the cache.
func RunSimpleCacheTests(t *testing.T, ctx context.Context, cache protorecover.Cache) map[string][]byte {
	t.Helper()

	// In case tests are run concurrently, we want to make sure we aren't reading
	// values stored to a cache by another concurrent test. While the caller of this
	// function should arrange for that (using different server/directory/keyspace, etc)
	// we want to catch accidental misuse. So for that, we generate random data so that
	// the values we expect are different from one call to another.

	const (
		keyFoo   = "foo"
		keyBar   = "bar"
		keyEmpty = ""
	)

	entries := make(map[string][]byte, 3)
	for _, k := range []string{keyFoo, keyBar, keyEmpty} {
		val := make([]byte, 100)
		_, err := rand.Read(val)
		require.NoError(t, err)
		entries[k] = val
	}
	valFoo, valBar, valEmpty := entries[keyFoo], entries[keyBar], entries[keyEmpty]

	// load fails since nothing exists
	_, err := cache.Load(ctx, keyFoo)
	require.Error(t, err)
	err = cache.Save(ctx, keyFoo, valFoo)
	require.NoError(t, err)
	loaded, err := cache.Load(ctx, keyFoo)
	require.NoError(t, err)
	require.Equal(t, valFoo, loaded)

	// another key
	_, err = cache.Load(ctx, keyBar)
	require.Error(t, err)
	err = cache.Save(ctx, keyBar, valBar)
	require.NoError(t, err)
	loaded, err = cache.Load(ctx, keyBar)
	require.NoError(t, err)
	require.Equal(t, valBar, loaded)

	// original key unchanged
	loaded, err = cache.Load(ctx, keyFoo)
	require.NoError(t, err)
	require.Equal(t, valFoo, loaded)

	// overwrite
	err = cache.Save(ctx, keyFoo, valBar)
	require.NoError(t, err)
	loaded, err = cache.Load(ctx, keyFoo)
	require.NoError(t, err)
	require.Equal(t, valBar, loaded)
	entries[keyFoo] = valBar

	// empty key
	err = cache.Save(ctx, keyEmpty, valEmpty)
	require.NoError(t, err)
	loaded, err = cache.Load(ctx, keyEmpty)
	require.NoError(t, err)
	require.Equal(t, valEmpty, loaded)

	return entries
}

// RunSnapshotTests saves the snapshot of a small extraction under key and
// checks that a CacheBaseline reading it back sees no difference.
func RunSnapshotTests(t *testing.T, ctx context.Context, cache protorecover.Cache, key string) {
	t.Helper()

	oneof := int32(0)
	file := &protorecover.FileDescriptor{
		Name:    "agent.proto",
		Package: "warp.multi_agent.v1",
		Messages: []*protorecover.MessageDescriptor{{
			Name:   "Request",
			Oneofs: []string{"kind"},
			Fields: []*protorecover.FieldDescriptor{
				{Name: "id", Number: 1, Type: descriptorpb.FieldDescriptorProto_TYPE_STRING},
				{Name: "text", Number: 2, Type: descriptorpb.FieldDescriptorProto_TYPE_STRING, OneofIndex: &oneof},
			},
		}},
	}
	now := time.Date(2026, time.March, 1, 8, 30, 0, 0, time.UTC)
	ex := &protorecover.Extraction{
		ExtractedAt: now,
		Blocks: []protorecover.BlockResult{{
			Block:  protorecover.Block{Name: file.Name, Package: file.Package},
			File:   file,
			Schema: protorecover.Generate(file, protorecover.GenerateOptions{Now: now}),
		}},
	}

	require.NoError(t, protorecover.SaveSnapshot(ctx, cache, key, ex))
	previous, err := protorecover.CacheBaseline(cache, key).Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"agent.proto"}, keys(previous))
	require.True(t, protorecover.Compare(protorecover.SnapshotOf(ex), previous).Empty())
}

func keys(snapshot protorecover.Snapshot) []string {
	result := make([]string, 0, len(snapshot))
	for k := range snapshot {
		result = append(result, k)
	}
	return result
}
