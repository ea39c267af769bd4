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
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Cache stores snapshots of recovered descriptors between runs, so that a
// later run against a newer binary can report what changed. Cache can be
// used from multiple goroutines and thus must be thread-safe.
type Cache interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Fields of a cache entry.
const (
	cacheEntryDescriptorsFieldNumber protowire.Number = 1
	cacheEntrySavedAtFieldNumber     protowire.Number = 2
)

var errEmptyCacheEntry = errors.New("cache entry has no descriptor set")

// SaveSnapshot stores the descriptors recovered in ex under key.
func SaveSnapshot(ctx context.Context, cache Cache, key string, ex *Extraction) error {
	data, err := encodeForCache(ex.DescriptorSet(), ex.ExtractedAt)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return cache.Save(ctx, key, data)
}

func encodeForCache(set *descriptorpb.FileDescriptorSet, savedAt time.Time) ([]byte, error) {
	setData, err := proto.MarshalOptions{Deterministic: true}.Marshal(set)
	if err != nil {
		return nil, err
	}
	tsData, err := proto.Marshal(timestamppb.New(savedAt))
	if err != nil {
		return nil, err
	}
	var data []byte
	data = protowire.AppendTag(data, cacheEntryDescriptorsFieldNumber, protowire.BytesType)
	data = protowire.AppendBytes(data, setData)
	data = protowire.AppendTag(data, cacheEntrySavedAtFieldNumber, protowire.BytesType)
	data = protowire.AppendBytes(data, tsData)
	return data, nil
}

func decodeForCache(data []byte) (*descriptorpb.FileDescriptorSet, time.Time, error) {
	entry := ParseMessage(data)
	setData, ok, err := entry.bytes(cacheEntryDescriptorsFieldNumber)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !ok {
		return nil, time.Time{}, errEmptyCacheEntry
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(setData, &set); err != nil {
		return nil, time.Time{}, err
	}
	var savedAt time.Time
	tsData, ok, err := entry.bytes(cacheEntrySavedAtFieldNumber)
	if err != nil {
		return nil, time.Time{}, err
	}
	if ok {
		var ts timestamppb.Timestamp
		if err := proto.Unmarshal(tsData, &ts); err != nil {
			return nil, time.Time{}, err
		}
		savedAt = ts.AsTime()
	}
	return &set, savedAt, nil
}
