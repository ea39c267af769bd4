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
	"fmt"
	"time"
)

// Baseline provides an earlier set of schemas to compare a new extraction
// against.
type Baseline interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	// String describes where the baseline comes from.
	String() string
}

// DirBaseline returns a Baseline reading *.proto files from dir, typically
// the output directory of an earlier run.
func DirBaseline(dir string) Baseline {
	return dirBaseline(dir)
}

type dirBaseline string

func (d dirBaseline) Snapshot(context.Context) (Snapshot, error) {
	return LoadSnapshotDir(string(d))
}

func (d dirBaseline) String() string {
	return "directory " + string(d)
}

// CacheBaseline returns a Baseline loading the snapshot that [SaveSnapshot]
// stored under key.
func CacheBaseline(cache Cache, key string) Baseline {
	return &cacheBaseline{cache: cache, key: key}
}

type cacheBaseline struct {
	cache Cache
	key   string
}

func (c *cacheBaseline) Snapshot(ctx context.Context) (Snapshot, error) {
	data, err := c.cache.Load(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %q: %w", c.key, err)
	}
	set, savedAt, err := decodeForCache(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %q: %w", c.key, err)
	}
	return SnapshotFromDescriptorSet(set, savedAt)
}

func (c *cacheBaseline) String() string {
	return fmt.Sprintf("cached snapshot %q", c.key)
}

// RegistryBaseline returns a Baseline downloading descriptors with poller.
// Files are rendered as if they had been recovered from a binary, so only
// what recovery can see is compared.
func RegistryBaseline(poller DescriptorPoller, name string) Baseline {
	return &registryBaseline{poller: poller, name: name}
}

type registryBaseline struct {
	poller DescriptorPoller
	name   string
}

func (r *registryBaseline) Snapshot(ctx context.Context) (Snapshot, error) {
	set, _, err := r.poller.GetFileDescriptorSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", r.name, err)
	}
	return SnapshotFromDescriptorSet(set, time.Now())
}

func (r *registryBaseline) String() string {
	return "module " + r.name
}
