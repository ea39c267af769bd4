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
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// schemaExtension is the extension of generated schema files.
const schemaExtension = ".proto"

// Snapshot maps schema file names to their generated source.
type Snapshot map[string]string

// SnapshotOf returns the schema sources recovered in ex. When two spans carry
// the same file name, the later one wins, as it would on disk.
func SnapshotOf(ex *Extraction) Snapshot {
	snapshot := Snapshot{}
	for _, r := range ex.Succeeded() {
		snapshot[r.Block.Name] = r.Schema
	}
	return snapshot
}

// SnapshotFromDescriptorSet renders every file of set the same way recovered
// descriptors are rendered, so the result can be compared with SnapshotOf.
// Files are keyed by base name, since recovered files carry no directory.
func SnapshotFromDescriptorSet(set *descriptorpb.FileDescriptorSet, now time.Time) (Snapshot, error) {
	snapshot := Snapshot{}
	for _, fdp := range set.GetFile() {
		data, err := proto.Marshal(fdp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", fdp.GetName(), err)
		}
		fd, err := DecodeFile(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", fdp.GetName(), err)
		}
		snapshot[path.Base(fd.Name)] = Generate(fd, GenerateOptions{Now: now})
	}
	return snapshot, nil
}

// LoadSnapshotDir reads the *.proto files directly inside dir.
func LoadSnapshotDir(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	snapshot := Snapshot{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), schemaExtension) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		snapshot[entry.Name()] = string(data)
	}
	return snapshot, nil
}

// Comparison lists how one snapshot differs from an earlier one. All lists
// are sorted.
type Comparison struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether the snapshots hold the same files with the same
// content.
func (c Comparison) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Compare reports files only in current, files only in previous, and files
// whose content differs. Lines that are only comments are ignored, so the
// generation timestamp in the header never counts as a change.
func Compare(current, previous Snapshot) Comparison {
	var cmp Comparison
	for name, text := range current {
		old, ok := previous[name]
		switch {
		case !ok:
			cmp.Added = append(cmp.Added, name)
		case !sameSchema(text, old):
			cmp.Changed = append(cmp.Changed, name)
		}
	}
	for name := range previous {
		if _, ok := current[name]; !ok {
			cmp.Removed = append(cmp.Removed, name)
		}
	}
	sort.Strings(cmp.Added)
	sort.Strings(cmp.Removed)
	sort.Strings(cmp.Changed)
	return cmp
}

func sameSchema(a, b string) bool {
	linesA, linesB := withoutComments(a), withoutComments(b)
	if len(linesA) != len(linesB) {
		return false
	}
	for i := range linesA {
		if linesA[i] != linesB[i] {
			return false
		}
	}
	return true
}

func withoutComments(text string) []string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}
