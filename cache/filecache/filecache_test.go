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

package filecache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/bufbuild/protorecover/cache/internal/cachetesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name                          string
		config                        Config
		expectPrefix, expectExtension string
		expectMode                    fs.FileMode
	}{
		{
			name:            "default config",
			expectPrefix:    "snapshot",
			expectExtension: "binpb",
			expectMode:      0600,
		},
		{
			name:            "custom prefix with underscore",
			config:          Config{FilenamePrefix: "abc_"},
			expectPrefix:    "abc",
			expectExtension: "binpb",
			expectMode:      0600,
		},
		{
			name:            "custom prefix without underscore",
			config:          Config{FilenamePrefix: "abc"},
			expectPrefix:    "abc",
			expectExtension: "binpb",
			expectMode:      0600,
		},
		{
			name:            "custom extension",
			config:          Config{FilenameExtension: "pb"},
			expectPrefix:    "snapshot",
			expectExtension: "pb",
			expectMode:      0600,
		},
		{
			name:            "custom mode",
			config:          Config{FileMode: 0640},
			expectPrefix:    "snapshot",
			expectExtension: "binpb",
			expectMode:      0640,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			tmpDir := t.TempDir()

			testCase.config.Path = tmpDir
			cache, err := New(testCase.config)
			require.NoError(t, err)
			ctx := context.Background()

			entries := cachetesting.RunSimpleCacheTests(t, ctx, cache)
			files := make(map[string]struct{}, len(entries))
			for k := range entries {
				if k == "" {
					files[fmt.Sprintf("%s.%s", testCase.expectPrefix, testCase.expectExtension)] = struct{}{}
				} else {
					files[fmt.Sprintf("%s_%s.%s", testCase.expectPrefix, k, testCase.expectExtension)] = struct{}{}
				}
			}

			// check the actual files
			checkFiles(t, tmpDir, testCase.expectMode, files)
		})
	}
}

func TestFileCache_Snapshot(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	cache, err := New(Config{Path: tmpDir})
	require.NoError(t, err)
	cachetesting.RunSnapshotTests(t, context.Background(), cache, "warp/bin:1.0")
	checkFiles(t, tmpDir, 0600, map[string]struct{}{"snapshot_warp%2fbin%3a1.0.binpb": {}})
}

func TestFileCache_CreatesDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := New(Config{Path: dir})
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileCache_ConfigValidation(t *testing.T) {
	t.Parallel()
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0600))

	testCases := []struct {
		name      string
		config    Config
		expectErr string
	}{
		{
			name:      "no path",
			expectErr: "path cannot be empty",
		},
		{
			name:      "path is a file",
			config:    Config{Path: notADir},
			expectErr: "failed to create cache directory",
		},
		{
			name:      "path below a file",
			config:    Config{Path: filepath.Join(notADir, "sub")},
			expectErr: "failed to create cache directory",
		},
		{
			name:      "bad mode",
			config:    Config{Path: "./", FileMode: 0111},
			expectErr: "mode 0111 must include bits 0600",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(testCase.config)
			require.ErrorContains(t, err, testCase.expectErr)
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc.DEF-1_2", sanitize("abc.DEF-1_2"))
	assert.Equal(t, "a%2fb%20c", sanitize("a/b c"))
	assert.Equal(t, "", sanitize(""))
}

func checkFiles(t *testing.T, dir string, mode fs.FileMode, names map[string]struct{}) {
	t.Helper()
	err := fs.WalkDir(os.DirFS(dir), ".", func(path string, d fs.DirEntry, err error) error {
		if !assert.NoError(t, err) {
			return nil
		}
		if d.IsDir() {
			if path == "." {
				return nil
			}
			t.Errorf("not expecting any sub-directories, found %s", path)
			return fs.SkipDir
		}
		_, ok := names[path]
		if !assert.Truef(t, ok, "not expecting file named %s", path) {
			return nil
		}
		delete(names, path)
		info, err := d.Info()
		if !assert.NoErrorf(t, err, "failed to get file info for %s", path) {
			return nil
		}
		assert.Equal(t, mode, info.Mode())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{}, names, "some files expected but not found")
}
