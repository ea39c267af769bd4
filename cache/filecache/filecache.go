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

// Package filecache provides an implementation of protorecover.Cache that
// keeps snapshots as files in a local directory, with cache keys being used
// to form the file names.
//
// This is the natural choice on a workstation: point successive runs against
// different builds of the same binary at one directory and each run reports
// what changed since the previous one.
package filecache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protorecover"
)

// Config represents the configuration parameters used to
// create a new file-system-backed cache.
type Config struct {
	// Required: the folder in which snapshot files live. It is created
	// if it does not exist.
	Path string
	// Defaults to "snapshot" if left empty. This is added to the cache
	// key and the extension below to form a file name. A trailing
	// underscore is not necessary and will be added if not present (to
	// separate prefix from the rest of the cache key).
	FilenamePrefix string
	// Defaults to ".binpb" if left empty. This is added to the cache
	// key and prefix above to form a file name.
	FilenameExtension string
	// The mode to use when creating new files in the cache directory.
	// Defaults to 0600 if left zero. If not left as default, the mode
	// must have at least bits 0400 and 0200 (read and write permissions
	// for owner) set.
	FileMode fs.FileMode
}

// New creates a new file-system-backed cache with the given
// configuration.
func New(config Config) (protorecover.Cache, error) {
	if config.Path == "" {
		return nil, errors.New("path cannot be empty")
	}
	path, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, err
	}
	config.Path = path
	if config.FilenamePrefix == "" {
		config.FilenamePrefix = "snapshot"
	} else {
		config.FilenamePrefix = strings.TrimSuffix(config.FilenamePrefix, "_")
	}
	if config.FilenameExtension == "" {
		config.FilenameExtension = ".binpb"
	} else if !strings.HasPrefix(config.FilenameExtension, ".") {
		config.FilenameExtension = "." + config.FilenameExtension
	}
	if config.FileMode == 0 {
		config.FileMode = 0600
	} else if (config.FileMode & 0600) != 0600 {
		return nil, fmt.Errorf("mode %#o must include bits 0600", config.FileMode)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	// make sure we can write files to cache directory
	tmp, err := os.CreateTemp(path, ".writable")
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("insufficient permission to create file in %s", path)
		}
		return nil, fmt.Errorf("failed to create file in %s: %w", path, err)
	}
	closeErr := tmp.Close()
	rmErr := os.Remove(tmp.Name())
	if closeErr != nil {
		return nil, closeErr
	} else if rmErr != nil {
		return nil, rmErr
	}

	return (*cache)(&config), nil
}

type cache Config

func (c *cache) Load(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.Path, c.fileNameForKey(key)))
}

// Save writes to a temporary file first and renames it into place, so a
// concurrent Load never observes a partially written snapshot.
func (c *cache) Save(_ context.Context, key string, data []byte) error {
	fileName := filepath.Join(c.Path, c.fileNameForKey(key))
	tmp, err := os.CreateTemp(c.Path, ".tmp_"+c.FilenamePrefix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, c.FileMode)
	}
	if err == nil {
		err = os.Rename(tmpName, fileName)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (c *cache) fileNameForKey(key string) string {
	if key != "" {
		key = "_" + sanitize(key)
	}
	return c.FilenamePrefix + key + c.FilenameExtension
}

func sanitize(s string) string {
	var builder strings.Builder
	hexWriter := hex.NewEncoder(&builder)
	var buf [1]byte
	for i, length := 0, len(s); i < length; i++ {
		char := s[i]
		switch {
		case char >= 'a' && char <= 'z',
			char >= 'A' && char <= 'Z',
			char >= '0' && char <= '9',
			char == '.' || char == '-' || char == '_':
			builder.WriteByte(char)
		default:
			builder.WriteByte('%')
			buf[0] = char
			_, _ = hexWriter.Write(buf[:])
		}
	}
	return builder.String()
}
