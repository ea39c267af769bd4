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
	"sync"
	"time"
)

// BlockResult is the outcome of decoding one span. Exactly one of File and
// Err is set.
type BlockResult struct {
	Block  Block
	File   *FileDescriptor
	Schema string
	Err    error
}

// Extraction is everything recovered from one binary.
type Extraction struct {
	ExtractedAt time.Time
	InputSize   int
	// Blocks are in the order their spans appear in the input.
	Blocks []BlockResult
	// TypeNames is the sorted output of MineTypeNames.
	TypeNames []string
}

// Succeeded returns the blocks that decoded.
func (e *Extraction) Succeeded() []BlockResult {
	var results []BlockResult
	for _, r := range e.Blocks {
		if r.Err == nil {
			results = append(results, r)
		}
	}
	return results
}

// Failed returns the blocks that could not be decoded.
func (e *Extraction) Failed() []BlockResult {
	var results []BlockResult
	for _, r := range e.Blocks {
		if r.Err != nil {
			results = append(results, r)
		}
	}
	return results
}

// Extractor recovers schema sources from binaries.
type Extractor struct {
	config ExtractorConfig
}

// NewExtractor validates config and returns an Extractor.
func NewExtractor(config *ExtractorConfig) (*Extractor, error) {
	if config == nil {
		config = &ExtractorConfig{}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Extractor{config: config.withDefaults()}, nil
}

// Extract scans data for descriptors, decodes each span independently and
// mines type names. A span that fails to decode is recorded in the result
// and never affects the others. The returned error is non-nil only if ctx
// is done before all spans were processed.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	logger := e.config.Logger
	now := e.config.Now()
	blocks := FindBlocks(data, e.config.PackagePrefix)
	logger.Info().Int("blocks", len(blocks)).Int("bytes", len(data)).Msg("scanned input")

	results := make([]BlockResult, len(blocks))
	workers := e.config.Workers
	if workers > len(blocks) {
		workers = len(blocks)
	}
	work := make(chan int, len(blocks))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				results[idx] = decodeBlock(blocks[idx], now)
			}
		}()
	}
	for i := range blocks {
		work <- i
	}
	close(work)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Err != nil {
			logger.Warn().Str("descriptor", r.Block.Name).Int("offset", r.Block.Start).Err(r.Err).Msg("decode failed")
			continue
		}
		logger.Debug().
			Str("descriptor", r.Block.Name).
			Str("package", r.File.Package).
			Int("messages", len(r.File.Messages)).
			Int("enums", len(r.File.Enums)).
			Msg("decoded")
	}

	names := MineTypeNames(data, e.config.TypeNamePrefix)
	logger.Info().Int("type_names", len(names)).Msg("mined type names")
	return &Extraction{
		ExtractedAt: now,
		InputSize:   len(data),
		Blocks:      results,
		TypeNames:   names,
	}, nil
}

func decodeBlock(block Block, now time.Time) (result BlockResult) {
	result.Block = block
	defer func() {
		if r := recover(); r != nil {
			result.File, result.Schema = nil, ""
			result.Err = fmt.Errorf("panic while decoding: %v", r)
		}
	}()
	fd, err := DecodeFile(block.Data)
	if err != nil {
		result.Err = err
		return result
	}
	result.File = fd
	result.Schema = Generate(fd, GenerateOptions{Now: now})
	return result
}
