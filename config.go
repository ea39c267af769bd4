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
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// ExtractorConfig contains the configurable attributes of the [Extractor].
type ExtractorConfig struct {
	// PackagePrefix is the namespace a descriptor's package name must start
	// with for the descriptor to be found by the scanner. If left empty,
	// DefaultPackagePrefix is used.
	PackagePrefix string
	// TypeNamePrefix is the fully-qualified scope, including the trailing
	// dot, whose type names are mined from the raw binary. If left empty,
	// DefaultTypeNamePrefix is used.
	TypeNamePrefix string
	// Workers is the number of goroutines decoding spans concurrently. Spans
	// share nothing, so this only affects throughput. If zero, GOMAXPROCS is
	// used. It cannot be negative.
	Workers int
	// Logger receives progress and per-descriptor results. If nil, nothing
	// is logged.
	Logger *zerolog.Logger
	// Now returns the time recorded in generated headers and reports. If nil,
	// time.Now is used.
	Now func() time.Time
}

func (c *ExtractorConfig) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("worker count (%d) cannot be negative", c.Workers)
	}
	if c.TypeNamePrefix != "" && c.TypeNamePrefix[len(c.TypeNamePrefix)-1] != '.' {
		return fmt.Errorf("type name prefix %q must end with a dot", c.TypeNamePrefix)
	}
	for _, prefix := range []string{c.PackagePrefix, c.TypeNamePrefix} {
		for i := 0; i < len(prefix); i++ {
			if prefix[i] < 0x20 || prefix[i] > 0x7e {
				return fmt.Errorf("prefix %q must be printable ASCII", prefix)
			}
		}
	}
	return nil
}

func (c *ExtractorConfig) withDefaults() ExtractorConfig {
	cfg := *c
	if cfg.PackagePrefix == "" {
		cfg.PackagePrefix = DefaultPackagePrefix
	}
	if cfg.TypeNamePrefix == "" {
		cfg.TypeNamePrefix = DefaultTypeNamePrefix
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}
