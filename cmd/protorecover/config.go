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

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// defaultBinary is where the desktop application installs its executable.
const defaultBinary = "/Applications/Warp.app/Contents/MacOS/stable"

// options are the resolved settings of one run. Flags override the config
// file, which overrides the defaults.
type options struct {
	Output          string
	Compare         string
	Workers         int
	PackagePrefix   string
	TypeNamePrefix  string
	CacheDir        string
	RedisAddr       string
	RedisExpiration time.Duration
	MemcacheAddr    string
	BaselineKey     string
	RegistryModule  string
	RegistryVersion string
	Decode          string
	Message         string
	Format          string
	Verbose         bool
}

func defaultOptions(now time.Time) options {
	return options{
		Output: "extracted_protos_" + now.Format("20060102_150405"),
		Format: "json",
	}
}

type fileConfig struct {
	Output          string `toml:"output"`
	Compare         string `toml:"compare"`
	Workers         int    `toml:"workers"`
	PackagePrefix   string `toml:"package_prefix"`
	TypeNamePrefix  string `toml:"type_name_prefix"`
	CacheDir        string `toml:"cache_dir"`
	RedisAddr       string `toml:"redis_addr"`
	RedisExpiration string `toml:"redis_expiration"`
	MemcacheAddr    string `toml:"memcache_addr"`
	BaselineKey     string `toml:"baseline_key"`
	RegistryModule  string `toml:"registry_module"`
	RegistryVersion string `toml:"registry_version"`
	Format          string `toml:"format"`
	Verbose         bool   `toml:"verbose"`
}

// loadConfigFile applies the keys present in the TOML file at path to opts.
func loadConfigFile(path string, opts *options) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	setString := func(key, value string, dst *string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(value)
		}
	}
	setString("output", raw.Output, &opts.Output)
	setString("compare", raw.Compare, &opts.Compare)
	setString("package_prefix", raw.PackagePrefix, &opts.PackagePrefix)
	setString("type_name_prefix", raw.TypeNamePrefix, &opts.TypeNamePrefix)
	setString("cache_dir", raw.CacheDir, &opts.CacheDir)
	setString("redis_addr", raw.RedisAddr, &opts.RedisAddr)
	setString("memcache_addr", raw.MemcacheAddr, &opts.MemcacheAddr)
	setString("baseline_key", raw.BaselineKey, &opts.BaselineKey)
	setString("registry_module", raw.RegistryModule, &opts.RegistryModule)
	setString("registry_version", raw.RegistryVersion, &opts.RegistryVersion)
	setString("format", raw.Format, &opts.Format)

	if meta.IsDefined("workers") {
		opts.Workers = raw.Workers
	}
	if meta.IsDefined("redis_expiration") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RedisExpiration))
		if err != nil {
			return fmt.Errorf("parse redis_expiration: %w", err)
		}
		opts.RedisExpiration = d
	}
	if meta.IsDefined("verbose") {
		opts.Verbose = raw.Verbose
	}
	return nil
}

// applyFlags copies the values of the flags that were set on the command
// line from flagOpts into opts.
func (o *options) applyFlags(flagOpts options, set map[string]bool) {
	if set["o"] || set["output"] {
		o.Output = flagOpts.Output
	}
	if set["c"] || set["compare"] {
		o.Compare = flagOpts.Compare
	}
	if set["workers"] {
		o.Workers = flagOpts.Workers
	}
	if set["package-prefix"] {
		o.PackagePrefix = flagOpts.PackagePrefix
	}
	if set["type-prefix"] {
		o.TypeNamePrefix = flagOpts.TypeNamePrefix
	}
	if set["cache-dir"] {
		o.CacheDir = flagOpts.CacheDir
	}
	if set["redis-addr"] {
		o.RedisAddr = flagOpts.RedisAddr
	}
	if set["redis-expiration"] {
		o.RedisExpiration = flagOpts.RedisExpiration
	}
	if set["memcache-addr"] {
		o.MemcacheAddr = flagOpts.MemcacheAddr
	}
	if set["baseline-key"] {
		o.BaselineKey = flagOpts.BaselineKey
	}
	if set["registry-module"] {
		o.RegistryModule = flagOpts.RegistryModule
	}
	if set["registry-version"] {
		o.RegistryVersion = flagOpts.RegistryVersion
	}
	if set["decode"] {
		o.Decode = flagOpts.Decode
	}
	if set["message"] {
		o.Message = flagOpts.Message
	}
	if set["format"] {
		o.Format = flagOpts.Format
	}
	if set["v"] {
		o.Verbose = flagOpts.Verbose
	}
}

func (o *options) validate() error {
	if o.Output == "" {
		return errors.New("output directory cannot be empty")
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers (%d) cannot be negative", o.Workers)
	}
	if o.RedisExpiration < 0 {
		return fmt.Errorf("redis expiration (%v) cannot be negative", o.RedisExpiration)
	}
	var backends []string
	for name, addr := range map[string]string{
		"cache-dir":     o.CacheDir,
		"redis-addr":    o.RedisAddr,
		"memcache-addr": o.MemcacheAddr,
	} {
		if addr != "" {
			backends = append(backends, name)
		}
	}
	if len(backends) > 1 {
		return errors.New("only one of cache-dir, redis-addr and memcache-addr can be set")
	}
	if o.Decode != "" && o.Message == "" {
		return errors.New("decode requires a message name")
	}
	if o.RegistryVersion != "" && o.RegistryModule == "" {
		return errors.New("registry-version requires registry-module")
	}
	return nil
}
