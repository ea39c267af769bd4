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

// protorecover recovers the protobuf schemas embedded in a compiled binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/bufbuild/protorecover"
	"github.com/bufbuild/protorecover/cache/filecache"
	memcachebackend "github.com/bufbuild/protorecover/cache/memcache"
	"github.com/bufbuild/protorecover/cache/rediscache"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	now := time.Now()

	fs := flag.NewFlagSet("protorecover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: protorecover [flags] [binary]\n\nbinary defaults to %s\n\n", defaultBinary)
		fs.PrintDefaults()
	}

	var (
		flagOpts   options
		configPath string
	)
	fs.StringVar(&flagOpts.Output, "o", "", "output directory (default extracted_protos_YYYYMMDD_HHMMSS)")
	fs.StringVar(&flagOpts.Output, "output", "", "output directory (default extracted_protos_YYYYMMDD_HHMMSS)")
	fs.StringVar(&flagOpts.Compare, "c", "", "compare with the .proto files in this directory")
	fs.StringVar(&flagOpts.Compare, "compare", "", "compare with the .proto files in this directory")
	fs.StringVar(&configPath, "config", "", "TOML config file")
	fs.IntVar(&flagOpts.Workers, "workers", 0, "descriptors decoded concurrently (default GOMAXPROCS)")
	fs.StringVar(&flagOpts.PackagePrefix, "package-prefix", "", "package namespace of embedded descriptors (default \""+protorecover.DefaultPackagePrefix+"\")")
	fs.StringVar(&flagOpts.TypeNamePrefix, "type-prefix", "", "scope of mined type names (default \""+protorecover.DefaultTypeNamePrefix+"\")")
	fs.StringVar(&flagOpts.CacheDir, "cache-dir", "", "keep snapshots in this directory")
	fs.StringVar(&flagOpts.RedisAddr, "redis-addr", "", "keep snapshots in the Redis server at this address")
	fs.DurationVar(&flagOpts.RedisExpiration, "redis-expiration", 0, "how long Redis keeps a snapshot (default forever)")
	fs.StringVar(&flagOpts.MemcacheAddr, "memcache-addr", "", "keep snapshots in the memcached server at this address")
	fs.StringVar(&flagOpts.BaselineKey, "baseline-key", "", "snapshot key (default the binary's file name)")
	fs.StringVar(&flagOpts.RegistryModule, "registry-module", "", "compare with this Buf Schema Registry module")
	fs.StringVar(&flagOpts.RegistryVersion, "registry-version", "", "version of the registry module (default latest)")
	fs.StringVar(&flagOpts.Decode, "decode", "", "decode the captured payload in this file with the recovered schemas")
	fs.StringVar(&flagOpts.Message, "message", "", "fully-qualified message name of the payload given to -decode")
	fs.StringVar(&flagOpts.Format, "format", "json", "rendering of the decoded payload: json or text")
	fs.BoolVar(&flagOpts.Verbose, "v", false, "log every descriptor")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return errors.New("at most one binary can be given")
	}
	binaryPath := defaultBinary
	if fs.NArg() == 1 {
		binaryPath = fs.Arg(0)
	}

	opts := defaultOptions(now)
	if configPath != "" {
		if err := loadConfigFile(configPath, &opts); err != nil {
			return err
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opts.applyFlags(flagOpts, set)
	if err := opts.validate(); err != nil {
		return err
	}
	if opts.BaselineKey == "" {
		opts.BaselineKey = filepath.Base(binaryPath)
	}

	logger := newLogger(stderr, opts.Verbose)

	data, err := protorecover.ReadBinary(binaryPath)
	if err != nil {
		return err
	}
	logger.Info().Str("binary", binaryPath).Float64("size_mb", float64(len(data))/1024/1024).Msg("loaded binary")

	extractor, err := protorecover.NewExtractor(&protorecover.ExtractorConfig{
		PackagePrefix:  opts.PackagePrefix,
		TypeNamePrefix: opts.TypeNamePrefix,
		Workers:        opts.Workers,
		Logger:         &logger,
		Now:            func() time.Time { return now },
	})
	if err != nil {
		return err
	}
	ex, err := extractor.Extract(ctx, data)
	if err != nil {
		return err
	}
	report := protorecover.NewReport(binaryPath, ex)
	if err := protorecover.WriteOutputs(opts.Output, ex, report); err != nil {
		return err
	}
	printSummary(stdout, opts.Output, ex)

	cache, closeCache, err := openCache(opts)
	if err != nil {
		return err
	}
	defer closeCache()

	var baselines []protorecover.Baseline
	if opts.Compare != "" {
		if _, err := os.Stat(opts.Compare); errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("dir", opts.Compare).Msg("comparison directory does not exist, skipping")
		} else {
			baselines = append(baselines, protorecover.DirBaseline(opts.Compare))
		}
	}
	if cache != nil {
		baselines = append(baselines, protorecover.CacheBaseline(cache, opts.BaselineKey))
	}
	if opts.RegistryModule != "" {
		client := protorecover.NewDefaultFileDescriptorSetServiceClient("")
		poller := protorecover.NewDescriptorPoller(client, opts.RegistryModule, opts.RegistryVersion)
		baselines = append(baselines, protorecover.RegistryBaseline(poller, opts.RegistryModule))
	}
	current := protorecover.SnapshotOf(ex)
	for _, baseline := range baselines {
		previous, err := baseline.Snapshot(ctx)
		if err != nil {
			logger.Warn().Err(err).Stringer("baseline", baseline).Msg("skipping comparison")
			continue
		}
		printComparison(stdout, baseline, protorecover.Compare(current, previous))
	}

	if cache != nil {
		if err := protorecover.SaveSnapshot(ctx, cache, opts.BaselineKey, ex); err != nil {
			return fmt.Errorf("saving snapshot %q: %w", opts.BaselineKey, err)
		}
		logger.Info().Str("key", opts.BaselineKey).Msg("saved snapshot")
	}

	if opts.Decode != "" {
		return decodePayload(stdout, ex, opts)
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "protorecover").Logger()
}

// openCache returns the snapshot cache selected by opts, or nil if none is.
func openCache(opts options) (protorecover.Cache, func(), error) {
	noop := func() {}
	switch {
	case opts.CacheDir != "":
		cache, err := filecache.New(filecache.Config{Path: opts.CacheDir})
		return cache, noop, err
	case opts.RedisAddr != "":
		pool := rediscache.NewPool(opts.RedisAddr)
		cache, err := rediscache.New(rediscache.Config{
			Client:     pool,
			KeyPrefix:  "protorecover:",
			Expiration: opts.RedisExpiration,
		})
		return cache, func() { _ = pool.Close() }, err
	case opts.MemcacheAddr != "":
		cache, err := memcachebackend.New(memcachebackend.Config{
			Client:    memcache.New(opts.MemcacheAddr),
			KeyPrefix: "protorecover:",
		})
		return cache, noop, err
	default:
		return nil, noop, nil
	}
}

func printSummary(w io.Writer, dir string, ex *protorecover.Extraction) {
	succeeded, failed := ex.Succeeded(), ex.Failed()
	fmt.Fprintf(w, "Recovered %d of %d descriptors into %s\n", len(succeeded), len(ex.Blocks), dir)
	for _, r := range succeeded {
		fmt.Fprintf(w, "  %-40s %3d messages %3d enums\n", r.Block.Name, len(r.File.Messages), len(r.File.Enums))
	}
	for _, r := range failed {
		fmt.Fprintf(w, "  %-40s failed: %v\n", r.Block.Name, r.Err)
	}
	fmt.Fprintf(w, "Mined %d type names\n", len(ex.TypeNames))
}

func printComparison(w io.Writer, baseline fmt.Stringer, cmp protorecover.Comparison) {
	fmt.Fprintf(w, "Compared with %s:\n", baseline)
	if len(cmp.Added) > 0 {
		fmt.Fprintf(w, "  added: %s\n", strings.Join(cmp.Added, ", "))
	}
	if len(cmp.Removed) > 0 {
		fmt.Fprintf(w, "  removed: %s\n", strings.Join(cmp.Removed, ", "))
	}
	if len(cmp.Changed) > 0 {
		fmt.Fprintf(w, "  changed: %s\n", strings.Join(cmp.Changed, ", "))
	}
	if cmp.Empty() {
		fmt.Fprintln(w, "  no changes")
	}
}

func decodePayload(w io.Writer, ex *protorecover.Extraction, opts options) error {
	payload, err := os.ReadFile(opts.Decode)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	resolver, err := protorecover.NewResolver(ex.DescriptorSet())
	if err != nil {
		return err
	}
	format, err := protorecover.OutputFormatByName(opts.Format)
	if err != nil {
		return err
	}
	converter := &protorecover.Converter{
		Resolver:     resolver,
		InputFormat:  protorecover.BinaryInputFormat(proto.UnmarshalOptions{}),
		OutputFormat: format,
	}
	out, err := converter.ConvertMessage(opts.Message, payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-o": true, "--o": true,
	"-output": true, "--output": true,
	"-c": true, "--c": true,
	"-compare": true, "--compare": true,
	"-config": true, "--config": true,
	"-workers": true, "--workers": true,
	"-package-prefix": true, "--package-prefix": true,
	"-type-prefix": true, "--type-prefix": true,
	"-cache-dir": true, "--cache-dir": true,
	"-redis-addr": true, "--redis-addr": true,
	"-redis-expiration": true, "--redis-expiration": true,
	"-memcache-addr": true, "--memcache-addr": true,
	"-baseline-key": true, "--baseline-key": true,
	"-registry-module": true, "--registry-module": true,
	"-registry-version": true, "--registry-version": true,
	"-decode": true, "--decode": true,
	"-message": true, "--message": true,
	"-format": true, "--format": true,
}

// reorderArgs moves flags ahead of positional arguments so that the flag
// package sees them, allowing "protorecover ./warp -o out".
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
