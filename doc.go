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

// Package protorecover recovers protobuf schemas that were compiled into a
// binary without their .proto sources.
//
// Code generated by protoc plugins usually embeds the serialized
// google.protobuf.FileDescriptorProto of every file it was built from. This
// package finds those descriptors in an arbitrary binary with a byte-level
// scan, decodes them with a forgiving wire-format reader and renders them
// back to .proto source text. Boundaries between descriptors are guessed, so
// decoding is best effort: a span that overruns into unrelated data still
// yields whatever decoded before the garbage, and a span that cannot be
// decoded at all is reported without affecting its neighbours.
//
// Use [NewExtractor] and [Extractor.Extract] to process a binary, then
// [NewReport] and [WriteOutputs] to persist the results. Recovered schemas can
// be compared with an earlier run through a [Baseline], snapshots can be kept
// in a [Cache] (see the cache subpackages), and captured payloads can be
// decoded against the recovered schemas with a [Converter].
package protorecover
