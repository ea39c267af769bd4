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
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// InputFormat provides the [Converter] with a way to read captured payloads.
// The returned [Unmarshaler] must use the given [Resolver].
type InputFormat interface {
	WithResolver(Resolver) Unmarshaler
}

// Unmarshaler is implemented by proto.UnmarshalOptions,
// protojson.UnmarshalOptions and prototext.UnmarshalOptions.
type Unmarshaler interface {
	Unmarshal([]byte, proto.Message) error
}

// OutputFormat provides the [Converter] with a way to render decoded
// payloads. The returned [Marshaler] must use the given [Resolver].
type OutputFormat interface {
	WithResolver(Resolver) Marshaler
}

// Marshaler is implemented by proto.MarshalOptions, protojson.MarshalOptions
// and prototext.MarshalOptions.
type Marshaler interface {
	Marshal(proto.Message) ([]byte, error)
}

type binaryInputFormat struct {
	proto.UnmarshalOptions
}

// BinaryInputFormat reads payloads in the protobuf wire format. Unknown
// fields are kept, since recovered schemas are often incomplete.
func BinaryInputFormat(in proto.UnmarshalOptions) InputFormat {
	return binaryInputFormat{UnmarshalOptions: in}
}

func (x binaryInputFormat) WithResolver(in Resolver) Unmarshaler {
	x.Resolver = in
	return x
}

type jsonOutputFormat struct {
	protojson.MarshalOptions
}

// JSONOutputFormat renders payloads with protojson.
func JSONOutputFormat(in protojson.MarshalOptions) OutputFormat {
	return jsonOutputFormat{MarshalOptions: in}
}

func (x jsonOutputFormat) WithResolver(in Resolver) Marshaler {
	x.Resolver = in
	return x
}

type textOutputFormat struct {
	prototext.MarshalOptions
}

// TextOutputFormat renders payloads with prototext.
func TextOutputFormat(in prototext.MarshalOptions) OutputFormat {
	return textOutputFormat{MarshalOptions: in}
}

func (x textOutputFormat) WithResolver(in Resolver) Marshaler {
	x.Resolver = in
	return x
}

// OutputFormatByName returns the output format named "json" or "text",
// using multi-line, indented output.
func OutputFormatByName(name string) (OutputFormat, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSONOutputFormat(protojson.MarshalOptions{Multiline: true}), nil
	case "text":
		return TextOutputFormat(prototext.MarshalOptions{Multiline: true, EmitUnknown: true}), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json or text)", name)
	}
}
