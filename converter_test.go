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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/dynamicpb"
)

func TestConverter_ConvertMessage(t *testing.T) {
	t.Parallel()
	resolver, err := NewResolver(testExtraction(t).DescriptorSet())
	require.NoError(t, err)

	// create test message
	messageType, err := resolver.FindMessageByName("warp.multi_agent.v1.Task")
	require.NoError(t, err)
	messageDescriptor := messageType.Descriptor()
	message := dynamicpb.NewMessage(messageDescriptor)
	message.Set(messageDescriptor.Fields().ByName("id"), protoreflect.ValueOfString("abcdef"))
	message.Set(messageDescriptor.Fields().ByName("status"), protoreflect.ValueOfEnum(1))
	list := message.Mutable(messageDescriptor.Fields().ByName("tags")).List()
	list.Append(protoreflect.ValueOfString("x"))
	list.Append(protoreflect.ValueOfString("y"))
	message.Set(messageDescriptor.Fields().ByName("blob"), protoreflect.ValueOfBytes([]byte{1, 2, 3}))
	meta := message.Mutable(messageDescriptor.Fields().ByName("meta")).Message()
	meta.Set(meta.Descriptor().Fields().ByName("owner"), protoreflect.ValueOfString("agent"))

	data, err := proto.Marshal(message)
	require.NoError(t, err)

	formats := []struct {
		name         string
		outputFormat OutputFormat
		unmarshal    func([]byte, proto.Message) error
	}{
		{
			name:         "json",
			outputFormat: JSONOutputFormat(protojson.MarshalOptions{}),
			unmarshal:    protojson.UnmarshalOptions{Resolver: resolver}.Unmarshal,
		},
		{
			name:         "text",
			outputFormat: TextOutputFormat(prototext.MarshalOptions{}),
			unmarshal:    prototext.UnmarshalOptions{Resolver: resolver}.Unmarshal,
		},
		{
			name:         "custom",
			outputFormat: marshalProtoJSONWithResolver{},
			unmarshal:    protojson.UnmarshalOptions{Resolver: resolver}.Unmarshal,
		},
	}
	for _, format := range formats {
		format := format
		t.Run(format.name, func(t *testing.T) {
			t.Parallel()
			converter := Converter{
				Resolver:     resolver,
				InputFormat:  BinaryInputFormat(proto.UnmarshalOptions{}),
				OutputFormat: format.outputFormat,
			}
			resp, err := converter.ConvertMessage("warp.multi_agent.v1.Task", data)
			require.NoError(t, err)
			clone := message.New().Interface()
			require.NoError(t, format.unmarshal(resp, clone))
			diff := cmp.Diff(message, clone, protocmp.Transform())
			if diff != "" {
				t.Errorf("round-trip failure (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConverter_Errors(t *testing.T) {
	t.Parallel()
	resolver, err := NewResolver(testExtraction(t).DescriptorSet())
	require.NoError(t, err)
	converter := Converter{
		Resolver:     resolver,
		InputFormat:  BinaryInputFormat(proto.UnmarshalOptions{}),
		OutputFormat: JSONOutputFormat(protojson.MarshalOptions{}),
	}

	_, err = converter.ConvertMessage("warp.multi_agent.v1.Missing", nil)
	require.ErrorContains(t, err, "message_name 'warp.multi_agent.v1.Missing' is not found in recovered schemas")

	_, err = converter.ConvertMessage("warp.multi_agent.v1.Task", []byte{0x0a, 0x05, 'a'})
	require.ErrorContains(t, err, "input_data cannot be unmarshaled to warp.multi_agent.v1.Task")
}

func TestConverter_UnknownFieldsKept(t *testing.T) {
	t.Parallel()
	resolver, err := NewResolver(testExtraction(t).DescriptorSet())
	require.NoError(t, err)
	format, err := OutputFormatByName("text")
	require.NoError(t, err)
	converter := Converter{
		Resolver:     resolver,
		InputFormat:  BinaryInputFormat(proto.UnmarshalOptions{}),
		OutputFormat: format,
	}
	// field 99 is not part of the recovered schema
	resp, err := converter.ConvertMessage("warp.multi_agent.v1.Task.Meta", []byte{0x0a, 0x01, 'a', 0x98, 0x06, 0x07})
	require.NoError(t, err)
	assert.Contains(t, string(resp), `owner: "a"`)
	assert.Contains(t, string(resp), "99: 7")
}

func TestOutputFormatByName(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"json", "JSON", "text"} {
		_, err := OutputFormatByName(name)
		assert.NoError(t, err, name)
	}
	_, err := OutputFormatByName("yaml")
	require.ErrorContains(t, err, `unknown output format "yaml"`)
}

func TestNewResolver_SkipsInvalidFiles(t *testing.T) {
	t.Parallel()
	bad := &FileDescriptor{
		Name:    "bad.proto",
		Package: "warp.bad.v1",
		Enums:   []*EnumDescriptor{{Name: "Kind", Values: []EnumValue{{Name: "KIND_ONE", Number: 1}}}},
	}
	set := testExtraction(t).DescriptorSet()
	set.File = append(set.File, bad.ToProto())

	errs := ValidateDescriptorSet(set)
	require.Len(t, errs, 1)
	require.Contains(t, errs, "bad.proto")

	resolver, err := NewResolver(set)
	require.NoError(t, err)
	_, err = resolver.FindMessageByName("warp.multi_agent.v1.Task")
	require.NoError(t, err)
	_, err = resolver.FindEnumByName("warp.bad.v1.Kind")
	require.Error(t, err)
	_, err = resolver.FindEnumByName("warp.multi_agent.v1.Task.Status")
	require.NoError(t, err)
}

type marshalProtoJSONWithResolver struct {
	protojson.MarshalOptions
}

func (p marshalProtoJSONWithResolver) WithResolver(r Resolver) Marshaler {
	return protojson.MarshalOptions{
		Resolver: r,
	}
}
