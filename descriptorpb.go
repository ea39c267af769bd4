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
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// recoveredSyntax is the syntax assumed for every recovered file, matching
// the generated source text.
const recoveredSyntax = "proto3"

// ToProto converts fd into a google.protobuf.FileDescriptorProto.
func (fd *FileDescriptor) ToProto() *descriptorpb.FileDescriptorProto {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:   proto.String(fd.Name),
		Syntax: proto.String(recoveredSyntax),
	}
	if fd.Package != "" {
		fdp.Package = proto.String(fd.Package)
	}
	fdp.Dependency = append(fdp.Dependency, fd.Dependencies...)
	for _, msg := range fd.Messages {
		fdp.MessageType = append(fdp.MessageType, msg.toProto())
	}
	for _, enum := range fd.Enums {
		fdp.EnumType = append(fdp.EnumType, enum.toProto())
	}
	if fd.Options.GoPackage != "" {
		fdp.Options = &descriptorpb.FileOptions{GoPackage: proto.String(fd.Options.GoPackage)}
	}
	return fdp
}

func (m *MessageDescriptor) toProto() *descriptorpb.DescriptorProto {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(m.Name)}
	for _, field := range m.Fields {
		msg.Field = append(msg.Field, field.toProto())
	}
	for _, nested := range m.Nested {
		msg.NestedType = append(msg.NestedType, nested.toProto())
	}
	for _, enum := range m.Enums {
		msg.EnumType = append(msg.EnumType, enum.toProto())
	}
	for _, name := range m.Oneofs {
		msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(name)})
	}
	return msg
}

func (f *FieldDescriptor) toProto() *descriptorpb.FieldDescriptorProto {
	field := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.Name),
		Number: proto.Int32(f.Number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	if f.Label != 0 {
		field.Label = f.Label.Enum()
	}
	if f.Type != 0 {
		field.Type = f.Type.Enum()
	}
	if f.TypeName != "" {
		field.TypeName = proto.String(f.TypeName)
	}
	if f.OneofIndex != nil {
		field.OneofIndex = proto.Int32(*f.OneofIndex)
	}
	return field
}

func (e *EnumDescriptor) toProto() *descriptorpb.EnumDescriptorProto {
	enum := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	for _, v := range e.Values {
		enum.Value = append(enum.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(v.Number),
		})
	}
	return enum
}

// DescriptorSet returns the successfully decoded files as a
// google.protobuf.FileDescriptorSet, in scan order.
func (e *Extraction) DescriptorSet() *descriptorpb.FileDescriptorSet {
	set := &descriptorpb.FileDescriptorSet{}
	for _, r := range e.Succeeded() {
		set.File = append(set.File, r.File.ToProto())
	}
	return set
}
