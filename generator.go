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
	"time"

	"google.golang.org/protobuf/types/descriptorpb"
)

const indentUnit = "    "

// headerTimeLayout is the layout of the timestamp in the generated header.
const headerTimeLayout = "2006-01-02 15:04:05"

var scalarTypeNames = map[descriptorpb.FieldDescriptorProto_Type]string{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   "double",
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    "float",
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    "int64",
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   "uint64",
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    "int32",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  "fixed64",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  "fixed32",
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     "bool",
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   "string",
	descriptorpb.FieldDescriptorProto_TYPE_GROUP:    "group",
	descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:  "message",
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    "bytes",
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   "uint32",
	descriptorpb.FieldDescriptorProto_TYPE_ENUM:     "enum",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: "sfixed32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: "sfixed64",
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   "sint32",
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   "sint64",
}

// GenerateOptions controls schema text generation.
type GenerateOptions struct {
	// Now is the time recorded in the header comment. If zero, the current
	// time is used.
	Now time.Time
}

// Generate renders fd as .proto source. Declarations keep the order in which
// they were decoded.
func Generate(fd *FileDescriptor, opts GenerateOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	g := &schemaFile{}
	g.P("// Recovered from an embedded file descriptor")
	g.P("// Source file: ", fd.Name)
	g.P("// Generated at: ", now.Format(headerTimeLayout))
	g.P()
	g.P(`syntax = "proto3";`)
	g.P()
	g.P("package ", fd.Package, ";")
	g.P()
	for _, dep := range fd.Dependencies {
		g.P(`import "`, dep, `";`)
	}
	if len(fd.Dependencies) > 0 {
		g.P()
	}
	if fd.Options.GoPackage != "" {
		g.P(`option go_package = "`, fd.Options.GoPackage, `";`)
		g.P()
	}
	for _, enum := range fd.Enums {
		g.enum(enum, 0)
		g.P()
	}
	for _, msg := range fd.Messages {
		g.message(msg, 0)
		g.P()
	}
	return g.String()
}

// schemaFile accumulates generated lines.
type schemaFile struct {
	lines []string
}

// P appends one line made of the concatenation of v.
func (g *schemaFile) P(v ...any) {
	var sb strings.Builder
	for _, x := range v {
		fmt.Fprint(&sb, x)
	}
	g.lines = append(g.lines, sb.String())
}

func (g *schemaFile) String() string {
	return strings.Join(g.lines, "\n")
}

func (g *schemaFile) enum(enum *EnumDescriptor, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	g.P(indent, "enum ", enum.Name, " {")
	for _, v := range enum.Values {
		g.P(indent, indentUnit, v.Name, " = ", v.Number, ";")
	}
	g.P(indent, "}")
}

func (g *schemaFile) message(msg *MessageDescriptor, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	g.P(indent, "message ", msg.Name, " {")
	for _, enum := range msg.Enums {
		g.enum(enum, depth+1)
		g.P()
	}
	for _, nested := range msg.Nested {
		g.message(nested, depth+1)
		g.P()
	}

	groups := make([][]*FieldDescriptor, len(msg.Oneofs))
	var regular []*FieldDescriptor
	for _, field := range msg.Fields {
		if idx := field.OneofIndex; idx != nil && *idx >= 0 && int(*idx) < len(groups) {
			groups[*idx] = append(groups[*idx], field)
			continue
		}
		regular = append(regular, field)
	}
	for _, field := range regular {
		g.P(indent, indentUnit, formatField(field, false))
	}
	for i, name := range msg.Oneofs {
		if len(groups[i]) == 0 {
			continue
		}
		g.P(indent, indentUnit, "oneof ", name, " {")
		for _, field := range groups[i] {
			g.P(indent, indentUnit, indentUnit, formatField(field, true))
		}
		g.P(indent, indentUnit, "}")
	}
	g.P(indent, "}")
}

// formatField renders a single field declaration. Fields inside a oneof never
// carry a label, whatever was decoded.
func formatField(field *FieldDescriptor, inOneof bool) string {
	var typeName string
	switch field.Type {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		typeName = field.TypeName
		if typeName == "" {
			typeName = "unknown"
		}
		typeName = strings.TrimLeft(typeName, ".")
	default:
		name, ok := scalarTypeNames[field.Type]
		if raw, overflow := field.Overflow[fieldTypeFieldNumber]; overflow {
			name = fmt.Sprintf("unknown_%d", raw)
		} else if !ok {
			name = fmt.Sprintf("unknown_%d", int32(field.Type))
		}
		typeName = name
	}
	name := field.Name
	if name == "" {
		name = "unknown"
	}
	var label string
	if field.Label == descriptorpb.FieldDescriptorProto_LABEL_REPEATED && !inOneof {
		label = "repeated "
	}
	var number any = field.Number
	if raw, ok := field.Overflow[fieldNumberFieldNumber]; ok {
		number = raw
	}
	return fmt.Sprintf("%s%s %s = %v;", label, typeName, name, number)
}
