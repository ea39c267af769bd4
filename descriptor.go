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
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ErrFieldTypeMismatch indicates that a descriptor attribute was present on
// the wire with a wire type that cannot carry it, e.g. a nested message
// encoded as a varint. Spans that overrun into unrelated data fail this way.
var ErrFieldTypeMismatch = errors.New("field type mismatch")

// FileDescriptor is a recovered google.protobuf.FileDescriptorProto.
type FileDescriptor struct {
	Name         string
	Package      string
	Dependencies []string
	Messages     []*MessageDescriptor
	Enums        []*EnumDescriptor
	Options      FileOptions
}

// FileOptions holds the only file option that is recovered.
type FileOptions struct {
	GoPackage string
}

// MessageDescriptor is a recovered google.protobuf.DescriptorProto.
type MessageDescriptor struct {
	Name   string
	Fields []*FieldDescriptor
	Nested []*MessageDescriptor
	Enums  []*EnumDescriptor
	Oneofs []string
}

// FieldDescriptor is a recovered google.protobuf.FieldDescriptorProto.
type FieldDescriptor struct {
	Name   string
	Number int32
	Label  descriptorpb.FieldDescriptorProto_Label
	Type   descriptorpb.FieldDescriptorProto_Type
	// TypeName is only meaningful when Type is a message or an enum.
	TypeName string
	// OneofIndex is nil unless the field belongs to a oneof.
	OneofIndex *int32
	// Overflow holds number, label, type and oneof_index values that do not
	// fit in an int32, keyed by descriptor field number. The typed attribute
	// stays at its zero value.
	Overflow map[protoreflect.FieldNumber]uint64
}

// EnumDescriptor is a recovered google.protobuf.EnumDescriptorProto.
type EnumDescriptor struct {
	Name   string
	Values []EnumValue
}

// EnumValue is one name/number pair of an enum.
type EnumValue struct {
	Name   string
	Number int32
}

// DecodeFile decodes buf as a FileDescriptorProto. Attributes missing from
// the wire are left at their zero value. The first occurrence of a singular
// attribute wins.
func DecodeFile(buf []byte) (*FileDescriptor, error) {
	fields := ParseMessage(buf)
	fd := &FileDescriptor{}
	var err error
	if fd.Name, err = fields.string(fileNameFieldNumber); err != nil {
		return nil, err
	}
	if fd.Package, err = fields.string(filePackageFieldNumber); err != nil {
		return nil, err
	}
	err = fields.each(fileDependencyFieldNumber, func(b []byte) error {
		fd.Dependencies = append(fd.Dependencies, toString(b))
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = fields.each(fileMessageTypeFieldNumber, func(b []byte) error {
		msg, err := decodeMessage(b)
		if err != nil {
			return err
		}
		fd.Messages = append(fd.Messages, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = fields.each(fileEnumTypeFieldNumber, func(b []byte) error {
		enum, err := decodeEnum(b)
		if err != nil {
			return err
		}
		fd.Enums = append(fd.Enums, enum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	opts, ok, err := fields.bytes(fileOptionsFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	if ok {
		goPackage, err := ParseMessage(opts).string(fileOptionsGoPackageFieldNumber)
		if err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		fd.Options.GoPackage = goPackage
	}
	return fd, nil
}

func decodeMessage(buf []byte) (*MessageDescriptor, error) {
	fields := ParseMessage(buf)
	name, err := fields.string(messageNameFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	msg := &MessageDescriptor{Name: name}
	err = fields.each(messageFieldFieldNumber, func(b []byte) error {
		field, err := decodeField(b)
		if err != nil {
			return err
		}
		msg.Fields = append(msg.Fields, field)
		return nil
	})
	if err == nil {
		err = fields.each(messageNestedTypeFieldNumber, func(b []byte) error {
			nested, err := decodeMessage(b)
			if err != nil {
				return err
			}
			msg.Nested = append(msg.Nested, nested)
			return nil
		})
	}
	if err == nil {
		err = fields.each(messageEnumTypeFieldNumber, func(b []byte) error {
			enum, err := decodeEnum(b)
			if err != nil {
				return err
			}
			msg.Enums = append(msg.Enums, enum)
			return nil
		})
	}
	if err == nil {
		err = fields.each(messageOneofDeclFieldNumber, func(b []byte) error {
			oneof := ParseMessage(b)
			if _, ok := oneof.first(oneofNameFieldNumber); !ok {
				return nil
			}
			name, err := oneof.string(oneofNameFieldNumber)
			if err != nil {
				return err
			}
			msg.Oneofs = append(msg.Oneofs, name)
			return nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("message %q: %w", name, err)
	}
	return msg, nil
}

func decodeField(buf []byte) (*FieldDescriptor, error) {
	fields := ParseMessage(buf)
	name, err := fields.string(fieldNameFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("field: %w", err)
	}
	field := &FieldDescriptor{Name: name}
	number, _, err := fields.scalar(fieldNumberFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	field.Number = field.narrow(fieldNumberFieldNumber, number)
	label, _, err := fields.scalar(fieldLabelFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	field.Label = descriptorpb.FieldDescriptorProto_Label(field.narrow(fieldLabelFieldNumber, label))
	typ, _, err := fields.scalar(fieldTypeFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	field.Type = descriptorpb.FieldDescriptorProto_Type(field.narrow(fieldTypeFieldNumber, typ))
	if field.TypeName, err = fields.string(fieldTypeNameFieldNumber); err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	index, ok, err := fields.scalar(fieldOneofIndexFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	if ok && index <= math.MaxInt32 {
		idx := int32(index)
		field.OneofIndex = &idx
	} else if ok {
		field.narrow(fieldOneofIndexFieldNumber, index)
	}
	return field, nil
}

// narrow narrows a varint attribute. Values above math.MaxInt32 are kept in
// Overflow and read as zero.
func (f *FieldDescriptor) narrow(num protoreflect.FieldNumber, v uint64) int32 {
	if v <= math.MaxInt32 {
		return int32(v)
	}
	if f.Overflow == nil {
		f.Overflow = make(map[protoreflect.FieldNumber]uint64)
	}
	f.Overflow[num] = v
	return 0
}

func decodeEnum(buf []byte) (*EnumDescriptor, error) {
	fields := ParseMessage(buf)
	name, err := fields.string(enumNameFieldNumber)
	if err != nil {
		return nil, fmt.Errorf("enum: %w", err)
	}
	enum := &EnumDescriptor{Name: name}
	err = fields.each(enumValueFieldNumber, func(b []byte) error {
		valueFields := ParseMessage(b)
		valueName, err := valueFields.string(enumValueNameFieldNumber)
		if err != nil {
			return err
		}
		number, _, err := valueFields.scalar(enumValueNumberFieldNumber)
		if err != nil {
			return err
		}
		enum.Values = append(enum.Values, EnumValue{Name: valueName, Number: int32(number)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enum %q: %w", name, err)
	}
	return enum, nil
}

func mismatch(num protowire.Number, got, want protowire.Type) error {
	return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrFieldTypeMismatch, num, got, want)
}
