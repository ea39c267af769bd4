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
	"google.golang.org/protobuf/reflect/protoreflect"
)

// https://github.com/protocolbuffers/protobuf/blob/main/src/google/protobuf/descriptor.proto

// Describes a complete .proto file.
const (
	fileNameFieldNumber        protoreflect.FieldNumber = 1
	filePackageFieldNumber     protoreflect.FieldNumber = 2
	fileDependencyFieldNumber  protoreflect.FieldNumber = 3
	fileMessageTypeFieldNumber protoreflect.FieldNumber = 4
	fileEnumTypeFieldNumber    protoreflect.FieldNumber = 5
	fileOptionsFieldNumber     protoreflect.FieldNumber = 8
)

// FileOptions.
const (
	fileOptionsGoPackageFieldNumber protoreflect.FieldNumber = 11
)

// Describes a message type.
const (
	messageNameFieldNumber       protoreflect.FieldNumber = 1
	messageFieldFieldNumber      protoreflect.FieldNumber = 2
	messageNestedTypeFieldNumber protoreflect.FieldNumber = 3
	messageEnumTypeFieldNumber   protoreflect.FieldNumber = 4
	messageOneofDeclFieldNumber  protoreflect.FieldNumber = 8
)

// Describes a field within a message.
const (
	fieldNameFieldNumber       protoreflect.FieldNumber = 1
	fieldNumberFieldNumber     protoreflect.FieldNumber = 3
	fieldLabelFieldNumber      protoreflect.FieldNumber = 4
	fieldTypeFieldNumber       protoreflect.FieldNumber = 5
	fieldTypeNameFieldNumber   protoreflect.FieldNumber = 6
	fieldOneofIndexFieldNumber protoreflect.FieldNumber = 9
)

// Describes a oneof.
const (
	oneofNameFieldNumber protoreflect.FieldNumber = 1
)

// Describes an enum type and its values.
const (
	enumNameFieldNumber        protoreflect.FieldNumber = 1
	enumValueFieldNumber       protoreflect.FieldNumber = 2
	enumValueNameFieldNumber   protoreflect.FieldNumber = 1
	enumValueNumberFieldNumber protoreflect.FieldNumber = 2
)

// Describes a set of files, used for snapshot cache entries.
const (
	fileDescriptorSetFileFieldNumber protoreflect.FieldNumber = 1
)
