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
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Resolver can resolve message and extension types, as well as enums by name.
type Resolver interface {
	protoregistry.ExtensionTypeResolver
	protoregistry.MessageTypeResolver

	// FindEnumByName looks up an enum by its full name.
	// E.g., "google.protobuf.Field.Kind".
	//
	// This returns (nil, NotFound) if not found.
	FindEnumByName(enum protoreflect.FullName) (protoreflect.EnumType, error)
}

type resolver struct {
	*protoregistry.Files
	*protoregistry.Types
}

// NewResolver returns a Resolver for the types declared in the files of set
// that pass validation. Files that fail validation are skipped; see
// ValidateDescriptorSet.
func NewResolver(set *descriptorpb.FileDescriptorSet) (Resolver, error) {
	files, _ := buildRegistry(set)
	result := &resolver{Files: files, Types: &protoregistry.Types{}}
	var rangeErr error
	files.RangeFiles(func(fileDescriptor protoreflect.FileDescriptor) bool {
		if err := registerTypes(result.Types, fileDescriptor); err != nil {
			rangeErr = err
			return false
		}
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}
	return result, nil
}

// ValidateDescriptorSet checks every file of set with protodesc and returns
// the errors keyed by file name. Imports that are not part of set are
// tolerated. Recovered descriptors commonly fail here when a span was cut
// short; the error is informational.
func ValidateDescriptorSet(set *descriptorpb.FileDescriptorSet) map[string]error {
	_, errs := buildRegistry(set)
	return errs
}

func buildRegistry(set *descriptorpb.FileDescriptorSet) (*protoregistry.Files, map[string]error) {
	files := &protoregistry.Files{}
	errs := map[string]error{}
	opts := protodesc.FileOptions{AllowUnresolvable: true}
	for _, fdp := range set.GetFile() {
		fd, err := opts.New(fdp, files)
		if err == nil {
			err = files.RegisterFile(fd)
		}
		if err != nil {
			errs[fdp.GetName()] = err
		}
	}
	return files, errs
}

type typeContainer interface {
	Enums() protoreflect.EnumDescriptors
	Messages() protoreflect.MessageDescriptors
	Extensions() protoreflect.ExtensionDescriptors
}

func registerTypes(types *protoregistry.Types, container typeContainer) error {
	for i := 0; i < container.Enums().Len(); i++ {
		if err := types.RegisterEnum(dynamicpb.NewEnumType(container.Enums().Get(i))); err != nil {
			return err
		}
	}
	for i := 0; i < container.Messages().Len(); i++ {
		msg := container.Messages().Get(i)
		if err := types.RegisterMessage(dynamicpb.NewMessageType(msg)); err != nil {
			return err
		}
		if err := registerTypes(types, msg); err != nil {
			return err
		}
	}
	for i := 0; i < container.Extensions().Len(); i++ {
		if err := types.RegisterExtension(dynamicpb.NewExtensionType(container.Extensions().Get(i))); err != nil {
			return err
		}
	}
	return nil
}
