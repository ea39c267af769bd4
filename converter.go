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

	"github.com/pkg/errors"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Converter decodes captured payloads with recovered schemas.
type Converter struct {
	// Resolver looks up the message named in a [Converter.ConvertMessage]
	// call. Use [NewResolver] to build one from an [Extraction]'s
	// descriptor set.
	Resolver Resolver
	// InputFormat handles unmarshaling the captured bytes. This is normally
	// [BinaryInputFormat].
	InputFormat InputFormat
	// OutputFormat handles marshaling to bytes in the desired output format,
	// e.g. [JSONOutputFormat] or [TextOutputFormat].
	OutputFormat OutputFormat
}

// ConvertMessage decodes inputData as the message with the given
// fully-qualified name and renders it in the output format.
func (c *Converter) ConvertMessage(messageName string, inputData []byte) ([]byte, error) {
	md, err := c.Resolver.FindMessageByName(protoreflect.FullName(messageName))
	if err != nil {
		return nil, errors.Wrapf(err, "message_name '%s' is not found in recovered schemas", messageName)
	}
	msg := dynamicpb.NewMessage(md.Descriptor())
	if err := c.InputFormat.WithResolver(c.Resolver).Unmarshal(inputData, msg); err != nil {
		return nil, fmt.Errorf("input_data cannot be unmarshaled to %s: %w", messageName, err)
	}
	data, err := c.OutputFormat.WithResolver(c.Resolver).Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s cannot be marshaled", messageName)
	}
	return data, nil
}
