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
	"bytes"
	"sort"
	"strings"
)

// DefaultTypeNamePrefix is the fully-qualified scope whose type names are
// mined from the raw binary.
const DefaultTypeNamePrefix = "warp.multi_agent.v1."

// markerSuffixes are trailing letters that the encoder appears to glue onto
// type names in the symbol data. This was observed, not derived; it may not
// hold for other binaries.
const markerSuffixes = "RHB"

// MineTypeNames scans data for prefix followed by a capitalized identifier
// and returns the sorted set of names found. The result is a fuzzy superset
// meant for cross-checking decoded descriptors, not an authoritative list.
func MineTypeNames(data []byte, prefix string) []string {
	if prefix == "" {
		return nil
	}
	needle := []byte(prefix)
	names := map[string]struct{}{}
	for pos := 0; pos < len(data); {
		i := bytes.Index(data[pos:], needle)
		if i < 0 {
			break
		}
		start := pos + i + len(needle)
		end := scanTypeName(data, start)
		if end < 0 {
			pos = pos + i + 1
			continue
		}
		if name, ok := normalizeTypeName(string(data[start:end])); ok {
			names[name] = struct{}{}
		}
		pos = end
	}
	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// scanTypeName matches [A-Z][a-zA-Z0-9]+ at pos and returns its end, or -1.
func scanTypeName(data []byte, pos int) int {
	if pos >= len(data) || !isUpper(data[pos]) {
		return -1
	}
	end := pos + 1
	for end < len(data) && isAlnum(data[end]) {
		end++
	}
	if end == pos+1 {
		return -1
	}
	return end
}

func normalizeTypeName(name string) (string, bool) {
	if len(name) > 1 && !strings.ContainsAny(name[len(name)-1:], markerSuffixes) {
		return name, true
	}
	if len(name) > 2 {
		base := name[:len(name)-1]
		if isUpper(base[0]) {
			return base, true
		}
	}
	return "", false
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isAlnum(b byte) bool {
	return isUpper(b) || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
