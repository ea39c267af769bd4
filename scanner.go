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
)

const (
	// DefaultPackagePrefix is the namespace every recovered package name must
	// start with for a descriptor to be recognized.
	DefaultPackagePrefix = "warp."

	// tailSpan is how far the last descriptor in a binary is assumed to
	// extend, since nothing follows it to bound it.
	tailSpan = 50000
	// maxSpan bounds every descriptor span.
	maxSpan = 200000
)

const (
	nameTag    = 0x0a // field 1, length-delimited
	packageTag = 0x12 // field 2, length-delimited
)

// Block is a span of the input that presumably starts with a serialized
// FileDescriptorProto. End is exclusive.
type Block struct {
	Name    string
	Package string
	Start   int
	End     int
	Data    []byte
}

// FindBlocks locates descriptor candidates in data. A candidate starts where
// a file name field holding "<lowercase>.proto" is immediately followed by a
// package field holding "<packagePrefix><lowercase>.v<digits>". Each span ends
// where the next candidate starts; the last one is assumed to be tailSpan
// bytes long. Spans never exceed maxSpan bytes or the end of data.
func FindBlocks(data []byte, packagePrefix string) []Block {
	var blocks []Block
	for pos := 0; pos < len(data); {
		i := bytes.IndexByte(data[pos:], nameTag)
		if i < 0 {
			break
		}
		start := pos + i
		sig, ok := matchSignature(data, start, packagePrefix)
		if !ok {
			pos = start + 1
			continue
		}
		blocks = append(blocks, Block{
			Name:    string(sig.name),
			Package: string(sig.pkg),
			Start:   start,
		})
		pos = sig.end
	}
	for i := range blocks {
		end := blocks[i].Start + tailSpan
		if i+1 < len(blocks) {
			end = blocks[i+1].Start
		}
		if limit := blocks[i].Start + maxSpan; end > limit {
			end = limit
		}
		if end > len(data) {
			end = len(data)
		}
		blocks[i].End = end
		blocks[i].Data = data[blocks[i].Start:end]
	}
	return blocks
}

type signature struct {
	name, pkg []byte
	end       int
}

// matchSignature matches, at start,
//
//	\x0a [\x08-\x40] [a-z_]+ ".proto" \x12 [\x10-\x30] prefix [a-z_]+ ".v" [0-9]+
//
// The length bytes are only range-checked, they are not required to agree
// with what follows.
func matchSignature(data []byte, start int, prefix string) (signature, bool) {
	pos := start
	if !matchByte(data, pos, nameTag, nameTag) || !matchByte(data, pos+1, 0x08, 0x40) {
		return signature{}, false
	}
	pos += 2
	nameStart := pos
	if pos = skipIdent(data, pos); pos == nameStart {
		return signature{}, false
	}
	if !hasPrefixAt(data, pos, ".proto") {
		return signature{}, false
	}
	pos += len(".proto")
	nameEnd := pos
	if !matchByte(data, pos, packageTag, packageTag) || !matchByte(data, pos+1, 0x10, 0x30) {
		return signature{}, false
	}
	pos += 2
	pkgStart := pos
	if !hasPrefixAt(data, pos, prefix) {
		return signature{}, false
	}
	pos += len(prefix)
	segStart := pos
	if pos = skipIdent(data, pos); pos == segStart {
		return signature{}, false
	}
	if !hasPrefixAt(data, pos, ".v") {
		return signature{}, false
	}
	pos += len(".v")
	digitsStart := pos
	for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
		pos++
	}
	if pos == digitsStart {
		return signature{}, false
	}
	return signature{
		name: data[nameStart:nameEnd],
		pkg:  data[pkgStart:pos],
		end:  pos,
	}, true
}

func matchByte(data []byte, pos int, lo, hi byte) bool {
	return pos < len(data) && data[pos] >= lo && data[pos] <= hi
}

// skipIdent returns the position after the run of [a-z_] at pos.
func skipIdent(data []byte, pos int) int {
	for pos < len(data) && (data[pos] >= 'a' && data[pos] <= 'z' || data[pos] == '_') {
		pos++
	}
	return pos
}

func hasPrefixAt(data []byte, pos int, prefix string) bool {
	return pos <= len(data) && bytes.HasPrefix(data[pos:], []byte(prefix))
}
