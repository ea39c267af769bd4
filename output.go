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
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// Names of the files written next to the recovered schemas.
const (
	ReportFileName      = "extraction_report.json"
	SummaryFileName     = "README.md"
	DescriptorsFileName = "descriptors.binpb"
)

// WriteOutputs writes one schema file per recovered descriptor into dir,
// followed by the JSON report, the Markdown summary and the recovered
// descriptor set. dir is created if needed.
func WriteOutputs(dir string, ex *Extraction, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %s", dir)
	}
	for _, r := range ex.Succeeded() {
		if err := writeFile(dir, r.Block.Name, []byte(r.Schema)); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		return errors.Wrap(err, "encoding report")
	}
	if err := writeFile(dir, ReportFileName, buf.Bytes()); err != nil {
		return err
	}
	buf.Reset()
	if err := report.WriteSummary(&buf); err != nil {
		return errors.Wrap(err, "rendering summary")
	}
	if err := writeFile(dir, SummaryFileName, buf.Bytes()); err != nil {
		return err
	}
	set, err := proto.MarshalOptions{Deterministic: true}.Marshal(ex.DescriptorSet())
	if err != nil {
		return errors.Wrap(err, "encoding descriptor set")
	}
	return writeFile(dir, DescriptorsFileName, set)
}

func writeFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
