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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// summaryColumns and summaryColumnWidth lay out mined type names in the
	// summary document.
	summaryColumns     = 3
	summaryColumnWidth = 35
	// summaryDependencies is how many dependencies the summary table lists
	// per file before eliding the rest.
	summaryDependencies = 3
)

// Report is the aggregate result of one extraction, as written to
// extraction_report.json.
type Report struct {
	ExtractedAt       time.Time       `json:"extracted_at"`
	BinaryPath        string          `json:"binary_path"`
	BinarySizeMB      float64         `json:"binary_size_mb"`
	ProtoFiles        []ReportFile    `json:"proto_files"`
	FailedFiles       []ReportFailure `json:"failed_files"`
	MessageTypes      []string        `json:"message_types"`
	TotalMessageTypes int             `json:"total_message_types"`
}

// ReportFile summarizes one recovered file.
type ReportFile struct {
	Name         string   `json:"name"`
	Package      string   `json:"package"`
	Messages     int      `json:"messages"`
	Enums        int      `json:"enums"`
	Dependencies []string `json:"dependencies"`
	// ValidationError is set when the recovered descriptor does not pass
	// protodesc validation. It does not prevent the file from being written.
	ValidationError string `json:"validation_error,omitempty"`
}

// ReportFailure records a span that could not be decoded.
type ReportFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// NewReport summarizes ex, which was extracted from the binary at path.
func NewReport(path string, ex *Extraction) *Report {
	report := &Report{
		ExtractedAt:       ex.ExtractedAt,
		BinaryPath:        path,
		BinarySizeMB:      float64(ex.InputSize) / 1024 / 1024,
		ProtoFiles:        []ReportFile{},
		FailedFiles:       []ReportFailure{},
		MessageTypes:      append([]string{}, ex.TypeNames...),
		TotalMessageTypes: len(ex.TypeNames),
	}
	invalid := ValidateDescriptorSet(ex.DescriptorSet())
	for _, r := range ex.Blocks {
		if r.Err != nil {
			report.FailedFiles = append(report.FailedFiles, ReportFailure{Name: r.Block.Name, Error: r.Err.Error()})
			continue
		}
		file := ReportFile{
			Name:         r.Block.Name,
			Package:      r.File.Package,
			Messages:     len(r.File.Messages),
			Enums:        len(r.File.Enums),
			Dependencies: append([]string{}, r.File.Dependencies...),
		}
		if err := invalid[r.File.Name]; err != nil {
			file.ValidationError = err.Error()
		}
		report.ProtoFiles = append(report.ProtoFiles, file)
	}
	return report
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteSummary writes a Markdown summary of the report.
func (r *Report) WriteSummary(w io.Writer) error {
	var sb strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}
	line("# Recovered Protobuf Definitions")
	line("")
	line("Extracted at: %s", r.ExtractedAt.Format(time.RFC3339))
	line("Binary: `%s`", r.BinaryPath)
	line("Binary size: %.2f MB", r.BinarySizeMB)
	line("")
	line("## Recovered Files")
	line("")
	line("| File | Messages | Enums | Dependencies |")
	line("|------|----------|-------|--------------|")
	for _, pf := range r.ProtoFiles {
		deps := pf.Dependencies
		suffix := ""
		if len(deps) > summaryDependencies {
			deps, suffix = deps[:summaryDependencies], "..."
		}
		line("| `%s` | %d | %d | %s%s |", pf.Name, pf.Messages, pf.Enums, strings.Join(deps, ", "), suffix)
	}
	if len(r.FailedFiles) > 0 {
		line("")
		line("## Failed")
		line("")
		for _, ff := range r.FailedFiles {
			line("- `%s`: %s", ff.Name, ff.Error)
		}
	}
	line("")
	line("## Mined Type Names")
	line("")
	line("Found %d type names:", r.TotalMessageTypes)
	line("")
	line("```")
	for i := 0; i < len(r.MessageTypes); i += summaryColumns {
		end := i + summaryColumns
		if end > len(r.MessageTypes) {
			end = len(r.MessageTypes)
		}
		cells := make([]string, 0, summaryColumns)
		for _, name := range r.MessageTypes[i:end] {
			cells = append(cells, fmt.Sprintf("%-*s", summaryColumnWidth, name))
		}
		line("%s", strings.Join(cells, "  "))
	}
	line("```")
	line("")
	line("## Usage")
	line("")
	line("```bash")
	line("# extract again into a fresh directory")
	line("protorecover %s", r.BinaryPath)
	line("")
	line("# choose the output directory")
	line("protorecover -output ./new_protos %s", r.BinaryPath)
	line("")
	line("# compare with an earlier extraction")
	line("protorecover -compare ./old_protos %s", r.BinaryPath)
	line("```")
	_, err := io.WriteString(w, sb.String())
	return err
}
