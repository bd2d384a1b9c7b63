// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// JSONFormatter renders structured JSON for programmatic consumption
type JSONFormatter struct{}

func (JSONFormatter) Name() string          { return "json" }
func (JSONFormatter) FileExtension() string { return ".json" }

func (JSONFormatter) Format(w io.Writer, s *Summary, opts FormatterOptions) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(buildDocument(s, opts))
}

// YAMLFormatter renders the same structure as JSON, in YAML
type YAMLFormatter struct{}

func (YAMLFormatter) Name() string          { return "yaml" }
func (YAMLFormatter) FileExtension() string { return ".yaml" }

func (YAMLFormatter) Format(w io.Writer, s *Summary, opts FormatterOptions) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(buildDocument(s, opts)); err != nil {
		return fmt.Errorf("encoding yaml report: %w", err)
	}
	return enc.Close()
}

// CSVFormatter writes one row per finding, plus one row for files without findings
type CSVFormatter struct{}

func (CSVFormatter) Name() string          { return "csv" }
func (CSVFormatter) FileExtension() string { return ".csv" }

var csvHeader = []string{"file", "status", "category", "rule", "verdict", "confidence", "location", "fingerprint", "match", "output", "fault"}

func (CSVFormatter) Format(w io.Writer, s *Summary, opts FormatterOptions) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range s.Results {
		fault := ""
		if r.Fault != nil {
			fault = r.Fault.Error()
		}
		if len(r.Findings) == 0 {
			if r.Status == StatusClean && !opts.Verbose {
				continue
			}
			if err := cw.Write([]string{r.Target.Path, string(r.Status), "", "", "", "", "", "", "", r.OutputPath, fault}); err != nil {
				return err
			}
			continue
		}
		for _, f := range r.Findings {
			row := []string{
				r.Target.Path,
				string(r.Status),
				f.Category,
				f.Rule,
				f.Verdict,
				fmt.Sprintf("%.2f", f.Confidence),
				f.Location,
				f.Fingerprint,
				displayText(f, opts),
				r.OutputPath,
				fault,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
