// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

// HiddenText stands in for matched text unless matches are shown
const HiddenText = "[HIDDEN]"

// FormatterOptions controls rendering
type FormatterOptions struct {
	ShowMatch bool // print matched text instead of HiddenText
	NoColor   bool
	Verbose   bool // include clean files and per-candidate failures
}

// Formatter renders a summary
type Formatter interface {
	Format(w io.Writer, s *Summary, opts FormatterOptions) error

	// Name returns the name of the formatter (e.g., "json", "text", "csv")
	Name() string

	// FileExtension returns the recommended file extension for this format
	FileExtension() string
}

// Registry holds formatters by name
type Registry struct {
	formatters map[string]Formatter
}

// NewRegistry creates a registry with the built-in formatters
func NewRegistry() *Registry {
	r := &Registry{formatters: make(map[string]Formatter)}
	r.Register(NewTextFormatter())
	r.Register(JSONFormatter{})
	r.Register(YAMLFormatter{})
	r.Register(CSVFormatter{})
	return r
}

// Register adds a formatter to the registry
func (r *Registry) Register(f Formatter) {
	r.formatters[f.Name()] = f
}

// Get retrieves a formatter by name
func (r *Registry) Get(name string) (Formatter, error) {
	f, ok := r.formatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported format '%s'. Available formats: %s", name, strings.Join(r.List(), ", "))
	}
	return f, nil
}

// List returns the registered names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColorEnabled reports whether colour output should be used for f
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func displayText(f Finding, opts FormatterOptions) string {
	if opts.ShowMatch {
		return f.Text()
	}
	return HiddenText
}

// document is the shared JSON/YAML structure
type document struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Roots       []string  `json:"roots" yaml:"roots"`
	Mode        string    `json:"mode" yaml:"mode"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	DurationMs  int64     `json:"duration_ms" yaml:"duration_ms"`
	Interrupted bool      `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Totals      totals    `json:"totals" yaml:"totals"`
	Files       []fileDoc `json:"files" yaml:"files"`
}

type totals struct {
	Files           int `json:"files" yaml:"files"`
	Redacted        int `json:"redacted" yaml:"redacted"`
	Flagged         int `json:"flagged" yaml:"flagged"`
	Clean           int `json:"clean" yaml:"clean"`
	Skipped         int `json:"skipped" yaml:"skipped"`
	Failed          int `json:"failed" yaml:"failed"`
	Candidates      int `json:"candidates" yaml:"candidates"`
	Confirmed       int `json:"confirmed" yaml:"confirmed"`
	Rejected        int `json:"rejected" yaml:"rejected"`
	Suppressed      int `json:"suppressed" yaml:"suppressed"`
	FailOpen        int `json:"fail_open" yaml:"fail_open"`
	AlreadyRedacted int `json:"already_redacted" yaml:"already_redacted"`
}

type fileDoc struct {
	Path            string       `json:"path" yaml:"path"`
	Type            string       `json:"type" yaml:"type"`
	Status          Status       `json:"status" yaml:"status"`
	Output          string       `json:"output,omitempty" yaml:"output,omitempty"`
	FaultKind       string       `json:"fault_kind,omitempty" yaml:"fault_kind,omitempty"`
	Fault           string       `json:"fault,omitempty" yaml:"fault,omitempty"`
	Candidates      int          `json:"candidates" yaml:"candidates"`
	Confirmed       int          `json:"confirmed" yaml:"confirmed"`
	Rejected        int          `json:"rejected" yaml:"rejected"`
	Suppressed      int          `json:"suppressed,omitempty" yaml:"suppressed,omitempty"`
	FailOpen        int          `json:"fail_open" yaml:"fail_open"`
	AlreadyRedacted int          `json:"already_redacted,omitempty" yaml:"already_redacted,omitempty"`
	DurationMs      int64        `json:"duration_ms" yaml:"duration_ms"`
	Findings        []findingDoc `json:"findings,omitempty" yaml:"findings,omitempty"`
	Failures        []string     `json:"recheck_failures,omitempty" yaml:"recheck_failures,omitempty"`
}

type findingDoc struct {
	Finding `yaml:",inline"`
	Match   string `json:"match" yaml:"match"`
}

func buildDocument(s *Summary, opts FormatterOptions) document {
	doc := document{
		RunID:       s.RunID,
		Roots:       s.Roots,
		Mode:        s.Mode,
		StartedAt:   s.StartedAt.UTC(),
		DurationMs:  s.Duration().Milliseconds(),
		Interrupted: s.Interrupted,
		Totals: totals{
			Files: s.Files, Redacted: s.Redacted, Flagged: s.Flagged, Clean: s.Clean,
			Skipped: s.Skipped, Failed: s.Failed, Candidates: s.Candidates,
			Confirmed: s.Confirmed, Rejected: s.Rejected, Suppressed: s.Suppressed, FailOpen: s.FailOpen,
			AlreadyRedacted: s.AlreadyRedacted,
		},
		Files: make([]fileDoc, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		fd := fileDoc{
			Path:            r.Target.Path,
			Type:            r.Target.Type.String(),
			Status:          r.Status,
			Output:          r.OutputPath,
			Candidates:      r.Candidates,
			Confirmed:       r.Confirmed,
			Rejected:        r.Rejected,
			Suppressed:      r.Suppressed,
			FailOpen:        r.FailOpen,
			AlreadyRedacted: r.AlreadyRedacted,
			DurationMs:      r.Duration.Milliseconds(),
			Failures:        r.Failures,
		}
		if r.Fault != nil {
			fd.FaultKind = r.FaultKind().String()
			fd.Fault = r.Fault.Error()
		}
		for _, f := range r.Findings {
			fd.Findings = append(fd.Findings, findingDoc{Finding: f, Match: displayText(f, opts)})
		}
		doc.Files = append(doc.Files, fd)
	}
	return doc
}
