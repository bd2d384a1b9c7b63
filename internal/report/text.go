// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

const (
	maxMatchWidth = 30
	minMatchWidth = len(HiddenText)
)

// TextFormatter renders a columnar, optionally coloured report for terminals
type TextFormatter struct {
	colors map[string]*color.Color
}

// NewTextFormatter creates a text formatter
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		colors: map[string]*color.Color{
			"green":   color.New(color.FgGreen),
			"yellow":  color.New(color.FgYellow),
			"red":     color.New(color.FgRed),
			"cyan":    color.New(color.FgCyan),
			"magenta": color.New(color.FgMagenta),
			"blue":    color.New(color.FgBlue),
			"white":   color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *TextFormatter) Name() string          { return "text" }
func (f *TextFormatter) FileExtension() string { return ".txt" }

func (f *TextFormatter) paint(name string, opts FormatterOptions, format string, a ...any) string {
	s := fmt.Sprintf(format, a...)
	if opts.NoColor {
		return s
	}
	c := *f.colors[name]
	c.EnableColor()
	return c.Sprint(s)
}

func (f *TextFormatter) statusColor(s Status) string {
	switch s {
	case StatusRedacted, StatusFlagged:
		return "red"
	case StatusSkipped:
		return "yellow"
	case StatusFailed:
		return "magenta"
	default:
		return "green"
	}
}

// cell fits s into exactly width terminal columns
func cell(s string, width int) string {
	s = strings.NewReplacer("\n", " ", "\t", " ", "\r", " ").Replace(s)
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

func matchWidth(s *Summary, opts FormatterOptions) int {
	width := minMatchWidth
	if !opts.ShowMatch {
		return width
	}
	for _, r := range s.Results {
		for _, fd := range r.Findings {
			if w := runewidth.StringWidth(fd.Text()); w > width {
				width = w
			}
		}
	}
	if width > maxMatchWidth {
		width = maxMatchWidth
	}
	return width
}

// Format implements Formatter
func (f *TextFormatter) Format(w io.Writer, s *Summary, opts FormatterOptions) error {
	var b strings.Builder
	mw := matchWidth(s, opts)

	rows := 0
	for _, r := range s.Results {
		if len(r.Findings) == 0 && r.Fault == nil && !opts.Verbose {
			continue
		}
		if rows == 0 {
			header := fmt.Sprintf("%-10s %-16s %-10s %-6s %-28s %s %s",
				"STATUS", "CATEGORY", "VERDICT", "CONF", "LOCATION", cell("MATCH", mw), "FILE")
			b.WriteString(f.paint("white", opts, "%s", header))
			b.WriteString("\n")
			b.WriteString(strings.Repeat("-", runewidth.StringWidth(header)+10))
			b.WriteString("\n")
		}
		rows++
		status := f.paint(f.statusColor(r.Status), opts, "%-10s", strings.ToUpper(string(r.Status)))
		if len(r.Findings) == 0 {
			detail := ""
			if r.Fault != nil {
				detail = r.Fault.Error()
			}
			fmt.Fprintf(&b, "%s %s %s\n", status, r.Target.Path, f.paint("yellow", opts, "%s", detail))
			continue
		}
		for _, fd := range r.Findings {
			fmt.Fprintf(&b, "%s %s %s %s %s %s %s\n",
				status,
				f.paint("cyan", opts, "%s", cell(fd.Category, 16)),
				cell(fd.Verdict, 10),
				f.paint("blue", opts, "%5.0f%%", fd.Confidence*100),
				cell(fd.Location, 28),
				cell(displayText(fd, opts), mw),
				r.Target.Path)
		}
		if opts.Verbose {
			for _, failure := range r.Failures {
				fmt.Fprintf(&b, "%10s %s\n", "", f.paint("yellow", opts, "recheck: %s", failure))
			}
		}
	}
	if rows == 0 {
		b.WriteString("No sensitive data found.\n")
	}

	b.WriteString("\n")
	b.WriteString(f.paint("white", opts, "Run %s", s.RunID))
	fmt.Fprintf(&b, " (%s mode, %s)\n", s.Mode, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "  files %d: %s redacted, %s flagged, %s clean, %s skipped, %s failed\n",
		s.Files,
		f.paint("red", opts, "%d", s.Redacted),
		f.paint("red", opts, "%d", s.Flagged),
		f.paint("green", opts, "%d", s.Clean),
		f.paint("yellow", opts, "%d", s.Skipped),
		f.paint("magenta", opts, "%d", s.Failed))
	fmt.Fprintf(&b, "  candidates %d: %d confirmed, %d rejected, %d fail-open, %d already redacted\n",
		s.Candidates, s.Confirmed, s.Rejected, s.FailOpen, s.AlreadyRedacted)
	if s.Suppressed > 0 {
		fmt.Fprintf(&b, "  %d rejected by suppression rules\n", s.Suppressed)
	}
	if s.Interrupted {
		b.WriteString(f.paint("yellow", opts, "  interrupted before all files were processed\n"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
