package output

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// maxListed caps failure lists in non-verbose text output.
const maxListed = 5

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions

	heading *color.Color
	good    *color.Color
	bad     *color.Color
	dim     *color.Color
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	f := &TextFormatter{
		opts:    opts,
		heading: color.New(color.Bold, color.FgCyan),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{f.heading, f.good, f.bad, f.dim} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	s := report.Summary
	_, err := fmt.Fprintf(w, "logsift: %d lines, %d clean, %d parse failures, %d persist failures\n",
		s.LinesRead, s.Clean, s.ParseFailures, s.PersistFailures)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	s := report.Summary

	f.heading.Fprintln(w, "=== logsift Ingest Report ===")
	fmt.Fprintln(w)

	f.heading.Fprintln(w, "[PARSE]")
	fmt.Fprintf(w, "  Lines read:      %d\n", s.LinesRead)
	fmt.Fprintf(w, "  Parsed:          %d\n", s.Parsed)
	f.countLine(w, "  Failed:          %d\n", s.ParseFailures)
	f.formatLineFailures(report.ParseFailures, w)
	fmt.Fprintln(w)

	f.heading.Fprintln(w, "[NORMALIZE]")
	fmt.Fprintf(w, "  Duplicates:      %d\n", s.Duplicates)
	fmt.Fprintf(w, "  Missing fields:  %d\n", s.Missing)
	f.good.Fprintf(w, "  Clean records:   %d\n", s.Clean)
	fmt.Fprintln(w)

	f.heading.Fprintln(w, "[STORE]")
	if s.DatabaseSkipped {
		f.dim.Fprintln(w, "  Skipped")
	} else {
		fmt.Fprintf(w, "  Inserted:        %d\n", s.Persisted)
		f.countLine(w, "  Failed:          %d\n", s.PersistFailures)
		f.formatRowFailures(report.PersistFailures, w)
	}
	fmt.Fprintln(w)

	if len(report.Snapshots) > 0 || len(report.Charts) > 0 {
		f.heading.Fprintln(w, "[FILES]")
		for _, p := range report.Snapshots {
			fmt.Fprintf(w, "  %s\n", p)
		}
		for _, p := range report.Charts {
			fmt.Fprintf(w, "  %s\n", p)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	if report.HasIssues() {
		f.bad.Fprintf(w, "Summary: %d clean records, %d issue(s)\n", s.Clean, s.ParseFailures+s.PersistFailures)
	} else {
		f.good.Fprintf(w, "Summary: %d clean records, no issues\n", s.Clean)
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Run ID: %s\n", report.Metadata.RunID)
		fmt.Fprintf(w, "Sources: %d\n", len(report.Metadata.Sources))
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) countLine(w io.Writer, format string, n int) {
	if n > 0 {
		f.bad.Fprintf(w, format, n)
		return
	}
	fmt.Fprintf(w, format, n)
}

func (f *TextFormatter) formatLineFailures(failures []LineFailure, w io.Writer) {
	for i, lf := range failures {
		if !f.opts.Verbose && i == maxListed {
			f.dim.Fprintf(w, "    ... %d more (use --verbose)\n", len(failures)-maxListed)
			return
		}
		if lf.Source != "" {
			fmt.Fprintf(w, "    - %s:%d: %s\n", lf.Source, lf.LineNum, lf.Reason)
		} else {
			fmt.Fprintf(w, "    - %s\n", lf.Reason)
		}
		if f.opts.Verbose {
			f.dim.Fprintf(w, "      %s\n", lf.Line)
		}
	}
}

func (f *TextFormatter) formatRowFailures(failures []RowFailure, w io.Writer) {
	for i, rf := range failures {
		if !f.opts.Verbose && i == maxListed {
			f.dim.Fprintf(w, "    ... %d more (use --verbose)\n", len(failures)-maxListed)
			return
		}
		fmt.Fprintf(w, "    - row %d %s %s: %s\n", rf.Index, rf.IP, rf.Timestamp, rf.Error)
	}
}
