// Package pipeline sequences the read, parse and normalize stages over a log
// source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ccollicutt/logsift/pkg/logging"
	"github.com/ccollicutt/logsift/pkg/metrics"
	"github.com/ccollicutt/logsift/pkg/normalizer"
	"github.com/ccollicutt/logsift/pkg/parser"
)

// Runner reads a log source, parses every line and normalizes the results.
type Runner struct {
	parser     *parser.LineParser
	normOpts   []normalizer.Option
	logger     logging.Logger
	metrics    *metrics.Metrics
	keepParsed bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithQueryPolicy sets the policy for query segments without '='.
func WithQueryPolicy(p parser.QueryPolicy) RunnerOption {
	return func(r *Runner) {
		r.parser = parser.NewLineParser(parser.WithQueryPolicy(p))
	}
}

// WithSentinels overrides the values treated as missing.
func WithSentinels(values ...string) RunnerOption {
	return func(r *Runner) {
		r.normOpts = append(r.normOpts, normalizer.WithSentinels(values...))
	}
}

// WithLogger sets the logger used to report parse failures.
func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the counters updated per stage.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithParsedRecords keeps every parsed record in the Result, which is needed
// for the first-stage snapshot.
func WithParsedRecords(keep bool) RunnerOption {
	return func(r *Runner) {
		r.keepParsed = keep
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		parser: parser.NewLineParser(),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats summarizes one run.
type Stats struct {
	LinesRead  int           `json:"lines_read"`
	Parsed     int           `json:"parsed"`
	Failed     int           `json:"failed"`
	Duplicates int           `json:"duplicates"`
	Missing    int           `json:"missing"`
	Clean      int           `json:"clean"`
	Duration   time.Duration `json:"duration"`
}

// Result is the output of a run.
type Result struct {
	// Parsed holds every record that matched the grammar, in input order.
	// It is only populated when WithParsedRecords(true) is set.
	Parsed []parser.ParsedRecord

	// Clean is the normalized record set.
	Clean []normalizer.CleanRecord

	// Failures are the lines that did not parse.
	Failures []*parser.ParseFailure

	// Sources lists the files lines were read from, in first-seen order.
	Sources []string

	Stats Stats
}

// Run drains source through the parse and normalize stages. Parse failures
// are logged and collected; only source errors and cancellation abort.
func (r *Runner) Run(ctx context.Context, source parser.LogSource) (*Result, error) {
	start := time.Now()
	norm := normalizer.New(r.normOpts...)
	result := &Result{}
	seen := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading log source: %w", err)
		}

		result.Stats.LinesRead++
		r.metrics.LineRead()
		if line.Source != "" && !seen[line.Source] {
			seen[line.Source] = true
			result.Sources = append(result.Sources, line.Source)
		}

		var rec *parser.ParsedRecord
		failure := line.Failure()
		if failure == nil {
			rec, err = r.parser.Parse(line.Content)
			if err != nil && !errors.As(err, &failure) {
				failure = &parser.ParseFailure{Line: line.Content, Reason: err.Error()}
			}
		}
		if failure != nil {
			failure.Source = line.Source
			failure.LineNum = line.LineNum
			result.Failures = append(result.Failures, failure)
			result.Stats.Failed++
			r.metrics.ParseFailed()

			r.logger.Warn("failed to parse line",
				logging.String("source", failure.Source),
				logging.Int("line_num", failure.LineNum),
				logging.String("reason", failure.Reason),
				logging.String("line", failure.Line),
			)
			continue
		}

		result.Stats.Parsed++
		r.metrics.RecordParsed()
		if r.keepParsed {
			result.Parsed = append(result.Parsed, *rec)
		}
		norm.Add(*rec)
	}

	ns := norm.Stats()
	result.Clean = norm.Records()
	result.Stats.Duplicates = ns.Duplicates
	result.Stats.Missing = ns.Missing
	result.Stats.Clean = ns.Output
	result.Stats.Duration = time.Since(start)

	r.metrics.Normalized(ns.Duplicates, ns.Missing, ns.Output)
	r.metrics.ObserveDuration(result.Stats.Duration)

	r.logger.Info("pipeline finished",
		logging.Int("lines_read", result.Stats.LinesRead),
		logging.Int("parsed", result.Stats.Parsed),
		logging.Int("failed", result.Stats.Failed),
		logging.Int("duplicates", result.Stats.Duplicates),
		logging.Int("missing", result.Stats.Missing),
		logging.Int("clean", result.Stats.Clean),
	)

	return result, nil
}
