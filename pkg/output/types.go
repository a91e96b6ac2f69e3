// Package output renders run reports and writes record snapshots.
package output

import (
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/logsift/pkg/pipeline"
	"github.com/ccollicutt/logsift/pkg/store"
)

// Report is the complete ingest output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// ParseFailures lists every line that did not parse.
	ParseFailures []LineFailure `json:"parse_failures,omitempty"`

	// PersistFailures lists every record that could not be stored.
	PersistFailures []RowFailure `json:"persist_failures,omitempty"`

	// Charts are the image files written.
	Charts []string `json:"charts,omitempty"`

	// Snapshots are the CSV files written.
	Snapshots []string `json:"snapshots,omitempty"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	LinesRead       int  `json:"lines_read"`
	Parsed          int  `json:"parsed"`
	ParseFailures   int  `json:"parse_failures"`
	Duplicates      int  `json:"duplicates"`
	Missing         int  `json:"missing"`
	Clean           int  `json:"clean"`
	Persisted       int  `json:"persisted"`
	PersistFailures int  `json:"persist_failures"`
	DatabaseSkipped bool `json:"database_skipped"`
}

// LineFailure is a line that did not match the access-log grammar.
type LineFailure struct {
	Source  string `json:"source,omitempty"`
	LineNum int    `json:"line_num,omitempty"`
	Reason  string `json:"reason"`
	Line    string `json:"line"`
}

// RowFailure is a clean record the database rejected.
type RowFailure struct {
	Index     int    `json:"index"`
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Error     string `json:"error"`
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID identifies this run in logs, reports and webhooks.
	RunID string `json:"run_id"`

	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the log files that were read.
	Sources []string `json:"sources"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewReport creates a Report from a pipeline result. An empty runID gets a
// fresh one.
func NewReport(result *pipeline.Result, runID, configFile string, startedAt time.Time) *Report {
	if runID == "" {
		runID = NewRunID()
	}

	report := &Report{
		Summary: Summary{
			LinesRead:       result.Stats.LinesRead,
			Parsed:          result.Stats.Parsed,
			ParseFailures:   result.Stats.Failed,
			Duplicates:      result.Stats.Duplicates,
			Missing:         result.Stats.Missing,
			Clean:           result.Stats.Clean,
			DatabaseSkipped: true,
		},
		Metadata: Metadata{
			RunID:      runID,
			ConfigFile: configFile,
			Sources:    result.Sources,
			StartedAt:  startedAt,
			Duration:   result.Stats.Duration,
		},
	}

	for _, f := range result.Failures {
		report.ParseFailures = append(report.ParseFailures, LineFailure{
			Source:  f.Source,
			LineNum: f.LineNum,
			Reason:  f.Reason,
			Line:    f.Line,
		})
	}

	return report
}

// AddSaveResult records the outcome of storing the clean records.
func (r *Report) AddSaveResult(res *store.SaveResult) {
	if res == nil {
		return
	}
	r.Summary.DatabaseSkipped = false
	r.Summary.Persisted = res.Inserted
	r.Summary.PersistFailures = len(res.Failed)
	for _, f := range res.Failed {
		r.PersistFailures = append(r.PersistFailures, RowFailure{
			Index:     f.Index,
			IP:        f.Record.IP,
			Timestamp: f.Record.Timestamp,
			URL:       f.Record.URL,
			Error:     f.Err.Error(),
		})
	}
}

// Finish stamps the total duration.
func (r *Report) Finish(end time.Time) {
	r.Metadata.Duration = end.Sub(r.Metadata.StartedAt)
}

// HasIssues returns true if any line failed to parse or any row failed to
// persist.
func (r *Report) HasIssues() bool {
	return r.Summary.ParseFailures > 0 || r.Summary.PersistFailures > 0
}
