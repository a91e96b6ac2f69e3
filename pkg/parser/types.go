// Package parser turns raw access-log lines into structured records.
package parser

import "fmt"

// LogLine is a raw log line as read from a source, before parsing.
type LogLine struct {
	// Content is the raw line text without the trailing newline.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int

	// Truncated is set when the line was longer than MaxLineSize. Content
	// then holds only the start of the line.
	Truncated bool
}

// Failure returns the ParseFailure for a line that cannot be parsed before
// it reaches a LineParser, or nil.
func (l *LogLine) Failure() *ParseFailure {
	if !l.Truncated {
		return nil
	}
	return &ParseFailure{Line: l.Content, Reason: ReasonLineTooLong, Source: l.Source, LineNum: l.LineNum}
}

// Param is a single key/value pair decoded from a query string.
type Param struct {
	Key   string
	Value string
}

// QueryParams is an ordered mapping of query-string keys to values.
// Keys are unique; order is the order in which each key was first seen.
type QueryParams []Param

// Get returns the value for key and whether it was present.
func (q QueryParams) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Set stores value under key. An existing key keeps its position and takes
// the new value, so repeated keys resolve to the last one seen.
func (q QueryParams) Set(key, value string) QueryParams {
	for i := range q {
		if q[i].Key == key {
			q[i].Value = value
			return q
		}
	}
	return append(q, Param{Key: key, Value: value})
}

// Len returns the number of distinct keys.
func (q QueryParams) Len() int {
	return len(q)
}

// ParsedRecord is one access-log line broken into its fields.
type ParsedRecord struct {
	IP          string
	Timestamp   string
	Method      string
	URL         string
	Status      string
	Size        string
	QueryParams QueryParams
}

// ParseFailure reports a line that could not be turned into a record.
// It carries the offending raw line so callers can report it and move on.
type ParseFailure struct {
	// Line is the raw line that failed to parse.
	Line string

	// Reason describes why the line was rejected.
	Reason string

	// Source and LineNum locate the line when it came from a file.
	Source  string
	LineNum int
}

// Error formats the failure with its location when known.
func (f *ParseFailure) Error() string {
	if f.Source != "" {
		return fmt.Sprintf("%s:%d: %s: %q", f.Source, f.LineNum, f.Reason, f.Line)
	}
	return fmt.Sprintf("%s: %q", f.Reason, f.Line)
}
