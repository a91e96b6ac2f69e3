// Package normalizer turns parsed access-log records into a clean,
// deduplicated record set with no missing fields.
package normalizer

import (
	"fmt"

	"github.com/ccollicutt/logsift/pkg/parser"
)

// DefaultSentinels are the raw values that stand for "field not present".
var DefaultSentinels = []string{"NULL", "-"}

// Field is a record value after sentinel detection.
type Field struct {
	Value   string
	Missing bool
}

// Present returns a field holding v.
func Present(v string) Field {
	return Field{Value: v}
}

// MissingField is the explicit marker for an absent value.
var MissingField = Field{Missing: true}

// FieldNames lists the record fields in storage order.
var FieldNames = []string{"ip", "timestamp", "method", "url", "status", "size", "query_params"}

// CleanRecord is a deduplicated, fully populated log entry with its query
// parameters serialized to canonical JSON.
type CleanRecord struct {
	IP          string `json:"ip"`
	Timestamp   string `json:"timestamp"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	Size        string `json:"size"`
	QueryParams string `json:"query_params"`
}

// Values returns the fields in FieldNames order.
func (r CleanRecord) Values() []string {
	k := r.key()
	return k[:]
}

func (r CleanRecord) key() recordKey {
	return recordKey{r.IP, r.Timestamp, r.Method, r.URL, r.Status, r.Size, r.QueryParams}
}

// Parsed re-wraps the record as a ParsedRecord with identical field values,
// decoding the serialized query parameters in their original order. Query
// values that held invalid UTF-8 come back with U+FFFD in its place.
func (r CleanRecord) Parsed() (parser.ParsedRecord, error) {
	params, err := DecodeQuery(r.QueryParams)
	if err != nil {
		return parser.ParsedRecord{}, fmt.Errorf("record %s %s: %w", r.Timestamp, r.URL, err)
	}
	return parser.ParsedRecord{
		IP:          r.IP,
		Timestamp:   r.Timestamp,
		Method:      r.Method,
		URL:         r.URL,
		Status:      r.Status,
		Size:        r.Size,
		QueryParams: params,
	}, nil
}

// recordKey is the 7-field identity used for deduplication.
type recordKey [7]string

// Outcome tells what happened to a record fed to the Normalizer.
type Outcome string

const (
	OutcomeKept      Outcome = "kept"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMissing   Outcome = "missing"
)

// Stats counts records through the normalizer.
type Stats struct {
	// Input is the number of records fed in.
	Input int `json:"input"`

	// Duplicates were dropped because an identical record came first.
	Duplicates int `json:"duplicates"`

	// Missing were dropped because at least one field held a sentinel.
	Missing int `json:"missing"`

	// Output is the number of clean records.
	Output int `json:"output"`
}
