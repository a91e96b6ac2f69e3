package parser

import (
	"regexp"
	"strings"
)

// LinePattern is the access-log grammar. It is anchored at the start of the
// line only; anything after the size field is ignored.
const LinePattern = `^(?P<ip>\d+\.\d+\.\d+\.\d+|NULL) - - \[(?P<timestamp>[^\]]+)\] "(?P<method>\w+) (?P<url>\S+) HTTP/1\.1" (?P<status>\d+) (?P<size>\d+|-)`

var lineRegexp = regexp.MustCompile(LinePattern)

// Capture group indexes into lineRegexp submatches.
var (
	groupIP        = lineRegexp.SubexpIndex("ip")
	groupTimestamp = lineRegexp.SubexpIndex("timestamp")
	groupMethod    = lineRegexp.SubexpIndex("method")
	groupURL       = lineRegexp.SubexpIndex("url")
	groupStatus    = lineRegexp.SubexpIndex("status")
	groupSize      = lineRegexp.SubexpIndex("size")
)

// ReasonNoMatch is the failure reason for lines that do not fit the grammar.
const ReasonNoMatch = "line does not match access log format"

// ReasonLineTooLong is the failure reason for lines over MaxLineSize.
const ReasonLineTooLong = "line exceeds 1 MiB"

// LineParser parses single access-log lines. It holds no mutable state and
// is safe for concurrent use.
type LineParser struct {
	policy QueryPolicy
}

// Option configures a LineParser.
type Option func(*LineParser)

// WithQueryPolicy sets how query segments without '=' are handled.
func WithQueryPolicy(p QueryPolicy) Option {
	return func(lp *LineParser) {
		if p != "" {
			lp.policy = p
		}
	}
}

// NewLineParser creates a LineParser. The default query policy is
// QueryPolicyEmpty.
func NewLineParser(opts ...Option) *LineParser {
	lp := &LineParser{policy: QueryPolicyEmpty}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// Policy returns the query policy in effect.
func (p *LineParser) Policy() QueryPolicy {
	return p.policy
}

// Parse converts one raw line into a record. On failure the returned error
// is always a *ParseFailure holding the raw line.
func (p *LineParser) Parse(line string) (*ParsedRecord, error) {
	trimmed := strings.TrimRight(line, "\r\n")

	m := lineRegexp.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &ParseFailure{Line: trimmed, Reason: ReasonNoMatch}
	}

	url := m[groupURL]
	params, err := ParseQuery(url, p.policy)
	if err != nil {
		return nil, &ParseFailure{Line: trimmed, Reason: err.Error()}
	}

	return &ParsedRecord{
		IP:          m[groupIP],
		Timestamp:   m[groupTimestamp],
		Method:      m[groupMethod],
		URL:         url,
		Status:      m[groupStatus],
		Size:        m[groupSize],
		QueryParams: params,
	}, nil
}

var defaultParser = NewLineParser()

// Parse parses a line with the default LineParser.
func Parse(line string) (*ParsedRecord, error) {
	return defaultParser.Parse(line)
}

// Matches reports whether line fits the access-log grammar, ignoring the
// query string.
func Matches(line string) bool {
	return lineRegexp.MatchString(strings.TrimRight(line, "\r\n"))
}
