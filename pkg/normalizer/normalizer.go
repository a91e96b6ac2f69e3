package normalizer

import "github.com/ccollicutt/logsift/pkg/parser"

// Normalizer cleans records one at a time, keeping a running set of seen
// record identities. Feeding records incrementally with Add gives the same
// result as Normalize on the whole batch. Not safe for concurrent use.
type Normalizer struct {
	sentinels map[string]bool
	seen      map[recordKey]struct{}
	records   []CleanRecord
	stats     Stats
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSentinels replaces the sentinel set. An empty list keeps the default.
func WithSentinels(values ...string) Option {
	return func(n *Normalizer) {
		if len(values) == 0 {
			return
		}
		n.sentinels = make(map[string]bool, len(values))
		for _, v := range values {
			n.sentinels[v] = true
		}
	}
}

// New creates a Normalizer using DefaultSentinels unless overridden.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		seen: make(map[recordKey]struct{}),
	}
	WithSentinels(DefaultSentinels...)(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Add runs one record through canonicalization, deduplication, sentinel
// substitution and row filtering, and reports what happened to it.
func (n *Normalizer) Add(rec parser.ParsedRecord) Outcome {
	n.stats.Input++

	key := recordKey{
		rec.IP,
		rec.Timestamp,
		rec.Method,
		rec.URL,
		rec.Status,
		rec.Size,
		EncodeQuery(rec.QueryParams),
	}

	if _, dup := n.seen[key]; dup {
		n.stats.Duplicates++
		return OutcomeDuplicate
	}
	n.seen[key] = struct{}{}

	fields := n.fields(key)
	for _, f := range fields {
		if f.Missing {
			n.stats.Missing++
			return OutcomeMissing
		}
	}

	n.records = append(n.records, CleanRecord{
		IP:          fields[0].Value,
		Timestamp:   fields[1].Value,
		Method:      fields[2].Value,
		URL:         fields[3].Value,
		Status:      fields[4].Value,
		Size:        fields[5].Value,
		QueryParams: fields[6].Value,
	})
	n.stats.Output++
	return OutcomeKept
}

// Field classifies a raw value: empty strings and exact sentinel matches
// are missing, everything else is present.
func (n *Normalizer) Field(v string) Field {
	if v == "" || n.sentinels[v] {
		return MissingField
	}
	return Present(v)
}

func (n *Normalizer) fields(k recordKey) [7]Field {
	var out [7]Field
	for i, v := range k {
		out[i] = n.Field(v)
	}
	return out
}

// Records returns the clean records so far, in first-seen order.
func (n *Normalizer) Records() []CleanRecord {
	out := make([]CleanRecord, len(n.records))
	copy(out, n.records)
	return out
}

// Stats returns the running counters.
func (n *Normalizer) Stats() Stats {
	return n.stats
}

// Normalize cleans a whole batch. The input is not modified.
func Normalize(records []parser.ParsedRecord, opts ...Option) []CleanRecord {
	n := New(opts...)
	for _, rec := range records {
		n.Add(rec)
	}
	return n.Records()
}
