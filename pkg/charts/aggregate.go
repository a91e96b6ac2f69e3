// Package charts aggregates clean records into bar-chart series and renders
// them as PNG images.
package charts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ccollicutt/logsift/pkg/normalizer"
	"github.com/ccollicutt/logsift/pkg/parser"
)

// Kind names a chart.
type Kind string

const (
	KindRequestsPerIP   Kind = "requests_per_ip"
	KindUniqueURLsPerIP Kind = "unique_urls_per_ip"
	KindStatusCodes     Kind = "status_codes"
	KindHTTPMethods     Kind = "http_methods"
	KindRequestsPerHour Kind = "requests_per_hour"
	KindBytesByStatus   Kind = "bytes_by_status"
)

// AllKinds lists every chart in rendering order.
var AllKinds = []Kind{
	KindRequestsPerIP,
	KindUniqueURLsPerIP,
	KindStatusCodes,
	KindHTTPMethods,
	KindRequestsPerHour,
	KindBytesByStatus,
}

// ParseKinds validates chart names. An empty list selects AllKinds.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return append([]Kind(nil), AllKinds...), nil
	}

	known := make(map[Kind]bool, len(AllKinds))
	for _, k := range AllKinds {
		known[k] = true
	}

	seen := make(map[Kind]bool)
	var kinds []Kind
	for _, name := range names {
		k := Kind(name)
		if !known[k] {
			return nil, fmt.Errorf("unknown chart kind %q", name)
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// Bar is one labelled value in a series.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is the data behind one chart.
type Series struct {
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	Bars   []Bar  `json:"bars"`
}

// Empty reports whether the series has nothing to draw. The hour series
// always has 24 bars, so it is empty when every hour counts zero.
func (s Series) Empty() bool {
	if s.Kind != KindRequestsPerHour {
		return len(s.Bars) == 0
	}
	for _, b := range s.Bars {
		if b.Value != 0 {
			return false
		}
	}
	return true
}

// Aggregate computes the series for kind. Numeric coercion of sizes and
// timestamps happens here; records whose values do not coerce are skipped
// for that chart only.
func Aggregate(kind Kind, records []normalizer.CleanRecord) (Series, error) {
	switch kind {
	case KindRequestsPerIP:
		counts := countBy(records, func(r normalizer.CleanRecord) string { return r.IP })
		return Series{
			Kind:   kind,
			Title:  fmt.Sprintf("Number of Requests per IP Address (Total IPs: %d)", len(counts)),
			XLabel: "IP Address",
			YLabel: "Number of Requests",
			Bars:   sortedBars(counts),
		}, nil

	case KindUniqueURLsPerIP:
		urls := make(map[string]map[string]bool)
		for _, r := range records {
			if urls[r.IP] == nil {
				urls[r.IP] = make(map[string]bool)
			}
			urls[r.IP][r.URL] = true
		}
		counts := make(map[string]float64, len(urls))
		for ip, set := range urls {
			counts[ip] = float64(len(set))
		}
		return Series{
			Kind:   kind,
			Title:  "Number of Unique URLs Requested per IP Address",
			XLabel: "IP Address",
			YLabel: "Number of Unique URLs",
			Bars:   sortedBars(counts),
		}, nil

	case KindStatusCodes:
		return Series{
			Kind:   kind,
			Title:  "Distribution of Status Codes",
			XLabel: "status",
			YLabel: "count",
			Bars:   sortedBars(countBy(records, func(r normalizer.CleanRecord) string { return r.Status })),
		}, nil

	case KindHTTPMethods:
		return Series{
			Kind:   kind,
			Title:  "Distribution of HTTP Methods",
			XLabel: "method",
			YLabel: "count",
			Bars:   sortedBars(countBy(records, func(r normalizer.CleanRecord) string { return r.Method })),
		}, nil

	case KindRequestsPerHour:
		var hours [24]float64
		for _, r := range records {
			ts, err := parser.ParseTimestamp(r.Timestamp)
			if err != nil {
				continue
			}
			hours[ts.Hour()]++
		}
		bars := make([]Bar, 24)
		for h, n := range hours {
			bars[h] = Bar{Label: fmt.Sprintf("%02d", h), Value: n}
		}
		return Series{
			Kind:   kind,
			Title:  "Number of Requests per Hour",
			XLabel: "hour",
			YLabel: "count",
			Bars:   bars,
		}, nil

	case KindBytesByStatus:
		sums := make(map[string]float64)
		for _, r := range records {
			size, err := ParseSize(r.Size)
			if err != nil {
				continue
			}
			sums[r.Status] += size / (1024 * 1024)
		}
		return Series{
			Kind:   kind,
			Title:  "Sum of Transferred Bytes by Status Code (in MB)",
			XLabel: "Status Code",
			YLabel: "Sum of Transferred Bytes (MB)",
			Bars:   sortedBars(sums),
		}, nil

	default:
		return Series{}, fmt.Errorf("unknown chart kind %q", kind)
	}
}

// ParseSize coerces a size field to a number, ignoring thousands separators.
func ParseSize(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("size %q is not numeric: %w", s, err)
	}
	return v, nil
}

func countBy(records []normalizer.CleanRecord, key func(normalizer.CleanRecord) string) map[string]float64 {
	counts := make(map[string]float64)
	for _, r := range records {
		counts[key(r)]++
	}
	return counts
}

// sortedBars orders by value descending, then label ascending.
func sortedBars(m map[string]float64) []Bar {
	bars := make([]Bar, 0, len(m))
	for label, v := range m {
		bars = append(bars, Bar{Label: label, Value: v})
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Value != bars[j].Value {
			return bars[i].Value > bars[j].Value
		}
		return bars[i].Label < bars[j].Label
	})
	return bars
}
