package charts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/logsift/pkg/normalizer"
)

func rec(ip, ts, method, url, status, size string) normalizer.CleanRecord {
	return normalizer.CleanRecord{
		IP:          ip,
		Timestamp:   ts,
		Method:      method,
		URL:         url,
		Status:      status,
		Size:        size,
		QueryParams: "{}",
	}
}

func sampleRecords() []normalizer.CleanRecord {
	return []normalizer.CleanRecord{
		rec("10.0.0.1", "17/May/2015:10:05:03 +0000", "GET", "/a", "200", "1048576"),
		rec("10.0.0.1", "17/May/2015:10:05:04 +0000", "GET", "/b", "200", "1,048,576"),
		rec("10.0.0.1", "17/May/2015:11:05:03 +0000", "POST", "/a", "404", "512"),
		rec("10.0.0.2", "17/May/2015:23:59:59 +0000", "GET", "/a", "200", "abc"),
		rec("10.0.0.3", "not-a-time", "HEAD", "/c", "500", "0"),
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds(nil)
	require.NoError(t, err)
	assert.Equal(t, AllKinds, kinds)

	kinds, err = ParseKinds([]string{"status_codes", "http_methods", "status_codes"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindStatusCodes, KindHTTPMethods}, kinds)

	_, err = ParseKinds([]string{"pie"})
	assert.ErrorContains(t, err, "unknown chart kind")
}

func TestAggregateRequestsPerIP(t *testing.T) {
	s, err := Aggregate(KindRequestsPerIP, sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, []Bar{
		{Label: "10.0.0.1", Value: 3},
		{Label: "10.0.0.2", Value: 1},
		{Label: "10.0.0.3", Value: 1},
	}, s.Bars)
	assert.Contains(t, s.Title, "Total IPs: 3")
}

func TestAggregateUniqueURLsPerIP(t *testing.T) {
	s, err := Aggregate(KindUniqueURLsPerIP, sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, []Bar{
		{Label: "10.0.0.1", Value: 2},
		{Label: "10.0.0.2", Value: 1},
		{Label: "10.0.0.3", Value: 1},
	}, s.Bars)
}

func TestAggregateDistributions(t *testing.T) {
	status, err := Aggregate(KindStatusCodes, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []Bar{
		{Label: "200", Value: 3},
		{Label: "404", Value: 1},
		{Label: "500", Value: 1},
	}, status.Bars)

	methods, err := Aggregate(KindHTTPMethods, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []Bar{
		{Label: "GET", Value: 3},
		{Label: "HEAD", Value: 1},
		{Label: "POST", Value: 1},
	}, methods.Bars)
}

func TestAggregateRequestsPerHour(t *testing.T) {
	s, err := Aggregate(KindRequestsPerHour, sampleRecords())
	require.NoError(t, err)

	require.Len(t, s.Bars, 24)
	assert.Equal(t, "00", s.Bars[0].Label)
	assert.Equal(t, "23", s.Bars[23].Label)

	// The record with an unparsable timestamp is skipped.
	var total float64
	for _, b := range s.Bars {
		total += b.Value
	}
	assert.Equal(t, 4.0, total)
}

func TestAggregateBytesByStatus(t *testing.T) {
	s, err := Aggregate(KindBytesByStatus, sampleRecords())
	require.NoError(t, err)

	byLabel := make(map[string]float64)
	for _, b := range s.Bars {
		byLabel[b.Label] = b.Value
	}

	// Two 1 MiB rows (one with separators); "abc" is skipped.
	assert.InDelta(t, 2.0, byLabel["200"], 1e-9)
	assert.InDelta(t, 512.0/(1024*1024), byLabel["404"], 1e-12)
	assert.Contains(t, byLabel, "500")
	assert.Equal(t, "200", s.Bars[0].Label)
}

func TestAggregateEmpty(t *testing.T) {
	for _, k := range AllKinds {
		s, err := Aggregate(k, nil)
		require.NoError(t, err, k)
		assert.True(t, s.Empty(), k)
		if k == KindRequestsPerHour {
			assert.Len(t, s.Bars, 24)
			continue
		}
		assert.Empty(t, s.Bars, k)
	}
}

func TestSeriesEmpty(t *testing.T) {
	hours, err := Aggregate(KindRequestsPerHour, sampleRecords())
	require.NoError(t, err)
	assert.False(t, hours.Empty())

	status, err := Aggregate(KindStatusCodes, sampleRecords())
	require.NoError(t, err)
	assert.False(t, status.Empty())
}

func TestAggregateUnknownKind(t *testing.T) {
	_, err := Aggregate(Kind("pie"), nil)
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"2326", 2326, false},
		{"1,024", 1024, false},
		{"-", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
