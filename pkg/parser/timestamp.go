package parser

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// TimestampLayout is the Go layout of the access-log timestamp field,
// e.g. "10/Oct/2023:13:55:36 -0700".
const TimestampLayout = "02/Jan/2006:15:04:05 -0700"

// timestampCacheSize bounds the parsed timestamp cache. Busy logs repeat the
// same second on many lines, and both the store and the charts parse every
// clean record's timestamp.
const timestampCacheSize = 4096

var timestampCache = mustCache(timestampCacheSize)

func mustCache(size int) *lru.Cache {
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseTimestamp parses an access-log timestamp field. The line parser never
// calls it; timestamps stay text until a consumer needs a time value.
func ParseTimestamp(s string) (time.Time, error) {
	if v, ok := timestampCache.Get(s); ok {
		return v.(time.Time), nil
	}

	ts, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	timestampCache.Add(s, ts)
	return ts, nil
}
