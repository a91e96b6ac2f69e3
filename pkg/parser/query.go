package parser

import (
	"errors"
	"fmt"
	"strings"
)

// QueryPolicy decides what happens to a query segment that has no '='.
type QueryPolicy string

const (
	// QueryPolicyEmpty keeps the segment as a key with an empty value.
	QueryPolicyEmpty QueryPolicy = "empty"

	// QueryPolicySkip drops the segment and keeps the rest of the record.
	QueryPolicySkip QueryPolicy = "skip"

	// QueryPolicyReject fails the whole line.
	QueryPolicyReject QueryPolicy = "reject"
)

// ErrMalformedQuery is wrapped by ParseQuery when QueryPolicyReject is set
// and a segment has no '='.
var ErrMalformedQuery = errors.New("malformed query string")

// ParseQueryPolicy validates a policy name.
func ParseQueryPolicy(s string) (QueryPolicy, error) {
	switch p := QueryPolicy(s); p {
	case QueryPolicyEmpty, QueryPolicySkip, QueryPolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("invalid query policy %q (must be empty, skip, or reject)", s)
	}
}

// ParseQuery decodes the query string of a raw URL into ordered params.
//
// The URL is split once on the first '?'. The suffix is split on '&' and each
// segment once on its first '='. Values are kept as written (no percent
// decoding). Empty segments are ignored. A repeated key keeps its first
// position and takes the last value.
func ParseQuery(url string, policy QueryPolicy) (QueryParams, error) {
	_, raw, found := strings.Cut(url, "?")
	if !found {
		return QueryParams{}, nil
	}

	params := QueryParams{}
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}

		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			switch policy {
			case QueryPolicySkip:
				continue
			case QueryPolicyReject:
				return nil, fmt.Errorf("%w: segment %q has no '='", ErrMalformedQuery, seg)
			default:
				value = ""
			}
		}

		params = params.Set(key, value)
	}

	return params, nil
}
