package parser

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		policy QueryPolicy
		want   QueryParams
	}{
		{"no query", "/index.html", QueryPolicyEmpty, QueryParams{}},
		{"single pair", "/a?foo=bar", QueryPolicyEmpty, QueryParams{{"foo", "bar"}}},
		{"insertion order", "/a?z=1&a=2&m=3", QueryPolicyEmpty, QueryParams{{"z", "1"}, {"a", "2"}, {"m", "3"}}},
		{"duplicate key last wins", "/a?x=1&y=2&x=3", QueryPolicyEmpty, QueryParams{{"x", "3"}, {"y", "2"}}},
		{"split on first equals", "/a?expr=a=b", QueryPolicyEmpty, QueryParams{{"expr", "a=b"}}},
		{"empty value", "/a?k=", QueryPolicyEmpty, QueryParams{{"k", ""}}},
		{"empty key", "/a?=v", QueryPolicyEmpty, QueryParams{{"", "v"}}},
		{"bare question mark", "/a?", QueryPolicyEmpty, QueryParams{}},
		{"empty segments ignored", "/a?x=1&&y=2&", QueryPolicyEmpty, QueryParams{{"x", "1"}, {"y", "2"}}},
		{"second question mark kept in query", "/a?x=1?y=2", QueryPolicyEmpty, QueryParams{{"x", "1?y=2"}}},
		{"no percent decoding", "/a?q=hello%20world", QueryPolicyEmpty, QueryParams{{"q", "hello%20world"}}},
		{"bare key empty policy", "/a?flag&x=1", QueryPolicyEmpty, QueryParams{{"flag", ""}, {"x", "1"}}},
		{"bare key skip policy", "/a?flag&x=1", QueryPolicySkip, QueryParams{{"x", "1"}}},
		{"only bare key skip policy", "/a?flag", QueryPolicySkip, QueryParams{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.url, tt.policy)
			if err != nil {
				t.Fatalf("ParseQuery(%q) error = %v", tt.url, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseQuery(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseQuery_Reject(t *testing.T) {
	_, err := ParseQuery("/a?x=1&flag", QueryPolicyReject)
	if !errors.Is(err, ErrMalformedQuery) {
		t.Errorf("ParseQuery() error = %v, want ErrMalformedQuery", err)
	}

	got, err := ParseQuery("/a?x=1", QueryPolicyReject)
	if err != nil || len(got) != 1 {
		t.Errorf("ParseQuery() = %v, %v; want one pair", got, err)
	}
}

func TestParseQueryPolicy(t *testing.T) {
	for _, name := range []string{"empty", "skip", "reject"} {
		if _, err := ParseQueryPolicy(name); err != nil {
			t.Errorf("ParseQueryPolicy(%q) error = %v", name, err)
		}
	}
	if _, err := ParseQueryPolicy("drop"); err == nil {
		t.Error("ParseQueryPolicy(drop) expected error")
	}
}

func TestQueryParams_Set(t *testing.T) {
	var q QueryParams
	q = q.Set("a", "1")
	q = q.Set("b", "2")
	q = q.Set("a", "3")

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	if q[0].Key != "a" || q[0].Value != "3" {
		t.Errorf("q[0] = %+v, want a=3", q[0])
	}
	if _, ok := q.Get("missing"); ok {
		t.Error("Get(missing) found a value")
	}
}
