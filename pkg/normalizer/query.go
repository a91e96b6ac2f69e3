package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/ccollicutt/logsift/pkg/parser"
)

// ErrInvalidQueryEncoding is returned when serialized query parameters are
// not a JSON object of strings.
var ErrInvalidQueryEncoding = errors.New("invalid query parameter encoding")

// EncodeQuery serializes params as a compact JSON object, keys in order.
// An empty mapping encodes as "{}". HTML characters are not escaped.
// Invalid UTF-8 bytes become U+FFFD, so such values do not survive
// DecodeQuery byte for byte; the record's URL keeps the raw bytes.
func EncodeQuery(params parser.QueryParams) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	writeString := func(s string) {
		// Encoding a string cannot fail; Encode appends a newline we drop.
		_ = enc.Encode(s)
		buf.Truncate(buf.Len() - 1)
	}

	buf.WriteByte('{')
	for i, p := range params {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(p.Key)
		buf.WriteByte(':')
		writeString(p.Value)
	}
	buf.WriteByte('}')
	return buf.String()
}

// DecodeQuery reverses EncodeQuery, keeping key order.
func DecodeQuery(s string) (parser.QueryParams, error) {
	var p fastjson.Parser
	v, err := p.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQueryEncoding, err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQueryEncoding, err)
	}

	params := parser.QueryParams{}
	var visitErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if visitErr != nil {
			return
		}
		b, err := val.StringBytes()
		if err != nil {
			visitErr = fmt.Errorf("%w: key %q: %v", ErrInvalidQueryEncoding, key, err)
			return
		}
		params = params.Set(string(key), string(b))
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return params, nil
}
