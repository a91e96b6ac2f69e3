package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ccollicutt/logsift/pkg/normalizer"
	"github.com/ccollicutt/logsift/pkg/parser"
)

// WriteParsedCSV writes parsed records with the canonical query encoding.
func WriteParsedCSV(w io.Writer, records []parser.ParsedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(normalizer.FieldNames); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.IP, r.Timestamp, r.Method, r.URL, r.Status, r.Size, normalizer.EncodeQuery(r.QueryParams)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCleanCSV writes clean records.
func WriteCleanCSV(w io.Writer, records []normalizer.CleanRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(normalizer.FieldNames); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSnapshot creates path, including parent directories, and fills it
// with write.
func WriteSnapshot(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	f, err := os.Create(path) // #nosec G304 -- path comes from config
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return bw.Flush()
}

// parsedJSON is the JSON-lines shape of a parsed record. Query params keep
// their order as a nested object.
type parsedJSON struct {
	IP          string          `json:"ip"`
	Timestamp   string          `json:"timestamp"`
	Method      string          `json:"method"`
	URL         string          `json:"url"`
	Status      string          `json:"status"`
	Size        string          `json:"size"`
	QueryParams json.RawMessage `json:"query_params"`
}

// JSONLinesWriter writes one JSON document per record.
type JSONLinesWriter struct {
	enc *json.Encoder
}

// NewJSONLinesWriter creates a JSONLinesWriter on w.
func NewJSONLinesWriter(w io.Writer) *JSONLinesWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLinesWriter{enc: enc}
}

// WriteParsed writes a parsed record.
func (j *JSONLinesWriter) WriteParsed(r parser.ParsedRecord) error {
	return j.enc.Encode(parsedJSON{
		IP:          r.IP,
		Timestamp:   r.Timestamp,
		Method:      r.Method,
		URL:         r.URL,
		Status:      r.Status,
		Size:        r.Size,
		QueryParams: json.RawMessage(normalizer.EncodeQuery(r.QueryParams)),
	})
}

// WriteClean writes a clean record. Its query params stay a JSON string, as
// they are stored.
func (j *JSONLinesWriter) WriteClean(r normalizer.CleanRecord) error {
	return j.enc.Encode(r)
}
