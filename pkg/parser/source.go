package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// MaxLineSize is the longest line a source will return in full. Longer
// lines are drained and returned truncated with LogLine.Truncated set.
const MaxLineSize = 1024 * 1024

// truncatedPrefix is how much of an over-long line is kept for reporting.
const truncatedPrefix = 1024

// LogSource provides an iterator over raw log lines.
// Implementations must be safe for sequential access (not concurrent).
type LogSource interface {
	// Next returns the next raw line.
	// Returns io.EOF when no more lines are available.
	Next(ctx context.Context) (*LogLine, error)

	// Close releases any resources held by the source.
	Close() error
}

// FileSource implements LogSource over one or more files, read in order.
// Files ending in .gz, .zst or .zstd are decompressed on the fly.
type FileSource struct {
	files []string

	current       io.ReadCloser
	currentReader *bufio.Reader
	currentSource string
	currentLine   int
	fileIndex     int
}

// NewFileSource creates a LogSource that reads from the given files.
func NewFileSource(files ...string) *FileSource {
	return &FileSource{
		files:     files,
		fileIndex: -1,
	}
}

// Files returns the paths this source reads.
func (s *FileSource) Files() []string {
	return s.files
}

// Next returns the next line across all files.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentReader == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		line, ok, err := s.readLine()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}
		if ok {
			s.currentLine++
			line.Source = s.currentSource
			line.LineNum = s.currentLine
			return line, nil
		}

		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// readLine reads one line from the current file. ok is false at end of
// file. A line over MaxLineSize is consumed to its end and only its first
// truncatedPrefix bytes are kept.
func (s *FileSource) readLine() (line *LogLine, ok bool, err error) {
	var buf []byte
	read := 0
	for {
		chunk, rerr := s.currentReader.ReadSlice('\n')
		read += len(chunk)
		// Room for a trailing "\r\n" so a line of exactly MaxLineSize fits.
		if room := MaxLineSize + 2 - len(buf); room > 0 {
			buf = append(buf, chunk[:min(room, len(chunk))]...)
		}

		if rerr == bufio.ErrBufferFull {
			continue
		}
		if rerr != nil && rerr != io.EOF {
			return nil, false, rerr
		}
		if rerr == io.EOF && read == 0 {
			return nil, false, nil
		}
		break
	}

	content := strings.TrimSuffix(strings.TrimSuffix(string(buf), "\n"), "\r")
	if read-len(buf) > 0 || len(content) > MaxLineSize {
		return &LogLine{Content: content[:min(truncatedPrefix, len(content))], Truncated: true}, true, nil
	}
	return &LogLine{Content: content}, true, nil
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	rc, err := openLogFile(path)
	if err != nil {
		return err
	}

	s.current = rc
	s.currentReader = bufio.NewReaderSize(rc, 64*1024)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	s.currentReader = nil
	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		return err
	}
	return nil
}

// openLogFile opens path, wrapping it in a decompressor chosen by extension.
func openLogFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, f}}, nil
	default:
		return f, nil
	}
}

// stackedCloser closes a decompressor and its underlying file in order.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *stackedCloser) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// Sample reads at most n lines from path. n <= 0 reads the whole file.
func Sample(ctx context.Context, path string, n int) ([]LogLine, error) {
	src := NewFileSource(path)
	defer src.Close()

	var lines []LogLine
	for n <= 0 || len(lines) < n {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, nil
}

// SliceSource serves lines already in memory.
type SliceSource struct {
	lines []LogLine
	pos   int
}

// NewSliceSource creates a LogSource over lines.
func NewSliceSource(lines []LogLine) *SliceSource {
	return &SliceSource{lines: lines}
}

// Next returns the next line, or io.EOF when all have been returned.
func (s *SliceSource) Next(ctx context.Context) (*LogLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.lines) {
		return nil, io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return &line, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error {
	return nil
}
