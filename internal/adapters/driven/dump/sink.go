// Package dump writes bulk payloads to a file for inspection or replay.
// Files ending in .gz are gzip-compressed.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure FileSink and Source implement the interfaces.
var (
	_ driven.BulkSink   = (*FileSink)(nil)
	_ driven.BulkSource = Source{}
)

// FileSink appends every payload it receives to a file.
// The concatenation of NDJSON payloads is itself a valid bulk body.
type FileSink struct {
	mu       sync.Mutex
	file     *os.File
	gz       *gzip.Writer
	buf      *bufio.Writer
	path     string
	payloads int
	closed   bool
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating dump directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating dump file: %w", err)
	}

	s := &FileSink{file: f, path: path}
	var w io.Writer = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		s.gz = gzip.NewWriter(f)
		w = s.gz
	}
	s.buf = bufio.NewWriterSize(w, 256*1024)
	return s, nil
}

// Write appends payload.
func (s *FileSink) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("dump %s: write after close", s.path)
	}
	if _, err := s.buf.Write(payload); err != nil {
		return fmt.Errorf("writing dump: %w", err)
	}
	s.payloads++
	return nil
}

// Payloads returns the number of payloads written.
func (s *FileSink) Payloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads
}

// Path returns the dump file path.
func (s *FileSink) Path() string {
	return s.path
}

// Close flushes buffered data and closes the file. It is safe to call twice.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.buf.Flush(); err != nil {
		firstErr = fmt.Errorf("flushing dump: %w", err)
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing gzip stream: %w", err)
		}
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing dump file: %w", err)
	}
	return firstErr
}

// Source reopens dump files for replay.
type Source struct{}

// Open implements driven.BulkSource.
func (Source) Open(path string) (io.ReadCloser, error) {
	return Open(path)
}

// Open returns a reader over a dump file, transparently decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dump file: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}
