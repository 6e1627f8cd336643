package core

// streaming.go provides the single-pass record reader for tab-separated input.
//
// The reader never loads the whole file:
//
//   - BOMSkippingReader: Removes a UTF-8 BOM (0xEF 0xBB 0xBF) left by Windows editors
//   - CountingReader: Tracks bytes read for progress reporting
//   - RecordStream: Yields the header once, then one Record per data line
//
// Field values are passed through untouched; no encoding repair happens here.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FieldSeparator splits columns on every line, header included.
const FieldSeparator = "\t"

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	pending    []byte // bytes read during the BOM check that still need returning
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if !(n == 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF) {
			r.pending = r.buf[:n]
		}
	}

	if len(r.pending) > 0 {
		copied := copy(p, r.pending)
		r.pending = r.pending[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	if r.BytesRead >= r.Total {
		return 100
	}
	return int(r.BytesRead * 100 / r.Total)
}

// RecordStream reads a tab-separated file one line at a time.
// It is single-pass: once a record has been returned it cannot be read again.
type RecordStream struct {
	reader     *bufio.Reader
	line       int
	headerRead bool
	done       bool
}

// NewRecordStream wraps r with BOM skipping and line buffering.
func NewRecordStream(r io.Reader) *RecordStream {
	return &RecordStream{reader: bufio.NewReader(NewBOMSkippingReader(r))}
}

// Header returns the split header row. It must be called exactly once,
// before the first call to Next. An empty input yields ErrEmptyFile.
func (s *RecordStream) Header() ([]string, error) {
	if s.headerRead {
		return nil, errors.New("header already read")
	}
	s.headerRead = true

	text, err := s.readLine()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return strings.Split(text, FieldSeparator), nil
}

// Next returns the next non-empty data line. It returns io.EOF after the
// last record.
func (s *RecordStream) Next() (Record, error) {
	if !s.headerRead {
		if _, err := s.Header(); err != nil {
			return Record{}, err
		}
	}
	for {
		text, err := s.readLine()
		if err != nil {
			return Record{}, err
		}
		if text == "" {
			continue
		}
		return Record{Line: s.line, Fields: strings.Split(text, FieldSeparator)}, nil
	}
}

// readLine returns the next line without its terminator. A final line with
// no trailing newline is still returned; io.EOF follows on the next call.
func (s *RecordStream) readLine() (string, error) {
	if s.done {
		return "", io.EOF
	}
	text, err := s.reader.ReadString('\n')
	if err == io.EOF {
		s.done = true
		if text == "" {
			return "", io.EOF
		}
	} else if err != nil {
		return "", fmt.Errorf("read line %d: %w", s.line+1, err)
	}
	s.line++
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return text, nil
}
