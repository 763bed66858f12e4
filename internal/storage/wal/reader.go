package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// Reader decodes records from a log stream in append order.
type Reader struct {
	br     *bufio.Reader
	cipher adaptive.Cipher

	offset int64
	line   int
}

// NewReader creates a reader over r.
func NewReader(r io.Reader, cipher adaptive.Cipher) *Reader {
	return &Reader{
		br:     bufio.NewReaderSize(r, 64<<10),
		cipher: cipher,
	}
}

// Read returns the next record, io.EOF at a clean end of stream, or an
// error wrapping ErrTornRecord when the stream ends in a partial line.
func (r *Reader) Read() (*Record, error) {
	raw, err := r.br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(raw) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrTornRecord, len(raw), r.offset)
		}
		return nil, err
	}

	rec, err := decodeLine(raw[:len(raw)-1], r.cipher)
	if err != nil {
		return nil, fmt.Errorf("line %d (offset %d): %w", r.line+1, r.offset, err)
	}

	r.offset += int64(len(raw))
	r.line++
	return rec, nil
}

// Offset returns the number of bytes covered by complete records read so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// ReadAll reads records until the end of the stream. A torn final line
// stops the read and is reported with ErrTornRecord alongside the records
// read before it.
func (r *Reader) ReadAll() ([]*Record, error) {
	var out []*Record
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}

// ReadFile reads every complete record of the log at path without
// modifying it. A missing file yields no records.
func ReadFile(path string, cipher adaptive.Cipher) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: open: %w", err)
	}
	defer f.Close()

	return NewReader(f, cipher).ReadAll()
}
