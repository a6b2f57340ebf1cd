package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 << 20

// JSONLSource reads newline-delimited JSON records. Blank lines are skipped
// but still counted so reported line numbers match the file.
type JSONLSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewJSONLSource reads records from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &JSONLSource{scanner: scanner}
}

// OpenJSONL opens the file at path. A missing or unreadable file is reported
// as ErrSourceUnreadable.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperrors.ErrSourceUnreadable, path, err)
	}
	s := NewJSONLSource(f)
	s.closer = f
	return s, nil
}

// Next returns the next non-blank line.
func (s *JSONLSource) Next(ctx context.Context) (Raw, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Raw{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Raw{}, fmt.Errorf("%w: line %d: %v", apperrors.ErrSourceUnreadable, s.line+1, err)
			}
			return Raw{}, io.EOF
		}
		s.line++
		data := bytes.TrimSpace(s.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		// Copied: the scanner reuses its buffer on the next Scan.
		return Raw{Line: s.line, Data: bytes.Clone(data)}, nil
	}
}

// Close releases the underlying file, if OpenJSONL created it.
func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
