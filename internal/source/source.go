// Package source supplies raw product records to the index builder. Each
// Source yields one undecoded record at a time and returns io.EOF once the
// input is exhausted. Any other error means the source itself has failed.
package source

import (
	"context"
	"io"
)

// Raw is a single undecoded record and its 1-based position in the input.
type Raw struct {
	Line int
	Data []byte
}

// Source is implemented by every record supplier.
type Source interface {
	Next(ctx context.Context) (Raw, error)
}

// SliceSource serves records from memory, in order.
type SliceSource struct {
	records [][]byte
	next    int
}

// NewSliceSource creates a Source over records.
func NewSliceSource(records ...[]byte) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Raw, error) {
	if err := ctx.Err(); err != nil {
		return Raw{}, err
	}
	if s.next >= len(s.records) {
		return Raw{}, io.EOF
	}
	s.next++
	return Raw{Line: s.next, Data: s.records[s.next-1]}, nil
}
