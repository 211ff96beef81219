package capture

import (
	"context"
	"io"
)

// SliceSource replays edges held in memory.
type SliceSource struct {
	edges []uint64
	rate  uint64
	pos   int
}

// NewSliceSource creates a source over edges. The slice is not copied.
func NewSliceSource(edges []uint64, sampleRate uint64) *SliceSource {
	return &SliceSource{edges: edges, rate: sampleRate}
}

// SampleRate implements dcc.EdgeSource.
func (s *SliceSource) SampleRate() uint64 { return s.rate }

// NextEdge implements dcc.EdgeSource.
func (s *SliceSource) NextEdge(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.edges) {
		return 0, io.EOF
	}
	e := s.edges[s.pos]
	s.pos++
	return e, nil
}

// Close implements io.Closer.
func (s *SliceSource) Close() error { return nil }
