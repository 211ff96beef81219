package dcc

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Bit is the classification outcome for one bit cell.
type Bit uint8

const (
	// Zero is a logical 0 (long half-bits).
	Zero Bit = iota
	// One is a logical 1 (short half-bits).
	One
	// Invalid marks a cell whose duration falls in neither window.
	Invalid
)

// String returns "0", "1" or "invalid".
func (b Bit) String() string {
	switch b {
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return "invalid"
	}
}

// BitCell is one classified bit with its span in samples.
type BitCell struct {
	Start uint64
	End   uint64
	Value Bit
}

// Duration returns the cell length in samples.
func (c BitCell) Duration() uint64 {
	return c.End - c.Start
}

// EdgeSource supplies level-transition timestamps for the data channel.
//
// NextEdge blocks until the next transition and returns its sample index.
// Implementations return io.EOF when the capture is exhausted and ctx.Err()
// when the context is cancelled.
type EdgeSource interface {
	NextEdge(ctx context.Context) (uint64, error)
	SampleRate() uint64
}

// BitClassifier turns pairs of half-bit intervals into classified bit cells.
//
// It owns the jitter-driven resynchronisation loop: while the two half-bits of a
// candidate cell differ by more than the jitter tolerance, the window slides by one
// edge. The end edge of each cell is the start edge of the next.
type BitClassifier struct {
	src     EdgeSource
	th      Thresholds
	last    uint64
	primed  bool
	skipped atomic.Uint64
}

// NewBitClassifier creates a classifier reading from src.
func NewBitClassifier(src EdgeSource, th Thresholds) *BitClassifier {
	return &BitClassifier{src: src, th: th}
}

// ReadBit reads edges until two consecutive half-bits agree within jitter and
// classifies the resulting cell.
//
// Returns:
//   - BitCell: the cell, possibly with Value Invalid
//   - error: the source error (io.EOF at end of stream)
func (c *BitClassifier) ReadBit(ctx context.Context) (BitCell, error) {
	if !c.primed {
		edge, err := c.src.NextEdge(ctx)
		if err != nil {
			return BitCell{}, err
		}
		c.last = edge
		c.primed = true
	}

	first := c.last
	second, err := c.next(ctx, first)
	if err != nil {
		return BitCell{}, err
	}
	third, err := c.next(ctx, second)
	if err != nil {
		return BitCell{}, err
	}

	for absDiff(second-first, third-second) > c.th.Jitter {
		first, second = second, third
		c.skipped.Add(1)
		third, err = c.next(ctx, second)
		if err != nil {
			return BitCell{}, err
		}
	}

	c.last = third
	return BitCell{
		Start: first,
		End:   third,
		Value: c.th.Classify(third - first),
	}, nil
}

// Skipped returns how many edges were discarded to realign half-bit pairs.
func (c *BitClassifier) Skipped() uint64 {
	return c.skipped.Load()
}

// next reads one edge and checks it is not earlier than prev.
func (c *BitClassifier) next(ctx context.Context, prev uint64) (uint64, error) {
	edge, err := c.src.NextEdge(ctx)
	if err != nil {
		return 0, err
	}
	if edge < prev {
		return 0, fmt.Errorf("%w: edge %d precedes %d", ErrNonMonotonicEdge, edge, prev)
	}
	return edge, nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
