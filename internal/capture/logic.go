package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ctxCheckInterval is how many samples are scanned between context checks.
const ctxCheckInterval = 1 << 16

// LogicReader extracts level transitions of one channel from raw sample words.
//
// The first reported edge is the first transition to the active level (rising
// for active-high, falling for active-low). Every transition after that is
// reported. The edge timestamp is the index of the first sample at the new level.
//
// Thread Safety: not safe for concurrent use.
type LogicReader struct {
	r         *bufio.Reader
	rate      uint64
	unitSize  int
	mask      uint64
	activeLow bool

	buf     [8]byte
	index   uint64
	level   bool
	started bool
	aligned bool
}

// NewLogicReader creates a reader for sample words of unitSize bytes, decoding
// the given channel bit.
func NewLogicReader(r io.Reader, sampleRate uint64, unitSize, channel int, activeLow bool) (*LogicReader, error) {
	if unitSize < 1 || unitSize > 8 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUnitSize, unitSize)
	}
	if channel < 0 || channel >= unitSize*8 {
		return nil, fmt.Errorf("%w: channel %d with %d-byte samples", ErrInvalidChannel, channel, unitSize)
	}
	return &LogicReader{
		r:         bufio.NewReaderSize(r, 64*1024),
		rate:      sampleRate,
		unitSize:  unitSize,
		mask:      1 << uint(channel),
		activeLow: activeLow,
	}, nil
}

// SampleRate implements dcc.EdgeSource.
func (l *LogicReader) SampleRate() uint64 {
	return l.rate
}

// Samples returns the number of sample words consumed so far.
func (l *LogicReader) Samples() uint64 {
	return l.index
}

// NextEdge implements dcc.EdgeSource.
func (l *LogicReader) NextEdge(ctx context.Context) (uint64, error) {
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		level, err := l.sample()
		if err != nil {
			return 0, err
		}
		at := l.index
		l.index++

		if !l.started {
			l.started = true
			l.level = level
			continue
		}
		if level == l.level {
			continue
		}
		l.level = level

		if !l.aligned {
			// active level reached
			if level != l.activeLow {
				l.aligned = true
				return at, nil
			}
			continue
		}
		return at, nil
	}
}

// sample reads one word and returns the channel level.
func (l *LogicReader) sample() (bool, error) {
	word := l.buf[:l.unitSize]
	if _, err := io.ReadFull(l.r, word); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return false, fmt.Errorf("%w at sample %d", ErrTruncatedSample, l.index)
		}
		return false, err
	}

	var padded [8]byte
	copy(padded[:], word)
	return binary.LittleEndian.Uint64(padded[:])&l.mask != 0, nil
}
