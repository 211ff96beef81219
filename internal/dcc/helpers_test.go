package dcc

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Test timing at 1 MHz: one sample per microsecond.
const (
	testRate     = 1_000_000
	halfOne      = 58
	halfZero     = 100
	halfInvalid  = 75
	firstEdgeAt  = 1000
	testPreamble = 16
)

// sliceSource replays a fixed edge list.
type sliceSource struct {
	edges []uint64
	rate  uint64
	pos   int
	reads int
}

func (s *sliceSource) NextEdge(ctx context.Context) (uint64, error) {
	s.reads++
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

func (s *sliceSource) SampleRate() uint64 { return s.rate }

// edgesFor renders a bit string ('0', '1', 'x' for an invalid cell) as edge
// timestamps with two equal half-bits per cell. Other runes are ignored.
func edgesFor(bits string) []uint64 {
	edges := []uint64{firstEdgeAt}
	at := uint64(firstEdgeAt)
	for _, r := range bits {
		var half uint64
		switch r {
		case '0':
			half = halfZero
		case '1':
			half = halfOne
		case 'x':
			half = halfInvalid
		default:
			continue
		}
		at += half
		edges = append(edges, at)
		at += half
		edges = append(edges, at)
	}
	return edges
}

// cellsFor renders a bit string as classified cells.
func cellsFor(bits string) []BitCell {
	var cells []BitCell
	at := uint64(firstEdgeAt)
	for _, r := range bits {
		var c BitCell
		switch r {
		case '0':
			c = BitCell{Start: at, End: at + 2*halfZero, Value: Zero}
		case '1':
			c = BitCell{Start: at, End: at + 2*halfOne, Value: One}
		case 'x':
			c = BitCell{Start: at, End: at + 2*halfInvalid, Value: Invalid}
		default:
			continue
		}
		cells = append(cells, c)
		at = c.End
	}
	return cells
}

// packetBits encodes a packet: preamble ones, a start bit before every byte and
// the packet end bit.
func packetBits(preamble int, data ...byte) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("1", preamble))
	for _, v := range data {
		fmt.Fprintf(&b, "0%08b", v)
	}
	b.WriteString("1")
	return b.String()
}

// withChecksum appends the XOR error-detection byte.
func withChecksum(data ...byte) []byte {
	return append(data, Checksum(data))
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	bits      []BitEvent
	preambles []PreambleEvent
	bytes     []ByteEvent
	telegrams []TelegramEvent
	syncs     []SyncEvent
	averages  []AverageEvent
}

func (r *recordingSink) Bit(e BitEvent)           { r.bits = append(r.bits, e) }
func (r *recordingSink) Preamble(e PreambleEvent) { r.preambles = append(r.preambles, e) }
func (r *recordingSink) Byte(e ByteEvent)         { r.bytes = append(r.bytes, e) }
func (r *recordingSink) Telegram(e TelegramEvent) { r.telegrams = append(r.telegrams, e) }
func (r *recordingSink) SyncLost(e SyncEvent)     { r.syncs = append(r.syncs, e) }
func (r *recordingSink) Average(e AverageEvent)   { r.averages = append(r.averages, e) }

func (r *recordingSink) commands() []Command {
	out := make([]Command, 0, len(r.telegrams))
	for _, t := range r.telegrams {
		out = append(out, t.Command)
	}
	return out
}

func testThresholds() Thresholds {
	th, err := DefaultTimingOptions().Thresholds(testRate)
	if err != nil {
		panic(err)
	}
	return th
}
