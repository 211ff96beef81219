package dcc

// State is the framing state of the FrameStateMachine.
type State uint8

const (
	// FindPreamble counts consecutive ones until a 0 bit opens a frame.
	FindPreamble State = iota
	// Data assembles bytes and hands them to the TelegramParser.
	Data
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case FindPreamble:
		return "find_preamble"
	case Data:
		return "data"
	default:
		return "invalid"
	}
}

// DefaultMinPreambleBits is the number of ones required before a 0 bit starts a
// frame (a count greater than 15).
const DefaultMinPreambleBits = 16

// byteBuffer accumulates the bytes of one telegram.
type byteBuffer struct {
	start     uint64
	byteStart uint64
	bytes     []byte
	bitCount  int
	current   byte
}

func (b *byteBuffer) reset() {
	b.bytes = b.bytes[:0]
	b.bitCount = 0
	b.current = 0
}

// FrameStateMachine detects preambles, assembles bytes and applies the
// TelegramParser's directives.
//
// Thread Safety: not safe for concurrent use; driven by the Decoder goroutine.
type FrameStateMachine struct {
	parser      *TelegramParser
	sink        Sink
	minPreamble int

	state State

	preambleStart uint64
	preambleEnd   uint64
	preambleCount int

	buf byteBuffer
}

// NewFrameStateMachine creates a machine in the FindPreamble state.
// minPreamble values below 1 select DefaultMinPreambleBits.
func NewFrameStateMachine(parser *TelegramParser, sink Sink, minPreamble int) *FrameStateMachine {
	if sink == nil {
		sink = NopSink{}
	}
	if minPreamble < 1 {
		minPreamble = DefaultMinPreambleBits
	}
	return &FrameStateMachine{
		parser:      parser,
		sink:        sink,
		minPreamble: minPreamble,
		state:       FindPreamble,
		buf:         byteBuffer{bytes: make([]byte, 0, maxTelegramBytes+1)},
	}
}

// State returns the current framing state.
func (m *FrameStateMachine) State() State {
	return m.state
}

// PreambleCount returns the ones counted so far in FindPreamble.
func (m *FrameStateMachine) PreambleCount() int {
	return m.preambleCount
}

// BitCount returns the bits consumed for the byte in progress (0..8).
func (m *FrameStateMachine) BitCount() int {
	return m.buf.bitCount
}

// Step consumes one classified bit.
func (m *FrameStateMachine) Step(cell BitCell) {
	switch m.state {
	case FindPreamble:
		m.stepPreamble(cell)
	case Data:
		m.stepData(cell)
	}
}

func (m *FrameStateMachine) stepPreamble(cell BitCell) {
	switch cell.Value {
	case One:
		if m.preambleCount == 0 {
			m.preambleStart = cell.Start
		}
		m.preambleEnd = cell.End
		m.preambleCount++
	case Zero:
		if m.preambleCount >= m.minPreamble {
			m.sink.Preamble(PreambleEvent{
				Start: m.preambleStart,
				End:   m.preambleEnd,
				Count: m.preambleCount,
			})
			m.enterData(cell)
			return
		}
		if m.preambleCount > 0 {
			m.syncLost(cell, SyncShortPreamble)
		}
		m.preambleCount = 0
	default:
		if m.preambleCount > 0 {
			m.syncLost(cell, SyncInvalidBit)
		}
		m.preambleCount = 0
	}
}

// enterData opens a frame; the 0 bit just read is the first byte's start bit.
func (m *FrameStateMachine) enterData(startBit BitCell) {
	m.state = Data
	m.preambleCount = 0
	m.buf.reset()
	m.buf.start = startBit.Start
	m.buf.bitCount = 1
}

func (m *FrameStateMachine) stepData(cell BitCell) {
	if cell.Value == Invalid {
		m.syncLost(cell, SyncInvalidBit)
		m.findPreamble()
		return
	}

	if m.buf.bitCount == 0 {
		if cell.Value == Zero {
			m.buf.bitCount = 1
			return
		}
		// packet end bit before the parser accepted anything
		m.syncLost(cell, SyncIncomplete)
		m.findPreamble()
		return
	}

	if m.buf.bitCount == 1 {
		m.buf.byteStart = cell.Start
	}
	m.buf.current = m.buf.current<<1 | byte(cell.Value)
	m.buf.bitCount++

	if m.buf.bitCount <= 8 {
		return
	}

	value := m.buf.current
	m.buf.bytes = append(m.buf.bytes, value)
	m.buf.current = 0
	m.buf.bitCount = 0
	m.sink.Byte(ByteEvent{
		Start: m.buf.byteStart,
		End:   cell.End,
		Value: value,
		Index: len(m.buf.bytes) - 1,
	})

	m.apply(m.parser.Evaluate(m.buf.bytes), cell)
}

// apply carries out the parser's directive for the byte that ended with last.
func (m *FrameStateMachine) apply(res Result, last BitCell) {
	if res.Command != nil {
		raw := make([]byte, len(m.buf.bytes))
		copy(raw, m.buf.bytes)
		m.sink.Telegram(TelegramEvent{
			Start:     m.buf.start,
			End:       last.End,
			Bytes:     raw,
			Command:   res.Command,
			Directive: res.Directive,
		})
	}

	switch res.Directive {
	case Continue:
	case Resync:
		m.syncLost(last, SyncResync)
		start := m.buf.byteStart
		m.findPreamble()
		m.preambleCount = resyncPreambleCount
		m.preambleStart = start
		m.preambleEnd = last.End
	default:
		m.findPreamble()
	}
}

// findPreamble discards the buffer and returns to preamble search.
func (m *FrameStateMachine) findPreamble() {
	m.state = FindPreamble
	m.preambleCount = 0
	m.buf.reset()
}

func (m *FrameStateMachine) syncLost(cell BitCell, reason SyncReason) {
	start := cell.Start
	if m.state == Data {
		start = m.buf.start
	} else if m.preambleCount > 0 {
		start = m.preambleStart
	}
	m.sink.SyncLost(SyncEvent{
		Start:  start,
		End:    cell.End,
		Reason: reason,
		State:  m.state,
		Count:  m.preambleCount,
	})
}
