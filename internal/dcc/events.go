package dcc

// BitEvent reports one measured bit cell, including invalid ones. The period of
// the cell is Cell.Duration() samples.
type BitEvent struct {
	Cell       BitCell
	SampleRate uint64
}

// PeriodSeconds returns the cell length in seconds.
func (e BitEvent) PeriodSeconds() float64 {
	if e.SampleRate == 0 {
		return 0
	}
	return float64(e.Cell.Duration()) / float64(e.SampleRate)
}

// PreambleEvent reports a completed preamble run.
type PreambleEvent struct {
	Start uint64
	End   uint64
	Count int
}

// ByteEvent reports one assembled data byte. Index is the position within the
// telegram buffer.
type ByteEvent struct {
	Start uint64
	End   uint64
	Value byte
	Index int
}

// TelegramEvent reports a decoded telegram or a telegram-level error.
// Bytes is a copy owned by the receiver.
type TelegramEvent struct {
	Start     uint64
	End       uint64
	Bytes     []byte
	Command   Command
	Directive Directive
}

// SyncReason explains a loss of framing.
type SyncReason uint8

const (
	// SyncInvalidBit is an invalid bit timing while a preamble or telegram was
	// in progress.
	SyncInvalidBit SyncReason = iota
	// SyncShortPreamble is a 0 bit after too few preamble ones.
	SyncShortPreamble
	// SyncResync is a checksum failure whose last byte was taken as preamble.
	SyncResync
	// SyncIncomplete is a packet end bit before the bytes formed a telegram,
	// such as after a checksum failure at length 3 or 4.
	SyncIncomplete
)

// String returns the reason name.
func (r SyncReason) String() string {
	switch r {
	case SyncInvalidBit:
		return "invalid_bit"
	case SyncShortPreamble:
		return "short_preamble"
	case SyncResync:
		return "resync"
	case SyncIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// SyncEvent reports a recoverable loss of framing.
type SyncEvent struct {
	Start  uint64
	End    uint64
	Reason SyncReason
	State  State
	Count  int
}

// AverageEvent reports the running average of valid bit periods.
type AverageEvent struct {
	PeriodSamples float64
	FrequencyHz   float64
}

// Sink receives decoder output in stream order. Implementations must not retain
// the decoder's goroutine for long; network sinks should queue.
type Sink interface {
	Bit(BitEvent)
	Preamble(PreambleEvent)
	Byte(ByteEvent)
	Telegram(TelegramEvent)
	SyncLost(SyncEvent)
	Average(AverageEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Bit(BitEvent)           {}
func (NopSink) Preamble(PreambleEvent) {}
func (NopSink) Byte(ByteEvent)         {}
func (NopSink) Telegram(TelegramEvent) {}
func (NopSink) SyncLost(SyncEvent)     {}
func (NopSink) Average(AverageEvent)   {}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Bit(e BitEvent) {
	for _, s := range m {
		s.Bit(e)
	}
}

func (m MultiSink) Preamble(e PreambleEvent) {
	for _, s := range m {
		s.Preamble(e)
	}
}

func (m MultiSink) Byte(e ByteEvent) {
	for _, s := range m {
		s.Byte(e)
	}
}

func (m MultiSink) Telegram(e TelegramEvent) {
	for _, s := range m {
		s.Telegram(e)
	}
}

func (m MultiSink) SyncLost(e SyncEvent) {
	for _, s := range m {
		s.SyncLost(e)
	}
}

func (m MultiSink) Average(e AverageEvent) {
	for _, s := range m {
		s.Average(e)
	}
}
