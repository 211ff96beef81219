package dcc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultAverageEvery is the number of valid bits between AverageEvent reports.
const DefaultAverageEvery = 1024

// Config holds the decoder settings. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// Timing holds the bit windows in microseconds.
	Timing TimingOptions

	// MinPreambleBits is the number of ones required before a 0 starts a frame.
	MinPreambleBits int

	// Profile is the command decode profile name ("full" or "speed_only").
	Profile string

	// Legacy reproduces the accessory folding and function-mask quirks of
	// older tooling.
	Legacy bool

	// StrictDispatch applies the corrected short-address two-byte instruction
	// test. See ParserOptions.
	StrictDispatch bool

	// AverageEvery is the number of valid bits between AverageEvent reports.
	// Zero reports only when the stream ends.
	AverageEvery int
}

// DefaultConfig returns the standard decoder settings.
func DefaultConfig() Config {
	return Config{
		Timing:          DefaultTimingOptions(),
		MinPreambleBits: DefaultMinPreambleBits,
		Profile:         ProfileFull,
		AverageEvery:    DefaultAverageEvery,
	}
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds decoder counters.
type Stats struct {
	Bits            uint64
	InvalidBits     uint64
	EdgesSkipped    uint64
	Preambles       uint64
	Bytes           uint64
	Telegrams       uint64
	ChecksumErrors  uint64
	OversizeErrors  uint64
	UnknownCommands uint64
	Resyncs         uint64
	ShortPreambles  uint64
	SyncLost        uint64
}

// Decoder drives the pipeline: BitClassifier, FrameStateMachine and
// TelegramParser, reporting every stage to a Sink.
//
// Thread Safety:
//   - Run must be called from a single goroutine.
//   - Stats, SetLogger and Average are safe for concurrent use.
type Decoder struct {
	src        EdgeSource
	sampleRate uint64
	cfg        Config

	classifier *BitClassifier
	frame      *FrameStateMachine
	parser     *TelegramParser
	sink       Sink

	logger   Logger
	loggerMu sync.RWMutex

	bits            atomic.Uint64
	invalidBits     atomic.Uint64
	preambles       atomic.Uint64
	bytes           atomic.Uint64
	telegrams       atomic.Uint64
	checksumErrors  atomic.Uint64
	oversizeErrors  atomic.Uint64
	unknownCommands atomic.Uint64
	resyncs         atomic.Uint64
	shortPreambles  atomic.Uint64
	syncLost        atomic.Uint64

	periodSum    atomic.Uint64
	periodCount  atomic.Uint64
	sinceAverage int
}

// NewDecoder builds a decoder for src.
//
// Parameters:
//   - src: edge timestamps of the data channel
//   - cfg: decoder settings
//   - sink: event receiver, nil for none
//
// Returns:
//   - *Decoder: ready to Run
//   - error: ErrMissingSampleRate if src has no sample rate, ErrInvalidThresholds
//     or ErrUnknownProfile for bad settings. No edge is read on error.
func NewDecoder(src EdgeSource, cfg Config, sink Sink) (*Decoder, error) {
	rate := src.SampleRate()
	if rate == 0 {
		return nil, ErrMissingSampleRate
	}

	th, err := cfg.Timing.Thresholds(rate)
	if err != nil {
		return nil, err
	}

	profile, err := ProfileByName(cfg.Profile, cfg.Legacy)
	if err != nil {
		return nil, err
	}

	if sink == nil {
		sink = NopSink{}
	}

	d := &Decoder{
		src:        src,
		sampleRate: rate,
		cfg:        cfg,
		classifier: NewBitClassifier(src, th),
		parser:     NewTelegramParser(profile, ParserOptions{Legacy: cfg.Legacy, StrictDispatch: cfg.StrictDispatch}),
		sink:       sink,
	}
	d.frame = NewFrameStateMachine(d.parser, &countingSink{d: d, next: sink}, cfg.MinPreambleBits)
	return d, nil
}

// Run decodes until the source is exhausted or ctx is cancelled.
//
// Returns nil at io.EOF, ctx.Err() on cancellation, and the source error
// otherwise. The average bit period is reported before returning.
func (d *Decoder) Run(ctx context.Context) error {
	d.logInfo("dcc decoder started",
		"sample_rate", d.sampleRate,
		"profile", d.parser.Profile().Name(),
		"min_preamble_bits", d.frame.minPreamble,
	)
	defer d.reportAverage()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell, err := d.classifier.ReadBit(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.logInfo("dcc decoder reached end of capture", "bits", d.bits.Load())
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			d.logError("dcc decoder stopped", err)
			return fmt.Errorf("reading bit: %w", err)
		}

		d.Step(cell)
	}
}

// Step feeds one classified bit through the pipeline. It is exported so callers
// with their own bit source can drive the state machine directly.
func (d *Decoder) Step(cell BitCell) {
	d.bits.Add(1)
	d.sink.Bit(BitEvent{Cell: cell, SampleRate: d.sampleRate})

	if cell.Value == Invalid {
		d.invalidBits.Add(1)
	} else {
		d.periodSum.Add(cell.Duration())
		d.periodCount.Add(1)
		d.sinceAverage++
		if d.cfg.AverageEvery > 0 && d.sinceAverage >= d.cfg.AverageEvery {
			d.reportAverage()
		}
	}

	d.frame.Step(cell)
}

// State returns the framing state.
func (d *Decoder) State() State {
	return d.frame.State()
}

// Average returns the mean valid bit period in samples and its frequency in Hz.
// Both are zero before the first valid bit.
func (d *Decoder) Average() AverageEvent {
	count := d.periodCount.Load()
	if count == 0 {
		return AverageEvent{}
	}
	period := float64(d.periodSum.Load()) / float64(count)
	return AverageEvent{
		PeriodSamples: period,
		FrequencyHz:   float64(d.sampleRate) / period,
	}
}

func (d *Decoder) reportAverage() {
	d.sinceAverage = 0
	avg := d.Average()
	if avg.PeriodSamples == 0 {
		return
	}
	d.sink.Average(avg)
}

// Stats returns a snapshot of the decoder counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Bits:            d.bits.Load(),
		InvalidBits:     d.invalidBits.Load(),
		EdgesSkipped:    d.classifier.Skipped(),
		Preambles:       d.preambles.Load(),
		Bytes:           d.bytes.Load(),
		Telegrams:       d.telegrams.Load(),
		ChecksumErrors:  d.checksumErrors.Load(),
		OversizeErrors:  d.oversizeErrors.Load(),
		UnknownCommands: d.unknownCommands.Load(),
		Resyncs:         d.resyncs.Load(),
		ShortPreambles:  d.shortPreambles.Load(),
		SyncLost:        d.syncLost.Load(),
	}
}

// SetLogger sets the logger for the decoder.
func (d *Decoder) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Decoder) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

func (d *Decoder) logInfo(msg string, keysAndValues ...any) {
	if logger := d.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (d *Decoder) logDebug(msg string, keysAndValues ...any) {
	if logger := d.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (d *Decoder) logError(msg string, err error) {
	if logger := d.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// countingSink updates the decoder counters before forwarding frame events.
type countingSink struct {
	d    *Decoder
	next Sink
}

func (s *countingSink) Bit(e BitEvent) { s.next.Bit(e) }

func (s *countingSink) Preamble(e PreambleEvent) {
	s.d.preambles.Add(1)
	s.next.Preamble(e)
}

func (s *countingSink) Byte(e ByteEvent) {
	s.d.bytes.Add(1)
	s.next.Byte(e)
}

func (s *countingSink) Telegram(e TelegramEvent) {
	switch cmd := e.Command.(type) {
	case ChecksumError:
		s.d.checksumErrors.Add(1)
		s.d.logDebug("dcc checksum mismatch",
			"computed", cmd.Computed, "received", cmd.Received, "start", e.Start)
	case OversizeError:
		s.d.oversizeErrors.Add(1)
		s.d.logDebug("dcc oversize telegram", "length", cmd.Length, "start", e.Start)
	case Unknown:
		s.d.unknownCommands.Add(1)
		s.d.telegrams.Add(1)
	default:
		s.d.telegrams.Add(1)
	}
	s.next.Telegram(e)
}

func (s *countingSink) SyncLost(e SyncEvent) {
	s.d.syncLost.Add(1)
	switch e.Reason {
	case SyncResync:
		s.d.resyncs.Add(1)
	case SyncShortPreamble:
		s.d.shortPreambles.Add(1)
	}
	s.next.SyncLost(e)
}

func (s *countingSink) Average(e AverageEvent) { s.next.Average(e) }
