package dcc

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func newTestDecoder(t *testing.T, bits string, cfg Config, sink Sink) (*Decoder, *sliceSource) {
	t.Helper()
	src := &sliceSource{edges: edgesFor(bits), rate: testRate}
	d, err := NewDecoder(src, cfg, sink)
	if err != nil {
		t.Fatalf("NewDecoder() error: %v", err)
	}
	return d, src
}

func TestNewDecoderMissingSampleRate(t *testing.T) {
	src := &sliceSource{edges: edgesFor("1111"), rate: 0}

	d, err := NewDecoder(src, DefaultConfig(), nil)
	if !errors.Is(err, ErrMissingSampleRate) {
		t.Fatalf("NewDecoder() error = %v, want ErrMissingSampleRate", err)
	}
	if d != nil {
		t.Error("NewDecoder() returned a decoder without sample rate")
	}
	if src.reads != 0 {
		t.Errorf("source read %d times, want 0", src.reads)
	}
}

func TestNewDecoderConfigErrors(t *testing.T) {
	src := &sliceSource{rate: testRate}

	cfg := DefaultConfig()
	cfg.Profile = "bogus"
	if _, err := NewDecoder(src, cfg, nil); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("NewDecoder(bogus profile) error = %v, want ErrUnknownProfile", err)
	}

	cfg = DefaultConfig()
	cfg.Timing.OneMaxUs = 300
	if _, err := NewDecoder(src, cfg, nil); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("NewDecoder(overlap) error = %v, want ErrInvalidThresholds", err)
	}
}

func TestDecoderScenarioSpeedTelegram(t *testing.T) {
	sink := &recordingSink{}
	bits := packetBits(testPreamble, 0x03, 0x4A, 0x49) + packetBits(testPreamble, 0x03, 0x6A, 0x69)
	d, _ := newTestDecoder(t, bits, DefaultConfig(), sink)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []Command{
		LocoSpeedDirection{Address: Address{Kind: AddressShort, Value: 3}, Mode: Speed28, Speed: 10, Direction: Reverse},
		LocoSpeedDirection{Address: Address{Kind: AddressShort, Value: 3}, Mode: Speed28, Speed: 10, Direction: Forward},
	}
	if got := sink.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %+v, want %+v", got, want)
	}

	stats := d.Stats()
	if stats.Telegrams != 2 || stats.Preambles != 2 || stats.Bytes != 6 {
		t.Errorf("Stats() = %+v, want 2 telegrams, 2 preambles, 6 bytes", stats)
	}
	if stats.Bits != uint64(len(bits)) {
		t.Errorf("Stats().Bits = %d, want %d", stats.Bits, len(bits))
	}
	if len(sink.bits) != len(bits) {
		t.Errorf("bit events = %d, want %d", len(sink.bits), len(bits))
	}
}

func TestDecoderScenarioResync(t *testing.T) {
	sink := &recordingSink{}
	corrupt := packetBits(testPreamble, 0xC4, 0xD2, 0x3F, 0x8B, 0xFF)
	bits := corrupt[:len(corrupt)-1] + packetBits(8, 0xFF, 0x00)
	d, _ := newTestDecoder(t, bits, DefaultConfig(), sink)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	stats := d.Stats()
	if stats.Resyncs != 1 || stats.ChecksumErrors != 0 {
		t.Errorf("Stats() = %+v, want 1 resync and no checksum error", stats)
	}
	if got := sink.commands(); len(got) != 1 || got[0] != Command(Idle{}) {
		t.Errorf("commands = %+v, want idle", got)
	}
}

func TestDecoderSinkDoesNotAffectDecoding(t *testing.T) {
	bits := packetBits(testPreamble, 0xFF, 0x00) +
		"1x0" +
		packetBits(20, withChecksum(0x81, 0xEB)...) +
		packetBits(testPreamble, 0xC4, 0xD2, 0x3F, 0x8B, 0x00) +
		packetBits(testPreamble, withChecksum(0xC4, 0xD2, 0xDE, 0x08)...)

	withSink, _ := newTestDecoder(t, bits, DefaultConfig(), &recordingSink{})
	without, _ := newTestDecoder(t, bits, DefaultConfig(), nil)

	ctx := context.Background()
	if err := withSink.Run(ctx); err != nil {
		t.Fatalf("Run() with sink error: %v", err)
	}
	if err := without.Run(ctx); err != nil {
		t.Fatalf("Run() without sink error: %v", err)
	}
	if withSink.Stats() != without.Stats() {
		t.Errorf("Stats() differ: %+v vs %+v", withSink.Stats(), without.Stats())
	}
	if got := without.Stats(); got.Telegrams != 3 || got.ChecksumErrors != 1 || got.InvalidBits != 1 {
		t.Errorf("Stats() = %+v, want 3 telegrams, 1 checksum error, 1 invalid bit", got)
	}
}

func TestDecoderAverage(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.AverageEvery = 10
	d, _ := newTestDecoder(t, strings.Repeat("1", 25)+"x", cfg, sink)

	if got := d.Average(); got != (AverageEvent{}) {
		t.Errorf("Average() before Run = %+v, want zero", got)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Two periodic reports plus the final one.
	if len(sink.averages) != 3 {
		t.Fatalf("average events = %d, want 3", len(sink.averages))
	}
	got := sink.averages[2]
	if got.PeriodSamples != 2*halfOne {
		t.Errorf("PeriodSamples = %v, want %d", got.PeriodSamples, 2*halfOne)
	}
	if want := float64(testRate) / (2 * halfOne); math.Abs(got.FrequencyHz-want) > 1e-9 {
		t.Errorf("FrequencyHz = %v, want %v", got.FrequencyHz, want)
	}
}

func TestDecoderRunCancelled(t *testing.T) {
	d, src := newTestDecoder(t, packetBits(testPreamble, 0xFF, 0x00), DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if src.reads != 0 {
		t.Errorf("source read %d times after cancel, want 0", src.reads)
	}
}

func TestDecoderRunSourceError(t *testing.T) {
	src := &sliceSource{edges: []uint64{500, 100}, rate: testRate}
	d, err := NewDecoder(src, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDecoder() error: %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrNonMonotonicEdge) {
		t.Errorf("Run() = %v, want ErrNonMonotonicEdge", err)
	}
}

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *captureLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.record(msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.record(msg) }

func TestDecoderSetLogger(t *testing.T) {
	d, _ := newTestDecoder(t, packetBits(testPreamble, 0xC4, 0xD2, 0x3F, 0x8B, 0x00), DefaultConfig(), nil)
	logger := &captureLogger{}
	d.SetLogger(logger)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{
		"dcc decoder started",
		"dcc checksum mismatch",
		"dcc decoder reached end of capture",
	}
	if !reflect.DeepEqual(logger.msgs, want) {
		t.Errorf("log messages = %v, want %v", logger.msgs, want)
	}
}
