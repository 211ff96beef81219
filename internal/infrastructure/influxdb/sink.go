package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

// PointWriter accepts points for asynchronous writing. *Client and the
// library's api.WriteAPI implement it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// SinkConfig holds configuration for the InfluxDB sink.
type SinkConfig struct {
	Writer PointWriter
	Tags   Tags

	// SampleRate converts sample positions to time offsets.
	SampleRate uint64

	// CaptureStart is the timestamp of sample 0. Points are stamped
	// CaptureStart plus their sample offset, so the relative timing of the
	// capture is preserved.
	CaptureStart time.Time
}

// Sink is a dcc.Sink writing telegram, sync and timing points. It must be
// used from the decoder goroutine only; the underlying write API batches
// without blocking.
type Sink struct {
	dcc.NopSink

	cfg        SinkConfig
	lastSample uint64
	written    uint64
}

// NewSink creates a sink. A zero CaptureStart means now.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.CaptureStart.IsZero() {
		cfg.CaptureStart = time.Now()
	}
	return &Sink{cfg: cfg}
}

// Timestamp converts a sample index to a point timestamp.
func (s *Sink) Timestamp(sample uint64) time.Time {
	if s.cfg.SampleRate == 0 {
		return s.cfg.CaptureStart
	}
	whole := sample / s.cfg.SampleRate
	frac := sample % s.cfg.SampleRate
	offset := time.Duration(whole)*time.Second +
		time.Duration(frac*uint64(time.Second)/s.cfg.SampleRate)
	return s.cfg.CaptureStart.Add(offset)
}

// Written returns the number of points handed to the writer.
func (s *Sink) Written() uint64 {
	return s.written
}

// Telegram implements dcc.Sink.
func (s *Sink) Telegram(e dcc.TelegramEvent) {
	s.lastSample = e.End
	s.write(TelegramPoint(e, s.cfg.Tags, s.Timestamp(e.Start)))
}

// SyncLost implements dcc.Sink.
func (s *Sink) SyncLost(e dcc.SyncEvent) {
	s.lastSample = e.End
	s.write(SyncPoint(e, s.cfg.Tags, s.Timestamp(e.Start)))
}

// Average implements dcc.Sink. The point is stamped at the end of the last
// telegram or sync event seen.
func (s *Sink) Average(e dcc.AverageEvent) {
	s.write(TimingPoint(e, s.cfg.Tags, s.Timestamp(s.lastSample)))
}

// WriteStats writes the decoder counters, stamped at the last event seen.
func (s *Sink) WriteStats(stats dcc.Stats) {
	s.write(DecoderPoint(stats, s.cfg.Tags, s.Timestamp(s.lastSample)))
}

func (s *Sink) write(p *write.Point) {
	if s.cfg.Writer == nil {
		return
	}
	s.cfg.Writer.WritePoint(p)
	s.written++
}
