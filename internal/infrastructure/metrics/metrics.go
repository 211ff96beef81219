package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

const namespace = "dccmon"

// Bit period buckets in microseconds, covering both half-bit windows of a
// full cell (a 1 is 2x58us, a 0 at least 2x100us) and the stretched zeros.
var bitPeriodBuckets = []float64{100, 116, 130, 160, 200, 240, 300, 400, 1000, 10000}

var preambleBuckets = []float64{10, 12, 14, 16, 17, 18, 20, 24, 30}

// Metrics holds the Prometheus collectors for one decoder.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	bits         *prometheus.CounterVec   // by value: one, zero, invalid
	bitPeriod    *prometheus.HistogramVec // by value
	preambles    prometheus.Counter
	preambleBits prometheus.Histogram
	bytes        prometheus.Counter
	telegrams    *prometheus.CounterVec // by kind
	syncLost     *prometheus.CounterVec // by reason
	averageHz    prometheus.Gauge
	framing      prometheus.Gauge // 1 while inside a telegram
}

// New creates and registers the decoder collectors. station is attached to
// every metric as a constant label.
func New(station string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"station": station}, reg))

	return &Metrics{
		registry: reg,
		factory:  factory,
		bits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bits_total",
				Help:      "Classified bit cells by value",
			},
			[]string{"value"},
		),
		bitPeriod: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bit_period_microseconds",
				Help:      "Length of classified bit cells in microseconds",
				Buckets:   bitPeriodBuckets,
			},
			[]string{"value"},
		),
		preambles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preambles_total",
			Help:      "Completed preambles",
		}),
		preambleBits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "preamble_bits",
			Help:      "Number of one bits per completed preamble",
			Buckets:   preambleBuckets,
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Assembled telegram bytes",
		}),
		telegrams: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegrams_total",
				Help:      "Telegrams by command kind, including checksum and oversize errors",
			},
			[]string{"kind"},
		),
		syncLost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_lost_total",
				Help:      "Framing losses by reason",
			},
			[]string{"reason"},
		),
		averageHz: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bit_frequency_hz",
			Help:      "Running average bit frequency",
		}),
		framing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_telegram",
			Help:      "1 while the decoder is reading telegram bytes, 0 while hunting for a preamble",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PublisherStats reports MQTT publish queue counters.
type PublisherStats func() (published, dropped, failed uint64)

// RegisterPublisher exposes MQTT publisher counters, read at scrape time.
func (m *Metrics) RegisterPublisher(stats PublisherStats) {
	counter := func(name, help string, pick func(p, d, f uint64) uint64) {
		m.factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}
	counter("published_total", "MQTT messages published",
		func(p, _, _ uint64) uint64 { return p })
	counter("dropped_total", "MQTT messages dropped because the queue was full or the broker unreachable",
		func(_, d, _ uint64) uint64 { return d })
	counter("failed_total", "MQTT publish errors",
		func(_, _, f uint64) uint64 { return f })
}

func bitLabel(b dcc.Bit) string {
	switch b {
	case dcc.One:
		return "one"
	case dcc.Zero:
		return "zero"
	default:
		return "invalid"
	}
}

// Bit implements dcc.Sink.
func (m *Metrics) Bit(e dcc.BitEvent) {
	label := bitLabel(e.Cell.Value)
	m.bits.WithLabelValues(label).Inc()
	if e.SampleRate > 0 {
		m.bitPeriod.WithLabelValues(label).Observe(e.PeriodSeconds() * 1e6)
	}
}

// Preamble implements dcc.Sink.
func (m *Metrics) Preamble(e dcc.PreambleEvent) {
	m.preambles.Inc()
	m.preambleBits.Observe(float64(e.Count))
	m.framing.Set(1)
}

// Byte implements dcc.Sink.
func (m *Metrics) Byte(dcc.ByteEvent) {
	m.bytes.Inc()
}

// Telegram implements dcc.Sink.
func (m *Metrics) Telegram(e dcc.TelegramEvent) {
	kind := dcc.KindUnknown
	if e.Command != nil {
		kind = e.Command.Kind()
	}
	m.telegrams.WithLabelValues(kind.String()).Inc()
	m.framing.Set(0)
}

// SyncLost implements dcc.Sink.
func (m *Metrics) SyncLost(e dcc.SyncEvent) {
	m.syncLost.WithLabelValues(e.Reason.String()).Inc()
	m.framing.Set(0)
}

// Average implements dcc.Sink.
func (m *Metrics) Average(e dcc.AverageEvent) {
	m.averageHz.Set(e.FrequencyHz)
}
