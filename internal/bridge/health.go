package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/mqtt"
)

// DefaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const DefaultHealthInterval = 30 * time.Second

// maxInvalidRatio is the share of invalid bits above which the signal is
// reported as degraded.
const maxInvalidRatio = 0.5

// StatsSource provides decoder counters. *dcc.Decoder implements it.
type StatsSource interface {
	Stats() dcc.Stats
}

// HealthReporter publishes a retained health message at a fixed interval.
type HealthReporter struct {
	station   string
	session   string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	topics    mqtt.Topics
	decoder   StatsSource
	sink      *Sink

	// last is the decoder snapshot of the previous report.
	last   dcc.Stats
	lastMu sync.Mutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Station string
	Session string
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client. Required.
	Publisher Publisher

	Topics mqtt.Topics

	// Decoder provides bit and telegram counters (optional).
	Decoder StatsSource

	// Sink provides publish queue counters and the bit frequency (optional).
	Sink *Sink
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) (*HealthReporter, error) {
	if cfg.Publisher == nil {
		return nil, ErrNoPublisher
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	topics := cfg.Topics
	if topics.Prefix == "" || topics.Station == "" {
		topics = mqtt.NewTopics(topics.Prefix, cfg.Station)
	}

	return &HealthReporter{
		station:   topics.Station,
		session:   cfg.Session,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		topics:    topics,
		decoder:   cfg.Decoder,
		sink:      cfg.Sink,
		done:      make(chan struct{}),
	}, nil
}

// Start begins periodic health reporting until ctx is cancelled or Stop is
// called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status with the
// closing counters. Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publishStatus(HealthStopping, "monitor stopping"); err != nil {
			h.logError("failed to publish final health", err)
		}
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "monitor starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus compares the decoder counters with the previous report.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if !h.publisher.IsConnected() {
		return HealthDegraded, "mqtt disconnected"
	}
	if h.decoder == nil {
		return HealthHealthy, ""
	}

	current := h.decoder.Stats()
	h.lastMu.Lock()
	prev := h.last
	h.last = current
	h.lastMu.Unlock()

	bits := current.Bits - prev.Bits
	if bits == 0 {
		return HealthDegraded, "no signal"
	}
	invalid := current.InvalidBits - prev.InvalidBits
	if float64(invalid)/float64(bits) > maxInvalidRatio {
		return HealthDegraded, fmt.Sprintf("%d of %d bits invalid", invalid, bits)
	}
	if current.Telegrams == prev.Telegrams {
		return HealthDegraded, "no telegrams decoded"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Station:       h.station,
		Session:       h.session,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.decoder != nil {
		msg.Decoder = NewDecoderStatistics(h.decoder.Stats())
	}
	if h.sink != nil {
		stats := h.sink.Stats()
		msg.Publisher = &stats
		msg.AverageHz = h.sink.AverageHz()
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}
	return h.publisher.Publish(h.topics.Health(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
