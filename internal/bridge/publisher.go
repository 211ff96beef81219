package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/mqtt"
)

// DefaultQueueSize is used when SinkConfig.QueueSize is not positive.
const DefaultQueueSize = 1024

// Publisher is the subset of the MQTT client used by the bridge.
// *mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SinkConfig holds configuration for the MQTT sink.
type SinkConfig struct {
	// Publisher is the MQTT client. Required.
	Publisher Publisher

	// Topics selects the station topic tree.
	Topics mqtt.Topics

	// Session identifies this capture run in every message.
	Session string

	// SampleRate converts sample positions to seconds.
	SampleRate uint64

	// QueueSize bounds the messages waiting for the broker.
	// Default: 1024.
	QueueSize int

	// QoS for telegram, sync and state messages.
	QoS byte

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Sink is a dcc.Sink that publishes telegrams, framing losses and
// per-address state to MQTT through a bounded queue.
//
// Bit, preamble and byte events are not published.
type Sink struct {
	dcc.NopSink

	cfg     SinkConfig
	queue   chan outbound
	tracker *stateTracker
	now     func() time.Time

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	averageHz atomic.Uint64 // math.Float64bits

	started  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewSink creates a sink. Call Start to begin publishing; messages queued
// before Start are kept until the queue is full.
func NewSink(cfg SinkConfig) (*Sink, error) {
	if cfg.Publisher == nil {
		return nil, ErrNoPublisher
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Topics.Prefix == "" || cfg.Topics.Station == "" {
		cfg.Topics = mqtt.NewTopics(cfg.Topics.Prefix, cfg.Topics.Station)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Sink{
		cfg:     cfg,
		queue:   make(chan outbound, cfg.QueueSize),
		tracker: newStateTracker(cfg.Topics.Station),
		now:     now,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the publishing goroutine. It returns when ctx is cancelled
// or Stop is called, publishing whatever is still queued first.
func (s *Sink) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.publishLoop(ctx)
}

// Stop flushes the queue and stops the publishing goroutine. Safe to call
// more than once. No dcc.Sink method may be called after Stop.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if !s.started.Load() {
			s.drain()
		}
	})
}

// SetLogger sets the logger for the sink.
func (s *Sink) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// Stats returns the publish queue counters.
func (s *Sink) Stats() PublisherStatistics {
	return PublisherStatistics{
		Queued:    len(s.queue),
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}

// AverageHz returns the last reported bit frequency.
func (s *Sink) AverageHz() float64 {
	return math.Float64frombits(s.averageHz.Load())
}

// Telegram implements dcc.Sink.
func (s *Sink) Telegram(e dcc.TelegramEvent) {
	now := s.now()
	msg := NewTelegramMessage(e, s.cfg.SampleRate, s.cfg.Topics.Station, s.cfg.Session, now)
	s.enqueueJSON(s.cfg.Topics.Telegram(msg.Kind), msg, false)

	if e.Command == nil {
		return
	}
	if st, changed := s.tracker.update(e.Command, now); changed {
		s.enqueueJSON(s.cfg.Topics.State(st.Category, st.Address.Label()), st, true)
	}
}

// SyncLost implements dcc.Sink.
func (s *Sink) SyncLost(e dcc.SyncEvent) {
	msg := NewSyncMessage(e, s.cfg.SampleRate, s.cfg.Topics.Station, s.cfg.Session, s.now())
	s.enqueueJSON(s.cfg.Topics.Sync(), msg, false)
}

// Average implements dcc.Sink.
func (s *Sink) Average(e dcc.AverageEvent) {
	s.averageHz.Store(math.Float64bits(e.FrequencyHz))
}

func (s *Sink) enqueueJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.failed.Add(1)
		s.logError("failed to encode mqtt message", fmt.Errorf("%w: %w", ErrEncodingFailed, err))
		return
	}

	select {
	case s.queue <- outbound{topic: topic, payload: payload, retained: retained}:
	default:
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			s.logWarn("mqtt publish queue full, dropping messages",
				"dropped", n, "queue_size", cap(s.queue))
		}
	}
}

func (s *Sink) publishLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case <-s.done:
			s.drain()
			return
		case msg := <-s.queue:
			s.send(msg)
		}
	}
}

// drain publishes what is queued without waiting for new messages.
func (s *Sink) drain() {
	for {
		select {
		case msg := <-s.queue:
			s.send(msg)
		default:
			return
		}
	}
}

func (s *Sink) send(msg outbound) {
	if !s.cfg.Publisher.IsConnected() {
		s.dropped.Add(1)
		return
	}
	if err := s.cfg.Publisher.Publish(msg.topic, msg.payload, s.cfg.QoS, msg.retained); err != nil {
		s.failed.Add(1)
		s.logError("failed to publish mqtt message", err, "topic", msg.topic)
		return
	}
	s.published.Add(1)
}

func (s *Sink) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *Sink) logWarn(msg string, keysAndValues ...any) {
	if logger := s.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (s *Sink) logError(msg string, err error, keysAndValues ...any) {
	if logger := s.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
