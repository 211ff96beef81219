package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

type mockStats struct {
	mu    sync.Mutex
	stats dcc.Stats
}

func (m *mockStats) Stats() dcc.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *mockStats) set(s dcc.Stats) {
	m.mu.Lock()
	m.stats = s
	m.mu.Unlock()
}

func newTestReporter(t *testing.T, pub Publisher, decoder StatsSource) *HealthReporter {
	t.Helper()
	h, err := NewHealthReporter(HealthReporterConfig{
		Station:   "yard",
		Session:   "session-1",
		Version:   "test",
		Interval:  time.Hour,
		Publisher: pub,
		Topics:    testTopics,
		Decoder:   decoder,
	})
	if err != nil {
		t.Fatalf("NewHealthReporter() error = %v", err)
	}
	return h
}

func TestNewHealthReporterRequiresPublisher(t *testing.T) {
	if _, err := NewHealthReporter(HealthReporterConfig{}); !errors.Is(err, ErrNoPublisher) {
		t.Errorf("error = %v, want ErrNoPublisher", err)
	}
}

func TestNewHealthReporterDefaults(t *testing.T) {
	h, err := NewHealthReporter(HealthReporterConfig{Publisher: newMockPublisher(true), Station: "loft"})
	if err != nil {
		t.Fatal(err)
	}
	if h.interval != DefaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.interval, DefaultHealthInterval)
	}
	if got := h.topics.Health(); got != "dcc/loft/health" {
		t.Errorf("health topic = %q", got)
	}
}

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		prev, curr dcc.Stats
		want       HealthStatus
		reason     string
	}{
		{
			name:      "mqtt down",
			connected: false,
			curr:      dcc.Stats{Bits: 100, Telegrams: 1},
			want:      HealthDegraded,
			reason:    "mqtt disconnected",
		},
		{
			name:      "no signal",
			connected: true,
			prev:      dcc.Stats{Bits: 100, Telegrams: 1},
			curr:      dcc.Stats{Bits: 100, Telegrams: 1},
			want:      HealthDegraded,
			reason:    "no signal",
		},
		{
			name:      "noisy",
			connected: true,
			curr:      dcc.Stats{Bits: 100, InvalidBits: 60, Telegrams: 1},
			want:      HealthDegraded,
			reason:    "60 of 100 bits invalid",
		},
		{
			name:      "bits but no telegrams",
			connected: true,
			curr:      dcc.Stats{Bits: 100},
			want:      HealthDegraded,
			reason:    "no telegrams decoded",
		},
		{
			name:      "healthy",
			connected: true,
			prev:      dcc.Stats{Bits: 100, Telegrams: 2},
			curr:      dcc.Stats{Bits: 300, InvalidBits: 5, Telegrams: 9},
			want:      HealthHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &mockStats{}
			h := newTestReporter(t, newMockPublisher(tt.connected), stats)
			h.last = tt.prev
			stats.set(tt.curr)

			got, reason := h.determineStatus()
			if got != tt.want || reason != tt.reason {
				t.Errorf("determineStatus() = %s %q, want %s %q", got, reason, tt.want, tt.reason)
			}
		})
	}
}

func TestDetermineStatusWithoutDecoder(t *testing.T) {
	h := newTestReporter(t, newMockPublisher(true), nil)
	if got, _ := h.determineStatus(); got != HealthHealthy {
		t.Errorf("determineStatus() = %s, want healthy", got)
	}
}

func TestPublishStarting(t *testing.T) {
	pub := newMockPublisher(true)
	h := newTestReporter(t, pub, &mockStats{})

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}

	msgs := pub.getMessages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "dcc/yard/health" || !msgs[0].retained || msgs[0].qos != 1 {
		t.Errorf("health message = %s qos=%d retained=%v", msgs[0].topic, msgs[0].qos, msgs[0].retained)
	}
	hm := decode[HealthMessage](t, msgs[0].payload)
	if hm.Status != HealthStarting || hm.Station != "yard" || hm.Version != "test" || hm.Decoder == nil {
		t.Errorf("health = %+v", hm)
	}
}

func TestHealthIncludesSinkStats(t *testing.T) {
	pub := newMockPublisher(true)
	sink := newTestSink(t, pub, 4)
	sink.Average(dcc.AverageEvent{FrequencyHz: 8000})

	h, err := NewHealthReporter(HealthReporterConfig{
		Station:   "yard",
		Publisher: pub,
		Topics:    testTopics,
		Sink:      sink,
	})
	if err != nil {
		t.Fatal(err)
	}

	msg := h.buildMessage(HealthHealthy, "")
	if msg.Publisher == nil || msg.AverageHz != 8000 {
		t.Errorf("message = %+v", msg)
	}
}

func TestHealthStartStop(t *testing.T) {
	pub := newMockPublisher(true)
	stats := &mockStats{}
	stats.set(dcc.Stats{Bits: 10, Telegrams: 1})
	h := newTestReporter(t, pub, stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	h.Stop()
	h.Stop()

	msgs := pub.getMessages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want initial and stopping", len(msgs))
	}
	first := decode[HealthMessage](t, msgs[0].payload)
	if first.Status != HealthHealthy {
		t.Errorf("initial status = %s (%s)", first.Status, first.Reason)
	}
	last := decode[HealthMessage](t, msgs[1].payload)
	if last.Status != HealthStopping || !strings.Contains(last.Reason, "stopping") {
		t.Errorf("final status = %+v", last)
	}
}

func TestHealthPublishError(t *testing.T) {
	pub := newMockPublisher(true)
	pub.err = errors.New("offline")
	h := newTestReporter(t, pub, nil)

	if err := h.PublishNow(); err == nil {
		t.Error("PublishNow() error = nil, want publisher error")
	}
}
