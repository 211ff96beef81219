package bridge

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/mqtt"
)

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	messages  []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) setConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

var (
	testTopics = mqtt.NewTopics("dcc", "yard")
	fixedNow   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

const testSampleRate = 1_000_000

func newTestSink(t *testing.T, pub Publisher, queueSize int) *Sink {
	t.Helper()
	sink, err := NewSink(SinkConfig{
		Publisher:  pub,
		Topics:     testTopics,
		Session:    "session-1",
		SampleRate: testSampleRate,
		QueueSize:  queueSize,
		QoS:        1,
		Now:        func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	return sink
}

func speedEvent(addr uint16, speed int) dcc.TelegramEvent {
	return dcc.TelegramEvent{
		Start:     1_000_000,
		End:       1_004_000,
		Bytes:     []byte{byte(addr), 0x60, byte(addr) ^ 0x60},
		Directive: dcc.Accept,
		Command: dcc.LocoSpeedDirection{
			Address:   dcc.Address{Kind: dcc.AddressShort, Value: addr},
			Mode:      dcc.Speed28,
			Speed:     speed,
			Direction: dcc.Forward,
		},
	}
}

func functionEvent(addr uint16, mask uint32) dcc.TelegramEvent {
	return dcc.TelegramEvent{
		Start:     2_000_000,
		End:       2_004_000,
		Bytes:     []byte{byte(addr), 0x90, byte(addr) ^ 0x90},
		Directive: dcc.Accept,
		Command: dcc.FunctionGroup{
			Address:   dcc.Address{Kind: dcc.AddressShort, Value: addr},
			Group:     dcc.GroupF0F4,
			Functions: mask,
		},
	}
}

func idleEvent() dcc.TelegramEvent {
	return dcc.TelegramEvent{
		Start:     0,
		End:       4000,
		Bytes:     []byte{0xFF, 0x00, 0xFF},
		Directive: dcc.Accept,
		Command:   dcc.Idle{},
	}
}

func decode[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		t.Fatalf("payload %s: %v", payload, err)
	}
	return v
}
