package bridge

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

// MQTT message types published by dccmon. Timestamps are wall-clock UTC at
// publication; capture positions are given in samples and seconds from the
// start of the capture.

// TelegramMessage describes one decoded telegram.
// Topic: {prefix}/{station}/telegram/{kind}
// QoS: configured, Retained: No
type TelegramMessage struct {
	Station   string    `json:"station"`
	Session   string    `json:"session"`
	Timestamp time.Time `json:"timestamp"`

	// Kind is the command kind name (e.g. "loco_speed", "checksum_error").
	Kind string `json:"kind"`

	// Directive is the parser outcome: "accept", "reject" or "resync".
	Directive string `json:"directive"`

	StartSample  uint64  `json:"start_sample"`
	EndSample    uint64  `json:"end_sample"`
	StartSeconds float64 `json:"start_seconds"`

	// Bytes is the raw telegram as space separated hex, e.g. "4A 3C 76".
	Bytes string `json:"bytes"`

	Address   *AddressInfo   `json:"address,omitempty"`
	Speed     *SpeedInfo     `json:"speed,omitempty"`
	Functions *FunctionInfo  `json:"functions,omitempty"`
	Accessory *AccessoryInfo `json:"accessory,omitempty"`
	Analog    *AnalogInfo    `json:"analog,omitempty"`
	Checksum  *ChecksumInfo  `json:"checksum,omitempty"`

	// Length is set for oversize telegrams.
	Length int `json:"length,omitempty"`

	// Undefined is set when the address decoded but the command did not.
	Undefined bool `json:"undefined,omitempty"`
}

// AddressInfo is a decoded address.
type AddressInfo struct {
	Kind  string `json:"kind"`
	Value uint16 `json:"value"`
}

// Label returns the address as used in state topics, e.g. "short-3" or
// "broadcast".
func (a AddressInfo) Label() string {
	if a.Kind == dcc.AddressBroadcast.String() {
		return a.Kind
	}
	return fmt.Sprintf("%s-%d", a.Kind, a.Value)
}

// SpeedInfo is the payload of a speed and direction command.
type SpeedInfo struct {
	Steps         int    `json:"steps"`
	Speed         int    `json:"speed"`
	Direction     string `json:"direction"`
	EmergencyStop bool   `json:"emergency_stop,omitempty"`
}

// FunctionInfo is the payload of a locomotive function group command.
type FunctionInfo struct {
	Group   string `json:"group"`
	Mask    uint32 `json:"mask"`
	Enabled []int  `json:"enabled"`
}

// AccessoryInfo is the payload of an accessory output command. Mask is only
// used by extended accessory commands.
type AccessoryInfo struct {
	Group    string `json:"group"`
	Output   uint8  `json:"output"`
	Inductor uint8  `json:"inductor"`
	Active   bool   `json:"active"`
	Mask     uint32 `json:"mask,omitempty"`
}

// AnalogInfo is the payload of an analog output command.
type AnalogInfo struct {
	Command uint8 `json:"command"`
	Type    uint8 `json:"type"`
	Value   uint8 `json:"value"`
}

// ChecksumInfo reports a failed error-detection byte.
type ChecksumInfo struct {
	Computed uint8 `json:"computed"`
	Received uint8 `json:"received"`
}

// SyncMessage reports a loss of framing.
// Topic: {prefix}/{station}/sync
type SyncMessage struct {
	Station      string    `json:"station"`
	Session      string    `json:"session"`
	Timestamp    time.Time `json:"timestamp"`
	Reason       string    `json:"reason"`
	State        string    `json:"state"`
	Count        int       `json:"count"`
	StartSample  uint64    `json:"start_sample"`
	EndSample    uint64    `json:"end_sample"`
	StartSeconds float64   `json:"start_seconds"`
}

// HealthStatus represents the operational status of the monitor.
type HealthStatus string

const (
	// HealthHealthy indicates bits are decoding and MQTT is connected.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the monitor runs with issues (see Reason).
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting is published once before the first report.
	HealthStarting HealthStatus = "starting"

	// HealthStopping is published on shutdown.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports decoder and publisher statistics.
// Topic: {prefix}/{station}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Station       string       `json:"station"`
	Session       string       `json:"session"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// AverageHz is the running bit frequency, 0 until the first report.
	AverageHz float64 `json:"average_hz"`

	Decoder   *DecoderStatistics   `json:"decoder,omitempty"`
	Publisher *PublisherStatistics `json:"publisher,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// DecoderStatistics mirrors dcc.Stats.
type DecoderStatistics struct {
	Bits            uint64 `json:"bits"`
	InvalidBits     uint64 `json:"invalid_bits"`
	EdgesSkipped    uint64 `json:"edges_skipped"`
	Preambles       uint64 `json:"preambles"`
	Bytes           uint64 `json:"bytes"`
	Telegrams       uint64 `json:"telegrams"`
	ChecksumErrors  uint64 `json:"checksum_errors"`
	OversizeErrors  uint64 `json:"oversize_errors"`
	UnknownCommands uint64 `json:"unknown_commands"`
	Resyncs         uint64 `json:"resyncs"`
	ShortPreambles  uint64 `json:"short_preambles"`
	SyncLost        uint64 `json:"sync_lost"`
}

// PublisherStatistics reports the state of the publish queue.
type PublisherStatistics struct {
	Queued    int    `json:"queued"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

func seconds(sample, rate uint64) float64 {
	if rate == 0 {
		return 0
	}
	return float64(sample) / float64(rate)
}

func addressInfo(a dcc.Address) *AddressInfo {
	if a.Kind == dcc.AddressNone {
		return nil
	}
	return &AddressInfo{Kind: a.Kind.String(), Value: a.Value}
}

// NewTelegramMessage builds the message for a telegram event.
func NewTelegramMessage(e dcc.TelegramEvent, sampleRate uint64, station, session string, now time.Time) TelegramMessage {
	msg := TelegramMessage{
		Station:      station,
		Session:      session,
		Timestamp:    now.UTC(),
		Directive:    e.Directive.String(),
		StartSample:  e.Start,
		EndSample:    e.End,
		StartSeconds: seconds(e.Start, sampleRate),
		Bytes:        fmt.Sprintf("% X", e.Bytes),
	}
	if e.Command == nil {
		msg.Kind = dcc.KindUnknown.String()
		return msg
	}
	msg.Kind = e.Command.Kind().String()

	switch cmd := e.Command.(type) {
	case dcc.LocoSpeedDirection:
		msg.Address = addressInfo(cmd.Address)
		msg.Speed = speedInfo(cmd)
	case dcc.FunctionGroup:
		msg.Address = addressInfo(cmd.Address)
		if isAccessoryGroup(cmd.Group) {
			msg.Accessory = accessoryInfo(cmd)
		} else {
			msg.Functions = functionInfo(cmd)
		}
	case dcc.AccessoryOrAnalog:
		msg.Analog = &AnalogInfo{Command: cmd.Command, Type: cmd.Type, Value: cmd.Value}
	case dcc.Unknown:
		msg.Address = addressInfo(cmd.Address)
		msg.Undefined = cmd.Undefined
	case dcc.ChecksumError:
		msg.Checksum = &ChecksumInfo{Computed: cmd.Computed, Received: cmd.Received}
	case dcc.OversizeError:
		msg.Length = cmd.Length
	}
	return msg
}

// NewSyncMessage builds the message for a framing loss.
func NewSyncMessage(e dcc.SyncEvent, sampleRate uint64, station, session string, now time.Time) SyncMessage {
	return SyncMessage{
		Station:      station,
		Session:      session,
		Timestamp:    now.UTC(),
		Reason:       e.Reason.String(),
		State:        e.State.String(),
		Count:        e.Count,
		StartSample:  e.Start,
		EndSample:    e.End,
		StartSeconds: seconds(e.Start, sampleRate),
	}
}

// NewDecoderStatistics converts decoder counters for publication.
func NewDecoderStatistics(s dcc.Stats) *DecoderStatistics {
	return &DecoderStatistics{
		Bits:            s.Bits,
		InvalidBits:     s.InvalidBits,
		EdgesSkipped:    s.EdgesSkipped,
		Preambles:       s.Preambles,
		Bytes:           s.Bytes,
		Telegrams:       s.Telegrams,
		ChecksumErrors:  s.ChecksumErrors,
		OversizeErrors:  s.OversizeErrors,
		UnknownCommands: s.UnknownCommands,
		Resyncs:         s.Resyncs,
		ShortPreambles:  s.ShortPreambles,
		SyncLost:        s.SyncLost,
	}
}

func isAccessoryGroup(g dcc.FunctionGroupID) bool {
	return g == dcc.GroupAccessory || g == dcc.GroupAccessoryExtended
}

func speedInfo(cmd dcc.LocoSpeedDirection) *SpeedInfo {
	return &SpeedInfo{
		Steps:         int(cmd.Mode),
		Speed:         cmd.Speed,
		Direction:     cmd.Direction.String(),
		EmergencyStop: cmd.EmergencyStop,
	}
}

func functionInfo(cmd dcc.FunctionGroup) *FunctionInfo {
	enabled := cmd.Enabled()
	if enabled == nil {
		enabled = []int{}
	}
	return &FunctionInfo{
		Group:   cmd.Group.String(),
		Mask:    cmd.Functions,
		Enabled: enabled,
	}
}

func accessoryInfo(cmd dcc.FunctionGroup) *AccessoryInfo {
	info := &AccessoryInfo{
		Group:    cmd.Group.String(),
		Output:   cmd.Output,
		Inductor: cmd.Inductor,
		Active:   cmd.Active,
	}
	if cmd.Group == dcc.GroupAccessoryExtended {
		info.Mask = cmd.Functions
	}
	return info
}
