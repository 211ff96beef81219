package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

// Measurement names written by dccmon.
const (
	MeasurementTelegram = "dcc_telegram"
	MeasurementSync     = "dcc_sync"
	MeasurementTiming   = "dcc_timing"
	MeasurementDecoder  = "dcc_decoder"
)

// Tags common to every point of one capture run.
type Tags struct {
	Station string
	Session string
}

func (t Tags) base() map[string]string {
	tags := map[string]string{"station": t.Station}
	if t.Session != "" {
		tags["session"] = t.Session
	}
	return tags
}

// TelegramPoint builds a dcc_telegram point. Address and command kind are
// tags; the decoded values are fields.
//
//	dcc_telegram,address=3,address_kind=short,kind=loco_speed,station=yard speed=10i,direction="forward",...
func TelegramPoint(e dcc.TelegramEvent, tags Tags, ts time.Time) *write.Point {
	t := tags.base()
	fields := map[string]interface{}{
		"length":       int64(len(e.Bytes)),
		"start_sample": int64(e.Start),
		"end_sample":   int64(e.End),
	}

	kind := dcc.KindUnknown
	if e.Command != nil {
		kind = e.Command.Kind()
	}
	t["kind"] = kind.String()
	t["directive"] = e.Directive.String()

	setAddress := func(a dcc.Address) {
		if a.Kind == dcc.AddressNone {
			return
		}
		t["address_kind"] = a.Kind.String()
		t["address"] = a.String()
	}

	switch cmd := e.Command.(type) {
	case dcc.LocoSpeedDirection:
		setAddress(cmd.Address)
		fields["speed"] = int64(cmd.Speed)
		fields["steps"] = int64(cmd.Mode)
		fields["direction"] = cmd.Direction.String()
		fields["emergency_stop"] = cmd.EmergencyStop
	case dcc.FunctionGroup:
		setAddress(cmd.Address)
		t["group"] = cmd.Group.String()
		fields["functions"] = int64(cmd.Functions)
		if cmd.Group == dcc.GroupAccessory {
			fields["output"] = int64(cmd.Output)
			fields["inductor"] = int64(cmd.Inductor)
			fields["active"] = cmd.Active
		}
	case dcc.AccessoryOrAnalog:
		t["address_kind"] = dcc.AddressAnalog.String()
		fields["command"] = int64(cmd.Command)
		fields["type"] = int64(cmd.Type)
		fields["value"] = int64(cmd.Value)
	case dcc.Unknown:
		setAddress(cmd.Address)
		fields["undefined"] = cmd.Undefined
	case dcc.ChecksumError:
		fields["computed"] = int64(cmd.Computed)
		fields["received"] = int64(cmd.Received)
	case dcc.OversizeError:
		fields["length"] = int64(cmd.Length)
	}

	return write.NewPoint(MeasurementTelegram, t, fields, ts)
}

// SyncPoint builds a dcc_sync point for a framing loss.
func SyncPoint(e dcc.SyncEvent, tags Tags, ts time.Time) *write.Point {
	t := tags.base()
	t["reason"] = e.Reason.String()
	t["state"] = e.State.String()
	return write.NewPoint(MeasurementSync, t, map[string]interface{}{
		"count":        int64(e.Count),
		"start_sample": int64(e.Start),
		"end_sample":   int64(e.End),
	}, ts)
}

// TimingPoint builds a dcc_timing point from the running bit average.
func TimingPoint(e dcc.AverageEvent, tags Tags, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementTiming, tags.base(), map[string]interface{}{
		"period_samples": e.PeriodSamples,
		"frequency_hz":   e.FrequencyHz,
	}, ts)
}

// DecoderPoint builds a dcc_decoder point from the decoder counters.
func DecoderPoint(s dcc.Stats, tags Tags, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementDecoder, tags.base(), map[string]interface{}{
		"bits":             int64(s.Bits),
		"invalid_bits":     int64(s.InvalidBits),
		"edges_skipped":    int64(s.EdgesSkipped),
		"preambles":        int64(s.Preambles),
		"bytes":            int64(s.Bytes),
		"telegrams":        int64(s.Telegrams),
		"checksum_errors":  int64(s.ChecksumErrors),
		"oversize_errors":  int64(s.OversizeErrors),
		"unknown_commands": int64(s.UnknownCommands),
		"resyncs":          int64(s.Resyncs),
		"short_preambles":  int64(s.ShortPreambles),
		"sync_lost":        int64(s.SyncLost),
	}, ts)
}
