package bridge

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

// State categories used in {prefix}/{station}/state/{category}/{address}.
const (
	CategoryLoco      = "loco"
	CategoryAccessory = "accessory"
	CategoryAnalog    = "analog"
)

// StateMessage is the last known state of one address, merged from every
// telegram seen for it.
// Topic: {prefix}/{station}/state/{category}/{address}
// QoS: configured, Retained: Yes
type StateMessage struct {
	Station   string      `json:"station"`
	Category  string      `json:"category"`
	Address   AddressInfo `json:"address"`
	UpdatedAt time.Time   `json:"updated_at"`

	Speed *SpeedInfo `json:"speed,omitempty"`

	// Functions maps a function group name to the functions that were on in
	// the last command for that group.
	Functions map[string][]int `json:"functions,omitempty"`

	Accessory *AccessoryInfo `json:"accessory,omitempty"`
	Analog    *AnalogInfo    `json:"analog,omitempty"`
}

// stateTracker merges telegrams into per-address state and reports when the
// state visible to subscribers changed. Not safe for concurrent use.
type stateTracker struct {
	station    string
	states     map[string]*StateMessage
	signatures map[string]string
}

func newStateTracker(station string) *stateTracker {
	return &stateTracker{
		station:    station,
		states:     make(map[string]*StateMessage),
		signatures: make(map[string]string),
	}
}

// stateKey returns the category and address a command updates, or ok=false
// for telegrams that carry no per-address state.
func stateKey(cmd dcc.Command) (category string, addr AddressInfo, ok bool) {
	switch c := cmd.(type) {
	case dcc.LocoSpeedDirection:
		return CategoryLoco, AddressInfo{Kind: c.Address.Kind.String(), Value: c.Address.Value}, true
	case dcc.FunctionGroup:
		info := AddressInfo{Kind: c.Address.Kind.String(), Value: c.Address.Value}
		if isAccessoryGroup(c.Group) {
			return CategoryAccessory, info, true
		}
		return CategoryLoco, info, true
	case dcc.AccessoryOrAnalog:
		return CategoryAnalog, AddressInfo{Kind: dcc.AddressAnalog.String(), Value: uint16(c.Command)}, true
	default:
		return "", AddressInfo{}, false
	}
}

// update applies cmd and returns the merged state when it differs from what
// was last published for the address.
func (t *stateTracker) update(cmd dcc.Command, now time.Time) (*StateMessage, bool) {
	category, addr, ok := stateKey(cmd)
	if !ok {
		return nil, false
	}
	key := category + "/" + addr.Label()

	st, exists := t.states[key]
	if !exists {
		st = &StateMessage{Station: t.station, Category: category, Address: addr}
		t.states[key] = st
	}

	switch c := cmd.(type) {
	case dcc.LocoSpeedDirection:
		st.Speed = speedInfo(c)
	case dcc.FunctionGroup:
		if isAccessoryGroup(c.Group) {
			st.Accessory = accessoryInfo(c)
			break
		}
		if st.Functions == nil {
			st.Functions = make(map[string][]int)
		}
		st.Functions[c.Group.String()] = functionInfo(c).Enabled
	case dcc.AccessoryOrAnalog:
		st.Analog = &AnalogInfo{Command: c.Command, Type: c.Type, Value: c.Value}
	}

	sig := signature(st)
	if t.signatures[key] == sig {
		return nil, false
	}
	t.signatures[key] = sig
	st.UpdatedAt = now.UTC()

	snapshot := *st
	if st.Functions != nil {
		snapshot.Functions = make(map[string][]int, len(st.Functions))
		for k, v := range st.Functions {
			snapshot.Functions[k] = v
		}
	}
	return &snapshot, true
}

func (t *stateTracker) size() int {
	return len(t.states)
}

// signature is the state content without its timestamp.
func signature(st *StateMessage) string {
	c := *st
	c.UpdatedAt = time.Time{}
	// Maps marshal with sorted keys, so equal states give equal output.
	data, _ := json.Marshal(c) //nolint:errcheck // plain struct, cannot fail
	return string(data)
}
