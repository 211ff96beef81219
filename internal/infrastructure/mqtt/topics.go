package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root used when no prefix is configured.
const DefaultTopicPrefix = "dcc"

// Topics builds the MQTT topics used by one monitoring station.
//
// Every topic lives below {prefix}/{station}:
//
//	topics := mqtt.NewTopics("dcc", "layout-east")
//	topics.Telegram("loco_speed")     // dcc/layout-east/telegram/loco_speed
//	topics.State("loco", "short-3")   // dcc/layout-east/state/loco/short-3
type Topics struct {
	Prefix  string
	Station string
}

// NewTopics returns topic builders for a station. Empty values fall back to
// DefaultTopicPrefix and "dccmon"; slashes are stripped from both ends.
func NewTopics(prefix, station string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	station = strings.Trim(station, "/")
	if station == "" {
		station = "dccmon"
	}
	return Topics{Prefix: prefix, Station: station}
}

// Base returns the root of the station's topic tree.
//
// Example: dcc/layout-east
func (t Topics) Base() string {
	return fmt.Sprintf("%s/%s", t.Prefix, t.Station)
}

// Status returns the retained online/offline topic. It also carries the LWT.
//
// Example: dcc/layout-east/status
func (t Topics) Status() string {
	return t.Base() + "/status"
}

// Health returns the periodic decoder health topic.
//
// Example: dcc/layout-east/health
func (t Topics) Health() string {
	return t.Base() + "/health"
}

// Telegram returns the event topic for decoded telegrams of one command kind.
//
// Example: dcc/layout-east/telegram/function_group
func (t Topics) Telegram(kind string) string {
	return fmt.Sprintf("%s/telegram/%s", t.Base(), kind)
}

// State returns the retained last-known-state topic for an address.
//
// Example: dcc/layout-east/state/loco/short-3
func (t Topics) State(category, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.Base(), category, address)
}

// Sync returns the topic for lost-synchronisation events.
//
// Example: dcc/layout-east/sync
func (t Topics) Sync() string {
	return t.Base() + "/sync"
}

// AllTelegrams matches every telegram topic of the station.
//
// Pattern: dcc/layout-east/telegram/+
func (t Topics) AllTelegrams() string {
	return t.Base() + "/telegram/+"
}

// AllStates matches every retained state topic of the station.
//
// Pattern: dcc/layout-east/state/+/+
func (t Topics) AllStates() string {
	return t.Base() + "/state/+/+"
}

// AllStationStatus matches the status topic of every station under the prefix.
//
// Pattern: dcc/+/status
func (t Topics) AllStationStatus() string {
	return t.Prefix + "/+/status"
}

// AllTopics matches everything below the station.
//
// Pattern: dcc/layout-east/#
func (t Topics) AllTopics() string {
	return t.Base() + "/#"
}
