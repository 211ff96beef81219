package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Status values carried on the station status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	reasonUnexpected = "unexpected_disconnect"
	reasonGraceful   = "graceful_shutdown"
)

// StatusMessage is the retained payload on the station status topic.
type StatusMessage struct {
	Status    string `json:"status"`
	Station   string `json:"station"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildClientOptions creates paho MQTT options from the dccmon config.
//
// A client ID is required by most brokers; the station ID is used when the
// config leaves it empty.
func buildClientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(clientID(cfg, topics))

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	// paho owns the reconnect loop; ConnectRetry also covers the first attempt.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

func clientID(cfg config.MQTTConfig, topics Topics) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return "dccmon-" + topics.Station
}

// configureLWT registers the retained offline message the broker publishes
// when the monitor disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, cfg config.MQTTConfig, topics Topics) {
	payload := buildStatusPayload(StatusOffline, reasonUnexpected, clientID(cfg, topics), topics)
	opts.SetWill(topics.Status(), string(payload), 1, true)
}

func buildStatusPayload(status, reason, id string, topics Topics) []byte {
	msg := StatusMessage{
		Status:    status,
		Station:   topics.Station,
		ClientID:  id,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	// Marshal cannot fail for a struct of strings.
	data, _ := json.Marshal(msg) //nolint:errcheck
	return data
}

func buildOnlinePayload(id string, topics Topics) []byte {
	return buildStatusPayload(StatusOnline, "", id, topics)
}

func buildOfflinePayload(id string, topics Topics) []byte {
	return buildStatusPayload(StatusOffline, reasonGraceful, id, topics)
}
