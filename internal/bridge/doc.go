// Package bridge publishes decoded DCC traffic to MQTT.
//
// It sits between the decoder and the broker:
//
//	┌─────────────┐  dcc.Sink  ┌─────────────┐   MQTT   ┌────────┐
//	│ dcc.Decoder │───────────►│ bridge.Sink │─────────►│ broker │
//	└─────────────┘            └─────────────┘          └────────┘
//
// # Messages
//
//   - TelegramMessage: one per decoded telegram on {prefix}/{station}/telegram/{kind}
//   - StateMessage: retained last-known state per address, published on change
//   - SyncMessage: framing losses on {prefix}/{station}/sync
//   - HealthMessage: retained periodic health on {prefix}/{station}/health
//
// # Back-pressure
//
// The decoder never waits for the network. Sink hands each message to a
// bounded queue drained by its own goroutine; when the queue is full the
// message is dropped and counted in PublisherStats.Dropped.
//
// # Thread Safety
//
// The dcc.Sink methods must be called from the decoder goroutine. Start,
// Stop, Stats and SetLogger are safe for concurrent use.
package bridge
