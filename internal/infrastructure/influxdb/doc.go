// Package influxdb writes decoder output to InfluxDB 2.x.
//
// It wraps the official influxdb-client-go v2 library: Connect pings the
// server and sets up the non-blocking batched write API, and Sink turns
// decoder events into points.
//
// # Measurements
//
//   - dcc_telegram: one point per telegram, tagged by kind, address and group
//   - dcc_sync: framing losses, tagged by reason
//   - dcc_timing: running bit period and frequency
//   - dcc_decoder: decoder counters, written at the end of a run
//
// Every point carries station and session tags. Points are stamped with the
// capture start time plus the sample offset of the event.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := influxdb.NewSink(influxdb.SinkConfig{
//	    Writer:     client,
//	    Tags:       influxdb.Tags{Station: cfg.Station.ID, Session: session},
//	    SampleRate: src.SampleRate(),
//	})
//
// # Error Handling
//
// Writes never block the decoder. Batch errors are delivered asynchronously
// through SetOnError.
package influxdb
