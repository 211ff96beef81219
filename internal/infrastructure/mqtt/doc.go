// Package mqtt connects dccmon to an MQTT broker.
//
// The client wraps paho.mqtt.golang with the pieces a long-running monitor
// needs: automatic reconnect, subscription restore after reconnect, a
// retained station status topic with a Last Will, and payload validation
// on publish.
//
// # Topics
//
// All topics of a station hang below {prefix}/{station}:
//
//	dcc/layout-east/status                  retained online/offline (LWT)
//	dcc/layout-east/health                  retained decoder health
//	dcc/layout-east/telegram/{kind}         one message per decoded telegram
//	dcc/layout-east/state/{category}/{addr} retained last command per address
//	dcc/layout-east/sync                    lost synchronisation events
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Station.ID)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllTelegrams(), 1,
//	    func(topic string, payload []byte) error {
//	        fmt.Printf("%s %s\n", topic, payload)
//	        return nil
//	    })
package mqtt
