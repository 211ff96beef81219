package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-dcc/internal/bridge"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/mqtt"
)

// watchSuffix is appended to the station ID of a watching client so its
// status topic does not overwrite the monitor's.
const watchSuffix = "-watch"

func newWatchCommand(f *flags) *cobra.Command {
	var states bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print telegrams published by a running monitor",
		Long: `watch subscribes to the MQTT telegram topics of a station and prints one
line per telegram until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}
			return watch(cmd.Context(), cfg, states, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&states, "states", false, "print per-address state updates as well")
	return cmd
}

// watch prints telegram messages of cfg.Station.ID until ctx is cancelled.
func watch(ctx context.Context, cfg *config.Config, states bool, out io.Writer) error {
	log := logging.New(cfg.Logging, version)

	watched := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Station.ID)
	own := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Station.ID+watchSuffix)

	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = ""
	client, err := mqtt.Connect(mqttCfg, own)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	client.SetLogger(log)

	var mu sync.Mutex
	printLine := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, line)
	}

	err = client.Subscribe(watched.AllTelegrams(), client.QoS(), func(_ string, payload []byte) error {
		line, fmtErr := formatTelegram(payload)
		if fmtErr != nil {
			return fmtErr
		}
		printLine(line)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to telegrams: %w", err)
	}

	if states {
		err = client.Subscribe(watched.AllStates(), client.QoS(), func(topic string, payload []byte) error {
			printLine(topic + " " + string(payload))
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribing to states: %w", err)
		}
	}

	log.Info("watching station", "topic", watched.Base())
	<-ctx.Done()
	return nil
}

// formatTelegram renders a telegram message as a single line:
//
//	12.345678 loco_speed short-3 S:10 forward
func formatTelegram(payload []byte) (string, error) {
	var msg bridge.TelegramMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("decoding telegram message: %w", err)
	}

	line := fmt.Sprintf("%.6f %s", msg.StartSeconds, msg.Kind)
	if msg.Address != nil {
		line += " " + msg.Address.Label()
	}
	switch {
	case msg.Speed != nil:
		line += fmt.Sprintf(" S:%d %s", msg.Speed.Speed, msg.Speed.Direction)
		if msg.Speed.EmergencyStop {
			line += " estop"
		}
	case msg.Functions != nil:
		line += fmt.Sprintf(" %s on=%v", msg.Functions.Group, msg.Functions.Enabled)
	case msg.Accessory != nil:
		line += fmt.Sprintf(" output=%d active=%t", msg.Accessory.Output, msg.Accessory.Active)
	case msg.Checksum != nil:
		line += fmt.Sprintf(" computed=%02X received=%02X", msg.Checksum.Computed, msg.Checksum.Received)
	}
	if msg.Bytes != "" {
		line += " [" + msg.Bytes + "]"
	}
	return line, nil
}
