package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-dcc/internal/annotate"
	"github.com/nerrad567/gray-logic-dcc/internal/bridge"
	"github.com/nerrad567/gray-logic-dcc/internal/capture"
	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/mqtt"
)

const (
	outputStdout = "stdout"
	outputStderr = "stderr"
	outputNone   = "none"
)

var errNoCapture = errors.New("no capture file given")

// run decodes one capture with the configured outputs.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: validated configuration
//   - stdout: destination of annotations sent to "stdout"
//
// Returns:
//   - error: nil when the capture was decoded to the end or ctx was
//     cancelled, otherwise the first setup, read or close failure. A capture
//     command that exits with an error is reported as
//     capture.ErrAcquisitionFailed.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer) (err error) {
	log := logging.New(cfg.Logging, version)
	session := uuid.NewString()
	log.Info("starting dccmon",
		"version", version,
		"commit", commit,
		"build_date", date,
		"station", cfg.Station.ID,
		"session", session,
	)

	if cfg.Capture.Path == "" && len(cfg.Capture.Command) == 0 {
		return errNoCapture
	}

	var rate uint64
	if cfg.Capture.SampleRate != "" {
		r, err := capture.ParseSampleRate(cfg.Capture.SampleRate)
		if err != nil {
			return fmt.Errorf("parsing sample rate: %w", err)
		}
		rate = r
	}

	src, err := capture.Open(capture.Options{
		Path:        cfg.Capture.Path,
		Format:      cfg.Capture.Format,
		Compression: cfg.Capture.Compression,
		SampleRate:  rate,
		UnitSize:    cfg.Capture.UnitSize,
		Channel:     cfg.Capture.Channel,
		ActiveLow:   cfg.Capture.ActiveLow,
		Command:     cfg.Capture.Command,
		StopTimeout: cfg.GetStopTimeout(),
		Logger:      log.With("component", "acquisition"),
	})
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Error("error closing capture", "error", closeErr)
			if err == nil {
				err = fmt.Errorf("closing capture: %w", closeErr)
			}
		}
	}()
	log.Info("capture opened",
		"path", cfg.Capture.Path,
		"command", cfg.Capture.Command,
		"sample_rate", src.SampleRate(),
	)

	var sinks dcc.MultiSink

	// Annotations
	var annotator *annotate.Annotator
	if cfg.Annotations.Enabled {
		a, closeAnnotations, annErr := openAnnotator(cfg.Annotations, stdout)
		if annErr != nil {
			return annErr
		}
		defer func() {
			if closeErr := closeAnnotations(); closeErr != nil && err == nil {
				err = fmt.Errorf("closing annotation output: %w", closeErr)
			}
		}()
		annotator = a
		sinks = append(sinks, annotator)
	}

	// Prometheus metrics
	var (
		promMetrics *metrics.Metrics
		serveWG     sync.WaitGroup
	)
	serveCtx, stopServe := context.WithCancel(ctx)
	defer func() {
		stopServe()
		serveWG.Wait()
	}()
	if cfg.Metrics.Enabled {
		promMetrics = metrics.New(cfg.Station.ID)
		sinks = append(sinks, promMetrics)

		serveWG.Add(1)
		go func() {
			defer serveWG.Done()
			if serveErr := promMetrics.Serve(serveCtx, cfg.Metrics.Listen, cfg.Metrics.Path); serveErr != nil {
				log.Error("metrics server stopped", "error", serveErr)
			}
		}()
		log.Info("metrics endpoint started", "listen", cfg.Metrics.Listen, "path", cfg.Metrics.Path)
	}

	// Connect to InfluxDB (optional)
	var (
		influxClient *influxdb.Client
		influxSink   *influxdb.Sink
	)
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxSink = influxdb.NewSink(influxdb.SinkConfig{
			Writer:       influxClient,
			Tags:         influxdb.Tags{Station: cfg.Station.ID, Session: session},
			SampleRate:   src.SampleRate(),
			CaptureStart: time.Now(),
		})
		sinks = append(sinks, influxSink)
	} else {
		log.Debug("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	var (
		mqttClient *mqtt.Client
		mqttSink   *bridge.Sink
	)
	if cfg.MQTT.Enabled {
		topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Station.ID)
		mqttClient, err = mqtt.Connect(cfg.MQTT, topics)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topic", topics.Base(),
		)

		mqttSink, err = bridge.NewSink(bridge.SinkConfig{
			Publisher:  mqttClient,
			Topics:     topics,
			Session:    session,
			SampleRate: src.SampleRate(),
			QueueSize:  cfg.MQTT.QueueSize,
			QoS:        mqttClient.QoS(),
		})
		if err != nil {
			return fmt.Errorf("creating MQTT sink: %w", err)
		}
		mqttSink.SetLogger(log.With("component", "bridge"))
		mqttSink.Start(ctx)
		defer mqttSink.Stop()
		sinks = append(sinks, mqttSink)

		if promMetrics != nil {
			promMetrics.RegisterPublisher(func() (uint64, uint64, uint64) {
				s := mqttSink.Stats()
				return s.Published, s.Dropped, s.Failed
			})
		}
	} else {
		log.Debug("MQTT disabled")
	}

	decoder, err := dcc.NewDecoder(src, decoderConfig(cfg.Decoder), sinks)
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	decoder.SetLogger(log.With("component", "decoder"))

	if mqttClient != nil {
		health, healthErr := bridge.NewHealthReporter(bridge.HealthReporterConfig{
			Station:   cfg.Station.ID,
			Session:   session,
			Version:   version,
			Interval:  cfg.GetHealthInterval(),
			Publisher: mqttClient,
			Topics:    mqttClient.Topics(),
			Decoder:   decoder,
			Sink:      mqttSink,
		})
		if healthErr != nil {
			return fmt.Errorf("creating health reporter: %w", healthErr)
		}
		health.SetLogger(log)
		if pubErr := health.PublishStarting(); pubErr != nil {
			log.Warn("failed to publish starting status", "error", pubErr)
		}
		health.Start(ctx)
		defer health.Stop()
	}

	runErr := decoder.Run(ctx)
	stats := decoder.Stats()

	if influxSink != nil {
		influxSink.WriteStats(stats)
		influxClient.Flush()
	}

	log.Info("decoding finished",
		"bits", stats.Bits,
		"invalid_bits", stats.InvalidBits,
		"telegrams", stats.Telegrams,
		"checksum_errors", stats.ChecksumErrors,
		"sync_lost", stats.SyncLost,
		"average_hz", decoder.Average().FrequencyHz,
	)

	if annotator != nil {
		if annErr := annotator.Err(); annErr != nil {
			return fmt.Errorf("writing annotations: %w", annErr)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Info("shutdown signal received, stopping")
			return nil
		}
		return fmt.Errorf("decoding capture: %w", runErr)
	}
	return nil
}

func decoderConfig(c config.DecoderConfig) dcc.Config {
	return dcc.Config{
		Timing: dcc.TimingOptions{
			JitterUs:  c.Timing.JitterUs,
			OneMinUs:  c.Timing.OneMinUs,
			OneMaxUs:  c.Timing.OneMaxUs,
			ZeroMinUs: c.Timing.ZeroMinUs,
			ZeroMaxUs: c.Timing.ZeroMaxUs,
		},
		MinPreambleBits: c.MinPreambleBits,
		Profile:         c.Profile,
		Legacy:          c.LegacyMasks,
		StrictDispatch:  c.StrictDispatch,
		AverageEvery:    c.AverageEvery,
	}
}

// openAnnotator creates the annotation sink. The returned function closes
// any files it opened and returns the first close error.
func openAnnotator(cfg config.AnnotationsConfig, stdout io.Writer) (*annotate.Annotator, func() error, error) {
	rows := make([]annotate.Row, 0, len(cfg.Rows))
	for _, name := range cfg.Rows {
		r, err := annotate.ParseRow(name)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, r)
	}

	var closers []io.Closer
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var w io.Writer
	switch cfg.Output {
	case "", outputStdout:
		w = stdout
	case outputStderr:
		w = os.Stderr
	default:
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, nil, fmt.Errorf("creating annotation output: %w", err)
		}
		closers = append(closers, f)
		w = f
	}

	opts := annotate.Options{Rows: rows, Short: cfg.Short}
	if cfg.RawOutput != "" {
		f, err := os.Create(cfg.RawOutput)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("creating raw output: %w", err)
		}
		closers = append(closers, f)
		opts.Raw = f
	}

	return annotate.New(w, opts), closeAll, nil
}
