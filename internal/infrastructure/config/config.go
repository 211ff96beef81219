package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix of all environment overrides.
const envPrefix = "DCCMON_"

// Config is the root configuration structure for dccmon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Station     StationConfig     `yaml:"station"`
	Decoder     DecoderConfig     `yaml:"decoder"`
	Capture     CaptureConfig     `yaml:"capture"`
	Annotations AnnotationsConfig `yaml:"annotations"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StationConfig identifies the monitoring station. The ID is used in MQTT
// topics and as an InfluxDB tag.
type StationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DecoderConfig contains the bit timing windows and telegram decode settings.
type DecoderConfig struct {
	Timing          TimingConfig `yaml:"timing"`
	MinPreambleBits int          `yaml:"min_preamble_bits"`
	Profile         string       `yaml:"profile"`
	LegacyMasks     bool         `yaml:"legacy_masks"`
	StrictDispatch  bool         `yaml:"strict_dispatch"`
	AverageEvery    int          `yaml:"average_every"`
}

// TimingConfig contains the bit classification windows in microseconds.
type TimingConfig struct {
	JitterUs  float64 `yaml:"jitter_us"`
	OneMinUs  float64 `yaml:"one_min_us"`
	OneMaxUs  float64 `yaml:"one_max_us"`
	ZeroMinUs float64 `yaml:"zero_min_us"`
	ZeroMaxUs float64 `yaml:"zero_max_us"`
}

// CaptureConfig describes the capture input.
type CaptureConfig struct {
	// Path of the capture file, "-" for stdin. Usually given on the command line.
	Path        string `yaml:"path"`
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
	// SampleRate accepts plain Hz or a unit suffix ("24MHz").
	SampleRate string `yaml:"sample_rate"`
	UnitSize   int    `yaml:"unit_size"`
	Channel    int    `yaml:"channel"`
	ActiveLow  bool   `yaml:"active_low"`

	// Command runs a live acquisition tool whose stdout is decoded instead
	// of Path, e.g. ["sigrok-cli", "-d", "fx2lafw", "--continuous", "-O", "binary"].
	Command []string `yaml:"command"`
	// StopTimeout is the graceful shutdown period of Command in seconds.
	StopTimeout int `yaml:"stop_timeout"`
}

// AnnotationsConfig controls the text annotation output.
type AnnotationsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Output  string   `yaml:"output"` // "stdout", "stderr" or a file path
	Rows    []string `yaml:"rows"`
	Short   bool     `yaml:"short"`
	// RawOutput receives the decoded bytes as binary, empty for none.
	RawOutput string `yaml:"raw_output"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	// TopicPrefix is the root of all published topics.
	TopicPrefix string `yaml:"topic_prefix"`
	// QueueSize bounds the events buffered between the decoder and the publisher.
	QueueSize int `yaml:"queue_size"`
	// HealthInterval is the health report period in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DCCMON_SECTION_KEY
// For example: DCCMON_MQTT_HOST, DCCMON_CAPTURE_SAMPLE_RATE
//
// Parameters:
//   - path: Path to the YAML configuration file, or ""
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Station: StationConfig{
			ID:   "dccmon",
			Name: "DCC monitor",
		},
		Decoder: DecoderConfig{
			Timing: TimingConfig{
				JitterUs:  10,
				OneMinUs:  100,
				OneMaxUs:  130,
				ZeroMinUs: 190,
				ZeroMaxUs: 250,
			},
			MinPreambleBits: 16,
			Profile:         "full",
			AverageEvery:    1024,
		},
		Capture: CaptureConfig{
			UnitSize:    1,
			StopTimeout: 5,
		},
		Annotations: AnnotationsConfig{
			Enabled: true,
			Output:  "stdout",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dccmon",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix:    "dcc",
			QueueSize:      1024,
			HealthInterval: 30,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "dcc",
			BatchSize:     500,
			FlushInterval: 1,
		},
		Metrics: MetricsConfig{
			Listen: ":9108",
			Path:   "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DCCMON_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	// Station
	str("STATION_ID", &cfg.Station.ID)

	// Decoder
	str("DECODER_PROFILE", &cfg.Decoder.Profile)
	boolean("DECODER_LEGACY_MASKS", &cfg.Decoder.LegacyMasks)
	boolean("DECODER_STRICT_DISPATCH", &cfg.Decoder.StrictDispatch)
	integer("DECODER_MIN_PREAMBLE_BITS", &cfg.Decoder.MinPreambleBits)

	// Capture
	str("CAPTURE_FORMAT", &cfg.Capture.Format)
	str("CAPTURE_SAMPLE_RATE", &cfg.Capture.SampleRate)
	integer("CAPTURE_CHANNEL", &cfg.Capture.Channel)
	boolean("CAPTURE_ACTIVE_LOW", &cfg.Capture.ActiveLow)

	// MQTT
	boolean("MQTT_ENABLED", &cfg.MQTT.Enabled)
	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	integer("MQTT_PORT", &cfg.MQTT.Broker.Port)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// InfluxDB
	boolean("INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	str("INFLUXDB_URL", &cfg.InfluxDB.URL)
	str("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// Metrics
	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_LISTEN", &cfg.Metrics.Listen)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)

	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Station.ID == "" {
		errs = append(errs, "station.id is required")
	}

	// Decoder validation
	t := c.Decoder.Timing
	if t.JitterUs < 0 {
		errs = append(errs, "decoder.timing.jitter_us must not be negative")
	}
	if t.OneMinUs >= t.OneMaxUs {
		errs = append(errs, "decoder.timing.one_min_us must be below one_max_us")
	}
	if t.ZeroMinUs >= t.ZeroMaxUs {
		errs = append(errs, "decoder.timing.zero_min_us must be below zero_max_us")
	}
	if t.OneMinUs < t.ZeroMaxUs && t.ZeroMinUs < t.OneMaxUs {
		errs = append(errs, "decoder.timing one and zero windows must not overlap")
	}
	if c.Decoder.MinPreambleBits < 1 {
		errs = append(errs, "decoder.min_preamble_bits must be at least 1")
	}
	switch strings.ToLower(c.Decoder.Profile) {
	case "full", "speed_only":
	default:
		errs = append(errs, "decoder.profile must be full or speed_only")
	}
	if c.Decoder.AverageEvery < 0 {
		errs = append(errs, "decoder.average_every must not be negative")
	}

	// Capture validation
	if c.Capture.UnitSize < 1 || c.Capture.UnitSize > 8 {
		errs = append(errs, "capture.unit_size must be between 1 and 8")
	} else if c.Capture.Channel < 0 || c.Capture.Channel >= c.Capture.UnitSize*8 {
		errs = append(errs, "capture.channel must fit within capture.unit_size")
	}
	if c.Capture.Path != "" && len(c.Capture.Command) > 0 {
		errs = append(errs, "capture.path and capture.command are mutually exclusive")
	}
	if c.Capture.StopTimeout < 0 {
		errs = append(errs, "capture.stop_timeout must not be negative")
	}
	switch strings.ToLower(c.Capture.Format) {
	case "", "logic", "text":
	default:
		errs = append(errs, "capture.format must be logic or text")
	}
	switch strings.ToLower(c.Capture.Compression) {
	case "", "none", "gzip", "zstd":
	default:
		errs = append(errs, "capture.compression must be none, gzip or zstd")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QueueSize < 1 {
			errs = append(errs, "mqtt.queue_size must be at least 1")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetHealthInterval returns the MQTT health report interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.MQTT.HealthInterval) * time.Second
}

// GetStopTimeout returns the capture command shutdown period as a Duration.
func (c *Config) GetStopTimeout() time.Duration {
	return time.Duration(c.Capture.StopTimeout) * time.Second
}

// GetFlushInterval returns the InfluxDB flush interval as a Duration.
func (c *Config) GetFlushInterval() time.Duration {
	return time.Duration(c.InfluxDB.FlushInterval) * time.Second
}
