// dccmon decodes the DCC bitstream of a model railway track from a logic
// analyser capture.
//
// Decoded telegrams are written as text annotations and, when enabled,
// published to MQTT, written to InfluxDB and exposed as Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the environment variable holding the config file path.
const configEnv = "DCCMON_CONFIG"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the command line overrides. Only flags the user set are
// applied on top of the loaded configuration.
type flags struct {
	configPath  string
	sampleRate  string
	format      string
	compression string
	unitSize    int
	channel     int
	activeLow   bool
	profile     string
	legacyMasks bool
	strict      bool
	annotations []string
	short       bool
	output      string
	rawOutput   string
	command     string
	station     string
	mqtt        bool
	influxdb    bool
	metrics     bool
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "dccmon [capture-file]",
		Short: "Decode DCC telegrams from a logic analyser capture",
		Long: `dccmon decodes the DCC signal of a model railway track from a capture of
edge timestamps or raw logic samples. Use "-" to read the capture from stdin.`,
		Example: `  dccmon --sample-rate 1MHz --channel 2 track.bin
  dccmon --annotations type,adr,func --short edges.txt.gz
  dccmon --sample-rate 1MHz --exec "sigrok-cli -d fx2lafw -c samplerate=1m --continuous -O binary"
  dccmon --config /etc/dccmon/config.yaml --mqtt capture.bin.zst`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), &f)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Capture.Path = args[0]
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "configuration file (default $"+configEnv+")")
	pf.StringVar(&f.station, "station", "", "station ID used in topics and tags")

	fs := root.Flags()
	fs.StringVarP(&f.sampleRate, "sample-rate", "r", "", `capture sample rate, e.g. "1000000" or "24MHz"`)
	fs.StringVar(&f.format, "format", "", "capture format: logic or text (default from file extension)")
	fs.StringVar(&f.compression, "compression", "", "capture compression: none, gzip or zstd (default from file extension)")
	fs.IntVar(&f.unitSize, "unit-size", 1, "bytes per logic sample (1-8)")
	fs.IntVar(&f.channel, "channel", 0, "bit index of the DCC signal within a logic sample")
	fs.BoolVar(&f.activeLow, "active-low", false, "align on the falling edge")
	fs.StringVar(&f.profile, "profile", "full", "command decode profile: full or speed_only")
	fs.BoolVar(&f.legacyMasks, "legacy-masks", false, "reproduce the function mask quirks of older decoders")
	fs.BoolVar(&f.strict, "strict-dispatch", false, "use the corrected short-address two-byte instruction test")
	fs.StringSliceVarP(&f.annotations, "annotations", "a", nil, "annotation rows to print (logic,period,type,adr,func,average)")
	fs.BoolVar(&f.short, "short", false, "print the shortest annotation text")
	fs.StringVarP(&f.output, "output", "o", "", `annotation output: "stdout", "stderr", a file path or "none"`)
	fs.StringVar(&f.rawOutput, "raw-output", "", "write decoded bytes to this file")
	fs.StringVar(&f.command, "exec", "", `decode the stdout of this acquisition command instead of a file, e.g. "sigrok-cli -d fx2lafw --continuous -O binary"`)
	fs.BoolVar(&f.mqtt, "mqtt", false, "publish telegrams to MQTT")
	fs.BoolVar(&f.influxdb, "influxdb", false, "write telegrams to InfluxDB")
	fs.BoolVar(&f.metrics, "metrics", false, "serve Prometheus metrics while decoding")

	root.AddCommand(newWatchCommand(&f))
	return root
}

// loadConfig loads the configuration file and applies the flags the user set.
//
// The file path comes from --config, then DCCMON_CONFIG. Without either the
// defaults and environment overrides are used.
func loadConfig(fs *pflag.FlagSet, f *flags) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	fs.Visit(func(fl *pflag.Flag) {
		applyFlag(cfg, f, fl.Name)
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}

func applyFlag(cfg *config.Config, f *flags, name string) {
	switch name {
	case "station":
		cfg.Station.ID = f.station
	case "sample-rate":
		cfg.Capture.SampleRate = f.sampleRate
	case "format":
		cfg.Capture.Format = f.format
	case "compression":
		cfg.Capture.Compression = f.compression
	case "unit-size":
		cfg.Capture.UnitSize = f.unitSize
	case "channel":
		cfg.Capture.Channel = f.channel
	case "active-low":
		cfg.Capture.ActiveLow = f.activeLow
	case "profile":
		cfg.Decoder.Profile = f.profile
	case "legacy-masks":
		cfg.Decoder.LegacyMasks = f.legacyMasks
	case "strict-dispatch":
		cfg.Decoder.StrictDispatch = f.strict
	case "annotations":
		cfg.Annotations.Rows = f.annotations
	case "short":
		cfg.Annotations.Short = f.short
	case "output":
		if f.output == outputNone {
			cfg.Annotations.Enabled = false
			break
		}
		cfg.Annotations.Enabled = true
		cfg.Annotations.Output = f.output
	case "raw-output":
		cfg.Annotations.RawOutput = f.rawOutput
	case "exec":
		cfg.Capture.Command = strings.Fields(f.command)
	case "mqtt":
		cfg.MQTT.Enabled = f.mqtt
	case "influxdb":
		cfg.InfluxDB.Enabled = f.influxdb
	case "metrics":
		cfg.Metrics.Enabled = f.metrics
	}
}
