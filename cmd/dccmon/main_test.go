package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dcc/internal/bridge"
	"github.com/nerrad567/gray-logic-dcc/internal/capture"
	"github.com/nerrad567/gray-logic-dcc/internal/infrastructure/config"
)

// Half-bit lengths at 1 MHz.
const (
	halfOne  = 58
	halfZero = 100
)

// writeIdleCapture writes a text capture holding n idle packets and returns
// its path.
func writeIdleCapture(t *testing.T, n int) string {
	t.Helper()

	var bits strings.Builder
	for i := 0; i < n; i++ {
		bits.WriteString(strings.Repeat("1", 20))
		for _, b := range []byte{0xFF, 0x00, 0xFF} {
			fmt.Fprintf(&bits, "0%08b", b)
		}
		bits.WriteString("1")
	}

	var out strings.Builder
	out.WriteString("# samplerate: 1MHz\n")
	at := uint64(10)
	fmt.Fprintln(&out, at)
	for _, r := range bits.String() {
		half := uint64(halfOne)
		if r == '0' {
			half = halfZero
		}
		for i := 0; i < 2; i++ {
			at += half
			fmt.Fprintln(&out, at)
		}
	}

	path := filepath.Join(t.TempDir(), "idle.edges")
	if err := os.WriteFile(path, []byte(out.String()), 0o600); err != nil {
		t.Fatalf("failed to write capture: %v", err)
	}
	return path
}

func testConfig(t *testing.T, capturePath string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Capture.Path = capturePath
	cfg.Logging.Level = "error"
	return cfg
}

// TestRun_NoCapture verifies run fails without a capture path.
func TestRun_NoCapture(t *testing.T) {
	err := run(context.Background(), testConfig(t, ""), &bytes.Buffer{})
	if !errors.Is(err, errNoCapture) {
		t.Errorf("run() = %v, want errNoCapture", err)
	}
}

// TestRun_MissingCapture verifies run fails when the capture cannot be opened.
func TestRun_MissingCapture(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.edges"))
	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("run() should fail for a missing capture")
	}
}

// TestRun_InvalidSampleRate verifies a malformed rate is reported.
func TestRun_InvalidSampleRate(t *testing.T) {
	cfg := testConfig(t, writeIdleCapture(t, 1))
	cfg.Capture.SampleRate = "fast"
	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("run() should fail for an invalid sample rate")
	}
}

func TestRun_DecodesIdleTelegrams(t *testing.T) {
	tests := []struct {
		name  string
		short bool
		want  string
	}{
		{"long text", false, "type: IDLE\n"},
		{"short text", true, "type: I\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, writeIdleCapture(t, 2))
			cfg.Annotations.Rows = []string{"type"}
			cfg.Annotations.Short = tt.short

			var out bytes.Buffer
			if err := run(context.Background(), cfg, &out); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if got := strings.Count(out.String(), tt.want); got != 2 {
				t.Errorf("found %d %q annotations, want 2:\n%s", got, tt.want, out.String())
			}
		})
	}
}

// TestRun_RawOutput verifies decoded bytes are written to the raw file.
func TestRun_RawOutput(t *testing.T) {
	cfg := testConfig(t, writeIdleCapture(t, 1))
	cfg.Annotations.Output = filepath.Join(t.TempDir(), "annotations.txt")
	cfg.Annotations.RawOutput = filepath.Join(t.TempDir(), "raw.bin")

	if err := run(context.Background(), cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	raw, err := os.ReadFile(cfg.Annotations.RawOutput)
	if err != nil {
		t.Fatalf("reading raw output: %v", err)
	}
	// The idle telegram is accepted at its second byte; the check byte is
	// read as preamble.
	if want := []byte{0xFF, 0x00}; !bytes.Equal(raw, want) {
		t.Errorf("raw output = % X, want % X", raw, want)
	}

	annotations, err := os.ReadFile(cfg.Annotations.Output)
	if err != nil {
		t.Fatalf("reading annotations: %v", err)
	}
	if !strings.Contains(string(annotations), "PREAMBLE 20") {
		t.Errorf("annotations missing preamble:\n%s", annotations)
	}
}

// TestRun_UnknownRow verifies an invalid annotation row is rejected.
func TestRun_UnknownRow(t *testing.T) {
	cfg := testConfig(t, writeIdleCapture(t, 1))
	cfg.Annotations.Rows = []string{"colour"}
	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("run() should fail for an unknown annotation row")
	}
}

// TestRun_Cancelled verifies a cancelled context is a clean shutdown.
func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t, writeIdleCapture(t, 1))
	if err := run(ctx, cfg, &bytes.Buffer{}); err != nil {
		t.Errorf("run() = %v, want nil", err)
	}
}

// TestRun_CaptureCommand verifies the exit status of the capture command
// decides the result of run.
func TestRun_CaptureCommand(t *testing.T) {
	idle := writeIdleCapture(t, 1)

	tests := []struct {
		name    string
		command []string
		wantErr error
	}{
		{"clean exit", []string{"/bin/cat", idle}, nil},
		{"failed exit", []string{"/bin/sh", "-c", "exit 3"}, capture.ErrAcquisitionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "")
			cfg.Capture.Command = tt.command
			cfg.Capture.Format = "text"
			cfg.Capture.SampleRate = "1MHz"
			cfg.Annotations.Enabled = false

			err := run(context.Background(), cfg, &bytes.Buffer{})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("run() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("run() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestOpenAnnotator_CloseError verifies close failures of the output files
// are returned.
func TestOpenAnnotator_CloseError(t *testing.T) {
	dir := t.TempDir()
	cfg := config.AnnotationsConfig{
		Enabled:   true,
		Rows:      []string{"type"},
		Output:    filepath.Join(dir, "annotations.txt"),
		RawOutput: filepath.Join(dir, "raw.bin"),
	}

	a, closeAll, err := openAnnotator(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("openAnnotator() error = %v", err)
	}
	if a == nil {
		t.Fatal("openAnnotator() returned no annotator")
	}
	if err := closeAll(); err != nil {
		t.Fatalf("first close error = %v", err)
	}
	if err := closeAll(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("second close error = %v, want os.ErrClosed", err)
	}
}

func TestRootCommand(t *testing.T) {
	t.Setenv(configEnv, "")
	capturePath := writeIdleCapture(t, 1)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "rows and short text",
			args: []string{"--annotations", "type", "--short", capturePath},
			want: "type: I\n",
		},
		{
			name: "sample rate flag",
			args: []string{"-a", "average", "--sample-rate", "1MHz", capturePath},
			want: "average:",
		},
		{
			name: "acquisition command",
			args: []string{"-a", "type", "--format", "text", "--exec", "/bin/cat " + capturePath},
			want: "type: IDLE\n",
		},
		{
			name:    "invalid profile",
			args:    []string{"--profile", "fancy", capturePath},
			wantErr: true,
		},
		{
			name:    "too many arguments",
			args:    []string{capturePath, capturePath},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(append(tt.args, "--station", "test"))

			err := cmd.ExecuteContext(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("Execute() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output does not contain %q:\n%s", tt.want, out.String())
			}
		})
	}
}

// TestRootCommand_OutputNone verifies annotations can be switched off.
func TestRootCommand_OutputNone(t *testing.T) {
	t.Setenv(configEnv, "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--output", "none", writeIdleCapture(t, 1)})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}

// TestRootCommand_ConfigFile verifies the file named by DCCMON_CONFIG is
// loaded and flags still take precedence.
func TestRootCommand_ConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
station:
  id: yard
annotations:
  enabled: true
  rows: [adr]
logging:
  level: error
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(configEnv, configPath)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--annotations", "type", writeIdleCapture(t, 1)})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "type: IDLE") {
		t.Errorf("flag rows not applied:\n%s", out.String())
	}
}

// TestRootCommand_InvalidConfig verifies a missing config file is an error.
func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{writeIdleCapture(t, 1)})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatal("Execute() should fail with an invalid config path")
	}
}

func TestApplyFlag(t *testing.T) {
	f := &flags{
		station:     "loft",
		sampleRate:  "24MHz",
		channel:     3,
		unitSize:    2,
		activeLow:   true,
		profile:     "speed_only",
		legacyMasks: true,
		strict:      true,
		output:      "none",
		command:     "sigrok-cli -d fx2lafw  --continuous",
		mqtt:        true,
	}

	tests := []struct {
		flag  string
		check func(*config.Config) bool
	}{
		{"station", func(c *config.Config) bool { return c.Station.ID == "loft" }},
		{"sample-rate", func(c *config.Config) bool { return c.Capture.SampleRate == "24MHz" }},
		{"channel", func(c *config.Config) bool { return c.Capture.Channel == 3 }},
		{"unit-size", func(c *config.Config) bool { return c.Capture.UnitSize == 2 }},
		{"active-low", func(c *config.Config) bool { return c.Capture.ActiveLow }},
		{"profile", func(c *config.Config) bool { return c.Decoder.Profile == "speed_only" }},
		{"legacy-masks", func(c *config.Config) bool { return c.Decoder.LegacyMasks }},
		{"strict-dispatch", func(c *config.Config) bool { return c.Decoder.StrictDispatch }},
		{"output", func(c *config.Config) bool { return !c.Annotations.Enabled }},
		{"exec", func(c *config.Config) bool { return len(c.Capture.Command) == 4 && c.Capture.Command[0] == "sigrok-cli" }},
		{"mqtt", func(c *config.Config) bool { return c.MQTT.Enabled }},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg := config.Default()
			applyFlag(cfg, f, tt.flag)
			if !tt.check(cfg) {
				t.Errorf("flag %s not applied", tt.flag)
			}
		})
	}
}

func TestFormatTelegram(t *testing.T) {
	tests := []struct {
		name string
		msg  bridge.TelegramMessage
		want string
	}{
		{
			name: "speed",
			msg: bridge.TelegramMessage{
				Kind:         "loco_speed",
				StartSeconds: 1.5,
				Bytes:        "03 76 75",
				Address:      &bridge.AddressInfo{Kind: "short", Value: 3},
				Speed:        &bridge.SpeedInfo{Steps: 28, Speed: 10, Direction: "forward"},
			},
			want: "1.500000 loco_speed short-3 S:10 forward [03 76 75]",
		},
		{
			name: "functions",
			msg: bridge.TelegramMessage{
				Kind:      "function_group",
				Address:   &bridge.AddressInfo{Kind: "long", Value: 1234},
				Functions: &bridge.FunctionInfo{Group: "F0-F4", Mask: 0x11, Enabled: []int{0, 4}},
			},
			want: "0.000000 function_group long-1234 F0-F4 on=[0 4]",
		},
		{
			name: "checksum",
			msg: bridge.TelegramMessage{
				Kind:     "checksum_error",
				Checksum: &bridge.ChecksumInfo{Computed: 0x4A, Received: 0x4B},
			},
			want: "0.000000 checksum_error computed=4A received=4B",
		},
		{
			name: "idle broadcast",
			msg: bridge.TelegramMessage{
				Kind:    "idle",
				Address: &bridge.AddressInfo{Kind: "broadcast"},
			},
			want: "0.000000 idle broadcast",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.Timestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			payload, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			got, err := formatTelegram(payload)
			if err != nil {
				t.Fatalf("formatTelegram() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("formatTelegram() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatTelegram_Invalid(t *testing.T) {
	if _, err := formatTelegram([]byte("{")); err == nil {
		t.Error("formatTelegram() should fail for malformed JSON")
	}
}
