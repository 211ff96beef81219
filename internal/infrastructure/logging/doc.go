// Package logging provides structured logging for dccmon.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Features
//
//   - Text output for interactive use, JSON for log collectors
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Writes to stderr by default; stdout is reserved for annotations
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("capture opened", "path", path, "sample_rate", rate)
//	logger.Error("broker unreachable", "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
