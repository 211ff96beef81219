package metrics

import "errors"

// ErrServerFailed is returned when the metrics HTTP server stops unexpectedly.
var ErrServerFailed = errors.New("metrics: server failed")
