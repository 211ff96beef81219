package capture

import "errors"

// Domain errors for capture sources.
var (
	// ErrUnknownFormat is returned when the capture format cannot be resolved.
	ErrUnknownFormat = errors.New("capture: unknown format")

	// ErrUnknownCompression is returned for an unsupported compression name.
	ErrUnknownCompression = errors.New("capture: unknown compression")

	// ErrInvalidUnitSize is returned when the sample word size is outside 1..8.
	ErrInvalidUnitSize = errors.New("capture: unit size must be 1-8 bytes")

	// ErrInvalidChannel is returned when the channel does not fit the unit size.
	ErrInvalidChannel = errors.New("capture: channel out of range for unit size")

	// ErrInvalidSampleRate is returned for a sample rate that is not a
	// positive finite frequency.
	ErrInvalidSampleRate = errors.New("capture: invalid sample rate")

	// ErrMalformedLine is returned when a text capture line is not a sample index.
	ErrMalformedLine = errors.New("capture: malformed edge line")

	// ErrTruncatedSample is returned when a logic capture ends mid-sample.
	ErrTruncatedSample = errors.New("capture: truncated sample word")

	// ErrAcquisitionFailed is returned by Close when the capture command
	// exited with an error.
	ErrAcquisitionFailed = errors.New("capture: acquisition command failed")
)
