package dcc

import "errors"

// Domain errors for the DCC decoder.
var (
	// ErrMissingSampleRate is returned when decoding is attempted without a
	// sample rate. Thresholds cannot be derived, so no edge is consumed.
	ErrMissingSampleRate = errors.New("dcc: cannot decode without sample rate")

	// ErrInvalidThresholds is returned when the timing windows are empty,
	// inverted or overlap each other.
	ErrInvalidThresholds = errors.New("dcc: invalid timing thresholds")

	// ErrUndefinedCommand is returned by a CommandDecodeProfile when the command
	// byte(s) do not match any grammar allowed for the telegram length.
	ErrUndefinedCommand = errors.New("dcc: undefined command")

	// ErrNonMonotonicEdge is returned when an edge source yields a timestamp
	// earlier than the previous one.
	ErrNonMonotonicEdge = errors.New("dcc: edge timestamps not monotonic")

	// ErrUnknownProfile is returned when a profile name cannot be resolved.
	ErrUnknownProfile = errors.New("dcc: unknown command decode profile")
)
