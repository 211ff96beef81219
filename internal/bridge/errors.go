package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrNoPublisher is returned when a sink or reporter is built without
	// an MQTT publisher.
	ErrNoPublisher = errors.New("bridge: publisher is required")

	// ErrEncodingFailed is returned when a message cannot be serialised.
	ErrEncodingFailed = errors.New("bridge: message encoding failed")
)
