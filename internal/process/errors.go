package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the process is running.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrNoBinary is returned by Start when Config.Binary is empty.
	ErrNoBinary = errors.New("process: no binary configured")
)
