package capture

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/nerrad567/gray-logic-dcc/internal/process"
)

// startCommand runs opts.Command and returns its stdout. Closing the
// returned closer stops the process and reports a failed exit.
func startCommand(opts Options) (io.Reader, io.Closer, error) {
	runner := process.NewRunner(process.Config{
		Name:            filepath.Base(opts.Command[0]),
		Binary:          opts.Command[0],
		Args:            opts.Command[1:],
		GracefulTimeout: opts.StopTimeout,
	})
	if opts.Logger != nil {
		runner.SetLogger(opts.Logger)
	}

	stdout, err := runner.Start(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("starting acquisition: %w", err)
	}

	return stdout, closerFunc(func() error {
		if err := runner.Stop(); err != nil {
			return err
		}
		if err := runner.LastError(); err != nil {
			return fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
		}
		return nil
	}), nil
}
