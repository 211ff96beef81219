// Package process runs an external acquisition tool and streams its
// standard output.
//
// dccmon uses it to decode live captures: a logic analyser front end such as
// sigrok-cli writes raw samples to stdout and the decoder reads them through
// the pipe returned by Runner.Start.
//
// Features:
//   - Start/stop with graceful shutdown of the whole process group
//   - Stderr lines forwarded to the logger
//   - Exit status and statistics reporting
//
// Example usage:
//
//	r := process.NewRunner(process.Config{
//	    Name:   "sigrok-cli",
//	    Binary: "sigrok-cli",
//	    Args:   []string{"-d", "fx2lafw", "-c", "samplerate=1m", "--continuous", "-O", "binary"},
//	})
//
//	stdout, err := r.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer r.Stop()
package process
