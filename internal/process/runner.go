package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of the process.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusFailed  Status = "failed"
)

// DefaultGracefulTimeout is used when Config.GracefulTimeout is zero.
const DefaultGracefulTimeout = 5 * time.Second

// maxStderrLine bounds a single logged stderr line.
const maxStderrLine = 64 * 1024

// Config holds configuration for an acquisition process.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, looked up in PATH when it has no slash.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnExit is called once the process has exited. err is nil after a
	// clean exit or a requested stop.
	OnExit func(err error)
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner starts one process and hands its stdout to the caller.
//
// A Runner is single-use: once the process has exited it cannot be
// restarted, since a new process would not continue the sample stream.
type Runner struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	stdout        *os.File
	status        Status
	lastError     error
	startTime     time.Time
	exitTime      time.Time
	stopRequested bool
	started       bool

	done chan struct{}
}

// NewRunner creates a runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	return &Runner{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the runner. Call before Start.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Start launches the process and returns the read end of its stdout.
//
// The reader returns io.EOF once the process has exited and everything it
// wrote has been read. It is closed by Stop.
func (r *Runner) Start(ctx context.Context) (io.Reader, error) {
	if r.config.Binary == "" {
		return nil, ErrNoBinary
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, r.config.Name)
	}

	r.logger.Info("starting acquisition process",
		"name", r.config.Name,
		"binary", r.config.Binary,
		"args", r.config.Args,
	)

	cmd := exec.CommandContext(ctx, r.config.Binary, r.config.Args...) //nolint:gosec // command comes from the operator's config

	// Create a new process group so we can signal all children on shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if r.config.Env != nil {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}
	if r.config.WorkDir != "" {
		cmd.Dir = r.config.WorkDir
	}

	// An explicit pipe keeps the read end open after Wait, so samples
	// still buffered when the process exits are not lost.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stdout = pw

	stderr, err := cmd.StderrPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		r.status = StatusFailed
		r.lastError = err
		return nil, fmt.Errorf("starting %s: %w", r.config.Name, err)
	}
	pw.Close()

	r.cmd = cmd
	r.stdout = pr
	r.status = StatusRunning
	r.started = true
	r.startTime = time.Now()
	r.done = make(chan struct{})

	r.logger.Info("acquisition process started",
		"name", r.config.Name,
		"pid", cmd.Process.Pid,
	)

	go r.monitor(cmd, stderr)

	return pr, nil
}

// logStderr forwards each stderr line to the logger until the stream closes.
func (r *Runner) logStderr(stderr io.Reader) {
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 4096), maxStderrLine)
	for sc.Scan() {
		r.logger.Warn("acquisition process output",
			"name", r.config.Name,
			"line", sc.Text(),
		)
	}
}

// monitor waits for the process to exit and records the outcome.
func (r *Runner) monitor(cmd *exec.Cmd, stderr io.Reader) {
	defer close(r.done)

	// Wait closes the stderr pipe, so drain it first.
	r.logStderr(stderr)
	err := cmd.Wait()

	r.mu.Lock()
	r.exitTime = time.Now()
	stopRequested := r.stopRequested
	// A process that exited on its own keeps its status even when Stop
	// raced with the exit.
	stopped := stopRequested && (err == nil || signaled(err))
	switch {
	case stopped:
		r.status = StatusStopped
		err = nil
	case err != nil:
		r.status = StatusFailed
		r.lastError = err
	default:
		r.status = StatusExited
	}
	r.mu.Unlock()

	switch {
	case stopped:
		r.logger.Info("acquisition process stopped as requested", "name", r.config.Name)
	case err != nil:
		r.logger.Error("acquisition process failed", "name", r.config.Name, "error", err)
	default:
		r.logger.Info("acquisition process exited", "name", r.config.Name)
	}

	if r.config.OnExit != nil {
		r.config.OnExit(err)
	}
}

// signaled reports whether err is the exit of a process killed by a signal.
func signaled(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled()
}

// Stop terminates the process group and closes the stdout reader.
// It sends SIGTERM and waits GracefulTimeout before sending SIGKILL.
// Safe to call when the process has already exited.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	running := r.status == StatusRunning
	if running {
		r.stopRequested = true
	}
	cmd := r.cmd
	done := r.done
	stdout := r.stdout
	r.mu.Unlock()

	if !running {
		<-done
		_ = stdout.Close()
		return nil
	}

	pid := cmd.Process.Pid
	r.logger.Info("stopping acquisition process", "name", r.config.Name, "pid", pid)

	// Use negative PID to signal the process group (created via Setpgid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.logger.Warn("failed to send SIGTERM to process group", "name", r.config.Name, "error", err)
	}

	// Unread output would block the writer, so close the reader while waiting.
	_ = stdout.Close()

	select {
	case <-done:
		return nil
	case <-time.After(r.config.GracefulTimeout):
		r.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", r.config.Name,
			"timeout", r.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", r.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status of the process.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// IsRunning returns true if the process is currently running.
func (r *Runner) IsRunning() bool {
	return r.Status() == StatusRunning
}

// LastError returns the error the process failed with, nil after a clean
// exit or a requested stop.
func (r *Runner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastError
}

// Done is closed once the process has exited. It is nil before Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// PID returns the process ID, or 0 if never started.
func (r *Runner) PID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cmd != nil && r.cmd.Process != nil {
		return r.cmd.Process.Pid
	}
	return 0
}

// Stats describes the acquisition process.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Name:   r.config.Name,
		Status: r.status,
	}
	if r.cmd != nil && r.cmd.Process != nil {
		stats.PID = r.cmd.Process.Pid
	}
	switch {
	case r.status == StatusRunning:
		stats.Uptime = time.Since(r.startTime)
	case r.started:
		stats.Uptime = r.exitTime.Sub(r.startTime)
	}
	if r.lastError != nil {
		stats.LastError = r.lastError.Error()
	}
	return stats
}
