package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingLogger keeps warn messages for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintln(append([]any{msg}, args...)...))
}

func (l *recordingLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func shell(script string) Config {
	return Config{Name: "sh", Binary: "/bin/sh", Args: []string{"-c", script}}
}

func waitDone(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(Config{Binary: "/usr/bin/sigrok-cli"})

	if r.config.GracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("GracefulTimeout = %v, want %v", r.config.GracefulTimeout, DefaultGracefulTimeout)
	}
	if r.config.Name != "/usr/bin/sigrok-cli" {
		t.Errorf("Name = %q, want binary path", r.config.Name)
	}
	if r.Status() != StatusStopped {
		t.Errorf("initial Status() = %q, want %q", r.Status(), StatusStopped)
	}
	if r.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if r.PID() != 0 {
		t.Errorf("PID() = %d, want 0", r.PID())
	}
	if r.Done() != nil {
		t.Error("Done() should be nil before Start")
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop() before Start = %v, want nil", err)
	}
}

func TestRunner_StartErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"no binary", Config{Name: "empty"}, ErrNoBinary},
		{"missing binary", Config{Binary: "/nonexistent/acquire"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(tt.cfg)
			_, err := r.Start(context.Background())
			if err == nil {
				t.Fatal("Start() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Start() = %v, want %v", err, tt.wantErr)
			}
			if r.IsRunning() {
				t.Error("IsRunning() = true after failed start")
			}
		})
	}
}

func TestRunner_StreamsStdout(t *testing.T) {
	r := NewRunner(shell("printf 'abc'; printf 'def'"))
	out, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Stop()

	data, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "abcdef" {
		t.Errorf("stdout = %q, want %q", data, "abcdef")
	}

	waitDone(t, r)
	if r.Status() != StatusExited {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusExited)
	}
	if r.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", r.LastError())
	}
	if stats := r.Stats(); stats.PID == 0 || stats.Status != StatusExited {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestRunner_FailedExit(t *testing.T) {
	exitErr := make(chan error, 1)
	cfg := shell("exit 3")
	cfg.OnExit = func(err error) { exitErr <- err }

	r := NewRunner(cfg)
	out, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Stop()

	if _, err := io.ReadAll(out); err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	waitDone(t, r)

	if r.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusFailed)
	}
	if r.LastError() == nil {
		t.Error("LastError() = nil, want exit error")
	}
	if err := <-exitErr; err == nil {
		t.Error("OnExit called with nil error")
	}
	if r.Stats().LastError == "" {
		t.Error("Stats().LastError is empty")
	}
}

func TestRunner_StopTerminates(t *testing.T) {
	cfg := shell("sleep 30")
	cfg.GracefulTimeout = 2 * time.Second

	r := NewRunner(cfg)
	if _, err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}

	if _, err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	start := time.Now()
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Stop() took %v", elapsed)
	}
	if r.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusStopped)
	}
	if r.LastError() != nil {
		t.Errorf("LastError() = %v, want nil after requested stop", r.LastError())
	}

	// Second stop is a no-op.
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop() = %v, want nil", err)
	}
}

func TestRunner_LogsStderr(t *testing.T) {
	logger := &recordingLogger{}
	r := NewRunner(shell("echo 'device not found' >&2"))
	r.SetLogger(logger)

	out, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Stop()

	if _, err := io.ReadAll(out); err != nil {
		t.Fatal(err)
	}
	waitDone(t, r)

	found := false
	for _, w := range logger.all() {
		if strings.Contains(w, "device not found") {
			found = true
		}
	}
	if !found {
		t.Errorf("stderr line not logged, got %v", logger.all())
	}
}
