package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
	"github.com/nerrad567/gray-logic-dcc/internal/process"
)

// Format names.
const (
	FormatAuto  = ""
	FormatLogic = "logic"
	FormatText  = "text"
)

// Compression names.
const (
	CompressionAuto = ""
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// Options describes how to open a capture.
type Options struct {
	// Path is the capture file, "-" for standard input.
	Path string

	// Format is "logic" or "text"; empty picks text for .txt/.edges files and
	// logic otherwise.
	Format string

	// Compression is "none", "gzip" or "zstd"; empty detects .gz/.zst.
	Compression string

	// SampleRate in Hz. Text captures may supply it in their header instead.
	SampleRate uint64

	// UnitSize is the logic sample word size in bytes (1-8).
	UnitSize int

	// Channel is the bit index of the DCC signal within a sample word.
	Channel int

	// ActiveLow selects the falling edge for initial alignment.
	ActiveLow bool

	// Command, when set, is run instead of opening Path and its standard
	// output is decoded. The first element is the executable.
	Command []string

	// StopTimeout bounds the graceful shutdown of Command.
	StopTimeout time.Duration

	// Logger receives the lifecycle and stderr of Command (optional).
	Logger process.Logger
}

// Source is an edge source backed by an open file.
type Source interface {
	dcc.EdgeSource
	io.Closer
}

type fileSource struct {
	dcc.EdgeSource
	closers []io.Closer
}

func (f *fileSource) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

// Open opens a capture file, or starts the capture command, and returns an
// edge source over it.
//
// Parameters:
//   - opts: file, format, compression and channel settings
//
// Returns:
//   - Source: edge source; the caller must Close it
//   - error: if the file cannot be opened or the options are invalid
func Open(opts Options) (Source, error) {
	format, err := resolveFormat(opts)
	if err != nil {
		return nil, err
	}
	compression, err := resolveCompression(opts)
	if err != nil {
		return nil, err
	}

	var (
		raw     io.Reader
		closers []io.Closer
	)
	switch {
	case len(opts.Command) > 0:
		r, closer, err := startCommand(opts)
		if err != nil {
			return nil, err
		}
		raw = r
		closers = append(closers, closer)
	case opts.Path == "-":
		raw = os.Stdin
	default:
		f, err := os.Open(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("opening capture: %w", err)
		}
		raw = f
		closers = append(closers, f)
	}

	closeAll := func() {
		_ = (&fileSource{closers: closers}).Close()
	}

	r, closer, err := Decompress(raw, compression)
	if err != nil {
		closeAll()
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	var src dcc.EdgeSource
	switch format {
	case FormatText:
		src, err = NewTextReader(r, opts.SampleRate)
	default:
		unit := opts.UnitSize
		if unit == 0 {
			unit = 1
		}
		src, err = NewLogicReader(r, opts.SampleRate, unit, opts.Channel, opts.ActiveLow)
	}
	if err != nil {
		closeAll()
		return nil, err
	}

	return &fileSource{EdgeSource: src, closers: closers}, nil
}

// Decompress wraps r for the named compression. The returned closer, when not
// nil, must be closed to release decoder resources.
func Decompress(r io.Reader, compression string) (io.Reader, io.Closer, error) {
	switch compression {
	case CompressionNone, CompressionAuto:
		return r, nil, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, zr, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zr, closerFunc(func() error { zr.Close(); return nil }), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}

func resolveCompression(opts Options) (string, error) {
	c := strings.ToLower(strings.TrimSpace(opts.Compression))
	switch c {
	case CompressionNone, CompressionGzip, CompressionZstd:
		return c, nil
	case CompressionAuto:
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".gz", ".gzip":
			return CompressionGzip, nil
		case ".zst", ".zstd":
			return CompressionZstd, nil
		default:
			return CompressionNone, nil
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, opts.Compression)
	}
}

func resolveFormat(opts Options) (string, error) {
	f := strings.ToLower(strings.TrimSpace(opts.Format))
	switch f {
	case FormatLogic, FormatText:
		return f, nil
	case FormatAuto:
		name := strings.ToLower(opts.Path)
		for _, ext := range []string{".gz", ".gzip", ".zst", ".zstd"} {
			name = strings.TrimSuffix(name, ext)
		}
		switch filepath.Ext(name) {
		case ".txt", ".edges", ".csv":
			return FormatText, nil
		default:
			return FormatLogic, nil
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}
