package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// TextReader reads edge sample indices, one per line.
//
// Blank lines and lines starting with '#' are skipped. A leading
// "# samplerate: N" comment sets the sample rate when none was given.
type TextReader struct {
	sc   *bufio.Scanner
	rate uint64
	line int

	pending    string
	hasPending bool
}

// NewTextReader creates a reader and consumes the comment header.
func NewTextReader(r io.Reader, sampleRate uint64) (*TextReader, error) {
	t := &TextReader{sc: bufio.NewScanner(r), rate: sampleRate}

	for t.sc.Scan() {
		t.line++
		line := strings.TrimSpace(t.sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			t.pending = line
			t.hasPending = true
			break
		}
		if rate, ok := parseRateHeader(line); ok && t.rate == 0 {
			t.rate = rate
		}
	}
	if err := t.sc.Err(); err != nil {
		return nil, fmt.Errorf("reading edge list header: %w", err)
	}
	return t, nil
}

// SampleRate implements dcc.EdgeSource.
func (t *TextReader) SampleRate() uint64 {
	return t.rate
}

// NextEdge implements dcc.EdgeSource.
func (t *TextReader) NextEdge(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if t.hasPending {
		t.hasPending = false
		return t.parse(t.pending)
	}

	for t.sc.Scan() {
		t.line++
		line := strings.TrimSpace(t.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return t.parse(line)
	}
	if err := t.sc.Err(); err != nil {
		return 0, err
	}
	return 0, io.EOF
}

func (t *TextReader) parse(line string) (uint64, error) {
	// allow "index level" and "index,level" pairs; only the index is used
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) > 0 {
		line = fields[0]
	}
	v, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %q", ErrMalformedLine, t.line, line)
	}
	return v, nil
}

// parseRateHeader accepts "# samplerate: 1000000" and "# samplerate=1 MHz".
func parseRateHeader(line string) (uint64, bool) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	key, value, found := strings.Cut(body, ":")
	if !found {
		key, value, found = strings.Cut(body, "=")
	}
	if !found || !strings.EqualFold(strings.TrimSpace(key), "samplerate") {
		return 0, false
	}
	rate, err := ParseSampleRate(value)
	if err != nil {
		return 0, false
	}
	return rate, true
}

// ParseSampleRate parses a rate such as "1000000", "24MHz", "500 kHz" or "1e6".
func ParseSampleRate(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	mult := 1.0
	for _, unit := range []struct {
		suffix string
		mult   float64
	}{
		{"ghz", 1e9},
		{"mhz", 1e6},
		{"khz", 1e3},
		{"hz", 1},
	} {
		if strings.HasSuffix(lower, unit.suffix) {
			mult = unit.mult
			lower = strings.TrimSpace(strings.TrimSuffix(lower, unit.suffix))
			break
		}
	}
	v, err := strconv.ParseFloat(lower, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSampleRate, s)
	}
	hz := math.Round(v * mult)
	if math.IsNaN(hz) || hz < 1 || hz >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSampleRate, s)
	}
	return uint64(hz), nil
}
