package dcc

import (
	"fmt"
	"math"
)

// Default timing options in microseconds. The one/zero windows cover the full bit
// cell (both half-bits).
const (
	DefaultJitterUs  = 10.0
	DefaultOneMinUs  = 100.0
	DefaultOneMaxUs  = 130.0
	DefaultZeroMinUs = 190.0
	DefaultZeroMaxUs = 250.0
)

// TimingOptions holds the user-facing timing settings in microseconds.
type TimingOptions struct {
	JitterUs  float64 `yaml:"jitter_us"`
	OneMinUs  float64 `yaml:"one_min_us"`
	OneMaxUs  float64 `yaml:"one_max_us"`
	ZeroMinUs float64 `yaml:"zero_min_us"`
	ZeroMaxUs float64 `yaml:"zero_max_us"`
}

// DefaultTimingOptions returns the standard DCC receiver windows.
func DefaultTimingOptions() TimingOptions {
	return TimingOptions{
		JitterUs:  DefaultJitterUs,
		OneMinUs:  DefaultOneMinUs,
		OneMaxUs:  DefaultOneMaxUs,
		ZeroMinUs: DefaultZeroMinUs,
		ZeroMaxUs: DefaultZeroMaxUs,
	}
}

// Thresholds are the timing-classification parameters expressed in samples.
//
// The one and zero windows are half-open: [Min, Max). They may be adjacent but
// must not overlap.
type Thresholds struct {
	Jitter  uint64
	OneMin  uint64
	OneMax  uint64
	ZeroMin uint64
	ZeroMax uint64
}

// Thresholds converts the options to sample counts for the given sample rate.
//
// Each value is computed as round(us * 1e-6 * sampleRate).
//
// Returns:
//   - Thresholds: sample-count windows
//   - error: ErrMissingSampleRate if sampleRate is zero, ErrInvalidThresholds if
//     the resulting windows are empty or overlap
func (o TimingOptions) Thresholds(sampleRate uint64) (Thresholds, error) {
	if sampleRate == 0 {
		return Thresholds{}, ErrMissingSampleRate
	}

	th := Thresholds{
		Jitter:  usToSamples(o.JitterUs, sampleRate),
		OneMin:  usToSamples(o.OneMinUs, sampleRate),
		OneMax:  usToSamples(o.OneMaxUs, sampleRate),
		ZeroMin: usToSamples(o.ZeroMinUs, sampleRate),
		ZeroMax: usToSamples(o.ZeroMaxUs, sampleRate),
	}
	if err := th.Validate(); err != nil {
		return Thresholds{}, err
	}
	return th, nil
}

// Validate checks that both windows are non-empty and disjoint.
func (t Thresholds) Validate() error {
	if t.OneMin >= t.OneMax {
		return fmt.Errorf("%w: one window [%d, %d) is empty", ErrInvalidThresholds, t.OneMin, t.OneMax)
	}
	if t.ZeroMin >= t.ZeroMax {
		return fmt.Errorf("%w: zero window [%d, %d) is empty", ErrInvalidThresholds, t.ZeroMin, t.ZeroMax)
	}
	if t.OneMin < t.ZeroMax && t.ZeroMin < t.OneMax {
		return fmt.Errorf("%w: one window [%d, %d) overlaps zero window [%d, %d)",
			ErrInvalidThresholds, t.OneMin, t.OneMax, t.ZeroMin, t.ZeroMax)
	}
	return nil
}

// Classify maps a full bit-cell duration to a Bit.
func (t Thresholds) Classify(duration uint64) Bit {
	switch {
	case duration >= t.ZeroMin && duration < t.ZeroMax:
		return Zero
	case duration >= t.OneMin && duration < t.OneMax:
		return One
	default:
		return Invalid
	}
}

func usToSamples(us float64, sampleRate uint64) uint64 {
	if us <= 0 {
		return 0
	}
	return uint64(math.Round(us * 1e-6 * float64(sampleRate)))
}
