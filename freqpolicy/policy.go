// Package freqpolicy holds the DFS frequency bounds of a power management
// instance and clamps requested operating frequencies into them.
package freqpolicy

import (
	"fmt"

	"github.com/sarchlab/powerlock/timing"
)

// ConfigError reports an invalid frequency configuration. It is fatal: a
// component that gets one must refuse to initialize.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid frequency configuration: %s: %s",
		e.Field, e.Reason)
}

// Bounds are the effective frequency limits handed to the DFS driver.
type Bounds struct {
	MinMHz int
	MaxMHz int
}

// Policy clamps frequencies to optional lower and upper bounds. A bound of 0
// is not configured. A Policy is immutable.
type Policy struct {
	minMHz int
	maxMHz int
}

// New validates the bounds and creates a Policy. Pass 0 for a bound that is
// not configured.
func New(minMHz, maxMHz int) (*Policy, error) {
	if minMHz < 0 {
		return nil, &ConfigError{
			Field:  "min_freq_mhz",
			Reason: fmt.Sprintf("must not be negative, got %d", minMHz),
		}
	}

	if maxMHz < 0 {
		return nil, &ConfigError{
			Field:  "max_freq_mhz",
			Reason: fmt.Sprintf("must not be negative, got %d", maxMHz),
		}
	}

	if minMHz > 0 && maxMHz > 0 && minMHz > maxMHz {
		return nil, &ConfigError{
			Field: "min_freq_mhz",
			Reason: fmt.Sprintf(
				"%d MHz is above max_freq_mhz %d MHz", minMHz, maxMHz),
		}
	}

	return &Policy{minMHz: minMHz, maxMHz: maxMHz}, nil
}

// Unbounded returns a Policy without bounds.
func Unbounded() *Policy {
	return &Policy{}
}

// MinMHz returns the lower bound and whether it is configured.
func (p *Policy) MinMHz() (int, bool) {
	return p.minMHz, p.minMHz > 0
}

// MaxMHz returns the upper bound and whether it is configured.
func (p *Policy) MaxMHz() (int, bool) {
	return p.maxMHz, p.maxMHz > 0
}

// Clamp bounds requestedMHz to the configured side(s). Without bounds the
// input is returned unchanged.
func (p *Policy) Clamp(requestedMHz int) int {
	if p.minMHz > 0 && requestedMHz < p.minMHz {
		return p.minMHz
	}

	if p.maxMHz > 0 && requestedMHz > p.maxMHz {
		return p.maxMHz
	}

	return requestedMHz
}

// ClampFreq is Clamp for timing.Freq values. Sub-MHz precision is kept when
// no bound applies.
func (p *Policy) ClampFreq(f timing.Freq) timing.Freq {
	if p.minMHz > 0 && f < timing.FreqFromMHz(p.minMHz) {
		return timing.FreqFromMHz(p.minMHz)
	}

	if p.maxMHz > 0 && f > timing.FreqFromMHz(p.maxMHz) {
		return timing.FreqFromMHz(p.maxMHz)
	}

	return f
}

// Resolve fills unset bounds with platform defaults: the default CPU
// frequency for the maximum and the crystal frequency for the minimum. The
// result is what the DFS driver gets configured with.
func (p *Policy) Resolve(platformMaxMHz, xtalMHz int) Bounds {
	b := Bounds{MinMHz: p.minMHz, MaxMHz: p.maxMHz}

	if b.MaxMHz == 0 {
		b.MaxMHz = platformMaxMHz
	}

	if b.MinMHz == 0 {
		b.MinMHz = xtalMHz
	}

	if b.MinMHz > b.MaxMHz {
		b.MinMHz = b.MaxMHz
	}

	return b
}

func (p *Policy) String() string {
	lo, hi := "-", "-"

	if p.minMHz > 0 {
		lo = fmt.Sprintf("%dMHz", p.minMHz)
	}

	if p.maxMHz > 0 {
		hi = fmt.Sprintf("%dMHz", p.maxMHz)
	}

	return fmt.Sprintf("[%s, %s]", lo, hi)
}
