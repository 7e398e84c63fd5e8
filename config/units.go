package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/powerlock/timing"
)

// Duration is a time.Duration that can be written as "5000ms", "5s", or as
// a bare number of milliseconds.
type Duration time.Duration

// UnmarshalYAML parses a duration node.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML writes the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses a duration with a unit, or a bare number of
// milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	return d, nil
}

// Frequency is a frequency that can be written as "160MHz", "1 kHz", or as
// a bare number of MHz.
type Frequency timing.Freq

// UnmarshalYAML parses a frequency node.
func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := ParseFrequency(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*f = Frequency(parsed)

	return nil
}

// MHz returns the frequency in whole MHz.
func (f Frequency) MHz() int {
	return int(timing.Freq(f) / timing.MHz)
}

var frequencyUnits = []struct {
	suffix string
	unit   timing.Freq
}{
	{"ghz", timing.GHz},
	{"mhz", timing.MHz},
	{"khz", timing.KHz},
	{"hz", timing.Hz},
}

// ParseFrequency parses a frequency with a unit, or a bare number of MHz.
func ParseFrequency(s string) (timing.Freq, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))

	unit := timing.MHz
	number := s

	for _, u := range frequencyUnits {
		if strings.HasSuffix(s, u.suffix) {
			unit = u.unit
			number = strings.TrimSuffix(s, u.suffix)

			break
		}
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}

	return timing.Freq(math.Round(value * float64(unit))), nil
}
