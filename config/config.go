// Package config loads power management instances and their automations
// from YAML files, and the command line defaults from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/powerlock/freqpolicy"
	"github.com/sarchlab/powerlock/powermanagement"
	"github.com/sarchlab/powerlock/timing"
)

// DefaultID is the ID of an instance that does not name itself.
const DefaultID = "pm0"

// Instance is the configuration block of one power management instance.
type Instance struct {
	ID                   string     `yaml:"id"`
	InitialLockDuration  *Duration  `yaml:"initial_lock_duration"`
	MaxFrequency         *Frequency `yaml:"max_frequency"`
	MinFrequency         *Frequency `yaml:"min_frequency"`
	PowerDownPeripherals bool       `yaml:"power_down_peripherals"`
	PowerDownFlash       bool       `yaml:"power_down_flash"`
	Profiling            bool       `yaml:"profiling"`
	TicklessIdle         bool       `yaml:"tickless_idle"`
	Trace                bool       `yaml:"trace"`
	StartupLock          *bool      `yaml:"startup_lock"`
	TickFrequency        *Frequency `yaml:"tick_frequency"`
	PlatformMaxFrequency *Frequency `yaml:"platform_max_frequency"`
	XtalFrequency        *Frequency `yaml:"xtal_frequency"`
}

// Instances accepts either a single instance block or a list of them.
type Instances []Instance

// UnmarshalYAML decodes a mapping or a sequence of instances.
func (is *Instances) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var single Instance
		if err := value.Decode(&single); err != nil {
			return err
		}

		*is = Instances{single}

		return nil
	}

	var list []Instance
	if err := value.Decode(&list); err != nil {
		return err
	}

	*is = list

	return nil
}

// Step is one action of an automation, such as
// {power_management.acquire_lock: pm0}. It must have exactly one entry.
type Step map[string]string

// Kind returns the action kind and the ID of its parent instance.
func (s Step) Kind() (kind, parentID string) {
	for k, v := range s {
		return k, v
	}

	return "", ""
}

// TimeTrigger runs its steps at a fixed time after start.
type TimeTrigger struct {
	Name string   `yaml:"name"`
	At   Duration `yaml:"at"`
	Then []Step   `yaml:"then"`
}

// File is the content of a configuration file.
type File struct {
	PowerManagement Instances     `yaml:"power_management"`
	OnTime          []TimeTrigger `yaml:"on_time"`

	// RunFor limits how long the virtual timeline runs. 0 runs until there
	// is nothing left to do.
	RunFor Duration `yaml:"run_for"`
}

// ErrNoInstance is returned for files that configure no power management.
var ErrNoInstance = errors.New("no power_management instance configured")

// Load reads and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// Parse decodes and validates a configuration.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	if err := f.normalize(); err != nil {
		return nil, err
	}

	return &f, nil
}

func (f *File) normalize() error {
	if len(f.PowerManagement) == 0 {
		return ErrNoInstance
	}

	seen := make(map[string]bool)

	for i := range f.PowerManagement {
		inst := &f.PowerManagement[i]
		if inst.ID == "" {
			if len(f.PowerManagement) > 1 {
				return fmt.Errorf("power_management[%d]: id is required", i)
			}

			inst.ID = DefaultID
		}

		if seen[inst.ID] {
			return fmt.Errorf("power_management: duplicated id %q", inst.ID)
		}

		seen[inst.ID] = true

		if err := inst.checkFrequencies(); err != nil {
			return fmt.Errorf("power_management[%d]: %w", i, err)
		}
	}

	for i, t := range f.OnTime {
		if t.At < 0 {
			return fmt.Errorf("on_time[%d]: at must not be negative", i)
		}

		for j, s := range t.Then {
			if len(s) != 1 {
				return fmt.Errorf(
					"on_time[%d].then[%d]: expected one action, got %d",
					i, j, len(s))
			}
		}
	}

	return nil
}

// Bounds are kept in whole MHz, so a non-zero bound under 1 MHz would
// silently turn into "unbounded".
func (i Instance) checkFrequencies() error {
	bounds := []struct {
		field string
		freq  *Frequency
	}{
		{"max_frequency", i.MaxFrequency},
		{"min_frequency", i.MinFrequency},
		{"platform_max_frequency", i.PlatformMaxFrequency},
		{"xtal_frequency", i.XtalFrequency},
	}

	for _, b := range bounds {
		if b.freq == nil || *b.freq == 0 || b.freq.MHz() > 0 {
			continue
		}

		return &freqpolicy.ConfigError{
			Field: b.field,
			Reason: fmt.Sprintf("must be 0 or at least 1 MHz, got %d Hz",
				*b.freq),
		}
	}

	if i.TickFrequency != nil && timing.Freq(*i.TickFrequency) > timing.GHz {
		return &freqpolicy.ConfigError{
			Field: "tick_frequency",
			Reason: fmt.Sprintf("must not exceed 1 GHz, got %d Hz",
				*i.TickFrequency),
		}
	}

	return nil
}

// Instance finds an instance by ID.
func (f *File) Instance(id string) (Instance, bool) {
	for _, inst := range f.PowerManagement {
		if inst.ID == id {
			return inst, true
		}
	}

	return Instance{}, false
}

// ComponentConfig converts the block into a component configuration.
func (i Instance) ComponentConfig() powermanagement.Config {
	c := powermanagement.DefaultConfig()

	if i.InitialLockDuration != nil {
		c.InitialLockDuration = time.Duration(*i.InitialLockDuration)
	}

	if i.MaxFrequency != nil {
		c.MaxFreqMHz = i.MaxFrequency.MHz()
	}

	if i.MinFrequency != nil {
		c.MinFreqMHz = i.MinFrequency.MHz()
	}

	if i.PlatformMaxFrequency != nil {
		c.PlatformMaxMHz = i.PlatformMaxFrequency.MHz()
	}

	if i.XtalFrequency != nil {
		c.XtalMHz = i.XtalFrequency.MHz()
	}

	c.PowerDownPeripherals = i.PowerDownPeripherals
	c.PowerDownFlash = i.PowerDownFlash
	c.Profiling = i.Profiling
	c.TicklessIdle = i.TicklessIdle
	c.Trace = i.Trace

	c.StartupLock = true
	if i.StartupLock != nil {
		c.StartupLock = *i.StartupLock
	}

	return c
}

// TickFreq returns the expiry tick frequency, 1 kHz unless configured.
func (i Instance) TickFreq() timing.Freq {
	if i.TickFrequency == nil || *i.TickFrequency == 0 {
		return 1 * timing.KHz
	}

	return timing.Freq(*i.TickFrequency)
}
