package powermanagement

import (
	"fmt"
	"time"

	"github.com/sarchlab/powerlock/freqpolicy"
	"github.com/sarchlab/powerlock/sleepgate"
)

// Config is the static configuration of a power management instance.
type Config struct {
	// InitialLockDuration is the lifetime of the startup lock and of every
	// lock acquired without an explicit duration. 0 means locks are held
	// until released.
	InitialLockDuration time.Duration

	// MinFreqMHz and MaxFreqMHz bound the DFS frequency. 0 leaves the bound
	// to the platform default.
	MinFreqMHz int
	MaxFreqMHz int

	TicklessIdle         bool
	PowerDownPeripherals bool
	PowerDownFlash       bool
	Profiling            bool
	Trace                bool

	// StartupLock takes a lock for the self user at Start. It only has an
	// effect when InitialLockDuration is set.
	StartupLock bool

	// PlatformMaxMHz is the default CPU frequency and XtalMHz the crystal
	// frequency of the chip.
	PlatformMaxMHz int
	XtalMHz        int
}

// DefaultConfig returns the configuration of an ESP32 class chip without
// any power saving feature enabled.
func DefaultConfig() Config {
	return Config{
		PlatformMaxMHz: 160,
		XtalMHz:        40,
	}
}

// Flags returns the sleep gate flags of the configuration.
func (c Config) Flags() sleepgate.Flags {
	return sleepgate.Flags{
		TicklessIdle:         c.TicklessIdle,
		PowerDownPeripherals: c.PowerDownPeripherals,
		PowerDownFlash:       c.PowerDownFlash,
	}
}

// Validate checks the configuration and creates its frequency policy.
func (c Config) Validate() (*freqpolicy.Policy, error) {
	if c.InitialLockDuration < 0 {
		return nil, &freqpolicy.ConfigError{
			Field: "initial_lock_duration",
			Reason: fmt.Sprintf("must not be negative, got %s",
				c.InitialLockDuration),
		}
	}

	if c.PlatformMaxMHz <= 0 {
		return nil, &freqpolicy.ConfigError{
			Field:  "platform_max_mhz",
			Reason: fmt.Sprintf("must be positive, got %d", c.PlatformMaxMHz),
		}
	}

	if c.XtalMHz <= 0 {
		return nil, &freqpolicy.ConfigError{
			Field:  "xtal_mhz",
			Reason: fmt.Sprintf("must be positive, got %d", c.XtalMHz),
		}
	}

	return freqpolicy.New(c.MinFreqMHz, c.MaxFreqMHz)
}

// ignoredFlags lists the power-down flags that cannot take effect because
// tickless idle is off.
func (c Config) ignoredFlags() []string {
	if c.TicklessIdle {
		return nil
	}

	var ignored []string

	if c.PowerDownPeripherals {
		ignored = append(ignored, "power_down_peripherals")
	}

	if c.PowerDownFlash {
		ignored = append(ignored, "power_down_flash")
	}

	return ignored
}
