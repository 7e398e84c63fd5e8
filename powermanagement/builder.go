package powermanagement

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/powerlock/freqpolicy"
	"github.com/sarchlab/powerlock/id"
	"github.com/sarchlab/powerlock/lockregistry"
	"github.com/sarchlab/powerlock/sleepgate"
	"github.com/sarchlab/powerlock/timing"
)

// Builder can build power management components.
type Builder struct {
	engine   timing.EventScheduler
	freq     timing.Freq
	config   Config
	platform sleepgate.Platform
	ids      id.Generator
	log      logr.Logger
}

// MakeBuilder returns a Builder with a 1 kHz expiry tick and the default
// configuration.
func MakeBuilder() Builder {
	return Builder{
		freq:   1 * timing.KHz,
		config: DefaultConfig(),
		log:    logr.Discard(),
	}
}

// WithEngine sets the engine that drives the component.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithTickFreq sets how often timed locks are checked for expiry.
func (b Builder) WithTickFreq(freq timing.Freq) Builder {
	b.freq = freq
	return b
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithPlatform sets the platform that is told when sleep is permitted.
func (b Builder) WithPlatform(platform sleepgate.Platform) Builder {
	b.platform = platform
	return b
}

// WithIDGenerator sets the generator of lock IDs. By default lock IDs are
// prefixed with the component name.
func (b Builder) WithIDGenerator(ids id.Generator) Builder {
	b.ids = ids
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(log logr.Logger) Builder {
	b.log = log
	return b
}

// Build creates a new Comp. It fails if the configuration is invalid.
func (b Builder) Build(name string) (*Comp, error) {
	if b.engine == nil {
		panic("power management requires an engine")
	}

	if err := validateTickFreq(b.freq); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	policy, err := b.config.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	c := &Comp{
		config: b.config,
		policy: policy,
		bounds: policy.Resolve(b.config.PlatformMaxMHz, b.config.XtalMHz),
		log:    b.log.WithValues("component", name),
		stats:  make(map[lockregistry.Type]*TypeStats),
	}
	c.TickingComponent = timing.NewTickingComponent(name, b.engine, b.freq, c)

	for _, flag := range b.config.ignoredFlags() {
		c.log.Info("ignoring power down flag, tickless idle is disabled",
			"flag", flag)
	}

	ids := b.ids
	if ids == nil {
		ids = id.NewPrefixedGenerator(name)
	}

	registryBuilder := lockregistry.MakeBuilder().
		WithClock(b.engine).
		WithIDGenerator(ids).
		WithListener(c).
		WithLogger(c.log)
	if b.config.InitialLockDuration > 0 {
		registryBuilder = registryBuilder.
			WithDefaultDuration(b.config.InitialLockDuration)
	}

	c.registry = registryBuilder.Build()
	c.registry.AcceptHook(c)

	c.gate = sleepgate.NewGate(b.config.Flags(), 0)
	c.gate.AcceptHook(c)

	if b.platform != nil {
		c.platform = sleepgate.NewPlatformHook(b.platform, c.log)
		c.gate.AcceptHook(c.platform)
	}

	if b.config.Profiling {
		c.residency = sleepgate.NewResidency(b.engine, c.gate.Mode())
		c.gate.AcceptHook(c.residency)
	}

	return c, nil
}

// The expiry tick period is a whole number of nanoseconds.
func validateTickFreq(freq timing.Freq) error {
	switch {
	case freq == 0:
		return &freqpolicy.ConfigError{
			Field:  "tick_frequency",
			Reason: "must not be 0",
		}
	case freq > timing.GHz:
		return &freqpolicy.ConfigError{
			Field:  "tick_frequency",
			Reason: fmt.Sprintf("must not exceed 1 GHz, got %d Hz", freq),
		}
	}

	return nil
}
