package lockregistry

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/powerlock/id"
	"github.com/sarchlab/powerlock/timing"
)

// Builder can build registries.
type Builder struct {
	clock           timing.TimeTeller
	ids             id.Generator
	defaultDuration time.Duration
	hasDefault      bool
	listener        CountListener
	log             logr.Logger
}

// MakeBuilder returns a Builder without a default lock duration.
func MakeBuilder() Builder {
	return Builder{
		log: logr.Discard(),
	}
}

// WithClock sets the time source used to stamp and expire tokens.
func (b Builder) WithClock(clock timing.TimeTeller) Builder {
	b.clock = clock
	return b
}

// WithIDGenerator sets the generator of token IDs.
func (b Builder) WithIDGenerator(ids id.Generator) Builder {
	b.ids = ids
	return b
}

// WithDefaultDuration sets the lifetime of tokens acquired without an
// explicit duration.
func (b Builder) WithDefaultDuration(d time.Duration) Builder {
	b.defaultDuration = d
	b.hasDefault = true

	return b
}

// WithListener sets the listener that is told about count changes.
func (b Builder) WithListener(l CountListener) Builder {
	b.listener = l
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(log logr.Logger) Builder {
	b.log = log
	return b
}

// Build creates a new Registry.
func (b Builder) Build() *Registry {
	if b.clock == nil {
		panic("lock registry requires a clock")
	}

	ids := b.ids
	if ids == nil {
		ids = id.NewSequentialGenerator()
	}

	return &Registry{
		clock:           b.clock,
		ids:             ids,
		defaultDuration: b.defaultDuration,
		hasDefault:      b.hasDefault,
		listener:        b.listener,
		log:             b.log,
		tokens:          make(map[string]*Token),
	}
}
