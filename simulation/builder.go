package simulation

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/rs/xid"

	"github.com/sarchlab/powerlock/automation"
	"github.com/sarchlab/powerlock/config"
	"github.com/sarchlab/powerlock/datarecording"
	"github.com/sarchlab/powerlock/powermanagement"
	"github.com/sarchlab/powerlock/sleepgate"
	"github.com/sarchlab/powerlock/timing"
	"github.com/sarchlab/powerlock/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	realTime   bool
	file       *config.File
	recordPath string
	platform   sleepgate.Platform
	actions    *automation.Registry
	log        logr.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		log: logr.Discard(),
	}
}

// WithRealTime makes the simulation run against the wall clock.
func (b Builder) WithRealTime() Builder {
	b.realTime = true
	return b
}

// WithConfigFile sets the instances and automations to build.
func (b Builder) WithConfigFile(f *config.File) Builder {
	b.file = f
	return b
}

// WithRecordPath sets where traces are recorded, without the .sqlite3
// extension. An empty path picks a unique name.
func (b Builder) WithRecordPath(path string) Builder {
	b.recordPath = path
	return b
}

// WithPlatform sets the platform that every instance drives.
func (b Builder) WithPlatform(platform sleepgate.Platform) Builder {
	b.platform = platform
	return b
}

// WithActionRegistry replaces the registry used to build automation actions.
func (b Builder) WithActionRegistry(r *automation.Registry) Builder {
	b.actions = r
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(log logr.Logger) Builder {
	b.log = log
	return b
}

// Build builds the simulation. Instances are not started.
func (b Builder) Build() (*Simulation, error) {
	if b.file == nil {
		panic("simulation requires a config file")
	}

	s := &Simulation{
		id:            xid.New().String(),
		runFor:        time.Duration(b.file.RunFor),
		instanceIndex: make(map[string]int),
	}

	if b.realTime {
		s.engine = timing.NewRealTimeEngine()
	} else {
		s.engine = timing.NewSerialEngine()
	}

	s.dispatcher = automation.NewDispatcher(s.engine, b.log)

	if err := b.buildInstances(s); err != nil {
		return nil, err
	}

	b.buildTracer(s)

	if err := b.buildTriggers(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (b Builder) buildInstances(s *Simulation) error {
	for _, inst := range b.file.PowerManagement {
		builder := powermanagement.MakeBuilder().
			WithEngine(s.engine).
			WithTickFreq(inst.TickFreq()).
			WithConfig(inst.ComponentConfig()).
			WithLogger(b.log)
		if b.platform != nil {
			builder = builder.WithPlatform(b.platform)
		}

		c, err := builder.Build(inst.ID)
		if err != nil {
			return err
		}

		s.RegisterInstance(c)
	}

	return nil
}

func (b Builder) buildTracer(s *Simulation) {
	for _, c := range s.instances {
		if !c.Config().Trace {
			continue
		}

		if s.tracer == nil {
			s.dataRecorder = datarecording.New(b.recordPath)
			s.tracer = tracing.NewDBTracer(s.engine, s.dataRecorder)
		}

		tracing.CollectTrace(c, s.tracer)
	}
}

func (b Builder) buildTriggers(s *Simulation) error {
	actions := b.actions
	if actions == nil {
		actions = automation.NewRegistry()
	}

	for i, t := range b.file.OnTime {
		trigger := &automation.Trigger{Name: t.Name}
		if trigger.Name == "" {
			trigger.Name = fmt.Sprintf("on_time[%d]", i)
		}

		for _, step := range t.Then {
			kind, parentID := step.Kind()

			action, err := actions.Build(kind, parentID, s)
			if err != nil {
				return fmt.Errorf("%s: %w", trigger.Name, err)
			}

			trigger.Actions = append(trigger.Actions, action)
		}

		s.dispatcher.FireAt(trigger, timing.At(time.Duration(t.At)))
	}

	return nil
}
