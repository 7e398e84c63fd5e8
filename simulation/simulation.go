// Package simulation holds a set of power management instances that share
// one engine, together with the automations, recorder and tracer configured
// for them.
package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/sarchlab/powerlock/automation"
	"github.com/sarchlab/powerlock/datarecording"
	"github.com/sarchlab/powerlock/powermanagement"
	"github.com/sarchlab/powerlock/timing"
	"github.com/sarchlab/powerlock/tracing"
)

type untilRunner interface {
	RunUntil(t timing.VTime) error
}

type contextRunner interface {
	RunContext(ctx context.Context) error
}

// A Simulation provides the services that power management instances need to
// run: an engine, a dispatcher for off-loop callers and optional recording.
type Simulation struct {
	id     string
	engine timing.Engine
	runFor time.Duration

	dispatcher   *automation.Dispatcher
	dataRecorder datarecording.DataRecorder
	tracer       *tracing.DBTracer

	instances     []*powermanagement.Comp
	instanceIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() timing.Engine {
	return s.engine
}

// GetDispatcher returns the dispatcher that runs triggers on the engine.
func (s *Simulation) GetDispatcher() *automation.Dispatcher {
	return s.dispatcher
}

// GetDataRecorder returns the data recorder, nil if nothing is recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetTracer returns the tracer, nil if no instance is traced.
func (s *Simulation) GetTracer() *tracing.DBTracer {
	return s.tracer
}

// RegisterInstance adds an instance. Names must be unique.
func (s *Simulation) RegisterInstance(c *powermanagement.Comp) {
	name := c.Name()
	if _, found := s.instanceIndex[name]; found {
		panic("instance " + name + " already registered")
	}

	s.instances = append(s.instances, c)
	s.instanceIndex[name] = len(s.instances) - 1
}

// GetInstance returns the instance with the given name.
func (s *Simulation) GetInstance(name string) (*powermanagement.Comp, bool) {
	i, found := s.instanceIndex[name]
	if !found {
		return nil, false
	}

	return s.instances[i], true
}

// Instances returns all the instances in registration order.
func (s *Simulation) Instances() []*powermanagement.Comp {
	return s.instances
}

// LockOwner lets automations bind to instances by name.
func (s *Simulation) LockOwner(id string) (automation.LockOwner, bool) {
	c, found := s.GetInstance(id)
	if !found {
		return nil, false
	}

	return c, true
}

// Start starts every instance. It must be called before the engine runs.
func (s *Simulation) Start() {
	for _, c := range s.instances {
		c.Start()
	}
}

// Run runs the engine. Engines that can stop at a time run for the
// configured duration, or until idle when none is set. Wall clock engines
// run until ctx is done or the duration passes.
func (s *Simulation) Run(ctx context.Context) error {
	if r, ok := s.engine.(contextRunner); ok {
		if s.runFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.runFor)
			defer cancel()
		}

		err := r.RunContext(ctx)
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}

	if r, ok := s.engine.(untilRunner); ok && s.runFor > 0 {
		return r.RunUntil(timing.At(s.runFor))
	}

	return s.engine.Run()
}

// Terminate writes the unfinished traces and closes the recorder.
func (s *Simulation) Terminate() error {
	if s.tracer != nil {
		s.tracer.Terminate()
	}

	if s.dataRecorder != nil {
		return s.dataRecorder.Close()
	}

	return nil
}
