package automation

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/powerlock/timing"
)

// FireEvent plays a trigger when handled.
type FireEvent struct {
	*timing.EventBase

	Trigger *Trigger
}

// Dispatcher turns trigger firings into events, so that actions always run
// on the engine's loop no matter which goroutine fired them.
type Dispatcher struct {
	engine timing.EventScheduler
	log    logr.Logger
}

// NewDispatcher creates a Dispatcher that schedules on engine.
func NewDispatcher(engine timing.EventScheduler, log logr.Logger) *Dispatcher {
	return &Dispatcher{engine: engine, log: log}
}

// Fire plays the trigger as soon as possible.
func (d *Dispatcher) Fire(t *Trigger) {
	d.FireAt(t, d.engine.Now())
}

// FireAt plays the trigger at time at.
func (d *Dispatcher) FireAt(t *Trigger, at timing.VTime) {
	evt := &FireEvent{
		EventBase: timing.NewEventBase(at, d),
		Trigger:   t,
	}

	d.engine.Schedule(evt)
}

// Handle plays the trigger of a FireEvent.
func (d *Dispatcher) Handle(e timing.Event) error {
	evt, ok := e.(*FireEvent)
	if !ok {
		d.log.Info("dispatcher cannot handle event", "event", e)
		return nil
	}

	d.log.V(1).Info("firing trigger",
		"trigger", evt.Trigger.Name,
		"time", e.Time().String(),
		"actions", len(evt.Trigger.Actions))

	evt.Trigger.Play()

	return nil
}
