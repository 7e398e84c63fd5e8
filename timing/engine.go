// Package timing provides the event loop that the power management
// components run on: a device timeline, engines that dispatch events in time
// order, and the periodic tick used to expire timed locks.
package timing

import "github.com/sarchlab/powerlock/hooking"

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTime
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine is the main loop. It runs events one at a time, so handlers never
// race with each other.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run will process all the events until the engine has nothing to do or
	// is stopped.
	Run() error

	// Pause will pause the engine until continue is called.
	Pause()

	// Continue will continue the paused engine.
	Continue()

	// Inspect runs f while no event is being handled. Code outside the loop
	// uses it to read component state consistently.
	Inspect(f func())
}
