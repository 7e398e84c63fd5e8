// Package automation provides the actions that user automations can run
// against a power management instance, and the dispatcher that fires them
// on the event loop.
package automation

import (
	"github.com/sarchlab/powerlock/lockregistry"
)

// An Action is one step of an automation.
type Action interface {
	Play()
}

// LockOwner is something that holds power locks on behalf of labeled users.
type LockOwner interface {
	AcquireLock(user lockregistry.User, lockType lockregistry.Type)
	ReleaseLock(user lockregistry.User, lockType lockregistry.Type) bool
}

// AcquireLockAction takes a CPU lock for the action user.
type AcquireLockAction struct {
	parent LockOwner
}

// NewAcquireLockAction creates an AcquireLockAction bound to parent.
func NewAcquireLockAction(parent LockOwner) *AcquireLockAction {
	return &AcquireLockAction{parent: parent}
}

// Play acquires the lock.
func (a *AcquireLockAction) Play() {
	a.parent.AcquireLock(lockregistry.UserAction, lockregistry.TypeCPU)
}

// ReleaseLockAction gives back the latest CPU lock of the action user. It
// does nothing if the action user holds no lock.
type ReleaseLockAction struct {
	parent LockOwner
}

// NewReleaseLockAction creates a ReleaseLockAction bound to parent.
func NewReleaseLockAction(parent LockOwner) *ReleaseLockAction {
	return &ReleaseLockAction{parent: parent}
}

// Play releases the lock.
func (a *ReleaseLockAction) Play() {
	a.parent.ReleaseLock(lockregistry.UserAction, lockregistry.TypeCPU)
}

// A Trigger is a named list of actions that run together, in order.
type Trigger struct {
	Name    string
	Actions []Action
}

// Play runs all the actions.
func (t *Trigger) Play() {
	for _, a := range t.Actions {
		a.Play()
	}
}
