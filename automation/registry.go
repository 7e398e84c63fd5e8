package automation

import (
	"errors"
	"fmt"
	"sort"
)

// Names of the built-in action kinds.
const (
	KindAcquireLock = "power_management.acquire_lock"
	KindReleaseLock = "power_management.release_lock"
)

// ErrUnknownKind is returned when an automation names an action that is not
// registered.
var ErrUnknownKind = errors.New("unknown action")

// ErrUnknownParent is returned when an action refers to an instance ID that
// does not exist.
var ErrUnknownParent = errors.New("unknown power management id")

// OwnerResolver finds lock owners by configuration ID.
type OwnerResolver interface {
	LockOwner(id string) (LockOwner, bool)
}

// A Factory creates an action bound to its parent.
type Factory func(parent LockOwner) Action

// Registry maps action kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in lock actions.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(KindAcquireLock, func(p LockOwner) Action {
		return NewAcquireLockAction(p)
	})
	r.Register(KindReleaseLock, func(p LockOwner) Action {
		return NewReleaseLockAction(p)
	})

	return r
}

// Register adds an action kind. Registering a kind twice panics.
func (r *Registry) Register(kind string, f Factory) {
	if _, found := r.factories[kind]; found {
		panic(fmt.Sprintf("action %s already registered", kind))
	}

	r.factories[kind] = f
}

// Kinds lists the registered action kinds.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	return kinds
}

// Build creates an action of the given kind, bound to the owner with the
// given ID.
func (r *Registry) Build(
	kind, parentID string,
	owners OwnerResolver,
) (Action, error) {
	f, found := r.factories[kind]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	parent, found := owners.LockOwner(parentID)
	if !found {
		return nil, fmt.Errorf("%s: %w: %s", kind, ErrUnknownParent, parentID)
	}

	return f(parent), nil
}
