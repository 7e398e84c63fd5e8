package tracing

import "github.com/sarchlab/powerlock/timing"

// A Task is something that spans a period of time, such as a held lock or a
// period during which the chip may not sleep.
type Task struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parent_id"`
	Kind      string       `json:"kind"`
	What      string       `json:"what"`
	Where     string       `json:"where"`
	StartTime timing.VTime `json:"start_time"`
	EndTime   timing.VTime `json:"end_time"`
	Detail    string       `json:"detail"`
}

// Task kinds.
const (
	KindLock      = "lock"
	KindSleepGate = "sleep_gate"
)

// Milestone marks an instant, such as sleep becoming permitted.
type Milestone struct {
	ID    string       `json:"id"`
	Kind  string       `json:"kind"`
	Where string       `json:"where"`
	Time  timing.VTime `json:"time"`
	Count int          `json:"count"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// ByKind keeps the tasks of one kind.
func ByKind(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}

// ByKindAndWhat keeps the tasks of one kind that do one thing, such as
// locks of the "apb" type.
func ByKindAndWhat(kind, what string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind && t.What == what
	}
}
