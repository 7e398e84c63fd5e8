// Package tracing turns lock and sleep gate events into timed tasks and
// collects them, in memory or in a database.
package tracing

// A Tracer can collect task traces
type Tracer interface {
	StartTask(task Task)
	EndTask(task Task)
	AddMilestone(milestone Milestone)
}
