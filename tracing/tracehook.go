package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/powerlock/hooking"
	"github.com/sarchlab/powerlock/lockregistry"
	"github.com/sarchlab/powerlock/sleepgate"
	"github.com/sarchlab/powerlock/timing"
)

// NamedHookable represent something both have a name and can be hooked
type NamedHookable interface {
	timing.Named
	hooking.Hookable
}

// CollectTrace lets the tracer collect the lock and gate events of a domain.
// Locks become tasks of kind "lock" and locked periods tasks of kind
// "sleep_gate". Sleep permission edges become milestones.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := &traceHook{t: tracer, where: domain.Name()}
	domain.AcceptHook(h)
}

// A traceHook is a hook that traces tasks
type traceHook struct {
	t     Tracer
	where string

	lockedPeriods int
	lockedTaskID  string
	edges         int
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case lockregistry.HookPosLockAcquired:
		h.t.StartTask(h.lockTask(ctx))
	case lockregistry.HookPosLockReleased:
		task := h.lockTask(ctx)
		task.Detail += ",released"
		h.t.EndTask(task)
	case lockregistry.HookPosLockExpired:
		task := h.lockTask(ctx)
		task.Detail += ",expired"
		h.t.EndTask(task)
	case sleepgate.HookPosModeChanged:
		h.modeChanged(ctx.Item.(sleepgate.Mode))
	case sleepgate.HookPosSleepPermitted, sleepgate.HookPosSleepLocked:
		h.edges++
		h.t.AddMilestone(Milestone{
			ID:    fmt.Sprintf("%s.edge.%d", h.where, h.edges),
			Kind:  ctx.Pos.Name,
			Where: h.where,
			Count: ctx.Detail.(int),
		})
	}
}

func (h *traceHook) lockTask(ctx hooking.HookCtx) Task {
	token := ctx.Item.(lockregistry.Token)

	return Task{
		ID:     token.ID,
		Kind:   KindLock,
		What:   token.Type.String(),
		Where:  h.where,
		Detail: token.User.String(),
	}
}

func (h *traceHook) modeChanged(mode sleepgate.Mode) {
	switch mode {
	case sleepgate.ModeLocked:
		h.lockedPeriods++
		h.lockedTaskID = fmt.Sprintf("%s.locked.%d", h.where, h.lockedPeriods)
		h.t.StartTask(Task{
			ID:    h.lockedTaskID,
			Kind:  KindSleepGate,
			What:  mode.String(),
			Where: h.where,
		})
	case sleepgate.ModeAwakePermitted:
		if h.lockedTaskID == "" {
			return
		}

		h.t.EndTask(Task{ID: h.lockedTaskID})
		h.lockedTaskID = ""
	}
}
