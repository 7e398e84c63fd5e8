// Package hooking lets observers attach to well-known positions inside the
// power management components without the components knowing about them.
package hooking

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook register a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, existing := range h.hookList {
		if existing == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the register Hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

type funcHook struct {
	f func(ctx HookCtx)
}

func (h *funcHook) Func(ctx HookCtx) {
	h.f(ctx)
}

// NewFuncHook wraps a plain function as a Hook. Each call returns a distinct
// hook, so the same function can be registered on several hookables.
func NewFuncHook(f func(ctx HookCtx)) Hook {
	return &funcHook{f: f}
}

// PosFilter returns a hook that only forwards invocations at the given
// positions to the inner hook.
func PosFilter(inner Hook, positions ...*HookPos) Hook {
	return NewFuncHook(func(ctx HookCtx) {
		for _, p := range positions {
			if ctx.Pos == p {
				inner.Func(ctx)
				return
			}
		}
	})
}
