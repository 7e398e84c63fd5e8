// Package sleepgate decides whether the chip may enter tickless light sleep
// and power down its peripherals and flash, based on the number of active
// power locks.
package sleepgate

import (
	"fmt"

	"github.com/sarchlab/powerlock/hooking"
)

// HookPosSleepPermitted triggers when sleep becomes permitted. The Item is
// the new State.
var HookPosSleepPermitted = &hooking.HookPos{Name: "SleepPermitted"}

// HookPosSleepLocked triggers when sleep stops being permitted.
var HookPosSleepLocked = &hooking.HookPos{Name: "SleepLocked"}

// HookPosModeChanged triggers on every Mode transition, including the ones
// that do not change the sleep permission because tickless idle is off. The
// Item is the new Mode and the Detail the previous one.
var HookPosModeChanged = &hooking.HookPos{Name: "ModeChanged"}

// Flags are the static power-saving features a platform is configured with.
type Flags struct {
	TicklessIdle         bool
	PowerDownPeripherals bool
	PowerDownFlash       bool
}

// State is what the idle hook is allowed to do.
type State struct {
	SleepPermitted               bool
	PeripheralPowerDownPermitted bool
	FlashPowerDownPermitted      bool
}

func (s State) String() string {
	return fmt.Sprintf("sleep=%t peripherals=%t flash=%t",
		s.SleepPermitted,
		s.PeripheralPowerDownPermitted,
		s.FlashPowerDownPermitted)
}

// Evaluate derives the gate state from the active lock count and the flags.
// Power-down of peripherals and flash only happens as part of tickless sleep,
// so their flags are ignored when tickless idle is off.
func Evaluate(activeCount int, flags Flags) State {
	sleep := activeCount == 0 && flags.TicklessIdle

	return State{
		SleepPermitted:               sleep,
		PeripheralPowerDownPermitted: sleep && flags.PowerDownPeripherals,
		FlashPowerDownPermitted:      sleep && flags.PowerDownFlash,
	}
}

// Mode tells whether any lock is held.
type Mode int

// Modes of the gate.
const (
	ModeAwakePermitted Mode = iota
	ModeLocked
)

func (m Mode) String() string {
	switch m {
	case ModeAwakePermitted:
		return "awake_permitted"
	case ModeLocked:
		return "locked"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Gate keeps the last evaluated State and reports its edges to hooks.
type Gate struct {
	hooking.HookableBase

	flags Flags
	state State
	mode  Mode
	count int
}

// NewGate creates a gate evaluated for an initial active count. No hook is
// invoked for the initial state.
func NewGate(flags Flags, initialCount int) *Gate {
	g := &Gate{flags: flags}
	g.count = initialCount
	g.state = Evaluate(initialCount, flags)
	g.mode = modeOf(initialCount)

	return g
}

func modeOf(count int) Mode {
	if count > 0 {
		return ModeLocked
	}

	return ModeAwakePermitted
}

// Update re-evaluates the gate for a new active count. Hooks are only invoked
// when something changed. It returns whether the sleep permission changed.
func (g *Gate) Update(activeCount int) bool {
	g.count = activeCount

	prevState := g.state
	prevMode := g.mode

	g.state = Evaluate(activeCount, g.flags)
	g.mode = modeOf(activeCount)

	if g.mode != prevMode {
		g.InvokeHook(hooking.HookCtx{
			Domain: g,
			Pos:    HookPosModeChanged,
			Item:   g.mode,
			Detail: prevMode,
		})
	}

	if g.state.SleepPermitted == prevState.SleepPermitted {
		return false
	}

	pos := HookPosSleepLocked
	if g.state.SleepPermitted {
		pos = HookPosSleepPermitted
	}

	g.InvokeHook(hooking.HookCtx{
		Domain: g,
		Pos:    pos,
		Item:   g.state,
		Detail: activeCount,
	})

	return true
}

// ActiveCountChanged lets a Gate listen to a lock registry directly.
func (g *Gate) ActiveCountChanged(activeCount int) {
	g.Update(activeCount)
}

// State returns the last evaluated state.
func (g *Gate) State() State {
	return g.state
}

// Mode returns the current mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// Flags returns the flags the gate was created with.
func (g *Gate) Flags() Flags {
	return g.flags
}

// ActiveCount returns the count of the last update.
func (g *Gate) ActiveCount() int {
	return g.count
}
