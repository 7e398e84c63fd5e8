package sleepgate

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sarchlab/powerlock/hooking"
	"github.com/sarchlab/powerlock/timing"
)

// ModeResidency is how long and how often a gate has been in a mode.
type ModeResidency struct {
	Mode        Mode
	Time        time.Duration
	Entries     int
	LastEntered timing.VTime
}

// Residency is a hook that measures the time a gate spends in each mode.
type Residency struct {
	clock   timing.TimeTeller
	current Mode
	since   timing.VTime
	modes   map[Mode]*ModeResidency
}

// NewResidency starts measuring from the gate's current mode.
func NewResidency(clock timing.TimeTeller, initial Mode) *Residency {
	r := &Residency{
		clock:   clock,
		current: initial,
		since:   clock.Now(),
		modes:   make(map[Mode]*ModeResidency),
	}

	r.entry(initial).Entries = 1
	r.entry(initial).LastEntered = r.since

	return r
}

func (r *Residency) entry(m Mode) *ModeResidency {
	e, found := r.modes[m]
	if !found {
		e = &ModeResidency{Mode: m}
		r.modes[m] = e
	}

	return e
}

// Func records a mode change.
func (r *Residency) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosModeChanged {
		return
	}

	now := r.clock.Now()
	r.entry(r.current).Time += now.Sub(r.since)

	r.current = ctx.Item.(Mode)
	r.since = now

	e := r.entry(r.current)
	e.Entries++
	e.LastEntered = now
}

// Snapshot returns the residency of every mode seen so far, including the
// time spent in the current mode up to now.
func (r *Residency) Snapshot() []ModeResidency {
	now := r.clock.Now()
	list := make([]ModeResidency, 0, len(r.modes))

	for _, e := range r.modes {
		copied := *e
		if e.Mode == r.current {
			copied.Time += now.Sub(r.since)
		}

		list = append(list, copied)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Mode < list[j].Mode
	})

	return list
}

// Dump writes a table of the residency.
func (r *Residency) Dump(w io.Writer) {
	fmt.Fprintf(w, "%-16s %12s %8s\n", "Mode", "Time", "Entries")

	for _, e := range r.Snapshot() {
		fmt.Fprintf(w, "%-16s %12s %8d\n", e.Mode, e.Time, e.Entries)
	}
}
