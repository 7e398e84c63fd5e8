// Package powermanagement provides the component that holds power locks for
// firmware subsystems, expires timed locks, and decides when the chip may
// sleep.
package powermanagement

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/powerlock/freqpolicy"
	"github.com/sarchlab/powerlock/hooking"
	"github.com/sarchlab/powerlock/lockregistry"
	"github.com/sarchlab/powerlock/sleepgate"
	"github.com/sarchlab/powerlock/timing"
)

// TypeStats are the lifetime statistics of one lock type.
type TypeStats struct {
	Type     lockregistry.Type
	Acquired int
	Released int
	Expired  int
	Active   int

	// Held is the total time locks of this type were held, counting a
	// time span once no matter how many locks overlapped.
	Held time.Duration

	heldSince timing.VTime
}

// Comp is a power management instance.
//
// Lock and gate events of its registry and gate are re-invoked on the
// component's own hooks, so observers only need to attach to the Comp.
type Comp struct {
	*timing.TickingComponent

	config    Config
	policy    *freqpolicy.Policy
	bounds    freqpolicy.Bounds
	registry  *lockregistry.Registry
	gate      *sleepgate.Gate
	platform  *sleepgate.PlatformHook
	residency *sleepgate.Residency
	log       logr.Logger

	stats       map[lockregistry.Type]*TypeStats
	started     bool
	dumpPending bool
}

// Start applies the initial gate state and takes the startup lock if
// configured. Calling Start more than once has no effect.
func (c *Comp) Start() {
	if c.started {
		return
	}

	c.started = true

	c.log.Info("PM Max Freq", "mhz", c.bounds.MaxMHz)
	c.log.Info("PM Min Freq", "mhz", c.bounds.MinMHz)
	c.log.Info("PM Light Sleep Enable", "enabled", c.config.TicklessIdle)

	if c.platform != nil {
		c.platform.Apply(c.gate.State())
	}

	if c.config.StartupLock && c.config.InitialLockDuration > 0 {
		c.AcquireLock(lockregistry.UserSelf, lockregistry.TypeCPU)
	}
}

// Acquire takes a lock and returns its handle.
func (c *Comp) Acquire(opts ...lockregistry.AcquireOption) lockregistry.Handle {
	h := c.registry.Acquire(opts...)

	if c.registry.HasTimedTokens() {
		c.TickLater()
	}

	return h
}

// Release gives back the lock of the handle. Unknown handles are ignored.
func (c *Comp) Release(h lockregistry.Handle) {
	c.registry.Release(h)
}

// AcquireLock takes a lock for a user.
func (c *Comp) AcquireLock(user lockregistry.User, lockType lockregistry.Type) {
	c.Acquire(lockregistry.WithUser(user), lockregistry.WithType(lockType))
}

// ReleaseLock gives back the latest lock the user holds of the type. It
// returns false if there was none.
func (c *Comp) ReleaseLock(
	user lockregistry.User,
	lockType lockregistry.Type,
) bool {
	return c.registry.ReleaseLatest(user, lockType)
}

// Tick expires the timed locks. It keeps ticking while timed locks remain.
func (c *Comp) Tick() bool {
	c.registry.Tick(c.Now())

	return c.registry.HasTimedTokens()
}

// ActiveCountChanged keeps the gate up to date with the registry.
func (c *Comp) ActiveCountChanged(activeCount int) {
	c.gate.Update(activeCount)

	switch {
	case activeCount > 0:
		c.dumpPending = true
	case c.dumpPending:
		c.dumpPending = false

		buf := new(strings.Builder)
		c.DumpLocks(buf)
		c.log.V(1).Info("PM Locks Dumped", "locks", buf.String())
	}
}

// Func collects lock statistics and forwards registry and gate events to the
// hooks of the component.
func (c *Comp) Func(ctx hooking.HookCtx) {
	if token, ok := ctx.Item.(lockregistry.Token); ok {
		c.updateStats(ctx.Pos, token)
	}

	c.InvokeHook(ctx)
}

func (c *Comp) updateStats(pos *hooking.HookPos, token lockregistry.Token) {
	s, found := c.stats[token.Type]
	if !found {
		s = &TypeStats{Type: token.Type}
		c.stats[token.Type] = s
	}

	now := c.Now()

	switch pos {
	case lockregistry.HookPosLockAcquired:
		s.Acquired++
		if s.Active == 0 {
			s.heldSince = now
		}

		s.Active++

		return
	case lockregistry.HookPosLockReleased:
		s.Released++
	case lockregistry.HookPosLockExpired:
		s.Expired++
	default:
		return
	}

	s.Active--
	if s.Active == 0 {
		s.Held += now.Sub(s.heldSince)
	}
}

// Stats returns the statistics of every lock type used so far, ordered by
// type.
func (c *Comp) Stats() []TypeStats {
	now := c.Now()
	list := make([]TypeStats, 0, len(c.stats))

	for _, s := range c.stats {
		copied := *s
		if copied.Active > 0 {
			copied.Held += now.Sub(copied.heldSince)
		}

		list = append(list, copied)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Type < list[j].Type
	})

	return list
}

// Clamp bounds a requested frequency in MHz to the configured bounds.
func (c *Comp) Clamp(requestedMHz int) int {
	return c.policy.Clamp(requestedMHz)
}

// ActiveCount returns the number of locks held.
func (c *Comp) ActiveCount() int {
	return c.registry.ActiveCount()
}

// GateState returns what the idle hook is currently allowed to do.
func (c *Comp) GateState() sleepgate.State {
	return c.gate.State()
}

// Bounds returns the frequency bounds the DFS driver is configured with.
func (c *Comp) Bounds() freqpolicy.Bounds {
	return c.bounds
}

// Policy returns the frequency policy.
func (c *Comp) Policy() *freqpolicy.Policy {
	return c.policy
}

// Config returns the configuration.
func (c *Comp) Config() Config {
	return c.config
}

// Registry returns the lock registry.
func (c *Comp) Registry() *lockregistry.Registry {
	return c.registry
}

// Gate returns the sleep gate.
func (c *Comp) Gate() *sleepgate.Gate {
	return c.gate
}

// Residency returns the mode residency, or nil when profiling is off.
func (c *Comp) Residency() *sleepgate.Residency {
	return c.residency
}

// DumpConfig writes the configuration summary.
func (c *Comp) DumpConfig(w io.Writer) {
	fmt.Fprintf(w, "Power Management:\n")
	fmt.Fprintf(w, "  Initial Lock Duration: %s\n",
		c.config.InitialLockDuration)
	fmt.Fprintf(w, "  Max Freq: %dMHz\n", c.bounds.MaxMHz)
	fmt.Fprintf(w, "  Min Freq: %dMHz\n", c.bounds.MinMHz)

	if !c.config.TicklessIdle {
		return
	}

	fmt.Fprintf(w, "  Light Sleep Enabled\n")

	if c.config.PowerDownFlash {
		fmt.Fprintf(w, "  PM Flash Power Down in Light Sleep Enabled\n")
	}

	if c.config.PowerDownPeripherals {
		fmt.Fprintf(w, "  PM Peripheral Power Down in Light Sleep Enabled\n")
	}

	if c.config.Profiling {
		fmt.Fprintf(w, "  PM Profiling Enabled\n")
	}

	if c.config.Trace {
		fmt.Fprintf(w, "  PM Trace Enabled\n")
	}
}

// DumpLocks writes the lock statistics and the live locks.
func (c *Comp) DumpLocks(w io.Writer) {
	now := c.Now()

	fmt.Fprintf(w, "%-10s %8s %8s %8s %8s %14s\n",
		"Type", "Active", "Acquired", "Released", "Expired", "Held")

	for _, s := range c.Stats() {
		fmt.Fprintf(w, "%-10s %8d %8d %8d %8d %14s\n",
			s.Type, s.Active, s.Acquired, s.Released, s.Expired, s.Held)
	}

	for _, t := range c.registry.Tokens() {
		expiry := "never"
		if left, timed := t.Remaining(now); timed {
			expiry = left.String()
		}

		fmt.Fprintf(w, "  %s user=%s type=%s since=%s expires_in=%s\n",
			t.ID, t.User, t.Type, t.AcquiredAt, expiry)
	}

	if c.residency != nil {
		c.residency.Dump(w)
	}
}
