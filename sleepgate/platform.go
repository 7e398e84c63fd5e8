package sleepgate

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/powerlock/hooking"
)

// Platform is the RTOS and SDK side of the gate: the idle hook that enters
// tickless sleep and the power domains that can be turned off during it.
type Platform interface {
	SetTicklessIdle(enabled bool) error
	SetPeripheralPowerDown(enabled bool) error
	SetFlashPowerDown(enabled bool) error
}

// PlatformHook pushes every gate edge onto a Platform.
type PlatformHook struct {
	platform Platform
	log      logr.Logger
}

// NewPlatformHook creates a hook that drives the platform. Platform failures
// are logged and do not stop the gate.
func NewPlatformHook(platform Platform, log logr.Logger) *PlatformHook {
	return &PlatformHook{platform: platform, log: log}
}

// Apply pushes a full state onto the platform.
func (h *PlatformHook) Apply(s State) {
	if err := h.platform.SetTicklessIdle(s.SleepPermitted); err != nil {
		h.log.Error(err, "failed to set tickless idle",
			"enabled", s.SleepPermitted)
	}

	err := h.platform.SetPeripheralPowerDown(s.PeripheralPowerDownPermitted)
	if err != nil {
		h.log.Error(err, "failed to set peripheral power down",
			"enabled", s.PeripheralPowerDownPermitted)
	}

	if err := h.platform.SetFlashPowerDown(s.FlashPowerDownPermitted); err != nil {
		h.log.Error(err, "failed to set flash power down",
			"enabled", s.FlashPowerDownPermitted)
	}
}

// Func applies the new state when sleep is permitted or locked.
func (h *PlatformHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosSleepPermitted && ctx.Pos != HookPosSleepLocked {
		return
	}

	h.Apply(ctx.Item.(State))
}
