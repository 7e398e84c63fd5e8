package simulation

import (
	"github.com/go-logr/logr"
)

// LogPlatform is a platform without hardware. It logs every setting it is
// asked to apply and remembers the last ones.
type LogPlatform struct {
	log logr.Logger

	TicklessIdle        bool
	PeripheralPowerDown bool
	FlashPowerDown      bool
}

// NewLogPlatform creates a LogPlatform.
func NewLogPlatform(log logr.Logger) *LogPlatform {
	return &LogPlatform{log: log}
}

// SetTicklessIdle records the tickless idle setting.
func (p *LogPlatform) SetTicklessIdle(enabled bool) error {
	p.TicklessIdle = enabled
	p.log.V(1).Info("tickless idle", "enabled", enabled)

	return nil
}

// SetPeripheralPowerDown records the peripheral power down setting.
func (p *LogPlatform) SetPeripheralPowerDown(enabled bool) error {
	p.PeripheralPowerDown = enabled
	p.log.V(1).Info("peripheral power down", "enabled", enabled)

	return nil
}

// SetFlashPowerDown records the flash power down setting.
func (p *LogPlatform) SetFlashPowerDown(enabled bool) error {
	p.FlashPowerDown = enabled
	p.log.V(1).Info("flash power down", "enabled", enabled)

	return nil
}
