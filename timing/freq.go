package timing

import (
	"log"
	"time"
)

// Freq defines the type of frequency, in Hz.
type Freq uint64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// FreqFromMHz converts a frequency expressed in whole MHz.
func FreqFromMHz(mhz int) Freq {
	if mhz < 0 {
		log.Panicf("negative frequency %d MHz", mhz)
	}

	return Freq(mhz) * MHz
}

// MHz returns the frequency in whole MHz, rounding down.
func (f Freq) MHz() int {
	return int(f / MHz)
}

// Period returns the time between two consecutive ticks.
func (f Freq) Period() time.Duration {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	if f > GHz {
		log.Panicf("frequency %d Hz is finer than the time resolution", f)
	}

	return time.Second / time.Duration(f)
}

// ThisTick returns the current tick time
//
//	               Input
//	               (          ]
//	    |----------|----------|----------|----->
//	                          |
//	                          Output
func (f Freq) ThisTick(now VTime) VTime {
	period := VTime(f.Period())
	count := (now + period - 1) / period

	return count * period
}

// NextTick returns the next tick time.
//
//	               Input
//	               [          )
//	    |----------|----------|----------|----->
//	                          |
//	                          Output
func (f Freq) NextTick(now VTime) VTime {
	period := VTime(f.Period())
	count := now / period

	return (count + 1) * period
}

// NCyclesLater returns the time after N cycles. The result is always aligned
// to a tick.
func (f Freq) NCyclesLater(n int, now VTime) VTime {
	return f.ThisTick(now) + VTime(n)*VTime(f.Period())
}

// Cycle converts a time to the number of whole cycles passed since time 0.
func (f Freq) Cycle(t VTime) uint64 {
	return uint64(t / VTime(f.Period()))
}
