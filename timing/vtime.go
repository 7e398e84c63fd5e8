package timing

import (
	"math"
	"time"
)

// VTime is a point on the device timeline, counted in nanoseconds since the
// clock epoch (usually boot). It is an integer so that expiry comparisons are
// exact.
type VTime int64

// At converts an offset from the epoch into a VTime.
func At(d time.Duration) VTime {
	return VTime(d)
}

// Add returns the time d after t. The result saturates at the ends of the
// timeline instead of wrapping around.
func (t VTime) Add(d time.Duration) VTime {
	sum := t + VTime(d)

	switch {
	case d > 0 && sum < t:
		return VTime(math.MaxInt64)
	case d < 0 && sum > t:
		return VTime(math.MinInt64)
	}

	return sum
}

// Sub returns the duration t-u.
func (t VTime) Sub(u VTime) time.Duration {
	return time.Duration(t - u)
}

// Duration returns t as an offset from the epoch.
func (t VTime) Duration() time.Duration {
	return time.Duration(t)
}

// Milliseconds returns t in whole milliseconds since the epoch.
func (t VTime) Milliseconds() int64 {
	return time.Duration(t).Milliseconds()
}

func (t VTime) String() string {
	return time.Duration(t).String()
}
