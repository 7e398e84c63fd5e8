package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/powerlock/hooking"
	"github.com/sarchlab/powerlock/timing"
)

// A ProgressBar tracks how far the engine is through a bounded timeline.
// Total and Finished are in nanoseconds of device time.
type ProgressBar struct {
	sync.Mutex
	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

// Func moves the bar to the time of each handled event.
func (b *ProgressBar) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosAfterEvent {
		return
	}

	b.SetFinished(ctx.Item.(timing.Event).Time())
}

// SetFinished moves the bar to device time t.
func (b *ProgressBar) SetFinished(t timing.VTime) {
	b.Lock()
	defer b.Unlock()

	finished := uint64(t)
	if finished > b.Total {
		finished = b.Total
	}

	b.Finished = finished
}
