package timing

import (
	"context"
	"sync"
	"time"

	"github.com/sarchlab/powerlock/hooking"
)

// A RealTimeEngine dispatches events one after another, but waits for the
// wall clock to reach each event's time first. Other goroutines may schedule
// events at any time; this is how off-loop triggers reach the main loop.
type RealTimeEngine struct {
	hooking.HookableBase

	clock          TimeTeller
	queue          EventQueue
	secondaryQueue EventQueue
	wakeup         chan struct{}

	resumed      chan struct{}
	isPausedLock sync.Mutex
	stepLock     sync.Mutex

	singleRunLock sync.Mutex
}

// NewRealTimeEngine creates a RealTimeEngine whose timeline starts now.
func NewRealTimeEngine() *RealTimeEngine {
	return NewRealTimeEngineWithClock(NewWallClock())
}

// NewRealTimeEngineWithClock creates a RealTimeEngine that follows the given
// clock.
func NewRealTimeEngineWithClock(clock TimeTeller) *RealTimeEngine {
	return &RealTimeEngine{
		clock:          clock,
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
		wakeup:         make(chan struct{}, 1),
	}
}

// Now returns the clock time.
func (e *RealTimeEngine) Now() VTime {
	return e.clock.Now()
}

// Schedule registers an event. Safe to call from any goroutine. An event
// whose time has already passed runs as soon as the loop gets to it.
func (e *RealTimeEngine) Schedule(evt Event) {
	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
	} else {
		e.queue.Push(evt)
	}

	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

// Run processes events forever. Use RunContext to bound it.
func (e *RealTimeEngine) Run() error {
	return e.RunContext(context.Background())
}

// RunContext processes events as their time arrives until ctx is done. It
// returns ctx.Err() once cancelled.
func (e *RealTimeEngine) RunContext(ctx context.Context) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		evt := e.peekNext()

		if evt == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wakeup:
				continue
			}
		}

		wait := evt.Time().Sub(e.clock.Now())
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-e.wakeup:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		if err := e.runNext(ctx); err != nil {
			return err
		}
	}
}

func (e *RealTimeEngine) runNext(ctx context.Context) error {
	if err := e.lockStep(ctx); err != nil {
		return err
	}
	defer e.stepLock.Unlock()

	evt := e.popNext()
	if evt == nil {
		return nil
	}

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	_ = evt.Handler().Handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return nil
}

// lockStep takes the step lock once the engine is not paused. It gives up
// when ctx is done.
func (e *RealTimeEngine) lockStep(ctx context.Context) error {
	for {
		e.isPausedLock.Lock()
		resumed := e.resumed

		if resumed == nil {
			e.stepLock.Lock()
			e.isPausedLock.Unlock()

			return nil
		}

		e.isPausedLock.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resumed:
		}
	}
}

func (e *RealTimeEngine) peekNext() Event {
	primaryEvt := e.queue.Peek()
	secondaryEvt := e.secondaryQueue.Peek()

	switch {
	case primaryEvt == nil:
		return secondaryEvt
	case secondaryEvt == nil:
		return primaryEvt
	case primaryEvt.Time() <= secondaryEvt.Time():
		return primaryEvt
	default:
		return secondaryEvt
	}
}

func (e *RealTimeEngine) popNext() Event {
	primaryEvt := e.queue.Peek()
	secondaryEvt := e.secondaryQueue.Peek()

	switch {
	case primaryEvt == nil:
		return e.secondaryQueue.Pop()
	case secondaryEvt == nil:
		return e.queue.Pop()
	case primaryEvt.Time() <= secondaryEvt.Time():
		return e.queue.Pop()
	default:
		return e.secondaryQueue.Pop()
	}
}

// Pause prevents the engine from handling more events. It returns after the
// event in progress, if any, is done.
func (e *RealTimeEngine) Pause() {
	e.isPausedLock.Lock()

	if e.resumed != nil {
		e.isPausedLock.Unlock()
		return
	}

	e.resumed = make(chan struct{})
	e.isPausedLock.Unlock()

	e.stepLock.Lock()
	defer e.stepLock.Unlock()
}

// Continue allows the engine to handle events again. Events that came due
// while paused run immediately, late.
func (e *RealTimeEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.resumed == nil {
		return
	}

	close(e.resumed)
	e.resumed = nil
}

// Inspect runs f between two events.
func (e *RealTimeEngine) Inspect(f func()) {
	e.stepLock.Lock()
	defer e.stepLock.Unlock()

	f()
}
