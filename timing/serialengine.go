package timing

import (
	"log"
	"reflect"
	"sync"

	"github.com/sarchlab/powerlock/hooking"
)

// A SerialEngine is an Engine that always run events one after another on a
// virtual timeline. Time only moves when an event is dispatched, so tests and
// offline scenarios are deterministic.
type SerialEngine struct {
	hooking.HookableBase

	timeLock       sync.RWMutex
	time           VTime
	queue          EventQueue
	secondaryQueue EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex
	stepLock     sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.queue = NewEventQueue()
	e.secondaryQueue = NewEventQueue()

	return e
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"scheduling an event earlier than current time, evt %s @ %s, now %s",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)

		return
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTime {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTime) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for !e.noMoreEvent() {
		e.runNext()
	}

	return nil
}

// RunUntil processes every event scheduled at or before t and then moves the
// current time to t. Events after t stay in the queue.
func (e *SerialEngine) RunUntil(t VTime) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	if t < e.readNow() {
		log.Panicf("cannot run until %s, now is %s", t, e.readNow())
	}

	for {
		evt := e.peekNext()
		if evt == nil || evt.Time() > t {
			break
		}

		e.runNext()
	}

	e.writeNow(t)

	return nil
}

func (e *SerialEngine) runNext() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	e.stepLock.Lock()
	defer e.stepLock.Unlock()

	evt := e.nextEvent()
	now := e.readNow()

	if evt.Time() < now {
		log.Panicf(
			"cannot run event in the past, evt %s @ %s, now %s",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}

	e.writeNow(evt.Time())

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	handler := evt.Handler()
	_ = handler.Handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

func (e *SerialEngine) peekNext() Event {
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

func (e *SerialEngine) nextEvent() Event {
	if e.queue.Len() == 0 {
		return e.secondaryQueue.Pop()
	}

	if e.secondaryQueue.Len() == 0 {
		return e.queue.Pop()
	}

	primaryEvt := e.queue.Peek()
	secondaryEvt := e.secondaryQueue.Peek()

	if primaryEvt.Time() <= secondaryEvt.Time() {
		e.queue.Pop()
		return primaryEvt
	}

	e.secondaryQueue.Pop()

	return secondaryEvt
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Inspect runs f between two events.
func (e *SerialEngine) Inspect(f func()) {
	e.stepLock.Lock()
	defer e.stepLock.Unlock()

	f()
}

// Now returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) Now() VTime {
	return e.readNow()
}
