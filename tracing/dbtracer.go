package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/powerlock/datarecording"
	"github.com/sarchlab/powerlock/timing"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	Detail    string
	StartTime int64
	EndTime   int64
}

type milestoneTableEntry struct {
	ID       string
	Kind     string
	Location string
	Time     int64
	Count    int
}

// DBTracer is a tracer that stores completed tasks and milestones into a
// DataRecorder. Times are stored in nanoseconds.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime timing.VTime
	hasTimeRange       bool

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer. Unfinished tasks are written when the
// program exits through atexit.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable("trace", taskTableEntry{})
	dataRecorder.CreateTable("trace_milestones", milestoneTableEntry{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange only keeps the tasks that overlap with [startTime, endTime].
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTime) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
	t.hasTimeRange = true
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.Now()
	if t.hasTimeRange && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

func (t *DBTracer) startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Where == "" {
		panic("task where must be set")
	}
}

// EndTask marks the end of a task and writes it.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = t.timeTeller.Now()
	if t.hasTimeRange && originalTask.EndTime < t.startTime {
		return
	}

	if task.Detail != "" {
		originalTask.Detail = task.Detail
	}

	t.writeTask(originalTask)
}

// AddMilestone writes a milestone.
func (t *DBTracer) AddMilestone(milestone Milestone) {
	t.mu.Lock()
	defer t.mu.Unlock()

	milestone.Time = t.timeTeller.Now()
	if t.hasTimeRange &&
		(milestone.Time < t.startTime || milestone.Time > t.endTime) {
		return
	}

	t.backend.InsertData("trace_milestones", milestoneTableEntry{
		ID:       milestone.ID,
		Kind:     milestone.Kind,
		Location: milestone.Where,
		Time:     int64(milestone.Time),
		Count:    milestone.Count,
	})
}

// Terminate writes the unfinished tasks, ending them now, and flushes.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.timeTeller.Now()

	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.writeTask(task)
	}

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}

func (t *DBTracer) writeTask(task Task) {
	t.backend.InsertData("trace", taskTableEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Where,
		Detail:    task.Detail,
		StartTime: int64(task.StartTime),
		EndTime:   int64(task.EndTime),
	})
}
