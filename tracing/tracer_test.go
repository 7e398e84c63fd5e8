package tracing

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/powerlock/datarecording"
	"github.com/sarchlab/powerlock/lockregistry"
	"github.com/sarchlab/powerlock/powermanagement"
	"github.com/sarchlab/powerlock/timing"
)

func ms(n int) timing.VTime {
	return timing.At(time.Duration(n) * time.Millisecond)
}

func buildComp(engine timing.EventScheduler) *powermanagement.Comp {
	config := powermanagement.DefaultConfig()
	config.TicklessIdle = true

	comp, err := powermanagement.MakeBuilder().
		WithEngine(engine).
		WithConfig(config).
		Build("PM")
	Expect(err).ToNot(HaveOccurred())

	return comp
}

var _ = Describe("CollectTrace", func() {
	var (
		mockCtrl *gomock.Controller
		tracer   *MockTracer
		engine   *timing.SerialEngine
		comp     *powermanagement.Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tracer = NewMockTracer(mockCtrl)
		engine = timing.NewSerialEngine()
		comp = buildComp(engine)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should turn lock and gate events into tasks", func() {
		CollectTrace(comp, tracer)

		gomock.InOrder(
			tracer.EXPECT().StartTask(Task{
				ID: "PM-1", Kind: KindLock, What: "apb", Where: "PM",
				Detail: "api",
			}),
			tracer.EXPECT().StartTask(Task{
				ID: "PM.locked.1", Kind: KindSleepGate, What: "locked",
				Where: "PM",
			}),
			tracer.EXPECT().AddMilestone(Milestone{
				ID: "PM.edge.1", Kind: "SleepLocked", Where: "PM", Count: 1,
			}),
			tracer.EXPECT().EndTask(Task{
				ID: "PM-1", Kind: KindLock, What: "apb", Where: "PM",
				Detail: "api,released",
			}),
			tracer.EXPECT().EndTask(Task{ID: "PM.locked.1"}),
			tracer.EXPECT().AddMilestone(Milestone{
				ID: "PM.edge.2", Kind: "SleepPermitted", Where: "PM", Count: 0,
			}),
		)

		h := comp.Acquire(
			lockregistry.WithUser(lockregistry.UserAPI),
			lockregistry.WithType(lockregistry.TypeAPB))
		comp.Release(h)
	})

	It("should mark expired locks", func() {
		CollectTrace(comp, tracer)

		tracer.EXPECT().StartTask(gomock.Any()).AnyTimes()
		tracer.EXPECT().AddMilestone(gomock.Any()).AnyTimes()
		tracer.EXPECT().EndTask(Task{ID: "PM.locked.1"})
		tracer.EXPECT().EndTask(Task{
			ID: "PM-1", Kind: KindLock, What: "cpu", Where: "PM",
			Detail: "unknown,expired",
		})

		comp.Acquire(lockregistry.WithDuration(time.Millisecond))
		Expect(engine.Run()).To(Succeed())
	})

	It("should not collect twice with the same tracer", func() {
		CollectTrace(comp, tracer)

		Expect(func() { CollectTrace(comp, tracer) }).To(Panic())
	})
})

var _ = Describe("Time tracers", func() {
	It("should sum and average lock durations", func() {
		engine := timing.NewSerialEngine()
		comp := buildComp(engine)

		total := NewTotalTimeTracer(engine, ByKindAndWhat(KindLock, "cpu"))
		average := NewAverageTimeTracer(engine, ByKind(KindLock))
		gate := NewTotalTimeTracer(engine, ByKind(KindSleepGate))
		CollectTrace(comp, total)
		CollectTrace(comp, average)
		CollectTrace(comp, gate)

		h1 := comp.Acquire()
		Expect(engine.RunUntil(ms(1))).To(Succeed())
		h2 := comp.Acquire()
		Expect(engine.RunUntil(ms(2))).To(Succeed())
		comp.Release(h1)
		Expect(engine.RunUntil(ms(4))).To(Succeed())
		comp.Release(h2)

		Expect(total.TotalTime()).To(Equal(5 * time.Millisecond))
		Expect(average.AverageTime()).To(Equal(2500 * time.Microsecond))
		Expect(average.TotalCount()).To(Equal(uint64(2)))
		Expect(gate.TotalTime()).To(Equal(4 * time.Millisecond))
	})

	It("should report zero average without tasks", func() {
		average := NewAverageTimeTracer(timing.NewManualClock(), ByKind(KindLock))

		Expect(average.AverageTime()).To(Equal(time.Duration(0)))
	})
})

var _ = Describe("DBTracer", func() {
	var (
		engine   *timing.SerialEngine
		comp     *powermanagement.Comp
		recorder *datarecording.SQLiteWriter
		tracer   *DBTracer
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		comp = buildComp(engine)
		recorder = datarecording.NewSQLiteWriter(
			filepath.Join(GinkgoT().TempDir(), "trace"))
		recorder.Init()
		tracer = NewDBTracer(engine, recorder)
		CollectTrace(comp, tracer)
	})

	AfterEach(func() {
		Expect(recorder.Close()).To(Succeed())
	})

	traceReader := func() *DBTraceReader {
		return NewDBTraceReader(datarecording.NewReaderWithDB(recorder.DB))
	}

	queryTasks := func() []Task {
		tasks, err := traceReader().Tasks(context.Background(), "")
		Expect(err).ToNot(HaveOccurred())

		return tasks
	}

	It("should write finished tasks", func() {
		comp.Acquire(lockregistry.WithDuration(3 * time.Millisecond))
		Expect(engine.Run()).To(Succeed())
		recorder.Flush()

		tasks := queryTasks()

		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].ID).To(Equal("PM-1"))
		Expect(tasks[0].Where).To(Equal("PM"))
		Expect(tasks[0].EndTime).To(Equal(ms(3)))
		Expect(tasks[0].Detail).To(Equal("unknown,expired"))
		Expect(tasks[1].Kind).To(Equal(KindSleepGate))
	})

	It("should write unfinished tasks on terminate", func() {
		comp.Acquire()
		Expect(engine.RunUntil(ms(7))).To(Succeed())

		tracer.Terminate()

		tasks := queryTasks()
		Expect(tasks).To(HaveLen(2))
		for _, task := range tasks {
			Expect(task.EndTime).To(Equal(ms(7)))
		}
	})

	It("should write milestones", func() {
		comp.Release(comp.Acquire())
		recorder.Flush()

		milestones, err := traceReader().Milestones(context.Background(), "PM")
		Expect(err).ToNot(HaveOccurred())
		Expect(milestones).To(HaveLen(2))
		Expect(milestones[0].Where).To(Equal("PM"))

		milestones, err = traceReader().Milestones(context.Background(), "PM9")
		Expect(err).ToNot(HaveOccurred())
		Expect(milestones).To(BeEmpty())
	})

	It("should filter tasks by location", func() {
		comp.Acquire(lockregistry.WithDuration(time.Millisecond))
		Expect(engine.Run()).To(Succeed())
		recorder.Flush()

		tasks, err := traceReader().Tasks(context.Background(), "PM")
		Expect(err).ToNot(HaveOccurred())
		Expect(tasks).To(HaveLen(2))

		tasks, err = traceReader().Tasks(context.Background(), "PM9")
		Expect(err).ToNot(HaveOccurred())
		Expect(tasks).To(BeEmpty())
	})

	It("should skip tasks outside the time range", func() {
		tracer.SetTimeRange(ms(5), ms(10))

		comp.Release(comp.Acquire())
		Expect(engine.RunUntil(ms(11))).To(Succeed())
		comp.Acquire()
		tracer.Terminate()

		Expect(queryTasks()).To(BeEmpty())
	})
})
