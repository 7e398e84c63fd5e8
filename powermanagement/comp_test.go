package powermanagement

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/powerlock/freqpolicy"
	"github.com/sarchlab/powerlock/hooking"
	"github.com/sarchlab/powerlock/lockregistry"
	"github.com/sarchlab/powerlock/sleepgate"
	"github.com/sarchlab/powerlock/timing"
)

type platformCall struct {
	what    string
	enabled bool
}

type recordingPlatform struct {
	calls []platformCall
	err   error
}

func (p *recordingPlatform) SetTicklessIdle(enabled bool) error {
	p.calls = append(p.calls, platformCall{"tickless", enabled})
	return p.err
}

func (p *recordingPlatform) SetPeripheralPowerDown(enabled bool) error {
	p.calls = append(p.calls, platformCall{"peripherals", enabled})
	return p.err
}

func (p *recordingPlatform) SetFlashPowerDown(enabled bool) error {
	p.calls = append(p.calls, platformCall{"flash", enabled})
	return p.err
}

func ms(n int) timing.VTime {
	return timing.At(time.Duration(n) * time.Millisecond)
}

func bufferLogger(buf *strings.Builder) logr.Logger {
	return funcr.New(func(prefix, args string) {
		buf.WriteString(args)
		buf.WriteString("\n")
	}, funcr.Options{Verbosity: 1})
}

var _ = Describe("Comp", func() {
	var (
		engine *timing.SerialEngine
		config Config
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		config = DefaultConfig()
		config.TicklessIdle = true
	})

	build := func() *Comp {
		comp, err := MakeBuilder().
			WithEngine(engine).
			WithConfig(config).
			Build("PM")
		Expect(err).ToNot(HaveOccurred())

		return comp
	}

	It("should panic without an engine", func() {
		Expect(func() { _, _ = MakeBuilder().Build("PM") }).To(Panic())
	})

	It("should clamp frequencies to the configured bounds", func() {
		config.MinFreqMHz = 80
		config.MaxFreqMHz = 160
		comp := build()

		Expect(comp.Clamp(40)).To(Equal(80))
		Expect(comp.Clamp(200)).To(Equal(160))
		Expect(comp.Clamp(120)).To(Equal(120))
	})

	It("should refuse inverted bounds", func() {
		config.MinFreqMHz = 200
		config.MaxFreqMHz = 100

		comp, err := MakeBuilder().WithEngine(engine).WithConfig(config).Build("PM")

		Expect(comp).To(BeNil())

		var cfgErr *freqpolicy.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(err.Error()).To(HavePrefix("PM: "))
	})

	It("should refuse a negative initial lock duration", func() {
		config.InitialLockDuration = -time.Second

		_, err := MakeBuilder().WithEngine(engine).WithConfig(config).Build("PM")

		var cfgErr *freqpolicy.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Field).To(Equal("initial_lock_duration"))
	})

	It("should refuse a tick finer than a nanosecond", func() {
		comp, err := MakeBuilder().
			WithEngine(engine).
			WithTickFreq(2 * timing.GHz).
			WithConfig(config).
			Build("PM")

		Expect(comp).To(BeNil())

		var cfgErr *freqpolicy.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Field).To(Equal("tick_frequency"))
		Expect(err.Error()).To(HavePrefix("PM: "))
	})

	It("should refuse a zero tick frequency", func() {
		_, err := MakeBuilder().
			WithEngine(engine).
			WithTickFreq(0).
			WithConfig(config).
			Build("PM")

		var cfgErr *freqpolicy.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Field).To(Equal("tick_frequency"))
	})

	It("should resolve unset bounds to platform defaults", func() {
		comp := build()

		Expect(comp.Bounds()).To(Equal(freqpolicy.Bounds{MinMHz: 40, MaxMHz: 160}))
	})

	It("should release timed locks at their deadline", func() {
		config.InitialLockDuration = 5000 * time.Millisecond
		comp := build()
		comp.Start()

		comp.Acquire()
		Expect(comp.GateState().SleepPermitted).To(BeFalse())

		Expect(engine.RunUntil(ms(4999))).To(Succeed())
		Expect(comp.ActiveCount()).To(Equal(1))
		Expect(comp.GateState().SleepPermitted).To(BeFalse())

		Expect(engine.RunUntil(ms(5000))).To(Succeed())
		Expect(comp.ActiveCount()).To(Equal(0))
		Expect(comp.GateState().SleepPermitted).To(BeTrue())
	})

	It("should stop ticking when no timed lock is left", func() {
		comp := build()
		comp.Start()
		comp.Acquire(lockregistry.WithDuration(2 * time.Millisecond))
		comp.Acquire()

		Expect(engine.Run()).To(Succeed())

		Expect(engine.Now()).To(Equal(ms(2)))
		Expect(comp.ActiveCount()).To(Equal(1))
	})

	It("should expire a zero duration lock on the next tick", func() {
		comp := build()
		comp.Acquire(lockregistry.WithDuration(0))

		Expect(comp.ActiveCount()).To(Equal(1))
		Expect(comp.GateState().SleepPermitted).To(BeFalse())

		Expect(engine.RunUntil(ms(1))).To(Succeed())
		Expect(comp.ActiveCount()).To(Equal(0))
	})

	It("should report a sleep edge exactly once", func() {
		comp := build()
		comp.Start()

		permitted, locked := 0, 0
		comp.AcceptHook(hooking.NewFuncHook(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case sleepgate.HookPosSleepPermitted:
				permitted++
			case sleepgate.HookPosSleepLocked:
				locked++
			}
		}))

		h1 := comp.Acquire()
		h2 := comp.Acquire()
		Expect(comp.ActiveCount()).To(Equal(2))

		comp.Release(h1)
		Expect(comp.ActiveCount()).To(Equal(1))
		Expect(comp.GateState().SleepPermitted).To(BeFalse())

		comp.Release(h2)
		Expect(comp.ActiveCount()).To(Equal(0))
		Expect(comp.GateState().SleepPermitted).To(BeTrue())

		comp.Release(h2)

		Expect(locked).To(Equal(1))
		Expect(permitted).To(Equal(1))
	})

	It("should forward lock events to its hooks", func() {
		comp := build()

		var positions []*hooking.HookPos
		comp.AcceptHook(hooking.PosFilter(
			hooking.NewFuncHook(func(ctx hooking.HookCtx) {
				positions = append(positions, ctx.Pos)
			}),
			lockregistry.HookPosLockAcquired,
			lockregistry.HookPosLockReleased,
		))

		comp.Release(comp.Acquire())

		Expect(positions).To(Equal([]*hooking.HookPos{
			lockregistry.HookPosLockAcquired,
			lockregistry.HookPosLockReleased,
		}))
	})

	Context("with a startup lock", func() {
		BeforeEach(func() {
			config.InitialLockDuration = 5 * time.Second
			config.StartupLock = true
		})

		It("should hold the self lock until it expires", func() {
			comp := build()
			comp.Start()
			comp.Start()

			Expect(comp.ActiveCount()).To(Equal(1))
			Expect(comp.Registry().CountByUser(lockregistry.UserSelf)).
				To(Equal(1))

			Expect(engine.RunUntil(ms(5000))).To(Succeed())
			Expect(comp.ActiveCount()).To(Equal(0))
		})

		It("should not let actions release the self lock", func() {
			comp := build()
			comp.Start()

			Expect(comp.ReleaseLock(lockregistry.UserAction, lockregistry.TypeCPU)).
				To(BeFalse())
			Expect(comp.ActiveCount()).To(Equal(1))

			comp.AcquireLock(lockregistry.UserAction, lockregistry.TypeCPU)
			Expect(comp.ActiveCount()).To(Equal(2))

			Expect(comp.ReleaseLock(lockregistry.UserAction, lockregistry.TypeCPU)).
				To(BeTrue())
			Expect(comp.ActiveCount()).To(Equal(1))
			Expect(comp.Registry().CountByUser(lockregistry.UserSelf)).
				To(Equal(1))
		})
	})

	It("should not take a startup lock without a duration", func() {
		config.StartupLock = true
		comp := build()
		comp.Start()

		Expect(comp.ActiveCount()).To(Equal(0))
	})

	It("should drive the platform", func() {
		config.PowerDownFlash = true
		platform := &recordingPlatform{}
		comp, err := MakeBuilder().
			WithEngine(engine).
			WithConfig(config).
			WithPlatform(platform).
			Build("PM")
		Expect(err).ToNot(HaveOccurred())

		comp.Start()
		h := comp.Acquire()
		comp.Release(h)

		Expect(platform.calls).To(Equal([]platformCall{
			{"tickless", true}, {"peripherals", false}, {"flash", true},
			{"tickless", false}, {"peripherals", false}, {"flash", false},
			{"tickless", true}, {"peripherals", false}, {"flash", true},
		}))
	})

	It("should keep working when the platform fails", func() {
		platform := &recordingPlatform{err: errors.New("no idle hook")}
		logs := new(strings.Builder)
		comp, err := MakeBuilder().
			WithEngine(engine).
			WithConfig(config).
			WithPlatform(platform).
			WithLogger(bufferLogger(logs)).
			Build("PM")
		Expect(err).ToNot(HaveOccurred())

		comp.Start()
		comp.Acquire()

		Expect(comp.ActiveCount()).To(Equal(1))
		Expect(logs.String()).To(ContainSubstring("no idle hook"))
	})

	It("should warn about power down flags without tickless idle", func() {
		config.TicklessIdle = false
		config.PowerDownFlash = true
		logs := new(strings.Builder)

		comp, err := MakeBuilder().
			WithEngine(engine).
			WithConfig(config).
			WithLogger(bufferLogger(logs)).
			Build("PM")

		Expect(err).ToNot(HaveOccurred())
		Expect(logs.String()).To(ContainSubstring("power_down_flash"))
		Expect(comp.GateState()).To(Equal(sleepgate.State{}))
	})

	It("should dump the locks when the last lock is released", func() {
		logs := new(strings.Builder)
		comp, err := MakeBuilder().
			WithEngine(engine).
			WithConfig(config).
			WithLogger(bufferLogger(logs)).
			Build("PM")
		Expect(err).ToNot(HaveOccurred())

		h := comp.Acquire(lockregistry.WithType(lockregistry.TypeAPB))
		Expect(logs.String()).ToNot(ContainSubstring("PM Locks Dumped"))

		comp.Release(h)
		Expect(logs.String()).To(ContainSubstring("PM Locks Dumped"))
		Expect(logs.String()).To(ContainSubstring("apb"))
	})

	It("should keep lock statistics", func() {
		comp := build()
		comp.Acquire(lockregistry.WithDuration(2 * time.Millisecond))
		h := comp.Acquire(lockregistry.WithType(lockregistry.TypeNoSleep))

		Expect(engine.RunUntil(ms(10))).To(Succeed())
		comp.Release(h)

		stats := comp.Stats()
		Expect(stats).To(HaveLen(2))
		Expect(stats[0].Type).To(Equal(lockregistry.TypeCPU))
		Expect(stats[0].Expired).To(Equal(1))
		Expect(stats[0].Held).To(Equal(2 * time.Millisecond))
		Expect(stats[1].Type).To(Equal(lockregistry.TypeNoSleep))
		Expect(stats[1].Released).To(Equal(1))
		Expect(stats[1].Held).To(Equal(10 * time.Millisecond))
	})

	It("should dump its configuration", func() {
		config.PowerDownPeripherals = true
		config.Profiling = true
		config.Trace = true
		config.InitialLockDuration = 5 * time.Second
		comp := build()

		buf := new(bytes.Buffer)
		comp.DumpConfig(buf)

		Expect(buf.String()).To(ContainSubstring("Initial Lock Duration: 5s"))
		Expect(buf.String()).To(ContainSubstring("Light Sleep Enabled"))
		Expect(buf.String()).To(ContainSubstring("PM Peripheral Power Down"))
		Expect(buf.String()).To(ContainSubstring("PM Profiling Enabled"))
		Expect(buf.String()).To(ContainSubstring("PM Trace Enabled"))
		Expect(buf.String()).ToNot(ContainSubstring("Flash"))
	})

	It("should profile the time spent in each mode", func() {
		config.Profiling = true
		comp := build()

		comp.Acquire(lockregistry.WithDuration(3 * time.Millisecond))
		Expect(engine.RunUntil(ms(10))).To(Succeed())

		snapshot := comp.Residency().Snapshot()
		Expect(snapshot[0].Mode).To(Equal(sleepgate.ModeAwakePermitted))
		Expect(snapshot[0].Time).To(Equal(7 * time.Millisecond))
		Expect(snapshot[1].Mode).To(Equal(sleepgate.ModeLocked))
		Expect(snapshot[1].Time).To(Equal(3 * time.Millisecond))

		buf := new(bytes.Buffer)
		comp.DumpLocks(buf)
		Expect(buf.String()).To(ContainSubstring("awake_permitted"))
	})

	It("should not profile by default", func() {
		comp := build()

		Expect(comp.Residency()).To(BeNil())
	})

	It("should keep instances independent", func() {
		a := build()
		b := build()

		a.Acquire()

		Expect(a.ActiveCount()).To(Equal(1))
		Expect(b.ActiveCount()).To(Equal(0))
		Expect(b.GateState().SleepPermitted).To(BeTrue())
	})
})
