// Package world owns every peripheral instance in one simulated SoC and
// wires the cross-peripheral references (DPPI fabrics, IRQ controllers,
// the scheduler) between them, so nothing outside this package needs to
// hold a peripheral pointer directly (spec.md §9, "who owns the graph of
// cyclic references").
package world

import (
	"fmt"

	"hwsim.dev/nrfperiph/internal/bitcounter"
	"hwsim.dev/nrfperiph/internal/clock"
	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/egu"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/faketimer"
	"hwsim.dev/nrfperiph/internal/gpio"
	"hwsim.dev/nrfperiph/internal/gpiote"
	"hwsim.dev/nrfperiph/internal/grtc"
	"hwsim.dev/nrfperiph/internal/ipc"
	"hwsim.dev/nrfperiph/internal/irq"
	"hwsim.dev/nrfperiph/internal/mutex"
	"hwsim.dev/nrfperiph/internal/nvmc"
	"hwsim.dev/nrfperiph/internal/ppib"
	"hwsim.dev/nrfperiph/internal/rramc"
	"hwsim.dev/nrfperiph/internal/rtc"
	"hwsim.dev/nrfperiph/internal/timer"
	"hwsim.dev/nrfperiph/internal/uart"
)

// Config selects the instance counts and sizes for one World. Zero values
// pick the application-core defaults of a single nRF5340-style network
// configuration.
type Config struct {
	NumRTC        int
	NumTimer      int
	NumUART       int
	NumGPIOPorts  int
	FlashSize     int
	FlashPage     int
	FlashUICRSize int
	RRAMSize      int
	RRAMUICRSize  int

	// FlashPath, if non-empty, backs NVMC's flash with an mmap'd file at
	// this path instead of an in-process buffer (spec.md §4.8).
	FlashPath string
}

func (c *Config) setDefaults() {
	if c.NumRTC == 0 {
		c.NumRTC = 2
	}
	if c.NumTimer == 0 {
		c.NumTimer = 2
	}
	if c.NumUART == 0 {
		c.NumUART = 1
	}
	if c.NumGPIOPorts == 0 {
		c.NumGPIOPorts = 1
	}
	if c.FlashSize == 0 {
		c.FlashSize = 1 << 20
	}
	if c.FlashPage == 0 {
		c.FlashPage = 4096
	}
	if c.RRAMSize == 0 {
		c.RRAMSize = 1 << 20
	}
	if c.FlashUICRSize == 0 {
		c.FlashUICRSize = 4096
	}
	if c.RRAMUICRSize == 0 {
		c.RRAMUICRSize = 4096
	}
}

// World is every peripheral instance making up one simulated SoC.
type World struct {
	Sched     *engine.Scheduler
	Core      *irq.Controller
	DPPIC     *dppi.Fabric
	Lifecycle *engine.LifecycleRegistry

	Clock *clock.Instance
	RTC   []*rtc.Instance
	Timer []*timer.Instance
	GRTC  *grtc.Instance

	GPIO   []*gpio.Port
	GPIOTE *gpiote.Instance

	UART []*uart.Instance

	NVMC *nvmc.Instance
	RRAM *rramc.Instance

	EGU      *egu.Instance
	IPCApp   *ipc.Instance
	IPCNet   *ipc.Instance
	PPIBApp  *ppib.Instance
	PPIBNet  *ppib.Instance
	Mutex    *mutex.Instance
	BitCount *bitcounter.Instance
	FakeTimer *faketimer.Instance
}

// New builds a complete World from cfg, wiring every cross-peripheral
// reference. It never returns a fatal error itself; individual peripherals
// that need host resources (NVMC's optional mmap'd flash file) report
// failures as errors wrapped with fmt.Errorf.
func New(cfg Config) (*World, error) {
	cfg.setDefaults()
	sched := engine.NewScheduler()
	core := irq.New("core", 0, nil)

	w := &World{Sched: sched, Core: core, Lifecycle: engine.NewLifecycleRegistry()}

	// DPPI is constructed first within HWInit, at the priority spec.md
	// §4.1 reserves for it, since every other peripheral's constructor
	// takes the fabric as a dependency.
	w.Lifecycle.Register(engine.HWInit, engine.PriorityDPPI, func() error {
		w.DPPIC = dppi.New("dppic", 0, 256, 32)
		return nil
	})

	w.Lifecycle.Register(engine.HWInit, engine.PriorityDefault, func() error {
		fabric := w.DPPIC
		w.Clock = clock.New("clock", 0, sched, core, fabric)
		w.GRTC = grtc.New("grtc", 0, sched, core, fabric)

		for n := 0; n < cfg.NumRTC; n++ {
			w.RTC = append(w.RTC, rtc.New("rtc", n, sched, core, fabric, w.Clock.IsLFCLKRunning))
		}
		for n := 0; n < cfg.NumTimer; n++ {
			w.Timer = append(w.Timer, timer.New("timer", n, sched, core, fabric))
		}

		for n := 0; n < cfg.NumGPIOPorts; n++ {
			w.GPIO = append(w.GPIO, gpio.New("gpio", n))
		}
		w.GPIOTE = gpiote.New("gpiote", 0, fabric)
		if len(w.GPIO) > 0 {
			w.GPIOTE.AttachPort(w.GPIO[0])
		}

		for n := 0; n < cfg.NumUART; n++ {
			w.UART = append(w.UART, uart.New("uart", n, sched, core, fabric))
		}

		if cfg.FlashPath != "" {
			nv, err := nvmc.OpenFile("nvmc", sched, cfg.FlashPath, cfg.FlashSize, cfg.FlashPage, cfg.FlashUICRSize)
			if err != nil {
				return fmt.Errorf("world: %w", err)
			}
			w.NVMC = nv
		} else {
			w.NVMC = nvmc.New("nvmc", sched, cfg.FlashSize, cfg.FlashPage, cfg.FlashUICRSize)
		}
		w.RRAM = rramc.New("rramc", cfg.RRAMSize, cfg.RRAMUICRSize)

		w.EGU = egu.New("egu0", fabric)
		w.IPCApp = ipc.New("ipc-app", fabric)
		w.IPCNet = ipc.New("ipc-net", fabric)
		w.IPCApp.Peer, w.IPCNet.Peer = w.IPCNet, w.IPCApp

		w.PPIBApp = ppib.New("ppib-app", fabric)
		w.PPIBNet = ppib.New("ppib-net", fabric)
		ppib.Connect(w.PPIBApp, w.PPIBNet)

		w.Mutex = mutex.New("mutex")
		w.BitCount = bitcounter.New("bitcounter0", fabric)
		w.FakeTimer = faketimer.New("faketimer0", sched, core)
		return nil
	})

	if err := w.Lifecycle.Run(engine.HWInit); err != nil {
		return nil, err
	}

	if w.NVMC != nil {
		nv := w.NVMC
		w.Lifecycle.Register(engine.OnExitPre, engine.PriorityDefault, nv.Close)
	}

	return w, nil
}

// Close runs every registered ON_EXIT_PRE hook (freeing mmap'd backing
// files and the like), per spec.md §4.1's shutdown phase.
func (w *World) Close() error {
	return w.Lifecycle.Run(engine.OnExitPre)
}

// Run dispatches every pending source deadline up to and including
// firmwareWakeTime, then parks simulated time at firmwareWakeTime itself
// (unless it is engine.Never, in which case time stops at the last real
// event). It returns the final simulated time (spec.md §4.1's top-level
// scheduler loop).
func (w *World) Run(firmwareWakeTime engine.Time) engine.Time {
	w.Sched.FindNextEvent()
	for w.Sched.NextEventTime() != engine.Never && w.Sched.NextEventTime() < firmwareWakeTime {
		w.Sched.AdvanceAndDispatch(firmwareWakeTime)
	}
	if firmwareWakeTime != engine.Never && w.Sched.Now() < firmwareWakeTime {
		w.Sched.AdvanceAndDispatch(firmwareWakeTime)
	}
	return w.Sched.Now()
}
