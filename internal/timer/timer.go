// Package timer models the HF counter/timer peripheral: configurable
// 8/16/24/32-bit width, Timer/Counter/LowPowerCounter modes, up to 8
// compare registers with one-shot and shortcut support (spec.md §4.5).
package timer

import (
	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

// Mode selects what drives the counter.
type Mode int

const (
	ModeTimer Mode = iota
	ModeCounter
	ModeLowPowerCounter
)

// NumCC is the number of compare/capture registers modeled (the real
// silicon has 4-8 depending on instance).
const NumCC = 8

const baseHz = 16_000_000

type ccReg struct {
	value      uint32
	oneShotEn  bool
	firedSince bool // EVENTS_COMPARE[i] already fired since last write to CC[i], gates ONESHOTEN
	deadline   engine.Time
}

// Instance is one TIMER peripheral instance.
type Instance struct {
	Name   string
	Idx    int
	sched  *engine.Scheduler
	intc   *irq.Controller
	fabric *dppi.Fabric

	Mode      Mode
	BitWidth  int // 8, 16, 24, or 32
	Prescaler uint8

	running  bool
	startRef engine.Time
	counter  uint32 // authoritative value in Counter/LowPowerCounter mode

	CC [NumCC]ccReg

	Events             [NumCC]bool
	Publish            [NumCC]uint32
	ShortsCompareClear [NumCC]bool
	ShortsCompareStop  [NumCC]bool

	SubscribeStart uint32
	SubscribeStop  uint32
	SubscribeCount uint32
	SubscribeClear uint32
	subStart       *dppi.TaskCallback
	subStop        *dppi.TaskCallback
	subCount       *dppi.TaskCallback
	subClear       *dppi.TaskCallback
}

// New returns a TIMER instance with all CCs disabled and registers its
// SUBSCRIBE_{START,STOP,COUNT,CLEAR} task callbacks with fabric.
func New(name string, idx int, sched *engine.Scheduler, intc *irq.Controller, fabric *dppi.Fabric) *Instance {
	i := &Instance{Name: name, Idx: idx, sched: sched, intc: intc, fabric: fabric, BitWidth: 16}
	for c := range i.CC {
		i.CC[c].deadline = engine.Never
	}
	i.subStart = dppi.NewTaskCallback(i.TaskStart)
	i.subStop = dppi.NewTaskCallback(i.TaskStop)
	i.subCount = dppi.NewTaskCallback(i.TaskCount)
	i.subClear = dppi.NewTaskCallback(i.TaskClear)
	sched.Register(i)
	return i
}

func (i *Instance) widthMask() uint32 {
	switch i.BitWidth {
	case 8:
		return 0xFF
	case 16:
		return 0xFFFF
	case 24:
		return 0xFFFFFF
	default:
		return 0xFFFFFFFF
	}
}

func (i *Instance) tickHz() uint64 {
	return baseHz >> i.Prescaler
}

// countAt returns the free-running timer-mode counter at time t (pre
// width-mask), using one multiply/divide to avoid rounding error.
func (i *Instance) countAt(t engine.Time) uint64 {
	elapsed := uint64(t - i.startRef)
	return elapsed * i.tickHz() / 1_000_000
}

func (i *Instance) timeOfCount(n uint64) engine.Time {
	us := (n*1_000_000 + i.tickHz() - 1) / i.tickHz()
	return i.startRef.Add(engine.Time(us))
}

func (i *Instance) timeForCC(value uint32) engine.Time {
	mask := uint64(i.widthMask())
	now := i.sched.Now()
	nNow := i.countAt(now)
	cur := nNow & mask
	delta := (uint64(value) - cur) & mask
	if delta == 0 {
		delta = mask + 1
	}
	return i.timeOfCount(nNow + delta)
}

func (i *Instance) recomputeDeadlines() {
	for c := range i.CC {
		suppressed := i.CC[c].oneShotEn && i.CC[c].firedSince
		if i.Mode == ModeTimer && i.running && !suppressed {
			i.CC[c].deadline = i.timeForCC(i.CC[c].value)
		} else {
			i.CC[c].deadline = engine.Never
		}
	}
}

// NextDeadline implements engine.Source. Counter/LowPowerCounter modes
// have no time-driven deadline: CC matches are checked synchronously from
// TaskCount.
func (i *Instance) NextDeadline() engine.Time {
	min := engine.Never
	for c := range i.CC {
		if i.CC[c].deadline < min {
			min = i.CC[c].deadline
		}
	}
	return min
}

// Fire implements engine.Source for Timer mode CC deadlines.
func (i *Instance) Fire(now engine.Time) {
	for c := range i.CC {
		if i.CC[c].deadline != now {
			continue
		}
		i.compareMatched(c)
	}
}

func (i *Instance) compareMatched(c int) {
	i.Events[c] = true
	i.intc.SetPulse(c)
	i.fabric.EventSignalIf(i.Publish[c])
	i.CC[c].firedSince = true
	if i.ShortsCompareClear[c] {
		i.clearNow()
	}
	if i.ShortsCompareStop[c] {
		i.stopNow()
	}
	suppressed := i.CC[c].oneShotEn && i.CC[c].firedSince
	if i.Mode == ModeTimer && i.running && !suppressed {
		i.CC[c].deadline = i.timeForCC(i.CC[c].value)
	} else {
		i.CC[c].deadline = engine.Never
	}
}

// TaskStart implements TASKS_START.
func (i *Instance) TaskStart() {
	if i.running {
		return
	}
	i.running = true
	i.startRef = i.sched.Now()
	i.recomputeDeadlines()
	i.sched.FindNextEvent()
}

func (i *Instance) stopNow() { i.running = false; i.recomputeDeadlines() }

// TaskStop implements TASKS_STOP.
func (i *Instance) TaskStop() {
	i.stopNow()
	i.sched.FindNextEvent()
}

func (i *Instance) clearNow() {
	i.startRef = i.sched.Now()
	i.counter = 0
	for c := range i.CC {
		i.CC[c].firedSince = false
	}
	i.recomputeDeadlines()
}

// TaskClear implements TASKS_CLEAR.
func (i *Instance) TaskClear() {
	i.clearNow()
	i.sched.FindNextEvent()
}

// TaskCount implements TASKS_COUNT: increments the internal counter in
// Counter/LowPowerCounter mode and checks every CC for equality.
func (i *Instance) TaskCount() {
	if i.Mode == ModeTimer {
		return
	}
	i.counter = (i.counter + 1) & i.widthMask()
	for c := range i.CC {
		if i.counter == i.CC[c].value&i.widthMask() {
			if !i.CC[c].oneShotEn || !i.CC[c].firedSince {
				i.compareMatched(c)
			}
		}
	}
}

// WriteCC sets CC[n] and clears its one-shot latch, then recomputes its
// deadline if running in Timer mode.
func (i *Instance) WriteCC(n int, v uint32) {
	i.CC[n].value = v & i.widthMask()
	i.CC[n].firedSince = false
	if i.Mode == ModeTimer && i.running {
		i.CC[n].deadline = i.timeForCC(i.CC[n].value)
		i.sched.FindNextEvent()
	}
}

// SetOneShot sets CC[n]'s ONESHOTEN flag.
func (i *Instance) SetOneShot(n int, enabled bool) {
	i.CC[n].oneShotEn = enabled
}

// Counter returns the current counter value, in Timer mode computed from
// elapsed simulated time.
func (i *Instance) Counter() uint32 {
	if i.Mode == ModeTimer {
		if !i.running {
			return 0
		}
		return uint32(i.countAt(i.sched.Now()) & uint64(i.widthMask()))
	}
	return i.counter
}

// WriteSubscribeStart applies the SUBSCRIBE_START register side-effect
// using the shared common_subscribe_sideeffect helper (spec.md §4.3).
func (i *Instance) WriteSubscribeStart(v uint32) error {
	return i.fabric.CommonSubscribeSideeffect(&i.SubscribeStart, v, i.subStart)
}

// WriteSubscribeStop applies the SUBSCRIBE_STOP register side-effect.
func (i *Instance) WriteSubscribeStop(v uint32) error {
	return i.fabric.CommonSubscribeSideeffect(&i.SubscribeStop, v, i.subStop)
}

// WriteSubscribeCount applies the SUBSCRIBE_COUNT register side-effect.
func (i *Instance) WriteSubscribeCount(v uint32) error {
	return i.fabric.CommonSubscribeSideeffect(&i.SubscribeCount, v, i.subCount)
}

// WriteSubscribeClear applies the SUBSCRIBE_CLEAR register side-effect.
func (i *Instance) WriteSubscribeClear(v uint32) error {
	return i.fabric.CommonSubscribeSideeffect(&i.SubscribeClear, v, i.subClear)
}

// IsRunning reports whether TASKS_START has run without a matching
// TASKS_STOP/CLEAR-with-stop-shortcut since.
func (i *Instance) IsRunning() bool { return i.running }
