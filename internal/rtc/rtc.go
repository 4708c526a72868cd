// Package rtc models the low-frequency (32.768 kHz) RTC counter: a 24-bit
// counter, a 12-bit prescaler, up to four compare registers, and the
// TICK/OVRFLW events (spec.md §4.5).
package rtc

import (
	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

const (
	counterMask = 0xFFFFFF // 24-bit counter
	tickHz      = 32768
)

// Event line numbers on this instance's own interrupt controller.
const (
	EventTick = iota
	EventOvrflw
	EventCompare0
	numFixedEvents
)

// NumCC is the number of compare registers this model supports (the real
// silicon has 1-4 depending on instance; callers configure a fixed 4 and
// simply leave the unused ones disabled).
const NumCC = 4

type ccReg struct {
	value    uint32
	enabled  bool // INTENSET/EVTEN-style per-CC compare enable
	deadline engine.Time
}

// Instance is one RTC peripheral instance.
type Instance struct {
	Name   string
	Idx    int
	sched  *engine.Scheduler
	intc   *irq.Controller
	fabric *dppi.Fabric
	lfRunning func() bool // reports whether LFCLK has been started

	running    bool
	startRef   engine.Time // simulated time at which the counter was (re)started
	prescaler  uint32      // 12-bit PRESCALER register

	CC [NumCC]ccReg

	EventsTick     bool
	EventsOvrflw   bool
	EventsCompare  [NumCC]bool
	PublishTick    uint32
	PublishOvrflw  uint32
	PublishCompare [NumCC]uint32

	ShortsCompareClear [NumCC]bool
	ShortsCompareStop  [NumCC]bool

	tickDeadline engine.Time
}

// New returns an RTC instance wired to the shared scheduler, its own
// interrupt controller, and the DPPI fabric. lfclkRunning reports whether
// the LF clock has completed its start sequence; the RTC may only run
// while it has.
func New(name string, idx int, sched *engine.Scheduler, intc *irq.Controller, fabric *dppi.Fabric, lfclkRunning func() bool) *Instance {
	i := &Instance{
		Name: name, Idx: idx, sched: sched, intc: intc, fabric: fabric,
		lfRunning: lfclkRunning, tickDeadline: engine.Never,
	}
	for c := range i.CC {
		i.CC[c].deadline = engine.Never
	}
	sched.Register(i)
	return i
}

// absTickAt returns the non-wrapped tick number reached by simulated time
// t, computed with a single multiply-then-divide to avoid compounding
// rounding error across many short ticks.
func (i *Instance) absTickAt(t engine.Time) uint64 {
	elapsed := uint64(t - i.startRef)
	return elapsed * tickHz / (1_000_000 * uint64(i.prescaler+1))
}

// timeOfAbsTick returns the earliest simulated time at which absTickAt
// reaches tick n, i.e. the inverse of absTickAt rounded up.
func (i *Instance) timeOfAbsTick(n uint64) engine.Time {
	num := n * 1_000_000 * uint64(i.prescaler+1)
	us := (num + tickHz - 1) / tickHz // ceiling division
	// Wrapping add: TaskTrigOvrflw may place startRef before time zero.
	return i.startRef + engine.Time(us)
}

// counterAt returns the 24-bit counter value at simulated time t, given the
// instance is running.
func (i *Instance) counterAt(t engine.Time) uint32 {
	return uint32(i.absTickAt(t) & counterMask)
}

// timeForCount returns the earliest simulated time strictly after now at
// which the counter will reach count, accounting for 24-bit wraparound.
func (i *Instance) timeForCount(count uint32) engine.Time {
	now := i.sched.Now()
	nNow := i.absTickAt(now)
	cur := uint32(nNow & counterMask)
	delta := (uint64(count) - uint64(cur)) & counterMask
	if delta == 0 {
		delta = counterMask + 1
	}
	return i.timeOfAbsTick(nNow + delta)
}

func (i *Instance) recomputeDeadlines() {
	for c := range i.CC {
		if i.running && i.CC[c].enabled {
			i.CC[c].deadline = i.timeForCount(i.CC[c].value)
		} else {
			i.CC[c].deadline = engine.Never
		}
	}
	if i.running {
		i.tickDeadline = i.timeOfAbsTick(i.absTickAt(i.sched.Now()) + 1)
	} else {
		i.tickDeadline = engine.Never
	}
}

// NextDeadline implements engine.Source.
func (i *Instance) NextDeadline() engine.Time {
	min := i.tickDeadline
	for c := range i.CC {
		if i.CC[c].deadline < min {
			min = i.CC[c].deadline
		}
	}
	return min
}

// Fire implements engine.Source.
func (i *Instance) Fire(now engine.Time) {
	if i.tickDeadline == now {
		i.EventsTick = true
		i.intc.SetPulse(EventTick)
		i.fabric.EventSignalIf(i.PublishTick)
		if i.counterAt(now) == 0 {
			i.EventsOvrflw = true
			i.intc.SetPulse(EventOvrflw)
			i.fabric.EventSignalIf(i.PublishOvrflw)
		}
		i.tickDeadline = i.timeOfAbsTick(i.absTickAt(now) + 1)
	}
	for c := range i.CC {
		if i.CC[c].deadline != now {
			continue
		}
		i.EventsCompare[c] = true
		i.intc.SetPulse(EventCompare0 + c)
		i.fabric.EventSignalIf(i.PublishCompare[c])
		if i.ShortsCompareClear[c] {
			i.taskClear()
		}
		if i.ShortsCompareStop[c] {
			i.taskStop()
		}
		if i.CC[c].enabled {
			i.CC[c].deadline = i.timeForCount(i.CC[c].value)
		}
	}
}

// TaskStart implements TASKS_START. The LF clock must already be running
// (spec.md §4.5).
func (i *Instance) TaskStart() {
	if i.lfRunning != nil && !i.lfRunning() {
		return
	}
	if i.running {
		return
	}
	i.running = true
	i.startRef = i.sched.Now()
	i.recomputeDeadlines()
	i.sched.FindNextEvent()
}

func (i *Instance) taskStop() {
	i.running = false
	i.recomputeDeadlines()
}

// TaskStop implements TASKS_STOP.
func (i *Instance) TaskStop() {
	i.taskStop()
	i.sched.FindNextEvent()
}

func (i *Instance) taskClear() {
	i.startRef = i.sched.Now()
	i.recomputeDeadlines()
}

// TaskClear implements TASKS_CLEAR.
func (i *Instance) TaskClear() {
	i.taskClear()
	i.sched.FindNextEvent()
}

// TaskTrigOvrflw implements TASKS_TRIGOVRFLW: forces the counter to
// 0xFFFFF0, so it rolls over to zero 16 ticks later.
func (i *Instance) TaskTrigOvrflw() {
	const near = uint64(0xFFFFF0)
	now := i.sched.Now()
	elapsedForNear := (near*1_000_000*uint64(i.prescaler+1) + tickHz - 1) / tickHz
	i.startRef = now - engine.Time(elapsedForNear)
	i.recomputeDeadlines()
	i.sched.FindNextEvent()
}

// SetPrescaler implements the write side-effect for the PRESCALER
// register; it only takes effect while the RTC is stopped on real
// hardware, but the model does not enforce that gray-area rule beyond
// documenting it here.
func (i *Instance) SetPrescaler(v uint32) {
	i.prescaler = v & 0xFFF
	i.recomputeDeadlines()
	i.sched.FindNextEvent()
}

// WriteCC sets CC[n]'s compare value and recomputes its deadline if the RTC
// is running and that CC's compare interrupt/event is enabled.
func (i *Instance) WriteCC(n int, v uint32) {
	i.CC[n].value = v & counterMask
	if i.running && i.CC[n].enabled {
		i.CC[n].deadline = i.timeForCount(i.CC[n].value)
		i.sched.FindNextEvent()
	}
}

// SetCCEnabled enables or disables CC[n]'s compare (mirrors EVTEN/INTEN
// bits gating whether a CC is watched at all).
func (i *Instance) SetCCEnabled(n int, enabled bool) {
	i.CC[n].enabled = enabled
	if i.running && enabled {
		i.CC[n].deadline = i.timeForCount(i.CC[n].value)
	} else {
		i.CC[n].deadline = engine.Never
	}
	i.sched.FindNextEvent()
}

// Counter returns the current 24-bit counter value.
func (i *Instance) Counter() uint32 {
	if !i.running {
		return 0
	}
	return i.counterAt(i.sched.Now())
}
