// Package faketimer models the fake-timer wake source: a scheduler Source
// with no firmware-visible registers at all, whose only job is to raise
// the phony hard-IRQ line when the simulated core should wake up and run,
// even if no real peripheral has anything pending (spec.md §4.2, §4.9).
// Multiple instances may coexist, one per CPU domain in a multi-core SoC.
package faketimer

import (
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

// Instance is one fake-timer instance.
type Instance struct {
	Name     string
	sched    *engine.Scheduler
	intc     *irq.Controller
	deadline engine.Time
}

// New returns a fake-timer instance registered with sched, initially
// idle.
func New(name string, sched *engine.Scheduler, intc *irq.Controller) *Instance {
	i := &Instance{Name: name, sched: sched, intc: intc, deadline: engine.Never}
	sched.Register(i)
	return i
}

// NextDeadline implements engine.Source.
func (i *Instance) NextDeadline() engine.Time { return i.deadline }

// Fire implements engine.Source: raises the phony IRQ line once, then goes
// idle until rearmed.
func (i *Instance) Fire(now engine.Time) {
	if i.deadline != now {
		return
	}
	i.deadline = engine.Never
	i.intc.RaisePhony()
}

// WakeAt schedules a wake at absolute time t, used by firmware-side idle
// loops (e.g. "sleep until at least this instant") that have no real
// peripheral compare register to hang the wake off of.
func (i *Instance) WakeAt(t engine.Time) {
	if t < i.deadline {
		i.deadline = t
		i.sched.FindNextEvent()
	}
}

// Cancel clears any pending wake.
func (i *Instance) Cancel() {
	i.deadline = engine.Never
	i.sched.FindNextEvent()
}
