// Package clock models the CLOCK/POWER/RESET peripheral: the HFCLK and
// LFCLK oscillator state machines, LF-RC calibration, and the calibration
// timer (spec.md §4.4).
package clock

import (
	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

// State is one of the four states every sub-state-machine on the
// peripheral moves through.
type State int

const (
	Stopped State = iota
	Starting
	Started
	Stopping
)

// Interrupt line numbers for this instance's controller, and the index
// used to route each event through DPPI.
const (
	EventHFCLKStarted = iota
	EventLFCLKStarted
	EventDone
	EventCTTO
	EventCTStarted
	EventCTStopped
	EventHFCLK192MStarted
	EventHFCLKAudioStarted
	numEvents
)

type oscillator struct {
	state    State
	deadline engine.Time
}

func (o *oscillator) start(now engine.Time) {
	if o.state == Stopped || o.state == Stopping {
		o.state = Starting
		o.deadline = now
	}
}

func (o *oscillator) stop(now engine.Time) {
	if o.state == Starting || o.state == Started {
		o.state = Stopping
		o.deadline = now
	}
}

// Instance is one CLOCK/POWER/RESET peripheral instance.
type Instance struct {
	Name     string
	Idx      int
	sched    *engine.Scheduler
	intc     *irq.Controller
	fabric   *dppi.Fabric

	HFCLK      oscillator
	LFCLK      oscillator
	Cal        oscillator // LF-RC calibration, only meaningful while HFCLK is Started
	HFCLK192M  oscillator // supplemented: nRF53/54-style auxiliary oscillator (SPEC_FULL §12)
	HFCLKAudio oscillator // supplemented: nRF53/54-style auxiliary oscillator (SPEC_FULL §12)

	calTimerRunning  bool
	calTimerDeadline engine.Time

	LFCLKSRC     uint32
	LFCLKSRCCOPY uint32
	CTIV         uint32 // calibration timer interval register, in 0.25s units

	Events   [numEvents]bool
	Publish  [numEvents]uint32
}

// New returns an instance wired to the given scheduler, interrupt
// controller, and DPPI fabric, with every line's interrupt priority left
// at the controller's default.
func New(name string, idx int, sched *engine.Scheduler, intc *irq.Controller, fabric *dppi.Fabric) *Instance {
	i := &Instance{Name: name, Idx: idx, sched: sched, intc: intc, fabric: fabric}
	sched.Register(i)
	return i
}

// NextDeadline implements engine.Source.
func (i *Instance) NextDeadline() engine.Time {
	min := engine.Never
	for _, o := range i.all() {
		if (o.state == Starting || o.state == Stopping) && o.deadline < min {
			min = o.deadline
		}
	}
	if i.calTimerRunning && i.calTimerDeadline < min {
		min = i.calTimerDeadline
	}
	return min
}

func (i *Instance) all() [5]*oscillator {
	return [5]*oscillator{&i.HFCLK, &i.LFCLK, &i.Cal, &i.HFCLK192M, &i.HFCLKAudio}
}

// Fire implements engine.Source: it advances every sub-state-machine whose
// deadline has arrived and emits the matching event.
func (i *Instance) Fire(now engine.Time) {
	type step struct {
		o     *oscillator
		event int
	}
	steps := []step{
		{&i.HFCLK, EventHFCLKStarted},
		{&i.LFCLK, EventLFCLKStarted},
		{&i.Cal, EventDone},
		{&i.HFCLK192M, EventHFCLK192MStarted},
		{&i.HFCLKAudio, EventHFCLKAudioStarted},
	}
	for _, s := range steps {
		if s.o.deadline != now {
			continue
		}
		switch s.o.state {
		case Starting:
			s.o.state = Started
			s.o.deadline = engine.Never
			i.emit(s.event)
		case Stopping:
			s.o.state = Stopped
			s.o.deadline = engine.Never
			i.emit(s.event)
		}
	}
	if i.calTimerRunning && i.calTimerDeadline == now {
		i.calTimerRunning = false
		i.calTimerDeadline = engine.Never
		i.emit(EventCTTO)
	}
}

func (i *Instance) emit(event int) {
	i.Events[event] = true
	i.intc.SetPulse(event)
	i.fabric.EventSignalIf(i.Publish[event])
}

// TaskHFCLKStart implements TASKS_HFCLKSTART.
func (i *Instance) TaskHFCLKStart() {
	i.HFCLK.start(i.sched.Now())
	i.sched.FindNextEvent()
}

// TaskHFCLKStop implements TASKS_HFCLKSTOP.
func (i *Instance) TaskHFCLKStop() {
	i.HFCLK.stop(i.sched.Now())
	i.sched.FindNextEvent()
}

// TaskLFCLKStart implements TASKS_LFCLKSTART.
func (i *Instance) TaskLFCLKStart() {
	i.LFCLK.start(i.sched.Now())
	i.LFCLKSRCCOPY = i.LFCLKSRC
	i.sched.FindNextEvent()
}

// TaskLFCLKStop implements TASKS_LFCLKSTOP.
func (i *Instance) TaskLFCLKStop() {
	i.LFCLK.stop(i.sched.Now())
	i.sched.FindNextEvent()
}

// TaskCal implements TASKS_CAL: calibration only runs while HFCLK is
// Started.
func (i *Instance) TaskCal() {
	if i.HFCLK.state != Started {
		return
	}
	i.Cal.start(i.sched.Now())
	i.sched.FindNextEvent()
}

// TaskCTStart implements TASKS_CTSTART: arms the calibration timer for
// CTIV*250000 microseconds and immediately confirms it started.
func (i *Instance) TaskCTStart() {
	now := i.sched.Now()
	i.calTimerRunning = true
	i.calTimerDeadline = now.Add(engine.Time(i.CTIV) * 250000)
	i.emit(EventCTStarted)
	i.sched.FindNextEvent()
}

// TaskCTStop implements TASKS_CTSTOP: disarms the calibration timer
// without waiting for it to expire.
func (i *Instance) TaskCTStop() {
	i.calTimerRunning = false
	i.calTimerDeadline = engine.Never
	i.emit(EventCTStopped)
	i.sched.FindNextEvent()
}

// IsHFCLKRunning reports whether HFCLK has completed its start sequence.
func (i *Instance) IsHFCLKRunning() bool { return i.HFCLK.state == Started }

// IsLFCLKRunning reports whether LFCLK has completed its start sequence.
func (i *Instance) IsLFCLKRunning() bool { return i.LFCLK.state == Started }
