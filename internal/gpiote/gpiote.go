// Package gpiote models the GPIO task/event channel peripheral: each
// channel either reports a pin's edges as an event or takes ownership of a
// pin's output to be driven by tasks (spec.md §4.6).
package gpiote

import (
	"periph.io/x/conn/v3/gpio"

	"hwsim.dev/nrfperiph/internal/dppi"
	gpiopkg "hwsim.dev/nrfperiph/internal/gpio"
)

// Mode selects what a channel does.
type Mode int

const (
	Disabled Mode = iota
	Event
	Task
)

// Polarity selects which pin transitions an Event-mode channel reports, or
// how a Task-mode channel's TASKS_OUT behaves.
type Polarity int

const (
	None Polarity = iota
	LoToHi
	HiToLo
	Toggle
)

type channel struct {
	mode     Mode
	polarity Polarity
	port     *gpiopkg.Port
	pin      int
	owned    bool // true once Task mode has taken output ownership
	prevIn   gpio.Level
}

// Instance is one GPIOTE peripheral instance, covering eight channels plus
// the port-level PORT event.
type Instance struct {
	Name   string
	Idx    int
	fabric *dppi.Fabric

	Channels [8]channel

	EventsIn      [8]bool
	PublishIn     [8]uint32
	EventsPort    bool
	PublishPort   uint32
}

// New returns a GPIOTE instance with every channel disabled.
func New(name string, idx int, fabric *dppi.Fabric) *Instance {
	return &Instance{Name: name, Idx: idx, fabric: fabric}
}

// AttachPort wires this instance's EVENTS_PORT to port's DETECT signal.
func (i *Instance) AttachPort(port *gpiopkg.Port) {
	port.OnPortEvent = func() {
		i.EventsPort = true
		i.fabric.EventSignalIf(i.PublishPort)
	}
}

func (i *Instance) release(n int) {
	ch := &i.Channels[n]
	if ch.owned && ch.port != nil {
		f := false
		ch.port.PeriPinControl(ch.pin, &f, nil, &f, nil)
		ch.port.SetCallback(ch.pin, nil)
		ch.owned = false
	} else if ch.port != nil {
		ch.port.SetCallback(ch.pin, nil)
	}
}

// ConfigureEvent sets channel n to Event mode, watching port/pin for
// transitions matching polarity.
func (i *Instance) ConfigureEvent(n int, port *gpiopkg.Port, pin int, polarity Polarity) {
	i.release(n)
	ch := &i.Channels[n]
	ch.mode = Event
	ch.polarity = polarity
	ch.port = port
	ch.pin = pin
	ch.prevIn = port.In(pin)
	port.SetCallback(pin, func(p int, level gpio.Level) {
		i.onPinChange(n, level)
	})
}

func (i *Instance) onPinChange(n int, level gpio.Level) {
	ch := &i.Channels[n]
	prev := ch.prevIn
	ch.prevIn = level
	matched := false
	switch ch.polarity {
	case LoToHi:
		matched = prev == gpio.Low && level == gpio.High
	case HiToLo:
		matched = prev == gpio.High && level == gpio.Low
	case Toggle:
		matched = prev != level
	}
	if !matched {
		return
	}
	i.EventsIn[n] = true
	i.fabric.EventSignalIf(i.PublishIn[n])
}

// ConfigureTask sets channel n to Task mode, taking output ownership of
// port/pin and driving it to outinit.
func (i *Instance) ConfigureTask(n int, port *gpiopkg.Port, pin int, polarity Polarity, outinit gpio.Level) {
	i.release(n)
	ch := &i.Channels[n]
	ch.mode = Task
	ch.polarity = polarity
	ch.port = port
	ch.pin = pin
	ch.owned = true
	t := true
	port.PeriPinControl(pin, &t, nil, &t, &outinit)
}

// Disable releases channel n's pin ownership/listener and marks it
// Disabled.
func (i *Instance) Disable(n int) {
	i.release(n)
	i.Channels[n] = channel{}
}

func (i *Instance) currentLevel(ch *channel) gpio.Level {
	return ch.port.IOLevel(ch.pin)
}

// TaskOut implements TASKS_OUT[n]: applies the channel's configured
// polarity to its owned pin.
func (i *Instance) TaskOut(n int) {
	ch := &i.Channels[n]
	if ch.mode != Task {
		return
	}
	var next gpio.Level
	switch ch.polarity {
	case LoToHi:
		next = gpio.High
	case HiToLo:
		next = gpio.Low
	case Toggle:
		if i.currentLevel(ch) == gpio.High {
			next = gpio.Low
		} else {
			next = gpio.High
		}
	default:
		return
	}
	t := true
	ch.port.PeriPinControl(ch.pin, &t, nil, &t, &next)
}

// TaskSet implements TASKS_SET[n]: drives the owned pin high regardless of
// polarity.
func (i *Instance) TaskSet(n int) {
	ch := &i.Channels[n]
	if ch.mode != Task {
		return
	}
	t := true
	high := gpio.High
	ch.port.PeriPinControl(ch.pin, &t, nil, &t, &high)
}

// TaskClr implements TASKS_CLR[n]: drives the owned pin low regardless of
// polarity.
func (i *Instance) TaskClr(n int) {
	ch := &i.Channels[n]
	if ch.mode != Task {
		return
	}
	t := true
	low := gpio.Low
	ch.port.PeriPinControl(ch.pin, &t, nil, &t, &low)
}
