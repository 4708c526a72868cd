// Package egu models the Event Generator Unit: a bank of software-
// triggerable task/event pairs used to fan out a single PPI/DPPI
// subscription into several independent publishers (spec.md §4.9).
package egu

import "hwsim.dev/nrfperiph/internal/dppi"

// Channels is the number of TASKS_TRIGGER/EVENTS_TRIGGERED pairs.
const Channels = 16

// Instance is one EGU instance.
type Instance struct {
	Name    string
	fabric  *dppi.Fabric
	Triggered [Channels]bool
	Publish   [Channels]uint32
}

// New returns an EGU instance wired to fabric.
func New(name string, fabric *dppi.Fabric) *Instance {
	return &Instance{Name: name, fabric: fabric}
}

// TaskTrigger implements TASKS_TRIGGER[n]: sets EVENTS_TRIGGERED[n]
// immediately, with no timing delay (spec.md §4.9).
func (i *Instance) TaskTrigger(n int) {
	i.Triggered[n] = true
	i.fabric.EventSignalIf(i.Publish[n])
}

// ClearEvent clears EVENTS_TRIGGERED[n], as firmware does after servicing
// the interrupt.
func (i *Instance) ClearEvent(n int) { i.Triggered[n] = false }
