// Package bitcounter models the small BITCOUNTER helper peripheral found
// alongside EGU/IPC on some SoCs: an up-counter with increment and clear
// tasks (called directly; it has no DPPI subscriptions and does not
// saturate) and a compare event published when COUNT reaches a configurable
// limit (spec.md §4.9).
package bitcounter

import "hwsim.dev/nrfperiph/internal/dppi"

// Instance is one BITCOUNTER instance.
type Instance struct {
	Name   string
	fabric *dppi.Fabric

	Count int32
	Limit int32

	Publish uint32 // PUBLISH_COMPARE
}

// New returns a BITCOUNTER instance wired to fabric.
func New(name string, fabric *dppi.Fabric) *Instance {
	return &Instance{Name: name, fabric: fabric}
}

// TaskIncrement implements TASKS_INCREMENT: increments COUNT and fires
// EVENTS_COMPARE if the new value reaches Limit.
func (i *Instance) TaskIncrement() {
	i.Count++
	if i.Count == i.Limit {
		i.fabric.EventSignalIf(i.Publish)
	}
}

// TaskClear implements TASKS_CLEAR.
func (i *Instance) TaskClear() { i.Count = 0 }
