// Package ipc models the Inter-Processor Communication peripheral: a bank
// of signal channels that route a TASKS_SEND on one channel's side into
// EVENTS_RECEIVE on every domain subscribed to it, letting two CPU cores
// in a multi-core SoC rendezvous (spec.md §4.9).
package ipc

import "hwsim.dev/nrfperiph/internal/dppi"

// Channels is the number of signal channels.
const Channels = 16

// Instance is one IPC instance, local to one CPU domain; Peer links it to
// the instance modeling the other domain's view of the same fabric.
type Instance struct {
	Name   string
	fabric *dppi.Fabric
	Peer   *Instance

	ReceiveEvent [Channels]bool
	SendEnable   uint32 // SEND_CNF bitmask: which local channels TASKS_SEND may drive
	ReceiveEnable uint32 // RECEIVE_CNF bitmask: which channels raise EVENTS_RECEIVE
	Publish       [Channels]uint32
}

// New returns an IPC instance wired to fabric.
func New(name string, fabric *dppi.Fabric) *Instance {
	return &Instance{Name: name, fabric: fabric}
}

// TaskSend implements TASKS_SEND[n]: if channel n is enabled in
// SEND_CNF, the signal crosses to the peer domain (and, if GPIO-free,
// loops back locally too, matching real IPC wiring where send and receive
// config are independent per domain).
func (i *Instance) TaskSend(n int) {
	if i.SendEnable&(1<<uint(n)) == 0 {
		return
	}
	if i.ReceiveEnable&(1<<uint(n)) != 0 {
		i.signal(n)
	}
	if i.Peer != nil && i.Peer.ReceiveEnable&(1<<uint(n)) != 0 {
		i.Peer.signal(n)
	}
}

func (i *Instance) signal(n int) {
	i.ReceiveEvent[n] = true
	i.fabric.EventSignalIf(i.Publish[n])
}

// ClearEvent clears EVENTS_RECEIVE[n].
func (i *Instance) ClearEvent(n int) { i.ReceiveEvent[n] = false }
