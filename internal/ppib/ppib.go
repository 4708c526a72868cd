// Package ppib models the PPI Bridge: a pair-wired connector that lets a
// DPPI channel on one power/clock domain's fabric trigger the
// corresponding channel on a second domain's fabric, so cross-domain PPI
// routing does not need every peripheral to subscribe across fabrics
// directly (spec.md §4.9).
package ppib

import "hwsim.dev/nrfperiph/internal/dppi"

// Instance is one half of a PPIB pair. Connect links it to its sibling on
// the other domain's fabric.
type Instance struct {
	Name    string
	fabric  *dppi.Fabric
	sibling *Instance

	subs map[int]*dppi.TaskCallback
}

// New returns a PPIB instance wired to its local fabric.
func New(name string, fabric *dppi.Fabric) *Instance {
	return &Instance{Name: name, fabric: fabric, subs: make(map[int]*dppi.TaskCallback)}
}

// Connect links a and b as the two sides of one bridge: a SUBSCRIBE on
// a's channel n re-publishes on b's channel n, and vice versa.
func Connect(a, b *Instance) {
	a.sibling = b
	b.sibling = a
}

// SubscribeChannel implements SUBSCRIBE_SEND[n]: wires a's channel n so
// that signalling it also signals the sibling's same channel number.
func (i *Instance) SubscribeChannel(ch int) error {
	if i.subs[ch] != nil || i.sibling == nil {
		return nil
	}
	sib := i.sibling
	cb := dppi.NewTaskCallback(func() {
		sib.fabric.EventSignal(ch)
	})
	i.subs[ch] = cb
	return i.fabric.Subscribe(ch, cb, dppi.NoParam())
}

// UnsubscribeChannel reverses SubscribeChannel.
func (i *Instance) UnsubscribeChannel(ch int) error {
	cb, ok := i.subs[ch]
	if !ok {
		return nil
	}
	delete(i.subs, ch)
	return i.fabric.Unsubscribe(ch, cb, dppi.NoParam())
}
