// Package mutex models the hardware MUTEX peripheral: a bank of
// test-and-set locks shared between CPU cores in a multi-core SoC, used to
// arbitrate access to shared peripherals without a real OS-level lock
// (spec.md §4.9).
package mutex

// Count is the number of independent locks in one MUTEX instance.
const Count = 8

// Instance is one MUTEX instance.
type Instance struct {
	Name  string
	taken [Count]bool
}

// New returns a MUTEX instance with every lock free.
func New(name string) *Instance { return &Instance{Name: name} }

// TryLock implements a read of MUTEX[n]: atomically tests and sets the
// lock, returning the PREVIOUS value (0 = the caller now owns it, 1 = it
// was already held). This mirrors the real peripheral's "read-to-acquire"
// semantics, where the read operation itself is the side effect.
func (i *Instance) TryLock(n int) int {
	if i.taken[n] {
		return 1
	}
	i.taken[n] = true
	return 0
}

// Unlock implements a write of 0 to MUTEX[n]: releases the lock
// unconditionally, regardless of which caller holds it (matching real
// hardware, which has no owner tracking).
func (i *Instance) Unlock(n int) { i.taken[n] = false }

// Held reports whether lock n is currently taken, for tests and
// diagnostics; real firmware cannot observe this without taking the lock.
func (i *Instance) Held(n int) bool { return i.taken[n] }
