// Package irq models a per-core interrupt controller: level and pulse IRQ
// lines with priority, masking, a global lock, and pending/active state
// (spec.md §4.2).
package irq

// PhonyLine is a reserved line number used only by the fake-timer wake
// source (spec.md §4.2, "a phony hard IRQ number bypasses the global
// lock"). It is wired through RaisePhony, never through the normal
// raise/lower/pulse API.
const PhonyLine = 63

// Controller is one interrupt-controller instance. All lines are packed
// into 64-bit words (spec.md §3).
type Controller struct {
	Name     string // subsystem name used in fatal-error messages
	Instance int

	level    uint64 // external line raised bit
	premask  uint64 // pending-before-mask
	status   uint64 // pending-after-mask == premask & mask
	mask     uint64
	priority [64]uint8

	locked      bool
	runningPrio int // priority currently executing on the core; noneRunning if idle

	// OnWake is called whenever a line transitions to pending while the
	// controller is unlocked, modeling "schedules CPU wake in 1
	// delta-cycle" (spec.md §4.2). The collaborating CPU model is out of
	// scope; this is its sole entry point.
	OnWake func(line int)
}

// noneRunning is the running-priority sentinel for "no ISR executing",
// numerically below no real uint8 priority, matching the original
// irq_ctrl.c's use of 256 for the idle core (spec.md §4.2).
const noneRunning = 256

// New returns a controller with every line masked, cleared, and at
// priority 0, with the core idle.
func New(name string, instance int, onWake func(line int)) *Controller {
	return &Controller{Name: name, Instance: instance, OnWake: onWake, runningPrio: noneRunning}
}

// SetPriority assigns an interrupt line's fixed priority (lower runs
// first).
func (c *Controller) SetPriority(line int, prio uint8) {
	c.priority[line] = prio
}

// SetRunningPriority records the priority of the ISR currently executing on
// the core, used by HighestPending to decide preemption eligibility. Pass
// noneRunning's equivalent by calling ClearRunningPriority when the core
// returns to idle.
func (c *Controller) SetRunningPriority(prio uint8) {
	c.runningPrio = int(prio)
}

// ClearRunningPriority marks the core idle, so HighestPending again
// considers every pending line regardless of priority.
func (c *Controller) ClearRunningPriority() {
	c.runningPrio = noneRunning
}

func bit(line int) uint64 { return 1 << uint(line) }

func (c *Controller) pend(line int) {
	wasPending := c.status&bit(line) != 0
	c.premask |= bit(line)
	c.recomputeStatus(line)
	if !wasPending && c.status&bit(line) != 0 && !c.locked {
		c.wake(line)
	}
}

func (c *Controller) recomputeStatus(line int) {
	if c.mask&bit(line) != 0 {
		c.status |= c.premask & bit(line)
	} else {
		c.status &^= bit(line)
	}
}

func (c *Controller) wake(line int) {
	if c.OnWake != nil {
		c.OnWake(line)
	}
}

// RaiseLevel sets the external-line bit and pends it; idempotent.
func (c *Controller) RaiseLevel(line int) {
	c.level |= bit(line)
	c.pend(line)
}

// LowerLevel clears only the external-line bit; premask/status survive
// (spec.md §4.2 invariants: "status bits outlive the external line").
func (c *Controller) LowerLevel(line int) {
	c.level &^= bit(line)
}

// SetPulse is equivalent to an edge-triggered pend; there is no
// corresponding lower.
func (c *Controller) SetPulse(line int) {
	c.pend(line)
}

// ReevalLevel re-pends a line if its external-line bit is still high,
// called after the CPU exits the ISR for that line.
func (c *Controller) ReevalLevel(line int) {
	if c.level&bit(line) != 0 {
		c.pend(line)
	}
}

// Enable sets the mask bit for line; if premask is already set this
// immediately pends.
func (c *Controller) Enable(line int) {
	wasPending := c.status&bit(line) != 0
	c.mask |= bit(line)
	c.recomputeStatus(line)
	if !wasPending && c.status&bit(line) != 0 && !c.locked {
		c.wake(line)
	}
}

// Disable clears the mask bit, which also clears status for that line.
func (c *Controller) Disable(line int) {
	c.mask &^= bit(line)
	c.recomputeStatus(line)
}

// Clear clears both premask and status for line.
func (c *Controller) Clear(line int) {
	c.premask &^= bit(line)
	c.status &^= bit(line)
}

// ToggleLevelIf tracks the caller's own "am I driving the line high" edge
// in *currentlyHigh and calls RaiseLevel/LowerLevel only on a transition,
// so raising and lowering within the same handler is a net no-op
// (spec.md §4.2, §5).
func (c *Controller) ToggleLevelIf(currentlyHigh *bool, newLevel bool, line int) {
	if *currentlyHigh == newLevel {
		return
	}
	*currentlyHigh = newLevel
	if newLevel {
		c.RaiseLevel(line)
	} else {
		c.LowerLevel(line)
	}
}

// ChangeLock sets the global lock flag and returns its previous value. If
// unlocking and any status bits remain, the corresponding lines are
// immediately re-woken.
func (c *Controller) ChangeLock(newLocked bool) (old bool) {
	old = c.locked
	c.locked = newLocked
	if old && !newLocked && c.status != 0 {
		for line := 0; line < 64; line++ {
			if c.status&bit(line) != 0 {
				c.wake(line)
			}
		}
	}
	return old
}

// Locked reports the current global lock state.
func (c *Controller) Locked() bool { return c.locked }

// HighestPending returns the line with the lowest numeric priority among
// status bits whose priority is strictly lower in number than
// c.runningPrio, or -1 if none qualifies.
func (c *Controller) HighestPending() int {
	best := -1
	var bestPrio uint8
	for line := 0; line < 64; line++ {
		if c.status&bit(line) == 0 {
			continue
		}
		p := c.priority[line]
		if int(p) >= c.runningPrio {
			continue
		}
		if best == -1 || p < bestPrio {
			best = line
			bestPrio = p
		}
	}
	return best
}

// RaisePhony raises PhonyLine, bypassing the global lock entirely. Used
// only by the fake-timer wake source (spec.md §4.2, §4.9).
func (c *Controller) RaisePhony() {
	c.premask |= bit(PhonyLine)
	c.status |= bit(PhonyLine)
	c.wake(PhonyLine)
}

// StatusBit reports whether line is currently pending-after-mask, for
// tests and invariant checks (spec.md §8 property 2).
func (c *Controller) StatusBit(line int) bool { return c.status&bit(line) != 0 }

// PremaskBit reports whether line is currently pending-before-mask.
func (c *Controller) PremaskBit(line int) bool { return c.premask&bit(line) != 0 }
