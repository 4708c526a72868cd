package irq

import "testing"

// TestPriorityAndLock reproduces spec.md §8 scenario S6.
func TestPriorityAndLock(t *testing.T) {
	var woke []int
	c := New("intctrl", 0, func(line int) { woke = append(woke, line) })
	c.SetPriority(4, 1)
	c.SetPriority(5, 0)
	c.SetPriority(3, 0)
	c.Enable(4)
	c.Enable(5)
	c.Enable(3)

	c.RaiseLevel(4)
	c.RaiseLevel(5)

	if got := c.HighestPending(); got != 5 {
		t.Fatalf("HighestPending() = %d, want 5", got)
	}

	c.ChangeLock(true)
	woke = nil
	c.SetPulse(3)
	if len(woke) != 0 {
		t.Fatalf("locked controller should not wake CPU, got %v", woke)
	}
	if !c.StatusBit(3) {
		t.Fatalf("line 3 should still be pending while locked")
	}

	woke = nil
	old := c.ChangeLock(false)
	if !old {
		t.Fatalf("ChangeLock should report the controller was locked")
	}
	if len(woke) == 0 {
		t.Fatalf("unlocking with pending status bits should wake the CPU immediately")
	}
}

func TestStatusEqualsPremaskAndMask(t *testing.T) {
	c := New("intctrl", 0, nil)
	c.RaiseLevel(2)
	if c.StatusBit(2) {
		t.Fatalf("status should stay clear while the line is masked")
	}
	if !c.PremaskBit(2) {
		t.Fatalf("premask should be set even while masked")
	}
	c.Enable(2)
	if !c.StatusBit(2) {
		t.Fatalf("enabling while premask is set should immediately pend")
	}
	c.LowerLevel(2)
	if !c.StatusBit(2) {
		t.Fatalf("lowering the external line must not clear status")
	}
	c.Clear(2)
	if c.StatusBit(2) || c.PremaskBit(2) {
		t.Fatalf("Clear should clear both premask and status")
	}
}

func TestToggleLevelIfIsNoOpWithinSameHandler(t *testing.T) {
	var woke int
	c := New("intctrl", 0, func(int) { woke++ })
	c.Enable(1)
	high := false
	c.ToggleLevelIf(&high, true, 1)
	c.ToggleLevelIf(&high, false, 1)
	if woke != 1 {
		t.Fatalf("raising then lowering within a handler should wake the CPU once (the raise), got %d wakes", woke)
	}
	if high || !c.StatusBit(1) {
		t.Fatalf("net line level should be low while the status raised by the toggle stays pending")
	}
}

func TestRaisePhonyBypassesLock(t *testing.T) {
	var woke []int
	c := New("faketimer", 0, func(line int) { woke = append(woke, line) })
	c.ChangeLock(true)
	c.RaisePhony()
	if len(woke) != 1 || woke[0] != PhonyLine {
		t.Fatalf("RaisePhony should wake even while locked, got %v", woke)
	}
}
