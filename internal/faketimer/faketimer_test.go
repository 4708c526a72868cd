package faketimer

import (
	"testing"

	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

func TestWakeAtRaisesPhonyLine(t *testing.T) {
	sched := engine.NewScheduler()
	var woken int
	intc := irq.New("core0", 0, func(line int) { woken = line })
	ft := New("faketimer0", sched, intc)

	ft.WakeAt(100)
	sched.FindNextEvent()
	now := sched.AdvanceAndDispatch(engine.Never)
	if now != 100 {
		t.Fatalf("fired at %d, want 100", now)
	}
	if !intc.StatusBit(irq.PhonyLine) {
		t.Fatalf("phony line not pending after wake")
	}
	if woken != irq.PhonyLine {
		t.Fatalf("OnWake called with line %d, want %d", woken, irq.PhonyLine)
	}
}

func TestCancelSuppressesWake(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("core0", 0, nil)
	ft := New("faketimer0", sched, intc)

	ft.WakeAt(100)
	ft.Cancel()
	if sched.NextEventTime() != engine.Never {
		t.Fatalf("cancelled wake still scheduled: %d", sched.NextEventTime())
	}
}
