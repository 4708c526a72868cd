package grtc

import (
	"testing"

	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

func TestCCAddFiresAtOffset(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("grtc", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("grtc", 0, sched, intc, fabric)

	i.CCAdd(0, 1000, false)
	sched.FindNextEvent()
	now := sched.AdvanceAndDispatch(engine.Never)
	if now != 1000 {
		t.Fatalf("CC[0] fired at %d, want 1000", now)
	}
	if !i.Events[0] {
		t.Fatalf("EVENTS_COMPARE[0] not set")
	}
}

func TestCaptureSnapshotsCounter(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("grtc", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("grtc", 0, sched, intc, fabric)

	i.CCAdd(0, 500, false)
	sched.AdvanceAndDispatch(500)
	i.TaskCapture(1)
	if i.ReadCCL(1) != 500 {
		t.Fatalf("CC[1] captured %d, want 500", i.ReadCCL(1))
	}
}

func TestAutoReloadIntervalRearms(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("grtc", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("grtc", 0, sched, intc, fabric)

	i.Interval = 1000
	i.CC[0].value = 1000
	i.CC[0].enabled = true
	i.CC[0].deadline = 1000
	sched.FindNextEvent()

	now := sched.AdvanceAndDispatch(engine.Never)
	if now != 1000 {
		t.Fatalf("first reload fired at %d, want 1000", now)
	}
	now = sched.AdvanceAndDispatch(engine.Never)
	if now != 2000 {
		t.Fatalf("second reload fired at %d, want 2000", now)
	}
}

func TestSysCounterOverflowBit(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("grtc", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("grtc", 0, sched, intc, fabric)

	i.SysCounterLow(0)
	sched.AdvanceAndDispatch(1 << 32)
	low := i.SysCounterLow(0)
	_ = low
	high := i.SysCounterHigh(0)
	if high&(1<<31) == 0 {
		t.Fatalf("overflow bit not set after the low word wrapped")
	}
	high2 := i.SysCounterHigh(0)
	if high2&(1<<31) != 0 {
		t.Fatalf("overflow bit should clear after being read once")
	}
}
