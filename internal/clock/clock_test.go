package clock

import (
	"testing"

	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

func TestHFCLKStartEmitsEvent(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("clock", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("clock", 0, sched, intc, fabric)

	i.TaskHFCLKStart()
	sched.FindNextEvent()
	sched.AdvanceAndDispatch(engine.Never)

	if !i.IsHFCLKRunning() {
		t.Fatalf("HFCLK did not reach Started")
	}
	if !i.Events[EventHFCLKStarted] {
		t.Fatalf("EVENTS_HFCLKSTARTED not set")
	}
}

func TestCalOnlyRunsWithHFCLKStarted(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("clock", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("clock", 0, sched, intc, fabric)

	i.TaskCal()
	if i.Cal.state != Stopped {
		t.Fatalf("calibration started without HFCLK running")
	}

	i.TaskHFCLKStart()
	sched.AdvanceAndDispatch(engine.Never)
	i.TaskCal()
	if i.Cal.state != Starting && i.Cal.state != Started {
		t.Fatalf("calibration did not start once HFCLK was running")
	}
}

func TestCalibrationTimerDeadline(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("clock", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("clock", 0, sched, intc, fabric)

	i.CTIV = 4 // 4 * 250000us = 1s
	i.TaskCTStart()
	if !i.Events[EventCTStarted] {
		t.Fatalf("EVENTS_CTSTARTED not set immediately")
	}
	sched.FindNextEvent()
	now := sched.AdvanceAndDispatch(engine.Never)
	if now != 1_000_000 {
		t.Fatalf("calibration timer fired at %d, want 1000000", now)
	}
	if !i.Events[EventCTTO] {
		t.Fatalf("EVENTS_CTTO not set")
	}
}

func TestCTStopDisarmsTimer(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("clock", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("clock", 0, sched, intc, fabric)

	i.CTIV = 4
	i.TaskCTStart()
	i.TaskCTStop()
	if !i.Events[EventCTStopped] {
		t.Fatalf("EVENTS_CTSTOPPED not set")
	}
	if sched.NextEventTime() != engine.Never {
		t.Fatalf("calibration timer still scheduled after CTSTOP")
	}
}
