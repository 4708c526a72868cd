package uart

import (
	"testing"

	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

type loopbackStub struct{ inst *Instance }

func (b *loopbackStub) TxByte(data byte)       { b.inst.PushRxByte(data) }
func (b *loopbackStub) RTSPinToggle(bool)      {}
func (b *loopbackStub) UARTEnableNotify(a, c bool) {}

// TestLoopbackByteTiming reproduces spec.md §8 scenario S3.
func TestLoopbackByteTiming(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("uart", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	u := New("uart", 0, sched, intc, fabric)
	u.Backend = &loopbackStub{inst: u}
	u.Baudrate = 250_000
	u.Parity = false
	u.StopBits = 1
	u.RecomputeByteTime()

	if u.byteTime != 40 {
		t.Fatalf("byteTime = %d, want 40", u.byteTime)
	}

	u.TaskStartRx()
	u.TaskStartTx()
	u.WriteTxd(0xA5)

	sched.FindNextEvent()
	now := sched.AdvanceAndDispatch(engine.Never)
	if now != 40 {
		t.Fatalf("fired at %d, want 40", now)
	}
	if !u.Events.TxDrdy {
		t.Fatalf("EVENTS_TXDRDY not set")
	}
	if !u.Events.RxDrdy {
		t.Fatalf("EVENTS_RXDRDY not set")
	}
	if got := u.ReadRxd(); got != 0xA5 {
		t.Fatalf("RXD = 0x%02X, want 0xA5", got)
	}
}

func TestRTSAssertsAtThreshold(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("uart", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	u := New("uart", 0, sched, intc, fabric)
	u.HWFC = true
	u.TaskStartRx()
	u.PushRxByte(1)
	if u.RTSAsserted() {
		t.Fatalf("RTS should not assert below threshold")
	}
	u.PushRxByte(2)
	if !u.RTSAsserted() {
		t.Fatalf("RTS should assert at threshold (2 bytes)")
	}
	u.ReadRxd()
	u.ReadRxd()
	if u.RTSAsserted() {
		t.Fatalf("RTS should deassert once the FIFO drains")
	}
}

func TestFIFOCountInvariant(t *testing.T) {
	sched := engine.NewScheduler()
	intc := irq.New("uart", 0, nil)
	fabric := dppi.New("dppic", 0, 8, 0)
	u := New("uart", 0, sched, intc, fabric)
	u.TaskStartRx()
	for b := 0; b < FIFOSize+2; b++ {
		u.PushRxByte(byte(b))
	}
	if c := u.FIFOCount(); c < 0 || c > FIFOSize {
		t.Fatalf("FIFOCount() = %d, want in [0,%d]", c, FIFOSize)
	}
}
