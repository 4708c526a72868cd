package gpio

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
)

func TestInTracksIOLevelUnlessOverridden(t *testing.T) {
	p := New("p0", 0)
	p.DriveExternal(3, gpio.High)
	if p.In(3) != gpio.High {
		t.Fatalf("In(3) = %v, want High", p.In(3))
	}
	mask := true
	p.SetInputMask(3, mask)
	if p.In(3) != gpio.Low {
		t.Fatalf("disconnected input should read Low, got %v", p.In(3))
	}
}

func TestOutputOverrideDrivesIOLevel(t *testing.T) {
	p := New("p0", 0)
	out := true
	dir := true
	high := gpio.High
	p.PeriPinControl(5, &out, nil, &dir, &high)
	if p.IOLevel(5) != gpio.High {
		t.Fatalf("IOLevel(5) = %v, want High", p.IOLevel(5))
	}
	if p.In(5) != gpio.High {
		t.Fatalf("In(5) = %v, want High", p.In(5))
	}
}

// TestPortEventRoundTrip reproduces spec.md §8 scenario S5.
func TestPortEventRoundTrip(t *testing.T) {
	p := New("p0", 0)
	p.DetectMode = LDetect
	var events int
	p.OnPortEvent = func() { events++ }
	p.SetSense(3, true, false) // SENSE=High, i.e. not inverted

	p.DriveExternal(3, gpio.High)
	if events != 1 {
		t.Fatalf("events = %d after first raise, want 1", events)
	}

	p.DriveExternal(3, gpio.Low)
	if events != 1 {
		t.Fatalf("lowering the pin must not itself fire another PORT event, events=%d", events)
	}

	p.WriteLatch(1 << 3)
	p.DriveExternal(3, gpio.High)
	if events != 2 {
		t.Fatalf("events = %d after re-raise following LATCH clear, want 2", events)
	}
}
