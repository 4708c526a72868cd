package gpiote

import (
	"testing"

	"periph.io/x/conn/v3/gpio"

	"hwsim.dev/nrfperiph/internal/dppi"
	gpiopkg "hwsim.dev/nrfperiph/internal/gpio"
)

func TestEventChannelFiresOnRisingEdge(t *testing.T) {
	fabric := dppi.New("dppic", 0, 8, 0)
	port := gpiopkg.New("p0", 0)
	gt := New("gpiote0", 0, fabric)

	gt.ConfigureEvent(0, port, 5, LoToHi)
	port.DriveExternal(5, gpio.High)
	if !gt.EventsIn[0] {
		t.Fatalf("EVENTS_IN[0] not set on rising edge")
	}

	gt.EventsIn[0] = false
	port.DriveExternal(5, gpio.Low)
	if gt.EventsIn[0] {
		t.Fatalf("EVENTS_IN[0] should not fire on a falling edge with LoToHi polarity")
	}
}

func TestTaskChannelTakesOwnershipAndDrivesOut(t *testing.T) {
	fabric := dppi.New("dppic", 0, 8, 0)
	port := gpiopkg.New("p0", 0)
	gt := New("gpiote0", 0, fabric)

	gt.ConfigureTask(1, port, 7, LoToHi, gpio.Low)
	if port.IOLevel(7) != gpio.Low {
		t.Fatalf("pin not driven to OUTINIT on task configure")
	}
	gt.TaskOut(1)
	if port.IOLevel(7) != gpio.High {
		t.Fatalf("TASKS_OUT did not raise the pin for LoToHi polarity")
	}
}

func TestDisableReleasesOwnership(t *testing.T) {
	fabric := dppi.New("dppic", 0, 8, 0)
	port := gpiopkg.New("p0", 0)
	gt := New("gpiote0", 0, fabric)

	gt.ConfigureTask(2, port, 3, Toggle, gpio.Low)
	gt.Disable(2)
	gt.TaskOut(2)
	if port.IOLevel(3) == gpio.High {
		t.Fatalf("a disabled channel must not still drive its pin")
	}
}

func TestPortEventPropagatesThroughAttachPort(t *testing.T) {
	fabric := dppi.New("dppic", 0, 8, 0)
	port := gpiopkg.New("p0", 0)
	gt := New("gpiote0", 0, fabric)
	gt.AttachPort(port)

	port.SetSense(2, true, false)
	port.DriveExternal(2, gpio.High)
	if !gt.EventsPort {
		t.Fatalf("EVENTS_PORT not set after a sensed rising edge")
	}
}
