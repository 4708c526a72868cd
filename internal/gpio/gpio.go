// Package gpio models one GPIO port: per-pin configuration, the four
// override layers other peripherals use to commandeer a pin, and
// DETECT/LATCH sensing (spec.md §4.6). Pin levels are expressed with
// periph.io's gpio.Level type so a firmware-facing shim can treat a
// simulated pin exactly like a real one (periph.io/x/conn/v3/gpio, as used
// by driver/wshat and lcd in the teacher repository this module grew out
// of).
package gpio

import "periph.io/x/conn/v3/gpio"

// NumPins is the number of pins modeled per port.
const NumPins = 32

// DetectMode selects whether the port-level DETECT signal tracks the live
// per-pin DETECT bits or the latched ones.
type DetectMode int

const (
	DetectDirect DetectMode = iota
	LDetect
)

type override struct {
	active bool
	level  gpio.Level
}

type dirOverride struct {
	active bool
	output bool // true = forced to output
}

type pinState struct {
	dirOut    bool // DIR register bit: true = output
	outBit    bool // OUT register bit
	inputMask bool // true = input buffer disconnected (PIN_CNF.INPUT == Disconnect)
	senseOn   bool
	senseInv  bool // SENSE == Low (active-low) when true

	ioLevel gpio.Level // ground truth physical level
	in      gpio.Level // firmware-visible IN bit
	detect  bool
	latch   bool

	outOverride override
	inOverride  override
	dirOverride dirOverride

	// callback fires whenever `in` changes; GPIOTE event-mode channels
	// register here.
	callback func(pin int, level gpio.Level)
}

// Port is one GPIO port instance.
type Port struct {
	Name string
	Idx  int

	pins       [NumPins]pinState
	DetectMode DetectMode

	// OnPortEvent fires on a rising edge of the port-level DETECT signal,
	// or when LATCH is written with bits set while latched DETECT remains
	// non-zero. GPIOTE registers this to raise EVENTS_PORT.
	OnPortEvent func()

	portDetectWasHigh bool
}

// New returns a port with every pin's input connected and no overrides
// active.
func New(name string, idx int) *Port {
	return &Port{Name: name, Idx: idx}
}

func (p *Port) effectiveDir(i int) bool {
	if p.pins[i].dirOverride.active {
		return p.pins[i].dirOverride.output
	}
	return p.pins[i].dirOut
}

func (p *Port) effectiveOut(i int) gpio.Level {
	if p.pins[i].outOverride.active {
		return p.pins[i].outOverride.level
	}
	if p.pins[i].outBit {
		return gpio.High
	}
	return gpio.Low
}

// recompute re-derives ioLevel (if the pin is an output) and IN for pin i,
// firing callbacks and DETECT updates for any change.
func (p *Port) recompute(i int) {
	if p.effectiveDir(i) {
		level := p.effectiveOut(i)
		if p.pins[i].ioLevel != level {
			p.pins[i].ioLevel = level
		}
	}
	p.recomputeIn(i)
}

func (p *Port) recomputeIn(i int) {
	var in gpio.Level
	switch {
	case p.pins[i].inOverride.active:
		in = p.pins[i].inOverride.level
	case p.pins[i].inputMask:
		in = gpio.Low
	default:
		in = p.pins[i].ioLevel
	}
	if in == p.pins[i].in {
		return
	}
	p.pins[i].in = in
	if cb := p.pins[i].callback; cb != nil {
		cb(i, in)
	}
	p.updateDetect(i)
}

func (p *Port) updateDetect(i int) {
	if !p.pins[i].senseOn {
		if p.pins[i].detect {
			p.pins[i].detect = false
			p.recomputePortEvent()
		}
		return
	}
	d := (p.pins[i].in == gpio.High) != p.pins[i].senseInv
	if d == p.pins[i].detect {
		return
	}
	p.pins[i].detect = d
	if d {
		p.pins[i].latch = true
	}
	p.recomputePortEvent()
}

func (p *Port) portDetectSignal() bool {
	for i := range p.pins {
		switch p.DetectMode {
		case LDetect:
			if p.pins[i].latch {
				return true
			}
		default:
			if p.pins[i].detect {
				return true
			}
		}
	}
	return false
}

func (p *Port) recomputePortEvent() {
	now := p.portDetectSignal()
	if now && !p.portDetectWasHigh {
		if p.OnPortEvent != nil {
			p.OnPortEvent()
		}
	}
	p.portDetectWasHigh = now
}

// SetDir writes the DIR register bit for pin i.
func (p *Port) SetDir(i int, output bool) {
	p.pins[i].dirOut = output
	p.recompute(i)
}

// SetOut writes the OUT register bit for pin i.
func (p *Port) SetOut(i int, high bool) {
	p.pins[i].outBit = high
	p.recompute(i)
}

// SetInputMask writes PIN_CNF.INPUT (true disconnects the input buffer).
func (p *Port) SetInputMask(i int, disconnected bool) {
	p.pins[i].inputMask = disconnected
	p.recomputeIn(i)
}

// SetSense configures SENSE for pin i: on enables DETECT tracking,
// activeLow selects which input level counts as asserted.
func (p *Port) SetSense(i int, on, activeLow bool) {
	p.pins[i].senseOn = on
	p.pins[i].senseInv = activeLow
	p.updateDetect(i)
}

// WriteLatch clears latch bits selected by mask (write-one-to-clear) and
// re-raises EVENTS_PORT if, in latched mode, any selected bit was set and
// DETECT remains non-zero afterward through some other pin.
func (p *Port) WriteLatch(mask uint32) {
	wasHigh := p.portDetectWasHigh
	for i := range p.pins {
		if mask&(1<<uint(i)) != 0 {
			p.pins[i].latch = false
		}
	}
	p.recomputePortEvent()
	if mask != 0 && p.DetectMode == LDetect && wasHigh && p.portDetectWasHigh && p.OnPortEvent != nil {
		p.OnPortEvent()
	}
}

// Latch returns the current LATCH register value.
func (p *Port) Latch() uint32 {
	var v uint32
	for i := range p.pins {
		if p.pins[i].latch {
			v |= 1 << uint(i)
		}
	}
	return v
}

// In returns the firmware-visible IN bit for pin i.
func (p *Port) In(i int) gpio.Level { return p.pins[i].in }

// InWord returns the full IN register.
func (p *Port) InWord() uint32 {
	var v uint32
	for i := range p.pins {
		if p.pins[i].in == gpio.High {
			v |= 1 << uint(i)
		}
	}
	return v
}

// DriveExternal sets a pin's ground-truth physical level from outside the
// model (the GPIO input-stimulus CSV backend calls this); it is a no-op
// for pins currently
// driven as outputs by this port's own OUT/override logic.
func (p *Port) DriveExternal(i int, level gpio.Level) {
	if p.effectiveDir(i) {
		return
	}
	if p.pins[i].ioLevel == level {
		return
	}
	p.pins[i].ioLevel = level
	p.recomputeIn(i)
}

// IOLevel returns the ground-truth physical level of pin i, used by GPIOTE
// task mode to read back the level it drives.
func (p *Port) IOLevel(i int) gpio.Level { return p.pins[i].ioLevel }

// SetCallback installs the per-pin input-change listener used by GPIOTE
// event-mode channels. Each pin has one listener; a later call replaces
// the earlier one.
func (p *Port) SetCallback(i int, cb func(pin int, level gpio.Level)) {
	p.pins[i].callback = cb
}

// PeriPinControl lets another peripheral (GPIOTE task mode, a DMA
// loopback, etc.) commandeer pin i's output, input-connect, or direction.
// A nil pointer leaves that axis unchanged, mirroring the "-1 = don't
// change" sentinel convention of the original peri_pin_control API.
// Taking the dir override forces the pin to output; SetDirOverrideValue
// can change the forced direction afterwards.
func (p *Port) PeriPinControl(i int, overrideOutput, overrideInput, overrideDir *bool, level *gpio.Level) {
	if overrideDir != nil {
		p.pins[i].dirOverride.active = *overrideDir
		if *overrideDir {
			p.pins[i].dirOverride.output = true
		}
	}
	if overrideOutput != nil {
		p.pins[i].outOverride.active = *overrideOutput
	}
	if level != nil {
		p.pins[i].outOverride.level = *level
	}
	if overrideInput != nil {
		p.pins[i].inOverride.active = *overrideInput
	}
	p.recompute(i)
}

// SetDirOverrideValue sets the forced direction (true=output) used while
// the dir override is active.
func (p *Port) SetDirOverrideValue(i int, output bool) {
	p.pins[i].dirOverride.output = output
	p.recompute(i)
}

// SetInOverrideValue sets the forced IN value used while the input
// override is active.
func (p *Port) SetInOverrideValue(i int, level gpio.Level) {
	p.pins[i].inOverride.level = level
	p.recomputeIn(i)
}
