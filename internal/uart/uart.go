// Package uart models the UART/UART-E peripheral: Tx/Rx byte-timing state
// machines, an optional EasyDMA engine, flow control, and a pluggable
// backend (spec.md §4.7).
package uart

import (
	"hwsim.dev/nrfperiph/internal/dppi"
	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/irq"
)

// FIFOSize is the receive FIFO depth.
const FIFOSize = 6

// RTSThreshold is the FIFO fill level at which RTS is asserted (flow
// control tells the peer to stop sending).
const RTSThreshold = 2

// TxState is the transmitter's state machine.
type TxState int

const (
	TxOff TxState = iota
	TxIdle
	TxPend // waiting for CTS to clear
	TxTxing
	TxStopping
)

// RxState is the receiver's state machine.
type RxState int

const (
	RxOff RxState = iota
	RxTurningOff
	RxOn
)

// DMAState is the EasyDMA engine's state machine.
type DMAState int

const (
	DMAOff DMAState = iota
	DMAing
)

// Backend is implemented by a pluggable UART transport: loopback,
// inter-process FIFO, or a CSV logger (spec.md §4.7, §6).
type Backend interface {
	TxByte(b byte)
	RTSPinToggle(level bool)
	UARTEnableNotify(txOn, rxOn bool)
}

// Events are the peripheral's firmware-visible EVENTS_* bits.
type Events struct {
	TxDrdy, RxDrdy, Error                      bool
	RxTo, CtsEvt, NctsEvt                      bool
	TxStarted, RxStarted, EndTx, EndRx, TxStopped bool
}

// Publish holds the PUBLISH_* register values for every event, used with
// dppi.Fabric.EventSignalIf.
type Publish struct {
	TxDrdy, RxDrdy, Error                      uint32
	RxTo, CtsEvt, NctsEvt                      uint32
	TxStarted, RxStarted, EndTx, EndRx, TxStopped uint32
}

// Instance is one UART/UARTE peripheral instance.
type Instance struct {
	Name    string
	Idx     int
	sched   *engine.Scheduler
	intc    *irq.Controller
	fabric  *dppi.Fabric
	Backend Backend

	Baudrate uint32
	Parity   bool
	StopBits int // 1 or 2
	HWFC     bool
	UARTE    bool // true selects the EasyDMA path for STARTRX/STARTTX

	byteTime engine.Time

	txState      TxState
	rxState      RxState
	txDeadline   engine.Time
	rxToDeadline engine.Time

	ctsBlocked    bool
	pendingTxByte byte

	fifo    [FIFOSize]byte
	fifoLen int
	rts     bool

	txDMA               DMAState
	rxDMA               DMAState
	TxPtr, TxMaxCnt, TxAmount uint32
	RxPtr, RxMaxCnt, RxAmount uint32

	Events  Events
	Publish Publish
	ErrorSrc uint32

	ShortsEndRxStartRx bool
	ShortsEndRxStopRx  bool
}

// New returns a UART instance with both FSMs Off.
func New(name string, idx int, sched *engine.Scheduler, intc *irq.Controller, fabric *dppi.Fabric) *Instance {
	i := &Instance{
		Name: name, Idx: idx, sched: sched, intc: intc, fabric: fabric,
		StopBits: 1, txDeadline: engine.Never, rxToDeadline: engine.Never,
	}
	sched.Register(i)
	return i
}

// RecomputeByteTime recalculates the per-byte line time from Baudrate,
// Parity and StopBits; call after any of those registers changes.
func (i *Instance) RecomputeByteTime() {
	bits := uint64(1 + 8 + i.StopBits)
	if i.Parity {
		bits++
	}
	if i.Baudrate == 0 {
		i.byteTime = engine.Never
		return
	}
	us := (bits*1_000_000 + uint64(i.Baudrate) - 1) / uint64(i.Baudrate)
	i.byteTime = engine.Time(us)
}

// NextDeadline implements engine.Source.
func (i *Instance) NextDeadline() engine.Time {
	min := i.txDeadline
	if i.rxToDeadline < min {
		min = i.rxToDeadline
	}
	return min
}

// Fire implements engine.Source.
func (i *Instance) Fire(now engine.Time) {
	if i.txDeadline == now {
		i.txDeadline = engine.Never
		i.onTxByteComplete(now)
	}
	if i.rxToDeadline == now {
		i.rxToDeadline = engine.Never
		i.rxState = RxOff
		i.emit(&i.Events.RxTo, i.Publish.RxTo)
	}
}

func (i *Instance) emit(ev *bool, pub uint32) {
	*ev = true
	i.fabric.EventSignalIf(pub)
}

func (i *Instance) onTxByteComplete(now engine.Time) {
	b := i.pendingTxByte
	if i.Backend != nil {
		i.Backend.TxByte(b)
	}
	i.emit(&i.Events.TxDrdy, i.Publish.TxDrdy)
	if i.txDMA == DMAing {
		i.TxAmount++
		if i.TxAmount >= i.TxMaxCnt {
			i.txDMA = DMAOff
			i.emit(&i.Events.EndTx, i.Publish.EndTx)
		}
	}
	switch i.txState {
	case TxStopping:
		i.txState = TxIdle
		i.emit(&i.Events.TxStopped, i.Publish.TxStopped)
	default:
		i.txState = TxIdle
	}
}

func (i *Instance) startTxByte() {
	i.txState = TxTxing
	i.txDeadline = i.sched.Now().Add(i.byteTime)
	i.sched.FindNextEvent()
}

// writeByte is the common path for a byte ready to go out, used by both
// TXD writes and DMA-fed transmission.
func (i *Instance) writeByte(b byte) {
	i.pendingTxByte = b
	if i.ctsBlocked {
		i.txState = TxPend
		return
	}
	i.startTxByte()
}

// TaskStartTx implements TASKS_STARTTX.
func (i *Instance) TaskStartTx() {
	if i.txState == TxOff {
		i.txState = TxIdle
	}
	if i.Backend != nil {
		i.Backend.UARTEnableNotify(true, i.rxState == RxOn)
	}
	if i.UARTE {
		i.txDMA = DMAing
		i.TxAmount = 0
		i.emit(&i.Events.TxStarted, i.Publish.TxStarted)
	}
}

// PushTxByte feeds the next byte out of the EasyDMA Tx buffer (the buffer
// itself lives in mocked firmware memory, out of this model's scope per
// spec.md §1; the register-view glue reads PTR+AMOUNT and calls this).
func (i *Instance) PushTxByte(b byte) {
	if i.UARTE && i.txDMA == DMAing && i.txState == TxIdle {
		i.writeByte(b)
	}
}

// WriteTxd implements the TXD register write side-effect in non-EasyDMA
// mode.
func (i *Instance) WriteTxd(b byte) {
	if i.UARTE {
		return
	}
	i.writeByte(b)
}

// TaskStopTx implements TASKS_STOPTX. In UARTE mode it waits for the
// in-flight byte to finish before publishing EVENTS_TXSTOPPED; in non-E
// mode a not-yet-sent byte is dropped immediately (spec.md §4.7 resolves
// the real-hardware "breaks the byte" ambiguity this way, matching §9 Open
// Questions).
func (i *Instance) TaskStopTx() {
	switch i.txState {
	case TxTxing:
		if i.UARTE {
			i.txState = TxStopping
			return
		}
		i.txDeadline = engine.Never
		i.txState = TxIdle
	case TxPend:
		i.txState = TxIdle
	}
	i.emit(&i.Events.TxStopped, i.Publish.TxStopped)
	if i.Backend != nil {
		i.Backend.UARTEnableNotify(false, i.rxState == RxOn)
	}
}

// TaskStartRx implements TASKS_STARTRX.
func (i *Instance) TaskStartRx() {
	i.rxState = RxOn
	if i.UARTE {
		i.rxDMA = DMAing
		i.RxAmount = 0
		i.emit(&i.Events.RxStarted, i.Publish.RxStarted)
	}
	if i.Backend != nil {
		i.Backend.UARTEnableNotify(i.txState != TxOff, true)
	}
}

// TaskStopRx implements TASKS_STOPRX: schedules EVENTS_RXTO after 5
// byte-times (real-HW hysteresis, spec.md §4.7).
func (i *Instance) TaskStopRx() {
	if i.rxState != RxOn {
		return
	}
	i.rxState = RxTurningOff
	i.rxToDeadline = i.sched.Now().Add(5 * i.byteTime)
	i.sched.FindNextEvent()
}

// TaskFlushRx implements TASKS_FLUSHRX: drains the FIFO into a fresh DMA
// buffer and instantly ends it.
func (i *Instance) TaskFlushRx() {
	n := i.fifoLen
	i.fifoLen = 0
	i.updateRTS()
	if i.UARTE {
		i.RxAmount += uint32(n)
		i.emit(&i.Events.EndRx, i.Publish.EndRx)
	}
}

// PushRxByte is called by the backend when a byte arrives on the wire, at
// the instant the byte frame ended (spec.md §6, wire protocol
// TX_BYTE). Bytes that arrive while Rx is not enabled are dropped with a
// framing-error indication, per spec.md §4.7.
func (i *Instance) PushRxByte(b byte) {
	if i.rxState != RxOn {
		i.ErrorSrc |= 1 // framing
		i.emit(&i.Events.Error, i.Publish.Error)
		return
	}
	if i.fifoLen >= FIFOSize {
		i.ErrorSrc |= 1 << 1 // overrun
		i.emit(&i.Events.Error, i.Publish.Error)
		return
	}
	i.fifo[i.fifoLen] = b
	i.fifoLen++
	i.updateRTS()
	i.emit(&i.Events.RxDrdy, i.Publish.RxDrdy)
	if i.UARTE && i.rxDMA == DMAing {
		i.RxAmount++
		i.fifoLen--
		copy(i.fifo[:], i.fifo[1:i.fifoLen+1])
		if i.RxAmount >= i.RxMaxCnt {
			i.rxDMA = DMAOff
			i.emit(&i.Events.EndRx, i.Publish.EndRx)
			if i.ShortsEndRxStartRx {
				i.TaskStartRx()
			} else if i.ShortsEndRxStopRx {
				i.TaskStopRx()
			}
		}
	}
}

func (i *Instance) updateRTS() {
	if !i.HWFC {
		return
	}
	switch {
	case i.fifoLen >= RTSThreshold && !i.rts:
		i.rts = true
		if i.Backend != nil {
			i.Backend.RTSPinToggle(true)
		}
	case i.fifoLen == 0 && i.rts:
		i.rts = false
		if i.Backend != nil {
			i.Backend.RTSPinToggle(false)
		}
	}
}

// ReadRxd pops the oldest byte out of the receive FIFO (non-DMA mode).
func (i *Instance) ReadRxd() byte {
	if i.fifoLen == 0 {
		return 0
	}
	b := i.fifo[0]
	copy(i.fifo[:], i.fifo[1:i.fifoLen])
	i.fifoLen--
	i.updateRTS()
	return b
}

// CTSRaised is called by the backend when the peer's CTS line asserts
// (stop sending).
func (i *Instance) CTSRaised() {
	i.ctsBlocked = true
	i.emit(&i.Events.NctsEvt, i.Publish.NctsEvt)
}

// CTSLowered is called by the backend when the peer's CTS line deasserts.
// If a byte was Pend(ing), transmission starts immediately.
func (i *Instance) CTSLowered() {
	i.ctsBlocked = false
	i.emit(&i.Events.CtsEvt, i.Publish.CtsEvt)
	if i.txState == TxPend {
		i.startTxByte()
	}
}

// FIFOCount returns the number of bytes currently buffered in the receive
// FIFO (spec.md §8 property 6).
func (i *Instance) FIFOCount() int { return i.fifoLen }

// RTSAsserted reports whether RTS is currently asserted.
func (i *Instance) RTSAsserted() bool { return i.rts }
