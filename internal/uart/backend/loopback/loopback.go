// Package loopback implements the UART Tx-to-Rx loopback backend
// (spec.md §4.7, §6).
package loopback

import "hwsim.dev/nrfperiph/internal/uart"

// Backend feeds every transmitted byte straight back to the same
// instance's receiver, with its RTS output wired to its own CTS input, so
// a receiver that deasserts RTS also holds back its own transmitter.
type Backend struct {
	inst *uart.Instance
}

// Attach wires inst's Tx output back to its own Rx input and returns the
// backend, installed as inst.Backend.
func Attach(inst *uart.Instance) *Backend {
	b := &Backend{inst: inst}
	inst.Backend = b
	return b
}

func (b *Backend) TxByte(data byte) {
	b.inst.PushRxByte(data)
}

func (b *Backend) RTSPinToggle(level bool) {
	if level {
		b.inst.CTSRaised()
	} else {
		b.inst.CTSLowered()
	}
}

func (b *Backend) UARTEnableNotify(txOn, rxOn bool) {}
