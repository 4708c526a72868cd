// Package logfile implements a UART backend that records every
// transmitted byte and RTS toggle to a CSV trace file (received bytes are
// not logged), for offline inspection
// (spec.md §4.7, §6).
package logfile

import (
	"bufio"
	"fmt"
	"os"

	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/uart"
)

// Backend writes one CSV row per transmitted byte and per RTS/CTS toggle:
// "time,direction,value".
type Backend struct {
	inst  *uart.Instance
	sched *engine.Scheduler
	w     *bufio.Writer
	f     *os.File
}

// Create opens path for writing (truncating any existing file), writes the
// CSV header, and wires the backend to inst.
func Create(inst *uart.Instance, sched *engine.Scheduler, path string) (*Backend, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("uart%d logfile backend: %w", inst.Idx, err)
	}
	b := &Backend{inst: inst, sched: sched, w: bufio.NewWriter(f), f: f}
	fmt.Fprintln(b.w, "time,dir,value")
	inst.Backend = b
	return b, nil
}

func (b *Backend) TxByte(data byte) {
	fmt.Fprintf(b.w, "%d,tx,%d\n", b.sched.Now(), data)
}

func (b *Backend) RTSPinToggle(level bool) {
	v := 0
	if level {
		v = 1
	}
	fmt.Fprintf(b.w, "%d,rts,%d\n", b.sched.Now(), v)
}

func (b *Backend) UARTEnableNotify(txOn, rxOn bool) {}

// Close flushes buffered rows and closes the file.
func (b *Backend) Close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}
