// Package fifo implements the inter-process UART backend: a typed binary
// wire protocol carried over a pair of named pipes (spec.md §4.7, §6).
package fifo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/uart"
)

// Message types, per the wire protocol in spec.md §6.
const (
	MsgNop           = 0
	MsgModeChange    = 1
	MsgTxByte        = 2
	MsgRTSCTSToggle  = 3
	MsgDisconnect    = 4
)

// header is the fixed, packed frame header.
type header struct {
	Time    uint64
	MsgType uint32
	Size    uint16
}

const headerSize = 8 + 4 + 2

// Backend is the inter-process FIFO UART backend. Received frames are
// applied only when Poll is called, the one place spec.md §5 allows
// blocking host I/O; cmd/nrfsim does not call Poll.
type Backend struct {
	inst   *uart.Instance
	sched  *engine.Scheduler
	tx     *os.File
	rx     *bufio.Reader
	rxFile *os.File

	// NoTerminateOnDisconnect makes a DISCONNECT frame self-disable the
	// backend instead of treating it as fatal (spec.md §5, §6).
	NoTerminateOnDisconnect bool
	disconnected            bool

	Baudrate uint32
	Config   uint32
}

// Open opens txPath/rxPath (typically named pipes created by the peer
// process) and returns a Backend wired to inst.
func Open(inst *uart.Instance, sched *engine.Scheduler, txPath, rxPath string) (*Backend, error) {
	tx, err := os.OpenFile(txPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("uart%d fifo backend: open tx: %w", inst.Idx, err)
	}
	rxFile, err := os.OpenFile(rxPath, os.O_RDONLY, 0)
	if err != nil {
		tx.Close()
		return nil, fmt.Errorf("uart%d fifo backend: open rx: %w", inst.Idx, err)
	}
	b := &Backend{inst: inst, sched: sched, tx: tx, rx: bufio.NewReader(rxFile), rxFile: rxFile}
	inst.Backend = b
	return b, nil
}

func (b *Backend) writeFrame(msgType uint32, body []byte) error {
	var h header
	h.Time = uint64(b.sched.Now())
	h.MsgType = msgType
	h.Size = uint16(len(body))
	if err := binary.Write(b.tx, binary.LittleEndian, &h); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := b.tx.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// TxByte implements uart.Backend: it frames the byte as a TX_BYTE message
// whose time is the instant the frame ends on the wire.
func (b *Backend) TxByte(data byte) {
	if b.disconnected {
		return
	}
	if err := b.writeFrame(MsgTxByte, []byte{data}); err != nil {
		b.fatal(err)
	}
}

// RTSPinToggle implements uart.Backend.
func (b *Backend) RTSPinToggle(level bool) {
	if b.disconnected {
		return
	}
	lvl := byte(0)
	if level {
		lvl = 1
	}
	if err := b.writeFrame(MsgRTSCTSToggle, []byte{lvl}); err != nil {
		b.fatal(err)
	}
}

// UARTEnableNotify implements uart.Backend by sending a MODE_CHANGE frame
// describing the instance's current baud/config.
func (b *Backend) UARTEnableNotify(txOn, rxOn bool) {
	if b.disconnected {
		return
	}
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], b.Baudrate)
	binary.LittleEndian.PutUint32(body[4:8], b.Config)
	if err := b.writeFrame(MsgModeChange, body); err != nil {
		b.fatal(err)
	}
}

func (b *Backend) fatal(err error) error {
	if b.NoTerminateOnDisconnect {
		b.disconnected = true
		return nil
	}
	return engine.Fatalf("uart", b.inst.Idx, "fifo backend I/O: %w", err)
}

// Poll reads every complete frame currently buffered on the rx pipe and
// applies it to the instance. It may block on the underlying read, which
// spec.md §5 permits for this backend alone; it is the peer's
// responsibility to keep the pipe flowing (e.g. with NOP frames at no
// coarser than one-byte-time granularity).
func (b *Backend) Poll() error {
	for {
		var h header
		if err := binary.Read(b.rx, binary.LittleEndian, &h); err != nil {
			if err == io.EOF {
				return nil
			}
			if b.NoTerminateOnDisconnect {
				b.disconnected = true
				return nil
			}
			return engine.Fatalf("uart", b.inst.Idx, "fifo backend read: %w", err)
		}
		body := make([]byte, h.Size)
		if h.Size > 0 {
			if _, err := io.ReadFull(b.rx, body); err != nil {
				return engine.Fatalf("uart", b.inst.Idx, "fifo backend short read: %w", err)
			}
		}
		switch h.MsgType {
		case MsgNop:
		case MsgTxByte:
			b.inst.PushRxByte(body[0])
		case MsgRTSCTSToggle:
			if body[0] != 0 {
				b.inst.CTSRaised()
			} else {
				b.inst.CTSLowered()
			}
		case MsgModeChange:
			// Peer-reported mode; informational only on the receive side.
		case MsgDisconnect:
			if b.NoTerminateOnDisconnect {
				b.disconnected = true
				return nil
			}
			return engine.Fatalf("uart", b.inst.Idx, "fifo backend: peer disconnected")
		}
		if b.rx.Buffered() == 0 {
			return nil
		}
	}
}

// Close releases the pipe file descriptors.
func (b *Backend) Close() error {
	err1 := b.tx.Close()
	err2 := b.rxFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
