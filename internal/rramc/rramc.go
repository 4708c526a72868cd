// Package rramc models the RRAM controller found on nRF54-family SoCs: an
// instantaneous, byte-addressable non-volatile store with no erase-before-
// write restriction, unlike NVMC's flash (spec.md §4.8, §12 supplement).
package rramc

// Instance is one RRAMC instance, backing an RRAM region and a UICR
// region with identical controller semantics (spec.md §4.8).
type Instance struct {
	Name string
	ram  []byte
	uicr []byte

	ConfigNS  uint32
	ReadyNext bool // READYNEXT: the next write may be queued before READY
}

// New allocates size bytes of RRAM and uicrSize bytes of UICR, all
// initialized to 0xFF to match flash-erased convention even though RRAM
// has no erase cycle.
func New(name string, size, uicrSize int) *Instance {
	i := &Instance{Name: name, ram: make([]byte, size), uicr: make([]byte, uicrSize), ReadyNext: true}
	fill(i.ram)
	fill(i.uicr)
	return i
}

func fill(b []byte) {
	for n := range b {
		b[n] = 0xFF
	}
}

// Ready is always true: RRAM writes complete within the same simulated
// instant, unlike NVMC's WordWriteTime/PageEraseTime delays.
func (i *Instance) Ready() bool { return true }

// WriteWord overwrites (not bit-ANDs) the word at addr in the RRAM region.
func (i *Instance) WriteWord(addr uint32, val uint32) {
	writeWord(i.ram, addr, val)
}

// ReadWord returns the 4 bytes at addr in the RRAM region as a
// little-endian word.
func (i *Instance) ReadWord(addr uint32) uint32 {
	return readWord(i.ram, addr)
}

// WriteUICRWord overwrites the word at addr in the UICR region.
func (i *Instance) WriteUICRWord(addr uint32, val uint32) {
	writeWord(i.uicr, addr, val)
}

// ReadUICRWord returns the 4 bytes at addr in the UICR region as a
// little-endian word.
func (i *Instance) ReadUICRWord(addr uint32) uint32 {
	return readWord(i.uicr, addr)
}

func writeWord(b []byte, addr uint32, val uint32) {
	if int(addr)+4 > len(b) {
		return
	}
	b[addr] = byte(val)
	b[addr+1] = byte(val >> 8)
	b[addr+2] = byte(val >> 16)
	b[addr+3] = byte(val >> 24)
}

func readWord(b []byte, addr uint32) uint32 {
	if int(addr)+4 > len(b) {
		return 0xFFFFFFFF
	}
	return uint32(b[addr]) | uint32(b[addr+1])<<8 |
		uint32(b[addr+2])<<16 | uint32(b[addr+3])<<24
}

// ErasePage sets every byte in the page to 0xFF, purely as a software
// convenience matching NVMC's API shape; the controller itself has no
// erase-before-write requirement.
func (i *Instance) ErasePage(page, pageSize int) {
	start := page * pageSize
	end := start + pageSize
	if end > len(i.ram) {
		end = len(i.ram)
	}
	for b := start; b < end; b++ {
		i.ram[b] = 0xFF
	}
}

// EraseAll implements TASKS_ERASEALL: zeroes-to-0xFF both the RRAM and
// UICR regions in one instantaneous operation (spec.md §4.8, §8 round-trip
// property).
func (i *Instance) EraseAll() {
	fill(i.ram)
	fill(i.uicr)
}
