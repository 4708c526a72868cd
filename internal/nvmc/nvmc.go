// Package nvmc models the non-volatile memory controller: bit-AND word
// writes, page erase with real timing, and partial-erase accumulation
// (spec.md §4.8, scenario S4).
package nvmc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"hwsim.dev/nrfperiph/internal/engine"
)

// unixOpenOrCreate opens path for read/write, creating and sizing it to
// size bytes if it does not already exist.
func unixOpenOrCreate(path string, size int) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Timing, in simulated microseconds, taken from the nRF52 datasheet and
// reproduced by spec.md scenario S4.
const (
	WordWriteTime engine.Time = 41
	PageEraseTime engine.Time = 89_700
	// EraseAllTime models ERASEALL as the single deadline spec.md §4.8
	// describes ("sets all storage to 0xFF in one deadline"), rather than
	// one PageEraseTime per page.
	EraseAllTime engine.Time = PageEraseTime
	// PartialEraseFactor converts one ERASEPAGEPARTIALCFG unit into
	// simulated microseconds of busy time and credited erase progress, so
	// that cfg=10 called 4 times credits 4*10*PartialEraseFactor (spec.md
	// §4.8, scenario S4).
	PartialEraseFactor engine.Time = 1000
)

// Ready values for the READY/READYNEXT registers.
const (
	Busy  = 0
	Ready = 1
)

// Instance is one NVMC instance, backing a flash region and a UICR region
// with the same controller semantics (spec.md §4.8, "UICR erase is a
// separate page within the same backing store").
type Instance struct {
	Name  string
	sched *engine.Scheduler

	flash   []byte
	uicr    []byte
	mmapped bool

	PageSize  int
	busyUntil engine.Time

	// WriteEnabled models CONFIG.WEN; writes and erases are no-ops unless
	// this is set (spec.md §12 supplement).
	WriteEnabled bool

	// partialErase accumulates page-erase progress across interrupted
	// erase cycles (AbortErase) and across repeated ERASEPAGEPARTIAL
	// calls; a page counts as erased once its accumulation crosses
	// PageEraseTime (spec.md §4.8 edge case, scenario S4).
	partialErase map[int]engine.Time

	pendingPage  int
	pendingStart engine.Time
	erasing      bool // a TASKS_ERASEPAGE or TASKS_ERASEALL is in flight
	partialChunk bool // a TASKS_ERASEPAGEPARTIAL chunk is in flight
	erasingAll   bool
}

// New allocates a flash region of size bytes and a UICR region of
// uicrSize bytes, entirely in-process.
func New(name string, sched *engine.Scheduler, size, pageSize, uicrSize int) *Instance {
	i := &Instance{
		Name: name, sched: sched, flash: make([]byte, size), uicr: make([]byte, uicrSize),
		PageSize: pageSize, busyUntil: engine.Never,
		partialErase: make(map[int]engine.Time),
	}
	fill(i.flash)
	fill(i.uicr)
	sched.Register(i)
	return i
}

func fill(b []byte) {
	for n := range b {
		b[n] = 0xFF
	}
}

// OpenFile backs the flash region with an mmap'd file instead of an
// anonymous buffer, so its contents persist across runs (spec.md §4.8).
// The UICR region is always heap-backed: it is small and, unlike flash,
// firmware images never need to seed it from a host file.
func OpenFile(name string, sched *engine.Scheduler, path string, size, pageSize, uicrSize int) (*Instance, error) {
	f, err := unixOpenOrCreate(path, size)
	if err != nil {
		return nil, fmt.Errorf("nvmc %s: %w", name, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("nvmc %s: mmap: %w", name, err)
	}
	i := &Instance{
		Name: name, sched: sched, flash: data, mmapped: true,
		uicr:     make([]byte, uicrSize),
		PageSize: pageSize, busyUntil: engine.Never,
		partialErase: make(map[int]engine.Time),
	}
	fill(i.uicr)
	sched.Register(i)
	return i, nil
}

// Close unmaps a file-backed instance; a no-op for anonymous instances.
func (i *Instance) Close() error {
	if !i.mmapped {
		return nil
	}
	return unix.Munmap(i.flash)
}

// NextDeadline implements engine.Source.
func (i *Instance) NextDeadline() engine.Time { return i.busyUntil }

// Fire implements engine.Source.
func (i *Instance) Fire(now engine.Time) {
	if i.busyUntil != now {
		return
	}
	i.busyUntil = engine.Never
	switch {
	case i.erasingAll:
		i.erasingAll = false
		fill(i.flash)
		fill(i.uicr)
		i.partialErase = make(map[int]engine.Time)
	case i.erasing:
		i.erasing = false
		i.finishErase(i.pendingPage)
	case i.partialChunk:
		i.partialChunk = false
		i.partialErase[i.pendingPage] += now - i.pendingStart
		if i.partialErase[i.pendingPage] >= PageEraseTime {
			i.finishErase(i.pendingPage)
		}
	}
}

// Busy reports whether a write or erase is still in flight.
func (i *Instance) Busy() bool { return i.busyUntil != engine.Never }

// WriteWord implements a bit-AND store to a 32-bit-aligned flash word:
// flash can only clear bits, never set them, until the containing page is
// erased (spec.md §4.8).
func (i *Instance) WriteWord(addr uint32, val uint32) {
	if !i.WriteEnabled || i.Busy() {
		return
	}
	if int(addr)+4 > len(i.flash) {
		return
	}
	for b := 0; b < 4; b++ {
		cur := i.flash[addr+uint32(b)]
		i.flash[addr+uint32(b)] = cur & byte(val>>(8*b))
	}
	i.busyUntil = i.sched.Now().Add(WordWriteTime)
	i.sched.FindNextEvent()
}

// ReadWord returns the 4 bytes at addr as a little-endian word.
func (i *Instance) ReadWord(addr uint32) uint32 {
	if int(addr)+4 > len(i.flash) {
		return 0xFFFFFFFF
	}
	return uint32(i.flash[addr]) | uint32(i.flash[addr+1])<<8 |
		uint32(i.flash[addr+2])<<16 | uint32(i.flash[addr+3])<<24
}

// ReadUICRWord returns the 4 bytes at addr in the UICR region as a
// little-endian word.
func (i *Instance) ReadUICRWord(addr uint32) uint32 {
	if int(addr)+4 > len(i.uicr) {
		return 0xFFFFFFFF
	}
	return uint32(i.uicr[addr]) | uint32(i.uicr[addr+1])<<8 |
		uint32(i.uicr[addr+2])<<16 | uint32(i.uicr[addr+3])<<24
}

// ErasePage implements TASKS_ERASEPAGE: sets the whole page to 0xFF after
// PageEraseTime has elapsed. If the erase is already partially progressed
// (because a prior erase of the same page was interrupted by a reset, or
// because ERASEPAGEPARTIAL already credited some of it), the remaining
// time is shortened accordingly (spec.md §4.8 edge case).
func (i *Instance) ErasePage(page int) {
	if !i.WriteEnabled || i.Busy() {
		return
	}
	remaining := PageEraseTime
	if done, ok := i.partialErase[page]; ok {
		if done < remaining {
			remaining -= done
		} else {
			remaining = 0
		}
	}
	i.pendingPage = page
	i.pendingStart = i.sched.Now()
	i.erasing = true
	i.busyUntil = i.sched.Now().Add(remaining)
	i.sched.FindNextEvent()
}

// ErasePagePartial implements TASKS_ERASEPAGEPARTIAL: busies the
// controller for cfg*PartialEraseFactor and credits that chunk toward
// page's cumulative erase progress. The page is only actually cleared to
// 0xFF once enough calls have accumulated PageEraseTime in total (spec.md
// §4.8, scenario S4: "four times in succession ... then after enough
// calls to cross T_ERASEPAGE, the page reads all-0xFF").
func (i *Instance) ErasePagePartial(page int, cfg uint32) {
	if !i.WriteEnabled || i.Busy() {
		return
	}
	i.pendingPage = page
	i.pendingStart = i.sched.Now()
	i.partialChunk = true
	i.busyUntil = i.sched.Now().Add(engine.Time(cfg) * PartialEraseFactor)
	i.sched.FindNextEvent()
}

// PartialEraseProgress reports the accumulated erase time credited to page
// so far, for tests and firmware introspection (spec.md §8 round-trip
// property).
func (i *Instance) PartialEraseProgress(page int) engine.Time {
	return i.partialErase[page]
}

// EraseAll implements TASKS_ERASEALL: sets all of flash and UICR to 0xFF
// in one deadline, clearing any partial-erase accumulation (spec.md §4.8,
// §8 round-trip property: "after ERASEALL, reading any address in flash
// or UICR yields 0xFF").
func (i *Instance) EraseAll() {
	if !i.WriteEnabled || i.Busy() {
		return
	}
	i.erasingAll = true
	i.busyUntil = i.sched.Now().Add(EraseAllTime)
	i.sched.FindNextEvent()
}

// AbortErase models a reset or power loss mid-erase: progress made so far
// is credited to partialErase instead of being discarded (spec.md §4.8).
// It covers both a full TASKS_ERASEPAGE and an in-flight
// TASKS_ERASEPAGEPARTIAL chunk; TASKS_ERASEALL is not resumable.
func (i *Instance) AbortErase() {
	if !i.erasing && !i.partialChunk {
		return
	}
	elapsed := i.sched.Now() - i.pendingStart
	i.partialErase[i.pendingPage] += elapsed
	i.busyUntil = engine.Never
	i.erasing = false
	i.partialChunk = false
}

func (i *Instance) finishErase(page int) {
	start := page * i.PageSize
	end := start + i.PageSize
	if end > len(i.flash) {
		end = len(i.flash)
	}
	for b := start; b < end; b++ {
		i.flash[b] = 0xFF
	}
	delete(i.partialErase, page)
}
