package nvmc

import (
	"testing"

	"hwsim.dev/nrfperiph/internal/engine"
)

// TestWriteIsBitAnd reproduces spec.md §8 scenario S4: writing 0x00000000
// over an erased (0xFFFFFFFF) word clears every bit; a second write with
// 0xFFFFFFFF cannot set any bit back.
func TestWriteIsBitAnd(t *testing.T) {
	sched := engine.NewScheduler()
	i := New("nvmc", sched, 4096, 4096, 256)
	i.WriteEnabled = true

	i.WriteWord(0, 0x00000000)
	sched.FindNextEvent()
	sched.AdvanceAndDispatch(engine.Never)
	if got := i.ReadWord(0); got != 0 {
		t.Fatalf("ReadWord(0) = 0x%X, want 0", got)
	}

	i.WriteWord(0, 0xFFFFFFFF)
	sched.FindNextEvent()
	sched.AdvanceAndDispatch(engine.Never)
	if got := i.ReadWord(0); got != 0 {
		t.Fatalf("bit-AND write must not set bits: ReadWord(0) = 0x%X, want 0", got)
	}
}

func TestErasePageRestoresFF(t *testing.T) {
	sched := engine.NewScheduler()
	i := New("nvmc", sched, 4096, 4096, 256)
	i.WriteEnabled = true

	i.WriteWord(0, 0)
	sched.FindNextEvent()
	sched.AdvanceAndDispatch(engine.Never)

	i.ErasePage(0)
	if !i.Busy() {
		t.Fatalf("erase should leave the controller busy")
	}
	sched.FindNextEvent()
	now := sched.AdvanceAndDispatch(engine.Never)
	// The erase starts once the preceding word write finishes.
	if now != WordWriteTime+PageEraseTime {
		t.Fatalf("erase completed at %d, want %d", now, WordWriteTime+PageEraseTime)
	}
	if i.Busy() {
		t.Fatalf("controller still busy after erase deadline")
	}
	if got := i.ReadWord(0); got != 0xFFFFFFFF {
		t.Fatalf("ReadWord(0) after erase = 0x%X, want 0xFFFFFFFF", got)
	}
}

func TestPartialEraseAccumulates(t *testing.T) {
	sched := engine.NewScheduler()
	i := New("nvmc", sched, 4096, 4096, 256)
	i.WriteEnabled = true

	i.ErasePage(0)
	sched.AdvanceAndDispatch(PageEraseTime / 2)
	i.AbortErase()
	if i.partialErase[0] == 0 {
		t.Fatalf("AbortErase did not credit partial progress")
	}

	i.ErasePage(0)
	remaining := i.busyUntil - sched.Now()
	if remaining >= PageEraseTime {
		t.Fatalf("resumed erase did not credit prior progress: remaining=%d", remaining)
	}
}

// TestErasePagePartialAccumulates reproduces spec.md §8 scenario S4:
// ERASEPAGEPARTIAL(cfg=10) called four times in succession accumulates
// exactly 4*10*PartialEraseFactor of credited erase progress, and the page
// is not yet cleared.
func TestErasePagePartialAccumulates(t *testing.T) {
	sched := engine.NewScheduler()
	i := New("nvmc", sched, 4096, 4096, 256)
	i.WriteEnabled = true

	for n := 0; n < 4; n++ {
		i.ErasePagePartial(1, 10)
		sched.FindNextEvent()
		sched.AdvanceAndDispatch(engine.Never)
	}

	want := 4 * 10 * PartialEraseFactor
	if got := i.PartialEraseProgress(1); got != want {
		t.Fatalf("PartialEraseProgress(1) = %d, want %d", got, want)
	}
	if i.partialErase[1] >= PageEraseTime {
		t.Fatalf("page should not be fully erased yet: accumulated=%d", i.partialErase[1])
	}
}

// TestErasePagePartialCrossesThreshold reproduces the second half of S4:
// enough ERASEPAGEPARTIAL calls eventually cross T_ERASEPAGE and the page
// reads all-0xFF.
func TestErasePagePartialCrossesThreshold(t *testing.T) {
	sched := engine.NewScheduler()
	i := New("nvmc", sched, 4096, 4096, 256)
	i.WriteEnabled = true
	i.WriteWord(uint32(i.PageSize), 0)
	sched.FindNextEvent()
	sched.AdvanceAndDispatch(engine.Never)

	chunks := int(PageEraseTime/PartialEraseFactor/10) + 2
	for n := 0; n < chunks; n++ {
		i.ErasePagePartial(1, 10)
		sched.FindNextEvent()
		sched.AdvanceAndDispatch(engine.Never)
	}

	if got := i.ReadWord(uint32(i.PageSize)); got != 0xFFFFFFFF {
		t.Fatalf("ReadWord after crossing T_ERASEPAGE = 0x%X, want 0xFFFFFFFF", got)
	}
}

// TestEraseAllClearsFlashAndUICR reproduces spec.md §8's round-trip
// property: after ERASEALL, reading any address in flash or UICR yields
// 0xFF.
func TestEraseAllClearsFlashAndUICR(t *testing.T) {
	sched := engine.NewScheduler()
	i := New("nvmc", sched, 4096, 4096, 256)
	i.WriteEnabled = true

	i.WriteWord(0, 0)
	sched.FindNextEvent()
	sched.AdvanceAndDispatch(engine.Never)
	i.uicr[0] = 0

	i.EraseAll()
	if !i.Busy() {
		t.Fatalf("EraseAll should leave the controller busy")
	}
	sched.FindNextEvent()
	now := sched.AdvanceAndDispatch(engine.Never)
	// The erase starts once the preceding word write finishes.
	if now != WordWriteTime+EraseAllTime {
		t.Fatalf("EraseAll completed at %d, want %d", now, WordWriteTime+EraseAllTime)
	}
	if got := i.ReadWord(0); got != 0xFFFFFFFF {
		t.Fatalf("ReadWord(0) after EraseAll = 0x%X, want 0xFFFFFFFF", got)
	}
	if got := i.ReadUICRWord(0); got != 0xFFFFFFFF {
		t.Fatalf("ReadUICRWord(0) after EraseAll = 0x%X, want 0xFFFFFFFF", got)
	}
}
