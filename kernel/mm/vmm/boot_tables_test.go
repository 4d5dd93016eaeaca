package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/mm"
	"testing"
	"unsafe"
)

const (
	testP4Addr = mm.PhysAddr(0x10000)
	testP3Addr = mm.PhysAddr(0x11000)
	testP2Addr = mm.PhysAddr(0x12000)
)

func testLayout() mm.Layout {
	return mm.NewLayout(&mm.LinkerSymbols{
		P4: uintptr(testP4Addr),
		P3: uintptr(testP3Addr),
		P2: uintptr(testP2Addr),
		P1: 0x13000,
	})
}

// mockBootTables redirects table accesses to tables owned by the test and
// returns a func that restores the original tablePtrFn.
func mockBootTables(t *testing.T) (p4, p3, p2 *Table, restore func()) {
	p4, p3, p2 = new(Table), new(Table), new(Table)

	origTablePtrFn := tablePtrFn
	tablePtrFn = func(addr mm.PhysAddr) *Table {
		switch addr {
		case testP4Addr:
			return p4
		case testP3Addr:
			return p3
		case testP2Addr:
			return p2
		}
		t.Fatalf("unexpected table access at 0x%x", uint64(addr))
		return nil
	}

	return p4, p3, p2, func() { tablePtrFn = origTablePtrFn }
}

func expectPanic(t *testing.T, expErr *kernel.Error, fn func()) {
	t.Helper()
	defer func() {
		err := recover()
		if err != expErr {
			t.Fatalf("expected panic with %v; got %v", expErr, err)
		}
	}()

	fn()
}

func TestTablePtrFn(t *testing.T) {
	var table Table
	addr := mm.PhysAddr(uintptr(unsafe.Pointer(&table)))
	if got := tablePtrFn(addr); got != &table {
		t.Fatalf("expected tablePtrFn to return %p; got %p", &table, got)
	}
}

func TestNewBootTables(t *testing.T) {
	bt := NewBootTables(testLayout())
	if bt.State() != Unbuilt {
		t.Fatalf("expected new builder to be in state %q; got %q", Unbuilt, bt.State())
	}

	if got := bt.P4(); got != testP4Addr {
		t.Fatalf("expected P4 address 0x%x; got 0x%x", uint64(testP4Addr), uint64(got))
	}

	t.Run("missing table", func(t *testing.T) {
		expectPanic(t, errNoBootTables, func() {
			NewBootTables(mm.NewLayout(&mm.LinkerSymbols{P4: 0x10000, P2: 0x12000}))
		})
	})

	t.Run("unaligned table", func(t *testing.T) {
		expectPanic(t, errUnaligned, func() {
			NewBootTables(mm.NewLayout(&mm.LinkerSymbols{P4: 0x10000, P3: 0x11008, P2: 0x12000}))
		})
	})
}

func TestBootTablesLink(t *testing.T) {
	p4, p3, _, restore := mockBootTables(t)
	defer restore()

	// stale data must be wiped
	for i := range p4 {
		p4[i] = PageTableEntry(0xdead000)
		p3[i] = PageTableEntry(0xbeef000)
	}

	bt := NewBootTables(testLayout())
	bt.Link()

	if bt.State() != TablesLinked {
		t.Fatalf("expected state %q; got %q", TablesLinked, bt.State())
	}

	specs := []struct {
		name string
		pte  PageTableEntry
		exp  PageTableEntry
	}{
		{"P4[511]", p4[511], PageTableEntry(uint64(testP4Addr) | 3)},
		{"P4[0]", p4[0], PageTableEntry(uint64(testP3Addr) | 3)},
		{"P3[0]", p3[0], PageTableEntry(uint64(testP2Addr) | 3)},
	}

	for _, spec := range specs {
		if spec.pte != spec.exp {
			t.Errorf("expected %s to be 0x%x; got 0x%x", spec.name, uint64(spec.exp), uint64(spec.pte))
		}
	}

	for i := 1; i < recursiveSlot; i++ {
		if p4[i] != 0 {
			t.Errorf("expected P4[%d] to be absent; got 0x%x", i, uint64(p4[i]))
		}
	}

	for i := 1; i < tableEntries; i++ {
		if p3[i] != 0 {
			t.Errorf("expected P3[%d] to be absent; got 0x%x", i, uint64(p3[i]))
		}
	}
}

func TestBootTablesIdentityMap(t *testing.T) {
	_, _, p2, restore := mockBootTables(t)
	defer restore()

	bt := NewBootTables(testLayout())
	bt.Build()

	if bt.State() != Mapped {
		t.Fatalf("expected state %q; got %q", Mapped, bt.State())
	}

	for i, pte := range p2 {
		if exp := PageTableEntry(uint64(i)*uint64(mm.LargePageSize) | 0x83); pte != exp {
			t.Fatalf("expected P2[%d] to be 0x%x; got 0x%x", i, uint64(exp), uint64(pte))
		}

		if !pte.HasFlags(FlagPresent | FlagRW | FlagHugePage) {
			t.Fatalf("expected P2[%d] to be a present writable huge page", i)
		}
	}

	// 0x3FE00123 lives in the last 2 MiB page and must map onto itself
	virtAddr := uint64(0x3FE00123)
	pte := p2[(virtAddr>>pageLevelShifts[2])&(tableEntries-1)]
	if got := uint64(pte.Address()) + virtAddr&uint64(mm.LargePageSize-1); got != virtAddr {
		t.Fatalf("expected 0x%x to be identity-mapped; got 0x%x", virtAddr, got)
	}
}

func TestBootTablesStepOrder(t *testing.T) {
	_, _, _, restore := mockBootTables(t)
	defer restore()

	specs := []struct {
		name  string
		setup func(*BootTables)
		step  func(*BootTables)
	}{
		{"IdentityMap before Link", func(*BootTables) {}, (*BootTables).IdentityMap},
		{"EnterLongMode before Link", func(*BootTables) {}, (*BootTables).EnterLongMode},
		{"EnterLongMode before IdentityMap", (*BootTables).Link, (*BootTables).EnterLongMode},
		{"Link twice", (*BootTables).Link, (*BootTables).Link},
		{"Build twice", (*BootTables).Build, (*BootTables).Build},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			bt := NewBootTables(testLayout())
			spec.setup(bt)
			state := bt.State()

			expectPanic(t, errOutOfOrder, func() { spec.step(bt) })

			if got := bt.State(); got != state {
				t.Fatalf("expected state to remain %q; got %q", state, got)
			}
		})
	}
}

func TestBootTablesEnterLongMode(t *testing.T) {
	_, _, _, restore := mockBootTables(t)
	defer restore()

	defer func() {
		switchPDTFn = cpu.SwitchPDT
		readCR0Fn = cpu.ReadCR0
		writeCR0Fn = cpu.WriteCR0
		readCR4Fn = cpu.ReadCR4
		writeCR4Fn = cpu.WriteCR4
		readMSRFn = cpu.ReadMSR
		writeMSRFn = cpu.WriteMSR
	}()

	var (
		calls []string
		cr0   = uint64(0x11)
		cr4   = uint64(0x20)
		efer  = uint64(0x1)
		cr3   uintptr
	)

	switchPDTFn = func(addr uintptr) { calls = append(calls, "cr3"); cr3 = addr }
	readCR4Fn = func() uint64 { return cr4 }
	writeCR4Fn = func(v uint64) { calls = append(calls, "cr4"); cr4 = v }
	readMSRFn = func(msr uint32) uint64 {
		if msr != cpu.MsrEFER {
			t.Errorf("unexpected MSR read 0x%x", msr)
		}
		return efer
	}
	writeMSRFn = func(msr uint32, v uint64) {
		if msr != cpu.MsrEFER {
			t.Errorf("unexpected MSR write 0x%x", msr)
		}
		calls = append(calls, "efer")
		efer = v
	}
	readCR0Fn = func() uint64 { return cr0 }
	writeCR0Fn = func(v uint64) { calls = append(calls, "cr0"); cr0 = v }

	bt := NewBootTables(testLayout())
	bt.Build()
	bt.EnterLongMode()

	if bt.State() != Active {
		t.Fatalf("expected state %q; got %q", Active, bt.State())
	}

	expCalls := []string{"cr3", "cr4", "efer", "cr0"}
	if len(calls) != len(expCalls) {
		t.Fatalf("expected primitive calls %v; got %v", expCalls, calls)
	}
	for i := range expCalls {
		if calls[i] != expCalls[i] {
			t.Fatalf("expected primitive calls %v; got %v", expCalls, calls)
		}
	}

	if cr3 != uintptr(testP4Addr) {
		t.Errorf("expected CR3 to be loaded with 0x%x; got 0x%x", uint64(testP4Addr), cr3)
	}
	if exp := uint64(0x20); cr4 != exp {
		t.Errorf("expected CR4 to be 0x%x; got 0x%x", exp, cr4)
	}
	if exp := uint64(0x101); efer != exp {
		t.Errorf("expected EFER to be 0x%x; got 0x%x", exp, efer)
	}
	if exp := uint64(0x80010011); cr0 != exp {
		t.Errorf("expected CR0 to be 0x%x; got 0x%x", exp, cr0)
	}
}

func TestBuildStateString(t *testing.T) {
	specs := []struct {
		state BuildState
		exp   string
	}{
		{Unbuilt, "unbuilt"},
		{TablesLinked, "tables linked"},
		{Mapped, "mapped"},
		{Active, "active"},
		{BuildState(42), "unknown"},
	}

	for _, spec := range specs {
		if got := spec.state.String(); got != spec.exp {
			t.Errorf("expected %d to be rendered as %q; got %q", spec.state, spec.exp, got)
		}
	}
}

func TestBootTablesAdopt(t *testing.T) {
	p4, _, p2, restore := mockBootTables(t)
	defer restore()

	// populate the tables the way the boot assembly leaves them
	live := func() {
		*p4, *p2 = Table{}, Table{}
		NewBootTables(testLayout()).Build()
	}

	t.Run("live tables", func(t *testing.T) {
		live()
		snapshot := *p2

		bt := NewBootTables(testLayout())
		if err := bt.Adopt(uintptr(testP4Addr)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if bt.State() != Active {
			t.Fatalf("expected state %q; got %q", Active, bt.State())
		}

		if *p2 != snapshot {
			t.Fatal("expected adopted tables to be left untouched")
		}
	})

	specs := []struct {
		name   string
		cr3    uintptr
		tamper func()
		expErr *kernel.Error
	}{
		{"different CR3", 0x20000, func() {}, errNotActive},
		{"missing recursive slot", uintptr(testP4Addr), func() { p4[recursiveSlot] = 0 }, errBadLiveTable},
		{"P4[0] elsewhere", uintptr(testP4Addr), func() { p4[0].SetAddress(0x30000) }, errBadLiveTable},
		{"small page in P2", uintptr(testP4Addr), func() { p2[17].ClearFlags(FlagHugePage) }, errBadLiveTable},
		{"P2 not identity", uintptr(testP4Addr), func() { p2[3].SetAddress(0) }, errBadLiveTable},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			live()
			spec.tamper()

			bt := NewBootTables(testLayout())
			if err := bt.Adopt(spec.cr3); err != spec.expErr {
				t.Fatalf("expected error %v; got %v", spec.expErr, err)
			}

			if bt.State() != Unbuilt {
				t.Fatalf("expected state to remain %q; got %q", Unbuilt, bt.State())
			}
		})
	}

	t.Run("after build", func(t *testing.T) {
		bt := NewBootTables(testLayout())
		bt.Link()
		expectPanic(t, errOutOfOrder, func() { bt.Adopt(uintptr(testP4Addr)) })
	})
}
