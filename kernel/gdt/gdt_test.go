package gdt

import (
	"kestrel/kernel/cpu"
	"kestrel/kernel/dtable"
	"testing"
	"unsafe"
)

func TestWellKnownDescriptors(t *testing.T) {
	specs := []struct {
		name string
		desc Descriptor
		exp  uint64
	}{
		{"null", Null, 0},
		{"code", KernelCode, (1 << 44) | (1 << 47) | (1 << 41) | (1 << 43) | (1 << 53)},
		{"data", KernelData, (1 << 44) | (1 << 47) | (1 << 41)},
	}

	for _, spec := range specs {
		if uint64(spec.desc) != spec.exp {
			t.Errorf("expected %s descriptor to be 0x%016x; got 0x%016x", spec.name, spec.exp, uint64(spec.desc))
		}

		if got := spec.desc.Privilege(); got != 0 {
			t.Errorf("expected %s descriptor to be ring 0; got %d", spec.name, got)
		}
	}

	if exp := uint8(0x9a); KernelCode.Access() != exp {
		t.Errorf("expected code access byte 0x%x; got 0x%x", exp, KernelCode.Access())
	}
	if exp := uint8(0x92); KernelData.Access() != exp {
		t.Errorf("expected data access byte 0x%x; got 0x%x", exp, KernelData.Access())
	}
}

func TestNewDescriptor(t *testing.T) {
	specs := []struct {
		base, limit   uint32
		access, flags uint8
		exp           Descriptor
	}{
		{0, 0xfffff, 0x9a, 0xa, 0x00af9a000000ffff},
		{0, 0xfffff, 0x92, 0xc, 0x00cf92000000ffff},
		{0x12345678, 0x67, 0x89, 0, 0x1200893456780067},
	}

	for specIndex, spec := range specs {
		d := NewDescriptor(spec.base, spec.limit, spec.access, spec.flags)
		if d != spec.exp {
			t.Errorf("[spec %d] expected 0x%016x; got 0x%016x", specIndex, uint64(spec.exp), uint64(d))
			continue
		}

		if got := d.Base(); got != spec.base {
			t.Errorf("[spec %d] expected base 0x%x; got 0x%x", specIndex, spec.base, got)
		}
		if got := d.Limit(); got != spec.limit {
			t.Errorf("[spec %d] expected limit 0x%x; got 0x%x", specIndex, spec.limit, got)
		}
		if got := d.Access(); got != spec.access {
			t.Errorf("[spec %d] expected access 0x%x; got 0x%x", specIndex, spec.access, got)
		}
		if got := d.Flags(); got != spec.flags {
			t.Errorf("[spec %d] expected flags 0x%x; got 0x%x", specIndex, spec.flags, got)
		}
	}
}

func TestDescriptorPrivilege(t *testing.T) {
	for dpl := uint8(0); dpl < 4; dpl++ {
		d := KernelCode.WithPrivilege(dpl)
		if got := d.Privilege(); got != dpl {
			t.Errorf("expected privilege %d; got %d", dpl, got)
		}

		if rest := d &^ privilegeMask; rest != KernelCode {
			t.Errorf("[dpl %d] expected only the DPL bits to change; got 0x%016x", dpl, uint64(d))
		}
	}
}

func TestTableAdd(t *testing.T) {
	var table Table

	for i := 1; i < maxEntries; i++ {
		sel, err := table.Add(KernelData)
		if err != nil {
			t.Fatalf("[entry %d] unexpected error: %v", i, err)
		}
		if exp := uint16(i * 8); sel != exp {
			t.Fatalf("[entry %d] expected selector 0x%x; got 0x%x", i, exp, sel)
		}
	}

	if _, err := table.Add(KernelCode); err != errTableFull {
		t.Fatalf("expected errTableFull; got %v", err)
	}

	if got := table.Entry(0); got != Null {
		t.Fatalf("expected entry 0 to be the null descriptor; got 0x%x", uint64(got))
	}

	// RPL bits are ignored
	if got := table.Entry(0x08 | 3); got != KernelData {
		t.Fatalf("expected selector 0x0b to reference entry 1; got 0x%x", uint64(got))
	}
}

func TestTableEntryOutOfRange(t *testing.T) {
	var table Table
	if got := table.Entry(0x08); got != Null {
		t.Fatalf("expected an empty table to resolve selectors to Null; got 0x%x", uint64(got))
	}

	table.Add(KernelCode)
	table.Add(KernelData)

	for _, sel := range []uint16{0x18, 0x40, 0x48, 0xfff8} {
		if got := table.Entry(sel); got != Null {
			t.Errorf("expected selector 0x%x past the limit to resolve to Null; got 0x%x", sel, uint64(got))
		}
	}

	if got := table.Entry(0x10); got != KernelData {
		t.Errorf("expected selector 0x10 to reference entry 2; got 0x%x", uint64(got))
	}
}

func TestBoot(t *testing.T) {
	table := Boot()

	if table != Boot() {
		t.Fatal("expected Boot to always return the same table")
	}

	if exp, got := 3, table.EntryCount(); got != exp {
		t.Fatalf("expected %d entries; got %d", exp, got)
	}

	if got := table.Entry(CodeSelector); got != KernelCode {
		t.Errorf("expected selector 0x%x to reference the code descriptor; got 0x%x", CodeSelector, uint64(got))
	}

	if got := table.Entry(DataSelector); got != KernelData {
		t.Errorf("expected selector 0x%x to reference the data descriptor; got 0x%x", DataSelector, uint64(got))
	}

	ptr := table.Pointer()
	if exp := uint16(23); ptr.Limit != exp {
		t.Errorf("expected pointer limit %d; got %d", exp, ptr.Limit)
	}
	if exp := uint64(uintptr(unsafe.Pointer(&table.entries[0]))); ptr.Base != exp {
		t.Errorf("expected pointer base 0x%x; got 0x%x", exp, ptr.Base)
	}
}

func TestLoad(t *testing.T) {
	defer func() {
		loadGDTFn = cpu.LoadGDT
		reloadSegmentsFn = cpu.ReloadSegments
	}()

	var (
		calls   []string
		loaded  dtable.Pointer
		code    uint16
		data    uint16
		table   = Boot()
		ptrSize = uintptr(dtable.PointerSize)
	)

	loadGDTFn = func(ptrAddr uintptr) {
		calls = append(calls, "lgdt")
		raw := unsafe.Slice((*byte)(unsafe.Pointer(ptrAddr)), ptrSize)

		p, err := dtable.DecodePointer(raw)
		if err != nil {
			t.Fatal(err)
		}
		loaded = p
	}
	reloadSegmentsFn = func(c, d uint16) {
		calls = append(calls, "reload")
		code, data = c, d
	}

	var tbl dtable.Table = table
	tbl.Load()

	if len(calls) != 2 || calls[0] != "lgdt" || calls[1] != "reload" {
		t.Fatalf("expected lgdt followed by a segment reload; got %v", calls)
	}

	if loaded != table.Pointer() {
		t.Errorf("expected LGDT operand %+v; got %+v", table.Pointer(), loaded)
	}

	if code != CodeSelector || data != DataSelector {
		t.Errorf("expected selectors 0x%x/0x%x; got 0x%x/0x%x", CodeSelector, DataSelector, code, data)
	}
}
