package clrmeta

import (
	"encoding/binary"
	"testing"
)

// buildTablesStreamFixture assembles a minimal #~ stream with exactly one
// Module row, two TypeDef rows, and three MethodDef rows, all heap indices
// narrow (2 bytes). TypeDef row 1's MethodList points at MethodDef rid 1,
// row 2's at rid 3, so row 1 owns MethodDef rids [1,3) and row 2 owns [3,4).
func buildTablesStreamFixture() []byte {
	var buf []byte
	put32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }
	put64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); buf = append(buf, b...) }
	put16 := func(v uint16) { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); buf = append(buf, b...) }
	put8 := func(v uint8) { buf = append(buf, v) }

	put32(0)    // reserved
	put8(2)     // major version
	put8(0)     // minor version
	put8(0)     // heap size flags: all narrow
	put8(0)     // reserved

	valid := uint64(1)<<uint(Module) | uint64(1)<<uint(TypeDef) | uint64(1)<<uint(MethodDef)
	put64(valid)
	put64(0) // sorted: none

	put32(1) // Module row count
	put32(2) // TypeDef row count
	put32(3) // MethodDef row count

	// Module row: Generation, Name, Mvid, EncId, EncBaseId (all u16/idx, narrow).
	put16(0)
	put16(0)
	put16(0)
	put16(0)
	put16(0)

	// TypeDef row 1: Flags(u32), TypeName, TypeNamespace, Extends, FieldList, MethodList=1.
	put32(0)
	put16(0)
	put16(0)
	put16(0)
	put16(0)
	put16(1)

	// TypeDef row 2: MethodList=3.
	put32(0)
	put16(0)
	put16(0)
	put16(0)
	put16(0)
	put16(3)

	// MethodDef rows 1..3: RVA(u32), ImplFlags, Flags, Name, Signature, ParamList.
	for i := 0; i < 3; i++ {
		put32(0)
		put16(0)
		put16(0)
		put16(0)
		put16(0)
		put16(0)
	}

	return buf
}

func TestParseTablesStreamRowCounts(t *testing.T) {
	ts, err := ParseTablesStream(buildTablesStreamFixture())
	if err != nil {
		t.Fatalf("ParseTablesStream: %v", err)
	}
	if got := ts.RowCount(Module); got != 1 {
		t.Fatalf("RowCount(Module) = %d; want 1", got)
	}
	if got := ts.RowCount(TypeDef); got != 2 {
		t.Fatalf("RowCount(TypeDef) = %d; want 2", got)
	}
	if got := ts.RowCount(MethodDef); got != 3 {
		t.Fatalf("RowCount(MethodDef) = %d; want 3", got)
	}
	if got := ts.RowCount(Field); got != 0 {
		t.Fatalf("RowCount(Field) = %d; want 0", got)
	}
}

func TestTablesStreamListRange(t *testing.T) {
	ts, err := ParseTablesStream(buildTablesStreamFixture())
	if err != nil {
		t.Fatalf("ParseTablesStream: %v", err)
	}

	lo, hi, err := ts.ListRange(TypeDef, "MethodList", MethodDef, 1)
	if err != nil {
		t.Fatalf("ListRange(rid 1): %v", err)
	}
	if lo != 1 || hi != 3 {
		t.Fatalf("ListRange(rid 1) = [%d,%d); want [1,3)", lo, hi)
	}

	lo, hi, err = ts.ListRange(TypeDef, "MethodList", MethodDef, 2)
	if err != nil {
		t.Fatalf("ListRange(rid 2): %v", err)
	}
	if lo != 3 || hi != 4 {
		t.Fatalf("ListRange(rid 2) = [%d,%d); want [3,4)", lo, hi)
	}
}

func TestTablesStreamParentByListStart(t *testing.T) {
	ts, err := ParseTablesStream(buildTablesStreamFixture())
	if err != nil {
		t.Fatalf("ParseTablesStream: %v", err)
	}

	tests := []struct {
		childRid, wantParent uint32
	}{
		{1, 1},
		{2, 1},
		{3, 2},
	}
	for _, tt := range tests {
		parent, err := ts.ParentByListStart(TypeDef, "MethodList", tt.childRid)
		if err != nil {
			t.Fatalf("ParentByListStart(%d): %v", tt.childRid, err)
		}
		if parent != tt.wantParent {
			t.Fatalf("ParentByListStart(%d) = %d; want %d", tt.childRid, parent, tt.wantParent)
		}
	}
}

func TestParseTablesStreamRowCountExceedsLimit(t *testing.T) {
	var buf []byte
	put32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }
	put64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); buf = append(buf, b...) }
	put8 := func(v uint8) { buf = append(buf, v) }

	put32(0)
	put8(2)
	put8(0)
	put8(0)
	put8(0)
	put64(uint64(1) << uint(Module))
	put64(0)
	put32(100) // declared Module row count, above the limit below

	if _, err := parseTablesStream(buf, 10); err == nil {
		t.Fatal("parseTablesStream should reject a declared row count above the configured limit")
	}
	if _, err := parseTablesStream(buf, 1000); err != nil {
		t.Fatalf("parseTablesStream with a high-enough limit: %v", err)
	}
}

func TestTablesStreamAtNullRid(t *testing.T) {
	ts, err := ParseTablesStream(buildTablesStreamFixture())
	if err != nil {
		t.Fatalf("ParseTablesStream: %v", err)
	}
	r, err := ts.At(MethodDef, 0)
	if err != nil || r != nil {
		t.Fatalf("At(MethodDef, 0) = %v, %v; want nil, nil", r, err)
	}
}
