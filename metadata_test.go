package clrmeta

import "encoding/binary"

// stringsHeapBuilder appends NUL-terminated strings to a #Strings heap,
// starting with the empty string at index 0.
type stringsHeapBuilder struct{ buf []byte }

func newStringsHeapBuilder() *stringsHeapBuilder { return &stringsHeapBuilder{buf: []byte{0}} }

func (b *stringsHeapBuilder) add(s string) uint16 {
	off := uint16(len(b.buf))
	b.buf = append(b.buf, []byte(s)...)
	b.buf = append(b.buf, 0)
	return off
}

// tableRowsBuilder accumulates little-endian row bytes for a #~ stream body.
type tableRowsBuilder struct{ buf []byte }

func (b *tableRowsBuilder) u8(v uint8)   { b.buf = append(b.buf, v) }
func (b *tableRowsBuilder) u16(v uint16) { p := make([]byte, 2); binary.LittleEndian.PutUint16(p, v); b.buf = append(b.buf, p...) }
func (b *tableRowsBuilder) u32(v uint32) { p := make([]byte, 4); binary.LittleEndian.PutUint32(p, v); b.buf = append(b.buf, p...) }

type namedStreamData struct {
	name string
	data []byte
}

// buildMetadataRootBlob assembles a complete BSJB metadata root: the
// fixed header, the version string, the stream header array (name padded
// to a 4-byte boundary per ECMA-335 §II.24.2.2), then each stream's bytes
// back to back, with every offset computed relative to the blob's own
// start exactly as parseMetadataRoot expects.
func buildMetadataRootBlob(streams []namedStreamData) []byte {
	var head []byte
	put32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		head = append(head, b...)
	}
	put16 := func(v uint16) {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		head = append(head, b...)
	}

	put32(metadataRootSignature)
	put16(1) // major version
	put16(1) // minor version
	put32(0) // reserved

	version := "v4.0.30319\x00"
	for len(version)%4 != 0 {
		version += "\x00"
	}
	put32(uint32(len(version)))
	head = append(head, []byte(version)...)

	put16(0)                      // flags
	put16(uint16(len(streams)))   // stream count

	type streamHeader struct{ nameBytes []byte }
	headers := make([]streamHeader, len(streams))
	headerTableSize := 0
	for i, s := range streams {
		nb := append([]byte(s.name), 0)
		for len(nb)%4 != 0 {
			nb = append(nb, 0)
		}
		headers[i] = streamHeader{nameBytes: nb}
		headerTableSize += 8 + len(nb)
	}

	dataStart := len(head) + headerTableSize
	offsets := make([]int, len(streams))
	cur := dataStart
	for i, s := range streams {
		offsets[i] = cur
		cur += len(s.data)
	}

	out := append([]byte{}, head...)
	for i, h := range headers {
		b4 := make([]byte, 4)
		binary.LittleEndian.PutUint32(b4, uint32(offsets[i]))
		out = append(out, b4...)
		binary.LittleEndian.PutUint32(b4, uint32(len(streams[i].data)))
		out = append(out, b4...)
		out = append(out, h.nameBytes...)
	}
	for _, s := range streams {
		out = append(out, s.data...)
	}
	return out
}

// assemblyFixture is a hand-built loaded assembly exercising the full
// read path: metadata root -> #~ tables -> #Strings -> navigation graph.
// One assembly manifest, one module, a top-level type "Outer" owning a
// nested type "Inner" and one method "MyMethod", and one AssemblyRef.
type assemblyFixture struct {
	data        []byte
	moduleName  string
	outerName   string
	innerName   string
	methodName  string
	asmName     string
	asmRefName  string
}

func newAssemblyFixture() *assemblyFixture {
	f := &assemblyFixture{
		moduleName: "MyModule.dll",
		outerName:  "Outer",
		innerName:  "Inner",
		methodName: "MyMethod",
		asmName:    "MyAsm",
		asmRefName: "RefAsm",
	}

	strs := newStringsHeapBuilder()
	moduleNameIdx := strs.add(f.moduleName)
	outerNameIdx := strs.add(f.outerName)
	innerNameIdx := strs.add(f.innerName)
	methodNameIdx := strs.add(f.methodName)
	asmNameIdx := strs.add(f.asmName)
	asmRefNameIdx := strs.add(f.asmRefName)
	emptyIdx := uint16(0)

	rows := &tableRowsBuilder{}

	// Module row: Generation, Name, Mvid, EncId, EncBaseId.
	rows.u16(0)
	rows.u16(moduleNameIdx)
	rows.u16(0)
	rows.u16(0)
	rows.u16(0)

	// TypeDef row 1 ("Outer", top-level): Flags, TypeName, TypeNamespace,
	// Extends (null), FieldList (none), MethodList -> MethodDef rid 1.
	rows.u32(0)
	rows.u16(outerNameIdx)
	rows.u16(emptyIdx)
	rows.u16(0)
	rows.u16(0)
	rows.u16(1)

	// TypeDef row 2 ("Inner", nested): owns no methods, so its MethodList
	// is the same as MethodDef's rowCount+1, closing Outer's range at [1,2).
	rows.u32(0)
	rows.u16(innerNameIdx)
	rows.u16(emptyIdx)
	rows.u16(0)
	rows.u16(0)
	rows.u16(2)

	// MethodDef row 1 ("MyMethod"), owned by TypeDef rid 1.
	rows.u32(0) // RVA
	rows.u16(0) // ImplFlags
	rows.u16(0) // Flags
	rows.u16(methodNameIdx)
	rows.u16(0) // Signature blob idx (empty blob)
	rows.u16(0) // ParamList

	// Assembly row: HashAlgId, Major/Minor/Build/Revision, Flags, PublicKey, Name, Culture.
	rows.u32(0x8004)
	rows.u16(1)
	rows.u16(0)
	rows.u16(0)
	rows.u16(0)
	rows.u32(0)
	rows.u16(0) // PublicKey blob idx
	rows.u16(asmNameIdx)
	rows.u16(emptyIdx)

	// AssemblyRef row: Major/Minor/Build/Revision, Flags, PublicKeyOrToken, Name, Culture, HashValue.
	rows.u16(2)
	rows.u16(0)
	rows.u16(0)
	rows.u16(0)
	rows.u32(0)
	rows.u16(0)
	rows.u16(asmRefNameIdx)
	rows.u16(emptyIdx)
	rows.u16(0)

	// NestedClass row: NestedClass(TypeDef rid 2) -> EnclosingClass(TypeDef rid 1).
	rows.u16(2)
	rows.u16(1)

	var header []byte
	put32h := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		header = append(header, b...)
	}
	put64h := func(v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		header = append(header, b...)
	}
	put32h(0) // reserved
	header = append(header, 2, 0, 0, 0) // major, minor, heap size flags, reserved

	valid := uint64(1)<<uint(Module) | uint64(1)<<uint(TypeDef) | uint64(1)<<uint(MethodDef) |
		uint64(1)<<uint(Assembly) | uint64(1)<<uint(AssemblyRef) | uint64(1)<<uint(NestedClass)
	put64h(valid)
	put64h(0) // sorted

	put32h(1) // Module
	put32h(2) // TypeDef
	put32h(1) // MethodDef
	put32h(1) // Assembly
	put32h(1) // AssemblyRef
	put32h(1) // NestedClass

	tablesStream := append(header, rows.buf...)

	f.data = buildMetadataRootBlob([]namedStreamData{
		{name: "#~", data: tablesStream},
		{name: "#Strings", data: strs.buf},
		{name: "#GUID", data: nil},
		{name: "#Blob", data: []byte{0}},
	})
	return f
}
