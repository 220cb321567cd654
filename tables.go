package clrmeta

import "sort"

// ColumnKind is the shape of one column of a metadata table row. Widths
// for the variable-width kinds are computed at parse time from the heap
// size flags (string/guid/blob) or from row counts (simple/coded table
// indices), per spec.md §4.C's TableLayout description.
type ColumnKind uint8

const (
	ColU8 ColumnKind = iota
	ColU16
	ColU32
	ColStringIdx
	ColGuidIdx
	ColBlobIdx
	ColSimpleIdx
	ColCodedIdx
)

// Column describes one field of a table row's schema.
type Column struct {
	Name  string
	Kind  ColumnKind
	Table TableIndex      // target table, when Kind == ColSimpleIdx
	Coded *CodedIndexKind // coded-index kind, when Kind == ColCodedIdx
}

func u8(name string) Column         { return Column{Name: name, Kind: ColU8} }
func u16c(name string) Column       { return Column{Name: name, Kind: ColU16} }
func u32c(name string) Column       { return Column{Name: name, Kind: ColU32} }
func strIdx(name string) Column     { return Column{Name: name, Kind: ColStringIdx} }
func guidIdx(name string) Column    { return Column{Name: name, Kind: ColGuidIdx} }
func blobIdx(name string) Column    { return Column{Name: name, Kind: ColBlobIdx} }
func simpleIdx(name string, t TableIndex) Column {
	return Column{Name: name, Kind: ColSimpleIdx, Table: t}
}
func codedIdx(name string, k CodedIndexKind) Column {
	return Column{Name: name, Kind: ColCodedIdx, Coded: &k}
}

// tableSchemas is the declarative column layout of every one of the 38
// (plus the 7 edit-and-continue/pointer) ECMA-335 metadata tables,
// grounded on the per-table row structs in dotnet_metadata_tables.go.
var tableSchemas = map[TableIndex][]Column{
	Module:          {u16c("Generation"), strIdx("Name"), guidIdx("Mvid"), guidIdx("EncId"), guidIdx("EncBaseId")},
	TypeRef:         {codedIdx("ResolutionScope", CodedIndexResolutionScope), strIdx("Name"), strIdx("Namespace")},
	TypeDef:         {u32c("Flags"), strIdx("TypeName"), strIdx("TypeNamespace"), codedIdx("Extends", CodedIndexTypeDefOrRef), simpleIdx("FieldList", Field), simpleIdx("MethodList", MethodDef)},
	FieldPtr:        {simpleIdx("Field", Field)},
	Field:           {u16c("Flags"), strIdx("Name"), blobIdx("Signature")},
	MethodPtr:       {simpleIdx("Method", MethodDef)},
	MethodDef:       {u32c("RVA"), u16c("ImplFlags"), u16c("Flags"), strIdx("Name"), blobIdx("Signature"), simpleIdx("ParamList", Param)},
	ParamPtr:        {simpleIdx("Param", Param)},
	Param:           {u16c("Flags"), u16c("Sequence"), strIdx("Name")},
	InterfaceImpl:   {simpleIdx("Class", TypeDef), codedIdx("Interface", CodedIndexTypeDefOrRef)},
	MemberRef:       {codedIdx("Class", CodedIndexMemberRefParent), strIdx("Name"), blobIdx("Signature")},
	Constant:        {u8("Type"), u8("Padding"), codedIdx("Parent", CodedIndexHasConstant), blobIdx("Value")},
	CustomAttribute: {codedIdx("Parent", CodedIndexHasCustomAttribute), codedIdx("Type", CodedIndexCustomAttributeType), blobIdx("Value")},
	FieldMarshal:    {codedIdx("Parent", CodedIndexHasFieldMarshal), blobIdx("NativeType")},
	DeclSecurity:    {u16c("Action"), codedIdx("Parent", CodedIndexHasDeclSecurity), blobIdx("PermissionSet")},
	ClassLayout:     {u16c("PackingSize"), u32c("ClassSize"), simpleIdx("Parent", TypeDef)},
	FieldLayout:     {u32c("Offset"), simpleIdx("Field", Field)},
	StandAloneSig:   {blobIdx("Signature")},
	EventMap:        {simpleIdx("Parent", TypeDef), simpleIdx("EventList", Event)},
	EventPtr:        {simpleIdx("Event", Event)},
	Event:           {u16c("EventFlags"), strIdx("Name"), codedIdx("EventType", CodedIndexTypeDefOrRef)},
	PropertyMap:     {simpleIdx("Parent", TypeDef), simpleIdx("PropertyList", Property)},
	PropertyPtr:     {simpleIdx("Property", Property)},
	Property:        {u16c("Flags"), strIdx("Name"), blobIdx("Type")},
	MethodSemantics: {u16c("Semantics"), simpleIdx("Method", MethodDef), codedIdx("Association", CodedIndexHasSemantics)},
	MethodImpl:      {simpleIdx("Class", TypeDef), codedIdx("MethodBody", CodedIndexMethodDefOrRef), codedIdx("MethodDeclaration", CodedIndexMethodDefOrRef)},
	ModuleRef:       {strIdx("Name")},
	TypeSpec:        {blobIdx("Signature")},
	ImplMap:         {u16c("MappingFlags"), codedIdx("MemberForwarded", CodedIndexMemberForwarded), strIdx("ImportName"), simpleIdx("ImportScope", ModuleRef)},
	FieldRVA:        {u32c("RVA"), simpleIdx("Field", Field)},
	ENCLog:          {u32c("Token"), u32c("FuncCode")},
	ENCMap:          {u32c("Token")},
	Assembly:        {u32c("HashAlgId"), u16c("MajorVersion"), u16c("MinorVersion"), u16c("BuildNumber"), u16c("RevisionNumber"), u32c("Flags"), blobIdx("PublicKey"), strIdx("Name"), strIdx("Culture")},
	AssemblyProcessor: {u32c("Processor")},
	AssemblyOS:        {u32c("OSPlatformID"), u32c("OSMajorVersion"), u32c("OSMinorVersion")},
	AssemblyRef:       {u16c("MajorVersion"), u16c("MinorVersion"), u16c("BuildNumber"), u16c("RevisionNumber"), u32c("Flags"), blobIdx("PublicKeyOrToken"), strIdx("Name"), strIdx("Culture"), blobIdx("HashValue")},
	AssemblyRefProcessor: {u32c("Processor"), simpleIdx("AssemblyRef", AssemblyRef)},
	AssemblyRefOS:        {u32c("OSPlatformID"), u32c("OSMajorVersion"), u32c("OSMinorVersion"), simpleIdx("AssemblyRef", AssemblyRef)},
	File:                 {u32c("Flags"), strIdx("Name"), blobIdx("HashValue")},
	ExportedType:         {u32c("Flags"), u32c("TypeDefId"), strIdx("TypeName"), strIdx("TypeNamespace"), codedIdx("Implementation", CodedIndexImplementation)},
	ManifestResource:     {u32c("Offset"), u32c("Flags"), strIdx("Name"), codedIdx("Implementation", CodedIndexImplementation)},
	NestedClass:          {simpleIdx("NestedClass", TypeDef), simpleIdx("EnclosingClass", TypeDef)},
	GenericParam:         {u16c("Number"), u16c("Flags"), codedIdx("Owner", CodedIndexTypeOrMethodDef), strIdx("Name")},
	MethodSpec:           {codedIdx("Method", CodedIndexMethodDefOrRef), blobIdx("Instantiation")},
	GenericParamConstraint: {simpleIdx("Owner", GenericParam), codedIdx("Constraint", CodedIndexTypeDefOrRef)},
}

// TableLayout is a table's column list plus each column's computed byte
// offset within a row and the total row size.
type TableLayout struct {
	Index       TableIndex
	Columns     []Column
	ColumnOff   []int // byte offset of each column within a row
	RowSize     int
}

func (l TableLayout) columnIndex(name string) int {
	for i, c := range l.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HeapSizes is the decoded bit 0/1/2 flags from the tables-stream header.
type HeapSizes struct {
	WideStrings bool
	WideGUID    bool
	WideBlob    bool
}

func computeLayout(t TableIndex, heaps HeapSizes, rowCount func(TableIndex) uint32) TableLayout {
	cols := tableSchemas[t]
	layout := TableLayout{Index: t, Columns: cols, ColumnOff: make([]int, len(cols))}
	off := 0
	for i, c := range cols {
		layout.ColumnOff[i] = off
		switch c.Kind {
		case ColU8:
			off += 1
		case ColU16:
			off += 2
		case ColU32:
			off += 4
		case ColStringIdx:
			off += idxWidth(heaps.WideStrings)
		case ColGuidIdx:
			off += idxWidth(heaps.WideGUID)
		case ColBlobIdx:
			off += idxWidth(heaps.WideBlob)
		case ColSimpleIdx:
			if rowCount(c.Table) > 0xFFFF {
				off += 4
			} else {
				off += 2
			}
		case ColCodedIdx:
			off += CodedIndexWidth(*c.Coded, rowCount)
		}
	}
	layout.RowSize = off
	return layout
}

func idxWidth(wide bool) int {
	if wide {
		return 4
	}
	return 2
}

// TablesStream is the parsed `#~` (or `#-`) stream: a header plus the 45
// tables' computed layouts and byte ranges within the stream.
type TablesStream struct {
	data        []byte
	heaps       HeapSizes
	valid       uint64
	sorted      uint64
	rowCounts   [tableIndexCount]uint32
	layouts     [tableIndexCount]TableLayout
	tableOffset [tableIndexCount]int // byte offset of table i's first row, within data
}

// DefaultMaxMetadataTableRows bounds a single table's declared row count
// when the caller leaves Options.MaxMetadataTableRows at zero: a sane
// upper bound so a corrupted count cannot drive an unbounded allocation
// downstream.
const DefaultMaxMetadataTableRows uint32 = 16_000_000

// ParseTablesStream parses the `#~` stream header and computes every
// table's layout and byte range, per spec.md §4.C, bounding each table's
// declared row count at DefaultMaxMetadataTableRows.
func ParseTablesStream(data []byte) (*TablesStream, error) {
	return parseTablesStream(data, DefaultMaxMetadataTableRows)
}

// parseTablesStream is ParseTablesStream with a caller-supplied row-count
// ceiling, wired to Options.MaxMetadataTableRows.
func parseTablesStream(data []byte, maxRows uint32) (*TablesStream, error) {
	r := NewBinaryStreamReader(data)
	if _, err := r.ReadU32(); err != nil { // reserved
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}
	if _, err := r.ReadU8(); err != nil { // major version
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}
	if _, err := r.ReadU8(); err != nil { // minor version
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}
	heapSizeFlags, err := r.ReadU8()
	if err != nil {
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}
	if _, err := r.ReadU8(); err != nil { // reserved
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}
	valid, err := r.ReadU64()
	if err != nil {
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}
	sorted, err := r.ReadU64()
	if err != nil {
		return nil, &FormatError{Stream: "#~", Offset: uint32(r.Offset()), Message: "truncated header", Err: err}
	}

	ts := &TablesStream{
		data:   data,
		valid:  valid,
		sorted: sorted,
		heaps: HeapSizes{
			WideStrings: heapSizeFlags&0x01 != 0,
			WideGUID:    heapSizeFlags&0x02 != 0,
			WideBlob:    heapSizeFlags&0x04 != 0,
		},
	}

	for i := TableIndex(0); i < tableIndexCount; i++ {
		if valid&(uint64(1)<<uint(i)) == 0 {
			continue
		}
		count, err := r.ReadU32()
		if err != nil {
			return nil, &FormatError{Stream: "#~", Table: i.String(), Offset: uint32(r.Offset()), Message: "truncated row count", Err: err}
		}
		if count > maxRows {
			return nil, &FormatError{Stream: "#~", Table: i.String(), Offset: uint32(r.Offset()), Message: "declared row count exceeds configured maximum", Err: ErrOutOfRange}
		}
		ts.rowCounts[i] = count
	}

	rowCount := func(t TableIndex) uint32 { return ts.rowCounts[t] }
	for i := TableIndex(0); i < tableIndexCount; i++ {
		ts.layouts[i] = computeLayout(i, ts.heaps, rowCount)
	}

	off := r.Offset()
	for i := TableIndex(0); i < tableIndexCount; i++ {
		ts.tableOffset[i] = off
		off += ts.layouts[i].RowSize * int(ts.rowCounts[i])
	}

	return ts, nil
}

// RowCount returns the number of rows in table t.
func (ts *TablesStream) RowCount(t TableIndex) uint32 {
	if t >= tableIndexCount {
		return 0
	}
	return ts.rowCounts[t]
}

// IsSorted reports whether table t is declared sorted by its first column.
func (ts *TablesStream) IsSorted(t TableIndex) bool {
	return ts.sorted&(uint64(1)<<uint(t)) != 0
}

// rowBytes returns the raw bytes of row rid (1-based) of table t.
func (ts *TablesStream) rowBytes(t TableIndex, rid uint32) ([]byte, error) {
	if t >= tableIndexCount || rid == 0 || rid > ts.rowCounts[t] {
		return nil, ErrOutOfRange
	}
	layout := ts.layouts[t]
	start := ts.tableOffset[t] + int(rid-1)*layout.RowSize
	end := start + layout.RowSize
	if end > len(ts.data) {
		return nil, ErrOutOfRange
	}
	return ts.data[start:end], nil
}

// At returns a reader positioned at the start of row rid (1-based) of
// table t. rid 0 returns a nil reader and no error, mirroring "rid 0
// returns null" from spec.md §4.C.
func (ts *TablesStream) At(t TableIndex, rid uint32) (*BinaryStreamReader, error) {
	if rid == 0 {
		return nil, nil
	}
	b, err := ts.rowBytes(t, rid)
	if err != nil {
		return nil, err
	}
	return NewBinaryStreamReader(b), nil
}

// columnRaw reads column index colIdx of row rid of table t as a plain
// unsigned integer (the coded/simple index's raw encoded value, not yet
// decoded into a MetadataToken).
func (ts *TablesStream) columnRaw(t TableIndex, rid uint32, colIdx int) (uint32, error) {
	row, err := ts.rowBytes(t, rid)
	if err != nil {
		return 0, err
	}
	layout := ts.layouts[t]
	if colIdx < 0 || colIdx >= len(layout.Columns) {
		return 0, ErrOutOfRange
	}
	col := layout.Columns[colIdx]
	off := layout.ColumnOff[colIdx]
	r := NewBinaryStreamReader(row[off:])
	switch col.Kind {
	case ColU8:
		v, err := r.ReadU8()
		return uint32(v), err
	case ColU16:
		v, err := r.ReadU16()
		return uint32(v), err
	case ColU32:
		return r.ReadU32()
	case ColStringIdx, ColGuidIdx, ColBlobIdx:
		if ts.wideFor(col.Kind) {
			return r.ReadU32()
		}
		v, err := r.ReadU16()
		return uint32(v), err
	case ColSimpleIdx:
		if ts.rowCounts[col.Table] > 0xFFFF {
			return r.ReadU32()
		}
		v, err := r.ReadU16()
		return uint32(v), err
	case ColCodedIdx:
		width := CodedIndexWidth(*col.Coded, func(tt TableIndex) uint32 { return ts.rowCounts[tt] })
		if width == 4 {
			return r.ReadU32()
		}
		v, err := r.ReadU16()
		return uint32(v), err
	}
	return 0, ErrOutOfRange
}

func (ts *TablesStream) wideFor(k ColumnKind) bool {
	switch k {
	case ColStringIdx:
		return ts.heaps.WideStrings
	case ColGuidIdx:
		return ts.heaps.WideGUID
	case ColBlobIdx:
		return ts.heaps.WideBlob
	}
	return false
}

// Column reads column name of row rid of table t as a plain uint32. Coded
// indices come back in their raw encoded form; CodedColumn decodes them
// into a MetadataToken.
func (ts *TablesStream) Column(t TableIndex, rid uint32, name string) (uint32, error) {
	layout := ts.layouts[t]
	idx := layout.columnIndex(name)
	if idx < 0 {
		return 0, ErrOutOfRange
	}
	return ts.columnRaw(t, rid, idx)
}

// CodedColumn reads a ColCodedIdx column and decodes it into a MetadataToken.
func (ts *TablesStream) CodedColumn(t TableIndex, rid uint32, name string) (MetadataToken, error) {
	layout := ts.layouts[t]
	idx := layout.columnIndex(name)
	if idx < 0 {
		return 0, ErrOutOfRange
	}
	col := layout.Columns[idx]
	if col.Kind != ColCodedIdx {
		return 0, ErrOutOfRange
	}
	raw, err := ts.columnRaw(t, rid, idx)
	if err != nil {
		return 0, err
	}
	return col.Coded.Decode(raw)
}

// FindRange performs a binary search over the sorted column named name
// of table t, returning the contiguous [lo, hi) rid range whose value
// equals key; it falls back to a linear scan when the table is not
// declared sorted, per spec.md §4.C.
func (ts *TablesStream) FindRange(t TableIndex, name string, key uint32) (lo, hi uint32, err error) {
	n := ts.rowCounts[t]
	if n == 0 {
		return 0, 0, nil
	}
	layout := ts.layouts[t]
	idx := layout.columnIndex(name)
	if idx < 0 {
		return 0, 0, ErrOutOfRange
	}

	if !ts.IsSorted(t) {
		for rid := uint32(1); rid <= n; rid++ {
			v, err := ts.columnRaw(t, rid, idx)
			if err != nil {
				return 0, 0, err
			}
			if v == key {
				if lo == 0 {
					lo = rid
				}
				hi = rid + 1
			} else if lo != 0 {
				break
			}
		}
		return lo, hi, nil
	}

	// Binary search for the lowest rid whose value >= key.
	start := uint32(sort.Search(int(n), func(i int) bool {
		rid := uint32(i) + 1
		v, err := ts.columnRaw(t, rid, idx)
		if err != nil {
			return true
		}
		return v >= key
	})) + 1
	if start > n {
		return 0, 0, nil
	}
	v, err := ts.columnRaw(t, start, idx)
	if err != nil {
		return 0, 0, err
	}
	if v != key {
		return 0, 0, nil
	}
	end := uint32(sort.Search(int(n), func(i int) bool {
		rid := uint32(i) + 1
		v, err := ts.columnRaw(t, rid, idx)
		if err != nil {
			return true
		}
		return v > key
	})) + 1
	return start, end, nil
}

// ListRange returns the contiguous child rid range [lo, hi) owned by
// parent row parentRid via its list-start column listColumn (e.g.
// TypeDef.MethodList), per spec.md §4.C's list-range algorithm: row i's
// range runs from its own list-start to the next row's list-start, with
// the last row implicitly extending to childRowCount+1.
func (ts *TablesStream) ListRange(parentTable TableIndex, listColumn string, childTable TableIndex, parentRid uint32) (lo, hi uint32, err error) {
	lo, err = ts.Column(parentTable, parentRid, listColumn)
	if err != nil {
		return 0, 0, err
	}
	parentCount := ts.rowCounts[parentTable]
	if parentRid < parentCount {
		hi, err = ts.Column(parentTable, parentRid+1, listColumn)
		if err != nil {
			return 0, 0, err
		}
	} else {
		hi = ts.rowCounts[childTable] + 1
	}
	return lo, hi, nil
}

// ParentByListStart finds the parent row of parentTable whose list-start
// column listColumn is the largest value <= childRid — the reverse of
// ListRange, used for child→parent owner back-references (e.g. a method
// rid back to its declaring TypeDef via MethodList).
func (ts *TablesStream) ParentByListStart(parentTable TableIndex, listColumn string, childRid uint32) (uint32, error) {
	n := ts.rowCounts[parentTable]
	if n == 0 {
		return 0, nil
	}
	layout := ts.layouts[parentTable]
	idx := layout.columnIndex(listColumn)
	if idx < 0 {
		return 0, ErrOutOfRange
	}
	// Largest rid whose list-start <= childRid: binary search for the
	// first rid whose list-start > childRid, then step back one.
	pos := sort.Search(int(n), func(i int) bool {
		rid := uint32(i) + 1
		v, err := ts.columnRaw(parentTable, rid, idx)
		if err != nil {
			return true
		}
		return v > childRid
	})
	if pos == 0 {
		return 0, nil
	}
	return uint32(pos), nil
}
