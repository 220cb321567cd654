package clrmeta

import (
	"github.com/metascope/clrmeta/internal/peimage"
	"github.com/metascope/clrmeta/log"
)

const metadataRootSignature = 0x424A5342 // "BSJB"

// knownStreamNames are the metadata-root streams this package understands.
// Anything else (a vendor-specific or future stream) is harmless to skip,
// but worth a log line since it means something in the image goes unread.
var knownStreamNames = map[string]bool{
	"#Strings": true,
	"#US":      true,
	"#GUID":    true,
	"#Blob":    true,
	"#~":       true,
	"#-":       true,
}

// Metadata is the fully parsed CLI metadata root: the four heaps and the
// tables stream every lazy member field reads from.
type Metadata struct {
	Strings *StringsStream
	Blob    *BlobStream
	GUID    *GuidStream
	US      *UserStringsStream
	Tables  *TablesStream

	logger *log.Helper
}

// parseMetadataRoot parses the metadata root blob (BSJB signature,
// version string, stream-header array) and every stream it names, per
// spec.md §6's "metadata root blob" input format.
func parseMetadataRoot(data []byte, logger *log.Helper, maxTableRows uint32) (*Metadata, error) {
	r := NewBinaryStreamReader(data)

	sig, err := r.ReadU32()
	if err != nil || sig != metadataRootSignature {
		return nil, &FormatError{Stream: "metadata-root", Offset: 0, Message: "missing BSJB signature", Err: ErrBadImageFormat}
	}
	if _, err := r.ReadU16(); err != nil { // major version
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated root", Err: err}
	}
	if _, err := r.ReadU16(); err != nil { // minor version
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated root", Err: err}
	}
	if _, err := r.ReadU32(); err != nil { // reserved
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated root", Err: err}
	}
	versionLength, err := r.ReadU32()
	if err != nil {
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated version length", Err: err}
	}
	if _, err := r.ReadBytes(int(versionLength)); err != nil {
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated version string", Err: err}
	}
	if _, err := r.ReadU16(); err != nil { // flags
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated root", Err: err}
	}
	numStreams, err := r.ReadU16()
	if err != nil {
		return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated stream count", Err: err}
	}

	streams := make(map[string][]byte, numStreams)
	for i := uint16(0); i < numStreams; i++ {
		off, err := r.ReadU32()
		if err != nil {
			return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated stream header", Err: err}
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "truncated stream header", Err: err}
		}
		name, err := readPaddedStreamName(r)
		if err != nil {
			return nil, &FormatError{Stream: "metadata-root", Offset: uint32(r.Offset()), Message: "malformed stream name", Err: err}
		}
		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, &FormatError{Stream: name, Offset: off, Message: "stream extends past metadata root", Err: ErrOutOfRange}
		}
		if !knownStreamNames[name] {
			logger.Warnf("metadata root: ignoring unrecognized stream %q at offset %d", name, off)
		}
		streams[name] = data[off : off+size]
	}

	md := &Metadata{
		Strings: newStringsStream(streams["#Strings"]),
		Blob:    newBlobStream(streams["#Blob"]),
		GUID:    newGuidStream(streams["#GUID"]),
		US:      newUserStringsStream(streams["#US"]),
		logger:  logger,
	}

	tablesBytes, ok := streams["#~"]
	if !ok {
		tablesBytes, ok = streams["#-"]
	}
	if !ok {
		return nil, &FormatError{Stream: "metadata-root", Message: "missing tables stream", Err: ErrBadImageFormat}
	}
	md.Tables, err = parseTablesStream(tablesBytes, maxTableRows)
	if err != nil {
		return nil, err
	}

	return md, nil
}

// readPaddedStreamName reads a NUL-terminated stream name, then consumes
// the padding bytes up to the next 4-byte boundary (ECMA-335 §II.24.2.2).
func readPaddedStreamName(r *BinaryStreamReader) (string, error) {
	start := r.Offset()
	var nameBytes []byte
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		nameBytes = append(nameBytes, b)
	}
	consumed := r.Offset() - start
	pad := (4 - consumed%4) % 4
	if pad > 0 {
		if _, err := r.ReadBytes(pad); err != nil {
			return "", err
		}
	}
	return string(nameBytes), nil
}

// imageCOR20Header is the subset of IMAGE_COR20_HEADER (ECMA-335 §II.25.3.3)
// needed to find the metadata root: the MetaData data directory.
// readCOR20Header skips cb and the runtime version to reach it.
type imageCOR20Header struct {
	MetaDataRVA  uint32
	MetaDataSize uint32
}

func readCOR20Header(img *peimage.Image, rva, size uint32) (imageCOR20Header, error) {
	off, err := img.RVAToOffset(rva)
	if err != nil {
		return imageCOR20Header{}, &FormatError{Stream: "CLR header", Offset: rva, Message: "CLR directory RVA out of range", Err: err}
	}
	const minHeaderSize = 16 // cb + major/minor + MetaData directory
	if size < minHeaderSize {
		return imageCOR20Header{}, &FormatError{Stream: "CLR header", Offset: off, Message: "CLR header too small", Err: ErrBadImageFormat}
	}
	raw, err := img.ReadBytes(off, minHeaderSize)
	if err != nil {
		return imageCOR20Header{}, &FormatError{Stream: "CLR header", Offset: off, Message: "truncated CLR header", Err: err}
	}
	r := NewBinaryStreamReader(raw)
	if _, err := r.ReadU32(); err != nil { // cb
		return imageCOR20Header{}, err
	}
	if _, err := r.ReadU16(); err != nil { // MajorRuntimeVersion
		return imageCOR20Header{}, err
	}
	if _, err := r.ReadU16(); err != nil { // MinorRuntimeVersion
		return imageCOR20Header{}, err
	}
	mdRVA, err := r.ReadU32()
	if err != nil {
		return imageCOR20Header{}, err
	}
	mdSize, err := r.ReadU32()
	if err != nil {
		return imageCOR20Header{}, err
	}
	return imageCOR20Header{MetaDataRVA: mdRVA, MetaDataSize: mdSize}, nil
}

// Options configures how an AssemblyDefinition is loaded.
type Options struct {
	// MaxMetadataTableRows bounds a single table's declared row count, so
	// a corrupted count cannot drive an unbounded allocation downstream;
	// 0 means use DefaultMaxMetadataTableRows. Enforced by
	// parseTablesStream against every table's declared row count.
	MaxMetadataTableRows uint32

	Logger log.Logger
}

func (o *Options) helper() *log.Helper {
	if o == nil || o.Logger == nil {
		return log.DefaultHelper()
	}
	return log.NewHelper(o.Logger)
}

func (o *Options) maxTableRows() uint32 {
	if o == nil || o.MaxMetadataTableRows == 0 {
		return DefaultMaxMetadataTableRows
	}
	return o.MaxMetadataTableRows
}

// FromImage locates the CLR data directory of an already-loaded PE image
// and parses its metadata root into an AssemblyDefinition.
func FromImage(img *peimage.Image, opts *Options) (*AssemblyDefinition, error) {
	helper := opts.helper()

	dir, ok := img.DataDirectoryEntry(peimage.ImageDirectoryEntryCLR)
	if !ok {
		return nil, &FormatError{Stream: "PE image", Message: "image has no CLR (.NET) data directory", Err: ErrBadImageFormat}
	}
	cor20, err := readCOR20Header(img, dir.VirtualAddress, dir.Size)
	if err != nil {
		return nil, err
	}
	mdOff, err := img.RVAToOffset(cor20.MetaDataRVA)
	if err != nil {
		return nil, &FormatError{Stream: "CLR header", Offset: cor20.MetaDataRVA, Message: "metadata RVA out of range", Err: err}
	}
	mdBytes, err := img.ReadBytes(mdOff, cor20.MetaDataSize)
	if err != nil {
		return nil, &FormatError{Stream: "CLR header", Offset: mdOff, Message: "truncated metadata root", Err: err}
	}

	md, err := parseMetadataRoot(mdBytes, helper, opts.maxTableRows())
	if err != nil {
		return nil, err
	}
	return newLoadedAssembly(md)
}

// FromBytes parses a complete PE image held in memory.
func FromBytes(data []byte, opts *Options) (*AssemblyDefinition, error) {
	img, err := peimage.NewFromBytes(data)
	if err != nil {
		return nil, &FormatError{Message: "failed to parse PE image", Err: err}
	}
	return FromImage(img, opts)
}

// FromFile memory-maps the file at path and parses it as a PE image.
func FromFile(path string, opts *Options) (*AssemblyDefinition, error) {
	img, err := peimage.Open(path)
	if err != nil {
		return nil, &FormatError{Message: "failed to open PE image", Err: err}
	}
	return FromImage(img, opts)
}

// FromReader parses a metadata root directly from a BinaryStreamReader
// positioned at its start, bypassing PE-image lookup entirely — useful
// for tests and for hosts that have already located the metadata blob.
func FromReader(r *BinaryStreamReader, opts *Options) (*AssemblyDefinition, error) {
	data, err := r.ReadBytesRef(r.Remaining())
	if err != nil {
		return nil, err
	}
	md, err := parseMetadataRoot(data, opts.helper(), opts.maxTableRows())
	if err != nil {
		return nil, err
	}
	return newLoadedAssembly(md)
}
