// Package peimage loads just enough of a PE/COFF image to find the CLR
// (.NET) data directory and translate its RVA into a file offset. Full PE
// section/import/export/resource parsing is out of scope here; this is the
// minimal loader the metadata decoder needs as its entry point.
package peimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Sentinel errors for image loading failures.
var (
	ErrTooSmall           = errors.New("peimage: file too small to be a PE image")
	ErrDOSMagicNotFound   = errors.New("peimage: MZ signature not found")
	ErrInvalidLfanew      = errors.New("peimage: e_lfanew out of bounds")
	ErrNTSignatureNotFound = errors.New("peimage: PE signature not found")
	ErrBadOptionalMagic   = errors.New("peimage: unrecognized optional header magic")
	ErrOutOfRange         = errors.New("peimage: read outside image bounds")
)

const (
	imageDOSSignature    = 0x5A4D // "MZ"
	imageNTSignature     = 0x00004550 // "PE\x00\x00"
	imageNTOptionalHdr32 = 0x10b
	imageNTOptionalHdr64 = 0x20b

	// ImageDirectoryEntryCLR is the data directory index for the CLR
	// (COM+ 2.0/.NET) header, ECMA-335 II.25.3.3.
	ImageDirectoryEntryCLR = 14

	numDataDirectories = 16
)

// DataDirectory is one entry of the optional header's data directory array.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type section struct {
	name             string
	virtualAddress   uint32
	virtualSize      uint32
	sizeOfRawData    uint32
	pointerToRawData uint32
}

// Image is a read-only, memory-mapped (or in-memory) view of a PE file,
// parsed just far enough to resolve RVAs and locate data directories.
type Image struct {
	data   []byte
	region mmap.MMap // non-nil when backed by an mmap'd file; Close unmaps it

	is64                bool
	sectionAlignment    uint32
	fileAlignment       uint32
	numberOfRvaAndSizes uint32
	directories         [numDataDirectories]DataDirectory
	sections            []section
}

// Open memory-maps the file at path and parses its DOS/NT/section headers.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	img := &Image{data: region, region: region}
	if err := img.parse(); err != nil {
		region.Unmap()
		return nil, err
	}
	return img, nil
}

// NewFromBytes parses an already-loaded in-memory PE image.
func NewFromBytes(data []byte) (*Image, error) {
	img := &Image{data: data}
	if err := img.parse(); err != nil {
		return nil, err
	}
	return img, nil
}

// Close unmaps the backing file, if this Image was opened with Open.
func (img *Image) Close() error {
	if img.region != nil {
		return img.region.Unmap()
	}
	return nil
}

func (img *Image) parse() error {
	if len(img.data) < 0x40 {
		return ErrTooSmall
	}
	if binary.LittleEndian.Uint16(img.data[0:2]) != imageDOSSignature {
		return ErrDOSMagicNotFound
	}
	lfanew := binary.LittleEndian.Uint32(img.data[0x3c:0x40])
	if lfanew < 4 || uint64(lfanew)+24 > uint64(len(img.data)) {
		return ErrInvalidLfanew
	}

	ntOff := lfanew
	if binary.LittleEndian.Uint32(img.data[ntOff:ntOff+4]) != imageNTSignature {
		return ErrNTSignatureNotFound
	}

	fileHeaderOff := ntOff + 4
	numberOfSections := binary.LittleEndian.Uint16(img.data[fileHeaderOff+2 : fileHeaderOff+4])
	sizeOfOptionalHeader := binary.LittleEndian.Uint16(img.data[fileHeaderOff+16 : fileHeaderOff+18])

	optHeaderOff := fileHeaderOff + 20
	if uint64(optHeaderOff)+2 > uint64(len(img.data)) {
		return ErrOutOfRange
	}
	magic := binary.LittleEndian.Uint16(img.data[optHeaderOff : optHeaderOff+2])

	// SectionAlignment sits at the same relative offset (32) in both the
	// PE32 and PE32+ optional headers: the fields ahead of it differ only
	// in BaseOfData (32-bit only) vs. ImageBase widening from 4 to 8 bytes,
	// which cancel out.
	var ddCountOff uint32
	switch magic {
	case imageNTOptionalHdr32:
		img.is64 = false
		ddCountOff = optHeaderOff + 92
	case imageNTOptionalHdr64:
		img.is64 = true
		ddCountOff = optHeaderOff + 108
	default:
		return ErrBadOptionalMagic
	}
	sectionAlignOff := optHeaderOff + 32
	if uint64(sectionAlignOff)+8 > uint64(len(img.data)) {
		return ErrOutOfRange
	}
	img.sectionAlignment = binary.LittleEndian.Uint32(img.data[sectionAlignOff : sectionAlignOff+4])
	img.fileAlignment = binary.LittleEndian.Uint32(img.data[sectionAlignOff+4 : sectionAlignOff+8])

	if uint64(ddCountOff)+4 > uint64(len(img.data)) {
		return ErrOutOfRange
	}
	img.numberOfRvaAndSizes = binary.LittleEndian.Uint32(img.data[ddCountOff : ddCountOff+4])

	ddOff := ddCountOff + 4
	n := int(img.numberOfRvaAndSizes)
	if n > numDataDirectories {
		n = numDataDirectories
	}
	for i := 0; i < n; i++ {
		base := ddOff + uint32(i*8)
		if uint64(base)+8 > uint64(len(img.data)) {
			break
		}
		img.directories[i] = DataDirectory{
			VirtualAddress: binary.LittleEndian.Uint32(img.data[base : base+4]),
			Size:           binary.LittleEndian.Uint32(img.data[base+4 : base+8]),
		}
	}

	sectionTableOff := optHeaderOff + uint32(sizeOfOptionalHeader)
	const secHdrSize = 40
	img.sections = make([]section, 0, numberOfSections)
	for i := uint16(0); i < numberOfSections; i++ {
		base := sectionTableOff + uint32(i)*secHdrSize
		if uint64(base)+secHdrSize > uint64(len(img.data)) {
			break
		}
		name := bytes.TrimRight(img.data[base:base+8], "\x00")
		img.sections = append(img.sections, section{
			name:             string(name),
			virtualSize:      binary.LittleEndian.Uint32(img.data[base+8 : base+12]),
			virtualAddress:   binary.LittleEndian.Uint32(img.data[base+12 : base+16]),
			sizeOfRawData:    binary.LittleEndian.Uint32(img.data[base+16 : base+20]),
			pointerToRawData: binary.LittleEndian.Uint32(img.data[base+20 : base+24]),
		})
	}

	return nil
}

// Is64 reports whether this is a PE32+ (64-bit) image.
func (img *Image) Is64() bool { return img.is64 }

// DataDirectoryEntry returns the index-th data directory entry, or the
// zero value and false if the entry is absent (the image declares fewer
// than index+1 entries) or empty (both its address and size are zero).
func (img *Image) DataDirectoryEntry(index int) (DataDirectory, bool) {
	if index < 0 || index >= numDataDirectories {
		return DataDirectory{}, false
	}
	d := img.directories[index]
	return d, d.VirtualAddress != 0 || d.Size != 0
}

func (img *Image) adjustFileAlignment(v uint32) uint32 {
	if img.fileAlignment != 0 && img.fileAlignment < 0x200 {
		return v
	}
	if img.fileAlignment == 0 {
		return v
	}
	return (v / img.fileAlignment) * img.fileAlignment
}

func (img *Image) adjustSectionAlignment(v uint32) uint32 {
	if img.sectionAlignment == 0 {
		return v
	}
	return (v / img.sectionAlignment) * img.sectionAlignment
}

// RVAToOffset translates a relative virtual address into a file offset,
// mirroring the teacher's section-walk-then-fallback-to-identity behavior.
func (img *Image) RVAToOffset(rva uint32) (uint32, error) {
	for _, s := range img.sections {
		va := img.adjustSectionAlignment(s.virtualAddress)
		size := s.sizeOfRawData
		if size < s.virtualSize {
			size = s.virtualSize
		}
		if rva >= va && rva < va+size {
			ptr := img.adjustFileAlignment(s.pointerToRawData)
			return rva - va + ptr, nil
		}
	}
	// No owning section (common for headers, or sectionless images): treat
	// the RVA as already being a flat file offset when it fits.
	if rva < uint32(len(img.data)) {
		return rva, nil
	}
	return 0, ErrOutOfRange
}

// ReadBytes returns a view into the image's raw bytes at [offset, offset+length).
func (img *Image) ReadBytes(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(img.data)) {
		return nil, ErrOutOfRange
	}
	return img.data[offset:end], nil
}

// Size returns the total size of the underlying image bytes.
func (img *Image) Size() uint32 { return uint32(len(img.data)) }
