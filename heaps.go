package clrmeta

import (
	"golang.org/x/text/encoding/unicode"
)

// StringsStream decodes the `#Strings` heap: NUL-terminated UTF-8 strings
// addressed by byte offset, grounded on the teacher's getStringAtOffset.
type StringsStream struct {
	data []byte
}

func newStringsStream(data []byte) *StringsStream { return &StringsStream{data: data} }

// GetString returns the string starting at index, or "" for index 0.
func (s *StringsStream) GetString(index uint32) (string, error) {
	if s == nil || index == 0 {
		return "", nil
	}
	if uint64(index) >= uint64(len(s.data)) {
		return "", ErrOutOfRange
	}
	end := index
	for end < uint32(len(s.data)) && s.data[end] != 0 {
		end++
	}
	if end >= uint32(len(s.data)) {
		return "", ErrOutOfRange
	}
	return string(s.data[index:end]), nil
}

// BlobStream decodes the `#Blob` heap: each entry is a compressed-uint
// length prefix followed by that many bytes.
type BlobStream struct {
	data []byte
}

func newBlobStream(data []byte) *BlobStream { return &BlobStream{data: data} }

// GetBlob returns a reader over the length-prefixed slice at index.
func (b *BlobStream) GetBlob(index uint32) (*BinaryStreamReader, error) {
	if b == nil || index == 0 {
		return NewBinaryStreamReader(nil), nil
	}
	if uint64(index) >= uint64(len(b.data)) {
		return nil, ErrOutOfRange
	}
	r := NewBinaryStreamReader(b.data[index:])
	length, err := r.ReadCompressedUInt32()
	if err != nil {
		return nil, err
	}
	body, err := r.ReadBytesRef(int(length))
	if err != nil {
		return nil, err
	}
	return NewBinaryStreamReader(body), nil
}

// GetBlobBytes is a convenience wrapper returning the raw bytes of the blob.
func (b *BlobStream) GetBlobBytes(index uint32) ([]byte, error) {
	r, err := b.GetBlob(index)
	if err != nil {
		return nil, err
	}
	return r.ReadBytesRef(r.Remaining())
}

// GuidStream decodes the `#GUID` heap: a 1-based array of 16-byte values.
type GuidStream struct {
	data []byte
}

func newGuidStream(data []byte) *GuidStream { return &GuidStream{data: data} }

// GetGUID returns the 1-based index-th GUID, or the zero GUID for index 0.
func (g *GuidStream) GetGUID(index uint32) ([16]byte, error) {
	var guid [16]byte
	if g == nil || index == 0 {
		return guid, nil
	}
	off := (uint64(index) - 1) * 16
	if off+16 > uint64(len(g.data)) {
		return guid, ErrOutOfRange
	}
	copy(guid[:], g.data[off:off+16])
	return guid, nil
}

// UserStringsStream decodes the `#US` heap: length-prefixed UTF-16LE blobs,
// each followed by a single trailing byte signaling whether the string
// contains any non-ASCII or control characters (ECMA-335 §II.24.2.4).
type UserStringsStream struct {
	data []byte
}

func newUserStringsStream(data []byte) *UserStringsStream {
	return &UserStringsStream{data: data}
}

// GetString decodes the UTF-16 string at index.
func (u *UserStringsStream) GetString(index uint32) (string, error) {
	if u == nil || index == 0 {
		return "", nil
	}
	if uint64(index) >= uint64(len(u.data)) {
		return "", ErrOutOfRange
	}
	r := NewBinaryStreamReader(u.data[index:])
	length, err := r.ReadCompressedUInt32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	// The trailing byte is a flag, not part of the UTF-16 payload.
	payloadLen := int(length) - 1
	if payloadLen < 0 {
		payloadLen = int(length)
	}
	body, err := r.ReadBytesRef(payloadLen)
	if err != nil {
		return "", err
	}
	// A fresh Decoder per call: transform.Transformer is stateful and
	// GetString has no way to serialize concurrent readers of the same
	// stream, so sharing one decoder would race.
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(body)
	if err != nil {
		return "", &FormatError{Stream: "#US", Offset: index, Message: "invalid UTF-16 payload", Err: err}
	}
	return string(out), nil
}
