package clrmeta

import (
	"encoding/binary"
)

// BinaryStreamReader is a bounds-checked cursor over an in-memory byte
// range, the primitive every heap and table reader in this package is
// built on. It never panics on malformed input: every read returns
// ErrOutOfRange instead.
type BinaryStreamReader struct {
	data   []byte
	offset int
}

// NewBinaryStreamReader wraps data starting at offset 0.
func NewBinaryStreamReader(data []byte) *BinaryStreamReader {
	return &BinaryStreamReader{data: data}
}

// Offset returns the current read position.
func (r *BinaryStreamReader) Offset() int { return r.offset }

// SetOffset repositions the cursor; it is not itself bounds-checked so
// callers can seek to the exact end as a terminal state.
func (r *BinaryStreamReader) SetOffset(off int) { r.offset = off }

// Len returns the total number of bytes in the reader's range.
func (r *BinaryStreamReader) Len() int { return len(r.data) }

// Remaining returns the number of unread bytes.
func (r *BinaryStreamReader) Remaining() int { return len(r.data) - r.offset }

func (r *BinaryStreamReader) require(n int) error {
	if r.offset < 0 || n < 0 || r.offset+n > len(r.data) {
		return ErrOutOfRange
	}
	return nil
}

// ReadU8 reads one byte and advances the cursor.
func (r *BinaryStreamReader) ReadU8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

// ReadU16 reads a little-endian uint16 and advances the cursor.
func (r *BinaryStreamReader) ReadU16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32 and advances the cursor.
func (r *BinaryStreamReader) ReadU32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

// ReadU64 reads a little-endian uint64 and advances the cursor.
func (r *BinaryStreamReader) ReadU64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.offset:])
	r.offset += 8
	return v, nil
}

// ReadBytes copies n bytes out and advances the cursor.
func (r *BinaryStreamReader) ReadBytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.offset:r.offset+n])
	r.offset += n
	return out, nil
}

// ReadBytesRef returns a zero-copy view of the next n bytes; callers must
// not mutate it, and it is only valid as long as the backing image is.
func (r *BinaryStreamReader) ReadBytesRef(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	out := r.data[r.offset : r.offset+n]
	r.offset += n
	return out, nil
}

// PeekBytes returns a zero-copy view of the next n bytes without advancing.
func (r *BinaryStreamReader) PeekBytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	return r.data[r.offset : r.offset+n], nil
}

// Fork returns a new, independent reader over an absolute sub-range
// [offset, offset+length) of the same backing bytes; the parent's own
// cursor is unaffected.
func (r *BinaryStreamReader) Fork(offset, length int) (*BinaryStreamReader, error) {
	if offset < 0 || length < 0 || offset+length > len(r.data) {
		return nil, ErrOutOfRange
	}
	return &BinaryStreamReader{data: r.data[offset : offset+length]}, nil
}

// ReadCompressedUInt32 decodes an ECMA-335 §II.23.2 compressed unsigned
// integer: the top bits of the first byte select a 1, 2, or 4 byte
// encoding.
//
//	0xxxxxxx                           -> 7 bits,  value  0 .. 0x7F
//	10xxxxxx xxxxxxxx                  -> 14 bits, value  0 .. 0x3FFF
//	110xxxxx xxxxxxxx xxxxxxxx xxxxxxxx -> 29 bits, value 0 .. 0x1FFFFFFF
func (r *BinaryStreamReader) ReadCompressedUInt32() (uint32, error) {
	b0, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return (uint32(b0&0x3F) << 8) | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, err
		}
		return (uint32(b0&0x1F) << 24) | (uint32(rest[0]) << 16) |
			(uint32(rest[1]) << 8) | uint32(rest[2]), nil
	default:
		return 0, ErrOutOfRange
	}
}

// ReadCompressedInt32 decodes an ECMA-335 §II.23.2 compressed signed
// integer: the value is first decoded as an unsigned compressed integer of
// the same width, then rotated right by one bit, with bit 0 of the
// original encoding giving the sign.
func (r *BinaryStreamReader) ReadCompressedInt32() (int32, error) {
	start := r.offset
	b0, err := r.PeekBytes(1)
	if err != nil {
		return 0, err
	}
	var width int
	switch {
	case b0[0]&0x80 == 0:
		width = 1
	case b0[0]&0xC0 == 0x80:
		width = 2
	case b0[0]&0xE0 == 0xC0:
		width = 4
	default:
		return 0, ErrOutOfRange
	}
	u, err := r.ReadCompressedUInt32()
	if err != nil {
		r.offset = start
		return 0, err
	}
	negative := u&1 != 0
	v := int32(u >> 1)
	switch width {
	case 1:
		if negative {
			v -= 0x40
		}
	case 2:
		if negative {
			v -= 0x2000
		}
	case 4:
		if negative {
			v -= 0x10000000
		}
	}
	return v, nil
}
