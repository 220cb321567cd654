package clrmeta

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the broad category of a failure; callers
// match these with errors.Is rather than parsing message text.
var (
	// ErrBadImageFormat means the input is not a well-formed CLI metadata
	// image: missing BSJB signature, a missing tables stream, or a tables
	// stream header that fails its own internal consistency checks.
	ErrBadImageFormat = errors.New("clrmeta: bad metadata image format")

	// ErrOutOfRange means a read (heap index, row index, byte offset)
	// fell outside the bounds of the stream or table it addresses.
	ErrOutOfRange = errors.New("clrmeta: offset out of range")

	// ErrInvalidCodedIndex means a coded index's tag selected a table
	// outside that coded index kind's candidate set.
	ErrInvalidCodedIndex = errors.New("clrmeta: invalid coded index tag")

	// ErrNotSerialized means an operation that requires a disk-backed,
	// loaded definition was called on a hand-built (in-memory-only) one.
	ErrNotSerialized = errors.New("clrmeta: member is not backed by a serialized image")

	// ErrAlreadyOwned means an element was added to an OwnedCollection
	// while it already belonged to another collection.
	ErrAlreadyOwned = errors.New("clrmeta: element already has an owner")
)

// FormatError reports a construction-time failure while decoding a stream
// or table, identifying where in the image the failure occurred.
type FormatError struct {
	Stream  string // stream or table name, e.g. "#~", "TypeDef"
	Table   string // metadata table name, when the failure is row-scoped
	Offset  uint32 // byte offset within Stream
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	loc := e.Stream
	if e.Table != "" {
		loc = fmt.Sprintf("%s/%s", e.Stream, e.Table)
	}
	if e.Err != nil {
		return fmt.Sprintf("clrmeta: %s at offset 0x%x: %s: %v", loc, e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("clrmeta: %s at offset 0x%x: %s", loc, e.Offset, e.Message)
}

func (e *FormatError) Unwrap() error { return e.Err }

// SignatureError reports a failure decoding an ECMA-335 §II.23 signature
// blob, identifying the blob heap index and the byte offset within it.
type SignatureError struct {
	BlobIndex  uint32
	ByteOffset int
	Message    string
	Err        error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clrmeta: signature blob 0x%x at byte %d: %s: %v",
			e.BlobIndex, e.ByteOffset, e.Message, e.Err)
	}
	return fmt.Sprintf("clrmeta: signature blob 0x%x at byte %d: %s",
		e.BlobIndex, e.ByteOffset, e.Message)
}

func (e *SignatureError) Unwrap() error { return e.Err }
