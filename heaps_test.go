package clrmeta

import (
	"errors"
	"testing"
)

func TestStringsStreamGetString(t *testing.T) {
	data := []byte{0x00, 'H', 'i', 0x00, 'B', 'y', 'e', 0x00}
	s := newStringsStream(data)

	if got, err := s.GetString(0); err != nil || got != "" {
		t.Fatalf("GetString(0) = %q, %v; want \"\", nil", got, err)
	}
	if got, err := s.GetString(1); err != nil || got != "Hi" {
		t.Fatalf("GetString(1) = %q, %v; want \"Hi\", nil", got, err)
	}
	if got, err := s.GetString(4); err != nil || got != "Bye" {
		t.Fatalf("GetString(4) = %q, %v; want \"Bye\", nil", got, err)
	}
	if _, err := s.GetString(100); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("GetString(100) err = %v; want ErrOutOfRange", err)
	}
}

func TestBlobStreamGetBlob(t *testing.T) {
	data := []byte{0x00, 0x03, 'a', 'b', 'c'}
	b := newBlobStream(data)

	empty, err := b.GetBlob(0)
	if err != nil || empty.Remaining() != 0 {
		t.Fatalf("GetBlob(0) = %v, %v; want empty reader, nil", empty, err)
	}
	got, err := b.GetBlobBytes(1)
	if err != nil || string(got) != "abc" {
		t.Fatalf("GetBlobBytes(1) = %q, %v; want \"abc\", nil", got, err)
	}
}

func TestGuidStreamGetGUID(t *testing.T) {
	data := make([]byte, 32)
	for i := range data[16:] {
		data[16+i] = byte(i + 1)
	}
	g := newGuidStream(data)

	zero, err := g.GetGUID(0)
	if err != nil || zero != ([16]byte{}) {
		t.Fatalf("GetGUID(0) = %v, %v; want zero GUID, nil", zero, err)
	}
	second, err := g.GetGUID(2)
	if err != nil {
		t.Fatalf("GetGUID(2) error: %v", err)
	}
	if second[0] != 1 || second[15] != 16 {
		t.Fatalf("GetGUID(2) = %v; want bytes 1..16", second)
	}
	if _, err := g.GetGUID(3); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("GetGUID(3) err = %v; want ErrOutOfRange", err)
	}
}

func TestUserStringsStreamGetString(t *testing.T) {
	// "Hi" as UTF-16LE (4 bytes) plus the trailing ECMA-335 flag byte,
	// length-prefixed with a 1-byte compressed uint (5).
	data := []byte{0x00, 0x05, 'H', 0x00, 'i', 0x00, 0x00}
	u := newUserStringsStream(data)

	got, err := u.GetString(1)
	if err != nil || got != "Hi" {
		t.Fatalf("GetString(1) = %q, %v; want \"Hi\", nil", got, err)
	}
	if got, err := u.GetString(0); err != nil || got != "" {
		t.Fatalf("GetString(0) = %q, %v; want \"\", nil", got, err)
	}
}
