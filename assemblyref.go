package clrmeta

import (
	"bytes"
	"fmt"
	"strings"
)

// AssemblyFlags mirrors ECMA-335 §II.23.1.2's Flags column, shared by
// Assembly and AssemblyRef.
type AssemblyFlags uint32

const (
	AssemblyPublicKey            AssemblyFlags = 0x0001
	AssemblyRetargetable         AssemblyFlags = 0x0100
	AssemblyContentTypeMask      AssemblyFlags = 0x0E00
	AssemblyContentTypeDefault   AssemblyFlags = 0x0000
	AssemblyContentTypeWinMD     AssemblyFlags = 0x0200
)

// AssemblyDescriptor is the (name, version, culture, public-key-token)
// tuple identifying a referenced assembly, used as the resolver's cache
// key (spec.md §3/§4.H).
type AssemblyDescriptor struct {
	Name             string
	Version          Version
	Culture          string
	PublicKeyOrToken []byte
}

// cacheKey normalizes the descriptor per spec.md §4.H's equality rule:
// name case-sensitive, version full 4-tuple, culture case-insensitive
// (null ≡ ""), public-key-token byte-equal.
func (d AssemblyDescriptor) cacheKey() string {
	return fmt.Sprintf("%s\x00%d.%d.%d.%d\x00%s\x00%x",
		d.Name, d.Version.Major, d.Version.Minor, d.Version.Build, d.Version.Revision,
		strings.ToLower(d.Culture), d.PublicKeyOrToken)
}

// Equal reports whether d and other refer to the same assembly under
// spec.md §4.H's comparison rule.
func (d AssemblyDescriptor) Equal(other AssemblyDescriptor) bool {
	return d.Name == other.Name &&
		d.Version == other.Version &&
		strings.EqualFold(d.Culture, other.Culture) &&
		bytes.Equal(d.PublicKeyOrToken, other.PublicKeyOrToken)
}

// AssemblyReference is a reference to an external assembly recorded in a
// module's AssemblyRef table: name, version, culture, public-key-token,
// and flags. It acts as an AssemblyDescriptor (spec.md §3).
type AssemblyReference struct {
	ownerSlot

	token MetadataToken
	md    *Metadata
	rid   uint32

	name             lazyCell[string]
	version          lazyCell[Version]
	culture          lazyCell[string]
	publicKeyOrToken lazyCell[[]byte]
	hashValue        lazyCell[[]byte]
	flags            lazyCell[AssemblyFlags]
}

// NewAssemblyReference creates a hand-built, unowned assembly reference.
func NewAssemblyReference(name string, v Version) *AssemblyReference {
	r := &AssemblyReference{token: NewMetadataToken(AssemblyRef, 0)}
	r.name.Set(name)
	r.version.Set(v)
	return r
}

func newLoadedAssemblyReference(md *Metadata, rid uint32) *AssemblyReference {
	return &AssemblyReference{token: NewMetadataToken(AssemblyRef, rid), md: md, rid: rid}
}

// Token returns the reference's metadata token.
func (r *AssemblyReference) Token() MetadataToken { return r.token }

// Name returns the referenced assembly's simple name.
func (r *AssemblyReference) Name() (string, error) {
	return r.name.Get(func() (string, error) {
		if r.md == nil {
			return "", nil
		}
		idx, err := r.md.Tables.Column(AssemblyRef, r.rid, "Name")
		if err != nil {
			return "", err
		}
		return r.md.Strings.GetString(idx)
	})
}

// SetName overrides the referenced assembly's name.
func (r *AssemblyReference) SetName(name string) { r.name.Set(name) }

// Version returns the referenced assembly's four-part version number.
func (r *AssemblyReference) Version() (Version, error) {
	return r.version.Get(func() (Version, error) {
		if r.md == nil {
			return Version{}, nil
		}
		major, err := r.md.Tables.Column(AssemblyRef, r.rid, "MajorVersion")
		if err != nil {
			return Version{}, err
		}
		minor, err := r.md.Tables.Column(AssemblyRef, r.rid, "MinorVersion")
		if err != nil {
			return Version{}, err
		}
		build, err := r.md.Tables.Column(AssemblyRef, r.rid, "BuildNumber")
		if err != nil {
			return Version{}, err
		}
		rev, err := r.md.Tables.Column(AssemblyRef, r.rid, "RevisionNumber")
		if err != nil {
			return Version{}, err
		}
		return Version{Major: uint16(major), Minor: uint16(minor), Build: uint16(build), Revision: uint16(rev)}, nil
	})
}

// Culture returns the referenced assembly's culture string.
func (r *AssemblyReference) Culture() (string, error) {
	return r.culture.Get(func() (string, error) {
		if r.md == nil {
			return "", nil
		}
		idx, err := r.md.Tables.Column(AssemblyRef, r.rid, "Culture")
		if err != nil {
			return "", err
		}
		return r.md.Strings.GetString(idx)
	})
}

// PublicKeyOrToken returns the raw public key or public key token blob.
func (r *AssemblyReference) PublicKeyOrToken() ([]byte, error) {
	return r.publicKeyOrToken.Get(func() ([]byte, error) {
		if r.md == nil {
			return nil, nil
		}
		idx, err := r.md.Tables.Column(AssemblyRef, r.rid, "PublicKeyOrToken")
		if err != nil {
			return nil, err
		}
		return r.md.Blob.GetBlobBytes(idx)
	})
}

// HashValue returns the reference's recorded hash of the target assembly.
func (r *AssemblyReference) HashValue() ([]byte, error) {
	return r.hashValue.Get(func() ([]byte, error) {
		if r.md == nil {
			return nil, nil
		}
		idx, err := r.md.Tables.Column(AssemblyRef, r.rid, "HashValue")
		if err != nil {
			return nil, err
		}
		return r.md.Blob.GetBlobBytes(idx)
	})
}

// Attributes returns the reference's AssemblyFlags bitmask.
func (r *AssemblyReference) Attributes() (AssemblyFlags, error) {
	return r.flags.Get(func() (AssemblyFlags, error) {
		if r.md == nil {
			return 0, nil
		}
		raw, err := r.md.Tables.Column(AssemblyRef, r.rid, "Flags")
		return AssemblyFlags(raw), err
	})
}

// Descriptor builds the AssemblyDescriptor this reference identifies,
// for use as an AssemblyResolver.Resolve argument.
func (r *AssemblyReference) Descriptor() (AssemblyDescriptor, error) {
	name, err := r.Name()
	if err != nil {
		return AssemblyDescriptor{}, err
	}
	version, err := r.Version()
	if err != nil {
		return AssemblyDescriptor{}, err
	}
	culture, err := r.Culture()
	if err != nil {
		return AssemblyDescriptor{}, err
	}
	key, err := r.PublicKeyOrToken()
	if err != nil {
		return AssemblyDescriptor{}, err
	}
	return AssemblyDescriptor{Name: name, Version: version, Culture: culture, PublicKeyOrToken: key}, nil
}
