package clrmeta

// Version is an assembly's four-part version number.
type Version struct {
	Major, Minor, Build, Revision uint16
}

// AssemblyDefinition is the manifest-carrying root of a loaded or
// hand-built .NET assembly: name, version, culture, public key, and the
// ordered list of modules it owns (per spec.md §3's Data Model).
type AssemblyDefinition struct {
	token MetadataToken
	md    *Metadata
	rid   uint32 // Assembly table row id; 0 for hand-built

	name       lazyCell[string]
	version    lazyCell[Version]
	culture    lazyCell[string]
	publicKey  lazyCell[[]byte]
	hashAlgID  lazyCell[uint32]
	flags      lazyCell[uint32]

	modules *OwnedCollection[*ModuleDefinition]
}

// NewAssemblyDefinition creates a hand-built assembly with the given name
// and an empty module list; add a manifest module with AddModule.
func NewAssemblyDefinition(name string) *AssemblyDefinition {
	a := &AssemblyDefinition{token: NewMetadataToken(Assembly, 0)}
	a.name.Set(name)
	a.modules = NewOwnedCollection[*ModuleDefinition](a)
	return a
}

func newLoadedAssembly(md *Metadata) (*AssemblyDefinition, error) {
	if md.Tables.RowCount(Assembly) == 0 {
		return nil, &FormatError{Stream: "Assembly", Message: "image has no assembly manifest (netmodule?)", Err: ErrBadImageFormat}
	}
	a := &AssemblyDefinition{token: NewMetadataToken(Assembly, 1), md: md, rid: 1}
	a.modules = NewOwnedCollection[*ModuleDefinition](a)

	mod, err := newLoadedModule(md, 1, a)
	if err != nil {
		return nil, err
	}
	if err := a.modules.Add(mod); err != nil {
		return nil, err
	}
	return a, nil
}

// Token returns the assembly's metadata token.
func (a *AssemblyDefinition) Token() MetadataToken { return a.token }

// Name returns the assembly's simple name, e.g. "HelloWorld".
func (a *AssemblyDefinition) Name() (string, error) {
	return a.name.Get(func() (string, error) {
		if a.md == nil {
			return "", nil
		}
		idx, err := a.md.Tables.Column(Assembly, a.rid, "Name")
		if err != nil {
			return "", err
		}
		return a.md.Strings.GetString(idx)
	})
}

// SetName overrides the assembly's name.
func (a *AssemblyDefinition) SetName(name string) { a.name.Set(name) }

// Version returns the assembly's four-part version number.
func (a *AssemblyDefinition) Version() (Version, error) {
	return a.version.Get(func() (Version, error) {
		if a.md == nil {
			return Version{}, nil
		}
		major, err := a.md.Tables.Column(Assembly, a.rid, "MajorVersion")
		if err != nil {
			return Version{}, err
		}
		minor, err := a.md.Tables.Column(Assembly, a.rid, "MinorVersion")
		if err != nil {
			return Version{}, err
		}
		build, err := a.md.Tables.Column(Assembly, a.rid, "BuildNumber")
		if err != nil {
			return Version{}, err
		}
		rev, err := a.md.Tables.Column(Assembly, a.rid, "RevisionNumber")
		if err != nil {
			return Version{}, err
		}
		return Version{Major: uint16(major), Minor: uint16(minor), Build: uint16(build), Revision: uint16(rev)}, nil
	})
}

// SetVersion overrides the assembly's version.
func (a *AssemblyDefinition) SetVersion(v Version) { a.version.Set(v) }

// Culture returns the assembly's culture string ("" for culture-neutral).
func (a *AssemblyDefinition) Culture() (string, error) {
	return a.culture.Get(func() (string, error) {
		if a.md == nil {
			return "", nil
		}
		idx, err := a.md.Tables.Column(Assembly, a.rid, "Culture")
		if err != nil {
			return "", err
		}
		return a.md.Strings.GetString(idx)
	})
}

// PublicKey returns the assembly's full public key, or nil if unsigned.
func (a *AssemblyDefinition) PublicKey() ([]byte, error) {
	return a.publicKey.Get(func() ([]byte, error) {
		if a.md == nil {
			return nil, nil
		}
		idx, err := a.md.Tables.Column(Assembly, a.rid, "PublicKey")
		if err != nil {
			return nil, err
		}
		return a.md.Blob.GetBlobBytes(idx)
	})
}

// HashAlgorithm returns the assembly's declared hash algorithm id.
func (a *AssemblyDefinition) HashAlgorithm() (uint32, error) {
	return a.hashAlgID.Get(func() (uint32, error) {
		if a.md == nil {
			return 0, nil
		}
		return a.md.Tables.Column(Assembly, a.rid, "HashAlgId")
	})
}

// Attributes returns the assembly's AssemblyFlags bitmask.
func (a *AssemblyDefinition) Attributes() (uint32, error) {
	return a.flags.Get(func() (uint32, error) {
		if a.md == nil {
			return 0, nil
		}
		return a.md.Tables.Column(Assembly, a.rid, "Flags")
	})
}

// Modules returns the ordered list of modules this assembly owns.
func (a *AssemblyDefinition) Modules() []*ModuleDefinition { return a.modules.Slice() }

// ManifestModule returns the first (and, for a loaded assembly, only)
// module, which carries the manifest.
func (a *AssemblyDefinition) ManifestModule() *ModuleDefinition {
	if a.modules.Len() == 0 {
		return nil
	}
	return a.modules.At(0)
}

// AddModule adds mod to this assembly's module list.
func (a *AssemblyDefinition) AddModule(mod *ModuleDefinition) error {
	return a.modules.Add(mod)
}

