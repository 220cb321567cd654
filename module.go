package clrmeta

import "sync"

// ModuleDefinition is the container holding a single PE file's types,
// assembly references, and metadata tables, per spec.md §3.
type ModuleDefinition struct {
	ownerSlot // weak back-ref to the owning AssemblyDefinition

	token MetadataToken
	md    *Metadata
	rid   uint32 // Module table row id; 0 for hand-built

	name       lazyCell[string]
	mvid       lazyCell[[16]byte]
	encID      lazyCell[[16]byte]
	encBaseID  lazyCell[[16]byte]
	generation lazyCell[uint16]

	topLevelTypes      *OwnedCollection[*TypeDefinition]
	assemblyReferences *OwnedCollection[*AssemblyReference]

	memberCache sync.Map // MetadataToken -> member, for LookupMember
}

// NewModuleDefinition creates a hand-built, owner-less module.
func NewModuleDefinition(name string) *ModuleDefinition {
	m := &ModuleDefinition{token: NewMetadataToken(Module, 0)}
	m.name.Set(name)
	m.topLevelTypes = NewOwnedCollection[*TypeDefinition](m)
	m.assemblyReferences = NewOwnedCollection[*AssemblyReference](m)
	return m
}

func newLoadedModule(md *Metadata, rid uint32, owner *AssemblyDefinition) (*ModuleDefinition, error) {
	m := &ModuleDefinition{token: NewMetadataToken(Module, rid), md: md, rid: rid}
	m.setOwner(owner)
	m.topLevelTypes = NewOwnedCollection[*TypeDefinition](m)
	m.assemblyReferences = NewOwnedCollection[*AssemblyReference](m)

	typeDefCount := md.Tables.RowCount(TypeDef)
	types := make([]*TypeDefinition, 0, typeDefCount)
	for r := uint32(1); r <= typeDefCount; r++ {
		types = append(types, newLoadedTypeDefinition(md, r, m))
	}

	// Wire the nested-class tree: NestedClass pairs (nested, enclosing).
	// A type not appearing as a "nested" member of any pair is top-level.
	nestedOf := make(map[uint32]uint32, md.Tables.RowCount(NestedClass))
	for r := uint32(1); r <= md.Tables.RowCount(NestedClass); r++ {
		nestedRid, err := m.typeRowRid(r)
		if err != nil {
			return nil, err
		}
		enclosingRid, err := md.Tables.Column(NestedClass, r, "EnclosingClass")
		if err != nil {
			return nil, err
		}
		nestedOf[nestedRid] = enclosingRid
	}

	for i, t := range types {
		rid := uint32(i + 1)
		if enclosingRid, ok := nestedOf[rid]; ok {
			if enclosingRid == 0 || int(enclosingRid) > len(types) {
				return nil, &FormatError{Table: "NestedClass", Message: "enclosing class rid out of range", Err: ErrOutOfRange}
			}
			if err := types[enclosingRid-1].nestedTypes.Add(t); err != nil {
				return nil, err
			}
		} else {
			if err := m.topLevelTypes.Add(t); err != nil {
				return nil, err
			}
		}
	}

	for r := uint32(1); r <= md.Tables.RowCount(AssemblyRef); r++ {
		ref := newLoadedAssemblyReference(md, r)
		if err := m.assemblyReferences.Add(ref); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *ModuleDefinition) typeRowRid(nestedClassRid uint32) (uint32, error) {
	return m.md.Tables.Column(NestedClass, nestedClassRid, "NestedClass")
}

// Token returns the module's metadata token.
func (m *ModuleDefinition) Token() MetadataToken { return m.token }

// Assembly returns the owning AssemblyDefinition, or nil if this module
// has not been added to one.
func (m *ModuleDefinition) Assembly() *AssemblyDefinition {
	owner := m.getOwner()
	if owner == nil {
		return nil
	}
	return owner.(*AssemblyDefinition)
}

// Name returns the module's file name, e.g. "HelloWorld.dll".
func (m *ModuleDefinition) Name() (string, error) {
	return m.name.Get(func() (string, error) {
		if m.md == nil {
			return "", nil
		}
		idx, err := m.md.Tables.Column(Module, m.rid, "Name")
		if err != nil {
			return "", err
		}
		return m.md.Strings.GetString(idx)
	})
}

// SetName overrides the module's name.
func (m *ModuleDefinition) SetName(name string) { m.name.Set(name) }

// MVID returns the GUID uniquely identifying this compilation of the module.
func (m *ModuleDefinition) MVID() ([16]byte, error) {
	return m.mvid.Get(func() ([16]byte, error) {
		if m.md == nil {
			return [16]byte{}, nil
		}
		idx, err := m.md.Tables.Column(Module, m.rid, "Mvid")
		if err != nil {
			return [16]byte{}, err
		}
		return m.md.GUID.GetGUID(idx)
	})
}

// EncID returns the Edit-and-Continue identifier GUID for this generation.
func (m *ModuleDefinition) EncID() ([16]byte, error) {
	return m.encID.Get(func() ([16]byte, error) {
		if m.md == nil {
			return [16]byte{}, nil
		}
		idx, err := m.md.Tables.Column(Module, m.rid, "EncId")
		if err != nil {
			return [16]byte{}, err
		}
		return m.md.GUID.GetGUID(idx)
	})
}

// EncBaseID returns the Edit-and-Continue base generation's GUID.
func (m *ModuleDefinition) EncBaseID() ([16]byte, error) {
	return m.encBaseID.Get(func() ([16]byte, error) {
		if m.md == nil {
			return [16]byte{}, nil
		}
		idx, err := m.md.Tables.Column(Module, m.rid, "EncBaseId")
		if err != nil {
			return [16]byte{}, err
		}
		return m.md.GUID.GetGUID(idx)
	})
}

// TopLevelTypes returns the types directly contained by the module (those
// with no declaring type).
func (m *ModuleDefinition) TopLevelTypes() []*TypeDefinition { return m.topLevelTypes.Slice() }

// AddTopLevelType adds t as a top-level type of this module.
func (m *ModuleDefinition) AddTopLevelType(t *TypeDefinition) error {
	t.module = m
	return m.topLevelTypes.Add(t)
}

// AssemblyReferences returns the module's referenced-assembly descriptors.
func (m *ModuleDefinition) AssemblyReferences() []*AssemblyReference {
	return m.assemblyReferences.Slice()
}

// AddAssemblyReference adds ref to this module's reference list.
func (m *ModuleDefinition) AddAssemblyReference(ref *AssemblyReference) error {
	return m.assemblyReferences.Add(ref)
}

// LookupMember resolves a token to its concrete member within this
// module. It requires a loaded (serialized) module: calling it on a
// hand-built module returns ErrNotSerialized, per spec.md §9's resolved
// Open Question.
func (m *ModuleDefinition) LookupMember(token MetadataToken) (any, error) {
	if m.md == nil {
		return nil, ErrNotSerialized
	}
	if cached, ok := m.memberCache.Load(token); ok {
		return cached, nil
	}

	rid := token.RID()
	if rid == 0 {
		return nil, nil
	}
	if rid > m.md.Tables.RowCount(token.Table()) {
		return nil, ErrOutOfRange
	}

	var member any
	switch token.Table() {
	case TypeDef:
		member = m.findTypeDef(rid)
	case MethodDef:
		member = newLoadedMethodDefinition(m.md, rid, m)
	case GenericParam:
		member = newLoadedGenericParameter(m.md, rid, m)
	case AssemblyRef:
		member = newLoadedAssemblyReference(m.md, rid)
	default:
		return nil, ErrNotSerialized
	}

	actual, _ := m.memberCache.LoadOrStore(token, member)
	return actual, nil
}

func (m *ModuleDefinition) findTypeDef(rid uint32) *TypeDefinition {
	var found *TypeDefinition
	var walk func(types []*TypeDefinition)
	walk = func(types []*TypeDefinition) {
		for _, t := range types {
			if found != nil {
				return
			}
			if t.rid == rid {
				found = t
				return
			}
			walk(t.nestedTypes.Slice())
		}
	}
	walk(m.topLevelTypes.Slice())
	return found
}
