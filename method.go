package clrmeta

import "errors"

// MethodAttributes mirrors ECMA-335 §II.23.1.10's Flags column of MethodDef.
type MethodAttributes uint16

const (
	MethodMemberAccessMask MethodAttributes = 0x0007
	MethodPrivate          MethodAttributes = 0x0001
	MethodPublic           MethodAttributes = 0x0006
	MethodStatic           MethodAttributes = 0x0010
	MethodFinal            MethodAttributes = 0x0020
	MethodVirtual          MethodAttributes = 0x0040
	MethodAbstract         MethodAttributes = 0x0400
	MethodSpecialName      MethodAttributes = 0x0800
	MethodRTSpecialName    MethodAttributes = 0x1000
)

// MethodImplAttributes mirrors ECMA-335 §II.23.1.11's ImplFlags column.
type MethodImplAttributes uint16

const (
	MethodImplCodeTypeMask MethodImplAttributes = 0x0003
	MethodImplIL           MethodImplAttributes = 0x0000
	MethodImplNative       MethodImplAttributes = 0x0001
	MethodImplRuntime      MethodImplAttributes = 0x0003

	MethodImplManaged   MethodImplAttributes = 0x0000
	MethodImplUnmanaged MethodImplAttributes = 0x0004
)

// MethodDefinition is a method declared by a TypeDefinition: name, parsed
// signature, RVA, and a weak back-reference to its declaring type
// (spec.md §3).
type MethodDefinition struct {
	ownerSlot

	token MetadataToken
	md    *Metadata
	rid   uint32
	mod   *ModuleDefinition

	name          lazyCell[string]
	signature     lazyCell[*MethodSignature]
	rva           lazyCell[uint32]
	implFlags     lazyCell[MethodImplAttributes]
	flags         lazyCell[MethodAttributes]
	declaringType lazyCell[*TypeDefinition]
}

// NewMethodDefinition creates a hand-built, unowned method.
func NewMethodDefinition(name string) *MethodDefinition {
	m := &MethodDefinition{token: NewMetadataToken(MethodDef, 0)}
	m.name.Set(name)
	return m
}

func newLoadedMethodDefinition(md *Metadata, rid uint32, mod *ModuleDefinition) *MethodDefinition {
	return &MethodDefinition{token: NewMetadataToken(MethodDef, rid), md: md, rid: rid, mod: mod}
}

// Token returns the method's metadata token.
func (m *MethodDefinition) Token() MetadataToken { return m.token }

// Name returns the method's name.
func (m *MethodDefinition) Name() (string, error) {
	return m.name.Get(func() (string, error) {
		if m.md == nil {
			return "", nil
		}
		idx, err := m.md.Tables.Column(MethodDef, m.rid, "Name")
		if err != nil {
			return "", err
		}
		return m.md.Strings.GetString(idx)
	})
}

// SetName overrides the method's name.
func (m *MethodDefinition) SetName(name string) { m.name.Set(name) }

// RVA returns the method body's relative virtual address, or 0 if the
// method has no body (abstract, P/Invoke, runtime-provided).
func (m *MethodDefinition) RVA() (uint32, error) {
	return m.rva.Get(func() (uint32, error) {
		if m.md == nil {
			return 0, nil
		}
		return m.md.Tables.Column(MethodDef, m.rid, "RVA")
	})
}

// ImplAttributes returns the method's MethodImplAttributes.
func (m *MethodDefinition) ImplAttributes() (MethodImplAttributes, error) {
	return m.implFlags.Get(func() (MethodImplAttributes, error) {
		if m.md == nil {
			return 0, nil
		}
		raw, err := m.md.Tables.Column(MethodDef, m.rid, "ImplFlags")
		return MethodImplAttributes(raw), err
	})
}

// Attributes returns the method's MethodAttributes.
func (m *MethodDefinition) Attributes() (MethodAttributes, error) {
	return m.flags.Get(func() (MethodAttributes, error) {
		if m.md == nil {
			return 0, nil
		}
		raw, err := m.md.Tables.Column(MethodDef, m.rid, "Flags")
		return MethodAttributes(raw), err
	})
}

// Signature returns the method's parsed signature blob.
func (m *MethodDefinition) Signature() (*MethodSignature, error) {
	return m.signature.Get(func() (*MethodSignature, error) {
		if m.md == nil {
			return nil, ErrNotSerialized
		}
		idx, err := m.md.Tables.Column(MethodDef, m.rid, "Signature")
		if err != nil {
			return nil, err
		}
		r, err := m.md.Blob.GetBlob(idx)
		if err != nil {
			return nil, err
		}
		sig, err := ReadMethodSignature(r)
		if err != nil {
			var sigErr *SignatureError
			if errors.As(err, &sigErr) {
				sigErr.BlobIndex = idx
			}
			return nil, err
		}
		return sig, nil
	})
}

// DeclaringType returns the type that declares this method, found via the
// reverse MethodList binary search (spec.md §4.C / §4.G).
func (m *MethodDefinition) DeclaringType() (*TypeDefinition, error) {
	return m.declaringType.Get(func() (*TypeDefinition, error) {
		if m.md == nil || m.mod == nil {
			return nil, nil
		}
		typeRid, err := m.md.Tables.ParentByListStart(TypeDef, "MethodList", m.rid)
		if err != nil || typeRid == 0 {
			return nil, err
		}
		return m.mod.findTypeDef(typeRid), nil
	})
}
