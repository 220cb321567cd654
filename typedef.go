package clrmeta

// TypeAttributes mirrors ECMA-335 §II.23.1.15. Grouped masks (visibility,
// layout, class semantics, string format) occupy overlapping bit ranges;
// single-bit flags like RTSpecialName and Forwarder stand alone.
type TypeAttributes uint32

const (
	TypeVisibilityMask     TypeAttributes = 0x00000007
	TypeNotPublic          TypeAttributes = 0x00000000
	TypePublic             TypeAttributes = 0x00000001
	TypeNestedPublic       TypeAttributes = 0x00000002
	TypeNestedPrivate      TypeAttributes = 0x00000003

	TypeLayoutMask   TypeAttributes = 0x00000018
	TypeAutoLayout   TypeAttributes = 0x00000000
	TypeSequential   TypeAttributes = 0x00000008
	TypeExplicitLayout TypeAttributes = 0x00000010

	TypeClassSemanticsMask TypeAttributes = 0x00000020
	TypeClass              TypeAttributes = 0x00000000
	TypeInterface           TypeAttributes = 0x00000020

	TypeAbstract TypeAttributes = 0x00000080
	TypeSealed   TypeAttributes = 0x00000100

	// RTSpecialName and Forwarder are independent bits (ECMA-335 §II.23.1.15),
	// kept separate rather than conflated.
	TypeRTSpecialName TypeAttributes = 0x00000800
	TypeForwarder     TypeAttributes = 0x00200000

	TypeStringFormatMask TypeAttributes = 0x00030000
	TypeAnsiClass        TypeAttributes = 0x00000000
	TypeUnicodeClass     TypeAttributes = 0x00010000
	TypeAutoClass        TypeAttributes = 0x00020000
)

// TypeDefinition is a type declared in a module: namespace, name,
// attribute flags, base type, declaring type (nil for top-level), and
// owned nested types, per spec.md §3.
type TypeDefinition struct {
	ownerSlot // weak back-ref: either *ModuleDefinition or *TypeDefinition

	token MetadataToken
	md    *Metadata
	rid   uint32

	module *ModuleDefinition // the declaring module, set regardless of nesting depth

	namespace lazyCell[string]
	name      lazyCell[string]
	flags     lazyCell[TypeAttributes]
	baseType  lazyCell[MetadataToken]
	fullName  lazyCell[string]

	nestedTypes *OwnedCollection[*TypeDefinition]
}

// NewTypeDefinition creates a hand-built, unowned type.
func NewTypeDefinition(ns, name string) *TypeDefinition {
	t := &TypeDefinition{token: NewMetadataToken(TypeDef, 0)}
	t.namespace.Set(ns)
	t.name.Set(name)
	t.nestedTypes = NewOwnedCollection[*TypeDefinition](t)
	return t
}

func newLoadedTypeDefinition(md *Metadata, rid uint32, module *ModuleDefinition) *TypeDefinition {
	t := &TypeDefinition{token: NewMetadataToken(TypeDef, rid), md: md, rid: rid, module: module}
	t.nestedTypes = NewOwnedCollection[*TypeDefinition](t)
	return t
}

// Token returns the type's metadata token.
func (t *TypeDefinition) Token() MetadataToken { return t.token }

// Module returns the module declaring this type.
func (t *TypeDefinition) Module() *ModuleDefinition { return t.module }

// DeclaringType returns the enclosing type, or nil if this type is
// top-level (DeclaringType == nil ⇔ the type is in Module.TopLevelTypes).
func (t *TypeDefinition) DeclaringType() *TypeDefinition {
	owner := t.getOwner()
	if declaring, ok := owner.(*TypeDefinition); ok {
		return declaring
	}
	return nil
}

// Namespace returns the type's namespace ("" for the global namespace).
func (t *TypeDefinition) Namespace() (string, error) {
	return t.namespace.Get(func() (string, error) {
		if t.md == nil {
			return "", nil
		}
		idx, err := t.md.Tables.Column(TypeDef, t.rid, "TypeNamespace")
		if err != nil {
			return "", err
		}
		return t.md.Strings.GetString(idx)
	})
}

// SetNamespace overrides the type's namespace and invalidates FullName.
func (t *TypeDefinition) SetNamespace(ns string) {
	t.namespace.Set(ns)
	t.invalidateFullName()
}

// Name returns the type's simple name.
func (t *TypeDefinition) Name() (string, error) {
	return t.name.Get(func() (string, error) {
		if t.md == nil {
			return "", nil
		}
		idx, err := t.md.Tables.Column(TypeDef, t.rid, "TypeName")
		if err != nil {
			return "", err
		}
		return t.md.Strings.GetString(idx)
	})
}

// SetName overrides the type's simple name and invalidates FullName.
func (t *TypeDefinition) SetName(name string) {
	t.name.Set(name)
	t.invalidateFullName()
}

// invalidateFullName clears the cached FullName of t and of every type
// nested under it, since their full names embed t's.
func (t *TypeDefinition) invalidateFullName() {
	t.fullName.Invalidate()
	for _, n := range t.nestedTypes.Slice() {
		n.invalidateFullName()
	}
}

// setOwner records t's new owner and clears the cached FullName, which
// depends on the declaring-type chain.
func (t *TypeDefinition) setOwner(o any) {
	t.ownerSlot.setOwner(o)
	t.invalidateFullName()
}

// FullName is a pure function of Namespace, Name, and the declaring-type
// chain, cached until any of them changes (spec.md §3).
func (t *TypeDefinition) FullName() (string, error) {
	return t.fullName.Get(func() (string, error) {
		name, err := t.Name()
		if err != nil {
			return "", err
		}
		if declaring := t.DeclaringType(); declaring != nil {
			outer, err := declaring.FullName()
			if err != nil {
				return "", err
			}
			return outer + "+" + name, nil
		}
		ns, err := t.Namespace()
		if err != nil {
			return "", err
		}
		if ns == "" {
			return name, nil
		}
		return ns + "." + name, nil
	})
}

// Attributes returns the type's TypeAttributes bitmask.
func (t *TypeDefinition) Attributes() (TypeAttributes, error) {
	return t.flags.Get(func() (TypeAttributes, error) {
		if t.md == nil {
			return 0, nil
		}
		raw, err := t.md.Tables.Column(TypeDef, t.rid, "Flags")
		return TypeAttributes(raw), err
	})
}

// SetAttributes overrides the type's TypeAttributes bitmask.
func (t *TypeDefinition) SetAttributes(a TypeAttributes) { t.flags.Set(a) }

// IsNotPublic, IsClass, IsAutoLayout, and IsAnsiClass setters reproduce the
// source's asymmetric behavior verbatim (spec.md §9 Open Question): setting
// true clears the relevant mask group and ORs in this member; setting false
// is a no-op. Callers wanting a different group member should set that
// member directly instead of clearing via false.
func (t *TypeDefinition) SetIsNotPublic(v bool) error {
	return t.setMaskMember(v, TypeVisibilityMask, TypeNotPublic)
}

func (t *TypeDefinition) SetIsClass(v bool) error {
	return t.setMaskMember(v, TypeClassSemanticsMask, TypeClass)
}

func (t *TypeDefinition) SetIsAutoLayout(v bool) error {
	return t.setMaskMember(v, TypeLayoutMask, TypeAutoLayout)
}

func (t *TypeDefinition) SetIsAnsiClass(v bool) error {
	return t.setMaskMember(v, TypeStringFormatMask, TypeAnsiClass)
}

func (t *TypeDefinition) setMaskMember(v bool, mask, member TypeAttributes) error {
	if !v {
		return nil
	}
	attrs, err := t.Attributes()
	if err != nil {
		return err
	}
	t.SetAttributes((attrs &^ mask) | member)
	return nil
}

// IsRuntimeSpecialName reports TypeAttributes.RTSpecialName, kept
// independent of IsForwarder per spec.md §9's split of the source's
// conflated property.
func (t *TypeDefinition) IsRuntimeSpecialName() (bool, error) {
	attrs, err := t.Attributes()
	return attrs&TypeRTSpecialName != 0, err
}

// IsForwarder reports TypeAttributes.Forwarder.
func (t *TypeDefinition) IsForwarder() (bool, error) {
	attrs, err := t.Attributes()
	return attrs&TypeForwarder != 0, err
}

// BaseType returns the coded TypeDefOrRef token of the type's base type,
// or a null token if it has none (e.g. System.Object, interfaces).
func (t *TypeDefinition) BaseType() (MetadataToken, error) {
	return t.baseType.Get(func() (MetadataToken, error) {
		if t.md == nil {
			return 0, nil
		}
		return t.md.Tables.CodedColumn(TypeDef, t.rid, "Extends")
	})
}

// SetBaseType overrides the type's base type token.
func (t *TypeDefinition) SetBaseType(tok MetadataToken) { t.baseType.Set(tok) }

// NestedTypes returns the types this type owns as nested members.
func (t *TypeDefinition) NestedTypes() []*TypeDefinition { return t.nestedTypes.Slice() }

// AddNestedType adds n as a nested type of t.
func (t *TypeDefinition) AddNestedType(n *TypeDefinition) error {
	return t.nestedTypes.Add(n)
}

// Methods returns the methods owned by this type, resolved via the
// TypeDef.MethodList forward range (spec.md §4.C). Only meaningful for a
// loaded type; a hand-built type has no backing table row.
func (t *TypeDefinition) Methods() ([]*MethodDefinition, error) {
	if t.md == nil {
		return nil, nil
	}
	lo, hi, err := t.md.Tables.ListRange(TypeDef, "MethodList", MethodDef, t.rid)
	if err != nil {
		return nil, err
	}
	methods := make([]*MethodDefinition, 0, hi-lo)
	for rid := lo; rid < hi; rid++ {
		methods = append(methods, newLoadedMethodDefinition(t.md, rid, t.module))
	}
	return methods, nil
}
