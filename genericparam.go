package clrmeta

// GenericParamAttributes mirrors ECMA-335 §II.23.1.7's Flags column of
// GenericParam.
type GenericParamAttributes uint16

const (
	GenericParamVarianceMask      GenericParamAttributes = 0x0003
	GenericParamNonVariant        GenericParamAttributes = 0x0000
	GenericParamCovariant         GenericParamAttributes = 0x0001
	GenericParamContravariant     GenericParamAttributes = 0x0002
	GenericParamReferenceTypeConstraint GenericParamAttributes = 0x0004
	GenericParamNotNullableValueTypeConstraint GenericParamAttributes = 0x0008
	GenericParamDefaultConstructorConstraint GenericParamAttributes = 0x0010
)

// GenericParameter is a type- or method-level generic parameter: name,
// ordinal (Number), attribute flags, and an owner that is either a
// TypeDefinition or a MethodDefinition (spec.md §3), decoded from the
// GenericParam table's TypeOrMethodDef coded index.
type GenericParameter struct {
	ownerSlot // weak back-ref, set only when this parameter is itself owned by a collection

	token MetadataToken
	md    *Metadata
	rid   uint32
	mod   *ModuleDefinition

	number lazyCell[uint16]
	flags  lazyCell[GenericParamAttributes]
	name   lazyCell[string]
	owner  lazyCell[any] // *TypeDefinition or *MethodDefinition
}

// NewGenericParameter creates a hand-built, unowned generic parameter.
func NewGenericParameter(name string, number uint16) *GenericParameter {
	g := &GenericParameter{token: NewMetadataToken(GenericParam, 0)}
	g.name.Set(name)
	g.number.Set(number)
	return g
}

func newLoadedGenericParameter(md *Metadata, rid uint32, mod *ModuleDefinition) *GenericParameter {
	return &GenericParameter{token: NewMetadataToken(GenericParam, rid), md: md, rid: rid, mod: mod}
}

// Token returns the generic parameter's metadata token.
func (g *GenericParameter) Token() MetadataToken { return g.token }

// Number returns the parameter's zero-based ordinal.
func (g *GenericParameter) Number() (uint16, error) {
	return g.number.Get(func() (uint16, error) {
		if g.md == nil {
			return 0, nil
		}
		raw, err := g.md.Tables.Column(GenericParam, g.rid, "Number")
		return uint16(raw), err
	})
}

// Name returns the parameter's source name, e.g. "T".
func (g *GenericParameter) Name() (string, error) {
	return g.name.Get(func() (string, error) {
		if g.md == nil {
			return "", nil
		}
		idx, err := g.md.Tables.Column(GenericParam, g.rid, "Name")
		if err != nil {
			return "", err
		}
		return g.md.Strings.GetString(idx)
	})
}

// Attributes returns the parameter's GenericParamAttributes.
func (g *GenericParameter) Attributes() (GenericParamAttributes, error) {
	return g.flags.Get(func() (GenericParamAttributes, error) {
		if g.md == nil {
			return 0, nil
		}
		raw, err := g.md.Tables.Column(GenericParam, g.rid, "Flags")
		return GenericParamAttributes(raw), err
	})
}

// Owner returns the declaring TypeDefinition or MethodDefinition that
// this generic parameter belongs to.
func (g *GenericParameter) Owner() (any, error) {
	return g.owner.Get(func() (any, error) {
		if g.md == nil || g.mod == nil {
			return nil, nil
		}
		tok, err := g.md.Tables.CodedColumn(GenericParam, g.rid, "Owner")
		if err != nil {
			return nil, err
		}
		if tok.IsNull() {
			return nil, nil
		}
		switch tok.Table() {
		case TypeDef:
			return g.mod.findTypeDef(tok.RID()), nil
		case MethodDef:
			return newLoadedMethodDefinition(g.md, tok.RID(), g.mod), nil
		default:
			return nil, ErrInvalidCodedIndex
		}
	})
}
