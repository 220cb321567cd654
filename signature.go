package clrmeta

// ElementType is a single-byte type code from ECMA-335 §II.23.1.16.
type ElementType byte

const (
	ElementTypeEnd        ElementType = 0x00
	ElementTypeVoid       ElementType = 0x01
	ElementTypeBoolean    ElementType = 0x02
	ElementTypeChar       ElementType = 0x03
	ElementTypeI1         ElementType = 0x04
	ElementTypeU1         ElementType = 0x05
	ElementTypeI2         ElementType = 0x06
	ElementTypeU2         ElementType = 0x07
	ElementTypeI4         ElementType = 0x08
	ElementTypeU4         ElementType = 0x09
	ElementTypeI8         ElementType = 0x0A
	ElementTypeU8         ElementType = 0x0B
	ElementTypeR4         ElementType = 0x0C
	ElementTypeR8         ElementType = 0x0D
	ElementTypeString     ElementType = 0x0E
	ElementTypePtr        ElementType = 0x0F
	ElementTypeByRef      ElementType = 0x10
	ElementTypeValueType  ElementType = 0x11
	ElementTypeClass      ElementType = 0x12
	ElementTypeVar        ElementType = 0x13
	ElementTypeArray      ElementType = 0x14
	ElementTypeGenericInst ElementType = 0x15
	ElementTypeTypedByRef ElementType = 0x16
	ElementTypeI          ElementType = 0x18
	ElementTypeU          ElementType = 0x19
	ElementTypeFnPtr      ElementType = 0x1B
	ElementTypeObject     ElementType = 0x1C
	ElementTypeSZArray    ElementType = 0x1D
	ElementTypeMVar       ElementType = 0x1E
	ElementTypeCModReqd   ElementType = 0x1F
	ElementTypeCModOpt    ElementType = 0x20
	ElementTypeInternal   ElementType = 0x21
	ElementTypeModifier   ElementType = 0x40
	ElementTypeSentinel   ElementType = 0x41
	ElementTypePinned     ElementType = 0x45
)

// CallingConvention is the low nibble of a method signature's first byte
// (ECMA-335 §II.23.2.1/II.15.3).
type CallingConvention byte

const (
	CallDefault     CallingConvention = 0x0
	CallVarArg      CallingConvention = 0x5
	CallGeneric     CallingConvention = 0x10
	callConvMask    CallingConvention = 0x0F
	flagHasThis                       = 0x20
	flagExplicitThis                  = 0x40
	flagGeneric                       = 0x10
)

// CustomModifier is a CMOD_REQD/CMOD_OPT prefix attached to a type.
type CustomModifier struct {
	Required bool
	Type     MetadataToken
}

// TypeSignature is a decoded ECMA-335 §II.23.2.12 type signature, a
// recursive tree over ElementType operands.
type TypeSignature struct {
	ElementType ElementType
	Modifiers   []CustomModifier

	// TypeDefOrRef: populated for Class/ValueType.
	Type MetadataToken

	// Array element / Ptr/ByRef referent / SZArray element.
	Next *TypeSignature

	// Array-specific.
	Rank     uint32
	Sizes    []uint32
	LoBounds []int32

	// GenericInst and Class/ValueType: whether the type is a value type.
	IsValueType bool
	GenericArgs []*TypeSignature

	// Var/MVar-specific.
	GenericParamIndex uint32

	// FnPtr-specific.
	Method *MethodSignature
}

// readTypeDefOrRefOrSpec decodes a compressed TypeDefOrRefOrSpec encoded
// token: raw = compressed_uint; tag = raw & 3; rid = raw >> 2;
// table ∈ {TypeDef, TypeRef, TypeSpec}[tag].
func readTypeDefOrRefOrSpec(r *BinaryStreamReader) (MetadataToken, error) {
	raw, err := r.ReadCompressedUInt32()
	if err != nil {
		return 0, err
	}
	tag := raw & 3
	rid := raw >> 2
	tables := [...]TableIndex{TypeDef, TypeRef, TypeSpec}
	if int(tag) >= len(tables) {
		return 0, ErrInvalidCodedIndex
	}
	return NewMetadataToken(tables[tag], rid), nil
}

func readCustomModifiers(r *BinaryStreamReader) ([]CustomModifier, ElementType, error) {
	var mods []CustomModifier
	for {
		b, err := r.PeekBytes(1)
		if err != nil {
			return nil, 0, err
		}
		et := ElementType(b[0])
		if et != ElementTypeCModReqd && et != ElementTypeCModOpt {
			return mods, et, nil
		}
		if _, err := r.ReadU8(); err != nil {
			return nil, 0, err
		}
		tok, err := readTypeDefOrRefOrSpec(r)
		if err != nil {
			return nil, 0, err
		}
		mods = append(mods, CustomModifier{Required: et == ElementTypeCModReqd, Type: tok})
	}
}

// ReadTypeSignature decodes one ECMA-335 §II.23.2.12 type signature from r.
func ReadTypeSignature(r *BinaryStreamReader) (*TypeSignature, error) {
	mods, et, err := readCustomModifiers(r)
	if err != nil {
		return nil, signatureErr(r, "reading custom modifiers", err)
	}
	if _, err := r.ReadU8(); err != nil { // consume the element type byte peeked above
		return nil, signatureErr(r, "reading element type", err)
	}

	sig := &TypeSignature{ElementType: et, Modifiers: mods}

	switch et {
	case ElementTypeClass, ElementTypeValueType:
		sig.IsValueType = et == ElementTypeValueType
		tok, err := readTypeDefOrRefOrSpec(r)
		if err != nil {
			return nil, signatureErr(r, "reading class/valuetype token", err)
		}
		sig.Type = tok

	case ElementTypePtr, ElementTypeByRef, ElementTypeSZArray, ElementTypePinned:
		next, err := ReadTypeSignature(r)
		if err != nil {
			return nil, err
		}
		sig.Next = next

	case ElementTypeArray:
		elem, err := ReadTypeSignature(r)
		if err != nil {
			return nil, err
		}
		sig.Next = elem
		rank, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, signatureErr(r, "reading array rank", err)
		}
		sig.Rank = rank
		numSizes, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, signatureErr(r, "reading array numSizes", err)
		}
		for i := uint32(0); i < numSizes; i++ {
			sz, err := r.ReadCompressedUInt32()
			if err != nil {
				return nil, signatureErr(r, "reading array size", err)
			}
			sig.Sizes = append(sig.Sizes, sz)
		}
		numLoBounds, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, signatureErr(r, "reading array numLoBounds", err)
		}
		for i := uint32(0); i < numLoBounds; i++ {
			lo, err := r.ReadCompressedInt32()
			if err != nil {
				return nil, signatureErr(r, "reading array lower bound", err)
			}
			sig.LoBounds = append(sig.LoBounds, lo)
		}

	case ElementTypeGenericInst:
		kindByte, err := r.ReadU8()
		if err != nil {
			return nil, signatureErr(r, "reading generic instantiation kind", err)
		}
		sig.IsValueType = ElementType(kindByte) == ElementTypeValueType
		tok, err := readTypeDefOrRefOrSpec(r)
		if err != nil {
			return nil, signatureErr(r, "reading generic instantiation type", err)
		}
		sig.Type = tok
		argCount, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, signatureErr(r, "reading generic arg count", err)
		}
		for i := uint32(0); i < argCount; i++ {
			arg, err := ReadTypeSignature(r)
			if err != nil {
				return nil, err
			}
			sig.GenericArgs = append(sig.GenericArgs, arg)
		}

	case ElementTypeVar, ElementTypeMVar:
		idx, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, signatureErr(r, "reading generic parameter index", err)
		}
		sig.GenericParamIndex = idx

	case ElementTypeFnPtr:
		m, err := ReadMethodSignature(r)
		if err != nil {
			return nil, err
		}
		sig.Method = m

	case ElementTypeBoolean, ElementTypeChar, ElementTypeI1, ElementTypeU1,
		ElementTypeI2, ElementTypeU2, ElementTypeI4, ElementTypeU4,
		ElementTypeI8, ElementTypeU8, ElementTypeR4, ElementTypeR8,
		ElementTypeString, ElementTypeObject, ElementTypeVoid,
		ElementTypeI, ElementTypeU, ElementTypeTypedByRef:
		// Primitive element types carry no further operands.

	default:
		return nil, signatureErr(r, "unrecognized element type byte", nil)
	}

	return sig, nil
}

// MethodSignature is a decoded ECMA-335 §II.23.2.1 method signature.
type MethodSignature struct {
	HasThis           bool
	ExplicitThis      bool
	CallingConvention CallingConvention
	GenericParamCount uint32
	ReturnType        *TypeSignature
	Params            []*TypeSignature
	VarArgParams      []*TypeSignature // parameters after the SENTINEL, for VARARG calls
}

// ReadMethodSignature decodes a method (or property) signature's
// calling-convention byte, generic arity, return type, and parameter list.
// It always reads a parameter count, so field signatures, which have none,
// are not decoded correctly by it.
func ReadMethodSignature(r *BinaryStreamReader) (*MethodSignature, error) {
	flags, err := r.ReadU8()
	if err != nil {
		return nil, signatureErr(r, "reading calling convention byte", err)
	}
	sig := &MethodSignature{
		HasThis:           flags&flagHasThis != 0,
		ExplicitThis:      flags&flagExplicitThis != 0,
		CallingConvention: CallingConvention(flags) & callConvMask,
	}

	if flags&flagGeneric != 0 {
		n, err := r.ReadCompressedUInt32()
		if err != nil {
			return nil, signatureErr(r, "reading generic param count", err)
		}
		sig.GenericParamCount = n
	}

	paramCount, err := r.ReadCompressedUInt32()
	if err != nil {
		return nil, signatureErr(r, "reading param count", err)
	}

	sig.ReturnType, err = ReadTypeSignature(r)
	if err != nil {
		return nil, err
	}

	inVarArgTail := false
	for i := uint32(0); i < paramCount; i++ {
		b, err := r.PeekBytes(1)
		if err != nil {
			return nil, signatureErr(r, "reading parameter", err)
		}
		if ElementType(b[0]) == ElementTypeSentinel {
			if _, err := r.ReadU8(); err != nil {
				return nil, signatureErr(r, "reading sentinel", err)
			}
			inVarArgTail = true
		}
		p, err := ReadTypeSignature(r)
		if err != nil {
			return nil, err
		}
		if inVarArgTail {
			sig.VarArgParams = append(sig.VarArgParams, p)
		} else {
			sig.Params = append(sig.Params, p)
		}
	}

	return sig, nil
}

func signatureErr(r *BinaryStreamReader, msg string, err error) error {
	return &SignatureError{ByteOffset: r.Offset(), Message: msg, Err: err}
}
