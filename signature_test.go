package clrmeta

import "testing"

func TestReadTypeSignaturePrimitive(t *testing.T) {
	r := NewBinaryStreamReader([]byte{byte(ElementTypeI4)})
	sig, err := ReadTypeSignature(r)
	if err != nil {
		t.Fatalf("ReadTypeSignature: %v", err)
	}
	if sig.ElementType != ElementTypeI4 {
		t.Fatalf("ElementType = %#x; want I4", sig.ElementType)
	}
}

func TestReadTypeSignatureClassToken(t *testing.T) {
	// CLASS followed by a compressed TypeDefOrRefOrSpec token: tag=1 (TypeRef), rid=5.
	raw := (uint32(5) << 2) | 1
	r := NewBinaryStreamReader([]byte{byte(ElementTypeClass), byte(raw)})
	sig, err := ReadTypeSignature(r)
	if err != nil {
		t.Fatalf("ReadTypeSignature: %v", err)
	}
	if sig.Type.Table() != TypeRef || sig.Type.RID() != 5 {
		t.Fatalf("Type = (%v,%d); want (TypeRef,5)", sig.Type.Table(), sig.Type.RID())
	}
}

func TestReadTypeSignatureSZArray(t *testing.T) {
	r := NewBinaryStreamReader([]byte{byte(ElementTypeSZArray), byte(ElementTypeI4)})
	sig, err := ReadTypeSignature(r)
	if err != nil {
		t.Fatalf("ReadTypeSignature: %v", err)
	}
	if sig.ElementType != ElementTypeSZArray || sig.Next == nil || sig.Next.ElementType != ElementTypeI4 {
		t.Fatalf("sig = %+v; want SZArray wrapping I4", sig)
	}
}

func TestReadTypeSignatureCustomModifier(t *testing.T) {
	// CMOD_OPT(tag=0,rid=1) then I4.
	r := NewBinaryStreamReader([]byte{byte(ElementTypeCModOpt), 1 << 2, byte(ElementTypeI4)})
	sig, err := ReadTypeSignature(r)
	if err != nil {
		t.Fatalf("ReadTypeSignature: %v", err)
	}
	if len(sig.Modifiers) != 1 || sig.Modifiers[0].Required {
		t.Fatalf("Modifiers = %+v; want one optional modifier", sig.Modifiers)
	}
	if sig.ElementType != ElementTypeI4 {
		t.Fatalf("ElementType = %#x; want I4", sig.ElementType)
	}
}

func TestReadMethodSignatureParamsAndReturn(t *testing.T) {
	// Default calling convention, 2 params, void return, params I4 and String.
	data := []byte{
		0x00,                    // calling convention: default, no HASTHIS
		0x02,                    // param count = 2
		byte(ElementTypeVoid),   // return type
		byte(ElementTypeI4),     // param 1
		byte(ElementTypeString), // param 2
	}
	r := NewBinaryStreamReader(data)
	sig, err := ReadMethodSignature(r)
	if err != nil {
		t.Fatalf("ReadMethodSignature: %v", err)
	}
	if sig.HasThis {
		t.Fatal("HasThis should be false")
	}
	if sig.ReturnType.ElementType != ElementTypeVoid {
		t.Fatalf("ReturnType = %#x; want Void", sig.ReturnType.ElementType)
	}
	if len(sig.Params) != 2 {
		t.Fatalf("len(Params) = %d; want 2", len(sig.Params))
	}
	if sig.Params[0].ElementType != ElementTypeI4 || sig.Params[1].ElementType != ElementTypeString {
		t.Fatalf("Params = %+v; want [I4, String]", sig.Params)
	}
}

func TestReadMethodSignatureHasThis(t *testing.T) {
	data := []byte{0x20, 0x00, byte(ElementTypeVoid)} // HASTHIS, 0 params, void return
	r := NewBinaryStreamReader(data)
	sig, err := ReadMethodSignature(r)
	if err != nil {
		t.Fatalf("ReadMethodSignature: %v", err)
	}
	if !sig.HasThis {
		t.Fatal("HasThis should be true")
	}
}

func TestReadMethodSignatureVarArgSentinel(t *testing.T) {
	data := []byte{
		0x05,                  // VARARG calling convention
		0x02,                  // param count = 2
		byte(ElementTypeVoid), // return type
		byte(ElementTypeI4),   // fixed param
		byte(ElementTypeSentinel),
		byte(ElementTypeString), // vararg param
	}
	r := NewBinaryStreamReader(data)
	sig, err := ReadMethodSignature(r)
	if err != nil {
		t.Fatalf("ReadMethodSignature: %v", err)
	}
	if len(sig.Params) != 1 || sig.Params[0].ElementType != ElementTypeI4 {
		t.Fatalf("Params = %+v; want [I4]", sig.Params)
	}
	if len(sig.VarArgParams) != 1 || sig.VarArgParams[0].ElementType != ElementTypeString {
		t.Fatalf("VarArgParams = %+v; want [String]", sig.VarArgParams)
	}
}
