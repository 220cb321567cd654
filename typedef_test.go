package clrmeta

import "testing"

func TestTypeDefinitionFullNameTopLevel(t *testing.T) {
	ty := NewTypeDefinition("My.Namespace", "Widget")
	full, err := ty.FullName()
	if err != nil || full != "My.Namespace.Widget" {
		t.Fatalf("FullName() = %q, %v; want \"My.Namespace.Widget\", nil", full, err)
	}
}

func TestTypeDefinitionFullNameNested(t *testing.T) {
	outer := NewTypeDefinition("My.Namespace", "Outer")
	inner := NewTypeDefinition("", "Inner")
	if err := outer.AddNestedType(inner); err != nil {
		t.Fatalf("AddNestedType: %v", err)
	}
	full, err := inner.FullName()
	if err != nil || full != "My.Namespace.Outer+Inner" {
		t.Fatalf("FullName() = %q, %v; want \"My.Namespace.Outer+Inner\", nil", full, err)
	}
}

func TestTypeDefinitionFullNameInvalidatesOnRename(t *testing.T) {
	ty := NewTypeDefinition("NS", "Old")
	if _, err := ty.FullName(); err != nil {
		t.Fatalf("FullName(): %v", err)
	}
	ty.SetName("New")
	full, err := ty.FullName()
	if err != nil || full != "NS.New" {
		t.Fatalf("FullName() after rename = %q, %v; want \"NS.New\", nil", full, err)
	}
}

func TestTypeDefinitionNoNamespace(t *testing.T) {
	ty := NewTypeDefinition("", "Global")
	full, err := ty.FullName()
	if err != nil || full != "Global" {
		t.Fatalf("FullName() = %q, %v; want \"Global\", nil", full, err)
	}
}

func TestTypeDefinitionSetIsNotPublicAsymmetry(t *testing.T) {
	ty := NewTypeDefinition("", "T")
	ty.SetAttributes(TypePublic | TypeSealed)

	if err := ty.SetIsNotPublic(false); err != nil {
		t.Fatalf("SetIsNotPublic(false): %v", err)
	}
	attrs, _ := ty.Attributes()
	if attrs&TypeVisibilityMask != TypePublic {
		t.Fatal("SetIsNotPublic(false) should be a no-op, per the source's asymmetric behavior")
	}

	if err := ty.SetIsNotPublic(true); err != nil {
		t.Fatalf("SetIsNotPublic(true): %v", err)
	}
	attrs, _ = ty.Attributes()
	if attrs&TypeVisibilityMask != TypeNotPublic {
		t.Fatalf("visibility = %#x; want TypeNotPublic after SetIsNotPublic(true)", attrs&TypeVisibilityMask)
	}
	if attrs&TypeSealed == 0 {
		t.Fatal("SetIsNotPublic(true) should only clear the visibility mask, not other bits")
	}
}

func TestTypeDefinitionRTSpecialNameAndForwarderIndependent(t *testing.T) {
	ty := NewTypeDefinition("", "T")
	ty.SetAttributes(TypeRTSpecialName)

	special, err := ty.IsRuntimeSpecialName()
	if err != nil || !special {
		t.Fatalf("IsRuntimeSpecialName() = %v, %v; want true, nil", special, err)
	}
	forwarder, err := ty.IsForwarder()
	if err != nil || forwarder {
		t.Fatalf("IsForwarder() = %v, %v; want false, nil (bits are independent)", forwarder, err)
	}
}

func TestLoadedTypeDefinitionMethods(t *testing.T) {
	fixture := newAssemblyFixture()
	a, err := FromReader(NewBinaryStreamReader(fixture.data), nil)
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	outer := a.ManifestModule().TopLevelTypes()[0]
	methods, err := outer.Methods()
	if err != nil {
		t.Fatalf("Methods(): %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("len(Methods()) = %d; want 1", len(methods))
	}
	name, err := methods[0].Name()
	if err != nil || name != fixture.methodName {
		t.Fatalf("Methods()[0].Name() = %q, %v; want %q, nil", name, err, fixture.methodName)
	}

	inner := outer.NestedTypes()[0]
	innerMethods, err := inner.Methods()
	if err != nil {
		t.Fatalf("Methods() on Inner: %v", err)
	}
	if len(innerMethods) != 0 {
		t.Fatalf("len(Inner.Methods()) = %d; want 0", len(innerMethods))
	}
}
