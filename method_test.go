package clrmeta

import "testing"

func TestNewMethodDefinitionHandBuilt(t *testing.T) {
	m := NewMethodDefinition("DoThing")
	name, err := m.Name()
	if err != nil || name != "DoThing" {
		t.Fatalf("Name() = %q, %v; want \"DoThing\", nil", name, err)
	}
}

func TestLoadedMethodDeclaringType(t *testing.T) {
	fixture := newAssemblyFixture()
	a, err := FromReader(NewBinaryStreamReader(fixture.data), nil)
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	outer := a.ManifestModule().TopLevelTypes()[0]
	methods, err := outer.Methods()
	if err != nil || len(methods) != 1 {
		t.Fatalf("Methods(): %v, %d methods", err, len(methods))
	}

	declaring, err := methods[0].DeclaringType()
	if err != nil {
		t.Fatalf("DeclaringType(): %v", err)
	}
	if declaring != outer {
		t.Fatal("DeclaringType() should return the owning TypeDefinition")
	}
}

func TestLoadedMethodSignatureEmptyBlob(t *testing.T) {
	fixture := newAssemblyFixture()
	a, err := FromReader(NewBinaryStreamReader(fixture.data), nil)
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	outer := a.ManifestModule().TopLevelTypes()[0]
	methods, _ := outer.Methods()

	// The fixture's method signature blob index is 0 (empty blob), which
	// decodes as an empty method signature reader: ReadMethodSignature
	// should fail cleanly with a SignatureError rather than panicking.
	_, err = methods[0].Signature()
	if err == nil {
		t.Fatal("Signature() over an empty blob should fail, not silently succeed")
	}
}
