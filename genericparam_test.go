package clrmeta

import "testing"

func TestNewGenericParameterHandBuilt(t *testing.T) {
	g := NewGenericParameter("T", 0)
	name, err := g.Name()
	if err != nil || name != "T" {
		t.Fatalf("Name() = %q, %v; want \"T\", nil", name, err)
	}
	num, err := g.Number()
	if err != nil || num != 0 {
		t.Fatalf("Number() = %d, %v; want 0, nil", num, err)
	}
}

func TestGenericParameterVarianceMask(t *testing.T) {
	g := NewGenericParameter("T", 1)
	flags := GenericParamCovariant | GenericParamReferenceTypeConstraint
	g.flags.Set(flags)

	got, err := g.Attributes()
	if err != nil {
		t.Fatalf("Attributes(): %v", err)
	}
	if got&GenericParamVarianceMask != GenericParamCovariant {
		t.Fatalf("variance = %#x; want GenericParamCovariant", got&GenericParamVarianceMask)
	}
	if got&GenericParamReferenceTypeConstraint == 0 {
		t.Fatal("reference type constraint bit should survive alongside variance")
	}
}
