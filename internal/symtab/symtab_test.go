package symtab

import (
	"testing"

	"vaporc/internal/cerr"
	"vaporc/internal/mjast"
	"vaporc/internal/mjtype"
)

func prog(classes ...*mjast.ClassDecl) *mjast.Program {
	return &mjast.Program{Main: mjast.MainClass{Name: "Main"}, Classes: classes}
}

func TestBuildSimpleHierarchy(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Fields: []mjast.VarDecl{{Name: "x", Type: mjtype.Type{Kind: mjtype.Int}}}}
	b := &mjast.ClassDecl{Name: "B", Parent: "A", HasParent: true}

	st, err := Build(prog(a, b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := st.Class("A"); !ok {
		t.Error("expected class A")
	}
	if parent, ok := st.ParentOf("B"); !ok || parent != "A" {
		t.Errorf("ParentOf(B) = %q, %v, want A, true", parent, ok)
	}
	if f, owner, ok := st.ResolveField("B", "x"); !ok || owner != "A" || f.Name != "x" {
		t.Errorf("ResolveField(B, x) = %+v, %q, %v, want inherited from A", f, owner, ok)
	}
}

func TestForwardReferenceToParent(t *testing.T) {
	// B extends A, but B is declared first in source order (spec.md §4.1 scenario S6).
	b := &mjast.ClassDecl{Name: "B", Parent: "A", HasParent: true}
	a := &mjast.ClassDecl{Name: "A"}

	st, err := Build(prog(b, a))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if parent, ok := st.ParentOf("B"); !ok || parent != "A" {
		t.Errorf("ParentOf(B) = %q, %v, want A, true", parent, ok)
	}
}

func TestUndeclaredParentIsUnknownClass(t *testing.T) {
	b := &mjast.ClassDecl{Name: "B", Parent: "Ghost", HasParent: true}
	_, err := Build(prog(b))
	assertKind(t, err, cerr.UnknownClass)
}

func TestDuplicateClass(t *testing.T) {
	a1 := &mjast.ClassDecl{Name: "A"}
	a2 := &mjast.ClassDecl{Name: "A"}
	_, err := Build(prog(a1, a2))
	assertKind(t, err, cerr.DuplicateClass)
}

func TestCyclicInheritance(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Parent: "B", HasParent: true}
	b := &mjast.ClassDecl{Name: "B", Parent: "A", HasParent: true}
	_, err := Build(prog(a, b))
	assertKind(t, err, cerr.CyclicInheritance)
}

func TestOverloadingForbidden(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Methods: []*mjast.MethodDecl{
		{Name: "m", Return: mjtype.Type{Kind: mjtype.Int}, ReturnExpr: &mjast.IntLiteral{Value: 1}},
		{Name: "m", Return: mjtype.Type{Kind: mjtype.Bool}, ReturnExpr: &mjast.BoolLiteral{Value: true}},
	}}
	_, err := Build(prog(a))
	assertKind(t, err, cerr.DuplicateMethod)
}

func TestOverrideParamCountMismatch(t *testing.T) {
	base := &mjast.ClassDecl{Name: "Base", Methods: []*mjast.MethodDecl{
		{Name: "m", Return: mjtype.Type{Kind: mjtype.Int}, ReturnExpr: &mjast.IntLiteral{Value: 1}},
	}}
	derived := &mjast.ClassDecl{Name: "Derived", Parent: "Base", HasParent: true, Methods: []*mjast.MethodDecl{
		{
			Name:       "m",
			Params:     []mjast.VarDecl{{Name: "p", Type: mjtype.Type{Kind: mjtype.Int}}},
			Return:     mjtype.Type{Kind: mjtype.Int},
			ReturnExpr: &mjast.IntLiteral{Value: 1},
		},
	}}
	_, err := Build(prog(base, derived))
	assertKind(t, err, cerr.DuplicateMethod)
}

func TestOverrideCovariantReturnAllowed(t *testing.T) {
	base := &mjast.ClassDecl{Name: "Animal"}
	dog := &mjast.ClassDecl{Name: "Dog", Parent: "Animal", HasParent: true}
	zoo := &mjast.ClassDecl{Name: "Zoo", Methods: []*mjast.MethodDecl{
		{Name: "pet", Return: mjtype.NewClass("Animal"), ReturnExpr: &mjast.NewObject{Class: "Animal"}},
	}}
	pound := &mjast.ClassDecl{Name: "Pound", Parent: "Zoo", HasParent: true, Methods: []*mjast.MethodDecl{
		{Name: "pet", Return: mjtype.NewClass("Dog"), ReturnExpr: &mjast.NewObject{Class: "Dog"}},
	}}
	if _, err := Build(prog(base, dog, zoo, pound)); err != nil {
		t.Fatalf("covariant return override should be allowed, got: %v", err)
	}
}

func TestUnknownFieldTypeIsUnknownType(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Fields: []mjast.VarDecl{{Name: "g", Type: mjtype.NewClass("Ghost")}}}
	_, err := Build(prog(a))
	assertKind(t, err, cerr.UnknownType)
}

func TestUnknownParamTypeIsUnknownType(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Methods: []*mjast.MethodDecl{
		{
			Name:       "m",
			Params:     []mjast.VarDecl{{Name: "g", Type: mjtype.NewClass("Ghost")}},
			Return:     mjtype.Type{Kind: mjtype.Int},
			ReturnExpr: &mjast.IntLiteral{Value: 1},
		},
	}}
	_, err := Build(prog(a))
	assertKind(t, err, cerr.UnknownType)
}

func TestUnknownLocalTypeIsUnknownType(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Methods: []*mjast.MethodDecl{
		{
			Name:       "m",
			Locals:     []mjast.VarDecl{{Name: "g", Type: mjtype.NewClass("Ghost")}},
			Return:     mjtype.Type{Kind: mjtype.Int},
			ReturnExpr: &mjast.IntLiteral{Value: 1},
		},
	}}
	_, err := Build(prog(a))
	assertKind(t, err, cerr.UnknownType)
}

func TestUnknownReturnTypeIsUnknownType(t *testing.T) {
	a := &mjast.ClassDecl{Name: "A", Methods: []*mjast.MethodDecl{
		{Name: "m", Return: mjtype.NewClass("Ghost"), ReturnExpr: &mjast.NewObject{Class: "Ghost"}},
	}}
	_, err := Build(prog(a))
	assertKind(t, err, cerr.UnknownType)
}

func TestKnownClassTypeIsNotUnknownType(t *testing.T) {
	b := &mjast.ClassDecl{Name: "B"}
	a := &mjast.ClassDecl{Name: "A", Fields: []mjast.VarDecl{{Name: "b", Type: mjtype.NewClass("B")}}}
	if _, err := Build(prog(a, b)); err != nil {
		t.Fatalf("a field typed by a class declared elsewhere in the program should not be UnknownType: %v", err)
	}
}

func TestMainLocalsAreRecorded(t *testing.T) {
	p := &mjast.Program{Main: mjast.MainClass{
		Name:   "Main",
		Locals: []mjast.VarDecl{{Name: "x", Type: mjtype.Type{Kind: mjtype.IntArray}}},
	}}
	st, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(st.MainLocals) != 1 || st.MainLocals[0].Name != "x" {
		t.Errorf("MainLocals = %+v, want [{x int[]}]", st.MainLocals)
	}
}

func TestDuplicateMainLocal(t *testing.T) {
	p := &mjast.Program{Main: mjast.MainClass{
		Name: "Main",
		Locals: []mjast.VarDecl{
			{Name: "x", Type: mjtype.Type{Kind: mjtype.Int}},
			{Name: "x", Type: mjtype.Type{Kind: mjtype.Int}},
		},
	}}
	_, err := Build(p)
	assertKind(t, err, cerr.DuplicateLocal)
}

func assertKind(t *testing.T, err error, want cerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", want)
	}
	ce, ok := err.(*cerr.CompileError)
	if !ok {
		t.Fatalf("expected *cerr.CompileError, got %T: %v", err, err)
	}
	if ce.Kind != want {
		t.Fatalf("got error kind %s, want %s (%v)", ce.Kind, want, err)
	}
}
