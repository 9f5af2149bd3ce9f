package lower

import (
	"strings"
	"testing"

	"vaporc/internal/demo"
	"vaporc/internal/layout"
	"vaporc/internal/mjast"
	"vaporc/internal/symtab"
	"vaporc/internal/vapor"
)

func buildModule(t *testing.T, prog *mjast.Program) *vapor.Module {
	t.Helper()
	st, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}
	lay, err := layout.Build(st)
	if err != nil {
		t.Fatalf("layout.Build: %v", err)
	}
	mod, err := Lower(prog, st, lay)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return mod
}

func TestLowerFactorialShape(t *testing.T) {
	mod := buildModule(t, demo.Factorial())

	var fac *vapor.Function
	for _, fn := range mod.Functions {
		if fn.Name == "Fac.ComputeFac" {
			fac = fn
		}
	}
	if fac == nil {
		t.Fatal("expected a lowered function named Fac.ComputeFac")
	}
	if len(fac.Params) != 2 || fac.Params[0] != "this" || fac.Params[1] != "num" {
		t.Errorf("Fac.ComputeFac params = %v, want [this num]", fac.Params)
	}

	text := fac.String()
	if !strings.Contains(text, "LtS") {
		t.Error("expected the if condition to lower to LtS")
	}
	if !strings.Contains(text, "call ") {
		t.Error("expected a virtual dispatch call in the recursive branch")
	}
	if !strings.Contains(text, "ret ") {
		t.Error("expected a trailing ret")
	}
}

func TestLowerEmitsVtableConsts(t *testing.T) {
	mod := buildModule(t, demo.BinaryTreeInsert())

	found := false
	for _, vt := range mod.Vtables {
		if vt.Class == "Square" {
			found = true
			if len(vt.Entries) == 0 {
				t.Error("Square's vtable should not be empty")
			}
		}
	}
	if !found {
		t.Error("expected a const vmt_Square segment")
	}
}

func TestLowerNewArraySetsNeedsAlloc(t *testing.T) {
	mod := buildModule(t, demo.BinaryTreeInsert())
	if !mod.NeedsAlloc {
		t.Error("a program allocating `new int[n]` should set Module.NeedsAlloc")
	}
}

// TestLowerMainLocalArrayHitsBoundsGuard lowers the literal spec.md Scenario S2 (`int[] x; x = new int[3];
// System.out.println(x[5]);` declared directly in main) and checks the lowered Main function both allocates
// the array and emits the array-bounds-guard's Error call.
func TestLowerMainLocalArrayHitsBoundsGuard(t *testing.T) {
	mod := buildModule(t, demo.ArrayBoundsDemo())

	var main *vapor.Function
	for _, fn := range mod.Functions {
		if fn.Name == "Main" {
			main = fn
		}
	}
	if main == nil {
		t.Fatal("expected a Main function")
	}

	text := main.String()
	if !strings.Contains(text, "AllocArray") {
		t.Errorf("expected main's local array to lower to an AllocArray call, got:\n%s", text)
	}
	if !strings.Contains(text, `Error("array index out of bounds")`) {
		t.Errorf("expected the array-bounds guard to be emitted, got:\n%s", text)
	}
	if !mod.NeedsAlloc {
		t.Error("a local array allocated in main should set Module.NeedsAlloc")
	}
}

func TestMainFunctionHasNoParams(t *testing.T) {
	mod := buildModule(t, demo.Factorial())
	var main *vapor.Function
	for _, fn := range mod.Functions {
		if fn.Name == "Main" {
			main = fn
		}
	}
	if main == nil {
		t.Fatal("expected a Main function")
	}
	if len(main.Params) != 0 {
		t.Errorf("Main.Params = %v, want none", main.Params)
	}
}
