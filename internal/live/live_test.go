package live

import (
	"testing"

	"vaporc/internal/vapor"
)

func TestAnalyzeParamsLiveFromEntry(t *testing.T) {
	fn := vapor.NewFunction("C.m", []string{"this", "num"})
	fn.ParamLine = 0
	fn.EmitAssign("t.0", vapor.Var("num"))
	fn.EmitRet(vapor.Var("t.0"), true)

	res := Analyze(fn)
	num, ok := res.Intervals["num"]
	if !ok {
		t.Fatal("expected an interval for num")
	}
	if num.Start != 0 {
		t.Errorf("num.Start = %d, want 0 (ParamLine)", num.Start)
	}
	if num.End < num.Start {
		t.Errorf("num.End (%d) < num.Start (%d)", num.End, num.Start)
	}
}

func TestAnalyzeWriteThenReadExtendsEnd(t *testing.T) {
	fn := vapor.NewFunction("C.m", nil)
	fn.EmitAssign("x", vapor.Int(1))
	fn.EmitAssign("y", vapor.Var("x"))
	fn.EmitRet(vapor.Var("y"), true)

	res := Analyze(fn)
	x := res.Intervals["x"]
	if x.Start != 1 || x.End != 2 {
		t.Errorf("x interval = [%d,%d], want [1,2]", x.Start, x.End)
	}
}

func TestAnalyzeCallSetsOutCountAboveFourArgs(t *testing.T) {
	fn := vapor.NewFunction("C.m", nil)
	args := []vapor.Operand{vapor.Int(1), vapor.Int(2), vapor.Int(3), vapor.Int(4), vapor.Int(5), vapor.Int(6)}
	fn.EmitCall("t.0", vapor.Addr("C.other"), args)
	fn.EmitRet(vapor.Var("t.0"), true)

	res := Analyze(fn)
	if res.OutCount != 2 {
		t.Errorf("OutCount = %d, want 2 (6 args - 4 register args)", res.OutCount)
	}
}

func TestAnalyzeAfterCallConservative(t *testing.T) {
	fn := vapor.NewFunction("C.m", nil)
	fn.EmitAssign("x", vapor.Int(1))          // line 1, x live [1, ...]
	fn.EmitCall("t.0", vapor.Addr("C.other"), nil) // line 2, a call
	fn.EmitRet(vapor.Var("x"), true)          // line 3, x read, extends End to 3

	res := Analyze(fn)
	x := res.Intervals["x"]
	if !x.AfterCall {
		t.Error("x spans the call at line 2, so it must be marked AfterCall")
	}

	fn2 := vapor.NewFunction("C.n", nil)
	fn2.EmitAssign("y", vapor.Int(1))
	fn2.EmitRet(vapor.Var("y"), true)
	fn2.EmitCall("t.0", vapor.Addr("C.other"), nil) // dead code after ret, but still a call line

	res2 := Analyze(fn2)
	y := res2.Intervals["y"]
	if y.AfterCall {
		t.Error("y's interval ends before the call line, must not be marked AfterCall")
	}
}

func TestAnalyzeForwardBranchExtendsLiveRangeToLabel(t *testing.T) {
	fn := vapor.NewFunction("C.m", nil)
	fn.EmitAssign("x", vapor.Int(1))       // line 1
	fn.EmitBranch(vapor.Var("x"), "if0", true) // line 2: if0 x goto :if0
	fn.EmitAssign("y", vapor.Var("x"))     // line 3: then-arm reads x
	fn.EmitLabel("if0")                    // line 4: skip target
	fn.EmitRet(vapor.Var("y"), false)      // line 5

	res := Analyze(fn)
	x := res.Intervals["x"]
	if x.End < 4 {
		t.Errorf("x.End = %d, want >= 4: a branch skipping past x's use must keep it live to the label", x.End)
	}
}

func TestAnalyzeOrderIsFirstAppearance(t *testing.T) {
	fn := vapor.NewFunction("C.m", []string{"a"})
	fn.EmitAssign("b", vapor.Var("a"))
	fn.EmitAssign("c", vapor.Var("b"))

	res := Analyze(fn)
	if len(res.Order) != 3 || res.Order[0] != "a" || res.Order[1] != "b" || res.Order[2] != "c" {
		t.Errorf("Order = %v, want [a b c]", res.Order)
	}
}
