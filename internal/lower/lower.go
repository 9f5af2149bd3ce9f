// Package lower implements the Vapor Lowerer (spec.md §4.3): translation of the typed MiniJava AST into
// three-address Vapor IR, using the SymbolTable (internal/symtab) and Layout (internal/layout) computed by the
// earlier phases.
package lower

import (
	"fmt"

	"vaporc/internal/layout"
	"vaporc/internal/mjast"
	"vaporc/internal/mjtype"
	"vaporc/internal/symtab"
	"vaporc/internal/typecheck"
	"vaporc/internal/vapor"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ctx carries the per-method state the lowerer threads through expression/statement lowering.
type ctx struct {
	fn    *vapor.Function
	mod   *vapor.Module
	st    *symtab.SymbolTable
	lay   *layout.Layout
	sc    typecheck.Scope
	class string // "" for main.
}

// ---------------------
// ----- Constants -----
// ---------------------

// -------------------
// ----- globals -----
// -------------------

// ---------------------
// ----- functions -----
// ---------------------

// Lower translates prog into a complete Vapor Module (spec.md §4.3), given the SymbolTable and Layout computed
// by the preceding phases.
func Lower(prog *mjast.Program, st *symtab.SymbolTable, lay *layout.Layout) (*vapor.Module, error) {
	m := &vapor.Module{}

	for _, className := range lay.Order() {
		cl := lay.Of(className)
		entries := make([]string, len(cl.Vtable))
		for i, slot := range cl.Vtable {
			entries[i] = fmt.Sprintf("%s.%s", slot.Defines, slot.Method)
		}
		m.Vtables = append(m.Vtables, vapor.Vtable{Class: className, Entries: entries})
	}

	mainFn := vapor.NewFunction("Main", nil)
	mc := &ctx{fn: mainFn, mod: m, st: st, lay: lay, sc: typecheck.NewMainScope(st.MainLocals)}
	if err := mc.lowerStmt(prog.Main.Body); err != nil {
		return nil, err
	}
	m.Functions = append(m.Functions, mainFn)

	for _, cd := range prog.Classes {
		ci, ok := st.Class(cd.Name)
		if !ok {
			continue
		}
		for i, md := range cd.Methods {
			mi := ci.Methods[i]
			fn, err := lowerMethod(cd, md, mi, st, lay, m)
			if err != nil {
				return nil, err
			}
			m.Functions = append(m.Functions, fn)
		}
	}

	return m, nil
}

// lowerMethod lowers a single method body to a Vapor Function named "C.m" (spec.md §4.3).
func lowerMethod(cd *mjast.ClassDecl, md *mjast.MethodDecl, mi *symtab.MethodInfo, st *symtab.SymbolTable,
	lay *layout.Layout, m *vapor.Module) (*vapor.Function, error) {

	params := make([]string, 0, len(md.Params)+1)
	params = append(params, "this")
	for _, p := range md.Params {
		params = append(params, p.Name)
	}

	fn := vapor.NewFunction(fmt.Sprintf("%s.%s", cd.Name, md.Name), params)
	c := &ctx{fn: fn, mod: m, st: st, lay: lay, sc: typecheck.NewMethodScope(cd.Name, mi), class: cd.Name}

	for _, s := range md.Body {
		if err := c.lowerStmt(s); err != nil {
			return nil, err
		}
	}

	retOp, err := c.lowerExpr(md.ReturnExpr)
	if err != nil {
		return nil, err
	}
	fn.EmitRet(retOp, true)
	return fn, nil
}

// lowerStmt lowers one MiniJava statement into fn's instruction stream.
func (c *ctx) lowerStmt(s mjast.Stmt) error {
	switch n := s.(type) {
	case *mjast.Block:
		for _, inner := range n.Stmts {
			if err := c.lowerStmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *mjast.If:
		return c.lowerIf(n)

	case *mjast.While:
		return c.lowerWhile(n)

	case *mjast.Println:
		v, err := c.lowerExpr(n.Arg)
		if err != nil {
			return err
		}
		c.fn.EmitBuiltin("", "PrintIntS", []vapor.Operand{v})
		return nil

	case *mjast.Assign:
		v, err := c.lowerExpr(n.Value)
		if err != nil {
			return err
		}
		return c.storeIdent(n.Name, v)

	case *mjast.ArrayAssign:
		arrOp, err := c.identOperand(n.Name)
		if err != nil {
			return err
		}
		c.nullGuard(arrOp)
		lenTemp := c.fn.NewTemp()
		c.fn.EmitMemRead(lenTemp, arrOp, 0)
		idx, err := c.lowerExpr(n.Index)
		if err != nil {
			return err
		}
		c.boundsGuard(idx, vapor.Var(lenTemp))
		off := c.fn.NewTemp()
		c.fn.EmitBuiltin(off, "MulS", []vapor.Operand{idx, vapor.Int(4)})
		addr := c.fn.NewTemp()
		c.fn.EmitBuiltin(addr, "Add", []vapor.Operand{vapor.Var(off), arrOp})
		v, err := c.lowerExpr(n.Value)
		if err != nil {
			return err
		}
		c.fn.EmitMemWrite(vapor.Var(addr), 4, v)
		return nil
	}
	return fmt.Errorf("lower: unhandled statement node %T", s)
}

// lowerIf lowers `if(cond) s1 else s2` per spec.md §4.3's ifK_else/ifK_end scheme.
func (c *ctx) lowerIf(n *mjast.If) error {
	k := c.fn.NewLabel("if") // shared K suffix for the _else/_end pair.
	cond, err := c.lowerExpr(n.Cond)
	if err != nil {
		return err
	}
	c.fn.EmitBranch(cond, k+"_else", true)
	if err := c.lowerStmt(n.Then); err != nil {
		return err
	}
	c.fn.EmitGoto(k + "_end")
	c.fn.EmitLabel(k + "_else")
	if err := c.lowerStmt(n.Else); err != nil {
		return err
	}
	c.fn.EmitLabel(k + "_end")
	return nil
}

// lowerWhile lowers `while(cond) s` per spec.md §4.3's whileK_top/whileK_end scheme.
func (c *ctx) lowerWhile(n *mjast.While) error {
	k := c.fn.NewLabel("while")
	c.fn.EmitLabel(k + "_top")
	cond, err := c.lowerExpr(n.Cond)
	if err != nil {
		return err
	}
	c.fn.EmitBranch(cond, k+"_end", true)
	if err := c.lowerStmt(n.Body); err != nil {
		return err
	}
	c.fn.EmitGoto(k + "_top")
	c.fn.EmitLabel(k + "_end")
	return nil
}

// storeIdent assigns v to the local/parameter/field named name.
func (c *ctx) storeIdent(name string, v vapor.Operand) error {
	_, isField, ok := typecheck.Resolve(name, c.st, c.sc)
	if !ok {
		return fmt.Errorf("lower: unbound identifier %q survived type checking", name)
	}
	if !isField {
		c.fn.EmitAssign(name, v)
		return nil
	}
	off, ok := c.lay.Of(c.class).FieldOffset(name)
	if !ok {
		return fmt.Errorf("lower: field %q has no layout offset in class %q", name, c.class)
	}
	c.fn.EmitMemWrite(vapor.Var("this"), off, v)
	return nil
}

// identOperand returns the Operand for reading the local/parameter/field named name (spec.md §4.3 field
// access), materializing a field load into a fresh temp when necessary.
func (c *ctx) identOperand(name string) (vapor.Operand, error) {
	_, isField, ok := typecheck.Resolve(name, c.st, c.sc)
	if !ok {
		return vapor.Operand{}, fmt.Errorf("lower: unbound identifier %q survived type checking", name)
	}
	if !isField {
		return vapor.Var(name), nil
	}
	off, ok := c.lay.Of(c.class).FieldOffset(name)
	if !ok {
		return vapor.Operand{}, fmt.Errorf("lower: field %q has no layout offset in class %q", name, c.class)
	}
	t := c.fn.NewTemp()
	c.fn.EmitMemRead(t, vapor.Var("this"), off)
	return vapor.Var(t), nil
}

// nullGuard emits the null-pointer guard of spec.md §4.3: a guarded call to Error("null pointer") that only
// executes when p is 0.
func (c *ctx) nullGuard(p vapor.Operand) {
	k := c.fn.NewLabel("null")
	c.fn.EmitBranch(p, k, false) // `if p goto :k` — only falls through to Error when p == 0.
	c.fn.EmitBuiltin("", "Error", []vapor.Operand{vapor.Str("null pointer")})
	c.fn.EmitLabel(k)
}

// boundsGuard emits the array bounds guard of spec.md §4.3: index must be strictly less than length.
func (c *ctx) boundsGuard(idx, length vapor.Operand) {
	ok := c.fn.NewLabel("bounds")
	lt := c.fn.NewTemp()
	c.fn.EmitBuiltin(lt, "LtS", []vapor.Operand{idx, length})
	c.fn.EmitBranch(vapor.Var(lt), ok, false)
	c.fn.EmitBuiltin("", "Error", []vapor.Operand{vapor.Str("array index out of bounds")})
	c.fn.EmitLabel(ok)
}

// lowerExpr lowers one MiniJava expression to an Operand, per spec.md §4.3.
func (c *ctx) lowerExpr(e mjast.Expr) (vapor.Operand, error) {
	switch n := e.(type) {
	case *mjast.IntLiteral:
		return vapor.Int(n.Value), nil

	case *mjast.BoolLiteral:
		if n.Value {
			return vapor.Int(1), nil
		}
		return vapor.Int(0), nil

	case *mjast.Identifier:
		return c.identOperand(n.Name)

	case *mjast.This:
		return vapor.Var("this"), nil

	case *mjast.Paren:
		return c.lowerExpr(n.Inner)

	case *mjast.Not:
		v, err := c.lowerExpr(n.Operand)
		if err != nil {
			return vapor.Operand{}, err
		}
		t := c.fn.NewTemp()
		// Sub(1, e): !true = 1-1 = 0, !false = 1-0 = 1 — the fix to the reference implementation's Sub(e,1)
		// flagged in spec.md §9/DESIGN.md, which produces -1 for !true under the 0/1 boolean contract.
		c.fn.EmitBuiltin(t, "Sub", []vapor.Operand{vapor.Int(1), v})
		return vapor.Var(t), nil

	case *mjast.BinaryExpr:
		return c.lowerBinary(n)

	case *mjast.ArrayIndex:
		return c.lowerArrayIndex(n)

	case *mjast.ArrayLength:
		arr, err := c.lowerExpr(n.Array)
		if err != nil {
			return vapor.Operand{}, err
		}
		c.nullGuard(arr)
		t := c.fn.NewTemp()
		c.fn.EmitMemRead(t, arr, 0)
		return vapor.Var(t), nil

	case *mjast.MethodCall:
		return c.lowerMethodCall(n)

	case *mjast.NewArray:
		sz, err := c.lowerExpr(n.Size)
		if err != nil {
			return vapor.Operand{}, err
		}
		c.mod.NeedsAlloc = true
		t := c.fn.NewTemp()
		c.fn.EmitCall(t, vapor.Addr("AllocArray"), []vapor.Operand{sz})
		return vapor.Var(t), nil

	case *mjast.NewObject:
		size := c.lay.Of(n.Class).ObjectSize()
		t := c.fn.NewTemp()
		c.fn.EmitBuiltin(t, "HeapAllocZ", []vapor.Operand{vapor.Int(size)})
		c.fn.EmitMemWrite(vapor.Var(t), 0, vapor.Addr("vmt_"+n.Class))
		c.nullGuard(vapor.Var(t))
		return vapor.Var(t), nil
	}
	return vapor.Operand{}, fmt.Errorf("lower: unhandled expression node %T", e)
}

// lowerBinary lowers `&&`, `<`, `+`, `-`, `*` per spec.md §4.3.
func (c *ctx) lowerBinary(n *mjast.BinaryExpr) (vapor.Operand, error) {
	l, err := c.lowerExpr(n.Left)
	if err != nil {
		return vapor.Operand{}, err
	}
	r, err := c.lowerExpr(n.Right)
	if err != nil {
		return vapor.Operand{}, err
	}

	if n.Op == mjast.OpAnd {
		t1 := c.fn.NewTemp()
		c.fn.EmitBuiltin(t1, "MulS", []vapor.Operand{l, r})
		t2 := c.fn.NewTemp()
		c.fn.EmitBuiltin(t2, "Eq", []vapor.Operand{vapor.Int(1), vapor.Var(t1)})
		return vapor.Var(t2), nil
	}

	op := map[mjast.BinOp]string{mjast.OpLt: "LtS", mjast.OpAdd: "Add", mjast.OpSub: "Sub", mjast.OpMul: "MulS"}[n.Op]
	t := c.fn.NewTemp()
	c.fn.EmitBuiltin(t, op, []vapor.Operand{l, r})
	return vapor.Var(t), nil
}

// lowerArrayIndex lowers `a[i]` per spec.md §4.3: dereference, null guard, bounds guard, element load.
func (c *ctx) lowerArrayIndex(n *mjast.ArrayIndex) (vapor.Operand, error) {
	p, err := c.lowerExpr(n.Array)
	if err != nil {
		return vapor.Operand{}, err
	}
	c.nullGuard(p)
	lenTemp := c.fn.NewTemp()
	c.fn.EmitMemRead(lenTemp, p, 0)
	idx, err := c.lowerExpr(n.Index)
	if err != nil {
		return vapor.Operand{}, err
	}
	c.boundsGuard(idx, vapor.Var(lenTemp))
	off := c.fn.NewTemp()
	c.fn.EmitBuiltin(off, "MulS", []vapor.Operand{idx, vapor.Int(4)})
	addr := c.fn.NewTemp()
	c.fn.EmitBuiltin(addr, "Add", []vapor.Operand{vapor.Var(off), p})
	elem := c.fn.NewTemp()
	c.fn.EmitMemRead(elem, vapor.Var(addr), 4)
	return vapor.Var(elem), nil
}

// lowerMethodCall lowers `e.m(args)` per spec.md §4.3's four-step virtual dispatch sequence.
func (c *ctx) lowerMethodCall(n *mjast.MethodCall) (vapor.Operand, error) {
	recvType, err := typecheck.ExprType(n.Receiver, c.st, c.sc)
	if err != nil {
		return vapor.Operand{}, err
	}
	if recvType.Kind != mjtype.Class {
		return vapor.Operand{}, fmt.Errorf("lower: method call receiver is not a class type, got %s", recvType)
	}

	recv, err := c.lowerExpr(n.Receiver)
	if err != nil {
		return vapor.Operand{}, err
	}
	r := c.fn.NewTemp()
	c.fn.EmitAssign(r, recv)

	args := make([]vapor.Operand, 0, len(n.Args)+1)
	args = append(args, vapor.Var(r))
	for _, a := range n.Args {
		av, err := c.lowerExpr(a)
		if err != nil {
			return vapor.Operand{}, err
		}
		args = append(args, av)
	}

	slot, ok := c.lay.Of(recvType.Name).MethodSlotOffset(n.Method)
	if !ok {
		return vapor.Operand{}, fmt.Errorf("lower: method %q has no vtable slot on class %q", n.Method, recvType.Name)
	}

	vt := c.fn.NewTemp()
	c.fn.EmitMemRead(vt, vapor.Var(r), 0)
	fnAddr := c.fn.NewTemp()
	c.fn.EmitMemRead(fnAddr, vapor.Var(vt), slot)
	ret := c.fn.NewTemp()
	c.fn.EmitCall(ret, vapor.Var(fnAddr), args)
	return vapor.Var(ret), nil
}
