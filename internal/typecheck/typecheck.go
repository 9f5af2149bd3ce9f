// Package typecheck implements Pass 2 of spec.md §4.1: a tagged-union-dispatch visitor that assigns a
// mjtype.Type to every expression, validates every statement against the SymbolTable built by internal/symtab,
// and surfaces the first error.
package typecheck

import (
	"fmt"

	"vaporc/internal/cerr"
	"vaporc/internal/mjast"
	"vaporc/internal/mjtype"
	"vaporc/internal/symtab"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Scope is the lexical frame a method body is checked/lowered in: its owning class and its own MethodInfo
// (nil when checking the main class's body, which has locals of its own — spec.md Scenario S2 — but never
// fields-via-`this` or parameters beyond the unused String[] argument). internal/lower reuses Scope and
// ExprType/Resolve to avoid duplicating identifier-resolution logic.
type Scope struct {
	class      string
	method     *symtab.MethodInfo
	isMain     bool
	mainLocals []symtab.Param
}

// NewMethodScope builds the Scope for a method body of the given owning class.
func NewMethodScope(class string, method *symtab.MethodInfo) Scope {
	return Scope{class: class, method: method}
}

// NewMainScope builds the Scope for the main class's body, resolving identifiers against its locals.
func NewMainScope(mainLocals []symtab.Param) Scope {
	return Scope{isMain: true, mainLocals: mainLocals}
}

// Class returns the owning class of sc, "" for the main scope.
func (sc Scope) Class() string { return sc.class }

// IsMain reports whether sc is the main class's scope.
func (sc Scope) IsMain() bool { return sc.isMain }

// ---------------------
// ----- Constants -----
// ---------------------

// -------------------
// ----- globals -----
// -------------------

// ---------------------
// ----- functions -----
// ---------------------

// Check runs Pass 2 over prog against st, returning the first fatal error encountered, or nil if prog is
// well-typed.
func Check(prog *mjast.Program, st *symtab.SymbolTable) error {
	mainScope := NewMainScope(st.MainLocals)
	if err := checkStmt(prog.Main.Body, st, mainScope); err != nil {
		return err
	}

	for _, c := range prog.Classes {
		ci, ok := st.Class(c.Name)
		if !ok {
			continue
		}
		for i, m := range c.Methods {
			mi := ci.Methods[i]
			sc := NewMethodScope(c.Name, mi)
			for _, s := range m.Body {
				if err := checkStmt(s, st, sc); err != nil {
					return err
				}
			}
			retType, err := ExprType(m.ReturnExpr, st, sc)
			if err != nil {
				return err
			}
			if !retType.Subtype(mi.Return, st.ParentOf) {
				pos := m.ReturnExpr.Position()
				return cerr.NewTypeMismatch(pos.Line, pos.Col, mi.Return.String(), retType.String(),
					fmt.Sprintf("return value of %s.%s", c.Name, m.Name))
			}
		}
	}
	return nil
}

// lookupIdent resolves an identifier per spec.md §4.1: first a local, then a parameter, then an inherited
// field climbing the parent chain.
func lookupIdent(name string, st *symtab.SymbolTable, sc Scope) (mjtype.Type, bool) {
	t, isField, ok := Resolve(name, st, sc)
	_ = isField
	return t, ok
}

// Resolve resolves an identifier exactly like the type checker does (local, then parameter, then inherited
// field), additionally reporting whether the match was a field — the lowerer needs this to decide between a
// bare variable reference and a `[this+off]` memory load (spec.md §4.3).
func Resolve(name string, st *symtab.SymbolTable, sc Scope) (t mjtype.Type, isField bool, ok bool) {
	if sc.isMain {
		for _, l := range sc.mainLocals {
			if l.Name == name {
				return l.Type, false, true
			}
		}
	}
	if sc.method != nil {
		for _, l := range sc.method.Locals {
			if l.Name == name {
				return l.Type, false, true
			}
		}
		for _, p := range sc.method.Params {
			if p.Name == name {
				return p.Type, false, true
			}
		}
	}
	if !sc.isMain {
		if f, _, ok := st.ResolveField(sc.class, name); ok {
			return f.Type, true, true
		}
	}
	return mjtype.Type{}, false, false
}

// ExprType assigns a Type to e under scope sc, or returns the first typing error.
func ExprType(e mjast.Expr, st *symtab.SymbolTable, sc Scope) (mjtype.Type, error) {
	switch n := e.(type) {
	case *mjast.IntLiteral:
		return mjtype.Type{Kind: mjtype.Int}, nil

	case *mjast.BoolLiteral:
		return mjtype.Type{Kind: mjtype.Bool}, nil

	case *mjast.Identifier:
		if t, ok := lookupIdent(n.Name, st, sc); ok {
			return t, nil
		}
		return mjtype.Type{}, cerr.NewError(cerr.UnboundIdent, n.Pos.Line, n.Pos.Col,
			"unbound identifier %q", n.Name)

	case *mjast.This:
		if sc.isMain {
			return mjtype.Type{}, cerr.NewError(cerr.BadMain, n.Pos.Line, n.Pos.Col,
				"'this' is not available in the main class")
		}
		return mjtype.NewClass(sc.class), nil

	case *mjast.Paren:
		return ExprType(n.Inner, st, sc)

	case *mjast.Not:
		t, err := ExprType(n.Operand, st, sc)
		if err != nil {
			return mjtype.Type{}, err
		}
		if t.Kind != mjtype.Bool {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "boolean", t.String(), "operand of !")
		}
		return mjtype.Type{Kind: mjtype.Bool}, nil

	case *mjast.BinaryExpr:
		return binaryExprType(n, st, sc)

	case *mjast.ArrayIndex:
		at, err := ExprType(n.Array, st, sc)
		if err != nil {
			return mjtype.Type{}, err
		}
		if at.Kind != mjtype.IntArray {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int[]", at.String(), "array index base")
		}
		it, err := ExprType(n.Index, st, sc)
		if err != nil {
			return mjtype.Type{}, err
		}
		if it.Kind != mjtype.Int {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int", it.String(), "array index")
		}
		return mjtype.Type{Kind: mjtype.Int}, nil

	case *mjast.ArrayLength:
		at, err := ExprType(n.Array, st, sc)
		if err != nil {
			return mjtype.Type{}, err
		}
		if at.Kind != mjtype.IntArray {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int[]", at.String(), "length receiver")
		}
		return mjtype.Type{Kind: mjtype.Int}, nil

	case *mjast.MethodCall:
		return methodCallType(n, st, sc)

	case *mjast.NewArray:
		sizeType, err := ExprType(n.Size, st, sc)
		if err != nil {
			return mjtype.Type{}, err
		}
		if sizeType.Kind != mjtype.Int {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int", sizeType.String(), "array size")
		}
		return mjtype.Type{Kind: mjtype.IntArray}, nil

	case *mjast.NewObject:
		if _, ok := st.Class(n.Class); !ok {
			return mjtype.Type{}, cerr.NewError(cerr.UnknownClass, n.Pos.Line, n.Pos.Col,
				"unknown class %q in new expression", n.Class)
		}
		return mjtype.NewClass(n.Class), nil
	}
	return mjtype.Type{}, fmt.Errorf("typecheck: unhandled expression node %T", e)
}

// binaryExprType types `&&`, `<`, `+`, `-`, `*` per spec.md §4.1.
func binaryExprType(n *mjast.BinaryExpr, st *symtab.SymbolTable, sc Scope) (mjtype.Type, error) {
	lt, err := ExprType(n.Left, st, sc)
	if err != nil {
		return mjtype.Type{}, err
	}
	rt, err := ExprType(n.Right, st, sc)
	if err != nil {
		return mjtype.Type{}, err
	}

	opName := map[mjast.BinOp]string{
		mjast.OpAnd: "&&", mjast.OpLt: "<", mjast.OpAdd: "+", mjast.OpSub: "-", mjast.OpMul: "*",
	}[n.Op]

	if n.Op == mjast.OpAnd {
		if lt.Kind != mjtype.Bool || rt.Kind != mjtype.Bool {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "boolean",
				fmt.Sprintf("%s, %s", lt, rt), "operands of "+opName)
		}
		return mjtype.Type{Kind: mjtype.Bool}, nil
	}

	if lt.Kind != mjtype.Int || rt.Kind != mjtype.Int {
		return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int",
			fmt.Sprintf("%s, %s", lt, rt), "operands of "+opName)
	}
	if n.Op == mjast.OpLt {
		return mjtype.Type{Kind: mjtype.Bool}, nil
	}
	return mjtype.Type{Kind: mjtype.Int}, nil
}

// methodCallType types `e1.m(args)` per spec.md §4.1.
func methodCallType(n *mjast.MethodCall, st *symtab.SymbolTable, sc Scope) (mjtype.Type, error) {
	rt, err := ExprType(n.Receiver, st, sc)
	if err != nil {
		return mjtype.Type{}, err
	}
	if rt.Kind != mjtype.Class {
		return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "class", rt.String(), "method call receiver")
	}
	mi, ok := st.ResolveMethod(rt.Name, n.Method)
	if !ok {
		return mjtype.Type{}, cerr.NewError(cerr.UnboundMethod, n.Pos.Line, n.Pos.Col,
			"unbound method %q on class %q", n.Method, rt.Name)
	}
	if len(n.Args) != len(mi.Params) {
		return mjtype.Type{}, &cerr.CompileError{
			Kind:    cerr.ArgCountMismatch,
			Message: fmt.Sprintf("%s.%s expects %d argument(s), got %d", rt.Name, n.Method, len(mi.Params), len(n.Args)),
			Line:    n.Pos.Line,
			Col:     n.Pos.Col,
			Context: fmt.Sprintf("call to %s.%s", rt.Name, n.Method),
		}
	}
	for i, a := range n.Args {
		at, err := ExprType(a, st, sc)
		if err != nil {
			return mjtype.Type{}, err
		}
		if !at.Subtype(mi.Params[i].Type, st.ParentOf) {
			return mjtype.Type{}, cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, mi.Params[i].Type.String(), at.String(),
				fmt.Sprintf("argument %d of %s.%s", i+1, rt.Name, n.Method))
		}
	}
	return mi.Return, nil
}

// checkStmt validates s under scope sc, recursing into nested statements.
func checkStmt(s mjast.Stmt, st *symtab.SymbolTable, sc Scope) error {
	switch n := s.(type) {
	case *mjast.Block:
		for _, inner := range n.Stmts {
			if err := checkStmt(inner, st, sc); err != nil {
				return err
			}
		}
		return nil

	case *mjast.If:
		ct, err := ExprType(n.Cond, st, sc)
		if err != nil {
			return err
		}
		if ct.Kind != mjtype.Bool {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "boolean", ct.String(), "if condition")
		}
		if err := checkStmt(n.Then, st, sc); err != nil {
			return err
		}
		return checkStmt(n.Else, st, sc)

	case *mjast.While:
		ct, err := ExprType(n.Cond, st, sc)
		if err != nil {
			return err
		}
		if ct.Kind != mjtype.Bool {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "boolean", ct.String(), "while condition")
		}
		return checkStmt(n.Body, st, sc)

	case *mjast.Println:
		at, err := ExprType(n.Arg, st, sc)
		if err != nil {
			return err
		}
		if at.Kind != mjtype.Int {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int", at.String(), "println argument")
		}
		return nil

	case *mjast.Assign:
		vt, err := ExprType(n.Value, st, sc)
		if err != nil {
			return err
		}
		dt, ok := lookupIdent(n.Name, st, sc)
		if !ok {
			return cerr.NewError(cerr.UnboundIdent, n.Pos.Line, n.Pos.Col, "unbound identifier %q", n.Name)
		}
		if !vt.Subtype(dt, st.ParentOf) {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, dt.String(), vt.String(), "assignment to "+n.Name)
		}
		return nil

	case *mjast.ArrayAssign:
		dt, ok := lookupIdent(n.Name, st, sc)
		if !ok {
			return cerr.NewError(cerr.UnboundIdent, n.Pos.Line, n.Pos.Col, "unbound identifier %q", n.Name)
		}
		if dt.Kind != mjtype.IntArray {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int[]", dt.String(), "array assignment target "+n.Name)
		}
		it, err := ExprType(n.Index, st, sc)
		if err != nil {
			return err
		}
		if it.Kind != mjtype.Int {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int", it.String(), "array assignment index")
		}
		vt, err := ExprType(n.Value, st, sc)
		if err != nil {
			return err
		}
		if vt.Kind != mjtype.Int {
			return cerr.NewTypeMismatch(n.Pos.Line, n.Pos.Col, "int", vt.String(), "array assignment value")
		}
		return nil
	}
	return fmt.Errorf("typecheck: unhandled statement node %T", s)
}
