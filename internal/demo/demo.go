// Package demo builds canonical MiniJava programs directly as mjast trees, standing in for the concrete-syntax
// front end this repository assumes (SPEC_FULL.md §1): the CLI's check/lower/allocate subcommands and the
// integration tests both exercise the pipeline through these programmatic builders rather than parsing source text.
package demo

import (
	"vaporc/internal/mjast"
	"vaporc/internal/mjtype"
)

// ---------------------
// ----- functions -----
// ---------------------

// Factorial builds the textbook `class Factorial { ... } class Fac { int ComputeFac(int num) {...} }` program:
// single class, one recursive method, no inheritance. main prints ComputeFac(10) = 3628800.
func Factorial() *mjast.Program {
	// if (num < 1) num_aux = 1; else num_aux = num * this.ComputeFac(num-1);
	cond := &mjast.BinaryExpr{Op: mjast.OpLt, Left: &mjast.Identifier{Name: "num"}, Right: &mjast.IntLiteral{Value: 1}}
	thenAssign := &mjast.Assign{Name: "num_aux", Value: &mjast.IntLiteral{Value: 1}}
	recurse := &mjast.MethodCall{
		Receiver: &mjast.This{},
		Method:   "ComputeFac",
		Args:     []mjast.Expr{&mjast.BinaryExpr{Op: mjast.OpSub, Left: &mjast.Identifier{Name: "num"}, Right: &mjast.IntLiteral{Value: 1}}},
	}
	elseAssign := &mjast.Assign{
		Name:  "num_aux",
		Value: &mjast.BinaryExpr{Op: mjast.OpMul, Left: &mjast.Identifier{Name: "num"}, Right: &mjast.Paren{Inner: recurse}},
	}

	computeFac := &mjast.MethodDecl{
		Name:       "ComputeFac",
		Params:     []mjast.VarDecl{{Name: "num", Type: mjtype.Type{Kind: mjtype.Int}}},
		Locals:     []mjast.VarDecl{{Name: "num_aux", Type: mjtype.Type{Kind: mjtype.Int}}},
		Return:     mjtype.Type{Kind: mjtype.Int},
		Body:       []mjast.Stmt{&mjast.If{Cond: cond, Then: thenAssign, Else: elseAssign}},
		ReturnExpr: &mjast.Identifier{Name: "num_aux"},
	}

	fac := &mjast.ClassDecl{Name: "Fac", Methods: []*mjast.MethodDecl{computeFac}}

	call := &mjast.MethodCall{
		Receiver: &mjast.NewObject{Class: "Fac"},
		Method:   "ComputeFac",
		Args:     []mjast.Expr{&mjast.IntLiteral{Value: 10}},
	}

	return &mjast.Program{
		Main: mjast.MainClass{
			Name:    "Factorial",
			ArgName: "a",
			Body:    &mjast.Block{Stmts: []mjast.Stmt{&mjast.Println{Arg: call}}},
		},
		Classes: []*mjast.ClassDecl{fac},
	}
}

// ArrayBoundsDemo builds the literal `class M { public static void main(String[] a) { int[] x; x = new
// int[3]; System.out.println(x[5]); } }` program: a local array declared directly in main (exercising
// MainClass.Locals), then indexed out of bounds, exercising the array-bounds-guard path's Error("array index
// out of bounds") call (spec.md §4.3) with no class declarations at all.
func ArrayBoundsDemo() *mjast.Program {
	return &mjast.Program{
		Main: mjast.MainClass{
			Name:    "M",
			ArgName: "a",
			Locals:  []mjast.VarDecl{{Name: "x", Type: mjtype.Type{Kind: mjtype.IntArray}}},
			Body: &mjast.Block{Stmts: []mjast.Stmt{
				&mjast.Assign{Name: "x", Value: &mjast.NewArray{Size: &mjast.IntLiteral{Value: 3}}},
				&mjast.Println{Arg: &mjast.ArrayIndex{Array: &mjast.Identifier{Name: "x"}, Index: &mjast.IntLiteral{Value: 5}}},
			}},
		},
	}
}

// BinaryTreeInsert builds a small single-inheritance program exercising overriding and array allocation: a
// base Shape class with an overridden Area method, and a SumSquares method that allocates an int array and
// folds it with a while loop, demonstrating method-level locals (distinct from ArrayBoundsDemo's main-level
// locals); main just prints the result. It is not the textbook BST example (no parser means no need to match
// it exactly) but it walks the same feature set: inheritance, override, new int[n], array read/write, while,
// println.
func BinaryTreeInsert() *mjast.Program {
	shape := &mjast.ClassDecl{
		Name: "Shape",
		Fields: []mjast.VarDecl{
			{Name: "side", Type: mjtype.Type{Kind: mjtype.Int}},
		},
		Methods: []*mjast.MethodDecl{
			{
				Name:       "Area",
				Return:     mjtype.Type{Kind: mjtype.Int},
				ReturnExpr: &mjast.IntLiteral{Value: 0},
			},
		},
	}
	square := &mjast.ClassDecl{
		Name:      "Square",
		Parent:    "Shape",
		HasParent: true,
		Methods: []*mjast.MethodDecl{
			{
				Name:   "Area",
				Return: mjtype.Type{Kind: mjtype.Int},
				ReturnExpr: &mjast.BinaryExpr{
					Op:    mjast.OpMul,
					Left:  &mjast.Identifier{Name: "side"},
					Right: &mjast.Identifier{Name: "side"},
				},
			},
		},
	}

	// int[] sums; int i; int total;
	// sums = new int[n]; i = 0; total = 0;
	// while (i < n) { sums[i] = i * i; total = total + sums[i]; i = i + 1; }
	// return total;
	loopBody := &mjast.Block{Stmts: []mjast.Stmt{
		&mjast.ArrayAssign{
			Name:  "sums",
			Index: &mjast.Identifier{Name: "i"},
			Value: &mjast.BinaryExpr{Op: mjast.OpMul, Left: &mjast.Identifier{Name: "i"}, Right: &mjast.Identifier{Name: "i"}},
		},
		&mjast.Assign{
			Name: "total",
			Value: &mjast.BinaryExpr{
				Op:    mjast.OpAdd,
				Left:  &mjast.Identifier{Name: "total"},
				Right: &mjast.ArrayIndex{Array: &mjast.Identifier{Name: "sums"}, Index: &mjast.Identifier{Name: "i"}},
			},
		},
		&mjast.Assign{
			Name:  "i",
			Value: &mjast.BinaryExpr{Op: mjast.OpAdd, Left: &mjast.Identifier{Name: "i"}, Right: &mjast.IntLiteral{Value: 1}},
		},
	}}

	sumSquares := &mjast.MethodDecl{
		Name:   "SumSquares",
		Params: []mjast.VarDecl{{Name: "n", Type: mjtype.Type{Kind: mjtype.Int}}},
		Locals: []mjast.VarDecl{
			{Name: "sums", Type: mjtype.Type{Kind: mjtype.IntArray}},
			{Name: "i", Type: mjtype.Type{Kind: mjtype.Int}},
			{Name: "total", Type: mjtype.Type{Kind: mjtype.Int}},
		},
		Return: mjtype.Type{Kind: mjtype.Int},
		Body: []mjast.Stmt{
			&mjast.Assign{Name: "sums", Value: &mjast.NewArray{Size: &mjast.Identifier{Name: "n"}}},
			&mjast.Assign{Name: "i", Value: &mjast.IntLiteral{Value: 0}},
			&mjast.Assign{Name: "total", Value: &mjast.IntLiteral{Value: 0}},
			&mjast.While{
				Cond: &mjast.BinaryExpr{Op: mjast.OpLt, Left: &mjast.Identifier{Name: "i"}, Right: &mjast.Identifier{Name: "n"}},
				Body: loopBody,
			},
		},
		ReturnExpr: &mjast.Identifier{Name: "total"},
	}
	square.Methods = append(square.Methods, sumSquares)

	call := &mjast.MethodCall{
		Receiver: &mjast.NewObject{Class: "Square"},
		Method:   "SumSquares",
		Args:     []mjast.Expr{&mjast.IntLiteral{Value: 5}},
	}

	return &mjast.Program{
		Main:    mjast.MainClass{Name: "Shapes", ArgName: "a", Body: &mjast.Block{Stmts: []mjast.Stmt{&mjast.Println{Arg: call}}}},
		Classes: []*mjast.ClassDecl{shape, square},
	}
}
