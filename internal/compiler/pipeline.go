package compiler

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"vaporc/internal/layout"
	"vaporc/internal/lower"
	"vaporc/internal/mjast"
	"vaporc/internal/symtab"
	"vaporc/internal/typecheck"
	"vaporc/internal/vapor"
	"vaporc/internal/vaporm"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options is the direct descendant of the teacher's util.Options: the per-run knobs every phase reads.
type Options struct {
	Verbose bool // log a line per phase boundary via logrus.
	Threads int  // > 1 fans liveness+allocation out across functions (spec.md §5); <= 1 is sequential.
}

// Pipeline composes the five phases (A symbol table, B type checker, C class layout, D Vapor lowerer, E LSRA)
// behind Options, mirroring the teacher's sequential src/main.go `run` function.
type Pipeline struct {
	Opt Options
}

// Checked is the result of running phases A and B: a fully validated symbol table.
type Checked struct {
	Symbols *symtab.SymbolTable
}

// Lowered is the result of running phases A-D: the class layout plus the lowered Vapor module.
type Lowered struct {
	Checked
	Layout *layout.Layout
	Vapor  *vapor.Module
}

// ---------------------
// ----- functions -----
// ---------------------

// New builds a Pipeline from opt.
func New(opt Options) *Pipeline {
	return &Pipeline{Opt: opt}
}

// Check runs phases A (symbol table) and B (type checker) over prog.
func (p *Pipeline) Check(prog *mjast.Program) (*Checked, error) {
	p.logf("building symbol table")
	st, err := symtab.Build(prog)
	if err != nil {
		return nil, errors.Wrap(err, "symbol table")
	}

	p.logf("type checking")
	if err := typecheck.Check(prog, st); err != nil {
		return nil, errors.Wrap(err, "type check")
	}

	return &Checked{Symbols: st}, nil
}

// Lower runs phases A-D: Check, then class layout (C) and the Vapor lowerer (D).
func (p *Pipeline) Lower(prog *mjast.Program) (*Lowered, error) {
	checked, err := p.Check(prog)
	if err != nil {
		return nil, err
	}

	p.logf("computing class layout")
	lay, err := layout.Build(checked.Symbols)
	if err != nil {
		return nil, errors.Wrap(err, "class layout")
	}

	p.logf("lowering to vapor")
	mod, err := lower.Lower(prog, checked.Symbols, lay)
	if err != nil {
		return nil, errors.Wrap(err, "vapor lowering")
	}

	return &Lowered{Checked: *checked, Layout: lay, Vapor: mod}, nil
}

// Allocate runs the full pipeline A-E, returning the finalized VaporM source text (spec.md §6). When
// Options.Threads is greater than 1, liveness and register allocation (E) run per function in parallel —
// allocator state is per-function and discarded once that function is rendered (spec.md §5), so the fan-out
// changes only throughput, never the result.
func (p *Pipeline) Allocate(prog *mjast.Program) (string, error) {
	lowered, err := p.Lower(prog)
	if err != nil {
		return "", err
	}

	p.logf("allocating registers (threads=%d)", p.Opt.Threads)
	text, err := vaporm.RenderParallel(lowered.Vapor, p.Opt.Threads)
	if err != nil {
		return "", errors.Wrap(err, "register allocation")
	}
	return text, nil
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.Opt.Verbose {
		logrus.Infof(format, args...)
	}
}
