// Package vaporm rewrites a lowered vapor.Module into VaporM textual source (spec.md §3 VaporM, §6): every
// variable operand is resolved to the register or local[]/in[]/out[] stack slot the allocator (internal/lsra)
// assigned it, following the register-argument calling convention (first four parameters in $a0-$a3, the rest
// on the stack).
package vaporm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"vaporc/internal/live"
	"vaporc/internal/lsra"
	"vaporc/internal/vapor"
)

// ---------------------
// ----- Constants -----
// ---------------------

// argRegs are the fixed argument-passing registers for a call's first four arguments; retReg carries a
// function's return value. Neither belongs to the allocatable pool (spec.md §4.5) — they are transient copy
// sources/targets at call boundaries only.
var argRegs = []string{"$a0", "$a1", "$a2", "$a3"}

const retReg = "$v0"

// ---------------------
// ----- functions -----
// ---------------------

// Render rewrites every function and vtable of mod into VaporM source text.
func Render(mod *vapor.Module) (string, error) {
	sb := strings.Builder{}
	for _, vt := range mod.Vtables {
		sb.WriteString(fmt.Sprintf("const vmt_%s\n", vt.Class))
		for _, e := range vt.Entries {
			sb.WriteString("\t:" + e + "\n")
		}
		sb.WriteRune('\n')
	}
	for _, fn := range mod.Functions {
		text, err := RenderFunction(fn)
		if err != nil {
			return "", errors.Wrapf(err, "vaporm: function %s", fn.Name)
		}
		sb.WriteString(text)
		sb.WriteRune('\n')
	}
	if mod.NeedsAlloc {
		sb.WriteString(allocArrayVaporM())
	}
	return sb.String(), nil
}

// RenderParallel behaves like Render but fans RenderFunction out across threads worker goroutines — each
// function's liveness/allocation state is independent and discarded once it is rendered, so the fan-out is a
// pure throughput gain with no effect on the emitted text (spec.md §5). Falls back to Render when threads <= 1
// or there is at most one function.
func RenderParallel(mod *vapor.Module, threads int) (string, error) {
	if threads <= 1 || len(mod.Functions) <= 1 {
		return Render(mod)
	}
	if threads > len(mod.Functions) {
		threads = len(mod.Functions)
	}

	texts := make([]string, len(mod.Functions))
	errs := make([]error, len(mod.Functions))
	jobs := make(chan int, len(mod.Functions))
	for i := range mod.Functions {
		jobs <- i
	}
	close(jobs)

	wg := sync.WaitGroup{}
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				text, err := RenderFunction(mod.Functions[idx])
				texts[idx] = text
				errs[idx] = err
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return "", errors.Wrapf(err, "vaporm: function %s", mod.Functions[i].Name)
		}
	}

	sb := strings.Builder{}
	for _, vt := range mod.Vtables {
		sb.WriteString(fmt.Sprintf("const vmt_%s\n", vt.Class))
		for _, e := range vt.Entries {
			sb.WriteString("\t:" + e + "\n")
		}
		sb.WriteRune('\n')
	}
	for _, text := range texts {
		sb.WriteString(text)
		sb.WriteRune('\n')
	}
	if mod.NeedsAlloc {
		sb.WriteString(allocArrayVaporM())
	}
	return sb.String(), nil
}

// RenderFunction runs liveness and register allocation over fn and emits its VaporM text. Independent per
// function, so callers may run it across functions concurrently (internal/compiler does so when Options.Threads
// is greater than 1).
func RenderFunction(fn *vapor.Function) (string, error) {
	res := live.Analyze(fn)
	alloc := lsra.Allocate(res)

	inCount := 0
	if len(fn.Params) > 4 {
		inCount = len(fn.Params) - 4
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("func %s [in %d, out %d, local %d]\n", fn.Name, inCount, res.OutCount, alloc.NumSpills))

	saves := sortedCalleeSaves(alloc)
	for _, cs := range saves {
		sb.WriteString(fmt.Sprintf("\tlocal[%d] = %s\n", cs.slot, cs.reg))
	}

	for i, p := range fn.Params {
		var src string
		if i < 4 {
			src = argRegs[i]
		} else {
			src = fmt.Sprintf("in[%d]", i-4)
		}
		sb.WriteString(fmt.Sprintf("\t%s = %s\n", locText(alloc, p), src))
	}

	type item struct {
		line    int
		isLabel bool
		label   string
		instr   vapor.Instruction
	}
	items := make([]item, 0, len(fn.Instrs)+len(fn.Labels))
	for _, ins := range fn.Instrs {
		items = append(items, item{line: ins.Line(), instr: ins})
	}
	for _, lbl := range fn.Labels {
		items = append(items, item{line: lbl.LineNo, isLabel: true, label: lbl.Name})
	}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1].line > items[j].line; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}

	for _, it := range items {
		if it.isLabel {
			sb.WriteString(it.label + ":\n")
			continue
		}
		if ret, isRet := it.instr.(vapor.Ret); isRet {
			if ret.HasVal {
				sb.WriteString(fmt.Sprintf("\t%s = %s\n", retReg, operandText(ret.Val, alloc)))
			}
			for _, cs := range saves {
				sb.WriteString(fmt.Sprintf("\t%s = local[%d]\n", cs.reg, cs.slot))
			}
			sb.WriteString("\tret\n")
			continue
		}
		text, err := renderInstr(it.instr, alloc)
		if err != nil {
			return "", err
		}
		sb.WriteRune('\t')
		sb.WriteString(text)
		sb.WriteRune('\n')
	}
	return sb.String(), nil
}

// calleeSave pairs a used callee-saved register with the local[] slot preserving its caller's value.
type calleeSave struct {
	reg  string
	slot int
}

// sortedCalleeSaves returns alloc.CalleeSaves ordered by slot so the prologue/epilogue emit in a deterministic,
// first-acquired order.
func sortedCalleeSaves(alloc *lsra.Allocation) []calleeSave {
	saves := make([]calleeSave, 0, len(alloc.CalleeSaves))
	for reg, slot := range alloc.CalleeSaves {
		saves = append(saves, calleeSave{reg: reg, slot: slot})
	}
	sort.Slice(saves, func(i, j int) bool { return saves[i].slot < saves[j].slot })
	return saves
}

// locText resolves a variable name to its VaporM operand text: a register, or a local[] spill slot.
func locText(alloc *lsra.Allocation, name string) string {
	loc, ok := alloc.Locations[name]
	if !ok || !loc.Spilled {
		return loc.Register
	}
	return fmt.Sprintf("local[%d]", loc.Slot)
}

// operandText renders a Vapor operand in VaporM text, resolving variables through alloc.
func operandText(op vapor.Operand, alloc *lsra.Allocation) string {
	if op.IsVar() {
		return locText(alloc, op.Name)
	}
	return op.String()
}

// renderInstr rewrites one Vapor instruction into its VaporM text, which may be more than one physical line
// (a Call marshals its arguments into $a0-$a3/out[] first, then issues the call, then copies $v0 to its dst).
func renderInstr(instr vapor.Instruction, alloc *lsra.Allocation) (string, error) {
	switch i := instr.(type) {
	case vapor.Assign:
		return fmt.Sprintf("%s = %s", locText(alloc, i.Dst), operandText(i.Src, alloc)), nil
	case vapor.Call:
		return renderCall(i, alloc), nil
	case vapor.Builtin:
		args := make([]string, len(i.Args))
		for j, a := range i.Args {
			args[j] = operandText(a, alloc)
		}
		body := fmt.Sprintf("%s(%s)", i.Op, strings.Join(args, " "))
		if i.Dst == "" {
			return body, nil
		}
		return fmt.Sprintf("%s = %s", locText(alloc, i.Dst), body), nil
	case vapor.MemWrite:
		return fmt.Sprintf("[%s+%d] = %s", operandText(i.Base, alloc), i.Offset, operandText(i.Src, alloc)), nil
	case vapor.MemRead:
		return fmt.Sprintf("%s = [%s+%d]", locText(alloc, i.Dst), operandText(i.Base, alloc), i.Offset), nil
	case vapor.Branch:
		mnemonic := "if"
		if i.Negated {
			mnemonic = "if0"
		}
		return fmt.Sprintf("%s %s goto :%s", mnemonic, operandText(i.Cond, alloc), i.Target), nil
	case vapor.Goto:
		return fmt.Sprintf("goto :%s", i.Target), nil
	case vapor.Ret:
		if !i.HasVal {
			return "ret", nil
		}
		return fmt.Sprintf("%s = %s\nret", retReg, operandText(i.Val, alloc)), nil
	default:
		return "", errors.Errorf("vaporm: unhandled instruction %T", instr)
	}
}

// renderCall marshals a Call's arguments into the register/stack calling convention, issues the call, and
// copies $v0 into the destination's allocated location.
func renderCall(i vapor.Call, alloc *lsra.Allocation) string {
	lines := make([]string, 0, len(i.Args)+2)
	for j, arg := range i.Args {
		if j < 4 {
			lines = append(lines, fmt.Sprintf("%s = %s", argRegs[j], operandText(arg, alloc)))
		} else {
			lines = append(lines, fmt.Sprintf("out[%d] = %s", j-4, operandText(arg, alloc)))
		}
	}
	lines = append(lines, fmt.Sprintf("call %s", operandText(i.Addr, alloc)))
	if i.Dst != "" {
		lines = append(lines, fmt.Sprintf("%s = %s", locText(alloc, i.Dst), retReg))
	}
	return strings.Join(lines, "\n\t")
}

// allocArrayVaporM is the fixed VaporM rendering of the AllocArray runtime helper (spec.md §4.3, §6): it never
// goes through liveness/allocation since its three temporaries fit trivially in the caller-saved pool.
func allocArrayVaporM() string {
	return "func AllocArray [in 0, out 0, local 0]\n" +
		"\t$t0 = $a0\n" +
		"\t$t1 = MulS($t0 4)\n" +
		"\t$t1 = Add($t1 4)\n" +
		"\t$t2 = HeapAllocZ($t1)\n" +
		"\t[$t2+0] = $t0\n" +
		"\t$v0 = $t2\n" +
		"\tret\n"
}
