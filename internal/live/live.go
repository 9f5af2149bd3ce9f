// Package live implements liveness analysis over a Vapor function (spec.md §4.4): a single forward pass that
// builds one LiveInterval per variable, threading call-site and label bookkeeping needed by the register
// allocator (internal/lsra).
package live

import (
	"sort"

	"vaporc/internal/vapor"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Interval is the per-variable record of spec.md §3 LiveInterval.
type Interval struct {
	ID           string
	Start        int
	End          int
	AfterCall    bool
	BeforeCall   bool
	BeforeLabels map[string]bool
	AfterLabels  map[string]bool
}

// Result is the complete output of Analyze: every variable's Interval plus the out-argument high-water mark
// needed to size a VaporM function's `out` stack region (spec.md §4.4).
type Result struct {
	Intervals map[string]*Interval
	Order     []string // first-appearance order; callers should still sort by Start before allocating.
	OutCount  int
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

// Analyze runs the liveness pass of spec.md §4.4 over fn.
func Analyze(fn *vapor.Function) *Result {
	res := &Result{Intervals: make(map[string]*Interval, 16)}

	getOrCreate := func(id string) *Interval {
		iv, ok := res.Intervals[id]
		if !ok {
			iv = &Interval{ID: id, Start: -1, End: -1, BeforeLabels: map[string]bool{}, AfterLabels: map[string]bool{}}
			res.Intervals[id] = iv
			res.Order = append(res.Order, id)
		}
		return iv
	}

	read := func(id string, line int) {
		iv := getOrCreate(id)
		if iv.Start < 0 {
			iv.Start = line
		}
		if line > iv.End {
			iv.End = line
		}
	}
	write := func(id string, line int) {
		iv := getOrCreate(id)
		if iv.Start < 0 {
			iv.Start = line
			iv.End = line
		} else if line > iv.End {
			iv.End = line
		}
	}

	// Parameters are live starting at the function header's source position (spec.md §4.4).
	for _, p := range fn.Params {
		iv := getOrCreate(p)
		iv.Start = fn.ParamLine
		iv.End = fn.ParamLine
	}

	sortedLabels := append([]vapor.Label(nil), fn.Labels...)
	sort.Slice(sortedLabels, func(i, j int) bool { return sortedLabels[i].LineNo < sortedLabels[j].LineNo })

	// pendingAfter maps a not-yet-(re)reached label name to the variables that must have their range extended
	// to that label's line once it is (re-)encountered — the forward-jump-over-a-live-range case of spec.md
	// §4.4 (e.g. a variable live across a skipped `if`/`else` arm).
	pendingAfter := make(map[string][]string)
	registerAfterLabel := func(target string, line int) {
		for _, id := range res.Order {
			iv := res.Intervals[id]
			if iv.Start >= 0 && iv.Start <= line {
				if !iv.AfterLabels[target] {
					iv.AfterLabels[target] = true
					pendingAfter[target] = append(pendingAfter[target], id)
				}
			}
		}
	}

	labelIdx := 0
	callLines := make([]int, 0, 4)

	for _, instr := range fn.Instrs {
		line := instr.Line()

		// Pop every label whose source line precedes this instruction, recording it in before_labels of every
		// variable already in scope (spec.md §4.4's "pending queue of labels").
		for labelIdx < len(sortedLabels) && sortedLabels[labelIdx].LineNo < line {
			lbl := sortedLabels[labelIdx]
			for _, id := range res.Order {
				iv := res.Intervals[id]
				if iv.Start >= 0 && iv.Start <= line {
					iv.BeforeLabels[lbl.Name] = true
				}
			}
			// A (re-)encountered label resolves any pending forward-jump extension targeting it.
			if waiting, ok := pendingAfter[lbl.Name]; ok {
				for _, id := range waiting {
					iv := res.Intervals[id]
					if iv != nil && lbl.LineNo > iv.End {
						iv.End = lbl.LineNo
					}
				}
				delete(pendingAfter, lbl.Name)
			}
			labelIdx++
		}

		for _, r := range instr.Reads() {
			read(r.Name, line)
		}

		if instr.IsCall() {
			callLines = append(callLines, line)
			for _, id := range res.Order {
				iv := res.Intervals[id]
				if iv.Start >= 0 && iv.Start <= line {
					iv.BeforeCall = true
				}
			}
			if n := instr.ArgCount(); n > 4 && n-4 > res.OutCount {
				res.OutCount = n - 4
			}
		}

		if w := instr.Writes(); w != "" {
			write(w, line)
		}

		switch ins := instr.(type) {
		case vapor.Branch:
			registerAfterLabel(ins.Target, line)
		case vapor.Goto:
			registerAfterLabel(ins.Target, line)
		}
	}

	// Drain any labels occurring after the final instruction.
	for ; labelIdx < len(sortedLabels); labelIdx++ {
		lbl := sortedLabels[labelIdx]
		if waiting, ok := pendingAfter[lbl.Name]; ok {
			for _, id := range waiting {
				iv := res.Intervals[id]
				if iv != nil && lbl.LineNo > iv.End {
					iv.End = lbl.LineNo
				}
			}
		}
	}

	// Conservative after_call rule (spec.md §9 Open Questions): a variable is after_call whenever any call
	// instruction's line falls within its live range, rather than relying on the reference implementation's
	// fragile flag/label propagation. This subsumes that algorithm and preserves invariant 5.
	for _, iv := range res.Intervals {
		for _, cl := range callLines {
			if cl >= iv.Start && cl <= iv.End {
				iv.AfterCall = true
				break
			}
		}
	}

	return res
}
