// Package layout computes class memory layout (spec.md §3 Layout, §4.2): object size, field offsets and
// vtable slot assignment with override-in-place, emitted in a topological (parents-first) order of the
// inheritance forest.
package layout

import (
	"vaporc/internal/cerr"
	"vaporc/internal/symtab"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// VSlot is one entry of a class's vtable: the method name and the class that provides its current
// implementation (the declaring class, or an overriding descendant).
type VSlot struct {
	Method  string
	Defines string // class providing the implementation occupying this slot.
}

// ClassLayout is the finalized per-class layout (spec.md §3).
type ClassLayout struct {
	Class      string
	Fields     []symtab.Field // inherited fields, base-to-derived order, one entry each (no shadowing).
	FieldIndex map[string]int // field name -> index into Fields.
	Vtable     []VSlot         // base-to-derived declaration order, overrides replacing the base entry in place.
	MethodSlot map[string]int  // method name -> index into Vtable.
}

// Layout is the full set of ClassLayouts, keyed by class name, plus the order they must be emitted in.
type Layout struct {
	classes map[string]*ClassLayout
	order   []string // topological (parents-first) emission order.
}

// ---------------------
// ----- Constants -----
// ---------------------

// headerSize is the object header: 4 bytes reserved for the vtable pointer (spec.md §3).
const headerSize = 4

// fieldSize is the fixed width of every MiniJava field slot (ints, booleans and references are all 4 bytes).
const fieldSize = 4

// -------------------
// ----- globals -----
// -------------------

// ---------------------
// ----- functions -----
// ---------------------

// Build finalizes the layout of every class in st, in topological order of the inheritance forest.
func Build(st *symtab.SymbolTable) (*Layout, error) {
	classes := st.Classes()
	l := &Layout{classes: make(map[string]*ClassLayout, len(classes)), order: make([]string, 0, len(classes))}

	visited := make(map[string]bool, len(classes))
	var visit func(ci *symtab.ClassInfo) error
	visit = func(ci *symtab.ClassInfo) error {
		if visited[ci.Name] {
			return nil
		}
		visited[ci.Name] = true
		if ci.HasParent {
			parent, ok := st.Class(ci.Parent)
			if !ok {
				return cerr.NewError(cerr.UnknownClass, 0, 0, "class %q extends unknown class %q", ci.Name, ci.Parent)
			}
			if err := visit(parent); err != nil {
				return err
			}
		}
		cl := buildOne(ci, st, l)
		l.classes[ci.Name] = cl
		l.order = append(l.order, ci.Name)
		return nil
	}

	for _, ci := range classes {
		if err := visit(ci); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// buildOne computes the ClassLayout for ci, given that its parent's ClassLayout (if any) already exists in l.
func buildOne(ci *symtab.ClassInfo, st *symtab.SymbolTable, l *Layout) *ClassLayout {
	cl := &ClassLayout{Class: ci.Name, FieldIndex: make(map[string]int), MethodSlot: make(map[string]int)}

	if ci.HasParent {
		parent := l.classes[ci.Parent]
		cl.Fields = append(cl.Fields, parent.Fields...)
		for name, idx := range parent.FieldIndex {
			cl.FieldIndex[name] = idx
		}
		cl.Vtable = append(cl.Vtable, parent.Vtable...)
		for name, idx := range parent.MethodSlot {
			cl.MethodSlot[name] = idx
		}
	}

	for _, f := range ci.Fields {
		cl.FieldIndex[f.Name] = len(cl.Fields)
		cl.Fields = append(cl.Fields, f)
	}

	for _, m := range ci.Methods {
		if idx, ok := cl.MethodSlot[m.Name]; ok {
			// Override: replace the inherited entry in place, preserving its slot index (spec.md §3, invariant 3).
			cl.Vtable[idx] = VSlot{Method: m.Name, Defines: ci.Name}
			continue
		}
		cl.MethodSlot[m.Name] = len(cl.Vtable)
		cl.Vtable = append(cl.Vtable, VSlot{Method: m.Name, Defines: ci.Name})
	}

	return cl
}

// Of returns the finalized ClassLayout for class, or nil if class was not laid out.
func (l *Layout) Of(class string) *ClassLayout {
	return l.classes[class]
}

// Order returns every laid-out class name in topological (parents-first) order.
func (l *Layout) Order() []string {
	return l.order
}

// ObjectSize returns object_size(c) = 4 + 4*|fields*(c)| (spec.md §3).
func (cl *ClassLayout) ObjectSize() int {
	return headerSize + fieldSize*len(cl.Fields)
}

// FieldOffset returns field_offset(c, f) = 4 + 4*index_of(f in fields*(c)).
func (cl *ClassLayout) FieldOffset(field string) (int, bool) {
	idx, ok := cl.FieldIndex[field]
	if !ok {
		return 0, false
	}
	return headerSize + fieldSize*idx, true
}

// MethodSlotOffset returns method_slot(c, m) = 4 * index_in_vtable.
func (cl *ClassLayout) MethodSlotOffset(method string) (int, bool) {
	idx, ok := cl.MethodSlot[method]
	if !ok {
		return 0, false
	}
	return fieldSize * idx, true
}
