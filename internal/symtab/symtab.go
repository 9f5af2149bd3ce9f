// Package symtab builds the MiniJava symbol table (spec.md §3, §4.1 Pass 1): classes, fields, methods,
// parameters and locals with single inheritance, forward-reference placeholder rewiring, and the checked
// duplicate-declaration errors.
package symtab

import (
	"fmt"

	"vaporc/internal/cerr"
	"vaporc/internal/mjast"
	"vaporc/internal/mjtype"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Field is a single (name, type) pair declared directly on a class.
type Field struct {
	Name string
	Type mjtype.Type
}

// Param is a single (name, type) pair: a method parameter or local.
type Param struct {
	Name string
	Type mjtype.Type
}

// MethodInfo describes one declared method (spec.md §3).
type MethodInfo struct {
	Owner  string // name of the declaring class.
	Name   string
	Params []Param
	Locals []Param
	Return mjtype.Type
}

// ClassInfo describes one declared class (spec.md §3). Fields and Methods are stored in declaration order, as
// declared directly on this class — not the inherited closure, which Layout (internal/layout) computes.
type ClassInfo struct {
	Name       string
	Parent     string
	HasParent  bool
	Fields     []Field
	Methods    []*MethodInfo
	preInit    bool // true while this entry exists only as a forward-reference placeholder.
}

// SymbolTable is the class-name-keyed mapping of spec.md §3, plus the distinguished MainClass.
type SymbolTable struct {
	classes    map[string]*ClassInfo
	order      []string // declaration order of real (non-placeholder) class definitions.
	MainClass  string
	MainLocals []Param
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

// Build runs Pass 1 (context building) of spec.md §4.1 over prog, returning a populated SymbolTable or the
// first fatal error encountered.
func Build(prog *mjast.Program) (*SymbolTable, error) {
	st := &SymbolTable{
		classes:   make(map[string]*ClassInfo, len(prog.Classes)+1),
		order:     make([]string, 0, len(prog.Classes)+1),
		MainClass: prog.Main.Name,
	}

	mainLocalSeen := make(map[string]bool, len(prog.Main.Locals))
	for _, l := range prog.Main.Locals {
		if mainLocalSeen[l.Name] {
			return nil, cerr.NewError(cerr.DuplicateLocal, l.Pos.Line, l.Pos.Col,
				"local %q declared more than once in main", l.Name)
		}
		mainLocalSeen[l.Name] = true
		st.MainLocals = append(st.MainLocals, Param{Name: l.Name, Type: l.Type})
	}

	for _, c := range prog.Classes {
		if err := st.declareClass(c); err != nil {
			return nil, err
		}
	}

	// Any class still marked preInit was referenced as a parent (via `extends`) but never declared.
	for name, ci := range st.classes {
		if ci.preInit {
			return nil, cerr.NewError(cerr.UnknownClass, 0, 0,
				"class %q extends undeclared class %q", childNamedBy(st, name), name)
		}
	}

	if err := st.checkAcyclic(); err != nil {
		return nil, err
	}

	if err := st.checkOverrides(); err != nil {
		return nil, err
	}

	if err := st.checkTypes(prog); err != nil {
		return nil, err
	}

	return st, nil
}

// checkTypes validates that every Class(name)-typed field, parameter, local and return type in prog actually
// names a declared class, raising UnknownType otherwise — distinct from UnknownClass, which only covers `new
// C()` and `extends P`. Runs after every class is declared so forward type references resolve correctly.
func (st *SymbolTable) checkTypes(prog *mjast.Program) error {
	checkOne := func(t mjtype.Type, pos mjast.Position, what string) error {
		if t.Kind != mjtype.Class {
			return nil
		}
		if _, ok := st.Class(t.Name); !ok {
			return cerr.NewError(cerr.UnknownType, pos.Line, pos.Col, "unknown type %q in %s", t.Name, what)
		}
		return nil
	}

	for _, l := range prog.Main.Locals {
		if err := checkOne(l.Type, l.Pos, "main"); err != nil {
			return err
		}
	}

	for _, c := range prog.Classes {
		for _, f := range c.Fields {
			if err := checkOne(f.Type, f.Pos, fmt.Sprintf("field %q of class %q", f.Name, c.Name)); err != nil {
				return err
			}
		}
		for _, m := range c.Methods {
			for _, p := range m.Params {
				if err := checkOne(p.Type, p.Pos, fmt.Sprintf("parameter %q of %q.%q", p.Name, c.Name, m.Name)); err != nil {
					return err
				}
			}
			for _, l := range m.Locals {
				if err := checkOne(l.Type, l.Pos, fmt.Sprintf("local %q of %q.%q", l.Name, c.Name, m.Name)); err != nil {
					return err
				}
			}
			if err := checkOne(m.Return, m.Pos, fmt.Sprintf("return type of %q.%q", c.Name, m.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkOverrides enforces spec.md §4.1's override rule: a method name already used by a proper ancestor is
// permitted only when parameter types match exactly and the return type is a subtype of the parent's.
// Overloading (same name, same class) was already rejected in declareClass.
func (st *SymbolTable) checkOverrides() error {
	for _, name := range st.order {
		ci := st.classes[name]
		if !ci.HasParent {
			continue
		}
		for _, m := range ci.Methods {
			parent, ok := st.ResolveMethod(ci.Parent, m.Name)
			if !ok {
				continue
			}
			if len(parent.Params) != len(m.Params) {
				return cerr.NewError(cerr.DuplicateMethod, 0, 0,
					"method %q.%q overrides %q.%q with a different parameter count", ci.Name, m.Name, parent.Owner, m.Name)
			}
			for i, p := range m.Params {
				if !p.Type.Equal(parent.Params[i].Type) {
					return cerr.NewError(cerr.DuplicateMethod, 0, 0,
						"method %q.%q overrides %q.%q with a different parameter type at position %d",
						ci.Name, m.Name, parent.Owner, m.Name, i)
				}
			}
			if !m.Return.Subtype(parent.Return, st.ParentOf) {
				return cerr.NewError(cerr.DuplicateMethod, 0, 0,
					"method %q.%q's return type %s is not a subtype of overridden %q.%q's return type %s",
					ci.Name, m.Name, m.Return, parent.Owner, m.Name, parent.Return)
			}
		}
	}
	return nil
}

// childNamedBy returns the name of a class whose Parent is parent, for diagnostics; best-effort only.
func childNamedBy(st *SymbolTable, parent string) string {
	for _, name := range st.order {
		ci := st.classes[name]
		if ci.HasParent && ci.Parent == parent {
			return ci.Name
		}
	}
	return "?"
}

// declareClass runs Pass 1 for a single class declaration, including placeholder creation/rewiring for forward
// references to its parent (spec.md §4.1, scenario S6).
func (st *SymbolTable) declareClass(c *mjast.ClassDecl) error {
	existing, ok := st.classes[c.Name]
	if ok && !existing.preInit {
		return cerr.NewError(cerr.DuplicateClass, c.Pos.Line, c.Pos.Col, "class %q already declared", c.Name)
	}

	ci := existing
	if ci == nil {
		ci = &ClassInfo{Name: c.Name}
		st.classes[c.Name] = ci
	}
	ci.Name = c.Name
	ci.HasParent = c.HasParent
	ci.Parent = c.Parent
	ci.preInit = false
	ci.Fields = make([]Field, 0, len(c.Fields))
	ci.Methods = make([]*MethodInfo, 0, len(c.Methods))
	st.order = append(st.order, c.Name)

	if c.HasParent {
		if _, ok := st.classes[c.Parent]; !ok {
			// Forward reference: create a pre_initialize placeholder that declareClass fills in later when the
			// real parent class declaration is visited. No pointer patching is needed — children reference the
			// parent by name through this map, so filling in the placeholder in place closes the reference.
			st.classes[c.Parent] = &ClassInfo{Name: c.Parent, preInit: true}
		}
	}

	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if seen[f.Name] {
			return cerr.NewError(cerr.DuplicateField, f.Pos.Line, f.Pos.Col,
				"field %q already declared in class %q", f.Name, c.Name)
		}
		seen[f.Name] = true
		ci.Fields = append(ci.Fields, Field{Name: f.Name, Type: f.Type})
	}

	methodSeen := make(map[string]bool, len(c.Methods))
	for _, m := range c.Methods {
		if methodSeen[m.Name] {
			return cerr.NewError(cerr.DuplicateMethod, m.Pos.Line, m.Pos.Col,
				"method %q overloaded in class %q: overloading is forbidden", m.Name, c.Name)
		}
		methodSeen[m.Name] = true

		mi := &MethodInfo{Owner: c.Name, Name: m.Name, Return: m.Return}

		paramSeen := make(map[string]bool, len(m.Params))
		for _, p := range m.Params {
			if paramSeen[p.Name] {
				return cerr.NewError(cerr.DuplicateParam, p.Pos.Line, p.Pos.Col,
					"parameter %q declared more than once in %q.%q", p.Name, c.Name, m.Name)
			}
			paramSeen[p.Name] = true
			mi.Params = append(mi.Params, Param{Name: p.Name, Type: p.Type})
		}

		localSeen := make(map[string]bool, len(m.Locals))
		for _, l := range m.Locals {
			if paramSeen[l.Name] || localSeen[l.Name] {
				return cerr.NewError(cerr.DuplicateLocal, l.Pos.Line, l.Pos.Col,
					"local %q declared more than once in %q.%q", l.Name, c.Name, m.Name)
			}
			localSeen[l.Name] = true
			mi.Locals = append(mi.Locals, Param{Name: l.Name, Type: l.Type})
		}

		ci.Methods = append(ci.Methods, mi)
	}

	return nil
}

// checkAcyclic verifies the inheritance graph is a forest, raising CyclicInheritance otherwise.
func (st *SymbolTable) checkAcyclic() error {
	state := make(map[string]int, len(st.classes)) // 0 unvisited, 1 in-progress, 2 done.
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case 2:
			return nil
		case 1:
			return cerr.NewError(cerr.CyclicInheritance, 0, 0, "cyclic inheritance involving class %q", name)
		}
		state[name] = 1
		ci := st.classes[name]
		if ci != nil && ci.HasParent {
			if err := visit(ci.Parent); err != nil {
				return err
			}
		}
		state[name] = 2
		return nil
	}
	for _, name := range st.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Class looks up a declared class by name. ok is false if no such class was declared.
func (st *SymbolTable) Class(name string) (ci *ClassInfo, ok bool) {
	c, ok := st.classes[name]
	return c, ok
}

// ParentOf returns the direct parent class name of name, suitable for mjtype.Type.Subtype.
func (st *SymbolTable) ParentOf(name string) (parent string, ok bool) {
	ci, ok := st.classes[name]
	if !ok || !ci.HasParent {
		return "", false
	}
	return ci.Parent, true
}

// Classes returns every declared class in declaration order.
func (st *SymbolTable) Classes() []*ClassInfo {
	res := make([]*ClassInfo, 0, len(st.order))
	for _, name := range st.order {
		res = append(res, st.classes[name])
	}
	return res
}

// ResolveField climbs the inheritance chain of class starting at className, returning the first Field named
// fieldName and the class that declares it.
func (st *SymbolTable) ResolveField(className, fieldName string) (f Field, owner string, ok bool) {
	for cur, found := st.classes[className], true; found; cur, found = st.classes[cur.Parent] {
		if cur == nil {
			return Field{}, "", false
		}
		for _, fl := range cur.Fields {
			if fl.Name == fieldName {
				return fl, cur.Name, true
			}
		}
		if !cur.HasParent {
			break
		}
	}
	return Field{}, "", false
}

// ResolveMethod climbs the inheritance chain of class starting at className, returning the first MethodInfo
// named methodName, i.e. the closest declaration; its Owner field names the class that declares it.
func (st *SymbolTable) ResolveMethod(className, methodName string) (mi *MethodInfo, ok bool) {
	cur, found := st.classes[className], true
	for found {
		if cur == nil {
			return nil, false
		}
		for _, m := range cur.Methods {
			if m.Name == methodName {
				return m, true
			}
		}
		if !cur.HasParent {
			return nil, false
		}
		cur, found = st.classes[cur.Parent]
	}
	return nil, false
}
