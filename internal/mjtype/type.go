// Package mjtype provides the MiniJava Type tagged union and the subtype relation used by the type checker,
// the class layout pass and the Vapor lowerer.
package mjtype

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind differentiates the variants of a MiniJava Type.
type Kind int

// Type is a tagged union over MiniJava's small set of static types. Equality is structural: two Types are equal
// iff their Kind matches and, for Kind == Class, their Name matches.
type Type struct {
	Kind Kind   // Kind is the tag of the union.
	Name string // Name is the class name; only meaningful when Kind == Class.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Int Kind = iota
	Bool
	IntArray
	Class
	Void
)

var kindNames = [...]string{
	Int:      "int",
	Bool:     "boolean",
	IntArray: "int[]",
	Class:    "class",
	Void:     "void",
}

// -------------------
// ----- globals -----
// -------------------

// ---------------------
// ----- functions -----
// ---------------------

// NewClass returns the Type for the class named name.
func NewClass(name string) Type {
	return Type{Kind: Class, Name: name}
}

// String returns a print-friendly representation of t.
func (t Type) String() string {
	if t.Kind == Class {
		return t.Name
	}
	if int(t.Kind) < 0 || int(t.Kind) >= len(kindNames) {
		return fmt.Sprintf("<unknown type %d>", t.Kind)
	}
	return kindNames[t.Kind]
}

// Equal reports whether t and u are the structurally same type: the Kind must match and, for class types, the
// Name as well.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind {
		return false
	}
	if t.Kind == Class {
		return t.Name == u.Name
	}
	return true
}

// Subtype reports, given a lookup function parentOf that returns a class's direct parent name (ok=false at the
// root of the inheritance forest), whether t <: u: t equals u, or both are classes and t's class transitively
// extends u's class.
func (t Type) Subtype(u Type, parentOf func(class string) (parent string, ok bool)) bool {
	if t.Equal(u) {
		return true
	}
	if t.Kind != Class || u.Kind != Class {
		return false
	}
	for name, ok := parentOf(t.Name); ok; name, ok = parentOf(name) {
		if name == u.Name {
			return true
		}
	}
	return false
}
