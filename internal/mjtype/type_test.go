package mjtype

import "testing"

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Type
		want bool
	}{
		{"same primitive", Type{Kind: Int}, Type{Kind: Int}, true},
		{"different primitive", Type{Kind: Int}, Type{Kind: Bool}, false},
		{"same class", NewClass("A"), NewClass("A"), true},
		{"different class", NewClass("A"), NewClass("B"), false},
		{"class vs primitive", NewClass("A"), Type{Kind: Int}, false},
	}
	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%s: Equal = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSubtype(t *testing.T) {
	// A extends B extends C.
	parentOf := func(class string) (string, bool) {
		switch class {
		case "A":
			return "B", true
		case "B":
			return "C", true
		default:
			return "", false
		}
	}

	if !NewClass("A").Subtype(NewClass("C"), parentOf) {
		t.Error("A should be a subtype of its grandparent C")
	}
	if !NewClass("A").Subtype(NewClass("A"), parentOf) {
		t.Error("a type is always a subtype of itself")
	}
	if NewClass("C").Subtype(NewClass("A"), parentOf) {
		t.Error("a parent is not a subtype of its child")
	}
	if (Type{Kind: Int}).Subtype(Type{Kind: Int}, parentOf) != true {
		t.Error("equal primitives are subtypes of each other")
	}
	if (Type{Kind: Int}).Subtype(NewClass("A"), parentOf) {
		t.Error("a primitive cannot be a subtype of a class")
	}
}
