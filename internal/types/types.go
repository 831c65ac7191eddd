// Package types implements the core type-system primitives shared by the
// type checker (internal/typeck) and the MIR lowerer (internal/mir): type
// constructors, type variables, polymorphic schemes, trait definitions, and
// impls (§3.3).
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Type is any member of the language's type algebra: a concrete
// constructor, a type variable, or a function type.
type Type interface {
	isType()
	// String renders the type for diagnostics, honoring display prefixes
	// where present.
	String() string
}

// Con is a concrete type constructor: Int, String, List[T], a user record
// or sum type, or an opaque handle. DisplayPrefix is excluded from
// structural equality and hashing (§9 "Display-only type qualification")
// and exists purely so diagnostics can read `Geometry.Point` instead of the
// bare `Point`.
type Con struct {
	Name          string
	DisplayPrefix string
	Args          []Type
}

func (Con) isType() {}

// String renders the constructor with its display prefix when set, e.g.
// "Geometry.Point" or "List[Int]".
func (c Con) String() string {
	name := c.Name
	if c.DisplayPrefix != "" {
		name = c.DisplayPrefix + "." + c.Name
	}

	if len(c.Args) == 0 {
		return name
	}

	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}

	return fmt.Sprintf("%s[%s]", name, strings.Join(parts, ", "))
}

// WithDisplayPrefix returns a copy of c qualified for diagnostics under
// prefix, without altering structural identity.
func (c Con) WithDisplayPrefix(prefix string) Con {
	c.DisplayPrefix = prefix
	return c
}

// Var is a type variable, identified by a small integer assigned by the
// type checker's fresh-variable counter.
type Var struct {
	ID int
}

func (Var) isType() {}

func (v Var) String() string { return fmt.Sprintf("t%d", v.ID) }

// Func is a function type; used for top-level bindings and closures.
type Func struct {
	Params []Type
	Ret    Type
}

func (Func) isType() {}

func (f Func) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}

	return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), f.Ret.String())
}

// Scheme is a polymorphic type: Forall(Vars).Ty. A scheme with no
// quantified variables is monomorphic.
type Scheme struct {
	Vars []int
	Ty   Type
}

func (s Scheme) String() string {
	if len(s.Vars) == 0 {
		return s.Ty.String()
	}

	names := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		names[i] = Var{ID: v}.String()
	}

	return fmt.Sprintf("forall %s. %s", strings.Join(names, " "), s.Ty.String())
}

// Mono wraps a concrete type as a scheme with no quantified variables.
func Mono(t Type) Scheme { return Scheme{Ty: t} }

// Equal reports structural equality, deliberately ignoring Con's
// DisplayPrefix field (§9).
func Equal(a, b Type) bool {
	switch av := a.(type) {
	case Con:
		bv, ok := b.(Con)
		if !ok || av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true

	case Var:
		bv, ok := b.(Var)
		return ok && av.ID == bv.ID

	case Func:
		bv, ok := b.(Func)
		if !ok || len(av.Params) != len(bv.Params) {
			return false
		}
		for i := range av.Params {
			if !Equal(av.Params[i], bv.Params[i]) {
				return false
			}
		}
		return Equal(av.Ret, bv.Ret)

	default:
		return false
	}
}

// Built-in concrete constructors, available with no import.
func IntType() Con    { return Con{Name: "Int"} }
func FloatType() Con  { return Con{Name: "Float"} }
func BoolType() Con   { return Con{Name: "Bool"} }
func StringType() Con { return Con{Name: "String"} }
func UnitType() Con   { return Con{Name: "Unit"} }

// ListType constructs List[elem].
func ListType(elem Type) Con { return Con{Name: "List", Args: []Type{elem}} }

// MapType constructs Map[key, value].
func MapType(key, value Type) Con {
	return Con{Name: "Map", Args: []Type{key, value}}
}

// SetType constructs Set[elem].
func SetType(elem Type) Con { return Con{Name: "Set", Args: []Type{elem}} }

// QueueType constructs Queue[elem].
func QueueType(elem Type) Con { return Con{Name: "Queue", Args: []Type{elem}} }

// TupleType constructs an n-ary tuple type.
func TupleType(elems ...Type) Con {
	return Con{Name: tupleName(len(elems)), Args: elems}
}

func tupleName(n int) string { return fmt.Sprintf("Tuple%d", n) }

// OpaqueHandle constructs an opaque, non-GC-managed handle type (PG
// connection, pool, LLVM module, etc; §3.1).
func OpaqueHandle(name string) Con { return Con{Name: name} }

// FreeVars returns the set of type variable IDs free in t, sorted
// ascending for deterministic diagnostics.
func FreeVars(t Type) []int {
	seen := make(map[int]struct{})
	var walk func(Type)
	walk = func(t Type) {
		switch v := t.(type) {
		case Var:
			seen[v.ID] = struct{}{}
		case Con:
			for _, a := range v.Args {
				walk(a)
			}
		case Func:
			for _, p := range v.Params {
				walk(p)
			}
			walk(v.Ret)
		}
	}
	walk(t)

	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)

	return out
}
