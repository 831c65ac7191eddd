package types

// StructDef is a record type definition: a name, its field order/types, and
// a display prefix set to the declaring module's namespace key.
type StructDef struct {
	Name          string
	DisplayPrefix string
	Fields        []Field
}

// Field is one field of a StructDef, in declaration order.
type Field struct {
	Name string
	Ty   Type
}

// Con returns the concrete type constructor for this struct (no type
// arguments; the language's structs are not generic at this layer).
func (s StructDef) Con() Con {
	return Con{Name: s.Name, DisplayPrefix: s.DisplayPrefix}
}

// SumDef is a sum (tagged union) type definition: a name and its ordered
// variant constructors.
type SumDef struct {
	Name          string
	DisplayPrefix string
	Variants      []Variant
}

// Variant is one constructor of a SumDef, e.g. `Circle(Float)` or
// `Empty`.
type Variant struct {
	Name   string
	Fields []Type
}

// Con returns the concrete type constructor for this sum type.
func (s SumDef) Con() Con {
	return Con{Name: s.Name, DisplayPrefix: s.DisplayPrefix}
}

// TraitDef is a trait's method signature set: a name and the schemes each
// method must conform to, expressed over the trait's implicit Self type
// variable (conventionally Var{ID: 0} within the trait's own scope).
type TraitDef struct {
	Name    string
	Methods []TraitMethod
}

// TraitMethod is one method signature declared by a trait.
type TraitMethod struct {
	Name string
	Sig  Scheme
}

// Impl binds a TraitDef to a concrete type constructor, providing a
// monomorphic (post-substitution) scheme for each of the trait's methods.
type Impl struct {
	Trait  string
	ForCon Con
	// Methods maps each trait method name to the concrete scheme it is
	// implemented with for ForCon.
	Methods map[string]Scheme
}

// Key returns a stable (trait, type) identity used to detect duplicate or
// conflicting impls. Deliberately uses Con.Name only (not DisplayPrefix),
// matching the rule that identity is structural by name.
func (i Impl) Key() string {
	return i.Trait + "#" + i.ForCon.Name
}
