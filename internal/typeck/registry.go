package typeck

import "github.com/snowdamiz/meshcore/internal/types"

// typeRegistry resolves struct and sum type names (with their exporting
// module's display prefix, §4.E rules 2/4) to their definitions, and
// indexes variant constructors so `Circle(5.0)` resolves after import.
type typeRegistry struct {
	structs map[string]types.StructDef
	sums    map[string]types.SumDef

	// variantOwner maps a variant constructor name to its owning sum
	// type's name, so ConstructExpr can find the sum def from a bare
	// variant name.
	variantOwner map[string]string
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		structs:      make(map[string]types.StructDef),
		sums:         make(map[string]types.SumDef),
		variantOwner: make(map[string]string),
	}
}

func (r *typeRegistry) addStruct(def types.StructDef) {
	r.structs[def.Name] = def
}

func (r *typeRegistry) addSum(def types.SumDef) {
	r.sums[def.Name] = def
	for _, v := range def.Variants {
		r.variantOwner[v.Name] = def.Name
	}
}

// traitRegistry holds every visible trait definition and impl, keyed the
// way internal/types.Impl.Key does (display-prefix-insensitive).
type traitRegistry struct {
	traits map[string]types.TraitDef
	impls  map[string]types.Impl
}

func newTraitRegistry() *traitRegistry {
	return &traitRegistry{
		traits: make(map[string]types.TraitDef),
		impls:  make(map[string]types.Impl),
	}
}

func (r *traitRegistry) addTrait(def types.TraitDef) {
	r.traits[def.Name] = def
}

func (r *traitRegistry) addImpl(impl types.Impl) {
	r.impls[impl.Key()] = impl
}

func (r *traitRegistry) findImpl(trait string, forCon types.Con) (types.Impl, bool) {
	impl, ok := r.impls[(types.Impl{Trait: trait, ForCon: forCon}).Key()]
	return impl, ok
}
