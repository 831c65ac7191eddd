package typeck

import "github.com/snowdamiz/meshcore/internal/types"

// ModuleExports is what collect_exports produces for one module: every
// top-level name it makes visible to importers (§4.E).
type ModuleExports struct {
	Funcs   map[string]types.Scheme
	Structs map[string]types.StructDef
	Sums    map[string]types.SumDef
	Traits  []types.TraitDef
	Impls   []types.Impl
}

func newModuleExports() ModuleExports {
	return ModuleExports{
		Funcs:   make(map[string]types.Scheme),
		Structs: make(map[string]types.StructDef),
		Sums:    make(map[string]types.SumDef),
	}
}

// ImportContext is what the build driver (component I) hands to
// check_with_imports for one module: the accumulated exports of every
// upstream dependency, all globally-visible trait defs/impls, and the
// current module's own display name.
type ImportContext struct {
	// Modules maps a dependency module's display name to its exports.
	Modules map[string]ModuleExports

	// Traits and Impls are visible everywhere, with no explicit import
	// (§4.E: "Trait impls are globally visible").
	Traits []types.TraitDef
	Impls  []types.Impl

	// CurrentModule is the display name stamped onto every local struct
	// and sum type the module being checked declares (§4.E rule 4);
	// functions carry no display prefix.
	CurrentModule string
}

// NewImportContext builds an empty context for CurrentModule with no
// dependencies yet accumulated.
func NewImportContext(currentModule string) *ImportContext {
	return &ImportContext{
		Modules:       make(map[string]ModuleExports),
		CurrentModule: currentModule,
	}
}

// AddDependency records a dependency module's accumulated exports, and
// folds its globally-visible traits/impls into the context (§4.I: "build
// an ImportContext from the accumulated ExportedSymbols of its
// dependencies").
func (c *ImportContext) AddDependency(moduleName string, exports ModuleExports) {
	c.Modules[moduleName] = exports
	c.Traits = append(c.Traits, exports.Traits...)
	c.Impls = append(c.Impls, exports.Impls...)
}
