// Package typeck implements check_with_imports (§4.E): Hindley-Milner type
// inference extended with traits, cross-module import pre-seeding, and
// export collection for the next module in build order.
package typeck

import (
	"fmt"
	"sort"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/diagnostics"
	"github.com/snowdamiz/meshcore/internal/stdlib"
	"github.com/snowdamiz/meshcore/internal/types"
)

const (
	codeImportModuleNotFound = "E_IMPORT_MODULE_NOT_FOUND"
	codeImportNameNotFound   = "E_IMPORT_NAME_NOT_FOUND"
	codeUnboundVariable      = "E_UNBOUND_VARIABLE"
	codeUnknownConstructor   = "E_UNKNOWN_CONSTRUCTOR"
	codeArityMismatch        = "E_ARITY_MISMATCH"
	codeTypeMismatch         = "E_TYPE_MISMATCH"
)

// TypeckResult is the outcome of check_with_imports: diagnostics gathered
// while checking, and this module's exports once checking is done.
type TypeckResult struct {
	Diagnostics *diagnostics.Bag
	Exports     ModuleExports
}

// checker holds the mutable state threaded through one check_with_imports
// call: the pre-seeded environment, type/trait registries, and the
// diagnostic bag.
type checker struct {
	module  *ast.Module
	ctx     *ImportContext
	types   *typeRegistry
	traits  *traitRegistry
	diags   *diagnostics.Bag
	nextVar int
}

// CheckWithImports type-checks module against ctx, returning diagnostics
// plus the module's own exports (§4.E).
func CheckWithImports(module *ast.Module, ctx *ImportContext) *TypeckResult {
	c := &checker{
		module: module,
		ctx:    ctx,
		types:  newTypeRegistry(),
		traits: newTraitRegistry(),
		diags:  &diagnostics.Bag{},
	}

	root := newEnv(nil)

	c.preSeed(root)
	c.checkImports(root)
	c.checkDecls(root)

	return &TypeckResult{
		Diagnostics: c.diags,
		Exports:     c.collectExports(),
	}
}

// preSeed implements §4.E's four pre-seeding steps, run before inference
// touches the module's own AST.
func (c *checker) preSeed(root *env) {
	// 1. Imported trait defs and impls into the trait registry.
	for _, t := range c.ctx.Traits {
		c.traits.addTrait(t)
	}
	for _, i := range c.ctx.Impls {
		c.traits.addImpl(i)
	}

	for moduleName, exports := range c.ctx.Modules {
		// 2. Imported struct defs into the type registry; their
		// constructor's display_prefix is the exporting module.
		for _, sd := range exports.Structs {
			sd.DisplayPrefix = moduleName
			c.types.addStruct(sd)
			root.bind(sd.Name, types.Scheme{Ty: c.structConstructorType(sd)})
		}

		// 3. Imported sum types and all variant constructors.
		for _, sum := range exports.Sums {
			sum.DisplayPrefix = moduleName
			c.types.addSum(sum)
			for _, v := range sum.Variants {
				root.bind(v.Name, types.Scheme{Ty: c.variantConstructorType(sum, v)})
			}
		}
	}

	// 4. Local structs/sum types get this module's own display prefix,
	// so errors read `Geometry.Point` instead of `Point`.
	for _, sd := range c.module.Structs {
		def := types.StructDef{Name: sd.Name, DisplayPrefix: c.ctx.CurrentModule}
		for _, f := range sd.Fields {
			def.Fields = append(def.Fields, types.Field{Name: f.Name, Ty: c.resolveTypeExpr(f.Type)})
		}
		c.types.addStruct(def)
		root.bind(sd.Name, types.Scheme{Ty: c.structConstructorType(def)})
	}

	for _, sd := range c.module.Sums {
		def := types.SumDef{Name: sd.Name, DisplayPrefix: c.ctx.CurrentModule}
		for _, v := range sd.Variants {
			variant := types.Variant{Name: v.Name}
			for _, ft := range v.Fields {
				variant.Fields = append(variant.Fields, c.resolveTypeExpr(ft))
			}
			def.Variants = append(def.Variants, variant)
		}
		c.types.addSum(def)
		for _, v := range def.Variants {
			root.bind(v.Name, types.Scheme{Ty: c.variantConstructorType(def, v)})
		}
	}
}

// checkImports implements the import-resolution rules: qualified
// namespaces for `import M1.M2...Mn`, name injection for
// `from M1...Mn import a, b`.
func (c *checker) checkImports(root *env) {
	for _, imp := range c.module.Imports {
		if len(imp.From) == 0 {
			// import M1.M2...Mn: last segment is the qualified
			// namespace key.
			last := imp.Names[len(imp.Names)-1]
			if _, ok := c.ctx.Modules[last]; !ok && !stdlib.IsModule(last) {
				c.diags.Add(diagnostics.Diagnostic{
					Code: codeImportModuleNotFound, Severity: diagnostics.SeverityError,
					File: c.ctx.CurrentModule, Message: fmt.Sprintf("module %q not found", last),
				})
			}
			continue
		}

		moduleName := imp.Names[len(imp.Names)-1]
		exports, ok := c.ctx.Modules[moduleName]
		if !ok {
			if stdlib.IsModule(moduleName) {
				for _, name := range imp.From {
					if sc, ok := stdlib.Lookup(moduleName, name); ok {
						root.bind(name, sc)
						continue
					}
					c.diags.Add(diagnostics.Diagnostic{
						Code: codeImportNameNotFound, Severity: diagnostics.SeverityError,
						File: c.ctx.CurrentModule, Message: fmt.Sprintf("name %q not found in module %q", name, moduleName),
					})
				}
				continue
			}
			c.diags.Add(diagnostics.Diagnostic{
				Code: codeImportModuleNotFound, Severity: diagnostics.SeverityError,
				File: c.ctx.CurrentModule, Message: fmt.Sprintf("module %q not found", moduleName),
			})
			continue
		}

		for _, name := range imp.From {
			sc, ok := exports.Funcs[name]
			switch {
			case ok:
				root.bind(name, sc)
			default:
				suggestion := diagnostics.ClosestName(name, exportedFuncNames(exports), 3)
				c.diags.Add(diagnostics.Diagnostic{
					Code: codeImportNameNotFound, Severity: diagnostics.SeverityError,
					File: c.ctx.CurrentModule, Message: fmt.Sprintf("name %q not found in module %q", name, moduleName),
					Suggestion: suggestion,
				})
			}
		}
	}
}

func exportedFuncNames(exports ModuleExports) []string {
	names := make([]string, 0, len(exports.Funcs))
	for n := range exports.Funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// checkDecls binds every local function's declared signature, then infers
// each body against it.
func (c *checker) checkDecls(root *env) {
	for _, fn := range c.module.Funcs {
		root.bind(fn.Name, types.Scheme{Ty: c.funcDeclType(fn)})
	}

	for _, fn := range c.module.Funcs {
		fnEnv := newEnv(root)
		for _, p := range fn.Params {
			fnEnv.bind(p.Name, types.Scheme{Ty: c.resolveTypeExpr(p.Type)})
		}

		inf := &inferer{checker: c, env: fnEnv}
		bodyTy, sub, err := inf.infer(fn.Body)
		if err != nil {
			c.diags.Add(diagnostics.Diagnostic{
				Code: codeTypeMismatch, Severity: diagnostics.SeverityError,
				File: c.ctx.CurrentModule, Message: err.Error(),
			})
			continue
		}

		declRet := c.resolveTypeExpr(fn.RetType)
		if _, uerr := unify(sub, sub.Apply(bodyTy), declRet); uerr != nil {
			c.diags.Add(diagnostics.Diagnostic{
				Code: codeTypeMismatch, Severity: diagnostics.SeverityError,
				File: c.ctx.CurrentModule,
				Message: fmt.Sprintf("function %q: body type %s does not match declared return type %s",
					fn.Name, sub.Apply(bodyTy), declRet),
			})
		}
	}
}

// collectExports implements collect_exports: every top-level declaration
// this module contributes to the build (§4.E).
func (c *checker) collectExports() ModuleExports {
	exports := newModuleExports()

	for _, fn := range c.module.Funcs {
		exports.Funcs[fn.Name] = types.Scheme{Ty: c.funcDeclType(fn)}
	}
	for name, def := range c.types.structs {
		if def.DisplayPrefix == c.ctx.CurrentModule {
			exports.Structs[name] = def
		}
	}
	for name, def := range c.types.sums {
		if def.DisplayPrefix == c.ctx.CurrentModule {
			exports.Sums[name] = def
		}
	}
	for _, t := range c.traits.traits {
		exports.Traits = append(exports.Traits, t)
	}
	for _, i := range c.traits.impls {
		exports.Impls = append(exports.Impls, i)
	}

	return exports
}
