// Package stdlib is the fixed registry of built-in module names and
// function signatures shared by the type checker (which needs a Scheme to
// infer a stdlib call's result type) and the MIR lowerer (which needs the
// same module-name set to recognize "Stdlib module dispatch", §3.5, §4.G).
// The extern-C symbol each function routes to is a MIR/codegen-only
// concern and lives in internal/mir's known_functions table, not here.
package stdlib

import "github.com/snowdamiz/meshcore/internal/types"

// Modules maps a stdlib module name to its exported function signatures.
var Modules = map[string]map[string]types.Scheme{
	"IO": {
		"print":   types.Mono(types.Func{Params: []types.Type{types.StringType()}, Ret: types.UnitType()}),
		"println": types.Mono(types.Func{Params: []types.Type{types.StringType()}, Ret: types.UnitType()}),
	},
	"Time": {
		"nowMs": types.Mono(types.Func{Ret: types.IntType()}),
	},
	"Math": {
		"sqrt": types.Mono(types.Func{Params: []types.Type{types.FloatType()}, Ret: types.FloatType()}),
		"abs":  types.Mono(types.Func{Params: []types.Type{types.FloatType()}, Ret: types.FloatType()}),
	},
}

// IsModule reports whether name is a recognized stdlib module.
func IsModule(name string) bool {
	_, ok := Modules[name]
	return ok
}

// Lookup returns the Scheme of moduleName.funcName, if it exists.
func Lookup(moduleName, funcName string) (types.Scheme, bool) {
	fns, ok := Modules[moduleName]
	if !ok {
		return types.Scheme{}, false
	}
	sc, ok := fns[funcName]
	return sc, ok
}
