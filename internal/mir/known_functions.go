package mir

import (
	"github.com/snowdamiz/meshcore/internal/stdlib"
	"github.com/snowdamiz/meshcore/internal/types"
)

// KnownFunction is one entry of known_functions: the stable MIR signature
// and extern-C symbol name for a single stdlib `Module.function` call
// (§3.5, §4.G "Stdlib module dispatch"). The module/function name set
// mirrors internal/stdlib (the type checker's view of the same table);
// the extern-C Symbol is purely a lowering/codegen concern, so it lives
// here rather than in the shared stdlib package.
type KnownFunction struct {
	Params []types.Type
	Ret    types.Type
	Symbol string
}

// knownFunctions maps "Module.function" to its extern-C runtime
// intrinsic. The symbol names follow the runtime's `mesh_rt_` prefix
// convention so linking against a rewritten runtime (or vice versa) stays
// bit-exact (§6, §4.G).
var knownFunctions = map[string]KnownFunction{
	"IO.print": {
		Params: []types.Type{types.StringType()}, Ret: types.UnitType(),
		Symbol: "mesh_rt_io_print",
	},
	"IO.println": {
		Params: []types.Type{types.StringType()}, Ret: types.UnitType(),
		Symbol: "mesh_rt_io_println",
	},
	"Time.nowMs": {
		Params: nil, Ret: types.IntType(),
		Symbol: "mesh_rt_time_now_ms",
	},
	"Math.sqrt": {
		Params: []types.Type{types.FloatType()}, Ret: types.FloatType(),
		Symbol: "mesh_rt_math_sqrt",
	},
	"Math.abs": {
		Params: []types.Type{types.FloatType()}, Ret: types.FloatType(),
		Symbol: "mesh_rt_math_abs",
	},
}

// LookupKnownFunction returns the known_functions entry for
// `moduleName.funcName`, if one exists.
func LookupKnownFunction(moduleName, funcName string) (KnownFunction, bool) {
	kf, ok := knownFunctions[moduleName+"."+funcName]
	return kf, ok
}

// IsStdlibModule reports whether name is a recognized stdlib module,
// deferring to internal/stdlib so both components agree on the set.
func IsStdlibModule(name string) bool {
	return stdlib.IsModule(name)
}
