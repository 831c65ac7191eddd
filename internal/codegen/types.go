package codegen

import (
	lltypes "github.com/llir/llvm/ir/types"

	"github.com/snowdamiz/meshcore/internal/types"
)

// handlePtr is the representation for every heap-managed or opaque value:
// structs, sum types, lists/maps/sets/queues, and runtime handles (§3.1)
// are all passed around as an untyped pointer into internal/heap's arena.
// The LLVM layer never needs to know their layout; only the runtime
// intrinsics and internal/heap do.
var handlePtr = lltypes.NewPointer(lltypes.I8)

// llvmType maps a checked MIR type to its LLVM representation. Int/Float/
// Bool are passed by value; everything else (String, List, user structs
// and sums, opaque handles) is a heap pointer, matching how internal/heap
// lays out every non-scalar value behind a single handle (§3.1, §4.A).
func llvmType(t types.Type) lltypes.Type {
	con, ok := t.(types.Con)
	if !ok {
		// Function types and unresolved type variables never reach
		// codegen directly; they are only intermediate inference values.
		return handlePtr
	}

	switch con.Name {
	case "Int":
		return lltypes.I64
	case "Float":
		return lltypes.Double
	case "Bool":
		return lltypes.I1
	case "Unit":
		return lltypes.Void
	default:
		// String, List[T], Map[K,V], Set[T], Queue[T], user structs/sums,
		// and OpaqueHandle(name) (PgConn, PgPool, ...) are all heap or
		// runtime handles.
		return handlePtr
	}
}

// llvmRetType is the LLVM type of a function's return position. It is the
// same mapping as llvmType, which lowers Unit to void in every position,
// parameters included.
func llvmRetType(t types.Type) lltypes.Type { return llvmType(t) }
