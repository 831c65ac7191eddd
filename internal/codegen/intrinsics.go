package codegen

import (
	"sort"

	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"

	"github.com/snowdamiz/meshcore/internal/mir"
	"github.com/snowdamiz/meshcore/internal/stdlib"
)

// actorRuntimeFuncs are the extern-C runtime entry points for the actor
// primitives MIR lowers `receive`/`send`/`spawn` to; they are not part of
// known_functions (which only covers stdlib module calls) because the MIR
// lowerer emits ActorReceive/Send/Spawn nodes directly rather than routing
// through a named Call, so codegen declares them unconditionally.
const (
	symActorReceive = "mesh_rt_actor_receive"
	symActorSend    = "mesh_rt_actor_send"
	symActorSpawn   = "mesh_rt_actor_spawn"
	symGCAlloc      = "mesh_rt_gc_alloc"
)

// blockForeverTimeoutMs is the timeout_ms sentinel passed to
// mesh_rt_actor_receive for a `receive` with no `after` clause at all: the
// call must block until a matching message arrives, never returning a null
// handle. This is distinct from `after 0`, which passes timeout_ms == 0 and
// means an immediate, non-blocking check (§9 resolved question 1). The two
// can't share zero, so block-forever is encoded as a negative value that a
// real `after` timeout, always >= 0, never produces.
const blockForeverTimeoutMs = -1

// declareIntrinsics emits `declare` entries (no function body, per §4.G
// "declare all runtime extern-C functions with exact signatures") for
// every known_functions stdlib entry plus the fixed actor/GC runtime
// primitives. The resulting *ir.Func values are cached in g.externs so
// expression codegen can call them by symbol without re-declaring.
func (g *Codegen) declareIntrinsics() {
	var moduleNames []string
	for name := range stdlib.Modules {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)

	for _, moduleName := range moduleNames {
		var fnNames []string
		for fn := range stdlib.Modules[moduleName] {
			fnNames = append(fnNames, fn)
		}
		sort.Strings(fnNames)

		for _, fnName := range fnNames {
			kf, ok := mir.LookupKnownFunction(moduleName, fnName)
			if !ok {
				continue
			}
			params := make([]lltypes.Type, len(kf.Params))
			for i, p := range kf.Params {
				params[i] = llvmType(p)
			}
			g.declareExtern(kf.Symbol, llvmRetType(kf.Ret), params...)
		}
	}

	g.declareExtern(symActorReceive, handlePtr, lltypes.I64)
	g.declareExtern(symActorSend, lltypes.Void, handlePtr, handlePtr)
	g.declareExtern(symActorSpawn, handlePtr, handlePtr)
	g.declareExtern(symGCAlloc, handlePtr, lltypes.I64)
}

// declareExtern adds a declaration-only *ir.Func (no blocks, so the
// printer emits `declare`) to the module and records it under symbol.
func (g *Codegen) declareExtern(symbol string, ret lltypes.Type, params ...lltypes.Type) {
	llParams := make([]*ir.Param, len(params))
	for i, p := range params {
		llParams[i] = ir.NewParam("", p)
	}
	f := g.Module.NewFunc(symbol, ret, llParams...)
	g.externs[symbol] = f
}
