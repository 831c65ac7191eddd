package builddriver

import (
	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/typeck"
)

// checkModuleRequest asks a pooled checker actor to run check_with_imports
// for one module against its already-accumulated ImportContext. Modules in
// the same dependency level carry disjoint contexts, so the checker pool
// can process an entire level concurrently (§4.I). Reply is a plain Go
// channel rather than a second actor hop: the driver that sends this isn't
// itself an actor, it just blocks on the channel after fanning a level's
// requests out across the pool.
type checkModuleRequest struct {
	Module *ast.Module
	Ctx    *typeck.ImportContext
	Reply  chan checkModuleResponse
}

// checkModuleResponse is one module's check_with_imports outcome, named so
// the driver can fold it back into the level's running accumulator.
type checkModuleResponse struct {
	ModuleName string
	Result     *typeck.TypeckResult
}

// stopChecker is the poison pill that ends a checker actor's receive loop,
// letting its process body return normally instead of leaking a goroutine
// parked in an indefinite receive when the pool is torn down.
type stopChecker struct{}
