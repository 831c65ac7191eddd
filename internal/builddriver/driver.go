// Package builddriver implements the build driver (§4.I): group modules
// into dependency levels, check_with_imports each module against the
// accumulated exports of its dependencies, stop before codegen if any
// module has errors, and otherwise lower, merge, monomorphize, and emit.
//
// Modules within one level have no edges between them by construction, so
// the driver fans each level's checks out across a pool of checker actors
// running on the same cooperative runtime (internal/scheduler,
// internal/actorsys) the compiled language itself runs on, rather than
// checking modules one at a time.
package builddriver

import (
	"fmt"

	llvmir "github.com/llir/llvm/ir"

	"github.com/snowdamiz/meshcore/internal/actorsys"
	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/codegen"
	"github.com/snowdamiz/meshcore/internal/diagnostics"
	"github.com/snowdamiz/meshcore/internal/logging"
	"github.com/snowdamiz/meshcore/internal/mir"
	"github.com/snowdamiz/meshcore/internal/scheduler"
	"github.com/snowdamiz/meshcore/internal/typeck"
)

var log = logging.NewSubsystemLogger("BLDD")

// Config controls the checker pool's concurrency.
type Config struct {
	// Concurrency is the number of pooled checker actors working a level
	// at once. Zero means 4.
	Concurrency int
}

// BuildResult is the outcome of one Build call.
type BuildResult struct {
	// Diagnostics holds every module's diagnostics, keyed by module name,
	// populated even when HasErrors is true (warnings survive).
	Diagnostics map[string]*diagnostics.Bag

	// Exports holds every checked module's exports, keyed by module name,
	// including modules whose diagnostics contain errors.
	Exports map[string]typeck.ModuleExports

	// MIR is the merged, monomorphized program, nil if checking stopped
	// before codegen.
	MIR *mir.MirModule

	// LLVM is the emitted module, nil if checking stopped before codegen.
	LLVM *llvmir.Module
}

// HasErrors reports whether any module's diagnostics contain an error,
// the §4.I "stop before codegen" gate.
func (r *BuildResult) HasErrors() bool {
	for _, bag := range r.Diagnostics {
		if bag.HasErrors() {
			return true
		}
	}
	return false
}

// Build type-checks modules in dependency order, fanning each level's
// checks across a pool of checker actors, then — only if no module had an
// error — lowers, merges, monomorphizes, and emits LLVM IR for the whole
// program.
func Build(modules []*ast.Module, cfg Config) (*BuildResult, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	lvls, err := levels(modules)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*ast.Module, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}

	pool := newCheckerPool(cfg.Concurrency)
	defer pool.stop()

	result := &BuildResult{
		Diagnostics: make(map[string]*diagnostics.Bag),
		Exports:     make(map[string]typeck.ModuleExports),
	}

	for _, level := range lvls {
		type inflight struct {
			name  string
			reply chan checkModuleResponse
		}
		pending := make([]inflight, 0, len(level))

		for i, name := range level {
			mod, ok := byName[name]
			if !ok {
				// Not one of this build's own modules; its depth only
				// existed to order the modules that import it.
				continue
			}

			reply := make(chan checkModuleResponse, 1)
			req := checkModuleRequest{
				Module: mod,
				Ctx:    importContextFor(mod, result),
				Reply:  reply,
			}
			pool.send(i, req)
			pending = append(pending, inflight{name: name, reply: reply})
		}

		for _, p := range pending {
			resp := <-p.reply

			result.Diagnostics[resp.ModuleName] = resp.Result.Diagnostics
			result.Exports[resp.ModuleName] = resp.Result.Exports

			if resp.Result.Diagnostics.HasErrors() {
				log.Warn("module has type errors", "module", resp.ModuleName)
			}
		}
	}

	if result.HasErrors() {
		log.Info("stopping before codegen", "error_modules", errCount(result))
		return result, nil
	}

	lowered := make([]*mir.MirModule, 0, len(modules))
	for _, level := range lvls {
		for _, name := range level {
			mod, ok := byName[name]
			if !ok {
				continue
			}

			exports := result.Exports[name]
			lc := mir.NewLowerContext(mod, importContextFor(mod, result), exports)

			one, err := mir.Lower(mod, lc)
			if err != nil {
				return nil, fmt.Errorf("builddriver: lowering %q: %w", name, err)
			}
			lowered = append(lowered, one)
		}
	}

	merged, err := mir.MergeMirModules(lowered)
	if err != nil {
		return nil, fmt.Errorf("builddriver: merging MIR: %w", err)
	}

	merged = mir.Monomorphize(merged)
	result.MIR = merged

	llvmMod, err := codegen.CompileModule(merged)
	if err != nil {
		return nil, fmt.Errorf("builddriver: codegen: %w", err)
	}
	result.LLVM = llvmMod

	return result, nil
}

// importContextFor builds the ImportContext for mod from whichever of its
// dependencies have already been checked and recorded in result (§4.I:
// "build an ImportContext from the accumulated ExportedSymbols of its
// dependencies").
func importContextFor(mod *ast.Module, result *BuildResult) *typeck.ImportContext {
	ctx := typeck.NewImportContext(mod.Name)
	for _, dep := range dependsOn(mod) {
		if exports, ok := result.Exports[dep]; ok {
			ctx.AddDependency(dep, exports)
		}
	}
	return ctx
}

func errCount(r *BuildResult) int {
	n := 0
	for _, bag := range r.Diagnostics {
		if bag.HasErrors() {
			n++
		}
	}
	return n
}

// checkerPool is a fixed set of actorsys actors, each running
// checkerBehavior, that the driver round-robins checkModuleRequests across.
// It owns its own System (and therefore its own Scheduler) rather than
// sharing one with whatever runtime eventually executes the compiled
// program, since the driver's checker actors and a running Mesh program
// have unrelated lifetimes.
type checkerPool struct {
	sys  *actorsys.System
	pids []scheduler.Pid
}

// newCheckerPool starts size checker actors. size <= 0 means 1.
func newCheckerPool(size int) *checkerPool {
	if size <= 0 {
		size = 1
	}

	sys := actorsys.New(actorsys.Config{
		SchedulerOptions: []scheduler.Option{scheduler.WithWorkers(size)},
	})

	pids := make([]scheduler.Pid, size)
	for i := range pids {
		pids[i] = sys.Spawn(checkerBehavior)
	}

	return &checkerPool{sys: sys, pids: pids}
}

// send dispatches req to the pool member at index i, round-robin.
func (p *checkerPool) send(i int, req checkModuleRequest) {
	p.sys.Send(p.pids[i%len(p.pids)], req)
}

// stop tells every pool member to end its receive loop, then tears down
// the pool's scheduler.
func (p *checkerPool) stop() {
	for _, pid := range p.pids {
		p.sys.Send(pid, stopChecker{})
	}
	p.sys.Stop()
}
