package mir

import (
	"fmt"

	"github.com/snowdamiz/meshcore/internal/logging"
	"github.com/snowdamiz/meshcore/internal/types"
)

var log = logging.NewSubsystemLogger("MIR")

// MergeMirModules implements merge_mir_modules (§4.F): concatenate every
// module's functions/structs/sum types, deduplicating by name. A name
// collision at this stage is a compiler bug, not a user error — the build
// driver already ran check_with_imports per module and would have reported
// any real user-visible redeclaration.
func MergeMirModules(modules []*MirModule) (*MirModule, error) {
	merged := &MirModule{}

	seenFuncs := make(map[string]struct{})
	seenStructs := make(map[string]struct{})
	seenSums := make(map[string]struct{})

	for _, m := range modules {
		for _, fn := range m.Functions {
			if _, dup := seenFuncs[fn.Name]; dup {
				return nil, fmt.Errorf("merge_mir_modules: duplicate function %s", fn.Name)
			}
			seenFuncs[fn.Name] = struct{}{}
			merged.Functions = append(merged.Functions, fn)
		}
		for _, sd := range m.Structs {
			key := sd.DisplayPrefix + "." + sd.Name
			if _, dup := seenStructs[key]; dup {
				continue
			}
			seenStructs[key] = struct{}{}
			merged.Structs = append(merged.Structs, sd)
		}
		for _, sum := range m.Sums {
			key := sum.DisplayPrefix + "." + sum.Name
			if _, dup := seenSums[key]; dup {
				continue
			}
			seenSums[key] = struct{}{}
			merged.Sums = append(merged.Sums, sum)
		}
	}

	return merged, nil
}

// Monomorphize runs once over the merged module (§4.F: "Monomorphization
// per module would both duplicate work and drop unreachable-but-required
// functions from library-only modules"). Every call site naming a
// polymorphic function is rewritten to a concrete, per-instantiation clone
// of that function; the generic original is dropped from the output since
// nothing calls it directly post-rewrite.
func Monomorphize(mod *MirModule) *MirModule {
	byName := make(map[string]*MirFunction, len(mod.Functions))
	for i := range mod.Functions {
		byName[mod.Functions[i].Name] = &mod.Functions[i]
	}

	m := &monomorphizer{
		byName:     byName,
		clones:     make(map[string]MirFunction),
		cloneNames: make(map[string]string),
	}

	out := &MirModule{Structs: mod.Structs, Sums: mod.Sums}
	for _, fn := range mod.Functions {
		if isGeneric(fn.Scheme) {
			// Dropped from the output; library-only generic functions
			// with no call site simply vanish, which is the intended
			// trade-off this policy accepts.
			continue
		}
		out.Functions = append(out.Functions, m.rewriteFunc(fn))
	}

	for _, clone := range m.clones {
		out.Functions = append(out.Functions, clone)
	}

	if len(m.clones) > 0 {
		log.Debug("monomorphized generic functions", "count", len(m.clones))
	}

	return out
}

func isGeneric(sc types.Scheme) bool {
	return len(types.FreeVars(sc.Ty)) > 0
}

type monomorphizer struct {
	byName map[string]*MirFunction
	// clones maps a mangled specialization name to its materialized
	// function body.
	clones map[string]MirFunction
	// cloneNames maps (original name, arg-type signature) to the
	// mangled name already produced for it, so repeat call sites with
	// the same instantiation share one clone (monomorphization-once).
	cloneNames map[string]string
}

func (m *monomorphizer) rewriteFunc(fn MirFunction) MirFunction {
	fn.Body = m.rewriteExpr(fn.Body)
	return fn
}

func (m *monomorphizer) rewriteExpr(e MirExpr) MirExpr {
	switch n := e.(type) {
	case Call:
		n.Args = m.rewriteAll(n.Args)
		if !n.Intrinsic {
			if target, ok := m.byName[n.Callee]; ok && isGeneric(target.Scheme) {
				n.Callee = m.specialize(target, n.Args)
			}
		}
		return n

	case Let:
		n.Value = m.rewriteExpr(n.Value)
		n.Body = m.rewriteExpr(n.Body)
		return n

	case If:
		n.Cond = m.rewriteExpr(n.Cond)
		n.Then = m.rewriteExpr(n.Then)
		n.Else = m.rewriteExpr(n.Else)
		return n

	case TupleExpr:
		n.Elems = m.rewriteAll(n.Elems)
		return n

	case ListExpr:
		n.Elems = m.rewriteAll(n.Elems)
		return n

	case ConstructExpr:
		n.Args = m.rewriteAll(n.Args)
		return n

	case Send:
		n.Target = m.rewriteExpr(n.Target)
		n.Msg = m.rewriteExpr(n.Msg)
		return n

	case Spawn:
		n.Body = m.rewriteExpr(n.Body)
		return n

	case ActorReceive:
		for i := range n.Arms {
			n.Arms[i].Body = m.rewriteExpr(n.Arms[i].Body)
		}
		if n.TimeoutMs != nil {
			n.TimeoutMs = m.rewriteExpr(n.TimeoutMs)
			n.TimeoutBody = m.rewriteExpr(n.TimeoutBody)
		}
		return n

	case Block:
		n.Exprs = m.rewriteAll(n.Exprs)
		return n

	default:
		return e
	}
}

func (m *monomorphizer) rewriteAll(exprs []MirExpr) []MirExpr {
	out := make([]MirExpr, len(exprs))
	for i, e := range exprs {
		out[i] = m.rewriteExpr(e)
	}
	return out
}

// specialize returns the mangled name of target specialized to args'
// concrete types, materializing the clone the first time this exact
// instantiation is seen.
func (m *monomorphizer) specialize(target *MirFunction, args []MirExpr) string {
	sig := mangleSignature(target.Name, args)
	if name, ok := m.cloneNames[sig]; ok {
		return name
	}

	mangled := sig
	m.cloneNames[sig] = mangled

	clone := *target
	clone.Name = mangled
	clone.Params = append([]MirParam(nil), target.Params...)
	for i := range clone.Params {
		if i < len(args) {
			clone.Params[i].Ty = args[i].Type()
		}
	}
	clone.Body = m.rewriteExpr(clone.Body)

	m.clones[mangled] = clone
	return mangled
}

func mangleSignature(name string, args []MirExpr) string {
	out := name
	for _, a := range args {
		out += "$" + a.Type().String()
	}
	return out
}
