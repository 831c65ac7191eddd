package typeck

import "github.com/snowdamiz/meshcore/internal/types"

// env is a lexically-scoped name environment, one frame per Let/function
// body; lookups walk outward to the enclosing frame.
type env struct {
	vars   map[string]types.Scheme
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: make(map[string]types.Scheme), parent: parent}
}

func (e *env) bind(name string, sc types.Scheme) {
	e.vars[name] = sc
}

func (e *env) lookup(name string) (types.Scheme, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if sc, ok := cur.vars[name]; ok {
			return sc, true
		}
	}
	return types.Scheme{}, false
}
