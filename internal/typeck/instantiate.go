package typeck

import (
	"fmt"

	"github.com/snowdamiz/meshcore/internal/types"
)

// InstantiateCall instantiates scheme with fresh type variables and unifies
// its parameters against argTypes, returning the substituted return type.
// This is exported for internal/mir: lowering needs to recover the
// concrete return type of a call to a (possibly generic) already-checked
// function without re-running full inference over its body.
func InstantiateCall(scheme types.Scheme, argTypes []types.Type) (types.Type, error) {
	next := 0
	fresh := func() types.Var {
		next++
		return types.Var{ID: -next} // negative range: disjoint from any checker's own counter
	}

	sub := make(types.Subst, len(scheme.Vars))
	for _, v := range scheme.Vars {
		sub[v] = fresh()
	}
	fn, ok := sub.Apply(scheme.Ty).(types.Func)
	if !ok {
		return nil, fmt.Errorf("typeck: scheme %s is not a function", scheme)
	}
	if len(fn.Params) != len(argTypes) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", codeArityMismatch, len(fn.Params), len(argTypes))
	}

	acc := types.Subst{}
	for i, pt := range fn.Params {
		var err error
		acc, err = unify(acc, acc.Apply(pt), acc.Apply(argTypes[i]))
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", codeTypeMismatch, i, err)
		}
	}

	return acc.Apply(fn.Ret), nil
}
