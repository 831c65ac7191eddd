package typeck

import (
	"fmt"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/stdlib"
	"github.com/snowdamiz/meshcore/internal/types"
)

// resolveTypeExpr resolves a bare (non-generic-context) type expression:
// built-ins, or a previously-registered struct/sum constructor.
func (c *checker) resolveTypeExpr(te ast.TypeExpr) types.Type {
	return c.resolveTypeExprWith(te, make(map[string]types.Var))
}

// resolveTypeExprWith resolves te, reusing tvars so repeated single-letter
// names within one function signature (`a`, `b`) refer to the same type
// variable.
func (c *checker) resolveTypeExprWith(te ast.TypeExpr, tvars map[string]types.Var) types.Type {
	switch te.Name {
	case "Int":
		return types.IntType()
	case "Float":
		return types.FloatType()
	case "Bool":
		return types.BoolType()
	case "String":
		return types.StringType()
	case "Unit":
		return types.UnitType()
	case "List":
		return types.ListType(c.resolveArg(te, 0, tvars))
	case "Map":
		return types.MapType(c.resolveArg(te, 0, tvars), c.resolveArg(te, 1, tvars))
	case "Set":
		return types.SetType(c.resolveArg(te, 0, tvars))
	case "Queue":
		return types.QueueType(c.resolveArg(te, 0, tvars))
	}

	if len(te.Name) == 1 && te.Name[0] >= 'a' && te.Name[0] <= 'z' && len(te.Args) == 0 {
		if v, ok := tvars[te.Name]; ok {
			return v
		}
		c.nextVar++
		v := types.Var{ID: c.nextVar}
		tvars[te.Name] = v
		return v
	}

	if def, ok := c.types.structs[te.Name]; ok {
		return def.Con()
	}
	if def, ok := c.types.sums[te.Name]; ok {
		return def.Con()
	}

	return types.OpaqueHandle(te.Name)
}

func (c *checker) resolveArg(te ast.TypeExpr, i int, tvars map[string]types.Var) types.Type {
	if i >= len(te.Args) {
		c.nextVar++
		return types.Var{ID: c.nextVar}
	}
	return c.resolveTypeExprWith(te.Args[i], tvars)
}

// funcDeclType builds the Func type for a declared function signature,
// sharing type variables across its parameters and return type.
func (c *checker) funcDeclType(fn ast.FuncDecl) types.Type {
	tvars := make(map[string]types.Var)

	params := make([]types.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = c.resolveTypeExprWith(p.Type, tvars)
	}

	ret := c.resolveTypeExprWith(fn.RetType, tvars)

	return types.Func{Params: params, Ret: ret}
}

// structConstructorType builds the function type of a struct's
// constructor: one positional argument per field, in declaration order.
func (c *checker) structConstructorType(def types.StructDef) types.Type {
	params := make([]types.Type, len(def.Fields))
	for i, f := range def.Fields {
		params[i] = f.Ty
	}
	return types.Func{Params: params, Ret: def.Con()}
}

// variantConstructorType builds the function type of one sum type
// variant's constructor, e.g. `Circle(Float) -> Shape`.
func (c *checker) variantConstructorType(sum types.SumDef, v types.Variant) types.Type {
	return types.Func{Params: v.Fields, Ret: sum.Con()}
}

// inferer runs Algorithm-W-style inference over one function body.
// Parameter and return types are already declared (§4.E operates with
// explicit signatures); inference fills in the types of Let bindings and
// checks every call and construction against them.
type inferer struct {
	checker *checker
	env     *env
}

func (inf *inferer) fresh() types.Var {
	inf.checker.nextVar++
	return types.Var{ID: inf.checker.nextVar}
}

func (inf *inferer) infer(e ast.Expr) (types.Type, types.Subst, error) {
	switch n := e.(type) {
	case ast.IntLit:
		return types.IntType(), types.Subst{}, nil
	case ast.FloatLit:
		return types.FloatType(), types.Subst{}, nil
	case ast.BoolLit:
		return types.BoolType(), types.Subst{}, nil
	case ast.StringLit:
		return types.StringType(), types.Subst{}, nil

	case ast.Ident:
		sc, ok := inf.env.lookup(n.Name)
		if !ok {
			return nil, nil, fmt.Errorf("%s: %s", codeUnboundVariable, n.Name)
		}
		return inf.instantiate(sc), types.Subst{}, nil

	case ast.QualifiedIdent:
		exports, ok := inf.checker.ctx.Modules[n.Module]
		if !ok {
			if sc, ok := stdlib.Lookup(n.Module, n.Name); ok {
				return inf.instantiate(sc), types.Subst{}, nil
			}
			return nil, nil, fmt.Errorf("%s: module %s not found", codeImportModuleNotFound, n.Module)
		}
		sc, ok := exports.Funcs[n.Name]
		if !ok {
			return nil, nil, fmt.Errorf("%s: %s.%s", codeImportNameNotFound, n.Module, n.Name)
		}
		return inf.instantiate(sc), types.Subst{}, nil

	case ast.Call:
		return inf.inferCall(n)

	case ast.Let:
		valTy, s1, err := inf.infer(n.Value)
		if err != nil {
			return nil, nil, err
		}
		bodyEnv := newEnv(inf.env)
		bodyEnv.bind(n.Name, types.Mono(s1.Apply(valTy)))
		sub := &inferer{checker: inf.checker, env: bodyEnv}
		bodyTy, s2, err := sub.infer(n.Body)
		if err != nil {
			return nil, nil, err
		}
		return bodyTy, types.Compose(s2, s1), nil

	case ast.If:
		condTy, s1, err := inf.infer(n.Cond)
		if err != nil {
			return nil, nil, err
		}
		if _, err := unify(s1, s1.Apply(condTy), types.BoolType()); err != nil {
			return nil, nil, err
		}
		thenTy, s2, err := inf.infer(n.Then)
		if err != nil {
			return nil, nil, err
		}
		elseTy, s3, err := inf.infer(n.Else)
		if err != nil {
			return nil, nil, err
		}
		merged := types.Compose(s3, types.Compose(s2, s1))
		merged, err = unify(merged, merged.Apply(thenTy), merged.Apply(elseTy))
		if err != nil {
			return nil, nil, err
		}
		return merged.Apply(thenTy), merged, nil

	case ast.TupleExpr:
		elems := make([]types.Type, len(n.Elems))
		acc := types.Subst{}
		for i, el := range n.Elems {
			ty, s, err := inf.infer(el)
			if err != nil {
				return nil, nil, err
			}
			acc = types.Compose(s, acc)
			elems[i] = ty
		}
		return types.TupleType(elems...), acc, nil

	case ast.ListExpr:
		elemTy := types.Type(inf.fresh())
		acc := types.Subst{}
		for _, el := range n.Elems {
			ty, s, err := inf.infer(el)
			if err != nil {
				return nil, nil, err
			}
			acc = types.Compose(s, acc)
			acc, err = unify(acc, acc.Apply(elemTy), acc.Apply(ty))
			if err != nil {
				return nil, nil, err
			}
		}
		return types.ListType(acc.Apply(elemTy)), acc, nil

	case ast.ConstructExpr:
		return inf.inferConstruct(n)

	case ast.Send:
		if _, _, err := inf.infer(n.Target); err != nil {
			return nil, nil, err
		}
		if _, _, err := inf.infer(n.Msg); err != nil {
			return nil, nil, err
		}
		return types.UnitType(), types.Subst{}, nil

	case ast.Spawn:
		if _, _, err := inf.infer(n.Body); err != nil {
			return nil, nil, err
		}
		return types.OpaqueHandle("Pid"), types.Subst{}, nil

	case ast.Receive:
		return inf.inferReceive(n)

	case ast.Block:
		if len(n.Exprs) == 0 {
			return types.UnitType(), types.Subst{}, nil
		}
		var last types.Type
		acc := types.Subst{}
		for _, ex := range n.Exprs {
			ty, s, err := inf.infer(ex)
			if err != nil {
				return nil, nil, err
			}
			acc = types.Compose(s, acc)
			last = ty
		}
		return acc.Apply(last), acc, nil

	default:
		return nil, nil, fmt.Errorf("typeck: unhandled expression node %T", e)
	}
}

func (inf *inferer) inferCall(n ast.Call) (types.Type, types.Subst, error) {
	fnTy, s1, err := inf.infer(n.Fn)
	if err != nil {
		return nil, nil, err
	}

	fn, ok := s1.Apply(fnTy).(types.Func)
	if !ok {
		return nil, nil, fmt.Errorf("%s: call target is not a function", codeTypeMismatch)
	}
	if len(fn.Params) != len(n.Args) {
		return nil, nil, fmt.Errorf("%s: expected %d arguments, got %d", codeArityMismatch, len(fn.Params), len(n.Args))
	}

	acc := s1
	for i, arg := range n.Args {
		argTy, s, err := inf.infer(arg)
		if err != nil {
			return nil, nil, err
		}
		acc = types.Compose(s, acc)
		acc, err = unify(acc, acc.Apply(argTy), acc.Apply(fn.Params[i]))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: argument %d: %w", codeTypeMismatch, i, err)
		}
	}

	return acc.Apply(fn.Ret), acc, nil
}

func (inf *inferer) inferConstruct(n ast.ConstructExpr) (types.Type, types.Subst, error) {
	sc, ok := inf.env.lookup(n.Name)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %s", codeUnknownConstructor, n.Name)
	}

	fn, ok := inf.instantiate(sc).(types.Func)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %s is not a constructor", codeUnknownConstructor, n.Name)
	}
	if len(fn.Params) != len(n.Args) {
		return nil, nil, fmt.Errorf("%s: %s expects %d arguments, got %d", codeArityMismatch, n.Name, len(fn.Params), len(n.Args))
	}

	acc := types.Subst{}
	for i, arg := range n.Args {
		argTy, s, err := inf.infer(arg)
		if err != nil {
			return nil, nil, err
		}
		acc = types.Compose(s, acc)
		acc, err = unify(acc, acc.Apply(argTy), acc.Apply(fn.Params[i]))
		if err != nil {
			return nil, nil, err
		}
	}

	return acc.Apply(fn.Ret), acc, nil
}

// inferReceive type-checks a receive expression's arms and, when present,
// its `after` clause; all arm bodies (and the timeout body, if any) must
// agree on a common result type, matching the codegen contract that both
// branches of the null-check produce the common result type (§4.G).
func (inf *inferer) inferReceive(n ast.Receive) (types.Type, types.Subst, error) {
	result := types.Type(inf.fresh())
	acc := types.Subst{}

	for _, arm := range n.Arms {
		armEnv := newEnv(inf.env)
		armInf := &inferer{checker: inf.checker, env: armEnv}

		bodyTy, s, err := armInf.infer(arm.Body)
		if err != nil {
			return nil, nil, err
		}
		acc = types.Compose(s, acc)
		acc, err = unify(acc, acc.Apply(result), acc.Apply(bodyTy))
		if err != nil {
			return nil, nil, err
		}
	}

	if n.TimeoutBody != nil {
		bodyTy, s, err := inf.infer(n.TimeoutBody)
		if err != nil {
			return nil, nil, err
		}
		acc = types.Compose(s, acc)
		acc, err = unify(acc, acc.Apply(result), acc.Apply(bodyTy))
		if err != nil {
			return nil, nil, err
		}
	}

	return acc.Apply(result), acc, nil
}

// instantiate replaces a scheme's bound variables with fresh ones.
func (inf *inferer) instantiate(sc types.Scheme) types.Type {
	if len(sc.Vars) == 0 {
		return sc.Ty
	}
	sub := make(types.Subst, len(sc.Vars))
	for _, v := range sc.Vars {
		sub[v] = inf.fresh()
	}
	return sub.Apply(sc.Ty)
}

// unify extends sub so that sub.Apply(a) and sub.Apply(b) describe the
// same type, mutating sub in place and returning it for chaining.
func unify(sub types.Subst, a, b types.Type) (types.Subst, error) {
	a, b = sub.Apply(a), sub.Apply(b)

	if types.Equal(a, b) {
		return sub, nil
	}

	switch av := a.(type) {
	case types.Var:
		return bindVar(sub, av, b)
	}
	if bv, ok := b.(types.Var); ok {
		return bindVar(sub, bv, a)
	}

	switch av := a.(type) {
	case types.Func:
		bv, ok := b.(types.Func)
		if !ok || len(av.Params) != len(bv.Params) {
			return sub, fmt.Errorf("cannot unify %s with %s", a, b)
		}
		for i := range av.Params {
			var err error
			sub, err = unify(sub, av.Params[i], bv.Params[i])
			if err != nil {
				return sub, err
			}
		}
		return unify(sub, av.Ret, bv.Ret)

	case types.Con:
		bv, ok := b.(types.Con)
		if !ok || av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return sub, fmt.Errorf("cannot unify %s with %s", a, b)
		}
		for i := range av.Args {
			var err error
			sub, err = unify(sub, av.Args[i], bv.Args[i])
			if err != nil {
				return sub, err
			}
		}
		return sub, nil
	}

	return sub, fmt.Errorf("cannot unify %s with %s", a, b)
}

func bindVar(sub types.Subst, v types.Var, t types.Type) (types.Subst, error) {
	if tv, ok := t.(types.Var); ok && tv.ID == v.ID {
		return sub, nil
	}
	if occursInSubst(sub, v, t) {
		return sub, fmt.Errorf("occurs check failed: %s in %s", v, t)
	}
	next := make(types.Subst, len(sub)+1)
	for k, val := range sub {
		next[k] = val
	}
	next[v.ID] = t
	return next, nil
}

func occursInSubst(sub types.Subst, v types.Var, t types.Type) bool {
	for _, id := range types.FreeVars(t) {
		if id == v.ID {
			return true
		}
	}
	return false
}
