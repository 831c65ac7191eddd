package mir

import (
	"fmt"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/typeck"
	"github.com/snowdamiz/meshcore/internal/types"
)

// importedFunc records where a selectively-imported name came from, so the
// lowerer can bypass trait method name mangling and call the exporting
// module's function directly (§4.F).
type importedFunc struct {
	Module, Name string
}

// LowerContext carries everything the lowerer needs beyond the module's
// own AST: its own checked exports, the accumulated exports of its
// dependencies (user_modules), and its selective-import table
// (imported_functions).
type LowerContext struct {
	CurrentModule     string
	Exports           typeck.ModuleExports
	Imports           *typeck.ImportContext
	UserModules       map[string]bool
	ImportedFunctions map[string]importedFunc
}

// NewLowerContext builds a LowerContext for module from its TypeckResult
// and the ImportContext it was checked against.
func NewLowerContext(module *ast.Module, ctx *typeck.ImportContext, exports typeck.ModuleExports) *LowerContext {
	lc := &LowerContext{
		CurrentModule:     ctx.CurrentModule,
		Exports:           exports,
		Imports:           ctx,
		UserModules:       make(map[string]bool),
		ImportedFunctions: make(map[string]importedFunc),
	}

	for name := range ctx.Modules {
		if !IsStdlibModule(name) {
			lc.UserModules[name] = true
		}
	}

	for _, imp := range module.Imports {
		if len(imp.From) == 0 {
			continue
		}
		moduleName := imp.Names[len(imp.Names)-1]
		for _, name := range imp.From {
			lc.ImportedFunctions[name] = importedFunc{Module: moduleName, Name: name}
		}
	}

	return lc
}

// Lower implements per-module lowering to raw MIR (§4.F): no
// monomorphization yet, that only happens once on the merged module.
func Lower(module *ast.Module, lc *LowerContext) (*MirModule, error) {
	root := rootEnv(lc)

	mod := &MirModule{}
	for _, sd := range lc.Exports.Structs {
		mod.Structs = append(mod.Structs, sd)
	}
	for _, sum := range lc.Exports.Sums {
		mod.Sums = append(mod.Sums, sum)
	}

	for _, fn := range module.Funcs {
		mfn, err := lowerFunc(fn, root, lc)
		if err != nil {
			return nil, fmt.Errorf("lowering %s.%s: %w", lc.CurrentModule, fn.Name, err)
		}
		mod.Functions = append(mod.Functions, mfn)
	}

	return mod, nil
}

// rootEnv seeds the call-target environment: every locally-declared
// function plus every struct/sum constructor visible to this module
// (local and imported), so lowering a Call or ConstructExpr node can
// recover a concrete scheme to instantiate against.
func rootEnv(lc *LowerContext) map[string]types.Scheme {
	env := make(map[string]types.Scheme)

	for name, sc := range lc.Exports.Funcs {
		env[name] = sc
	}
	addConstructors(env, lc.Exports.Structs, lc.Exports.Sums)

	for _, exports := range lc.Imports.Modules {
		addConstructors(env, exports.Structs, exports.Sums)
	}

	return env
}

func addConstructors(env map[string]types.Scheme, structs map[string]types.StructDef, sums map[string]types.SumDef) {
	for _, sd := range structs {
		params := make([]types.Type, len(sd.Fields))
		for i, f := range sd.Fields {
			params[i] = f.Ty
		}
		env[sd.Name] = types.Mono(types.Func{Params: params, Ret: sd.Con()})
	}
	for _, sum := range sums {
		for _, v := range sum.Variants {
			env[v.Name] = types.Mono(types.Func{Params: v.Fields, Ret: sum.Con()})
		}
	}
}

func lowerFunc(fn ast.FuncDecl, root map[string]types.Scheme, lc *LowerContext) (MirFunction, error) {
	sc, ok := lc.Exports.Funcs[fn.Name]
	if !ok {
		return MirFunction{}, fmt.Errorf("no checked signature for %s", fn.Name)
	}
	ft, ok := sc.Ty.(types.Func)
	if !ok {
		return MirFunction{}, fmt.Errorf("%s's checked signature is not a function type", fn.Name)
	}

	env := make(map[string]types.Scheme, len(root)+len(fn.Params))
	for k, v := range root {
		env[k] = v
	}

	params := make([]MirParam, len(fn.Params))
	for i, p := range fn.Params {
		env[p.Name] = types.Mono(ft.Params[i])
		params[i] = MirParam{Name: p.Name, Ty: ft.Params[i]}
	}

	body, err := lowerExpr(fn.Body, env, lc)
	if err != nil {
		return MirFunction{}, err
	}

	return MirFunction{
		Name:   fn.Name,
		Params: params,
		Locals: collectLocals(fn.Body),
		Body:   body,
		Ret:    ft.Ret,
		Scheme: sc,
	}, nil
}

// collectLocals walks a function body for Let-bound names, the MIR
// function's declared locals.
func collectLocals(e ast.Expr) []string {
	var names []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case ast.Let:
			names = append(names, n.Name)
			walk(n.Value)
			walk(n.Body)
		case ast.If:
			walk(n.Cond)
			walk(n.Then)
			walk(n.Else)
		case ast.Block:
			for _, ex := range n.Exprs {
				walk(ex)
			}
		case ast.Call:
			walk(n.Fn)
			for _, a := range n.Args {
				walk(a)
			}
		case ast.TupleExpr:
			for _, el := range n.Elems {
				walk(el)
			}
		case ast.ListExpr:
			for _, el := range n.Elems {
				walk(el)
			}
		case ast.ConstructExpr:
			for _, a := range n.Args {
				walk(a)
			}
		case ast.Send:
			walk(n.Target)
			walk(n.Msg)
		case ast.Spawn:
			walk(n.Body)
		case ast.Receive:
			for _, arm := range n.Arms {
				walk(arm.Body)
			}
			if n.TimeoutBody != nil {
				walk(n.TimeoutBody)
			}
		}
	}
	walk(e)
	return names
}

func lowerExpr(e ast.Expr, env map[string]types.Scheme, lc *LowerContext) (MirExpr, error) {
	switch n := e.(type) {
	case ast.IntLit:
		return IntLit{typed{types.IntType()}, n.Value}, nil
	case ast.FloatLit:
		return FloatLit{typed{types.FloatType()}, n.Value}, nil
	case ast.BoolLit:
		return BoolLit{typed{types.BoolType()}, n.Value}, nil
	case ast.StringLit:
		return StringLit{typed{types.StringType()}, n.Value}, nil

	case ast.Ident:
		sc, ok := env[n.Name]
		if !ok {
			return nil, fmt.Errorf("unbound name %s", n.Name)
		}
		return Local{typed{instantiateMono(sc)}, n.Name}, nil

	case ast.QualifiedIdent:
		return nil, fmt.Errorf("bare qualified identifier %s.%s is not callable outside a Call", n.Module, n.Name)

	case ast.Call:
		return lowerCall(n, env, lc)

	case ast.Let:
		value, err := lowerExpr(n.Value, env, lc)
		if err != nil {
			return nil, err
		}
		childEnv := make(map[string]types.Scheme, len(env)+1)
		for k, v := range env {
			childEnv[k] = v
		}
		childEnv[n.Name] = types.Mono(value.Type())
		body, err := lowerExpr(n.Body, childEnv, lc)
		if err != nil {
			return nil, err
		}
		return Let{typed{body.Type()}, n.Name, value, body}, nil

	case ast.If:
		cond, err := lowerExpr(n.Cond, env, lc)
		if err != nil {
			return nil, err
		}
		then, err := lowerExpr(n.Then, env, lc)
		if err != nil {
			return nil, err
		}
		els, err := lowerExpr(n.Else, env, lc)
		if err != nil {
			return nil, err
		}
		return If{typed{then.Type()}, cond, then, els}, nil

	case ast.TupleExpr:
		elems := make([]MirExpr, len(n.Elems))
		elemTypes := make([]types.Type, len(n.Elems))
		for i, el := range n.Elems {
			m, err := lowerExpr(el, env, lc)
			if err != nil {
				return nil, err
			}
			elems[i] = m
			elemTypes[i] = m.Type()
		}
		return TupleExpr{typed{types.TupleType(elemTypes...)}, elems}, nil

	case ast.ListExpr:
		elems := make([]MirExpr, len(n.Elems))
		var elemTy types.Type = types.UnitType()
		for i, el := range n.Elems {
			m, err := lowerExpr(el, env, lc)
			if err != nil {
				return nil, err
			}
			elems[i] = m
			if i == 0 {
				elemTy = m.Type()
			}
		}
		return ListExpr{typed{types.ListType(elemTy)}, elems}, nil

	case ast.ConstructExpr:
		sc, ok := env[n.Name]
		if !ok {
			return nil, fmt.Errorf("unknown constructor %s", n.Name)
		}
		args, argTypes, err := lowerArgs(n.Args, env, lc)
		if err != nil {
			return nil, err
		}
		ret, err := typeck.InstantiateCall(sc, argTypes)
		if err != nil {
			return nil, err
		}
		return ConstructExpr{typed{ret}, n.Name, args}, nil

	case ast.Send:
		target, err := lowerExpr(n.Target, env, lc)
		if err != nil {
			return nil, err
		}
		msg, err := lowerExpr(n.Msg, env, lc)
		if err != nil {
			return nil, err
		}
		return Send{typed{types.UnitType()}, target, msg}, nil

	case ast.Spawn:
		body, err := lowerExpr(n.Body, env, lc)
		if err != nil {
			return nil, err
		}
		return Spawn{typed{types.OpaqueHandle("Pid")}, body}, nil

	case ast.Receive:
		return lowerReceive(n, env, lc)

	case ast.Block:
		if len(n.Exprs) == 0 {
			return Block{typed{types.UnitType()}, nil}, nil
		}
		exprs := make([]MirExpr, len(n.Exprs))
		for i, ex := range n.Exprs {
			m, err := lowerExpr(ex, env, lc)
			if err != nil {
				return nil, err
			}
			exprs[i] = m
		}
		return Block{typed{exprs[len(exprs)-1].Type()}, exprs}, nil

	default:
		return nil, fmt.Errorf("mir: unhandled ast node %T", e)
	}
}

func lowerArgs(argExprs []ast.Expr, env map[string]types.Scheme, lc *LowerContext) ([]MirExpr, []types.Type, error) {
	args := make([]MirExpr, len(argExprs))
	argTypes := make([]types.Type, len(argExprs))
	for i, a := range argExprs {
		m, err := lowerExpr(a, env, lc)
		if err != nil {
			return nil, nil, err
		}
		args[i] = m
		argTypes[i] = m.Type()
	}
	return args, argTypes, nil
}

// lowerCall implements the callee-resolution policy of §4.F: stdlib
// intrinsics via known_functions, qualified calls on user_modules lower to
// a direct MIR call (never trait dispatch), selectively-imported names
// bypass mangling and call the exporting module's function directly.
func lowerCall(n ast.Call, env map[string]types.Scheme, lc *LowerContext) (MirExpr, error) {
	args, argTypes, err := lowerArgs(n.Args, env, lc)
	if err != nil {
		return nil, err
	}

	switch fn := n.Fn.(type) {
	case ast.QualifiedIdent:
		if IsStdlibModule(fn.Module) {
			kf, ok := LookupKnownFunction(fn.Module, fn.Name)
			if !ok {
				return nil, fmt.Errorf("unknown stdlib function %s.%s", fn.Module, fn.Name)
			}
			return Call{typed{kf.Ret}, kf.Symbol, args, true}, nil
		}

		if !lc.UserModules[fn.Module] {
			return nil, fmt.Errorf("unknown module %s", fn.Module)
		}
		exports, ok := lc.Imports.Modules[fn.Module]
		if !ok {
			return nil, fmt.Errorf("unknown module %s", fn.Module)
		}
		sc, ok := exports.Funcs[fn.Name]
		if !ok {
			return nil, fmt.Errorf("unknown function %s.%s", fn.Module, fn.Name)
		}
		ret, err := typeck.InstantiateCall(sc, argTypes)
		if err != nil {
			return nil, err
		}
		return Call{typed{ret}, fn.Module + "." + fn.Name, args, false}, nil

	case ast.Ident:
		if imp, ok := lc.ImportedFunctions[fn.Name]; ok {
			if IsStdlibModule(imp.Module) {
				kf, ok := LookupKnownFunction(imp.Module, imp.Name)
				if !ok {
					return nil, fmt.Errorf("unknown stdlib function %s.%s", imp.Module, imp.Name)
				}
				return Call{typed{kf.Ret}, kf.Symbol, args, true}, nil
			}

			exports, ok := lc.Imports.Modules[imp.Module]
			if !ok {
				return nil, fmt.Errorf("unknown module %s", imp.Module)
			}
			sc, ok := exports.Funcs[imp.Name]
			if !ok {
				return nil, fmt.Errorf("unknown function %s.%s", imp.Module, imp.Name)
			}
			ret, err := typeck.InstantiateCall(sc, argTypes)
			if err != nil {
				return nil, err
			}
			return Call{typed{ret}, imp.Module + "." + imp.Name, args, false}, nil
		}

		sc, ok := env[fn.Name]
		if !ok {
			return nil, fmt.Errorf("unbound function %s", fn.Name)
		}
		ret, err := typeck.InstantiateCall(sc, argTypes)
		if err != nil {
			return nil, err
		}
		return Call{typed{ret}, fn.Name, args, false}, nil

	default:
		return nil, fmt.Errorf("mir: unsupported call target %T", n.Fn)
	}
}

func lowerReceive(n ast.Receive, env map[string]types.Scheme, lc *LowerContext) (MirExpr, error) {
	arms := make([]MatchArm, len(n.Arms))
	var resultTy types.Type = types.UnitType()

	for i, arm := range n.Arms {
		armEnv := env

		// A bare identifier pattern captures the whole message under
		// that name, rather than referencing an existing binding; full
		// structural pattern destructuring is out of scope (matching
		// here is the same identifier-capture-only model
		// internal/actorsys's popMatch works against).
		var pattern MirExpr
		if ident, ok := arm.Pattern.(ast.Ident); ok {
			msgTy := types.OpaqueHandle("Message")
			pattern = Local{typed{msgTy}, ident.Name}

			armEnv = make(map[string]types.Scheme, len(env)+1)
			for k, v := range env {
				armEnv[k] = v
			}
			armEnv[ident.Name] = types.Mono(msgTy)
		} else {
			var err error
			pattern, err = lowerExpr(arm.Pattern, env, lc)
			if err != nil {
				return nil, err
			}
		}

		body, err := lowerExpr(arm.Body, armEnv, lc)
		if err != nil {
			return nil, err
		}
		arms[i] = MatchArm{Pattern: pattern, Body: body}
		if i == 0 {
			resultTy = body.Type()
		}
	}

	var timeoutMs, timeoutBody MirExpr
	if n.TimeoutMs != nil {
		var err error
		timeoutMs, err = lowerExpr(n.TimeoutMs, env, lc)
		if err != nil {
			return nil, err
		}
		timeoutBody, err = lowerExpr(n.TimeoutBody, env, lc)
		if err != nil {
			return nil, err
		}
		resultTy = timeoutBody.Type()
	}

	return ActorReceive{typed{resultTy}, arms, timeoutMs, timeoutBody}, nil
}

// instantiateMono returns the concrete type of a non-call identifier
// reference: a monomorphic binding's type directly, or a fresh
// instantiation of a polymorphic one.
func instantiateMono(sc types.Scheme) types.Type {
	if len(sc.Vars) == 0 {
		return sc.Ty
	}
	ret, err := typeck.InstantiateCall(types.Scheme{Vars: sc.Vars, Ty: types.Func{Ret: sc.Ty}}, nil)
	if err != nil {
		return sc.Ty
	}
	return ret
}
