package mir

import (
	"testing"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/typeck"
	"github.com/snowdamiz/meshcore/internal/types"
	"github.com/stretchr/testify/require"
)

func checkAndLower(t *testing.T, module *ast.Module, ctx *typeck.ImportContext) (*MirModule, typeck.ModuleExports) {
	t.Helper()
	res := typeck.CheckWithImports(module, ctx)
	require.False(t, res.Diagnostics.HasErrors(), "diagnostics: %+v", res.Diagnostics.All())

	lc := NewLowerContext(module, ctx, res.Exports)
	mod, err := Lower(module, lc)
	require.NoError(t, err)
	return mod, res.Exports
}

func TestLowerSimpleFunction(t *testing.T) {
	module := &ast.Module{
		Name: "Math",
		Funcs: []ast.FuncDecl{
			{
				Name:    "double",
				Params:  []ast.Param{{Name: "x", Type: ast.TypeExpr{Name: "Int"}}},
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Call{
					Fn:   ast.Ident{Name: "double"},
					Args: []ast.Expr{ast.Ident{Name: "x"}},
				},
			},
		},
	}

	mod, _ := checkAndLower(t, module, typeck.NewImportContext("Math"))
	require.Len(t, mod.Functions, 1)
	require.Equal(t, "double", mod.Functions[0].Name)
}

// TestLowerQualifiedCallUsesDirectSymbolNeverTraitDispatch covers §4.F:
// qualified calls on a user_modules name lower to a direct call on the
// exported MIR function.
func TestLowerQualifiedCallUsesDirectSymbolNeverTraitDispatch(t *testing.T) {
	mathModule := &ast.Module{
		Name: "Math",
		Funcs: []ast.FuncDecl{
			{
				Name:    "add",
				Params:  []ast.Param{{Name: "a", Type: ast.TypeExpr{Name: "Int"}}, {Name: "b", Type: ast.TypeExpr{Name: "Int"}}},
				RetType: ast.TypeExpr{Name: "Int"},
				Body:    ast.Ident{Name: "a"},
			},
		},
	}
	_, mathExports := checkAndLower(t, mathModule, typeck.NewImportContext("Math"))

	ctx := typeck.NewImportContext("Main")
	ctx.AddDependency("Math", mathExports)

	mainModule := &ast.Module{
		Name:    "Main",
		Imports: []ast.Import{{Names: []string{"Math"}}},
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Call{
					Fn:   ast.QualifiedIdent{Module: "Math", Name: "add"},
					Args: []ast.Expr{ast.IntLit{Value: 2}, ast.IntLit{Value: 3}},
				},
			},
		},
	}

	mod, _ := checkAndLower(t, mainModule, ctx)
	runFn, ok := mod.FuncByName("run")
	require.True(t, ok)

	call, ok := runFn.Body.(Call)
	require.True(t, ok)
	require.Equal(t, "Math.add", call.Callee)
	require.False(t, call.Intrinsic)
}

// TestLowerSelectiveImportBypassesMangling covers §4.F: a name introduced
// by `from Math import add` calls the exporting module's function
// directly.
func TestLowerSelectiveImportBypassesMangling(t *testing.T) {
	mathModule := &ast.Module{
		Name: "Math",
		Funcs: []ast.FuncDecl{
			{
				Name:    "add",
				Params:  []ast.Param{{Name: "a", Type: ast.TypeExpr{Name: "Int"}}, {Name: "b", Type: ast.TypeExpr{Name: "Int"}}},
				RetType: ast.TypeExpr{Name: "Int"},
				Body:    ast.Ident{Name: "a"},
			},
		},
	}
	_, mathExports := checkAndLower(t, mathModule, typeck.NewImportContext("Math"))

	ctx := typeck.NewImportContext("Main")
	ctx.AddDependency("Math", mathExports)

	mainModule := &ast.Module{
		Name:    "Main",
		Imports: []ast.Import{{Names: []string{"Math"}, From: []string{"add"}}},
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Call{
					Fn:   ast.Ident{Name: "add"},
					Args: []ast.Expr{ast.IntLit{Value: 10}, ast.IntLit{Value: 20}},
				},
			},
		},
	}

	mod, _ := checkAndLower(t, mainModule, ctx)
	runFn, ok := mod.FuncByName("run")
	require.True(t, ok)
	call := runFn.Body.(Call)
	require.Equal(t, "Math.add", call.Callee)
}

// TestLowerStdlibCallUsesKnownFunctionSymbol covers the known_functions
// dispatch table (§3.5, §4.G).
func TestLowerStdlibCallUsesKnownFunctionSymbol(t *testing.T) {
	module := &ast.Module{
		Name: "Main",
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Unit"},
				Body: ast.Call{
					Fn:   ast.QualifiedIdent{Module: "IO", Name: "println"},
					Args: []ast.Expr{ast.StringLit{Value: "hi"}},
				},
			},
		},
	}

	mod, _ := checkAndLower(t, module, typeck.NewImportContext("Main"))
	call := mod.Functions[0].Body.(Call)
	require.Equal(t, "mesh_rt_io_println", call.Callee)
	require.True(t, call.Intrinsic)
}

// TestLowerReceiveWithAfterProducesActorReceiveWithTimeout covers §4.F's
// lowering of `receive ... after` to MirExpr::ActorReceive.
func TestLowerReceiveWithAfterProducesActorReceiveWithTimeout(t *testing.T) {
	module := &ast.Module{
		Name: "Main",
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Receive{
					Arms:        []ast.MatchArm{{Pattern: ast.Ident{Name: "msg"}, Body: ast.IntLit{Value: 1}}},
					TimeoutMs:   ast.IntLit{Value: 50},
					TimeoutBody: ast.IntLit{Value: 0},
				},
			},
		},
	}

	mod, _ := checkAndLower(t, module, typeck.NewImportContext("Main"))
	recv, ok := mod.Functions[0].Body.(ActorReceive)
	require.True(t, ok)
	require.NotNil(t, recv.TimeoutMs)
	require.NotNil(t, recv.TimeoutBody)
	require.Len(t, recv.Arms, 1)
}

// TestLowerReceiveWithoutAfterHasNilTimeout covers the no-`after` case:
// TimeoutMs/TimeoutBody stay nil, so codegen has no timeout body to
// branch to and loops on a null message instead (§4.G).
func TestLowerReceiveWithoutAfterHasNilTimeout(t *testing.T) {
	module := &ast.Module{
		Name: "Main",
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Receive{
					Arms: []ast.MatchArm{{Pattern: ast.Ident{Name: "msg"}, Body: ast.IntLit{Value: 1}}},
				},
			},
		},
	}

	mod, _ := checkAndLower(t, module, typeck.NewImportContext("Main"))
	recv := mod.Functions[0].Body.(ActorReceive)
	require.Nil(t, recv.TimeoutMs)
	require.Nil(t, recv.TimeoutBody)
}

func TestMergeMirModulesConcatenatesAndDedupes(t *testing.T) {
	a := &MirModule{Functions: []MirFunction{{Name: "f"}}, Structs: []types.StructDef{{Name: "P", DisplayPrefix: "A"}}}
	b := &MirModule{Functions: []MirFunction{{Name: "g"}}, Structs: []types.StructDef{{Name: "P", DisplayPrefix: "A"}}}

	merged, err := MergeMirModules([]*MirModule{a, b})
	require.NoError(t, err)
	require.Len(t, merged.Functions, 2)
	require.Len(t, merged.Structs, 1)
}

func TestMergeMirModulesRejectsDuplicateFunctionNames(t *testing.T) {
	a := &MirModule{Functions: []MirFunction{{Name: "f"}}}
	b := &MirModule{Functions: []MirFunction{{Name: "f"}}}

	_, err := MergeMirModules([]*MirModule{a, b})
	require.Error(t, err)
}

// TestMonomorphizeSpecializesGenericCallSites covers monomorphization-once:
// a generic identity function called with two different concrete types
// gets two specialized clones, and call sites are rewritten to reference
// them; the generic original is dropped.
func TestMonomorphizeSpecializesGenericCallSites(t *testing.T) {
	identity := MirFunction{
		Name:   "identity",
		Params: []MirParam{{Name: "x", Ty: types.Var{ID: 1}}},
		Body:   Local{typed{types.Var{ID: 1}}, "x"},
		Ret:    types.Var{ID: 1},
		Scheme: types.Scheme{Vars: []int{1}, Ty: types.Func{Params: []types.Type{types.Var{ID: 1}}, Ret: types.Var{ID: 1}}},
	}

	useInt := MirFunction{
		Name: "useInt",
		Body: Call{typed{types.IntType()}, "identity", []MirExpr{IntLit{typed{types.IntType()}, 1}}, false},
		Ret:  types.IntType(),
	}
	useString := MirFunction{
		Name: "useString",
		Body: Call{typed{types.StringType()}, "identity", []MirExpr{StringLit{typed{types.StringType()}, "x"}}, false},
		Ret:  types.StringType(),
	}

	mod := &MirModule{Functions: []MirFunction{identity, useInt, useString}}
	out := Monomorphize(mod)

	_, hasGeneric := out.FuncByName("identity")
	require.False(t, hasGeneric, "generic original should be dropped")

	useIntFn, ok := out.FuncByName("useInt")
	require.True(t, ok)
	intCall := useIntFn.Body.(Call)
	require.NotEqual(t, "identity", intCall.Callee)

	useStringFn, ok := out.FuncByName("useString")
	require.True(t, ok)
	stringCall := useStringFn.Body.(Call)
	require.NotEqual(t, "identity", stringCall.Callee)
	require.NotEqual(t, intCall.Callee, stringCall.Callee)

	// Two distinct instantiations produce two distinct clones, kept
	// alongside the two non-generic callers.
	require.Len(t, out.Functions, 4)
}
