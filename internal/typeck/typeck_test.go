package typeck

import (
	"testing"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/types"
	"github.com/stretchr/testify/require"
)

// mathModule builds the `Math` module of scenario S5: it exports
// add(Int,Int) -> Int.
func mathModule() *ast.Module {
	return &ast.Module{
		Name: "Math",
		Funcs: []ast.FuncDecl{
			{
				Name:    "add",
				Params:  []ast.Param{{Name: "a", Type: ast.TypeExpr{Name: "Int"}}, {Name: "b", Type: ast.TypeExpr{Name: "Int"}}},
				RetType: ast.TypeExpr{Name: "Int"},
				Body:    ast.Call{Fn: ast.Ident{Name: "add"}, Args: []ast.Expr{ast.Ident{Name: "a"}, ast.Ident{Name: "b"}}},
			},
		},
	}
}

func checkMath(t *testing.T) ModuleExports {
	t.Helper()
	ctx := NewImportContext("Math")
	res := CheckWithImports(mathModule(), ctx)
	require.False(t, res.Diagnostics.HasErrors(), "diagnostics: %+v", res.Diagnostics.All())
	return res.Exports
}

// TestQualifiedCallResolves covers S5's `Math.add(2,3)` form: qualified
// calls resolve via qualified_modules without needing a `from` import.
func TestQualifiedCallResolves(t *testing.T) {
	mathExports := checkMath(t)

	ctx := NewImportContext("Main")
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

	res := CheckWithImports(mainModule, ctx)
	require.False(t, res.Diagnostics.HasErrors(), "diagnostics: %+v", res.Diagnostics.All())
}

// TestSelectiveImportResolves covers S5's `from Math import add; add(10,20)`
// form.
func TestSelectiveImportResolves(t *testing.T) {
	mathExports := checkMath(t)

	ctx := NewImportContext("Main")
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

	res := CheckWithImports(mainModule, ctx)
	require.False(t, res.Diagnostics.HasErrors(), "diagnostics: %+v", res.Diagnostics.All())
}

func TestImportModuleNotFoundEmitsDiagnostic(t *testing.T) {
	ctx := NewImportContext("Main")
	mainModule := &ast.Module{
		Name:    "Main",
		Imports: []ast.Import{{Names: []string{"Nope"}, From: []string{"x"}}},
	}

	res := CheckWithImports(mainModule, ctx)
	require.True(t, res.Diagnostics.HasErrors())
	require.Equal(t, codeImportModuleNotFound, res.Diagnostics.All()[0].Code)
}

func TestImportNameNotFoundSuggestsClosestName(t *testing.T) {
	mathExports := checkMath(t)

	ctx := NewImportContext("Main")
	ctx.AddDependency("Math", mathExports)

	mainModule := &ast.Module{
		Name:    "Main",
		Imports: []ast.Import{{Names: []string{"Math"}, From: []string{"ad"}}},
	}

	res := CheckWithImports(mainModule, ctx)
	require.True(t, res.Diagnostics.HasErrors())
	d := res.Diagnostics.All()[0]
	require.Equal(t, codeImportNameNotFound, d.Code)
	require.Equal(t, "add", d.Suggestion)
}

// TestLocalTypesGetCurrentModuleDisplayPrefix covers §4.E rule 4: local
// struct/sum declarations are stamped with the current module's name.
func TestLocalTypesGetCurrentModuleDisplayPrefix(t *testing.T) {
	module := &ast.Module{
		Name: "Geometry",
		Structs: []ast.StructDecl{
			{Name: "Point", Fields: []ast.FieldDecl{{Name: "x", Type: ast.TypeExpr{Name: "Int"}}, {Name: "y", Type: ast.TypeExpr{Name: "Int"}}}},
		},
	}

	ctx := NewImportContext("Geometry")
	res := CheckWithImports(module, ctx)
	require.False(t, res.Diagnostics.HasErrors())

	def, ok := res.Exports.Structs["Point"]
	require.True(t, ok)
	require.Equal(t, "Geometry", def.DisplayPrefix)
	require.Equal(t, "Geometry.Point", def.Con().String())
}

// TestImportedVariantConstructorResolves covers §4.E pre-seeding rule 3:
// importing a sum type registers all of its variant constructors so
// `Circle(5.0)` resolves in the importer.
func TestImportedVariantConstructorResolves(t *testing.T) {
	shapesModule := &ast.Module{
		Name: "Shapes",
		Sums: []ast.SumDecl{
			{Name: "Shape", Variants: []ast.VariantDecl{{Name: "Circle", Fields: []ast.TypeExpr{{Name: "Float"}}}}},
		},
	}
	shapesRes := CheckWithImports(shapesModule, NewImportContext("Shapes"))
	require.False(t, shapesRes.Diagnostics.HasErrors())

	ctx := NewImportContext("Main")
	ctx.AddDependency("Shapes", shapesRes.Exports)

	mainModule := &ast.Module{
		Name:    "Main",
		Imports: []ast.Import{{Names: []string{"Shapes"}}},
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Shape"},
				Body:    ast.ConstructExpr{Name: "Circle", Args: []ast.Expr{ast.FloatLit{Value: 5.0}}},
			},
		},
	}

	res := CheckWithImports(mainModule, ctx)
	require.False(t, res.Diagnostics.HasErrors(), "diagnostics: %+v", res.Diagnostics.All())
}

// TestCheckWithImportsDeterministic covers PQ3: running check_with_imports
// twice over the same inputs produces the same diagnostics and exports.
func TestCheckWithImportsDeterministic(t *testing.T) {
	run := func() *TypeckResult {
		ctx := NewImportContext("Math")
		return CheckWithImports(mathModule(), ctx)
	}

	a, b := run(), run()
	require.Equal(t, len(a.Diagnostics.All()), len(b.Diagnostics.All()))
	require.Equal(t, len(a.Exports.Funcs), len(b.Exports.Funcs))

	aSig, aOK := a.Exports.Funcs["add"]
	bSig, bOK := b.Exports.Funcs["add"]
	require.True(t, aOK)
	require.True(t, bOK)
	require.True(t, types.Equal(aSig.Ty, bSig.Ty))
}

func TestArityMismatchIsAnError(t *testing.T) {
	module := &ast.Module{
		Name: "Main",
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Let{
					Name:  "f",
					Value: ast.Ident{Name: "run"},
					Body: ast.Call{
						Fn:   ast.Ident{Name: "run"},
						Args: []ast.Expr{ast.IntLit{Value: 1}},
					},
				},
			},
		},
	}

	res := CheckWithImports(module, NewImportContext("Main"))
	require.True(t, res.Diagnostics.HasErrors())
}
