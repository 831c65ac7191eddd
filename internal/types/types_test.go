package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualIgnoresDisplayPrefix(t *testing.T) {
	a := Con{Name: "Point", DisplayPrefix: "Geometry"}
	b := Con{Name: "Point", DisplayPrefix: "Shapes"}

	require.True(t, Equal(a, b))
	require.NotEqual(t, a.String(), b.String())
}

func TestEqualStructural(t *testing.T) {
	a := ListType(IntType())
	b := ListType(IntType())
	c := ListType(StringType())

	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
}

func TestSubstApplyChasesChains(t *testing.T) {
	s := Subst{
		0: Var{ID: 1},
		1: IntType(),
	}

	got := s.Apply(Var{ID: 0})
	require.True(t, Equal(IntType(), got))
}

func TestSubstApplySchemeLeavesBoundVarsAlone(t *testing.T) {
	sc := Scheme{Vars: []int{0}, Ty: Func{Params: []Type{Var{ID: 0}}, Ret: Var{ID: 1}}}

	s := Subst{0: IntType(), 1: StringType()}
	got := s.ApplyScheme(sc)

	fn := got.Ty.(Func)
	require.IsType(t, Var{}, fn.Params[0])
	require.Equal(t, 0, fn.Params[0].(Var).ID)
	require.True(t, Equal(StringType(), fn.Ret))
}

func TestFreeVarsSorted(t *testing.T) {
	ty := Func{
		Params: []Type{Var{ID: 3}, Var{ID: 1}},
		Ret:    TupleType(Var{ID: 1}, Var{ID: 2}),
	}

	require.Equal(t, []int{1, 2, 3}, FreeVars(ty))
}

func TestOccursCheck(t *testing.T) {
	v := Var{ID: 0}
	recursive := ListType(v)

	require.True(t, occurs(v, recursive))
	require.False(t, occurs(v, IntType()))
}

func TestImplKeyIgnoresDisplayPrefix(t *testing.T) {
	impl1 := Impl{Trait: "Eq", ForCon: Con{Name: "Point", DisplayPrefix: "Geometry"}}
	impl2 := Impl{Trait: "Eq", ForCon: Con{Name: "Point", DisplayPrefix: "Shapes"}}

	require.Equal(t, impl1.Key(), impl2.Key())
}
