// Package mir implements the raw mid-level IR (§3.5): per-module lowering
// from a checked AST, and merge_mir_modules + monomorphize-once (§4.F).
package mir

import "github.com/snowdamiz/meshcore/internal/types"

// MirExpr is any MIR expression node.
type MirExpr interface {
	mirNode()
	// Type returns the expression's resolved concrete type, as determined
	// during lowering from the typechecker's result.
	Type() types.Type
}

type typed struct{ Ty types.Type }

func (t typed) Type() types.Type { return t.Ty }

// IntLit, FloatLit, BoolLit, StringLit are MIR literal nodes.
type IntLit struct {
	typed
	Value int64
}
type FloatLit struct {
	typed
	Value float64
}
type BoolLit struct {
	typed
	Value bool
}
type StringLit struct {
	typed
	Value string
}

// Local references a parameter or let-bound local by name.
type Local struct {
	typed
	Name string
}

// Call invokes Callee (an MIR function name or extern-C intrinsic symbol,
// see known_functions) with Args.
type Call struct {
	typed
	Callee string
	Args   []MirExpr
	// Intrinsic is true when Callee names an extern-C runtime/stdlib
	// intrinsic (§4.G), rather than a MIR function defined in this or a
	// merged module.
	Intrinsic bool
}

// Let binds Name to Value within Body.
type Let struct {
	typed
	Name  string
	Value MirExpr
	Body  MirExpr
}

// If is a conditional expression.
type If struct {
	typed
	Cond, Then, Else MirExpr
}

// TupleExpr constructs a tuple value.
type TupleExpr struct {
	typed
	Elems []MirExpr
}

// ListExpr constructs a list value.
type ListExpr struct {
	typed
	Elems []MirExpr
}

// ConstructExpr constructs a struct or sum variant.
type ConstructExpr struct {
	typed
	Name string
	Args []MirExpr
}

// Send lowers `target ! msg`.
type Send struct {
	typed
	Target, Msg MirExpr
}

// Spawn lowers a process spawn.
type Spawn struct {
	typed
	Body MirExpr
}

// MatchArm is one arm of an ActorReceive.
type MatchArm struct {
	Pattern MirExpr
	Guard   MirExpr
	Body    MirExpr
}

// ActorReceive is the lowering target of `receive { arms } [after ms { body }]`
// (§4.F). TimeoutMs and TimeoutBody are nil when there is no `after` clause.
// Codegen null-checks the received message either way (§4.G); a null
// message branches to TimeoutBody only when they are set, and otherwise
// the receive loops.
type ActorReceive struct {
	typed
	Arms        []MatchArm
	TimeoutMs   MirExpr
	TimeoutBody MirExpr
}

// Block sequences expressions, evaluating to the last one's value.
type Block struct {
	typed
	Exprs []MirExpr
}

func (IntLit) mirNode()        {}
func (FloatLit) mirNode()      {}
func (BoolLit) mirNode()       {}
func (StringLit) mirNode()     {}
func (Local) mirNode()         {}
func (Call) mirNode()          {}
func (Let) mirNode()           {}
func (If) mirNode()            {}
func (TupleExpr) mirNode()     {}
func (ListExpr) mirNode()      {}
func (ConstructExpr) mirNode() {}
func (Send) mirNode()          {}
func (Spawn) mirNode()         {}
func (ActorReceive) mirNode()  {}
func (Block) mirNode()         {}

// MirParam is one MIR function parameter.
type MirParam struct {
	Name string
	Ty   types.Type
}

// MirFunction is one function in a MIR module: parameters, declared
// locals, and a body expression.
type MirFunction struct {
	Name   string
	Params []MirParam
	Locals []string
	Body   MirExpr
	Ret    types.Type

	// Scheme is the function's full polymorphic signature as the type
	// checker produced it; Monomorphize consults FreeVars(Scheme.Ty) to
	// decide whether this function needs per-call-site specialization.
	Scheme types.Scheme
}

// MirModule is one module's (or, post-merge, the whole program's) MIR:
// functions, struct defs, and sum type defs (§3.5).
type MirModule struct {
	Functions []MirFunction
	Structs   []types.StructDef
	Sums      []types.SumDef
}

// FuncByName returns the function named name, if present.
func (m *MirModule) FuncByName(name string) (*MirFunction, bool) {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i], true
		}
	}
	return nil, false
}
