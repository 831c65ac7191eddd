// Package ast defines the parse-tree shape that internal/typeck and
// internal/mir consume. Parsing source text into this tree is the external
// collaborator's job (§1 non-goals: no lexer, no parser); this package only
// fixes the contract the rest of the pipeline is built against.
package ast

// Import is either `import M1.M2...Mn` (Names has every segment, From is
// empty) or `from M1...Mn import a, b` (Names holds the module path, From
// holds the selectively-imported identifiers).
type Import struct {
	Names []string
	From  []string
}

// Module is one source file's worth of top-level declarations after
// parsing, the unit `check_with_imports` operates on.
type Module struct {
	Name    string
	Imports []Import
	Funcs   []FuncDecl
	Structs []StructDecl
	Sums    []SumDecl
	Traits  []TraitDecl
	Impls   []ImplDecl
}

// TypeExpr is the surface syntax for a type annotation, resolved against
// the type registry during checking.
type TypeExpr struct {
	Name string
	Args []TypeExpr
}

// Param is one function parameter.
type Param struct {
	Name string
	Type TypeExpr
}

// FuncDecl is a top-level function definition.
type FuncDecl struct {
	Name    string
	Params  []Param
	RetType TypeExpr
	Body    Expr
}

// FieldDecl is one struct field.
type FieldDecl struct {
	Name string
	Type TypeExpr
}

// StructDecl is a top-level struct definition.
type StructDecl struct {
	Name   string
	Fields []FieldDecl
}

// VariantDecl is one sum type variant.
type VariantDecl struct {
	Name   string
	Fields []TypeExpr
}

// SumDecl is a top-level sum type definition.
type SumDecl struct {
	Name     string
	Variants []VariantDecl
}

// TraitMethodDecl is one method signature inside a trait definition.
type TraitMethodDecl struct {
	Name    string
	Params  []TypeExpr
	RetType TypeExpr
}

// TraitDecl declares a trait (a method signature set).
type TraitDecl struct {
	Name    string
	Methods []TraitMethodDecl
}

// ImplDecl binds a trait to a concrete type constructor.
type ImplDecl struct {
	Trait   string
	ForType TypeExpr
	Methods []FuncDecl
}

// Expr is any expression node. Concrete node types implement exprNode as an
// unexported marker, mirroring internal/types.Type's closed-interface shape.
type Expr interface {
	exprNode()
}

// IntLit is an integer literal.
type IntLit struct{ Value int64 }

// FloatLit is a floating-point literal.
type FloatLit struct{ Value float64 }

// BoolLit is a boolean literal.
type BoolLit struct{ Value bool }

// StringLit is a string literal.
type StringLit struct{ Value string }

// Ident references a local binding, parameter, or imported name.
type Ident struct{ Name string }

// QualifiedIdent references `Module.name`, resolved against
// qualified_modules in §4.E's import resolution rules.
type QualifiedIdent struct {
	Module string
	Name   string
}

// Call applies Fn to Args; Fn is usually an Ident or QualifiedIdent.
type Call struct {
	Fn   Expr
	Args []Expr
}

// Let binds Name to Value within Body.
type Let struct {
	Name  string
	Value Expr
	Body  Expr
}

// If is a conditional expression.
type If struct {
	Cond, Then, Else Expr
}

// TupleExpr constructs a tuple value.
type TupleExpr struct{ Elems []Expr }

// ListExpr constructs a list value.
type ListExpr struct{ Elems []Expr }

// ConstructExpr constructs a struct or sum variant by name, e.g.
// `Circle(5.0)` or `Point{x: 1, y: 2}`.
type ConstructExpr struct {
	Name string
	Args []Expr
}

// MatchArm is one arm of a Receive or Match expression. Pattern identifies
// the shape a message/value must have for Guard (if non-nil) to be checked
// and Body to run.
type MatchArm struct {
	Pattern Expr
	Guard   Expr
	Body    Expr
}

// Receive is `receive { arms } [after timeout_ms { timeout_body }]`.
type Receive struct {
	Arms        []MatchArm
	TimeoutMs   Expr
	TimeoutBody Expr
}

// Send is `target ! msg`.
type Send struct {
	Target Expr
	Msg    Expr
}

// Spawn starts a new process running Body.
type Spawn struct{ Body Expr }

// Block sequences expressions, evaluating to the last one.
type Block struct{ Exprs []Expr }

func (IntLit) exprNode()         {}
func (FloatLit) exprNode()       {}
func (BoolLit) exprNode()        {}
func (StringLit) exprNode()      {}
func (Ident) exprNode()          {}
func (QualifiedIdent) exprNode() {}
func (Call) exprNode()           {}
func (Let) exprNode()            {}
func (If) exprNode()             {}
func (TupleExpr) exprNode()      {}
func (ListExpr) exprNode()       {}
func (ConstructExpr) exprNode()  {}
func (Receive) exprNode()        {}
func (Send) exprNode()           {}
func (Spawn) exprNode()          {}
func (Block) exprNode()          {}
