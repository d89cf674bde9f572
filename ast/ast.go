// Package ast defines the expression tree: tagged node variants with
// parent links (set eagerly at construction, as in the original), a
// Frame subset that owns a lexical scope, and a Visitor interface that
// the resolver and code generator each implement as a distinct pass.
package ast

import (
	"calculon/position"
	"calculon/symbol"
	"calculon/types"
)

// Node is satisfied by every AST variant.
type Node interface {
	Parent() Node
	SetParent(Node)
	Pos() position.Position
	Accept(v Visitor) (interface{}, error)
}

// Base is embedded by every node; it supplies the parent link and
// position spec.md's ASTNode base attributes require.
type Base struct {
	parent Node
	pos    position.Position
}

func NewBase(pos position.Position) Base { return Base{pos: pos} }

func (b *Base) Parent() Node             { return b.parent }
func (b *Base) SetParent(p Node)         { b.parent = p }
func (b *Base) Pos() position.Position   { return b.pos }

// Frame is the subset of node variants that introduce a lexical scope:
// DefineVariable, DefineFunction, FunctionBody, Toplevel.
type Frame interface {
	Node
	Table() symbol.Table
	SetTable(symbol.Table)
}

// FrameBase is embedded by the four Frame variants.
type FrameBase struct {
	Base
	table symbol.Table
}

func (f *FrameBase) Table() symbol.Table     { return f.table }
func (f *FrameBase) SetTable(t symbol.Table) { f.table = t }

// GetFrame walks parent links starting at n (inclusive) until it finds a
// Frame, matching ASTNode::getFrame's "walk up parent links" behaviour.
// It panics if n is not rooted in a Frame, which indicates a parser bug
// (every valid AST is rooted at a Toplevel).
func GetFrame(n Node) Frame {
	for cur := n; cur != nil; cur = cur.Parent() {
		if f, ok := cur.(Frame); ok {
			return f
		}
	}
	panic("ast: node has no enclosing frame")
}

// attach sets child's parent to p and returns child, for terse
// constructors that wire up several children at once.
func attach(p Node, child Node) Node {
	if child != nil {
		child.SetParent(p)
	}
	return child
}

// Constant is a floating-point literal (including pi/Inf/NaN, which the
// parser desugars into Constant at parse time).
type Constant struct {
	Base
	Value float64
}

func NewConstant(pos position.Position, value float64) *Constant {
	return &Constant{Base: NewBase(pos), Value: value}
}

func (n *Constant) Accept(v Visitor) (interface{}, error) { return v.VisitConstant(n) }

// Boolean is a `true`/`false` literal.
type Boolean struct {
	Base
	Value bool
}

func NewBoolean(pos position.Position, value bool) *Boolean {
	return &Boolean{Base: NewBase(pos), Value: value}
}

func (n *Boolean) Accept(v Visitor) (interface{}, error) { return v.VisitBoolean(n) }

// Variable is an identifier reference; Resolved is filled in by the
// resolver pass and nil beforehand.
type Variable struct {
	Base
	Id       string
	Resolved symbol.Symbol
}

func NewVariable(pos position.Position, id string) *Variable {
	return &Variable{Base: NewBase(pos), Id: id}
}

func (n *Variable) Accept(v Visitor) (interface{}, error) { return v.VisitVariable(n) }

// Vector constructs an N-wide vector from N scalar element expressions.
type Vector struct {
	Base
	Elements []Node
}

func NewVector(pos position.Position, elements []Node) *Vector {
	n := &Vector{Base: NewBase(pos), Elements: elements}
	for _, e := range elements {
		attach(n, e)
	}
	return n
}

func (n *Vector) Accept(v Visitor) (interface{}, error) { return v.VisitVector(n) }

// VectorSplat replicates one scalar expression to fill a Width-wide
// vector; the parser produces this from the `{*N expr}` splat form.
type VectorSplat struct {
	Base
	Expr  Node
	Width int
}

func NewVectorSplat(pos position.Position, expr Node, width int) *VectorSplat {
	n := &VectorSplat{Base: NewBase(pos), Expr: expr, Width: width}
	attach(n, expr)
	return n
}

func (n *VectorSplat) Accept(v Visitor) (interface{}, error) { return v.VisitVectorSplat(n) }

// Extract reads field ("x"/"y"/"z") out of a vector-typed expression.
type Extract struct {
	Base
	Vector Node
	Field  string
}

func NewExtract(pos position.Position, vector Node, field string) *Extract {
	n := &Extract{Base: NewBase(pos), Vector: vector, Field: field}
	attach(n, vector)
	return n
}

func (n *Extract) Accept(v Visitor) (interface{}, error) { return v.VisitExtract(n) }

// FunctionCall is both a source-level call and the rewritten form of
// every operator (`method +`, `method []`, unary `method -`, ...); the
// parser is responsible for the rewrite, so by the time the resolver
// sees a FunctionCall its Id may never have appeared literally in the
// source text.
type FunctionCall struct {
	Base
	Id       string
	Args     []Node
	Resolved symbol.Callable
}

func NewFunctionCall(pos position.Position, id string, args []Node) *FunctionCall {
	n := &FunctionCall{Base: NewBase(pos), Id: id, Args: args}
	for _, a := range args {
		attach(n, a)
	}
	return n
}

func (n *FunctionCall) Accept(v Visitor) (interface{}, error) { return v.VisitFunctionCall(n) }

// Condition is `if cond then t else f`, and also the desugared form of
// `and`/`or`.
type Condition struct {
	Base
	Cond, Then, Else Node
}

func NewCondition(pos position.Position, cond, then, els Node) *Condition {
	n := &Condition{Base: NewBase(pos), Cond: cond, Then: then, Else: els}
	attach(n, cond)
	attach(n, then)
	attach(n, els)
	return n
}

func (n *Condition) Accept(v Visitor) (interface{}, error) { return v.VisitCondition(n) }

// DefineVariable is `let id[:type] = value in body`. It is a Frame
// owning a Singleton scope holding just id; value resolves against the
// *parent* frame (self-reference is impossible), body against the new
// scope.
type DefineVariable struct {
	FrameBase
	Id           string
	DeclaredType *types.Type // nil if the declaration omitted a type
	Value        Node
	Body         Node
	Sym          *symbol.Variable
}

func NewDefineVariable(pos position.Position, id string, declared *types.Type, value, body Node) *DefineVariable {
	n := &DefineVariable{FrameBase: FrameBase{Base: NewBase(pos)}, Id: id, DeclaredType: declared, Value: value, Body: body}
	attach(n, value)
	attach(n, body)
	return n
}

func (n *DefineVariable) Accept(v Visitor) (interface{}, error) { return v.VisitDefineVariable(n) }

// FunctionBody is the body of a user function (or the toplevel): it owns
// a Multiple scope seeded with the function's formal arguments.
type FunctionBody struct {
	FrameBase
	Function *symbol.Function
	Body     Node
}

func NewFunctionBody(pos position.Position, fn *symbol.Function, body Node) *FunctionBody {
	n := &FunctionBody{FrameBase: FrameBase{Base: NewBase(pos)}, Function: fn, Body: body}
	attach(n, body)
	return n
}

func (n *FunctionBody) Accept(v Visitor) (interface{}, error) { return v.VisitFunctionBody(n) }

// DefineFunction is `let id(args)[:type] = definition in body`: a Frame
// owning a Singleton scope holding the function symbol, letting the
// function's own definition reference itself (recursion).
type DefineFunction struct {
	FrameBase
	Function   *symbol.Function
	Definition Node // a *FunctionBody
	Body       Node
}

func NewDefineFunction(pos position.Position, fn *symbol.Function, definition, body Node) *DefineFunction {
	n := &DefineFunction{FrameBase: FrameBase{Base: NewBase(pos)}, Function: fn, Definition: definition, Body: body}
	attach(n, definition)
	attach(n, body)
	return n
}

func (n *DefineFunction) Accept(v Visitor) (interface{}, error) { return v.VisitDefineFunction(n) }

// Return is the `return` leaf. It carries no value, and the resolver
// rejects it wherever it appears, including at the tail of a toplevel
// body.
type Return struct {
	Base
}

func NewReturn(pos position.Position) *Return { return &Return{Base: NewBase(pos)} }

func (n *Return) Accept(v Visitor) (interface{}, error) { return v.VisitReturn(n) }

// Toplevel wraps the whole script: a FunctionBody whose scope's parent
// is the host-supplied global SymbolTable (not another AST frame), and
// whose Function is a symbol.Toplevel carrying the multi-output
// signature.
type Toplevel struct {
	FrameBase
	Function *symbol.Toplevel
	Body     Node
}

func NewToplevel(pos position.Position, fn *symbol.Toplevel, body Node, outer symbol.Table) *Toplevel {
	n := &Toplevel{FrameBase: FrameBase{Base: NewBase(pos)}, Function: fn, Body: body}
	n.SetTable(symbol.NewMultiple(outer))
	attach(n, body)
	return n
}

func (n *Toplevel) Accept(v Visitor) (interface{}, error) { return v.VisitToplevel(n) }
