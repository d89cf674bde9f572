// Package resolver implements the single pre-order name-resolution pass
// described by spec.md §4.4: it fills in ast.Variable.Resolved and
// ast.FunctionCall.Resolved, builds the Singleton/Multiple scopes each
// Frame owns, and rejects a handful of structurally illegal trees
// (a bare `return`, a call to a non-callable symbol).
package resolver

import (
	"sort"

	"github.com/xrash/smetrics"

	"calculon/ast"
	"calculon/cerr"
	"calculon/symbol"
)

// Resolver walks an AST with a single piece of mutable state: the scope
// currently in effect. Frame nodes swap it out for the duration of the
// subtree that should see the new binding and restore it afterwards.
type Resolver struct {
	table   symbol.Table
	globals symbol.Table
}

// Resolve name-resolves root, whose Table() must already be seeded with
// the host's global scope as its parent (ast.NewToplevel does this).
func Resolve(root *ast.Toplevel) error {
	r := &Resolver{table: root.Table(), globals: root.Table().Parent()}
	_, err := root.Accept(r)
	return err
}

var _ ast.Visitor = (*Resolver)(nil)

func (r *Resolver) VisitConstant(*ast.Constant) (interface{}, error) { return nil, nil }
func (r *Resolver) VisitBoolean(*ast.Boolean) (interface{}, error)   { return nil, nil }

func (r *Resolver) VisitVariable(n *ast.Variable) (interface{}, error) {
	sym := r.table.Resolve(n.Id)
	if sym == nil {
		return nil, r.undefined(n, n.Id)
	}
	n.Resolved = sym
	return nil, nil
}

func (r *Resolver) VisitVector(n *ast.Vector) (interface{}, error) {
	for _, e := range n.Elements {
		if _, err := e.Accept(r); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (r *Resolver) VisitVectorSplat(n *ast.VectorSplat) (interface{}, error) {
	return n.Expr.Accept(r)
}

func (r *Resolver) VisitExtract(n *ast.Extract) (interface{}, error) {
	return n.Vector.Accept(r)
}

func (r *Resolver) VisitFunctionCall(n *ast.FunctionCall) (interface{}, error) {
	for _, a := range n.Args {
		if _, err := a.Accept(r); err != nil {
			return nil, err
		}
	}

	sym := r.table.Resolve(n.Id)
	if sym == nil {
		return nil, r.undefined(n, n.Id)
	}
	callable, ok := sym.(symbol.Callable)
	if !ok {
		return nil, cerr.New(cerr.Symbol, n.Pos(), "'%s' is not callable", n.Id)
	}
	n.Resolved = callable
	return nil, nil
}

func (r *Resolver) VisitCondition(n *ast.Condition) (interface{}, error) {
	if _, err := n.Cond.Accept(r); err != nil {
		return nil, err
	}
	if _, err := n.Then.Accept(r); err != nil {
		return nil, err
	}
	return n.Else.Accept(r)
}

// VisitDefineVariable resolves Value against the *enclosing* scope (so
// the variable cannot refer to itself), then binds it into a fresh
// Singleton scope that Body alone sees.
func (r *Resolver) VisitDefineVariable(n *ast.DefineVariable) (interface{}, error) {
	outer := r.table
	if _, err := n.Value.Accept(r); err != nil {
		return nil, err
	}

	sym := symbol.NewVariable(n.Id, n.DeclaredType)
	n.Sym = sym
	n.SetTable(symbol.NewSingleton(outer, sym))

	r.table = n.Table()
	defer func() { r.table = outer }()
	return n.Body.Accept(r)
}

// VisitDefineFunction binds the function symbol into a Singleton scope
// before resolving either Definition or Body, so the function sees
// itself (recursion) and so does the `in` body (ordinary use).
//
// The Singleton's parent is the global scope, not whatever local scope
// is in effect at the `let` site: user functions compile to genuine,
// separately-codegen'd LLVM functions with no captured environment, so
// a function body may only reference its own parameters, itself, and
// builtins -- never an enclosing let-binding or toplevel input. Scoping
// the Singleton at r.globals makes that restriction structural (the
// enclosing locals are simply unreachable) rather than a check the
// resolver has to remember to perform.
func (r *Resolver) VisitDefineFunction(n *ast.DefineFunction) (interface{}, error) {
	outer := r.table

	// The body ("in" part) keeps full lexical visibility plus the
	// function's own name; n.Table() reflects this, the scope a
	// GetFrame caller expects this node to carry.
	bodyScope := symbol.NewSingleton(outer, n.Function)
	n.SetTable(bodyScope)

	// The function's own definition sees only itself and the globals:
	// no enclosing let-binding or toplevel input leaks in.
	definitionScope := symbol.NewSingleton(r.globals, n.Function)
	r.table = definitionScope
	if _, err := n.Definition.Accept(r); err != nil {
		return nil, err
	}

	r.table = bodyScope
	defer func() { r.table = outer }()
	return n.Body.Accept(r)
}

// VisitFunctionBody seeds a Multiple scope with the function's formal
// arguments, parented at whatever scope is in effect (the DefineFunction
// Singleton holding the function itself, for a user function; the
// Toplevel's own scope is handled separately by VisitToplevel instead).
func (r *Resolver) VisitFunctionBody(n *ast.FunctionBody) (interface{}, error) {
	outer := r.table
	scope := symbol.NewMultiple(outer)
	for _, arg := range n.Function.Args {
		scope.Add(arg)
	}
	n.SetTable(scope)

	r.table = scope
	defer func() { r.table = outer }()
	return n.Body.Accept(r)
}

// VisitReturn always fails: spec.md introduces `return` as a leaf "legal
// only at the tail of the toplevel body" without ever defining what
// value such a argument-less leaf would carry in a statement-free
// expression language, and every other special-identifier leaf (true,
// false, pi, Inf, NaN) is a genuine zero-arity value. We read `return`
// as a reserved keyword with no defined semantics in this version: a
// script's result is always the value of its body expression, with no
// explicit return needed or accepted.
func (r *Resolver) VisitReturn(n *ast.Return) (interface{}, error) {
	return nil, cerr.New(cerr.Syntax, n.Pos(), "'return' has no value and is reserved; the toplevel body's value is always the result")
}

// VisitToplevel seeds the scope ast.NewToplevel already created with the
// signature's input variables, then resolves the body against it.
func (r *Resolver) VisitToplevel(n *ast.Toplevel) (interface{}, error) {
	scope, ok := n.Table().(*symbol.Multiple)
	if !ok {
		return nil, cerr.New(cerr.Symbol, n.Pos(), "internal error: toplevel scope is not a Multiple table")
	}
	for _, arg := range n.Function.Args {
		scope.Add(arg)
	}

	outer := r.table
	r.table = scope
	defer func() { r.table = outer }()
	return n.Body.Accept(r)
}

// undefined builds a SymbolException enriched with a "did you mean"
// suggestion picked by Jaro-Winkler similarity against every name
// visible from the current scope.
func (r *Resolver) undefined(n ast.Node, name string) error {
	suggestion := r.suggest(name)
	if suggestion == "" {
		return cerr.New(cerr.Symbol, n.Pos(), "undefined symbol '%s'", name)
	}
	return cerr.New(cerr.Symbol, n.Pos(), "undefined symbol '%s' (did you mean '%s'?)", name, suggestion)
}

const suggestionThreshold = 0.77

func (r *Resolver) suggest(name string) string {
	seen := make(map[string]bool)
	var candidates []string
	for t := r.table; t != nil; t = t.Parent() {
		for _, n := range t.Names() {
			if !seen[n] {
				seen[n] = true
				candidates = append(candidates, n)
			}
		}
	}
	sort.Strings(candidates)

	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := smetrics.JaroWinkler(name, c, 0.7, 4)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
