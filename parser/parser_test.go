package parser

import (
	"strings"
	"testing"

	"calculon/arena"
	"calculon/ast"
	"calculon/lexer"
	"calculon/types"
)

func newParser(t *testing.T, src string) *Parser {
	t.Helper()
	lx, err := lexer.New(strings.NewReader(src), "<test>")
	if err != nil {
		t.Fatalf("lexer.New: %v", err)
	}
	return New(lx, arena.New(), types.NewRegistry())
}

func parseExpr(t *testing.T, src string) ast.Node {
	t.Helper()
	p := newParser(t, src)
	n, err := p.parseExpression()
	if err != nil {
		t.Fatalf("parseExpression(%q): %v", src, err)
	}
	if err := p.ExpectEOF(); err != nil {
		t.Fatalf("trailing input after %q: %v", src, err)
	}
	return n
}

func TestOperatorsRewriteToMethodCalls(t *testing.T) {
	cases := map[string]string{
		"1 + 2":  "method +",
		"1 - 2":  "method -",
		"1 * 2":  "method *",
		"1 / 2":  "method /",
		"1 < 2":  "method <",
		"1 == 2": "method ==",
	}
	for src, wantID := range cases {
		n := parseExpr(t, src)
		call, ok := n.(*ast.FunctionCall)
		if !ok {
			t.Fatalf("%q: expected a FunctionCall, got %T", src, n)
		}
		if call.Id != wantID {
			t.Fatalf("%q: got call id %q, want %q", src, call.Id, wantID)
		}
		if len(call.Args) != 2 {
			t.Fatalf("%q: expected 2 args, got %d", src, len(call.Args))
		}
	}
}

func TestUnaryMinusAndNotDoNotCollideWithBinaryMinus(t *testing.T) {
	neg, ok := parseExpr(t, "-1").(*ast.FunctionCall)
	if !ok || neg.Id != "method neg" || len(neg.Args) != 1 {
		t.Fatalf("expected unary minus to rewrite to 1-arg 'method neg', got %#v", neg)
	}

	not, ok := parseExpr(t, "not true").(*ast.FunctionCall)
	if !ok || not.Id != "method not" || len(not.Args) != 1 {
		t.Fatalf("expected 'not' to rewrite to 1-arg 'method not', got %#v", not)
	}

	sub, ok := parseExpr(t, "1 - 2").(*ast.FunctionCall)
	if !ok || sub.Id != "method -" || len(sub.Args) != 2 {
		t.Fatalf("expected binary minus to stay 'method -' with 2 args, got %#v", sub)
	}
}

func TestPrecedenceClimbsMultiplicationOverAddition(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3): the outer call is '+'.
	call, ok := parseExpr(t, "1 + 2 * 3").(*ast.FunctionCall)
	if !ok || call.Id != "method +" {
		t.Fatalf("expected outer call to be 'method +', got %#v", call)
	}
	rhs, ok := call.Args[1].(*ast.FunctionCall)
	if !ok || rhs.Id != "method *" {
		t.Fatalf("expected right operand to be 'method *', got %#v", rhs)
	}
}

func TestAndOrDesugarToCondition(t *testing.T) {
	andNode := parseExpr(t, "true and false")
	and, ok := andNode.(*ast.Condition)
	if !ok {
		t.Fatalf("expected 'and' to desugar to a Condition, got %T", andNode)
	}
	elseVal, ok := and.Else.(*ast.Boolean)
	if !ok || elseVal.Value != false {
		t.Fatalf("expected 'and's desugared else branch to be literal false, got %#v", and.Else)
	}

	orNode := parseExpr(t, "true or false")
	or, ok := orNode.(*ast.Condition)
	if !ok {
		t.Fatalf("expected 'or' to desugar to a Condition, got %T", orNode)
	}
	thenVal, ok := or.Then.(*ast.Boolean)
	if !ok || thenVal.Value != true {
		t.Fatalf("expected 'or's desugared then branch to be literal true, got %#v", or.Then)
	}
}

func TestDotAccessAndSubscriptRewriteToMethodCalls(t *testing.T) {
	dot, ok := parseExpr(t, "v.x").(*ast.FunctionCall)
	if !ok || dot.Id != "method x" || len(dot.Args) != 1 {
		t.Fatalf("expected '.x' to rewrite to 1-arg 'method x', got %#v", dot)
	}

	sub, ok := parseExpr(t, "v{0}").(*ast.FunctionCall)
	if !ok || sub.Id != "method []" || len(sub.Args) != 2 {
		t.Fatalf("expected '{0}' subscript to rewrite to 2-arg 'method []', got %#v", sub)
	}

	method, ok := parseExpr(t, "v.dot(w)").(*ast.FunctionCall)
	if !ok || method.Id != "method dot" || len(method.Args) != 2 {
		t.Fatalf("expected 'v.dot(w)' to rewrite to 2-arg 'method dot', got %#v", method)
	}
}

func TestLetVariableAndFunctionForms(t *testing.T) {
	defNode := parseExpr(t, "let x = 1 in x")
	def, ok := defNode.(*ast.DefineVariable)
	if !ok || def.Id != "x" {
		t.Fatalf("expected a DefineVariable named x, got %#v", defNode)
	}

	fnNode := parseExpr(t, "let f(a, b) = a + b in f(1, 2)")
	fn, ok := fnNode.(*ast.DefineFunction)
	if !ok {
		t.Fatalf("expected a DefineFunction, got %T", fnNode)
	}
	if fn.Function.SymbolName() != "f" || len(fn.Function.Args) != 2 {
		t.Fatalf("unexpected function symbol: %#v", fn.Function)
	}
}

func TestIfThenElse(t *testing.T) {
	node := parseExpr(t, "if 1 < 2 then 3 else 4")
	cond, ok := node.(*ast.Condition)
	if !ok {
		t.Fatalf("expected a Condition, got %T", node)
	}
	if _, ok := cond.Cond.(*ast.FunctionCall); !ok {
		t.Fatalf("expected the if-condition to be the rewritten '<' call, got %#v", cond.Cond)
	}
}

func TestVectorLiteral(t *testing.T) {
	vec, ok := parseExpr(t, "{1, 2, 3}").(*ast.Vector)
	if !ok || len(vec.Elements) != 3 {
		t.Fatalf("expected a 3-element Vector, got %#v", vec)
	}
}

func TestSpecialIdentifierLeaves(t *testing.T) {
	if c, ok := parseExpr(t, "pi").(*ast.Constant); !ok || c.Value == 0 {
		t.Fatalf("expected 'pi' to desugar to a nonzero Constant, got %#v", c)
	}
	if _, ok := parseExpr(t, "Inf").(*ast.Constant); !ok {
		t.Fatal("expected 'Inf' to desugar to a Constant")
	}
	if _, ok := parseExpr(t, "return").(*ast.Return); !ok {
		t.Fatal("expected 'return' to parse as a Return leaf")
	}
}

func TestParseToplevelSignature(t *testing.T) {
	p := newParser(t, "(x, y: boolean) : (z)")
	inputs, outputs, err := p.ParseToplevelSignature()
	if err != nil {
		t.Fatalf("ParseToplevelSignature: %v", err)
	}
	if len(inputs) != 2 || len(outputs) != 1 {
		t.Fatalf("got %d inputs, %d outputs", len(inputs), len(outputs))
	}
	if inputs[0].Typ.Name != "real" {
		t.Fatalf("expected x to default to real, got %s", inputs[0].Typ)
	}
	if inputs[1].Typ.Name != "boolean" {
		t.Fatalf("expected y to be boolean, got %s", inputs[1].Typ)
	}
}

func TestParseTypespecVectorWidth(t *testing.T) {
	p := newParser(t, ": vector*3")
	typ, err := p.ParseTypespec(p.types.Find("real"))
	if err != nil {
		t.Fatalf("ParseTypespec: %v", err)
	}
	if typ.Kind != types.Vector || typ.Width != 3 {
		t.Fatalf("expected vector*3, got %#v", typ)
	}
}

func TestParseTypespecRejectsNonPositiveWidth(t *testing.T) {
	p := newParser(t, ": vector*0")
	if _, err := p.ParseTypespec(nil); err == nil {
		t.Fatal("expected an error for vector*0")
	}
}

func TestSymbolArityMismatchIsACallerConcernNotParser(t *testing.T) {
	// The parser never checks arity against a declared function signature;
	// that is resolver/codegen's job. Sanity check the parser still
	// builds the call node it is asked to.
	call, ok := parseExpr(t, "f(1, 2, 3)").(*ast.FunctionCall)
	if !ok || call.Id != "f" || len(call.Args) != 3 {
		t.Fatalf("unexpected call parse: %#v", call)
	}
}
