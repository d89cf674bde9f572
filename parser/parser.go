// Package parser implements Calculon's recursive-descent, precedence-
// climbing expression parser and its two signature grammars. The parser
// embeds no semantics beyond the method-dispatch rewrite described by
// spec.md §4.3: every operator, unary minus, member access and subscript
// becomes a FunctionCall to a "method <op>" builtin, resolved later by
// the resolver/codegen passes.
package parser

import (
	"math"

	"calculon/arena"
	"calculon/ast"
	"calculon/cerr"
	"calculon/lexer"
	"calculon/position"
	"calculon/symbol"
	"calculon/token"
	"calculon/types"
)

// precedence is the binary-operator precedence table; and/or are
// handled specially (desugared to Condition) but still consult this
// table so that `unrecognised operator` is caught in one place.
var precedence = map[string]int{
	"and": 5, "or": 5,
	"<": 10, "<=": 10, ">": 10, ">=": 10, "==": 10, "!=": 10,
	"+": 20, "-": 20,
	"*": 30, "/": 30,
}

// Parser turns a Lexer's token stream into an AST rooted at a single
// expression. One Parser is used per stream (signature or code); both
// share the same arena and type registry as the rest of the compilation.
type Parser struct {
	lex   *lexer.Lexer
	arena *arena.Arena
	types *types.Registry
}

// New creates a Parser reading from lex, retaining every AST node it
// builds into a.
func New(lex *lexer.Lexer, a *arena.Arena, reg *types.Registry) *Parser {
	return &Parser{lex: lex, arena: a, types: reg}
}

func retain[T any](p *Parser, v T) T { return arena.Retain(p.arena, v) }

func (p *Parser) errorf(format string, args ...interface{}) error {
	return cerr.New(cerr.Syntax, p.lex.Position(), format, args...)
}

func (p *Parser) expect(kind token.Kind) error {
	if p.lex.Token() != kind {
		return p.errorf("expected %s, found %s", kind, p.lex.Token())
	}
	return p.lex.Next()
}

func (p *Parser) expectOperator(op string) error {
	if p.lex.Token() != token.OPERATOR || p.lex.Id() != op {
		return p.errorf("expected operator %q", op)
	}
	return p.lex.Next()
}

func (p *Parser) expectKeyword(kw string) error {
	if p.lex.Token() != token.IDENTIFIER || p.lex.Id() != kw {
		return p.errorf("expected %q", kw)
	}
	return p.lex.Next()
}

func (p *Parser) expectIdentifier() (string, error) {
	if p.lex.Token() != token.IDENTIFIER {
		return "", p.errorf("expected an identifier, found %s", p.lex.Token())
	}
	id := p.lex.Id()
	if err := p.lex.Next(); err != nil {
		return "", err
	}
	return id, nil
}

// ExpectEOF requires the stream to be exhausted, used after parsing a
// signature so that trailing garbage is rejected.
func (p *Parser) ExpectEOF() error {
	if p.lex.Token() != token.ENDOFFILE {
		return p.errorf("expected end of input, found %s", p.lex.Token())
	}
	return nil
}

// ParseTypespec parses an optional `: ident ('*' integer)?`, returning
// def when the colon is absent.
func (p *Parser) ParseTypespec(def *types.Type) (*types.Type, error) {
	if p.lex.Token() != token.COLON {
		return def, nil
	}
	if err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.lex.Token() == token.OPERATOR && p.lex.Id() == "*" {
		if err := p.expectOperator("*"); err != nil {
			return nil, err
		}
		if p.lex.Token() != token.NUMBER {
			return nil, p.errorf("expected an integer vector width after '*'")
		}
		widthReal := p.lex.Real()
		width := int(widthReal)
		if float64(width) != widthReal {
			return nil, p.errorf("vector width must be an integer")
		}
		if width <= 0 {
			return nil, p.errorf("vector width must be greater than 0")
		}
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
		return p.types.Vector(width), nil
	}

	t := p.types.Find(name)
	if t == nil {
		return nil, p.errorf("unknown type %q", name)
	}
	return t, nil
}

// parseParamList parses `'(' (ident typespec? (',' ident typespec?)*)? ')'`.
func (p *Parser) parseParamList() ([]*symbol.Variable, error) {
	if err := p.expect(token.OPENPAREN); err != nil {
		return nil, err
	}

	var vars []*symbol.Variable
	for p.lex.Token() != token.CLOSEPAREN {
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		typ, err := p.ParseTypespec(p.types.Find("real"))
		if err != nil {
			return nil, err
		}
		vars = append(vars, symbol.NewVariable(name, typ))

		if p.lex.Token() == token.COMMA {
			if err := p.expect(token.COMMA); err != nil {
				return nil, err
			}
		} else if p.lex.Token() != token.CLOSEPAREN {
			return nil, p.errorf("expected ',' or ')'")
		}
	}
	return vars, p.expect(token.CLOSEPAREN)
}

// ParseToplevelSignature parses `(inputs) : (outputs)`.
func (p *Parser) ParseToplevelSignature() (inputs, outputs []*symbol.Variable, err error) {
	inputs, err = p.parseParamList()
	if err != nil {
		return nil, nil, err
	}
	if err := p.expect(token.COLON); err != nil {
		return nil, nil, err
	}
	outputs, err = p.parseParamList()
	if err != nil {
		return nil, nil, err
	}
	return inputs, outputs, nil
}

// ParseFunctionSignature parses `(args) typespec?`, used by `let`
// function definitions; a missing return type defaults to real.
func (p *Parser) ParseFunctionSignature() (args []*symbol.Variable, ret *types.Type, err error) {
	args, err = p.parseParamList()
	if err != nil {
		return nil, nil, err
	}
	ret, err = p.ParseTypespec(p.types.Find("real"))
	return args, ret, err
}

// ParseToplevelBody parses the single expression that is the whole
// script and wraps it in an ast.Toplevel.
func (p *Parser) ParseToplevelBody(fn *symbol.Toplevel, globals symbol.Table) (*ast.Toplevel, error) {
	pos := p.lex.Position()
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.ExpectEOF(); err != nil {
		return nil, err
	}
	return retain(p, ast.NewToplevel(pos, fn, body, globals)), nil
}

func (p *Parser) parseExpression() (ast.Node, error) {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrecedence int) (ast.Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.lex.Token() == token.OPERATOR ||
		(p.lex.Token() == token.IDENTIFIER && (p.lex.Id() == "and" || p.lex.Id() == "or")) {
		pos := p.lex.Position()
		id := p.lex.Id()
		prec, ok := precedence[id]
		if !ok {
			return nil, cerr.New(cerr.Syntax, pos, "unrecognised operator %q", id)
		}
		if prec < minPrecedence {
			break
		}
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}

		switch id {
		case "and":
			lhs = retain(p, ast.NewCondition(pos, lhs, rhs, retain(p, ast.NewBoolean(pos, false))))
		case "or":
			lhs = retain(p, ast.NewCondition(pos, lhs, retain(p, ast.NewBoolean(pos, true)), rhs))
		default:
			lhs = retain(p, ast.NewFunctionCall(pos, "method "+id, []ast.Node{lhs, rhs}))
		}
	}

	return lhs, nil
}

func (p *Parser) parseUnary() (ast.Node, error) {
	if p.lex.Token() == token.OPERATOR && p.lex.Id() == "-" {
		pos := p.lex.Position()
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
		value, err := p.parseTight()
		if err != nil {
			return nil, err
		}
		return retain(p, ast.NewFunctionCall(pos, "method neg", []ast.Node{value})), nil
	}
	if p.lex.Token() == token.IDENTIFIER && p.lex.Id() == "not" {
		pos := p.lex.Position()
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
		value, err := p.parseTight()
		if err != nil {
			return nil, err
		}
		return retain(p, ast.NewFunctionCall(pos, "method not", []ast.Node{value})), nil
	}
	return p.parseTight()
}

// parseTight handles the postfix chain: member access / method calls and
// subscripting, which bind tighter than any unary or binary operator.
func (p *Parser) parseTight() (ast.Node, error) {
	value, err := p.parseLeaf()
	if err != nil {
		return nil, err
	}

	for {
		switch p.lex.Token() {
		case token.DOT:
			pos := p.lex.Position()
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			id, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			args := []ast.Node{value}
			if p.lex.Token() == token.OPENPAREN {
				callArgs, err := p.parseCallArgs()
				if err != nil {
					return nil, err
				}
				args = append(args, callArgs...)
			}
			value = retain(p, ast.NewFunctionCall(pos, "method "+id, args))

		case token.OPENBLOCK:
			pos := p.lex.Position()
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			args := []ast.Node{value}
			for {
				e, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, e)
				if p.lex.Token() != token.COMMA {
					break
				}
				if err := p.lex.Next(); err != nil {
					return nil, err
				}
			}
			if err := p.expect(token.CLOSEBLOCK); err != nil {
				return nil, err
			}
			value = retain(p, ast.NewFunctionCall(pos, "method []", args))

		default:
			return value, nil
		}
	}
}

func (p *Parser) parseCallArgs() ([]ast.Node, error) {
	if err := p.expect(token.OPENPAREN); err != nil {
		return nil, err
	}
	var args []ast.Node
	for p.lex.Token() != token.CLOSEPAREN {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.lex.Token() == token.COMMA {
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
		} else if p.lex.Token() != token.CLOSEPAREN {
			return nil, p.errorf("expected ',' or ')'")
		}
	}
	return args, p.expect(token.CLOSEPAREN)
}

func (p *Parser) parseLeaf() (ast.Node, error) {
	switch p.lex.Token() {
	case token.NUMBER:
		pos := p.lex.Position()
		value := p.lex.Real()
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
		return retain(p, ast.NewConstant(pos, value)), nil

	case token.OPENPAREN:
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return v, p.expect(token.CLOSEPAREN)

	case token.OPENBLOCK:
		return p.parseVector()

	case token.IDENTIFIER:
		switch p.lex.Id() {
		case "let":
			return p.parseLet()
		case "if":
			return p.parseIf()
		case "true", "false":
			pos := p.lex.Position()
			val := p.lex.Id() == "true"
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			return retain(p, ast.NewBoolean(pos, val)), nil
		case "pi":
			pos := p.lex.Position()
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			return retain(p, ast.NewConstant(pos, math.Pi)), nil
		case "Inf":
			pos := p.lex.Position()
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			return retain(p, ast.NewConstant(pos, math.Inf(1))), nil
		case "NaN":
			pos := p.lex.Position()
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			return retain(p, ast.NewConstant(pos, math.NaN())), nil
		case "return":
			pos := p.lex.Position()
			if err := p.lex.Next(); err != nil {
				return nil, err
			}
			return retain(p, ast.NewReturn(pos)), nil
		default:
			return p.parseVariableOrCall()
		}
	}

	return nil, p.errorf("expected an expression, found %s", p.lex.Token())
}

func (p *Parser) parseVariableOrCall() (ast.Node, error) {
	pos := p.lex.Position()
	id, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.lex.Token() == token.OPENPAREN {
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return retain(p, ast.NewFunctionCall(pos, id, args)), nil
	}
	return retain(p, ast.NewVariable(pos, id)), nil
}

// parseVector handles `'{' ( '*' integer expr | expr (',' expr)* ) '}'`:
// either a splat (one expression replicated to a declared width) or an
// ordinary element list.
func (p *Parser) parseVector() (ast.Node, error) {
	pos := p.lex.Position()
	if err := p.expect(token.OPENBLOCK); err != nil {
		return nil, err
	}

	if p.lex.Token() == token.OPERATOR && p.lex.Id() == "*" {
		return p.parseVectorSplat(pos)
	}

	var elements []ast.Node
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
		if p.lex.Token() != token.COMMA {
			break
		}
		if err := p.lex.Next(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(token.CLOSEBLOCK); err != nil {
		return nil, err
	}
	return retain(p, ast.NewVector(pos, elements)), nil
}

// parseVectorSplat handles the `'*' integer expr` production once the
// leading '*' has been seen; pos is the position of the opening '{'.
func (p *Parser) parseVectorSplat(pos position.Position) (ast.Node, error) {
	if err := p.expectOperator("*"); err != nil {
		return nil, err
	}
	if p.lex.Token() != token.NUMBER {
		return nil, p.errorf("expected an integer vector width after '*'")
	}
	widthReal := p.lex.Real()
	width := int(widthReal)
	if float64(width) != widthReal {
		return nil, p.errorf("vector width must be an integer")
	}
	if width <= 0 {
		return nil, p.errorf("vector width must be greater than 0")
	}
	if err := p.lex.Next(); err != nil {
		return nil, err
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.CLOSEBLOCK); err != nil {
		return nil, err
	}
	return retain(p, ast.NewVectorSplat(pos, expr, width)), nil
}

// parseLet handles both `let id[:type] = value in body` (variable) and
// `let id(args)[:type] = value in body` (function, enabling recursion
// through the name bound in the DefineFunction scope).
func (p *Parser) parseLet() (ast.Node, error) {
	pos := p.lex.Position()
	if err := p.expectKeyword("let"); err != nil {
		return nil, err
	}

	id, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.lex.Token() == token.OPENPAREN {
		args, ret, err := p.ParseFunctionSignature()
		if err != nil {
			return nil, err
		}
		fn := symbol.NewFunction(id, args, ret)

		if err := p.expectOperator("="); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		definition := retain(p, ast.NewFunctionBody(pos, fn, value))

		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		body, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return retain(p, ast.NewDefineFunction(pos, fn, definition, body)), nil
	}

	declaredType, err := p.parseOptionalTypespec()
	if err != nil {
		return nil, err
	}
	if err := p.expectOperator("="); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return retain(p, ast.NewDefineVariable(pos, id, declaredType, value, body)), nil
}

// parseOptionalTypespec is ParseTypespec with no default: a `let`
// variable binding with no `:type` infers its type from value at
// codegen time instead of defaulting to real, unlike a parameter list.
func (p *Parser) parseOptionalTypespec() (*types.Type, error) {
	if p.lex.Token() != token.COLON {
		return nil, nil
	}
	return p.ParseTypespec(nil)
}

func (p *Parser) parseIf() (ast.Node, error) {
	pos := p.lex.Position()
	if err := p.expectKeyword("if"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return retain(p, ast.NewCondition(pos, cond, then, els)), nil
}
