package ast

import (
	"fmt"
	"strings"
)

// DebugPrinter renders an expression tree as indented text, for
// `calculon dump --ast`. Each Visit method prints its own node then
// recurses into children one indent level deeper.
type DebugPrinter struct {
	BaseVisitor
	output strings.Builder
	indent int
}

// NewDebugPrinter creates a ready-to-use printer.
func NewDebugPrinter() *DebugPrinter { return &DebugPrinter{} }

// String returns everything printed so far.
func (d *DebugPrinter) String() string { return d.output.String() }

func (d *DebugPrinter) line(format string, args ...interface{}) {
	d.output.WriteString(strings.Repeat("  ", d.indent))
	fmt.Fprintf(&d.output, format, args...)
	d.output.WriteString("\n")
}

func (d *DebugPrinter) child(n Node) error {
	d.indent++
	_, err := n.Accept(d)
	d.indent--
	return err
}

func (d *DebugPrinter) VisitConstant(n *Constant) (interface{}, error) {
	d.line("constant %g", n.Value)
	return nil, nil
}

func (d *DebugPrinter) VisitBoolean(n *Boolean) (interface{}, error) {
	d.line("boolean %v", n.Value)
	return nil, nil
}

func (d *DebugPrinter) VisitVariable(n *Variable) (interface{}, error) {
	d.line("variable %s", n.Id)
	return nil, nil
}

func (d *DebugPrinter) VisitVector(n *Vector) (interface{}, error) {
	d.line("vector*%d", len(n.Elements))
	for _, e := range n.Elements {
		if err := d.child(e); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (d *DebugPrinter) VisitVectorSplat(n *VectorSplat) (interface{}, error) {
	d.line("splat*%d", n.Width)
	return nil, d.child(n.Expr)
}

func (d *DebugPrinter) VisitExtract(n *Extract) (interface{}, error) {
	d.line("extract .%s", n.Field)
	return nil, d.child(n.Vector)
}

func (d *DebugPrinter) VisitFunctionCall(n *FunctionCall) (interface{}, error) {
	d.line("call %s", n.Id)
	for _, a := range n.Args {
		if err := d.child(a); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (d *DebugPrinter) VisitCondition(n *Condition) (interface{}, error) {
	d.line("if")
	for _, part := range []Node{n.Cond, n.Then, n.Else} {
		if err := d.child(part); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (d *DebugPrinter) VisitDefineVariable(n *DefineVariable) (interface{}, error) {
	d.line("let %s", n.Id)
	if err := d.child(n.Value); err != nil {
		return nil, err
	}
	return nil, d.child(n.Body)
}

func (d *DebugPrinter) VisitDefineFunction(n *DefineFunction) (interface{}, error) {
	d.line("let %s(...)", n.Function.NameStr)
	if err := d.child(n.Definition); err != nil {
		return nil, err
	}
	return nil, d.child(n.Body)
}

func (d *DebugPrinter) VisitFunctionBody(n *FunctionBody) (interface{}, error) {
	d.line("body")
	return nil, d.child(n.Body)
}

func (d *DebugPrinter) VisitReturn(n *Return) (interface{}, error) {
	d.line("return")
	return nil, nil
}

func (d *DebugPrinter) VisitToplevel(n *Toplevel) (interface{}, error) {
	d.line("toplevel")
	return nil, d.child(n.Body)
}
