package ast

// Visitor is implemented once per compiler pass (resolver, codegen) and
// once for utility walks (CountNodes, below, and DebugPrinter). Every
// method can fail, since both real passes can.
type Visitor interface {
	VisitConstant(*Constant) (interface{}, error)
	VisitBoolean(*Boolean) (interface{}, error)
	VisitVariable(*Variable) (interface{}, error)
	VisitVector(*Vector) (interface{}, error)
	VisitVectorSplat(*VectorSplat) (interface{}, error)
	VisitExtract(*Extract) (interface{}, error)
	VisitFunctionCall(*FunctionCall) (interface{}, error)
	VisitCondition(*Condition) (interface{}, error)
	VisitDefineVariable(*DefineVariable) (interface{}, error)
	VisitDefineFunction(*DefineFunction) (interface{}, error)
	VisitFunctionBody(*FunctionBody) (interface{}, error)
	VisitReturn(*Return) (interface{}, error)
	VisitToplevel(*Toplevel) (interface{}, error)
}

// BaseVisitor implements Visitor by recursing into every child and
// discarding results. Its recursion always passes the BaseVisitor value
// itself as the Visitor, so a type that embeds it reaches its own
// overrides below the root only if it also overrides every method that
// recurses (as counter, below, does).
type BaseVisitor struct{}

var _ Visitor = (*BaseVisitor)(nil)

func (BaseVisitor) VisitConstant(*Constant) (interface{}, error) { return nil, nil }
func (BaseVisitor) VisitBoolean(*Boolean) (interface{}, error)   { return nil, nil }
func (BaseVisitor) VisitVariable(*Variable) (interface{}, error) { return nil, nil }

func (b BaseVisitor) VisitVector(n *Vector) (interface{}, error) {
	for _, e := range n.Elements {
		if _, err := e.Accept(b); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (b BaseVisitor) VisitVectorSplat(n *VectorSplat) (interface{}, error) {
	return n.Expr.Accept(b)
}

func (b BaseVisitor) VisitExtract(n *Extract) (interface{}, error) {
	return n.Vector.Accept(b)
}

func (b BaseVisitor) VisitFunctionCall(n *FunctionCall) (interface{}, error) {
	for _, a := range n.Args {
		if _, err := a.Accept(b); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (b BaseVisitor) VisitCondition(n *Condition) (interface{}, error) {
	if _, err := n.Cond.Accept(b); err != nil {
		return nil, err
	}
	if _, err := n.Then.Accept(b); err != nil {
		return nil, err
	}
	return n.Else.Accept(b)
}

func (b BaseVisitor) VisitDefineVariable(n *DefineVariable) (interface{}, error) {
	if _, err := n.Value.Accept(b); err != nil {
		return nil, err
	}
	return n.Body.Accept(b)
}

func (b BaseVisitor) VisitDefineFunction(n *DefineFunction) (interface{}, error) {
	if _, err := n.Definition.Accept(b); err != nil {
		return nil, err
	}
	return n.Body.Accept(b)
}

func (b BaseVisitor) VisitFunctionBody(n *FunctionBody) (interface{}, error) {
	return n.Body.Accept(b)
}

func (BaseVisitor) VisitReturn(*Return) (interface{}, error) { return nil, nil }

func (b BaseVisitor) VisitToplevel(n *Toplevel) (interface{}, error) {
	return n.Body.Accept(b)
}

// CountNodes walks the whole tree and counts its nodes.
func CountNodes(root Node) int {
	c := &counter{}
	_, _ = root.Accept(c)
	return c.n
}

// counter recurses through itself rather than its embedded BaseVisitor:
// plain struct embedding gives no virtual dispatch in Go, so a BaseVisitor
// method called on the embedded field would recurse with the embedded
// field as the Visitor, not with c, and every override below it would be
// skipped on the way back down.
type counter struct {
	BaseVisitor
	n int
}

func (c *counter) VisitConstant(n *Constant) (interface{}, error) {
	c.n++
	return nil, nil
}
func (c *counter) VisitBoolean(n *Boolean) (interface{}, error) {
	c.n++
	return nil, nil
}
func (c *counter) VisitVariable(n *Variable) (interface{}, error) {
	c.n++
	return nil, nil
}
func (c *counter) VisitVector(n *Vector) (interface{}, error) {
	c.n++
	for _, e := range n.Elements {
		if _, err := e.Accept(c); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
func (c *counter) VisitVectorSplat(n *VectorSplat) (interface{}, error) {
	c.n++
	return n.Expr.Accept(c)
}
func (c *counter) VisitExtract(n *Extract) (interface{}, error) {
	c.n++
	return n.Vector.Accept(c)
}
func (c *counter) VisitFunctionCall(n *FunctionCall) (interface{}, error) {
	c.n++
	for _, a := range n.Args {
		if _, err := a.Accept(c); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
func (c *counter) VisitCondition(n *Condition) (interface{}, error) {
	c.n++
	if _, err := n.Cond.Accept(c); err != nil {
		return nil, err
	}
	if _, err := n.Then.Accept(c); err != nil {
		return nil, err
	}
	return n.Else.Accept(c)
}
func (c *counter) VisitDefineVariable(n *DefineVariable) (interface{}, error) {
	c.n++
	if _, err := n.Value.Accept(c); err != nil {
		return nil, err
	}
	return n.Body.Accept(c)
}
func (c *counter) VisitDefineFunction(n *DefineFunction) (interface{}, error) {
	c.n++
	if _, err := n.Definition.Accept(c); err != nil {
		return nil, err
	}
	return n.Body.Accept(c)
}
func (c *counter) VisitFunctionBody(n *FunctionBody) (interface{}, error) {
	c.n++
	return n.Body.Accept(c)
}
func (c *counter) VisitReturn(n *Return) (interface{}, error) {
	c.n++
	return nil, nil
}
func (c *counter) VisitToplevel(n *Toplevel) (interface{}, error) {
	c.n++
	return n.Body.Accept(c)
}
