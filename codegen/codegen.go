// Package codegen lowers a resolved AST into LLVM IR using
// tinygo.org/x/go-llvm. One Generator emits exactly one Toplevel's worth
// of functions: the toplevel entrypoint itself plus one real LLVM
// function per nested `let f(...) = ... in ...` it encounters along the
// way, in the order the source defines them.
package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"calculon/ast"
	"calculon/cerr"
	"calculon/position"
	"calculon/symbol"
	"calculon/types"
)

// Generator implements ast.Visitor, producing a symbol.Value from every
// node it visits, and symbol.CallContext, so that Callable.EmitCall can
// reach the backend without this package's Generator being visible to
// the symbol package.
type Generator struct {
	ctx     llvm.Context
	module  llvm.Module
	builder llvm.Builder
	types   *types.Registry

	pos   position.Position
	nextN int
}

var _ ast.Visitor = (*Generator)(nil)
var _ symbol.CallContext = (*Generator)(nil)

// New creates a Generator with a fresh LLVM context and module.
func New(reg *types.Registry, moduleName string) *Generator {
	ctx := llvm.NewContext()
	return &Generator{
		ctx:     ctx,
		module:  ctx.NewModule(moduleName),
		builder: ctx.NewBuilder(),
		types:   reg,
	}
}

func (g *Generator) Builder() llvm.Builder           { return g.builder }
func (g *Generator) Context() llvm.Context           { return g.ctx }
func (g *Generator) Module() llvm.Module             { return g.module }
func (g *Generator) Types() *types.Registry          { return g.types }
func (g *Generator) Pos() position.Position          { return g.pos }
func (g *Generator) RealLLVMType() llvm.Type         { return g.ctx.DoubleType() }
func (g *Generator) BooleanLLVMType() llvm.Type      { return g.ctx.Int1Type() }
func (g *Generator) VectorLLVMType(width int) llvm.Type {
	return llvm.VectorType(g.RealLLVMType(), width)
}

// LLVMType maps a Calculon Type to its backend representation.
func (g *Generator) LLVMType(t *types.Type) llvm.Type {
	switch t.Kind {
	case types.Boolean:
		return g.BooleanLLVMType()
	case types.Vector:
		return g.VectorLLVMType(t.Width)
	default:
		return g.RealLLVMType()
	}
}

func (g *Generator) uniqueName(base string) string {
	g.nextN++
	return fmt.Sprintf("%s$%d", base, g.nextN)
}

// Dump renders the IR module built so far as text.
func (g *Generator) Dump() string { return g.module.String() }

func asValue(v interface{}, err error) (symbol.Value, error) {
	if err != nil {
		return symbol.Value{}, err
	}
	val, ok := v.(symbol.Value)
	if !ok {
		return symbol.Value{}, fmt.Errorf("codegen: internal error: expected a value, got %T", v)
	}
	return val, nil
}

func (g *Generator) accept(n ast.Node) (symbol.Value, error) {
	g.pos = n.Pos()
	return asValue(n.Accept(g))
}

// toReal requires n to codegen to a real, matching the original
// compiler's codegen_to_real helper.
func (g *Generator) toReal(n ast.Node) (llvm.Value, error) {
	v, err := g.accept(n)
	if err != nil {
		return llvm.Value{}, err
	}
	if v.Type.Kind != types.Real {
		return llvm.Value{}, cerr.New(cerr.Type, n.Pos(), "type mismatch: expected a real, got %s", v.Type)
	}
	return v.V, nil
}

// toVector requires n to codegen to some vector*N.
func (g *Generator) toVector(n ast.Node) (symbol.Value, error) {
	v, err := g.accept(n)
	if err != nil {
		return symbol.Value{}, err
	}
	if v.Type.Kind != types.Vector {
		return symbol.Value{}, cerr.New(cerr.Type, n.Pos(), "type mismatch: expected a vector, got %s", v.Type)
	}
	return v, nil
}

func (g *Generator) VisitConstant(n *ast.Constant) (interface{}, error) {
	real := g.types.Find("real")
	return symbol.Value{V: llvm.ConstFloat(g.RealLLVMType(), n.Value), Type: real, IsConst: true, Const: n.Value}, nil
}

func (g *Generator) VisitBoolean(n *ast.Boolean) (interface{}, error) {
	boolean := g.types.Find("boolean")
	val := uint64(0)
	if n.Value {
		val = 1
	}
	return symbol.Value{V: llvm.ConstInt(g.BooleanLLVMType(), val, false), Type: boolean}, nil
}

func (g *Generator) VisitVariable(n *ast.Variable) (interface{}, error) {
	valued, ok := n.Resolved.(symbol.Valued)
	if !ok {
		return nil, cerr.New(cerr.Symbol, n.Pos(), "'%s' does not name a value", n.Id)
	}
	v, ok := valued.Value()
	if !ok {
		return nil, cerr.New(cerr.Type, n.Pos(), "internal error: '%s' used before its value was generated", n.Id)
	}
	f, isConst := valued.ConstValue()
	return symbol.Value{V: v, Type: valued.Type(), IsConst: isConst, Const: f}, nil
}

// VisitVector builds an N-wide vector by inserting each element in
// turn, generalising the original compiler's fixed x/y/z InsertElement
// chain to an arbitrary element count.
func (g *Generator) VisitVector(n *ast.Vector) (interface{}, error) {
	width := len(n.Elements)
	vecType := g.VectorLLVMType(width)
	v := llvm.Undef(vecType)

	for i, e := range n.Elements {
		elemVal, err := g.toReal(e)
		if err != nil {
			return nil, err
		}
		idx := llvm.ConstInt(g.ctx.Int32Type(), uint64(i), false)
		v = g.builder.CreateInsertElement(v, elemVal, idx, "")
	}

	return symbol.Value{V: v, Type: g.types.Vector(width)}, nil
}

func (g *Generator) VisitVectorSplat(n *ast.VectorSplat) (interface{}, error) {
	elemVal, err := g.toReal(n.Expr)
	if err != nil {
		return nil, err
	}
	vecType := g.VectorLLVMType(n.Width)
	v := llvm.Undef(vecType)
	for i := 0; i < n.Width; i++ {
		idx := llvm.ConstInt(g.ctx.Int32Type(), uint64(i), false)
		v = g.builder.CreateInsertElement(v, elemVal, idx, "")
	}
	return symbol.Value{V: v, Type: g.types.Vector(n.Width)}, nil
}

var fieldIndex = map[string]uint64{"x": 0, "y": 1, "z": 2}

func (g *Generator) VisitExtract(n *ast.Extract) (interface{}, error) {
	vec, err := g.toVector(n.Vector)
	if err != nil {
		return nil, err
	}
	idx, ok := fieldIndex[n.Field]
	if !ok || uint64(vec.Type.Width) <= idx {
		return nil, cerr.New(cerr.Type, n.Pos(), "vector of width %d has no field '%s'", vec.Type.Width, n.Field)
	}
	elem := g.builder.CreateExtractElement(vec.V, llvm.ConstInt(g.ctx.Int32Type(), idx, false), "")
	return symbol.Value{V: elem, Type: g.types.Find("real")}, nil
}

func (g *Generator) VisitFunctionCall(n *ast.FunctionCall) (interface{}, error) {
	args := make([]symbol.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := g.accept(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	g.pos = n.Pos()
	v, err := n.Resolved.EmitCall(g, args)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// VisitCondition evaluates both branches into their own basic blocks and
// merges with a phi node, the idiomatic SSA-form equivalent of the
// original's direct branch-and-fallthrough codegen.
func (g *Generator) VisitCondition(n *ast.Condition) (interface{}, error) {
	cond, err := g.accept(n.Cond)
	if err != nil {
		return nil, err
	}
	if cond.Type.Kind != types.Boolean {
		return nil, cerr.New(cerr.Type, n.Pos(), "condition must be boolean, got %s", cond.Type)
	}

	fn := g.builder.GetInsertBlock().Parent()
	thenBlock := g.ctx.AddBasicBlock(fn, "")
	elseBlock := g.ctx.AddBasicBlock(fn, "")
	mergeBlock := g.ctx.AddBasicBlock(fn, "")

	g.builder.CreateCondBr(cond.V, thenBlock, elseBlock)

	g.builder.SetInsertPointAtEnd(thenBlock)
	thenVal, err := g.accept(n.Then)
	if err != nil {
		return nil, err
	}
	thenEnd := g.builder.GetInsertBlock()
	g.builder.CreateBr(mergeBlock)

	g.builder.SetInsertPointAtEnd(elseBlock)
	elseVal, err := g.accept(n.Else)
	if err != nil {
		return nil, err
	}
	elseEnd := g.builder.GetInsertBlock()
	g.builder.CreateBr(mergeBlock)

	if thenVal.Type != elseVal.Type {
		return nil, cerr.New(cerr.Type, n.Pos(), "if-then and if-else branches have different types: %s vs %s", thenVal.Type, elseVal.Type)
	}

	g.builder.SetInsertPointAtEnd(mergeBlock)
	phi := g.builder.CreatePHI(g.LLVMType(thenVal.Type), "")
	phi.AddIncoming([]llvm.Value{thenVal.V, elseVal.V}, []llvm.BasicBlock{thenEnd, elseEnd})

	return symbol.Value{V: phi, Type: thenVal.Type}, nil
}

func (g *Generator) VisitDefineVariable(n *ast.DefineVariable) (interface{}, error) {
	v, err := g.accept(n.Value)
	if err != nil {
		return nil, err
	}
	if n.DeclaredType != nil && n.DeclaredType != v.Type {
		return nil, cerr.New(cerr.Type, n.Pos(), "'%s' declared as %s but value has type %s", n.Id, n.DeclaredType, v.Type)
	}
	n.Sym.SetType(v.Type)
	if v.IsConst {
		n.Sym.SetConstValue(v.V, v.Const)
	} else {
		n.Sym.SetValue(v.V)
	}

	return g.accept(n.Body)
}

// VisitFunctionBody only runs as part of VisitDefineFunction, which
// has already set up the function's own entry block; it just generates
// the body expression into whatever block is currently selected.
func (g *Generator) VisitFunctionBody(n *ast.FunctionBody) (interface{}, error) {
	return g.accept(n.Body)
}

// VisitDefineFunction emits a standalone LLVM function for n.Function
// (with no captured environment: see resolver.Resolver.VisitDefineFunction
// for why), then resumes generating the `in` body in the caller's block.
func (g *Generator) VisitDefineFunction(n *ast.DefineFunction) (interface{}, error) {
	savedBlock := g.builder.GetInsertBlock()

	fn := n.Function
	argTypes := make([]llvm.Type, len(fn.Args))
	for i, a := range fn.Args {
		argTypes[i] = g.LLVMType(a.Typ)
	}
	fnType := llvm.FunctionType(g.LLVMType(fn.Ret), argTypes, false)
	fnVal := llvm.AddFunction(g.module, g.uniqueName(fn.NameStr), fnType)
	fnVal.SetLinkage(llvm.InternalLinkage)
	fn.SetFn(fnVal)

	entry := g.ctx.AddBasicBlock(fnVal, "")
	g.builder.SetInsertPointAtEnd(entry)

	for i, a := range fn.Args {
		param := fnVal.Param(i)
		param.SetName(a.NameStr)
		a.SetValue(param)
	}

	result, err := g.accept(n.Definition)
	if err != nil {
		return nil, err
	}
	if result.Type != fn.Ret {
		return nil, cerr.New(cerr.Type, n.Pos(), "function '%s' declared to return %s but returns %s", fn.NameStr, fn.Ret, result.Type)
	}
	g.builder.CreateRet(result.V)

	g.builder.SetInsertPointAtEnd(savedBlock)
	return g.accept(n.Body)
}

func (g *Generator) VisitReturn(n *ast.Return) (interface{}, error) {
	return nil, cerr.New(cerr.Syntax, n.Pos(), "'return' has no value and is reserved")
}

// GenerateToplevel emits the entrypoint function for root: one LLVM
// function taking a flat array of input doubles and writing a flat
// array of output doubles, marshalling scalars and vector*N groups to
// and from those arrays per spec.md's "Entrypoint marshalling". It
// returns the emitted function together with the input/output slot
// layout a caller needs to build the flat arrays.
func (g *Generator) GenerateToplevel(root *ast.Toplevel) (llvm.Value, *Layout, error) {
	fn := root.Function
	layout := layoutFor(fn.Args, fn.Returns)

	ptrType := llvm.PointerType(g.RealLLVMType(), 0)
	fnType := llvm.FunctionType(g.ctx.VoidType(), []llvm.Type{ptrType, ptrType}, false)
	fnVal := llvm.AddFunction(g.module, "calculon_entry", fnType)
	fn.SetFn(fnVal)

	entry := g.ctx.AddBasicBlock(fnVal, "")
	g.builder.SetInsertPointAtEnd(entry)

	inputsPtr := fnVal.Param(0)
	inputsPtr.SetName("inputs")
	outputsPtr := fnVal.Param(1)
	outputsPtr.SetName("outputs")

	for i, arg := range fn.Args {
		slot := layout.Inputs[i]
		v := g.loadSlot(inputsPtr, slot)
		if arg.Typ.Kind == types.Boolean {
			zero := llvm.ConstFloat(g.RealLLVMType(), 0)
			v = g.builder.CreateFCmp(llvm.FloatONE, v, zero, "")
		}
		arg.SetValue(v)
	}

	if err := g.generateReturn(root, fn, layout, outputsPtr); err != nil {
		return llvm.Value{}, nil, err
	}

	g.builder.CreateRetVoid()
	return fnVal, layout, nil
}

// generateReturn implements the resolved multi-output convention: with
// exactly one declared output the body's value must directly match its
// type; with more than one, the body must be a literal vector/array
// expression ({e1, ..., eN}) evaluated positionally against the outputs,
// since a single SSA value cannot carry N independently-typed results.
func (g *Generator) generateReturn(root *ast.Toplevel, fn *symbol.Toplevel, layout *Layout, outputsPtr llvm.Value) error {
	if len(fn.Returns) == 1 {
		v, err := g.accept(root.Body)
		if err != nil {
			return err
		}
		if v.Type != fn.Returns[0].Typ {
			return cerr.New(cerr.Type, root.Pos(), "output '%s' declared as %s but body has type %s", fn.Returns[0].NameStr, fn.Returns[0].Typ, v.Type)
		}
		g.storeSlot(outputsPtr, layout.Outputs[0], v)
		return nil
	}

	vecLit, ok := root.Body.(*ast.Vector)
	if !ok || len(vecLit.Elements) != len(fn.Returns) {
		return cerr.New(cerr.Type, root.Pos(),
			"a toplevel with %d declared outputs must have a body of the form {e1, ..., e%d} matching them positionally",
			len(fn.Returns), len(fn.Returns))
	}
	for i, elem := range vecLit.Elements {
		out := fn.Returns[i]
		v, err := g.accept(elem)
		if err != nil {
			return err
		}
		if v.Type != out.Typ {
			return cerr.New(cerr.Type, elem.Pos(), "output '%s' declared as %s but element has type %s", out.NameStr, out.Typ, v.Type)
		}
		g.storeSlot(outputsPtr, layout.Outputs[i], v)
	}
	return nil
}

func (g *Generator) loadSlot(base llvm.Value, slot Slot) llvm.Value {
	if slot.Width == 1 {
		ptr := g.builder.CreateGEP(base, []llvm.Value{llvm.ConstInt(g.ctx.Int32Type(), uint64(slot.Offset), false)}, "")
		return g.builder.CreateLoad(ptr, "")
	}

	v := llvm.Undef(g.VectorLLVMType(slot.Width))
	for i := 0; i < slot.Width; i++ {
		ptr := g.builder.CreateGEP(base, []llvm.Value{llvm.ConstInt(g.ctx.Int32Type(), uint64(slot.Offset+i), false)}, "")
		elem := g.builder.CreateLoad(ptr, "")
		idx := llvm.ConstInt(g.ctx.Int32Type(), uint64(i), false)
		v = g.builder.CreateInsertElement(v, elem, idx, "")
	}
	return v
}

func (g *Generator) storeSlot(base llvm.Value, slot Slot, v symbol.Value) {
	if slot.Width == 1 {
		val := v.V
		if v.Type.Kind == types.Boolean {
			val = g.builder.CreateUIToFP(val, g.RealLLVMType(), "")
		}
		ptr := g.builder.CreateGEP(base, []llvm.Value{llvm.ConstInt(g.ctx.Int32Type(), uint64(slot.Offset), false)}, "")
		g.builder.CreateStore(val, ptr)
		return
	}

	for i := 0; i < slot.Width; i++ {
		idx := llvm.ConstInt(g.ctx.Int32Type(), uint64(i), false)
		elem := g.builder.CreateExtractElement(v.V, idx, "")
		ptr := g.builder.CreateGEP(base, []llvm.Value{llvm.ConstInt(g.ctx.Int32Type(), uint64(slot.Offset+i), false)}, "")
		g.builder.CreateStore(elem, ptr)
	}
}

func (g *Generator) VisitToplevel(n *ast.Toplevel) (interface{}, error) {
	_, _, err := g.GenerateToplevel(n)
	return nil, err
}
