// Package symbol defines Symbol and SymbolTable: lexical scopes binding
// names to variables, user functions, the toplevel, and builtin
// polymorphic operators. It also defines the minimal CallContext
// interface Callable.EmitCall needs from codegen, kept here (rather than
// in codegen) so that symbol never has to import codegen: codegen
// depends on symbol, not the reverse.
package symbol

import (
	"tinygo.org/x/go-llvm"

	"calculon/cerr"
	"calculon/position"
	"calculon/types"
)

// Value pairs a backend SSA value with the Calculon type it was produced
// at, since llvm.Value alone does not round-trip vector widths ("real"
// vs "vector*N" are different LLVM vector lengths of the same element
// type, but only Calculon's Type distinguishes them from user intent).
//
// IsConst/Const record the Calculon-level compile-time value when V was
// produced by a literal constant or a let-binding to one. A builtin's
// Dispatch closure only ever sees this already-lowered form, never the
// ast.Node it came from, so anything that needs to reject a non-constant
// argument (the vector subscript bound) has to check this rather than
// inspect V itself.
type Value struct {
	V       llvm.Value
	Type    *types.Type
	IsConst bool
	Const   float64
}

// CallContext is what a Callable needs from the code generator to emit
// its call: access to the backend's builder/module/context, the shared
// type registry (so a builtin can look up "vector*3" etc.), and the
// position of the call being emitted, for diagnostics.
type CallContext interface {
	Builder() llvm.Builder
	Context() llvm.Context
	Module() llvm.Module
	RealLLVMType() llvm.Type
	VectorLLVMType(width int) llvm.Type
	Types() *types.Registry
	Pos() position.Position
}

// Symbol is the common interface of every binding a SymbolTable can hold.
type Symbol interface {
	SymbolName() string
}

// Valued is implemented by symbols that carry a runtime value: only
// Variable does, in this language (no first-class functions).
type Valued interface {
	Symbol
	Value() (llvm.Value, bool)
	SetValue(llvm.Value)
	// ConstValue reports the compile-time value the binding carries, if
	// any: true for a let-binding whose right-hand side was itself a
	// compile-time constant, always false for a toplevel/function
	// parameter (those are only ever known at call time).
	ConstValue() (float64, bool)
	Type() *types.Type
}

// Callable is implemented by symbols that can be invoked: Function and
// Builtin (Toplevel has no EmitCall and is not callable from a script).
type Callable interface {
	Symbol
	EmitCall(ctx CallContext, args []Value) (Value, error)
}

// Variable is a named, typed, valued binding: a let-bound name, a
// function argument, or a toplevel input/output parameter.
type Variable struct {
	NameStr  string
	Typ      *types.Type
	val      llvm.Value
	hasVal   bool
	constVal float64
	isConst  bool
}

func NewVariable(name string, t *types.Type) *Variable {
	return &Variable{NameStr: name, Typ: t}
}

func (v *Variable) SymbolName() string { return v.NameStr }
func (v *Variable) Type() *types.Type  { return v.Typ }

// SetType fills in a variable's type once it is known. DefineVariable
// binds a name before its value's type is established when the
// declaration omits an explicit typespec; codegen calls this once the
// value expression has been generated.
func (v *Variable) SetType(t *types.Type) { v.Typ = t }
func (v *Variable) Value() (llvm.Value, bool) {
	return v.val, v.hasVal
}
func (v *Variable) SetValue(val llvm.Value) {
	v.val = val
	v.hasVal = true
	v.isConst = false
}

// SetConstValue binds a value whose right-hand side the generator already
// knows to be a compile-time constant, recording its Calculon-level float
// alongside the backend value so a later reference to this variable (a
// let-bound name used as, say, a vector subscript) is still recognisable
// as constant.
func (v *Variable) SetConstValue(val llvm.Value, f float64) {
	v.val = val
	v.hasVal = true
	v.constVal = f
	v.isConst = true
}

func (v *Variable) ConstValue() (float64, bool) { return v.constVal, v.isConst }

// Function is a user-defined callable with a single return value.
type Function struct {
	NameStr string
	Args    []*Variable
	Ret     *types.Type
	Fn      llvm.Value
	hasFn   bool
}

func NewFunction(name string, args []*Variable, ret *types.Type) *Function {
	return &Function{NameStr: name, Args: args, Ret: ret}
}

func (f *Function) SymbolName() string { return f.NameStr }
func (f *Function) SetFn(fn llvm.Value) {
	f.Fn = fn
	f.hasFn = true
}

// EmitCall checks arity/type against the declared signature, then emits
// a direct call to the already-codegen'd function value. DefineFunction
// guarantees Fn is set before any call site's codegen runs, since the
// function's own body is emitted before the `body` that may call it.
func (f *Function) EmitCall(ctx CallContext, args []Value) (Value, error) {
	if !f.hasFn {
		return Value{}, cerr.New(cerr.Type, ctx.Pos(), "internal error: function '%s' called before its definition was generated", f.NameStr)
	}
	if len(args) != len(f.Args) {
		return Value{}, cerr.New(cerr.Type, ctx.Pos(), "wrong number of arguments to '%s': expected %d, got %d", f.NameStr, len(f.Args), len(args))
	}
	for i, a := range args {
		if a.Type != f.Args[i].Typ {
			return Value{}, cerr.New(cerr.Type, ctx.Pos(), "argument '%s' to '%s' has type %s, expected %s", f.Args[i].NameStr, f.NameStr, a.Type, f.Args[i].Typ)
		}
	}
	vals := make([]llvm.Value, len(args))
	for i, a := range args {
		vals[i] = a.V
	}
	result := ctx.Builder().CreateCall(f.Fn, vals, "")
	return Value{V: result, Type: f.Ret}, nil
}

// Toplevel specialises Function with multiple named return values,
// matching the `(inputs) : (outputs)` signature form.
type Toplevel struct {
	NameStr string
	Args    []*Variable
	Returns []*Variable
	Fn      llvm.Value
	hasFn   bool
}

func NewToplevel(name string, args, returns []*Variable) *Toplevel {
	return &Toplevel{NameStr: name, Args: args, Returns: returns}
}

func (t *Toplevel) SymbolName() string { return t.NameStr }
func (t *Toplevel) SetFn(fn llvm.Value) {
	t.Fn = fn
	t.hasFn = true
}

// Builtin is a polymorphic operator (`method +`, `method []`, ...). Its
// dispatch logic lives outside this package (in stdlib, which builds
// the Dispatch closures) so that symbol stays free of codegen
// concerns beyond the CallContext abstraction above.
type Builtin struct {
	NameStr  string
	Dispatch func(ctx CallContext, args []Value) (Value, error)
}

func (b *Builtin) SymbolName() string { return b.NameStr }
func (b *Builtin) EmitCall(ctx CallContext, args []Value) (Value, error) {
	return b.Dispatch(ctx, args)
}
