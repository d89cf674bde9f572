// Package stdlib builds the global SymbolTable every compilation starts
// from: the polymorphic "method <op>" builtins the parser's rewrite
// produces calls to, the handful of math intrinsics bound to libm, and
// the host constant-registration API (`Add`/`AddVector`) spec.md
// describes for injecting named values into a script's scope.
package stdlib

import (
	"tinygo.org/x/go-llvm"

	"calculon/cerr"
	"calculon/codegen"
	"calculon/symbol"
	"calculon/types"
)

// Globals is a host-populated extension of the builtin global scope: it
// exists separately from the symbol.Multiple it ultimately feeds into
// because host constants need a concrete LLVM value materialised once a
// Generator exists, which is after the SymbolTable has already been
// built and handed to the parser.
type Globals struct {
	types   *types.Registry
	table   *symbol.Multiple
	numeric []*numericConstant
}

type numericConstant struct {
	sym    *symbol.Variable
	values []float64 // len 1 for a real, len N for a vector*N
}

// New builds the builtin global scope: every "method <op>" the parser's
// rewrite can produce, plus the standard math intrinsics.
func New(reg *types.Registry) *Globals {
	g := &Globals{types: reg, table: symbol.NewMultiple(symbol.Empty{})}
	g.registerOperators()
	g.registerIntrinsics()
	return g
}

// Table returns the scope ready to be passed as the parent of a
// toplevel's own scope.
func (g *Globals) Table() symbol.Table { return g.table }

// Add registers a named real-valued constant visible to every script
// compiled against this Globals.
func (g *Globals) Add(name string, value float64) {
	sym := symbol.NewVariable(name, g.types.Find("real"))
	g.table.Add(sym)
	g.numeric = append(g.numeric, &numericConstant{sym: sym, values: []float64{value}})
}

// AddVector registers a named vector*len(values) constant.
func (g *Globals) AddVector(name string, values []float64) {
	sym := symbol.NewVariable(name, g.types.Vector(len(values)))
	g.table.Add(sym)
	g.numeric = append(g.numeric, &numericConstant{sym: sym, values: values})
}

// Prime materialises every host-registered constant as an LLVM value
// using g, called once at the start of a compilation before the
// toplevel itself is generated (before any basic block exists, so this
// builds plain LLVM constants rather than builder instructions).
func (g *Globals) Prime(gen *codegen.Generator) {
	for _, c := range g.numeric {
		if len(c.values) == 1 {
			c.sym.SetValue(llvm.ConstFloat(gen.RealLLVMType(), c.values[0]))
			continue
		}
		elems := make([]llvm.Value, len(c.values))
		for i, f := range c.values {
			elems[i] = llvm.ConstFloat(gen.RealLLVMType(), f)
		}
		c.sym.SetValue(llvm.ConstVector(elems, false))
	}
}

func (g *Globals) builtin(name string, dispatch func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error)) {
	g.table.Add(&symbol.Builtin{NameStr: name, Dispatch: dispatch})
}

func arityError(ctx symbol.CallContext, name string, want, got int) error {
	return cerr.New(cerr.IntrinsicType, ctx.Pos(), "'%s' takes %d argument(s), got %d", name, want, got)
}

func typeError(ctx symbol.CallContext, name string) error {
	return cerr.New(cerr.IntrinsicType, ctx.Pos(), "wrong argument type(s) for '%s'", name)
}

// splat replicates scalar to fill a width-wide vector, the same
// undef-then-insert idiom codegen.Generator.VisitVectorSplat uses, built
// against CallContext since a builtin never holds a *codegen.Generator.
func splat(ctx symbol.CallContext, scalar llvm.Value, width int) llvm.Value {
	v := llvm.Undef(ctx.VectorLLVMType(width))
	for i := 0; i < width; i++ {
		idx := llvm.ConstInt(ctx.Context().Int32Type(), uint64(i), false)
		v = ctx.Builder().CreateInsertElement(v, scalar, idx, "")
	}
	return v
}

func (g *Globals) registerOperators() {
	real := g.types.Find("real")
	boolean := g.types.Find("boolean")

	// arith resolves (real, real), (vector*N, vector*N), and the two
	// mixed (vector*N, real)/(real, vector*N) broadcast forms: exact
	// match first, then vector-scalar broadcast by splatting the scalar
	// to the vector's width, then error.
	arith := func(name string, op func(b llvm.Builder, a, c llvm.Value) llvm.Value) {
		g.builtin("method "+name, func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
			if len(args) != 2 {
				return symbol.Value{}, arityError(ctx, name, 2, len(args))
			}
			a, b := args[0], args[1]

			switch {
			case a.Type == b.Type && (a.Type.Kind == types.Real || a.Type.Kind == types.Vector):
				return symbol.Value{V: op(ctx.Builder(), a.V, b.V), Type: a.Type}, nil
			case a.Type.Kind == types.Vector && b.Type == real:
				return symbol.Value{V: op(ctx.Builder(), a.V, splat(ctx, b.V, a.Type.Width)), Type: a.Type}, nil
			case a.Type == real && b.Type.Kind == types.Vector:
				return symbol.Value{V: op(ctx.Builder(), splat(ctx, a.V, b.Type.Width), b.V), Type: b.Type}, nil
			default:
				return symbol.Value{}, typeError(ctx, name)
			}
		})
	}
	arith("+", func(b llvm.Builder, a, c llvm.Value) llvm.Value { return b.CreateFAdd(a, c, "") })
	arith("-", func(b llvm.Builder, a, c llvm.Value) llvm.Value { return b.CreateFSub(a, c, "") })
	arith("*", func(b llvm.Builder, a, c llvm.Value) llvm.Value { return b.CreateFMul(a, c, "") })
	arith("/", func(b llvm.Builder, a, c llvm.Value) llvm.Value { return b.CreateFDiv(a, c, "") })

	compare := func(name string, pred llvm.FloatPredicate) {
		g.builtin("method "+name, func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
			if len(args) != 2 {
				return symbol.Value{}, arityError(ctx, name, 2, len(args))
			}
			a, b := args[0], args[1]
			if a.Type != real || b.Type != real {
				return symbol.Value{}, typeError(ctx, name)
			}
			return symbol.Value{V: ctx.Builder().CreateFCmp(pred, a.V, b.V, ""), Type: boolean}, nil
		})
	}
	compare("<", llvm.FloatOLT)
	compare("<=", llvm.FloatOLE)
	compare(">", llvm.FloatOGT)
	compare(">=", llvm.FloatOGE)
	compare("==", llvm.FloatOEQ)
	compare("!=", llvm.FloatONE)

	g.table.Add(&symbol.Builtin{NameStr: "method not", Dispatch: func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
		if len(args) != 1 {
			return symbol.Value{}, arityError(ctx, "not", 1, len(args))
		}
		if args[0].Type != boolean {
			return symbol.Value{}, typeError(ctx, "not")
		}
		return symbol.Value{V: ctx.Builder().CreateNot(args[0].V, ""), Type: boolean}, nil
	}})

	g.builtin("method neg", func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
		if len(args) != 1 {
			return symbol.Value{}, arityError(ctx, "neg", 1, len(args))
		}
		if args[0].Type.Kind != types.Real && args[0].Type.Kind != types.Vector {
			return symbol.Value{}, typeError(ctx, "neg")
		}
		return symbol.Value{V: ctx.Builder().CreateFNeg(args[0].V, ""), Type: args[0].Type}, nil
	})

	field := func(name string, index uint64) {
		g.builtin("method "+name, func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
			if len(args) != 1 {
				return symbol.Value{}, arityError(ctx, name, 1, len(args))
			}
			v := args[0]
			if v.Type.Kind != types.Vector || uint64(v.Type.Width) <= index {
				return symbol.Value{}, typeError(ctx, name)
			}
			idx := llvm.ConstInt(ctx.Context().Int32Type(), index, false)
			return symbol.Value{V: ctx.Builder().CreateExtractElement(v.V, idx, ""), Type: real}, nil
		})
	}
	field("x", 0)
	field("y", 1)
	field("z", 2)

	g.builtin("method []", func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
		if len(args) < 2 {
			return symbol.Value{}, arityError(ctx, "[]", 2, len(args))
		}
		vec := args[0]
		if vec.Type.Kind != types.Vector {
			return symbol.Value{}, typeError(ctx, "[]")
		}
		idxArg := args[1]
		if idxArg.Type != real {
			return symbol.Value{}, typeError(ctx, "[]")
		}
		if !idxArg.IsConst {
			return symbol.Value{}, cerr.New(cerr.IntrinsicType, ctx.Pos(), "vector subscript must be a compile-time constant")
		}
		k := int(idxArg.Const)
		if float64(k) != idxArg.Const {
			return symbol.Value{}, cerr.New(cerr.IntrinsicType, ctx.Pos(), "vector subscript must be an integer, got %v", idxArg.Const)
		}
		if k < 0 || k >= vec.Type.Width {
			return symbol.Value{}, cerr.New(cerr.IntrinsicType, ctx.Pos(), "vector subscript %d out of range for vector of width %d", k, vec.Type.Width)
		}
		idx := llvm.ConstInt(ctx.Context().Int32Type(), uint64(k), false)
		return symbol.Value{V: ctx.Builder().CreateExtractElement(vec.V, idx, ""), Type: real}, nil
	})
}

func (g *Globals) registerIntrinsics() {
	real := g.types.Find("real")

	unary := func(name, libmName string) {
		g.builtin(name, func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
			if len(args) != 1 || args[0].Type != real {
				return symbol.Value{}, typeError(ctx, name)
			}
			fn := declareLibm(ctx, libmName, 1)
			result := ctx.Builder().CreateCall(fn, []llvm.Value{args[0].V}, "")
			return symbol.Value{V: result, Type: real}, nil
		})
	}
	unary("sin", "sin")
	unary("cos", "cos")
	unary("tan", "tan")
	unary("sqrt", "sqrt")
	unary("exp", "exp")
	unary("log", "log")

	g.builtin("pow", func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
		if len(args) != 2 || args[0].Type != real || args[1].Type != real {
			return symbol.Value{}, typeError(ctx, "pow")
		}
		fn := declareLibm(ctx, "pow", 2)
		result := ctx.Builder().CreateCall(fn, []llvm.Value{args[0].V, args[1].V}, "")
		return symbol.Value{V: result, Type: real}, nil
	})

	g.builtin("abs", func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
		if len(args) != 1 || args[0].Type != real {
			return symbol.Value{}, typeError(ctx, "abs")
		}
		fn := declareLibm(ctx, "fabs", 1)
		result := ctx.Builder().CreateCall(fn, []llvm.Value{args[0].V}, "")
		return symbol.Value{V: result, Type: real}, nil
	})

	minmax := func(name string, lt bool) {
		g.builtin(name, func(ctx symbol.CallContext, args []symbol.Value) (symbol.Value, error) {
			if len(args) != 2 || args[0].Type != real || args[1].Type != real {
				return symbol.Value{}, typeError(ctx, name)
			}
			pred := llvm.FloatOLT
			if !lt {
				pred = llvm.FloatOGT
			}
			cmp := ctx.Builder().CreateFCmp(pred, args[0].V, args[1].V, "")
			result := ctx.Builder().CreateSelect(cmp, args[0].V, args[1].V, "")
			return symbol.Value{V: result, Type: real}, nil
		})
	}
	minmax("min", true)
	minmax("max", false)
}

// declareLibm returns the module-local declaration of a libm function,
// adding it on first use. MCJIT resolves it against the host process's
// symbol table at call time (libm is always linked into the runtime
// that hosts this JIT).
func declareLibm(ctx symbol.CallContext, name string, arity int) llvm.Value {
	existing := ctx.Module().NamedFunction(name)
	if !existing.IsNil() {
		return existing
	}
	argTypes := make([]llvm.Type, arity)
	for i := range argTypes {
		argTypes[i] = ctx.RealLLVMType()
	}
	fnType := llvm.FunctionType(ctx.RealLLVMType(), argTypes, false)
	return llvm.AddFunction(ctx.Module(), name, fnType)
}
