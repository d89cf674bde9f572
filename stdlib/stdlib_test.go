package stdlib

import (
	"testing"

	"tinygo.org/x/go-llvm"

	"calculon/codegen"
	"calculon/symbol"
	"calculon/types"
)

// fixture builds a Globals plus a codegen.Generator with an open basic
// block, so a builtin's Dispatch can be exercised end to end.
func fixture(t *testing.T) (*Globals, *codegen.Generator) {
	t.Helper()
	reg := types.NewRegistry()
	g := New(reg)

	gen := codegen.New(reg, "test")
	g.Prime(gen)

	fnType := llvm.FunctionType(gen.Context().VoidType(), nil, false)
	fn := llvm.AddFunction(gen.Module(), "fixture", fnType)
	entry := gen.Context().AddBasicBlock(fn, "")
	gen.Builder().SetInsertPointAtEnd(entry)

	return g, gen
}

func real(gen *codegen.Generator, v float64) symbol.Value {
	return symbol.Value{V: llvm.ConstFloat(gen.RealLLVMType(), v), Type: gen.Types().Find("real"), IsConst: true, Const: v}
}

// dynamicReal builds a real-typed value not marked as a compile-time
// constant, standing in for a function argument or other runtime value.
func dynamicReal(gen *codegen.Generator, v float64) symbol.Value {
	return symbol.Value{V: llvm.ConstFloat(gen.RealLLVMType(), v), Type: gen.Types().Find("real")}
}

func dispatchOf(t *testing.T, g *Globals, name string) func(symbol.CallContext, []symbol.Value) (symbol.Value, error) {
	t.Helper()
	sym := g.table.Resolve(name)
	builtin, ok := sym.(*symbol.Builtin)
	if !ok {
		t.Fatalf("%q is not registered as a builtin", name)
	}
	return builtin.Dispatch
}

func TestArithmeticOperatorsProduceRealValues(t *testing.T) {
	g, gen := fixture(t)
	for _, name := range []string{"+", "-", "*", "/"} {
		dispatch := dispatchOf(t, g, "method "+name)
		v, err := dispatch(gen, []symbol.Value{real(gen, 1), real(gen, 2)})
		if err != nil {
			t.Fatalf("method %s: %v", name, err)
		}
		if v.Type.Kind != types.Real {
			t.Fatalf("method %s: expected a real result, got %s", name, v.Type)
		}
	}
}

func TestArithmeticBroadcastsScalarToVector(t *testing.T) {
	g, gen := fixture(t)
	vec := vectorValue(gen, 3)
	mul := dispatchOf(t, g, "method *")

	v, err := mul(gen, []symbol.Value{vec, real(gen, 2)})
	if err != nil {
		t.Fatalf("vector*real: %v", err)
	}
	if v.Type.Kind != types.Vector || v.Type.Width != 3 {
		t.Fatalf("expected a vector*3 result, got %s", v.Type)
	}

	v, err = mul(gen, []symbol.Value{real(gen, 2), vec})
	if err != nil {
		t.Fatalf("real*vector: %v", err)
	}
	if v.Type.Kind != types.Vector || v.Type.Width != 3 {
		t.Fatalf("expected a vector*3 result, got %s", v.Type)
	}
}

func TestArithmeticRejectsMismatchedVectorWidths(t *testing.T) {
	g, gen := fixture(t)
	add := dispatchOf(t, g, "method +")

	if _, err := add(gen, []symbol.Value{vectorValue(gen, 2), vectorValue(gen, 3)}); err == nil {
		t.Fatal("expected an error mixing vector*2 and vector*3 operands")
	}
}

func TestArithmeticOperatorRejectsMixedTypes(t *testing.T) {
	g, gen := fixture(t)
	dispatch := dispatchOf(t, g, "method +")
	boolean := symbol.Value{V: llvm.ConstInt(gen.BooleanLLVMType(), 1, false), Type: gen.Types().Find("boolean")}
	if _, err := dispatch(gen, []symbol.Value{real(gen, 1), boolean}); err == nil {
		t.Fatal("expected an error mixing real and boolean operands")
	}
}

func TestArithmeticOperatorRejectsWrongArity(t *testing.T) {
	g, gen := fixture(t)
	dispatch := dispatchOf(t, g, "method +")
	if _, err := dispatch(gen, []symbol.Value{real(gen, 1)}); err == nil {
		t.Fatal("expected an arity error with only one argument")
	}
}

func TestComparisonProducesBoolean(t *testing.T) {
	g, gen := fixture(t)
	dispatch := dispatchOf(t, g, "method <")
	v, err := dispatch(gen, []symbol.Value{real(gen, 1), real(gen, 2)})
	if err != nil {
		t.Fatalf("method <: %v", err)
	}
	if v.Type.Kind != types.Boolean {
		t.Fatalf("expected a boolean result, got %s", v.Type)
	}
}

func TestUnaryNegAndNotDoNotCollide(t *testing.T) {
	g, gen := fixture(t)

	neg := dispatchOf(t, g, "method neg")
	v, err := neg(gen, []symbol.Value{real(gen, 1)})
	if err != nil || v.Type.Kind != types.Real {
		t.Fatalf("method neg: v=%#v err=%v", v, err)
	}

	not := dispatchOf(t, g, "method not")
	boolean := symbol.Value{V: llvm.ConstInt(gen.BooleanLLVMType(), 1, false), Type: gen.Types().Find("boolean")}
	v, err = not(gen, []symbol.Value{boolean})
	if err != nil || v.Type.Kind != types.Boolean {
		t.Fatalf("method not: v=%#v err=%v", v, err)
	}
}

func vectorValue(gen *codegen.Generator, width int) symbol.Value {
	vt := gen.VectorLLVMType(width)
	v := llvm.Undef(vt)
	for i := 0; i < width; i++ {
		idx := llvm.ConstInt(gen.Context().Int32Type(), uint64(i), false)
		v = gen.Builder().CreateInsertElement(v, llvm.ConstFloat(gen.RealLLVMType(), float64(i)), idx, "")
	}
	return symbol.Value{V: v, Type: gen.Types().Vector(width)}
}

func TestFieldExtractionRespectsWidth(t *testing.T) {
	g, gen := fixture(t)
	vec := vectorValue(gen, 2)

	x := dispatchOf(t, g, "method x")
	if _, err := x(gen, []symbol.Value{vec}); err != nil {
		t.Fatalf("method x on a width-2 vector: %v", err)
	}

	z := dispatchOf(t, g, "method z")
	if _, err := z(gen, []symbol.Value{vec}); err == nil {
		t.Fatal("expected method z to fail on a width-2 vector")
	}
}

func TestSubscriptAcceptsConstantIndex(t *testing.T) {
	g, gen := fixture(t)
	vec := vectorValue(gen, 3)
	sub := dispatchOf(t, g, "method []")

	v, err := sub(gen, []symbol.Value{vec, real(gen, 1)})
	if err != nil {
		t.Fatalf("method []: %v", err)
	}
	if v.Type.Kind != types.Real {
		t.Fatalf("expected a real element, got %s", v.Type)
	}
}

func TestSubscriptRejectsNonConstantIndex(t *testing.T) {
	g, gen := fixture(t)
	vec := vectorValue(gen, 3)
	sub := dispatchOf(t, g, "method []")

	if _, err := sub(gen, []symbol.Value{vec, dynamicReal(gen, 1)}); err == nil {
		t.Fatal("expected a non-constant subscript to fail at compile time")
	}
}

func TestSubscriptRejectsOutOfRangeIndex(t *testing.T) {
	g, gen := fixture(t)
	vec := vectorValue(gen, 3)
	sub := dispatchOf(t, g, "method []")

	if _, err := sub(gen, []symbol.Value{vec, real(gen, 3)}); err == nil {
		t.Fatal("expected an out-of-range constant subscript to fail at compile time")
	}
	if _, err := sub(gen, []symbol.Value{vec, real(gen, -1)}); err == nil {
		t.Fatal("expected a negative constant subscript to fail at compile time")
	}
}

func TestSubscriptRejectsNonIntegerIndex(t *testing.T) {
	g, gen := fixture(t)
	vec := vectorValue(gen, 3)
	sub := dispatchOf(t, g, "method []")

	if _, err := sub(gen, []symbol.Value{vec, real(gen, 1.5)}); err == nil {
		t.Fatal("expected a non-integer constant subscript to fail at compile time")
	}
}

func TestIntrinsicsDeclareLibmOnce(t *testing.T) {
	g, gen := fixture(t)
	sin := dispatchOf(t, g, "sin")

	if _, err := sin(gen, []symbol.Value{real(gen, 0)}); err != nil {
		t.Fatalf("sin: %v", err)
	}
	if _, err := sin(gen, []symbol.Value{real(gen, 1)}); err != nil {
		t.Fatalf("sin (second call): %v", err)
	}

	var count int
	for fn := gen.Module().FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if fn.Name() == "sin" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected libm 'sin' to be declared exactly once, got %d", count)
	}
}

func TestMinMax(t *testing.T) {
	g, gen := fixture(t)
	min := dispatchOf(t, g, "min")
	if _, err := min(gen, []symbol.Value{real(gen, 1), real(gen, 2)}); err != nil {
		t.Fatalf("min: %v", err)
	}
	max := dispatchOf(t, g, "max")
	if _, err := max(gen, []symbol.Value{real(gen, 1), real(gen, 2)}); err != nil {
		t.Fatalf("max: %v", err)
	}
}

func TestHostConstantsArePrimed(t *testing.T) {
	reg := types.NewRegistry()
	g := New(reg)
	g.Add("myConst", 42)
	g.AddVector("myVec", []float64{1, 2, 3})

	gen := codegen.New(reg, "test")
	g.Prime(gen)

	sym := g.table.Resolve("myConst")
	valued, ok := sym.(symbol.Valued)
	if !ok {
		t.Fatal("expected myConst to be a Valued symbol")
	}
	if _, has := valued.Value(); !has {
		t.Fatal("expected myConst to have a materialised value after Prime")
	}

	vecSym := g.table.Resolve("myVec")
	vecValued, ok := vecSym.(symbol.Valued)
	if !ok {
		t.Fatal("expected myVec to be a Valued symbol")
	}
	if vecValued.Type().Kind != types.Vector || vecValued.Type().Width != 3 {
		t.Fatalf("expected myVec to be vector*3, got %s", vecValued.Type())
	}
}
