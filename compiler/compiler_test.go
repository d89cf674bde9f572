package compiler

import (
	"strings"
	"testing"
)

func compileStrings(t *testing.T, sig, code string) *Function {
	t.Helper()
	c := New()
	fn, err := c.Compile(strings.NewReader(sig), strings.NewReader(code))
	if err != nil {
		t.Fatalf("Compile(%q, %q): %v", sig, code, err)
	}
	return fn
}

func TestCompileAndCallScalar(t *testing.T) {
	fn := compileStrings(t, "(x, y) : (z)", "x + y")
	defer fn.Close()

	out, err := fn.Call([]float64{2, 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 1 || out[0] != 5 {
		t.Fatalf("expected [5], got %v", out)
	}
}

func TestCompileAndCallVector(t *testing.T) {
	fn := compileStrings(t, "(v: vector*3) : (len2)", "v.x * v.x + v.y * v.y + v.z * v.z")
	defer fn.Close()

	out, err := fn.Call([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 1 || out[0] != 14 {
		t.Fatalf("expected [14], got %v", out)
	}
}

func TestCompileAndCallMultiOutput(t *testing.T) {
	fn := compileStrings(t, "(x) : (doubled, tripled)", "{x * 2, x * 3}")
	defer fn.Close()

	out, err := fn.Call([]float64{5})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 2 || out[0] != 10 || out[1] != 15 {
		t.Fatalf("expected [10 15], got %v", out)
	}
}

func TestCompileAndCallBoolean(t *testing.T) {
	fn := compileStrings(t, "(x) : (tooBig: boolean)", "x > 10")
	defer fn.Close()

	small, err := fn.Call([]float64{1})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if small[0] != 0 {
		t.Fatalf("expected a false-as-0.0 output for x=1, got %v", small)
	}

	big, err := fn.Call([]float64{100})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if big[0] != 1 {
		t.Fatalf("expected a true-as-1.0 output for x=100, got %v", big)
	}
}

func TestCompileAndCallBooleanInput(t *testing.T) {
	fn := compileStrings(t, "(flag: boolean, x) : (y)", "if flag then x else 0 - x")
	defer fn.Close()

	out, err := fn.Call([]float64{1, 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != 7 {
		t.Fatalf("expected 7 when flag is true, got %v", out)
	}

	out, err = fn.Call([]float64{0, 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != -7 {
		t.Fatalf("expected -7 when flag is false, got %v", out)
	}
}

func TestCompileAndCallRecursiveFunction(t *testing.T) {
	fn := compileStrings(t, "(n) : (result)",
		"let fact(k) = if k < 2 then 1 else k * fact(k - 1) in fact(n)")
	defer fn.Close()

	out, err := fn.Call([]float64{5})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != 120 {
		t.Fatalf("expected fact(5) = 120, got %v", out)
	}
}

func TestCompileAndCallIntrinsics(t *testing.T) {
	fn := compileStrings(t, "(x) : (y)", "sqrt(x * x)")
	defer fn.Close()

	out, err := fn.Call([]float64{-4})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != 4 {
		t.Fatalf("expected sqrt(16) = 4, got %v", out)
	}
}

func TestCompileWithHostConstant(t *testing.T) {
	c := New()
	c.Add("scale", 10)

	fn, err := c.Compile(strings.NewReader("(x) : (y)"), strings.NewReader("x * scale"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer fn.Close()

	out, err := fn.Call([]float64{3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != 30 {
		t.Fatalf("expected 30, got %v", out)
	}
}

func TestCompileWithHostVectorConstant(t *testing.T) {
	c := New()
	c.AddVector("origin", []float64{1, 2, 3})

	fn, err := c.Compile(strings.NewReader("() : (y)"), strings.NewReader("origin.x + origin.y + origin.z"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer fn.Close()

	out, err := fn.Call(nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != 6 {
		t.Fatalf("expected 6, got %v", out)
	}
}

func TestCallRejectsWrongInputSize(t *testing.T) {
	fn := compileStrings(t, "(x, y) : (z)", "x + y")
	defer fn.Close()

	if _, err := fn.Call([]float64{1}); err == nil {
		t.Fatal("expected an error calling with the wrong number of inputs")
	}
}

func TestCompileParseErrorIsWrapped(t *testing.T) {
	c := New()
	_, err := c.Compile(strings.NewReader("(x) : (y)"), strings.NewReader("x +"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !strings.Contains(err.Error(), "compilation session") {
		t.Fatalf("expected the error to be wrapped with a session id, got: %v", err)
	}
}

func TestCompileResolutionErrorReportsUndefinedSymbol(t *testing.T) {
	c := New()
	_, err := c.Compile(strings.NewReader("(x) : (y)"), strings.NewReader("nosuchname"))
	if err == nil {
		t.Fatal("expected an undefined-symbol error")
	}
	if !strings.Contains(err.Error(), "undefined symbol") {
		t.Fatalf("expected an undefined-symbol error, got: %v", err)
	}
}

func TestSignatureAndDescribe(t *testing.T) {
	fn := compileStrings(t, "(x, v: vector*3) : (y, flag: boolean)", "{x, true}")
	defer fn.Close()

	sig := fn.Signature()
	if len(sig.Inputs) != 2 || sig.InputSize != 4 {
		t.Fatalf("unexpected signature inputs: %+v", sig)
	}
	if len(sig.Outputs) != 2 || sig.OutputSize != 2 {
		t.Fatalf("unexpected signature outputs: %+v", sig)
	}

	desc, err := fn.Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(string(desc), "\"session\"") {
		t.Fatalf("expected the description to include a session id, got: %s", desc)
	}
}

func TestDumpAndDescribeASTAreNonEmpty(t *testing.T) {
	fn := compileStrings(t, "(x) : (y)", "x + 1")
	defer fn.Close()

	if !strings.Contains(fn.Dump(), "calculon_entry") {
		t.Fatalf("expected Dump to mention the entry function, got: %s", fn.Dump())
	}
	if fn.DescribeAST() == "" {
		t.Fatal("expected a non-empty AST dump")
	}
}
