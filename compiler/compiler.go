// Package compiler is Calculon's embedding surface: Compiler holds the
// shared type registry and global scope a host builds once, Compile
// turns one signature/code pair into a JIT-compiled Function, and
// Function exposes the result as a plain Go call taking and returning
// flat []float64 buffers.
package compiler

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"tinygo.org/x/go-llvm"

	"calculon/arena"
	"calculon/ast"
	"calculon/cerr"
	"calculon/codegen"
	"calculon/lexer"
	"calculon/parser"
	"calculon/resolver"
	"calculon/stdlib"
	"calculon/symbol"
	"calculon/types"
)

// Compiler is the long-lived, reusable half of a Calculon embedding: one
// type registry and one global scope (builtins plus whatever the host
// has registered with Add/AddVector), shared by every script it
// compiles.
type Compiler struct {
	types   *types.Registry
	globals *stdlib.Globals
}

// New creates a Compiler with the standard builtins and math intrinsics
// already registered.
func New() *Compiler {
	reg := types.NewRegistry()
	return &Compiler{types: reg, globals: stdlib.New(reg)}
}

// Types exposes the shared registry, e.g. for a host that wants to
// register a type alias before compiling.
func (c *Compiler) Types() *types.Registry { return c.types }

// Add registers a named real constant visible to every subsequent
// Compile call.
func (c *Compiler) Add(name string, value float64) { c.globals.Add(name, value) }

// AddVector registers a named vector*len(values) constant.
func (c *Compiler) AddVector(name string, values []float64) { c.globals.AddVector(name, values) }

// Function is one JIT-compiled script: an LLVM module holding a single
// entrypoint, its execution engine, and the flat-array slot layout a
// caller's input/output buffers must follow.
type Function struct {
	session uuid.UUID
	module  llvm.Module
	engine  llvm.ExecutionEngine
	entry   llvm.Value
	layout  *codegen.Layout
	sig     Signature
	root    *ast.Toplevel
}

// Signature describes a compiled Function's shape, for introspection
// (Describe) and for a host building correctly-sized buffers.
type Signature struct {
	Inputs     []Parameter `json:"inputs"`
	Outputs    []Parameter `json:"outputs"`
	InputSize  int         `json:"inputSize"`
	OutputSize int         `json:"outputSize"`
}

// Parameter names one signature slot and its type's string form (e.g.
// "real", "boolean", "vector*3").
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Compile parses signature and code, resolves and generates the result,
// and JITs it into a callable Function. Each call gets a fresh session
// id, included in wrapped errors to correlate a failure with whichever
// of several concurrently-compiled scripts produced it.
func (c *Compiler) Compile(signature, code io.Reader) (*Function, error) {
	session := uuid.New()

	fn, err := c.compile(signature, code)
	if err != nil {
		return nil, fmt.Errorf("compilation session %s: %w", session, err)
	}
	fn.session = session
	return fn, nil
}

func (c *Compiler) compile(signature, code io.Reader) (*Function, error) {
	a := arena.New()

	sigLex, err := lexer.New(signature, "<signature>")
	if err != nil {
		return nil, err
	}
	sigParser := parser.New(sigLex, a, c.types)
	inputs, outputs, err := sigParser.ParseToplevelSignature()
	if err != nil {
		return nil, err
	}
	if err := sigParser.ExpectEOF(); err != nil {
		return nil, err
	}

	toplevelSym := symbol.NewToplevel("<toplevel>", inputs, outputs)

	codeLex, err := lexer.New(code, "<code>")
	if err != nil {
		return nil, err
	}
	codeParser := parser.New(codeLex, a, c.types)
	root, err := codeParser.ParseToplevelBody(toplevelSym, c.globals.Table())
	if err != nil {
		return nil, err
	}

	if err := resolver.Resolve(root); err != nil {
		return nil, err
	}

	gen := codegen.New(c.types, "calculon")
	c.globals.Prime(gen)

	entry, layout, err := gen.GenerateToplevel(root)
	if err != nil {
		return nil, err
	}

	module := gen.Module()
	if err := llvm.VerifyModule(module, llvm.ReturnStatusAction); err != nil {
		return nil, cerr.New(cerr.Type, root.Pos(), "internal error: generated module failed verification: %v", err)
	}

	options := llvm.NewMCJITCompilerOptions()
	options.SetMCJITOptimizationLevel(2)
	engine, err := llvm.NewMCJITCompiler(module, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution engine: %w", err)
	}

	return &Function{
		module: module,
		engine: engine,
		entry:  entry,
		layout: layout,
		sig:    signatureOf(inputs, outputs, layout),
		root:   root,
	}, nil
}

func signatureOf(inputs, outputs []*symbol.Variable, layout *codegen.Layout) Signature {
	toParams := func(vars []*symbol.Variable) []Parameter {
		out := make([]Parameter, len(vars))
		for i, v := range vars {
			out[i] = Parameter{Name: v.NameStr, Type: v.Typ.String()}
		}
		return out
	}
	return Signature{
		Inputs:     toParams(inputs),
		Outputs:    toParams(outputs),
		InputSize:  layout.InputSize,
		OutputSize: layout.OutputSize,
	}
}

// Signature reports the compiled function's input/output shape.
func (f *Function) Signature() Signature { return f.sig }

// Describe marshals the function's signature and session id as JSON,
// for a host's diagnostic output (the CLI's `dump` and `watch` print it).
func (f *Function) Describe() ([]byte, error) {
	type description struct {
		Session   string `json:"session"`
		Signature `json:"signature"`
	}
	return json.Marshal(description{Session: f.session.String(), Signature: f.sig})
}

// Dump renders the generated LLVM IR as text, for debugging.
func (f *Function) Dump() string { return f.module.String() }

// DescribeAST renders the resolved expression tree as indented text.
func (f *Function) DescribeAST() string {
	p := ast.NewDebugPrinter()
	_, _ = f.root.Accept(p)
	return p.String()
}

// Call runs the compiled script against a flat input buffer (length
// Signature().InputSize, each vector*N contributing N consecutive
// slots) and returns a freshly allocated flat output buffer of length
// Signature().OutputSize in the same layout.
func (f *Function) Call(inputs []float64) ([]float64, error) {
	if len(inputs) != f.sig.InputSize {
		return nil, fmt.Errorf("calculon: expected %d input value(s), got %d", f.sig.InputSize, len(inputs))
	}
	outputs := make([]float64, f.sig.OutputSize)

	inArg := llvm.NewGenericValueFromPointer(floatPtr(inputs))
	outArg := llvm.NewGenericValueFromPointer(floatPtr(outputs))
	f.engine.RunFunction(f.entry, []llvm.GenericValue{inArg, outArg})

	return outputs, nil
}

// floatPtr returns a pointer to buf's backing array, or nil for an
// empty buffer (a toplevel with no inputs, or no outputs).
func floatPtr(buf []float64) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf[0])
}

// Close releases the execution engine and its backing module. A
// Function must not be called after Close.
func (f *Function) Close() {
	f.engine.Dispose()
}
