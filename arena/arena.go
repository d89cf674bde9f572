// Package arena implements a per-compilation ownership arena: the parser
// retains every AST node it builds here. Symbols and symbol tables are
// not retained. compiler.Compile creates one arena per call and drops it
// when the call returns; nothing calls Release, and dump()/Describe() do
// not report Len. Go's GC reclaims the nodes once they are unreachable;
// the arena keeps the ownership model explicit, the way the original's
// `retain()` calls did by centralising allocation through one function.
package arena

// Arena collects every object a compilation retains.
type Arena struct {
	objects []interface{}
}

// New creates an empty arena.
func New() *Arena { return &Arena{} }

// Retain records v as owned by the arena and returns it unchanged, so
// call sites read as `x := arena.Retain(a, construct())`, mirroring the
// original's `retain(new ASTWhatever(...))`.
func Retain[T any](a *Arena, v T) T {
	a.objects = append(a.objects, v)
	return v
}

// Len reports how many objects the arena has retained.
func (a *Arena) Len() int { return len(a.objects) }

// Release drops the arena's references, allowing the GC to reclaim
// everything it retained. The JIT module is not held here: it is owned
// separately, by compiler.Function, and survives Release.
func (a *Arena) Release() { a.objects = nil }
