// Package types implements the TypeRegistry: real, boolean, vector*N and
// aliases, all identified by canonical name.
package types

import "fmt"

// Kind distinguishes the shape of a Type; Real and Boolean are scalar,
// Vector carries a positive Width.
type Kind int

const (
	Real Kind = iota
	Boolean
	Vector
)

// Type is a singleton per canonical name: two Types are the same type iff
// they are the same *Type pointer, which TypeRegistry guarantees by
// caching every name (and every vector width) it has ever produced.
type Type struct {
	Name  string
	Kind  Kind
	Width int // meaningful only for Kind == Vector
}

func (t *Type) String() string { return t.Name }

// Registry maps canonical names (and aliases, resolved one hop) to
// singleton Types, creating vector*N types lazily on first demand.
type Registry struct {
	byName  map[string]*Type
	aliases map[string]string
}

// NewRegistry creates a registry pre-populated with "real" and "boolean".
func NewRegistry() *Registry {
	r := &Registry{
		byName:  make(map[string]*Type),
		aliases: make(map[string]string),
	}
	r.byName["real"] = &Type{Name: "real", Kind: Real}
	r.byName["boolean"] = &Type{Name: "boolean", Kind: Boolean}
	return r
}

// Find resolves name to its singleton Type, instantiating vector*N types
// on first demand and chasing a single alias hop. It returns nil if name
// is not a known type, alias, or well-formed vector*N spec.
func (r *Registry) Find(name string) *Type {
	if t, ok := r.byName[name]; ok {
		return t
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.byName[canonical]
	}
	if width, ok := parseVectorName(name); ok {
		return r.vector(width)
	}
	return nil
}

// Vector returns (creating if necessary) the singleton vector*width type.
func (r *Registry) Vector(width int) *Type {
	return r.vector(width)
}

func (r *Registry) vector(width int) *Type {
	if width <= 0 {
		return nil
	}
	name := fmt.Sprintf("vector*%d", width)
	if t, ok := r.byName[name]; ok {
		return t
	}
	t := &Type{Name: name, Kind: Vector, Width: width}
	r.byName[name] = t
	return t
}

// Register installs an additional named singleton type (used internally;
// the public surface for new scalar/vector types is Find/Vector).
func (r *Registry) Register(name string, t *Type) {
	r.byName[name] = t
}

// RegisterAlias installs name as an alias resolving to canonical.
// Aliases may not point to aliases: the registry rejects the cycle at
// definition time by requiring canonical to already be a registered type
// name (not itself an alias).
func (r *Registry) RegisterAlias(name, canonical string) error {
	if _, ok := r.aliases[canonical]; ok {
		return fmt.Errorf("types: alias %q may not target another alias %q", name, canonical)
	}
	if r.Find(canonical) == nil {
		return fmt.Errorf("types: alias %q targets unknown type %q", name, canonical)
	}
	r.aliases[name] = canonical
	return nil
}

// Widths reports every vector width instantiated so far, for diagnostic
// dumps; it carries no semantic weight.
func (r *Registry) Widths() []int {
	var widths []int
	for _, t := range r.byName {
		if t.Kind == Vector {
			widths = append(widths, t.Width)
		}
	}
	return widths
}

func parseVectorName(name string) (int, bool) {
	const prefix = "vector*"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, false
	}
	digits := name[len(prefix):]
	width := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		width = width*10 + int(c-'0')
	}
	if width <= 0 {
		return 0, false
	}
	return width, true
}
