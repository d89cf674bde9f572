package codegen

import "calculon/symbol"

// Slot describes one variable's position in a flat []float64 ABI
// buffer: Width is 1 for real/boolean, or N for vector*N.
type Slot struct {
	Offset int
	Width  int
}

// Layout is the flat-array slot assignment for a toplevel's inputs and
// outputs, computed once so both codegen and the compiler-facing caller
// agree on buffer sizes.
type Layout struct {
	Inputs     []Slot
	Outputs    []Slot
	InputSize  int
	OutputSize int
}

func layoutFor(inputs, outputs []*symbol.Variable) *Layout {
	l := &Layout{Inputs: make([]Slot, len(inputs)), Outputs: make([]Slot, len(outputs))}

	offset := 0
	for i, v := range inputs {
		w := widthOf(v)
		l.Inputs[i] = Slot{Offset: offset, Width: w}
		offset += w
	}
	l.InputSize = offset

	offset = 0
	for i, v := range outputs {
		w := widthOf(v)
		l.Outputs[i] = Slot{Offset: offset, Width: w}
		offset += w
	}
	l.OutputSize = offset

	return l
}

func widthOf(v *symbol.Variable) int {
	if v.Typ.Width > 0 {
		return v.Typ.Width
	}
	return 1
}
