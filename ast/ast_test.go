package ast

import (
	"testing"

	"calculon/position"
	"calculon/symbol"
)

func TestCountNodes(t *testing.T) {
	pos := position.Position{}
	body := NewFunctionCall(pos, "method +", []Node{
		NewConstant(pos, 1),
		NewConstant(pos, 2),
	})
	root := NewToplevel(pos, nil, body, symbol.Empty{})

	// toplevel + call + two constants = 4
	if got := CountNodes(root); got != 4 {
		t.Fatalf("CountNodes: got %d, want 4", got)
	}
}

func TestGetFrameWalksToEnclosingFrame(t *testing.T) {
	pos := position.Position{}
	leaf := NewConstant(pos, 1)
	wrapped := NewVector(pos, []Node{leaf})
	root := NewToplevel(pos, nil, wrapped, symbol.Empty{})

	if GetFrame(leaf) != Frame(root) {
		t.Fatal("expected GetFrame to walk up to the enclosing Toplevel")
	}
}

func TestGetFramePanicsWithoutAFrame(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected GetFrame to panic on an unrooted node")
		}
	}()
	pos := position.Position{}
	orphan := NewConstant(pos, 1)
	GetFrame(orphan)
}

func TestDebugPrinterRenders(t *testing.T) {
	pos := position.Position{}
	body := NewCondition(pos,
		NewBoolean(pos, true),
		NewConstant(pos, 1),
		NewConstant(pos, 2),
	)
	root := NewToplevel(pos, nil, body, symbol.Empty{})

	p := NewDebugPrinter()
	if _, err := root.Accept(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := p.String()
	if out == "" {
		t.Fatal("expected non-empty debug output")
	}
}
