// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"context"
	"testing"
)

// testRun drives a program to completion with the in-process executor.
func testRun(t *testing.T, vm *VM, program *Node, handlers []HandlerRef) RunResult {
	t.Helper()
	return RunProgram(context.Background(), vm, program, handlers, nil)
}

// mustInt asserts a successful run with an integer result.
func mustInt(t *testing.T, r RunResult, want int64) {
	t.Helper()
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	if r.Value.Kind != KindInt || r.Value.Int != want {
		t.Fatalf("result = %v (%v), want Int %d", r.Value, r.Value.Kind, want)
	}
}

// mustString asserts a successful run with a string result.
func mustString(t *testing.T, r RunResult, want string) {
	t.Helper()
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	if r.Value.Kind != KindString || r.Value.Str != want {
		t.Fatalf("result = %v (%v), want String %q", r.Value, r.Value.Kind, want)
	}
}

func TestPureReducesInOneStep(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NPure(VInt(42)), nil)
	mustInt(t, r, 42)
}

func TestMapIdentityLaw(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, Map(NPure(VInt(7)), func(v Value) Value { return v }), nil)
	mustInt(t, r, 7)
}

func TestFlatMapPureLaw(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, Bind(NPure(VInt(7)), func(v Value) *Node { return NPure(v) }), nil)
	mustInt(t, r, 7)
}

func TestSeqKeepsLastValue(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, Seq(NPure(VInt(1)), NPure(VInt(2)), NPure(VInt(3))), nil)
	mustInt(t, r, 3)

	r = testRun(t, NewVM(0), Seq(), nil)
	if !r.OK || r.Value.Kind != KindUnit {
		t.Fatalf("empty Seq = %v, want Unit", r.Value)
	}
}

func TestMapChain(t *testing.T) {
	vm := NewVM(0)
	double := func(v Value) Value { return VInt(v.Int * 2) }
	r := testRun(t, vm, Map(Map(NPure(VInt(3)), double), double), nil)
	mustInt(t, r, 12)
}

func TestApplyHostFunc(t *testing.T) {
	vm := NewVM(0)
	add := VFunc("add", func(args []Value) (Value, error) {
		return VInt(args[0].Int + args[1].Int), nil
	})
	p := NApply(NPure(add), []*Node{NPure(VInt(2)), NPure(VInt(40))}, nil, nil, false, CallMeta{FunctionName: "add"})
	mustInt(t, testRun(t, vm, p, nil), 42)
}

func TestApplyResolvesExpressionArguments(t *testing.T) {
	vm := NewVM(0)
	add := VFunc("add", func(args []Value) (Value, error) {
		return VInt(args[0].Int + args[1].Int), nil
	})
	// Both arguments are unevaluated sub-programs.
	p := NApply(NPure(add), []*Node{
		Map(NPure(VInt(1)), func(v Value) Value { return VInt(v.Int + 1) }),
		NPure(VInt(40)),
	}, nil, nil, false, CallMeta{FunctionName: "add"})
	mustInt(t, testRun(t, vm, p, nil), 42)
}

func TestExpandRunsReturnedProgram(t *testing.T) {
	vm := NewVM(0)
	factory := VFunc("factory", func(args []Value) (Value, error) {
		return VNode(NPure(VInt(9))), nil
	})
	p := NExpand(NPure(factory), nil, nil, nil, CallMeta{FunctionName: "factory"})
	mustInt(t, testRun(t, vm, p, nil), 9)
}

func TestExpandDrivesHostIterator(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("x", VInt(1))
	step := 0
	it := &HostIterator{}
	it.Next = func() (*Node, *Value, error) {
		step = 1
		return NGet("x"), nil, nil
	}
	it.Send = func(v Value) (*Node, *Value, error) {
		if step == 1 {
			step = 2
			return NPut("x", VInt(v.Int+1)), nil, nil
		}
		ret := VString("done")
		return nil, &ret, nil
	}
	it.Throw = func(exc Value) (*Node, *Value, error) {
		return nil, nil, ErrorFromValue(exc)
	}
	factory := VFunc("gen", func(args []Value) (Value, error) {
		return VIterator(it), nil
	})
	p := NExpand(NPure(factory), nil, nil, nil, CallMeta{FunctionName: "gen"})
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustString(t, r, "done")
	if got := r.Store["x"]; got.Int != 2 {
		t.Fatalf("store x = %v, want 2", got)
	}
}

func TestProgramStreamDrivesIR(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("k", VInt(41))
	stage := 0
	stream := &ProgramStream{}
	stream.Resume = func(v Value) (*Node, *Value, error) {
		switch stage {
		case 0:
			stage = 1
			return NGet("k"), nil, nil
		default:
			ret := VInt(v.Int + 1)
			return nil, &ret, nil
		}
	}
	stream.Throw = func(exc Value) (*Node, *Value, error) {
		return nil, nil, ErrorFromValue(exc)
	}
	factory := VFunc("stream", func(args []Value) (Value, error) {
		return VProgramStream(stream), nil
	})
	p := NExpand(NPure(factory), nil, nil, nil, CallMeta{FunctionName: "stream"})
	mustInt(t, testRun(t, vm, p, vm.StandardHandlers()), 42)
}

func TestAsyncEscape(t *testing.T) {
	vm := NewVM(0)
	aw := VAwaitable("deferred", func(ctx context.Context) (Value, error) {
		return VInt(99), nil
	})
	mustInt(t, testRun(t, vm, NAsyncEscape(aw), nil), 99)
}

func TestAwaitHandler(t *testing.T) {
	vm := NewVM(0)
	aw := VAwaitable("deferred", func(ctx context.Context) (Value, error) {
		return VString("ready"), nil
	})
	p := NAwait(aw)
	mustString(t, testRun(t, vm, p, []HandlerRef{vm.AwaitRef()}), "ready")
}
