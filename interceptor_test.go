// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "testing"

// rewriteTell is an interceptor that replaces every Tell message with
// replacement. It returns transformed Tell nodes — themselves Tells — so
// a missing skip guard would re-intercept forever.
func rewriteTell(t *testing.T, replacement string, calls *int) Value {
	return VFunc("rewriteTell", func(args []Value) (Value, error) {
		*calls++
		if *calls > 100 {
			t.Fatalf("interceptor re-entered its own yield")
		}
		n, ok := NodeFromValue(args[0])
		if !ok {
			t.Fatalf("interceptor got a non-node argument")
		}
		if n.Tag == TagPerform && n.Effect.TypeName() == "Tell" {
			return VNode(NTell(VString(replacement))), nil
		}
		return VNode(n), nil
	})
}

func TestInterceptorRewritesYield(t *testing.T) {
	vm := NewVM(0)
	calls := 0
	p := NWithIntercept(rewriteTell(t, "X", &calls), []string{"Tell"}, "Delegate",
		Seq(NTell(VString("a")), NPure(VInt(1))))
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 1)
	log := logStrings(r)
	if len(log) != 1 || log[0] != "X" {
		t.Fatalf("log = %v, want [X]", log)
	}
	if calls != 1 {
		t.Fatalf("interceptor ran %d times, want 1", calls)
	}
}

func TestInterceptorTypeFilter(t *testing.T) {
	vm := NewVM(0)
	calls := 0
	// Filtered to Ask: Tell yields pass through untouched.
	p := NWithIntercept(rewriteTell(t, "X", &calls), []string{"Ask"}, "Delegate",
		Seq(NTell(VString("a")), NPure(VInt(1))))
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 1)
	log := logStrings(r)
	if len(log) != 1 || log[0] != "a" {
		t.Fatalf("log = %v, want [a]", log)
	}
	if calls != 0 {
		t.Fatalf("interceptor ran %d times, want 0", calls)
	}
}

func TestInterceptorScopeEnds(t *testing.T) {
	vm := NewVM(0)
	calls := 0
	p := Then(
		NWithIntercept(rewriteTell(t, "X", &calls), []string{"Tell"}, "Delegate", NTell(VString("in"))),
		NTell(VString("out")),
	)
	r := testRun(t, vm, p, vm.StandardHandlers())
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	log := logStrings(r)
	if len(log) != 2 || log[0] != "X" || log[1] != "out" {
		t.Fatalf("log = %v, want [X out]", log)
	}
}

func TestInterceptorReturningProgram(t *testing.T) {
	vm := NewVM(0)
	// The interceptor answers with a program; the program's value is
	// re-classified as the replacement yield.
	interceptor := VFunc("viaProgram", func(args []Value) (Value, error) {
		done := false
		stream := &ProgramStream{}
		stream.Resume = func(v Value) (*Node, *Value, error) {
			if done {
				ret := VNode(NTell(VString("Y")))
				return nil, &ret, nil
			}
			done = true
			ret := VNode(NTell(VString("Y")))
			return nil, &ret, nil
		}
		stream.Throw = func(exc Value) (*Node, *Value, error) {
			return nil, nil, ErrorFromValue(exc)
		}
		return VProgramStream(stream), nil
	})
	p := NWithIntercept(interceptor, []string{"Tell"}, "Delegate",
		Seq(NTell(VString("a")), NPure(VInt(2))))
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 2)
	log := logStrings(r)
	if len(log) != 1 || log[0] != "Y" {
		t.Fatalf("log = %v, want [Y]", log)
	}
}

func TestInterceptorBadResultIsTypeError(t *testing.T) {
	vm := NewVM(0)
	interceptor := VFunc("bad", func(args []Value) (Value, error) {
		return VInt(42), nil
	})
	p := NWithIntercept(interceptor, []string{"Tell"}, "Delegate", NTell(VString("a")))
	r := testRun(t, vm, p, vm.StandardHandlers())
	if r.OK {
		t.Fatalf("expected type error, got %v", r.Value)
	}
}

func TestHandlerReturningProgramAutoEvaluates(t *testing.T) {
	vm := NewVM(0)
	// The handler's body evaluates to an IR expression; the engine runs it
	// and its value resolves the effect.
	ref := pingHandlerRef(vm, func(eff DispatchEffect, k Value) *Node {
		return NPure(VNode(Map(NPure(VInt(4)), func(v Value) Value {
			return VInt(v.Int + 5)
		})))
	})
	p := Map(NPerform(pingEffect()), func(v Value) Value { return VInt(v.Int + 1) })
	mustInt(t, testRun(t, vm, p, []HandlerRef{ref}), 10)
}

func TestInterceptorSurvivesHandlerBoundary(t *testing.T) {
	vm := NewVM(0)
	calls := 0
	// The intercepted scope installs a nested handler; yields inside the
	// nested body still see the interceptor through guard inheritance.
	inner := NWithHandler(vm.WriterRef(), Seq(NTell(VString("deep")), NPure(VInt(3))), "")
	p := NWithIntercept(rewriteTell(t, "X", &calls), []string{"Tell"}, "Delegate", inner)
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 3)
	log := logStrings(r)
	if len(log) != 1 || log[0] != "X" {
		t.Fatalf("log = %v, want [X]", log)
	}
	if calls != 1 {
		t.Fatalf("interceptor ran %d times, want 1", calls)
	}
}
