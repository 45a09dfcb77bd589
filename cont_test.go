// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"strings"
	"testing"
)

// pingEffect is an opaque host effect used to exercise handler plumbing.
func pingEffect() DispatchEffect {
	return HostEffect(NewHostObject("Ping", nil))
}

// pingHandlerRef installs an IR-program handler for Ping built from fn.
func pingHandlerRef(vm *VM, fn func(eff DispatchEffect, k Value) *Node) HandlerRef {
	h := &IRHandler{
		NameStr:  "Ping",
		DebugStr: "test ping handler",
		Matches:  MatchTypeNames("Ping"),
		Callable: fn,
	}
	return vm.NewHandlerRef(h.NameStr, h.DebugStr, h)
}

// doubleResumeProgram activates the same continuation twice.
type doubleResumeProgram struct {
	step int
	k    Value
}

func (*doubleResumeProgram) CanHandle(eff DispatchEffect) bool {
	_, ok := HostEffectOf(eff, "Ping")
	return ok
}
func (*doubleResumeProgram) Name() string                         { return "DoubleResume" }
func (*doubleResumeProgram) DebugInfo() string                    { return "resumes twice on purpose" }
func (*doubleResumeProgram) SupportsErrorContextConversion() bool { return false }

func (p *doubleResumeProgram) Start(eff DispatchEffect, k Value, _ *Store) HandlerResult {
	p.k = k
	p.step = 1
	return Yield(NResume(k, VInt(1)))
}

func (p *doubleResumeProgram) Resume(v Value, _ *Store) HandlerResult {
	if p.step == 1 {
		p.step = 2
		return Yield(NResume(p.k, VInt(2)))
	}
	return ReturnResult(v)
}

func (p *doubleResumeProgram) Throw(exc Value, _ *Store) HandlerResult {
	return ThrowResult(exc)
}

func TestOneShotViolationPropagates(t *testing.T) {
	vm := NewVM(0)
	ref := vm.NewHandlerRef("DoubleResume", "", NewNativeHandler(func() NativeHandler {
		return &doubleResumeProgram{}
	}))
	r := testRun(t, vm, NPerform(pingEffect()), []HandlerRef{ref})
	if r.OK {
		t.Fatalf("expected one-shot violation, got %v", r.Value)
	}
	if !strings.Contains(r.Err.Error(), "OneShotViolation") {
		t.Fatalf("err = %v, want OneShotViolation", r.Err)
	}
}

func TestResumeOnUnstartedContinuation(t *testing.T) {
	vm := NewVM(0)
	p := Bind(NCreateContinuation(NPure(VInt(1)), nil), func(k Value) *Node {
		return NResume(k, Unit)
	})
	r := testRun(t, vm, p, nil)
	if r.OK || !strings.Contains(r.Err.Error(), "ResumeContinuation") {
		t.Fatalf("expected unstarted-resume failure, got %v / %v", r.Value, r.Err)
	}
}

func TestTransferOnUnstartedContinuation(t *testing.T) {
	vm := NewVM(0)
	p := Bind(NCreateContinuation(NPure(VInt(1)), nil), func(k Value) *Node {
		return NTransfer(k, Unit)
	})
	r := testRun(t, vm, p, nil)
	if r.OK || !strings.Contains(r.Err.Error(), "ResumeContinuation") {
		t.Fatalf("expected unstarted-transfer failure, got %v / %v", r.Value, r.Err)
	}
}

func TestResumeContinuationStartsUnstarted(t *testing.T) {
	vm := NewVM(0)
	p := Bind(NCreateContinuation(NPure(VInt(7)), nil), func(k Value) *Node {
		return NResumeContinuation(k, Unit)
	})
	mustInt(t, testRun(t, vm, p, nil), 7)
}

func TestResumeContinuationInstallsHandlers(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("x", VInt(3))
	p := Bind(NCreateContinuation(NGet("x"), vm.StandardHandlers()), func(k Value) *Node {
		return NResumeContinuation(k, Unit)
	})
	mustInt(t, testRun(t, vm, p, nil), 3)
}

func TestResumeContinuationTwice(t *testing.T) {
	vm := NewVM(0)
	p := Bind(NCreateContinuation(NPure(VInt(7)), nil), func(k Value) *Node {
		return Then(NResumeContinuation(k, Unit), NResumeContinuation(k, Unit))
	})
	r := testRun(t, vm, p, nil)
	if r.OK || !strings.Contains(r.Err.Error(), "OneShotViolation") {
		t.Fatalf("expected one-shot failure, got %v / %v", r.Value, r.Err)
	}
}

func TestGetContinuationInsideHandler(t *testing.T) {
	vm := NewVM(0)
	ref := pingHandlerRef(vm, func(eff DispatchEffect, k Value) *Node {
		return Bind(NGetContinuation(), func(k2 Value) *Node {
			return NResume(k2, VInt(3))
		})
	})
	mustInt(t, testRun(t, vm, NPerform(pingEffect()), []HandlerRef{ref}), 3)
}

func TestGetContinuationOutsideDispatch(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NGetContinuation(), vm.StandardHandlers())
	if r.OK || !strings.Contains(r.Err.Error(), "TypeError") {
		t.Fatalf("expected TypeError, got %v / %v", r.Value, r.Err)
	}
}

func TestEvalRunsUnderAmbientChain(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("x", VInt(9))
	p := NEval(NGet("x"), nil)
	mustInt(t, testRun(t, vm, p, vm.StandardHandlers()), 9)
}

func TestGetCallStackCollectsMetadata(t *testing.T) {
	vm := NewVM(0)
	p := Map(NGetCallStack(), func(v Value) Value { return v })
	r := testRun(t, vm, p, nil)
	if !r.OK || r.Value.Kind != KindCallStack {
		t.Fatalf("result = %v", r.Value)
	}
	if len(r.Value.CallStack) == 0 {
		t.Fatalf("expected at least one call stack entry")
	}
	if r.Value.CallStack[0].FunctionName != "Map" {
		t.Fatalf("top frame = %q, want Map", r.Value.CallStack[0].FunctionName)
	}
}

func TestTransferDropsActivatingChain(t *testing.T) {
	vm := NewVM(0)
	// The handler transfers instead of resuming: the requester continues,
	// and the handler segment is gone, so the program's value is the final
	// result as-is.
	ref := pingHandlerRef(vm, func(eff DispatchEffect, k Value) *Node {
		return NTransfer(k, VInt(11))
	})
	p := Map(NPerform(pingEffect()), func(v Value) Value { return VInt(v.Int + 1) })
	mustInt(t, testRun(t, vm, p, []HandlerRef{ref}), 12)
}

func TestGetTraceback(t *testing.T) {
	vm := NewVM(0)
	ref := pingHandlerRef(vm, func(eff DispatchEffect, k Value) *Node {
		return Bind(NGetTraceback(k), func(tb Value) *Node {
			return NResume(k, tb)
		})
	})
	r := testRun(t, vm, Map(NPerform(pingEffect()), func(v Value) Value { return v }), []HandlerRef{ref})
	if !r.OK || r.Value.Kind != KindList {
		t.Fatalf("traceback = %v (%v)", r.Value, r.Value.Kind)
	}
	if len(r.Value.List) == 0 {
		t.Fatalf("expected at least one traceback link")
	}
}
