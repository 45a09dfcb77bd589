// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"errors"
	"strings"
	"testing"
)

// failing builds a program that throws err when reduced.
func failing(msg string) *Node {
	return MapErr(NPure(Unit), func(Value) (Value, error) {
		return Value{}, errors.New(msg)
	})
}

func TestResultSafeWrapsOk(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NResultSafe(NPure(VInt(5))), vm.StandardHandlers())
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	ok, payload, valid := AsResult(r.Value)
	if !valid || !ok || payload.Int != 5 {
		t.Fatalf("result = %v, want Ok(5)", r.Value)
	}
}

func TestResultSafeWrapsErr(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NResultSafe(failing("boom")), vm.StandardHandlers())
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	ok, payload, valid := AsResult(r.Value)
	if !valid || ok {
		t.Fatalf("result = %v, want Err", r.Value)
	}
	if err := ErrorFromValue(payload); !strings.Contains(err.Error(), "boom") {
		t.Fatalf("payload = %v", err)
	}
}

func TestResultSafeSubProgramSeesHandlerStack(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("x", VInt(41))
	sub := Bind(NGet("x"), func(v Value) *Node { return NPure(VInt(v.Int + 1)) })
	r := testRun(t, vm, NResultSafe(sub), vm.StandardHandlers())
	ok, payload, valid := AsResult(r.Value)
	if !valid || !ok || payload.Int != 42 {
		t.Fatalf("result = %v, want Ok(42)", r.Value)
	}
}

func TestUncaughtExceptionProducesErrorEvent(t *testing.T) {
	vm := NewVM(0)
	vm.EnableTrace()
	r := testRun(t, vm, Seq(NTell(VString("pre")), failing("kaput")), vm.StandardHandlers())
	if r.OK {
		t.Fatalf("expected failure, got %v", r.Value)
	}
	var vmErr *VMError
	if !errors.As(r.Err, &vmErr) || vmErr.Kind != ErrUncaughtException {
		t.Fatalf("err = %v, want UncaughtException", r.Err)
	}
	if !strings.Contains(r.Err.Error(), "kaput") {
		t.Fatalf("cause lost: %v", r.Err)
	}
	if r.Traceback == nil || len(r.Traceback.Entries) == 0 {
		t.Fatalf("expected non-empty trace entries on failure")
	}
}

func TestUnhandledEffect(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NGet("x"), nil)
	if r.OK {
		t.Fatalf("expected unhandled effect, got %v", r.Value)
	}
	if !strings.Contains(r.Err.Error(), "UnhandledEffect") {
		t.Fatalf("err = %v", r.Err)
	}
}

func TestBracketReleasesOnSuccess(t *testing.T) {
	vm := NewVM(0)
	p := Bracket(
		NPut("res", VString("open")),
		func(Value) *Node { return NPure(VInt(1)) },
		func(Value) *Node { return NPut("res", VString("closed")) },
	)
	r := testRun(t, vm, p, vm.StandardHandlers())
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	ok, payload, valid := AsResult(r.Value)
	if !valid || !ok || payload.Int != 1 {
		t.Fatalf("result = %v, want Ok(1)", r.Value)
	}
	if got := r.Store["res"]; got.Str != "closed" {
		t.Fatalf("release did not run: %v", got)
	}
}

func TestBracketReleasesOnFailure(t *testing.T) {
	vm := NewVM(0)
	p := Bracket(
		NPut("res", VString("open")),
		func(Value) *Node { return failing("use failed") },
		func(Value) *Node { return NPut("res", VString("closed")) },
	)
	r := testRun(t, vm, p, vm.StandardHandlers())
	if !r.OK {
		t.Fatalf("bracket should capture the failure: %v", r.Err)
	}
	ok, _, valid := AsResult(r.Value)
	if !valid || ok {
		t.Fatalf("result = %v, want Err", r.Value)
	}
	if got := r.Store["res"]; got.Str != "closed" {
		t.Fatalf("release did not run on failure: %v", got)
	}
}

func TestOnErrorRunsCleanupAndRethrows(t *testing.T) {
	vm := NewVM(0)
	p := OnError(failing("zap"), func(errVal Value) *Node {
		return NTell(VString("cleaned"))
	})
	r := testRun(t, vm, p, vm.StandardHandlers())
	if r.OK {
		t.Fatalf("OnError must rethrow, got %v", r.Value)
	}
	if !strings.Contains(r.Err.Error(), "zap") {
		t.Fatalf("err = %v", r.Err)
	}
	got := logStrings(r)
	if len(got) != 1 || got[0] != "cleaned" {
		t.Fatalf("cleanup log = %v", got)
	}
}

func TestOnErrorPassesThroughSuccess(t *testing.T) {
	vm := NewVM(0)
	p := OnError(NPure(VInt(3)), func(Value) *Node { return NTell(VString("cleaned")) })
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 3)
	if len(r.Log) != 0 {
		t.Fatalf("cleanup ran on success: %v", r.Log)
	}
}
