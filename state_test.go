// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "testing"

func incrFunc() Value {
	return VFunc("incr", func(args []Value) (Value, error) {
		return VInt(args[0].Int + 1), nil
	})
}

func TestStateRoundtrip(t *testing.T) {
	vm := NewVM(0)
	p := Seq(
		NPut("x", VInt(1)),
		NModify("x", incrFunc()),
		NGet("x"),
	)
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 2)
	if got := r.Store["x"]; got.Kind != KindInt || got.Int != 2 {
		t.Fatalf("store[x] = %v, want 2", got)
	}
}

func TestModifyReturnsOldValue(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("n", VInt(10))
	r := testRun(t, vm, NModify("n", incrFunc()), vm.StandardHandlers())
	mustInt(t, r, 10)
	if got := r.Store["n"]; got.Int != 11 {
		t.Fatalf("store[n] = %v, want 11", got)
	}
}

func TestGetMissingKeyIsNone(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NGet("absent"), vm.StandardHandlers())
	if !r.OK || r.Value.Kind != KindNone {
		t.Fatalf("Get(absent) = %v, want None", r.Value)
	}
}

func TestPutReturnsUnit(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NPut("k", VString("v")), vm.StandardHandlers())
	if !r.OK || r.Value.Kind != KindUnit {
		t.Fatalf("Put = %v, want Unit", r.Value)
	}
}

func TestModifyWithFailingModifier(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("n", VInt(1))
	boom := VFunc("boom", func(args []Value) (Value, error) {
		return Value{}, NewVMError(ErrTypeError, "modifier exploded")
	})
	r := testRun(t, vm, NResultSafe(NModify("n", boom)), vm.StandardHandlers())
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	ok, _, valid := AsResult(r.Value)
	if !valid || ok {
		t.Fatalf("expected Err result, got %v", r.Value)
	}
	if got := r.Store["n"]; got.Int != 1 {
		t.Fatalf("failed modify must not write; store[n] = %v", got)
	}
}
