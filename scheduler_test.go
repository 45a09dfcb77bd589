// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"strings"
	"testing"
)

// tellTwice is a child task that logs two tagged messages and returns its
// tag.
func tellTwice(tag string) *Node {
	return Seq(
		NTell(VString(tag+"1")),
		NTell(VString(tag+"2")),
		NPure(VString(tag)),
	)
}

func TestSpawnGather(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NSpawn(tellTwice("a"), handlers, StoreShared), func(t1 Value) *Node {
		return Bind(NSpawn(tellTwice("x"), handlers, StoreShared), func(t2 Value) *Node {
			return NGather(t1, t2)
		})
	})
	r := testRun(t, vm, p, handlers)
	if !r.OK || r.Value.Kind != KindList || len(r.Value.List) != 2 {
		t.Fatalf("gather = %v (%v)", r.Value, r.Err)
	}
	// Registration order, not completion order.
	if r.Value.List[0].Str != "a" || r.Value.List[1].Str != "x" {
		t.Fatalf("gather order = %v", r.Value.List)
	}

	// Each child's messages appear in order; both children are present.
	log := logStrings(r)
	idx := func(s string) int {
		for i, m := range log {
			if m == s {
				return i
			}
		}
		return -1
	}
	for _, tag := range []string{"a", "x"} {
		first, second := idx(tag+"1"), idx(tag+"2")
		if first < 0 || second < 0 || first > second {
			t.Fatalf("child %q messages out of order: %v", tag, log)
		}
	}
}

func TestGatherSingleton(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NSpawn(NPure(VInt(5)), handlers, StoreShared), func(t1 Value) *Node {
		return NGather(t1)
	})
	mustInt(t, testRun(t, vm, p, handlers), 5)
}

func TestSpawnReturnsTaskHandle(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := NSpawn(NPure(Unit), handlers, StoreShared)
	r := testRun(t, vm, p, handlers)
	if !r.OK || r.Value.Kind != KindTaskHandle {
		t.Fatalf("spawn = %v", r.Value)
	}
}

func TestGatherPropagatesChildFailure(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NSpawn(failing("child boom"), handlers, StoreShared), func(t1 Value) *Node {
		return NGather(t1)
	})
	r := testRun(t, vm, p, handlers)
	if r.OK || !strings.Contains(r.Err.Error(), "child boom") {
		t.Fatalf("expected child failure, got %v / %v", r.Value, r.Err)
	}
}

func TestRaceOnPromise(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NCreatePromise(), func(promise Value) *Node {
		return Bind(NSpawn(NCompletePromise(promise, VInt(5)), handlers, StoreShared), func(Value) *Node {
			return NRace(promise)
		})
	})
	mustInt(t, testRun(t, vm, p, handlers), 5)
}

func TestRaceReturnsFirstResolved(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NSpawn(NPure(VString("fast")), handlers, StoreShared), func(t1 Value) *Node {
		return Bind(NCreatePromise(), func(never Value) *Node {
			return NRace(t1, never)
		})
	})
	mustString(t, testRun(t, vm, p, handlers), "fast")
}

func TestFailPromiseWakesWithError(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NCreatePromise(), func(promise Value) *Node {
		return Bind(NSpawn(NFailPromise(promise, ValueFromError(NewVMError(ErrTypeError, "nope"))), handlers, StoreShared), func(Value) *Node {
			return NGather(promise)
		})
	})
	r := testRun(t, vm, p, handlers)
	if r.OK || !strings.Contains(r.Err.Error(), "nope") {
		t.Fatalf("expected promise failure, got %v / %v", r.Value, r.Err)
	}
}

func TestCompletePromiseTwiceFails(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	p := Bind(NCreatePromise(), func(promise Value) *Node {
		return Seq(
			NSpawn(Seq(NCompletePromise(promise, VInt(1)), NCompletePromise(promise, VInt(2))), handlers, StoreShared),
			NGather(promise),
		)
	})
	r := testRun(t, vm, p, handlers)
	// The first completion wins and wakes the gather; the second completion
	// fails inside the child task, which the parent never observes.
	mustInt(t, r, 1)
}

func TestIsolatedSpawnMergesLogsOnly(t *testing.T) {
	vm := NewVM(0)
	handlers := vm.ConcurrentHandlers()
	child := Seq(
		NPut("y", VInt(9)),
		NTell(VString("c1")),
		NPure(VString("done")),
	)
	p := Bind(NSpawn(child, handlers, StoreIsolated), func(t1 Value) *Node {
		return Then(NGather(t1), NGet("y"))
	})
	r := testRun(t, vm, p, handlers)
	if !r.OK {
		t.Fatalf("run failed: %v", r.Err)
	}
	// Parent state unchanged by the child's Put.
	if r.Value.Kind != KindNone {
		t.Fatalf("parent observed isolated write: %v", r.Value)
	}
	if _, ok := r.Store["y"]; ok {
		t.Fatalf("isolated write leaked into shared store")
	}
	// The child's log merged back.
	log := logStrings(r)
	if len(log) != 1 || log[0] != "c1" {
		t.Fatalf("log = %v, want [c1]", log)
	}
}

func TestIsolatedChildSeesSnapshot(t *testing.T) {
	vm := NewVM(0)
	vm.SeedStore("base", VInt(1))
	handlers := vm.ConcurrentHandlers()
	child := Bind(NGet("base"), func(v Value) *Node { return NPure(VInt(v.Int + 100)) })
	p := Bind(NSpawn(child, handlers, StoreIsolated), func(t1 Value) *Node {
		return NGather(t1)
	})
	mustInt(t, testRun(t, vm, p, handlers), 101)
}
