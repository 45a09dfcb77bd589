// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"errors"
	"strings"
	"testing"
)

func TestAskReadsEnvironment(t *testing.T) {
	vm := NewVM(0)
	vm.SeedEnv("host", VString("prod"))
	mustString(t, testRun(t, vm, NAsk("host"), vm.StandardHandlers()), "prod")
}

func TestLocalOverridesWithoutMutatingEnv(t *testing.T) {
	vm := NewVM(0)
	vm.SeedEnv("host", VString("prod"))
	p := NLocal(map[string]Value{"host": VString("test")}, NAsk("host"))
	mustString(t, testRun(t, vm, p, vm.StandardHandlers()), "test")

	// The outer binding is untouched afterwards.
	mustString(t, testRun(t, vm, NAsk("host"), vm.StandardHandlers()), "prod")
	if got := vm.Store().Env["host"]; got.Str != "prod" {
		t.Fatalf("env mutated by Local: %v", got)
	}
}

func TestNestedLocal(t *testing.T) {
	vm := NewVM(0)
	vm.SeedEnv("a", VString("outer"))
	vm.SeedEnv("b", VString("outer"))
	inner := NLocal(map[string]Value{"b": VString("inner")},
		Bind(NAsk("a"), func(a Value) *Node {
			return Map(NAsk("b"), func(b Value) Value {
				return VString(a.Str + "/" + b.Str)
			})
		}))
	p := NLocal(map[string]Value{"a": VString("mid")}, inner)
	mustString(t, testRun(t, vm, p, vm.StandardHandlers()), "mid/inner")
}

func TestAskMissingKeyRaises(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NAsk("nope"), vm.StandardHandlers())
	if r.OK {
		t.Fatalf("Ask(nope) succeeded with %v", r.Value)
	}
	var missing *EnvKeyMissingError
	if !errors.As(r.Err, &missing) {
		t.Fatalf("err = %v, want EnvKeyMissingError", r.Err)
	}
	if missing.Key != "nope" {
		t.Fatalf("missing key = %q", missing.Key)
	}
}

func TestLazyAskCachesThunk(t *testing.T) {
	vm := NewVM(0)
	calls := 0
	vm.SeedEnv("expensive", VFunc("compute", func(args []Value) (Value, error) {
		calls++
		return VInt(7), nil
	}))
	handlers := append(vm.LazyAskRefs(), vm.StandardHandlers()...)
	p := Bind(NAsk("expensive"), func(a Value) *Node {
		return Map(NAsk("expensive"), func(b Value) Value {
			return VInt(a.Int + b.Int)
		})
	})
	mustInt(t, testRun(t, vm, p, handlers), 14)
	if calls != 1 {
		t.Fatalf("thunk forced %d times, want 1", calls)
	}
}

func TestLazyAskLocalScopeHasOwnCache(t *testing.T) {
	vm := NewVM(0)
	vm.SeedEnv("k", VString("base"))
	handlers := append(vm.LazyAskRefs(), vm.StandardHandlers()...)
	p := Bind(NLocal(map[string]Value{"k": VString("scoped")}, NAsk("k")), func(inner Value) *Node {
		return Map(NAsk("k"), func(outer Value) Value {
			return VString(inner.Str + "/" + outer.Str)
		})
	})
	mustString(t, testRun(t, vm, p, handlers), "scoped/base")
}

func TestLazyAskPlainValue(t *testing.T) {
	vm := NewVM(0)
	vm.SeedEnv("plain", VInt(3))
	handlers := append(vm.LazyAskRefs(), vm.StandardHandlers()...)
	mustInt(t, testRun(t, vm, NAsk("plain"), handlers), 3)
}

func TestLazyAskMissingKey(t *testing.T) {
	vm := NewVM(0)
	handlers := append(vm.LazyAskRefs(), vm.StandardHandlers()...)
	r := testRun(t, vm, NAsk("ghost"), handlers)
	if r.OK || !strings.Contains(r.Err.Error(), "ghost") {
		t.Fatalf("expected missing-key failure, got %v / %v", r.Value, r.Err)
	}
}
