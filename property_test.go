// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

// Property-style checks: random programs against a reference model.

func TestPropertyStateMatchesModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	keys := []string{"a", "b", "c"}

	for round := 0; round < 50; round++ {
		vm := NewVM(0)
		model := map[string]int64{}

		steps := make([]*Node, 0, 16)
		for i := 0; i < 12; i++ {
			key := keys[rng.IntN(len(keys))]
			switch rng.IntN(3) {
			case 0:
				v := rng.Int64N(1000)
				model[key] = v
				steps = append(steps, NPut(key, VInt(v)))
			case 1:
				steps = append(steps, NGet(key))
			default:
				model[key] = model[key] + 1
				steps = append(steps, NModify(key, VFunc("incr", func(args []Value) (Value, error) {
					if args[0].Kind == KindNone {
						return VInt(1), nil
					}
					return VInt(args[0].Int + 1), nil
				})))
			}
		}
		r := testRun(t, vm, Seq(steps...), vm.StandardHandlers())
		if !r.OK {
			t.Fatalf("round %d failed: %v", round, r.Err)
		}
		for _, k := range keys {
			want, present := model[k]
			got, ok := r.Store[k]
			if !present {
				if ok && got.Kind == KindInt {
					t.Fatalf("round %d: model has no %q but store does: %v", round, k, got)
				}
				continue
			}
			if !ok || got.Kind != KindInt || got.Int != want {
				t.Fatalf("round %d: store[%q] = %v, want %d", round, k, got, want)
			}
		}
	}
}

func TestPropertyWriterOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	for round := 0; round < 50; round++ {
		vm := NewVM(0)
		n := 1 + rng.IntN(10)
		want := make([]string, 0, n)
		steps := make([]*Node, 0, n)
		for i := 0; i < n; i++ {
			msg := fmt.Sprintf("m%d", rng.Int64N(1000))
			want = append(want, msg)
			steps = append(steps, NTell(VString(msg)))
		}
		r := testRun(t, vm, Seq(steps...), vm.StandardHandlers())
		if !r.OK {
			t.Fatalf("round %d failed: %v", round, r.Err)
		}
		got := logStrings(r)
		if len(got) != len(want) {
			t.Fatalf("round %d: log = %v, want %v", round, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("round %d: log[%d] = %q, want %q", round, i, got[i], want[i])
			}
		}
	}
}

func TestPropertyMapIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 100; round++ {
		v := rng.Int64N(1 << 30)
		direct := testRun(t, NewVM(0), NPure(VInt(v)), nil)
		mapped := testRun(t, NewVM(0), Map(NPure(VInt(v)), func(x Value) Value { return x }), nil)
		if !direct.OK || !mapped.OK || direct.Value.Int != mapped.Value.Int {
			t.Fatalf("Map id diverged at %d: %v vs %v", v, direct.Value, mapped.Value)
		}
	}
}

func TestPropertyResumeEquivalence(t *testing.T) {
	// Resume(k, v) followed by the rest of the program must end with the
	// same final value as the program with the effect replaced by v.
	rng := rand.New(rand.NewPCG(5, 6))
	for round := 0; round < 50; round++ {
		v := rng.Int64N(1000)

		vmEff := NewVM(0)
		ref := pingHandlerRef(vmEff, func(eff DispatchEffect, k Value) *Node {
			return NResume(k, VInt(v))
		})
		withEffect := testRun(t, vmEff,
			Map(NPerform(pingEffect()), func(x Value) Value { return VInt(x.Int * 3) }),
			[]HandlerRef{ref})

		plain := testRun(t, NewVM(0),
			Map(NPure(VInt(v)), func(x Value) Value { return VInt(x.Int * 3) }), nil)

		if !withEffect.OK || !plain.OK || withEffect.Value.Int != plain.Value.Int {
			t.Fatalf("resume equivalence broken at %d: %v vs %v", v, withEffect.Value, plain.Value)
		}
	}
}

func TestConsumedIDDoesNotResolveAfterRun(t *testing.T) {
	vm := NewVM(0)
	p := Bind(NCreateContinuation(NPure(VInt(1)), nil), func(k Value) *Node {
		return NResumeContinuation(k, Unit)
	})
	r := testRun(t, vm, p, nil)
	mustInt(t, r, 1)
	// The created continuation was consumed by its activation; its id must
	// not resolve to a live continuation afterwards.
	if c := vm.LookupCont(ContID(1)); c != nil {
		t.Fatalf("consumed continuation still resolvable: %v", c.ID)
	}
}
