// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "testing"

func logStrings(r RunResult) []string {
	out := make([]string, 0, len(r.Log))
	for _, v := range r.Log {
		out = append(out, v.Str)
	}
	return out
}

func TestWriterPreservesTellOrder(t *testing.T) {
	vm := NewVM(0)
	p := Seq(
		NTell(VString("a")),
		NTell(VString("b")),
		NTell(VString("c")),
		NPure(VInt(0)),
	)
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 0)
	got := logStrings(r)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTellResumesWithUnit(t *testing.T) {
	vm := NewVM(0)
	r := testRun(t, vm, NTell(VString("x")), vm.StandardHandlers())
	if !r.OK || r.Value.Kind != KindUnit {
		t.Fatalf("Tell = %v, want Unit", r.Value)
	}
}

func TestLogSurvivesInterleavedState(t *testing.T) {
	vm := NewVM(0)
	p := Seq(
		NTell(VString("before")),
		NPut("x", VInt(1)),
		NTell(VString("after")),
		NGet("x"),
	)
	r := testRun(t, vm, p, vm.StandardHandlers())
	mustInt(t, r, 1)
	got := logStrings(r)
	if len(got) != 2 || got[0] != "before" || got[1] != "after" {
		t.Fatalf("log = %v", got)
	}
}
