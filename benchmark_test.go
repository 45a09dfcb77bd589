// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"context"
	"testing"
)

func BenchmarkPureReduction(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		vm := NewVM(0)
		RunProgram(ctx, vm, NPure(VInt(1)), nil, nil)
	}
}

func BenchmarkMapChain(b *testing.B) {
	ctx := context.Background()
	incr := func(v Value) Value { return VInt(v.Int + 1) }
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NPure(VInt(0))
		for j := 0; j < 16; j++ {
			p = Map(p, incr)
		}
		vm := NewVM(0)
		RunProgram(ctx, vm, p, nil, nil)
	}
}

func BenchmarkStateRoundtrip(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		vm := NewVM(0)
		p := Seq(NPut("x", VInt(1)), NGet("x"))
		RunProgram(ctx, vm, p, vm.StandardHandlers(), nil)
	}
}

func BenchmarkDispatchDepth(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		vm := NewVM(0)
		steps := make([]*Node, 0, 8)
		for j := 0; j < 8; j++ {
			steps = append(steps, NTell(VString("m")))
		}
		RunProgram(ctx, vm, Seq(steps...), vm.StandardHandlers(), nil)
	}
}
