// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/flowkernel/kont"
)

// DemoProgram is one named program the CLI can run: a builder producing
// the program node and the handler stack it expects.
type DemoProgram struct {
	Name  string
	Usage string
	Build func(vm *kont.VM) (*kont.Node, []kont.HandlerRef)
}

// programCatalog lists the built-in demos in display order.
func programCatalog() []DemoProgram {
	return []DemoProgram{
		{
			Name:  "state-roundtrip",
			Usage: "Put x=1, increment it via Modify, read it back",
			Build: func(vm *kont.VM) (*kont.Node, []kont.HandlerRef) {
				incr := kont.VFunc("incr", func(args []kont.Value) (kont.Value, error) {
					return kont.VInt(args[0].Int + 1), nil
				})
				p := kont.Seq(
					kont.NPut("x", kont.VInt(1)),
					kont.NModify("x", incr),
					kont.NGet("x"),
				)
				return p, vm.StandardHandlers()
			},
		},
		{
			Name:  "writer-log",
			Usage: "Tell three messages, return 0",
			Build: func(vm *kont.VM) (*kont.Node, []kont.HandlerRef) {
				p := kont.Seq(
					kont.NTell(kont.VString("a")),
					kont.NTell(kont.VString("b")),
					kont.NTell(kont.VString("c")),
					kont.NPure(kont.VInt(0)),
				)
				return p, vm.StandardHandlers()
			},
		},
		{
			Name:  "reader-local",
			Usage: "Ask `host` inside a Local override (seed env: host)",
			Build: func(vm *kont.VM) (*kont.Node, []kont.HandlerRef) {
				p := kont.NLocal(
					map[string]kont.Value{"host": kont.VString("test")},
					kont.NAsk("host"),
				)
				return p, vm.StandardHandlers()
			},
		},
		{
			Name:  "spawn-gather",
			Usage: "Spawn two logging tasks and gather their results",
			Build: func(vm *kont.VM) (*kont.Node, []kont.HandlerRef) {
				handlers := vm.ConcurrentHandlers()
				child := func(tag string) *kont.Node {
					return kont.Seq(
						kont.NTell(kont.VString(tag+"1")),
						kont.NTell(kont.VString(tag+"2")),
						kont.NPure(kont.VString(tag)),
					)
				}
				p := kont.Bind(kont.NSpawn(child("a"), handlers, kont.StoreShared), func(t1 kont.Value) *kont.Node {
					return kont.Bind(kont.NSpawn(child("x"), handlers, kont.StoreShared), func(t2 kont.Value) *kont.Node {
						return kont.NGather(t1, t2)
					})
				})
				return p, handlers
			},
		},
		{
			Name:  "result-safe",
			Usage: "Wrap a failing sub-program as an Err value",
			Build: func(vm *kont.VM) (*kont.Node, []kont.HandlerRef) {
				boom := kont.MapErr(kont.NPure(kont.Unit), func(kont.Value) (kont.Value, error) {
					return kont.Value{}, fmt.Errorf("boom")
				})
				return kont.NResultSafe(boom), vm.StandardHandlers()
			},
		},
	}
}

// lookupProgram finds a demo by name.
func lookupProgram(name string) (DemoProgram, bool) {
	for _, p := range programCatalog() {
		if p.Name == name {
			return p, true
		}
	}
	return DemoProgram{}, false
}
