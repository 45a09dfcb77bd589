// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package kont implements a stepwise virtual machine for effectful
// programs with delimited continuations, prompt-based effect dispatch,
// handler forwarding, interceptors, and cooperative scheduling.
//
// Programs are trees of IR nodes (Node, tagged by a byte discriminator)
// built either by a host translation layer or with the combinators in
// this package (NPure, Bind, Map, Then, NPerform, ...). The VM interprets
// one node at a time over an arena of segments — units of dynamic control
// flow, each with its own frame stack and mode — and suspends only when a
// step needs the embedding host: calling a host function, forcing a host
// thunk, driving a host generator, or awaiting a host future.
//
// # Driving a run
//
//	vm := kont.NewVM(0)
//	result := kont.RunProgram(ctx, vm, program, vm.StandardHandlers(), nil)
//
// or, for hosts that interleave their own work between steps:
//
//	ev := vm.BeginRun(ctx, program, handlers)
//	for {
//	    switch ev.Kind {
//	    case kont.EventDone, kont.EventError:
//	        ...
//	    case kont.EventNeedsExternal:
//	        ev = vm.ReceiveExternalResult(ctx, host.Execute(*ev.Call))
//	    }
//	}
//
// # Handlers
//
// Effects performed by a program are answered by handlers installed with
// WithHandler nodes or passed to BeginRun. A handler observes the effect
// together with a one-shot continuation of the requester and decides to
// resume it, transfer to it, forward the effect outward (Delegate/Pass),
// or return a value of its own at the prompt. Two flavours exist: native
// handlers are small Go state machines (NativeHandler); IR-program
// handlers are host callables returning a program (IRHandler). The
// built-ins — State, Reader, Writer, ResultSafe, LazyAsk, Await and the
// cooperative Scheduler — are all native handlers built from the same
// public primitives.
//
// # One-shot continuations
//
// A captured continuation may be activated at most once; a second
// activation raises an OneShotViolation error without corrupting segment
// state. Consumed ids stay consumed for the rest of the run.
//
// Each VM instance owns all of its state and must be driven from one
// goroutine at a time; independent VM instances share nothing and may run
// concurrently.
package kont
