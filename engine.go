// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// runLoop is the VM's step trampoline: it repeatedly transitions the
// current segment's Mode until a host round trip is needed or the run
// concludes. Pop one unit of pending work, act, loop — over a tree of
// segments that can fork (WithHandler, Spawn) and splice
// (Resume/Transfer/Delegate).
func (vm *VM) runLoop(ctx context.Context) Event {
	for {
		seg, ok := vm.arena.Get(vm.current)
		if !ok {
			return vm.errorEvent(NewVMError(ErrInternalInvariant, "no current segment"))
		}
		var halt bool
		var ev Event
		switch seg.Mode.Kind {
		case ModeDeliver:
			halt, ev = vm.stepDeliver(ctx, seg, seg.Mode.Value)
		case ModeThrow:
			halt, ev = vm.stepThrow(ctx, seg, seg.Mode.Exc)
		case ModeReturn:
			halt, ev = vm.stepReturnMode(ctx, seg, seg.Mode.Value)
		case ModeHandleYield:
			halt, ev = vm.stepHandleYield(ctx, seg, seg.Mode.Node)
		}
		if halt {
			return ev
		}
	}
}

func contEv() (bool, Event) { return false, Event{} }
func haltEv(e Event) (bool, Event) { return true, e }

// --- Deliver -----------------------------------------------------------

// stepDeliver feeds v into the current segment's top frame, or — if the
// frame stack is empty — transitions to Return.
func (vm *VM) stepDeliver(ctx context.Context, seg *Segment, v Value) (bool, Event) {
	if !seg.HasFrames() {
		seg.Mode = ReturnMode(v)
		return contEv()
	}
	f := seg.PopFrame()
	switch fr := f.(type) {
	case *ProgramStreamFrame:
		if fr.Stream == nil {
			return true, vm.pendExternal(seg, PendingExternal{
				Call:      ExternalCall{Kind: CallIterSend, Iterator: fr.Iterator, SendVal: v},
				IterFrame: fr,
			})
		}
		yield, ret, err := fr.Stream.Resume(v)
		return vm.resumeStream(seg, fr, yield, ret, err)

	case *EvalReturnFrame:
		return vm.continueEvalReturn(ctx, seg, fr, v)

	case *MapReturnFrame:
		result, err := fr.Mapper([]Value{v})
		if err != nil {
			seg.Mode = ThrowMode(ValueFromError(err))
		} else {
			seg.Mode = DeliverMode(result)
		}
		return contEv()

	case *FlatMapBindSourceFrame:
		seg.PushFrame(&FlatMapBindResultFrame{})
		seg.Mode = HandleYieldMode(fr.Binder(v))
		return contEv()

	case *FlatMapBindResultFrame:
		seg.Mode = DeliverMode(v)
		return contEv()

	case *HandlerDispatchFrame:
		// Forwards the value to the handler-return path, which closes the
		// dispatch and resumes the caller. A plain IR-program handler's
		// final value finalizes through InterceptBodyReturnFrame below.
		return vm.handleHandlerReturn(ctx, seg, fr.DispatchID, DeliverMode(v))

	case *InterceptorApplyFrame:
		return vm.applyInterceptorResult(seg, fr.InterceptorMarker, v)

	case *InterceptorEvalFrame:
		if fr.Reclassify {
			if node, ok := NodeFromValue(v); ok {
				// The interceptor's program evaluated to an IR node:
				// that node is the transformed yield. Guard state stays
				// held until it resolves.
				seg.PushFrame(&InterceptorEvalFrame{InterceptorMarker: fr.InterceptorMarker})
				seg.Mode = HandleYieldMode(node)
				return contEv()
			}
		}
		popSkip(seg)
		leaveEval(seg)
		seg.Mode = DeliverMode(v)
		return contEv()

	case *InterceptBodyReturnFrame:
		if !inEval(seg) && seg.DispatchID != nil {
			return vm.handleHandlerReturn(ctx, seg, *seg.DispatchID, DeliverMode(v))
		}
		// A trailing interceptor-driven evaluation owns this segment's
		// guard depth:
		// this segment is not the one that finalizes the dispatch, so just
		// let the value keep propagating toward its caller.
		seg.Mode = DeliverMode(v)
		return contEv()

	case *NativeHandlerStepFrame:
		result := fr.Program.Resume(v, vm.storeFor(seg))
		return vm.applyHandlerResult(ctx, seg, fr.DispatchID, fr.Program, result)

	default:
		return haltEv(Event{Kind: EventError, Err: NewVMError(ErrInternalInvariant, "unknown frame kind")})
	}
}

func (vm *VM) resumeStream(seg *Segment, fr *ProgramStreamFrame, yield *Node, ret *Value, err error) (bool, Event) {
	switch {
	case err != nil:
		seg.Mode = ThrowMode(ValueFromError(err))
	case ret != nil:
		seg.Mode = DeliverMode(*ret)
	case yield != nil:
		seg.PushFrame(fr)
		seg.Mode = HandleYieldMode(yield)
	default:
		seg.Mode = ReturnMode(Unit)
	}
	return contEv()
}

// --- Throw ---------------------------------------------------------------

// stepThrow unwinds frames looking for one capable of reacting to an
// exception; ordinary value-shaped frames (Map/FlatMap bind points, eval
// return slots) simply let it pass through: only dispatch/handler
// machinery and streams observe exceptions, everything else is
// exception-transparent.
func (vm *VM) stepThrow(ctx context.Context, seg *Segment, exc Value) (bool, Event) {
	if !seg.HasFrames() {
		seg.Mode = ThrowMode(exc) // becomes a Return-shaped unwind at the segment boundary
		return vm.unwindSegment(ctx, seg, exc, true)
	}
	f := seg.PopFrame()
	switch fr := f.(type) {
	case *ProgramStreamFrame:
		if fr.Stream == nil {
			return true, vm.pendExternal(seg, PendingExternal{
				Call:      ExternalCall{Kind: CallIterThrow, Iterator: fr.Iterator, ThrowVal: exc},
				IterFrame: fr,
			})
		}
		yield, ret, err := fr.Stream.Throw(exc)
		return vm.resumeStream(seg, fr, yield, ret, err)
	case *HandlerDispatchFrame:
		seg.Mode = ThrowMode(exc)
	case *InterceptorApplyFrame:
		popSkip(seg)
		seg.Mode = ThrowMode(exc)
	case *InterceptorEvalFrame:
		popSkip(seg)
		leaveEval(seg)
		seg.Mode = ThrowMode(exc)
	case *InterceptBodyReturnFrame:
		if !inEval(seg) && seg.DispatchID != nil {
			return vm.handleHandlerReturn(ctx, seg, *seg.DispatchID, ThrowMode(exc))
		}
		seg.Mode = ThrowMode(exc)
	case *NativeHandlerStepFrame:
		result := fr.Program.Throw(exc, vm.storeFor(seg))
		return vm.applyHandlerResult(ctx, seg, fr.DispatchID, fr.Program, result)
	default:
		seg.Mode = ThrowMode(exc)
	}
	return contEv()
}

// unwindSegment propagates a value (isExc == false) or exception
// (isExc == true) out of seg, which has no frames left, to its caller —
// or concludes the run/task if seg is a root.
func (vm *VM) unwindSegment(ctx context.Context, seg *Segment, v Value, isExc bool) (bool, Event) {
	caller := seg.Caller
	owningTask := seg.OwningTask
	id := seg.ID
	vm.arena.ReparentChildren(id, caller)
	vm.arena.Free(id)

	if owningTask != nil {
		return vm.finishTask(ctx, *owningTask, v, isExc)
	}
	if caller == nil {
		if isExc {
			return haltEv(vm.errorEvent(NewVMError(ErrUncaughtException, "uncaught exception").WithCause(ErrorFromValue(v))))
		}
		return haltEv(Event{Kind: EventDone, Result: v})
	}
	callerSeg, ok := vm.arena.Get(*caller)
	if !ok {
		return haltEv(Event{Kind: EventError, Err: NewVMError(ErrInternalInvariant, "caller segment missing")})
	}
	if isExc {
		callerSeg.Mode = ThrowMode(v)
	} else {
		callerSeg.Mode = DeliverMode(v)
	}
	vm.current = callerSeg.ID
	return contEv()
}

// finishTask records a spawned task's outcome with the scheduler, merges
// an isolated task's log back into the shared store, wakes any
// Gather/Race waiters, and transfers control through transferNextOr (a
// queued wakeup or the next ready task, else an invariant error).
func (vm *VM) finishTask(ctx context.Context, id TaskID, v Value, isExc bool) (bool, Event) {
	if t, ok := vm.sched.Task(id); ok && t.Store != nil {
		vm.store.MergeLogOnly(t.Store)
	}
	var woken []*waiter
	if isExc {
		woken = vm.sched.FailTask(id, v)
	} else {
		woken = vm.sched.CompleteTask(id, v)
	}
	for _, w := range woken {
		vm.resumeWaiter(w)
	}
	return vm.transferNextOr(ctx)
}

// transferNextOr switches vm.current to a queued waiter wakeup or the
// next ready scheduled task. With neither available every chain is parked
// on something nobody can complete — a cooperative deadlock, surfaced as
// a driver-level error rather than a silent hang.
func (vm *VM) transferNextOr(ctx context.Context) (bool, Event) {
	if cont, mode, ok := vm.sched.PopContinuationActivation(); ok {
		return vm.activateContinuation(cont, mode)
	}
	if next, ok := vm.sched.PopReady(); ok {
		if t, ok := vm.sched.Task(next); ok {
			vm.current = t.RootSegment
			return contEv()
		}
	}
	return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "no runnable task: all chains parked")))
}

// resumeWaiter queues a completed Gather/Race's outcome for delivery into
// the continuation that was blocked on it, as a thrown exception if the
// awaited task/promise failed. The
// actual segment switch happens later, in transferNextOr, since several
// waiters may wake in the same step and only one can become vm.current.
func (vm *VM) resumeWaiter(w *waiter) {
	cont, ok := vm.conts[w.Cont]
	if !ok {
		return
	}
	if w.Failed {
		vm.sched.QueueContinuationActivation(cont, ThrowMode(w.ErrVal))
		return
	}
	var result Value
	switch {
	case w.Race:
		result = w.Results[0]
	case len(w.Results) == 1:
		// Gather of a single item yields the value itself, not a
		// singleton list.
		result = w.Results[0]
	default:
		result = VList(w.Results)
	}
	vm.sched.QueueContinuationActivation(cont, DeliverMode(result))
}

// --- Return --------------------------------------------------------------

func (vm *VM) stepReturnMode(ctx context.Context, seg *Segment, v Value) (bool, Event) {
	return vm.unwindSegment(ctx, seg, v, false)
}

// storeFor returns the store a segment's native handlers should use:
// the VM-shared store unless the segment belongs to a StoreIsolated task.
func (vm *VM) storeFor(seg *Segment) *Store {
	chain := ActiveChain(vm.arena, seg.ID)
	if n := len(chain); n > 0 {
		if root, ok := vm.arena.Get(chain[n-1]); ok && root.OwningTask != nil {
			if t, ok := vm.sched.Task(*root.OwningTask); ok && t.Store != nil {
				return t.Store
			}
		}
	}
	return vm.store
}
