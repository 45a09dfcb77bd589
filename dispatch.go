// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// Effect dispatch: the caller-chain walk that finds a handler for a
// performed effect, the delegate/pass forwarding that moves a live
// dispatch outward through the chain, and the return path that closes a
// dispatch and delivers the handler's value at the prompt.

// handlerCandidate pairs one eligible handler with the prompt segment it
// was found at.
type handlerCandidate struct {
	ref    HandlerRef
	prompt SegmentID
}

// lookupChain walks seg's caller chain outward for handler lookup. A
// segment carrying a handler-lookup anchor redirects the walk there
// instead of following its own Caller: a segment rebuilt from a
// continuation snapshot, or an Eval issued from inside a handler,
// dispatches against the chain it was captured under rather than whatever
// chain the activation site happens to sit on. The value-return path
// always follows Caller and is unaffected.
func (vm *VM) lookupChain(seg *Segment, visit func(*Segment)) {
	cur := seg
	seen := make(map[SegmentID]bool)
	for cur != nil && !seen[cur.ID] {
		seen[cur.ID] = true
		visit(cur)
		next := cur.Caller
		if cur.AnchorSegment != nil {
			next = cur.AnchorSegment
		}
		if next == nil {
			break
		}
		n, ok := vm.arena.Get(*next)
		if !ok {
			break
		}
		cur = n
	}
}

// handlerCandidates collects the prompt boundaries visible from seg whose
// handler is not currently busy, innermost first.
func (vm *VM) handlerCandidates(seg *Segment) []handlerCandidate {
	var out []handlerCandidate
	vm.lookupChain(seg, func(cur *Segment) {
		if cur.Kind == KindPromptBoundary && cur.Prompt.Handler != nil && !vm.busy.Contains(cur.Prompt.HandledMarker) {
			out = append(out, handlerCandidate{
				ref: HandlerRef{
					Marker:  cur.Prompt.HandledMarker,
					Name:    cur.Prompt.Handler.Name(),
					Debug:   cur.Prompt.Handler.DebugInfo(),
					Handler: cur.Prompt.Handler,
				},
				prompt: cur.ID,
			})
		}
	})
	return out
}

// visibleHandlers is the GetHandlers view: every handler installed on the
// chain, busy or not, in caller order.
func (vm *VM) visibleHandlers(seg *Segment) []HandlerRef {
	var out []HandlerRef
	vm.lookupChain(seg, func(cur *Segment) {
		if cur.Kind == KindPromptBoundary && cur.Prompt.Handler != nil {
			out = append(out, HandlerRef{
				Marker:  cur.Prompt.HandledMarker,
				Name:    cur.Prompt.Handler.Name(),
				Debug:   cur.Prompt.Handler.DebugInfo(),
				Handler: cur.Prompt.Handler,
			})
		}
	})
	return out
}

// startDispatch begins handling an effect performed by seg: capture the
// user continuation, select the innermost matching non-busy handler, run
// it in a fresh handler segment parented at its prompt.
func (vm *VM) startDispatch(ctx context.Context, seg *Segment, eff DispatchEffect) (bool, Event) {
	cands := vm.handlerCandidates(seg)
	sel := -1
	for i, c := range cands {
		if c.ref.Handler.CanHandle(eff) {
			sel = i
			break
		}
	}
	if sel < 0 {
		if seg.PendingError.Active {
			// The effect was raised while converting an exception's
			// context; with nobody to answer it, the original exception
			// wins.
			seg.Mode = ThrowMode(seg.PendingError.Original)
			seg.PendingError = PendingErrorContext{}
			return contEv()
		}
		seg.Mode = ThrowMode(ValueFromError(unhandledEffectError(eff)))
		return contEv()
	}

	did := vm.ids.NextDispatchID()
	kid := vm.ids.NextContID()
	kUser := CaptureContinuation(kid, seg, &did)
	vm.conts[kid] = kUser
	kVal := VContinuation(kUser)

	refs := make([]HandlerRef, len(cands))
	prompts := make([]SegmentID, len(cands))
	for i, c := range cands {
		refs[i] = c.ref
		prompts[i] = c.prompt
	}
	d := vm.dispatch.StartDispatch(did, eff, refs, prompts, kVal)
	d.HandlerIndex = sel
	d.PromptSegmentID = prompts[sel]
	d.PerformSegment = seg.ID
	if eff.IsExecutionContextEffect {
		d.IsExecutionContextEffect = true
		if seg.PendingError.Active {
			orig := seg.PendingError.Original
			d.OriginalException = &orig
		}
	}
	vm.busy.Add(refs[sel].Marker)
	d.BusyMarkers = append(d.BusyMarkers, refs[sel].Marker)
	vm.traceEvent(TraceDispatchStarted, seg.ID, eff.TypeName(), refs[sel].Name)

	return vm.runHandlerLink(ctx, d, refs[sel], prompts[sel], eff, kVal, seg)
}

// runHandlerLink allocates the handler segment for one link of the chain
// and feeds it the handler's first step. parentGuard supplies inherited
// interceptor guard state; caller is the new segment's caller.
func (vm *VM) runHandlerLink(ctx context.Context, d *DispatchContext, ref HandlerRef, caller SegmentID, eff DispatchEffect, kVal Value, parentGuard *Segment) (bool, Event) {
	hid := vm.ids.NextSegmentID()
	callerID := caller
	hseg := NewSegment(hid, vm.ids.NextMarker(), &callerID)
	hseg.CopyInterceptorGuard(parentGuard)
	did := d.ID
	hseg.DispatchID = &did
	vm.arena.Alloc(hseg)
	vm.current = hid

	res := ref.Handler.Invoke(eff, kVal, vm.storeFor(hseg))
	if res.nativeProgram == nil {
		// IR-program handlers run their body as ordinary frames; the
		// bottom frame routes the body's final value through the
		// handler-return path instead of a plain segment unwind.
		hseg.PushFrame(&InterceptBodyReturnFrame{Marker: hseg.Marker})
	}
	return vm.applyHandlerResult(ctx, hseg, did, res.nativeProgram, res)
}

// applyHandlerResult routes one step of a handler (its first Invoke, a
// native state-machine Resume/Throw, or an external-call completion) into
// segment state.
func (vm *VM) applyHandlerResult(ctx context.Context, seg *Segment, did DispatchID, program NativeHandler, res HandlerResult) (bool, Event) {
	switch res.Kind {
	case ResultYield:
		if program != nil {
			seg.PushFrame(&NativeHandlerStepFrame{Program: program, DispatchID: did})
		}
		seg.Mode = HandleYieldMode(res.YieldNode)
		return contEv()
	case ResultReturn:
		return vm.handleHandlerReturn(ctx, seg, did, DeliverMode(res.Value))
	case ResultThrow:
		return vm.handleHandlerReturn(ctx, seg, did, ThrowMode(res.Exc))
	case ResultNeedsExternal:
		p := PendingExternal{Call: *res.Call}
		if program != nil {
			p.Origin = PendingOriginNativeHandler
			p.NativeProgram = program
			p.NativeDispatch = did
		}
		return true, vm.pendExternal(seg, p)
	case ResultPark:
		// The handler registered itself as a waiter; its segment is done.
		// The dispatch stays open until something wakes the parked
		// continuation.
		vm.arena.ReparentChildren(seg.ID, seg.Caller)
		vm.arena.Free(seg.ID)
		return vm.transferNextOr(ctx)
	default:
		return haltEv(Event{Kind: EventError, Err: NewVMError(ErrInternalInvariant, "unknown handler result kind")})
	}
}

// delegateDispatch forwards the current dispatch's effect to the next
// matching handler in the chain, re-capturing the current handler's
// continuation so the successor can resume back into it.
func (vm *VM) delegateDispatch(ctx context.Context, seg *Segment, eff DispatchEffect) (bool, Event) {
	d, ok := vm.dispatchOf(seg)
	if !ok {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "Delegate outside an effect dispatch")))
		return contEv()
	}
	next := vm.nextMatching(d, eff)
	if next < 0 {
		return vm.forwardExhausted(seg, d)
	}

	kid := vm.ids.NextContID()
	kNew := CaptureContinuation(kid, seg, &d.ID)
	if prev := contOf(d.KUser); prev != nil {
		kNew.Parent = prev
	}
	vm.conts[kid] = kNew
	seg.Frames = seg.Frames[:0]
	// The emptied inner segment still routes the chain's eventual return
	// value through the handler-return path, so the dispatch completes at
	// its own prompt rather than unwinding silently.
	seg.PushFrame(&InterceptBodyReturnFrame{Marker: seg.Marker})

	kVal := VContinuation(kNew)
	vm.dispatch.Delegate(d, next, kVal)
	vm.busy.Add(d.HandlerChain[next].Marker)
	d.BusyMarkers = append(d.BusyMarkers, d.HandlerChain[next].Marker)
	vm.traceEvent(TraceDelegated, seg.ID, eff.TypeName(), d.HandlerChain[next].Name)

	return vm.runHandlerLink(ctx, d, d.HandlerChain[next], seg.ID, eff, kVal, seg)
}

// passDispatch forwards the effect like delegateDispatch but does not
// rebuild the user continuation: the successor resumes the original
// requester directly.
func (vm *VM) passDispatch(ctx context.Context, seg *Segment, eff DispatchEffect) (bool, Event) {
	d, ok := vm.dispatchOf(seg)
	if !ok {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "Pass outside an effect dispatch")))
		return contEv()
	}
	next := vm.nextMatching(d, eff)
	if next < 0 {
		return vm.forwardExhausted(seg, d)
	}
	seg.Frames = seg.Frames[:0]
	seg.PushFrame(&InterceptBodyReturnFrame{Marker: seg.Marker})

	vm.dispatch.Pass(d, next)
	vm.busy.Add(d.HandlerChain[next].Marker)
	d.BusyMarkers = append(d.BusyMarkers, d.HandlerChain[next].Marker)
	vm.traceEvent(TracePassed, seg.ID, eff.TypeName(), d.HandlerChain[next].Name)

	return vm.runHandlerLink(ctx, d, d.HandlerChain[next], seg.ID, eff, d.KUser, seg)
}

// nextMatching scans d's chain past the current link for a handler that
// accepts eff, or -1.
func (vm *VM) nextMatching(d *DispatchContext, eff DispatchEffect) int {
	for j := d.HandlerIndex + 1; j < len(d.HandlerChain); j++ {
		if d.HandlerChain[j].Handler.CanHandle(eff) {
			return j
		}
	}
	return -1
}

// forwardExhausted handles delegate/pass walking off the end of the chain.
func (vm *VM) forwardExhausted(seg *Segment, d *DispatchContext) (bool, Event) {
	if d.OriginalException != nil {
		seg.Mode = ThrowMode(*d.OriginalException)
		return contEv()
	}
	seg.Mode = ThrowMode(ValueFromError(noMatchingHandlerError(d.Effect)))
	return contEv()
}

// dispatchOf finds the dispatch context a handler segment belongs to.
func (vm *VM) dispatchOf(seg *Segment) (*DispatchContext, bool) {
	if seg.DispatchID == nil {
		return nil, false
	}
	return vm.dispatch.Get(*seg.DispatchID)
}

// contOf recovers the continuation behind a Value, or nil.
func contOf(v Value) *Continuation {
	if v.Kind != KindContinuation {
		return nil
	}
	return v.Cont
}

// handleHandlerReturn processes a handler body's final value or exception.
// A returned IR expression is auto-evaluated (unless an interceptor
// evaluation is already in progress) so a handler that "falls off the end"
// into a trailing program still runs it. Otherwise the dispatch completes
// when the returning segment sits directly on the dispatch's prompt, and
// the value continues into the prompt's caller chain.
func (vm *VM) handleHandlerReturn(ctx context.Context, seg *Segment, did DispatchID, mode Mode) (bool, Event) {
	if mode.Kind == ModeDeliver && !inEval(seg) {
		if n, ok := NodeFromValue(mode.Value); ok {
			seg.PushFrame(&InterceptBodyReturnFrame{Marker: seg.Marker})
			seg.Mode = HandleYieldMode(NEval(n, nil))
			return contEv()
		}
	}

	d, haveDispatch := vm.dispatch.Get(did)
	if haveDispatch {
		vm.traceEvent(TraceHandlerCompleted, seg.ID, d.Effect.TypeName(), currentHandlerName(d))
		if d.OriginalException != nil && mode.Kind == ModeDeliver {
			// The handler produced execution-context entries for a
			// pending exception: enrich and re-throw instead of
			// delivering.
			mode = ThrowMode(enrichException(*d.OriginalException, mode.Value))
		}
		if seg.Caller != nil && *seg.Caller == d.PromptSegmentID && !d.Completed {
			ku := firstUnconsumed(contOf(d.KUser))
			if mode.Kind == ModeDeliver && ku != nil {
				// The handler (or a delegate chain it headed) fell off
				// the end without resuming the requester: its value is
				// the effect's result, delivered by resuming the user
				// continuation on its captured chain.
				if ku.Parent == nil {
					// Resuming the genuine requester resolves the
					// dispatch; an intermediate delegate hop leaves it
					// open for the next return through the prompt.
					vm.closeWithoutDiscard(d)
				}
				vm.arena.ReparentChildren(seg.ID, seg.Caller)
				vm.arena.Free(seg.ID)
				if !ku.TryConsume() {
					return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "user continuation consumed mid-return")))
				}
				vm.consumed.Add(ku.ID)
				ns := vm.spliceContinuation(ku, ku.CapturedCaller)
				ns.Mode = mode
				vm.current = ns.ID
				return contEv()
			}
			vm.completeDispatch(d)
		}
	}

	caller := seg.Caller
	vm.arena.ReparentChildren(seg.ID, caller)
	vm.arena.Free(seg.ID)
	if caller == nil {
		if mode.Kind == ModeThrow {
			return haltEv(vm.errorEvent(NewVMError(ErrUncaughtException, "uncaught exception").WithCause(ErrorFromValue(mode.Exc))))
		}
		return haltEv(Event{Kind: EventDone, Result: mode.Value})
	}
	callerSeg, ok := vm.arena.Get(*caller)
	if !ok {
		return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "handler return into freed segment")))
	}
	callerSeg.Mode = mode
	vm.current = callerSeg.ID
	return contEv()
}

// completeDispatch closes d: the user continuation is consumed, every
// busy marker the dispatch claimed is released, and the stack's completed
// suffix is reclaimed.
func (vm *VM) completeDispatch(d *DispatchContext) {
	if c := contOf(d.KUser); c != nil {
		c.Discard()
		vm.consumed.Add(c.ID)
	}
	vm.closeWithoutDiscard(d)
}

// closeWithoutDiscard is completeDispatch minus the user-continuation
// discard, for the path that is about to activate it instead.
func (vm *VM) closeWithoutDiscard(d *DispatchContext) {
	vm.dispatch.MarkCompleted(d)
	for _, m := range d.BusyMarkers {
		vm.busy.Remove(m)
	}
	d.BusyMarkers = nil
	vm.dispatch.LazyPopCompleted()
}

// firstUnconsumed walks a continuation's Parent chain to the innermost
// link that has not been activated yet, or nil. Delegate hops consume
// their re-captured continuations one by one; the genuine requester is
// the last unconsumed link.
func firstUnconsumed(c *Continuation) *Continuation {
	for c != nil && c.IsConsumed() {
		c = c.Parent
	}
	return c
}

func currentHandlerName(d *DispatchContext) string {
	if h, ok := d.CurrentHandler(); ok {
		return h.Name
	}
	return ""
}
