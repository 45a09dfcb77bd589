// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// stepHandleYield is the IR reducer: one yielded node becomes one segment
// transition. The byte tag keeps this a single O(1) switch; type tests
// beyond the tag are used only for host-effect classification.
func (vm *VM) stepHandleYield(ctx context.Context, seg *Segment, n *Node) (bool, Event) {
	if n == nil {
		return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "HandleYield with no node")))
	}
	if len(seg.Interceptors) > 0 && !n.intercepted {
		n.intercepted = true
		if ev, ok := vm.maybeIntercept(seg, n); ok {
			return true, ev
		}
	}
	vm.traceYield(seg, n)

	switch n.Tag {
	case TagPure:
		seg.Mode = DeliverMode(n.Value)
		return contEv()

	case TagPerform, TagEffectBase:
		return vm.startDispatch(ctx, seg, n.Effect)

	case TagMap:
		seg.PushFrame(&MapReturnFrame{Mapper: n.Fn, Meta: n.Meta})
		seg.Mode = HandleYieldMode(n.Source)
		return contEv()

	case TagFlatMap:
		seg.PushFrame(&FlatMapBindSourceFrame{Binder: n.Binder, Meta: n.Meta})
		seg.Mode = HandleYieldMode(n.Source)
		return contEv()

	case TagApply, TagExpand:
		return vm.reduceCall(seg, n)

	case TagResume, TagTransfer, TagResumeThrow, TagTransferThrow:
		return vm.activateFromNode(ctx, seg, n)

	case TagWithHandler:
		return vm.installHandlerBoundary(seg, n)

	case TagWithIntercept:
		return vm.installInterceptor(seg, n)

	case TagDelegate:
		return vm.delegateDispatch(ctx, seg, n.Effect)

	case TagPass:
		return vm.passDispatch(ctx, seg, n.Effect)

	case TagGetContinuation:
		d, ok := vm.dispatchOf(seg)
		if !ok {
			seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "GetContinuation outside an effect dispatch")))
			return contEv()
		}
		seg.Mode = DeliverMode(d.KUser)
		return contEv()

	case TagGetHandlers:
		seg.Mode = DeliverMode(VHandlers(vm.visibleHandlers(seg)))
		return contEv()

	case TagCreateContinuation:
		id := vm.ids.NextContID()
		c := CreateUnstartedContinuation(id, n.Program, n.InstallHandlers)
		vm.conts[id] = c
		seg.Mode = DeliverMode(VContinuation(c))
		return contEv()

	case TagResumeContinuation:
		return vm.resumeContinuationNode(ctx, seg, n)

	case TagEval:
		return vm.evalProgram(seg, n.Program, n.InstallHandlers)

	case TagGetCallStack:
		seg.Mode = DeliverMode(VCallStack(vm.collectCallStack(seg)))
		return contEv()

	case TagGetTrace:
		if vm.tracing && vm.trace != nil {
			seg.Mode = DeliverMode(VTrace(vm.trace))
		} else {
			seg.Mode = DeliverMode(None)
		}
		return contEv()

	case TagGetTraceback:
		seg.Mode = DeliverMode(vm.collectTraceback(n.TracebackOf))
		return contEv()

	case TagAsyncEscape:
		return true, vm.pendExternal(seg, PendingExternal{
			Call: ExternalCall{Kind: CallAsync, Callee: n.Action},
		})

	default:
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "yielded value is neither effect nor IR")))
		return contEv()
	}
}

// reduceCall resolves an Apply/Expand node's callable and argument slots
// left to right, then hands the completed call to the host. A slot that is
// itself an expression suspends resolution behind an EvalReturnFrame until
// its value arrives.
func (vm *VM) reduceCall(seg *Segment, n *Node) (bool, Event) {
	if n.Func != nil && !n.Func.isPure() {
		seg.PushFrame(&EvalReturnFrame{Pending: n, Kind: evalReturnFunc})
		seg.Mode = HandleYieldMode(n.Func)
		return contEv()
	}
	for i, a := range n.Args {
		if a != nil && !a.isPure() {
			seg.PushFrame(&EvalReturnFrame{Pending: n, Kind: evalReturnArg, Index: i})
			seg.Mode = HandleYieldMode(a)
			return contEv()
		}
	}
	for i, kw := range n.Kwargs {
		if kw != nil && !kw.isPure() {
			seg.PushFrame(&EvalReturnFrame{Pending: n, Kind: evalReturnKwarg, Index: i, Key: n.KwargKeys[i]})
			seg.Mode = HandleYieldMode(kw)
			return contEv()
		}
	}

	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		args = append(args, a.Value)
	}
	kwargs := make([]Value, 0, len(n.Kwargs))
	for _, kw := range n.Kwargs {
		kwargs = append(kwargs, kw.Value)
	}

	// VM-level callables short-circuit the host round trip: native
	// handlers and combinators build Apply nodes over Go closures that
	// need no embedding runtime.
	if n.Fn != nil {
		result, err := n.Fn(args)
		if err != nil {
			seg.Mode = ThrowMode(ValueFromError(err))
			return contEv()
		}
		return vm.routeCallResult(seg, n, result)
	}
	if n.Func == nil {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, n.Tag.String()+" with no callable")))
		return contEv()
	}
	return true, vm.pendExternal(seg, PendingExternal{
		Call: ExternalCall{
			Kind:      CallCallFunc,
			Callee:    n.Func.Value,
			Args:      args,
			KwargKeys: append([]string(nil), n.KwargKeys...),
			Kwargs:    kwargs,
		},
		EvaluateResult: n.Tag == TagApply && n.EvaluateResult,
		ExpandProgram:  n.Tag == TagExpand,
	})
}

// routeCallResult classifies a completed call's value the same way
// deliverExternalResult does for host calls, for the in-process Fn path.
func (vm *VM) routeCallResult(seg *Segment, n *Node, result Value) (bool, Event) {
	if n.Tag == TagExpand {
		return vm.enterProgramValue(seg, result)
	}
	if n.EvaluateResult {
		if node, ok := NodeFromValue(result); ok {
			seg.Mode = HandleYieldMode(node)
			return contEv()
		}
	}
	seg.Mode = DeliverMode(result)
	return contEv()
}

// enterProgramValue runs a value that must be a program: a direct IR node
// or a generator handle. Anything else is a type error at the Expand site.
func (vm *VM) enterProgramValue(seg *Segment, v Value) (bool, Event) {
	if node, ok := NodeFromValue(v); ok {
		seg.Mode = HandleYieldMode(node)
		return contEv()
	}
	if s, ok := ProgramStreamFromValue(v); ok {
		seg.PushFrame(&ProgramStreamFrame{Stream: s})
		seg.Mode = DeliverMode(None)
		return contEv()
	}
	if v.Kind == KindHostObject {
		// An opaque host generator: drive it through the iterator
		// protocol, starting with IterNext.
		fr := &ProgramStreamFrame{Iterator: v}
		return true, vm.pendExternal(seg, PendingExternal{
			Call:      ExternalCall{Kind: CallIterNext, Iterator: v},
			IterFrame: fr,
		})
	}
	seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "Expand result is not a program")))
	return contEv()
}

// continueEvalReturn substitutes a resolved slot value back into the
// pending Apply/Expand node and re-yields it; reduceCall then finds the
// next unresolved slot, or performs the call.
func (vm *VM) continueEvalReturn(ctx context.Context, seg *Segment, fr *EvalReturnFrame, v Value) (bool, Event) {
	switch fr.Kind {
	case evalReturnFunc:
		fr.Pending.Func = NPure(v)
	case evalReturnArg:
		fr.Pending.Args[fr.Index] = NPure(v)
	case evalReturnKwarg:
		fr.Pending.Kwargs[fr.Index] = NPure(v)
	}
	return vm.reduceCall(seg, fr.Pending)
}

// collectCallStack walks from seg to the root collecting program metadata
// off live frames, innermost first.
func (vm *VM) collectCallStack(seg *Segment) []CallStackEntry {
	var out []CallStackEntry
	for _, id := range ActiveChain(vm.arena, seg.ID) {
		s, ok := vm.arena.Get(id)
		if !ok {
			continue
		}
		for i := len(s.Frames) - 1; i >= 0; i-- {
			if m, ok := frameMeta(s.Frames[i]); ok {
				out = append(out, CallStackEntry{
					FunctionName: m.FunctionName,
					SourceFile:   m.SourceFile,
					SourceLine:   m.SourceLine,
				})
			}
		}
	}
	return out
}

// frameMeta extracts call metadata from the frame variants that carry it.
func frameMeta(f SegFrame) (CallMeta, bool) {
	switch fr := f.(type) {
	case *ProgramStreamFrame:
		if fr.Metadata != nil {
			return *fr.Metadata, true
		}
	case *MapReturnFrame:
		return fr.Meta, true
	case *FlatMapBindSourceFrame:
		return fr.Meta, true
	case *EvalReturnFrame:
		return fr.Pending.Meta, true
	}
	return CallMeta{}, false
}

// collectTraceback walks a continuation's parent chain producing one frame
// list per link, innermost first.
func (vm *VM) collectTraceback(v Value) Value {
	c := contOf(v)
	if c == nil {
		return None
	}
	var out []Value
	for ; c != nil; c = c.Parent {
		var entries []CallStackEntry
		for i := len(c.Snapshot) - 1; i >= 0; i-- {
			if m, ok := frameMeta(c.Snapshot[i]); ok {
				entries = append(entries, CallStackEntry{
					FunctionName: m.FunctionName,
					SourceFile:   m.SourceFile,
					SourceLine:   m.SourceLine,
				})
			}
		}
		out = append(out, VCallStack(entries))
	}
	return VList(out)
}
