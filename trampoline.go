// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// External-call pausing. The engine suspends only here: when a step needs
// the host (evaluating a host expression, calling a host callable,
// advancing a host iterator, awaiting a host future), a pending-call
// record lands on the current segment and the step loop halts with
// EventNeedsExternal. The driver executes the call and feeds the outcome
// back through deliverExternalResult; everything between two suspension
// points is one atomic state transition as far as the driver can observe.

// pendExternal suspends seg on p and builds the halt event.
func (vm *VM) pendExternal(seg *Segment, p PendingExternal) Event {
	pending := p
	seg.PendingCall = &pending
	return Event{Kind: EventNeedsExternal, Call: &pending.Call}
}

// deliverExternalResult routes a host outcome back into the suspended
// segment. Native-handler calls feed the state machine directly; IR calls
// re-classify the value according to what the suspended node expects.
func (vm *VM) deliverExternalResult(ctx context.Context, seg *Segment, outcome Outcome) (bool, Event) {
	p := seg.PendingCall
	seg.PendingCall = nil
	if p == nil {
		return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "external result with no pending call")))
	}

	if p.Origin == PendingOriginNativeHandler {
		seg.PushFrame(&NativeHandlerStepFrame{Program: p.NativeProgram, DispatchID: p.NativeDispatch})
		if outcome.Kind == OutcomeIteratorError {
			seg.Mode = ThrowMode(outcome.Err)
		} else {
			seg.Mode = DeliverMode(outcome.Value)
		}
		return contEv()
	}

	switch outcome.Kind {
	case OutcomeValue:
		if p.ExpandProgram {
			return vm.enterProgramValue(seg, outcome.Value)
		}
		if p.EvaluateResult {
			if node, ok := NodeFromValue(outcome.Value); ok {
				seg.Mode = HandleYieldMode(node)
				return contEv()
			}
		}
		seg.Mode = DeliverMode(outcome.Value)
		return contEv()

	case OutcomeIteratorYield:
		if p.IterFrame != nil {
			seg.PushFrame(p.IterFrame)
		}
		node, ok := NodeFromValue(outcome.Value)
		if !ok {
			seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "iterator yielded a non-IR value")))
			return contEv()
		}
		seg.Mode = HandleYieldMode(node)
		return contEv()

	case OutcomeIteratorReturn:
		seg.Mode = DeliverMode(outcome.Value)
		return contEv()

	case OutcomeIteratorError:
		return vm.classifyIteratorError(ctx, seg, outcome.Err)

	default:
		return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "unknown outcome kind")))
	}
}

// classifyIteratorError decides whether a throw surfacing from a host
// iterator is recoverable by the current dispatch: a handler that
// participates in error-context conversion gets one GetExecutionContext
// round-trip to enrich the exception before it propagates. Anything else
// transitions straight to Throw.
func (vm *VM) classifyIteratorError(ctx context.Context, seg *Segment, exc Value) (bool, Event) {
	if d, ok := vm.dispatchOf(seg); ok && !isEnriched(exc) {
		if h, ok := d.CurrentHandler(); ok && h.Handler.SupportsErrorContextConversion() {
			seg.PendingError = PendingErrorContext{Original: exc, Active: true}
			eff := NewEffect(getExecutionContextOp{Original: exc})
			eff.IsExecutionContextEffect = true
			return vm.startDispatch(ctx, seg, eff)
		}
	}
	seg.Mode = ThrowMode(exc)
	return contEv()
}
