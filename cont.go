// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// Continuation activation. Every activation path shares one protocol:
// check started, claim the one-shot, record the consumed id, close the
// dispatch the continuation resolves (if any), then splice a segment
// rebuilt from the snapshot into the live topology and make it current.
// Resume keeps the activating site as the new segment's caller so the
// resumed chain's return value flows back into it; Transfer restores the
// captured caller chain instead and discards the activating segment — the
// tail-call form that gives the scheduler its "jump to another task"
// semantics.

// activationKind distinguishes the four activation nodes.
type activationKind byte

const (
	activateResume activationKind = iota
	activateTransfer
	activateResumeThrow
	activateTransferThrow
)

func activationOf(t Tag) activationKind {
	switch t {
	case TagResume:
		return activateResume
	case TagTransfer:
		return activateTransfer
	case TagResumeThrow:
		return activateResumeThrow
	default:
		return activateTransferThrow
	}
}

// activateFromNode reduces a Resume/Transfer/ResumeThrow/TransferThrow
// yield in seg.
func (vm *VM) activateFromNode(ctx context.Context, seg *Segment, n *Node) (bool, Event) {
	c := contOf(n.ContArg)
	if c == nil {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, n.Tag.String()+" of a non-continuation value")))
		return contEv()
	}
	if !c.Started() {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, n.Tag.String()+" of an unstarted continuation: use ResumeContinuation")))
		return contEv()
	}
	if !c.TryConsume() {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrOneShotViolation, "continuation "+c.ID.String()+" already consumed")))
		return contEv()
	}
	vm.consumed.Add(c.ID)
	vm.closeResolvedDispatch(c)

	kind := activationOf(n.Tag)
	var caller *SegmentID
	switch kind {
	case activateResume, activateResumeThrow:
		id := seg.ID
		caller = &id
	default:
		caller = c.CapturedCaller
		// Tail call: the activating segment's own chain is dropped, not
		// prepended.
		vm.arena.ReparentChildren(seg.ID, seg.Caller)
		vm.arena.Free(seg.ID)
	}

	ns := vm.spliceContinuation(c, caller)
	if kind == activateResume || kind == activateTransfer {
		ns.Mode = DeliverMode(n.ValArg)
	} else {
		ns.Mode = ThrowMode(n.ValArg)
	}
	if kind == activateResume || kind == activateResumeThrow {
		vm.traceEvent(TraceResumed, ns.ID, "", "")
	} else {
		vm.traceEvent(TraceTransferred, ns.ID, "", "")
	}
	vm.current = ns.ID
	return contEv()
}

// activateContinuation activates c with a ready-made mode and no
// activating site — the queued-wakeup path used when a Gather/Race waiter
// fires. Transfer semantics apply: the rebuilt segment continues on its
// captured caller chain.
func (vm *VM) activateContinuation(c *Continuation, mode Mode) (bool, Event) {
	if !c.Started() {
		return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "queued activation of unstarted continuation")))
	}
	if !c.TryConsume() {
		return haltEv(vm.errorEvent(NewVMError(ErrInternalInvariant, "queued activation of consumed continuation "+c.ID.String())))
	}
	vm.consumed.Add(c.ID)
	vm.closeResolvedDispatch(c)

	ns := vm.spliceContinuation(c, c.CapturedCaller)
	ns.Mode = mode
	vm.current = ns.ID
	vm.traceEvent(TraceTransferred, ns.ID, "", "")
	return contEv()
}

// spliceContinuation rebuilds c's snapshot as a live segment with the
// given caller and anchors its handler lookup at the captured chain.
func (vm *VM) spliceContinuation(c *Continuation, caller *SegmentID) *Segment {
	ns := c.rebuildSegment(vm.ids.NextSegmentID(), caller)
	if c.CapturedCaller != nil {
		anchor := *c.CapturedCaller
		ns.AnchorSegment = &anchor
		ns.AnchorMarker = c.Marker
	}
	vm.arena.Alloc(ns)
	return ns
}

// closeResolvedDispatch completes the dispatch c was captured for, if it
// is still open: activating the user continuation is what resolves an
// effect request. A re-captured handler continuation (one with a Parent)
// does not resolve anything by itself — its chain must still return
// through the prompt, where the parent gets its turn.
func (vm *VM) closeResolvedDispatch(c *Continuation) {
	if c.DispatchID == nil || c.Parent != nil {
		return
	}
	if d, ok := vm.dispatch.Get(*c.DispatchID); ok && !d.Completed {
		vm.completeDispatch(d)
	}
}
