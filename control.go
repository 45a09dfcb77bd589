// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// Delimited-control installation: WithHandler erects a prompt boundary
// (the reset), effect dispatch captures up to it (the shift), and
// Eval/ResumeContinuation re-enter captured or unstarted program chains
// under freshly installed boundaries.

// installHandlerBoundary reduces WithHandler: a prompt segment wrapping
// the current one, a body segment inside it, and the body expression
// running in the body segment. The current segment suspends until the
// body chain unwinds back into it.
func (vm *VM) installHandlerBoundary(seg *Segment, n *Node) (bool, Event) {
	if n.Handler.Handler == nil || n.Body == nil {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "WithHandler needs a handler and a body")))
		return contEv()
	}
	identity := n.Identity
	if identity == "" {
		identity = PromptIdentity(n.Handler.Name, n.Handler.Debug, n.Meta)
	}
	callerID := seg.ID
	pid := vm.ids.NextSegmentID()
	prompt := NewPromptSegment(pid, vm.ids.NextMarker(), &callerID, n.Handler.Marker, n.Handler.Handler, identity)
	vm.arena.Alloc(prompt)

	promptID := pid
	bid := vm.ids.NextSegmentID()
	body := NewSegment(bid, vm.ids.NextMarker(), &promptID)
	body.CopyInterceptorGuard(seg)
	body.Mode = HandleYieldMode(n.Body)
	vm.arena.Alloc(body)
	vm.current = bid
	return contEv()
}

// installInterceptor reduces WithIntercept: the body runs in a child
// segment carrying one more interceptor entry under a fresh marker.
func (vm *VM) installInterceptor(seg *Segment, n *Node) (bool, Event) {
	if n.Body == nil {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "WithIntercept needs a body")))
		return contEv()
	}
	callerID := seg.ID
	bid := vm.ids.NextSegmentID()
	body := NewSegment(bid, vm.ids.NextMarker(), &callerID)
	body.CopyInterceptorGuard(seg)
	body.Interceptors = append(body.Interceptors, InterceptorEntry{
		Marker:   vm.ids.NextMarker(),
		Callable: n.Interceptor,
		Types:    append([]string(nil), n.Types...),
		Mode:     n.Mode,
	})
	body.Mode = HandleYieldMode(n.Body)
	vm.arena.Alloc(body)
	vm.current = bid
	return contEv()
}

// evalProgram reduces Eval: run program as if it were a freshly created,
// never-exposed continuation. handlers are installed as nested prompts
// above the program's base segment; an empty list leaves the activating
// site's ambient chain as the only one visible. The program's value is
// delivered back into seg.
func (vm *VM) evalProgram(seg *Segment, program *Node, handlers []HandlerRef) (bool, Event) {
	if program == nil {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "Eval of a nil program")))
		return contEv()
	}
	base, outer := vm.installProgramChain(seg, program, handlers, &seg.ID)
	if seg.DispatchID != nil {
		// A handler evaluating a program runs it under the requester's
		// handler stack: redirect the lookup walk past the handler's own
		// segment to the chain captured at the perform site.
		if d, ok := vm.dispatch.Get(*seg.DispatchID); ok {
			if ku := contOf(d.KUser); ku != nil && ku.CapturedCaller != nil {
				anchor := *ku.CapturedCaller
				outer.AnchorSegment = &anchor
				outer.AnchorMarker = ku.Marker
			}
		}
	}
	vm.current = base.ID
	return contEv()
}

// resumeContinuationNode reduces ResumeContinuation: a started
// continuation behaves exactly like Resume; an unstarted one has its
// handler list installed and its program entered for the first time.
func (vm *VM) resumeContinuationNode(ctx context.Context, seg *Segment, n *Node) (bool, Event) {
	c := contOf(n.ContArg)
	if c == nil {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "ResumeContinuation of a non-continuation value")))
		return contEv()
	}
	if c.Started() {
		resume := &Node{Tag: TagResume, ContArg: n.ContArg, ValArg: n.ValArg}
		return vm.activateFromNode(ctx, seg, resume)
	}
	if !c.TryConsume() {
		seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrOneShotViolation, "continuation "+c.ID.String()+" already consumed")))
		return contEv()
	}
	vm.consumed.Add(c.ID)
	c.markStarted()

	base, _ := vm.installProgramChain(seg, c.Program, c.Handlers, &seg.ID)
	vm.current = base.ID
	return contEv()
}

// installProgramChain builds the segment chain for a fresh program run:
// base segment at the bottom, one prompt per handler above it, the
// outermost prompt's caller set to fallback so values and unmatched
// effects continue into the activating site's chain. Returns the base and
// the outermost segment of the new chain (equal when handlers is empty).
func (vm *VM) installProgramChain(guard *Segment, program *Node, handlers []HandlerRef, fallback *SegmentID) (*Segment, *Segment) {
	bid := vm.ids.NextSegmentID()
	base := NewSegment(bid, vm.ids.NextMarker(), nil)
	if guard != nil {
		base.CopyInterceptorGuard(guard)
	}
	vm.arena.Alloc(base)
	vm.installHandlersAbove(base, handlers, fallback)
	base.Mode = HandleYieldMode(program)
	outer := base
	for outer.Caller != nil && (fallback == nil || *outer.Caller != *fallback) {
		next, ok := vm.arena.Get(*outer.Caller)
		if !ok {
			break
		}
		outer = next
	}
	return base, outer
}
