// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Await handler: bridges an external awaitable into the VM. The handler
// itself never blocks — it requests a host-side synchronous await through
// the external-call boundary and resumes the requester with the awaited
// value. Bounding how many such awaits a driver keeps in flight at once
// is the driver's business (see VM.AwaitSemaphore).

// NAwait builds an Await effect node over a host awaitable value.
func NAwait(awaitable Value) *Node {
	return NPerform(NewEffect(AwaitOp{Awaitable: awaitable}))
}

type awaitPhase byte

const (
	awaitPhaseStart awaitPhase = iota
	awaitPhaseWaiting
	awaitPhaseDone
)

type awaitProgram struct {
	phase awaitPhase
	k     Value
}

// NewAwaitHandler builds the Await handler.
func NewAwaitHandler() Handler {
	return NewNativeHandler(func() NativeHandler { return &awaitProgram{} })
}

func (*awaitProgram) CanHandle(eff DispatchEffect) bool {
	_, ok := eff.Op.(AwaitOp)
	return ok
}

func (*awaitProgram) Name() string                         { return "Await" }
func (*awaitProgram) DebugInfo() string                    { return "builtin await bridge" }
func (*awaitProgram) SupportsErrorContextConversion() bool { return false }

func (p *awaitProgram) Start(eff DispatchEffect, k Value, _ *Store) HandlerResult {
	op, ok := eff.Op.(AwaitOp)
	if !ok {
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
	p.k = k
	p.phase = awaitPhaseWaiting
	return NeedsExternalResult(ExternalCall{Kind: CallAsync, Callee: op.Awaitable})
}

func (p *awaitProgram) Resume(v Value, _ *Store) HandlerResult {
	if p.phase == awaitPhaseWaiting {
		p.phase = awaitPhaseDone
		return Yield(NResume(p.k, v))
	}
	return ReturnResult(v)
}

func (p *awaitProgram) Throw(exc Value, _ *Store) HandlerResult {
	if p.phase == awaitPhaseWaiting {
		p.phase = awaitPhaseDone
		return Yield(NResumeThrow(p.k, exc))
	}
	return ThrowResult(exc)
}
