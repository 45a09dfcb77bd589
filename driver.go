// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ExternalCallKind tags what the VM is asking the host to do.
type ExternalCallKind byte

const (
	CallEvalExpr ExternalCallKind = iota
	CallCallFunc
	CallIterNext
	CallIterSend
	CallIterThrow
	CallAsync
)

// ExternalCall is a suspended request for the host to perform work the VM
// cannot do itself: evaluate a host expression, invoke a host callable,
// advance a host iterator, or run a host awaitable. When the run cannot
// continue without host action, Step returns an EventNeedsExternal Event
// whose Call field holds one of these.
type ExternalCall struct {
	Kind      ExternalCallKind
	Callee    Value    // CallFunc/CallAsync: the HostObject callable/awaitable
	Args      []Value  // CallFunc
	KwargKeys []string // CallFunc keyword names, parallel to Kwargs
	Kwargs    []Value  // CallFunc keyword values
	Expr      Value    // EvalExpr: a HostObject wrapping a host expression
	Iterator  Value    // IterNext/IterSend/IterThrow: the HostObject generator
	SendVal   Value    // IterSend
	ThrowVal  Value    // IterThrow
}

// OutcomeKind tags the shape of a host's reply to an ExternalCall.
type OutcomeKind byte

const (
	OutcomeValue OutcomeKind = iota
	OutcomeIteratorYield
	OutcomeIteratorReturn
	OutcomeIteratorError
)

// Outcome is what the host hands back to ReceiveExternalResult: a plain value, or one of the three iterator-protocol outcomes for
// IterNext/IterSend/IterThrow calls.
type Outcome struct {
	Kind  OutcomeKind
	Value Value // OutcomeValue / OutcomeIteratorYield
	Err   Value // OutcomeIteratorError
}

// EventKind tags what Step returned.
type EventKind byte

const (
	EventContinue EventKind = iota
	EventNeedsExternal
	EventDone
	EventError
)

// Event is Step's result: either the run wants another Step
// call immediately (EventContinue — used internally; Step loops past this
// on the caller's behalf), needs a host round trip (EventNeedsExternal,
// with Call populated), finished (EventDone, with Result), or failed
// irrecoverably (EventError).
type Event struct {
	Kind   EventKind
	Call   *ExternalCall
	Result Value
	Err    error

	// Error events carry the assembled trace and the reconstructed
	// active chain; the driver owns how to render them.
	Trace       *Trace
	ActiveChain []ActiveChainEntry
}

// VM is one instance of the effect interpreter. Each VM owns
// its own IDSpace, so two VMs never collide even though both id sequences
// start at zero, and its own Arena/Store/Scheduler/DispatchStack, so
// running two VMs concurrently needs no shared locking — the same
// ownership discipline one-shot activation relies on (each guard covers
// exactly one suspension, never a shared registry).
type VM struct {
	ids      *IDSpace
	arena    *Arena
	store    *Store
	dispatch *DispatchStack
	sched    *Scheduler
	conts    map[ContID]*Continuation
	consumed *ConsumedSet
	busy     *markerSet

	trace   *Trace
	tracing bool

	root    SegmentID
	current SegmentID

	// awaitSem bounds how many concurrent host Await bridges this VM will
	// have in flight at once; acquired by
	// the CLI driver around the host-side synchronous wait, not by the VM
	// step loop itself, since the VM never blocks a goroutine — it only
	// ever suspends by returning EventNeedsExternal.
	awaitSem *semaphore.Weighted
}

// NewVM creates a VM with empty state. awaitConcurrency bounds concurrent
// host Await calls; pass 0 to mean "unbounded
// enough to never need to wait" (concurrency 1<<30).
func NewVM(awaitConcurrency int64) *VM {
	if awaitConcurrency <= 0 {
		awaitConcurrency = 1 << 30
	}
	return &VM{
		ids:      NewIDSpace(),
		arena:    NewArena(),
		store:    NewStore(),
		dispatch: NewDispatchStack(),
		sched:    NewScheduler(),
		conts:    make(map[ContID]*Continuation),
		consumed: NewConsumedSet(),
		busy:     newMarkerSet(),
		awaitSem: semaphore.NewWeighted(awaitConcurrency),
	}
}

// Store exposes the VM's shared store to built-in handler constructors
// and to the driver's result assembly.
func (vm *VM) Store() *Store { return vm.store }

// LookupCont resolves a ContID to its live continuation, or nil when the
// id is unknown or already consumed.
func (vm *VM) LookupCont(id ContID) *Continuation {
	if vm.consumed.Contains(id) {
		return nil
	}
	return vm.conts[id]
}

// NewHandlerRef mints a fresh Marker identifying one handler
// installation: every WithHandler
// install and every BeginRun root handler needs its own instance id, so
// callers building IR build the ref through this method rather than
// constructing HandlerRef literals with a zero Marker.
func (vm *VM) NewHandlerRef(name, debug string, h Handler) HandlerRef {
	return HandlerRef{Marker: vm.ids.NextMarker(), Name: name, Debug: debug, Handler: h}
}

// SeedEnv sets an initial Reader environment binding before BeginRun.
func (vm *VM) SeedEnv(key string, v Value) { vm.store.Env[key] = v }

// SeedStore sets an initial State binding before BeginRun.
func (vm *VM) SeedStore(key string, v Value) { vm.store.State[key] = v }

// EnableTrace turns on step recording for this run.
func (vm *VM) EnableTrace() {
	vm.tracing = true
	vm.trace = NewTrace()
}

// Trace returns the accumulated trace, or nil if tracing was never
// enabled.
func (vm *VM) Trace() *Trace { return vm.trace }

// AwaitSemaphore exposes the host-await concurrency gate so the CLI driver
// can acquire/release it around a blocking host call.
func (vm *VM) AwaitSemaphore() *semaphore.Weighted { return vm.awaitSem }

// BeginRun installs the root program under handlers and returns the first
// Event. ctx is passed through to the step loop; the VM does not acquire
// the await semaphore itself, and stepping the IR interpreter never
// blocks on ctx.
func (vm *VM) BeginRun(ctx context.Context, program *Node, handlers []HandlerRef) Event {
	vm.consumed.Reset()
	rootID := vm.ids.NextSegmentID()
	seg := NewSegment(rootID, vm.ids.NextMarker(), nil)
	vm.arena.Alloc(seg)
	vm.installRootHandlers(seg, handlers)
	seg.Mode = HandleYieldMode(program)
	vm.root = rootID
	vm.current = rootID
	return vm.runLoop(ctx)
}

// installRootHandlers threads the installed root handlers as nested
// PromptBoundary segments above the program's own root, so the ordinary
// caller-chain walk (handlerCandidates) finds them without a special
// case: BeginRun's handlers behave exactly like nested WithHandler scopes
// installed before the program starts. handlers[0] is the
// innermost: base's caller, walking outward, visits handlers in the order
// given.
func (vm *VM) installRootHandlers(base *Segment, handlers []HandlerRef) {
	vm.installHandlersAbove(base, handlers, nil)
}

// installHandlersAbove threads handlers as nested PromptBoundary segments
// above base, same as installRootHandlers, but lets the outermost installed
// handler's own caller be fallback instead of always nil — used by
// Eval/ResumeContinuation/CreateContinuation activation, where an empty or
// exhausted handler list should still fall back to the activating site's
// ambient chain rather than ending the run.
func (vm *VM) installHandlersAbove(base *Segment, handlers []HandlerRef, fallback *SegmentID) {
	owner := base
	for _, h := range handlers {
		id := vm.ids.NextSegmentID()
		hs := NewPromptSegment(id, vm.ids.NextMarker(), nil, h.Marker, h.Handler, "")
		vm.arena.Alloc(hs)
		segID := id
		owner.Caller = &segID
		owner = hs
	}
	owner.Caller = fallback
}

// Step advances the run until it needs another host round trip or
// finishes. It is the external driver's unit of
// iteration: internally it loops over as many pure reduction steps as the
// IR permits, since only effects the VM cannot itself resolve
// (Await/CallFunc/EvalExpr/iterator protocol) ever surface as
// EventNeedsExternal.
func (vm *VM) Step(ctx context.Context) Event {
	return vm.runLoop(ctx)
}

// ReceiveExternalResult feeds a host's reply for the most recent
// EventNeedsExternal back into the suspended segment and resumes stepping.
func (vm *VM) ReceiveExternalResult(ctx context.Context, outcome Outcome) Event {
	seg, ok := vm.arena.Get(vm.current)
	if !ok || seg.PendingCall == nil {
		return vm.errorEvent(NewVMError(ErrInternalInvariant, "ReceiveExternalResult with no pending call"))
	}
	if halt, ev := vm.deliverExternalResult(ctx, seg, outcome); halt {
		return ev
	}
	return vm.runLoop(ctx)
}

// EndRun releases the VM's root segment chain. Call once a run reaches
// EventDone or EventError and no continuation captured during it is still
// reachable from host code.
func (vm *VM) EndRun() {
	vm.arena.Free(vm.root)
}
