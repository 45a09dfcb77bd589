// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Handler is the uniform interface both handler flavours expose: native
// state-machine handlers and IR-program handlers.
type Handler interface {
	// CanHandle is the fast pattern match used to select a handler from
	// the caller chain during dispatch.
	CanHandle(eff DispatchEffect) bool

	// Invoke returns the first IR step the handler yields for eff,
	// running against continuation k. store is the state store the
	// dispatch site resolves to — the VM's shared store, or an isolated
	// task's snapshot.
	Invoke(eff DispatchEffect, k Value, store *Store) HandlerResult

	Name() string
	DebugInfo() string

	// SupportsErrorContextConversion is true for handlers participating
	// in the GetExecutionContext effect.
	SupportsErrorContextConversion() bool
}

// ResultKind tags HandlerResult's active variant.
type ResultKind byte

const (
	ResultYield ResultKind = iota
	ResultReturn
	ResultThrow
	ResultNeedsExternal
	// ResultPark is returned by the built-in Scheduler handler
	// (scheduler_handler.go) and the LazyAsk KeyLock handler (lazyask.go):
	// the user continuation is registered with a waiter or wake-up queue
	// and must not be touched again until something else wakes it, so the
	// engine just transfers to the next ready task instead of pushing a
	// continuation frame.
	ResultPark
)

// HandlerResult is what a native handler's start/resume/throw entry point,
// or an IR-program handler's single call, produces.
type HandlerResult struct {
	Kind ResultKind

	YieldNode *Node         // ResultYield
	Value     Value         // ResultReturn
	Exc       Value         // ResultThrow
	Call      *ExternalCall // ResultNeedsExternal

	// nativeProgram is set only by nativeHandlerAdapter.Invoke and
	// consumed by the engine's dispatch-start path to install a
	// NativeHandlerStepFrame; unexported so external Handler
	// implementations cannot forge it.
	nativeProgram NativeHandler
}

func Yield(n *Node) HandlerResult              { return HandlerResult{Kind: ResultYield, YieldNode: n} }
func ReturnResult(v Value) HandlerResult       { return HandlerResult{Kind: ResultReturn, Value: v} }
func ThrowResult(exc Value) HandlerResult      { return HandlerResult{Kind: ResultThrow, Exc: exc} }
func NeedsExternalResult(c ExternalCall) HandlerResult {
	return HandlerResult{Kind: ResultNeedsExternal, Call: &c}
}
func ParkResult() HandlerResult { return HandlerResult{Kind: ResultPark} }

// NativeHandler is a per-dispatch cooperative state machine with three
// entry points: a fresh instance is created per dispatch by a
// NativeHandlerFactory, so re-entrancy is safe without locks — no mutable
// state is shared between dispatches.
type NativeHandler interface {
	Start(eff DispatchEffect, k Value, store *Store) HandlerResult
	Resume(v Value, store *Store) HandlerResult
	Throw(exc Value, store *Store) HandlerResult

	CanHandle(eff DispatchEffect) bool
	Name() string
	DebugInfo() string
	SupportsErrorContextConversion() bool
}

// NativeHandlerFactory creates a fresh NativeHandler instance for one
// dispatch.
type NativeHandlerFactory func() NativeHandler

// nativeHandlerAdapter makes a NativeHandlerFactory satisfy Handler: its
// Invoke call creates one instance and calls Start, matching the uniform
// "first IR step" contract; subsequent state-machine steps are driven by
// the engine via NativeHandlerStepFrame, not through this adapter.
type nativeHandlerAdapter struct {
	factory NativeHandlerFactory
	sample  NativeHandler // used only for CanHandle/Name/DebugInfo probes
}

// NewNativeHandler wraps factory as a Handler.
func NewNativeHandler(factory NativeHandlerFactory) Handler {
	return &nativeHandlerAdapter{factory: factory, sample: factory()}
}

func (a *nativeHandlerAdapter) CanHandle(eff DispatchEffect) bool { return a.sample.CanHandle(eff) }
func (a *nativeHandlerAdapter) Name() string                      { return a.sample.Name() }
func (a *nativeHandlerAdapter) DebugInfo() string                 { return a.sample.DebugInfo() }
func (a *nativeHandlerAdapter) SupportsErrorContextConversion() bool {
	return a.sample.SupportsErrorContextConversion()
}

func (a *nativeHandlerAdapter) Invoke(eff DispatchEffect, k Value, store *Store) HandlerResult {
	program := a.factory()
	result := program.Start(eff, k, store)
	// The live program instance travels back on an unexported result
	// field so the engine can install a NativeHandlerStepFrame; calling
	// a.factory() again at the install site would lose the state the
	// Start call already built.
	result.nativeProgram = program
	return result
}

// IRHandler stores a host callable that, applied to (effect, k), returns
// an IR expression.
type IRHandler struct {
	NameStr       string
	DebugStr      string
	Matches       func(DispatchEffect) bool
	Callable      func(eff DispatchEffect, k Value) *Node
	ErrCtxCapable bool
}

func (h *IRHandler) CanHandle(eff DispatchEffect) bool { return h.Matches(eff) }
func (h *IRHandler) Name() string                      { return h.NameStr }
func (h *IRHandler) DebugInfo() string                 { return h.DebugStr }
func (h *IRHandler) SupportsErrorContextConversion() bool {
	return h.ErrCtxCapable
}
func (h *IRHandler) Invoke(eff DispatchEffect, k Value, _ *Store) HandlerResult {
	return Yield(h.Callable(eff, k))
}
