// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "runtime"

// callerMeta fills call metadata from the Go call site two frames up: the
// combinator layer's substitute for the source positions a surface
// language's translator would attach.
func callerMeta(fn string) CallMeta {
	if _, file, line, ok := runtime.Caller(2); ok {
		return CallMeta{FunctionName: fn, SourceFile: file, SourceLine: line}
	}
	return CallMeta{FunctionName: fn}
}

// Tag discriminates Node variants. A byte tag keeps classify-time dispatch
// O(1); the alternative would be a chain of type checks.
type Tag byte

const (
	TagPure Tag = iota
	TagPerform
	TagMap
	TagFlatMap
	TagApply
	TagExpand
	TagResume
	TagTransfer
	TagResumeThrow
	TagTransferThrow
	TagWithHandler
	TagWithIntercept
	TagDelegate
	TagPass
	TagGetContinuation
	TagGetHandlers
	TagCreateContinuation
	TagResumeContinuation
	TagEval
	TagGetCallStack
	TagGetTrace
	TagGetTraceback
	TagAsyncEscape
	TagEffectBase
	TagUnknown
)

func (t Tag) String() string {
	names := [...]string{
		"Pure", "Perform", "Map", "FlatMap", "Apply", "Expand", "Resume",
		"Transfer", "ResumeThrow", "TransferThrow", "WithHandler",
		"WithIntercept", "Delegate", "Pass", "GetContinuation",
		"GetHandlers", "CreateContinuation", "ResumeContinuation", "Eval",
		"GetCallStack", "GetTrace", "GetTraceback", "AsyncEscape",
		"EffectBase", "Unknown",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// CallMeta is the non-optional call-site metadata every Apply/Expand/
// Map/FlatMap node carries, needed to build faithful traces.
type CallMeta struct {
	FunctionName string
	SourceFile   string
	SourceLine   int
	ArgsRepr     string
	ProgramCall  bool
}

// Node is the closed IR variant the driver hands the VM. Like Value, it
// is a single flat struct tagged by Tag rather than a Go sum type,
// keeping classify-time dispatch a switch on one byte field.
type Node struct {
	Tag Tag

	// Pure
	Value Value

	// Perform / Delegate / Pass
	Effect DispatchEffect

	// Map / FlatMap: Source is reduced first, then Fn/Binder applied.
	Source  *Node
	Fn      Callable
	Binder  func(Value) *Node
	Meta    CallMeta

	// Apply / Expand: Func and each Args/Kwargs slot may itself be an
	// unresolved Node; the engine resolves them left-to-right via
	// EvalReturn frames (§4.8.3) before invoking Func externally.
	Func           *Node
	Args           []*Node
	KwargKeys      []string
	Kwargs         []*Node
	EvaluateResult bool

	// Resume / Transfer / ResumeThrow / TransferThrow / ResumeContinuation
	ContArg Value
	ValArg  Value

	// WithHandler
	Handler  HandlerRef
	Identity string
	Body     *Node

	// WithIntercept
	Interceptor Value
	Types       []string
	Mode        string

	// CreateContinuation / Eval
	Program         *Node
	InstallHandlers []HandlerRef

	// GetTraceback
	TracebackOf Value

	// AsyncEscape
	Action Value

	// intercepted marks a node the engine has already offered to the
	// interceptor chain, so a node re-yielded during slot resolution or
	// re-classification is not offered twice.
	intercepted bool
}

// Callable is a host or VM-level function value applied by Apply/Expand.
// Concrete callables are produced by the host (wrapped in a HostObject) or
// by native handlers constructing Map/FlatMap nodes directly in Go.
type Callable func(args []Value) (Value, error)

// NPure wraps an already-evaluated value as a completed Node.
func NPure(v Value) *Node { return &Node{Tag: TagPure, Value: v} }

// NPerform creates a Perform node for the given effect.
func NPerform(eff DispatchEffect) *Node { return &Node{Tag: TagPerform, Effect: eff} }

// NMap creates a Map node: evaluate source, then apply fn to its value.
func NMap(source *Node, fn Callable, meta CallMeta) *Node {
	return &Node{Tag: TagMap, Source: source, Fn: fn, Meta: meta}
}

// NFlatMap creates a FlatMap node: evaluate source, then bind its value to
// a program produced by fn.
func NFlatMap(source *Node, fn func(Value) *Node, meta CallMeta) *Node {
	return &Node{Tag: TagFlatMap, Source: source, Binder: fn, Meta: meta}
}

// isPure reports whether n is a fully reduced value (Tag == TagPure).
func (n *Node) isPure() bool { return n != nil && n.Tag == TagPure }

// NResume/NTransfer/NResumeThrow/NTransferThrow build the four continuation
// activation nodes: handlers yield these to resume (or jump
// to, for Transfer) a captured continuation k with a value or exception.
func NResume(k, v Value) *Node        { return &Node{Tag: TagResume, ContArg: k, ValArg: v} }
func NTransfer(k, v Value) *Node      { return &Node{Tag: TagTransfer, ContArg: k, ValArg: v} }
func NResumeThrow(k, v Value) *Node   { return &Node{Tag: TagResumeThrow, ContArg: k, ValArg: v} }
func NTransferThrow(k, v Value) *Node { return &Node{Tag: TagTransferThrow, ContArg: k, ValArg: v} }

// NEval builds an Eval node: run program under the given install handlers
// (or, if nil, the current caller chain) as if it were a freshly started,
// never-exposed continuation.
func NEval(program *Node, handlers []HandlerRef) *Node {
	return &Node{Tag: TagEval, Program: program, InstallHandlers: handlers}
}

// NApply builds an Apply node: resolve fn and each arg/kwarg left to right,
// then invoke fn externally. evaluateResult marks
// a call whose result should be re-classified as a further IR expression
// rather than delivered as a plain value.
func NApply(fn *Node, args []*Node, kwargKeys []string, kwargs []*Node, evaluateResult bool, meta CallMeta) *Node {
	return &Node{Tag: TagApply, Func: fn, Args: args, KwargKeys: kwargKeys, Kwargs: kwargs, EvaluateResult: evaluateResult, Meta: meta}
}

// NExpand builds an Expand node: like Apply, but the external call's result
// is itself a program the engine must run.
func NExpand(fn *Node, args []*Node, kwargKeys []string, kwargs []*Node, meta CallMeta) *Node {
	return &Node{Tag: TagExpand, Func: fn, Args: args, KwargKeys: kwargKeys, Kwargs: kwargs, Meta: meta}
}

// NWithHandler installs handler over body. handler.Marker must already be
// a freshly minted instance id (vm.NewHandlerRef).
func NWithHandler(handler HandlerRef, body *Node, identity string) *Node {
	return &Node{Tag: TagWithHandler, Handler: handler, Body: body, Identity: identity}
}

// NWithIntercept installs interceptor over body, filtered to types (empty
// means "all effects") and operating in mode "Delegate" or "Pass".
func NWithIntercept(interceptor Value, types []string, mode string, body *Node) *Node {
	return &Node{Tag: TagWithIntercept, Interceptor: interceptor, Types: types, Mode: mode, Body: body}
}

// NDelegate/NPass forward the current dispatch's effect to the next
// handler in the chain: Delegate re-captures the forwarding handler's own
// continuation as the new resume target, Pass leaves the original
// requester as the target.
func NDelegate(eff DispatchEffect) *Node { return &Node{Tag: TagDelegate, Effect: eff} }
func NPass(eff DispatchEffect) *Node    { return &Node{Tag: TagPass, Effect: eff} }

// NGetContinuation delivers the current dispatch's user continuation.
func NGetContinuation() *Node { return &Node{Tag: TagGetContinuation} }

// NGetHandlers delivers the caller chain's visible handler list.
func NGetHandlers() *Node { return &Node{Tag: TagGetHandlers} }

// NCreateContinuation builds an unstarted continuation over program under
// handlers.
func NCreateContinuation(program *Node, handlers []HandlerRef) *Node {
	return &Node{Tag: TagCreateContinuation, Program: program, InstallHandlers: handlers}
}

// NResumeContinuation activates k with v: if k has never run, this installs
// its Program/Handlers and starts it; otherwise it behaves like Resume.
func NResumeContinuation(k, v Value) *Node {
	return &Node{Tag: TagResumeContinuation, ContArg: k, ValArg: v}
}

// NGetCallStack delivers a CallStack snapshot of the active chain.
func NGetCallStack() *Node { return &Node{Tag: TagGetCallStack} }

// NGetTrace delivers the VM's accumulated Trace, or None if tracing is off.
func NGetTrace() *Node { return &Node{Tag: TagGetTrace} }

// NGetTraceback walks a continuation's Parent chain to assemble a traceback for of.
func NGetTraceback(of Value) *Node { return &Node{Tag: TagGetTraceback, TracebackOf: of} }

// NAsyncEscape suspends the current step as a CallAsync external request
// over action.
func NAsyncEscape(action Value) *Node { return &Node{Tag: TagAsyncEscape, Action: action} }
