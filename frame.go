// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// SegFrame is the per-segment frame vocabulary: the defunctionalized
// record of what a segment does next once a value is delivered to it or an
// exception is thrown into it. Dispatch uses type switches, not tags —
// SegFrame is a pure marker interface.
type SegFrame interface {
	segFrame()
}

// ProgramStreamFrame wraps a host-language generator driving IR one step
// at a time. Stream is the in-process flavour (Go closures advanced
// synchronously); when Stream is nil, Iterator holds an opaque host
// iterator driven through IterSend/IterThrow external calls instead.
type ProgramStreamFrame struct {
	Stream   *ProgramStream
	Iterator Value
	Metadata *CallMeta
}

func (*ProgramStreamFrame) segFrame() {}

// evalReturnKind selects which slot of the pending Apply/Expand an
// EvalReturnFrame substitutes a resumed value into.
type evalReturnKind byte

const (
	evalReturnFunc evalReturnKind = iota
	evalReturnArg
	evalReturnKwarg
)

// EvalReturnFrame resumes argument resolution for a pending Apply/Expand
// node: Pending is the node with one slot still unresolved, identified by
// Kind (+ Index for Args, Key for Kwargs).
type EvalReturnFrame struct {
	Pending *Node
	Kind    evalReturnKind
	Index   int
	Key     string
}

func (*EvalReturnFrame) segFrame() {}

// MapReturnFrame applies the mapper once the Map source value arrives.
type MapReturnFrame struct {
	Mapper Callable
	Meta   CallMeta
}

func (*MapReturnFrame) segFrame() {}

// FlatMapBindSourceFrame builds the binder's program once the FlatMap
// source value arrives, guarded by a FlatMapBindResultFrame so the
// produced program actually runs.
type FlatMapBindSourceFrame struct {
	Binder func(Value) *Node
	Meta   CallMeta
}

func (*FlatMapBindSourceFrame) segFrame() {}

// FlatMapBindResultFrame is the identity continuation pushed under a
// FlatMapBindSourceFrame.
type FlatMapBindResultFrame struct{}

func (*FlatMapBindResultFrame) segFrame() {}

// HandlerDispatchFrame forwards a delivered value to the handler-return
// path, closing the dispatch and resuming the caller.
type HandlerDispatchFrame struct {
	DispatchID DispatchID
}

func (*HandlerDispatchFrame) segFrame() {}

// InterceptorApplyFrame receives an interceptor's result for a yield it
// transformed: a direct IR expression is re-classified and the chain
// continues; a program is evaluated and its value used.
type InterceptorApplyFrame struct {
	InterceptorMarker Marker
}

func (*InterceptorApplyFrame) segFrame() {}

// InterceptorEvalFrame guards the evaluation of an interceptor's
// replacement yield: on completion it releases the skip marker and eval
// depth taken at application time. With Reclassify set the delivered value
// is first re-classified as IR — the program-returning interceptor case,
// where the program's value is itself the transformed yield.
type InterceptorEvalFrame struct {
	InterceptorMarker Marker
	Reclassify        bool
}

func (*InterceptorEvalFrame) segFrame() {}

// InterceptBodyReturnFrame lets a handler body that "falls off the end"
// still evaluate a trailing program; treated as a normal return otherwise.
type InterceptBodyReturnFrame struct {
	Marker Marker
}

func (*InterceptBodyReturnFrame) segFrame() {}

// NativeHandlerStepFrame re-enters a native handler's state machine
// (Resume/Throw) once the IR node it yielded has fully reduced to a value.
// Native handlers are cooperative state machines that yield one IR step at
// a time, so the engine needs a frame marking "feed the resulting value
// back into this program".
type NativeHandlerStepFrame struct {
	Program    NativeHandler
	DispatchID DispatchID
}

func (*NativeHandlerStepFrame) segFrame() {}
