// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "sync/atomic"

// ValueKind tags a Value's active variant. A byte tag keeps Value dispatch
// O(1), the same discriminator discipline Node uses.
type ValueKind byte

const (
	KindUnit ValueKind = iota
	KindNone
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindHostObject
	KindContinuation
	KindTaskHandle
	KindPromiseHandle
	KindHandlers
	KindCallStack
	KindTrace
)

func (k ValueKind) String() string {
	switch k {
	case KindUnit:
		return "Unit"
	case KindNone:
		return "None"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindHostObject:
		return "HostObject"
	case KindContinuation:
		return "Continuation"
	case KindTaskHandle:
		return "TaskHandle"
	case KindPromiseHandle:
		return "PromiseHandle"
	case KindHandlers:
		return "Handlers"
	case KindCallStack:
		return "CallStack"
	case KindTrace:
		return "Trace"
	default:
		return "Unknown"
	}
}

// Value is the VM's tagged runtime variant:
// Unit | None | Bool | Int | Float | String | List | HostObject |
// Continuation | TaskHandle | PromiseHandle | Handlers[] | CallStack[] |
// Trace[]. Values are deep-cloneable; HostObject handles are refcounted
// (Clone/Release below) rather than deep-copied, since they alias state in
// the embedding runtime.
type Value struct {
	Kind      ValueKind
	Bool      bool
	Int       int64
	Float     float64
	Str       string
	List      []Value
	Host      *HostObject
	Cont      *Continuation
	Task      *TaskHandle
	Promise   *PromiseHandle
	Handlers  []HandlerRef
	CallStack []CallStackEntry
	Trace     *Trace
}

// Unit is the canonical unit value, returned by effects with no meaningful
// result (Put, Tell, CompletePromise, ...).
var Unit = Value{Kind: KindUnit}

// None represents the absence of a value.
var None = Value{Kind: KindNone}

func VBool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func VInt(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func VFloat(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func VString(s string) Value { return Value{Kind: KindString, Str: s} }
func VList(xs []Value) Value { return Value{Kind: KindList, List: xs} }

func VContinuation(c *Continuation) Value { return Value{Kind: KindContinuation, Cont: c} }
func VTaskHandle(t *TaskHandle) Value     { return Value{Kind: KindTaskHandle, Task: t} }
func VPromiseHandle(p *PromiseHandle) Value {
	return Value{Kind: KindPromiseHandle, Promise: p}
}
// VOk/VErr/AsResult encode ResultSafe's Ok(v)|Err(e) outcome as a two
// element list tagged by a leading bool, since Value has no dedicated
// Result variant.
func VOk(v Value) Value  { return VList([]Value{VBool(true), v}) }
func VErr(e Value) Value { return VList([]Value{VBool(false), e}) }

// AsResult decodes a VOk/VErr value back into (ok, payload).
func AsResult(v Value) (ok bool, payload Value, valid bool) {
	if v.Kind != KindList || len(v.List) != 2 || v.List[0].Kind != KindBool {
		return false, Value{}, false
	}
	return v.List[0].Bool, v.List[1], true
}

func VHandlers(hs []HandlerRef) Value      { return Value{Kind: KindHandlers, Handlers: hs} }
func VCallStack(cs []CallStackEntry) Value { return Value{Kind: KindCallStack, CallStack: cs} }
func VTrace(t *Trace) Value                { return Value{Kind: KindTrace, Trace: t} }

// Clone deep-copies value-semantics variants: list elements are cloned
// recursively, HostObject handles are refcounted rather than duplicated.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		cloned := make([]Value, len(v.List))
		for i, e := range v.List {
			cloned[i] = e.Clone()
		}
		v.List = cloned
	case KindHostObject:
		if v.Host != nil {
			v.Host = v.Host.Retain()
		}
	}
	return v
}

// HostObject carries an opaque handle to a value owned by the embedding
// runtime. The VM only stores handles and never mutates the underlying
// host value directly; ownership is
// refcounted because a continuation may be held by both the registry and a
// pending dispatch simultaneously.
type HostObject struct {
	TypeName string
	Handle   any
	refs     *atomic.Int64
}

// NewHostObject wraps a host-side value with an initial refcount of 1.
func NewHostObject(typeName string, handle any) *HostObject {
	refs := &atomic.Int64{}
	refs.Store(1)
	return &HostObject{TypeName: typeName, Handle: handle, refs: refs}
}

// Retain increments the refcount and returns a new HostObject header
// sharing the same counter and handle.
func (h *HostObject) Retain() *HostObject {
	h.refs.Add(1)
	return &HostObject{TypeName: h.TypeName, Handle: h.Handle, refs: h.refs}
}

// Release decrements the refcount. Returns true if this was the last
// reference (the caller may now notify the host the handle is free).
func (h *HostObject) Release() bool {
	return h.refs.Add(-1) == 0
}

// CallStackEntry is one frame of a GetCallStack snapshot.
type CallStackEntry struct {
	FunctionName string
	SourceFile   string
	SourceLine   int
}

// HandlerRef names an installed handler for GetHandlers / handler-chain
// walks: the marker identifying its prompt boundary plus display info.
type HandlerRef struct {
	Marker  Marker
	Name    string
	Debug   string
	Handler Handler
}
