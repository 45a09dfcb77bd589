// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Conversion between the Value domain and the IR domain. IR nodes cross
// the host boundary wrapped as HostObject handles: an interceptor receives
// the yield it transforms as a value, a handler body may return a program
// as its final value, and an external Apply result may turn out to be a
// further expression to run. The conversion is lazy in the same sense as
// classical reify/reflect: nothing is evaluated at wrap time, the engine
// re-classifies one step at a time as values flow back in.

const (
	nodeTypeName   = "kont.Node"
	streamTypeName = "kont.ProgramStream"
)

// VNode wraps an IR node as a Value so it can cross the host boundary.
func VNode(n *Node) Value {
	return Value{Kind: KindHostObject, Host: NewHostObject(nodeTypeName, n)}
}

// NodeFromValue recovers an IR node from a Value produced by VNode (or by
// a host building the equivalent handle). Returns false for any other
// value: the caller decides whether that is a plain result or a type
// error.
func NodeFromValue(v Value) (*Node, bool) {
	if v.Kind != KindHostObject || v.Host == nil || v.Host.TypeName != nodeTypeName {
		return nil, false
	}
	n, ok := v.Host.Handle.(*Node)
	return n, ok
}

// VProgramStream wraps a host-language generator as a Value.
func VProgramStream(s *ProgramStream) Value {
	return Value{Kind: KindHostObject, Host: NewHostObject(streamTypeName, s)}
}

// ProgramStreamFromValue recovers a generator handle from a Value.
func ProgramStreamFromValue(v Value) (*ProgramStream, bool) {
	if v.Kind != KindHostObject || v.Host == nil || v.Host.TypeName != streamTypeName {
		return nil, false
	}
	s, ok := v.Host.Handle.(*ProgramStream)
	return s, ok
}

// interceptKey is the name an interceptor's type filter is matched
// against: the effect's type name for effect-shaped yields, the tag name
// for everything else.
func interceptKey(n *Node) string {
	switch n.Tag {
	case TagPerform, TagDelegate, TagPass:
		return n.Effect.TypeName()
	default:
		return n.Tag.String()
	}
}

// maybeIntercept checks seg's interceptor chain against yield y and, on a
// match, suspends reduction of y behind a host call applying the
// interceptor to it. Returns the halt event and true if an interceptor
// took over; the transformed yield re-enters the engine through
// InterceptorApplyFrame.
func (vm *VM) maybeIntercept(seg *Segment, y *Node) (Event, bool) {
	entry, ok := selectInterceptorFor(seg, interceptKey(y))
	if !ok {
		return Event{}, false
	}
	pushSkip(seg, entry.Marker)
	seg.PushFrame(&InterceptorApplyFrame{InterceptorMarker: entry.Marker})
	ev := vm.pendExternal(seg, PendingExternal{
		Call: ExternalCall{Kind: CallCallFunc, Callee: entry.Callable, Args: []Value{VNode(y)}},
	})
	return ev, true
}

// applyInterceptorResult routes what an interceptor returned for a yield
// it transformed: a direct IR expression is re-classified and run under
// the skip guard; a program is evaluated and its value re-classified as
// IR; anything else is a type error. The skip marker pushed at invocation
// stays held until the replacement yield fully resolves, so an interceptor
// never observes its own output.
func (vm *VM) applyInterceptorResult(seg *Segment, marker Marker, result Value) (bool, Event) {
	if n, ok := NodeFromValue(result); ok {
		enterEval(seg)
		seg.PushFrame(&InterceptorEvalFrame{InterceptorMarker: marker})
		seg.Mode = HandleYieldMode(n)
		return contEv()
	}
	if s, ok := ProgramStreamFromValue(result); ok {
		enterEval(seg)
		seg.PushFrame(&InterceptorEvalFrame{InterceptorMarker: marker, Reclassify: true})
		seg.PushFrame(&ProgramStreamFrame{Stream: s})
		seg.Mode = DeliverMode(None)
		return contEv()
	}
	popSkip(seg)
	seg.Mode = ThrowMode(ValueFromError(NewVMError(ErrTypeError, "interceptor returned neither IR expression nor program")))
	return contEv()
}
