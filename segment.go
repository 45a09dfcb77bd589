// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// PromptIdentity fingerprints an installed handler from its display info
// plus the call-site metadata of the installing expression. Two prompt
// segments with equal identities carry "the same installed handler" even
// when one is a snapshot rebuild of the other.
func PromptIdentity(name, debug string, meta CallMeta) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(debug))
	h.Write([]byte{0})
	h.Write([]byte(meta.FunctionName))
	h.Write([]byte{0})
	h.Write([]byte(meta.SourceFile))
	var line [4]byte
	line[0] = byte(meta.SourceLine)
	line[1] = byte(meta.SourceLine >> 8)
	line[2] = byte(meta.SourceLine >> 16)
	line[3] = byte(meta.SourceLine >> 24)
	h.Write(line[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// ModeKind tags a segment's operational state. Each step() transforms the
// mode of the current segment.
type ModeKind byte

const (
	ModeDeliver ModeKind = iota
	ModeThrow
	ModeHandleYield
	ModeReturn
)

func (m ModeKind) String() string {
	switch m {
	case ModeDeliver:
		return "Deliver"
	case ModeThrow:
		return "Throw"
	case ModeHandleYield:
		return "HandleYield"
	case ModeReturn:
		return "Return"
	default:
		return "Unknown"
	}
}

// Mode is the segment's operational state plus its payload.
type Mode struct {
	Kind  ModeKind
	Value Value // Deliver / Return payload
	Exc   Value // Throw payload
	Node  *Node // HandleYield payload
}

func DeliverMode(v Value) Mode     { return Mode{Kind: ModeDeliver, Value: v} }
func ThrowMode(exc Value) Mode     { return Mode{Kind: ModeThrow, Exc: exc} }
func ReturnMode(v Value) Mode      { return Mode{Kind: ModeReturn, Value: v} }
func HandleYieldMode(n *Node) Mode { return Mode{Kind: ModeHandleYield, Node: n} }

// SegmentKind distinguishes a plain execution segment from one that also
// marks a prompt boundary.
type SegmentKind byte

const (
	KindNormal SegmentKind = iota
	KindPromptBoundary
)

// PromptInfo holds the fields specific to a PromptBoundary segment.
// Identity is a content fingerprint of the installed handler (see
// PromptIdentity). It is stored on the prompt segment only; handler
// lookup and the lookup anchor (AnchorSegment/AnchorMarker) do not read it.
type PromptInfo struct {
	HandledMarker Marker
	Handler       Handler
	Identity      string
}

// PendingExternalOrigin distinguishes who is waiting on a NeedsExternal
// outcome: ordinary IR reduction (Apply/Expand/iterator) or a live native
// handler state machine (see NativeHandlerStepFrame).
type PendingExternalOrigin byte

const (
	PendingOriginIR PendingExternalOrigin = iota
	PendingOriginNativeHandler
)

// PendingExternal records a suspended external call.
type PendingExternal struct {
	Call   ExternalCall
	Origin PendingExternalOrigin
	// NativeProgram/NativeDispatch are set when Origin ==
	// PendingOriginNativeHandler: the outcome must be delivered straight
	// to NativeProgram.Resume/Throw rather than fed through the frame
	// stack.
	NativeProgram  NativeHandler
	NativeDispatch DispatchID
	// EvaluateResult marks an Apply call whose result must be
	// re-classified as a further IR expression rather than delivered as a
	// plain value.
	EvaluateResult bool
	// ExpandProgram marks an Expand call: the outcome must be a program
	// (an IR node or a generator handle), which is then run in place.
	ExpandProgram bool
	// IterFrame is the host-iterator frame to re-push when the outcome is
	// another IteratorYield, so the stream keeps driving.
	IterFrame *ProgramStreamFrame
}

// PendingErrorContext records an exception in flight that may be enriched
// via a GetExecutionContext round-trip before it propagates further.
type PendingErrorContext struct {
	Original Value
	Active   bool
}

// Segment is a unit of dynamic execution: a frame stack, a caller link, an
// execution mode, and optional prompt-boundary metadata.
type Segment struct {
	ID     SegmentID
	Marker Marker
	Caller *SegmentID

	Frames []SegFrame
	Mode   Mode
	Kind   SegmentKind
	Prompt PromptInfo

	DispatchID   *DispatchID
	PendingCall  *PendingExternal
	PendingError PendingErrorContext

	// Interceptor guard state, inherited across segment-topology changes
	// rather than reconstructed from frames alone.
	InterceptorEvalDepth int
	InterceptorSkipStack []Marker
	Interceptors         []InterceptorEntry

	// Handler-lookup anchor: restricts a dispatch's caller-chain walk to
	// handlers installed at or below this point, used when a continuation
	// activation re-enters a previously captured chain.
	AnchorSegment *SegmentID
	AnchorMarker  Marker

	// OwningTask is set on the root segment of a scheduler-spawned task, so
	// the engine recognises that segment's Return falling off the end as a
	// task completion rather than a whole-VM run completion.
	OwningTask *TaskID
}

// NewSegment creates a Normal segment, recycled through the segment pool.
func NewSegment(id SegmentID, marker Marker, caller *SegmentID) *Segment {
	s := acquireSegment()
	s.ID = id
	s.Marker = marker
	s.Caller = caller
	s.Kind = KindNormal
	return s
}

// NewPromptSegment creates a PromptBoundary segment.
func NewPromptSegment(id SegmentID, marker Marker, caller *SegmentID, handledMarker Marker, handler Handler, identity string) *Segment {
	s := NewSegment(id, marker, caller)
	s.Kind = KindPromptBoundary
	s.Prompt = PromptInfo{HandledMarker: handledMarker, Handler: handler, Identity: identity}
	return s
}

// HasFrames gates the transition from Deliver/Throw to Return.
func (s *Segment) HasFrames() bool { return len(s.Frames) > 0 }

// PushFrame pushes f onto the segment's frame stack.
func (s *Segment) PushFrame(f SegFrame) { s.Frames = append(s.Frames, f) }

// PopFrame pops and returns the top frame, or nil if empty.
func (s *Segment) PopFrame() SegFrame {
	n := len(s.Frames)
	if n == 0 {
		return nil
	}
	f := s.Frames[n-1]
	s.Frames = s.Frames[:n-1]
	return f
}

// CopyInterceptorGuard copies interceptor-eval depth, the skip stack and
// the installed interceptor list from parent into s, as required whenever
// a new segment is derived from an existing one (handler segments,
// delegate/pass clears, continuation activation) — frames alone cannot
// reconstruct guard context.
func (s *Segment) CopyInterceptorGuard(parent *Segment) {
	s.InterceptorEvalDepth = parent.InterceptorEvalDepth
	s.InterceptorSkipStack = append([]Marker(nil), parent.InterceptorSkipStack...)
	s.Interceptors = append([]InterceptorEntry(nil), parent.Interceptors...)
}

// InterceptorEntry is a yield-transformer installed at a segment: an
// opaque callable plus the effect type names it filters on (empty means
// all) and its forwarding mode.
type InterceptorEntry struct {
	Marker   Marker
	Callable Value
	Types    []string
	Mode     string
}
