// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "github.com/google/uuid"

// TraceEventKind labels what a TraceEntry records: yields as the engine
// classifies them, plus the dispatch lifecycle events (started,
// delegated/passed, completed, resumed/transferred) the active-chain view
// is rebuilt from.
type TraceEventKind byte

const (
	TraceYield TraceEventKind = iota
	TraceDispatchStarted
	TraceDelegated
	TracePassed
	TraceHandlerCompleted
	TraceResumed
	TraceTransferred
)

func (k TraceEventKind) String() string {
	switch k {
	case TraceYield:
		return "Yield"
	case TraceDispatchStarted:
		return "DispatchStarted"
	case TraceDelegated:
		return "Delegated"
	case TracePassed:
		return "Passed"
	case TraceHandlerCompleted:
		return "HandlerCompleted"
	case TraceResumed:
		return "Resumed"
	case TraceTransferred:
		return "Transferred"
	default:
		return "Unknown"
	}
}

// TraceEntry is one recorded step of a run.
type TraceEntry struct {
	Kind      TraceEventKind
	SegmentID SegmentID
	Tag       Tag    // yield entries: the classified node tag
	Effect    string // effect type name, empty outside dispatch events
	Handler   string // handler name for dispatch lifecycle events
	Meta      CallMeta
}

// Trace is the append-only log a VM accumulates when tracing is enabled,
// plus the run identity it belongs to — a UUID per run so traces from
// concurrently driven VM instances are never confused when persisted or
// compared side by side.
type Trace struct {
	RunID   uuid.UUID
	Entries []TraceEntry
}

// NewTrace starts a fresh trace for a new run.
func NewTrace() *Trace {
	return &Trace{RunID: uuid.New()}
}

// Record appends one entry.
func (t *Trace) Record(e TraceEntry) {
	t.Entries = append(t.Entries, e)
}

// traceEvent records a dispatch lifecycle event when tracing is on.
func (vm *VM) traceEvent(kind TraceEventKind, seg SegmentID, effect, handler string) {
	if !vm.tracing || vm.trace == nil {
		return
	}
	vm.trace.Record(TraceEntry{Kind: kind, SegmentID: seg, Effect: effect, Handler: handler})
}

// traceYield records one classified yield when tracing is on.
func (vm *VM) traceYield(seg *Segment, n *Node) {
	if !vm.tracing || vm.trace == nil {
		return
	}
	e := TraceEntry{Kind: TraceYield, SegmentID: seg.ID, Tag: n.Tag, Meta: n.Meta}
	if n.Tag == TagPerform || n.Tag == TagDelegate || n.Tag == TagPass {
		e.Effect = n.Effect.TypeName()
	}
	vm.trace.Record(e)
}

// errorEvent packages a driver-level failure with the assembled trace and
// the reconstructed active chain, so the host can render what was
// executing without walking VM internals.
func (vm *VM) errorEvent(err error) Event {
	return Event{
		Kind:        EventError,
		Err:         err,
		Trace:       vm.trace,
		ActiveChain: AssembleActiveChain(vm.trace),
	}
}

// ActiveChainEntry is one reconstructed "currently executing" site: a
// program call, an effect in flight, or the handler answering it.
type ActiveChainEntry struct {
	Kind    TraceEventKind
	Effect  string
	Handler string
	Meta    CallMeta
}

// AssembleActiveChain rebuilds the collapsed view of what was executing
// from the capture log alone: dispatch-started events push, handler
// completions pop, and the surviving prefix is the chain live at the
// moment the log ended. Both the flat entry sequence and this view come
// from the same log — no live stack traversal.
func AssembleActiveChain(t *Trace) []ActiveChainEntry {
	if t == nil {
		return nil
	}
	var chain []ActiveChainEntry
	for _, e := range t.Entries {
		switch e.Kind {
		case TraceDispatchStarted, TraceDelegated, TracePassed:
			chain = append(chain, ActiveChainEntry{Kind: e.Kind, Effect: e.Effect, Handler: e.Handler, Meta: e.Meta})
		case TraceHandlerCompleted:
			if n := len(chain); n > 0 {
				chain = chain[:n-1]
			}
		case TraceYield:
			if e.Meta.FunctionName != "" && (e.Tag == TagApply || e.Tag == TagExpand || e.Tag == TagMap || e.Tag == TagFlatMap) {
				chain = append(chain, ActiveChainEntry{Kind: TraceYield, Meta: e.Meta})
			}
		}
	}
	return chain
}

// ActiveChain reconstructs the caller chain of segment ids live at the
// moment of capture, most recent first, by walking arena Caller links.
// Used to render a call-stack-shaped view for diagnostics.
func ActiveChain(a *Arena, from SegmentID) []SegmentID {
	var chain []SegmentID
	cur := from
	seen := make(map[SegmentID]bool)
	for {
		if seen[cur] {
			break // defensive: a cyclic Caller chain is an internal invariant violation, not a panic site
		}
		seen[cur] = true
		chain = append(chain, cur)
		seg, ok := a.Get(cur)
		if !ok || seg.Caller == nil {
			break
		}
		cur = *seg.Caller
	}
	return chain
}
