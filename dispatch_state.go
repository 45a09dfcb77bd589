// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// DispatchContext tracks one in-flight effect dispatch: the effect being
// handled, the chain of handlers eligible to handle it (most specific
// first), which link in that chain is currently active, and the prompt
// segment the dispatch is anchored at. The chain carries an explicit
// cursor because handlers can delegate or pass to a successor chosen at
// run time rather than fixed at install time.
type DispatchContext struct {
	ID     DispatchID
	Effect DispatchEffect

	// IsExecutionContextEffect marks a dispatch started internally to
	// resolve GetExecutionContext during exception enrichment, so the engine can tell it apart from a user-visible dispatch.
	IsExecutionContextEffect bool

	// HandlerChain is the ordered list of handlers the caller-chain walk
	// found eligible for Effect, most specific (innermost) first.
	// PromptSegs holds, in parallel, the PromptBoundary segment each link
	// was found at, since delegate/pass need to know where the next link's
	// handler body actually runs.
	HandlerChain []HandlerRef
	PromptSegs   []SegmentID
	HandlerIndex int

	// KUser is the continuation value handed to the active handler link.
	KUser Value

	// PromptSegmentID is the prompt segment of the handler the dispatch
	// first selected. Delegate and Pass leave it unchanged.
	PromptSegmentID SegmentID

	// Completed is set once the dispatch's outermost handler has produced
	// a final value/exception and lazy_pop_completed may reclaim it.
	Completed bool

	// OriginalException, when set, is the exception a SupportsErrorContext
	// handler is being asked to convert via GetExecutionContext; nil for
	// ordinary effect dispatches.
	OriginalException *Value

	// BusyMarkers are the handler markers this dispatch has claimed busy
	// (the started handler plus one per delegate/pass hop). All are
	// released together at completion: a delegated-away handler still owns
	// live frames through the re-captured continuation chain, so it stays
	// ineligible for inner dispatches until the whole request resolves.
	BusyMarkers []Marker

	// PerformSegment is the segment that executed the Perform this dispatch
	// answers. It is recorded when the dispatch starts; a handler that falls
	// off the end has its result delivered by resuming the user
	// continuation, not by writing into this segment.
	PerformSegment SegmentID
}

// CurrentHandler returns the handler link the dispatch is currently
// presenting the effect to, or false if the chain is exhausted.
func (d *DispatchContext) CurrentHandler() (HandlerRef, bool) {
	if d.HandlerIndex < 0 || d.HandlerIndex >= len(d.HandlerChain) {
		return HandlerRef{}, false
	}
	return d.HandlerChain[d.HandlerIndex], true
}

// CurrentPromptSeg returns the segment the current handler link's body
// runs at, or false if the chain is exhausted.
func (d *DispatchContext) CurrentPromptSeg() (SegmentID, bool) {
	if d.HandlerIndex < 0 || d.HandlerIndex >= len(d.PromptSegs) {
		return 0, false
	}
	return d.PromptSegs[d.HandlerIndex], true
}

// DispatchStack is the VM's stack of in-flight dispatches. Entries are
// pushed by StartDispatch and only ever removed from the top by
// LazyPopCompleted: intermediate state survives until the outermost link
// resolves.
type DispatchStack struct {
	entries []*DispatchContext
}

// NewDispatchStack creates an empty dispatch stack.
func NewDispatchStack() *DispatchStack { return &DispatchStack{} }

// StartDispatch pushes a new DispatchContext for effect, positioned at the
// first (innermost) handler in chain, and returns it. An empty chain means no handler anywhere in the
// caller chain matched; the caller is expected to raise ErrUnhandledEffect
// rather than push a context for it.
func (s *DispatchStack) StartDispatch(id DispatchID, effect DispatchEffect, chain []HandlerRef, promptSegs []SegmentID, kUser Value) *DispatchContext {
	d := &DispatchContext{
		ID:           id,
		Effect:       effect,
		HandlerChain: chain,
		PromptSegs:   promptSegs,
		HandlerIndex: 0,
		KUser:        kUser,
	}
	if len(promptSegs) > 0 {
		d.PromptSegmentID = promptSegs[0]
	}
	s.entries = append(s.entries, d)
	return d
}

// Get returns the DispatchContext with the given id, searching from the
// top (most recently started) down, or false if not found.
func (s *DispatchStack) Get(id DispatchID) (*DispatchContext, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID == id {
			return s.entries[i], true
		}
	}
	return nil, false
}

// Top returns the most recently started dispatch, or false if the stack is
// empty.
func (s *DispatchStack) Top() (*DispatchContext, bool) {
	if n := len(s.entries); n > 0 {
		return s.entries[n-1], true
	}
	return nil, false
}

// Delegate advances d to the handler at index next in HandlerChain,
// rebinding the user continuation to kUser (the re-captured handler
// continuation). It does not create a new DispatchContext: the same
// dispatch identity continues with a new current handler. PromptSegmentID
// stays anchored at the dispatch's original prompt — the completion check
// fires where the chain's value finally returns to that prompt, not at
// whatever link last ran, so a deep delegate chain cannot close the
// dispatch early through an intermediate frame.
func (s *DispatchStack) Delegate(d *DispatchContext, next int, kUser Value) {
	d.HandlerIndex = next
	d.KUser = kUser
}

// Pass advances the chain like Delegate but leaves the user continuation
// untouched: the caller of the outer handler, not the inner one, receives
// the eventual value.
func (s *DispatchStack) Pass(d *DispatchContext, next int) {
	d.HandlerIndex = next
}

// MarkCompleted flags d as resolved. The entry is not removed immediately:
// LazyPopCompleted reclaims completed entries from the top down, so a
// dispatch buried under still-active outer dispatches is not disturbed
// mid-walk.
func (s *DispatchStack) MarkCompleted(d *DispatchContext) {
	d.Completed = true
}

// LazyPopCompleted removes completed dispatches from the top of the stack.
// It stops at the first not-yet-completed entry; completed entries below
// a live one stay until a later call finds them at the top.
func (s *DispatchStack) LazyPopCompleted() {
	for n := len(s.entries); n > 0 && s.entries[n-1].Completed; n = len(s.entries) {
		s.entries = s.entries[:n-1]
	}
}

// Len reports how many dispatches are currently tracked.
func (s *DispatchStack) Len() int { return len(s.entries) }
