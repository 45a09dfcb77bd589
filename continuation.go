// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Continuation is a first-class, one-shot snapshot of a segment chain,
// identified by a ContID. The snapshot is shared-immutable: frames are
// copied once at capture and never mutated through the continuation; an
// activation builds a fresh segment from them instead of re-entering the
// origin segment.
type Continuation struct {
	ID            ContID
	OriginSegment SegmentID
	Snapshot      []SegFrame
	Marker        Marker
	DispatchID    *DispatchID

	// CapturedCaller is the origin segment's caller link at capture time.
	// Transfer splices the activated segment onto this chain; Resume
	// ignores it and uses the activating site's chain instead.
	CapturedCaller *SegmentID

	Mode             Mode
	PendingCall      *PendingExternal
	PendingError     PendingErrorContext
	InterceptorDepth int
	InterceptorSkip  []Marker
	Interceptors     []InterceptorEntry

	// Unstarted continuations (built by CreateContinuation) carry a
	// program + handler list to install on first activation instead of a
	// segment snapshot.
	Program  *Node
	Handlers []HandlerRef

	// Parent links a delegate-produced continuation to the user
	// continuation it was re-captured from.
	Parent *Continuation

	// OwningTaskRef records which scheduler task (if any) this continuation
	// was captured under, so reactivating it from a queued Gather/Race
	// wakeup still completes the right task instead of being mistaken for
	// the VM's primary run chain.
	OwningTaskRef *TaskID

	started bool
	one     oneShot
}

// CaptureContinuation snapshots seg's dynamic state by shared reference.
// The caller mints id from the owning VM's IDSpace.
func CaptureContinuation(id ContID, seg *Segment, dispatchID *DispatchID) *Continuation {
	c := &Continuation{
		ID:               id,
		OriginSegment:    seg.ID,
		Snapshot:         append([]SegFrame(nil), seg.Frames...),
		Marker:           seg.Marker,
		DispatchID:       dispatchID,
		CapturedCaller:   seg.Caller,
		Mode:             seg.Mode,
		PendingCall:      seg.PendingCall,
		PendingError:     seg.PendingError,
		InterceptorDepth: seg.InterceptorEvalDepth,
		InterceptorSkip:  append([]Marker(nil), seg.InterceptorSkipStack...),
		Interceptors:     append([]InterceptorEntry(nil), seg.Interceptors...),
		started:          true,
	}
	return c
}

// CreateUnstartedContinuation builds a continuation that has never run: it
// carries the program and handler list to install when activated.
func CreateUnstartedContinuation(id ContID, program *Node, handlers []HandlerRef) *Continuation {
	return &Continuation{ID: id, Program: program, Handlers: handlers}
}

// Started reports whether this continuation has ever executed a step.
// Resume/Transfer on an unstarted continuation is a TypeError;
// ResumeContinuation is the only activation that starts one.
func (c *Continuation) Started() bool { return c.started }

// markStarted flips the started flag when ResumeContinuation installs an
// unstarted continuation's program.
func (c *Continuation) markStarted() { c.started = true }

// TryConsume performs the one-shot claim: the first caller wins and gets
// true; every subsequent caller gets false.
func (c *Continuation) TryConsume() bool { return c.one.TryUse() }

// IsConsumed reports whether this continuation has already been consumed,
// without attempting to consume it.
func (c *Continuation) IsConsumed() bool { return c.one.Used() }

// Discard consumes the continuation without activating it. Dispatch
// completion discards k_user when the handler returned a value instead of
// resuming.
func (c *Continuation) Discard() { c.one.Discard() }

// rebuildSegment materialises the snapshot as a fresh segment with the
// given id and caller. Guard state travels with the continuation because
// frames alone cannot reconstruct it.
func (c *Continuation) rebuildSegment(id SegmentID, caller *SegmentID) *Segment {
	seg := NewSegment(id, c.Marker, caller)
	seg.Frames = append([]SegFrame(nil), c.Snapshot...)
	if c.DispatchID != nil {
		did := *c.DispatchID
		seg.DispatchID = &did
	}
	seg.PendingCall = c.PendingCall
	seg.PendingError = c.PendingError
	seg.InterceptorEvalDepth = c.InterceptorDepth
	seg.InterceptorSkipStack = append([]Marker(nil), c.InterceptorSkip...)
	seg.Interceptors = append([]InterceptorEntry(nil), c.Interceptors...)
	return seg
}
