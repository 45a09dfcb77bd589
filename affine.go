// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"sync/atomic"
)

// oneShot wraps a continuation identity with at-most-once enforcement.
// The owning continuation can be activated at most once; subsequent
// attempts fail the TryUse check and surface as OneShotViolation.
//
// Affine usage is fundamental to the activation protocol: a captured
// segment snapshot must not be re-entered after it has been spliced back
// into the live topology, or two segment chains would alias one frame
// stack.
type oneShot struct {
	used atomic.Uintptr
}

// TryUse attempts to claim the single activation.
// Returns true exactly once; every later call returns false.
func (a *oneShot) TryUse() bool {
	return a.used.Add(1) == 1
}

// Used reports whether the activation has been claimed, without claiming it.
func (a *oneShot) Used() bool {
	return a.used.Load() != 0
}

// Discard marks the activation as claimed without performing it.
// Used when a dispatch completes through a path that never activates the
// user continuation (a handler returning a final value instead of
// resuming).
func (a *oneShot) Discard() {
	a.used.Store(1)
}

// ConsumedSet is the process-lifetime-local record of consumed ContIDs.
// It only grows during a run; a consumed id never refers to a live
// continuation again. Reset only at the start of a new top-level run.
type ConsumedSet struct {
	ids map[ContID]struct{}
}

// NewConsumedSet creates an empty consumed-id set.
func NewConsumedSet() *ConsumedSet {
	return &ConsumedSet{ids: make(map[ContID]struct{})}
}

// Add records id as consumed.
func (s *ConsumedSet) Add(id ContID) {
	s.ids[id] = struct{}{}
}

// Contains reports whether id has been consumed.
func (s *ConsumedSet) Contains(id ContID) bool {
	_, ok := s.ids[id]
	return ok
}

// Reset clears the set for a new top-level run.
func (s *ConsumedSet) Reset() {
	s.ids = make(map[ContID]struct{})
}

// Len reports how many ids have been consumed so far.
func (s *ConsumedSet) Len() int { return len(s.ids) }
