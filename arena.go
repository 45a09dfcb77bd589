// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Arena provides stable ownership for segments: a free-list arena whose
// slots recycle through the segment pool. A stale SegmentID (one whose
// segment was freed) is detectable rather than aliasing a reused slot —
// a recycled index never silently aliases old data.
//
// Ids are minted by IDSpace and never reused; the arena maps each id to
// its slot and drops the mapping on Free, so a recycled slot is never
// reachable through an old id and the external contract stays simple:
// using an id whose segment was freed returns (nil, false) from Get.
type Arena struct {
	slots []arenaSlot
	free  []int
	bySeg map[SegmentID]int
}

type arenaSlot struct {
	segment *Segment
	live    bool
}

// NewArena creates an empty segment arena.
func NewArena() *Arena {
	return &Arena{bySeg: make(map[SegmentID]int)}
}

// Alloc stores seg and returns its id; seg.ID must already be set by the
// caller (minted from the owning VM's IDSpace).
func (a *Arena) Alloc(seg *Segment) SegmentID {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx] = arenaSlot{segment: seg, live: true}
	} else {
		idx = len(a.slots)
		a.slots = append(a.slots, arenaSlot{segment: seg, live: true})
	}
	a.bySeg[seg.ID] = idx
	return seg.ID
}

// Get returns the live segment for id, or (nil, false) if id is dangling.
func (a *Arena) Get(id SegmentID) (*Segment, bool) {
	idx, ok := a.bySeg[id]
	if !ok {
		return nil, false
	}
	slot := a.slots[idx]
	if !slot.live {
		return nil, false
	}
	return slot.segment, true
}

// GetMut is an alias for Get: Segment fields are always mutated through
// the returned pointer directly (Go has no separate mutable-borrow type).
func (a *Arena) GetMut(id SegmentID) (*Segment, bool) { return a.Get(id) }

// Free releases id. Using id afterward returns (nil, false) from Get. The
// segment struct itself is recycled through the segment pool, so callers
// must not retain the pointer past this call.
func (a *Arena) Free(id SegmentID) {
	idx, ok := a.bySeg[id]
	if !ok {
		return
	}
	if seg := a.slots[idx].segment; seg != nil {
		releaseSegment(seg)
	}
	a.slots[idx] = arenaSlot{}
	delete(a.bySeg, id)
	a.free = append(a.free, idx)
}

// ReparentChildren updates every live segment whose Caller == old to
// newCaller. Called when old is about to be freed so its
// children don't dangle.
func (a *Arena) ReparentChildren(old SegmentID, newCaller *SegmentID) {
	for _, slot := range a.slots {
		if !slot.live || slot.segment == nil {
			continue
		}
		if slot.segment.Caller != nil && *slot.segment.Caller == old {
			slot.segment.Caller = newCaller
		}
	}
}
