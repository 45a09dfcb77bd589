// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "testing"

func TestArenaFreedIDIsDangling(t *testing.T) {
	a := NewArena()
	ids := NewIDSpace()
	seg := NewSegment(ids.NextSegmentID(), ids.NextMarker(), nil)
	id := a.Alloc(seg)
	if _, ok := a.Get(id); !ok {
		t.Fatalf("live segment not found")
	}
	a.Free(id)
	if _, ok := a.Get(id); ok {
		t.Fatalf("freed id still resolves")
	}
	// Double free is a no-op.
	a.Free(id)
	if _, ok := a.Get(id); ok {
		t.Fatalf("double free resurrected the id")
	}
}

func TestArenaSlotReuseKeepsIDsDistinct(t *testing.T) {
	a := NewArena()
	ids := NewIDSpace()
	first := a.Alloc(NewSegment(ids.NextSegmentID(), ids.NextMarker(), nil))
	a.Free(first)
	second := a.Alloc(NewSegment(ids.NextSegmentID(), ids.NextMarker(), nil))
	if first == second {
		t.Fatalf("segment ids reused")
	}
	if _, ok := a.Get(first); ok {
		t.Fatalf("stale id aliases the recycled slot")
	}
	if _, ok := a.Get(second); !ok {
		t.Fatalf("recycled slot not reachable under its new id")
	}
}

func TestArenaReparentChildren(t *testing.T) {
	a := NewArena()
	ids := NewIDSpace()
	grandparent := a.Alloc(NewSegment(ids.NextSegmentID(), ids.NextMarker(), nil))
	parent := a.Alloc(NewSegment(ids.NextSegmentID(), ids.NextMarker(), &grandparent))
	child := a.Alloc(NewSegment(ids.NextSegmentID(), ids.NextMarker(), &parent))

	a.ReparentChildren(parent, &grandparent)
	a.Free(parent)

	got, ok := a.Get(child)
	if !ok || got.Caller == nil || *got.Caller != grandparent {
		t.Fatalf("child not reparented: %+v", got)
	}
}

func TestIDSpaceMonotonic(t *testing.T) {
	ids := NewIDSpace()
	var prev SegmentID
	for i := 0; i < 1000; i++ {
		next := ids.NextSegmentID()
		if next <= prev {
			t.Fatalf("segment ids not strictly increasing: %d after %d", next, prev)
		}
		prev = next
	}
	if ids.NextMarker() == 0 || ids.NextDispatchID() == 0 || ids.NextContID() == 0 || ids.NextTaskID() == 0 {
		t.Fatalf("zero id issued; zero is the absent sentinel")
	}
}
