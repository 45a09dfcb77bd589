// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "testing"

func TestOneShotTryUse(t *testing.T) {
	var g oneShot
	if g.Used() {
		t.Fatalf("fresh guard reports used")
	}
	if !g.TryUse() {
		t.Fatalf("first use must win")
	}
	if g.TryUse() {
		t.Fatalf("second use must lose")
	}
	if !g.Used() {
		t.Fatalf("guard not marked used")
	}
}

func TestOneShotDiscard(t *testing.T) {
	var g oneShot
	g.Discard()
	if g.TryUse() {
		t.Fatalf("discarded guard still usable")
	}
}

func TestConsumedSet(t *testing.T) {
	s := NewConsumedSet()
	if s.Contains(1) {
		t.Fatalf("empty set contains 1")
	}
	s.Add(1)
	s.Add(2)
	if !s.Contains(1) || !s.Contains(2) || s.Len() != 2 {
		t.Fatalf("set state wrong: %d", s.Len())
	}
	s.Reset()
	if s.Contains(1) || s.Len() != 0 {
		t.Fatalf("reset did not clear")
	}
}

func TestContinuationConsumeSemantics(t *testing.T) {
	ids := NewIDSpace()
	seg := NewSegment(ids.NextSegmentID(), ids.NextMarker(), nil)
	c := CaptureContinuation(ids.NextContID(), seg, nil)
	if !c.Started() {
		t.Fatalf("captured continuation must be started")
	}
	if !c.TryConsume() || c.TryConsume() {
		t.Fatalf("one-shot claim broken")
	}

	u := CreateUnstartedContinuation(ids.NextContID(), NPure(Unit), nil)
	if u.Started() {
		t.Fatalf("unstarted continuation reports started")
	}
	u.Discard()
	if u.TryConsume() {
		t.Fatalf("discarded continuation still consumable")
	}
}
