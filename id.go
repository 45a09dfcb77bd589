// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import (
	"fmt"
	"sync/atomic"
)

// Identifiers for the VM's dynamic topology. All four are opaque, totally
// ordered, minted from independent monotonic counters, and never reused
// within a process lifetime: a generation counter never goes backwards.

// Marker identifies a handler instance. Capturing a continuation records
// its marker; forwarding (delegate/pass) walks the caller chain by marker.
type Marker uint64

// SegmentID is an arena key for a Segment. A dangling id (one whose segment
// was freed) is detectable: Arena.Get returns (nil, false) for it.
type SegmentID uint64

// DispatchID identifies one in-flight effect request.
type DispatchID uint64

// ContID identifies a captured Continuation. Consumed-id bookkeeping lives
// in a process-lifetime-local set (ConsumedSet); lookup of a consumed
// id returns "not found".
type ContID uint64

func (m Marker) String() string     { return fmt.Sprintf("marker#%d", uint64(m)) }
func (s SegmentID) String() string  { return fmt.Sprintf("segment#%d", uint64(s)) }
func (d DispatchID) String() string { return fmt.Sprintf("dispatch#%d", uint64(d)) }
func (c ContID) String() string     { return fmt.Sprintf("cont#%d", uint64(c)) }

// idGenerator mints monotonically increasing ids of type T from a shared
// atomic counter. Zero is never issued, so the zero value of each id type
// is reserved to mean "absent" (mirrors SegmentID(0) / Marker(0) as a safe
// sentinel in optional fields such as Segment.Caller).
type idGenerator struct {
	counter atomic.Uint64
}

func (g *idGenerator) next() uint64 {
	return g.counter.Add(1)
}

// IDSpace mints Marker, SegmentID, DispatchID and ContID values for one VM
// instance. Each VM owns its own IDSpace so that two VM instances never
// collide on ids even though both start counting from zero (per-instance
// counters, never process-global) — this keeps the "share no mutable
// state" guarantee exact even across IDSpace allocation.
type IDSpace struct {
	markers   idGenerator
	segments  idGenerator
	dispatchs idGenerator
	conts     idGenerator
	tasks     idGenerator
}

// NewIDSpace creates a fresh id space for one VM instance.
func NewIDSpace() *IDSpace {
	return &IDSpace{}
}

func (s *IDSpace) NextMarker() Marker         { return Marker(s.markers.next()) }
func (s *IDSpace) NextSegmentID() SegmentID   { return SegmentID(s.segments.next()) }
func (s *IDSpace) NextDispatchID() DispatchID { return DispatchID(s.dispatchs.next()) }
func (s *IDSpace) NextContID() ContID         { return ContID(s.conts.next()) }
func (s *IDSpace) NextTaskID() TaskID         { return TaskID(s.tasks.next()) }
