// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "sync"

// Segment pooling for the arena's alloc/free churn. Dispatch-heavy
// programs create and discard a segment per handler invocation; recycling
// the struct (and its frame backing array) keeps that churn off the
// garbage collector. Pooled segments require single-owner usage: the arena
// frees a segment exactly once, and every field is zeroed on release so a
// recycled struct can never leak a stale frame or caller link.

var segmentPool = sync.Pool{New: func() any { return new(Segment) }}

// acquireSegment takes a zeroed segment from the pool, keeping any frame
// capacity left from its previous life.
func acquireSegment() *Segment {
	return segmentPool.Get().(*Segment)
}

// releaseSegment zeroes s and returns it to the pool.
func releaseSegment(s *Segment) {
	frames := s.Frames[:0]
	*s = Segment{}
	s.Frames = frames
	segmentPool.Put(s)
}
