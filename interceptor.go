// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// interceptorChain walks seg's installed interceptors most-recently
// installed first, mirroring how dispatch walks the
// handler caller chain innermost first: both are "most specific wins"
// lookups over a list built by appending, so it is walked in reverse.
func interceptorChain(seg *Segment) []InterceptorEntry {
	n := len(seg.Interceptors)
	out := make([]InterceptorEntry, n)
	for i, e := range seg.Interceptors {
		out[n-1-i] = e
	}
	return out
}

// matchesEffectType reports whether typeName is in types; an interceptor
// installed with no type filter matches everything.
func matchesEffectType(types []string, typeName string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == typeName {
			return true
		}
	}
	return false
}

// selectInterceptorFor finds the first interceptor in seg's chain eligible
// to see a yield classified as typeName, skipping any whose Marker is on
// seg's skip stack (an interceptor re-entering its own yield is not
// re-applied). It returns the entry and true, or false if none match.
func selectInterceptorFor(seg *Segment, typeName string) (InterceptorEntry, bool) {
	for _, e := range interceptorChain(seg) {
		if onSkipStack(seg, e.Marker) {
			continue
		}
		if matchesEffectType(e.Types, typeName) {
			return e, true
		}
	}
	return InterceptorEntry{}, false
}

func onSkipStack(seg *Segment, m Marker) bool {
	for _, s := range seg.InterceptorSkipStack {
		if s == m {
			return true
		}
	}
	return false
}

// pushSkip pushes marker onto seg's skip stack for the duration of one
// interceptor application, so the interceptor's own sub-dispatches (and,
// if Mode == "Delegate", the inner dispatch's continuation of the same
// effect) do not re-trigger it.
func pushSkip(seg *Segment, marker Marker) {
	seg.InterceptorSkipStack = append(seg.InterceptorSkipStack, marker)
}

// popSkip removes the most recently pushed skip marker. Called once the
// interceptor application that pushed it has fully resolved.
func popSkip(seg *Segment) {
	if n := len(seg.InterceptorSkipStack); n > 0 {
		seg.InterceptorSkipStack = seg.InterceptorSkipStack[:n-1]
	}
}

// enterEval increments seg's interceptor-eval depth guard for the duration
// of evaluating a program an interceptor returned,
// and leaveEval decrements it. The guard prevents a handler's trailing
// auto-evaluated return program from itself being mistaken for a fresh
// top-level return while an interceptor-driven sub-evaluation is still
// open.
func enterEval(seg *Segment) { seg.InterceptorEvalDepth++ }
func leaveEval(seg *Segment) { seg.InterceptorEvalDepth-- }

// inEval reports whether seg is currently inside an interceptor-driven
// program evaluation.
func inEval(seg *Segment) bool { return seg.InterceptorEvalDepth > 0 }
