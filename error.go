// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// ResultSafe handler: runs a sub-program under the current handler stack
// and materialises its outcome as Ok(v) or Err(e) instead of letting an
// exception propagate. The frame conversion from a throw back into a
// value happens here, not in the engine: frames may convert, the engine
// only routes.

// NResultSafe builds a ResultSafe effect node over sub.
func NResultSafe(sub *Node) *Node {
	return NPerform(NewEffect(ResultSafeOp{SubProgram: sub}))
}

type resultSafePhase byte

const (
	resultSafePhaseStart resultSafePhase = iota
	resultSafePhaseEval                  // sub-program in flight
	resultSafePhaseDone
)

type resultSafeProgram struct {
	phase resultSafePhase
	k     Value
}

// NewResultSafeHandler builds the ResultSafe handler.
func NewResultSafeHandler() Handler {
	return NewNativeHandler(func() NativeHandler { return &resultSafeProgram{} })
}

func (*resultSafeProgram) CanHandle(eff DispatchEffect) bool {
	_, ok := eff.Op.(ResultSafeOp)
	return ok
}

func (*resultSafeProgram) Name() string                         { return "ResultSafe" }
func (*resultSafeProgram) DebugInfo() string                    { return "builtin result-safe handler" }
func (*resultSafeProgram) SupportsErrorContextConversion() bool { return true }

func (p *resultSafeProgram) Start(eff DispatchEffect, k Value, _ *Store) HandlerResult {
	op, ok := eff.Op.(ResultSafeOp)
	if !ok {
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
	p.k = k
	p.phase = resultSafePhaseEval
	return Yield(NEval(op.SubProgram, nil))
}

func (p *resultSafeProgram) Resume(v Value, _ *Store) HandlerResult {
	if p.phase == resultSafePhaseEval {
		p.phase = resultSafePhaseDone
		return Yield(NResume(p.k, VOk(v)))
	}
	return ReturnResult(v)
}

func (p *resultSafeProgram) Throw(exc Value, _ *Store) HandlerResult {
	if p.phase == resultSafePhaseEval {
		p.phase = resultSafePhaseDone
		return Yield(NResume(p.k, VErr(exc)))
	}
	return ThrowResult(exc)
}
