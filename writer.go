// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Writer handler: Tell appends to the store's log and resumes with unit.
// Log order is the order Tell was observed along the single control flow;
// isolated spawned tasks append their whole log on completion instead.

// NTell builds a Tell effect node.
func NTell(message Value) *Node { return NPerform(NewEffect(TellOp{Message: message})) }

type writerProgram struct {
	done bool
}

// NewWriterHandler builds the Writer handler.
func NewWriterHandler() Handler {
	return NewNativeHandler(func() NativeHandler { return &writerProgram{} })
}

func (*writerProgram) CanHandle(eff DispatchEffect) bool {
	_, ok := eff.Op.(TellOp)
	return ok
}

func (*writerProgram) Name() string                         { return "Writer" }
func (*writerProgram) DebugInfo() string                    { return "builtin writer handler (Tell)" }
func (*writerProgram) SupportsErrorContextConversion() bool { return false }

func (p *writerProgram) Start(eff DispatchEffect, k Value, store *Store) HandlerResult {
	op, ok := eff.Op.(TellOp)
	if !ok {
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
	store.Log = append(store.Log, op.Message)
	p.done = true
	return Yield(NResume(k, Unit))
}

func (p *writerProgram) Resume(v Value, _ *Store) HandlerResult {
	return ReturnResult(v)
}

func (p *writerProgram) Throw(exc Value, _ *Store) HandlerResult {
	return ThrowResult(exc)
}
