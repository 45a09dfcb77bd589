// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// State handler: Get/Put/Modify over the per-VM state store.
//
// Each dispatch runs a fresh stateProgram instance, so re-entrancy needs
// no locks; the store itself is only ever touched from the owning VM's
// step loop.

// NGet/NPut/NModify build the state effect nodes.
func NGet(key string) *Node { return NPerform(NewEffect(GetOp{Key: key})) }
func NPut(key string, v Value) *Node {
	return NPerform(NewEffect(PutOp{Key: key, Value: v}))
}

// NModify applies modifier (a host callable) to the value at key, stores
// the result, and evaluates to the old value.
func NModify(key string, modifier Value) *Node {
	return NPerform(NewEffect(ModifyOp{Key: key, Modifier: modifier}))
}

type statePhase byte

const (
	statePhaseStart    statePhase = iota
	statePhaseModifier            // waiting for the host modifier's result
	statePhaseDone                // final resume issued; next value is the answer
)

type stateProgram struct {
	phase statePhase
	k     Value
	key   string
	old   Value
}

// NewStateHandler builds the State handler.
func NewStateHandler() Handler {
	return NewNativeHandler(func() NativeHandler { return &stateProgram{} })
}

func (*stateProgram) CanHandle(eff DispatchEffect) bool {
	switch eff.Op.(type) {
	case GetOp, PutOp, ModifyOp:
		return true
	}
	return false
}

func (*stateProgram) Name() string                         { return "State" }
func (*stateProgram) DebugInfo() string                    { return "builtin state handler (Get/Put/Modify)" }
func (*stateProgram) SupportsErrorContextConversion() bool { return false }

func (p *stateProgram) Start(eff DispatchEffect, k Value, store *Store) HandlerResult {
	p.k = k
	switch op := eff.Op.(type) {
	case GetOp:
		v, ok := store.State[op.Key]
		if !ok {
			v = None
		}
		p.phase = statePhaseDone
		return Yield(NResume(k, v))
	case PutOp:
		store.State[op.Key] = op.Value
		p.phase = statePhaseDone
		return Yield(NResume(k, Unit))
	case ModifyOp:
		p.key = op.Key
		old, ok := store.State[op.Key]
		if !ok {
			old = None
		}
		p.old = old
		p.phase = statePhaseModifier
		return NeedsExternalResult(ExternalCall{Kind: CallCallFunc, Callee: op.Modifier, Args: []Value{old}})
	default:
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
}

func (p *stateProgram) Resume(v Value, store *Store) HandlerResult {
	switch p.phase {
	case statePhaseModifier:
		store.State[p.key] = v
		p.phase = statePhaseDone
		// Modify evaluates to the value before modification.
		return Yield(NResume(p.k, p.old))
	default:
		return ReturnResult(v)
	}
}

func (p *stateProgram) Throw(exc Value, _ *Store) HandlerResult {
	if p.phase == statePhaseModifier {
		p.phase = statePhaseDone
		return Yield(NResumeThrow(p.k, exc))
	}
	return ThrowResult(exc)
}
