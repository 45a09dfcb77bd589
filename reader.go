// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "fmt"

// Reader handler: Ask over the environment map, plus Local scoping. Local
// runs its sub-program under a fresh reader instance carrying an overlay
// of the overridden keys, so the outer environment is never mutated and
// needs no restore step.

// NAsk/NLocal build the reader effect nodes.
func NAsk(key string) *Node { return NPerform(NewEffect(AskOp{Key: key})) }
func NLocal(envUpdate map[string]Value, sub *Node) *Node {
	return NPerform(NewEffect(LocalOp{EnvUpdate: envUpdate, SubProgram: sub}))
}

// EnvKeyMissingError is raised when Ask finds no binding for a key.
type EnvKeyMissingError struct {
	Key string
}

func (e *EnvKeyMissingError) Error() string {
	return fmt.Sprintf("kont: environment key missing: %q", e.Key)
}

type readerPhase byte

const (
	readerPhaseStart readerPhase = iota
	readerPhaseLocal             // sub-program running under the scoped instance
	readerPhaseDone
)

type readerProgram struct {
	vm      *VM
	overlay map[string]Value
	phase   readerPhase
	k       Value
}

// NewReaderHandler builds the Reader handler for vm. The VM reference is
// what lets Local mint a scoped handler installation on the fly.
func NewReaderHandler(vm *VM) Handler {
	return NewNativeHandler(func() NativeHandler { return &readerProgram{vm: vm} })
}

// scopedReaderRef installs a reader whose overlay shadows the ambient
// environment for the duration of one Local sub-program.
func scopedReaderRef(vm *VM, overlay map[string]Value) HandlerRef {
	h := NewNativeHandler(func() NativeHandler { return &readerProgram{vm: vm, overlay: overlay} })
	return vm.NewHandlerRef("Reader", "scoped reader (Local)", h)
}

func (*readerProgram) CanHandle(eff DispatchEffect) bool {
	switch eff.Op.(type) {
	case AskOp, LocalOp:
		return true
	}
	return false
}

func (*readerProgram) Name() string                         { return "Reader" }
func (*readerProgram) DebugInfo() string                    { return "builtin reader handler (Ask/Local)" }
func (*readerProgram) SupportsErrorContextConversion() bool { return false }

func (p *readerProgram) Start(eff DispatchEffect, k Value, store *Store) HandlerResult {
	p.k = k
	switch op := eff.Op.(type) {
	case AskOp:
		p.phase = readerPhaseDone
		if v, ok := p.overlay[op.Key]; ok {
			return Yield(NResume(k, v))
		}
		if v, ok := store.Env[op.Key]; ok {
			return Yield(NResume(k, v))
		}
		return Yield(NResumeThrow(k, ValueFromError(&EnvKeyMissingError{Key: op.Key})))
	case LocalOp:
		merged := make(map[string]Value, len(p.overlay)+len(op.EnvUpdate))
		for key, v := range p.overlay {
			merged[key] = v
		}
		for key, v := range op.EnvUpdate {
			merged[key] = v
		}
		p.phase = readerPhaseLocal
		return Yield(NEval(op.SubProgram, []HandlerRef{scopedReaderRef(p.vm, merged)}))
	default:
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
}

func (p *readerProgram) Resume(v Value, _ *Store) HandlerResult {
	if p.phase == readerPhaseLocal {
		p.phase = readerPhaseDone
		return Yield(NResume(p.k, v))
	}
	return ReturnResult(v)
}

func (p *readerProgram) Throw(exc Value, _ *Store) HandlerResult {
	if p.phase == readerPhaseLocal {
		p.phase = readerPhaseDone
		return Yield(NResumeThrow(p.k, exc))
	}
	return ThrowResult(exc)
}
