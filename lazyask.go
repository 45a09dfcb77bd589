// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// LazyAsk handler: Ask with per-key memoisation. Environment values may
// be plain values or host thunks; a thunk is forced at most once per
// scope, with a key-lock effect serialising concurrent first touches from
// cooperatively scheduled tasks. Local pushes a scope that overrides
// select keys and carries its own cache layer.
//
// The key lock is a cooperative effect handled by a companion handler
// (keyLockProgram below), not an OS primitive: within one VM instance
// there is no thread to contend with, only interleaved tasks.

// lazyAskState is one scope layer of a LazyAsk installation, shared by
// every dispatch against that installation.
type lazyAskState struct {
	overlay map[string]Value
	cache   map[string]Value
	parent  *lazyAskState
}

func newLazyAskState(parent *lazyAskState, overlay map[string]Value) *lazyAskState {
	return &lazyAskState{overlay: overlay, cache: make(map[string]Value), parent: parent}
}

// lookup walks the scope chain: an overlay hit wins over any cache, an
// inner cache over an outer one.
func (s *lazyAskState) lookup(key string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.overlay[key]; ok {
			return v, true
		}
		if v, ok := cur.cache[key]; ok {
			return v, true
		}
	}
	return Value{}, false
}

type lazyAskPhase byte

const (
	lazyAskPhaseStart lazyAskPhase = iota
	lazyAskPhaseAcquiring
	lazyAskPhaseComputing
	lazyAskPhaseReleasing
	lazyAskPhaseReleasingErr
	lazyAskPhaseLocal
	lazyAskPhaseDone
)

type lazyAskProgram struct {
	vm    *VM
	state *lazyAskState
	phase lazyAskPhase
	k     Value
	key   string
	saved Value
	exc   Value
}

// NewLazyAskHandler builds a LazyAsk handler rooted at a fresh scope.
// Install it together with NewKeyLockHandler (see LazyAskRefs).
func NewLazyAskHandler(vm *VM) Handler {
	state := newLazyAskState(nil, nil)
	return lazyAskHandlerFor(vm, state)
}

func lazyAskHandlerFor(vm *VM, state *lazyAskState) Handler {
	return NewNativeHandler(func() NativeHandler { return &lazyAskProgram{vm: vm, state: state} })
}

func (*lazyAskProgram) CanHandle(eff DispatchEffect) bool {
	switch eff.Op.(type) {
	case AskOp, LocalOp:
		return true
	}
	return false
}

func (*lazyAskProgram) Name() string                         { return "LazyAsk" }
func (*lazyAskProgram) DebugInfo() string                    { return "builtin lazy reader (cached Ask/Local)" }
func (*lazyAskProgram) SupportsErrorContextConversion() bool { return false }

func (p *lazyAskProgram) Start(eff DispatchEffect, k Value, store *Store) HandlerResult {
	p.k = k
	switch op := eff.Op.(type) {
	case AskOp:
		p.key = op.Key
		if v, ok := p.state.lookup(op.Key); ok {
			p.phase = lazyAskPhaseDone
			return Yield(NResume(k, v))
		}
		if _, ok := store.Env[op.Key]; !ok {
			p.phase = lazyAskPhaseDone
			return Yield(NResumeThrow(k, ValueFromError(&EnvKeyMissingError{Key: op.Key})))
		}
		p.phase = lazyAskPhaseAcquiring
		return Yield(NPerform(NewEffect(semaphoreAcquireOp{Key: op.Key})))
	case LocalOp:
		child := newLazyAskState(p.state, op.EnvUpdate)
		ref := p.vm.NewHandlerRef("LazyAsk", "scoped lazy reader (Local)", lazyAskHandlerFor(p.vm, child))
		p.phase = lazyAskPhaseLocal
		return Yield(NEval(op.SubProgram, []HandlerRef{ref}))
	default:
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
}

func (p *lazyAskProgram) Resume(v Value, store *Store) HandlerResult {
	switch p.phase {
	case lazyAskPhaseAcquiring:
		// Lock held. Another task may have populated the key while this
		// dispatch waited, so check again before forcing.
		if cached, ok := p.state.lookup(p.key); ok {
			p.saved = cached
			p.phase = lazyAskPhaseReleasing
			return Yield(NPerform(NewEffect(semaphoreReleaseOp{Key: p.key})))
		}
		raw := store.Env[p.key]
		if raw.Kind == KindHostObject && raw.Host != nil && raw.Host.TypeName == hostFuncTypeName {
			p.phase = lazyAskPhaseComputing
			return NeedsExternalResult(ExternalCall{Kind: CallCallFunc, Callee: raw})
		}
		p.state.cache[p.key] = raw
		p.saved = raw
		p.phase = lazyAskPhaseReleasing
		return Yield(NPerform(NewEffect(semaphoreReleaseOp{Key: p.key})))

	case lazyAskPhaseComputing:
		p.state.cache[p.key] = v
		p.saved = v
		p.phase = lazyAskPhaseReleasing
		return Yield(NPerform(NewEffect(semaphoreReleaseOp{Key: p.key})))

	case lazyAskPhaseReleasing:
		p.phase = lazyAskPhaseDone
		return Yield(NResume(p.k, p.saved))

	case lazyAskPhaseReleasingErr:
		p.phase = lazyAskPhaseDone
		return Yield(NResumeThrow(p.k, p.exc))

	case lazyAskPhaseLocal:
		p.phase = lazyAskPhaseDone
		return Yield(NResume(p.k, v))

	default:
		return ReturnResult(v)
	}
}

func (p *lazyAskProgram) Throw(exc Value, _ *Store) HandlerResult {
	switch p.phase {
	case lazyAskPhaseComputing:
		// Forcing the thunk failed: release the key lock before
		// propagating, or every later asker deadlocks on a lock nobody
		// holds the release path for.
		p.exc = exc
		p.phase = lazyAskPhaseReleasingErr
		return Yield(NPerform(NewEffect(semaphoreReleaseOp{Key: p.key})))
	case lazyAskPhaseLocal:
		p.phase = lazyAskPhaseDone
		return Yield(NResumeThrow(p.k, exc))
	default:
		return ThrowResult(exc)
	}
}

// keyLockState is the shared lock table of one key-lock installation.
type keyLockState struct {
	vm      *VM
	locked  map[string]bool
	waiting map[string][]*Continuation
}

type keyLockProgram struct {
	state *keyLockState
	done  bool
}

// NewKeyLockHandler builds the companion lock handler LazyAsk serialises
// first touches through.
func NewKeyLockHandler(vm *VM) Handler {
	state := &keyLockState{vm: vm, locked: make(map[string]bool), waiting: make(map[string][]*Continuation)}
	return NewNativeHandler(func() NativeHandler { return &keyLockProgram{state: state} })
}

func (*keyLockProgram) CanHandle(eff DispatchEffect) bool {
	switch eff.Op.(type) {
	case semaphoreAcquireOp, semaphoreReleaseOp:
		return true
	}
	return false
}

func (*keyLockProgram) Name() string                         { return "KeyLock" }
func (*keyLockProgram) DebugInfo() string                    { return "builtin key lock (LazyAsk first-touch serialisation)" }
func (*keyLockProgram) SupportsErrorContextConversion() bool { return false }

func (p *keyLockProgram) Start(eff DispatchEffect, k Value, _ *Store) HandlerResult {
	switch op := eff.Op.(type) {
	case semaphoreAcquireOp:
		st := p.state
		if !st.locked[op.Key] {
			st.locked[op.Key] = true
			p.done = true
			return Yield(NResume(k, Unit))
		}
		if c := contOf(k); c != nil {
			st.waiting[op.Key] = append(st.waiting[op.Key], c)
		}
		return ParkResult()
	case semaphoreReleaseOp:
		st := p.state
		if ws := st.waiting[op.Key]; len(ws) > 0 {
			// Hand the lock straight to the next waiter.
			next := ws[0]
			st.waiting[op.Key] = ws[1:]
			st.vm.sched.QueueContinuationActivation(next, DeliverMode(Unit))
		} else {
			delete(st.locked, op.Key)
		}
		p.done = true
		return Yield(NResume(k, Unit))
	default:
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
}

func (p *keyLockProgram) Resume(v Value, _ *Store) HandlerResult {
	return ReturnResult(v)
}

func (p *keyLockProgram) Throw(exc Value, _ *Store) HandlerResult {
	return ThrowResult(exc)
}
