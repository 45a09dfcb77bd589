// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Scheduler handler: turns Spawn/Gather/Race/promises into cooperative
// task switching built on the same continuation primitives every other
// handler uses. Transfer, not Resume, is the load-bearing choice: a
// spawned task's caller chain must not be prepended onto the spawner's,
// or "jump to another task" would quietly become "call another task".

// NSpawn/NGather/NRace and the promise constructors build the scheduler
// effect nodes.
func NSpawn(program *Node, handlers []HandlerRef, mode StoreMode) *Node {
	return NPerform(NewEffect(SpawnOp{Program: program, Handlers: handlers, StoreMode: mode}))
}
func NGather(items ...Value) *Node { return NPerform(NewEffect(GatherOp{Items: items})) }
func NRace(items ...Value) *Node   { return NPerform(NewEffect(RaceOp{Items: items})) }
func NCreatePromise() *Node        { return NPerform(NewEffect(CreatePromiseOp{})) }
func NCreateExternalPromise() *Node {
	return NPerform(NewEffect(CreateExternalPromiseOp{}))
}
func NCompletePromise(promise, result Value) *Node {
	return NPerform(NewEffect(CompletePromiseOp{Promise: promise, Result: result}))
}
func NFailPromise(promise, err Value) *Node {
	return NPerform(NewEffect(FailPromiseOp{Promise: promise, Err: err}))
}

type schedulerProgram struct {
	vm   *VM
	done bool
}

// NewSchedulerHandler builds the Scheduler handler for vm.
func NewSchedulerHandler(vm *VM) Handler {
	return NewNativeHandler(func() NativeHandler { return &schedulerProgram{vm: vm} })
}

func (*schedulerProgram) CanHandle(eff DispatchEffect) bool {
	switch eff.Op.(type) {
	case SpawnOp, GatherOp, RaceOp, CreatePromiseOp, CompletePromiseOp, FailPromiseOp, CreateExternalPromiseOp, taskCompletedOp:
		return true
	}
	return false
}

func (*schedulerProgram) Name() string                         { return "Scheduler" }
func (*schedulerProgram) DebugInfo() string                    { return "builtin cooperative scheduler" }
func (*schedulerProgram) SupportsErrorContextConversion() bool { return false }

func (p *schedulerProgram) Start(eff DispatchEffect, k Value, _ *Store) HandlerResult {
	vm := p.vm
	switch op := eff.Op.(type) {
	case SpawnOp:
		h := vm.spawnTask(op.Program, op.Handlers, op.StoreMode)
		p.done = true
		return Yield(NTransfer(k, VTaskHandle(h)))

	case GatherOp:
		items, ok := awaitables(op.Items)
		if !ok {
			p.done = true
			return Yield(NResumeThrow(k, ValueFromError(NewVMError(ErrTypeError, "Gather of a non-awaitable value"))))
		}
		c := contOf(k)
		if c == nil {
			return ThrowResult(ValueFromError(NewVMError(ErrInternalInvariant, "Gather with no user continuation")))
		}
		ready, results, failed, errVal := vm.sched.Gather(c.ID, items)
		if !ready {
			return ParkResult()
		}
		p.done = true
		if failed {
			return Yield(NTransferThrow(k, errVal))
		}
		if len(results) == 1 {
			return Yield(NTransfer(k, results[0]))
		}
		return Yield(NTransfer(k, VList(results)))

	case RaceOp:
		items, ok := awaitables(op.Items)
		if !ok {
			p.done = true
			return Yield(NResumeThrow(k, ValueFromError(NewVMError(ErrTypeError, "Race of a non-awaitable value"))))
		}
		c := contOf(k)
		if c == nil {
			return ThrowResult(ValueFromError(NewVMError(ErrInternalInvariant, "Race with no user continuation")))
		}
		ready, result, failed, errVal := vm.sched.Race(c.ID, items)
		if !ready {
			return ParkResult()
		}
		p.done = true
		if failed {
			return Yield(NTransferThrow(k, errVal))
		}
		return Yield(NTransfer(k, result))

	case CreatePromiseOp:
		h := vm.sched.CreatePromise(vm.ids.NextTaskID(), false)
		p.done = true
		return Yield(NTransfer(k, VPromiseHandle(h)))

	case CreateExternalPromiseOp:
		h := vm.sched.CreatePromise(vm.ids.NextTaskID(), true)
		p.done = true
		return Yield(NTransfer(k, VPromiseHandle(h)))

	case CompletePromiseOp:
		return p.settlePromise(k, op.Promise, op.Result, false)

	case FailPromiseOp:
		return p.settlePromise(k, op.Promise, op.Err, true)

	case taskCompletedOp:
		// Task completion normally reaches the scheduler through the
		// engine's segment unwind; a program performing it directly is
		// treated the same way.
		var woken []*waiter
		if op.Failed {
			woken = vm.sched.FailTask(op.Task, op.Err)
		} else {
			woken = vm.sched.CompleteTask(op.Task, op.Result)
		}
		for _, w := range woken {
			vm.resumeWaiter(w)
		}
		if c := contOf(k); c != nil {
			vm.sched.QueueContinuationActivation(c, DeliverMode(Unit))
		}
		return ParkResult()

	default:
		return ThrowResult(ValueFromError(unhandledEffectError(eff)))
	}
}

// settlePromise resolves or rejects a promise, wakes its waiters, and
// yields control so the woken chains run before the completing one.
func (p *schedulerProgram) settlePromise(k Value, promise, payload Value, fail bool) HandlerResult {
	vm := p.vm
	if promise.Kind != KindPromiseHandle || promise.Promise == nil {
		p.done = true
		return Yield(NResumeThrow(k, ValueFromError(NewVMError(ErrTypeError, "promise completion of a non-promise value"))))
	}
	var woken []*waiter
	var err error
	if fail {
		woken, err = vm.sched.FailPromise(promise.Promise.ID, payload)
	} else {
		woken, err = vm.sched.CompletePromise(promise.Promise.ID, payload)
	}
	if err != nil {
		p.done = true
		return Yield(NResumeThrow(k, ValueFromError(err)))
	}
	for _, w := range woken {
		vm.resumeWaiter(w)
	}
	c := contOf(k)
	if c == nil {
		return ThrowResult(ValueFromError(NewVMError(ErrInternalInvariant, "promise completion with no user continuation")))
	}
	vm.sched.QueueContinuationActivation(c, DeliverMode(Unit))
	return ParkResult()
}

func (p *schedulerProgram) Resume(v Value, _ *Store) HandlerResult {
	return ReturnResult(v)
}

func (p *schedulerProgram) Throw(exc Value, _ *Store) HandlerResult {
	return ThrowResult(exc)
}

// awaitables classifies Gather/Race items, rejecting anything that is
// neither a task nor a promise handle.
func awaitables(items []Value) ([]Awaitable, bool) {
	out := make([]Awaitable, 0, len(items))
	for _, it := range items {
		a, ok := AwaitableFromValue(it)
		if !ok {
			return nil, false
		}
		out = append(out, a)
	}
	return out, true
}

// spawnTask materialises a spawned program as a schedulable segment
// chain: a base segment running the program, prompts for the task's own
// handlers above it, and the outermost segment marked with the task id so
// its final unwind reports completion instead of ending the run.
func (vm *VM) spawnTask(program *Node, handlers []HandlerRef, mode StoreMode) *TaskHandle {
	tid := vm.ids.NextTaskID()
	var st *Store
	if mode == StoreIsolated {
		st = vm.store.Snapshot()
		// Only the log merges back, and only the child's own entries.
		st.Log = nil
	}
	base, top := vm.installProgramChain(nil, program, handlers, nil)
	id := tid
	top.OwningTask = &id
	vm.sched.Spawn(tid, base.ID, st)
	return &TaskHandle{ID: tid}
}
