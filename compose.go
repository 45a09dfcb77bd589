// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Composed handler sets. A run installs an ordered list of handlers;
// these constructors mint the standard combinations so hosts and tests
// do not hand-assemble refs for every run. Order matters: handlers[0] is
// innermost, so effects are offered to the state/reader/writer layer
// before reaching the scheduler.

// StateRef mints a State handler installation.
func (vm *VM) StateRef() HandlerRef {
	return vm.NewHandlerRef("State", "builtin state handler (Get/Put/Modify)", NewStateHandler())
}

// ReaderRef mints a Reader handler installation.
func (vm *VM) ReaderRef() HandlerRef {
	return vm.NewHandlerRef("Reader", "builtin reader handler (Ask/Local)", NewReaderHandler(vm))
}

// WriterRef mints a Writer handler installation.
func (vm *VM) WriterRef() HandlerRef {
	return vm.NewHandlerRef("Writer", "builtin writer handler (Tell)", NewWriterHandler())
}

// ResultSafeRef mints a ResultSafe handler installation.
func (vm *VM) ResultSafeRef() HandlerRef {
	return vm.NewHandlerRef("ResultSafe", "builtin result-safe handler", NewResultSafeHandler())
}

// AwaitRef mints an Await bridge installation.
func (vm *VM) AwaitRef() HandlerRef {
	return vm.NewHandlerRef("Await", "builtin await bridge", NewAwaitHandler())
}

// SchedulerRef mints a Scheduler installation.
func (vm *VM) SchedulerRef() HandlerRef {
	return vm.NewHandlerRef("Scheduler", "builtin cooperative scheduler", NewSchedulerHandler(vm))
}

// LazyAskRefs mints a LazyAsk installation together with the key-lock
// handler it serialises first touches through. The lock sits outside the
// lazy reader so the reader's own acquire/release effects find it on the
// caller chain.
func (vm *VM) LazyAskRefs() []HandlerRef {
	lazy := vm.NewHandlerRef("LazyAsk", "builtin lazy reader (cached Ask/Local)", NewLazyAskHandler(vm))
	lock := vm.NewHandlerRef("KeyLock", "builtin key lock", NewKeyLockHandler(vm))
	return []HandlerRef{lazy, lock}
}

// StandardHandlers is the default synchronous stack: State, Reader,
// Writer, ResultSafe.
func (vm *VM) StandardHandlers() []HandlerRef {
	return []HandlerRef{vm.StateRef(), vm.ReaderRef(), vm.WriterRef(), vm.ResultSafeRef()}
}

// ConcurrentHandlers is StandardHandlers plus the scheduler and the await
// bridge.
func (vm *VM) ConcurrentHandlers() []HandlerRef {
	return append(vm.StandardHandlers(), vm.SchedulerRef(), vm.AwaitRef())
}
