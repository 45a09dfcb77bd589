// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Native effect operations. The VM interprets a single universal Value
// type, so every operation takes a dynamic Key/Value shape; handlers
// match them with a type switch, one struct per operation.

// GetOp reads the per-VM state store at Key.
type GetOp struct{ Key string }

// PutOp replaces the per-VM state store at Key.
type PutOp struct {
	Key   string
	Value Value
}

// ModifyOp is read-then-write: the State handler applies Modifier (a host
// callable reference, invoked via NeedsExternal) to the current value and
// stores the result, returning the *old* value.
type ModifyOp struct {
	Key      string
	Modifier Value // HostObject wrapping a host-side unary function
}

// AskOp reads the environment map at Key.
type AskOp struct{ Key string }

// TellOp appends Message to the accumulated log.
type TellOp struct{ Message Value }

// LocalOp pushes a scope overriding select environment keys for the
// duration of SubProgram, then restores the outer environment.
type LocalOp struct {
	EnvUpdate  map[string]Value
	SubProgram *Node
}

// ResultSafeOp runs SubProgram under the current handler stack, wrapping
// its outcome as Ok(v) or Err(e) instead of propagating the exception.
type ResultSafeOp struct{ SubProgram *Node }

// AwaitOp bridges an external awaitable (a HostObject) into the VM via a
// host-side synchronous await call.
type AwaitOp struct{ Awaitable Value }

// getExecutionContextOp is performed internally when an exception raised
// mid-dispatch needs enrichment; handlers that support it
// return context entries to merge onto the original exception.
type getExecutionContextOp struct{ Original Value }

// semaphoreAcquireOp/semaphoreReleaseOp implement LazyAsk's internal
// "semaphore effect" serialising concurrent first-touch
// population of the same cache key — a cooperative lock built from
// continuations, not an OS primitive (see DESIGN.md's Open Question note;
// real host-side concurrency is bounded instead by golang.org/x/sync's
// semaphore in the CLI driver's Await bridge).
type semaphoreAcquireOp struct{ Key string }
type semaphoreReleaseOp struct{ Key string }

// Scheduler effect operations.

// StoreMode selects how a spawned task's state store relates to its
// parent's.
type StoreMode byte

const (
	// StoreShared: the child reads/writes through the common store.
	StoreShared StoreMode = iota
	// StoreIsolated: the child gets a snapshot; only its log is merged
	// back on completion, preserving gather registration order.
	StoreIsolated
)

// SpawnOp starts Program as a new cooperatively-scheduled task.
type SpawnOp struct {
	Program   *Node
	Handlers  []HandlerRef
	StoreMode StoreMode
}

// GatherOp waits for every item (TaskHandle or PromiseHandle value) to
// complete and collects results in registration order.
type GatherOp struct{ Items []Value }

// RaceOp waits for the first item to complete.
type RaceOp struct{ Items []Value }

// CreatePromiseOp allocates a new, uncompleted promise.
type CreatePromiseOp struct{}

// CompletePromiseOp resolves Promise with Result.
type CompletePromiseOp struct {
	Promise Value
	Result  Value
}

// FailPromiseOp resolves Promise with an error.
type FailPromiseOp struct {
	Promise Value
	Err     Value
}

// CreateExternalPromiseOp allocates a promise a host callback will later
// complete via CompletePromiseOp/FailPromiseOp issued from outside the VM.
type CreateExternalPromiseOp struct{}

// taskCompletedOp is performed internally by the scheduler's own task
// trampoline when a spawned continuation finishes.
type taskCompletedOp struct {
	Task   TaskID
	Result Value
	Err    Value
	Failed bool
}
