// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "fmt"

// DispatchEffect is an effect request: either one of the native variants
// below, recognised structurally by handler type switches, or an opaque
// host effect whose HostObject.TypeName classifies it at dispatch time.
//
// Equality is identity plus variant tag; DispatchEffect is cloneable
// (shallow — Op structs here are plain values, so a Go struct copy already
// satisfies "shallow clone").
type DispatchEffect struct {
	Op Operation

	// IsExecutionContextEffect marks effects raised as part of the
	// GetExecutionContext enrichment round-trip, so the
	// engine can distinguish "effect from user code" from "effect from
	// exception-context conversion" when deciding whether to re-throw the
	// original exception on failure.
	IsExecutionContextEffect bool
}

// NewEffect wraps a native operation struct as a DispatchEffect.
func NewEffect(op Operation) DispatchEffect { return DispatchEffect{Op: op} }

// Clone performs a shallow clone; Op structs are plain values, so a Go
// struct copy already satisfies it.
func (e DispatchEffect) Clone() DispatchEffect { return e }

// TypeName classifies the effect -> string").
func (e DispatchEffect) TypeName() string {
	switch op := e.Op.(type) {
	case GetOp:
		return "Get"
	case PutOp:
		return "Put"
	case ModifyOp:
		return "Modify"
	case AskOp:
		return "Ask"
	case TellOp:
		return "Tell"
	case LocalOp:
		return "Local"
	case ResultSafeOp:
		return "ResultSafe"
	case AwaitOp:
		return "Await"
	case SpawnOp:
		return "Spawn"
	case GatherOp:
		return "Gather"
	case RaceOp:
		return "Race"
	case CreatePromiseOp:
		return "CreatePromise"
	case CompletePromiseOp:
		return "CompletePromise"
	case FailPromiseOp:
		return "FailPromise"
	case CreateExternalPromiseOp:
		return "CreateExternalPromise"
	case taskCompletedOp:
		return "TaskCompleted"
	case getExecutionContextOp:
		return "GetExecutionContext"
	case semaphoreAcquireOp:
		return "SemaphoreAcquire"
	case semaphoreReleaseOp:
		return "SemaphoreRelease"
	case *HostObject:
		return op.TypeName
	default:
		return fmt.Sprintf("%T", e.Op)
	}
}

// CanBeHandledBy reports whether h's signature accepts this effect
//"). Native effects
// are matched by variant inside each handler's own CanHandle; host effects
// defer to the handler's own isinstance-style test. This method is a thin
// convenience wrapper kept symmetric with TypeName.
func (e DispatchEffect) CanBeHandledBy(h Handler) bool {
	return h.CanHandle(e)
}
