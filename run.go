// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "context"

// RunResult is everything a completed run hands back to the host: the
// outcome, the final state store, the accumulated log, the trace (when
// tracing was enabled) and the traceback data for failed runs.
type RunResult struct {
	OK    bool
	Value Value
	Err   error

	Store map[string]Value
	Log   []Value

	Trace     *Trace
	Traceback *TracebackData
}

// TracebackData carries the two parallel failure views: the raw capture
// log entries and the reconstructed active chain of program/effect/
// exception sites.
type TracebackData struct {
	Entries     []TraceEntry
	ActiveChain []ActiveChainEntry
}

// HostExecutor performs one external call on the VM's behalf. The driver
// loop invokes it for every EventNeedsExternal and feeds the outcome back.
type HostExecutor func(call ExternalCall) Outcome

// hostFuncTypeName tags HostObject handles wrapping in-process Go
// callables, the shape DefaultExecutor knows how to invoke.
const hostFuncTypeName = "host.Func"

// VFunc wraps a Go function as a host callable value for Apply/Expand
// nodes and interceptor callables.
func VFunc(name string, f func(args []Value) (Value, error)) Value {
	return Value{Kind: KindHostObject, Host: NewHostObject(hostFuncTypeName, &hostFunc{name: name, f: f})}
}

type hostFunc struct {
	name string
	f    func(args []Value) (Value, error)
}

// hostAwaitableTypeName tags handles wrapping a synchronously awaitable
// host computation, the target of CallAsync.
const hostAwaitableTypeName = "host.Awaitable"

// VAwaitable wraps a blocking host computation as an awaitable value for
// the Await effect and AsyncEscape nodes.
func VAwaitable(name string, f func(ctx context.Context) (Value, error)) Value {
	return Value{Kind: KindHostObject, Host: NewHostObject(hostAwaitableTypeName, &hostAwaitable{name: name, f: f})}
}

type hostAwaitable struct {
	name string
	f    func(ctx context.Context) (Value, error)
}

// HostIterator is the in-process stand-in for a host-language generator
// driven through the iterator protocol: each operation returns the next
// yielded IR node, a final return value, or an error.
type HostIterator struct {
	Next  func() (*Node, *Value, error)
	Send  func(v Value) (*Node, *Value, error)
	Throw func(exc Value) (*Node, *Value, error)
}

// hostIteratorTypeName tags handles wrapping a *HostIterator.
const hostIteratorTypeName = "host.Iterator"

// VIterator wraps it as a host generator value for Expand results.
func VIterator(it *HostIterator) Value {
	return Value{Kind: KindHostObject, Host: NewHostObject(hostIteratorTypeName, it)}
}

// DefaultExecutor executes external calls against the in-process host
// shims above: host.Func callables, host.Awaitable futures, host.Iterator
// generators, and EvalExpr handles that already wrap IR. Hosts embedding
// the VM in a real runtime supply their own HostExecutor instead.
func DefaultExecutor(ctx context.Context) HostExecutor {
	return func(call ExternalCall) Outcome {
		switch call.Kind {
		case CallCallFunc:
			return callHostFunc(call.Callee, call.Args)
		case CallAsync:
			return awaitHost(ctx, call.Callee)
		case CallEvalExpr:
			if n, ok := NodeFromValue(call.Expr); ok {
				return Outcome{Kind: OutcomeValue, Value: VNode(n)}
			}
			return errOutcome(NewVMError(ErrTypeError, "EvalExpr handle does not wrap a program"))
		case CallIterNext, CallIterSend, CallIterThrow:
			return driveHostIterator(call)
		default:
			return errOutcome(NewVMError(ErrInternalInvariant, "unknown external call kind"))
		}
	}
}

func callHostFunc(callee Value, args []Value) Outcome {
	if callee.Kind != KindHostObject || callee.Host == nil {
		return errOutcome(NewVMError(ErrTypeError, "call of a non-callable value"))
	}
	hf, ok := callee.Host.Handle.(*hostFunc)
	if !ok {
		return errOutcome(NewVMError(ErrTypeError, "call of non-callable host object "+callee.Host.TypeName))
	}
	v, err := hf.f(args)
	if err != nil {
		return errOutcome(err)
	}
	return Outcome{Kind: OutcomeValue, Value: v}
}

func awaitHost(ctx context.Context, callee Value) Outcome {
	if callee.Kind != KindHostObject || callee.Host == nil {
		return errOutcome(NewVMError(ErrTypeError, "await of a non-awaitable value"))
	}
	ha, ok := callee.Host.Handle.(*hostAwaitable)
	if !ok {
		return errOutcome(NewVMError(ErrTypeError, "await of non-awaitable host object "+callee.Host.TypeName))
	}
	v, err := ha.f(ctx)
	if err != nil {
		return errOutcome(err)
	}
	return Outcome{Kind: OutcomeValue, Value: v}
}

func driveHostIterator(call ExternalCall) Outcome {
	if call.Iterator.Kind != KindHostObject || call.Iterator.Host == nil {
		return errOutcome(NewVMError(ErrTypeError, "iterator call on a non-iterator value"))
	}
	it, ok := call.Iterator.Host.Handle.(*HostIterator)
	if !ok {
		return errOutcome(NewVMError(ErrTypeError, "iterator call on host object "+call.Iterator.Host.TypeName))
	}
	var yield *Node
	var ret *Value
	var err error
	switch call.Kind {
	case CallIterNext:
		yield, ret, err = it.Next()
	case CallIterSend:
		yield, ret, err = it.Send(call.SendVal)
	default:
		yield, ret, err = it.Throw(call.ThrowVal)
	}
	switch {
	case err != nil:
		return errOutcome(err)
	case yield != nil:
		return Outcome{Kind: OutcomeIteratorYield, Value: VNode(yield)}
	case ret != nil:
		return Outcome{Kind: OutcomeIteratorReturn, Value: *ret}
	default:
		return Outcome{Kind: OutcomeIteratorReturn, Value: Unit}
	}
}

func errOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeIteratorError, Err: ValueFromError(err)}
}

// RunProgram drives program under handlers to completion on vm, executing
// external calls through exec (DefaultExecutor when nil). This is the
// reference driver loop; interactive hosts that need to interleave their
// own work between steps use BeginRun/Step/ReceiveExternalResult
// directly.
func RunProgram(ctx context.Context, vm *VM, program *Node, handlers []HandlerRef, exec HostExecutor) RunResult {
	if exec == nil {
		exec = DefaultExecutor(ctx)
	}
	ev := vm.BeginRun(ctx, program, handlers)
	for {
		switch ev.Kind {
		case EventDone:
			return vm.assembleResult(ev, nil)
		case EventError:
			return vm.assembleResult(ev, ev.Err)
		case EventNeedsExternal:
			outcome := exec(*ev.Call)
			ev = vm.ReceiveExternalResult(ctx, outcome)
		default:
			ev = vm.Step(ctx)
		}
	}
}

// assembleResult snapshots the store and log into the run result.
func (vm *VM) assembleResult(ev Event, err error) RunResult {
	state := make(map[string]Value, len(vm.store.State))
	for k, v := range vm.store.State {
		state[k] = v
	}
	r := RunResult{
		OK:    err == nil,
		Value: ev.Result,
		Err:   err,
		Store: state,
		Log:   append([]Value(nil), vm.store.Log...),
		Trace: vm.trace,
	}
	if err != nil {
		r.Traceback = &TracebackData{ActiveChain: ev.ActiveChain}
		if ev.Trace != nil {
			r.Traceback.Entries = ev.Trace.Entries
		}
	}
	return r
}
