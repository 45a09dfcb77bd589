// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "fmt"

// TaskID identifies a spawned task. Minted from the owning
// VM's IDSpace alongside Marker/SegmentID/DispatchID/ContID so every VM
// identifier family shares one allocation discipline.
type TaskID uint64

func (t TaskID) String() string { return fmt.Sprintf("task#%d", uint64(t)) }

// AwaitableKind distinguishes the two things Gather/Race can wait on.
type AwaitableKind byte

const (
	AwaitTask AwaitableKind = iota
	AwaitPromise
)

// TaskStatus is a spawned task's lifecycle state.
type TaskStatus byte

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

// Task is the scheduler's record for one spawned program.
// Its own execution is just another segment chain rooted at RootSegment;
// the scheduler's job is deciding which task's chain the engine's step
// loop is currently driving, not re-implementing evaluation.
type Task struct {
	ID          TaskID
	Status      TaskStatus
	RootSegment SegmentID
	Store       *Store // nil when StoreMode == StoreShared (uses the VM's shared store)
	Result      Value
	Err         Value
}

// TaskHandle is the Value-domain handle a Spawn returns to the spawning
// program.
type TaskHandle struct {
	ID TaskID
}

// PromiseID identifies a promise. Promises and tasks are minted from the
// same TaskID counter (both are "things Gather/Race can await"); the Kind
// field on Awaitable is what tells them apart, not a separate id space.
type PromiseID = TaskID

// PromiseStatus is a promise's lifecycle state.
type PromiseStatus byte

const (
	PromisePending PromiseStatus = iota
	PromiseResolved
	PromiseRejected
)

// Promise is the scheduler's record for a CreatePromise/CreateExternalPromise
// allocation.
type Promise struct {
	ID       PromiseID
	Status   PromiseStatus
	Result   Value
	Err      Value
	External bool // true for CreateExternalPromiseOp: only a host callback resolves it
}

// PromiseHandle is the Value-domain handle for a promise.
type PromiseHandle struct {
	ID PromiseID
}

// Awaitable names one thing a Gather/Race call is waiting on, recovered
// from a TaskHandle or PromiseHandle Value.
type Awaitable struct {
	Kind AwaitableKind
	ID   TaskID
}

// AwaitableFromValue classifies v as a task or promise awaitable, or
// returns false if v is neither (a TypeError at the call site).
func AwaitableFromValue(v Value) (Awaitable, bool) {
	switch v.Kind {
	case KindTaskHandle:
		if v.Task == nil {
			return Awaitable{}, false
		}
		return Awaitable{Kind: AwaitTask, ID: v.Task.ID}, true
	case KindPromiseHandle:
		if v.Promise == nil {
			return Awaitable{}, false
		}
		return Awaitable{Kind: AwaitPromise, ID: v.Promise.ID}, true
	default:
		return Awaitable{}, false
	}
}

// waiter is a blocked Gather/Race call: Remaining counts how many of Items
// still need to resolve (Gather) or whether any has resolved yet (Race,
// where Remaining starts at 1 and the waiter fires on the first hit).
// Results collects completions in Items order so Gather's output preserves
// registration order regardless of completion order.
type waiter struct {
	Cont      ContID
	Items     []Awaitable
	Remaining int
	Race      bool
	Results   []Value
	Failed    bool
	ErrVal    Value
	done      []bool
}

// Scheduler is the VM's cooperative task/promise registry and run queue
// It does not itself drive evaluation — the
// engine's step loop asks it which task to transfer to next and reports
// completions back via CompleteTask/FailTask.
type Scheduler struct {
	tasks    map[TaskID]*Task
	promises map[PromiseID]*Promise
	ready    []TaskID
	waiters  map[Awaitable][]*waiter
	wakeups  []contActivation
}

// contActivation is a continuation a waiter wake-up queued for activation;
// the engine's transfer loop drains these before popping the next ready
// task.
type contActivation struct {
	Cont *Continuation
	Mode Mode
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks:    make(map[TaskID]*Task),
		promises: make(map[PromiseID]*Promise),
		waiters:  make(map[Awaitable][]*waiter),
	}
}

// QueueContinuationActivation records that cont should resume with mode the
// next time the engine transfers control, rather than immediately — several
// waiters can wake in the same step, and only one segment can be current at
// a time.
func (s *Scheduler) QueueContinuationActivation(cont *Continuation, mode Mode) {
	s.wakeups = append(s.wakeups, contActivation{Cont: cont, Mode: mode})
}

// PopContinuationActivation removes and returns the oldest queued wakeup.
func (s *Scheduler) PopContinuationActivation() (*Continuation, Mode, bool) {
	if len(s.wakeups) == 0 {
		return nil, Mode{}, false
	}
	w := s.wakeups[0]
	s.wakeups = s.wakeups[1:]
	return w.Cont, w.Mode, true
}

// Spawn registers a new task rooted at rootSeg and enqueues it. store is non-nil only for StoreIsolated spawns.
func (s *Scheduler) Spawn(id TaskID, rootSeg SegmentID, store *Store) *TaskHandle {
	s.tasks[id] = &Task{ID: id, Status: TaskPending, RootSegment: rootSeg, Store: store}
	s.ready = append(s.ready, id)
	return &TaskHandle{ID: id}
}

// PopReady removes and returns the next ready task id, or ok == false when
// the queue is empty. The engine's transferNextOr calls it after draining
// queued wakeups and transfers to the returned task's root segment.
func (s *Scheduler) PopReady() (TaskID, bool) {
	if len(s.ready) == 0 {
		return 0, false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	if t, ok := s.tasks[id]; ok {
		t.Status = TaskRunning
	}
	return id, true
}

// Requeue puts id back on the ready queue (a task that yielded cooperatively
// without completing, e.g. across an Await).
func (s *Scheduler) Requeue(id TaskID) {
	if t, ok := s.tasks[id]; ok {
		t.Status = TaskPending
	}
	s.ready = append(s.ready, id)
}

// CompleteTask marks a task finished with result and wakes any waiters.
func (s *Scheduler) CompleteTask(id TaskID, result Value) []*waiter {
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	t.Status = TaskCompleted
	t.Result = result
	return s.wake(Awaitable{Kind: AwaitTask, ID: id}, result, None, false)
}

// FailTask marks a task failed and wakes waiters, propagating err.
func (s *Scheduler) FailTask(id TaskID, err Value) []*waiter {
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	t.Status = TaskFailed
	t.Err = err
	return s.wake(Awaitable{Kind: AwaitTask, ID: id}, None, err, true)
}

// Task looks up a task record.
func (s *Scheduler) Task(id TaskID) (*Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// CreatePromise allocates a new, unresolved promise. external is true when the
// promise is only ever resolved by a host-issued completion, not by VM
// code running CompletePromiseOp/FailPromiseOp from within the same run.
func (s *Scheduler) CreatePromise(id PromiseID, external bool) *PromiseHandle {
	s.promises[id] = &Promise{ID: id, Status: PromisePending, External: external}
	return &PromiseHandle{ID: id}
}

// CompletePromise resolves a promise and wakes waiters.
func (s *Scheduler) CompletePromise(id PromiseID, result Value) ([]*waiter, error) {
	p, ok := s.promises[id]
	if !ok {
		return nil, NewVMError(ErrTypeError, "complete of unknown promise "+id.String())
	}
	if p.Status != PromisePending {
		return nil, NewVMError(ErrTypeError, "promise already resolved: "+id.String())
	}
	p.Status = PromiseResolved
	p.Result = result
	return s.wake(Awaitable{Kind: AwaitPromise, ID: id}, result, None, false), nil
}

// FailPromise rejects a promise and wakes waiters.
func (s *Scheduler) FailPromise(id PromiseID, err Value) ([]*waiter, error) {
	p, ok := s.promises[id]
	if !ok {
		return nil, NewVMError(ErrTypeError, "fail of unknown promise "+id.String())
	}
	if p.Status != PromisePending {
		return nil, NewVMError(ErrTypeError, "promise already resolved: "+id.String())
	}
	p.Status = PromiseRejected
	p.Err = err
	return s.wake(Awaitable{Kind: AwaitPromise, ID: id}, None, err, true), nil
}

// Promise looks up a promise record.
func (s *Scheduler) Promise(id PromiseID) (*Promise, bool) {
	p, ok := s.promises[id]
	return p, ok
}

// statusOf reports whether an already-resolved awaitable exists, and its
// outcome, without registering a waiter — used by Gather/Race to short
// circuit items that finished before the wait was even set up.
func (s *Scheduler) statusOf(a Awaitable) (resolved bool, result Value, err Value, failed bool) {
	switch a.Kind {
	case AwaitTask:
		t, ok := s.tasks[a.ID]
		if !ok {
			return false, None, None, false
		}
		switch t.Status {
		case TaskCompleted:
			return true, t.Result, None, false
		case TaskFailed:
			return true, None, t.Err, true
		default:
			return false, None, None, false
		}
	case AwaitPromise:
		p, ok := s.promises[a.ID]
		if !ok {
			return false, None, None, false
		}
		switch p.Status {
		case PromiseResolved:
			return true, p.Result, None, false
		case PromiseRejected:
			return true, None, p.Err, true
		default:
			return false, None, None, false
		}
	}
	return false, None, None, false
}

// Gather registers cont as blocked until every item in items resolves
// If every item is already resolved it returns
// immediately with ready == true and the values in registration order,
// failed set if any item failed (the first failure, by item order, is
// reported).
func (s *Scheduler) Gather(cont ContID, items []Awaitable) (ready bool, results []Value, failed bool, errVal Value) {
	w := &waiter{Cont: cont, Items: items, Remaining: len(items), Results: make([]Value, len(items)), done: make([]bool, len(items))}
	allDone := true
	for i, it := range items {
		if resolved, res, err, fail := s.statusOf(it); resolved {
			w.Results[i] = res
			w.done[i] = true
			w.Remaining--
			if fail {
				return true, nil, true, err
			}
		} else {
			allDone = false
		}
	}
	if allDone {
		return true, w.Results, false, None
	}
	for i, it := range items {
		if !w.done[i] {
			s.waiters[it] = append(s.waiters[it], w)
		}
	}
	return false, nil, false, None
}

// Race registers cont as blocked until the first item in items resolves
// Returns immediately if any item is already
// resolved.
func (s *Scheduler) Race(cont ContID, items []Awaitable) (ready bool, result Value, failed bool, errVal Value) {
	for _, it := range items {
		if resolved, res, err, fail := s.statusOf(it); resolved {
			return true, res, fail, err
		}
	}
	w := &waiter{Cont: cont, Items: items, Remaining: 1, Race: true}
	for _, it := range items {
		s.waiters[it] = append(s.waiters[it], w)
	}
	return false, None, false, None
}

// wake resolves a, notifying every waiter registered on it. A Race waiter
// fires and is dropped on first notification; a Gather waiter decrements
// its remaining count and is returned (ready to resume) only once every
// item has reported in, or immediately on the first failure.
func (s *Scheduler) wake(a Awaitable, result Value, err Value, failed bool) []*waiter {
	ws := s.waiters[a]
	delete(s.waiters, a)
	var ready []*waiter
	for _, w := range ws {
		if w.Race {
			ready = append(ready, &waiter{Cont: w.Cont, Race: true, Results: []Value{result}, Failed: failed, ErrVal: err, Remaining: 0})
			continue
		}
		if failed {
			ready = append(ready, &waiter{Cont: w.Cont, Failed: true, ErrVal: err, Remaining: 0})
			continue
		}
		for i, it := range w.Items {
			if it == a && !w.done[i] {
				w.done[i] = true
				w.Results[i] = result
				w.Remaining--
			}
		}
		if w.Remaining == 0 {
			ready = append(ready, w)
		}
	}
	return ready
}
