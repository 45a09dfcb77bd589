// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Store is the per-VM mutable state map the State handler threads through
// a run, and the log the Writer handler appends to. It is owned by the VM
// instance and mutated only from that instance's step(), so it needs no internal locking.
type Store struct {
	State map[string]Value
	Env   map[string]Value
	Log   []Value
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{State: make(map[string]Value), Env: make(map[string]Value)}
}

// Snapshot deep-copies the store for an Isolated-mode spawned task.
func (s *Store) Snapshot() *Store {
	state := make(map[string]Value, len(s.State))
	for k, v := range s.State {
		state[k] = v.Clone()
	}
	env := make(map[string]Value, len(s.Env))
	for k, v := range s.Env {
		env[k] = v.Clone()
	}
	return &Store{State: state, Env: env, Log: append([]Value(nil), s.Log...)}
}

// MergeLogOnly appends child's log entries onto s. It is called when an
// isolated task finishes, so children's logs land in completion order.
func (s *Store) MergeLogOnly(child *Store) {
	s.Log = append(s.Log, child.Log...)
}
