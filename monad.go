// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Monad operations for programs.
//
// Minimal definition: Pure (unit, see NPure) and Bind are necessary and
// sufficient. Map and Then are derived operations kept as allocation
// optimizations: Map skips the binder's intermediate Pure node, Then skips
// the closure capture a discarding Bind would need.

// Bind sequences two programs (monadic bind).
// It runs m, then passes the result to f to get a new program.
func Bind(m *Node, f func(Value) *Node) *Node {
	return NFlatMap(m, f, callerMeta("Bind"))
}

// BindMeta is Bind with explicit call-site metadata, for hosts that track
// source positions through their own translation layer.
func BindMeta(m *Node, f func(Value) *Node, meta CallMeta) *Node {
	return NFlatMap(m, f, meta)
}

// Map applies a pure function to the result of a program.
func Map(m *Node, f func(Value) Value) *Node {
	return NMap(m, func(args []Value) (Value, error) {
		return f(args[0]), nil
	}, callerMeta("Map"))
}

// MapErr is Map for transformations that can fail; the error propagates
// as a thrown exception.
func MapErr(m *Node, f func(Value) (Value, error)) *Node {
	return NMap(m, func(args []Value) (Value, error) {
		return f(args[0])
	}, callerMeta("MapErr"))
}

// Then sequences two programs, discarding the first result.
// This is more efficient than Bind when the second computation
// does not depend on the first result.
func Then(m, n *Node) *Node {
	return NFlatMap(m, func(Value) *Node { return n }, callerMeta("Then"))
}

// Seq chains programs left to right, keeping only the last value.
// Seq() is Pure(Unit).
func Seq(ms ...*Node) *Node {
	if len(ms) == 0 {
		return NPure(Unit)
	}
	out := ms[0]
	for _, m := range ms[1:] {
		out = Then(out, m)
	}
	return out
}
