// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Resource safety combinators over programs. These provide the minimal
// interface for bracketed resource handling on top of ResultSafe.

// Bracket sequences acquire → use → release, with release guaranteed to
// run whether use returned or threw. The whole program evaluates to the
// Ok/Err result value of the use phase, after release has completed.
func Bracket(acquire *Node, use func(resource Value) *Node, release func(resource Value) *Node) *Node {
	return Bind(acquire, func(resource Value) *Node {
		return Bind(NResultSafe(use(resource)), func(result Value) *Node {
			return Then(release(resource), NPure(result))
		})
	})
}

// OnError runs cleanup only if body throws; the error is re-raised after
// cleanup.
func OnError(body *Node, cleanup func(errVal Value) *Node) *Node {
	return Bind(NResultSafe(body), func(result Value) *Node {
		ok, payload, valid := AsResult(result)
		if !valid {
			return NPure(result)
		}
		if ok {
			return NPure(payload)
		}
		return Then(cleanup(payload), rethrow(payload))
	})
}

// rethrow re-raises a captured exception value by mapping over a pure
// node with a failing transformation.
func rethrow(exc Value) *Node {
	return MapErr(NPure(Unit), func(Value) (Value, error) {
		return Value{}, ErrorFromValue(exc)
	})
}
