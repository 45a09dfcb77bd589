// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// ProgramStream models a host-language generator arriving as an opaque
// stream of IR steps. The VM never
// inspects the generator directly: it drives it through the same
// NeedsExternal/receive_external_result boundary used for any other host
// call, via a three-operation contract.
type ProgramStream struct {
	// Resume advances the stream with a value, Throw with an exception.
	// Either returns the next IR node to classify, a final return value,
	// or an error.
	Resume func(v Value) (yield *Node, ret *Value, err error)
	Throw  func(exc Value) (yield *Node, ret *Value, err error)

	// NeedsExternal, when non-nil, is the pending host call the stream is
	// waiting on before it can be asked to Resume/Throw again.
	NeedsExternal *ExternalCall
}

// StreamOutcomeKind tags one step of a program stream: a yielded IR node,
// a final return value, or an error.
type StreamOutcomeKind byte

const (
	StreamYield StreamOutcomeKind = iota
	StreamReturn
	StreamError
)

type StreamOutcome struct {
	Kind StreamOutcomeKind
	Node *Node
	Ret  Value
	Err  Value
}
