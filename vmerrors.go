// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

import "fmt"

// ErrKind categorises VM-level failures. These are not
// exception types — a VMError is a Go error wrapping one of these kinds —
// but the implementation must distinguish them to drive propagation
// policy.
type ErrKind byte

const (
	// ErrUnhandledEffect: no handler in the caller chain matches.
	ErrUnhandledEffect ErrKind = iota
	// ErrNoMatchingHandler: delegate/pass walked off the end with no
	// successor.
	ErrNoMatchingHandler
	// ErrTypeError: IR surface violation (Resume with a non-continuation,
	// a yielded value that is neither effect nor IR, ...).
	ErrTypeError
	// ErrUncaughtException: a program exception reached a segment with no
	// caller.
	ErrUncaughtException
	// ErrInternalInvariant: the VM detected an impossible state (no
	// current segment, dangling SegmentId, ...). Hard driver-level error.
	ErrInternalInvariant
	// ErrOneShotViolation: attempted to activate a consumed continuation.
	ErrOneShotViolation
)

func (k ErrKind) String() string {
	switch k {
	case ErrUnhandledEffect:
		return "UnhandledEffect"
	case ErrNoMatchingHandler:
		return "NoMatchingHandler"
	case ErrTypeError:
		return "TypeError"
	case ErrUncaughtException:
		return "UncaughtException"
	case ErrInternalInvariant:
		return "InternalInvariant"
	case ErrOneShotViolation:
		return "OneShotViolation"
	default:
		return "Unknown"
	}
}

// VMError is the Go error type the VM raises for each ErrKind. It chains
// an optional cause, preserved when an enriched exception is re-thrown.
type VMError struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *VMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("kont: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("kont: %s: %s", e.Kind, e.Message)
}

func (e *VMError) Unwrap() error { return e.Cause }

// NewVMError constructs a VMError of the given kind.
func NewVMError(kind ErrKind, message string) *VMError {
	return &VMError{Kind: kind, Message: message}
}

// WithCause attaches a cause, for re-throws that must keep the failure
// chained.
func (e *VMError) WithCause(cause error) *VMError {
	return &VMError{Kind: e.Kind, Message: e.Message, Cause: cause}
}

// EnrichedError is an exception that made a GetExecutionContext
// round-trip: the handler-produced context entries ride along with the
// original cause. Enrichment happens at most once per exception —
// isEnriched guards the conversion sites so a re-thrown enriched error is
// never wrapped again.
type EnrichedError struct {
	Cause   error
	Context Value
}

func (e *EnrichedError) Error() string {
	return e.Cause.Error() + " (with execution context)"
}

func (e *EnrichedError) Unwrap() error { return e.Cause }

// enrichException attaches handler-produced context entries to an
// exception value, preserving the original as the cause.
func enrichException(orig Value, context Value) Value {
	if isEnriched(orig) {
		return orig
	}
	return ValueFromError(&EnrichedError{Cause: ErrorFromValue(orig), Context: context})
}

// isEnriched reports whether v already carries execution context.
func isEnriched(v Value) bool {
	if v.Kind != KindHostObject || v.Host == nil {
		return false
	}
	_, ok := v.Host.Handle.(*EnrichedError)
	return ok
}

// ValueFromError lifts a Go error into the Value domain as a HostObject,
// so it can flow through Mode.Exc / Value-typed exception fields uniformly
// with user-thrown values.
func ValueFromError(err error) Value {
	return Value{Kind: KindHostObject, Host: NewHostObject("error", err)}
}

// ErrorFromValue recovers a Go error from a Value produced by
// ValueFromError, or formats any other value as a generic error.
func ErrorFromValue(v Value) error {
	if v.Kind == KindHostObject && v.Host != nil {
		if err, ok := v.Host.Handle.(error); ok {
			return err
		}
	}
	return fmt.Errorf("kont: exception value %v", v)
}
