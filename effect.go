// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kont

// Operation is the interface for effect operations in handler dispatch.
// All values carried by a DispatchEffect implement this interface: the
// native op structs in ops.go, or a *HostObject for opaque host effects
// classified by type name at dispatch time.
type Operation any

// unhandledEffectError builds the error raised when no handler in the
// caller chain matches an effect. Extracted so dispatch sites stay small.
func unhandledEffectError(e DispatchEffect) error {
	return NewVMError(ErrUnhandledEffect, "no handler for effect "+e.TypeName())
}

// noMatchingHandlerError is the delegate/pass counterpart: the chain walk
// ran off the end with no successor.
func noMatchingHandlerError(e DispatchEffect) error {
	return NewVMError(ErrNoMatchingHandler, "no outer handler for effect "+e.TypeName())
}

// HostEffect wraps a host-object value as an opaque effect. The handler's
// own pattern decides whether it matches, usually via an isinstance-style
// query against obj.TypeName.
func HostEffect(obj *HostObject) DispatchEffect {
	return DispatchEffect{Op: obj}
}

// HostEffectOf reports whether e is a host effect of the given type name.
// Used by IRHandler match functions to express "handles every Timeout
// effect" style patterns without depending on the host's type system.
func HostEffectOf(e DispatchEffect, typeName string) (*HostObject, bool) {
	obj, ok := e.Op.(*HostObject)
	if !ok || obj.TypeName != typeName {
		return nil, false
	}
	return obj, true
}

// MatchTypeNames builds a CanHandle predicate from a fixed set of effect
// type names, the common shape of user-supplied IR-program handlers.
func MatchTypeNames(names ...string) func(DispatchEffect) bool {
	return func(e DispatchEffect) bool {
		tn := e.TypeName()
		for _, n := range names {
			if n == tn {
				return true
			}
		}
		return false
	}
}
