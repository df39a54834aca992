// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lens

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// InvokeKind is the call-resolution kind of a method invocation.
type InvokeKind int

const (
	// InvokeUnspecified is used for lookups that do not originate from a
	// call site, such as resolving a definition.
	InvokeUnspecified InvokeKind = iota
	InvokeVirtual
	InvokeInterface
	InvokeStatic
	InvokeSuper
	InvokeDirect
)

var invokeKindNames = [...]string{
	InvokeUnspecified: "unspecified",
	InvokeVirtual:     "virtual",
	InvokeInterface:   "interface",
	InvokeStatic:      "static",
	InvokeSuper:       "super",
	InvokeDirect:      "direct",
}

// String returns the string representation of the InvokeKind.
func (k InvokeKind) String() string {
	if k < 0 || int(k) >= len(invokeKindNames) {
		return "unknown"
	}
	return invokeKindNames[k]
}

// ParseInvokeKind parses the lower-case name produced by String.
func ParseInvokeKind(s string) (InvokeKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return InvokeUnspecified, nil
	}
	for k, name := range invokeKindNames {
		if name == s {
			return InvokeKind(k), nil
		}
	}
	return InvokeUnspecified, fmt.Errorf("unknown invoke kind %q", s)
}

// LookupResult is the answer to a method lookup: the method as it exists
// in the queried lens and the kind a call site should use to reach it.
type LookupResult struct {
	Method *symbol.Method
	Kind   InvokeKind
}

// ClassResolver tells the call-resolution policy whether a type is an
// interface.
//
// Implementations must answer for types named in either the original or
// the rewritten program. ok is false for types the resolver has no
// definition for, such as library classes.
type ClassResolver interface {
	IsInterface(t *symbol.Type) (isInterface bool, ok bool)
}

// InvokeTypeMapper decides the kind for a method entry of a lens.
//
// Inputs:
//   - rewritten: The method after this lens's mapping.
//   - original: The method as passed to the lookup on this lens.
//   - kind: The kind produced by the predecessor.
type InvokeTypeMapper func(rewritten, original *symbol.Method, kind InvokeKind) InvokeKind

// IdentityInvokeTypeMapper keeps the predecessor's kind.
func IdentityInvokeTypeMapper(_, _ *symbol.Method, kind InvokeKind) InvokeKind {
	return kind
}

// VirtualInterfaceMapper returns the policy for lenses that move methods
// across class and interface boundaries.
//
// Description:
//
//	Only InvokeVirtual and InvokeInterface are touched; every other kind
//	passes through. When the original call already disagreed with the
//	original holder (a virtual call to an interface member, or an
//	interface call to a class member) the disagreement is carried over to
//	the new holder, so the program keeps failing the way it failed before.
//	Otherwise the kind follows the new holder: InvokeInterface for an
//	interface, InvokeVirtual for a class. Holders the resolver does not
//	know keep the predecessor's kind.
//
// Inputs:
//   - resolver: Interface lookup for original and rewritten holders. Must not be nil.
//
// Outputs:
//   - InvokeTypeMapper: The policy.
func VirtualInterfaceMapper(resolver ClassResolver) InvokeTypeMapper {
	return func(rewritten, original *symbol.Method, kind InvokeKind) InvokeKind {
		if kind != InvokeVirtual && kind != InvokeInterface {
			return kind
		}
		newIsInterface, ok := resolver.IsInterface(rewritten.Holder())
		if !ok {
			return kind
		}
		if origIsInterface, known := resolver.IsInterface(original.Holder()); known {
			if origIsInterface != (kind == InvokeInterface) {
				// Already mismatched: keep it mismatched on the new holder.
				if newIsInterface {
					return InvokeVirtual
				}
				return InvokeInterface
			}
		}
		if newIsInterface {
			return InvokeInterface
		}
		return InvokeVirtual
	}
}
