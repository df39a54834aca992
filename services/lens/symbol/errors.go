// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbol provides interned references to types, methods and fields.
//
// Every reference is created by a single Factory and interned, so two
// references denote the same declaration if and only if they are the same
// pointer. Callers compare references with ==, never structurally.
//
// # Descriptors
//
// Types are keyed by their descriptor: primitives use one letter ("I", "Z",
// "V", ...), classes use "Lcom/example/Foo;" and arrays prefix the element
// descriptor with one '[' per dimension ("[[I"). Source form ("int[][]",
// "com.example.Foo") is accepted and produced by the helpers in signature.go.
//
// # Thread Safety
//
// Factory is safe for concurrent use. References are immutable after
// creation and may be shared freely between goroutines.
package symbol

import "errors"

// Sentinel errors for reference parsing.
var (
	// ErrInvalidDescriptor is returned when a type descriptor is malformed.
	ErrInvalidDescriptor = errors.New("invalid type descriptor")

	// ErrInvalidSignature is returned when a method or field signature in
	// source form cannot be parsed.
	ErrInvalidSignature = errors.New("invalid member signature")
)
