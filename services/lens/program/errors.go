// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package program is the boundary between lens chains and the program's
// class storage.
//
// It holds only what lens consumers need: which classes exist, whether
// they are interfaces, which members they declare and how those members
// are flagged (bridge, synthesized). It also carries the keep and prune
// information produced by reachability analysis, which lens verification
// and profile rewriting consume.
//
// # Thread Safety
//
// A Program is immutable after New. KeepInfo and PrunedItems are built
// single-threaded and then only read.
package program

import "errors"

var (
	// ErrDeadReference is returned when a renamed reference does not
	// resolve to a live declaration.
	ErrDeadReference = errors.New("reference does not resolve to a live declaration")

	// ErrUnknownClass is returned when a call resolves to a method whose
	// holder is not declared.
	ErrUnknownClass = errors.New("unknown class")

	// ErrDuplicateClass is returned when two classes share a type.
	ErrDuplicateClass = errors.New("duplicate class")

	// ErrDuplicateMember is returned when a class declares the same member
	// twice, including after a merge.
	ErrDuplicateMember = errors.New("duplicate member")

	// ErrHolderMismatch is returned when a member is declared on a class
	// other than its holder.
	ErrHolderMismatch = errors.New("member holder does not match declaring class")
)
