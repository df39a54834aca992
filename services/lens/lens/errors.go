// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lens records how optimization passes rename, move and merge
// types, methods and fields, and answers lookups across those passes.
//
// A Lens is one immutable layer. Every non-root lens points at the lens it
// extends, forming a chain that ends in the identity lens. Lookups ask the
// predecessor first and then apply the layer's own mapping, so a query on
// the tip of the chain translates a reference as written in the original
// program into the reference as it exists after every pass.
//
// # Lens Kinds
//
//   - KindIdentity: the root. Every lookup returns its input.
//   - KindClearCodeRewriting: suppresses further code rewriting of methods
//     and fields once a pass has been materialized, while still answering
//     naming queries through the predecessor.
//   - KindRewrite: holds forward maps and, for moved members, bidirectional
//     original-signature maps.
//
// # Ownership Model
//
// A lens owns its maps and shares its predecessor. The same predecessor may
// be extended by several lenses when a speculative pass is discarded and
// retried, so nothing here assumes a single descendant.
//
// # Thread Safety
//
// Chains are built single-threaded between parallel phases. Once built, a
// lens is read-only except for its array-type memo, which is guarded by a
// per-lens mutex. Any number of goroutines may query the same chain.
package lens

import "errors"

// Sentinel errors for lens construction and lookup.
var (
	// ErrContextRequired is returned when a method is looked up without a
	// calling context on a lens whose method mapping depends on the context.
	ErrContextRequired = errors.New("context-sensitive lens queried without context")

	// ErrEmptyMappings is returned when a rewrite lens is constructed with
	// no mappings at all and is not marked as changing call kinds only.
	ErrEmptyMappings = errors.New("rewrite lens has no mappings")

	// ErrNilPredecessor is returned when a non-root lens is given no predecessor.
	ErrNilPredecessor = errors.New("predecessor lens must not be nil")

	// ErrNilFactory is returned when a rewrite lens is built without a
	// reference factory.
	ErrNilFactory = errors.New("reference factory must not be nil")

	// ErrDuplicateOriginal is returned when two moved members claim the same
	// original or the same new signature within one lens.
	ErrDuplicateOriginal = errors.New("original signature map is not one-to-one")

	// ErrNotRebasable is returned when Rebase is called on the identity lens.
	ErrNotRebasable = errors.New("identity lens cannot be rebased")
)
