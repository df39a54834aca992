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

import "fmt"

// biMap is a one-to-one map kept in both directions.
//
// forward maps a signature in this lens to the signature it had in the
// predecessor; inverse maps the other way.
type biMap[K comparable] struct {
	forward map[K]K
	inverse map[K]K
}

func newBiMap[K comparable]() *biMap[K] {
	return &biMap[K]{
		forward: make(map[K]K),
		inverse: make(map[K]K),
	}
}

// put records that current had the signature previous in the predecessor.
// Both keys and values must be unique.
func (b *biMap[K]) put(current, previous K) error {
	if existing, ok := b.forward[current]; ok && existing != previous {
		return fmt.Errorf("%w: %v already maps to %v", ErrDuplicateOriginal, current, existing)
	}
	if existing, ok := b.inverse[previous]; ok && existing != current {
		return fmt.Errorf("%w: %v already claimed by %v", ErrDuplicateOriginal, previous, existing)
	}
	b.forward[current] = previous
	b.inverse[previous] = current
	return nil
}

// previous returns the predecessor signature of k, or k itself.
func (b *biMap[K]) previous(k K) K {
	if b == nil {
		return k
	}
	if v, ok := b.forward[k]; ok {
		return v
	}
	return k
}

// current returns the signature in this lens for a predecessor signature,
// or k itself.
func (b *biMap[K]) current(k K) K {
	if b == nil {
		return k
	}
	if v, ok := b.inverse[k]; ok {
		return v
	}
	return k
}

func (b *biMap[K]) len() int {
	if b == nil {
		return 0
	}
	return len(b.forward)
}
