// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package program

import (
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// KeepInfo records declarations that must survive every pass unchanged.
type KeepInfo struct {
	types   map[*symbol.Type]struct{}
	methods map[*symbol.Method]struct{}
	fields  map[*symbol.Field]struct{}
}

// NewKeepInfo creates an empty KeepInfo.
func NewKeepInfo() *KeepInfo {
	return &KeepInfo{
		types:   make(map[*symbol.Type]struct{}),
		methods: make(map[*symbol.Method]struct{}),
		fields:  make(map[*symbol.Field]struct{}),
	}
}

// Pin marks ref as pinned.
func (k *KeepInfo) Pin(ref symbol.Reference) {
	switch r := ref.(type) {
	case *symbol.Type:
		k.types[r] = struct{}{}
	case *symbol.Method:
		k.methods[r] = struct{}{}
	case *symbol.Field:
		k.fields[r] = struct{}{}
	}
}

// IsPinned reports whether ref is pinned.
func (k *KeepInfo) IsPinned(ref symbol.Reference) bool {
	var ok bool
	switch r := ref.(type) {
	case *symbol.Type:
		_, ok = k.types[r]
	case *symbol.Method:
		_, ok = k.methods[r]
	case *symbol.Field:
		_, ok = k.fields[r]
	}
	return ok
}

// Len returns the number of pinned references.
func (k *KeepInfo) Len() int {
	return len(k.types) + len(k.methods) + len(k.fields)
}

// ForEachPinnedType calls fn for each pinned type in deterministic order.
func (k *KeepInfo) ForEachPinnedType(fn func(*symbol.Type)) {
	forEachSorted(k.types, fn)
}

// ForEachPinnedMethod calls fn for each pinned method in deterministic order.
func (k *KeepInfo) ForEachPinnedMethod(fn func(*symbol.Method)) {
	forEachSorted(k.methods, fn)
}

// ForEachPinnedField calls fn for each pinned field in deterministic order.
func (k *KeepInfo) ForEachPinnedField(fn func(*symbol.Field)) {
	forEachSorted(k.fields, fn)
}

// Pinned returns every pinned reference: types, then methods, then fields.
func (k *KeepInfo) Pinned() []symbol.Reference {
	refs := make([]symbol.Reference, 0, k.Len())
	k.ForEachPinnedType(func(t *symbol.Type) { refs = append(refs, t) })
	k.ForEachPinnedMethod(func(m *symbol.Method) { refs = append(refs, m) })
	k.ForEachPinnedField(func(f *symbol.Field) { refs = append(refs, f) })
	return refs
}

// PrunedItems records declarations removed from the current program.
type PrunedItems struct {
	classes map[*symbol.Type]struct{}
	methods map[*symbol.Method]struct{}
	fields  map[*symbol.Field]struct{}
}

// NewPrunedItems creates an empty PrunedItems.
func NewPrunedItems() *PrunedItems {
	return &PrunedItems{
		classes: make(map[*symbol.Type]struct{}),
		methods: make(map[*symbol.Method]struct{}),
		fields:  make(map[*symbol.Field]struct{}),
	}
}

// Remove marks ref as removed.
func (p *PrunedItems) Remove(ref symbol.Reference) {
	switch r := ref.(type) {
	case *symbol.Type:
		p.classes[r] = struct{}{}
	case *symbol.Method:
		p.methods[r] = struct{}{}
	case *symbol.Field:
		p.fields[r] = struct{}{}
	}
}

// IsRemoved reports whether ref was removed. Members of removed classes
// count as removed.
func (p *PrunedItems) IsRemoved(ref symbol.Reference) bool {
	if p == nil {
		return false
	}
	switch r := ref.(type) {
	case *symbol.Type:
		_, ok := p.classes[r.BaseType()]
		return ok
	case *symbol.Method:
		if _, ok := p.methods[r]; ok {
			return true
		}
		_, ok := p.classes[r.Holder()]
		return ok
	case *symbol.Field:
		if _, ok := p.fields[r]; ok {
			return true
		}
		_, ok := p.classes[r.Holder()]
		return ok
	}
	return false
}

// IsEmpty reports whether nothing was removed.
func (p *PrunedItems) IsEmpty() bool {
	return p == nil || len(p.classes)+len(p.methods)+len(p.fields) == 0
}

func forEachSorted[R interface {
	comparable
	symbol.Reference
}](set map[R]struct{}, fn func(R)) {
	refs := make([]R, 0, len(set))
	for r := range set {
		refs = append(refs, r)
	}
	symbol.SortReferences(refs)
	for _, r := range refs {
		fn(r)
	}
}
