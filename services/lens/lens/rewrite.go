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

	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// LookupReference rewrites any reference through the lens.
//
// Outputs:
//   - symbol.Reference: The rewritten reference, of the same kind.
//   - error: ErrContextRequired for methods on a context-sensitive chain.
func (l *Lens) LookupReference(ref symbol.Reference) (symbol.Reference, error) {
	switch r := ref.(type) {
	case *symbol.Type:
		return l.LookupType(r), nil
	case *symbol.Field:
		return l.LookupField(r), nil
	case *symbol.Method:
		m, err := l.LookupMethod(r)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported reference %T", ref)
	}
}

// RewriteReference translates a reference to a declaration into the
// naming after this lens. Types go through LookupType; methods and fields
// go through their renamed signatures, so merges that only redirect call
// sites do not affect the result.
func RewriteReference[R symbol.Reference](l *Lens, ref R) R {
	var out symbol.Reference = ref
	switch r := out.(type) {
	case *symbol.Type:
		out = l.LookupType(r)
	case *symbol.Method:
		out = l.RenamedMethodSignature(r)
	case *symbol.Field:
		out = l.RenamedFieldSignature(r)
	}
	return out.(R)
}

// RewriteReferences rewrites every reference with RewriteReference and
// returns the distinct results in deterministic order.
func RewriteReferences[R mapKey](l *Lens, refs []R) []R {
	seen := make(map[R]struct{}, len(refs))
	out := make([]R, 0, len(refs))
	for _, ref := range refs {
		r := RewriteReference(l, ref)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	symbol.SortReferences(out)
	return out
}

// RewriteTypes rewrites types and returns the distinct results in
// deterministic order.
func (l *Lens) RewriteTypes(types []*symbol.Type) []*symbol.Type {
	return RewriteReferences(l, types)
}

// RewriteMethods maps method definitions to their renamed signatures and
// returns the distinct results in deterministic order.
func (l *Lens) RewriteMethods(methods []*symbol.Method) []*symbol.Method {
	return RewriteReferences(l, methods)
}

// RewriteTypeKeys rewrites the keys of m. When two keys rewrite to the
// same type, merge combines their values; a nil merge keeps the first
// value seen in key order.
func RewriteTypeKeys[V any](l *Lens, m map[*symbol.Type]V, merge func(a, b V) V) map[*symbol.Type]V {
	return rewriteKeys(m, l.LookupType, merge)
}

// RewriteFieldKeys is RewriteTypeKeys for field-keyed maps, using renamed
// field signatures.
func RewriteFieldKeys[V any](l *Lens, m map[*symbol.Field]V, merge func(a, b V) V) map[*symbol.Field]V {
	return rewriteKeys(m, l.RenamedFieldSignature, merge)
}

// RewriteReferenceKeys is RewriteTypeKeys for maps keyed by any reference.
func RewriteReferenceKeys[V any](l *Lens, m map[symbol.Reference]V, merge func(a, b V) V) map[symbol.Reference]V {
	return rewriteKeys(m, func(ref symbol.Reference) symbol.Reference {
		return RewriteReference(l, ref)
	}, merge)
}

// mapKey is a reference usable as a map key.
type mapKey interface {
	comparable
	symbol.Reference
}

func rewriteKeys[K mapKey, V any](m map[K]V, lookup func(K) K, merge func(a, b V) V) map[K]V {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	symbol.SortReferences(keys)

	out := make(map[K]V, len(m))
	for _, k := range keys {
		r := lookup(k)
		v := m[k]
		if existing, ok := out[r]; ok {
			if merge != nil {
				out[r] = merge(existing, v)
			}
			continue
		}
		out[r] = v
	}
	return out
}
