// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbol

import (
	"cmp"
	"slices"
)

// Compare orders references deterministically: by kind, then by holder,
// name and descriptor. It is slow compared to pointer identity and only
// meant for producing stable output.
func Compare(a, b Reference) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch x := a.(type) {
	case *Type:
		return cmp.Compare(x.descriptor, b.(*Type).descriptor)
	case *Method:
		y := b.(*Method)
		if c := cmp.Compare(x.holder.descriptor, y.holder.descriptor); c != 0 {
			return c
		}
		if c := cmp.Compare(x.name, y.name); c != 0 {
			return c
		}
		return cmp.Compare(x.proto.descriptor, y.proto.descriptor)
	case *Field:
		y := b.(*Field)
		if c := cmp.Compare(x.holder.descriptor, y.holder.descriptor); c != 0 {
			return c
		}
		if c := cmp.Compare(x.name, y.name); c != 0 {
			return c
		}
		return cmp.Compare(x.typ.descriptor, y.typ.descriptor)
	}
	return cmp.Compare(a.SourceString(), b.SourceString())
}

// SortReferences sorts refs in place using Compare.
func SortReferences[R Reference](refs []R) {
	slices.SortFunc(refs, func(a, b R) int { return Compare(a, b) })
}
