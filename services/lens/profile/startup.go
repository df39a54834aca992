// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package profile

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// StartupOrder is the order in which classes and methods are first used
// during startup. Entries are distinct and keep their first position.
type StartupOrder struct {
	items []symbol.Reference
}

// NewStartupOrder creates a startup order. Repeated entries keep their
// first position.
func NewStartupOrder(items ...symbol.Reference) *StartupOrder {
	return &StartupOrder{items: distinct(items)}
}

// Items returns the entries in order. The slice must not be modified.
func (o *StartupOrder) Items() []symbol.Reference { return o.items }

// Len returns the number of entries.
func (o *StartupOrder) Len() int { return len(o.items) }

// RewrittenWithLens translates every entry to the naming after l.
func (o *StartupOrder) RewrittenWithLens(ctx context.Context, l *lens.Lens) (*StartupOrder, error) {
	return o.RewrittenWithLensAfter(ctx, l, nil)
}

// RewrittenWithLensAfter translates an order recorded as of lens applied
// to the naming after l. A nil applied means the root.
//
// Description:
//
//	Classes go through LookupType and are dropped when they are no longer
//	classes. Methods go through the renamed method signature. Entries that
//	collapse onto the same declaration keep the earliest position.
func (o *StartupOrder) RewrittenWithLensAfter(ctx context.Context, l, applied *lens.Lens) (*StartupOrder, error) {
	if l == nil {
		return nil, ErrNilLens
	}
	ctx, span := tracer.Start(ctx, "StartupOrder.RewrittenWithLens")
	defer span.End()

	rewritten := make([]symbol.Reference, 0, len(o.items))
	dropped := 0
	for _, item := range o.items {
		switch r := item.(type) {
		case *symbol.Type:
			t := l.LookupTypeAfter(r, applied)
			if !t.IsClass() {
				dropped++
				continue
			}
			rewritten = append(rewritten, t)
		case *symbol.Method:
			rewritten = append(rewritten, l.RenamedMethodSignatureAfter(r, applied))
		case *symbol.Field:
			rewritten = append(rewritten, l.RenamedFieldSignatureAfter(r, applied))
		}
	}
	out := &StartupOrder{items: distinct(rewritten)}

	span.SetAttributes(
		attribute.Int("startup.items_in", len(o.items)),
		attribute.Int("startup.items_out", out.Len()),
	)
	recordRules(ctx, "startup", len(o.items)-dropped, dropped)
	return out, nil
}

// WithoutPrunedItems drops entries whose target was removed.
func (o *StartupOrder) WithoutPrunedItems(pruned *program.PrunedItems) *StartupOrder {
	if pruned.IsEmpty() {
		return o
	}
	kept := make([]symbol.Reference, 0, len(o.items))
	for _, item := range o.items {
		if !pruned.IsRemoved(item) {
			kept = append(kept, item)
		}
	}
	return &StartupOrder{items: kept}
}

func distinct(items []symbol.Reference) []symbol.Reference {
	seen := make(map[symbol.Reference]struct{}, len(items))
	out := make([]symbol.Reference, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
