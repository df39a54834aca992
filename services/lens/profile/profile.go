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
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

var (
	tracer = otel.Tracer("symlens.profile")
	meter  = otel.Meter("symlens.profile")
)

var (
	rulesRewritten metric.Int64Counter
	rulesDropped   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		rulesRewritten, err = meter.Int64Counter(
			"lens_profile_rules_rewritten",
			metric.WithDescription("Profile rules translated through a lens"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rulesDropped, err = meter.Int64Counter(
			"lens_profile_rules_dropped",
			metric.WithDescription("Profile rules dropped because their target is gone"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRules(ctx context.Context, kind string, rewritten, dropped int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	rulesRewritten.Add(ctx, int64(rewritten), attrs)
	rulesDropped.Add(ctx, int64(dropped), attrs)
}

// Flags are the method rule flags of a profile.
type Flags uint8

const (
	// FlagHot marks methods worth optimizing aggressively.
	FlagHot Flags = 1 << iota
	// FlagStartup marks methods executed during startup.
	FlagStartup
	// FlagPostStartup marks methods executed after startup.
	FlagPostStartup
)

// String renders flags as a subset of "HSP".
func (f Flags) String() string {
	var b strings.Builder
	if f&FlagHot != 0 {
		b.WriteByte('H')
	}
	if f&FlagStartup != 0 {
		b.WriteByte('S')
	}
	if f&FlagPostStartup != 0 {
		b.WriteByte('P')
	}
	return b.String()
}

// ParseFlags parses a subset of "HSP" in any order.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, c := range s {
		switch c {
		case 'H':
			f |= FlagHot
		case 'S':
			f |= FlagStartup
		case 'P':
			f |= FlagPostStartup
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidFlags, s)
		}
	}
	return f, nil
}

// MethodRule is a method with its flags.
type MethodRule struct {
	Method *symbol.Method
	Flags  Flags
}

// Profile is an immutable set of class and method rules in insertion order.
type Profile struct {
	classes []*symbol.Type
	methods []MethodRule
}

// Builder accumulates rules. Repeated class rules are ignored and repeated
// method rules merge their flags.
type Builder struct {
	classes     []*symbol.Type
	classSeen   map[*symbol.Type]struct{}
	methods     []MethodRule
	methodIndex map[*symbol.Method]int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		classSeen:   make(map[*symbol.Type]struct{}),
		methodIndex: make(map[*symbol.Method]int),
	}
}

// AddClassRule adds a class rule.
func (b *Builder) AddClassRule(t *symbol.Type) *Builder {
	if _, ok := b.classSeen[t]; !ok {
		b.classSeen[t] = struct{}{}
		b.classes = append(b.classes, t)
	}
	return b
}

// AddMethodRule adds a method rule, merging flags with an existing rule
// for the same method.
func (b *Builder) AddMethodRule(m *symbol.Method, flags Flags) *Builder {
	if i, ok := b.methodIndex[m]; ok {
		b.methods[i].Flags |= flags
		return b
	}
	b.methodIndex[m] = len(b.methods)
	b.methods = append(b.methods, MethodRule{Method: m, Flags: flags})
	return b
}

// Build returns the profile. The builder must not be used afterwards.
func (b *Builder) Build() *Profile {
	return &Profile{classes: b.classes, methods: b.methods}
}

// ClassRules returns the class rules. The slice must not be modified.
func (p *Profile) ClassRules() []*symbol.Type { return p.classes }

// MethodRules returns the method rules. The slice must not be modified.
func (p *Profile) MethodRules() []MethodRule { return p.methods }

// Len returns the total number of rules.
func (p *Profile) Len() int { return len(p.classes) + len(p.methods) }

// RewrittenWithLens translates the profile from the root naming of l to
// the naming after l.
func (p *Profile) RewrittenWithLens(ctx context.Context, l *lens.Lens) (*Profile, error) {
	return p.RewrittenWithLensAfter(ctx, l, nil)
}

// RewrittenWithLensAfter translates a profile recorded as of lens applied
// to the naming after l.
//
// Description:
//
//	Class rules go through LookupTypeAfter and are dropped when the result is
//	no longer a class, for example when a class was replaced by a
//	primitive. Method rules go through the renamed method signature; a
//	method that changed holder also adds a class rule for its new holder.
//	Rules that land on the same declaration are merged.
//
// Inputs:
//   - ctx: Context for tracing.
//   - l: The chain tip.
//   - applied: The node the profile was recorded at. Nil means the root.
//
// Outputs:
//   - *Profile: The translated profile.
//   - error: ErrNilLens when l is nil.
func (p *Profile) RewrittenWithLensAfter(ctx context.Context, l *lens.Lens, applied *lens.Lens) (*Profile, error) {
	if l == nil {
		return nil, ErrNilLens
	}
	ctx, span := tracer.Start(ctx, "Profile.RewrittenWithLens",
		trace.WithAttributes(
			attribute.String("lens.name", l.Name()),
			attribute.Int("profile.rules", p.Len()),
		),
	)
	defer span.End()

	b := NewBuilder()
	dropped := 0
	for _, t := range p.classes {
		rewritten := l.LookupTypeAfter(t, applied)
		if !rewritten.IsClass() {
			dropped++
			continue
		}
		b.AddClassRule(rewritten)
	}
	for _, rule := range p.methods {
		renamed := l.RenamedMethodSignatureAfter(rule.Method, applied)
		if renamed.Holder() != rule.Method.Holder() {
			b.AddClassRule(renamed.Holder())
		}
		b.AddMethodRule(renamed, rule.Flags)
	}
	out := b.Build()

	span.SetAttributes(
		attribute.Int("profile.rules_out", out.Len()),
		attribute.Int("profile.rules_dropped", dropped),
	)
	recordRules(ctx, "profile", p.Len()-dropped, dropped)
	return out, nil
}

// WithoutPrunedItems drops rules whose target was removed.
func (p *Profile) WithoutPrunedItems(pruned *program.PrunedItems) *Profile {
	if pruned.IsEmpty() {
		return p
	}
	b := NewBuilder()
	for _, t := range p.classes {
		if !pruned.IsRemoved(t) {
			b.AddClassRule(t)
		}
	}
	for _, rule := range p.methods {
		if !pruned.IsRemoved(rule.Method) {
			b.AddMethodRule(rule.Method, rule.Flags)
		}
	}
	return b.Build()
}

// String renders one rule per line: classes as "L<name>;" descriptors and
// methods as "<flags>void a.B.c()".
func (p *Profile) String() string {
	var b strings.Builder
	for _, t := range p.classes {
		b.WriteString(t.Descriptor())
		b.WriteByte('\n')
	}
	for _, rule := range p.methods {
		b.WriteString(rule.Flags.String())
		b.WriteString(rule.Method.SourceString())
		b.WriteByte('\n')
	}
	return b.String()
}
