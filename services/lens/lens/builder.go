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
	"log/slog"

	"github.com/google/uuid"

	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// BuilderOptions configures rewrite lens construction.
type BuilderOptions struct {
	// Name is the pass name reported by Lens.Name. Default: "rewrite".
	Name string

	// Resolver enables VirtualInterfaceMapper for method entries. May be nil.
	Resolver ClassResolver

	// InvokeTypeMapper replaces the call-kind policy entirely. Takes
	// precedence over Resolver.
	InvokeTypeMapper InvokeTypeMapper

	// ArrayCacheCapacity bounds the array memo.
	// Default: DefaultArrayCacheCapacity
	ArrayCacheCapacity int

	// CallKindOnly marks a node that may have empty identity maps because
	// it only changes call kinds.
	CallKindOnly bool

	// Logger receives a debug record per built node. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Name:               "rewrite",
		ArrayCacheCapacity: DefaultArrayCacheCapacity,
	}
}

// BuilderOption is a functional option for configuring lens construction.
type BuilderOption func(*BuilderOptions)

// WithName sets the pass name.
func WithName(name string) BuilderOption {
	return func(o *BuilderOptions) {
		o.Name = name
	}
}

// WithClassResolver installs VirtualInterfaceMapper backed by r.
func WithClassResolver(r ClassResolver) BuilderOption {
	return func(o *BuilderOptions) {
		o.Resolver = r
	}
}

// WithInvokeTypeMapper overrides the call-kind policy.
func WithInvokeTypeMapper(fn InvokeTypeMapper) BuilderOption {
	return func(o *BuilderOptions) {
		o.InvokeTypeMapper = fn
	}
}

// WithArrayCacheCapacity sets the array memo bound.
func WithArrayCacheCapacity(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.ArrayCacheCapacity = n
	}
}

// WithCallKindOnly marks the node as legitimately empty.
func WithCallKindOnly() BuilderOption {
	return func(o *BuilderOptions) {
		o.CallKindOnly = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = logger
	}
}

// ContextualEntry maps a call to From made from Context.
type ContextualEntry struct {
	Context *symbol.Method
	From    *symbol.Method
	To      LookupResult
}

// Mappings is the raw content of a rewrite lens.
//
// Forward maps go from the predecessor's naming to this node's naming.
// Original maps go the other way, from this node's naming to the
// predecessor's, and are only filled for moved declarations.
type Mappings struct {
	Types   map[*symbol.Type]*symbol.Type
	Methods map[*symbol.Method]*symbol.Method
	Fields  map[*symbol.Field]*symbol.Field

	OriginalTypes   map[*symbol.Type]*symbol.Type
	OriginalMethods map[*symbol.Method]*symbol.Method
	OriginalFields  map[*symbol.Field]*symbol.Field

	Contextual  []ContextualEntry
	InvokeKinds map[*symbol.Method]InvokeKind
}

func (m *Mappings) hasIdentityChanges() bool {
	return len(m.Types) > 0 || len(m.Methods) > 0 || len(m.Fields) > 0 || len(m.Contextual) > 0
}

// NewRewriteLens constructs a rewrite node over prev.
//
// Description:
//
//	Copies the given maps, builds the bidirectional original-signature
//	maps and selects the call-kind policy. A node without any type, method,
//	field or contextual entry is rejected unless marked call-kind-only.
//
// Inputs:
//   - factory: Factory used to rebuild array types. Must not be nil.
//   - prev: The predecessor. Must not be nil.
//   - m: The node content.
//   - opts: Construction options.
//
// Outputs:
//   - *Lens: The new node.
//   - error: ErrNilFactory, ErrNilPredecessor, ErrEmptyMappings or
//     ErrDuplicateOriginal.
func NewRewriteLens(factory *symbol.Factory, prev *Lens, m Mappings, opts ...BuilderOption) (*Lens, error) {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if factory == nil {
		return nil, ErrNilFactory
	}
	if prev == nil {
		return nil, ErrNilPredecessor
	}
	if !m.hasIdentityChanges() && !options.CallKindOnly {
		return nil, fmt.Errorf("lens %q: %w", options.Name, ErrEmptyMappings)
	}

	l := &Lens{
		kind:         KindRewrite,
		id:           uuid.New(),
		name:         options.Name,
		prev:         prev,
		factory:      factory,
		typeMap:      copyMap(m.Types),
		methodMap:    copyMap(m.Methods),
		fieldMap:     copyMap(m.Fields),
		invokeKinds:  copyMap(m.InvokeKinds),
		callKindOnly: options.CallKindOnly,
		arrays:       newArrayMemo(options.ArrayCacheCapacity),
	}

	var err error
	if l.originalTypes, err = buildBiMap(m.OriginalTypes); err != nil {
		return nil, fmt.Errorf("lens %q types: %w", options.Name, err)
	}
	if l.originalMethods, err = buildBiMap(m.OriginalMethods); err != nil {
		return nil, fmt.Errorf("lens %q methods: %w", options.Name, err)
	}
	if l.originalFields, err = buildBiMap(m.OriginalFields); err != nil {
		return nil, fmt.Errorf("lens %q fields: %w", options.Name, err)
	}

	if len(m.Contextual) > 0 {
		l.contextual = make(map[contextKey]LookupResult, len(m.Contextual))
		for _, e := range m.Contextual {
			l.contextual[contextKey{context: e.Context, method: e.From}] = e.To
		}
	}

	switch {
	case options.InvokeTypeMapper != nil:
		l.mapInvokeType = options.InvokeTypeMapper
	case options.Resolver != nil:
		l.mapInvokeType = VirtualInterfaceMapper(options.Resolver)
	default:
		l.mapInvokeType = IdentityInvokeTypeMapper
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("lens node built",
		slog.String("node_id", l.id.String()),
		slog.String("name", l.name),
		slog.String("kind", l.kind.String()),
		slog.Int("types", len(l.typeMap)),
		slog.Int("methods", len(l.methodMap)),
		slog.Int("fields", len(l.fieldMap)),
		slog.Int("contextual", len(l.contextual)),
		slog.Int("invoke_kinds", len(l.invokeKinds)),
		slog.Int("depth", l.Depth()),
	)
	recordNodeCreated(l)
	return l, nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if len(m) == 0 {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func buildBiMap[K comparable](m map[K]K) (*biMap[K], error) {
	if len(m) == 0 {
		return nil, nil
	}
	b := newBiMap[K]()
	for current, previous := range m {
		if err := b.put(current, previous); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Builder records one pass's renames and moves and produces a lens.
//
// Description:
//
//	Move* renames or relocates a declaration: references are redirected
//	and the original signature is recorded so that naming queries can
//	unwind it. Map* only redirects references, for example to the survivor
//	of a merge, and leaves the naming history untouched. Entries where
//	source and target are equal are ignored.
//
// Thread Safety: Not safe for concurrent use. Chains are built between
// parallel phases.
type Builder struct {
	factory *symbol.Factory
	opts    []BuilderOption
	m       Mappings
}

// NewBuilder creates a Builder.
//
// Example:
//
//	b := lens.NewBuilder(factory, lens.WithName("inline"), lens.WithClassResolver(prog))
//	b.MoveMethod(oldRef, newRef)
//	tip, err := b.Build(tip)
func NewBuilder(factory *symbol.Factory, opts ...BuilderOption) *Builder {
	return &Builder{
		factory: factory,
		opts:    opts,
		m: Mappings{
			Types:           make(map[*symbol.Type]*symbol.Type),
			Methods:         make(map[*symbol.Method]*symbol.Method),
			Fields:          make(map[*symbol.Field]*symbol.Field),
			OriginalTypes:   make(map[*symbol.Type]*symbol.Type),
			OriginalMethods: make(map[*symbol.Method]*symbol.Method),
			OriginalFields:  make(map[*symbol.Field]*symbol.Field),
			InvokeKinds:     make(map[*symbol.Method]InvokeKind),
		},
	}
}

// MapType records that from is replaced by to, for example when two
// classes are merged.
func (b *Builder) MapType(from, to *symbol.Type) *Builder {
	if from != to {
		b.m.Types[from] = to
	}
	return b
}

// MoveType records a class rename whose original name stays queryable.
func (b *Builder) MoveType(from, to *symbol.Type) *Builder {
	if from != to {
		b.m.Types[from] = to
		b.m.OriginalTypes[to] = from
	}
	return b
}

// MapMethod redirects references to from onto to, for example when from
// is merged into to.
func (b *Builder) MapMethod(from, to *symbol.Method) *Builder {
	if from != to {
		b.m.Methods[from] = to
	}
	return b
}

// MoveMethod records that the definition from was renamed or moved to to.
func (b *Builder) MoveMethod(from, to *symbol.Method) *Builder {
	if from != to {
		b.m.Methods[from] = to
		b.m.OriginalMethods[to] = from
	}
	return b
}

// MapField redirects references to from onto to.
func (b *Builder) MapField(from, to *symbol.Field) *Builder {
	if from != to {
		b.m.Fields[from] = to
	}
	return b
}

// MoveField records that the definition from was renamed or moved to to.
func (b *Builder) MoveField(from, to *symbol.Field) *Builder {
	if from != to {
		b.m.Fields[from] = to
		b.m.OriginalFields[to] = from
	}
	return b
}

// MapInContext records that a call to from made inside context resolves to
// to with kind. context and from are in this node's predecessor naming
// for from, and in this node's naming for context.
func (b *Builder) MapInContext(context, from, to *symbol.Method, kind InvokeKind) *Builder {
	b.m.Contextual = append(b.m.Contextual, ContextualEntry{
		Context: context,
		From:    from,
		To:      LookupResult{Method: to, Kind: kind},
	})
	return b
}

// SetInvokeKind records that calls to m, named as of this node, use kind.
func (b *Builder) SetInvokeKind(m *symbol.Method, kind InvokeKind) *Builder {
	b.m.InvokeKinds[m] = kind
	return b
}

// IsEmpty reports whether nothing has been recorded.
func (b *Builder) IsEmpty() bool {
	return !b.m.hasIdentityChanges() && len(b.m.InvokeKinds) == 0
}

// Build appends the recorded node to prev.
//
// Description:
//
//	Returns prev unchanged when nothing was recorded. A builder holding
//	only call-kind changes produces a call-kind-only node.
//
// Outputs:
//   - *Lens: The new tip.
//   - error: As NewRewriteLens.
func (b *Builder) Build(prev *Lens) (*Lens, error) {
	if prev == nil {
		return nil, ErrNilPredecessor
	}
	if b.IsEmpty() {
		return prev, nil
	}
	opts := b.opts
	if !b.m.hasIdentityChanges() {
		opts = append(append([]BuilderOption(nil), opts...), WithCallKindOnly())
	}
	return NewRewriteLens(b.factory, prev, b.m, opts...)
}
