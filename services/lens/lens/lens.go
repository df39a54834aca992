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
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// Kind identifies the behavior of a lens node.
type Kind int

const (
	// KindIdentity is the root of every chain.
	KindIdentity Kind = iota

	// KindClearCodeRewriting suppresses code rewriting but keeps naming history.
	KindClearCodeRewriting

	// KindRewrite holds forward and original-signature maps.
	KindRewrite
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindClearCodeRewriting:
		return "clear_code_rewriting"
	case KindRewrite:
		return "rewrite"
	default:
		return "unknown"
	}
}

type contextKey struct {
	context *symbol.Method
	method  *symbol.Method
}

// Lens is one immutable layer of a lens chain.
//
// Description:
//
//	Every query on a non-root lens first asks the predecessor, then applies
//	this layer's own mapping to the predecessor's answer. The only state
//	that changes after construction is the array memo.
//
// Thread Safety: All methods are safe for concurrent use once the lens has
// been built.
type Lens struct {
	kind    Kind
	id      uuid.UUID
	name    string
	prev    *Lens
	factory *symbol.Factory

	typeMap   map[*symbol.Type]*symbol.Type
	methodMap map[*symbol.Method]*symbol.Method
	fieldMap  map[*symbol.Field]*symbol.Field

	// contextual entries win over methodMap for a (caller, callee) pair.
	contextual map[contextKey]LookupResult

	// invokeKinds replaces the call kind of a method after mapping.
	invokeKinds map[*symbol.Method]InvokeKind

	originalTypes   *biMap[*symbol.Type]
	originalMethods *biMap[*symbol.Method]
	originalFields  *biMap[*symbol.Field]

	mapInvokeType InvokeTypeMapper
	callKindOnly  bool

	arrays *arrayMemo
}

var identityLens = &Lens{
	kind: KindIdentity,
	id:   uuid.Nil,
	name: "identity",
}

// Identity returns the root lens. Every lookup on it returns its input.
func Identity() *Lens {
	return identityLens
}

// NewClearCodeRewritingLens wraps prev in a node that performs no code
// rewriting but still answers original and renamed signature queries
// through prev.
//
// Outputs:
//   - *Lens: The new node.
//   - error: ErrNilPredecessor if prev is nil.
func NewClearCodeRewritingLens(prev *Lens) (*Lens, error) {
	if prev == nil {
		return nil, ErrNilPredecessor
	}
	l := &Lens{
		kind:    KindClearCodeRewriting,
		id:      uuid.New(),
		name:    "clear(" + prev.name + ")",
		prev:    prev,
		factory: prev.factory,
	}
	recordNodeCreated(l)
	return l, nil
}

// Kind returns the node kind.
func (l *Lens) Kind() Kind { return l.kind }

// ID returns the node's unique id. The identity lens has uuid.Nil.
func (l *Lens) ID() uuid.UUID { return l.id }

// Name returns the name of the pass that produced the node.
func (l *Lens) Name() string { return l.name }

// Predecessor returns the lens this one extends, or nil for the root.
func (l *Lens) Predecessor() *Lens { return l.prev }

// IsIdentity reports whether l is the root lens.
func (l *Lens) IsIdentity() bool { return l.kind == KindIdentity }

// IsCallKindOnly reports whether the node exists only to change call kinds.
func (l *Lens) IsCallKindOnly() bool { return l.callKindOnly }

// HasCodeRewritings reports whether code seen through this lens must be
// rewritten. False for the identity and clear nodes, true for every
// rewrite node, including call-kind-only ones.
func (l *Lens) HasCodeRewritings() bool {
	return l.kind == KindRewrite
}

// IsContextFreeForMethods reports whether method lookups on this lens can
// be answered without a calling context.
func (l *Lens) IsContextFreeForMethods() bool {
	switch l.kind {
	case KindIdentity, KindClearCodeRewriting:
		return true
	default:
		return len(l.contextual) == 0 && l.prev.IsContextFreeForMethods()
	}
}

// LookupType returns t as it exists after this lens.
//
// Description:
//
//	Non-array types are resolved by the predecessor and then mapped by
//	this node. Array types are decomposed, their base element is resolved
//	through this lens and the array is rebuilt over the result. Rebuilt
//	arrays are memoized per node, keyed by t.
//
// Thread Safety: Safe for concurrent use.
func (l *Lens) LookupType(t *symbol.Type) *symbol.Type {
	switch l.kind {
	case KindIdentity:
		return t
	case KindClearCodeRewriting:
		return l.prev.LookupType(t)
	}
	if t.IsArray() {
		return l.lookupArrayType(t)
	}
	prev := l.prev.LookupType(t)
	if mapped, ok := l.typeMap[prev]; ok {
		return mapped
	}
	return prev
}

// LookupTypeAfter is LookupType for a type named as of lens applied. Nodes
// up to and including applied are skipped. A nil applied means the whole
// chain. Results are not memoized.
func (l *Lens) LookupTypeAfter(t *symbol.Type, applied *Lens) *symbol.Type {
	if applied == nil {
		return l.LookupType(t)
	}
	if t.IsArray() {
		base := t.BaseType()
		rewritten := l.LookupTypeAfter(base, applied)
		if rewritten == base {
			return t
		}
		return l.factory.ReplaceBaseType(t, rewritten)
	}
	if l == applied || l.kind == KindIdentity {
		return t
	}
	prev := l.prev.LookupTypeAfter(t, applied)
	if l.kind != KindRewrite {
		return prev
	}
	if mapped, ok := l.typeMap[prev]; ok {
		return mapped
	}
	return prev
}

// lookupArrayType resolves an array type through the memo. The base type
// is computed without holding the memo lock.
func (l *Lens) lookupArrayType(t *symbol.Type) *symbol.Type {
	if cached, ok := l.arrays.get(t); ok {
		recordArrayCacheAccess(true)
		return cached
	}
	recordArrayCacheAccess(false)

	base := t.BaseType()
	rewritten := l.LookupType(base)
	result := t
	if rewritten != base {
		result = l.factory.ReplaceBaseType(t, rewritten)
	}
	l.arrays.put(t, result)
	return result
}

// LookupField returns f as it exists after this lens.
//
// Thread Safety: Safe for concurrent use.
func (l *Lens) LookupField(f *symbol.Field) *symbol.Field {
	if l.kind != KindRewrite {
		return f
	}
	prev := l.prev.LookupField(f)
	if mapped, ok := l.fieldMap[prev]; ok {
		return mapped
	}
	return prev
}

// LookupMethod returns m as it exists after this lens, without a calling
// context.
//
// Outputs:
//   - *symbol.Method: The rewritten method.
//   - error: ErrContextRequired if the chain is context sensitive.
func (l *Lens) LookupMethod(m *symbol.Method) (*symbol.Method, error) {
	result, err := l.LookupMethodInContext(m, nil, InvokeUnspecified)
	if err != nil {
		return nil, err
	}
	return result.Method, nil
}

// LookupMethodInContext resolves a call to m made from context with kind.
//
// Description:
//
//	Walks the chain root first. At each rewrite node the calling context
//	is first translated into the predecessor's naming, the predecessor is
//	queried, and the node's contextual entries, method map and call kind
//	overrides are applied to that answer in that order.
//
// Inputs:
//   - m: The called method as written in the original program.
//   - context: The calling method as it exists after this lens. May be
//     nil only if IsContextFreeForMethods is true.
//   - kind: The call kind at the call site.
//
// Outputs:
//   - LookupResult: The rewritten method and call kind.
//   - error: ErrContextRequired when context is nil on a context-sensitive chain.
//
// Thread Safety: Safe for concurrent use.
func (l *Lens) LookupMethodInContext(m, context *symbol.Method, kind InvokeKind) (LookupResult, error) {
	if context == nil && !l.IsContextFreeForMethods() {
		return LookupResult{}, fmt.Errorf("lookup of %s on lens %q: %w", m, l.name, ErrContextRequired)
	}
	return l.lookupMethod(m, context, kind), nil
}

func (l *Lens) lookupMethod(m, context *symbol.Method, kind InvokeKind) LookupResult {
	if l.kind != KindRewrite {
		return LookupResult{Method: m, Kind: kind}
	}

	var prevContext *symbol.Method
	if context != nil {
		prevContext = l.originalMethods.previous(context)
	}
	prev := l.prev.lookupMethod(m, prevContext, kind)

	if context != nil && len(l.contextual) > 0 {
		if r, ok := l.contextual[contextKey{context: context, method: prev.Method}]; ok {
			return r
		}
	}

	result := prev
	if mapped, ok := l.methodMap[prev.Method]; ok {
		result = LookupResult{Method: mapped, Kind: l.mapInvokeType(mapped, m, prev.Kind)}
	}
	if result.Kind != InvokeUnspecified {
		if override, ok := l.invokeKinds[result.Method]; ok {
			result.Kind = override
		}
	}
	return result
}

// OriginalType returns the type as declared in the untransformed program.
// Only types recorded as moved unwind; merged types stay as they are.
func (l *Lens) OriginalType(t *symbol.Type) *symbol.Type {
	switch l.kind {
	case KindIdentity:
		return t
	case KindClearCodeRewriting:
		return l.prev.OriginalType(t)
	}
	if t.IsArray() {
		base := t.BaseType()
		original := l.OriginalType(base)
		if original == base {
			return t
		}
		return l.factory.ReplaceBaseType(t, original)
	}
	return l.prev.OriginalType(l.originalTypes.previous(t))
}

// OriginalMethodSignature returns the signature m had in the original
// program, unwinding moves from the tip to the root.
func (l *Lens) OriginalMethodSignature(m *symbol.Method) *symbol.Method {
	for n := l; n != nil; n = n.prev {
		if n.kind == KindRewrite {
			m = n.originalMethods.previous(m)
		}
	}
	return m
}

// OriginalFieldSignature returns the signature f had in the original program.
func (l *Lens) OriginalFieldSignature(f *symbol.Field) *symbol.Field {
	for n := l; n != nil; n = n.prev {
		if n.kind == KindRewrite {
			f = n.originalFields.previous(f)
		}
	}
	return f
}

// RenamedMethodSignature returns the signature the original method has
// after this lens. It is the inverse of OriginalMethodSignature for moved
// methods.
func (l *Lens) RenamedMethodSignature(original *symbol.Method) *symbol.Method {
	return l.RenamedMethodSignatureAfter(original, nil)
}

// RenamedMethodSignatureAfter is RenamedMethodSignature for a method whose
// signature is expressed as of lens applied. Nodes up to and including
// applied are skipped. A nil applied means the whole chain.
//
// Description:
//
//	Used to translate a signature recorded at a particular pass, such as a
//	profile captured mid-compilation, into the current naming.
func (l *Lens) RenamedMethodSignatureAfter(m *symbol.Method, applied *Lens) *symbol.Method {
	if l == applied || l.kind == KindIdentity {
		return m
	}
	renamed := l.prev.RenamedMethodSignatureAfter(m, applied)
	if l.kind != KindRewrite {
		return renamed
	}
	return l.originalMethods.current(renamed)
}

// RenamedFieldSignature is RenamedMethodSignature for fields.
func (l *Lens) RenamedFieldSignature(original *symbol.Field) *symbol.Field {
	return l.RenamedFieldSignatureAfter(original, nil)
}

// RenamedFieldSignatureAfter is RenamedMethodSignatureAfter for fields.
func (l *Lens) RenamedFieldSignatureAfter(f *symbol.Field, applied *Lens) *symbol.Field {
	if l == applied || l.kind == KindIdentity {
		return f
	}
	renamed := l.prev.RenamedFieldSignatureAfter(f, applied)
	if l.kind != KindRewrite {
		return renamed
	}
	return l.originalFields.current(renamed)
}

// RenamedMemberSignature dispatches to the method or field variant.
func (l *Lens) RenamedMemberSignature(member symbol.Member) symbol.Member {
	switch m := member.(type) {
	case *symbol.Method:
		return l.RenamedMethodSignature(m)
	case *symbol.Field:
		return l.RenamedFieldSignature(m)
	default:
		return member
	}
}

// WithCodeRewritingsApplied returns a clear node over l when l still has
// code rewritings, and l otherwise.
func (l *Lens) WithCodeRewritingsApplied() *Lens {
	if !l.HasCodeRewritings() {
		return l
	}
	cleared, _ := NewClearCodeRewritingLens(l)
	return cleared
}

// Rebase returns a copy of l over a different predecessor.
//
// Description:
//
//	The copy shares l's maps, which are never mutated, and gets a fresh id
//	and array memo. Used to evaluate a pass's mapping over an alternative
//	history, for example when a speculative pass is retried.
//
// Outputs:
//   - *Lens: The rebased node.
//   - error: ErrNotRebasable for the identity lens, ErrNilPredecessor for nil prev.
func (l *Lens) Rebase(prev *Lens) (*Lens, error) {
	if l.kind == KindIdentity {
		return nil, ErrNotRebasable
	}
	if prev == nil {
		return nil, ErrNilPredecessor
	}
	if l.kind == KindClearCodeRewriting {
		return NewClearCodeRewritingLens(prev)
	}
	rebased := *l
	rebased.id = uuid.New()
	rebased.prev = prev
	rebased.arrays = newArrayMemo(l.arrays.capacity)
	recordNodeCreated(&rebased)
	return &rebased, nil
}

// Chain returns the nodes from l to the root, tip first.
func (l *Lens) Chain() []*Lens {
	var chain []*Lens
	for n := l; n != nil; n = n.prev {
		chain = append(chain, n)
	}
	return chain
}

// Depth returns the number of non-root nodes between l and the root.
func (l *Lens) Depth() int {
	depth := 0
	for n := l; n.prev != nil; n = n.prev {
		depth++
	}
	return depth
}

// FindByID returns the node in l's chain with the given id, or nil.
func (l *Lens) FindByID(id uuid.UUID) *Lens {
	for n := l; n != nil; n = n.prev {
		if n.id == id {
			return n
		}
	}
	return nil
}

// FindByName returns the node nearest to the tip with the given pass name,
// or nil.
func (l *Lens) FindByName(name string) *Lens {
	for n := l; n != nil; n = n.prev {
		if n.name == name {
			return n
		}
	}
	return nil
}

// Stats describes one node.
type Stats struct {
	Kind            Kind
	Types           int
	Methods         int
	Fields          int
	Contextual      int
	InvokeKinds     int
	OriginalTypes   int
	OriginalMethods int
	OriginalFields  int
	CallKindOnly    bool
	ArrayMemo       MemoStats
}

// Stats returns map sizes and memo counters for this node only.
func (l *Lens) Stats() Stats {
	s := Stats{
		Kind:            l.kind,
		Types:           len(l.typeMap),
		Methods:         len(l.methodMap),
		Fields:          len(l.fieldMap),
		Contextual:      len(l.contextual),
		InvokeKinds:     len(l.invokeKinds),
		OriginalTypes:   l.originalTypes.len(),
		OriginalMethods: l.originalMethods.len(),
		OriginalFields:  l.originalFields.len(),
		CallKindOnly:    l.callKindOnly,
	}
	if l.arrays != nil {
		s.ArrayMemo = l.arrays.stats()
	}
	return s
}

// String renders the node's mappings as sorted "old -> new" lines,
// followed by the predecessor's.
func (l *Lens) String() string {
	var b strings.Builder
	for n := l; n != nil; n = n.prev {
		n.writeNode(&b)
	}
	return b.String()
}

func (l *Lens) writeNode(b *strings.Builder) {
	fmt.Fprintf(b, "# %s [%s] %s\n", l.name, l.kind, l.id)
	if l.kind != KindRewrite {
		return
	}
	writeSorted(b, l.typeMap)
	writeSorted(b, l.methodMap)
	writeSorted(b, l.fieldMap)

	keys := make([]contextKey, 0, len(l.contextual))
	for k := range l.contextual {
		keys = append(keys, k)
	}
	sortContextKeys(keys)
	for _, k := range keys {
		r := l.contextual[k]
		fmt.Fprintf(b, "%s -> %s [%s] in %s\n", k.method, r.Method, r.Kind, k.context)
	}

	overrides := make([]*symbol.Method, 0, len(l.invokeKinds))
	for m := range l.invokeKinds {
		overrides = append(overrides, m)
	}
	symbol.SortReferences(overrides)
	for _, m := range overrides {
		fmt.Fprintf(b, "%s [%s]\n", m, l.invokeKinds[m])
	}
}

func writeSorted[R mapKey](b *strings.Builder, m map[R]R) {
	keys := make([]R, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	symbol.SortReferences(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s -> %s\n", k.SourceString(), m[k].SourceString())
	}
}

func sortContextKeys(keys []contextKey) {
	slices.SortFunc(keys, func(a, b contextKey) int {
		if c := symbol.Compare(a.method, b.method); c != 0 {
			return c
		}
		return symbol.Compare(a.context, b.context)
	})
}
