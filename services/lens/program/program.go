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
	"fmt"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// ClassInitFieldName is the name of the field synthesized to trigger class
// initialization. It has no counterpart in the input program.
const ClassInitFieldName = "$clinitField"

// MethodDef is a method declaration.
type MethodDef struct {
	Ref *symbol.Method

	// Bridge methods are retargeted even when kept.
	Bridge bool

	// Synthesized methods were created by the compiler and have no
	// original signature.
	Synthesized bool
}

// FieldDef is a field declaration.
type FieldDef struct {
	Ref         *symbol.Field
	Synthesized bool
}

// Class is a class or interface declaration with its members.
type Class struct {
	Type        *symbol.Type
	Interface   bool
	Synthesized bool
	Methods     []MethodDef
	Fields      []FieldDef
}

// Program is an immutable set of class declarations.
//
// Description:
//
//	Classes keep their insertion order so that every whole-program walk is
//	deterministic. Members are indexed by reference for definition lookups.
//
// Thread Safety: Safe for concurrent use.
type Program struct {
	classes []*Class
	byType  map[*symbol.Type]*Class
	methods map[*symbol.Method]*MethodDef
	fields  map[*symbol.Field]*FieldDef
}

// New builds a program from class declarations.
//
// Outputs:
//   - *Program: The program.
//   - error: ErrDuplicateClass, ErrDuplicateMember or ErrHolderMismatch.
func New(classes ...*Class) (*Program, error) {
	p := &Program{
		classes: make([]*Class, 0, len(classes)),
		byType:  make(map[*symbol.Type]*Class, len(classes)),
		methods: make(map[*symbol.Method]*MethodDef),
		fields:  make(map[*symbol.Field]*FieldDef),
	}
	for _, c := range classes {
		if _, ok := p.byType[c.Type]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, c.Type)
		}
		p.classes = append(p.classes, c)
		p.byType[c.Type] = c

		for i := range c.Methods {
			def := &c.Methods[i]
			if def.Ref.Holder() != c.Type {
				return nil, fmt.Errorf("%w: %s in %s", ErrHolderMismatch, def.Ref, c.Type)
			}
			if _, ok := p.methods[def.Ref]; ok {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, def.Ref)
			}
			p.methods[def.Ref] = def
		}
		for i := range c.Fields {
			def := &c.Fields[i]
			if def.Ref.Holder() != c.Type {
				return nil, fmt.Errorf("%w: %s in %s", ErrHolderMismatch, def.Ref, c.Type)
			}
			if _, ok := p.fields[def.Ref]; ok {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, def.Ref)
			}
			p.fields[def.Ref] = def
		}
	}
	return p, nil
}

// Classes returns the classes in declaration order. The slice must not be
// modified.
func (p *Program) Classes() []*Class { return p.classes }

// Class returns the declaration for t.
func (p *Program) Class(t *symbol.Type) (*Class, bool) {
	c, ok := p.byType[t]
	return c, ok
}

// Method returns the declaration of m.
func (p *Program) Method(m *symbol.Method) (*MethodDef, bool) {
	def, ok := p.methods[m]
	return def, ok
}

// Field returns the declaration of f.
func (p *Program) Field(f *symbol.Field) (*FieldDef, bool) {
	def, ok := p.fields[f]
	return def, ok
}

// IsInterface implements lens.ClassResolver.
func (p *Program) IsInterface(t *symbol.Type) (bool, bool) {
	c, ok := p.byType[t]
	if !ok {
		return false, false
	}
	return c.Interface, true
}

// MethodCount returns the number of declared methods.
func (p *Program) MethodCount() int { return len(p.methods) }

// FieldCount returns the number of declared fields.
func (p *Program) FieldCount() int { return len(p.fields) }

// Definitions returns every class, method and field reference in
// declaration order.
func (p *Program) Definitions() []symbol.Reference {
	refs := make([]symbol.Reference, 0, len(p.classes)+len(p.methods)+len(p.fields))
	for _, c := range p.classes {
		refs = append(refs, c.Type)
		for _, m := range c.Methods {
			refs = append(refs, m.Ref)
		}
		for _, f := range c.Fields {
			refs = append(refs, f.Ref)
		}
	}
	return refs
}

// Rewrite materializes the program as it exists after l.
//
// Description:
//
//	Classes are re-keyed through LookupType. Classes that map to the same
//	type are merged: members are concatenated in declaration order, and
//	the flags come from the class that kept its own type, or from the
//	first class of the group. Members are re-keyed through their renamed
//	signatures and must land on the rewritten class.
//
// Inputs:
//   - p: The program in the naming of l's root.
//   - l: The chain to apply.
//
// Outputs:
//   - *Program: The rewritten program.
//   - error: ErrHolderMismatch or ErrDuplicateMember if the chain is
//     inconsistent with p.
func Rewrite(p *Program, l *lens.Lens) (*Program, error) {
	merged := make(map[*symbol.Type]*Class, len(p.classes))
	order := make([]*symbol.Type, 0, len(p.classes))

	for _, c := range p.classes {
		newType := l.LookupType(c.Type)
		target, ok := merged[newType]
		if !ok {
			target = &Class{Type: newType, Interface: c.Interface, Synthesized: c.Synthesized}
			merged[newType] = target
			order = append(order, newType)
		} else {
			if newType == c.Type {
				target.Interface = c.Interface
			}
			target.Synthesized = target.Synthesized && c.Synthesized
		}

		for _, m := range c.Methods {
			renamed := l.RenamedMethodSignature(m.Ref)
			if renamed.Holder() != newType {
				return nil, fmt.Errorf("%w: %s renamed to %s, class is now %s",
					ErrHolderMismatch, m.Ref, renamed, newType)
			}
			target.Methods = append(target.Methods, MethodDef{Ref: renamed, Bridge: m.Bridge, Synthesized: m.Synthesized})
		}
		for _, f := range c.Fields {
			renamed := l.RenamedFieldSignature(f.Ref)
			if renamed.Holder() != newType {
				return nil, fmt.Errorf("%w: %s renamed to %s, class is now %s",
					ErrHolderMismatch, f.Ref, renamed, newType)
			}
			target.Fields = append(target.Fields, FieldDef{Ref: renamed, Synthesized: f.Synthesized})
		}
	}

	classes := make([]*Class, len(order))
	for i, t := range order {
		classes[i] = merged[t]
	}
	return New(classes...)
}

// LookupRenamedMethod returns the live declaration of a method given by
// its original signature.
//
// Outputs:
//   - *MethodDef: The declaration in p.
//   - error: ErrDeadReference if the renamed signature is not declared in p.
func (p *Program) LookupRenamedMethod(l *lens.Lens, original *symbol.Method) (*MethodDef, error) {
	renamed := l.RenamedMethodSignature(original)
	def, ok := p.methods[renamed]
	if !ok {
		return nil, fmt.Errorf("%w: %s (now %s)", ErrDeadReference, original, renamed)
	}
	return def, nil
}

// LookupRenamedField is LookupRenamedMethod for fields.
func (p *Program) LookupRenamedField(l *lens.Lens, original *symbol.Field) (*FieldDef, error) {
	renamed := l.RenamedFieldSignature(original)
	def, ok := p.fields[renamed]
	if !ok {
		return nil, fmt.Errorf("%w: %s (now %s)", ErrDeadReference, original, renamed)
	}
	return def, nil
}

// ResolveCall rewrites a call site through l and returns the declaration
// it now targets.
//
// Inputs:
//   - l: The chain to apply.
//   - callee: The called method in original naming.
//   - context: The calling method in l's naming. May be nil on
//     context-free chains.
//   - kind: The call kind at the call site.
//
// Outputs:
//   - *MethodDef: The target declaration in p.
//   - lens.InvokeKind: The rewritten call kind.
//   - error: lens.ErrContextRequired, ErrUnknownClass when the target's
//     holder is not declared in p, or ErrDeadReference.
func (p *Program) ResolveCall(l *lens.Lens, callee, context *symbol.Method, kind lens.InvokeKind) (*MethodDef, lens.InvokeKind, error) {
	result, err := l.LookupMethodInContext(callee, context, kind)
	if err != nil {
		return nil, lens.InvokeUnspecified, err
	}
	def, ok := p.methods[result.Method]
	if !ok {
		if _, declared := p.byType[result.Method.Holder()]; !declared {
			return nil, lens.InvokeUnspecified, fmt.Errorf("%w: call to %s resolves to %s on %s",
				ErrUnknownClass, callee, result.Method, result.Method.Holder())
		}
		return nil, lens.InvokeUnspecified, fmt.Errorf("%w: call to %s resolves to %s",
			ErrDeadReference, callee, result.Method)
	}
	return def, result.Kind, nil
}
