// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"fmt"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/profile"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

func parseReference(f *symbol.Factory, s string) (symbol.Reference, error) {
	ref, err := f.ParseReference(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return ref, nil
}

func parseClassType(f *symbol.Factory, s string) (*symbol.Type, error) {
	t, err := f.TypeFromSource(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	if !t.IsClass() {
		return nil, fmt.Errorf("%w: %q is not a class type", ErrInvalidScript, s)
	}
	return t, nil
}

func parseMethod(f *symbol.Factory, s string) (*symbol.Method, error) {
	m, err := f.ParseMethod(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return m, nil
}

func parseField(f *symbol.Factory, s string) (*symbol.Field, error) {
	fld, err := f.ParseField(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return fld, nil
}

func parseKind(s string) (lens.InvokeKind, error) {
	kind, err := lens.ParseInvokeKind(s)
	if err != nil {
		return lens.InvokeUnspecified, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return kind, nil
}

// buildClasses declares classes. Everything declared with synthesized set
// is marked synthesized, members included.
func buildClasses(f *symbol.Factory, specs []ClassSpec, synthesized bool) ([]*program.Class, error) {
	classes := make([]*program.Class, 0, len(specs))
	for _, spec := range specs {
		t, err := parseClassType(f, spec.Type)
		if err != nil {
			return nil, err
		}
		c := &program.Class{
			Type:        t,
			Interface:   spec.Interface,
			Synthesized: spec.Synthesized || synthesized,
		}
		for _, ms := range spec.Methods {
			m, err := parseMethod(f, ms.Signature)
			if err != nil {
				return nil, err
			}
			c.Methods = append(c.Methods, program.MethodDef{
				Ref:         m,
				Bridge:      ms.Bridge,
				Synthesized: ms.Synthesized || synthesized,
			})
		}
		for _, fs := range spec.Fields {
			fld, err := parseField(f, fs.Signature)
			if err != nil {
				return nil, err
			}
			c.Fields = append(c.Fields, program.FieldDef{
				Ref:         fld,
				Synthesized: fs.Synthesized || synthesized,
			})
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func buildProfile(f *symbol.Factory, spec *ProfileSpec) (*profile.Profile, *profile.StartupOrder, error) {
	b := profile.NewBuilder()
	for _, s := range spec.Classes {
		t, err := parseClassType(f, s)
		if err != nil {
			return nil, nil, err
		}
		b.AddClassRule(t)
	}
	for _, rule := range spec.Methods {
		m, err := parseMethod(f, rule.Method)
		if err != nil {
			return nil, nil, err
		}
		flags, err := profile.ParseFlags(rule.Flags)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
		}
		b.AddMethodRule(m, flags)
	}

	items := make([]symbol.Reference, 0, len(spec.Startup))
	for _, s := range spec.Startup {
		ref, err := parseReference(f, s)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, ref)
	}
	return b.Build(), profile.NewStartupOrder(items...), nil
}

// prune returns p without the removed classes and members.
func prune(p *program.Program, pruned *program.PrunedItems) (*program.Program, error) {
	classes := make([]*program.Class, 0, len(p.Classes()))
	for _, c := range p.Classes() {
		if pruned.IsRemoved(c.Type) {
			continue
		}
		kept := &program.Class{Type: c.Type, Interface: c.Interface, Synthesized: c.Synthesized}
		for _, m := range c.Methods {
			if !pruned.IsRemoved(m.Ref) {
				kept.Methods = append(kept.Methods, m)
			}
		}
		for _, fd := range c.Fields {
			if !pruned.IsRemoved(fd.Ref) {
				kept.Fields = append(kept.Fields, fd)
			}
		}
		classes = append(classes, kept)
	}
	return program.New(classes...)
}

// recordMappings fills b with the pass's entries.
//
// Description:
//
//	Explicit type, method and field entries are recorded first. Then every
//	declared member whose holder or signature mentions a remapped type is
//	moved to its relocated signature, unless the pass lists it explicitly.
//	Contextual entries and call kind overrides come last.
func recordMappings(f *symbol.Factory, b *lens.Builder, pass *PassSpec, input *program.Program) error {
	typeMap := make(map[*symbol.Type]*symbol.Type, len(pass.Types))
	for _, spec := range pass.Types {
		from, err := parseClassType(f, spec.From)
		if err != nil {
			return err
		}
		to, err := parseClassType(f, spec.To)
		if err != nil {
			return err
		}
		if spec.Move {
			b.MoveType(from, to)
		} else {
			b.MapType(from, to)
		}
		typeMap[from] = to
	}

	explicitMethods := make(map[*symbol.Method]struct{}, len(pass.Methods))
	for _, spec := range pass.Methods {
		from, err := parseMethod(f, spec.From)
		if err != nil {
			return err
		}
		to, err := parseMethod(f, spec.To)
		if err != nil {
			return err
		}
		if spec.Move {
			b.MoveMethod(from, to)
		} else {
			b.MapMethod(from, to)
		}
		explicitMethods[from] = struct{}{}
	}

	explicitFields := make(map[*symbol.Field]struct{}, len(pass.Fields))
	for _, spec := range pass.Fields {
		from, err := parseField(f, spec.From)
		if err != nil {
			return err
		}
		to, err := parseField(f, spec.To)
		if err != nil {
			return err
		}
		if spec.Move {
			b.MoveField(from, to)
		} else {
			b.MapField(from, to)
		}
		explicitFields[from] = struct{}{}
	}

	if len(typeMap) > 0 {
		for _, c := range input.Classes() {
			for _, def := range c.Methods {
				if _, ok := explicitMethods[def.Ref]; ok {
					continue
				}
				b.MoveMethod(def.Ref, relocateMethod(f, typeMap, def.Ref))
			}
			for _, def := range c.Fields {
				if _, ok := explicitFields[def.Ref]; ok {
					continue
				}
				b.MoveField(def.Ref, relocateField(f, typeMap, def.Ref))
			}
		}
	}

	for _, spec := range pass.Contextual {
		context, err := parseMethod(f, spec.Context)
		if err != nil {
			return err
		}
		from, err := parseMethod(f, spec.From)
		if err != nil {
			return err
		}
		to, err := parseMethod(f, spec.To)
		if err != nil {
			return err
		}
		kind, err := parseKind(spec.Kind)
		if err != nil {
			return err
		}
		b.MapInContext(context, from, to, kind)
	}

	for _, spec := range pass.InvokeKinds {
		m, err := parseMethod(f, spec.Method)
		if err != nil {
			return err
		}
		kind, err := parseKind(spec.Kind)
		if err != nil {
			return err
		}
		b.SetInvokeKind(m, kind)
	}
	return nil
}

func relocateType(f *symbol.Factory, typeMap map[*symbol.Type]*symbol.Type, t *symbol.Type) *symbol.Type {
	if t.IsArray() {
		if to, ok := typeMap[t.BaseType()]; ok {
			return f.ReplaceBaseType(t, to)
		}
		return t
	}
	if to, ok := typeMap[t]; ok {
		return to
	}
	return t
}

// relocateMethod returns m with every remapped type replaced. Returns m
// itself when nothing changes.
func relocateMethod(f *symbol.Factory, typeMap map[*symbol.Type]*symbol.Type, m *symbol.Method) *symbol.Method {
	proto := m.Proto()
	params := proto.Params()
	newParams := make([]*symbol.Type, len(params))
	for i, p := range params {
		newParams[i] = relocateType(f, typeMap, p)
	}
	holder := relocateType(f, typeMap, m.Holder())
	newProto := f.Proto(relocateType(f, typeMap, proto.ReturnType()), newParams...)
	if holder == m.Holder() && newProto == proto {
		return m
	}
	return f.Method(holder, m.Name(), newProto)
}

func relocateField(f *symbol.Factory, typeMap map[*symbol.Type]*symbol.Type, fld *symbol.Field) *symbol.Field {
	holder := relocateType(f, typeMap, fld.Holder())
	typ := relocateType(f, typeMap, fld.Type())
	if holder == fld.Holder() && typ == fld.Type() {
		return fld
	}
	return f.Field(holder, fld.Name(), typ)
}
