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
	"fmt"
	"strings"
	"sync"
)

type methodKey struct {
	holder *Type
	name   string
	proto  *Proto
}

type fieldKey struct {
	holder *Type
	name   string
	typ    *Type
}

// Factory is the single authoritative source of references.
//
// Description:
//
//	Interns every type, prototype, method and field it hands out, so that
//	structurally equal requests return the same pointer. Lenses rebuild
//	array types during lookups, so the factory is used from many
//	goroutines at once.
//
// Thread Safety: All methods are safe for concurrent use.
type Factory struct {
	mu      sync.RWMutex
	types   map[string]*Type
	protos  map[string]*Proto
	methods map[methodKey]*Method
	fields  map[fieldKey]*Field
}

// FactoryStats reports how many references of each kind were interned.
type FactoryStats struct {
	Types   int
	Protos  int
	Methods int
	Fields  int
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		types:   make(map[string]*Type),
		protos:  make(map[string]*Proto),
		methods: make(map[methodKey]*Method),
		fields:  make(map[fieldKey]*Field),
	}
}

// TypeFromDescriptor returns the interned type for a descriptor.
//
// Inputs:
//   - descriptor: A descriptor such as "I", "Lcom/example/Foo;" or "[[J".
//
// Outputs:
//   - *Type: The interned type.
//   - error: ErrInvalidDescriptor if the descriptor is malformed.
func (f *Factory) TypeFromDescriptor(descriptor string) (*Type, error) {
	if err := validateDescriptor(descriptor); err != nil {
		return nil, err
	}
	return f.internType(descriptor), nil
}

// TypeFromSource returns the interned type for a source-form name such as
// "int[]" or "com.example.Foo".
func (f *Factory) TypeFromSource(source string) (*Type, error) {
	descriptor, err := sourceToDescriptor(source)
	if err != nil {
		return nil, err
	}
	return f.TypeFromDescriptor(descriptor)
}

// ClassType returns the interned class type for a binary name such as
// "com.example.Foo".
func (f *Factory) ClassType(binaryName string) *Type {
	return f.internType("L" + strings.ReplaceAll(binaryName, ".", "/") + ";")
}

// ArrayOf returns the array type with dims dimensions over elem.
//
// If elem is itself an array the dimensions add up, so
// ArrayOf(ArrayOf(T, 1), 1) == ArrayOf(T, 2).
func (f *Factory) ArrayOf(elem *Type, dims int) *Type {
	if dims <= 0 {
		return elem
	}
	return f.internType(strings.Repeat("[", dims) + elem.descriptor)
}

// ReplaceBaseType rebuilds an array type over a different base element,
// keeping the dimension count. Non-array types are returned as newBase.
func (f *Factory) ReplaceBaseType(t *Type, newBase *Type) *Type {
	if !t.IsArray() {
		return newBase
	}
	if t.base == newBase {
		return t
	}
	return f.ArrayOf(newBase.base, t.dims+newBase.dims)
}

// Proto returns the interned prototype for a return type and parameters.
func (f *Factory) Proto(returnType *Type, params ...*Type) *Proto {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p.descriptor)
	}
	b.WriteByte(')')
	b.WriteString(returnType.descriptor)
	descriptor := b.String()

	f.mu.RLock()
	p, ok := f.protos[descriptor]
	f.mu.RUnlock()
	if ok {
		return p
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.protos[descriptor]; ok {
		return p
	}
	p = &Proto{
		descriptor: descriptor,
		returnType: returnType,
		params:     append([]*Type(nil), params...),
	}
	f.protos[descriptor] = p
	return p
}

// Method returns the interned method reference.
func (f *Factory) Method(holder *Type, name string, proto *Proto) *Method {
	key := methodKey{holder: holder, name: name, proto: proto}

	f.mu.RLock()
	m, ok := f.methods[key]
	f.mu.RUnlock()
	if ok {
		return m
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.methods[key]; ok {
		return m
	}
	m = &Method{holder: holder, name: name, proto: proto}
	f.methods[key] = m
	return m
}

// Field returns the interned field reference.
func (f *Factory) Field(holder *Type, name string, typ *Type) *Field {
	key := fieldKey{holder: holder, name: name, typ: typ}

	f.mu.RLock()
	fd, ok := f.fields[key]
	f.mu.RUnlock()
	if ok {
		return fd
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if fd, ok := f.fields[key]; ok {
		return fd
	}
	fd = &Field{holder: holder, name: name, typ: typ}
	f.fields[key] = fd
	return fd
}

// WithHolder returns m moved to a different holder, same name and proto.
func (f *Factory) WithHolder(m *Method, holder *Type) *Method {
	return f.Method(holder, m.name, m.proto)
}

// WithName returns m renamed in place.
func (f *Factory) WithName(m *Method, name string) *Method {
	return f.Method(m.holder, name, m.proto)
}

// Stats returns interning counts.
//
// Thread Safety: Safe for concurrent use.
func (f *Factory) Stats() FactoryStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FactoryStats{
		Types:   len(f.types),
		Protos:  len(f.protos),
		Methods: len(f.methods),
		Fields:  len(f.fields),
	}
}

// internType returns the interned type for an already validated descriptor.
func (f *Factory) internType(descriptor string) *Type {
	f.mu.RLock()
	t, ok := f.types[descriptor]
	f.mu.RUnlock()
	if ok {
		return t
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.internTypeLocked(descriptor)
}

// internTypeLocked interns a descriptor and, for arrays, its base type.
// Caller must hold the write lock.
func (f *Factory) internTypeLocked(descriptor string) *Type {
	if t, ok := f.types[descriptor]; ok {
		return t
	}
	dims := strings.IndexFunc(descriptor, func(r rune) bool { return r != '[' })
	t := &Type{descriptor: descriptor, dims: dims}
	if dims > 0 {
		t.base = f.internTypeLocked(descriptor[dims:])
	} else {
		t.base = t
	}
	f.types[descriptor] = t
	return t
}

// validateDescriptor checks descriptor syntax.
func validateDescriptor(descriptor string) error {
	element := strings.TrimLeft(descriptor, "[")
	dims := len(descriptor) - len(element)
	switch {
	case element == "":
		return fmt.Errorf("%w: %q", ErrInvalidDescriptor, descriptor)
	case len(element) == 1:
		if !strings.Contains("ZBCSIJFDV", element) || (element == "V" && dims > 0) {
			return fmt.Errorf("%w: %q", ErrInvalidDescriptor, descriptor)
		}
	case element[0] == 'L' && element[len(element)-1] == ';' && len(element) > 2:
		if strings.ContainsAny(element[1:len(element)-1], ";[.") {
			return fmt.Errorf("%w: %q", ErrInvalidDescriptor, descriptor)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDescriptor, descriptor)
	}
	return nil
}
