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

import "strings"

// ReferenceKind identifies which kind of declaration a Reference denotes.
type ReferenceKind int

const (
	// ReferenceKindType is a class, interface, primitive or array type.
	ReferenceKindType ReferenceKind = iota

	// ReferenceKindMethod is a method on a holder type.
	ReferenceKindMethod

	// ReferenceKindField is a field on a holder type.
	ReferenceKindField
)

// String returns the string representation of the ReferenceKind.
func (k ReferenceKind) String() string {
	switch k {
	case ReferenceKindType:
		return "type"
	case ReferenceKindMethod:
		return "method"
	case ReferenceKindField:
		return "field"
	default:
		return "unknown"
	}
}

// Reference is any interned symbol handle.
//
// Implemented by *Type, *Method and *Field. Identity comparison of two
// References is valid because all of them come from the same Factory.
type Reference interface {
	// Kind reports which declaration kind the reference denotes.
	Kind() ReferenceKind

	// SourceString renders the reference in source form for display.
	SourceString() string
}

// Member is a Reference owned by a holder type (a method or a field).
type Member interface {
	Reference

	// Holder returns the type that declares the member.
	Holder() *Type

	// Name returns the simple member name.
	Name() string
}

// Type is an interned type reference.
//
// Array types record their base element type and dimension count at
// interning time so that decomposition needs no factory access.
type Type struct {
	descriptor string

	// base is the non-array element type. Equal to the receiver for
	// non-array types.
	base *Type

	// dims is the number of array dimensions, zero for non-array types.
	dims int
}

// Kind returns ReferenceKindType.
func (t *Type) Kind() ReferenceKind { return ReferenceKindType }

// Descriptor returns the type descriptor, e.g. "[Lcom/example/Foo;".
func (t *Type) Descriptor() string { return t.descriptor }

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t.dims > 0 }

// Dimensions returns the array dimension count, zero for non-array types.
func (t *Type) Dimensions() int { return t.dims }

// BaseType returns the innermost element type of an array, or t itself.
func (t *Type) BaseType() *Type { return t.base }

// IsClass reports whether t is a class or interface type.
func (t *Type) IsClass() bool { return t.descriptor[0] == 'L' }

// IsPrimitive reports whether t is a primitive or void type.
func (t *Type) IsPrimitive() bool { return len(t.descriptor) == 1 }

// SourceString returns the type in source form, e.g. "com.example.Foo[]".
func (t *Type) SourceString() string {
	return descriptorToSource(t.descriptor)
}

// String implements fmt.Stringer.
func (t *Type) String() string { return t.SourceString() }

// Proto is an interned method prototype: return type plus parameters.
type Proto struct {
	descriptor string
	returnType *Type
	params     []*Type
}

// Descriptor returns the prototype descriptor, e.g. "(ILjava/lang/String;)V".
func (p *Proto) Descriptor() string { return p.descriptor }

// ReturnType returns the return type.
func (p *Proto) ReturnType() *Type { return p.returnType }

// Params returns a copy of the parameter types.
func (p *Proto) Params() []*Type {
	out := make([]*Type, len(p.params))
	copy(out, p.params)
	return out
}

// Arity returns the number of parameters.
func (p *Proto) Arity() int { return len(p.params) }

// paramsSource renders the parameter list without parentheses.
func (p *Proto) paramsSource() string {
	parts := make([]string, len(p.params))
	for i, param := range p.params {
		parts[i] = param.SourceString()
	}
	return strings.Join(parts, ",")
}

// Method is an interned method reference.
type Method struct {
	holder *Type
	name   string
	proto  *Proto
}

// Kind returns ReferenceKindMethod.
func (m *Method) Kind() ReferenceKind { return ReferenceKindMethod }

// Holder returns the declaring type.
func (m *Method) Holder() *Type { return m.holder }

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Proto returns the method prototype.
func (m *Method) Proto() *Proto { return m.proto }

// SourceString returns e.g. "void com.example.Foo.run(int,java.lang.String)".
func (m *Method) SourceString() string {
	return m.proto.returnType.SourceString() + " " +
		m.holder.SourceString() + "." + m.name + "(" + m.proto.paramsSource() + ")"
}

// MemberString returns the signature without the holder, e.g. "void run(int)".
func (m *Method) MemberString() string {
	return m.proto.returnType.SourceString() + " " + m.name + "(" + m.proto.paramsSource() + ")"
}

// String implements fmt.Stringer.
func (m *Method) String() string { return m.SourceString() }

// Field is an interned field reference.
type Field struct {
	holder *Type
	name   string
	typ    *Type
}

// Kind returns ReferenceKindField.
func (f *Field) Kind() ReferenceKind { return ReferenceKindField }

// Holder returns the declaring type.
func (f *Field) Holder() *Type { return f.holder }

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Type returns the field value type.
func (f *Field) Type() *Type { return f.typ }

// SourceString returns e.g. "int com.example.Foo.count".
func (f *Field) SourceString() string {
	return f.typ.SourceString() + " " + f.holder.SourceString() + "." + f.name
}

// MemberString returns the signature without the holder, e.g. "int count".
func (f *Field) MemberString() string {
	return f.typ.SourceString() + " " + f.name
}

// String implements fmt.Stringer.
func (f *Field) String() string { return f.SourceString() }
