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
)

var primitiveSource = map[byte]string{
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
	'V': "void",
}

var primitiveDescriptor = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
	"void":    "V",
}

// descriptorToSource converts "[Lcom/example/Foo;" to "com.example.Foo[]".
func descriptorToSource(descriptor string) string {
	element := strings.TrimLeft(descriptor, "[")
	dims := len(descriptor) - len(element)

	var name string
	if len(element) == 1 {
		name = primitiveSource[element[0]]
	} else {
		name = strings.ReplaceAll(element[1:len(element)-1], "/", ".")
	}
	return name + strings.Repeat("[]", dims)
}

// sourceToDescriptor converts "com.example.Foo[]" to "[Lcom/example/Foo;".
func sourceToDescriptor(source string) (string, error) {
	name := strings.TrimSpace(source)
	dims := 0
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSuffix(name, "[]")
		dims++
	}
	if name == "" || strings.ContainsAny(name, "[]();/ ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDescriptor, source)
	}
	element, ok := primitiveDescriptor[name]
	if !ok {
		element = "L" + strings.ReplaceAll(name, ".", "/") + ";"
	}
	return strings.Repeat("[", dims) + element, nil
}

// ParseMethod parses a source-form method signature.
//
// Description:
//
//	Accepts "<return> <holder>.<name>(<param>,...)", for example
//	"void com.example.Foo.run(int,java.lang.String[])". Whitespace around
//	parameters is ignored.
//
// Outputs:
//   - *Method: The interned method.
//   - error: ErrInvalidSignature or ErrInvalidDescriptor on malformed input.
func (f *Factory) ParseMethod(signature string) (*Method, error) {
	s := strings.TrimSpace(signature)
	space := strings.IndexByte(s, ' ')
	open := strings.IndexByte(s, '(')
	if space <= 0 || open < space || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSignature, signature)
	}

	returnType, err := f.TypeFromSource(s[:space])
	if err != nil {
		return nil, fmt.Errorf("return type of %q: %w", signature, err)
	}

	holder, name, err := f.splitQualified(strings.TrimSpace(s[space+1 : open]))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", signature, err)
	}

	var params []*Type
	if inner := strings.TrimSpace(s[open+1 : len(s)-1]); inner != "" {
		for _, part := range strings.Split(inner, ",") {
			param, err := f.TypeFromSource(part)
			if err != nil {
				return nil, fmt.Errorf("parameter of %q: %w", signature, err)
			}
			if param.descriptor == "V" {
				return nil, fmt.Errorf("%w: void parameter in %q", ErrInvalidSignature, signature)
			}
			params = append(params, param)
		}
	}

	return f.Method(holder, name, f.Proto(returnType, params...)), nil
}

// ParseField parses a source-form field signature such as
// "int com.example.Foo.count".
func (f *Factory) ParseField(signature string) (*Field, error) {
	s := strings.TrimSpace(signature)
	space := strings.IndexByte(s, ' ')
	if space <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSignature, signature)
	}

	typ, err := f.TypeFromSource(s[:space])
	if err != nil {
		return nil, fmt.Errorf("type of %q: %w", signature, err)
	}
	if typ.descriptor == "V" {
		return nil, fmt.Errorf("%w: void field %q", ErrInvalidSignature, signature)
	}

	holder, name, err := f.splitQualified(strings.TrimSpace(s[space+1:]))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", signature, err)
	}
	return f.Field(holder, name, typ), nil
}

// ParseReference parses a type, method or field in source form. Strings
// containing '(' are methods, strings containing a space are fields and
// anything else is a type.
func (f *Factory) ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "("):
		return f.ParseMethod(s)
	case strings.Contains(s, " "):
		return f.ParseField(s)
	default:
		return f.TypeFromSource(s)
	}
}

// splitQualified splits "com.example.Foo.name" into holder and member name.
func (f *Factory) splitQualified(qualified string) (*Type, string, error) {
	dot := strings.LastIndexByte(qualified, '.')
	if dot <= 0 || dot == len(qualified)-1 {
		return nil, "", fmt.Errorf("%w: missing holder in %q", ErrInvalidSignature, qualified)
	}
	holder, err := f.TypeFromSource(qualified[:dot])
	if err != nil {
		return nil, "", err
	}
	if !holder.IsClass() {
		return nil, "", fmt.Errorf("%w: holder %q is not a class", ErrInvalidSignature, qualified[:dot])
	}
	return holder, qualified[dot+1:], nil
}
