// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline replays a compilation as a scripted sequence of passes.
//
// A script declares an input program, the references that must survive
// unchanged, an optional startup profile and the renames, moves, merges
// and call-kind changes each pass performs. Build turns it into a lens
// chain, materializes the program after every pass, keeps the profile in
// step with the chain and runs the consistency checks.
//
// Signatures are written in source form:
//
//	name: demo
//	classes:
//	  - type: app.Api
//	    interface: true
//	    methods:
//	      - signature: void app.Api.run(int)
//	keep:
//	  - app.Api
//	passes:
//	  - name: minify
//	    types:
//	      - {from: app.Impl, to: a.a, move: true}
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidScript is returned when a script fails to parse or validate.
	ErrInvalidScript = errors.New("invalid pass script")

	// ErrPinnedPruned is returned when a pass removes a pinned reference.
	ErrPinnedPruned = errors.New("pinned reference pruned")
)

var validate = validator.New()

// Call-kind policies for a pass.
const (
	PolicyClassHierarchy = "class_hierarchy"
	PolicyIdentity       = "identity"
)

// Script is a parsed pass script.
type Script struct {
	Name    string       `yaml:"name" validate:"required"`
	Classes []ClassSpec  `yaml:"classes" validate:"required,min=1,dive"`
	Keep    []string     `yaml:"keep"`
	Passes  []PassSpec   `yaml:"passes" validate:"dive"`
	Profile *ProfileSpec `yaml:"profile"`
}

// ClassSpec declares a class and its members.
type ClassSpec struct {
	Type        string       `yaml:"type" validate:"required"`
	Interface   bool         `yaml:"interface"`
	Synthesized bool         `yaml:"synthesized"`
	Methods     []MemberSpec `yaml:"methods" validate:"dive"`
	Fields      []MemberSpec `yaml:"fields" validate:"dive"`
}

// MemberSpec declares a method or field.
type MemberSpec struct {
	Signature   string `yaml:"signature" validate:"required"`
	Bridge      bool   `yaml:"bridge"`
	Synthesized bool   `yaml:"synthesized"`
}

// MappingSpec maps one reference to another. Move records the original
// signature so the target unwinds to the source.
type MappingSpec struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
	Move bool   `yaml:"move"`
}

// ContextualSpec redirects calls to From made inside Context. Context is
// named as of after the pass.
type ContextualSpec struct {
	Context string `yaml:"context" validate:"required"`
	From    string `yaml:"from" validate:"required"`
	To      string `yaml:"to" validate:"required"`
	Kind    string `yaml:"kind" validate:"required"`
}

// InvokeKindSpec sets the call kind of a method named as of after the pass.
type InvokeKindSpec struct {
	Method string `yaml:"method" validate:"required"`
	Kind   string `yaml:"kind" validate:"required"`
}

// PassSpec is one transformation pass.
//
// Types, Methods and Fields are named as of before the pass. Members of
// moved or merged classes, and members whose signature mentions such a
// class, follow automatically unless listed explicitly.
type PassSpec struct {
	Name        string           `yaml:"name" validate:"required"`
	Policy      string           `yaml:"policy" validate:"omitempty,oneof=class_hierarchy identity"`
	Types       []MappingSpec    `yaml:"types" validate:"dive"`
	Methods     []MappingSpec    `yaml:"methods" validate:"dive"`
	Fields      []MappingSpec    `yaml:"fields" validate:"dive"`
	Contextual  []ContextualSpec `yaml:"contextual" validate:"dive"`
	InvokeKinds []InvokeKindSpec `yaml:"invoke_kinds" validate:"dive"`

	// Prune lists references removed by this pass, named as of before it.
	Prune []string `yaml:"prune"`

	// AddClasses declares classes synthesized by this pass.
	AddClasses []ClassSpec `yaml:"add_classes" validate:"dive"`

	// ApplyCodeRewritings appends a rewrite-cleared node after the pass.
	ApplyCodeRewritings bool `yaml:"apply_code_rewritings"`
}

// ProfileSpec is a startup profile in original naming.
type ProfileSpec struct {
	Classes []string         `yaml:"classes"`
	Methods []MethodRuleSpec `yaml:"methods" validate:"dive"`
	Startup []string         `yaml:"startup"`
}

// MethodRuleSpec is a method rule with "HSP" flags.
type MethodRuleSpec struct {
	Method string `yaml:"method" validate:"required"`
	Flags  string `yaml:"flags"`
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
