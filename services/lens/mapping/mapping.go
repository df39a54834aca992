// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mapping produces the before-to-after symbol map of a compiled
// program.
//
// Every surviving declaration is paired with the signature it had in the
// input program by unwinding the lens chain. The records are written in
// the ProGuard mapping layout:
//
//	app.Api -> a.a:
//	    void run(int) -> a
//	    void app.Helper.help() -> b
//	    int count -> c
//
// Members that moved from another class are written with their original
// holder.
package mapping

import (
	"bufio"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

// ErrNilLens is returned when building records without a lens.
var ErrNilLens = errors.New("lens must not be nil")

// synthesizedMarker tags records of compiler-synthesized declarations.
const synthesizedMarker = `# {"id":"com.android.tools.r8.synthesized"}`

var tracer = otel.Tracer("symlens.mapping")

// MethodRecord pairs a method with its original signature.
type MethodRecord struct {
	Original    *symbol.Method
	Renamed     *symbol.Method
	Synthesized bool
}

// FieldRecord pairs a field with its original signature.
type FieldRecord struct {
	Original    *symbol.Field
	Renamed     *symbol.Field
	Synthesized bool
}

// ClassRecord pairs a class with its original name and lists its members.
type ClassRecord struct {
	Original    *symbol.Type
	Renamed     *symbol.Type
	Synthesized bool
	Methods     []MethodRecord
	Fields      []FieldRecord
}

// Changed reports whether the class or any of its members was renamed.
func (c *ClassRecord) Changed() bool {
	if c.Original != c.Renamed {
		return true
	}
	for _, m := range c.Methods {
		if m.Original != m.Renamed {
			return true
		}
	}
	for _, f := range c.Fields {
		if f.Original != f.Renamed {
			return true
		}
	}
	return false
}

// Build computes a record for every class of current.
//
// Description:
//
//	current is the program after l. Classes are ordered by their original
//	name and members by their original signature, so the output does not
//	depend on the order passes emitted declarations in.
//
// Inputs:
//   - ctx: Context for tracing.
//   - current: The program in the naming after l.
//   - l: The chain tip.
//
// Outputs:
//   - []ClassRecord: One record per class.
//   - error: ErrNilLens when l is nil.
func Build(ctx context.Context, current *program.Program, l *lens.Lens) ([]ClassRecord, error) {
	_, span := tracer.Start(ctx, "mapping.Build")
	defer span.End()

	if l == nil {
		span.SetStatus(codes.Error, ErrNilLens.Error())
		return nil, ErrNilLens
	}

	records := make([]ClassRecord, 0, len(current.Classes()))
	members := 0
	for _, c := range current.Classes() {
		rec := ClassRecord{
			Original:    l.OriginalType(c.Type),
			Renamed:     c.Type,
			Synthesized: c.Synthesized,
			Methods:     make([]MethodRecord, 0, len(c.Methods)),
			Fields:      make([]FieldRecord, 0, len(c.Fields)),
		}
		for _, m := range c.Methods {
			rec.Methods = append(rec.Methods, MethodRecord{
				Original:    l.OriginalMethodSignature(m.Ref),
				Renamed:     m.Ref,
				Synthesized: m.Synthesized,
			})
		}
		for _, f := range c.Fields {
			rec.Fields = append(rec.Fields, FieldRecord{
				Original:    l.OriginalFieldSignature(f.Ref),
				Renamed:     f.Ref,
				Synthesized: f.Synthesized,
			})
		}
		slices.SortFunc(rec.Methods, func(a, b MethodRecord) int { return symbol.Compare(a.Original, b.Original) })
		slices.SortFunc(rec.Fields, func(a, b FieldRecord) int { return symbol.Compare(a.Original, b.Original) })
		members += len(rec.Methods) + len(rec.Fields)
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b ClassRecord) int {
		if c := symbol.Compare(a.Original, b.Original); c != 0 {
			return c
		}
		return symbol.Compare(a.Renamed, b.Renamed)
	})

	span.SetAttributes(
		attribute.String("lens.name", l.Name()),
		attribute.Int("mapping.classes", len(records)),
		attribute.Int("mapping.members", members),
	)
	return records, nil
}

// Write emits records in the mapping layout.
func Write(w io.Writer, records []ClassRecord) error {
	bw := bufio.NewWriter(w)
	for i := range records {
		writeClass(bw, &records[i])
	}
	return bw.Flush()
}

// String renders records in the mapping layout.
func String(records []ClassRecord) string {
	var b strings.Builder
	_ = Write(&b, records)
	return b.String()
}

func writeClass(w *bufio.Writer, c *ClassRecord) {
	w.WriteString(c.Original.SourceString())
	w.WriteString(" -> ")
	w.WriteString(c.Renamed.SourceString())
	w.WriteString(":\n")
	if c.Synthesized {
		w.WriteString(synthesizedMarker)
		w.WriteByte('\n')
	}
	for _, f := range c.Fields {
		w.WriteString("    ")
		w.WriteString(f.Original.Type().SourceString())
		w.WriteByte(' ')
		w.WriteString(memberName(c.Original, f.Original.Holder(), f.Original.Name()))
		w.WriteString(" -> ")
		w.WriteString(f.Renamed.Name())
		w.WriteByte('\n')
		if f.Synthesized {
			w.WriteString("      ")
			w.WriteString(synthesizedMarker)
			w.WriteByte('\n')
		}
	}
	for _, m := range c.Methods {
		proto := m.Original.Proto()
		w.WriteString("    ")
		w.WriteString(proto.ReturnType().SourceString())
		w.WriteByte(' ')
		w.WriteString(memberName(c.Original, m.Original.Holder(), m.Original.Name()))
		w.WriteByte('(')
		for i, p := range proto.Params() {
			if i > 0 {
				w.WriteByte(',')
			}
			w.WriteString(p.SourceString())
		}
		w.WriteString(") -> ")
		w.WriteString(m.Renamed.Name())
		w.WriteByte('\n')
		if m.Synthesized {
			w.WriteString("      ")
			w.WriteString(synthesizedMarker)
			w.WriteByte('\n')
		}
	}
}

// memberName qualifies the name with its original holder when the member
// was declared on another class.
func memberName(class, holder *symbol.Type, name string) string {
	if holder == class {
		return name
	}
	return holder.SourceString() + "." + name
}
