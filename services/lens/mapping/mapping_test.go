// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

func mustMethod(t *testing.T, f *symbol.Factory, s string) *symbol.Method {
	t.Helper()
	m, err := f.ParseMethod(s)
	require.NoError(t, err)
	return m
}

func mustField(t *testing.T, f *symbol.Factory, s string) *symbol.Field {
	t.Helper()
	fld, err := f.ParseField(s)
	require.NoError(t, err)
	return fld
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestBuildAndWrite(t *testing.T) {
	f := symbol.NewFactory()
	api := f.ClassType("app.Api")
	helper := f.ClassType("app.Helper")
	lambda := f.ClassType("app.Lambda$1")
	minified := f.ClassType("a.a")

	run := mustMethod(t, f, "void app.Api.run(int)")
	help := mustMethod(t, f, "void app.Helper.help()")
	count := mustField(t, f, "int app.Api.count")
	lambdaRun := mustMethod(t, f, "void app.Lambda$1.run()")

	original, err := program.New(
		&program.Class{Type: api, Methods: []program.MethodDef{{Ref: run}}, Fields: []program.FieldDef{{Ref: count}}},
		&program.Class{Type: helper, Methods: []program.MethodDef{{Ref: help}}},
		&program.Class{Type: lambda, Synthesized: true, Methods: []program.MethodDef{{Ref: lambdaRun, Synthesized: true}}},
	)
	require.NoError(t, err)

	l, err := lens.NewBuilder(f, lens.WithName("minify")).
		MoveType(api, minified).
		MapType(helper, minified).
		MoveMethod(run, mustMethod(t, f, "void a.a.a(int)")).
		MoveMethod(help, mustMethod(t, f, "void a.a.b()")).
		MoveField(count, mustField(t, f, "int a.a.c")).
		Build(lens.Identity())
	require.NoError(t, err)

	current, err := program.Rewrite(original, l)
	require.NoError(t, err)

	records, err := Build(context.Background(), current, l)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Same(t, api, records[0].Original)
	assert.Same(t, minified, records[0].Renamed)
	assert.True(t, records[0].Changed())
	assert.False(t, records[1].Changed())

	want := "app.Api -> a.a:\n" +
		"    int count -> c\n" +
		"    void run(int) -> a\n" +
		"    void app.Helper.help() -> b\n" +
		"app.Lambda$1 -> app.Lambda$1:\n" +
		synthesizedMarker + "\n" +
		"    void run() -> run\n" +
		"      " + synthesizedMarker + "\n"
	assert.Equal(t, want, String(records))

	t.Run("write error", func(t *testing.T) {
		assert.Error(t, Write(failingWriter{}, records))
	})

	t.Run("nil lens", func(t *testing.T) {
		_, err := Build(context.Background(), current, nil)
		assert.ErrorIs(t, err, ErrNilLens)
	})
}

func TestBuild_IdentityChain(t *testing.T) {
	f := symbol.NewFactory()
	foo := f.ClassType("app.Foo")
	bar := mustMethod(t, f, "int app.Foo.bar(java.lang.String,int[])")
	p, err := program.New(&program.Class{Type: foo, Methods: []program.MethodDef{{Ref: bar}}})
	require.NoError(t, err)

	records, err := Build(context.Background(), p, lens.Identity())
	require.NoError(t, err)
	assert.Equal(t, "app.Foo -> app.Foo:\n    int bar(java.lang.String,int[]) -> bar\n", String(records))
}
