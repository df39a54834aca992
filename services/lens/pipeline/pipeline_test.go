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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/symlens/services/lens/config"
	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/mapping"
	"github.com/AleutianAI/symlens/services/lens/profile"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
	"github.com/AleutianAI/symlens/services/lens/verify"
)

func buildDemo(t *testing.T) *Session {
	t.Helper()
	script, err := Load("testdata/demo.yaml")
	require.NoError(t, err)
	s, err := Build(context.Background(), script, config.Default())
	require.NoError(t, err)
	return s
}

func ref(t *testing.T, s *Session, str string) symbol.Reference {
	t.Helper()
	r, err := s.ParseReference(str)
	require.NoError(t, err)
	return r
}

func method(t *testing.T, s *Session, str string) *symbol.Method {
	t.Helper()
	m, ok := ref(t, s, str).(*symbol.Method)
	require.True(t, ok, "%s is not a method", str)
	return m
}

func TestBuild_Demo(t *testing.T) {
	s := buildDemo(t)

	require.Len(t, s.Passes, 5)
	assert.False(t, s.Passes[0].Recorded, "prune-only pass adds no node")
	assert.Equal(t, 1, s.Passes[0].Pruned)
	for _, p := range s.Passes[1:] {
		assert.True(t, p.Recorded, p.Name)
	}

	// merge, minify, clear, devirtualize, specialize
	assert.Equal(t, 5, s.Tip.Depth())
	assert.False(t, s.Tip.IsContextFreeForMethods())
	assert.True(t, s.Passes[3].Tip.IsCallKindOnly())
	assert.Equal(t, lens.KindClearCodeRewriting, s.Passes[2].Tip.Kind())

	var names []string
	for _, c := range s.Current.Classes() {
		names = append(names, c.Type.SourceString())
	}
	assert.Equal(t, []string{"app.Api", "a.a", "app.Main", "app.Color", "app.Main$Lambda"}, names)

	minified, ok := s.Current.Class(s.Factory.ClassType("a.a"))
	require.True(t, ok)
	assert.Len(t, minified.Methods, 2)
	assert.Len(t, minified.Fields, 1)

	assert.NoError(t, s.Verify(context.Background()))
}

func TestBuild_NamingQueries(t *testing.T) {
	s := buildDemo(t)
	help := method(t, s, "int app.Helper.help(int)")
	b := method(t, s, "int a.a.b(int)")

	assert.Same(t, b, s.Tip.RenamedMethodSignature(help))
	assert.Same(t, help, s.Tip.OriginalMethodSignature(b))
	assert.Same(t, s.Factory.ClassType("app.Impl"), s.Tip.OriginalType(s.Factory.ClassType("a.a")))
	assert.Same(t, s.Factory.ClassType("a.a"), s.Tip.LookupType(s.Factory.ClassType("app.Helper")))

	count, err := s.Factory.ParseField("int app.Helper.count")
	require.NoError(t, err)
	def, err := s.Current.LookupRenamedField(s.Tip, count)
	require.NoError(t, err)
	assert.Equal(t, "int a.a.count", def.Ref.SourceString())
}

func TestBuild_CallResolution(t *testing.T) {
	s := buildDemo(t)
	main := method(t, s, "void app.Main.main()")
	b := method(t, s, "int a.a.b(int)")
	run := method(t, s, "void a.a.run()")

	t.Run("context required", func(t *testing.T) {
		_, err := s.Tip.LookupMethod(b)
		assert.ErrorIs(t, err, lens.ErrContextRequired)
	})

	t.Run("contextual redirect", func(t *testing.T) {
		def, kind, err := s.Current.ResolveCall(s.Tip, b, main, lens.InvokeVirtual)
		require.NoError(t, err)
		assert.Equal(t, "int app.Main.fastHelp(int)", def.Ref.SourceString())
		assert.Equal(t, lens.InvokeStatic, kind)
	})

	t.Run("call kind override", func(t *testing.T) {
		def, kind, err := s.Current.ResolveCall(s.Tip, run, main, lens.InvokeVirtual)
		require.NoError(t, err)
		assert.Same(t, run, def.Ref)
		assert.Equal(t, lens.InvokeDirect, kind)
	})

	t.Run("lookups stop at applied rewritings", func(t *testing.T) {
		help := method(t, s, "int app.Helper.help(int)")
		result, err := s.Tip.LookupMethodInContext(help, main, lens.InvokeVirtual)
		require.NoError(t, err)
		assert.Same(t, help, result.Method)
	})
}

func TestBuild_Profile(t *testing.T) {
	s := buildDemo(t)
	a := s.Factory.ClassType("a.a")

	assert.Equal(t, []*symbol.Type{a, s.Factory.ClassType("app.Color")}, s.Profile.ClassRules())
	assert.Equal(t, []profile.MethodRule{
		{Method: method(t, s, "int a.a.b(int)"), Flags: profile.FlagHot | profile.FlagStartup},
		{Method: method(t, s, "void a.a.run()"), Flags: profile.FlagHot},
	}, s.Profile.MethodRules())

	assert.Equal(t, []symbol.Reference{
		s.Factory.ClassType("app.Main"),
		method(t, s, "void app.Main.main()"),
		a,
	}, s.Startup.Items())
}

func TestBuild_HistoryAndNodes(t *testing.T) {
	s := buildDemo(t)
	help := ref(t, s, "int app.Helper.help(int)")

	var got []string
	for _, e := range s.History(help) {
		got = append(got, e.Pass+": "+e.Ref.SourceString())
	}
	assert.Equal(t, []string{
		"tree-shake: int app.Helper.help(int)",
		"merge: int app.Impl.help(int)",
		"minify: int a.a.b(int)",
		"devirtualize: int a.a.b(int)",
		"specialize: int a.a.b(int)",
	}, got)

	count := s.History(ref(t, s, "int app.Helper.count"))
	require.Len(t, count, 5)
	assert.Equal(t, "int app.Impl.count", count[1].Ref.SourceString())
	assert.Equal(t, "int a.a.count", count[4].Ref.SourceString())

	helper := ref(t, s, "app.Helper")
	history := s.History(helper)
	require.Len(t, history, 5)
	assert.Equal(t, "app.Impl", history[1].Ref.SourceString())
	assert.Equal(t, "a.a", history[4].Ref.SourceString())

	merge := s.Node("merge")
	require.NotNil(t, merge)
	assert.Equal(t, "merge", merge.Name())
	assert.Same(t, merge, s.Node(merge.ID().String()))
	assert.Nil(t, s.Node("missing"))
}

func TestBuild_Mapping(t *testing.T) {
	s := buildDemo(t)
	records, err := s.Mapping(context.Background())
	require.NoError(t, err)

	out := mapping.String(records)
	assert.Contains(t, out, "app.Impl -> a.a:\n"+
		"    int app.Helper.count -> count\n"+
		"    int app.Helper.help(int) -> b\n"+
		"    void run() -> run\n")
	assert.Contains(t, out, "app.Api -> app.Api:\n    void run() -> run\n")
	assert.NotContains(t, out, "app.Helper ->")
	assert.NotContains(t, out, "app.Unused")
}

func TestBuild_Errors(t *testing.T) {
	base := `
name: broken
classes:
  - type: app.Api
    methods:
      - signature: void app.Api.run()
keep: [app.Api, void app.Api.run()]
`

	t.Run("pinned pruned", func(t *testing.T) {
		script, err := Parse([]byte(base + "passes:\n  - name: shake\n    prune: [app.Api]\n"))
		require.NoError(t, err)
		_, err = Build(context.Background(), script, config.Default())
		assert.ErrorIs(t, err, ErrPinnedPruned)
	})

	renamePinned := base + `passes:
  - name: rename
    methods:
      - {from: "void app.Api.run()", to: "void app.Api.go()", move: true}
`

	t.Run("pinned renamed", func(t *testing.T) {
		script, err := Parse([]byte(renamePinned))
		require.NoError(t, err)
		_, err = Build(context.Background(), script, config.Default())
		require.Error(t, err)
		assert.ErrorIs(t, err, verify.ErrReferenceModified)
		var batch *verify.BatchError
		require.True(t, errors.As(err, &batch))
		assert.True(t, strings.HasPrefix(err.Error(), `pass "rename"`))
	})

	t.Run("verification disabled", func(t *testing.T) {
		script, err := Parse([]byte(renamePinned))
		require.NoError(t, err)
		cfg := config.Default()
		cfg.Verification.Enabled = false
		s, err := Build(context.Background(), script, cfg)
		require.NoError(t, err)
		assert.Equal(t, "void app.Api.go()", s.Current.Classes()[0].Methods[0].Ref.SourceString())
	})

	t.Run("members follow a merge into a new type", func(t *testing.T) {
		script, err := Parse([]byte(base + "passes:\n  - name: merge\n    types:\n      - {from: app.Api, to: app.Api2}\n"))
		require.NoError(t, err)
		script.Keep = nil
		s, err := Build(context.Background(), script, config.Default())
		require.NoError(t, err)
		assert.Equal(t, "void app.Api2.run()", s.Current.Classes()[0].Methods[0].Ref.SourceString())
	})

	t.Run("holder mismatch", func(t *testing.T) {
		script, err := Parse([]byte(base + `passes:
  - name: merge
    types:
      - {from: app.Api, to: app.Api2}
    methods:
      - {from: "void app.Api.run()", to: "void app.Api2.run()"}
`))
		require.NoError(t, err)
		script.Keep = nil
		_, err = Build(context.Background(), script, config.Default())
		assert.ErrorIs(t, err, program.ErrHolderMismatch)
	})

	t.Run("cancelled", func(t *testing.T) {
		script, err := Parse([]byte(base + "passes:\n  - name: noop\n"))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = Build(ctx, script, config.Default())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"not yaml", "name: [\n"},
		{"missing name", "classes:\n  - type: app.A\n"},
		{"no classes", "name: x\n"},
		{"unnamed pass", "name: x\nclasses:\n  - type: app.A\npasses:\n  - types: []\n"},
		{"bad policy", "name: x\nclasses:\n  - type: app.A\npasses:\n  - name: p\n    policy: random\n"},
		{"mapping without target", "name: x\nclasses:\n  - type: app.A\npasses:\n  - name: p\n    types:\n      - {from: app.A}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.script))
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}

	t.Run("bad signature at build", func(t *testing.T) {
		script, err := Parse([]byte("name: x\nclasses:\n  - type: app.A\n    methods:\n      - signature: app.A.run\n"))
		require.NoError(t, err)
		_, err = Build(context.Background(), script, config.Default())
		assert.ErrorIs(t, err, ErrInvalidScript)
	})

	t.Run("primitive class", func(t *testing.T) {
		script, err := Parse([]byte("name: x\nclasses:\n  - type: int\n"))
		require.NoError(t, err)
		_, err = Build(context.Background(), script, config.Default())
		assert.ErrorIs(t, err, ErrInvalidScript)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("testdata/absent.yaml")
		assert.Error(t, err)
	})
}
