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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

type fixture struct {
	f      *symbol.Factory
	api    *symbol.Type
	impl   *symbol.Type
	helper *symbol.Type
	run    *symbol.Method
	apiRun *symbol.Method
	help   *symbol.Method
	count  *symbol.Field
	p      *Program
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{f: symbol.NewFactory()}
	fx.api = fx.f.ClassType("app.Api")
	fx.impl = fx.f.ClassType("app.Impl")
	fx.helper = fx.f.ClassType("app.Helper")

	var err error
	fx.run, err = fx.f.ParseMethod("void app.Impl.run()")
	require.NoError(t, err)
	fx.apiRun, err = fx.f.ParseMethod("void app.Api.run()")
	require.NoError(t, err)
	fx.help, err = fx.f.ParseMethod("int app.Helper.help(int)")
	require.NoError(t, err)
	fx.count, err = fx.f.ParseField("int app.Helper.count")
	require.NoError(t, err)

	fx.p, err = New(
		&Class{Type: fx.api, Interface: true, Methods: []MethodDef{{Ref: fx.apiRun}}},
		&Class{Type: fx.impl, Methods: []MethodDef{{Ref: fx.run}}},
		&Class{Type: fx.helper, Methods: []MethodDef{{Ref: fx.help}}, Fields: []FieldDef{{Ref: fx.count}}},
	)
	require.NoError(t, err)
	return fx
}

func TestNew(t *testing.T) {
	fx := newFixture(t)

	assert.Len(t, fx.p.Classes(), 3)
	assert.Equal(t, 3, fx.p.MethodCount())
	assert.Equal(t, 1, fx.p.FieldCount())

	isItf, ok := fx.p.IsInterface(fx.api)
	assert.True(t, ok)
	assert.True(t, isItf)
	_, ok = fx.p.IsInterface(fx.f.ClassType("java.lang.Object"))
	assert.False(t, ok)

	def, ok := fx.p.Method(fx.help)
	require.True(t, ok)
	assert.Same(t, fx.help, def.Ref)

	t.Run("duplicate class", func(t *testing.T) {
		_, err := New(&Class{Type: fx.api}, &Class{Type: fx.api})
		assert.ErrorIs(t, err, ErrDuplicateClass)
	})

	t.Run("holder mismatch", func(t *testing.T) {
		_, err := New(&Class{Type: fx.api, Methods: []MethodDef{{Ref: fx.run}}})
		assert.ErrorIs(t, err, ErrHolderMismatch)
	})

	t.Run("duplicate member", func(t *testing.T) {
		_, err := New(&Class{Type: fx.impl, Methods: []MethodDef{{Ref: fx.run}, {Ref: fx.run}}})
		assert.ErrorIs(t, err, ErrDuplicateMember)
	})

	assert.Len(t, fx.p.Definitions(), 3+3+1)
}

func TestRewrite(t *testing.T) {
	fx := newFixture(t)

	// Merge Helper into Impl, moving its members.
	movedHelp := fx.f.WithHolder(fx.help, fx.impl)
	movedCount := fx.f.Field(fx.impl, "count", fx.count.Type())
	l, err := lens.NewBuilder(fx.f, lens.WithName("merge")).
		MapType(fx.helper, fx.impl).
		MoveMethod(fx.help, movedHelp).
		MoveField(fx.count, movedCount).
		Build(lens.Identity())
	require.NoError(t, err)

	rewritten, err := Rewrite(fx.p, l)
	require.NoError(t, err)

	require.Len(t, rewritten.Classes(), 2)
	impl, ok := rewritten.Class(fx.impl)
	require.True(t, ok)
	assert.False(t, impl.Interface)
	assert.Len(t, impl.Methods, 2)
	assert.Len(t, impl.Fields, 1)
	_, ok = rewritten.Class(fx.helper)
	assert.False(t, ok)

	def, err := rewritten.LookupRenamedMethod(l, fx.help)
	require.NoError(t, err)
	assert.Same(t, movedHelp, def.Ref)

	fdef, err := rewritten.LookupRenamedField(l, fx.count)
	require.NoError(t, err)
	assert.Same(t, movedCount, fdef.Ref)

	t.Run("dead reference", func(t *testing.T) {
		gone, err := fx.f.ParseMethod("void app.Impl.gone()")
		require.NoError(t, err)
		_, err = rewritten.LookupRenamedMethod(l, gone)
		assert.ErrorIs(t, err, ErrDeadReference)
	})

	t.Run("class renamed without moving members", func(t *testing.T) {
		broken, err := lens.NewBuilder(fx.f).MapType(fx.helper, fx.impl).Build(lens.Identity())
		require.NoError(t, err)
		_, err = Rewrite(fx.p, broken)
		assert.ErrorIs(t, err, ErrHolderMismatch)
	})
}

func TestResolveCall(t *testing.T) {
	fx := newFixture(t)

	l, err := lens.NewBuilder(fx.f, lens.WithClassResolver(fx.p)).
		MapMethod(fx.run, fx.apiRun).
		Build(lens.Identity())
	require.NoError(t, err)

	def, kind, err := fx.p.ResolveCall(l, fx.run, nil, lens.InvokeVirtual)
	require.NoError(t, err)
	assert.Same(t, fx.apiRun, def.Ref)
	assert.Equal(t, lens.InvokeInterface, kind)

	missing, err := fx.f.ParseMethod("void app.Impl.missing()")
	require.NoError(t, err)
	_, _, err = fx.p.ResolveCall(l, missing, nil, lens.InvokeVirtual)
	assert.ErrorIs(t, err, ErrDeadReference)

	t.Run("target on undeclared class", func(t *testing.T) {
		gone, err := fx.f.ParseMethod("void app.Gone.run()")
		require.NoError(t, err)
		redirect, err := lens.NewBuilder(fx.f).MapMethod(fx.run, gone).Build(lens.Identity())
		require.NoError(t, err)

		_, _, err = fx.p.ResolveCall(redirect, fx.run, nil, lens.InvokeVirtual)
		assert.ErrorIs(t, err, ErrUnknownClass)
		assert.NotErrorIs(t, err, ErrDeadReference)
	})
}

func TestKeepInfo(t *testing.T) {
	fx := newFixture(t)
	keep := NewKeepInfo()
	keep.Pin(fx.count)
	keep.Pin(fx.run)
	keep.Pin(fx.impl)
	keep.Pin(fx.api)

	assert.True(t, keep.IsPinned(fx.run))
	assert.False(t, keep.IsPinned(fx.help))
	assert.Equal(t, 4, keep.Len())
	assert.Equal(t, []symbol.Reference{fx.api, fx.impl, fx.run, fx.count}, keep.Pinned())
}

func TestPrunedItems(t *testing.T) {
	fx := newFixture(t)

	var nilPruned *PrunedItems
	assert.False(t, nilPruned.IsRemoved(fx.run))
	assert.True(t, nilPruned.IsEmpty())

	pruned := NewPrunedItems()
	assert.True(t, pruned.IsEmpty())
	pruned.Remove(fx.helper)
	pruned.Remove(fx.run)

	assert.False(t, pruned.IsEmpty())
	assert.True(t, pruned.IsRemoved(fx.helper))
	assert.True(t, pruned.IsRemoved(fx.f.ArrayOf(fx.helper, 1)))
	assert.True(t, pruned.IsRemoved(fx.help), "members of removed classes")
	assert.True(t, pruned.IsRemoved(fx.count))
	assert.True(t, pruned.IsRemoved(fx.run))
	assert.False(t, pruned.IsRemoved(fx.apiRun))
	assert.False(t, pruned.IsRemoved(fx.impl))
}
