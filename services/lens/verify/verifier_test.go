// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

type fixture struct {
	f        *symbol.Factory
	keepType *symbol.Type
	moveType *symbol.Type
	kept     *symbol.Method
	bridge   *symbol.Method
	moved    *symbol.Method
	movedTo  *symbol.Method
	field    *symbol.Field
	original *program.Program
	chain    *lens.Lens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{f: symbol.NewFactory()}
	fx.keepType = fx.f.ClassType("app.Keep")
	fx.moveType = fx.f.ClassType("app.Move")

	parse := func(s string) *symbol.Method {
		m, err := fx.f.ParseMethod(s)
		require.NoError(t, err)
		return m
	}
	fx.kept = parse("void app.Keep.api()")
	fx.bridge = parse("java.lang.Object app.Keep.get()")
	fx.moved = parse("void app.Move.work()")
	fx.movedTo = parse("void app.Move.a()")
	var err error
	fx.field, err = fx.f.ParseField("int app.Keep.state")
	require.NoError(t, err)

	fx.original, err = program.New(
		&program.Class{
			Type:    fx.keepType,
			Methods: []program.MethodDef{{Ref: fx.kept}, {Ref: fx.bridge, Bridge: true}},
			Fields:  []program.FieldDef{{Ref: fx.field}},
		},
		&program.Class{Type: fx.moveType, Methods: []program.MethodDef{{Ref: fx.moved}}},
	)
	require.NoError(t, err)

	bridgeTarget := parse("java.lang.String app.Keep.get()")
	fx.chain, err = lens.NewBuilder(fx.f, lens.WithName("minify")).
		MoveMethod(fx.moved, fx.movedTo).
		MapMethod(fx.bridge, bridgeTarget).
		Build(lens.Identity())
	require.NoError(t, err)
	return fx
}

func quietVerifier(opts ...Option) *Verifier {
	return New(append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
}

func TestAssertReferencesNotModified(t *testing.T) {
	fx := newFixture(t)
	v := quietVerifier(WithParallelism(3))
	ctx := context.Background()

	require.NoError(t, v.AssertReferencesNotModified(ctx, fx.chain,
		[]symbol.Reference{fx.keepType, fx.kept, fx.field, fx.bridge}))

	err := v.AssertReferencesNotModified(ctx, fx.chain, []symbol.Reference{fx.kept, fx.moved})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReferenceModified)

	var batch *BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, CheckReferencesNotModified, batch.Check)
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Errors[0].Error(), "void app.Move.work() -> void app.Move.a()")
}

func TestAssertPinnedNotModified(t *testing.T) {
	fx := newFixture(t)
	v := quietVerifier()

	keep := program.NewKeepInfo()
	keep.Pin(fx.keepType)
	keep.Pin(fx.kept)
	require.NoError(t, v.AssertPinnedNotModified(context.Background(), fx.chain, keep))

	keep.Pin(fx.moved)
	err := v.AssertPinnedNotModified(context.Background(), fx.chain, keep)
	assert.ErrorIs(t, err, ErrReferenceModified)
}

func TestAssertDefinitionsNotModified(t *testing.T) {
	fx := newFixture(t)
	v := quietVerifier()
	keepClass, ok := fx.original.Class(fx.keepType)
	require.True(t, ok)

	// The bridge is redirected but skipped.
	require.NoError(t, v.AssertDefinitionsNotModified(context.Background(), fx.chain, []*program.Class{keepClass}))

	moveClass, ok := fx.original.Class(fx.moveType)
	require.True(t, ok)
	err := v.AssertDefinitionsNotModified(context.Background(), fx.chain, []*program.Class{moveClass})
	assert.ErrorIs(t, err, ErrReferenceModified)

	t.Run("context sensitive chain", func(t *testing.T) {
		sensitive, err := lens.NewBuilder(fx.f).MapInContext(fx.kept, fx.moved, fx.movedTo, lens.InvokeStatic).Build(fx.chain)
		require.NoError(t, err)
		err = v.AssertDefinitionsNotModified(context.Background(), sensitive, []*program.Class{keepClass})
		assert.ErrorIs(t, err, lens.ErrContextRequired)
	})
}

func TestVerifyMappingToOriginalProgram(t *testing.T) {
	fx := newFixture(t)
	v := quietVerifier()

	current, err := program.Rewrite(fx.original, fx.chain)
	require.NoError(t, err)
	require.NoError(t, v.VerifyMappingToOriginalProgram(context.Background(), fx.chain, current, fx.original))

	t.Run("synthesized members are skipped", func(t *testing.T) {
		synth, err := fx.f.ParseMethod("void app.Keep.lambda$0()")
		require.NoError(t, err)
		clinit := fx.f.Field(fx.keepType, program.ClassInitFieldName, fx.f.ClassType("java.lang.Object"))
		helper := fx.f.ClassType("app.Helper$Synth")
		helperRun, err := fx.f.ParseMethod("void app.Helper$Synth.run()")
		require.NoError(t, err)

		withSynth, err := program.New(
			&program.Class{
				Type:    fx.keepType,
				Methods: []program.MethodDef{{Ref: fx.kept}, {Ref: synth, Synthesized: true}},
				Fields:  []program.FieldDef{{Ref: fx.field}, {Ref: clinit}},
			},
			&program.Class{Type: helper, Synthesized: true, Methods: []program.MethodDef{{Ref: helperRun}}},
		)
		require.NoError(t, err)
		assert.NoError(t, v.VerifyMappingToOriginalProgram(context.Background(), fx.chain, withSynth, fx.original))
	})

	t.Run("unmapped members are reported", func(t *testing.T) {
		invented, err := fx.f.ParseMethod("void app.Keep.invented()")
		require.NoError(t, err)
		stray, err := fx.f.ParseField("int app.Keep.stray")
		require.NoError(t, err)
		broken, err := program.New(&program.Class{
			Type:    fx.keepType,
			Methods: []program.MethodDef{{Ref: invented}},
			Fields:  []program.FieldDef{{Ref: stray}},
		})
		require.NoError(t, err)

		err = v.VerifyMappingToOriginalProgram(context.Background(), fx.chain, broken, fx.original)
		assert.ErrorIs(t, err, ErrUnmappedMember)
		var batch *BatchError
		require.ErrorAs(t, err, &batch)
		assert.Len(t, batch.Errors, 2)
	})
}

func TestVerifier_Disabled(t *testing.T) {
	fx := newFixture(t)
	v := quietVerifier(WithEnabled(false))

	assert.False(t, v.Enabled())
	assert.NoError(t, v.AssertReferencesNotModified(context.Background(), fx.chain, []symbol.Reference{fx.moved}))
}

func TestVerifier_Cancelled(t *testing.T) {
	fx := newFixture(t)
	v := quietVerifier()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := v.AssertReferencesNotModified(ctx, fx.chain, []symbol.Reference{fx.kept})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifier_ParallelOrdering(t *testing.T) {
	f := symbol.NewFactory()
	b := lens.NewBuilder(f)
	var refs []symbol.Reference
	for i := 0; i < 1000; i++ {
		from := f.ClassType(fmt.Sprintf("p.C%04d", i))
		b.MapType(from, f.ClassType(fmt.Sprintf("q.C%04d", i)))
		refs = append(refs, from)
	}
	l, err := b.Build(lens.Identity())
	require.NoError(t, err)

	err = quietVerifier(WithParallelism(7)).AssertReferencesNotModified(context.Background(), l, refs)
	var batch *BatchError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Errors, 1000)
	assert.Contains(t, batch.Errors[0].Error(), "p.C0000")
	assert.Contains(t, batch.Errors[999].Error(), "p.C0999")
	assert.Contains(t, batch.ErrorList(), "p.C0500")
}

func TestBatchError(t *testing.T) {
	one := &BatchError{Check: "c", Errors: []error{ErrUnmappedMember}}
	assert.Equal(t, "c: "+ErrUnmappedMember.Error(), one.Error())

	two := &BatchError{Check: "c", Errors: []error{ErrUnmappedMember, ErrReferenceModified}}
	assert.Contains(t, two.Error(), "2 errors")
	assert.ErrorIs(t, two, ErrReferenceModified)
}
