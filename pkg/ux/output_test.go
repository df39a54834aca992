// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow, IconBullet} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeMachine, ParseMode("machine"))
	assert.Equal(t, ModeMachine, ParseMode(" MACHINE "))
	assert.Equal(t, ModeRich, ParseMode("rich"))
	assert.Equal(t, ModeRich, ParseMode(""))
}

func TestNewPrinter_NonTerminalIsMachine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	assert.Equal(t, ModeMachine, p.Mode())
	assert.Same(t, &buf, p.Writer())
	assert.Equal(t, ModeRich, p.WithMode(ModeRich).Mode())
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).WithMode(ModeMachine)

	p.Title("ignored")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.Info("plain")
	p.Mapping("app.Impl", "a.a")
	p.Step(1, "minify", "1234", "a.a")
	p.Box("Result", "body")
	p.ErrorBox("Failure", "body")
	p.Summary(3, 1, 4)

	want := strings.Join([]string{
		"OK: done",
		"WARN: careful",
		"ERROR: broken",
		"plain",
		"app.Impl\ta.a",
		"1\tminify\t1234\ta.a",
		"Result: body",
		"ERROR Failure: body",
		"SUMMARY: passed=3 failed=1 total=4",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestPrinter_Rich(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).WithMode(ModeRich)

	p.Title("Lens history")
	p.Success("verified")
	p.Mapping("app.Impl", "a.a")
	p.Mapping("app.Main", "app.Main")
	p.Box("Result", "body")
	p.Summary(2, 0, 2)

	out := buf.String()
	assert.Contains(t, out, "Lens history")
	assert.Contains(t, out, "verified")
	assert.Contains(t, out, string(IconArrow))
	assert.Contains(t, out, "a.a")
	assert.Contains(t, out, "Result")
	assert.Contains(t, out, "passed")
}
