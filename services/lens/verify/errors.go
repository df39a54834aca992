// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verify checks that a lens chain honors what the rest of the
// compiler relies on.
//
// Pinned declarations must resolve to themselves, kept definitions must
// not be rewritten and every member of the output program must map back
// to a member of the input program. The checks are whole-program walks
// over a frozen chain and run in parallel.
//
// In verification builds a failure is fatal and is returned as a
// *BatchError listing every offending reference. When verification is
// disabled the checks return nil without walking anything.
package verify

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for verification.
var (
	// ErrReferenceModified is returned when a reference expected to be
	// unchanged resolves to something else.
	ErrReferenceModified = errors.New("reference modified by lens")

	// ErrUnmappedMember is returned when a member of the output program
	// has no original counterpart.
	ErrUnmappedMember = errors.New("member does not map to original program")
)

// BatchError aggregates every failure of one check.
//
// BatchError implements the Go 1.20+ multi-error Unwrap, so errors.Is
// finds the sentinel of any contained failure.
type BatchError struct {
	// Check names the check that failed.
	Check string

	// Errors contains one entry per offending reference.
	Errors []error
}

// Error returns a human-readable summary of the batch errors.
func (e *BatchError) Error() string {
	switch len(e.Errors) {
	case 0:
		return e.Check + ": batch error with no errors"
	case 1:
		return e.Check + ": " + e.Errors[0].Error()
	default:
		return fmt.Sprintf("%s: %d errors: %v (and %d more)",
			e.Check, len(e.Errors), e.Errors[0], len(e.Errors)-1)
	}
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns all errors, one per line.
func (e *BatchError) ErrorList() string {
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
