// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile translates startup and execution profiles across lens
// chains.
//
// A profile is recorded against one naming of the program, typically the
// input. After optimization every rule must name the corresponding
// declaration of the output program, or be dropped when that declaration
// no longer exists.
package profile

import "errors"

var (
	// ErrInvalidFlags is returned when a flag string contains anything
	// other than 'H', 'S' and 'P'.
	ErrInvalidFlags = errors.New("invalid profile flags")

	// ErrNilLens is returned when rewriting without a lens.
	ErrNilLens = errors.New("lens must not be nil")
)
