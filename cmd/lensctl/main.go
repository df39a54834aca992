// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lensctl replays a compilation script and answers questions about
// how its references were renamed, merged and redirected along the way.
package main

import (
	"context"
	"os"
	"time"

	"github.com/AleutianAI/symlens/pkg/ux"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	err := a.rootCmd().Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.close(ctx)

	if err != nil {
		ux.NewPrinter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
