// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/symlens/services/lens/mapping"
	"github.com/AleutianAI/symlens/services/lens/verify"
)

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-run the whole-program checks against the final chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer()
			if !a.session.Verifier.Enabled() {
				p.Warning("verification is disabled")
				return nil
			}

			err := a.session.Verify(cmd.Context())
			var batch *verify.BatchError
			switch {
			case err == nil:
				p.Success(fmt.Sprintf("%d pinned references and %d classes verified",
					a.session.Keep.Len(), len(a.session.Current.Classes())))
				return nil
			case errors.As(err, &batch):
				p.ErrorBox(batch.Check, fmt.Sprintf("%d failures", len(batch.Errors)))
				for _, e := range batch.Errors {
					p.Error(e.Error())
				}
			}
			return err
		},
	}
}

func (a *app) mappingCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Print the symbol map of the final program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.session.Mapping(cmd.Context())
			if err != nil {
				return err
			}
			write := func(w io.Writer) error { return mapping.Write(w, records) }
			if outPath == "" || outPath == "-" {
				return write(a.stdout)
			}
			if err := writeFile(outPath, write); err != nil {
				return err
			}
			a.printer().Success(fmt.Sprintf("wrote %d classes to %s", len(records), outPath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "file", "f", "", "Write the map to this file instead of stdout")
	return cmd
}

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the profile and startup order in final naming",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer()
			if a.session.Profile == nil {
				p.Warning("script has no profile")
				return nil
			}
			p.Title("Profile")
			if _, err := io.WriteString(a.stdout, a.session.Profile.String()); err != nil {
				return err
			}
			p.Title("Startup order")
			for _, item := range a.session.Startup.Items() {
				p.Info(item.SourceString())
			}
			return nil
		},
	}
}

// writeFile creates path and hands it to write.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
