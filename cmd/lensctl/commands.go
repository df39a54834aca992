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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/symlens/pkg/logging"
	"github.com/AleutianAI/symlens/pkg/ux"
	"github.com/AleutianAI/symlens/services/lens/config"
	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/pipeline"
	"github.com/AleutianAI/symlens/services/lens/telemetry"
)

var (
	errNoScript    = errors.New("--script is required")
	errUnknownPass = errors.New("unknown pass")
)

// app holds flag values and the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	scriptPath  string
	metricsPath string
	outputMode  string

	cfg      config.Config
	logger   *logging.Logger
	session  *pipeline.Session
	shutdown func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// rootCmd assembles the command tree.
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lensctl",
		Short: "Inspect the lens chain of a replayed compilation",
		Long: `lensctl replays a compilation script (input program, pinned
references and an ordered list of passes) and queries the resulting
chain of lenses.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.writeMetrics()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVarP(&a.scriptPath, "script", "s", "", "Path to the compilation script")
	root.PersistentFlags().StringVar(&a.metricsPath, "metrics", "",
		"Write Prometheus metrics to this file after the command ('-' for stdout)")
	root.PersistentFlags().StringVarP(&a.outputMode, "output", "o", "",
		"Output mode: rich or machine (default: rich on a terminal)")

	root.AddCommand(
		a.lookupCmd(),
		a.originalCmd(),
		a.historyCmd(),
		a.nodesCmd(),
		a.passesCmd(),
		a.verifyCmd(),
		a.mappingCmd(),
		a.profileCmd(),
	)
	return root
}

// setup loads configuration, starts telemetry and replays the script.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(a.stderr, "lensctl")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Init(ctx, cfg.ToTelemetry(a.stderr))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.shutdown = shutdown

	if a.scriptPath == "" {
		return errNoScript
	}
	script, err := pipeline.Load(a.scriptPath)
	if err != nil {
		return err
	}
	a.session, err = pipeline.Build(ctx, script, cfg, pipeline.WithLogger(a.logger.Slog()))
	if err != nil {
		return err
	}
	return nil
}

func (a *app) writeMetrics() error {
	if a.metricsPath == "" {
		return nil
	}
	if a.metricsPath == "-" {
		return telemetry.WriteMetrics(a.stdout)
	}
	return writeFile(a.metricsPath, telemetry.WriteMetrics)
}

// close releases telemetry and the logger. Safe to call when setup never ran.
func (a *app) close(ctx context.Context) {
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Slog().Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func (a *app) printer() *ux.Printer {
	p := ux.NewPrinter(a.stdout)
	if a.outputMode != "" {
		p = p.WithMode(ux.ParseMode(a.outputMode))
	}
	return p
}

// node returns the chain node for a pass, or the tip when pass is empty.
func (a *app) node(pass string) (*lens.Lens, error) {
	if pass == "" {
		return a.session.Tip, nil
	}
	n := a.session.Node(pass)
	if n == nil {
		return nil, fmt.Errorf("%w: %q", errUnknownPass, pass)
	}
	return n, nil
}

// shortID trims a node id for display.
func shortID(l *lens.Lens) string {
	return l.ID().String()[:8]
}
