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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/symlens/services/lens/config"
	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/mapping"
	"github.com/AleutianAI/symlens/services/lens/profile"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
	"github.com/AleutianAI/symlens/services/lens/telemetry"
	"github.com/AleutianAI/symlens/services/lens/verify"
)

var tracer = otel.Tracer("symlens.pipeline")

// PassResult describes one executed pass.
type PassResult struct {
	// Name is the pass name.
	Name string

	// Tip is the chain tip after the pass, including a rewrite-cleared
	// node when the pass applied its code rewritings.
	Tip *lens.Lens

	// Recorded is false when the pass changed nothing and added no node.
	Recorded bool

	// Pruned is the number of references the pass removed.
	Pruned int

	// Classes is the class count after the pass.
	Classes int
}

// Session is the state of a replayed compilation.
//
// Thread Safety: Safe for concurrent reads after Build returns.
type Session struct {
	Name     string
	Factory  *symbol.Factory
	Original *program.Program
	Current  *program.Program
	Tip      *lens.Lens
	Keep     *program.KeepInfo

	// Pruned holds every removed reference, named as of the pass that
	// removed it.
	Pruned *program.PrunedItems

	// Profile and Startup are in the naming of Tip. Nil when the script
	// has no profile.
	Profile *profile.Profile
	Startup *profile.StartupOrder

	Verifier *verify.Verifier
	Passes   []PassResult

	logger *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger for lens construction, verification and
// pass progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build replays script.
//
// Description:
//
//	Declares the input program, then runs each pass in order. A pass
//	prunes, records its mappings into a new lens node over the current
//	tip, materializes the program by applying that node alone, adds its
//	synthesized classes and translates the profile. With verification
//	enabled, pinned references and pinned class definitions are checked
//	after each pass, and the final program is checked against the input.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - script: The parsed script.
//   - cfg: Configuration. Verification and lens options apply.
//   - opts: Build options.
//
// Outputs:
//   - *Session: The replayed state.
//   - error: ErrInvalidScript, ErrPinnedPruned, a lens or program error,
//     or a *verify.BatchError.
func Build(ctx context.Context, script *Script, cfg config.Config, opts ...Option) (*Session, error) {
	options := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "pipeline.Build",
		trace.WithAttributes(
			attribute.String("script.name", script.Name),
			attribute.Int("script.passes", len(script.Passes)),
		),
	)
	defer span.End()
	start := time.Now()

	s, err := newSession(script, cfg, options.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for i := range script.Passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.runPass(ctx, &script.Passes[i], cfg); err != nil {
			err = fmt.Errorf("pass %q: %w", script.Passes[i].Name, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if err := s.Verifier.VerifyMappingToOriginalProgram(ctx, s.Tip, s.Current, s.Original); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("lens.depth", s.Tip.Depth()),
		attribute.Int("program.classes", len(s.Current.Classes())),
	)
	telemetry.LoggerWithTrace(ctx, s.logger).Info("pipeline built",
		slog.String("script", s.Name),
		slog.Int("passes", len(s.Passes)),
		slog.Int("depth", s.Tip.Depth()),
		slog.Int("classes", len(s.Current.Classes())),
		slog.Duration("duration", time.Since(start)),
	)
	return s, nil
}

func newSession(script *Script, cfg config.Config, logger *slog.Logger) (*Session, error) {
	f := symbol.NewFactory()
	classes, err := buildClasses(f, script.Classes, false)
	if err != nil {
		return nil, err
	}
	original, err := program.New(classes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	keep := program.NewKeepInfo()
	for _, s := range script.Keep {
		ref, err := parseReference(f, s)
		if err != nil {
			return nil, err
		}
		keep.Pin(ref)
	}

	s := &Session{
		Name:     script.Name,
		Factory:  f,
		Original: original,
		Current:  original,
		Tip:      lens.Identity(),
		Keep:     keep,
		Pruned:   program.NewPrunedItems(),
		Verifier: verify.New(append(cfg.VerifyOptions(), verify.WithLogger(logger))...),
		logger:   logger,
	}
	if script.Profile != nil {
		if s.Profile, s.Startup, err = buildProfile(f, script.Profile); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) runPass(ctx context.Context, pass *PassSpec, cfg config.Config) error {
	f := s.Factory
	prevTip := s.Tip

	passPruned := program.NewPrunedItems()
	for _, r := range pass.Prune {
		ref, err := parseReference(f, r)
		if err != nil {
			return err
		}
		if s.Keep.IsPinned(ref) {
			return fmt.Errorf("%w: %s", ErrPinnedPruned, ref)
		}
		passPruned.Remove(ref)
		s.Pruned.Remove(ref)
	}
	input := s.Current
	if !passPruned.IsEmpty() {
		var err error
		if input, err = prune(s.Current, passPruned); err != nil {
			return err
		}
	}

	resolver := &classIndex{}
	opts := append(cfg.LensOptions(), lens.WithName(pass.Name), lens.WithLogger(s.logger))
	if pass.Policy != PolicyIdentity {
		opts = append(opts, lens.WithClassResolver(resolver))
	}
	b := lens.NewBuilder(f, opts...)
	if err := recordMappings(f, b, pass, input); err != nil {
		return err
	}

	node, err := b.Build(prevTip)
	if err != nil {
		return err
	}
	recorded := node != prevTip

	output := input
	if recorded {
		single, err := node.Rebase(lens.Identity())
		if err != nil {
			return err
		}
		if output, err = program.Rewrite(input, single); err != nil {
			return err
		}
		if err := s.checkPinnedDefinitions(ctx, single, input); err != nil {
			return err
		}
	}
	if len(pass.AddClasses) > 0 {
		added, err := buildClasses(f, pass.AddClasses, true)
		if err != nil {
			return err
		}
		if output, err = program.New(append(append([]*program.Class(nil), output.Classes()...), added...)...); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidScript, err)
		}
	}
	*resolver = classIndex{output, s.Original}

	if err := s.Verifier.AssertPinnedNotModified(ctx, node, s.Keep); err != nil {
		return err
	}

	tip := node
	if pass.ApplyCodeRewritings {
		tip = tip.WithCodeRewritingsApplied()
	}

	if s.Profile != nil {
		if s.Profile, err = s.Profile.WithoutPrunedItems(passPruned).RewrittenWithLensAfter(ctx, tip, prevTip); err != nil {
			return err
		}
		if s.Startup, err = s.Startup.WithoutPrunedItems(passPruned).RewrittenWithLensAfter(ctx, tip, prevTip); err != nil {
			return err
		}
	}

	s.Tip = tip
	s.Current = output
	s.Passes = append(s.Passes, PassResult{
		Name:     pass.Name,
		Tip:      tip,
		Recorded: recorded,
		Pruned:   len(pass.Prune),
		Classes:  len(output.Classes()),
	})

	telemetry.LoggerWithPass(ctx, s.logger, pass.Name).Debug("pass applied",
		slog.Bool("recorded", recorded),
		slog.Int("pruned", len(pass.Prune)),
		slog.Int("classes", len(output.Classes())),
		slog.Int("depth", tip.Depth()),
	)
	return nil
}

// checkPinnedDefinitions asserts that the pass node leaves the members of
// pinned classes alone. Context-sensitive nodes are skipped because
// definitions have no calling context.
func (s *Session) checkPinnedDefinitions(ctx context.Context, single *lens.Lens, input *program.Program) error {
	if !single.IsContextFreeForMethods() {
		return nil
	}
	var pinned []*program.Class
	for _, c := range input.Classes() {
		if s.Keep.IsPinned(c.Type) {
			pinned = append(pinned, c)
		}
	}
	if len(pinned) == 0 {
		return nil
	}
	return s.Verifier.AssertDefinitionsNotModified(ctx, single, pinned)
}

// Verify reruns the whole-program checks against the final state.
func (s *Session) Verify(ctx context.Context) error {
	if err := s.Verifier.AssertPinnedNotModified(ctx, s.Tip, s.Keep); err != nil {
		return err
	}
	return s.Verifier.VerifyMappingToOriginalProgram(ctx, s.Tip, s.Current, s.Original)
}

// Mapping returns the symbol map of the final program.
func (s *Session) Mapping(ctx context.Context) ([]mapping.ClassRecord, error) {
	return mapping.Build(ctx, s.Current, s.Tip)
}

// Node returns the chain node for a pass name or id, or nil.
func (s *Session) Node(nameOrID string) *lens.Lens {
	if id, err := uuid.Parse(nameOrID); err == nil {
		return s.Tip.FindByID(id)
	}
	return s.Tip.FindByName(nameOrID)
}

// HistoryEntry is a reference's name after one pass.
type HistoryEntry struct {
	Pass   string
	NodeID uuid.UUID
	Ref    symbol.Reference
}

// History returns the name of an original reference after each pass.
// Types follow LookupType and members their renamed signatures.
func (s *Session) History(ref symbol.Reference) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(s.Passes))
	for _, p := range s.Passes {
		var current symbol.Reference
		switch r := ref.(type) {
		case *symbol.Type:
			current = p.Tip.LookupType(r)
		case symbol.Member:
			current = p.Tip.RenamedMemberSignature(r)
		}
		entries = append(entries, HistoryEntry{Pass: p.Name, NodeID: p.Tip.ID(), Ref: current})
	}
	return entries
}

// ParseReference parses a source-form reference against the session's
// factory.
func (s *Session) ParseReference(str string) (symbol.Reference, error) {
	return parseReference(s.Factory, str)
}

// classIndex answers interface queries from several programs. The first
// program that declares the type wins.
type classIndex []*program.Program

func (c *classIndex) IsInterface(t *symbol.Type) (bool, bool) {
	for _, p := range *c {
		if isInterface, ok := p.IsInterface(t); ok {
			return isInterface, true
		}
	}
	return false, false
}
