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
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/program"
	"github.com/AleutianAI/symlens/services/lens/symbol"
	"github.com/AleutianAI/symlens/services/lens/telemetry"
)

// Check names, used in spans, metrics and BatchError.Check.
const (
	CheckReferencesNotModified  = "references_not_modified"
	CheckPinnedNotModified      = "pinned_not_modified"
	CheckDefinitionsNotModified = "definitions_not_modified"
	CheckMappingToOriginal      = "mapping_to_original_program"
)

// Options configures a Verifier.
type Options struct {
	// Enabled turns the checks on. Disabled checks return nil.
	// Default: true
	Enabled bool

	// Parallelism is the number of workers per check.
	// Default: runtime.NumCPU()
	Parallelism int

	// Logger receives failure reports. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Enabled:     true,
		Parallelism: runtime.NumCPU(),
	}
}

// Option is a functional option for configuring a Verifier.
type Option func(*Options)

// WithEnabled turns verification on or off.
func WithEnabled(enabled bool) Option {
	return func(o *Options) {
		o.Enabled = enabled
	}
}

// WithParallelism sets the worker count per check.
func WithParallelism(n int) Option {
	return func(o *Options) {
		o.Parallelism = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Verifier runs consistency checks against frozen lens chains.
//
// Thread Safety: Safe for concurrent use. The chain being checked must
// not be extended while a check runs.
type Verifier struct {
	opts Options
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Parallelism <= 0 {
		options.Parallelism = runtime.NumCPU()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Verifier{opts: options}
}

// Enabled reports whether checks run.
func (v *Verifier) Enabled() bool { return v.opts.Enabled }

// AssertReferencesNotModified checks that every reference is unchanged by l.
//
// Description:
//
//	Types must resolve to themselves through LookupType. Methods and
//	fields must keep their renamed signature. Call-site redirects are not
//	considered, so a pinned method may still be the target of a merge.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - l: The chain to check.
//   - refs: References in original naming.
//
// Outputs:
//   - error: *BatchError wrapping ErrReferenceModified per offending
//     reference, or the context error.
func (v *Verifier) AssertReferencesNotModified(ctx context.Context, l *lens.Lens, refs []symbol.Reference) error {
	return v.run(ctx, CheckReferencesNotModified, len(refs), func(i int) error {
		return checkUnmodified(l, refs[i])
	})
}

// AssertPinnedNotModified runs AssertReferencesNotModified over every
// pinned type, method and field.
func (v *Verifier) AssertPinnedNotModified(ctx context.Context, l *lens.Lens, keep *program.KeepInfo) error {
	refs := keep.Pinned()
	return v.run(ctx, CheckPinnedNotModified, len(refs), func(i int) error {
		return checkUnmodified(l, refs[i])
	})
}

func checkUnmodified(l *lens.Lens, ref symbol.Reference) error {
	var got symbol.Reference
	switch r := ref.(type) {
	case *symbol.Type:
		got = l.LookupType(r)
	case *symbol.Method:
		got = l.RenamedMethodSignature(r)
	case *symbol.Field:
		got = l.RenamedFieldSignature(r)
	default:
		return fmt.Errorf("unsupported reference %T", ref)
	}
	if got != ref {
		return fmt.Errorf("%w: %s %s -> %s", ErrReferenceModified, ref.Kind(), ref.SourceString(), got.SourceString())
	}
	return nil
}

// AssertDefinitionsNotModified checks that the given class definitions and
// their members are not rewritten by l.
//
// Description:
//
//	Every class type, field and method must resolve to itself through the
//	lookup functions. Bridge methods are skipped since they are retargeted
//	even when kept.
//
// Outputs:
//   - error: *BatchError wrapping ErrReferenceModified or
//     lens.ErrContextRequired per offending definition.
func (v *Verifier) AssertDefinitionsNotModified(ctx context.Context, l *lens.Lens, classes []*program.Class) error {
	var refs []symbol.Reference
	for _, c := range classes {
		refs = append(refs, c.Type)
		for _, m := range c.Methods {
			if !m.Bridge {
				refs = append(refs, m.Ref)
			}
		}
		for _, f := range c.Fields {
			refs = append(refs, f.Ref)
		}
	}
	return v.run(ctx, CheckDefinitionsNotModified, len(refs), func(i int) error {
		got, err := l.LookupReference(refs[i])
		if err != nil {
			return err
		}
		if got != refs[i] {
			return fmt.Errorf("%w: %s %s -> %s", ErrReferenceModified,
				refs[i].Kind(), refs[i].SourceString(), got.SourceString())
		}
		return nil
	})
}

// VerifyMappingToOriginalProgram checks that every member of current maps
// back to a member of original through l.
//
// Description:
//
//	Synthesized classes and methods are skipped, as is the synthesized
//	class-initialization field; none of them exist in the input.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - l: The chain from original to current.
//   - current: The program after l.
//   - original: The input program.
//
// Outputs:
//   - error: *BatchError wrapping ErrUnmappedMember per offending member.
func (v *Verifier) VerifyMappingToOriginalProgram(ctx context.Context, l *lens.Lens, current, original *program.Program) error {
	var members []symbol.Member
	for _, c := range current.Classes() {
		if c.Synthesized {
			continue
		}
		for _, f := range c.Fields {
			if f.Synthesized || f.Ref.Name() == program.ClassInitFieldName {
				continue
			}
			members = append(members, f.Ref)
		}
		for _, m := range c.Methods {
			if m.Synthesized {
				continue
			}
			members = append(members, m.Ref)
		}
	}

	return v.run(ctx, CheckMappingToOriginal, len(members), func(i int) error {
		switch m := members[i].(type) {
		case *symbol.Field:
			orig := l.OriginalFieldSignature(m)
			if _, ok := original.Field(orig); !ok {
				return fmt.Errorf("%w: field %s (original %s)", ErrUnmappedMember, m, orig)
			}
		case *symbol.Method:
			orig := l.OriginalMethodSignature(m)
			if _, ok := original.Method(orig); !ok {
				return fmt.Errorf("%w: method %s (original %s)", ErrUnmappedMember, m, orig)
			}
		}
		return nil
	})
}

// run applies fn to indices [0, n) on Parallelism workers.
//
// Each worker owns a contiguous range and its own failure slice, so the
// combined failures come out in index order.
func (v *Verifier) run(ctx context.Context, check string, n int, fn func(i int) error) error {
	if !v.opts.Enabled {
		return nil
	}

	ctx, span := startCheckSpan(ctx, check, n)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, v.opts.Logger)

	workers := min(v.opts.Parallelism, n)
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers
	failures := make([][]error, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		start, end := w*chunk, min((w+1)*chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(i); err != nil {
					failures[w] = append(failures[w], err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification interrupted")
		return fmt.Errorf("%s: %w", check, err)
	}

	var errs []error
	for _, f := range failures {
		errs = append(errs, f...)
	}
	recordVerification(ctx, check, len(errs))
	if len(errs) == 0 {
		logger.Debug("verification passed", slog.String("check", check), slog.Int("items", n))
		return nil
	}

	batch := &BatchError{Check: check, Errors: errs}
	span.RecordError(batch)
	span.SetStatus(codes.Error, "verification failed")
	logger.Error("verification failed",
		slog.String("check", check),
		slog.Int("items", n),
		slog.Int("failures", len(errs)),
		slog.String("first", errs[0].Error()),
	)
	return batch
}
