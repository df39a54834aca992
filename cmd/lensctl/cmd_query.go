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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/symbol"
)

var errNotMethod = errors.New("not a method signature")

func (a *app) lookupCmd() *cobra.Command {
	var (
		contextSig string
		kindName   string
		at         string
		resolve    bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <reference>",
		Short: "Rewrite a reference through the chain",
		Long: `Rewrites a type, field or method reference through the chain ending at
--at (default: the last pass). Methods may carry a calling context and a
call kind; context-sensitive chains require --context.

With --resolve the rewritten call is also resolved against the final
program and must hit a live definition.`,
		Example: `  lensctl -s build.yaml lookup "int app.Helper.help(int)" --context "void app.Main.main()"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.node(at)
			if err != nil {
				return err
			}
			ref, err := a.session.ParseReference(args[0])
			if err != nil {
				return err
			}
			p := a.printer()

			m, ok := ref.(*symbol.Method)
			if !ok {
				got, err := node.LookupReference(ref)
				if err != nil {
					return err
				}
				p.Mapping(ref.SourceString(), got.SourceString())
				return nil
			}

			kind, err := lens.ParseInvokeKind(kindName)
			if err != nil {
				return err
			}
			var context *symbol.Method
			if contextSig != "" {
				if context, err = a.parseMethod(contextSig); err != nil {
					return err
				}
			}

			if resolve {
				if at != "" {
					return errors.New("--resolve applies to the last pass only")
				}
				def, newKind, err := a.session.Current.ResolveCall(a.session.Tip, m, context, kind)
				if err != nil {
					return err
				}
				p.Mapping(m.SourceString(), def.Ref.SourceString())
				p.Info("kind: " + newKind.String())
				return nil
			}

			result, err := node.LookupMethodInContext(m, context, kind)
			if err != nil {
				return err
			}
			p.Mapping(m.SourceString(), result.Method.SourceString())
			p.Info("kind: " + result.Kind.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&contextSig, "context", "", "Signature of the calling method")
	cmd.Flags().StringVar(&kindName, "kind", "virtual", "Call kind: virtual, interface, static, super or direct")
	cmd.Flags().StringVar(&at, "at", "", "Pass name or node id to stop at")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Resolve the call against the final program")
	return cmd
}

func (a *app) originalCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "original <reference>",
		Short: "Map a rewritten reference back to its original name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.node(at)
			if err != nil {
				return err
			}
			ref, err := a.session.ParseReference(args[0])
			if err != nil {
				return err
			}
			var orig symbol.Reference
			switch r := ref.(type) {
			case *symbol.Type:
				orig = node.OriginalType(r)
			case *symbol.Method:
				orig = node.OriginalMethodSignature(r)
			case *symbol.Field:
				orig = node.OriginalFieldSignature(r)
			}
			a.printer().Mapping(ref.SourceString(), orig.SourceString())
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Pass name or node id whose naming the reference is in")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var stopAt string
	cmd := &cobra.Command{
		Use:   "history <reference>",
		Short: "Show the name of an original reference after each pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.node(stopAt); err != nil {
				return err
			}
			ref, err := a.session.ParseReference(args[0])
			if err != nil {
				return err
			}
			p := a.printer()
			p.Title("History of " + ref.SourceString())
			for i, e := range a.session.History(ref) {
				p.Step(i+1, e.Pass, e.NodeID.String()[:8], e.Ref.SourceString())
				if stopAt != "" && (e.Pass == stopAt || e.NodeID.String() == stopAt) {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stopAt, "stop-at", "", "Last pass name or node id to show")
	return cmd
}

func (a *app) nodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the chain from the root to the tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer()
			p.Title("Lens chain")
			chain := a.session.Tip.Chain()
			for i := len(chain) - 1; i >= 0; i-- {
				n := chain[i]
				st := n.Stats()
				name := n.Name()
				if name == "" {
					name = "-"
				}
				p.Step(n.Depth(), name, n.Kind().String(), fmt.Sprintf("%s types=%d methods=%d fields=%d contextual=%d invoke=%d",
					shortID(n), st.Types, st.Methods, st.Fields, st.Contextual, st.InvokeKinds))
			}
			return nil
		},
	}
}

func (a *app) passesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "Summarize the executed passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer()
			p.Title("Passes of " + a.session.Name)
			for i, r := range a.session.Passes {
				var flags []string
				if !r.Recorded {
					flags = append(flags, "no-op")
				}
				if r.Tip.Kind() == lens.KindClearCodeRewriting {
					flags = append(flags, "rewritings-applied")
				}
				detail := fmt.Sprintf("pruned=%d classes=%d", r.Pruned, r.Classes)
				if len(flags) > 0 {
					detail += " " + strings.Join(flags, ",")
				}
				p.Step(i+1, r.Name, detail, shortID(r.Tip))
			}
			return nil
		},
	}
}

func (a *app) parseMethod(sig string) (*symbol.Method, error) {
	ref, err := a.session.ParseReference(sig)
	if err != nil {
		return nil, err
	}
	m, ok := ref.(*symbol.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotMethod, sig)
	}
	return m, nil
}
