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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReader/pkg/ux"
	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/preview"
)

func newPreviewCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE...",
		Short: "Show the structural preview the model starts from",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			builder := preview.NewBuilder(preview.WithRadius(g.cfg.Agent.PreviewRadius))
			return runPreview(cmd.Context(), builder, docs, g.out(cmd.OutOrStdout()))
		},
	}
}

func runPreview(ctx context.Context, builder *preview.Builder, docs document.Input, out *ux.Output) error {
	set, err := document.NewSet(docs)
	if err != nil {
		return err
	}
	previews, err := builder.BuildAll(ctx, set)
	if err != nil {
		return err
	}

	if out.Mode() == ux.ModeMachine {
		return writeJSON(out.Writer(), previews)
	}
	for _, p := range previews {
		out.Box(fmt.Sprintf("Document %d (%d characters, %d landmarks)", p.DocumentID, p.Length, p.Landmarks), p.Text)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
