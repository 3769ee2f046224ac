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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReader/pkg/ux"
	"github.com/AleutianAI/AleutianReader/services/reader/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	output     string
	verbose    bool

	cfg *config.Config
}

// out returns a styled writer for w honoring --output.
func (g *globalOptions) out(w io.Writer) *ux.Output {
	mode := ux.ParseMode(g.output)
	if mode == "" {
		if f, ok := w.(*os.File); ok {
			mode = ux.DetectMode(f)
		}
	}
	return ux.NewOutput(w, mode)
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "reader",
		Short: "Answer questions about long documents",
		Long: `reader lets a language model explore one or more documents with
read, search, figure and memo tools, then answer a question about them.

Configuration is read from ~/.aleutian/reader.yaml (created on first run)
and overridden by READER_* environment variables or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			g.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to the config file (default ~/.aleutian/reader.yaml)")
	root.PersistentFlags().StringVarP(&g.output, "output", "o", "", "Output style: rich, plain or json (default: detect)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Show previews, memo contents and progress")

	root.AddCommand(
		newAskCmd(g),
		newPreviewCmd(g),
		newServeCmd(g),
		newRunsCmd(g),
	)
	return root
}
