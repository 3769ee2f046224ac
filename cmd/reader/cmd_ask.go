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
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReader/services/reader/agent"
	"github.com/AleutianAI/AleutianReader/services/reader/document"
)

type askOptions struct {
	question      string
	maxIterations int
	model         string
	metadata      bool
}

func newAskCmd(g *globalOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask -q QUESTION FILE...",
		Short: "Explore documents and answer a question",
		Long: `Explore one or more documents and answer a question about them.

Use "-" as a file name to read a document from standard input. Progress
is printed as the model reads and searches; the answer is printed last.`,
		Example: `  reader ask -q "What was Q3 revenue?" report.md
  cat notes.txt | reader ask -q "Summarize the decisions" -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger := newLogger(g.cfg, !g.verbose)
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, g.cfg, logger, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			return runAsk(ctx, rt.explorer, g, opts, docs, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.question, "question", "q", "", "The question to answer (required)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Step cap for this run (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Override the configured model")
	cmd.Flags().BoolVar(&opts.metadata, "metadata", false, "Print run statistics before completion")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

// errRunFailed signals a failed exploration whose error was already shown.
var errRunFailed = errors.New("exploration failed")

func runAsk(ctx context.Context, explorer *agent.Orchestrator, g *globalOptions, opts *askOptions,
	docs document.Input, w io.Writer) error {

	printer := newEventPrinter(g.out(w), g.verbose)
	res, err := explorer.Run(ctx, agent.Request{
		Question:  opts.question,
		Documents: docs,
		Options: agent.RunOptions{
			MaxIterations:   opts.maxIterations,
			Model:           opts.model,
			IncludeMetadata: opts.metadata,
		},
	}, printer.Sink)
	if err != nil {
		return fmt.Errorf("%w: %v", errRunFailed, err)
	}
	if g.verbose {
		printer.out.Muted(printer.progress())
		printer.out.Muted("session " + res.SessionID)
	}
	return nil
}

// readDocuments reads each path as one document, "-" meaning stdin.
// Files must be UTF-8 text.
func readDocuments(paths []string, stdin io.Reader) (document.Input, error) {
	docs := make(document.Input, 0, len(paths))
	usedStdin := false
	for _, p := range paths {
		var data []byte
		var err error
		if p == "-" {
			if usedStdin {
				return nil, errors.New("standard input can only be read once")
			}
			usedStdin = true
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s is not UTF-8 text", p)
		}
		docs = append(docs, string(data))
	}
	return docs, nil
}
