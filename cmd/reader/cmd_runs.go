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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReader/pkg/ux"
	"github.com/AleutianAI/AleutianReader/services/reader/archive"
	"github.com/AleutianAI/AleutianReader/services/reader/handlers"
)

func newRunsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived explorations",
		Long: `Inspect explorations saved in the local run archive.

The archive must be enabled (archive.enabled or READER_ARCHIVE_ENABLED).
It is locked while "reader serve" is running; use GET /v1/runs instead.`,
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(g)
			if err != nil {
				return err
			}
			defer store.Close()
			return listRuns(cmd, store, limit, g.out(cmd.OutOrStdout()))
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", handlers.DefaultListLimit, "Maximum runs to list")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run with its answer and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(g)
			if err != nil {
				return err
			}
			defer store.Close()
			return showRun(cmd, store, args[0], g.out(cmd.OutOrStdout()))
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func openArchive(g *globalOptions) (*archive.Store, error) {
	if !g.cfg.Archive.Enabled {
		return nil, errors.New("the run archive is disabled; set archive.enabled in the config")
	}
	return archive.Open(archive.Config{Path: expandHome(g.cfg.Archive.Path), TTL: g.cfg.Archive.TTL})
}

func listRuns(cmd *cobra.Command, store handlers.RunStore, limit int, out *ux.Output) error {
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if out.Mode() == ux.ModeMachine {
		return writeJSON(out.Writer(), runs)
	}
	if len(runs) == 0 {
		out.Muted("no archived runs")
		return nil
	}
	for _, r := range runs {
		icon := ux.IconSuccess
		if r.State == "FAILED" {
			icon = ux.IconError
		}
		out.Line(icon, fmt.Sprintf("%s  %s  %-22s %2d steps  %s",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.State, r.Steps, ux.Truncate(r.Question, 50)))
	}
	return nil
}

func showRun(cmd *cobra.Command, store handlers.RunStore, id string, out *ux.Output) error {
	rec, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if out.Mode() == ux.ModeMachine {
		return writeJSON(out.Writer(), rec)
	}
	out.Title(rec.Question)
	out.Info(fmt.Sprintf("%s after %d steps in %dms over %d documents", rec.State, rec.Steps, rec.DurationMs, rec.DocumentCount))
	if rec.Error != "" {
		out.ErrorBox("Error", rec.Error)
	} else {
		out.Box("Answer", rec.Answer)
	}
	if rec.Memo != "" {
		out.Box("Memo", rec.Memo)
	}
	for _, e := range rec.Events {
		out.Muted(fmt.Sprintf("%3d  %s", e.Seq, e.Type))
	}
	return nil
}
