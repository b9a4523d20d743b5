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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codeguardian/pkg/ux"
	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/store"
)

func newReportsCmd(c *cli) *cobra.Command {
	var limit int
	var showSuppressed bool
	cmd := &cobra.Command{
		Use:   "reports [id]",
		Short: "List saved scan reports or show one",
		Long: `Reports are saved by "scan --store" and by API requests with
"store": true. Without arguments the newest reports are listed.

The store is a single-writer database: stop "codeguardian serve" before
reading the same store from the CLI.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return withExitCode(ExitError, err)
			}
			defer st.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				report, err := st.Get(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return withExitCode(ExitError, fmt.Errorf("report %s not found", args[0]))
				}
				if err != nil {
					return withExitCode(ExitError, err)
				}
				if c.printer.Mode() == ux.ModeJSON {
					return c.printer.JSON(report)
				}
				c.printer.Title(fmt.Sprintf("Report %s (%s)", report.ID, report.CreatedAt.Local().Format(time.RFC1123)))
				return c.printer.Batch(reportBatch(report), ux.RenderOptions{ShowSuppressed: showSuppressed})
			}

			reports, err := st.List(ctx, limit)
			if err != nil {
				return withExitCode(ExitError, err)
			}
			if c.printer.Mode() == ux.ModeJSON {
				return c.printer.JSON(reports)
			}
			if len(reports) == 0 {
				c.printer.Info("no saved reports")
				return nil
			}
			for _, r := range reports {
				c.printer.Info(fmt.Sprintf("%s\t%s\t%s\tfiles=%d issues=%d max_risk=%.2f",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Kind,
					len(r.Results), r.TotalIssues, r.MaxRiskScore))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "Maximum number of reports to list")
	cmd.Flags().BoolVar(&showSuppressed, "show-suppressed", false,
		"Include findings silenced by inline ignore markers")
	return cmd
}

// reportBatch rebuilds a batch view of a stored report for rendering.
func reportBatch(r *store.Report) scanner.BatchResult {
	out := scanner.BatchResult{
		Entries:      r.Results,
		TotalIssues:  r.TotalIssues,
		MaxRiskScore: r.MaxRiskScore,
		MaxRiskLevel: scanner.LevelForScore(r.MaxRiskScore),
	}
	for _, e := range r.Results {
		if e.Failed() {
			out.FilesFailed++
		} else {
			out.FilesScanned++
		}
	}
	return out
}
