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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codeguardian/pkg/ux"
	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/store"
)

type scanFlags struct {
	failOn         string
	patterns       string
	maskSecrets    bool
	showSuppressed bool
	showContext    bool
	includeBinary  bool
	stdinName      string
	store          bool
	timeout        time.Duration
}

func newScanCmd(c *cli) *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan files or directories for vulnerability patterns",
		Long: `Scan files, directories or standard input ("-") for vulnerability
patterns and report findings with a per-file risk score.

Examples:
  codeguardian scan src/                     # Scan a directory tree
  codeguardian scan app.js db.py             # Scan specific files
  cat handler.go | codeguardian scan - --stdin-filename handler.go
  codeguardian scan . --fail-on medium       # Gate CI at medium risk
  codeguardian scan . -o json > report.json  # Machine readable output

Exit Codes:
  0 = Risk below the --fail-on level
  1 = Risk at or above the --fail-on level
  2 = Error (bad arguments, unreadable files, invalid pattern file)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScan(cmd.Context(), args, f)
		},
	}

	cmd.Flags().StringVar(&f.failOn, "fail-on", "high",
		"Exit 1 when any file's risk level is at or above: low, medium, high, critical, none")
	cmd.Flags().StringVar(&f.patterns, "patterns", "",
		"Organization pattern file merged with the built-in patterns")
	cmd.Flags().BoolVar(&f.maskSecrets, "mask-secrets", false,
		"Mask secret values in matched text")
	cmd.Flags().BoolVar(&f.showSuppressed, "show-suppressed", false,
		"Include findings silenced by inline ignore markers")
	cmd.Flags().BoolVar(&f.showContext, "context", false,
		"Print surrounding source lines for each finding")
	cmd.Flags().BoolVar(&f.includeBinary, "include-binary", false,
		"Scan files that look binary")
	cmd.Flags().StringVar(&f.stdinName, "stdin-filename", "stdin",
		"Filename reported for content read from standard input")
	cmd.Flags().BoolVar(&f.store, "store", false,
		"Save the results to the report store")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Minute,
		"Total timeout; 0 disables it")
	return cmd
}

func (c *cli) runScan(ctx context.Context, args []string, f scanFlags) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	threshold, err := parseFailOn(f.failOn)
	if err != nil {
		return withExitCode(ExitError, err)
	}

	s, _, err := c.newScanner(ctx, f.patterns, f.maskSecrets)
	if err != nil {
		return withExitCode(ExitError, err)
	}

	paths, err := expandPaths(args)
	if err != nil {
		return withExitCode(ExitError, err)
	}
	if len(paths) == 0 {
		return withExitCode(ExitError, fmt.Errorf("no files found under %s", strings.Join(args, ", ")))
	}

	loaded, err := readInputs(ctx, paths, c.stdin, f.stdinName,
		int64(c.cfg.Scanner.MaxContentBytes), c.cfg.Scanner.Parallelism)
	if err != nil {
		return withExitCode(ExitError, err)
	}

	files := make([]scanner.FileInput, 0, len(loaded))
	unreadable := 0
	for _, lf := range loaded {
		switch {
		case lf.Err != nil:
			unreadable++
			c.logger.Warn("file unreadable", "path", lf.Path, "error", lf.Err.Error())
			c.printer.Warning(fmt.Sprintf("%s: %v", lf.Path, lf.Err))
		case lf.Binary && !f.includeBinary:
			c.logger.Debug("binary file skipped", "path", lf.Path)
		default:
			content := string(lf.Content)
			files = append(files, scanner.FileInput{Filename: lf.Path, Content: &content})
		}
	}

	start := time.Now()
	batch, err := scanChunked(ctx, s, files, c.cfg.Scanner.MaxBatchFiles, c.batchOptions())
	if err != nil {
		return withExitCode(ExitError, err)
	}
	c.logger.Info("scan complete",
		"files", batch.FilesScanned,
		"failed", batch.FilesFailed,
		"issues", batch.TotalIssues,
		"max_risk", batch.MaxRiskScore,
		"duration", time.Since(start).String(),
	)

	if err := c.printer.Batch(batch, ux.RenderOptions{
		ShowSuppressed: f.showSuppressed,
		ShowContext:    f.showContext,
	}); err != nil {
		return withExitCode(ExitError, err)
	}

	if f.store {
		if err := c.storeBatch(ctx, batch); err != nil {
			return withExitCode(ExitError, err)
		}
	}

	if threshold != "" && batch.TotalIssues > 0 && batch.MaxRiskLevel.AtLeast(threshold) {
		return errRiskFound
	}
	if failed := unreadable + batch.FilesFailed; failed > 0 {
		return withExitCode(ExitError, fmt.Errorf("%d file(s) could not be scanned", failed))
	}
	return nil
}

func (c *cli) storeBatch(ctx context.Context, batch scanner.BatchResult) error {
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := st.Put(ctx, store.NewBatchReport(batch))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	c.printer.Info("report saved: " + report.ID)
	return nil
}

// parseFailOn returns the gating level, or "" for "none".
func parseFailOn(s string) (scanner.RiskLevel, error) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return "", nil
	}
	level, err := scanner.ParseRiskLevel(s)
	if err != nil {
		return "", fmt.Errorf("--fail-on: %w", err)
	}
	return level, nil
}

// scanChunked scans files in batches of at most chunk files and merges
// the results in input order.
func scanChunked(ctx context.Context, s *scanner.Scanner, files []scanner.FileInput, chunk int, opts []scanner.BatchOption) (scanner.BatchResult, error) {
	if chunk <= 0 || chunk >= len(files) {
		return s.ScanBatch(ctx, files, opts...)
	}

	out := scanner.BatchResult{
		Entries:      make([]scanner.BatchEntry, 0, len(files)),
		MaxRiskLevel: scanner.RiskLow,
	}
	for start := 0; start < len(files); start += chunk {
		part, err := s.ScanBatch(ctx, files[start:min(start+chunk, len(files))], opts...)
		if err != nil {
			return scanner.BatchResult{}, err
		}
		out.Entries = append(out.Entries, part.Entries...)
		out.FilesScanned += part.FilesScanned
		out.FilesFailed += part.FilesFailed
		out.TotalIssues += part.TotalIssues
		if part.MaxRiskScore > out.MaxRiskScore {
			out.MaxRiskScore = part.MaxRiskScore
			out.MaxRiskLevel = part.MaxRiskLevel
		}
	}
	return out, nil
}
