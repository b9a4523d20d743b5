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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/codeguardian/services/scanner"
)

func newPatternsCmd(c *cli) *cobra.Command {
	var patternsFile string
	cmd := &cobra.Command{
		Use:   "patterns [category]",
		Short: "List registered patterns or show details for a category",
		Long: `Without arguments, list every registered pattern. With a category,
print its severity, CWE, description and remediation guidance. Unknown
categories print a generic record rather than failing.

Examples:
  codeguardian patterns
  codeguardian patterns sql_injection
  codeguardian patterns --patterns org-patterns.yaml -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := c.newScanner(cmd.Context(), patternsFile, false)
			if err != nil {
				return withExitCode(ExitError, err)
			}
			reg := s.Registry()
			if len(args) == 0 {
				return c.printer.Patterns(reg.Version(), reg.Patterns())
			}
			return c.printer.PatternDetails(reg.PatternDetails(scanner.Category(args[0])))
		},
	}
	cmd.Flags().StringVar(&patternsFile, "patterns", "",
		"Organization pattern file merged with the built-in patterns")
	return cmd
}
