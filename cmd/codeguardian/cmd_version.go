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
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codeguardian/pkg/ux"
	"github.com/AleutianAI/codeguardian/services/scanner"
)

// versionInfo is the JSON shape of the version command.
type versionInfo struct {
	Version              string `json:"version"`
	PatternVersion       string `json:"patternVersion"`
	RiskAlgorithmVersion string `json:"riskAlgorithmVersion"`
	GoVersion            string `json:"goVersion"`
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			info := versionInfo{
				Version:              version,
				PatternVersion:       scanner.PatternVersion,
				RiskAlgorithmVersion: scanner.RiskAlgorithmVersion,
				GoVersion:            runtime.Version(),
			}
			if c.printer.Mode() == ux.ModeJSON {
				return c.printer.JSON(info)
			}
			fmt.Fprintf(c.stdout, "codeguardian %s\n", info.Version)
			fmt.Fprintf(c.stdout, "patterns     %s\n", info.PatternVersion)
			fmt.Fprintf(c.stdout, "risk model   %s\n", info.RiskAlgorithmVersion)
			fmt.Fprintf(c.stdout, "go           %s\n", info.GoVersion)
			return nil
		},
	}
}
