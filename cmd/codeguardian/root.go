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

	"github.com/AleutianAI/codeguardian/pkg/config"
	"github.com/AleutianAI/codeguardian/pkg/logging"
	"github.com/AleutianAI/codeguardian/pkg/ux"
)

// cli holds state shared by every subcommand for one invocation.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	output     string
	json       bool

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

// newRootCmd builds the command tree. Callers defer the returned cli's
// teardown so the log file is closed on every exit path.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) (*cobra.Command, *cli) {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "codeguardian",
		Short: "Static vulnerability pattern scanner",
		Long: `CodeGuardian scans source text for vulnerability patterns such as
hardcoded secrets, SQL injection, XSS, weak cryptography, code and
command injection and path traversal. Each finding carries a CWE
reference and remediation guidance; each file gets a 0-10 risk score.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.configPath, "config", "",
		"Config file (default $"+config.ConfigEnv+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "",
		"Output mode: rich, plain, json (default: rich on a terminal)")
	root.PersistentFlags().BoolVar(&c.json, "json", false, "Shorthand for --output json")

	root.AddCommand(
		newScanCmd(c),
		newPatternsCmd(c),
		newServeCmd(c),
		newReportsCmd(c),
		newVersionCmd(c),
	)
	return root, c
}

// setup loads configuration and builds the logger and printer.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return withExitCode(ExitError, err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return withExitCode(ExitError, err)
	}
	c.cfg = cfg
	c.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "codeguardian",
		JSON:    cfg.Logging.JSON,
		Writer:  c.stderr,
	})

	mode, err := c.outputMode()
	if err != nil {
		return withExitCode(ExitError, err)
	}
	c.printer = ux.NewPrinter(c.stdout, mode)
	c.logger.Debug("cli initialized",
		"command", cmd.CommandPath(),
		"output", string(mode),
		"config", c.configPath,
	)
	return nil
}

func (c *cli) outputMode() (ux.Mode, error) {
	if c.json {
		return ux.ModeJSON, nil
	}
	if c.output != "" {
		mode, err := ux.ParseMode(c.output)
		if err != nil {
			return "", fmt.Errorf("--output: %w", err)
		}
		return mode, nil
	}
	f, _ := c.stdout.(*os.File)
	return ux.DetectMode(f), nil
}

func (c *cli) teardown() {
	if c.logger != nil {
		_ = c.logger.Close()
	}
}
