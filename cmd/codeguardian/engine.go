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

	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/store"
)

// newScanner builds a scanner from configuration, merging the
// organization pattern file when one is configured or discovered.
func (c *cli) newScanner(ctx context.Context, patternsFile string, maskSecrets bool) (*scanner.Scanner, string, error) {
	if patternsFile == "" {
		patternsFile = c.cfg.Scanner.PatternsFile
	}
	path := scanner.PatternFilePath(patternsFile)

	reg, err := scanner.LoadRegistry(ctx, scanner.DefaultRegistry(), path)
	if err != nil {
		return nil, "", fmt.Errorf("load patterns: %w", err)
	}
	if path != "" {
		c.logger.Info("organization patterns loaded",
			"path", path,
			"patterns", reg.Len(),
			"registry_version", reg.Version(),
		)
	}

	s := scanner.NewScanner(
		scanner.WithRegistry(reg),
		scanner.WithMaxContentSize(c.cfg.Scanner.MaxContentBytes),
		scanner.WithMaxMatchLength(c.cfg.Scanner.MaxMatchLength),
		scanner.WithContextLines(c.cfg.Scanner.ContextLines),
		scanner.WithMaskSecrets(maskSecrets || c.cfg.Scanner.MaskSecrets),
		scanner.WithLogger(c.logger.Slog()),
	)
	return s, path, nil
}

// batchOptions translates scanner configuration into batch options.
func (c *cli) batchOptions() []scanner.BatchOption {
	return []scanner.BatchOption{
		scanner.WithParallelism(c.cfg.Scanner.Parallelism),
		scanner.WithMaxFiles(c.cfg.Scanner.MaxBatchFiles),
		scanner.WithBatchLogger(c.logger.Slog()),
	}
}

// openStore opens the configured report store.
func (c *cli) openStore() (*store.Store, error) {
	sc := c.cfg.Store
	var cfg store.Config
	if sc.InMemory {
		cfg = store.InMemoryConfig()
	} else {
		cfg = store.DefaultConfig(sc.Path)
	}
	cfg.Retention = sc.Retention()
	cfg.Logger = c.logger.Slog()

	s, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return s, nil
}
