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
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// stdinArg is the path argument that reads content from standard input.
const stdinArg = "-"

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// skipDirs are never descended into when walking a directory argument.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".venv":        true,
	"__pycache__":  true,
	"node_modules": true,
	"vendor":       true,
}

// expandPaths resolves CLI arguments into an ordered, de-duplicated file
// list. Directories are walked in lexical order.
func expandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if arg == stdinArg {
			add(arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return out, nil
}

// loadedFile is one path after reading.
type loadedFile struct {
	Path    string
	Content []byte
	Binary  bool
	Err     error
}

// readInputs reads every path concurrently, preserving input order.
//
// Description:
//
//	At most maxBytes+1 bytes are read per file so oversized files reach
//	the scanner marked for truncation without being fully buffered. Read
//	failures are recorded per file and never abort the group. Only
//	context cancellation returns an error.
func readInputs(ctx context.Context, paths []string, stdin io.Reader, stdinName string, maxBytes int64, parallelism int) ([]loadedFile, error) {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	out := make([]loadedFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, path := range paths {
		if path == stdinArg {
			data, err := io.ReadAll(io.LimitReader(stdin, maxBytes+1))
			out[i] = loadedFile{Path: stdinName, Content: data, Err: err}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readLimited(path, maxBytes)
			out[i] = loadedFile{Path: path, Content: data, Err: err}
			if err == nil {
				out[i].Binary = isBinary(data)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readLimited(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxBytes+1))
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data[:min(len(data), binarySniffLen)], 0) >= 0
}
