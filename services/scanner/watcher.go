// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits after the last file
// event before reloading.
const DefaultReloadDebounce = 250 * time.Millisecond

// RegistrySetter receives reloaded registries. *Scanner implements it.
type RegistrySetter interface {
	SetRegistry(r *Registry)
}

// PatternWatcher reloads an organization pattern file when it changes.
//
// Description:
//
//	The watcher observes the file's parent directory, since editors often
//	replace files by rename, and filters events down to the file itself.
//	Events are debounced; once quiet, the file is merged into the base
//	registry and handed to the target. A file that fails to load leaves
//	the target's current registry in place.
//
// Thread Safety: Safe for concurrent use. Reloads run on a single goroutine.
type PatternWatcher struct {
	path     string
	base     *Registry
	target   RegistrySetter
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc // non-nil while the event loop runs
	stopped chan struct{}      // closed when the event loop returns
	closed  bool
}

// NewPatternWatcher creates a watcher for path.
//
// Inputs:
//
//	path - Organization pattern file.
//	base - Registry the file is merged into on every reload.
//	target - Receives each successfully reloaded registry.
//	debounce - Quiet period before reloading; <= 0 uses DefaultReloadDebounce.
//	logger - Nil uses slog.Default().
//
// Outputs:
//
//	*PatternWatcher - Call Start to begin watching.
//	error - Non-nil if the fsnotify watcher could not be created.
func NewPatternWatcher(path string, base *Registry, target RegistrySetter, debounce time.Duration, logger *slog.Logger) (*PatternWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving pattern file path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating pattern file watcher: %w", err)
	}
	return &PatternWatcher{
		path:     abs,
		base:     base,
		target:   target,
		fs:       fs,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "pattern_watcher"), slog.String("path", abs)),
	}, nil
}

// Start begins watching. It returns once the watch is registered; events
// are handled on a background goroutine until Stop or ctx cancellation.
// Starting a running or stopped watcher does nothing.
func (w *PatternWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil || w.closed {
		return nil
	}

	dir := filepath.Dir(w.path)
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.stopped = make(chan struct{})
	go func() {
		defer close(w.stopped)
		w.run(ctx)
	}()
	w.logger.Info("watching pattern file")
	return nil
}

// Stop ends the event loop and releases the fsnotify watcher. It waits for
// an in-flight reload to finish. Safe to call more than once.
func (w *PatternWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
		<-w.stopped
	}
	_ = w.fs.Close()
}

// Reload loads the pattern file now and, on success, hands the merged
// registry to the target.
func (w *PatternWatcher) Reload(ctx context.Context) error {
	reg, err := LoadRegistry(ctx, w.base, w.path)
	if err != nil {
		w.logger.Warn("pattern reload rejected, keeping current registry", slog.String("error", err.Error()))
		return err
	}
	w.target.SetRegistry(reg)
	w.logger.Info("pattern registry reloaded",
		slog.String("version", reg.Version()),
		slog.Int("patterns", reg.Len()),
	)
	return nil
}

// relevant reports whether ev may have changed the pattern file's content.
func (w *PatternWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *PatternWatcher) run(ctx context.Context) {
	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				quiet.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("pattern watcher error", slog.String("error", err.Error()))
		case <-quiet.C:
			_ = w.Reload(ctx)
		}
	}
}
