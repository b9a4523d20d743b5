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
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/codeguardian/services/api"
	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/telemetry"
)

func newServeCmd(c *cli) *cobra.Command {
	var host string
	var port int
	var patternsFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner HTTP API",
		Long: `Serve the scan API until interrupted.

Endpoints:
  POST /v1/scan               Scan one file
  POST /v1/scan/batch         Scan many files
  GET  /v1/patterns           List patterns
  GET  /v1/patterns/:category Category details
  GET  /v1/reports            List saved reports (store enabled)
  GET  /v1/reports/:id        Fetch a saved report (store enabled)
  GET  /health                Liveness
  GET  /metrics               Prometheus metrics (prometheus exporter)

Example:
  curl -s localhost:8088/v1/scan -d '{"filename":"a.js","content":"eval(x)"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				c.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("patterns") {
				c.cfg.Scanner.PatternsFile = patternsFile
			}
			if err := c.serve(cmd.Context()); err != nil {
				return withExitCode(ExitError, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().StringVar(&patternsFile, "patterns", "", "Organization pattern file (overrides config)")
	return cmd
}

// serve runs the API until ctx is cancelled, then drains in-flight
// requests for at most the configured shutdown timeout.
func (c *cli) serve(ctx context.Context) error {
	logger := c.logger.Slog()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Environment = c.cfg.Telemetry.Environment
	tcfg.TraceExporter = c.cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = c.cfg.Telemetry.MetricExporter
	tcfg.OTLPEndpoint = c.cfg.Telemetry.OTLPEndpoint
	providers, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}()

	s, patternsPath, err := c.newScanner(ctx, c.cfg.Scanner.PatternsFile, false)
	if err != nil {
		return err
	}
	if c.cfg.Scanner.WatchPatterns && patternsPath != "" {
		w, err := scanner.NewPatternWatcher(patternsPath, scanner.DefaultRegistry(), s, 0, logger)
		if err != nil {
			return fmt.Errorf("watch patterns: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch patterns: %w", err)
		}
		defer w.Stop()
	}

	opts := []api.HandlerOption{
		api.WithHandlerLogger(logger),
		api.WithBatchOptions(c.batchOptions()...),
	}
	if c.cfg.Store.Enabled {
		st, err := c.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, api.WithStore(st))
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandlers(s, opts...), api.RouterConfig{
		ServiceName:    tcfg.ServiceName,
		MaxBodyBytes:   c.cfg.Server.MaxContentBytes,
		RateLimitRPS:   c.cfg.Server.RateLimitRPS,
		RateLimitBurst: c.cfg.Server.RateLimitBurst,
		MetricsHandler: providers.MetricsHandler(),
		Logger:         logger,
	})

	ln, err := net.Listen("tcp", net.JoinHostPort(c.cfg.Server.Host, strconv.Itoa(c.cfg.Server.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return runServer(ctx, srv, ln, c.cfg.Server.ShutdownTimeout, c)
}

const defaultShutdownGrace = 15 * time.Second

// runServer serves on ln until ctx ends, then shuts srv down gracefully.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration, c *cli) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	c.logger.Info("codeguardian API listening",
		"address", ln.Addr().String(),
		"version", version,
		"store", c.cfg.Store.Enabled,
	)
	c.printer.Success("listening on http://" + ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	c.logger.Info("shutting down", "grace", grace.String())
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
