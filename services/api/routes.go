// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/codeguardian/services/telemetry"
)

// RegisterRoutes registers the scan API on a router group.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/scan - Scan one file
//	POST /v1/scan/batch - Scan many files
//	GET  /v1/patterns - List the active registry
//	GET  /v1/patterns/:category - Pattern details for a category
//	GET  /v1/reports - Recent stored reports
//	GET  /v1/reports/:id - One stored report
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/scan", handlers.HandleScan)
	rg.POST("/scan/batch", handlers.HandleScanBatch)

	rg.GET("/patterns", handlers.HandleListPatterns)
	rg.GET("/patterns/:category", handlers.HandlePatternDetails)

	rg.GET("/reports", handlers.HandleListReports)
	rg.GET("/reports/:id", handlers.HandleGetReport)
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName labels otelgin spans.
	ServiceName string

	// MaxBodyBytes caps request bodies on /v1. Zero disables the cap.
	MaxBodyBytes int64

	// RateLimitRPS and RateLimitBurst configure the /v1 token bucket.
	// Zero RPS disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// NewRouter builds the gin engine with middleware and all routes.
//
// Description:
//
//	Global middleware: panic recovery, otelgin tracing, request IDs,
//	request metrics and access logging. The /v1 group adds the rate limiter
//	and the body cap. /health is never rate limited. /metrics is
//	mounted when cfg.MetricsHandler is set.
func NewRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "codeguardian"
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(RequestID())

	if m, err := telemetry.NewHTTPMetrics(otel.Meter("codeguardian.api")); err == nil {
		router.Use(telemetry.MetricsMiddleware(m))
	} else if cfg.Logger != nil {
		cfg.Logger.Warn("http metrics disabled", slog.String("error", err.Error()))
	}
	router.Use(AccessLog(cfg.Logger))

	router.GET("/health", h.HandleHealth)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/v1")
	v1.Use(RateLimit(NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)), BodyLimit(cfg.MaxBodyBytes))
	RegisterRoutes(v1, h)
	return router
}
