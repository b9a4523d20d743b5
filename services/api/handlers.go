// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the scanner over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/store"
	"github.com/AleutianAI/codeguardian/services/telemetry"
)

// ReportStore persists scan reports. *store.Store implements it.
type ReportStore interface {
	Put(ctx context.Context, r *store.Report) (*store.Report, error)
	Get(ctx context.Context, id string) (*store.Report, error)
	List(ctx context.Context, limit int) ([]*store.Report, error)
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithStore enables report persistence.
func WithStore(s ReportStore) HandlerOption {
	return func(h *Handlers) {
		h.store = s
	}
}

// WithBatchOptions sets options for every batch scan.
func WithBatchOptions(opts ...scanner.BatchOption) HandlerOption {
	return func(h *Handlers) {
		h.batchOpts = append(h.batchOpts, opts...)
	}
}

// WithHandlerLogger sets the handlers' logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handlers serves the scan API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	scanner   *scanner.Scanner
	batchOpts []scanner.BatchOption
	store     ReportStore
	logger    *slog.Logger
}

// NewHandlers creates handlers over s.
func NewHandlers(s *scanner.Scanner, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		scanner: s,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("component", "api"))
	return h
}

// HandleScan handles POST /v1/scan.
//
// Response:
//
//	200 OK: ScanResponse
//	400 Bad Request: Malformed body or missing filename
//	413 Payload Too Large: Body over the configured limit
//	503 Service Unavailable: store requested but not configured
func (h *Handlers) HandleScan(c *gin.Context) {
	logger := h.requestLogger(c, "HandleScan")

	var req ScanRequest
	if !h.bind(c, logger, &req) {
		return
	}
	if req.Store && h.store == nil {
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "report store is not configured", "")
		return
	}

	content := ""
	if req.Content != nil {
		content = *req.Content
	}
	ctx := c.Request.Context()
	result := h.scanner.Scan(ctx, content, req.Filename)
	resp := ScanResponse{ScanResult: result}

	if req.Store {
		report, err := h.store.Put(ctx, store.NewSingleReport(result))
		if err != nil {
			logger.Error("storing report failed", slog.String("error", err.Error()))
			respondError(c, http.StatusInternalServerError, CodeStoreFailed, "failed to store report", err.Error())
			return
		}
		resp.ReportID = report.ID
	}

	logger.Info("file scanned",
		slog.String("filename", req.Filename),
		slog.Int("findings", len(result.Findings)),
		slog.Float64("risk_score", result.RiskScore),
	)
	respondOK(c, resp)
}

// HandleScanBatch handles POST /v1/scan/batch.
//
// Response:
//
//	200 OK: BatchResponse, one entry per file in request order
//	400 Bad Request: Malformed body or too many files
//	413 Payload Too Large: Body over the configured limit
//	503 Service Unavailable: store requested but not configured
func (h *Handlers) HandleScanBatch(c *gin.Context) {
	logger := h.requestLogger(c, "HandleScanBatch")

	var req BatchRequest
	if !h.bind(c, logger, &req) {
		return
	}
	if req.Store && h.store == nil {
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "report store is not configured", "")
		return
	}

	ctx := c.Request.Context()
	result, err := h.scanner.ScanBatch(ctx, req.Files, h.batchOpts...)
	if err != nil {
		status, code := http.StatusInternalServerError, "SCAN_FAILED"
		if errors.Is(err, scanner.ErrBatchTooLarge) {
			status, code = http.StatusBadRequest, CodeBatchTooLarge
		}
		logger.Warn("batch rejected", slog.String("error", err.Error()))
		respondError(c, status, code, err.Error(), "")
		return
	}
	resp := BatchResponse{BatchResult: result}

	if req.Store {
		report, err := h.store.Put(ctx, store.NewBatchReport(result))
		if err != nil {
			logger.Error("storing report failed", slog.String("error", err.Error()))
			respondError(c, http.StatusInternalServerError, CodeStoreFailed, "failed to store report", err.Error())
			return
		}
		resp.ReportID = report.ID
	}

	logger.Info("batch scanned",
		slog.Int("files", len(req.Files)),
		slog.Int("failed", result.FilesFailed),
		slog.Int("issues", result.TotalIssues),
	)
	respondOK(c, resp)
}

// HandleListPatterns handles GET /v1/patterns.
func (h *Handlers) HandleListPatterns(c *gin.Context) {
	reg := h.scanner.Registry()
	respondOK(c, PatternsResponse{
		Version:    reg.Version(),
		Count:      reg.Len(),
		Categories: reg.Categories(),
		Patterns:   reg.Patterns(),
	})
}

// HandlePatternDetails handles GET /v1/patterns/:category. Unknown
// categories return the fallback details with 200.
func (h *Handlers) HandlePatternDetails(c *gin.Context) {
	category := scanner.Category(c.Param("category"))
	respondOK(c, h.scanner.Registry().PatternDetails(category))
}

// HandleGetReport handles GET /v1/reports/:id.
//
// Response:
//
//	200 OK: store.Report
//	404 Not Found: Unknown report
//	503 Service Unavailable: store not configured
func (h *Handlers) HandleGetReport(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetReport")
	if h.store == nil {
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "report store is not configured", "")
		return
	}

	id := c.Param("id")
	report, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, CodeNotFound, "report not found", id)
			return
		}
		logger.Error("reading report failed", slog.String("id", id), slog.String("error", err.Error()))
		respondError(c, http.StatusInternalServerError, CodeStoreFailed, "failed to read report", err.Error())
		return
	}
	respondOK(c, report)
}

// HandleListReports handles GET /v1/reports?limit=N.
func (h *Handlers) HandleListReports(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListReports")
	if h.store == nil {
		respondError(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "report store is not configured", "")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, CodeInvalidRequest, "limit must be a non-negative integer", raw)
			return
		}
		limit = n
	}

	reports, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		logger.Error("listing reports failed", slog.String("error", err.Error()))
		respondError(c, http.StatusInternalServerError, CodeStoreFailed, "failed to list reports", err.Error())
		return
	}
	respondOK(c, reports)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:               "healthy",
		RegistryVersion:      h.scanner.Registry().Version(),
		RiskAlgorithmVersion: scanner.RiskAlgorithmVersion,
		StoreEnabled:         h.store != nil,
	})
}

// bind decodes the JSON body into dst, writing the error response itself
// on failure.
func (h *Handlers) bind(c *gin.Context, logger *slog.Logger, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logger.Warn("request body too large", slog.Int64("limit", tooLarge.Limit))
		respondError(c, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large",
			"limit "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return false
	}
	logger.Warn("invalid request body", slog.String("error", err.Error()))
	respondError(c, http.StatusBadRequest, CodeInvalidRequest, "invalid request body", err.Error())
	return false
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondError(c *gin.Context, status int, code, msg, details string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:   false,
		Error:     msg,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}
