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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope decodes the success envelope with a typed payload.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func newTestRouter(t *testing.T, withStore bool, cfg RouterConfig) *gin.Engine {
	t.Helper()
	var opts []HandlerOption
	if withStore {
		s, err := store.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		opts = append(opts, WithStore(s))
	}
	return NewRouter(NewHandlers(scanner.NewScanner(), opts...), cfg)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.False(t, resp.Success)
	assert.False(t, resp.Timestamp.IsZero())
	return resp
}

func TestHandleScan(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})

	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{
		"filename": "config.js",
		"content":  `const API_KEY = "sk-1234567890abcdef";`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	resp := decode[ScanResponse](t, rec)
	assert.Equal(t, "config.js", resp.Filename)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, scanner.CategorySecretExposure, resp.Findings[0].Category)
	assert.Equal(t, 2.5, resp.RiskScore)
	assert.Empty(t, resp.ReportID)
}

func TestHandleScan_CamelCaseWireFormat(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{"filename": "a.js", "content": "eval(x)"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, key := range []string{`"riskScore"`, `"matchedText"`, `"totalIssues"`, `"riskLevel"`, `"remediation"`} {
		assert.Contains(t, body, key)
	}
}

func TestHandleScan_NullContent(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	rec := do(t, router, http.MethodPost, "/v1/scan", `{"filename":"empty.js","content":null}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ScanResponse](t, rec)
	assert.Empty(t, resp.Findings)
	assert.Equal(t, 0.0, resp.RiskScore)
}

func TestHandleScan_BadRequests(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"filename":`},
		{"missing filename", `{"content":"eval(x)"}`},
		{"wrong type", `{"filename":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/v1/scan", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeInvalidRequest, decodeError(t, rec).Code)
		})
	}
}

func TestHandleScan_PayloadTooLarge(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{MaxBodyBytes: 64})
	body := map[string]any{"filename": "big.js", "content": strings.Repeat("a", 200)}

	rec := do(t, router, http.MethodPost, "/v1/scan", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, CodePayloadTooLarge, decodeError(t, rec).Code)
}

func TestHandleScan_PayloadTooLargeWithoutContentLength(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{MaxBodyBytes: 64})
	req := httptest.NewRequest(http.MethodPost, "/v1/scan",
		strings.NewReader(`{"filename":"big.js","content":"`+strings.Repeat("a", 200)+`"}`))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleScan_StoreRequestedWithoutStore(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{"filename": "a.js", "content": "x", "store": true})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeStoreUnavailable, decodeError(t, rec).Code)
}

func TestHandleScan_StoreAndFetchReport(t *testing.T) {
	router := newTestRouter(t, true, RouterConfig{})

	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{"filename": "a.js", "content": "eval(x)", "store": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ScanResponse](t, rec)
	require.NotEmpty(t, resp.ReportID)

	rec = do(t, router, http.MethodGet, "/v1/reports/"+resp.ReportID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[store.Report](t, rec)
	assert.Equal(t, resp.ReportID, report.ID)
	assert.Equal(t, store.KindSingle, report.Kind)
	require.Len(t, report.Results, 1)

	rec = do(t, router, http.MethodGet, "/v1/reports?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]store.Report](t, rec)
	require.Len(t, reports, 1)
	assert.Equal(t, resp.ReportID, reports[0].ID)
}

func TestHandleGetReport_Errors(t *testing.T) {
	withStore := newTestRouter(t, true, RouterConfig{})
	rec := do(t, withStore, http.MethodGet, "/v1/reports/2d3c0c39-8a3e-4c43-9f4e-0d4e9f5b6a11", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)

	rec = do(t, withStore, http.MethodGet, "/v1/reports?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noStore := newTestRouter(t, false, RouterConfig{})
	rec = do(t, noStore, http.MethodGet, "/v1/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// failingStore returns errors from every operation.
type failingStore struct{}

func (failingStore) Put(context.Context, *store.Report) (*store.Report, error) {
	return nil, errors.New("disk full")
}

func (failingStore) Get(context.Context, string) (*store.Report, error) {
	return nil, errors.New("corrupt value log")
}

func (failingStore) List(context.Context, int) ([]*store.Report, error) {
	return nil, errors.New("iterator failed")
}

func TestHandlers_StoreFailures(t *testing.T) {
	router := NewRouter(NewHandlers(scanner.NewScanner(), WithStore(failingStore{})), RouterConfig{})

	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{"filename": "a.js", "content": "x", "store": true})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeStoreFailed, decodeError(t, rec).Code)

	rec = do(t, router, http.MethodGet, "/v1/reports/anything", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/reports", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleScanBatch(t *testing.T) {
	router := newTestRouter(t, true, RouterConfig{})

	rec := do(t, router, http.MethodPost, "/v1/scan/batch", `{
		"files": [
			{"filename": "a.js", "content": "eval(x)"},
			{"filename": "b.js", "content": null},
			{"filename": "", "content": "eval(y)"}
		],
		"store": true
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[BatchResponse](t, rec)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "a.js", resp.Entries[0].Filename)
	require.NotNil(t, resp.Entries[0].Result)
	assert.Len(t, resp.Entries[0].Result.Findings, 1)
	require.NotNil(t, resp.Entries[1].Result)
	assert.Empty(t, resp.Entries[1].Result.Findings)
	assert.True(t, resp.Entries[2].Failed())
	assert.Equal(t, 1, resp.FilesFailed)
	assert.NotEmpty(t, resp.ReportID)
}

func TestHandleScanBatch_TooManyFiles(t *testing.T) {
	h := NewHandlers(scanner.NewScanner(), WithBatchOptions(scanner.WithMaxFiles(1)))
	router := NewRouter(h, RouterConfig{})

	rec := do(t, router, http.MethodPost, "/v1/scan/batch", `{"files":[{"filename":"a"},{"filename":"b"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBatchTooLarge, decodeError(t, rec).Code)
}

func TestHandleScanBatch_MissingFiles(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	rec := do(t, router, http.MethodPost, "/v1/scan/batch", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePatterns(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})

	rec := do(t, router, http.MethodGet, "/v1/patterns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[PatternsResponse](t, rec)
	assert.Equal(t, scanner.PatternVersion, list.Version)
	assert.Equal(t, scanner.DefaultRegistry().Len(), list.Count)
	assert.Len(t, list.Patterns, list.Count)
	assert.ElementsMatch(t, scanner.BuiltinCategories, list.Categories)

	rec = do(t, router, http.MethodGet, "/v1/patterns/xss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[scanner.PatternDetails](t, rec)
	assert.True(t, details.Known)
	assert.Equal(t, "CWE-79", details.CWE)

	rec = do(t, router, http.MethodGet, "/v1/patterns/no_such_thing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details = decode[scanner.PatternDetails](t, rec)
	assert.False(t, details.Known)
	assert.Equal(t, "CWE-000", details.CWE)
	assert.Equal(t, scanner.SeverityMedium, details.Severity)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	for i := 0; i < 3; i++ {
		rec := do(t, router, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, scanner.PatternVersion, resp.RegistryVersion)
		assert.False(t, resp.StoreEnabled)
	}
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/metrics", nil).Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("codeguardian_scans_total 1\n"))
	})
	router = newTestRouter(t, false, RouterConfig{MetricsHandler: metrics})
	rec := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "codeguardian_scans_total")
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodGet, "/v1/patterns", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/v1/patterns", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decodeError(t, rec).Code)
}

func TestRequestID_Propagated(t *testing.T) {
	router := newTestRouter(t, false, RouterConfig{})
	req := httptest.NewRequest(http.MethodGet, "/v1/patterns/xss", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 10))
	l := NewLimiter(2.5, 0)
	require.NotNil(t, l)
	assert.Equal(t, 3, l.Burst())
}
