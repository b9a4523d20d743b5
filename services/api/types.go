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
	"time"

	"github.com/AleutianAI/codeguardian/services/scanner"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeBatchTooLarge    = "BATCH_TOO_LARGE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeStoreFailed      = "STORE_FAILED"
	CodeNotFound         = "NOT_FOUND"
)

// Response is the success envelope.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanRequest is the body of POST /v1/scan. A missing content is scanned
// as empty text.
type ScanRequest struct {
	Filename string  `json:"filename" binding:"required,max=4096"`
	Content  *string `json:"content"`
	Store    bool    `json:"store"`
}

// BatchRequest is the body of POST /v1/scan/batch. Entries with an empty
// filename fail individually rather than rejecting the request.
type BatchRequest struct {
	Files []scanner.FileInput `json:"files" binding:"required"`
	Store bool                `json:"store"`
}

// ScanResponse is a ScanResult plus the ID of the stored report, if any.
type ScanResponse struct {
	scanner.ScanResult
	ReportID string `json:"reportId,omitempty"`
}

// BatchResponse is a BatchResult plus the ID of the stored report, if any.
type BatchResponse struct {
	scanner.BatchResult
	ReportID string `json:"reportId,omitempty"`
}

// PatternsResponse lists the active registry.
type PatternsResponse struct {
	Version    string             `json:"version"`
	Count      int                `json:"count"`
	Categories []scanner.Category `json:"categories"`
	Patterns   []scanner.Pattern  `json:"patterns"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status               string `json:"status"`
	RegistryVersion      string `json:"registryVersion"`
	RiskAlgorithmVersion string `json:"riskAlgorithmVersion"`
	StoreEnabled         bool   `json:"storeEnabled"`
}
