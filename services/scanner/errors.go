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

import "errors"

// Sentinel errors for the scanner package.
var (
	// ErrInvalidPattern indicates a registry entry failed validation.
	// Raised only while constructing a registry, never during a scan.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrEmptyFilename indicates a batch entry without a filename.
	ErrEmptyFilename = errors.New("filename is required")

	// ErrBatchTooLarge indicates a batch exceeding the configured file limit.
	ErrBatchTooLarge = errors.New("batch exceeds maximum file count")

	// ErrScanPanic indicates a scan worker panicked. The panic value is
	// included in the wrapping error's message.
	ErrScanPanic = errors.New("scan panicked")

	// ErrPatternFileTooLarge indicates a pattern file over MaxPatternFileSize.
	ErrPatternFileTooLarge = errors.New("pattern file too large")

	// ErrInvalidPatternFile indicates a pattern file that cannot be parsed
	// or has an unsupported version.
	ErrInvalidPatternFile = errors.New("invalid pattern file")
)
