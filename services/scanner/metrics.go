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
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("codeguardian.scanner")

// instruments are the scanner's OTel metrics, created on first use from the
// global meter provider.
type instruments struct {
	scans      metric.Int64Counter
	findings   metric.Int64Counter
	duration   metric.Float64Histogram
	batchFiles metric.Int64Counter
}

var loadInstruments = sync.OnceValues(func() (*instruments, error) {
	m := otel.Meter("codeguardian.scanner")
	var in instruments
	var errs [4]error
	in.scans, errs[0] = m.Int64Counter("codeguardian_scans_total",
		metric.WithDescription("Single-file scans by resulting risk level"))
	in.findings, errs[1] = m.Int64Counter("codeguardian_findings_total",
		metric.WithDescription("Unsuppressed findings by category and severity"))
	in.duration, errs[2] = m.Float64Histogram("codeguardian_scan_duration_seconds",
		metric.WithDescription("Single-file scan latency"), metric.WithUnit("s"))
	in.batchFiles, errs[3] = m.Int64Counter("codeguardian_batch_files_total",
		metric.WithDescription("Batch entries by outcome"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &in, nil
})

func recordScan(ctx context.Context, result *ScanResult, took time.Duration) {
	in, err := loadInstruments()
	if err != nil {
		return
	}
	in.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("risk_level", string(result.Summary.RiskLevel))))
	in.duration.Record(ctx, took.Seconds())
	for _, f := range result.Findings {
		if !f.Suppressed {
			in.findings.Add(ctx, 1, metric.WithAttributes(
				attribute.String("category", string(f.Category)),
				attribute.String("severity", string(f.Severity)),
			))
		}
	}
}

// recordBatchFile counts one batch entry; status is "ok" or "error".
func recordBatchFile(ctx context.Context, status string) {
	if in, err := loadInstruments(); err == nil {
		in.batchFiles.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

// startScanSpan creates a span for a single-file scan.
func startScanSpan(ctx context.Context, filename string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scanner.Scan",
		trace.WithAttributes(
			attribute.String("scan.filename", filename),
			attribute.Int("scan.bytes", size),
		),
	)
}

// setScanSpanResult sets the result attributes on a scan span.
func setScanSpanResult(span trace.Span, result *ScanResult, err error) {
	span.SetAttributes(
		attribute.Int("scan.findings", len(result.Findings)),
		attribute.Float64("scan.risk_score", result.RiskScore),
		attribute.String("scan.risk_level", string(result.Summary.RiskLevel)),
		attribute.String("scan.language", result.Language),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// startBatchSpan creates a span for a batch scan.
func startBatchSpan(ctx context.Context, files int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scanner.ScanBatch",
		trace.WithAttributes(attribute.Int("batch.files", files)),
	)
}
