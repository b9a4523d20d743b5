// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for CodeGuardian.
//
// The scanner and API packages instrument themselves through the global
// otel.Tracer and otel.Meter. Until Init runs those are no-ops, so library
// users pay nothing for instrumentation they did not ask for.
//
// # Exporters
//
// Traces go to an OTLP gRPC receiver (Jaeger, Tempo, any collector) or to
// stdout. Metrics are exposed for Prometheus scraping through
// MetricsHandler, or printed to stdout periodically. Either can be "none".
//
// # Usage
//
//	providers, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer providers.Shutdown(context.Background())
//	router.GET("/metrics", gin.WrapH(providers.MetricsHandler()))
package telemetry
