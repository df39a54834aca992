// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry for symlens and provides
// trace-correlated logging.
//
// Packages declare their own tracer and meter from the global providers;
// Init swaps those providers for SDK ones backed by the configured
// exporters. Without Init every span and instrument is a no-op.
package telemetry

import "errors"

// Sentinel errors for the telemetry package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned when an unknown exporter type is specified.
	ErrUnknownExporter = errors.New("unknown exporter type")

	// ErrMetricsUnavailable is returned when the Prometheus registry is
	// requested but the Prometheus exporter is not active.
	ErrMetricsUnavailable = errors.New("prometheus metrics exporter not active")
)
