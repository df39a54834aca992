// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verify

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("symlens.verify")
	meter  = otel.Meter("symlens.verify")
)

var (
	verificationTotal  metric.Int64Counter
	verificationFailed metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		verificationTotal, err = meter.Int64Counter(
			"lens_verification_total",
			metric.WithDescription("Total number of lens verification checks run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verificationFailed, err = meter.Int64Counter(
			"lens_verification_failures",
			metric.WithDescription("References reported by failed verification checks"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordVerification(ctx context.Context, check string, failures int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("check", check),
		attribute.Bool("success", failures == 0),
	)
	verificationTotal.Add(ctx, 1, attrs)
	if failures > 0 {
		verificationFailed.Add(ctx, int64(failures), metric.WithAttributes(attribute.String("check", check)))
	}
}

func startCheckSpan(ctx context.Context, check string, items int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Verifier."+check,
		trace.WithAttributes(
			attribute.String("verify.check", check),
			attribute.Int("verify.items", items),
		),
	)
}
