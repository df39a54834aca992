// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lens

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for lens operations. Lookups are too fine-grained
// for spans; only counters are recorded here.
var meter = otel.Meter("symlens.lens")

var (
	nodesCreated     metric.Int64Counter
	arrayCacheHits   metric.Int64Counter
	arrayCacheMisses metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		nodesCreated, err = meter.Int64Counter(
			"lens_nodes_created_total",
			metric.WithDescription("Total number of lens nodes created"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		arrayCacheHits, err = meter.Int64Counter(
			"lens_array_cache_hits_total",
			metric.WithDescription("Array type lookups answered from a node memo"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		arrayCacheMisses, err = meter.Int64Counter(
			"lens_array_cache_misses_total",
			metric.WithDescription("Array type lookups that rebuilt the array type"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordNodeCreated(l *Lens) {
	if err := initMetrics(); err != nil {
		return
	}
	nodesCreated.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", l.kind.String())),
	)
}

func recordArrayCacheAccess(hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	if hit {
		arrayCacheHits.Add(context.Background(), 1)
		return
	}
	arrayCacheMisses.Add(context.Background(), 1)
}
