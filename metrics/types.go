// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/jvm-stacks/metrics"

// MetricID is the type for metric IDs.
type MetricID uint16

// MetricValue is the type for metric values.
type MetricValue int64

// MetricType distinguishes monotonic counters from gauges.
type MetricType uint8

const (
	MetricTypeCounter MetricType = iota + 1
	MetricTypeGauge
)

// MetricDefinition describes one metric.
type MetricDefinition struct {
	ID          MetricID
	Type        MetricType
	Name        string
	Description string
	Unit        string
}

// Summary maps metric IDs to their current in-process value.
type Summary map[MetricID]MetricValue
