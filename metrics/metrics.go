// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics records the agent's internal counters and gauges.
//
// Every value goes to an OTel instrument obtained from the global meter
// provider and to an in-process total that Totals returns, so hosts without
// an OTel pipeline can still log a summary.
package metrics // import "go.opentelemetry.io/jvm-stacks/metrics"

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"go.opentelemetry.io/jvm-stacks/vc"
)

var (
	meter = otel.Meter("go.opentelemetry.io/jvm-stacks",
		metric.WithInstrumentationVersion(vc.Version()))
	counters = map[MetricID]metric.Int64Counter{}
	gauges   = map[MetricID]metric.Int64Gauge{}

	metricTypes = map[MetricID]MetricType{}

	// mutex serializes updates of totals
	mutex  sync.Mutex
	totals = make([]MetricValue, IDMax)
)

func init() {
	for _, md := range GetDefinitions() {
		metricTypes[md.ID] = md.Type
		switch typ := md.Type; typ {
		case MetricTypeCounter:
			counter, err := meter.Int64Counter(md.Name,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Counter: %v", err)
				continue
			}
			counters[md.ID] = counter
		case MetricTypeGauge:
			gauge, err := meter.Int64Gauge(md.Name,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Gauge: %v", err)
				continue
			}
			gauges[md.ID] = gauge
		default:
			panic(fmt.Sprintf("Unknown metric type: %v", typ))
		}
	}
}

// Add increments the counter id by value.
// Zero values are dropped, as are IDs that are not counters.
func Add(id MetricID, value MetricValue) {
	if value == 0 || metricTypes[id] != MetricTypeCounter {
		return
	}

	mutex.Lock()
	totals[id] += value
	mutex.Unlock()

	if counter, ok := counters[id]; ok {
		counter.Add(context.Background(), int64(value))
	}
}

// Set records value for the gauge id.
func Set(id MetricID, value MetricValue) {
	if metricTypes[id] != MetricTypeGauge {
		return
	}

	mutex.Lock()
	totals[id] = value
	mutex.Unlock()

	if gauge, ok := gauges[id]; ok {
		gauge.Record(context.Background(), int64(value))
	}
}

// Totals returns the accumulated counter values and last gauge values.
// Metrics that were never recorded are left out.
func Totals() Summary {
	mutex.Lock()
	defer mutex.Unlock()

	s := make(Summary)
	for id, v := range totals {
		if v != 0 {
			s[MetricID(id)] = v
		}
	}
	return s
}

// Name returns the instrument name of id.
func Name(id MetricID) string {
	for _, md := range definitions {
		if md.ID == id {
			return md.Name
		}
	}
	return fmt.Sprintf("unknown.%d", id)
}

// reset clears the in-process totals.
func reset() {
	mutex.Lock()
	defer mutex.Unlock()
	for i := range totals {
		totals[i] = 0
	}
}
