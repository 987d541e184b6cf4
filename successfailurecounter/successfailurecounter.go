// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package successfailurecounter records the outcome of an operation into one
// of two metrics exactly once.
//
// This package is **not** thread safe. A SuccessFailureCounter belongs to the
// goroutine running the operation it accounts for.
package successfailurecounter // import "go.opentelemetry.io/jvm-stacks/successfailurecounter"

import (
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/jvm-stacks/metrics"
)

// SuccessFailureCounter increments a success or a failure metric exactly once.
type SuccessFailureCounter struct {
	success, fail metrics.MetricID
	sealed        bool
	failed        bool
}

// New returns a SuccessFailureCounter reporting into the given metrics.
func New(success, fail metrics.MetricID) SuccessFailureCounter {
	return SuccessFailureCounter{success: success, fail: fail}
}

func (sfc *SuccessFailureCounter) seal(failed bool) {
	if sfc.sealed {
		log.Errorf("Attempted to report success/failure status more than once.")
		return
	}
	sfc.sealed = true
	sfc.failed = failed
	if failed {
		metrics.Add(sfc.fail, 1)
	} else {
		metrics.Add(sfc.success, 1)
	}
}

// ReportSuccess increments the success metric or logs an error if the outcome
// was already reported.
func (sfc *SuccessFailureCounter) ReportSuccess() {
	sfc.seal(false)
}

// ReportFailure increments the failure metric or logs an error if the outcome
// was already reported.
func (sfc *SuccessFailureCounter) ReportFailure() {
	sfc.seal(true)
}

// DefaultToSuccess increments the success metric if nothing was reported.
func (sfc *SuccessFailureCounter) DefaultToSuccess() {
	if !sfc.sealed {
		sfc.seal(false)
	}
}

// DefaultToFailure increments the failure metric if nothing was reported.
func (sfc *SuccessFailureCounter) DefaultToFailure() {
	if !sfc.sealed {
		sfc.seal(true)
	}
}

// Failed reports whether the recorded outcome is a failure.
func (sfc *SuccessFailureCounter) Failed() bool {
	return sfc.failed
}
