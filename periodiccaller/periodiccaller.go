// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller drives sampling rounds.
package periodiccaller // import "go.opentelemetry.io/jvm-stacks/periodiccaller"

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// AddJitter adds +/- jitter (jitter is [0..1]) to baseDuration.
func AddJitter(baseDuration time.Duration, jitter float64) time.Duration {
	if jitter < 0.0 || jitter > 1.0 {
		log.Errorf("Jitter (%f) out of range [0..1].", jitter)
		return baseDuration
	}
	return time.Duration((1 + jitter - 2*jitter*rand.Float64()) * float64(baseDuration))
}

// Start calls callback every interval until ctx is canceled or the returned
// function is called. A receive on trigger calls callback immediately with
// manual set. trigger may be nil. The returned function may be called more
// than once. A round already running when it is called completes, then the
// loop exits without re-arming the timer.
func Start(ctx context.Context, interval time.Duration, jitter float64,
	trigger <-chan struct{}, callback func(manual bool)) func() {
	timer := time.NewTimer(AddJitter(interval, jitter))
	done := make(chan struct{})
	var once sync.Once
	stopped := func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}

	go func() {
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				if stopped() {
					return
				}
				callback(false)
			case <-trigger:
				if stopped() {
					return
				}
				callback(true)
				// A manual round restarts the period.
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
			if stopped() {
				return
			}
			timer.Reset(AddJitter(interval, jitter))
		}
	}()

	return func() {
		once.Do(func() {
			close(done)
			timer.Stop()
		})
	}
}
