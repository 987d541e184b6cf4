// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package periodiccaller

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/jvm-stacks/goruntime"
)

const selfClass = "Lgo.opentelemetry.io/jvm-stacks/periodiccaller;"

// leakedTimers counts goroutines still running a Start loop.
func leakedTimers(t *testing.T) int {
	t.Helper()
	runtime.GC()

	rt := goruntime.New()
	infos, _, err := rt.AllStackTraces(64)
	if err != nil {
		t.Errorf("Failed to list goroutines: %v", err)
		return -1
	}

	leaked := 0
	for _, info := range infos {
		for _, f := range info.Frames {
			class, _ := rt.MethodDeclaringClass(f.Method)
			sig, _, _ := rt.ClassSignature(class)
			name, _, _, _ := rt.MethodName(f.Method)
			if sig.Value == selfClass && strings.HasPrefix(name.Value, "Start.func") {
				leaked++
				break
			}
		}
	}
	return leaked
}

func checkForGoRoutineLeaks(t *testing.T) {
	t.Helper()
	assert.Eventually(t, func() bool { return leakedTimers(t) == 0 },
		time.Second, 10*time.Millisecond)
}

func TestLeakCheckSeesRunningTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := Start(ctx, time.Hour, 0, nil, func(bool) {})

	assert.Eventually(t, func() bool { return leakedTimers(t) == 1 },
		time.Second, 10*time.Millisecond)

	cancel()
	stop()
	checkForGoRoutineLeaks(t)
}

func TestStopEndsLoop(t *testing.T) {
	// ctx stays live, so only stop can end the goroutine.
	stop := Start(context.Background(), time.Hour, 0, nil, func(bool) {})
	assert.Eventually(t, func() bool { return leakedTimers(t) == 1 },
		time.Second, 10*time.Millisecond)

	stop()
	stop()
	checkForGoRoutineLeaks(t)
}

func TestStopDuringRound(t *testing.T) {
	defer checkForGoRoutineLeaks(t)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var rounds atomic.Int32
	stop := Start(context.Background(), time.Millisecond, 0, nil, func(bool) {
		if rounds.Add(1) == 1 {
			entered <- struct{}{}
			<-release
		}
	})

	<-entered
	stop()
	close(release)

	// The running round finishes and the timer is not re-armed.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), rounds.Load())
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond
	tests := map[string]struct {
		jitter   float64
		min, max time.Duration
	}{
		"none":         {jitter: 0, min: base, max: base},
		"twenty":       {jitter: 0.2, min: 80 * time.Millisecond, max: 120 * time.Millisecond},
		"full":         {jitter: 1, min: 0, max: 2 * base},
		"negative":     {jitter: -0.5, min: base, max: base},
		"out of range": {jitter: 1.5, min: base, max: base},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for range 100 {
				d := AddJitter(base, tc.jitter)
				assert.GreaterOrEqual(t, d, tc.min)
				assert.LessOrEqual(t, d, tc.max)
			}
		})
	}
}

func TestPeriodicCaller(t *testing.T) {
	defer checkForGoRoutineLeaks(t)
	interval := 10 * time.Millisecond

	for name, jitter := range map[string]float64{"plain": 0, "jitter": 0.2} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)

			done := make(chan bool)
			var counter atomic.Int32

			stop := Start(ctx, interval, jitter, nil, func(manual bool) {
				assert.False(t, manual)
				if counter.Load() < 2 && counter.Add(1) == 2 {
					done <- true
				}
			})

			select {
			case <-done:
				assert.Equal(t, int32(2), counter.Load())
			case <-ctx.Done():
				assert.Failf(t, "timeout", "%s: periodiccaller not working", name)
			}

			cancel()
			stop()
		})
	}
}

func TestPeriodicCallerCancellation(t *testing.T) {
	defer checkForGoRoutineLeaks(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	executions := make(chan struct{}, 20)
	stop := Start(ctx, time.Millisecond, 0.2, nil, func(bool) {
		executions <- struct{}{}
	})
	defer stop()

	<-ctx.Done()
	// Give the callback time to execute, if cancellation didn't work.
	time.Sleep(10 * time.Millisecond)

	assert.NotEmpty(t, executions)
	assert.Less(t, len(executions), 15)
}

func TestPeriodicCallerManualTrigger(t *testing.T) {
	defer checkForGoRoutineLeaks(t)
	numTrigger := 5
	// Larger than the time taken to execute the triggers.
	interval := 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()

	var counter atomic.Int32
	trigger := make(chan struct{})
	done := make(chan bool)

	stop := Start(ctx, interval, 0, trigger, func(manual bool) {
		assert.True(t, manual)
		if counter.Add(1) == int32(numTrigger) {
			done <- true
		}
	})
	defer stop()

	for range numTrigger {
		trigger <- struct{}{}
	}
	<-done

	assert.Equal(t, numTrigger, int(counter.Load()))
}
