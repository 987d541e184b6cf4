// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package goruntime // import "go.opentelemetry.io/jvm-stacks/goruntime"

import (
	"strings"

	"go.opentelemetry.io/jvm-stacks/jvmti"
)

const (
	stateParked = jvmti.JavaLangStateWaiting | jvmti.StateParked
	stateInWait = jvmti.JavaLangStateWaiting | jvmti.StateInObjectWait
	stateNative = jvmti.JavaLangStateRunnable | jvmti.StateInNative
)

// goroutineStates maps goroutine statuses and wait reasons, as printed in
// tracebacks, to VM thread states.
var goroutineStates = map[string]jvmti.ThreadState{
	"idle":      jvmti.JavaLangStateNew,
	"runnable":  jvmti.JavaLangStateRunnable,
	"running":   jvmti.JavaLangStateRunnable,
	"copystack": jvmti.JavaLangStateRunnable,
	"preempted": jvmti.JavaLangStateRunnable,
	"syscall":   stateNative,
	"IO wait":   stateNative,
	"dead":      jvmti.JavaLangStateTerminated,

	"sleep": jvmti.JavaLangStateTimedWaiting | jvmti.StateSleeping,

	"semacquire":         jvmti.JavaLangStateBlocked,
	"sync.Mutex.Lock":    jvmti.JavaLangStateBlocked,
	"sync.RWMutex.Lock":  jvmti.JavaLangStateBlocked,
	"sync.RWMutex.RLock": jvmti.JavaLangStateBlocked,

	"sync.Cond.Wait":      stateInWait,
	"sync.WaitGroup.Wait": stateInWait,
}

// threadState translates the status in a goroutine header.
func threadState(status string) jvmti.ThreadState {
	if s, ok := goroutineStates[status]; ok {
		return s
	}
	if strings.HasPrefix(status, "chan ") || strings.HasPrefix(status, "select") {
		return stateParked
	}
	return jvmti.JavaLangStateWaiting
}
