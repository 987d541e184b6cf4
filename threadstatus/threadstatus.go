// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package threadstatus defines the agent's thread status values and their
// translation from VM thread states.
package threadstatus // import "go.opentelemetry.io/jvm-stacks/threadstatus"

import (
	"fmt"

	"go.opentelemetry.io/jvm-stacks/jvmti"
)

// Status is the agent's thread status as reported to the collector.
type Status int32

const (
	Unknown  Status = -1
	Zombie   Status = 0
	Running  Status = 1
	Sleeping Status = 2
	Monitor  Status = 3
	Wait     Status = 4
	Park     Status = 5
)

var statusNames = map[Status]string{
	Unknown:  "unknown",
	Zombie:   "zombie",
	Running:  "running",
	Sleeping: "sleeping",
	Monitor:  "monitor",
	Wait:     "wait",
	Park:     "park",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// FromJVMTI translates a VM thread state.
func FromJVMTI(state jvmti.ThreadState) Status {
	switch state & jvmti.JavaLangStateMask {
	case jvmti.JavaLangStateNew, jvmti.JavaLangStateTerminated:
		return Zombie
	case jvmti.JavaLangStateRunnable:
		return Running
	case jvmti.JavaLangStateBlocked:
		return Monitor
	}

	switch {
	case state.Has(jvmti.StateSleeping):
		return Sleeping
	case state.Has(jvmti.StateParked):
		return Park
	case state&jvmti.JavaLangStateMask == jvmti.JavaLangStateWaiting,
		state&jvmti.JavaLangStateMask == jvmti.JavaLangStateTimedWaiting:
		return Wait
	}
	return Unknown
}
