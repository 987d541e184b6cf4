// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package jvmti // import "go.opentelemetry.io/jvm-stacks/jvmti"

// ThreadState is the VM's thread state bit set.
type ThreadState uint32

// Thread state bits, as in jvmti.h.
const (
	StateAlive                 ThreadState = 0x0001
	StateTerminated            ThreadState = 0x0002
	StateRunnable              ThreadState = 0x0004
	StateWaitingIndefinitely   ThreadState = 0x0010
	StateWaitingWithTimeout    ThreadState = 0x0020
	StateSleeping              ThreadState = 0x0040
	StateWaiting               ThreadState = 0x0080
	StateInObjectWait          ThreadState = 0x0100
	StateParked                ThreadState = 0x0200
	StateBlockedOnMonitorEnter ThreadState = 0x0400
	StateSuspended             ThreadState = 0x100000
	StateInterrupted           ThreadState = 0x200000
	StateInNative              ThreadState = 0x400000
)

// java.lang.Thread.State values expressed as bit patterns.
const (
	JavaLangStateMask = StateTerminated | StateAlive | StateRunnable |
		StateBlockedOnMonitorEnter | StateWaiting | StateWaitingIndefinitely |
		StateWaitingWithTimeout

	JavaLangStateNew          ThreadState = 0
	JavaLangStateTerminated               = StateTerminated
	JavaLangStateRunnable                 = StateAlive | StateRunnable
	JavaLangStateBlocked                  = StateAlive | StateBlockedOnMonitorEnter
	JavaLangStateWaiting                  = StateAlive | StateWaiting | StateWaitingIndefinitely
	JavaLangStateTimedWaiting             = StateAlive | StateWaiting | StateWaitingWithTimeout
)

// Has reports whether all bits of flags are set in s.
func (s ThreadState) Has(flags ThreadState) bool {
	return s&flags == flags
}
