// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package jvmti defines the VM introspection service the agent is built on.
//
// The types mirror the JVM Tool Interface: opaque thread and class handles,
// VM-issued method ids and memory the VM allocates on the agent's behalf,
// which must be handed back through Runtime.Deallocate.
package jvmti // import "go.opentelemetry.io/jvm-stacks/jvmti"

import (
	"go.opentelemetry.io/jvm-stacks/methodid"
)

// Thread is an opaque thread handle.
type Thread uintptr

// Class is an opaque class handle.
type Class uintptr

const (
	// NullClass is never a valid class.
	NullClass Class = 0
	// ClearedClass is returned by some VMs for classes being unloaded. It
	// must be treated like NullClass.
	ClearedClass Class = ^Class(0)
)

// Valid reports whether c can be passed to Runtime.ClassSignature.
func (c Class) Valid() bool {
	return c != NullClass && c != ClearedClass
}

// Ref identifies memory allocated by the VM. The zero Ref needs no release.
type Ref uintptr

// String is a string living in VM memory.
type String struct {
	Ref   Ref
	Value string
}

// FrameInfo is one frame of a stack trace.
type FrameInfo struct {
	Method methodid.NativeID
	// Location is the bytecode index, or -1 for native frames.
	Location int64
}

// StackInfo is the stack of one thread from an all-threads walk.
type StackInfo struct {
	Thread Thread
	State  ThreadState
	Frames []FrameInfo
}

// Runtime is the VM introspection service.
//
// Calls are synchronous and may block inside the VM, e.g. on a global lock
// while threads are listed.
type Runtime interface {
	// FrameCount returns the current stack depth of thread.
	FrameCount(thread Thread) (int, error)

	// StackTrace fills frames with the stack of thread starting startDepth
	// frames below the innermost one and returns the number written.
	StackTrace(thread Thread, startDepth int, frames []FrameInfo) (int, error)

	// AllStackTraces walks every live thread in one atomic operation, at
	// most maxFrames frames each. All returned memory is owned by ref.
	AllStackTraces(maxFrames int) (infos []StackInfo, ref Ref, err error)

	// MethodDeclaringClass returns the class declaring method.
	MethodDeclaringClass(method methodid.NativeID) (Class, error)

	// ClassSignature returns the descriptor (e.g. Ljava/lang/String;) and
	// the generic signature of class. generic.Ref may be zero.
	ClassSignature(class Class) (signature, generic String, err error)

	// MethodName returns the name, descriptor and generic signature of
	// method. generic.Ref may be zero.
	MethodName(method methodid.NativeID) (name, signature, generic String, err error)

	// IsMethodNative reports whether method is implemented natively.
	IsMethodNative(method methodid.NativeID) (bool, error)

	// Deallocate releases memory obtained from any of the calls above.
	Deallocate(ref Ref) error
}
