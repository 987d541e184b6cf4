// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package stacks captures the call stacks of VM threads as compact method ids.
//
// Frames are ordered innermost first. A Capturer is not reentrant: callers
// serialize access, typically from a thread stopped at a VM safepoint.
package stacks // import "go.opentelemetry.io/jvm-stacks/stacks"

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/metrics"
	"go.opentelemetry.io/jvm-stacks/threadstatus"
)

// DefaultMaxFrames bounds the depth of all-threads captures.
const DefaultMaxFrames = 16384

// Snapshot is the stack of one thread at one instant, innermost frame first.
type Snapshot []methodid.CompactID

// AllThreads is the result of one all-threads capture. The three slices are
// indexed by thread position and always have the same length.
type AllThreads struct {
	Threads  []jvmti.Thread
	Statuses []threadstatus.Status
	Frames   []Snapshot
}

// Len returns the number of threads captured.
func (a *AllThreads) Len() int {
	return len(a.Threads)
}

// Capturer walks thread stacks through a jvmti.Runtime.
type Capturer struct {
	rt        jvmti.Runtime
	compactor *methodid.Compactor
	maxFrames int

	// Scratch buffers for CaptureCurrent, nil while unallocated.
	frames []jvmti.FrameInfo
	ids    []methodid.CompactID
}

// New returns a Capturer. maxFrames bounds all-threads captures; values
// below one select DefaultMaxFrames.
func New(rt jvmti.Runtime, compactor *methodid.Compactor, maxFrames int) *Capturer {
	if maxFrames < 1 {
		maxFrames = DefaultMaxFrames
	}
	return &Capturer{rt: rt, compactor: compactor, maxFrames: maxFrames}
}

// Depth returns the current stack depth of thread, or 0 if the VM can not
// tell.
func (c *Capturer) Depth(thread jvmti.Thread) int {
	n, err := c.rt.FrameCount(thread)
	if err != nil {
		log.Debugf("Failed to get frame count of thread 0x%x: %v", uintptr(thread), err)
		return 0
	}
	return n
}

// AllocateBuffers allocates the scratch buffers used by CaptureCurrent for
// stacks of up to capacity frames. Buffers of a different capacity are
// released first.
func (c *Capturer) AllocateBuffers(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	if c.frames != nil {
		if len(c.frames) == capacity {
			return
		}
		c.ReleaseBuffers()
	}
	c.frames = make([]jvmti.FrameInfo, capacity)
	c.ids = make([]methodid.CompactID, capacity)
}

// ReleaseBuffers releases the scratch buffers. It does nothing if none are
// allocated.
func (c *Capturer) ReleaseBuffers() {
	c.frames = nil
	c.ids = nil
}

// BufferCapacity returns the capacity of the scratch buffers in frames, or
// -1 if they are not allocated.
func (c *Capturer) BufferCapacity() int {
	if c.frames == nil {
		return -1
	}
	return len(c.frames)
}

// CaptureCurrent writes the compact ids of up to depth innermost frames of
// thread to out and returns the number written. Without scratch buffers it
// returns 0: capturing was disabled concurrently with the request.
func (c *Capturer) CaptureCurrent(thread jvmti.Thread, depth int, out []methodid.CompactID) int {
	if c.frames == nil {
		metrics.Add(metrics.IDUnallocatedCaptures, 1)
		return 0
	}
	metrics.Add(metrics.IDCurrentStackCaptures, 1)

	depth = min(depth, len(c.frames), len(out))
	if depth <= 0 {
		return 0
	}

	n, err := c.rt.StackTrace(thread, 0, c.frames[:depth])
	if err != nil {
		log.Debugf("Failed to get stack trace of thread 0x%x: %v", uintptr(thread), err)
		return 0
	}
	n = min(n, depth)
	for i := range n {
		c.ids[i] = c.compactor.CompactOrZero(c.frames[i].Method)
	}
	copy(out, c.ids[:n])
	metrics.Add(metrics.IDFramesCaptured, metrics.MetricValue(n))
	return n
}

// Current returns a copy of the stack of thread, at most depth frames.
func (c *Capturer) Current(thread jvmti.Thread, depth int) Snapshot {
	out := make(Snapshot, max(depth, 0))
	return out[:c.CaptureCurrent(thread, depth, out)]
}

// CaptureAll captures the stack of every thread in one VM call.
func (c *Capturer) CaptureAll() (*AllThreads, error) {
	infos, ref, err := c.rt.AllStackTraces(c.maxFrames)
	if err != nil {
		return nil, fmt.Errorf("failed to get all stack traces: %w", err)
	}
	// One release frees everything AllStackTraces allocated.
	defer func() {
		if ref == 0 {
			return
		}
		if err := c.rt.Deallocate(ref); err != nil {
			log.Errorf("Failed to deallocate stack traces: %v", err)
		}
	}()

	all := &AllThreads{
		Threads:  make([]jvmti.Thread, len(infos)),
		Statuses: make([]threadstatus.Status, len(infos)),
		Frames:   make([]Snapshot, len(infos)),
	}
	var nFrames int
	for i := range infos {
		info := &infos[i]
		all.Threads[i] = info.Thread
		all.Statuses[i] = threadstatus.FromJVMTI(info.State)

		ids := make(Snapshot, len(info.Frames))
		for fi, frame := range info.Frames {
			ids[fi] = c.compactor.CompactOrZero(frame.Method)
		}
		all.Frames[i] = ids
		nFrames += len(ids)
	}

	metrics.Add(metrics.IDAllThreadsCaptures, 1)
	metrics.Add(metrics.IDThreadsCaptured, metrics.MetricValue(len(infos)))
	metrics.Add(metrics.IDFramesCaptured, metrics.MetricValue(nFrames))
	return all, nil
}
