// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package stacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/jvmti/jvmtitest"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/threadstatus"
)

const (
	mainThread   = jvmti.Thread(0x10)
	workerThread = jvmti.Thread(0x20)
	gcThread     = jvmti.Thread(0x30)
)

var (
	frameA = methodid.NativeID(0x7f00_4000_0100)
	frameB = methodid.NativeID(0x7f00_4000_0200)
	frameC = methodid.NativeID(0x7f00_4000_0300)
	frameD = methodid.NativeID(0x5600_0000_0040)
)

func newCapturer(t *testing.T, vm jvmti.Runtime, maxFrames int) (*Capturer, *methodid.Compactor) {
	t.Helper()
	c := methodid.NewCompactor(methodid.NewBaseTable())
	return New(vm, c, maxFrames), c
}

func decompactAll(t *testing.T, c *methodid.Compactor, ids []methodid.CompactID) []methodid.NativeID {
	t.Helper()
	out := make([]methodid.NativeID, len(ids))
	for i, cid := range ids {
		id, err := c.Decompact(cid)
		require.NoError(t, err)
		out[i] = id
	}
	return out
}

func TestDepth(t *testing.T) {
	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA, frameB, frameC)
	capt, _ := newCapturer(t, vm, 0)

	assert.Equal(t, 3, capt.Depth(mainThread))
	assert.Equal(t, 0, capt.Depth(workerThread))
}

func TestCaptureCurrent(t *testing.T) {
	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA, frameB, frameC, frameD)
	capt, c := newCapturer(t, vm, 0)

	out := make([]methodid.CompactID, 8)
	// Capture disabled: no buffers yet.
	assert.Equal(t, 0, capt.CaptureCurrent(mainThread, 8, out))
	assert.Equal(t, -1, capt.BufferCapacity())

	capt.AllocateBuffers(16)
	n := capt.CaptureCurrent(mainThread, 8, out)
	require.Equal(t, 4, n)
	assert.Equal(t, []methodid.NativeID{frameA, frameB, frameC, frameD},
		decompactAll(t, c, out[:n]))

	// Depth is bounded by the request.
	n = capt.CaptureCurrent(mainThread, 2, out)
	require.Equal(t, 2, n)
	assert.Equal(t, []methodid.NativeID{frameA, frameB}, decompactAll(t, c, out[:n]))

	capt.ReleaseBuffers()
	assert.Equal(t, 0, capt.CaptureCurrent(mainThread, 8, out))
	assert.Empty(t, capt.Current(mainThread, 8))
}

func TestCaptureCurrentBoundedByBuffers(t *testing.T) {
	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA, frameB, frameC, frameD)
	capt, c := newCapturer(t, vm, 0)

	capt.AllocateBuffers(3)
	snap := capt.Current(mainThread, 10)
	assert.Equal(t, []methodid.NativeID{frameA, frameB, frameC}, decompactAll(t, c, snap))

	out := make([]methodid.CompactID, 1)
	assert.Equal(t, 1, capt.CaptureCurrent(mainThread, 10, out))
}

func TestCaptureCurrentVMError(t *testing.T) {
	vm := jvmtitest.New()
	capt, _ := newCapturer(t, vm, 0)
	capt.AllocateBuffers(4)

	assert.Empty(t, capt.Current(mainThread, 4))
}

func TestBufferLifecycle(t *testing.T) {
	capt, _ := newCapturer(t, jvmtitest.New(), 0)

	// Releasing without buffers is fine.
	capt.ReleaseBuffers()
	assert.Equal(t, -1, capt.BufferCapacity())

	capt.AllocateBuffers(8)
	frames := capt.frames
	capt.AllocateBuffers(8)
	assert.Same(t, &frames[0], &capt.frames[0])

	capt.AllocateBuffers(32)
	assert.Equal(t, 32, capt.BufferCapacity())
	assert.Len(t, capt.ids, 32)

	capt.ReleaseBuffers()
	capt.ReleaseBuffers()
	assert.Nil(t, capt.frames)
	assert.Nil(t, capt.ids)
}

func TestCaptureAll(t *testing.T) {
	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA, frameB)
	vm.AddThread(workerThread, jvmti.JavaLangStateWaiting|jvmti.StateParked, frameC)
	vm.AddThread(gcThread, jvmti.JavaLangStateBlocked)
	capt, c := newCapturer(t, vm, 0)

	all, err := capt.CaptureAll()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxFrames, vm.LastMaxFrames)

	require.Equal(t, 3, all.Len())
	require.Len(t, all.Statuses, 3)
	require.Len(t, all.Frames, 3)
	assert.Equal(t, []jvmti.Thread{mainThread, workerThread, gcThread}, all.Threads)
	assert.Equal(t, []threadstatus.Status{
		threadstatus.Running, threadstatus.Park, threadstatus.Monitor,
	}, all.Statuses)
	assert.Equal(t, []methodid.NativeID{frameA, frameB}, decompactAll(t, c, all.Frames[0]))
	assert.Equal(t, []methodid.NativeID{frameC}, decompactAll(t, c, all.Frames[1]))
	assert.Empty(t, all.Frames[2])

	assert.Equal(t, 1, vm.BulkFrees())
	assert.Zero(t, vm.Live())
}

func TestCaptureAllMaxFrames(t *testing.T) {
	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA, frameB, frameC)
	capt, _ := newCapturer(t, vm, 2)

	all, err := capt.CaptureAll()
	require.NoError(t, err)
	assert.Equal(t, 2, vm.LastMaxFrames)
	assert.Len(t, all.Frames[0], 2)
}

func TestCaptureAllError(t *testing.T) {
	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA)
	vm.AllStackTracesErr = jvmti.ErrWrongPhase
	capt, _ := newCapturer(t, vm, 0)

	all, err := capt.CaptureAll()
	require.ErrorIs(t, err, jvmti.ErrWrongPhase)
	assert.Nil(t, all)
	assert.Zero(t, vm.Live())
}

func TestCaptureAllTableFull(t *testing.T) {
	table := methodid.NewBaseTable()
	c := methodid.NewCompactor(table)
	for _, base := range []methodid.NativeID{
		0x1000_0000_0000, 0x2000_0000_0000, 0x3000_0000_0000, 0x4000_0000_0000,
	} {
		_, err := c.Compact(base)
		require.NoError(t, err)
	}
	if table.Assigned() == 0 {
		t.Skip("method ids are not converted on this host")
	}

	vm := jvmtitest.New()
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, frameA)
	all, err := New(vm, c, 0).CaptureAll()
	require.NoError(t, err)
	assert.Equal(t, Snapshot{methodid.InvalidCompactID}, all.Frames[0])
}
