// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/jvmti/jvmtitest"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/packedbuf"
	"go.opentelemetry.io/jvm-stacks/threadstatus"
)

const (
	idRun    = methodid.NativeID(0x7f20_8000_0a00)
	idSleep  = methodid.NativeID(0x7f20_8000_0a08)
	idHandle = methodid.NativeID(0x7f20_c000_0100)
	idGone   = methodid.NativeID(0x7f20_c000_0108)

	mainThread  = jvmti.Thread(1)
	timerThread = jvmti.Thread(2)
)

func newVM() *jvmtitest.Runtime {
	vm := jvmtitest.New()
	vm.AddMethod(idRun, jvmtitest.Method{
		ClassSignature: "Ljava/lang/Thread;", Name: "run", Signature: "()V",
	})
	vm.AddMethod(idSleep, jvmtitest.Method{
		ClassSignature: "Ljava/lang/Thread;", Name: "sleep", Signature: "(J)V", Native: true,
	})
	vm.AddMethod(idHandle, jvmtitest.Method{
		ClassSignature: "Lorg/example/Server;", Name: "handle",
		Signature: "(Lorg/example/Request;)I",
	})
	vm.AddThread(mainThread, jvmti.JavaLangStateRunnable, idHandle, idRun)
	vm.AddThread(timerThread, jvmti.JavaLangStateTimedWaiting|jvmti.StateSleeping,
		idSleep, idGone, idRun)
	return vm
}

func TestStacksEndToEnd(t *testing.T) {
	vm := newVM()
	s, err := New(vm, Config{MetadataCacheSize: 64})
	require.NoError(t, err)

	var (
		threads []jvmti.Thread
		states  []threadstatus.Status
		frames  [][]methodid.CompactID
	)
	require.NoError(t, s.AllStackTraces(&threads, &states, &frames))
	require.Len(t, threads, 2)
	require.Len(t, states, 2)
	require.Len(t, frames, 2)
	assert.Equal(t, []threadstatus.Status{threadstatus.Running, threadstatus.Sleeping}, states)

	// Resolve the distinct ids in first-seen order.
	var ids []methodid.CompactID
	seen := map[methodid.CompactID]bool{}
	for _, stack := range frames {
		for _, cid := range stack {
			if !seen[cid] {
				seen[cid] = true
				ids = append(ids, cid)
			}
		}
	}
	require.Len(t, ids, 4)

	b := s.MethodNamesForIDs(ids)
	require.Len(t, b.Offsets, 4*packedbuf.FieldsPerRecord)
	records, err := packedbuf.Decode(b)
	require.NoError(t, err)

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.String()
	}
	assert.Equal(t, []string{
		"int org.example.Server.handle(org.example.Request)",
		"void java.lang.Thread.run()",
		"void java.lang.Thread.sleep(long)",
		"void <unknown class>.<unknown method>()",
	}, names)
	assert.True(t, records[2].Native)
	assert.Zero(t, vm.Live())
	assert.Zero(t, vm.BadReleases())
}

func TestCurrentStack(t *testing.T) {
	vm := newVM()
	s, err := New(vm, Config{})
	require.NoError(t, err)

	assert.Equal(t, 3, s.CurrentStackDepth(timerThread))

	ret := make([]methodid.CompactID, 3)
	assert.Equal(t, 0, s.CurrentStackFrameIDs(timerThread, 3, ret))

	s.CreateFrameBuffer(16)
	n := s.CurrentStackFrameIDs(timerThread, 3, ret)
	require.Equal(t, 3, n)

	id, err := s.Compactor().Decompact(ret[0])
	require.NoError(t, err)
	assert.Equal(t, idSleep, id)

	s.ClearFrameBuffer()
	s.ClearFrameBuffer()
	assert.Equal(t, 0, s.CurrentStackFrameIDs(timerThread, 3, ret))
}

func TestAllStackTracesErrorLeavesOutputs(t *testing.T) {
	vm := newVM()
	vm.AllStackTracesErr = jvmti.ErrWrongPhase
	s, err := New(vm, Config{})
	require.NoError(t, err)

	threads := []jvmti.Thread{42}
	var (
		states []threadstatus.Status
		frames [][]methodid.CompactID
	)
	require.Error(t, s.AllStackTraces(&threads, &states, &frames))
	assert.Equal(t, []jvmti.Thread{42}, threads)
	assert.Nil(t, states)
	assert.Nil(t, frames)
}

func TestSharedTable(t *testing.T) {
	table := methodid.NewBaseTable()
	vm := newVM()
	a, err := NewWithTable(vm, table, Config{})
	require.NoError(t, err)
	b, err := NewWithTable(vm, table, Config{})
	require.NoError(t, err)

	all, err := a.CaptureAll()
	require.NoError(t, err)

	records, err := packedbuf.Decode(b.MethodNamesForIDs(all.Frames[0]))
	require.NoError(t, err)
	assert.Equal(t, "handle", records[0].MethodName)

	b.ClassesUnloaded()
}
