// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package jvmtitest provides an in-memory jvmti.Runtime for tests.
package jvmtitest // import "go.opentelemetry.io/jvm-stacks/jvmti/jvmtitest"

import (
	"sync"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
)

// Method describes a method known to the fake VM.
type Method struct {
	// ClassSignature is the class descriptor, e.g. Ljava/lang/String;.
	ClassSignature string
	Name           string
	Signature      string
	// Generic is the generic method signature, empty for none.
	Generic string
	Native  bool
}

type thread struct {
	handle jvmti.Thread
	state  jvmti.ThreadState
	frames []methodid.NativeID
}

// Runtime is a scripted jvmti.Runtime. Every String it hands out is backed by
// a fresh Ref so tests can check that all of them are released.
type Runtime struct {
	mu sync.Mutex

	methods map[methodid.NativeID]Method
	classes map[jvmti.Class]string
	classOf map[methodid.NativeID]jvmti.Class
	threads []thread

	// Errors to return from the matching call, keyed by method id.
	DeclaringClassErr map[methodid.NativeID]error
	MethodNameErr     map[methodid.NativeID]error
	NativeErr         map[methodid.NativeID]error
	// ClassSignatureErr is keyed by class descriptor.
	ClassSignatureErr map[string]error
	// DeclaringClassOverride replaces the class returned for a method id.
	DeclaringClassOverride map[methodid.NativeID]jvmti.Class

	FrameCountErr     error
	StackTraceErr     error
	AllStackTracesErr error

	nextRef     jvmti.Ref
	live        map[jvmti.Ref]struct{}
	badReleases int
	bulkFrees   int
	bulkRef     jvmti.Ref

	// LastMaxFrames is the depth bound of the last AllStackTraces call.
	LastMaxFrames int
}

// New returns an empty fake VM.
func New() *Runtime {
	return &Runtime{
		methods:                map[methodid.NativeID]Method{},
		classes:                map[jvmti.Class]string{},
		classOf:                map[methodid.NativeID]jvmti.Class{},
		DeclaringClassErr:      map[methodid.NativeID]error{},
		ClassSignatureErr:      map[string]error{},
		MethodNameErr:          map[methodid.NativeID]error{},
		NativeErr:              map[methodid.NativeID]error{},
		DeclaringClassOverride: map[methodid.NativeID]jvmti.Class{},
		nextRef:                0x1000,
		live:                   map[jvmti.Ref]struct{}{},
	}
}

// AddMethod registers m under id. Methods with the same class descriptor
// share a class handle.
func (r *Runtime) AddMethod(id methodid.NativeID, m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var class jvmti.Class
	for c, sig := range r.classes {
		if sig == m.ClassSignature {
			class = c
			break
		}
	}
	if class == jvmti.NullClass {
		class = jvmti.Class(0x100 + len(r.classes))
		r.classes[class] = m.ClassSignature
	}
	r.methods[id] = m
	r.classOf[id] = class
}

// AddThread registers a thread with the given state and frames, innermost
// first. Threads are reported in registration order.
func (r *Runtime) AddThread(handle jvmti.Thread, state jvmti.ThreadState,
	frames ...methodid.NativeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads = append(r.threads, thread{handle: handle, state: state, frames: frames})
}

func (r *Runtime) alloc(value string) jvmti.String {
	r.nextRef++
	r.live[r.nextRef] = struct{}{}
	return jvmti.String{Ref: r.nextRef, Value: value}
}

func (r *Runtime) findThread(handle jvmti.Thread) (thread, bool) {
	for _, t := range r.threads {
		if t.handle == handle {
			return t, true
		}
	}
	return thread{}, false
}

func (r *Runtime) FrameCount(handle jvmti.Thread) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FrameCountErr != nil {
		return 0, r.FrameCountErr
	}
	t, ok := r.findThread(handle)
	if !ok {
		return 0, jvmti.ErrInvalidThread
	}
	return len(t.frames), nil
}

func (r *Runtime) StackTrace(handle jvmti.Thread, startDepth int,
	frames []jvmti.FrameInfo) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StackTraceErr != nil {
		return 0, r.StackTraceErr
	}
	t, ok := r.findThread(handle)
	if !ok {
		return 0, jvmti.ErrInvalidThread
	}
	if startDepth < 0 || startDepth > len(t.frames) {
		return 0, jvmti.ErrIllegalArgument
	}
	n := 0
	for _, id := range t.frames[startDepth:] {
		if n == len(frames) {
			break
		}
		frames[n] = jvmti.FrameInfo{Method: id, Location: int64(n)}
		n++
	}
	return n, nil
}

func (r *Runtime) AllStackTraces(maxFrames int) ([]jvmti.StackInfo, jvmti.Ref, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LastMaxFrames = maxFrames
	if r.AllStackTracesErr != nil {
		return nil, 0, r.AllStackTracesErr
	}

	infos := make([]jvmti.StackInfo, 0, len(r.threads))
	for _, t := range r.threads {
		n := min(len(t.frames), maxFrames)
		frames := make([]jvmti.FrameInfo, n)
		for i, id := range t.frames[:n] {
			frames[i] = jvmti.FrameInfo{Method: id, Location: int64(i)}
		}
		infos = append(infos, jvmti.StackInfo{Thread: t.handle, State: t.state, Frames: frames})
	}
	ref := r.alloc("").Ref
	r.bulkRef = ref
	return infos, ref, nil
}

func (r *Runtime) MethodDeclaringClass(id methodid.NativeID) (jvmti.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.DeclaringClassErr[id]; err != nil {
		return jvmti.NullClass, err
	}
	if c, ok := r.DeclaringClassOverride[id]; ok {
		return c, nil
	}
	c, ok := r.classOf[id]
	if !ok {
		return jvmti.NullClass, jvmti.ErrInvalidMethodID
	}
	return c, nil
}

func (r *Runtime) ClassSignature(class jvmti.Class) (jvmti.String, jvmti.String, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sig, ok := r.classes[class]
	if !ok {
		return jvmti.String{}, jvmti.String{}, jvmti.ErrInvalidClass
	}
	if err := r.ClassSignatureErr[sig]; err != nil {
		return jvmti.String{}, jvmti.String{}, err
	}
	return r.alloc(sig), jvmti.String{}, nil
}

func (r *Runtime) MethodName(id methodid.NativeID) (jvmti.String, jvmti.String,
	jvmti.String, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.MethodNameErr[id]; err != nil {
		return jvmti.String{}, jvmti.String{}, jvmti.String{}, err
	}
	m, ok := r.methods[id]
	if !ok {
		return jvmti.String{}, jvmti.String{}, jvmti.String{}, jvmti.ErrInvalidMethodID
	}
	var generic jvmti.String
	if m.Generic != "" {
		generic = r.alloc(m.Generic)
	}
	return r.alloc(m.Name), r.alloc(m.Signature), generic, nil
}

func (r *Runtime) IsMethodNative(id methodid.NativeID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.NativeErr[id]; err != nil {
		return false, err
	}
	m, ok := r.methods[id]
	if !ok {
		return false, jvmti.ErrInvalidMethodID
	}
	return m.Native, nil
}

func (r *Runtime) Deallocate(ref jvmti.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[ref]; !ok {
		r.badReleases++
		return jvmti.ErrIllegalArgument
	}
	delete(r.live, ref)
	if ref == r.bulkRef {
		r.bulkFrees++
	}
	return nil
}

// Live returns the number of allocations not yet released.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// BadReleases returns the number of Deallocate calls for unknown refs,
// including double frees.
func (r *Runtime) BadReleases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.badReleases
}

// BulkFrees returns how often the memory of the last AllStackTraces call
// was released.
func (r *Runtime) BulkFrees() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bulkFrees
}

var _ jvmti.Runtime = (*Runtime)(nil)
