// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package goruntime implements jvmti.Runtime for the goroutines of the
// current Go process.
//
// Goroutines take the place of VM threads and Go functions the place of
// methods. Like a JVM, the Runtime hands out method ids that are addresses of
// entries in id blocks it allocates itself, so ids are pointer sized, cluster
// in a few address ranges and stay valid for the life of the Runtime.
//
// A method's class is its package path plus receiver type, its signature the
// name of the declaring source file, and it counts as native if that file is
// assembly.
package goruntime // import "go.opentelemetry.io/jvm-stacks/goruntime"

import (
	"path"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
)

const (
	// idBlockSize is the number of method ids per allocated block.
	idBlockSize = 4096

	initialDumpSize = 64 * 1024
	maxDumpSize     = 64 * 1024 * 1024

	// selfPrefix prefixes the frames this package adds to the stack of the
	// goroutine taking a dump.
	selfPrefix = "go.opentelemetry.io/jvm-stacks/goruntime.(*Runtime)."
)

// idSlot backs one method id. Only its address is used.
type idSlot struct {
	_ uint64
}

type method struct {
	class  jvmti.Class
	name   string
	file   string
	native bool
}

// Runtime is a jvmti.Runtime for the current process.
type Runtime struct {
	mu sync.Mutex

	blocks    [][]idSlot
	nextSlot  int
	methods   map[methodid.NativeID]*method
	functions map[string]methodid.NativeID

	classes     []string
	classByName map[string]jvmti.Class

	dumpBuf []byte
}

// New returns a Runtime with no methods registered yet.
func New() *Runtime {
	return &Runtime{
		methods:     make(map[methodid.NativeID]*method),
		functions:   make(map[string]methodid.NativeID),
		classByName: make(map[string]jvmti.Class),
		dumpBuf:     make([]byte, initialDumpSize),
	}
}

// methodID returns the id of function, registering it on first sight.
// Callers hold r.mu.
func (r *Runtime) methodID(f dumpFrame) methodid.NativeID {
	if id, ok := r.functions[f.function]; ok {
		return id
	}

	if len(r.blocks) == 0 || r.nextSlot == idBlockSize {
		r.blocks = append(r.blocks, make([]idSlot, idBlockSize))
		r.nextSlot = 0
	}
	block := r.blocks[len(r.blocks)-1]
	id := methodid.NativeID(uintptr(unsafe.Pointer(&block[r.nextSlot])))
	r.nextSlot++

	className, name := splitFunction(f.function)
	class, ok := r.classByName[className]
	if !ok {
		r.classes = append(r.classes, className)
		class = jvmti.Class(len(r.classes))
		r.classByName[className] = class
	}
	r.methods[id] = &method{
		class:  class,
		name:   name,
		file:   path.Base(f.file),
		native: isAssembly(f.file),
	}
	r.functions[f.function] = id
	return id
}

// dump parses a traceback of all goroutines, or only the calling one.
// Callers hold r.mu.
func (r *Runtime) dump(all bool) []dumpGoroutine {
	for {
		n := runtime.Stack(r.dumpBuf, all)
		if n < len(r.dumpBuf) || len(r.dumpBuf) >= maxDumpSize {
			goroutines, err := parseDump(r.dumpBuf[:n])
			if err != nil {
				log.Warnf("Failed to parse goroutine dump: %v", err)
			}
			for i := range goroutines {
				goroutines[i].frames = trimSelf(goroutines[i].frames)
			}
			return goroutines
		}
		r.dumpBuf = make([]byte, 2*len(r.dumpBuf))
	}
}

func trimSelf(frames []dumpFrame) []dumpFrame {
	for len(frames) > 0 && strings.HasPrefix(frames[0].function, selfPrefix) {
		frames = frames[1:]
	}
	return frames
}

func (r *Runtime) find(thread jvmti.Thread) (dumpGoroutine, bool) {
	for _, g := range r.dump(true) {
		if g.id == uint64(thread) {
			return g, true
		}
	}
	return dumpGoroutine{}, false
}

// CurrentThread returns the handle of the calling goroutine.
func (r *Runtime) CurrentThread() jvmti.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gs := r.dump(false); len(gs) > 0 {
		return jvmti.Thread(gs[0].id)
	}
	return 0
}

func (r *Runtime) FrameCount(thread jvmti.Thread) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.find(thread)
	if !ok {
		return 0, jvmti.ErrThreadNotAlive
	}
	return len(g.frames), nil
}

func (r *Runtime) StackTrace(thread jvmti.Thread, startDepth int,
	frames []jvmti.FrameInfo) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.find(thread)
	if !ok {
		return 0, jvmti.ErrThreadNotAlive
	}
	if startDepth < 0 || startDepth > len(g.frames) {
		return 0, jvmti.ErrIllegalArgument
	}
	n := 0
	for _, f := range g.frames[startDepth:] {
		if n == len(frames) {
			break
		}
		frames[n] = jvmti.FrameInfo{Method: r.methodID(f), Location: int64(f.line)}
		n++
	}
	return n, nil
}

// AllStackTraces stops the world once to trace every goroutine. The result
// lives in Go memory, so the returned Ref is zero.
func (r *Runtime) AllStackTraces(maxFrames int) ([]jvmti.StackInfo, jvmti.Ref, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	goroutines := r.dump(true)
	infos := make([]jvmti.StackInfo, len(goroutines))
	for i, g := range goroutines {
		n := min(len(g.frames), max(maxFrames, 0))
		frames := make([]jvmti.FrameInfo, n)
		for fi, f := range g.frames[:n] {
			frames[fi] = jvmti.FrameInfo{Method: r.methodID(f), Location: int64(f.line)}
		}
		infos[i] = jvmti.StackInfo{
			Thread: jvmti.Thread(g.id),
			State:  threadState(g.status),
			Frames: frames,
		}
	}
	return infos, 0, nil
}

func (r *Runtime) lookup(id methodid.NativeID) (*method, error) {
	m, ok := r.methods[id]
	if !ok {
		return nil, jvmti.ErrInvalidMethodID
	}
	return m, nil
}

func (r *Runtime) MethodDeclaringClass(id methodid.NativeID) (jvmti.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.lookup(id)
	if err != nil {
		return jvmti.NullClass, err
	}
	return m.class, nil
}

// ClassSignature returns the class in descriptor form, L<class>;.
func (r *Runtime) ClassSignature(class jvmti.Class) (jvmti.String, jvmti.String, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !class.Valid() || uint64(class) > uint64(len(r.classes)) {
		return jvmti.String{}, jvmti.String{}, jvmti.ErrInvalidClass
	}
	return jvmti.String{Value: "L" + r.classes[class-1] + ";"}, jvmti.String{}, nil
}

func (r *Runtime) MethodName(id methodid.NativeID) (jvmti.String, jvmti.String,
	jvmti.String, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.lookup(id)
	if err != nil {
		return jvmti.String{}, jvmti.String{}, jvmti.String{}, err
	}
	return jvmti.String{Value: m.name}, jvmti.String{Value: m.file}, jvmti.String{}, nil
}

func (r *Runtime) IsMethodNative(id methodid.NativeID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return m.native, nil
}

// Deallocate is a no-op: all results live in garbage collected memory.
func (r *Runtime) Deallocate(jvmti.Ref) error {
	return nil
}

// NumMethods returns the number of functions seen so far.
func (r *Runtime) NumMethods() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.methods)
}

var _ jvmti.Runtime = (*Runtime)(nil)
