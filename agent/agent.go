// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent exposes the stack capture and method metadata operations the
// collector invokes on the in-process agent.
//
// A Stacks instance owns the method id base table for the lifetime of the
// profiled process. Its operations are not reentrant: one profiling session
// drives it at a time.
package agent // import "go.opentelemetry.io/jvm-stacks/agent"

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/packedbuf"
	"go.opentelemetry.io/jvm-stacks/resolver"
	"go.opentelemetry.io/jvm-stacks/stacks"
	"go.opentelemetry.io/jvm-stacks/threadstatus"
)

// Config configures Stacks.
type Config struct {
	// MaxFrames bounds the depth of all-threads captures.
	MaxFrames int
	// MetadataCacheSize is the number of resolved method records to cache.
	MetadataCacheSize uint32
}

// Stacks is the agent's stack and method metadata service.
type Stacks struct {
	compactor *methodid.Compactor
	capturer  *stacks.Capturer
	resolver  *resolver.Resolver
}

// New returns a Stacks service on top of rt with an empty base table.
func New(rt jvmti.Runtime, cfg Config) (*Stacks, error) {
	return NewWithTable(rt, methodid.NewBaseTable(), cfg)
}

// NewWithTable is New with a caller supplied base table.
func NewWithTable(rt jvmti.Runtime, table *methodid.BaseTable, cfg Config) (*Stacks, error) {
	compactor := methodid.NewCompactor(table)
	res, err := resolver.New(rt, compactor, resolver.Config{CacheSize: cfg.MetadataCacheSize})
	if err != nil {
		return nil, fmt.Errorf("failed to create method resolver: %v", err)
	}
	return &Stacks{
		compactor: compactor,
		capturer:  stacks.New(rt, compactor, cfg.MaxFrames),
		resolver:  res,
	}, nil
}

// CurrentStackDepth returns the number of frames on the stack of thread.
func (s *Stacks) CurrentStackDepth(thread jvmti.Thread) int {
	return s.capturer.Depth(thread)
}

// CreateFrameBuffer allocates scratch space for stacks of up to sizeInFrames
// frames, replacing any previous buffer.
func (s *Stacks) CreateFrameBuffer(sizeInFrames int) {
	s.capturer.AllocateBuffers(sizeInFrames)
}

// ClearFrameBuffer releases the scratch space. It is a no-op if none is
// allocated.
func (s *Stacks) ClearFrameBuffer() {
	s.capturer.ReleaseBuffers()
}

// CurrentStackFrameIDs writes up to depth compact method ids of the stack of
// thread to ret and returns the number written. It returns 0 if no frame
// buffer is allocated.
func (s *Stacks) CurrentStackFrameIDs(thread jvmti.Thread, depth int,
	ret []methodid.CompactID) int {
	return s.capturer.CaptureCurrent(thread, depth, ret)
}

// MethodNamesForIDs resolves the metadata of methodIDs. The returned batch
// holds packedbuf.FieldsPerRecord offsets per id, in request order;
// unresolvable ids are filled with packedbuf.Placeholder.
func (s *Stacks) MethodNamesForIDs(methodIDs []methodid.CompactID) packedbuf.Batch {
	return s.resolver.Resolve(methodIDs)
}

// AllStackTraces captures every thread. On VM failure the outputs are left
// untouched and the error is returned.
func (s *Stacks) AllStackTraces(threads *[]jvmti.Thread, states *[]threadstatus.Status,
	frames *[][]methodid.CompactID) error {
	all, err := s.capturer.CaptureAll()
	if err != nil {
		log.Debugf("All threads capture failed: %v", err)
		return err
	}
	*threads = all.Threads
	*states = all.Statuses
	ids := make([][]methodid.CompactID, len(all.Frames))
	for i, snap := range all.Frames {
		ids[i] = snap
	}
	*frames = ids
	return nil
}

// CaptureAll captures every thread.
func (s *Stacks) CaptureAll() (*stacks.AllThreads, error) {
	return s.capturer.CaptureAll()
}

// ClassesUnloaded drops cached method metadata.
func (s *Stacks) ClassesUnloaded() {
	s.resolver.Purge()
}

// Compactor returns the compactor backing all ids this service hands out.
func (s *Stacks) Compactor() *methodid.Compactor {
	return s.compactor
}
