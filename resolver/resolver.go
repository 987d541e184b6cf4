// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver turns compact method ids into packed metadata records.
//
// Resolution is best effort: a method that can not be resolved yields
// packedbuf.Placeholder and the batch carries on with the next id. Every
// requested id produces exactly one record, in request order.
package resolver // import "go.opentelemetry.io/jvm-stacks/resolver"

import (
	"encoding/binary"
	"fmt"

	lru "github.com/elastic/go-freelru"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/metrics"
	"go.opentelemetry.io/jvm-stacks/packedbuf"
	sfc "go.opentelemetry.io/jvm-stacks/successfailurecounter"
)

// Config configures a Resolver.
type Config struct {
	// CacheSize is the number of resolved records kept per NativeID.
	// Zero disables caching.
	CacheSize uint32
}

// Resolver resolves method metadata through the VM. It is not safe for
// concurrent use.
type Resolver struct {
	rt        jvmti.Runtime
	compactor *methodid.Compactor
	enc       packedbuf.Encoder

	// cache holds successfully resolved records. Method ids stay valid while
	// their class is loaded, so entries only go stale on class unload.
	cache *lru.LRU[methodid.NativeID, packedbuf.Record]
}

func hashNativeID(id methodid.NativeID) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return uint32(xxh3.Hash(b[:]))
}

// New returns a Resolver decoding ids with compactor and querying rt.
func New(rt jvmti.Runtime, compactor *methodid.Compactor, cfg Config) (*Resolver, error) {
	r := &Resolver{rt: rt, compactor: compactor}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[methodid.NativeID, packedbuf.Record](cfg.CacheSize,
			hashNativeID)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata cache: %v", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve returns one record per id, FieldsPerRecord offsets each. A record
// too large for the batch is replaced by a placeholder. If even that does not
// fit, the batch ends early.
func (r *Resolver) Resolve(ids []methodid.CompactID) packedbuf.Batch {
	r.enc.Begin(len(ids))
	for i, cid := range ids {
		rec, ok := r.resolveOne(cid)
		if !ok {
			rec = packedbuf.Placeholder
		}
		if err := r.enc.AppendRecord(rec); err == nil {
			continue
		}
		if err := r.enc.AppendPlaceholder(); err != nil {
			log.Errorf("Truncated metadata batch after %d of %d methods: %v",
				i, len(ids), err)
			break
		}
	}
	return r.enc.Finish()
}

// Purge drops all cached records. It must be called when classes unload.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Resolver) resolveOne(cid methodid.CompactID) (rec packedbuf.Record, ok bool) {
	outcome := sfc.New(metrics.IDRecordsResolved, metrics.IDPlaceholderRecords)
	defer outcome.DefaultToFailure()

	id, err := r.compactor.Decompact(cid)
	if err != nil {
		log.Warnf("Cannot decode method id: %v", err)
		return packedbuf.Record{}, false
	}

	if r.cache != nil {
		if rec, ok = r.cache.Get(id); ok {
			metrics.Add(metrics.IDMetadataCacheHit, 1)
			outcome.ReportSuccess()
			return rec, true
		}
		metrics.Add(metrics.IDMetadataCacheMiss, 1)
	}

	rec, err = lookup(r.rt, id)
	if err != nil {
		log.Warnf("Failed to resolve method metadata: %v", err)
		return packedbuf.Record{}, false
	}
	if r.cache != nil {
		r.cache.Add(id, rec)
	}
	outcome.ReportSuccess()
	return rec, true
}

// lookup queries the VM for the metadata of id. VM memory obtained on the way
// is released on every path.
func lookup(rt jvmti.Runtime, id methodid.NativeID) (packedbuf.Record, error) {
	refs := releaser{rt: rt}
	defer refs.release()

	class, err := rt.MethodDeclaringClass(id)
	if err != nil {
		return packedbuf.Record{}, fmt.Errorf(
			"invalid declaringClass obtained from method id %v: %v", id, err)
	}
	if !class.Valid() {
		return packedbuf.Record{}, fmt.Errorf(
			"invalid declaringClass 0x%x obtained from method id %v", uintptr(class), id)
	}

	classSig, classGeneric, err := rt.ClassSignature(class)
	refs.add(classSig, classGeneric)
	if err != nil {
		return packedbuf.Record{}, fmt.Errorf(
			"couldn't obtain name of declaringClass 0x%x: %v", uintptr(class), err)
	}

	name, sig, generic, err := rt.MethodName(id)
	refs.add(name, sig, generic)
	if err != nil {
		return packedbuf.Record{}, fmt.Errorf(
			"couldn't obtain name for method id %v: %v", id, err)
	}

	native, err := rt.IsMethodNative(id)
	if err != nil {
		log.Warnf("Couldn't obtain native flag for method id %v: %v",
			id, err)
		metrics.Add(metrics.IDNativeFlagFailures, 1)
		native = false
	}

	return packedbuf.Record{
		ClassName:  internalClassName(classSig.Value),
		MethodName: name.Value,
		Signature:  sig.Value,
		Native:     native,
	}, nil
}

// internalClassName strips the L...; wrapper of object type descriptors.
// Array and primitive descriptors are returned unchanged.
func internalClassName(descriptor string) string {
	if n := len(descriptor); n >= 2 && descriptor[0] == 'L' && descriptor[n-1] == ';' {
		return descriptor[1 : n-1]
	}
	return descriptor
}

// releaser collects VM allocations for release at the end of a scope.
type releaser struct {
	rt   jvmti.Runtime
	refs []jvmti.Ref
}

func (r *releaser) add(strs ...jvmti.String) {
	for _, s := range strs {
		if s.Ref != 0 {
			r.refs = append(r.refs, s.Ref)
		}
	}
}

func (r *releaser) release() {
	for _, ref := range r.refs {
		if err := r.rt.Deallocate(ref); err != nil {
			log.Debugf("Failed to deallocate VM memory 0x%x: %v", uintptr(ref), err)
		}
	}
	r.refs = r.refs[:0]
}
