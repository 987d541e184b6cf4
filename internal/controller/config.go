// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/jvm-stacks/internal/controller"

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	errMaxFrames      = errors.New("max-frames must be positive")
	errBufferFrames   = errors.New("buffer-frames must be positive")
	errSampleInterval = errors.New("sample-interval must be at least 10ms")
	errJitter         = errors.New("jitter must be in the range [0..1]")
)

// MinSampleInterval is the shortest accepted interval between rounds.
const MinSampleInterval = 10 * time.Millisecond

type Config struct {
	// MaxFrames bounds the frames captured per goroutine in a round.
	MaxFrames int
	// BufferFrames is the capacity of the scratch buffer for the sampler's
	// own stack.
	BufferFrames int
	// MetadataCacheSize is the number of resolved methods kept across
	// rounds. 0 disables the cache.
	MetadataCacheSize uint
	SampleInterval    time.Duration
	// Jitter, [0..1], is added to every SampleInterval.
	Jitter float64

	// ProfileDir, if set, receives a pprof profile of every round.
	ProfileDir string

	PprofAddr   string
	VerboseMode bool
	Version     bool

	Fs *flag.FlagSet
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if cfg.MaxFrames <= 0 {
		return errMaxFrames
	}
	if cfg.BufferFrames <= 0 {
		return errBufferFrames
	}
	if cfg.SampleInterval < MinSampleInterval {
		return errSampleInterval
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		return errJitter
	}
	if uint64(cfg.MetadataCacheSize) > math.MaxUint32 {
		return fmt.Errorf("metadata-cache-size %d exceeds limit", cfg.MetadataCacheSize)
	}
	return nil
}
