// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"

	"go.opentelemetry.io/jvm-stacks/internal/controller"
	"go.opentelemetry.io/jvm-stacks/stacks"
)

const (
	// Default values for CLI flags
	defaultArgMaxFrames         = stacks.DefaultMaxFrames
	defaultArgBufferFrames      = 1024
	defaultArgSampleInterval    = 10 * time.Second
	defaultArgJitter            = 0.2
	defaultArgMetadataCacheSize = 4096
)

// Help strings for command line arguments
var (
	maxFramesHelp = fmt.Sprintf("Maximum number of frames captured per goroutine. "+
		"Default is %d.", defaultArgMaxFrames)
	bufferFramesHelp = "Capacity in frames of the scratch buffer used for the " +
		"sampler's own stack."
	sampleIntervalHelp = fmt.Sprintf("Interval between sampling rounds (min %v).",
		controller.MinSampleInterval)
	jitterHelp            = "Jitter, [0..1], added to every sampling interval."
	metadataCacheSizeHelp = "Number of resolved methods cached across rounds, 0 disables the cache."
	pprofHelp             = "Listening address (e.g. localhost:6060) to serve pprof information."
	profileDirHelp        = "Directory receiving a pprof profile of every sampling round."
	verboseModeHelp       = "Enable verbose logging and debugging capabilities."
	versionHelp           = "Show version."
)

func parseArgs(args []string) (*controller.Config, error) {
	var cfg controller.Config

	fs := flag.NewFlagSet("jvm-stacks", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.IntVar(&cfg.BufferFrames, "buffer-frames", defaultArgBufferFrames, bufferFramesHelp)

	fs.Float64Var(&cfg.Jitter, "jitter", defaultArgJitter, jitterHelp)

	fs.IntVar(&cfg.MaxFrames, "max-frames", defaultArgMaxFrames, maxFramesHelp)
	fs.UintVar(&cfg.MetadataCacheSize, "metadata-cache-size", defaultArgMetadataCacheSize,
		metadataCacheSizeHelp)

	fs.StringVar(&cfg.PprofAddr, "pprof", "", pprofHelp)
	fs.StringVar(&cfg.ProfileDir, "profile-dir", "", profileDirHelp)

	fs.DurationVar(&cfg.SampleInterval, "sample-interval", defaultArgSampleInterval,
		sampleIntervalHelp)

	fs.BoolVar(&cfg.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&cfg.Version, "version", false, versionHelp)

	fs.Usage = func() {
		fs.PrintDefaults()
	}

	cfg.Fs = fs

	return &cfg, ff.Parse(fs, args,
		ff.WithEnvVarPrefix("JVM_STACKS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// This will ignore configuration file (only) options that the current
		// sampler does not recognize.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
}
