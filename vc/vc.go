// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "go.opentelemetry.io/jvm-stacks/vc"

import "fmt"

var (
	// The following variables are going to be set at link time using ldflags
	// and can be referenced later in the program.

	// revision of the agent
	revision = "unknown"
	// buildTimestamp, timestamp of the build
	buildTimestamp = "unknown"
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = "v0.0.0"
)

// Revision of the agent.
func Revision() string {
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return buildTimestamp
}

// Version in vX.Y.Z{-N-abbrev} format.
func Version() string {
	return version
}

// Banner is the one-line description logged on startup.
func Banner() string {
	return fmt.Sprintf("jvm-stacks %s (revision %s, build timestamp %s)",
		version, revision, buildTimestamp)
}
