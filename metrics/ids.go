// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/jvm-stacks/metrics"

// Below are the different metric IDs that we currently implement.
const (
	// Leave out the 0 value. It's an indication of not explicitly initialized variables.
	IDInvalid MetricID = iota

	// Number of method ids that could not be compacted because the base table is full
	IDCompactFailures

	// Number of base table slots in use
	IDBaseSlotsAssigned

	// Number of metadata records resolved from the VM
	IDRecordsResolved

	// Number of placeholder records emitted for unresolvable methods
	IDPlaceholderRecords

	// Number of failed native flag lookups
	IDNativeFlagFailures

	// Number of metadata cache hits
	IDMetadataCacheHit

	// Number of metadata cache misses
	IDMetadataCacheMiss

	// Number of single thread stack captures
	IDCurrentStackCaptures

	// Number of single thread captures requested without scratch buffers
	IDUnallocatedCaptures

	// Number of all-threads stack captures
	IDAllThreadsCaptures

	// Number of threads seen by all-threads captures
	IDThreadsCaptured

	// Number of frames captured
	IDFramesCaptured

	// IDMax is the highest metric ID in use plus one.
	IDMax
)

var definitions = []MetricDefinition{
	{IDCompactFailures, MetricTypeCounter, "methodid.compact.failures",
		"Method ids that could not be compacted", "{id}"},
	{IDBaseSlotsAssigned, MetricTypeGauge, "methodid.base_slots.assigned",
		"Base table slots in use", "{slot}"},
	{IDRecordsResolved, MetricTypeCounter, "resolver.records.resolved",
		"Method metadata records resolved from the VM", "{record}"},
	{IDPlaceholderRecords, MetricTypeCounter, "resolver.records.placeholder",
		"Placeholder records emitted for unresolvable methods", "{record}"},
	{IDNativeFlagFailures, MetricTypeCounter, "resolver.native_flag.failures",
		"Failed native flag lookups", "{lookup}"},
	{IDMetadataCacheHit, MetricTypeCounter, "resolver.cache.hit",
		"Metadata cache hits", "{lookup}"},
	{IDMetadataCacheMiss, MetricTypeCounter, "resolver.cache.miss",
		"Metadata cache misses", "{lookup}"},
	{IDCurrentStackCaptures, MetricTypeCounter, "stacks.current.captures",
		"Single thread stack captures", "{capture}"},
	{IDUnallocatedCaptures, MetricTypeCounter, "stacks.current.unallocated",
		"Single thread captures requested without scratch buffers", "{capture}"},
	{IDAllThreadsCaptures, MetricTypeCounter, "stacks.all.captures",
		"All-threads stack captures", "{capture}"},
	{IDThreadsCaptured, MetricTypeCounter, "stacks.all.threads",
		"Threads seen by all-threads captures", "{thread}"},
	{IDFramesCaptured, MetricTypeCounter, "stacks.frames",
		"Frames captured", "{frame}"},
}

// GetDefinitions returns the definitions of all metrics.
func GetDefinitions() []MetricDefinition {
	return definitions
}
