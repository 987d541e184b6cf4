// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/jvm-stacks/internal/controller"

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/pprof/profile"

	"go.opentelemetry.io/jvm-stacks/jvmti"
	"go.opentelemetry.io/jvm-stacks/methodid"
	"go.opentelemetry.io/jvm-stacks/packedbuf"
	"go.opentelemetry.io/jvm-stacks/threadstatus"
)

// capture is the raw result of one round.
type capture struct {
	threads []jvmti.Thread
	states  []threadstatus.Status
	frames  [][]methodid.CompactID
	// records holds the metadata of the method at index[id].
	records []packedbuf.Record
	index   map[methodid.CompactID]int
}

// buildProfile turns a round into a goroutine-style profile: one sample per
// thread, labeled with the thread handle and status.
func buildProfile(c *capture, at time.Time, interval time.Duration) *profile.Profile {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: "threads",
			Unit: "count",
		}},
		TimeNanos: at.UnixNano(),
		PeriodType: &profile.ValueType{
			Type: "wall",
			Unit: "nanoseconds",
		},
		Period: int64(interval),
	}

	// Locations and functions are numbered like the records, from 1.
	locations := make([]*profile.Location, len(c.records))
	for i, rec := range c.records {
		fn := &profile.Function{
			ID:         uint64(i + 1),
			Name:       rec.ClassName + "." + rec.MethodName,
			SystemName: rec.String(),
		}
		prof.Function = append(prof.Function, fn)
		locations[i] = &profile.Location{
			ID:   uint64(i + 1),
			Line: []profile.Line{{Function: fn}},
		}
	}
	prof.Location = locations

	for i, stack := range c.frames {
		sampleLocations := make([]*profile.Location, 0, len(stack))
		for _, id := range stack {
			sampleLocations = append(sampleLocations, locations[c.index[id]])
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value:    []int64{1},
			Location: sampleLocations,
			Label: map[string][]string{
				"thread": {strconv.FormatUint(uint64(c.threads[i]), 10)},
				"state":  {c.states[i].String()},
			},
		})
	}
	return prof
}

// writeProfile stores prof gzip compressed as dir/round-<round>.pb.gz.
func writeProfile(dir string, round int, prof *profile.Profile) (string, error) {
	name := filepath.Join(dir, fmt.Sprintf("round-%06d.pb.gz", round))
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}
	if err := prof.Write(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write profile %s: %w", name, err)
	}
	return name, f.Close()
}
