// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package methodid // import "go.opentelemetry.io/jvm-stacks/methodid"

import (
	"sync"

	"go.opentelemetry.io/jvm-stacks/metrics"
)

const (
	// BaseBits is the number of high CompactID bits that select a base slot.
	BaseBits = 2
	// OffsetBits is the number of low NativeID bits kept verbatim in a CompactID.
	OffsetBits = 32 - BaseBits
	// NumBases is the capacity of the BaseTable.
	NumBases = 1 << BaseBits

	offsetMask = uint64(1)<<OffsetBits - 1
	baseMask   = ^offsetMask
)

// BaseTable registers up to NumBases distinct high-order bit patterns of
// NativeIDs. A slot is assigned at most once and never changes afterwards.
type BaseTable struct {
	mu       sync.RWMutex
	bases    [NumBases]uint64
	assigned int
}

// NewBaseTable returns a table with every slot unassigned.
func NewBaseTable() *BaseTable {
	return &BaseTable{}
}

// slotFor returns the slot holding base, assigning the first free slot if
// base is not registered yet. added reports whether this call assigned the
// slot. ok is false when the table is full.
func (t *BaseTable) slotFor(base uint64) (slot uint32, added, ok bool) {
	t.mu.RLock()
	slot, ok = t.find(base)
	t.mu.RUnlock()
	if ok {
		return slot, false, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Another caller may have registered base in the meantime.
	if slot, ok = t.find(base); ok {
		return slot, false, true
	}
	if t.assigned == NumBases {
		return 0, false, false
	}
	slot = uint32(t.assigned)
	t.bases[slot] = base
	t.assigned++
	// Set under the write lock so the gauge never moves backwards.
	metrics.Set(metrics.IDBaseSlotsAssigned, metrics.MetricValue(t.assigned))
	return slot, true, true
}

func (t *BaseTable) find(base uint64) (uint32, bool) {
	for i := 0; i < t.assigned; i++ {
		if t.bases[i] == base {
			return uint32(i), true
		}
	}
	return 0, false
}

// Base returns the pattern registered in slot.
func (t *BaseTable) Base(slot uint32) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(slot) >= t.assigned {
		return 0, false
	}
	return t.bases[slot], true
}

// Assigned returns the number of slots in use.
func (t *BaseTable) Assigned() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.assigned
}
