// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package methodid compresses pointer-width method identifiers handed out by
// the VM into 32-bit ids and back.
//
// A CompactID keeps the low OffsetBits of the NativeID and stores the index of
// a BaseTable slot holding the remaining high bits in its top BaseBits. Since
// the VM allocates method ids in a handful of memory regions, four slots cover
// the lifetime of a typical process.
package methodid // import "go.opentelemetry.io/jvm-stacks/methodid"

import (
	"errors"
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/jvm-stacks/metrics"
)

// NativeID is the opaque pointer-width method handle issued by the VM.
type NativeID uint64

func (id NativeID) String() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

// CompactID is the 32-bit reversible encoding of a NativeID.
type CompactID uint32

// InvalidCompactID is what CompactOrZero returns when a NativeID can not be
// encoded. The value is also a legal encoding, so consumers of the wire format
// can not tell the two apart.
const InvalidCompactID CompactID = 0

var (
	// ErrTableFull is returned when a NativeID needs a fifth base slot.
	ErrTableFull = errors.New("method id base table is full")
	// ErrUnassignedSlot is returned when decoding a CompactID whose slot was
	// never assigned.
	ErrUnassignedSlot = errors.New("compact id refers to an unassigned base slot")
)

// needsConversion is true when the host pointer width exceeds 32 bits.
const needsConversion = unsafe.Sizeof(uintptr(0)) != unsafe.Sizeof(uint32(0))

// Compactor maps NativeIDs to CompactIDs through a BaseTable.
type Compactor struct {
	table   *BaseTable
	convert bool
}

// NewCompactor returns a Compactor for the host pointer width, recording base
// patterns in table.
func NewCompactor(table *BaseTable) *Compactor {
	return newCompactor(table, needsConversion)
}

func newCompactor(table *BaseTable, convert bool) *Compactor {
	return &Compactor{table: table, convert: convert}
}

// Table returns the BaseTable the Compactor records into.
func (c *Compactor) Table() *BaseTable {
	return c.table
}

// Compact encodes id. It fails with ErrTableFull if the high-order bits of id
// are not registered and every slot is taken. The table is not modified on
// failure.
func (c *Compactor) Compact(id NativeID) (CompactID, error) {
	if !c.convert {
		return CompactID(id), nil
	}

	slot, added, ok := c.table.slotFor(uint64(id) & baseMask)
	if !ok {
		return InvalidCompactID, fmt.Errorf("%w: can not convert %v", ErrTableFull, id)
	}
	if added {
		log.Debugf("Registered method id base 0x%x in slot %d",
			uint64(id)&baseMask, slot)
	}

	return CompactID(slot<<OffsetBits | uint32(uint64(id)&offsetMask)), nil
}

// CompactOrZero is Compact for wire formats without room for an error: on
// failure it logs a warning and returns InvalidCompactID.
func (c *Compactor) CompactOrZero(id NativeID) CompactID {
	cid, err := c.Compact(id)
	if err != nil {
		log.Warnf("Cannot convert method id %v: %v", id, err)
		metrics.Add(metrics.IDCompactFailures, 1)
		return InvalidCompactID
	}
	return cid
}

// Decompact reverses Compact. It fails with ErrUnassignedSlot if cid does not
// come from a previous Compact call on the same table.
func (c *Compactor) Decompact(cid CompactID) (NativeID, error) {
	if !c.convert {
		return NativeID(cid), nil
	}

	slot := uint32(cid) >> OffsetBits
	base, ok := c.table.Base(slot)
	if !ok {
		return 0, fmt.Errorf("%w: id 0x%x, slot %d", ErrUnassignedSlot, uint32(cid), slot)
	}
	return NativeID(base | uint64(cid)&offsetMask), nil
}
