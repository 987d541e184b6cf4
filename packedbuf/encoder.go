// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package packedbuf packs the string fields of many method metadata records
// into one byte slice plus a table of field start offsets.
//
// Each record has FieldsPerRecord fields in the order class name, method name,
// signature and native flag. Fields are stored back to back without length
// prefixes or terminators: a field ends where the next one starts, the last
// one at the end of the data.
package packedbuf // import "go.opentelemetry.io/jvm-stacks/packedbuf"

import (
	"errors"
	"fmt"
	"math"
)

const (
	// FieldsPerRecord is the number of offset table entries per method.
	FieldsPerRecord = 4

	// initialBytesPerField sizes the data buffer from the method estimate.
	initialBytesPerField = 10
)

// Placeholder field values written for methods that can not be resolved.
const (
	UnknownClass     = "<unknown class>"
	UnknownMethod    = "<unknown method>"
	UnknownSignature = "()V"
	NotNative        = "0"
	Native           = "1"
)

// ErrBatchTooLarge is returned when appending would move a field offset past
// the range of Batch.Offsets.
var ErrBatchTooLarge = errors.New("packed batch too large")

// maxDataLen bounds the data of one batch so every offset fits an int32.
var maxDataLen = math.MaxInt32

// Batch is the result of one encoding pass.
type Batch struct {
	// Data holds the concatenated fields.
	Data []byte
	// Offsets holds the start offset of every field in Data, FieldsPerRecord
	// entries per record. Data never exceeds math.MaxInt32 bytes.
	Offsets []int32
}

// NumRecords returns the number of complete records in b.
func (b Batch) NumRecords() int {
	return len(b.Offsets) / FieldsPerRecord
}

// Encoder accumulates fields for one Batch at a time. It is not safe for
// concurrent use.
type Encoder struct {
	data    []byte
	offsets []int32
	grows   int
}

// Begin starts a new batch sized for an estimated number of methods. Any batch
// in progress is discarded.
func (e *Encoder) Begin(estimatedMethods int) {
	if estimatedMethods < 1 {
		estimatedMethods = 1
	}
	e.data = make([]byte, 0, estimatedMethods*FieldsPerRecord*initialBytesPerField)
	e.offsets = make([]int32, 0, estimatedMethods*FieldsPerRecord)
	e.grows = 0
}

// grow makes room for n more bytes. Capacity doubles, or grows to the exact
// size needed if doubling is not enough.
func (e *Encoder) grow(n int) {
	need := len(e.data) + n
	if need <= cap(e.data) {
		return
	}
	newCap := cap(e.data) * 2
	if newCap < need {
		newCap = need
	}
	data := make([]byte, len(e.data), newCap)
	copy(data, e.data)
	e.data = data
	e.grows++
}

// fits fails with ErrBatchTooLarge if n more bytes exceed maxDataLen.
func (e *Encoder) fits(n int) error {
	if n > maxDataLen-len(e.data) {
		return fmt.Errorf("%w: %d bytes written, %d more requested",
			ErrBatchTooLarge, len(e.data), n)
	}
	return nil
}

// AppendField appends s and records its start offset. Nothing is written on
// error.
func (e *Encoder) AppendField(s string) error {
	if err := e.fits(len(s)); err != nil {
		return err
	}
	e.grow(len(s))
	e.offsets = append(e.offsets, int32(len(e.data)))
	e.data = append(e.data, s...)
	return nil
}

// AppendRecord appends the four fields of one method. The record is written
// completely or not at all.
func (e *Encoder) AppendRecord(r Record) error {
	native := NotNative
	if r.Native {
		native = Native
	}
	if err := e.fits(len(r.ClassName) + len(r.MethodName) + len(r.Signature) +
		len(native)); err != nil {
		return err
	}
	for _, f := range [FieldsPerRecord]string{r.ClassName, r.MethodName, r.Signature, native} {
		// Cannot fail after the check above.
		_ = e.AppendField(f)
	}
	return nil
}

// AppendPlaceholder appends the record used for unresolvable methods.
func (e *Encoder) AppendPlaceholder() error {
	return e.AppendRecord(Placeholder)
}

// Len returns the number of bytes written to the current batch.
func (e *Encoder) Len() int {
	return len(e.data)
}

// Cap returns the capacity of the current data buffer.
func (e *Encoder) Cap() int {
	return cap(e.data)
}

// Grows returns how many times the data buffer was reallocated in the
// current batch.
func (e *Encoder) Grows() int {
	return e.grows
}

// Finish returns the batch trimmed to what was written and releases the
// encoder's buffers. Calling Finish without Begin returns an empty Batch.
func (e *Encoder) Finish() Batch {
	b := Batch{
		Data:    e.data[:len(e.data):len(e.data)],
		Offsets: e.offsets[:len(e.offsets):len(e.offsets)],
	}
	if b.Data == nil {
		b.Data = []byte{}
	}
	if b.Offsets == nil {
		b.Offsets = []int32{}
	}
	e.data = nil
	e.offsets = nil
	e.grows = 0
	return b
}
