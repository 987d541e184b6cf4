// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package packedbuf

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldsOf reads every field back via the offset table.
func fieldsOf(b Batch) []string {
	fields := make([]string, len(b.Offsets))
	for i, start := range b.Offsets {
		end := int32(len(b.Data))
		if i+1 < len(b.Offsets) {
			end = b.Offsets[i+1]
		}
		fields[i] = string(b.Data[start:end])
	}
	return fields
}

func TestEncoderGrowthPreservesData(t *testing.T) {
	tests := map[string]struct {
		estimate int
		fields   []string
		grows    int
	}{
		"no growth": {
			estimate: 1,
			fields:   []string{"java/lang/Object", "<init>", "()V", "0"},
			grows:    0,
		},
		"single doubling": {
			estimate: 1,
			fields:   []string{strings.Repeat("a", 30), strings.Repeat("b", 15)},
			grows:    1,
		},
		"exact fit": {
			estimate: 1,
			fields:   []string{"x", strings.Repeat("y", 200)},
			grows:    1,
		},
		"multiple growths": {
			estimate: 1,
			fields: func() []string {
				var f []string
				for i := range 64 {
					f = append(f, fmt.Sprintf("com/example/Class%d", i))
				}
				return f
			}(),
			grows: 5,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var e Encoder
			e.Begin(tc.estimate)
			for _, f := range tc.fields {
				e.AppendField(f)
			}
			assert.Equal(t, tc.grows, e.Grows())

			b := e.Finish()
			assert.Equal(t, tc.fields, fieldsOf(b))
			assert.Equal(t, strings.Join(tc.fields, ""), string(b.Data))
		})
	}
}

func TestEncoderGrowthPolicy(t *testing.T) {
	var e Encoder
	e.Begin(1)
	require.Equal(t, 40, e.Cap())

	e.AppendField(strings.Repeat("a", 41))
	assert.Equal(t, 80, e.Cap())

	e.AppendField(strings.Repeat("b", 20))
	assert.Equal(t, 80, e.Cap())

	e.AppendField(strings.Repeat("c", 200))
	assert.Equal(t, 261, e.Cap())
	assert.Equal(t, 2, e.Grows())
}

func TestEncoderOffsetTableShape(t *testing.T) {
	var e Encoder
	e.Begin(3)
	e.AppendRecord(Record{ClassName: "a/B", MethodName: "run", Signature: "()V"})
	e.AppendPlaceholder()
	e.AppendRecord(Record{ClassName: "c/D", MethodName: "nap", Signature: "(J)V", Native: true})

	b := e.Finish()
	require.Len(t, b.Offsets, 3*FieldsPerRecord)
	assert.Equal(t, 3, b.NumRecords())
	assert.Equal(t, []string{
		"a/B", "run", "()V", "0",
		"<unknown class>", "<unknown method>", "()V", "0",
		"c/D", "nap", "(J)V", "1",
	}, fieldsOf(b))
}

func TestEncoderBatchLimit(t *testing.T) {
	saved := maxDataLen
	t.Cleanup(func() { maxDataLen = saved })
	maxDataLen = 40

	var e Encoder
	e.Begin(1)
	require.NoError(t, e.AppendRecord(Record{ClassName: "a/B", MethodName: "run",
		Signature: "()V"}))

	// The record does not fit and leaves no partial fields behind.
	err := e.AppendRecord(Record{ClassName: strings.Repeat("x", 40), MethodName: "m",
		Signature: "()V"})
	require.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Equal(t, 10, e.Len())

	require.NoError(t, e.AppendField(strings.Repeat("y", 30)))
	assert.ErrorIs(t, e.AppendField("z"), ErrBatchTooLarge)
	assert.ErrorIs(t, e.AppendPlaceholder(), ErrBatchTooLarge)

	b := e.Finish()
	assert.Len(t, b.Data, 40)
	assert.Equal(t, []string{"a/B", "run", "()V", "0", strings.Repeat("y", 30)},
		fieldsOf(b))
}

func TestEncoderEmptyFields(t *testing.T) {
	var e Encoder
	e.Begin(1)
	e.AppendField("")
	e.AppendField("m")
	e.AppendField("")
	e.AppendField("")

	b := e.Finish()
	assert.Equal(t, []int32{0, 0, 1, 1}, b.Offsets)
	assert.Equal(t, []string{"", "m", "", ""}, fieldsOf(b))
}

func TestEncoderFinishResets(t *testing.T) {
	var e Encoder
	empty := e.Finish()
	assert.Empty(t, empty.Data)
	assert.Empty(t, empty.Offsets)

	e.Begin(2)
	e.AppendField("first")
	first := e.Finish()
	assert.Equal(t, 0, e.Len())

	e.Begin(2)
	e.AppendField("second")
	second := e.Finish()

	assert.Equal(t, "first", string(first.Data))
	assert.Equal(t, "second", string(second.Data))
	assert.Equal(t, []int32{0}, second.Offsets)

	// Finish is safe to repeat.
	again := e.Finish()
	assert.Empty(t, again.Offsets)
}
