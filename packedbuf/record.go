// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package packedbuf // import "go.opentelemetry.io/jvm-stacks/packedbuf"

import (
	"errors"
	"fmt"
	"strings"
)

// Record is the metadata of one method.
type Record struct {
	// ClassName is in internal form, e.g. java/lang/String.
	ClassName  string
	MethodName string
	Signature  string
	Native     bool
}

// Placeholder stands in for methods whose metadata could not be resolved.
var Placeholder = Record{
	ClassName:  UnknownClass,
	MethodName: UnknownMethod,
	Signature:  UnknownSignature,
}

// IsPlaceholder reports whether r equals Placeholder.
func (r Record) IsPlaceholder() bool {
	return r == Placeholder
}

// String returns the Java source form of the method, falling back to
// class.method signature if the signature is not a JVM method descriptor.
func (r Record) String() string {
	if s := demangleJavaMethod(r.ClassName, r.MethodName, r.Signature); s != "" {
		return s
	}
	return strings.ReplaceAll(r.ClassName, "/", ".") + "." + r.MethodName + " " + r.Signature
}

// ErrMalformed is returned for offset tables that do not describe data.
var ErrMalformed = errors.New("malformed packed metadata")

// Decode splits b back into records.
func Decode(b Batch) ([]Record, error) {
	if len(b.Offsets)%FieldsPerRecord != 0 {
		return nil, fmt.Errorf("%w: %d offsets is not a multiple of %d",
			ErrMalformed, len(b.Offsets), FieldsPerRecord)
	}

	fields := make([]string, len(b.Offsets))
	for i, start := range b.Offsets {
		end := int32(len(b.Data))
		if i+1 < len(b.Offsets) {
			end = b.Offsets[i+1]
		}
		if start < 0 || start > end || int(end) > len(b.Data) {
			return nil, fmt.Errorf("%w: field %d spans [%d, %d) of %d bytes",
				ErrMalformed, i, start, end, len(b.Data))
		}
		fields[i] = string(b.Data[start:end])
	}

	records := make([]Record, 0, b.NumRecords())
	for i := 0; i < len(fields); i += FieldsPerRecord {
		var native bool
		switch flag := fields[i+3]; flag {
		case Native:
			native = true
		case NotNative:
		default:
			return nil, fmt.Errorf("%w: record %d has native flag %q",
				ErrMalformed, i/FieldsPerRecord, flag)
		}
		records = append(records, Record{
			ClassName:  fields[i],
			MethodName: fields[i+1],
			Signature:  fields[i+2],
			Native:     native,
		})
	}
	return records, nil
}
