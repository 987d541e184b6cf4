// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package jvmti // import "go.opentelemetry.io/jvm-stacks/jvmti"

import "fmt"

// Error is a VM error code.
type Error int

// Error codes, numbered as in jvmti.h.
const (
	ErrNone                  Error = 0
	ErrInvalidThread         Error = 10
	ErrThreadNotAlive        Error = 15
	ErrInvalidClass          Error = 21
	ErrClassNotPrepared      Error = 22
	ErrInvalidMethodID       Error = 23
	ErrMustPossessCapability Error = 99
	ErrNullPointer           Error = 100
	ErrAbsentInformation     Error = 101
	ErrIllegalArgument       Error = 103
	ErrNativeMethod          Error = 104
	ErrOutOfMemory           Error = 110
	ErrAccessDenied          Error = 111
	ErrWrongPhase            Error = 112
	ErrInternal              Error = 113
	ErrUnattachedThread      Error = 115
	ErrInvalidEnvironment    Error = 116
)

var errorNames = map[Error]string{
	ErrNone:                  "JVMTI_ERROR_NONE",
	ErrInvalidThread:         "JVMTI_ERROR_INVALID_THREAD",
	ErrThreadNotAlive:        "JVMTI_ERROR_THREAD_NOT_ALIVE",
	ErrInvalidClass:          "JVMTI_ERROR_INVALID_CLASS",
	ErrClassNotPrepared:      "JVMTI_ERROR_CLASS_NOT_PREPARED",
	ErrInvalidMethodID:       "JVMTI_ERROR_INVALID_METHODID",
	ErrMustPossessCapability: "JVMTI_ERROR_MUST_POSSESS_CAPABILITY",
	ErrNullPointer:           "JVMTI_ERROR_NULL_POINTER",
	ErrAbsentInformation:     "JVMTI_ERROR_ABSENT_INFORMATION",
	ErrIllegalArgument:       "JVMTI_ERROR_ILLEGAL_ARGUMENT",
	ErrNativeMethod:          "JVMTI_ERROR_NATIVE_METHOD",
	ErrOutOfMemory:           "JVMTI_ERROR_OUT_OF_MEMORY",
	ErrAccessDenied:          "JVMTI_ERROR_ACCESS_DENIED",
	ErrWrongPhase:            "JVMTI_ERROR_WRONG_PHASE",
	ErrInternal:              "JVMTI_ERROR_INTERNAL",
	ErrUnattachedThread:      "JVMTI_ERROR_UNATTACHED_THREAD",
	ErrInvalidEnvironment:    "JVMTI_ERROR_INVALID_ENVIRONMENT",
}

func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("JVMTI error %d", int(e))
}
