// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package packedbuf // import "go.opentelemetry.io/jvm-stacks/packedbuf"

import (
	"strings"
)

// primitiveTypes maps a JVM base type descriptor to the Java type name.
var primitiveTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'V': "void",
	'Z': "boolean",
}

// descriptorReader walks a JVM field or method descriptor (JVMS §4.3).
type descriptorReader struct {
	s   string
	pos int
}

// readType writes the Java name of the next field type to sb. It returns
// false if the descriptor is malformed.
func (d *descriptorReader) readType(sb *strings.Builder) bool {
	dims := 0
	for d.pos < len(d.s) && d.s[d.pos] == '[' {
		dims++
		d.pos++
	}
	if d.pos >= len(d.s) {
		return false
	}

	c := d.s[d.pos]
	d.pos++
	if c == 'L' {
		end := strings.IndexByte(d.s[d.pos:], ';')
		if end < 0 {
			return false
		}
		sb.WriteString(strings.ReplaceAll(d.s[d.pos:d.pos+end], "/", "."))
		d.pos += end + 1
	} else if name, ok := primitiveTypes[c]; ok {
		sb.WriteString(name)
	} else {
		return false
	}

	for ; dims > 0; dims-- {
		sb.WriteString("[]")
	}
	return true
}

// demangleJavaMethod renders a method as "ret pkg.Class.name(args)". It
// returns "" if signature is not a method descriptor.
func demangleJavaMethod(class, method, signature string) string {
	end := strings.IndexByte(signature, ')')
	if end < 0 || signature[0] != '(' {
		return ""
	}

	var ret strings.Builder
	rd := descriptorReader{s: signature, pos: end + 1}
	if !rd.readType(&ret) || rd.pos != len(signature) {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(ret.String())
	sb.WriteByte(' ')
	sb.WriteString(strings.ReplaceAll(class, "/", "."))
	sb.WriteByte('.')
	sb.WriteString(method)
	sb.WriteByte('(')
	args := descriptorReader{s: signature[:end], pos: 1}
	for n := 0; args.pos < len(args.s); n++ {
		if n > 0 {
			sb.WriteString(", ")
		}
		if !args.readType(&sb) {
			return ""
		}
	}
	sb.WriteByte(')')

	return sb.String()
}
