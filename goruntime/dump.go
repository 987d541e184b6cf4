// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package goruntime // import "go.opentelemetry.io/jvm-stacks/goruntime"

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// dumpFrame is one function of a parsed goroutine traceback.
type dumpFrame struct {
	function string
	file     string
	line     int
}

// dumpGoroutine is one goroutine of a parsed traceback.
type dumpGoroutine struct {
	id     uint64
	status string
	frames []dumpFrame
}

// parseHeader parses "goroutine 18 [chan receive, 2 minutes]:".
func parseHeader(line string) (id uint64, status string, ok bool) {
	rest, found := strings.CutPrefix(line, "goroutine ")
	if !found {
		return 0, "", false
	}
	idStr, rest, found := strings.Cut(rest, " ")
	if !found {
		return 0, "", false
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	open := strings.IndexByte(rest, '[')
	end := strings.LastIndexByte(rest, ']')
	if open < 0 || end < open {
		return 0, "", false
	}
	status, _, _ = strings.Cut(rest[open+1:end], ",")
	return id, status, true
}

// functionName strips the argument list from "pkg.(*T).M(0xc000010000, 0x1)".
func functionName(line string) string {
	if i := strings.LastIndexByte(line, '('); i > 0 {
		return line[:i]
	}
	return line
}

// parseLocation parses "\t/src/net/http/server.go:3086 +0x5cb".
func parseLocation(line string) (file string, lineNo int) {
	line = strings.TrimPrefix(line, "\t")
	line, _, _ = strings.Cut(line, " +0x")
	i := strings.LastIndexByte(line, ':')
	if i < 0 {
		return line, 0
	}
	lineNo, err := strconv.Atoi(line[i+1:])
	if err != nil {
		return line, 0
	}
	return line[:i], lineNo
}

// parseDump parses the output of runtime.Stack. Creator frames ("created by")
// are not part of a goroutine's stack and are dropped.
func parseDump(dump []byte) ([]dumpGoroutine, error) {
	var (
		out     []dumpGoroutine
		cur     *dumpGoroutine
		creator bool
	)
	sc := bufio.NewScanner(bytes.NewReader(dump))
	sc.Buffer(make([]byte, 0, 64*1024), len(dump)+1)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			cur = nil
		case strings.HasPrefix(line, "goroutine "):
			id, status, ok := parseHeader(line)
			if !ok {
				return nil, fmt.Errorf("malformed goroutine header %q", line)
			}
			out = append(out, dumpGoroutine{id: id, status: status})
			cur = &out[len(out)-1]
			creator = false
		case cur == nil:
			// Text outside of a goroutine block, e.g. a panic message.
		case strings.HasPrefix(line, "\t"):
			if creator || len(cur.frames) == 0 {
				continue
			}
			f := &cur.frames[len(cur.frames)-1]
			f.file, f.line = parseLocation(line)
		case strings.HasPrefix(line, "created by "):
			creator = true
		case strings.HasPrefix(line, "..."):
			// "...additional frames elided..."
		default:
			cur.frames = append(cur.frames, dumpFrame{function: functionName(line)})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan goroutine dump: %v", err)
	}
	return out, nil
}

// splitFunction splits a fully qualified Go function name into the package
// path plus receiver type, and the remaining function name.
//
//	net/http.(*conn).serve -> net/http.conn, serve
//	main.main.func1        -> main, main.func1
func splitFunction(full string) (class, method string) {
	slash := strings.LastIndexByte(full, '/')
	dot := strings.IndexByte(full[slash+1:], '.')
	if dot < 0 {
		return "", full
	}
	dot += slash + 1
	pkg, rest := full[:dot], full[dot+1:]
	if strings.HasPrefix(rest, "(") {
		if end := strings.Index(rest, ")."); end > 0 {
			recv := strings.TrimPrefix(rest[1:end], "*")
			return pkg + "." + recv, rest[end+2:]
		}
	}
	return pkg, rest
}

// isAssembly reports whether file is an assembly source.
func isAssembly(file string) bool {
	return path.Ext(file) == ".s"
}
