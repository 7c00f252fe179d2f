// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures and formats stack traces for the errors package.
// It is not intended to be used directly; construct errors with
// go.chromium.org/junitreport/errors instead.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// maxDepth is the maximum number of frames recorded. It is deep enough
	// to reach the testing harness frames below a failing test, which
	// report.FilterTrace knows how to drop.
	maxDepth = 16

	ellipsis = "\t..." // trailing marker line added if a stack trace is too long
)

// Stack holds a snapshot of program counters.
type Stack []uintptr

// New captures a stack trace. skip specifies the number of frames to skip from
// a stack trace. skip=0 records stack.New call as the innermost frame.
func New(skip int) Stack {
	pc := make([]uintptr, maxDepth+1)
	pc = pc[:runtime.Callers(skip+2, pc)]
	return Stack(pc)
}

// Lines returns one "\tat <func> (<file>:<line>)" entry per recorded frame,
// followed by an ellipsis line if frames were dropped.
func (s Stack) Lines() []string {
	var lines []string
	if len(s) == 0 {
		return lines
	}
	// runtime.CallersFrames handles inlined frames that a plain walk over
	// program counters would miss.
	cf := runtime.CallersFrames(s)
	for {
		f, more := cf.Next()
		lines = append(lines, fmt.Sprintf("\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
		if !more {
			return lines
		}
		if len(lines) >= maxDepth {
			return append(lines, ellipsis)
		}
	}
}

// String formats a stack trace to a human-friendly text.
func (s Stack) String() string {
	return strings.Join(s.Lines(), "\n")
}
