// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import "strings"

// DefaultTraceFilters lists substrings of trace lines that are noise in
// almost every failure: frames of the testing harness, runtime plumbing and
// reflection shims sitting below the test function.
var DefaultTraceFilters = []string{
	"testing.tRunner",
	"testing.(*T).Run",
	"testing.runTests",
	"testing.(*M).Run",
	"testing/testing.go:",
	"created by testing.",
	"runtime.goexit",
	"runtime.gopanic",
	"runtime.main",
	"runtime/panic.go:",
	"reflect.Value.call",
	"reflect.Value.Call",
	"_testmain.go",
	"\t...",
}

// FilterTrace removes every line containing any of filters from trace,
// except for the first line, which describes the error itself and is always
// kept. Matching is by plain substring; the order of the remaining lines is
// preserved, as is a trailing newline.
func FilterTrace(trace string, filters []string) string {
	if trace == "" || len(filters) == 0 {
		return trace
	}
	trailing := strings.HasSuffix(trace, "\n")
	lines := strings.Split(strings.TrimSuffix(trace, "\n"), "\n")

	kept := make([]string, 1, len(lines))
	kept[0] = lines[0]
	for _, line := range lines[1:] {
		if !filtered(line, filters) {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	if trailing {
		out += "\n"
	}
	return out
}

func filtered(line string, filters []string) bool {
	for _, f := range filters {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}
