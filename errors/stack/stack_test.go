// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package stack

import (
	"regexp"
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	trace := New(0).String()

	lines := strings.Split(trace, "\n")
	if len(lines) < 2 {
		t.Fatalf("Stack trace is too short: %q", trace)
	}

	firstRegexp := regexp.MustCompile(`^\tat go\.chromium\.org/junitreport/errors/stack\.TestShort \(stack_test.go:\d+\)$`)
	if s := lines[0]; !firstRegexp.MatchString(s) {
		t.Errorf("First line of stack trace is wrong: expected to match %q, got %q", firstRegexp, s)
	}

	if s := lines[len(lines)-1]; s == ellipsis {
		t.Errorf("Stack trace ends with ellipsis")
	}
}

func getDeepStack(depth int) Stack {
	if depth == 0 {
		return New(0)
	}
	return getDeepStack(depth - 1)
}

func TestLong(t *testing.T) {
	lines := getDeepStack(maxDepth).Lines()

	if len(lines) != maxDepth+1 {
		t.Fatalf("Stack trace has wrong number of lines: expected %d, got %d", maxDepth+1, len(lines))
	}

	re := regexp.MustCompile(`^\tat go\.chromium\.org/junitreport/errors/stack\.getDeepStack \(stack_test.go:\d+\)$`)
	for i, line := range lines[:len(lines)-1] {
		if !re.MatchString(line) {
			t.Errorf("Line %d of stack trace is wrong: expected to match %q, got %q", i, re, line)
		}
	}
	if last := lines[len(lines)-1]; last != ellipsis {
		t.Errorf("Stack trace ends with %q; want %q", last, ellipsis)
	}
}

func TestEmpty(t *testing.T) {
	if s := Stack(nil).String(); s != "" {
		t.Errorf("Empty stack formatted as %q; want empty string", s)
	}
}
