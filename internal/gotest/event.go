// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gotest turns the event stream of "go test -json" into report
// lifecycle events.
package gotest

import (
	"regexp"
	"strings"
	"time"
)

// Event is a single event emitted by "go test -json" (see "go doc test2json").
type Event struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// Actions of Event.
const (
	actionRun    = "run"
	actionOutput = "output"
	actionPass   = "pass"
	actionFail   = "fail"
	actionSkip   = "skip"
)

const (
	typeFailure    = "testing.T"
	typePanic      = "runtime.Panic"
	typeIncomplete = "gotest.Incomplete"
	typePackage    = "gotest.PackageFailure"

	incompleteMessage = "test did not complete"
)

// logLineRE matches a line logged by t.Error and friends, e.g.
// "    foo_test.go:12: got 1, want 2".
var logLineRE = regexp.MustCompile(`^\s*[^\s:]+\.go:\d+: (.*)$`)

// Failure describes a failed Go test. It reports its own type name and trace
// to the report package.
type Failure struct {
	// Test is the name of the failed test, or empty for a package failure.
	Test string
	// Output holds the lines printed by the test, without line terminators.
	Output []string
	// Panicked is set if the test panicked.
	Panicked bool
	// Incomplete is set if the stream ended while the test was running.
	Incomplete bool
}

// Error returns the first message logged by the test, the panic message, or
// an empty string if neither is found.
func (f *Failure) Error() string {
	if f.Incomplete {
		return incompleteMessage
	}
	for _, l := range f.Output {
		if f.Panicked {
			if t := strings.TrimSpace(l); strings.HasPrefix(t, "panic: ") {
				return t
			}
			continue
		}
		if m := logLineRE.FindStringSubmatch(l); m != nil {
			return m[1]
		}
	}
	return ""
}

// TypeName returns the type reported for f.
func (f *Failure) TypeName() string {
	switch {
	case f.Incomplete:
		return typeIncomplete
	case f.Panicked:
		return typePanic
	case f.Test == "":
		return typePackage
	default:
		return typeFailure
	}
}

// Trace returns the output of the test, headed by its result line.
func (f *Failure) Trace() string {
	var head string
	body := make([]string, 0, len(f.Output))
	for _, l := range f.Output {
		switch t := strings.TrimSpace(l); {
		case strings.HasPrefix(t, "=== "):
		case strings.HasPrefix(t, "--- FAIL: "):
			if head == "" {
				head = t
			}
		default:
			body = append(body, l)
		}
	}
	if head == "" {
		switch {
		case f.Incomplete:
			head = "--- INCOMPLETE: " + f.Test
		case f.Test == "":
			head = "FAIL"
		default:
			head = "--- FAIL: " + f.Test
		}
	}
	return strings.Join(append([]string{head}, body...), "\n")
}

// isPanic reports whether output shows a panic.
func isPanic(output []string) bool {
	for _, l := range output {
		if strings.HasPrefix(l, "panic: ") {
			return true
		}
	}
	return false
}
