// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gotest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/report"
)

const (
	// maxLineSize is the longest event line accepted.
	maxLineSize = 1 << 20
	// maxOutputLines is the number of most recent output lines kept per test.
	maxOutputLines = 500

	// packageCase names the case reporting a package-level failure.
	packageCase = "(package)"
)

// Listener receives report lifecycle events. *report.Sink implements it.
type Listener interface {
	OnStart(ctx context.Context, c report.Case)
	OnProblem(ctx context.Context, c report.Case, kind report.Kind, err error)
	OnEnd(ctx context.Context, c report.Case)
}

type key struct {
	pkg, test string
}

// output is a bounded buffer of output lines.
type output struct {
	lines   []string
	dropped int
}

func (o *output) add(s string) {
	o.lines = append(o.lines, strings.TrimSuffix(s, "\n"))
	if len(o.lines) > maxOutputLines {
		n := len(o.lines) - maxOutputLines
		o.dropped += n
		o.lines = append(o.lines[:0], o.lines[n:]...)
	}
}

func (o *output) get() []string {
	if o.dropped == 0 {
		return o.lines
	}
	return append([]string{fmt.Sprintf("[%d earlier lines omitted]", o.dropped)}, o.lines...)
}

type replayer struct {
	l        Listener
	echo     io.Writer
	running  map[key]*output
	order    []key // start order of running tests
	pkgOut   map[string]*output
	pkgFails map[string]bool // packages with a failed test
}

// Replay reads "go test -json" events from r and reports every finished test
// to l as a burst of OnStart, optional OnProblem and OnEnd calls, with the
// package import path as suite name. Passed and skipped tests are reported
// without a problem; failed tests are reported as failures, or as errors if
// they panicked. A failed package without any failed test (e.g. a build
// failure) is reported as an error of a "(package)" case. Tests still running
// when r ends are reported as errors.
//
// If echo is non-nil, the test output is copied to it as it is read, as are
// lines that are not JSON events. Replay returns the number of such lines.
func Replay(ctx context.Context, r io.Reader, l Listener, echo io.Writer) (malformed int, err error) {
	rp := &replayer{
		l:        l,
		echo:     echo,
		running:  make(map[key]*output),
		pkgOut:   make(map[string]*output),
		pkgFails: make(map[string]bool),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return malformed, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil || ev.Action == "" {
			malformed++
			rp.print(string(line) + "\n")
			continue
		}
		rp.handle(ctx, ev)
	}
	rp.flush(ctx)
	if err := sc.Err(); err != nil {
		return malformed, errors.Wrap(err, "failed to read test events")
	}
	if malformed > 0 {
		logging.Debugf(ctx, "Skipped %d lines that are not test events", malformed)
	}
	return malformed, nil
}

func (rp *replayer) print(s string) {
	if rp.echo != nil {
		io.WriteString(rp.echo, s)
	}
}

func (rp *replayer) handle(ctx context.Context, ev Event) {
	if ev.Test == "" {
		rp.handlePackage(ctx, ev)
		return
	}
	k := key{ev.Package, ev.Test}
	switch ev.Action {
	case actionRun:
		rp.start(k)
	case actionOutput:
		rp.print(ev.Output)
		rp.start(k).add(ev.Output)
	case actionPass, actionSkip:
		rp.finish(k)
		rp.report(ctx, k, nil)
	case actionFail:
		out := rp.finish(k)
		rp.pkgFails[ev.Package] = true
		rp.report(ctx, k, &Failure{Test: ev.Test, Output: out, Panicked: isPanic(out)})
	}
}

func (rp *replayer) handlePackage(ctx context.Context, ev Event) {
	switch ev.Action {
	case actionOutput:
		rp.print(ev.Output)
		o, ok := rp.pkgOut[ev.Package]
		if !ok {
			o = &output{}
			rp.pkgOut[ev.Package] = o
		}
		o.add(ev.Output)
	case actionFail:
		var out []string
		if o, ok := rp.pkgOut[ev.Package]; ok {
			out = o.get()
		}
		if !rp.pkgFails[ev.Package] {
			rp.report(ctx, key{ev.Package, packageCase}, &Failure{Output: out, Panicked: isPanic(out)})
		}
		delete(rp.pkgOut, ev.Package)
		delete(rp.pkgFails, ev.Package)
	case actionPass, actionSkip:
		delete(rp.pkgOut, ev.Package)
		delete(rp.pkgFails, ev.Package)
	}
}

// start returns the output buffer of the running test k, registering k if
// it is not running yet.
func (rp *replayer) start(k key) *output {
	if o, ok := rp.running[k]; ok {
		return o
	}
	o := &output{}
	rp.running[k] = o
	rp.order = append(rp.order, k)
	return o
}

// finish unregisters the running test k and returns its output.
func (rp *replayer) finish(k key) []string {
	o, ok := rp.running[k]
	if !ok {
		return nil
	}
	delete(rp.running, k)
	for i, rk := range rp.order {
		if rk == k {
			rp.order = append(rp.order[:i], rp.order[i+1:]...)
			break
		}
	}
	return o.get()
}

// flush reports tests that never finished.
func (rp *replayer) flush(ctx context.Context) {
	for _, k := range append([]key(nil), rp.order...) {
		out := rp.finish(k)
		logging.Infof(ctx, "Test %s.%s did not complete", k.pkg, k.test)
		rp.report(ctx, k, &Failure{Test: k.test, Output: out, Incomplete: true})
	}
}

// report emits the events of one test. f is nil for tests without problems.
func (rp *replayer) report(ctx context.Context, k key, f *Failure) {
	c := report.Case{Suite: k.pkg, Name: k.test}
	rp.l.OnStart(ctx, c)
	if f != nil {
		kind := report.Failure
		if f.Panicked || f.Incomplete || f.Test == "" {
			kind = report.Error
		}
		rp.l.OnProblem(ctx, c, kind, f)
	}
	rp.l.OnEnd(ctx, c)
}
