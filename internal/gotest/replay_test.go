// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gotest_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/junitreport/internal/gotest"
	"go.chromium.org/junitreport/internal/testutil"
	"go.chromium.org/junitreport/report"
)

// recorder is a gotest.Listener recording events as strings.
type recorder struct {
	events []string
}

func (r *recorder) OnStart(ctx context.Context, c report.Case) {
	r.events = append(r.events, "start "+c.String())
}

func (r *recorder) OnProblem(ctx context.Context, c report.Case, kind report.Kind, err error) {
	r.events = append(r.events, fmt.Sprintf("%v %v: %s", kind, c, report.SafeMessage(err)))
}

func (r *recorder) OnEnd(ctx context.Context, c report.Case) {
	r.events = append(r.events, "end "+c.String())
}

const stream = `{"Action":"start","Package":"ex/a"}
{"Action":"run","Package":"ex/a","Test":"TestPass"}
{"Action":"output","Package":"ex/a","Test":"TestPass","Output":"=== RUN   TestPass\n"}
{"Action":"output","Package":"ex/a","Test":"TestPass","Output":"--- PASS: TestPass (0.00s)\n"}
{"Action":"pass","Package":"ex/a","Test":"TestPass","Elapsed":0}
{"Action":"run","Package":"ex/a","Test":"TestFail"}
{"Action":"output","Package":"ex/a","Test":"TestFail","Output":"=== RUN   TestFail\n"}
{"Action":"output","Package":"ex/a","Test":"TestFail","Output":"    a_test.go:12: got 1, want 2\n"}
{"Action":"output","Package":"ex/a","Test":"TestFail","Output":"--- FAIL: TestFail (0.00s)\n"}
{"Action":"fail","Package":"ex/a","Test":"TestFail","Elapsed":0}
{"Action":"run","Package":"ex/a","Test":"TestSkip"}
{"Action":"skip","Package":"ex/a","Test":"TestSkip","Elapsed":0}
{"Action":"output","Package":"ex/a","Output":"FAIL\n"}
{"Action":"fail","Package":"ex/a","Elapsed":0.01}
not json

{"Action":"output","Package":"ex/b","Output":"# ex/b\n"}
{"Action":"output","Package":"ex/b","Output":"b.go:3:1: syntax error\n"}
{"Action":"fail","Package":"ex/b","Elapsed":0}
{"Action":"run","Package":"ex/c","Test":"TestPanic"}
{"Action":"output","Package":"ex/c","Test":"TestPanic","Output":"=== RUN   TestPanic\n"}
{"Action":"output","Package":"ex/c","Test":"TestPanic","Output":"--- FAIL: TestPanic (0.00s)\n"}
{"Action":"output","Package":"ex/c","Test":"TestPanic","Output":"panic: boom [recovered]\n"}
{"Action":"output","Package":"ex/c","Test":"TestPanic","Output":"\tpanic: boom\n"}
{"Action":"fail","Package":"ex/c","Test":"TestPanic","Elapsed":0}
{"Action":"run","Package":"ex/d","Test":"TestHang"}
{"Action":"output","Package":"ex/d","Test":"TestHang","Output":"=== RUN   TestHang\n"}
`

func TestReplay(t *testing.T) {
	var rec recorder
	var echo bytes.Buffer
	malformed, err := gotest.Replay(context.Background(), strings.NewReader(stream), &rec, &echo)
	if err != nil {
		t.Fatal("Replay failed: ", err)
	}
	if malformed != 1 {
		t.Errorf("Replay returned %d malformed lines; want 1", malformed)
	}

	want := []string{
		"start ex/a.TestPass",
		"end ex/a.TestPass",
		"start ex/a.TestFail",
		"failure ex/a.TestFail: testing.T: got 1, want 2",
		"end ex/a.TestFail",
		"start ex/a.TestSkip",
		"end ex/a.TestSkip",
		"start ex/b.(package)",
		"error ex/b.(package): gotest.PackageFailure: <null>",
		"end ex/b.(package)",
		"start ex/c.TestPanic",
		"error ex/c.TestPanic: runtime.Panic: panic: boom [recovered]",
		"end ex/c.TestPanic",
		"start ex/d.TestHang",
		"error ex/d.TestHang: gotest.Incomplete: test did not complete",
		"end ex/d.TestHang",
	}
	if diff := cmp.Diff(rec.events, want); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}

	const wantEcho = `=== RUN   TestPass
--- PASS: TestPass (0.00s)
=== RUN   TestFail
    a_test.go:12: got 1, want 2
--- FAIL: TestFail (0.00s)
FAIL
not json
# ex/b
b.go:3:1: syntax error
=== RUN   TestPanic
--- FAIL: TestPanic (0.00s)
panic: boom [recovered]
	panic: boom
=== RUN   TestHang
`
	if diff := cmp.Diff(echo.String(), wantEcho); diff != "" {
		t.Errorf("Echoed output mismatch (-got +want):\n%s", diff)
	}
}

func TestReplayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rec recorder
	if _, err := gotest.Replay(ctx, strings.NewReader(stream), &rec, nil); err == nil {
		t.Error("Replay succeeded with a canceled context")
	}
	if len(rec.events) != 0 {
		t.Errorf("Replay emitted events with a canceled context: %v", rec.events)
	}
}

func TestReplayToReport(t *testing.T) {
	ctx := context.Background()
	cfg := report.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "report.xml")
	sink, err := report.Start(ctx, cfg)
	if err != nil {
		t.Fatal("Start failed: ", err)
	}
	if _, err := gotest.Replay(ctx, strings.NewReader(stream), sink, nil); err != nil {
		t.Fatal("Replay failed: ", err)
	}
	if err := sink.Finalize(ctx); err != nil {
		t.Fatal("Finalize failed: ", err)
	}

	const want = `<?xml version='1.0' encoding='utf-8' standalone='yes'?>
<testsuites>
  <testsuite name="ex/a">
    <testcase classname="ex/a" name="TestPass"></testcase>
    <testcase classname="ex/a" name="TestFail">
      <failure message="testing.T: got 1, want 2" type="testing.T">--- FAIL: TestFail (0.00s)
    a_test.go:12: got 1, want 2</failure>
    </testcase>
    <testcase classname="ex/a" name="TestSkip"></testcase>
  </testsuite>
  <testsuite name="ex/b">
    <testcase classname="ex/b" name="(package)">
      <error message="gotest.PackageFailure: &lt;null&gt;" type="gotest.PackageFailure">FAIL
# ex/b
b.go:3:1: syntax error</error>
    </testcase>
  </testsuite>
  <testsuite name="ex/c">
    <testcase classname="ex/c" name="TestPanic">
      <error message="runtime.Panic: panic: boom [recovered]" type="runtime.Panic">--- FAIL: TestPanic (0.00s)
panic: boom [recovered]
&#x9;panic: boom</error>
    </testcase>
  </testsuite>
  <testsuite name="ex/d">
    <testcase classname="ex/d" name="TestHang">
      <error message="gotest.Incomplete: test did not complete" type="gotest.Incomplete">--- INCOMPLETE: TestHang</error>
    </testcase>
  </testsuite>
</testsuites>
`
	got := testutil.ReadFile(t, cfg.Path)
	testutil.CheckWellFormed(t, got)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Report mismatch (-got +want):\n%s", diff)
	}
}

func TestFailure(t *testing.T) {
	f := &gotest.Failure{
		Test: "TestFail",
		Output: []string{
			"=== RUN   TestFail",
			"    a_test.go:12: got 1, want 2",
			"    a_test.go:13: second",
			"--- FAIL: TestFail (0.00s)",
		},
	}
	if got, want := f.Error(), "got 1, want 2"; got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
	if got, want := f.TypeName(), "testing.T"; got != want {
		t.Errorf("TypeName() = %q; want %q", got, want)
	}
	const wantTrace = "--- FAIL: TestFail (0.00s)\n    a_test.go:12: got 1, want 2\n    a_test.go:13: second"
	if diff := cmp.Diff(f.Trace(), wantTrace); diff != "" {
		t.Errorf("Trace() mismatch (-got +want):\n%s", diff)
	}
}
