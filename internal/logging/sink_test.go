// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/junitreport/internal/logging"
)

// sliceSink is a logging.Sink recording messages.
type sliceSink struct {
	msgs []string
}

func (s *sliceSink) Log(msg string) {
	s.msgs = append(s.msgs, msg)
}

func TestSinkLogger_Level(t *testing.T) {
	sink := &sliceSink{}
	logger := logging.NewSinkLogger(logging.LevelInfo, false, sink)

	logger.Log(logging.LevelDebug, time.Time{}, "dropped")
	logger.Log(logging.LevelInfo, time.Time{}, "kept")

	if diff := cmp.Diff(sink.msgs, []string{"kept"}); diff != "" {
		t.Errorf("Messages mismatch (-got +want):\n%s", diff)
	}
}

func TestSinkLogger_Timestamp(t *testing.T) {
	sink := &sliceSink{}
	logger := logging.NewSinkLogger(logging.LevelDebug, true, sink)

	ts := time.Date(2021, 2, 3, 19, 0, 2, 123456000, time.FixedZone("Local", 9*60*60))
	logger.Log(logging.LevelInfo, ts, "report opened")

	want := []string{"2021-02-03T10:00:02.123456Z report opened"}
	if diff := cmp.Diff(sink.msgs, want); diff != "" {
		t.Errorf("Messages mismatch (-got +want):\n%s", diff)
	}
}

func TestSinkLogger_WriterSink(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSinkLogger(logging.LevelDebug, false, logging.NewWriterSink(&buf))

	logger.Log(logging.LevelInfo, time.Time{}, "foo")
	logger.Log(logging.LevelDebug, time.Time{}, "bar")

	if got, want := buf.String(), "foo\nbar\n"; got != want {
		t.Errorf("Written logs = %q; want %q", got, want)
	}
}
