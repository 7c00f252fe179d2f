// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// timestampLayout is prepended to messages by SinkLogger when timestamps are
// enabled.
const timestampLayout = "2006-01-02T15:04:05.000000Z "

// SinkLogger is a Logger that filters logs by level and hands them to a Sink.
type SinkLogger struct {
	level     Level
	timestamp bool
	sink      Sink
}

// NewSinkLogger creates a new SinkLogger.
//
// level specifies the minimum level of logs the sink should get notified of.
// If timestamp is true, a UTC timestamp is prepended to a log before it is
// sent to the sink.
func NewSinkLogger(level Level, timestamp bool, sink Sink) *SinkLogger {
	return &SinkLogger{
		level:     level,
		timestamp: timestamp,
		sink:      sink,
	}
}

// Log sends a log to the associated sink.
func (l *SinkLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	if l.timestamp {
		msg = ts.UTC().Format(timestampLayout) + msg
	}
	l.sink.Log(msg)
}

// Sink represents a destination of logs, e.g. a log file or console.
type Sink interface {
	// Log gets called for a log entry.
	Log(msg string)
}

// WriterSink is a Sink that writes logs to io.Writer, one per line.
//
// All writes to io.Writer are synchronized.
type WriterSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterSink creates a new WriterSink from io.Writer.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Log writes a log to the underlying io.Writer.
func (s *WriterSink) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, msg)
}
