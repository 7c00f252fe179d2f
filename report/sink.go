// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"context"
	"sync"
	"time"

	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/watch"
)

const (
	// SyntheticMessage is the message of errors reported by the log watcher.
	SyntheticMessage = "Crash detected in system log"
	// SyntheticType is the type of errors reported by the log watcher.
	SyntheticType = "watch.CrashDetected"

	// watcherStopTimeout bounds how long Finalize waits for the crash log
	// watcher to deliver a crash it is still capturing.
	watcherStopTimeout = 10 * time.Second
)

// Option customizes a Sink created by Start.
type Option func(s *Sink)

// WithLogSource makes the Sink watch src instead of the source named by
// Config.WatchSource. It has no effect unless Config.WatchKeywords is set.
func WithLogSource(src watch.Source) Option {
	return func(s *Sink) { s.src = src }
}

// Sink turns test lifecycle events into one or more JUnit XML reports.
//
// In single-file mode all suites go to one document. In multi-file mode
// every suite gets its own document, whose path is derived from the
// configured pattern by SuitePath.
//
// Sink tolerates out-of-order events and never fails a lifecycle call.
// After Close or Finalize, further events are ignored. All methods are safe
// for concurrent use; a crash log watcher may call AddSyntheticError and
// Finalize from its own goroutine.
type Sink struct {
	cfg     Config
	path    string   // report path, or path pattern in multi-file mode
	filters []string // nil if trace filtering is off
	src     watch.Source

	mu       sync.Mutex
	tracker  SuiteTracker
	writer   *Writer        // current writer, nil until the first event
	used     map[string]int // number of writers opened per path
	firstErr error
	closed   bool
	watcher  *watch.Watcher
}

// Start validates cfg and returns a new Sink. Report files are created
// lazily on the first event. If cfg.WatchKeywords is non-empty, a crash log
// watcher is started for the lifetime of the Sink.
func Start(ctx context.Context, cfg Config, opts ...Option) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Sink{
		cfg:     cfg,
		path:    cfg.reportPath(),
		filters: cfg.filters(),
		used:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(cfg.WatchKeywords) == 0 {
		if s.src != nil {
			s.src.Close()
		}
		return s, nil
	}
	src := s.src
	if src == nil {
		spec, err := watch.ParseSource(cfg.WatchSource)
		if err != nil {
			return nil, err
		}
		if src, err = spec.Open(ctx, cfg.openOptions()); err != nil {
			logging.Infof(ctx, "Crash log watcher disabled: %v", err)
			return s, nil
		}
	}
	s.StartWatcher(ctx, src)
	return s, nil
}

// StartWatcher starts a crash log watcher reading src. The watcher reports a
// detected crash to s and finalizes it. If a watcher was already started, src
// is closed and the request is ignored.
func (s *Sink) StartWatcher(ctx context.Context, src watch.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil || s.closed {
		logging.Debug(ctx, "Crash log watcher already started or report closed; ignoring request")
		src.Close()
		return
	}
	s.watcher = watch.New(s.cfg.watchConfig(), src, watchReporter{s})
	s.watcher.Start(ctx)
}

// Watcher returns the crash log watcher of s, or nil if none was started.
func (s *Sink) Watcher() *watch.Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher
}

// OnStart records the start of case c.
func (s *Sink) OnStart(ctx context.Context, c Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		logging.Debugf(ctx, "Ignoring start of %v: report is closed", c)
		return
	}
	suite := s.enterSuite(ctx, c.Suite)
	s.writer.OpenCase(ctx, suite, c.Name)
}

// OnProblem records a failure or error of case c. If c is not open, the
// problem is still recorded in a case inferred by the Writer.
func (s *Sink) OnProblem(ctx context.Context, c Case, kind Kind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		logging.Debugf(ctx, "Ignoring %v of %v: report is closed", kind, c)
		return
	}
	if s.writer == nil {
		s.enterSuite(ctx, c.Suite)
	}
	s.writer.AddProblem(ctx, c, newProblem(kind, err, s.filters))
}

// OnEnd records the end of case c.
func (s *Sink) OnEnd(ctx context.Context, c Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.writer == nil {
		logging.Debugf(ctx, "Ignoring end of %v: no report is open", c)
		return
	}
	s.writer.CloseCase(ctx)
}

// AddSyntheticError records a crash detected outside of the test flow, with
// text as its trace. It attaches to the open case if any, and otherwise to a
// case inferred by the Writer.
func (s *Sink) AddSyntheticError(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		logging.Info(ctx, "Dropping detected crash: report is already closed")
		return
	}
	if s.writer == nil {
		s.enterSuite(ctx, "")
	}
	s.writer.AddProblem(ctx, Case{}, Problem{
		Kind:    Error,
		Message: SyntheticMessage,
		Type:    SyntheticType,
		Trace:   text,
	})
}

// Close finalizes all reports. Errors are logged and otherwise ignored.
func (s *Sink) Close(ctx context.Context) {
	if err := s.Finalize(ctx); err != nil {
		logging.Infof(ctx, "Failed to finalize report: %v", err)
	}
}

// Finalize stops the crash log watcher and finalizes all reports. A crash
// the watcher matched before it was stopped is recorded first, with the
// lines captured so far. Finalize returns the first error encountered while
// writing reports. Calls after the first return nil.
func (s *Sink) Finalize(ctx context.Context) error {
	s.stopWatcher(ctx)
	return s.finalize(ctx)
}

// stopWatcher stops the crash log watcher and waits for it to terminate.
// s.mu must not be held, since the watcher reports to s before terminating.
func (s *Sink) stopWatcher(ctx context.Context) {
	w := s.Watcher()
	if w == nil {
		return
	}
	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(watcherStopTimeout):
		logging.Infof(ctx, "Crash log watcher did not stop in %v; finalizing anyway", watcherStopTimeout)
	}
}

// finalize finalizes all reports without waiting for the watcher.
func (s *Sink) finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if last, ok := s.tracker.Finish(); ok {
		logging.Debugf(ctx, "Closing report with suite %s open", last)
	}
	if s.writer != nil {
		s.record(s.writer.Finalize(ctx))
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	return s.firstErr
}

// watchReporter passes the crash found by the run-scoped watcher to a Sink.
// Its Finalize runs on the watcher goroutine, so it must not wait for the
// watcher.
type watchReporter struct {
	s *Sink
}

func (r watchReporter) AddSyntheticError(ctx context.Context, text string) {
	r.s.AddSyntheticError(ctx, text)
}

func (r watchReporter) Finalize(ctx context.Context) error {
	return r.s.finalize(ctx)
}

// enterSuite makes sure a writer is open and positioned in suite, and
// returns the suite name actually used. s.mu must be held.
func (s *Sink) enterSuite(ctx context.Context, suite string) string {
	if suite == "" {
		suite = unknownName
	}
	tr := s.tracker.Enter(suite)
	if !tr.Changed() && s.writer != nil {
		return suite
	}
	if tr.HasClose {
		logging.Debugf(ctx, "Leaving suite %s", tr.Close)
	}

	if s.cfg.MultiFile {
		if s.writer != nil {
			s.record(s.writer.Finalize(ctx))
		}
		s.writer = s.openWriter(ctx, SuitePath(s.path, suite))
	} else if s.writer == nil {
		s.writer = s.openWriter(ctx, s.path)
	}
	s.writer.OpenSuite(ctx, suite)
	return suite
}

// openWriter opens a Writer for path. A path that was already written during
// this run is numbered instead of being overwritten. s.mu must be held.
func (s *Sink) openWriter(ctx context.Context, path string) *Writer {
	n := s.used[path] + 1
	s.used[path] = n
	if n > 1 {
		path = numberedPath(path, n)
	}
	w := Open(ctx, path)
	s.record(w.Err())
	return w
}

// record remembers err if it is the first error. s.mu must be held.
func (s *Sink) record(err error) {
	if err != nil && s.firstErr == nil {
		s.firstErr = err
	}
}
