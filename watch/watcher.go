// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package watch detects crashes by scanning system logs for keywords while
// tests run.
package watch

import (
	"context"
	"io"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
	"golang.org/x/text/cases"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/logging"
)

const (
	// DefaultTrailingLines is the default number of lines captured after a
	// matching line.
	DefaultTrailingLines = 10

	// prefixSeparator ends the tag and PID prefix of logcat lines in the
	// "brief" format, e.g. "E/AndroidRuntime( 1234): ".
	prefixSeparator = "): "
)

// Reporter receives a detected crash.
type Reporter interface {
	// AddSyntheticError records a crash described by text.
	AddSyntheticError(ctx context.Context, text string)
	// Finalize completes the report.
	Finalize(ctx context.Context) error
}

// Config contains the configuration of a Watcher.
type Config struct {
	// Keywords are matched case-insensitively against every log line.
	Keywords []string
	// TrailingLines is the number of lines captured after a matching line.
	TrailingLines int
}

// State is the state of a Watcher.
type State int

const (
	// Idle means the Watcher has not been started.
	Idle State = iota
	// Running means the Watcher is reading its source.
	Running
	// Matched means a keyword was found and reported. It is terminal.
	Matched
	// StreamEnded means the source ended without a match. It is terminal.
	StreamEnded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Matched:
		return "matched"
	case StreamEnded:
		return "stream ended"
	default:
		return "unknown"
	}
}

// Watcher scans a log Source for crash keywords. On the first match it
// reports the matching line and the lines following it to a Reporter and
// finalizes the report, then stops.
type Watcher struct {
	cfg      Config
	keywords []string // case-folded
	caser    cases.Caser
	src      Source
	rep      Reporter
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	state State
}

// New returns a Watcher reading src and reporting to rep. Empty and
// duplicate keywords are ignored.
func New(cfg Config, src Source, rep Reporter) *Watcher {
	w := &Watcher{
		cfg:   cfg,
		caser: cases.Fold(),
		src:   src,
		rep:   rep,
		done:  make(chan struct{}),
	}
	for _, kw := range cfg.Keywords {
		kw = w.caser.String(strings.TrimSpace(kw))
		if kw == "" || slices.Contains(w.keywords, kw) {
			continue
		}
		w.keywords = append(w.keywords, kw)
	}
	return w
}

// State returns the current state of w.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

// begin moves w from Idle to Running. It returns false if w was not idle.
func (w *Watcher) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Idle {
		return false
	}
	w.state = Running
	return true
}

// Start runs w in a new goroutine. It is a no-op unless w is idle.
func (w *Watcher) Start(ctx context.Context) {
	if !w.begin() {
		return
	}
	go func() {
		defer close(w.done)
		w.run(ctx)
	}()
}

// Run runs w synchronously and returns its terminal state. If w is not idle
// Run returns its current state immediately.
func (w *Watcher) Run(ctx context.Context) State {
	if !w.begin() {
		return w.State()
	}
	defer close(w.done)
	w.run(ctx)
	return w.State()
}

// Done returns a channel that is closed when a started Watcher terminates.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Stop closes the source, which ends the watched stream. It does not wait
// for w to terminate and may be called any number of times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.src.Close()
	})
}

func (w *Watcher) run(ctx context.Context) {
	ctx = logging.WithPrefix(ctx, "[watch] ")

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-finished:
		}
	}()
	defer w.Stop()

	defer func() {
		if r := recover(); r != nil {
			logging.Infof(ctx, "Crash log watcher panicked: %v", r)
			w.setState(StreamEnded)
		}
	}()

	logging.Debugf(ctx, "Watching for %q", w.keywords)
	for {
		line, err := w.src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logging.Debug(ctx, "Log stream ended without a crash")
			} else {
				logging.Infof(ctx, "Failed to read log: %v", err)
			}
			w.setState(StreamEnded)
			return
		}
		if !w.matches(line) {
			continue
		}

		logging.Infof(ctx, "Crash detected: %s", line)
		w.rep.AddSyntheticError(ctx, w.capture(line))
		if err := w.rep.Finalize(ctx); err != nil {
			logging.Infof(ctx, "Failed to finalize report after crash: %v", err)
		}
		w.setState(Matched)
		return
	}
}

func (w *Watcher) matches(line string) bool {
	if len(w.keywords) == 0 {
		return false
	}
	folded := w.caser.String(line)
	for _, kw := range w.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// capture returns first followed by up to TrailingLines lines read from the
// source, each stripped of its log prefix.
func (w *Watcher) capture(first string) string {
	lines := []string{StripPrefix(first)}
	for i := 0; i < w.cfg.TrailingLines; i++ {
		line, err := w.src.Next()
		if err != nil {
			break
		}
		lines = append(lines, StripPrefix(line))
	}
	return strings.Join(lines, "\n")
}

// StripPrefix removes everything up to and including the first "): " in
// line, which is the tag and PID prefix of logcat's brief format. Lines
// without the separator are returned unchanged.
func StripPrefix(line string) string {
	if i := strings.Index(line, prefixSeparator); i >= 0 {
		return line[i+len(prefixSeparator):]
	}
	return line
}
