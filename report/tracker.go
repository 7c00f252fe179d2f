// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

// TrackerState is the state of a SuiteTracker.
type TrackerState int

const (
	// NoSuiteOpen is the initial state.
	NoSuiteOpen TrackerState = iota
	// SuiteOpen means exactly one suite is open.
	SuiteOpen
	// Closed is terminal; it is entered when the report is finalized.
	Closed
)

// Transition describes the suite boundary implied by an incoming case.
type Transition struct {
	// Close is the name of the suite to close, valid if HasClose is set.
	Close    string
	HasClose bool
	// Open is the name of the suite to open, valid if HasOpen is set.
	Open    string
	HasOpen bool
}

// Changed reports whether t requires any action.
func (t Transition) Changed() bool {
	return t.HasOpen || t.HasClose
}

// SuiteTracker tracks the currently open suite of a report and decides when
// suite boundaries occur. It is not safe for concurrent use; Sink serializes
// access to it.
type SuiteTracker struct {
	state   TrackerState
	current string
}

// State returns the current state of t.
func (t *SuiteTracker) State() TrackerState {
	return t.state
}

// Current returns the name of the open suite, if any.
func (t *SuiteTracker) Current() (string, bool) {
	return t.current, t.state == SuiteOpen
}

// Enter records that a case of suite is starting and returns the transition
// it implies: nothing if suite is already open, otherwise a close of the
// previous suite (if any) followed by an open of suite. Enter is ignored once
// the tracker is closed.
func (t *SuiteTracker) Enter(suite string) Transition {
	switch t.state {
	case Closed:
		return Transition{}
	case SuiteOpen:
		if t.current == suite {
			return Transition{}
		}
		tr := Transition{Close: t.current, HasClose: true, Open: suite, HasOpen: true}
		t.current = suite
		return tr
	default:
		t.state = SuiteOpen
		t.current = suite
		return Transition{Open: suite, HasOpen: true}
	}
}

// Finish moves t to the terminal Closed state and returns the suite that was
// open at that time, if any.
func (t *SuiteTracker) Finish() (last string, ok bool) {
	last, ok = t.Current()
	t.state = Closed
	t.current = ""
	return last, ok
}
