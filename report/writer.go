// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"sync"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/logging"
)

const (
	tagSuites  = "testsuites"
	tagSuite   = "testsuite"
	tagCase    = "testcase"
	tagError   = "error"
	tagFailure = "failure"

	attrName    = "name"
	attrClass   = "classname"
	attrType    = "type"
	attrMessage = "message"

	// declaration is the body of the XML declaration heading every report.
	declaration = "version='1.0' encoding='utf-8' standalone='yes'"

	// unknownName names suites and cases synthesized to keep a report
	// well-formed when events arrive out of order.
	unknownName = "unknown"
)

// Writer streams a single JUnit XML report document to a file.
//
// Each operation is written through to the file before it returns, so the
// report stays readable up to the last completed operation even if the
// process dies. Writer tracks which elements are open itself and never
// produces unbalanced tags, whatever order its methods are called in.
//
// Writer never returns errors from lifecycle operations: failures are logged
// to the context's logger. If the file cannot be opened, the Writer is inert
// and all operations are no-ops.
//
// All methods are safe for concurrent use.
type Writer struct {
	path string
	err  error // error encountered while opening, if any

	mu        sync.Mutex
	f         *os.File
	enc       *xml.Encoder
	finalized bool
	suite     string // name of the open suite, valid if suiteOpen
	suiteOpen bool
	caseOpen  bool
}

// Open creates or truncates the file at path, creating parent directories as
// needed, and writes the document prolog and the root element.
//
// Open always returns a usable Writer. If opening fails, the failure is logged
// and reported by Err, and the returned Writer is inert.
func Open(ctx context.Context, path string) *Writer {
	w := &Writer{path: path}
	if err := w.open(); err != nil {
		w.err = err
		logging.Infof(ctx, "Failed to open report %s: %v", path, err)
		return w
	}
	logging.Debugf(ctx, "Opened report %s", path)
	return w
}

func (w *Writer) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}
	f, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, "failed to create report")
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	w.f, w.enc = f, enc

	if err := w.emit(
		xml.ProcInst{Target: "xml", Inst: []byte(declaration)},
		xml.CharData("\n"),
		startElement(tagSuites),
	); err != nil {
		f.Close()
		w.f, w.enc = nil, nil
		return errors.Wrap(err, "failed to write report prolog")
	}
	return nil
}

// Path returns the path of the report file.
func (w *Writer) Path() string {
	return w.path
}

// Err returns the error that made w inert, or nil if w opened successfully.
func (w *Writer) Err() error {
	return w.err
}

// inert reports whether operations on w must be skipped.
// w.mu must be held.
func (w *Writer) inert() bool {
	return w.f == nil || w.finalized
}

// OpenSuite opens a suite named name. A case left open is closed first, and
// so is a different suite that is still open. Opening the suite that is
// already open is a no-op.
func (w *Writer) OpenSuite(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inert() {
		return
	}
	w.openSuite(ctx, name)
}

// OpenCase opens a case named name in suite. A case left open is closed
// first. If suite is not the open suite it is opened, so that the case
// always has an enclosing suite; an empty suite name is replaced by
// "unknown".
func (w *Writer) OpenCase(ctx context.Context, suite, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inert() {
		return
	}
	w.openCase(ctx, suite, name)
}

// AddProblem attaches p to the open case.
//
// If no case is open, a case is inferred so that the problem still lands in
// a well-formed position: it is named after c (falling back to "unknown"),
// placed in the open suite (or an "unknown" suite if none is open) and closed
// right after the problem. Calling AddProblem several times for the same case
// appends several problem nodes.
func (w *Writer) AddProblem(ctx context.Context, c Case, p Problem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inert() {
		return
	}

	inferred := !w.caseOpen
	if inferred {
		suite := c.Suite
		if w.suiteOpen {
			suite = w.suite
		}
		name := c.Name
		if name == "" {
			name = unknownName
		}
		logging.Debugf(ctx, "No case open in %s; inferring case %s", w.path, name)
		w.openCase(ctx, suite, name)
	}

	p = p.ensureMessage()
	tag := p.Kind.tag()
	start := startElement(tag, xml.Attr{Name: xml.Name{Local: attrMessage}, Value: p.Message})
	if p.Type != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attrType}, Value: p.Type})
	}
	w.write(ctx, "problem", start, xml.CharData(p.Trace), start.End())

	if inferred {
		w.closeCase(ctx)
	}
}

// CloseCase closes the open case. It is a no-op if no case is open.
func (w *Writer) CloseCase(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inert() {
		return
	}
	if !w.caseOpen {
		logging.Debugf(ctx, "Ignoring close of case in %s: no case is open", w.path)
		return
	}
	w.closeCase(ctx)
}

// Finalize closes any open case and suite, ends the document and closes the
// file. Every step is attempted even if an earlier one failed, so that as
// much of a well-formed document as possible reaches the disk. Failures are
// logged; the first one is returned.
//
// Finalize is idempotent: calls after the first are no-ops returning nil.
func (w *Writer) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inert() {
		return nil
	}
	w.finalized = true

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.caseOpen {
		record(w.closeCase(ctx))
	}
	if w.suiteOpen {
		record(w.closeSuite(ctx))
	}
	record(w.write(ctx, "document end", xml.EndElement{Name: xml.Name{Local: tagSuites}}, xml.CharData("\n")))
	if err := w.f.Close(); err != nil {
		logging.Infof(ctx, "Failed to close report %s: %v", w.path, err)
		record(errors.Wrapf(err, "failed to close report %s", w.path))
	}
	logging.Debugf(ctx, "Finalized report %s", w.path)
	return firstErr
}

// openSuite implements OpenSuite. w.mu must be held.
func (w *Writer) openSuite(ctx context.Context, name string) {
	if name == "" {
		name = unknownName
	}
	if w.suiteOpen && w.suite == name {
		return
	}
	if w.caseOpen {
		logging.Debugf(ctx, "Closing unfinished case in %s before opening suite %s", w.path, name)
		w.closeCase(ctx)
	}
	if w.suiteOpen {
		w.closeSuite(ctx)
	}
	w.suite, w.suiteOpen = name, true
	w.write(ctx, "suite start", startElement(tagSuite, xml.Attr{Name: xml.Name{Local: attrName}, Value: name}))
}

// openCase implements OpenCase. w.mu must be held.
func (w *Writer) openCase(ctx context.Context, suite, name string) {
	if suite == "" {
		suite = unknownName
	}
	if w.caseOpen {
		logging.Debugf(ctx, "Closing unfinished case in %s before opening case %s", w.path, name)
		w.closeCase(ctx)
	}
	w.openSuite(ctx, suite)
	w.caseOpen = true
	w.write(ctx, "case start", startElement(tagCase,
		xml.Attr{Name: xml.Name{Local: attrClass}, Value: suite},
		xml.Attr{Name: xml.Name{Local: attrName}, Value: name}))
}

// closeCase ends the open case. w.mu must be held.
func (w *Writer) closeCase(ctx context.Context) error {
	w.caseOpen = false
	return w.write(ctx, "case end", xml.EndElement{Name: xml.Name{Local: tagCase}})
}

// closeSuite ends the open suite. w.mu must be held.
func (w *Writer) closeSuite(ctx context.Context) error {
	w.suiteOpen = false
	return w.write(ctx, "suite end", xml.EndElement{Name: xml.Name{Local: tagSuite}})
}

// write emits tokens and flushes them to the file, logging any failure.
// Tag state is updated by callers regardless of the outcome, which keeps it
// in step with the encoder's own element stack.
func (w *Writer) write(ctx context.Context, what string, tokens ...xml.Token) error {
	if err := w.emit(tokens...); err != nil {
		logging.Infof(ctx, "Failed to write %s to report %s: %v", what, w.path, err)
		return errors.Wrapf(err, "failed to write %s to report %s", what, w.path)
	}
	return nil
}

func (w *Writer) emit(tokens ...xml.Token) error {
	var firstErr error
	for _, t := range tokens {
		if err := w.enc.EncodeToken(t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := w.enc.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func startElement(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}
