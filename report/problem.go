// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"fmt"
	"strings"

	"go.chromium.org/junitreport/errors"
)

// nullMessage stands in for an absent error message.
const nullMessage = "<null>"

// Kind distinguishes assertion-style failures from all other errors.
type Kind int

const (
	// Failure is an assertion-style problem, reported as a <failure> node.
	Failure Kind = iota
	// Error is any other problem, reported as an <error> node.
	Error
)

// tag returns the XML element name used for problems of kind k.
func (k Kind) tag() string {
	if k == Failure {
		return tagFailure
	}
	return tagError
}

func (k Kind) String() string {
	return k.tag()
}

// Case identifies a single test case.
type Case struct {
	// Suite is the fully-qualified name of the suite the case belongs to.
	// For Go tests this is the package import path.
	Suite string
	// Name is the name of the case within the suite.
	Name string
}

func (c Case) String() string {
	return c.Suite + "." + c.Name
}

// Problem is a failure or error attached to a case.
type Problem struct {
	Kind    Kind
	Message string // never empty
	Type    string // type name of the underlying error
	Trace   string // possibly filtered trace text
}

// SafeMessage returns the message reported for err: its type name followed
// by its message, with "<null>" standing in for an empty message. The result
// is never empty, even for a nil err.
func SafeMessage(err error) string {
	msg := nullMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return errors.TypeName(err) + ": " + msg
}

// TraceText returns the trace text reported for err. Errors may supply their
// own trace by implementing a Trace() string method; otherwise the "%+v"
// formatting of err is used, which includes stack frames for errors created
// by the errors package. The first line of the result describes err itself.
func TraceText(err error) string {
	if err == nil {
		return SafeMessage(nil)
	}
	if tr, ok := err.(interface{ Trace() string }); ok {
		return tr.Trace()
	}
	return fmt.Sprintf("%+v", err)
}

// newProblem builds the Problem reported for err. If filters is non-nil the
// trace text is passed through FilterTrace.
func newProblem(kind Kind, err error, filters []string) Problem {
	trace := TraceText(err)
	if filters != nil {
		trace = FilterTrace(trace, filters)
	}
	return Problem{
		Kind:    kind,
		Message: SafeMessage(err),
		Type:    errors.TypeName(err),
		Trace:   trace,
	}
}

// ensureMessage fills in a placeholder for an empty problem message.
func (p Problem) ensureMessage() Problem {
	if strings.TrimSpace(p.Message) == "" {
		p.Message = p.Type + ": " + nullMessage
	}
	return p
}
