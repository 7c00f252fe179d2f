// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors provides basic utilities to construct errors.
//
// To construct new errors or wrap other errors, use this package rather than
// standard libraries (errors.New, fmt.Errorf) or any other third-party
// libraries. This package records stack traces and chained errors, which end
// up as the trace text of failure and error nodes in JUnit reports.
//
// To construct a new error, use New or Errorf.
//
//	errors.New("report file is closed")
//	errors.Errorf("suite %q is not open", name)
//
// To construct an error by adding context to an existing error, use Wrap or
// Wrapf.
//
//	errors.Wrap(err, "failed to open report")
//	errors.Wrapf(err, "failed to start %s", name)
//
// A stack trace can be printed by formatting an error with the "%+v" verb.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.chromium.org/junitreport/errors/stack"
)

// defaultTypeName is reported by TypeName for errors created by New and
// Errorf, which have no more specific type.
const defaultTypeName = "errors.Error"

// impl is the error implementation used by this package.
type impl struct {
	msg   string      // error message to be prepended to cause
	stk   stack.Stack // stack trace where this error was created
	cause error       // original error that caused this error if non-nil
}

// Error implements the error interface.
func (e *impl) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap returns the cause of e, if any.
func (e *impl) Unwrap() error {
	return e.cause
}

// TypeName returns the name of the type best describing e: the type of the
// innermost foreign cause, or "errors.Error" if the whole chain was
// constructed by this package.
func (e *impl) TypeName() string {
	var err error = e
	for err != nil {
		ie, ok := err.(*impl)
		if !ok {
			return TypeName(err)
		}
		err = ie.cause
	}
	return defaultTypeName
}

// formatChain formats an error chain.
func formatChain(err error) string {
	var chain []string
	for err != nil {
		if e, ok := err.(*impl); !ok {
			chain = append(chain, fmt.Sprintf("%s\n\tat ???", err.Error()))
			err = nil
		} else {
			chain = append(chain, fmt.Sprintf("%s\n%v", e.msg, e.stk))
			err = e.cause
		}
	}
	return strings.Join(chain, "\n")
}

// Format implements the fmt.Formatter interface.
// In particular, it is supported to format an error chain by "%+v" verb.
func (e *impl) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, formatChain(e))
	} else {
		io.WriteString(s, e.Error())
	}
}

// New creates a new error with the given message.
// This is similar to the standard errors.New, but also records the location
// where it was called.
func New(msg string) error {
	s := stack.New(1)
	return &impl{msg, s, nil}
}

// Errorf creates a new error with the given message.
// This is similar to the standard fmt.Errorf, but also records the location
// where it was called.
func Errorf(format string, args ...interface{}) error {
	s := stack.New(1)
	msg := fmt.Sprintf(format, args...)
	return &impl{msg, s, nil}
}

// Wrap creates a new error with the given message, wrapping another error.
// This function also records the location where it was called.
// If cause is nil, this is the same as New.
func Wrap(cause error, msg string) error {
	s := stack.New(1)
	return &impl{msg, s, cause}
}

// Wrapf creates a new error with the given message, wrapping another error.
// This function also records the location where it was called.
// If cause is nil, this is the same as Errorf.
func Wrapf(cause error, format string, args ...interface{}) error {
	s := stack.New(1)
	msg := fmt.Sprintf(format, args...)
	return &impl{msg, s, cause}
}

// TypeName returns a human-readable type name of err, suitable for the
// "type" attribute of a JUnit problem node. Errors may report their own name
// by implementing a TypeName() string method; otherwise the dynamic Go type
// is used with any pointer indirection removed. TypeName(nil) returns "error".
func TypeName(err error) string {
	if err == nil {
		return "error"
	}
	if tn, ok := err.(interface{ TypeName() string }); ok {
		return tn.TypeName()
	}
	return strings.TrimLeft(fmt.Sprintf("%T", err), "*")
}

// Is is an alias of the standard errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is an alias of the standard errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap is an alias of the standard errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
