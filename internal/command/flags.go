// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains code shared by the junitreport command and its
// subcommands.
package command

import (
	"strings"
)

// ListFlag implements flag.Value to split a user-supplied string with a
// custom delimiter into a slice of strings.
type ListFlag struct {
	sep    string             // value separator, e.g. ","
	assign ListFlagAssignFunc // used to assign slice value to dest
	def    []string           // default value, e.g. []string{"foo", "bar"}
}

// ListFlagAssignFunc is called by ListFlag to assign a slice to a target
// variable.
type ListFlagAssignFunc func([]string)

// NewListFlag returns a ListFlag using the supplied separator and assignment
// function. def contains a default value to assign when the flag is
// unspecified.
func NewListFlag(sep string, assign ListFlagAssignFunc, def []string) *ListFlag {
	f := ListFlag{sep, assign, def}
	f.assign(def)
	return &f
}

// Default returns the default value used if the flag is unset.
func (f *ListFlag) Default() string { return strings.Join(f.def, f.sep) }

func (f *ListFlag) String() string { return "" }

func (f *ListFlag) Set(v string) error {
	var vals []string
	for _, s := range strings.Split(v, f.sep) {
		if s = strings.TrimSpace(s); s != "" {
			vals = append(vals, s)
		}
	}
	f.assign(vals)
	return nil
}

// RepeatedFlag implements flag.Value around an assignment function that is
// executed each time the flag is supplied.
type RepeatedFlag func(val string) error

// Default returns the default value used if the flag is unset.
func (f *RepeatedFlag) Default() string { return "" }

func (f *RepeatedFlag) String() string { return "" }

func (f *RepeatedFlag) Set(val string) error { return (*f)(val) }
