// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gotest

import (
	"fmt"
	"testing"
)

func TestOutputBounded(t *testing.T) {
	var o output
	for i := 0; i < maxOutputLines+100; i++ {
		o.add(fmt.Sprintf("line %d\n", i))
	}
	got := o.get()
	if len(got) != maxOutputLines+1 {
		t.Fatalf("Got %d lines; want %d", len(got), maxOutputLines+1)
	}
	if want := "[100 earlier lines omitted]"; got[0] != want {
		t.Errorf("First line = %q; want %q", got[0], want)
	}
	if want := "line 100"; got[1] != want {
		t.Errorf("Oldest kept line = %q; want %q", got[1], want)
	}
	if want := fmt.Sprintf("line %d", maxOutputLines+99); got[len(got)-1] != want {
		t.Errorf("Last line = %q; want %q", got[len(got)-1], want)
	}
}
