// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/junitreport/internal/shutil"
)

func TestEscape(t *testing.T) {
	for _, c := range []struct {
		in, exp string
	}{
		{``, `''`},
		{` `, `' '`},
		{`ab`, `ab`},
		{`a b`, `'a b'`},
		{`AZaz09@%_+=:,./-`, `AZaz09@%_+=:,./-`},
		{`a!b`, `'a!b'`},
		{`'`, `''"'"''`},
		{`=foo`, `'=foo'`},
		{`AndroidRuntime:E`, `AndroidRuntime:E`},
		{`*:S`, `'*:S'`},
	} {
		if s := shutil.Escape(c.in); s != c.exp {
			t.Errorf("Escape(%q) = %q; want %q", c.in, s, c.exp)
		}
	}
}

func TestEscapeSlice(t *testing.T) {
	const exp = `logcat -v brief -s 'my tag' DEBUG`
	if s := shutil.EscapeSlice([]string{"logcat", "-v", "brief", "-s", "my tag", "DEBUG"}); s != exp {
		t.Errorf("EscapeSlice(...) = %q; want %q", s, exp)
	}
}

func TestSplit(t *testing.T) {
	for _, c := range []struct {
		in  string
		exp []string
	}{
		{``, nil},
		{`   `, nil},
		{`tail -F /var/log/messages`, []string{"tail", "-F", "/var/log/messages"}},
		{`  a   b  `, []string{"a", "b"}},
		{`a 'b c' d`, []string{"a", "b c", "d"}},
		{`a "b c" d`, []string{"a", "b c", "d"}},
		{`a ''`, []string{"a", ""}},
		{`a\ b`, []string{"a b"}},
		{`"a\"b"`, []string{`a"b`}},
		{`"a\nb"`, []string{`a\nb`}},
		{`'a\b'`, []string{`a\b`}},
		{`x'y'"z"`, []string{"xyz"}},
	} {
		got, err := shutil.Split(c.in)
		if err != nil {
			t.Errorf("Split(%q) failed: %v", c.in, err)
			continue
		}
		if diff := cmp.Diff(got, c.exp); diff != "" {
			t.Errorf("Split(%q) mismatch (-got +want):\n%s", c.in, diff)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	args := []string{"sh", "-c", "echo 'it''s' \"$HOME\"", "", "=x"}
	got, err := shutil.Split(shutil.EscapeSlice(args))
	if err != nil {
		t.Fatal("Split failed: ", err)
	}
	if diff := cmp.Diff(got, args); diff != "" {
		t.Errorf("Split(EscapeSlice(args)) mismatch (-got +want):\n%s", diff)
	}
}

func TestSplitError(t *testing.T) {
	for _, in := range []string{`'abc`, `"abc`, `abc\`} {
		if _, err := shutil.Split(in); err == nil {
			t.Errorf("Split(%q) succeeded; want error", in)
		}
	}
}
