// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/watch"
)

const (
	// SuitePlaceholder is replaced by the suite name in multi-file report paths.
	SuitePlaceholder = "$(suite)"

	// DefaultPath is the report path used in single-file mode.
	DefaultPath = "junit-report.xml"
	// DefaultMultiFilePath is the report path pattern used in multi-file mode.
	DefaultMultiFilePath = "junit-report-" + SuitePlaceholder + ".xml"
)

// Config contains the configuration of a Sink.
type Config struct {
	// Path is the report file path. In multi-file mode it must contain
	// SuitePlaceholder. If empty, DefaultPath or DefaultMultiFilePath is used.
	Path string
	// Dir, if non-empty, is joined in front of a relative Path.
	Dir string
	// MultiFile selects one report file per suite.
	MultiFile bool
	// FilterTraces enables removal of noise lines from traces.
	FilterTraces bool
	// TraceFilters replaces DefaultTraceFilters if non-nil.
	TraceFilters []string

	// WatchKeywords enables the crash log watcher if non-empty.
	WatchKeywords []string
	// WatchComponents restricts the watched log to these tags or identifiers.
	WatchComponents []string
	// WatchLines is the number of lines captured after a matching line.
	WatchLines int
	// WatchSource selects the watched log; see watch.ParseSource.
	WatchSource string
	// WatchKeyFile is an SSH private key used by "ssh:" sources.
	WatchKeyFile string
}

// DefaultConfig returns a Config holding default values.
func DefaultConfig() Config {
	return Config{
		FilterTraces: true,
		WatchLines:   watch.DefaultTrailingLines,
		WatchSource:  watch.DefaultSource,
	}
}

// Validate checks that c is usable.
func (c *Config) Validate() error {
	if c.MultiFile && c.Path != "" && !strings.Contains(c.Path, SuitePlaceholder) {
		return errors.Errorf("multi-file report path %q does not contain %s", c.Path, SuitePlaceholder)
	}
	if c.WatchLines < 0 {
		return errors.Errorf("negative number of watched lines %d", c.WatchLines)
	}
	return nil
}

// reportPath returns the report path, or the path pattern in multi-file mode,
// with defaults and Dir applied.
func (c *Config) reportPath() string {
	p := c.Path
	if p == "" {
		if c.MultiFile {
			p = DefaultMultiFilePath
		} else {
			p = DefaultPath
		}
	}
	if c.Dir != "" && !filepath.IsAbs(p) {
		p = filepath.Join(c.Dir, p)
	}
	return p
}

// filters returns the trace filters in effect, or nil if filtering is off.
func (c *Config) filters() []string {
	if !c.FilterTraces {
		return nil
	}
	if c.TraceFilters != nil {
		return c.TraceFilters
	}
	return DefaultTraceFilters
}

func (c *Config) watchConfig() watch.Config {
	return watch.Config{
		Keywords:      c.WatchKeywords,
		TrailingLines: c.WatchLines,
	}
}

func (c *Config) openOptions() watch.OpenOptions {
	return watch.OpenOptions{
		Components: c.WatchComponents,
		KeyFile:    c.WatchKeyFile,
	}
}

// SuitePath returns the path of the report file for suite given a path
// pattern containing SuitePlaceholder. Path separators in suite are replaced
// by dots so that each suite maps to a single file in the pattern's directory.
func SuitePath(pattern, suite string) string {
	if suite == "" {
		suite = unknownName
	}
	name := strings.NewReplacer("/", ".", `\`, ".").Replace(suite)
	return strings.ReplaceAll(pattern, SuitePlaceholder, name)
}

// numberedPath inserts "-n" before the extension of p.
func numberedPath(p string, n int) string {
	ext := filepath.Ext(p)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(p, ext), n, ext)
}
