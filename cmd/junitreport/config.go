// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"

	"go.chromium.org/junitreport/internal/command"
	"go.chromium.org/junitreport/internal/config"
	"go.chromium.org/junitreport/report"
)

// resolveConfig returns the configuration in effect: defaults, overridden by
// the file at path if non-empty, overridden by flags set on f. flagged must
// be the Config bound to f by config.SetFlags.
func resolveConfig(f *flag.FlagSet, path string, flagged report.Config) (report.Config, error) {
	base := report.DefaultConfig()
	if path != "" {
		if err := config.Load(path, &base); err != nil {
			return report.Config{}, err
		}
	}
	cfg := config.Merge(f, base, flagged)
	return cfg, cfg.Validate()
}

// closeOnSignal returns a signal callback finalizing the reports of sink.
func closeOnSignal(ctx context.Context, sink *report.Sink) func(os.Signal) {
	return func(os.Signal) { sink.Close(ctx) }
}

// installSignalHandler is replaced in unit tests.
var installSignalHandler = func(ctx context.Context, sink *report.Sink) {
	command.InstallSignalHandler(os.Stderr, closeOnSignal(ctx, sink))
}
