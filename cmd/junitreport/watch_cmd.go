// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"go.chromium.org/junitreport/internal/config"
	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/report"
	"go.chromium.org/junitreport/watch"
)

// watchCmd implements subcommands.Command to watch a log for crashes
// without test events, e.g. alongside a test runner that writes its own
// reports.
type watchCmd struct {
	cfg        report.Config
	configPath string
}

var _ = subcommands.Command(&watchCmd{})

func newWatchCmd() *watchCmd {
	return &watchCmd{cfg: report.DefaultConfig()}
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "write a JUnit XML report when a log shows a crash" }
func (*watchCmd) Usage() string {
	return `Usage: watch -watch <keyword> [flag]...

Description:
    Read a log until a line contains one of the keywords, then write a
    report holding a single error with the matching lines. Nothing is
    written if the log ends without a match.

Flag:
`
}

func (wc *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&wc.configPath, "config", "", "YAML config file; flags override its values")
	config.SetFlags(f, &wc.cfg)
}

func (wc *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := resolveConfig(f, wc.configPath, wc.cfg)
	if err != nil {
		logging.Info(ctx, "Bad configuration: ", err)
		return subcommands.ExitUsageError
	}
	if len(cfg.WatchKeywords) == 0 {
		logging.Info(ctx, "No keywords to watch for.\n\n"+wc.Usage())
		return subcommands.ExitUsageError
	}

	sink, err := report.Start(ctx, cfg)
	if err != nil {
		logging.Info(ctx, "Failed to start report: ", err)
		return subcommands.ExitUsageError
	}
	w := sink.Watcher()
	if w == nil {
		sink.Close(ctx)
		return subcommands.ExitFailure
	}
	installSignalHandler(ctx, sink)

	select {
	case <-w.Done():
	case <-ctx.Done():
		logging.Info(ctx, "Stopped watching: ", ctx.Err())
	}
	if err := sink.Finalize(ctx); err != nil {
		logging.Info(ctx, "Failed to write report: ", err)
		return subcommands.ExitFailure
	}
	if w.State() == watch.Matched {
		logging.Info(ctx, "Crash detected")
	} else {
		logging.Info(ctx, "Log ended without a crash")
	}
	return subcommands.ExitSuccess
}
