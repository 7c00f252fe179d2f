// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/config"
	"go.chromium.org/junitreport/internal/gotest"
	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/report"
	"go.chromium.org/junitreport/watch"
)

// goTestCmd implements subcommands.Command to convert "go test -json" output
// to JUnit XML reports.
type goTestCmd struct {
	cfg         report.Config // values of report flags
	configPath  string        // YAML config file
	input       string        // file to read events from; stdin if empty or "-"
	passthrough bool          // copy test output to stdout
	pid         int           // process whose exit ends log watching
	pidInterval time.Duration // interval between checks of pid

	stdin  io.Reader
	stdout io.Writer
}

var _ = subcommands.Command(&goTestCmd{})

// newGoTestCmd returns a new goTestCmd reading events from stdin by default
// and passing test output through to stdout.
func newGoTestCmd(stdin io.Reader, stdout io.Writer) *goTestCmd {
	return &goTestCmd{
		cfg:    report.DefaultConfig(),
		stdin:  stdin,
		stdout: stdout,
	}
}

func (*goTestCmd) Name() string     { return "gotest" }
func (*goTestCmd) Synopsis() string { return "write JUnit XML reports for go test -json output" }
func (*goTestCmd) Usage() string {
	return `Usage: gotest [flag]...

Description:
    Read the event stream of "go test -json" and write a JUnit XML report.
    The report is written as tests finish, so it stays readable up to the
    last finished test if the run is interrupted.

    To also watch the Android log for crashes while tests run:

        $ go test -json ./... | junitreport gotest -watch 'FATAL EXCEPTION' -passthrough

Flag:
`
}

func (g *goTestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&g.configPath, "config", "", "YAML config file; flags override its values")
	f.StringVar(&g.input, "input", "", `file to read test events from (default stdin)`)
	f.BoolVar(&g.passthrough, "passthrough", false, "copy test output to stdout")
	f.IntVar(&g.pid, "pid", 0, "stop watching logs once the process with this ID exits")
	f.DurationVar(&g.pidInterval, "pidinterval", watch.DefaultPollInterval, "interval between checks of -pid")
	config.SetFlags(f, &g.cfg)
}

func (g *goTestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		logging.Info(ctx, "Unexpected arguments.\n\n"+g.Usage())
		return subcommands.ExitUsageError
	}
	cfg, err := resolveConfig(f, g.configPath, g.cfg)
	if err != nil {
		logging.Info(ctx, "Bad configuration: ", err)
		return subcommands.ExitUsageError
	}

	in := g.stdin
	if g.input != "" && g.input != "-" {
		fl, err := os.Open(g.input)
		if err != nil {
			logging.Info(ctx, "Failed to open test events: ", err)
			return subcommands.ExitFailure
		}
		defer fl.Close()
		in = fl
	} else if len(cfg.WatchKeywords) > 0 && cfg.WatchSource == "-" {
		logging.Info(ctx, "Standard input cannot carry both test events and the watched log")
		return subcommands.ExitUsageError
	}

	sink, err := report.Start(ctx, cfg)
	if err != nil {
		logging.Info(ctx, "Failed to start report: ", err)
		return subcommands.ExitUsageError
	}
	installSignalHandler(ctx, sink)

	if err := g.replay(ctx, in, sink); err != nil {
		logging.Info(ctx, "Failed to read test events: ", err)
		sink.Close(ctx)
		return subcommands.ExitFailure
	}
	if err := sink.Finalize(ctx); err != nil {
		logging.Info(ctx, "Failed to write report: ", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// replay feeds events from in to sink, monitoring g.pid in parallel if set.
func (g *goTestCmd) replay(ctx context.Context, in io.Reader, sink *report.Sink) error {
	var echo io.Writer
	if g.passthrough {
		echo = g.stdout
	}

	eg, ctx := errgroup.WithContext(ctx)
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	eg.Go(func() error {
		defer stopMonitor()
		_, err := gotest.Replay(ctx, in, sink, echo)
		return err
	})
	if g.pid > 0 {
		eg.Go(func() error {
			err := watch.MonitorProcess(monitorCtx, int32(g.pid), g.pidInterval, func() {
				if w := sink.Watcher(); w != nil {
					w.Stop()
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return eg.Wait()
}
