// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the junitreport executable, which writes JUnit XML
// reports for Go tests and reports crashes found in system logs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"go.chromium.org/junitreport/internal/logging"
)

// Version is the version info of this command. It is filled in at build time.
var Version = "<unknown>"

// newLogger creates a logging.Logger writing to w based on the supplied
// command-line flags. The returned function detaches and closes the syslog
// logger, if any; logs emitted afterwards still reach w.
func newLogger(w io.Writer, verbose, logTime, useSyslog bool) (logging.Logger, func(), error) {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	ml := logging.NewMultiLogger(logging.NewSinkLogger(level, logTime, logging.NewWriterSink(w)))
	if !useSyslog {
		return ml, func() {}, nil
	}
	sl, err := logging.NewSyslogLogger()
	if err != nil {
		return nil, nil, err
	}
	ml.AddLogger(sl)
	// The crash log watcher may still be logging when main returns.
	return ml, func() {
		ml.RemoveLogger(sl)
		sl.Close()
	}, nil
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newGoTestCmd(os.Stdin, os.Stdout), "")
	subcommands.Register(newWatchCmd(), "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")
	logTime := flag.Bool("logtime", true, "include date/time headers in logs")
	useSyslog := flag.Bool("syslog", false, "also send logs to syslog")
	flag.Parse()

	if *version {
		fmt.Printf("junitreport version %s\n", Version)
		return 0
	}

	lg, closeLogger, err := newLogger(os.Stderr, *verbose, *logTime, *useSyslog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to connect to syslog: ", err)
		return int(subcommands.ExitFailure)
	}
	defer closeLogger()
	ctx := logging.AttachLogger(context.Background(), lg)

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
