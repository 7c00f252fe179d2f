// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

var selfName = filepath.Base(os.Args[0])

// InstallSignalHandler installs a handler for SIGINT and SIGTERM that calls
// callback, restores the terminal state, terminates child processes and
// exits. out is the output stream to write messages to (typically stderr).
//
// callback runs before the process exits, so it is the place to finalize
// output files that would otherwise be left truncated.
func InstallSignalHandler(out io.Writer, callback func(sig os.Signal)) {
	// Save the terminal state so a signal arriving while it is modified
	// (e.g. echo disabled) does not leave the shell broken.
	var restore func()
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if st, err := term.GetState(fd); err == nil {
			restore = func() { term.Restore(fd, st) }
		}
	}

	ch := make(chan os.Signal, 1)
	go func() {
		sig := <-ch
		fmt.Fprintf(out, "\n%s: Caught %v signal; exiting\n", selfName, sig)
		callback(sig)
		if restore != nil {
			restore()
		}
		terminateChildren(out)
		os.Exit(1)
	}()
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
}

// terminateChildren sends SIGTERM to all direct children of this process,
// such as log readers.
func terminateChildren(out io.Writer) {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return
	}
	selfPid := int32(os.Getpid())
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil {
			continue
		}
		if ppid == selfPid {
			proc.Terminate()
		}
	}
}
