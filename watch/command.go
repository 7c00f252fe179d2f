// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/internal/shutil"
)

// normalizeComponents returns the non-blank components, trimmed, sorted and
// without duplicates.
func normalizeComponents(components []string) []string {
	var cs []string
	for _, c := range components {
		if c = strings.TrimSpace(c); c != "" {
			cs = append(cs, c)
		}
	}
	slices.Sort(cs)
	return slices.Compact(cs)
}

// LogcatArgs returns the command line streaming the Android log in the
// "brief" format. If components is non-empty, only those tags are shown.
func LogcatArgs(components []string) []string {
	components = normalizeComponents(components)
	args := []string{"logcat", "-v", "brief"}
	if len(components) > 0 {
		args = append(args, "-s")
		args = append(args, components...)
	}
	return args
}

// JournalArgs returns the command line following the systemd journal from
// now on. If components is non-empty, only those syslog identifiers are shown.
func JournalArgs(components []string) []string {
	components = normalizeComponents(components)
	args := []string{"journalctl", "-f", "-n", "0", "-o", "short"}
	for _, c := range components {
		args = append(args, "-t", c)
	}
	return args
}

type commandSource struct {
	*readerSource
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

// NewCommandSource starts args in a new process group and returns a Source
// reading its standard output. Closing the Source kills the process group
// and waits for the process to exit.
func NewCommandSource(ctx context.Context, args []string) (Source, error) {
	if len(args) == 0 {
		return nil, errors.New("empty log command")
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to run %s", shutil.EscapeSlice(args))
	}
	logging.Debugf(ctx, "Started log command (pid %d): %s", cmd.Process.Pid, shutil.EscapeSlice(args))
	return &commandSource{readerSource: newReaderSource(stdout), cmd: cmd}, nil
}

func (s *commandSource) Close() error {
	s.once.Do(func() {
		// The process may have exited already, in which case there is
		// nothing left to kill.
		if err := unix.Kill(-s.cmd.Process.Pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
			s.err = errors.Wrap(err, "failed to kill log command")
		}
		s.readerSource.Close()
		// Wait reports the termination signal; only the kill result matters.
		s.cmd.Wait()
	})
	return s.err
}
