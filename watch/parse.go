// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/shutil"
)

// DefaultSource is the source spec used when none is configured.
const DefaultSource = "logcat"

// SourceKind identifies a kind of log source.
type SourceKind int

const (
	// Logcat follows the local Android log.
	Logcat SourceKind = iota
	// Journal follows the local systemd journal.
	Journal
	// Command runs an arbitrary command and reads its output.
	Command
	// File reads a file.
	File
	// Stdin reads the standard input.
	Stdin
	// SSH follows the systemd journal of a remote host.
	SSH
	// ADB dumps the log of an Android device.
	ADB
)

// SourceSpec is a parsed log source spec.
type SourceSpec struct {
	Kind SourceKind
	// Args is the command line of Command sources.
	Args []string
	// Path is the file read by File sources.
	Path string
	// SSH describes the host of SSH sources.
	SSH SSHOptions
	// Serial is the device serial of ADB sources.
	Serial string
}

// OpenOptions holds options used when opening a SourceSpec.
type OpenOptions struct {
	// Components restricts logcat, journal, SSH and ADB sources to these
	// tags or syslog identifiers.
	Components []string
	// KeyFile is a private key used by SSH sources.
	KeyFile string
}

// ParseSource parses a log source spec. Valid specs are:
//
//	logcat                  follow the local Android log (default)
//	journal                 follow the local systemd journal
//	cmd:<command line>      run a command and read its standard output
//	file:<path>             read a file
//	-                       read the standard input
//	ssh:[user@]host[:port]  follow the systemd journal of a remote host
//	adb:[serial]            dump the log of an Android device
func ParseSource(spec string) (SourceSpec, error) {
	kind, arg, hasArg := strings.Cut(spec, ":")
	switch {
	case spec == "" || spec == "logcat":
		return SourceSpec{Kind: Logcat}, nil
	case spec == "journal":
		return SourceSpec{Kind: Journal}, nil
	case spec == "-":
		return SourceSpec{Kind: Stdin}, nil
	case !hasArg:
		return SourceSpec{}, errors.Errorf("unknown log source %q", spec)
	}

	switch kind {
	case "cmd":
		args, err := shutil.Split(arg)
		if err != nil {
			return SourceSpec{}, errors.Wrapf(err, "bad log command in %q", spec)
		}
		if len(args) == 0 {
			return SourceSpec{}, errors.Errorf("empty log command in %q", spec)
		}
		return SourceSpec{Kind: Command, Args: args}, nil
	case "file":
		if arg == "" {
			return SourceSpec{}, errors.Errorf("empty path in %q", spec)
		}
		return SourceSpec{Kind: File, Path: arg}, nil
	case "ssh":
		s := SourceSpec{Kind: SSH}
		if err := ParseSSHTarget(arg, &s.SSH); err != nil {
			return SourceSpec{}, err
		}
		return s, nil
	case "adb":
		return SourceSpec{Kind: ADB, Serial: arg}, nil
	default:
		return SourceSpec{}, errors.Errorf("unknown log source %q", spec)
	}
}

// Open opens the source described by s.
func (s SourceSpec) Open(ctx context.Context, o OpenOptions) (Source, error) {
	switch s.Kind {
	case Logcat:
		return NewCommandSource(ctx, LogcatArgs(o.Components))
	case Journal:
		return NewCommandSource(ctx, JournalArgs(o.Components))
	case Command:
		return NewCommandSource(ctx, s.Args)
	case File:
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open log file")
		}
		return NewReaderSource(f), nil
	case Stdin:
		return NewReaderSource(os.Stdin), nil
	case SSH:
		so := s.SSH
		so.KeyFile = o.KeyFile
		if home, err := os.UserHomeDir(); err == nil {
			so.KeyDir = filepath.Join(home, ".ssh")
		}
		return NewSSHSource(ctx, so, JournalArgs(o.Components))
	case ADB:
		return NewADBSource(ctx, s.Serial, o.Components)
	default:
		return nil, errors.Errorf("unknown source kind %d", s.Kind)
	}
}
