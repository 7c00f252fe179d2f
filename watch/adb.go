// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/electricbubble/gadb"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/logging"
)

// NewADBSource returns a Source reading the log buffered on the Android
// device with the given serial, or on the only attached device if serial is
// empty. A serial of the form "host:port" names a network device, which is
// connected first. The stream ends after the buffered log is consumed.
func NewADBSource(ctx context.Context, serial string, components []string) (Source, error) {
	client, err := gadb.NewClient()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to ADB server")
	}
	if host, portStr, err := net.SplitHostPort(serial); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, errors.Wrapf(err, "bad ADB port %q", portStr)
		}
		if err := client.Connect(host, port); err != nil {
			return nil, errors.Wrapf(err, "failed to connect to %s", serial)
		}
	}

	devices, err := client.DeviceList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ADB devices")
	}
	dev, err := pickDevice(devices, serial)
	if err != nil {
		return nil, err
	}

	// Dump the buffer instead of following it so the shell command returns.
	args := LogcatArgs(components)
	args = append([]string{args[0], "-d"}, args[1:]...)
	logging.Debugf(ctx, "Reading log of ADB device %s", dev.Serial())
	out, err := dev.RunShellCommand(args[0], args[1:]...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to run logcat on %s", dev.Serial())
	}
	return NewReaderSource(io.NopCloser(strings.NewReader(out))), nil
}

func pickDevice(devices []gadb.Device, serial string) (*gadb.Device, error) {
	if serial == "" {
		if len(devices) != 1 {
			return nil, errors.Errorf("need exactly one ADB device; found %d", len(devices))
		}
		return &devices[0], nil
	}
	for i := range devices {
		if devices[i].Serial() == serial {
			return &devices[i], nil
		}
	}
	return nil, errors.Errorf("ADB device %q not found", serial)
}
