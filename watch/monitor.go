// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/shirou/gopsutil/v3/process"

	"go.chromium.org/junitreport/internal/logging"
)

// DefaultPollInterval is the default interval between process checks.
const DefaultPollInterval = time.Second

// Replaced in unit tests.
var (
	clk       = clock.NewClock()
	pidExists = process.PidExistsWithContext
)

// MonitorProcess checks every interval whether the process pid still exists.
// Once it is gone, onExit is called and MonitorProcess returns nil. If ctx is
// done first, ctx's error is returned.
//
// Transient failures to check the process are logged and retried at the
// next tick.
func MonitorProcess(ctx context.Context, pid int32, interval time.Duration, onExit func()) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := clk.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
		}
		ok, err := pidExists(ctx, pid)
		if err != nil {
			logging.Infof(ctx, "Failed to check process %d: %v", pid, err)
			continue
		}
		if !ok {
			logging.Infof(ctx, "Process %d exited", pid)
			onExit()
			return nil
		}
	}
}
