// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"

	"go.chromium.org/junitreport/errors"
)

// fakeProcesses replaces the process table and clock for a test.
func fakeProcesses(t *testing.T, exists func(pid int32) (bool, error)) *fakeclock.FakeClock {
	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	origClk, origExists := clk, pidExists
	clk = fc
	pidExists = func(ctx context.Context, pid int32) (bool, error) { return exists(pid) }
	t.Cleanup(func() { clk, pidExists = origClk, origExists })
	return fc
}

func TestMonitorProcess(t *testing.T) {
	var alive atomic.Bool
	alive.Store(true)
	var checks atomic.Int32
	fc := fakeProcesses(t, func(pid int32) (bool, error) {
		checks.Add(1)
		if pid != 42 {
			return false, errors.Errorf("unexpected pid %d", pid)
		}
		return alive.Load(), nil
	})

	exited := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- MonitorProcess(context.Background(), 42, time.Second, func() { close(exited) })
	}()

	fc.WaitForWatcherAndIncrement(time.Second)
	waitFor(t, func() bool { return checks.Load() == 1 })
	select {
	case <-exited:
		t.Fatal("onExit called while the process is alive")
	default:
	}

	alive.Store(false)
	fc.Increment(time.Second)
	select {
	case err := <-done:
		if err != nil {
			t.Error("MonitorProcess failed: ", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("MonitorProcess did not return after the process exited")
	}
	select {
	case <-exited:
	default:
		t.Error("onExit not called")
	}
}

func TestMonitorProcessCheckError(t *testing.T) {
	var checks atomic.Int32
	fc := fakeProcesses(t, func(pid int32) (bool, error) {
		if checks.Add(1) == 1 {
			return false, errors.New("permission denied")
		}
		return false, nil
	})

	done := make(chan error, 1)
	called := false
	go func() {
		done <- MonitorProcess(context.Background(), 7, time.Second, func() { called = true })
	}()

	fc.WaitForWatcherAndIncrement(time.Second)
	waitFor(t, func() bool { return checks.Load() == 1 })
	fc.Increment(time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Error("MonitorProcess failed: ", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("MonitorProcess did not return")
	}
	if !called {
		t.Error("onExit not called")
	}
	if n := checks.Load(); n != 2 {
		t.Errorf("Process checked %d times; want 2", n)
	}
}

func TestMonitorProcessCancel(t *testing.T) {
	fakeProcesses(t, func(pid int32) (bool, error) { return true, nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := MonitorProcess(ctx, 1, time.Second, func() { t.Error("onExit called") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("MonitorProcess returned %v; want %v", err, context.Canceled)
	}
}

// waitFor polls cond until it holds, failing t after a timeout.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met before timeout")
		}
		time.Sleep(time.Millisecond)
	}
}
