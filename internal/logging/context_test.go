// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/internal/logging/loggingtest"
)

func TestContextLogging(t *testing.T) {
	ctx, logger := loggingtest.Context(t, logging.LevelDebug)

	logging.Info(ctx, "a", 1)
	logging.Infof(ctx, "b%d", 2)
	logging.Debug(ctx, "c")
	logging.Debugf(ctx, "d%s", "\xff")

	if diff := cmp.Diff(logger.Logs(), []string{"a1", "b2", "c", "d"}); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}

func TestContextLogging_NoLogger(t *testing.T) {
	// Must not panic.
	logging.Info(context.Background(), "dropped")
}

func TestAttachLogger_Propagation(t *testing.T) {
	parent := loggingtest.NewLogger(t, logging.LevelInfo)
	child := loggingtest.NewLogger(t, logging.LevelInfo)

	ctx := logging.AttachLogger(context.Background(), parent)
	logging.Info(logging.AttachLogger(ctx, child), "propagated")
	logging.Info(ctx, "parent only")

	if diff := cmp.Diff(parent.Logs(), []string{"propagated", "parent only"}); diff != "" {
		t.Errorf("Parent logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(child.Logs(), []string{"propagated"}); diff != "" {
		t.Errorf("Child logs mismatch (-got +want):\n%s", diff)
	}
}

func TestWithPrefix(t *testing.T) {
	ctx, logger := loggingtest.Context(t, logging.LevelInfo)
	logging.Info(logging.WithPrefix(ctx, "[watch] "), "matched")

	if diff := cmp.Diff(logger.Logs(), []string{"[watch] matched"}); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}
