// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// loggerKey is the type of the key used for attaching a Logger to a
// context.Context.
type loggerKey struct{}

// prefixKey is the type of the key used for attaching a log prefix to a
// context.Context.
type prefixKey struct{}

// AttachLogger creates a new context with logger attached. Logs emitted via
// the new context are propagated to the parent context.
func AttachLogger(ctx context.Context, logger Logger) context.Context {
	if parent, ok := loggerFromContext(ctx); ok {
		logger = NewMultiLogger(logger, parent)
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithPrefix returns a context whose logs are prefixed by prefix, e.g. to
// tell the watcher's logs apart from the report writer's.
func WithPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, prefixKey{}, prefix)
}

// loggerFromContext extracts a logger from a context.
// This function is unexported so that users cannot extract a logger from
// contexts. If you need to access a logger after associating it to a context,
// pass the logger explicitly to functions.
func loggerFromContext(ctx context.Context) (Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	return logger, ok
}

// Info emits a log with info level.
func Info(ctx context.Context, args ...interface{}) {
	emit(ctx, time.Now(), LevelInfo, fmt.Sprint(args...))
}

// Infof is similar to Info but formats its arguments using fmt.Sprintf.
func Infof(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, time.Now(), LevelInfo, fmt.Sprintf(format, args...))
}

// Debug emits a log with debug level.
func Debug(ctx context.Context, args ...interface{}) {
	emit(ctx, time.Now(), LevelDebug, fmt.Sprint(args...))
}

// Debugf is similar to Debug but formats its arguments using fmt.Sprintf.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, time.Now(), LevelDebug, fmt.Sprintf(format, args...))
}

func emit(ctx context.Context, ts time.Time, level Level, msg string) {
	logger, ok := loggerFromContext(ctx)
	if !ok {
		return
	}
	if prefix, ok := ctx.Value(prefixKey{}).(string); ok {
		msg = prefix + msg
	}
	// Log lines scraped from devices may carry arbitrary bytes.
	logger.Log(level, ts, strings.ToValidUTF8(msg, ""))
}
