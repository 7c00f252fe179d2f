// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
)

// maxLineSize is the longest log line a Source can return.
const maxLineSize = 1 << 20

// Source is a stream of log lines.
type Source interface {
	// Next blocks until the next line is available and returns it without
	// its line terminator. It returns io.EOF at the end of the stream,
	// including after Close.
	Next() (string, error)
	// Close releases the source. It may be called concurrently with Next,
	// which then returns io.EOF.
	Close() error
}

type readerSource struct {
	r      io.ReadCloser
	sc     *bufio.Scanner
	closed atomic.Bool
	once   sync.Once
	err    error
}

// NewReaderSource returns a Source reading lines from r. Closing the
// Source closes r.
func NewReaderSource(r io.ReadCloser) Source {
	return newReaderSource(r)
}

func newReaderSource(r io.ReadCloser) *readerSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &readerSource{r: r, sc: sc}
}

func (s *readerSource) Next() (string, error) {
	if s.closed.Load() {
		return "", io.EOF
	}
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if s.closed.Load() {
		return "", io.EOF
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *readerSource) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.err = s.r.Close()
	})
	return s.err
}
