// Package mono provides a monotonic clock reading used throughout the
// transport and event-queue code for deadlines, I/O-health timestamps,
// and log rotation. It wraps time.Now(): the monotonic component is
// already exposed by the stdlib and does not need a runtime-internal
// shortcut.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var epoch = time.Now()

// NanoTime returns a monotonically increasing number of nanoseconds
// since an arbitrary, process-local epoch. Only differences between
// two calls are meaningful.
func NanoTime() int64 { return time.Since(epoch).Nanoseconds() }

// Since is a convenience wrapper for computing an elapsed duration
// from a NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
