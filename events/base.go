// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"sync/atomic"
	"time"
)

// base centralizes the send/fallback/stats-counting policy shared by
// every concrete backend: a stalled queue with a fallback installed
// drops the payload there and reports false; otherwise the
// backend-specific enqueue runs and, on success, feeds the cumulative
// counters the stats registry reads back.
type base struct {
	fallback FallbackSink

	stalled atomic.Bool
	health  atomic.Int32

	totalSendTime   atomic.Int64
	totalSentEvents atomic.Uint64
}

func (b *base) IsStalled() bool { return b.stalled.Load() }
func (b *base) GetHealth() int  { return int(b.health.Load()) }

func (b *base) TotalSendTime() time.Duration { return time.Duration(b.totalSendTime.Load()) }
func (b *base) TotalSentEvents() uint64      { return b.totalSentEvents.Load() }

func (b *base) markHealthy() {
	b.stalled.Store(false)
	b.health.Store(100)
}

func (b *base) markStalled() {
	b.stalled.Store(true)
	b.health.Store(0)
}

// sendThrough applies the stalled/fallback gate, then calls enqueue
// and updates the cumulative counters iff it reports success.
func (b *base) sendThrough(enqueue func(key string, payload []byte) bool, key string, payload []byte) bool {
	if b.stalled.Load() && b.fallback != nil {
		b.fallback.Drop(key, payload)
		return false
	}
	start := time.Now()
	ok := enqueue(key, payload)
	if ok {
		b.totalSendTime.Add(int64(time.Since(start)))
		b.totalSentEvents.Add(1)
	}
	return ok
}
