// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"hash/fnv"
	"sync/atomic"
	"time"
)

// Fanout shards sends across N child queues by stable hash of key
// (falling back to round-robin when no key is given).
//
// is_stalled is the conjunction of children -- "all children stalled"
// -- chosen in favor of liveness: a single stalled endpoint must not
// stall the whole fanout.
type Fanout struct {
	children []Queue
	rr       atomic.Uint64
}

func NewFanout(children []Queue) *Fanout {
	return &Fanout{children: children}
}

func (f *Fanout) Send(key string, payload []byte) bool {
	return f.children[f.route(key)].Send(key, payload)
}

func (f *Fanout) route(key string) int {
	n := len(f.children)
	if key == "" {
		i := f.rr.Add(1) - 1
		return int(i % uint64(n))
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func (f *Fanout) IsStalled() bool {
	for _, c := range f.children {
		if !c.IsStalled() {
			return false
		}
	}
	return true
}

func (f *Fanout) GetHealth() int {
	min := 100
	for _, c := range f.children {
		if h := c.GetHealth(); h < min {
			min = h
		}
	}
	return min
}

func (f *Fanout) SetBuffering(d time.Duration) {
	for _, c := range f.children {
		c.SetBuffering(d)
	}
}

func (f *Fanout) Start() error {
	for _, c := range f.children {
		if err := c.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) Destroy() {
	for _, c := range f.children {
		c.Destroy()
	}
}

func (f *Fanout) TotalSendTime() time.Duration {
	var sum time.Duration
	for _, c := range f.children {
		if t, ok := c.(Timed); ok {
			sum += t.TotalSendTime()
		}
	}
	return sum
}

func (f *Fanout) TotalSentEvents() uint64 {
	var sum uint64
	for _, c := range f.children {
		if t, ok := c.(Timed); ok {
			sum += t.TotalSentEvents()
		}
	}
	return sum
}

var (
	_ Queue = (*Fanout)(nil)
	_ Timed = (*Fanout)(nil)
)
