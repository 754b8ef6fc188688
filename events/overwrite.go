// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import "sync"

// overwriteBuffer implements the tag-keyed pending-payload half of
// send_overwritable/flush_overwritable: a newer payload for the same
// tag replaces an older, not-yet-flushed one. Embedded by the
// backends that choose to support the Overwriter capability.
type overwriteBuffer struct {
	mu      sync.Mutex
	pending map[string][]byte
}

func (o *overwriteBuffer) set(tag string, payload []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		o.pending = make(map[string][]byte, 4)
	}
	o.pending[tag] = payload
}

func (o *overwriteBuffer) take(tag string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.pending[tag]
	if ok {
		delete(o.pending, tag)
	}
	return p, ok
}
