// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"context"

	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/redis/go-redis/v9"
)

// redisPusher narrows go-redis down to the one command this sink
// needs, the same narrowed-interface idiom the ratelimiter persister
// uses for its Lua-eval client: *redis.Client satisfies this directly,
// and tests can substitute a fake without a live server.
type redisPusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// RedisFallbackSink persists events a stalled queue can't accept onto
// a Redis list, one list per routing key -- falling back to a literal
// "default" list when an event carries none. The destination path is
// entirely this sink's own concern; callers treat it as opaque.
type RedisFallbackSink struct {
	client    redisPusher
	keyPrefix string
}

// NewRedisFallbackSink returns a sink that RPUSHes dropped payloads
// under "<keyPrefix><routing_key>". An empty keyPrefix is fine; a
// typical value is "gridd:dropped:".
func NewRedisFallbackSink(client *redis.Client, keyPrefix string) *RedisFallbackSink {
	return &RedisFallbackSink{client: client, keyPrefix: keyPrefix}
}

// NewRedisFallbackSinkForTest builds a sink against the narrowed
// redisPusher interface instead of a concrete *redis.Client, so tests
// can substitute a fake without a live Redis server.
func NewRedisFallbackSinkForTest(client redisPusher, keyPrefix string) *RedisFallbackSink {
	return &RedisFallbackSink{client: client, keyPrefix: keyPrefix}
}

// Drop implements FallbackSink. It is best-effort: a Redis error is
// logged, not propagated, since the caller (Queue.Send) has already
// committed to reporting the send as dropped either way.
func (s *RedisFallbackSink) Drop(key string, payload []byte) {
	listKey := s.keyPrefix + key
	if key == "" {
		listKey = s.keyPrefix + "default"
	}
	if err := s.client.RPush(context.Background(), listKey, payload).Err(); err != nil {
		nlog.Warningf("fallback sink: RPUSH %s failed: %v", listKey, err)
	}
}

var _ FallbackSink = (*RedisFallbackSink)(nil)
