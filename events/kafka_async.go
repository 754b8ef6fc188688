// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"context"
	"time"

	kgo "github.com/twmb/franz-go/pkg/kgo"
)

// KafkaAsyncQueue is the fire-and-forget kafka Queue backend: Send
// returns as soon as the record is accepted by the client's internal
// buffer, not once a broker has acked it.
type KafkaAsyncQueue struct {
	base
	overwriteBuffer
	topic  string
	client *kgo.Client
}

func NewKafkaAsyncQueue(topic string, client *kgo.Client, fallback FallbackSink) *KafkaAsyncQueue {
	q := &KafkaAsyncQueue{topic: topic, client: client}
	q.fallback = fallback
	q.health.Store(100)
	return q
}

func (q *KafkaAsyncQueue) Send(key string, payload []byte) bool {
	return q.sendThrough(func(key string, payload []byte) bool {
		rec := &kgo.Record{Topic: q.topic, Value: payload}
		if key != "" {
			rec.Key = []byte(key)
		}
		q.client.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
			if err != nil {
				q.markStalled()
			} else {
				q.markHealthy()
			}
		})
		return true
	}, key, payload)
}

// SendOverwritable buffers payload under tag, superseding any pending
// payload already queued for it, and returns true without sending yet;
// an empty tag degrades to a plain Send.
func (q *KafkaAsyncQueue) SendOverwritable(tag string, payload []byte) bool {
	if tag == "" {
		return q.Send("", payload)
	}
	q.set(tag, payload)
	return true
}

// FlushOverwritable sends whatever payload is currently pending for
// tag, if any.
func (q *KafkaAsyncQueue) FlushOverwritable(tag string) {
	if tag == "" {
		return
	}
	if payload, ok := q.take(tag); ok {
		q.Send(tag, payload)
	}
}

func (q *KafkaAsyncQueue) SetBuffering(time.Duration) {} // batching is governed by the client's own config
func (q *KafkaAsyncQueue) Start() error               { return nil }
func (q *KafkaAsyncQueue) Destroy()                   { q.client.Close() }

var (
	_ Queue      = (*KafkaAsyncQueue)(nil)
	_ Overwriter = (*KafkaAsyncQueue)(nil)
)
