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

// KafkaSyncQueue is the kafka Queue backend that waits for the
// broker's ack before Send returns.
type KafkaSyncQueue struct {
	base
	topic  string
	client *kgo.Client
}

func NewKafkaSyncQueue(topic string, client *kgo.Client, fallback FallbackSink) *KafkaSyncQueue {
	q := &KafkaSyncQueue{topic: topic, client: client}
	q.fallback = fallback
	q.health.Store(100)
	return q
}

func (q *KafkaSyncQueue) Send(key string, payload []byte) bool {
	return q.sendThrough(func(key string, payload []byte) bool {
		rec := &kgo.Record{Topic: q.topic, Value: payload}
		if key != "" {
			rec.Key = []byte(key)
		}
		results := q.client.ProduceSync(context.Background(), rec)
		if err := results.FirstErr(); err != nil {
			q.markStalled()
			return false
		}
		q.markHealthy()
		return true
	}, key, payload)
}

func (q *KafkaSyncQueue) SetBuffering(time.Duration) {}
func (q *KafkaSyncQueue) Start() error               { return nil }
func (q *KafkaSyncQueue) Destroy()                   { q.client.Close() }

var _ Queue = (*KafkaSyncQueue)(nil)
