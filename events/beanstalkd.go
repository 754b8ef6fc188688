// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import "time"

// BeanstalkdClient is the external collaborator boundary: this package
// owns only the contract, not a vendored beanstalkd driver. A real
// deployment wires in github.com/beanstalkd/go-beanstalk's
// *beanstalk.Conn, which already satisfies this shape.
type BeanstalkdClient interface {
	Put(body []byte, pri uint32, delay, ttr time.Duration) (id uint64, err error)
	Close() error
}

// BeanstalkdQueue is the beanstalkd Queue backend.
type BeanstalkdQueue struct {
	base
	name   string
	client BeanstalkdClient
}

func NewBeanstalkdQueue(name string, client BeanstalkdClient, fallback FallbackSink) *BeanstalkdQueue {
	q := &BeanstalkdQueue{name: name, client: client}
	q.fallback = fallback
	q.health.Store(100)
	return q
}

func (q *BeanstalkdQueue) Send(key string, payload []byte) bool {
	return q.sendThrough(func(_ string, p []byte) bool {
		if _, err := q.client.Put(p, 0, 0, 10*time.Second); err != nil {
			q.markStalled()
			return false
		}
		q.markHealthy()
		return true
	}, key, payload)
}

func (q *BeanstalkdQueue) SetBuffering(time.Duration) {} // beanstalkd has no client-side buffering knob
func (q *BeanstalkdQueue) Start() error               { return nil }
func (q *BeanstalkdQueue) Destroy()                   { q.client.Close() }

var _ Queue = (*BeanstalkdQueue)(nil)
