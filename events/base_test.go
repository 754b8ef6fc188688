// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events_test

import (
	"errors"
	"testing"
	"time"

	"github.com/coreserve/gridd/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyBeanstalkClient struct {
	fail bool
}

func (c *flakyBeanstalkClient) Put([]byte, uint32, time.Duration, time.Duration) (uint64, error) {
	if c.fail {
		return 0, errors.New("connection refused")
	}
	return 1, nil
}
func (c *flakyBeanstalkClient) Close() error { return nil }

type recordingSink struct {
	drops []struct {
		key     string
		payload []byte
	}
}

func (s *recordingSink) Drop(key string, payload []byte) {
	s.drops = append(s.drops, struct {
		key     string
		payload []byte
	}{key, payload})
}

func TestQueueSendMarksStalledOnBackendFailure(t *testing.T) {
	client := &flakyBeanstalkClient{fail: true}
	q := events.NewBeanstalkdQueue("q1", client, nil)

	ok := q.Send("k", []byte("payload"))
	assert.False(t, ok)
	assert.True(t, q.IsStalled())
	assert.Equal(t, 0, q.GetHealth())
}

func TestQueueSendRecoversHealthAfterSuccess(t *testing.T) {
	client := &flakyBeanstalkClient{fail: true}
	q := events.NewBeanstalkdQueue("q1", client, nil)
	q.Send("k", []byte("payload"))
	require.True(t, q.IsStalled())

	client.fail = false
	ok := q.Send("k", []byte("payload"))
	assert.True(t, ok)
	assert.False(t, q.IsStalled())
	assert.Equal(t, 100, q.GetHealth())
}

func TestStalledQueueWithFallbackDropsAndReturnsFalse(t *testing.T) {
	client := &flakyBeanstalkClient{fail: true}
	sink := &recordingSink{}
	q := events.NewBeanstalkdQueue("q1", client, sink)

	q.Send("k1", []byte("first")) // fails, marks stalled
	ok := q.Send("k1", []byte("second"))

	assert.False(t, ok)
	require.Len(t, sink.drops, 1)
	assert.Equal(t, "k1", sink.drops[0].key)
	assert.Equal(t, []byte("second"), sink.drops[0].payload)
}

func TestStalledQueueWithoutFallbackJustReturnsFalse(t *testing.T) {
	client := &flakyBeanstalkClient{fail: true}
	q := events.NewBeanstalkdQueue("q1", client, nil)
	q.Send("k", []byte("x"))
	ok := q.Send("k", []byte("y"))
	assert.False(t, ok)
}

func TestTotalSentEventsAndSendTimeAccumulate(t *testing.T) {
	client := &flakyBeanstalkClient{}
	q := events.NewBeanstalkdQueue("q1", client, nil)

	for i := 0; i < 5; i++ {
		require.True(t, q.Send("", []byte("x")))
	}
	assert.Equal(t, uint64(5), q.TotalSentEvents())
	assert.GreaterOrEqual(t, q.TotalSendTime(), time.Duration(0))
}
