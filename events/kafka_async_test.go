// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events_test

import (
	"testing"

	"github.com/coreserve/gridd/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kgo "github.com/twmb/franz-go/pkg/kgo"
)

func newTestKafkaAsyncQueue(t *testing.T) *events.KafkaAsyncQueue {
	t.Helper()
	client, err := kgo.NewClient(kgo.SeedBrokers("127.0.0.1:9092"))
	require.NoError(t, err)
	return events.NewKafkaAsyncQueue("topic", client, nil)
}

func TestSendOverwritableWithEmptyTagDegradesToPlainSend(t *testing.T) {
	q := newTestKafkaAsyncQueue(t)
	ok := q.SendOverwritable("", []byte("payload"))
	assert.True(t, ok)
}

func TestFlushOverwritableWithEmptyTagIsNoop(t *testing.T) {
	q := newTestKafkaAsyncQueue(t)
	q.FlushOverwritable("") // must not panic
}

func TestFlushOverwritableWithNoPendingPayloadIsNoop(t *testing.T) {
	q := newTestKafkaAsyncQueue(t)
	q.FlushOverwritable("never-buffered") // must not panic
}

func TestSendOverwritableBuffersUnderTagWithoutSendingYet(t *testing.T) {
	q := newTestKafkaAsyncQueue(t)
	ok := q.SendOverwritable("tag-1", []byte("first"))
	assert.True(t, ok)
	// a second call for the same tag supersedes the first, still
	// without producing: newer payloads may supersede older pending
	// ones for the same tag.
	ok = q.SendOverwritable("tag-1", []byte("second"))
	assert.True(t, ok)
	assert.Equal(t, uint64(0), q.TotalSentEvents())
}
