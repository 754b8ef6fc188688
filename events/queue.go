// Package events implements the event-queue abstraction: a polymorphic
// send/stall/health interface over broker backends (beanstalkd,
// kafka-async, kafka-sync, fanout), a reference-counted stats
// registry, and a fallback drop sink.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Event is an opaque payload plus an optional routing key. The core
// treats the payload as an opaque byte string between accept and
// hand-off to a backend.
type Event struct {
	Key     string
	Payload []byte
}

// NewEvent builds an Event ready to Send out of an already-encoded
// payload.
func NewEvent(key string, payload []byte) Event {
	return Event{Key: key, Payload: payload}
}

// envelope is the JSON shape NewEventEnvelope stamps onto every event.
type envelope struct {
	Event     string `json:"event"`
	When      int64  `json:"when"`
	URL       string `json:"url,omitempty"`
	RequestID string `json:"request_id"`
	Origin    string `json:"origin,omitempty"`
}

// NewEventEnvelope builds an Event whose payload is a JSON envelope
// carrying the event type, a wall-clock creation instant, the request
// id the originating call was tagged with, and an ambient origin
// string (e.g. a user-agent or hostname). routingKey becomes the
// Event's Key; it is independent of the envelope's "event" type field.
func NewEventEnvelope(eventType, routingKey, requestID, origin string) (Event, error) {
	env := envelope{
		Event:     eventType,
		When:      time.Now().Unix(),
		RequestID: requestID,
		Origin:    origin,
	}
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(env)
	if err != nil {
		return Event{}, err
	}
	return Event{Key: routingKey, Payload: payload}, nil
}

// Queue is the capability set every backend variant implements.
type Queue interface {
	Send(key string, payload []byte) bool
	IsStalled() bool
	GetHealth() int // 0..100
	SetBuffering(delay time.Duration)
	Start() error
	Destroy()
}

// Overwriter is the optional tag-based overwrite capability: not every
// backend supports it.
type Overwriter interface {
	SendOverwritable(tag string, payload []byte) bool
	FlushOverwritable(tag string)
}

// SendOverwritable sends through q's overwrite capability when it has
// one and tag is non-empty; any other combination degrades to a plain
// Send.
func SendOverwritable(q Queue, tag string, payload []byte) bool {
	if ow, ok := q.(Overwriter); ok && tag != "" {
		return ow.SendOverwritable(tag, payload)
	}
	return q.Send(tag, payload)
}

// FlushOverwritable drains tag's pending payload when q supports
// overwriting; otherwise the tag is simply released.
func FlushOverwritable(q Queue, tag string) {
	if ow, ok := q.(Overwriter); ok && tag != "" {
		ow.FlushOverwritable(tag)
	}
}

// Timed is the optional cumulative-stats capability used by the stats
// registry's Prometheus export.
type Timed interface {
	TotalSendTime() time.Duration
	TotalSentEvents() uint64
}

// FallbackSink persists events a stalled queue can't accept right now.
// The destination path it chooses is treated as opaque here.
type FallbackSink interface {
	Drop(key string, payload []byte)
}
