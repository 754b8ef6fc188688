// Package dispatch implements the request dispatcher, the reply context, and the access-log/statsd emitters.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"time"

	"github.com/coreserve/gridd/codec"
	"github.com/google/uuid"
)

// RequestContext is the per-request record threaded from frame arrival
// through to the final reply; its lifetime is exactly one request. It
// is built by the frame reader and handed to Dispatch.
type RequestContext struct {
	Arrival time.Time // tv_start: when the frame finished arriving
	Parsed  time.Time // tv_parsed: when decode completed
	End     time.Time // tv_end: stamped by the reply context at final-send

	Message *codec.Message
	Name    string // request NAME, extracted from Message
	ReqID   string // printable request id (hex-encoded or substituted UUID)
	Size    int64  // request size in bytes, including the 4-byte length prefix

	LocalAddr string
	PeerAddr  string

	DBWait time.Duration // time spent waiting on a downstream DB/service, if tracked

	FinalSent      bool
	AccessDisabled bool
	Subject        string

	Perfdata    map[string]time.Duration
	perfEnabled bool

	// Sink receives the encoded reply frame; the frame reader supplies a
	// closure writing to the socket, tests supply an in-memory buffer.
	Sink func(encoded []byte) (int, error)
	// Codec encodes the reply Message for Sink.
	Codec codec.Codec
}

// NewRequestContext extracts NAME/ID from a decoded message and builds
// the per-request record.
func NewRequestContext(msg *codec.Message, arrival time.Time, size int64, c codec.Codec, sink func([]byte) (int, error)) *RequestContext {
	reqid := printableID(msg.ID)
	if reqid == "-" {
		// a printable request id is always present downstream;
		// substitute a fresh one rather than propagate the dash.
		reqid = uuid.New().String()
	}
	return &RequestContext{
		Arrival: arrival,
		Parsed:  time.Now(),
		Message: msg,
		Name:    msg.Name,
		ReqID:   reqid,
		Size:    size,
		Sink:    sink,
		Codec:   c,
	}
}

func (r *RequestContext) AddPerfdata(phase string, d time.Duration) {
	if !r.perfEnabled {
		return
	}
	if r.Perfdata == nil {
		r.Perfdata = make(map[string]time.Duration, 4)
	}
	r.Perfdata[phase] = d
}
