// Package dispatch implements the request dispatcher, the reply context, and the access-log/statsd emitters.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/codec"
	"github.com/coreserve/gridd/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() *dispatch.Dispatcher {
	return dispatch.NewDispatcher(dispatch.Config{
		MaxQueueDelay: time.Second,
		MaxRunTime:    time.Minute,
	})
}

func sendRequest(t *testing.T, d *dispatch.Dispatcher, name string, fields map[string]string, arrival time.Time) (cos.Status, string) {
	t.Helper()
	msg := codec.NewMessage(name)
	for k, v := range fields {
		msg.AddFieldString(k, v)
	}
	var c codec.BER
	var lastFrame []byte
	sink := func(b []byte) (int, error) {
		lastFrame = b
		return len(b), nil
	}
	req := dispatch.NewRequestContext(msg, arrival, 32, c, sink)
	d.Dispatch(req)
	require.True(t, req.FinalSent)
	require.NotNil(t, lastFrame)
	reply, err := c.Decode(lastFrame)
	require.NoError(t, err)
	st, _ := reply.FieldString(codec.FieldStatus)
	msgOut, _ := reply.FieldString(codec.FieldMessage)
	code, err := strconv.Atoi(st)
	require.NoError(t, err)
	return cos.Status(code), msgOut
}

func TestDuplicateRegistrationFails(t *testing.T) {
	d := newTestDispatcher()
	h := dispatch.HandlerDescr{Name: "REQ_PING", Handler: func(r *dispatch.ReplyCtx, _, _ any) bool {
		r.NoAccess()
		r.SendReply(cos.StatusOK, "OK")
		return true
	}}
	require.NoError(t, d.Register([]dispatch.HandlerDescr{h}, nil))
	err := d.Register([]dispatch.HandlerDescr{h}, nil)
	require.Error(t, err)
}

func TestDispatchUnknownHandler(t *testing.T) {
	d := newTestDispatcher()
	code, msg := sendRequest(t, d, "REQ_DOES_NOT_EXIST", nil, time.Now())
	assert.Equal(t, cos.StatusNotFound, code)
	assert.Equal(t, "No handler found", msg)
}

func TestDispatchQueuedTooLong(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, d.Register([]dispatch.HandlerDescr{{
		Name: "REQ_PING",
		Handler: func(r *dispatch.ReplyCtx, _, _ any) bool {
			r.SendReply(cos.StatusOK, "OK")
			return true
		},
	}}, nil))

	old := time.Now().Add(-10 * time.Second)
	code, msg := sendRequest(t, d, "REQ_PING", nil, old)
	assert.Equal(t, cos.StatusGatewayTimeout, code)
	assert.Contains(t, msg, "Queued for too long")
}

func TestDispatchIOHealthGate(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, d.Register([]dispatch.HandlerDescr{
		{Name: "REQ_WRITE", Handler: func(r *dispatch.ReplyCtx, _, _ any) bool {
			r.SendReply(cos.StatusOK, "OK")
			return true
		}},
		{Name: "REQ_PING", Local: true, Handler: func(r *dispatch.ReplyCtx, _, _ any) bool {
			r.NoAccess()
			r.SendReply(cos.StatusOK, "OK")
			return true
		}},
	}, nil))

	d.NotifyIOStatus(false, "disk full")
	code, msg := sendRequest(t, d, "REQ_WRITE", nil, time.Now())
	assert.Equal(t, cos.StatusUnavailable, code)
	assert.Contains(t, msg, "disk full")

	// local/low-level handlers bypass the gate
	code, _ = sendRequest(t, d, "REQ_PING", nil, time.Now())
	assert.Equal(t, cos.StatusOK, code)
}

func TestIsIOOkNeverTouched(t *testing.T) {
	d := newTestDispatcher()
	assert.True(t, d.IsIOOk())
}

func TestIsIOOkAfterNotify(t *testing.T) {
	d := newTestDispatcher()
	d.NotifyIOStatus(false, "boom")
	assert.False(t, d.IsIOOk())
	d.NotifyIOStatus(true, "")
	assert.True(t, d.IsIOOk())
}

func TestHandlerWithNoFinalReplySynthesizesBug(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, d.Register([]dispatch.HandlerDescr{{
		Name:    "REQ_BUGGY",
		Handler: func(*dispatch.ReplyCtx, any, any) bool { return true },
	}}, nil))
	code, msg := sendRequest(t, d, "REQ_BUGGY", nil, time.Now())
	assert.Equal(t, cos.StatusInternalError, code)
	assert.Equal(t, "BUG: no reply sent", msg)
}

func TestHandlerReceivesGlobalAndPerHandlerData(t *testing.T) {
	d := newTestDispatcher()
	type appState struct{ name string }
	global := &appState{name: "global"}
	var gotG, gotH any
	require.NoError(t, d.Register([]dispatch.HandlerDescr{{
		Name:  "REQ_DATA",
		HData: "per-handler",
		Handler: func(r *dispatch.ReplyCtx, gdata, hdata any) bool {
			gotG, gotH = gdata, hdata
			r.SendReply(cos.StatusOK, "OK")
			return true
		},
	}}, global))
	sendRequest(t, d, "REQ_DATA", nil, time.Now())
	assert.Same(t, global, gotG)
	assert.Equal(t, "per-handler", gotH)
}

func TestSamplesIncludeExternalSamplers(t *testing.T) {
	d := newTestDispatcher()
	d.AddSampler(func() []dispatch.Sample {
		return []dispatch.Sample{{Kind: "gauge", Name: "cnx.client", Value: 3}}
	})
	var found bool
	for _, s := range d.Samples() {
		if s.Kind == "gauge" && s.Name == "cnx.client" && s.Value == 3 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDeadlineTightenedByTimeoutField(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Config{MaxQueueDelay: time.Second, MaxRunTime: 10 * time.Second})
	var got time.Duration
	require.NoError(t, d.Register([]dispatch.HandlerDescr{{
		Name: "REQ_DL",
		Handler: func(r *dispatch.ReplyCtx, _, _ any) bool {
			got = time.Until(r.Deadline())
			r.SendReply(cos.StatusOK, "OK")
			return true
		},
	}}, nil))
	sendRequest(t, d, "REQ_DL", map[string]string{"TIMEOUT": "500"}, time.Now())
	assert.InDelta(t, 500*time.Millisecond, got, float64(100*time.Millisecond))
}

func TestDeadlineNotExtendedPastServerCap(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Config{MaxQueueDelay: time.Second, MaxRunTime: 2 * time.Second})
	var got time.Duration
	require.NoError(t, d.Register([]dispatch.HandlerDescr{{
		Name: "REQ_DL",
		Handler: func(r *dispatch.ReplyCtx, _, _ any) bool {
			got = time.Until(r.Deadline())
			r.SendReply(cos.StatusOK, "OK")
			return true
		},
	}}, nil))
	sendRequest(t, d, "REQ_DL", map[string]string{"TIMEOUT": "60000"}, time.Now())
	assert.InDelta(t, 2*time.Second, got, float64(200*time.Millisecond))
}
