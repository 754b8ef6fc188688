// Package dispatch implements the request dispatcher, the reply context, and the access-log/statsd emitters.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/debug"
	"github.com/coreserve/gridd/codec"
)

// ReplyCtx is the handler-facing façade: it collects a body, headers,
// a subject, and the access-log suppression flag, and produces
// exactly one final reply. The transport (Dispatch) checks the "final
// sent" invariant on return and synthesizes a reply if the handler
// violated it.
type ReplyCtx struct {
	req *RequestContext

	headers map[string][]byte
	body    []byte

	deadline time.Time
}

func newReplyCtx(req *RequestContext) *ReplyCtx {
	return &ReplyCtx{req: req}
}

// AddHeader appends a header to the eventual reply. Headers accumulate
// and may be set any number of times before the final reply.
func (r *ReplyCtx) AddHeader(name string, value []byte) {
	debug.Assert(!r.req.FinalSent)
	if r.headers == nil {
		r.headers = make(map[string][]byte, 2)
	}
	r.headers[name] = value
}

// SetBody sets the reply body. The body may be set at most once; a
// second call overwrites, which callers should treat as a bug
// (marked by debug.Assert, which is a no-op and checks nothing).
func (r *ReplyCtx) SetBody(b []byte) {
	debug.Assert(!r.req.FinalSent)
	debug.Assert(r.body == nil)
	r.body = b
}

// Subject appends one k:v tag to the free-form access-log subject.
func (r *ReplyCtx) Subject(format string, args ...any) {
	tail := fmt.Sprintf(format, args...)
	if r.req.Subject == "" {
		r.req.Subject = tail
	} else {
		r.req.Subject = r.req.Subject + "\t" + tail
	}
}

// NoAccess suppresses the access-log line for this request when it
// finishes OK and noisy-log suppression is enabled globally.
func (r *ReplyCtx) NoAccess() { r.req.AccessDisabled = true }

// Deadline returns the computed per-request deadline.
func (r *ReplyCtx) Deadline() time.Time { return r.deadline }

// RequestField reads a named field off the inbound message (e.g. the
// STATS handler's FORMAT field).
func (r *ReplyCtx) RequestField(name string) (string, bool) {
	return r.req.Message.FieldString(name)
}

// RequestBody returns the inbound message's body (e.g. SETCFG's JSON
// payload).
func (r *ReplyCtx) RequestBody() []byte { return r.req.Message.Body }

// RequestName returns the inbound request's NAME.
func (r *ReplyCtx) RequestName() string { return r.req.Name }

// computeDeadline computes arrival + server cap, tightened by a
// client-supplied TIMEOUT field, never extended.
func (r *ReplyCtx) computeDeadline(maxRunTime time.Duration, perfdataAlways bool) {
	arrival := r.req.Arrival
	deadline := arrival.Add(maxRunTime)

	if tov, ok := r.req.Message.FieldString(codec.FieldTimeout); ok {
		if to, err := strconv.ParseInt(tov, 10, 64); err == nil && to > 0 {
			tightened := arrival.Add(time.Duration(to) * time.Millisecond)
			if tightened.Before(deadline) {
				deadline = tightened
			}
		}
	}
	r.deadline = deadline
	r.Subject("timeout_float:%.6f", deadline.Sub(arrival).Seconds())

	perfOn := perfdataAlways
	if pv, ok := r.req.Message.FieldString(codec.FieldPerfdata); ok {
		if n, err := strconv.ParseInt(pv, 10, 64); err == nil {
			perfOn = perfOn || n != 0
		}
	}
	r.req.perfEnabled = perfOn
	if perfOn {
		r.req.AddPerfdata("req_decode", r.req.Parsed.Sub(r.req.Arrival))
	}
}

// SendReply marshals {status, message, body?, headers?} and writes one
// reply frame to the socket. Only a final status code (anything but
// StatusTemp) transitions FinalSent from false to true and triggers
// the access log + statsd emission.
func (r *ReplyCtx) SendReply(code cos.Status, msg string) (int, error) {
	debug.Assert(!r.req.FinalSent)

	reply := codec.NewMessage(codec.NameReply)
	reply.AddFieldString(codec.FieldStatus, strconv.Itoa(int(code)))
	if msg != "" {
		reply.AddFieldString(codec.FieldMessage, msg)
	}
	if r.body != nil {
		reply.Body = r.body
	}
	for k, v := range r.headers {
		reply.AddField(k, v)
	}

	encodeStart := time.Now()
	encoded, err := r.req.Codec.Encode(reply)
	encodeEnd := time.Now()
	if err != nil {
		return 0, err
	}

	n, err := r.req.Sink(encoded)
	sendEnd := time.Now()
	r.req.AddPerfdata("resp_encode", encodeEnd.Sub(encodeStart))
	r.req.AddPerfdata("resp_send", sendEnd.Sub(encodeEnd))

	if code.IsFinal() {
		r.req.FinalSent = true
		r.req.End = sendEnd
		logAccess(r.req, code, n)
	}
	return n, err
}

// SendError canonicalizes err's status code, stamps error_code_int/error
// subject tags, and sends it as the final reply.
func (r *ReplyCtx) SendError(code cos.Status, err error) (int, error) {
	debug.Assert(!r.req.FinalSent)
	debug.Assert(err != nil)

	ge, ok := err.(*cos.GridErr)
	if !ok {
		ge = cos.NewGridErr(cos.StatusInternalError, "%s", err.Error())
	}
	if code != 0 {
		ge.Code = code
	}
	ge.Code = ge.Code.Canonicalize()

	if ge.Code == cos.StatusRedirect {
		r.Subject("error_code_int:%d\terror:redirect to %s", int(ge.Code), ge.Msg)
	} else {
		r.Subject("error_code_int:%d\terror:%s", int(ge.Code), ge.Msg)
	}
	return r.SendReply(ge.Code, ge.Msg)
}

// ReplyBadRequest sends a final BAD_REQUEST reply directly, bypassing
// handler lookup. The frame reader uses this for frames that never
// reach Dispatch at all: a codec decode failure or a message with no
// NAME field.
func ReplyBadRequest(req *RequestContext, msg string) (int, error) {
	reply := newReplyCtx(req)
	return reply.SendReply(cos.StatusBadRequest, msg)
}

// Redirect is a convenience for the REDIRECT admin handler: the target
// endpoint travels in the reply body, duplicated into MESSAGE for
// humans reading the access log.
func (r *ReplyCtx) Redirect(endpoint string) (int, error) {
	if r.body == nil {
		r.SetBody([]byte(endpoint))
	}
	return r.SendError(cos.StatusRedirect, cos.NewGridErr(cos.StatusRedirect, "%s", endpoint))
}
