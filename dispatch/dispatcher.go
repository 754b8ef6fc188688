// Package dispatch implements the request dispatcher, the
// handler-facing reply context, deadline/perfdata propagation, and the
// access log/statsd emitter.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/mono"
	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/prometheus/client_golang/prometheus"
)

// HandlerFunc is the handler-facing contract: a handler runs
// synchronously and must produce exactly one final reply through the
// ReplyCtx façade before returning.
type HandlerFunc func(reply *ReplyCtx, gdata, hdata any) bool

// HandlerDescr is one entry passed to Register.
type HandlerDescr struct {
	Name    string
	Handler HandlerFunc
	HData   any
	// Local marks a "local low-level handler": it bypasses the
	// I/O-health gate so it stays answerable during degraded I/O
	// (PING first among them).
	Local bool
}

type handlerRecord struct {
	descr     HandlerDescr
	gdata     any
	countReq  prometheus.Counter
	countTime prometheus.Counter
	countLag  prometheus.Counter
}

// Config bounds the dispatcher's queueing and handler-execution policy.
type Config struct {
	MaxQueueDelay  time.Duration // meta_queue_max_delay
	MaxRunTime     time.Duration // server_max_run_time
	PerfdataAlways bool          // globally-enabled perfdata
}

// Dispatcher maps a request NAME to a registered handler and tracks
// per-handler counters plus a rolling I/O-health flag.
type Dispatcher struct {
	cfg Config

	mu       sync.RWMutex
	handlers map[string]*handlerRecord
	samplers []SampleFunc

	// bucket counters for requests that never reach a handler
	countOverloaded prometheus.Counter
	countUnexpected prometheus.Counter
	countIOErr      prometheus.Counter
	countAll        prometheus.Counter
	timeAll         prometheus.Counter

	// I/O-health: updated/read via atomics without a broader lock --
	// torn reads of a monotonic timestamp are acceptable.
	lastIOSuccess atomic.Int64
	lastIOError   atomic.Int64
	lastIOMsg     atomic.Value // string
	lastReport    atomic.Int64
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		handlers: make(map[string]*handlerRecord, 16),
		countOverloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "req_overloaded_total", Help: "requests rejected as queued too long",
		}),
		countUnexpected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "req_unexpected_total", Help: "requests with no registered handler",
		}),
		countIOErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "req_ioerror_total", Help: "requests rejected due to I/O health",
		}),
		countAll: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "req_all_total", Help: "all requests seen by the dispatcher",
		}),
		timeAll: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "req_all_time_total", Help: "cumulative request handling time",
		}),
	}
	return d
}

// Register adds handler descriptors to the dispatcher. Duplicate NAME
// is a configuration error. Registering after the server starts
// accepting connections is undefined behavior -- Register itself does
// not enforce that, by design, since the dispatcher cannot observe
// "bind_host".
func (d *Dispatcher) Register(descrs []HandlerDescr, gdata any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, descr := range descrs {
		if _, exists := d.handlers[descr.Name]; exists {
			return cos.NewGridErr(cos.StatusInternalError, "duplicate handler registration: %s", descr.Name)
		}
		rec := &handlerRecord{
			descr: descr,
			gdata: gdata,
			countReq: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "req_hits_total", ConstLabels: prometheus.Labels{"method": descr.Name},
			}),
			countTime: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "req_time_total", ConstLabels: prometheus.Labels{"method": descr.Name},
			}),
			countLag: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "req_lag_total", ConstLabels: prometheus.Labels{"method": descr.Name},
			}),
		}
		d.handlers[descr.Name] = rec
	}
	return nil
}

// Names returns all registered handler names (LIST-HANDLERS).
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch resolves req.Name to a handler and runs it, enforcing the
// queue-delay and I/O-health gates. It always leaves req.FinalSent
// true: if the handler returns without sending a final reply,
// Dispatch synthesizes one ("BUG: no reply sent").
func (d *Dispatcher) Dispatch(req *RequestContext) {
	reply := newReplyCtx(req)
	d.countAll.Inc()
	defer func() {
		dur := time.Since(req.Arrival)
		d.timeAll.Add(dur.Seconds())
		if !req.FinalSent {
			reply.SendReply(cos.StatusInternalError, "BUG: no reply sent")
		}
	}()

	if time.Since(req.Arrival) > d.cfg.MaxQueueDelay {
		msg := "Queued for too long (" + durationMillis(time.Since(req.Arrival)) + "ms)"
		reply.SendReply(cos.StatusGatewayTimeout, msg)
		d.countOverloaded.Inc()
		return
	}

	d.mu.RLock()
	rec, ok := d.handlers[req.Name]
	d.mu.RUnlock()

	if !ok {
		reply.SendReply(cos.StatusNotFound, "No handler found")
		d.countUnexpected.Inc()
		return
	}

	if !rec.descr.Local && !d.IsIOOk() {
		reply.SendReply(cos.StatusUnavailable, "IO errors reported: "+d.LastIOMsg())
		d.countIOErr.Inc()
		return
	}

	reply.computeDeadline(d.cfg.MaxRunTime, d.cfg.PerfdataAlways)
	start := time.Now()
	rec.countLag.Add(start.Sub(req.Arrival).Seconds())
	rec.descr.Handler(reply, rec.gdata, rec.descr.HData)
	rec.countReq.Inc()
	rec.countTime.Add(time.Since(start).Seconds())
}

func durationMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// NotifyIOStatus records the result of a downstream I/O probe.
func (d *Dispatcher) NotifyIOStatus(ok bool, msg string) {
	now := mono.NanoTime()
	if ok {
		d.lastIOSuccess.Store(now)
	} else {
		d.lastIOError.Store(now)
	}
	d.lastIOMsg.Store(msg)
}

// IsIOOk reports the dispatcher's I/O health: never-touched is OK;
// the most recent event being an error is not OK; and a success older
// than a minute (with no newer error) is treated as a stalled probe.
func (d *Dispatcher) IsIOOk() bool {
	succ := d.lastIOSuccess.Load()
	errv := d.lastIOError.Load()

	if succ == 0 && errv == 0 {
		return true
	}
	if errv > succ {
		return false
	}

	now := mono.NanoTime()
	ok := succ > now-int64(time.Minute)
	if !ok {
		d.warnStalledOncePerMinute(now, succ)
	}
	return ok
}

func (d *Dispatcher) warnStalledOncePerMinute(now, succ int64) {
	last := d.lastReport.Load()
	if now-last > int64(time.Minute) {
		d.lastReport.Store(now)
		nlog.Warningf("IO error checker stalled for %s", time.Duration(now-succ))
	}
}

func (d *Dispatcher) LastIOMsg() string {
	if v, ok := d.lastIOMsg.Load().(string); ok {
		return v
	}
	return ""
}
