// Package dispatch implements the request dispatcher, the reply context, and the access-log/statsd emitters.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Sample is one {kind, name, value} point read back from the
// dispatcher's internal Prometheus counters, in the shape the STATS
// admin handler converts to plain text or Prometheus exposition.
type Sample struct {
	Kind  string // "counter" or "gauge"
	Name  string
	Value uint64
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// TimeBase is the unit req.time.*/req.lag.* samples are expressed in:
// microseconds, so the Prometheus conversion's "divide by the time
// base for 6-decimal seconds" rule has an integer to work from instead
// of reusing the float seconds already tracked internally.
const TimeBase = 1_000_000

// SampleFunc supplies extra samples from outside the dispatcher --
// the transport layer feeds its connection counts/gauges through one.
type SampleFunc func() []Sample

// AddSampler registers an extra sample source read back by Samples.
// Like handler registration, it belongs to startup wiring: adding
// samplers once traffic is flowing is undefined.
func (d *Dispatcher) AddSampler(f SampleFunc) {
	d.mu.Lock()
	d.samplers = append(d.samplers, f)
	d.mu.Unlock()
}

// Samples returns the dispatcher's built-in and per-handler counters,
// followed by every registered external sampler's samples. Request
// counts with no per-method breakdown (req.hits, req.time) are
// included for completeness even though the Prometheus conversion
// skips them -- the scraper computes that sum itself.
func (d *Dispatcher) Samples() []Sample {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Sample, 0, len(d.handlers)*3+8)
	out = append(out, Sample{Kind: "counter", Name: "req.hits", Value: uint64(counterValue(d.countAll))})
	out = append(out, Sample{Kind: "counter", Name: "req.time", Value: uint64(counterValue(d.timeAll) * TimeBase)})
	out = append(out, Sample{Kind: "counter", Name: "req.overloaded", Value: uint64(counterValue(d.countOverloaded))})
	out = append(out, Sample{Kind: "counter", Name: "req.unexpected", Value: uint64(counterValue(d.countUnexpected))})
	out = append(out, Sample{Kind: "counter", Name: "req.ioerror", Value: uint64(counterValue(d.countIOErr))})

	for name, rec := range d.handlers {
		out = append(out, Sample{Kind: "counter", Name: "req.hits." + name, Value: uint64(counterValue(rec.countReq))})
		out = append(out, Sample{Kind: "counter", Name: "req.time." + name, Value: uint64(counterValue(rec.countTime) * TimeBase)})
		out = append(out, Sample{Kind: "counter", Name: "req.lag." + name, Value: uint64(counterValue(rec.countLag) * TimeBase)})
	}

	for _, f := range d.samplers {
		out = append(out, f()...)
	}
	return out
}
