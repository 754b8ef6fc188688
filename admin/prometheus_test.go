// Package admin implements the built-in admin handlers and the STATS output formats.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package admin_test

import (
	"testing"

	"github.com/coreserve/gridd/admin"
	"github.com/coreserve/gridd/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestToPrometheusMapsHitsCounter(t *testing.T) {
	samples := []dispatch.Sample{
		{Kind: "counter", Name: "req.hits.PING", Value: 7},
		{Kind: "counter", Name: "req.hits", Value: 42}, // no-method: must be skipped
	}
	out := admin.ToPrometheus(samples, admin.Labels{ServiceID: "s1", Volume: "/srv", Namespace: "ns"})
	assert.Equal(t, `meta_requests_total{service_id="s1",volume="/srv",namespace="ns",method="PING"} 7`+"\n", out)
}

func TestToPrometheusDividesTimeByTimeBase(t *testing.T) {
	samples := []dispatch.Sample{
		{Kind: "counter", Name: "req.time.PING", Value: 2_500_000}, // 2.5s in microseconds
	}
	out := admin.ToPrometheus(samples, admin.Labels{Volume: "/srv", Namespace: "ns"})
	assert.Equal(t, `meta_requests_duration_second_total{volume="/srv",namespace="ns",method="PING"} 2.500000`+"\n", out)
}

func TestToPrometheusMapsGauges(t *testing.T) {
	samples := []dispatch.Sample{
		{Kind: "gauge", Name: "thread.active", Value: 4},
		{Kind: "gauge", Name: "cnx.client", Value: 9},
	}
	out := admin.ToPrometheus(samples, admin.Labels{Volume: "v", Namespace: "n"})
	assert.Contains(t, out, `meta_threads_active{volume="v",namespace="n"} 4`)
	assert.Contains(t, out, `meta_connections_active{volume="v",namespace="n"} 9`)
}

func TestToPrometheusSkipsUnmapped(t *testing.T) {
	samples := []dispatch.Sample{{Kind: "gauge", Name: "mystery.thing", Value: 1}}
	out := admin.ToPrometheus(samples, admin.Labels{})
	assert.Empty(t, out)
}

func TestToTextFormatsPlainLinesAndTrailers(t *testing.T) {
	samples := []dispatch.Sample{{Kind: "counter", Name: "req.hits.PING", Value: 7}}
	out := admin.ToText(samples, "s1", "/srv")
	assert.Contains(t, out, "req.hits.PING 7\n")
	assert.Contains(t, out, "config volume /srv\n")
	assert.Contains(t, out, "config service_id s1\n")
}
