// Package admin implements the built-in admin handlers and the STATS output formats.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package admin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/coreserve/gridd/dispatch"
)

// Labels are the identity labels every emitted metric carries, in this
// order: service_id (optional), volume, namespace.
type Labels struct {
	ServiceID string
	Volume    string
	Namespace string
}

func (l Labels) render(extra ...[2]string) string {
	var parts []string
	if l.ServiceID != "" {
		parts = append(parts, fmt.Sprintf("service_id=%q", l.ServiceID))
	}
	parts = append(parts, fmt.Sprintf("volume=%q", l.Volume), fmt.Sprintf("namespace=%q", l.Namespace))
	for _, kv := range extra {
		parts = append(parts, fmt.Sprintf("%s=%q", kv[0], kv[1]))
	}
	return strings.Join(parts, ",")
}

// ToPrometheus converts dispatcher samples to Prometheus text
// exposition. Samples that don't match a known shape are logged and
// dropped, never emitted as-is -- there is no catch-all metric name
// to fall back to.
func ToPrometheus(samples []dispatch.Sample, labels Labels) string {
	sorted := append([]dispatch.Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, s := range sorted {
		line, ok := convertSample(s, labels)
		if !ok {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func convertSample(s dispatch.Sample, labels Labels) (string, bool) {
	switch s.Kind {
	case "counter":
		return convertCounter(s, labels)
	case "gauge":
		return convertGauge(s, labels)
	default:
		nlog.Warningf("prometheus: unknown sample kind %q for %q, skipping", s.Kind, s.Name)
		return "", false
	}
}

func convertCounter(s dispatch.Sample, labels Labels) (string, bool) {
	switch {
	case s.Name == "req.hits" || s.Name == "req.time":
		return "", false // no method breakdown: scraper sums the per-method series

	case strings.HasPrefix(s.Name, "req.hits."):
		method := strings.TrimPrefix(s.Name, "req.hits.")
		return fmt.Sprintf("meta_requests_total{%s} %d", labels.render([2]string{"method", method}), s.Value), true

	case strings.HasPrefix(s.Name, "req.time."):
		method := strings.TrimPrefix(s.Name, "req.time.")
		secs := float64(s.Value) / dispatch.TimeBase
		return fmt.Sprintf("meta_requests_duration_second_total{%s} %.6f", labels.render([2]string{"method", method}), secs), true

	case strings.HasPrefix(s.Name, "req.lag."):
		method := strings.TrimPrefix(s.Name, "req.lag.")
		secs := float64(s.Value) / dispatch.TimeBase
		return fmt.Sprintf("meta_requests_lag_second_total{%s} %.6f", labels.render([2]string{"method", method}), secs), true

	case strings.HasPrefix(s.Name, "cnx."):
		typ := strings.TrimPrefix(s.Name, "cnx.")
		return fmt.Sprintf("meta_connections_total{%s} %d", labels.render([2]string{"type", typ}), s.Value), true

	default:
		nlog.Warningf("prometheus: unmapped counter %q, skipping", s.Name)
		return "", false
	}
}

func convertGauge(s dispatch.Sample, labels Labels) (string, bool) {
	switch s.Name {
	case "thread.active":
		return fmt.Sprintf("meta_threads_active{%s} %d", labels.render(), s.Value), true
	case "cnx.client":
		return fmt.Sprintf("meta_connections_active{%s} %d", labels.render(), s.Value), true
	default:
		nlog.Warningf("prometheus: unmapped gauge %q, skipping", s.Name)
		return "", false
	}
}
