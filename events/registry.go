// Package events implements the event-queue abstraction over broker backends.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package events

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StatsRegistry is the process-wide (event_type -> Queue) mapping the
// Prometheus exporter reads. It is reference-counted: the first
// Register call for a brand-new event_type takes one reference, every
// matching Unregister releases one, and the underlying map is torn
// down once the count reaches zero -- a lazily-created,
// explicitly-torn-down registry.
type StatsRegistry struct {
	mu     sync.Mutex
	byType map[string]Queue
	refs   int
}

// NewStatsRegistry returns an empty registry. The backing map is
// allocated lazily on the first Register call.
func NewStatsRegistry() *StatsRegistry {
	return &StatsRegistry{}
}

// Register associates eventType with q, replacing any queue previously
// registered under the same name without changing the reference
// count.
func (s *StatsRegistry) Register(eventType string, q Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byType == nil {
		s.byType = make(map[string]Queue, 4)
	}
	if _, exists := s.byType[eventType]; !exists {
		s.refs++
	}
	s.byType[eventType] = q
}

// Unregister removes eventType and releases one reference. When the
// reference count reaches zero the map is destroyed.
func (s *StatsRegistry) Unregister(eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byType[eventType]; !exists {
		return
	}
	delete(s.byType, eventType)
	s.refs--
	if s.refs <= 0 {
		s.byType = nil
		s.refs = 0
	}
}

// RefCount reports the live reference count, which always equals the
// number of active registrations.
func (s *StatsRegistry) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Lookup returns the queue currently registered for eventType, if any.
func (s *StatsRegistry) Lookup(eventType string) (Queue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byType[eventType]
	return q, ok
}

// ToPrometheus emits two lines per registered event_type: a
// sent-event counter and a cumulative send-time counter. Queues that
// don't implement Timed (a bare test fake, say) report zero for both
// -- the format still has a line for every event_type, never a gap.
func (s *StatsRegistry) ToPrometheus(serviceID, namespace string) string {
	s.mu.Lock()
	types := make([]string, 0, len(s.byType))
	queues := make(map[string]Queue, len(s.byType))
	for t, q := range s.byType {
		types = append(types, t)
		queues[t] = q
	}
	s.mu.Unlock()

	sort.Strings(types)

	var b strings.Builder
	for _, eventType := range types {
		var sent uint64
		var seconds float64
		if t, ok := queues[eventType].(Timed); ok {
			sent = t.TotalSentEvents()
			seconds = t.TotalSendTime().Seconds()
		}
		labels := renderLabels(serviceID, eventType, namespace)
		fmt.Fprintf(&b, "meta_event_sent_total{%s} %d\n", labels, sent)
		fmt.Fprintf(&b, "meta_event_send_time_seconds_total{%s} %.6f\n", labels, seconds)
	}
	return b.String()
}

func renderLabels(serviceID, eventType, namespace string) string {
	var parts []string
	if serviceID != "" {
		parts = append(parts, fmt.Sprintf("service_id=%q", serviceID))
	}
	parts = append(parts, fmt.Sprintf("event_type=%q", eventType), fmt.Sprintf("namespace=%q", namespace))
	return strings.Join(parts, ",")
}
