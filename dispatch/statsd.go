// Package dispatch implements the request dispatcher, the reply context, and the access-log/statsd emitters.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"fmt"

	"github.com/coreserve/gridd/cmn/cos"
)

// emitStatsd fires the per-request statsd timer: best effort,
// fire-and-forget, one timer per (method, status) pair. The status
// code stays embedded verbatim in the metric name rather than
// bucketed into classes -- see DESIGN.md for why that tradeoff was
// kept as-is.
func emitStatsd(req *RequestContext, code cos.Status) {
	if StatsdEmit == nil {
		return
	}
	metric := fmt.Sprintf("request.%s.%d.timing", req.Name, int(code))
	millis := req.End.Sub(req.Arrival).Milliseconds()
	StatsdEmit(metric, millis)
}
