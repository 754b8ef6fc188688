// Package dispatch implements the request dispatcher, the reply context, and the access-log/statsd emitters.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/nlog"
)

// DisableNoisyAccessLogs, when set, drops from the access log any OK
// request whose handler called NoAccess().
var DisableNoisyAccessLogs = true

// DebugEnabled, when true, forces access-log emission even through
// the noisy-log suppression path.
var DebugEnabled = false

// StatsdEmit is the fire-and-forget statsd timer hook; nil by default,
// wired to a UDP statsd emitter by cmd/griddsrv when a statsd host is
// configured.
var StatsdEmit func(metric string, millis int64)

// logAccess writes one structured access-log line per finalized
// request and fires the statsd timer. Called only once per request,
// from SendReply when a final code is produced.
func logAccess(req *RequestContext, code cos.Status, outLen int) {
	emitStatsd(req, code)

	if DisableNoisyAccessLogs && req.AccessDisabled && code.IsOK() && !DebugEnabled {
		return
	}

	diffTotal := req.End.Sub(req.Arrival).Seconds()
	diffHandler := req.End.Sub(req.Parsed).Seconds()
	dbWait := req.DBWait.Seconds()

	var b strings.Builder
	fmt.Fprintf(&b, "local:%s\tpeer:%s\tmethod:%s\tstatus_int:%d\trequest_time_float:%.6f"+
		"\tbytes_recvd_int:%d\tbytes_sent_int:%d\trequest_id:%s",
		ensure(req.LocalAddr), ensure(req.PeerAddr), ensure(req.Name), int(code), diffTotal,
		req.Size, outLen, ensure(req.ReqID))

	fmt.Fprintf(&b, "\ttime_spent_handler_float:%.6f\tdb_wait_float:%.6f\tprocess_time_float:%.6f",
		diffHandler, dbWait, diffHandler-dbWait)

	for _, name := range sortedPerfKeys(req.Perfdata) {
		fmt.Fprintf(&b, "\tperfdata_%s_float:%.6f", name, req.Perfdata[name].Seconds())
	}

	if req.Subject != "" {
		b.WriteByte('\t')
		b.WriteString(req.Subject)
	}

	nlog.Infoln(b.String())
}

func sortedPerfKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
