// Package admin implements the built-in admin handlers (PING, VERSION,
// LIST-HANDLERS, GETCFG, SETCFG, STATS, LEAN, REDIRECT) and the
// Prometheus text conversion for STATS.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package admin

import (
	rtdebug "runtime/debug"
	"sort"
	"strings"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/coreserve/gridd/codec"
	"github.com/coreserve/gridd/config"
	"github.com/coreserve/gridd/dispatch"
	jsoniter "github.com/json-iterator/go"
)

// ServerInfo carries the identity labels STATS/Prometheus attach to
// every metric, plus the data VERSION/REDIRECT answer with.
type ServerInfo struct {
	Version   string
	Endpoints []string // bound endpoints; Endpoints[0] is used by REDIRECT
	ServiceID string
	Volume    string
	Namespace string
}

// Register installs the built-in admin handlers on d. All of them are
// "local low-level handlers": they stay answerable while the
// I/O-health gate is tripped, since an operator needs PING, STATS,
// VERSION, and the rest most when the process is unhealthy.
func Register(d *dispatch.Dispatcher, info ServerInfo, reg *config.Registry) error {
	return d.Register([]dispatch.HandlerDescr{
		{Name: "REQ_PING", Local: true, Handler: handlePing},
		{Name: "REQ_VERSION", Local: true, Handler: handleVersion(info)},
		{Name: "REQ_LIST_HANDLERS", Local: true, Handler: handleListHandlers(d)},
		{Name: "REQ_GETCFG", Local: true, Handler: handleGetCfg(reg)},
		{Name: "REQ_SETCFG", Local: true, Handler: handleSetCfg(reg)},
		{Name: "REQ_STATS", Local: true, Handler: handleStats(d, info)},
		{Name: "REQ_LEAN", Local: true, Handler: handleLean},
		{Name: "REQ_REDIRECT", Local: true, Handler: handleRedirect(info)},
	}, nil)
}

func handlePing(r *dispatch.ReplyCtx, _, _ any) bool {
	r.NoAccess()
	r.SetBody([]byte("OK\r\n"))
	r.SendReply(cos.StatusOK, "OK")
	return true
}

func handleVersion(info ServerInfo) dispatch.HandlerFunc {
	return func(r *dispatch.ReplyCtx, _, _ any) bool {
		r.NoAccess()
		r.SetBody([]byte(info.Version))
		r.SendReply(cos.StatusOK, "OK")
		return true
	}
}

func handleListHandlers(d *dispatch.Dispatcher) dispatch.HandlerFunc {
	return func(r *dispatch.ReplyCtx, _, _ any) bool {
		r.NoAccess()
		names := d.Names()
		sort.Strings(names)
		r.SetBody([]byte(strings.Join(names, "\n")))
		r.SendReply(cos.StatusOK, "OK")
		return true
	}
}

func handleGetCfg(reg *config.Registry) dispatch.HandlerFunc {
	return func(r *dispatch.ReplyCtx, _, _ any) bool {
		body, err := jsoniter.Marshal(reg.All())
		if err != nil {
			r.SendError(cos.StatusInternalError, err)
			return true
		}
		r.SetBody(body)
		r.SendReply(cos.StatusOK, "OK")
		return true
	}
}

// handleSetCfg applies a {name: string_value} JSON object against the
// registry and replies with {name: bool_succeeded}.
func handleSetCfg(reg *config.Registry) dispatch.HandlerFunc {
	return func(r *dispatch.ReplyCtx, _, _ any) bool {
		var updates map[string]string
		if err := jsoniter.Unmarshal(r.RequestBody(), &updates); err != nil {
			r.SendError(cos.StatusBadRequest, cos.NewGridErr(cos.StatusBadRequest, "invalid SETCFG body: %v", err))
			return true
		}
		results := make(map[string]bool, len(updates))
		for name, value := range updates {
			results[name] = reg.Apply(name, value)
		}
		body, err := jsoniter.Marshal(results)
		if err != nil {
			r.SendError(cos.StatusInternalError, err)
			return true
		}
		r.SetBody(body)
		r.SendReply(cos.StatusOK, "OK")
		return true
	}
}

func handleLean(r *dispatch.ReplyCtx, _, _ any) bool {
	nlog.Infoln("LEAN: trimming idle memory")
	rtdebug.FreeOSMemory()
	r.SendReply(cos.StatusOK, "OK")
	return true
}

func handleRedirect(info ServerInfo) dispatch.HandlerFunc {
	return func(r *dispatch.ReplyCtx, _, _ any) bool {
		endpoint := ""
		if len(info.Endpoints) > 0 {
			endpoint = info.Endpoints[0]
		}
		r.Redirect(endpoint)
		return true
	}
}

// handleStats collects the dispatcher's samples and emits them either
// as plain text or Prometheus exposition depending on the FORMAT field.
func handleStats(d *dispatch.Dispatcher, info ServerInfo) dispatch.HandlerFunc {
	return func(r *dispatch.ReplyCtx, _, _ any) bool {
		r.NoAccess()
		samples := d.Samples()

		var body string
		if format, _ := r.RequestField(codec.FieldFormat); format == "prometheus" {
			body = ToPrometheus(samples, Labels{ServiceID: info.ServiceID, Volume: info.Volume, Namespace: info.Namespace})
		} else {
			body = ToText(samples, info.ServiceID, info.Volume)
		}
		r.SetBody([]byte(body))
		r.SendReply(cos.StatusOK, "OK")
		return true
	}
}
