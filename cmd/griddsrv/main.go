// Package main is the gridd core transport daemon: it wires the
// built-in admin handlers onto one TCP listener. It registers no
// application handlers and constructs no event-queue backend. Process
// bootstrap lives outside the core transport/dispatch packages; this
// binary is the thin bootstrap layer around them, grounded on
// cmd/authn/main.go's env-driven bootstrap/signal-handling shape.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreserve/gridd/admin"
	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/coreserve/gridd/codec"
	"github.com/coreserve/gridd/config"
	"github.com/coreserve/gridd/dispatch"
	"github.com/coreserve/gridd/memsys"
	"github.com/coreserve/gridd/transport"
)

var version = "dev"

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		fmt.Println("gridd " + version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		cos.ExitLogf("failed to load configuration: %v", err)
	}
	nlog.SetTitle("gridd " + version)

	installSignalHandler()
	go logFlushLoop()

	budget := memsys.NewBudget(cfg.MaxRequestSize * 64) // headroom for concurrent in-flight requests
	var codecImpl codec.BER

	d := dispatch.NewDispatcher(dispatch.Config{
		MaxQueueDelay:  cfg.MaxQueueDelay,
		MaxRunTime:     cfg.ServerMaxRunTime,
		PerfdataAlways: cfg.PerfdataAlways,
	})

	reg := config.NewRegistry()
	reg.Declare("debug_enabled", "false", func(v string) bool {
		ok := v == "true" || v == "false"
		if ok {
			dispatch.DebugEnabled = v == "true"
		}
		return ok
	})

	if cfg.StatsdHost != "" {
		dispatch.StatsdEmit = newStatsdEmitter(cfg.StatsdHost, cfg.StatsdPort)
	}

	// A concrete event-queue backend (events.Factory, events.StatsRegistry)
	// is wired up by the application layer that registers its own
	// request handlers on d -- the core binary itself has none to push
	// notifications from.

	srv := transport.NewServer(transport.Config{
		Addr:           cfg.ListenAddr,
		MaxRequestSize: cfg.MaxRequestSize,
		Budget:         budget,
		Codec:          codecImpl,
		IdleTimeout:    cfg.IdleTimeout,
	}, d)
	if err := srv.Listen(); err != nil {
		cos.ExitLogf("failed to bind: %v", err)
	}
	d.AddSampler(srv.Samples)

	info := admin.ServerInfo{
		Version:   "gridd/" + version,
		Endpoints: []string{srv.Addr()},
		ServiceID: cfg.ServiceID,
		Volume:    cfg.Volume,
		Namespace: cfg.Namespace,
	}
	if err := admin.Register(d, info, reg); err != nil {
		cos.ExitLogf("failed to register admin handlers: %v", err)
	}

	if err := srv.Serve(); err != nil {
		nlog.Flush(true)
		cos.ExitLogf("server exited: %v", err)
	}
}

func logFlushLoop() {
	for {
		time.Sleep(time.Minute)
		nlog.Flush()
	}
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Flush(true)
		os.Exit(0)
	}()
}

// newStatsdEmitter returns a fire-and-forget UDP statsd timer emitter.
// A send failure is swallowed: statsd emission is best-effort by
// design.
func newStatsdEmitter(host string, port int) func(metric string, millis int64) {
	addr := fmt.Sprintf("%s:%d", host, port)
	return func(metric string, millis int64) {
		conn, err := dialStatsd(addr)
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintf(conn, "%s:%d|ms\n", metric, millis)
	}
}

func dialStatsd(addr string) (net.Conn, error) {
	return net.Dial("udp", addr)
}
