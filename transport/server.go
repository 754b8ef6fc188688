// Package transport owns the TCP accept loop that binds the frame
// reader, dispatcher, and memory budget to live sockets: a socket
// accumulates bytes, the frame reader emits one decoded message at a
// time, and the dispatcher resolves and runs the handler for each.
//
// The connection model calls for N worker OS threads, each TCP
// connection affinitized to one worker at a time, with frame assembly
// and dispatch for one connection strictly sequential. The idiomatic
// Go rendition of that model is one goroutine per accepted connection:
// the runtime's M:N scheduler already gives every connection its own
// sequential execution context without a hand-rolled worker-thread
// pool, and frame.Reader.Serve never reads ahead on any other
// connection. See DESIGN.md for this decision.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/coreserve/gridd/codec"
	"github.com/coreserve/gridd/dispatch"
	"github.com/coreserve/gridd/frame"
	"github.com/coreserve/gridd/memsys"
)

// Config bounds one Server instance: knobs plumbed down to the frame
// reader and dispatcher.
type Config struct {
	Addr           string
	MaxRequestSize int64
	Budget         *memsys.Budget
	Codec          codec.Codec
	SlabSize       int
	// IdleTimeout closes a connection that goes quiet between frames;
	// zero disables the idle gate.
	IdleTimeout time.Duration
}

// Server accepts TCP connections on one address and serves each with
// its own frame.Reader against a shared Dispatcher -- the one piece of
// state every connection's goroutine shares read-mostly.
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool

	cnxTotal  atomic.Uint64
	cnxActive atomic.Int64
}

func NewServer(cfg Config, d *dispatch.Dispatcher) *Server {
	return &Server{cfg: cfg, dispatcher: d}
}

// Listen binds cfg.Addr without accepting yet, so callers can read
// Addr() (e.g. to wire the bound endpoint into the REDIRECT admin
// handler) before traffic starts flowing. Serve must be called
// afterward to actually accept connections.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// ListenAndServe binds cfg.Addr and accepts connections until Close is
// called, serving each on its own goroutine. It blocks until the
// listener closes or a terminal Accept error occurs.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections on a listener already bound by Listen. It
// blocks until the listener closes or a terminal Accept error occurs.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return cos.NewGridErr(cos.StatusInternalError, "transport: Serve called before Listen")
	}

	nlog.Infof("gridd: listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Addr returns the bound address, or "" until Listen (directly or via
// ListenAndServe) has bound the listener (used by REDIRECT to report
// the server's first bound endpoint).
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Samples feeds the transport's connection counts into the STATS
// admin handler; wire it up with dispatcher.AddSampler.
func (s *Server) Samples() []dispatch.Sample {
	return []dispatch.Sample{
		{Kind: "counter", Name: "cnx.client", Value: s.cnxTotal.Load()},
		{Kind: "gauge", Name: "cnx.client", Value: uint64(s.cnxActive.Load())},
		{Kind: "gauge", Name: "thread.active", Value: uint64(runtime.NumGoroutine())},
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.cnxTotal.Add(1)
	s.cnxActive.Add(1)
	defer s.cnxActive.Add(-1)

	r := frame.NewReader(frame.Config{
		MaxRequestSize: s.cfg.MaxRequestSize,
		Budget:         s.cfg.Budget,
		Codec:          s.cfg.Codec,
		SlabSize:       s.cfg.SlabSize,
	}, s.dispatcher, conn.LocalAddr().String(), conn.RemoteAddr().String())

	var rw frame.Conn = conn
	if s.cfg.IdleTimeout > 0 {
		rw = &idleConn{Conn: conn, timeout: s.cfg.IdleTimeout}
	}
	if err := r.Serve(rw); err != nil {
		if cos.IsEOF(err) {
			return
		}
		if cos.IsRetriableConnErr(err) {
			s.dispatcher.NotifyIOStatus(false, err.Error())
		}
		nlog.Infof("gridd: connection %s closed: %v", conn.RemoteAddr(), err)
	}
}

// idleConn arms a fresh read deadline before every Read, so a
// connection that goes quiet between frames eventually errors out of
// frame.Reader.Serve and gets closed.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.Conn.Read(p)
}

// Close stops accepting new connections. In-flight connections finish
// their current request (the transport never force-kills a handler)
// but Close does not wait for them; call Wait for that.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// Wait blocks until every connection goroutine spawned by this Server
// has returned.
func (s *Server) Wait() { s.wg.Wait() }
