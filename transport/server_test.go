// Package transport owns the TCP accept loop serving framed requests.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport_test

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/coreserve/gridd/admin"
	"github.com/coreserve/gridd/codec"
	"github.com/coreserve/gridd/config"
	"github.com/coreserve/gridd/dispatch"
	"github.com/coreserve/gridd/memsys"
	"github.com/coreserve/gridd/transport"
	"github.com/stretchr/testify/require"
)

func newRunningServer(t *testing.T) (*transport.Server, codec.BER) {
	t.Helper()
	d := dispatch.NewDispatcher(dispatch.Config{MaxQueueDelay: time.Minute, MaxRunTime: time.Minute})
	require.NoError(t, admin.Register(d, admin.ServerInfo{Version: "gridd/test"}, config.NewRegistry()))

	var c codec.BER
	srv := transport.NewServer(transport.Config{
		Addr:           "127.0.0.1:0",
		MaxRequestSize: 1 << 20,
		Budget:         memsys.NewBudget(1 << 20),
		Codec:          c,
	}, d)

	go func() { _ = srv.ListenAndServe() }()
	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, time.Millisecond)
	t.Cleanup(func() { srv.Close(); srv.Wait() })
	return srv, c
}

func TestEndToEndPingOverRealSocket(t *testing.T) {
	srv, c := newRunningServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	msg := codec.NewMessage("REQ_PING")
	payload, err := c.Encode(msg)
	require.NoError(t, err)
	frameBuf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frameBuf[:4], uint32(len(payload)))
	copy(frameBuf[4:], payload)

	_, err = conn.Write(frameBuf)
	require.NoError(t, err)

	var lenBuf [4]byte
	_, err = conn.Read(lenBuf[:])
	require.NoError(t, err)
	replySize := binary.BigEndian.Uint32(lenBuf[:])
	replyBuf := make([]byte, replySize)
	read := 0
	for read < len(replyBuf) {
		n, err := conn.Read(replyBuf[read:])
		require.NoError(t, err)
		read += n
	}

	reply, err := c.Decode(replyBuf)
	require.NoError(t, err)
	status, _ := reply.FieldString(codec.FieldStatus)
	require.Equal(t, "200", status)
	require.Equal(t, "OK\r\n", string(reply.Body))
}
