// Package frame implements the length-prefixed frame reader: it
// consumes byte slabs from a connection, assembles complete frames,
// enforces the size and memory caps, and detects misdirected HTTP
// traffic.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package frame

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/coreserve/gridd/cmn/nlog"
	"github.com/coreserve/gridd/codec"
	"github.com/coreserve/gridd/dispatch"
	"github.com/coreserve/gridd/memsys"
)

// HTTPReadahead bounds how many bytes the reader waits for, and scans,
// when testing for a misdirected HTTP request; the test itself runs on
// whatever bytes are already on hand.
const HTTPReadahead = 4096

const oneGiB = 1 << 30

// httpVerbPrefixes maps the big-endian uint32 reading of the first
// four bytes of an HTTP request line to the verb it spells out.
var httpVerbPrefixes = map[uint32]struct{}{
	1145392197: {}, // "DELE" (DELETE)
	1195725856: {}, // "GET "
	1212498244: {}, // "HEAD"
	1330664521: {}, // "OPTI" (OPTIONS)
	1347375956: {}, // "POST"
	1347769376: {}, // "PUT " -- NOTE: kept distinct from POST
}

// ErrTransport is returned by Serve for every terminal condition that
// closes the connection without necessarily being the caller's fault
// (oversized frame, HTTP bounce, memory exhaustion). A payload the
// codec cannot decode is answered with BAD_REQUEST and the connection
// stays open.
var ErrTransport = errors.New("frame: transport error")

// Conn is the minimal connection contract Serve needs; a net.Conn
// satisfies it, as does any io.ReadWriter.
type Conn interface {
	io.Reader
	io.Writer
}

// Config bounds the frame reader's size/memory policy.
type Config struct {
	MaxRequestSize int64
	Budget         *memsys.Budget
	Codec          codec.Codec
	SlabSize       int // size of each conn.Read() call; 0 defaults to 64KiB
}

// Reader assembles frames from one connection and hands decoded
// messages to a dispatcher. One Reader serves exactly one connection:
// frame assembly and dispatch for that connection are strictly
// sequential.
type Reader struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	localAddr  string
	peerAddr   string
}

func NewReader(cfg Config, d *dispatch.Dispatcher, localAddr, peerAddr string) *Reader {
	if cfg.SlabSize <= 0 {
		cfg.SlabSize = 64 * 1024
	}
	return &Reader{cfg: cfg, dispatcher: d, localAddr: localAddr, peerAddr: peerAddr}
}

// Serve reads frames from conn until EOF or a terminal transport
// error, dispatching each complete, non-empty frame synchronously.
func (r *Reader) Serve(conn Conn) error {
	buf := make([]byte, r.cfg.SlabSize)
	var acc []byte

	for {
		n, readErr := conn.Read(buf)
		eof := readErr == io.EOF
		if n > 0 {
			acc = append(acc, buf[:n]...)
		}
		if n > 0 || eof {
			for {
				consumed, terminal, err := r.tryFrame(acc, conn, eof)
				if err != nil {
					return err
				}
				if consumed == 0 {
					break
				}
				acc = acc[consumed:]
				if terminal {
					return ErrTransport
				}
			}
		}
		if readErr != nil {
			if eof {
				return nil
			}
			return readErr
		}
	}
}

// tryFrame attempts to consume one unit of work from acc: a 4-byte
// no-op, one complete frame, or a terminal decision (oversized / HTTP
// bounce / memory exhausted). consumed==0 means "need more bytes before
// deciding anything", never an error by itself.
func (r *Reader) tryFrame(acc []byte, conn Conn, eof bool) (consumed int, terminal bool, err error) {
	if len(acc) < 4 {
		return 0, false, nil
	}
	size := binary.BigEndian.Uint32(acc[:4])

	if size == 0 {
		return 4, false, nil // keepalive/no-op
	}

	// HTTP detection runs before the size gate: a 1+ GiB "payload size"
	// whose four bytes spell an HTTP verb is almost certainly a browser
	// or curl aimed at the wrong port, and it deserves a 418 instead of
	// a "Request too big" close.
	payloadSize := int64(size)
	if payloadSize > oneGiB {
		if _, verb := httpVerbPrefixes[size]; verb {
			if r.looksLikeHTTP(acc) {
				conn.Write([]byte("HTTP/1.1 418 I'm a teapot\r\n"))
				nlog.Warningf("Received an HTTP request, ASN.1 expected")
				return len(acc), true, nil
			}
			if len(acc) < HTTPReadahead && !eof {
				return 0, false, nil // the request line may still be in flight
			}
		}
	}

	if payloadSize > r.cfg.MaxRequestSize {
		nlog.Warningf("Request too big (%d > %d)", payloadSize, r.cfg.MaxRequestSize)
		return len(acc), true, nil
	}

	if !r.cfg.Budget.HasFree(payloadSize) {
		r.replyMemoryExhausted(conn, payloadSize)
		return len(acc), true, nil
	}

	total := 4 + int(size)
	if len(acc) < total {
		return 0, false, nil // wait for the rest of the frame
	}

	if !r.cfg.Budget.Reserve(payloadSize) {
		r.replyMemoryExhausted(conn, payloadSize)
		return len(acc), true, nil
	}
	defer r.cfg.Budget.Release(payloadSize)

	r.handleFrame(acc[4:total], total, conn)
	return total, false, nil
}

func (r *Reader) looksLikeHTTP(acc []byte) bool {
	window := acc[4:]
	if len(window) > HTTPReadahead {
		window = window[:HTTPReadahead]
	}
	return containsHTTPMarker(window)
}

func containsHTTPMarker(b []byte) bool {
	const marker = " HTTP/1."
	if len(marker) > len(b) {
		return false
	}
	for i := 0; i+len(marker) <= len(b); i++ {
		if string(b[i:i+len(marker)]) == marker {
			return true
		}
	}
	return false
}

// WriteFrame writes one length-prefixed frame: 4-byte big-endian
// payload length followed by the payload itself. Replies travel in
// the same framing as requests.
func WriteFrame(w io.Writer, payload []byte) (int, error) {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return w.Write(out)
}

func (r *Reader) replyMemoryExhausted(conn Conn, payloadSize int64) {
	nlog.Warningf("Memory usage too high, cannot decode request of size %d bytes", payloadSize)
	reply := codec.NewMessage(codec.NameReply)
	reply.AddFieldString(codec.FieldStatus, strconv.Itoa(int(cos.StatusUnavailable)))
	reply.AddFieldString(codec.FieldMessage, "Memory exhausted")
	if encoded, err := r.cfg.Codec.Encode(reply); err == nil {
		WriteFrame(conn, encoded)
	}
}

func (r *Reader) handleFrame(payload []byte, frameSize int, conn Conn) {
	arrival := time.Now()
	msg, err := r.cfg.Codec.Decode(payload)
	sink := func(b []byte) (int, error) { return WriteFrame(conn, b) }
	if err != nil {
		nlog.Infof("ASN.1/BER decoder error: %v", err)
		errReq := dispatch.NewRequestContext(codec.NewMessage(""), arrival, int64(frameSize), r.cfg.Codec, sink)
		errReq.LocalAddr, errReq.PeerAddr = r.localAddr, r.peerAddr
		dispatch.ReplyBadRequest(errReq, "Malformed ASN.1/BER Message")
		return
	}
	if msg.Name == "" {
		req := dispatch.NewRequestContext(msg, arrival, int64(frameSize), r.cfg.Codec, sink)
		req.LocalAddr, req.PeerAddr = r.localAddr, r.peerAddr
		dispatch.ReplyBadRequest(req, "Invalid/No request name")
		return
	}

	req := dispatch.NewRequestContext(msg, arrival, int64(frameSize), r.cfg.Codec, sink)
	req.LocalAddr, req.PeerAddr = r.localAddr, r.peerAddr
	r.dispatcher.Dispatch(req)
}
